package queue

import (
	"context"
	"errors"

	"github.com/rs/zerolog"

	"attendance/internal/attendance"
)

// Marker records automatic presence. *attendance.Service satisfies it.
type Marker interface {
	MarkAuto(ctx context.Context, staffID, admissionNo, session string) (attendance.Record, error)
}

// Stats summarises a worker run.
type Stats struct {
	Processed int
	Rejected  int
	Failed    int
}

// Worker drains check-ins into the attendance store. Check-ins never touch the credit ledger.
type Worker struct {
	q      Queue
	marker Marker
	log    zerolog.Logger
}

// NewWorker creates a worker draining q into marker.
func NewWorker(q Queue, marker Marker, logger zerolog.Logger) *Worker {
	return &Worker{q: q, marker: marker, log: logger}
}

// Run blocks until ctx is done or the queue closes.
func (w *Worker) Run(ctx context.Context) (Stats, error) {
	var st Stats
	checkins, err := w.q.Consume(ctx)
	if err != nil {
		return st, err
	}
	w.log.Info().Msg("worker started, waiting for checkins")
	for c := range checkins {
		w.handle(ctx, c, &st)
	}
	w.log.Info().Int("processed", st.Processed).Int("rejected", st.Rejected).Int("failed", st.Failed).Msg("worker stopped")
	return st, nil
}

func (w *Worker) handle(ctx context.Context, c Checkin, st *Stats) {
	l := w.log.With().Str("admission_no", c.AdmissionNo).Str("device", c.Device).Logger()
	rec, err := w.marker.MarkAuto(ctx, "device:"+c.Device, c.AdmissionNo, c.Session)
	switch {
	case err == nil:
		st.Processed++
		l.Debug().Str("date", rec.Date).Str("session", string(rec.Session)).Msg("checkin recorded")
	case errors.Is(err, attendance.ErrNotFound), errors.Is(err, attendance.ErrInvalidInput):
		st.Rejected++
		l.Warn().Err(err).Msg("checkin rejected")
	default:
		st.Failed++
		l.Error().Err(err).Msg("checkin failed")
	}
}
