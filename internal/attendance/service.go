package attendance

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"attendance/internal/credits"
	"attendance/internal/metrics"
)

// Service coordinates marking, credit accounting and the read views.
type Service struct {
	store  Store
	ledger credits.Ledger
	log    zerolog.Logger
	now    func() time.Time
}

// Option customizes a Service.
type Option func(*Service)

// WithClock replaces time.Now; used to pin "today" and the auto session.
func WithClock(now func() time.Time) Option {
	return func(s *Service) { s.now = now }
}

// NewService creates a service backed by a store and a credit ledger.
func NewService(store Store, ledger credits.Ledger, logger zerolog.Logger, opts ...Option) *Service {
	s := &Service{store: store, ledger: ledger, log: logger, now: time.Now}
	for _, o := range opts {
		o(s)
	}
	return s
}

// ManualRequest is a staff correction for one slot.
type ManualRequest struct {
	AdmissionNo string `json:"admission_no" binding:"required"`
	Date        string `json:"date" binding:"required"`
	Session     string `json:"session" binding:"required"`
	Status      string `json:"status" binding:"required"`
}

// ManualResult is returned for a successful correction.
type ManualResult struct {
	Message          string `json:"message"`
	CreditsUsed      int    `json:"credits_used"`
	CreditsRemaining int    `json:"credits_remaining"`
	Record           Record `json:"record"`
}

// MarkManual spends one of the staff member's credits and writes the record.
// The student must exist before any credit is spent; a failed write refunds the credit.
func (s *Service) MarkManual(ctx context.Context, staffID string, req ManualRequest) (ManualResult, error) {
	rec, err := s.validateManual(req)
	if err != nil {
		return ManualResult{}, err
	}
	if _, err := s.store.GetStudent(ctx, rec.AdmissionNo); err != nil {
		return ManualResult{}, fmt.Errorf("student %s: %w", rec.AdmissionNo, err)
	}

	receipt, err := s.ledger.Consume(ctx, staffID, 1, rec.Reference())
	if err != nil {
		if errors.Is(err, credits.ErrCreditsExhausted) {
			metrics.CreditOps.WithLabelValues("consume", "exhausted").Inc()
		} else {
			metrics.CreditOps.WithLabelValues("consume", "error").Inc()
		}
		return ManualResult{}, err
	}
	metrics.CreditOps.WithLabelValues("consume", "ok").Inc()

	rec.Source = SourceManual
	rec.MarkedBy = staffID
	saved, err := s.store.UpsertRecord(ctx, rec)
	if err != nil {
		if rerr := s.ledger.Refund(context.WithoutCancel(ctx), receipt); rerr != nil {
			metrics.CreditOps.WithLabelValues("refund", "error").Inc()
			s.log.Error().Err(rerr).Str("staff", staffID).Str("entry", receipt.EntryID).Msg("credit refund failed")
		} else {
			metrics.CreditOps.WithLabelValues("refund", "ok").Inc()
		}
		return ManualResult{}, fmt.Errorf("save record: %w", err)
	}
	metrics.AttendanceMarks.WithLabelValues(string(SourceManual)).Inc()
	s.log.Info().
		Str("staff", staffID).
		Str("ref", saved.Reference()).
		Str("status", string(saved.Status)).
		Int("remaining", receipt.Remaining).
		Msg("manual attendance marked")

	return ManualResult{
		Message:          "Attendance marked successfully",
		CreditsUsed:      receipt.Consumed,
		CreditsRemaining: receipt.Remaining,
		Record:           saved,
	}, nil
}

func (s *Service) validateManual(req ManualRequest) (Record, error) {
	adm := strings.TrimSpace(req.AdmissionNo)
	if adm == "" {
		return Record{}, fmt.Errorf("%w: admission_no is required", ErrInvalidInput)
	}
	date, err := parseDate(req.Date)
	if err != nil {
		return Record{}, err
	}
	session, err := ParseSession(req.Session)
	if err != nil {
		return Record{}, err
	}
	status, err := ParseStatus(req.Status)
	if err != nil {
		return Record{}, err
	}
	return Record{AdmissionNo: adm, Date: date, Session: session, Status: status}, nil
}

// MarkAuto records the student present for today's current session. It never touches credits.
// An empty session is derived from the clock.
func (s *Service) MarkAuto(ctx context.Context, staffID, admissionNo, session string) (Record, error) {
	adm := strings.TrimSpace(admissionNo)
	if adm == "" {
		return Record{}, fmt.Errorf("%w: admission_no is required", ErrInvalidInput)
	}
	now := s.now()
	sess := SessionAt(now)
	if strings.TrimSpace(session) != "" {
		var err error
		if sess, err = ParseSession(session); err != nil {
			return Record{}, err
		}
	}
	if _, err := s.store.GetStudent(ctx, adm); err != nil {
		return Record{}, fmt.Errorf("student %s: %w", adm, err)
	}
	saved, err := s.store.UpsertRecord(ctx, Record{
		AdmissionNo: adm,
		Date:        now.Format(DateLayout),
		Session:     sess,
		Status:      StatusPresent,
		Source:      SourceAuto,
		MarkedBy:    staffID,
	})
	if err != nil {
		return Record{}, fmt.Errorf("save record: %w", err)
	}
	metrics.AttendanceMarks.WithLabelValues(string(SourceAuto)).Inc()
	return saved, nil
}

// StudentView is a student with their records.
type StudentView struct {
	Student Student  `json:"student"`
	Records []Record `json:"records"`
}

// StudentView returns a student with their records, newest first.
func (s *Service) StudentView(ctx context.Context, admissionNo string) (StudentView, error) {
	st, err := s.store.GetStudent(ctx, admissionNo)
	if err != nil {
		return StudentView{}, fmt.Errorf("student %s: %w", admissionNo, err)
	}
	recs, err := s.store.StudentRecords(ctx, admissionNo)
	if err != nil {
		return StudentView{}, fmt.Errorf("records for %s: %w", admissionNo, err)
	}
	return StudentView{Student: st, Records: recs}, nil
}

// DashboardRow is one student's line on a class dashboard.
type DashboardRow struct {
	AdmissionNo   string `json:"admission_no"`
	Student       string `json:"student"`
	Morning       Status `json:"morning"`
	Evening       Status `json:"evening"`
	ManualCredits int    `json:"manual_credits"`
}

// DashboardTotals counts session statuses across the class.
type DashboardTotals struct {
	Present   int `json:"present"`
	Absent    int `json:"absent"`
	Late      int `json:"late"`
	NotMarked int `json:"not_marked"`
}

// Dashboard is a class overview for one date.
type Dashboard struct {
	ClassName string          `json:"class_name"`
	Date      string          `json:"date"`
	Students  []DashboardRow  `json:"students"`
	Totals    DashboardTotals `json:"totals"`
}

// ClassDashboard groups a class's records for date by session. An empty date means today.
func (s *Service) ClassDashboard(ctx context.Context, className, date string) (Dashboard, error) {
	if strings.TrimSpace(date) == "" {
		date = s.now().Format(DateLayout)
	}
	day, err := parseDate(date)
	if err != nil {
		return Dashboard{}, err
	}
	students, err := s.store.ClassStudents(ctx, className)
	if err != nil {
		return Dashboard{}, fmt.Errorf("class %s: %w", className, err)
	}
	if len(students) == 0 {
		return Dashboard{}, fmt.Errorf("class %s: %w", className, ErrNotFound)
	}
	recs, err := s.store.ClassRecords(ctx, className, day)
	if err != nil {
		return Dashboard{}, fmt.Errorf("class %s records: %w", className, err)
	}

	byStudent := make(map[string][]Record, len(students))
	for _, r := range recs {
		byStudent[r.AdmissionNo] = append(byStudent[r.AdmissionNo], r)
	}

	d := Dashboard{ClassName: className, Date: day, Students: make([]DashboardRow, 0, len(students))}
	for _, st := range students {
		row := DashboardRow{
			AdmissionNo: st.AdmissionNo,
			Student:     st.Name,
			Morning:     StatusNotMarked,
			Evening:     StatusNotMarked,
		}
		for _, r := range byStudent[st.AdmissionNo] {
			switch r.Session {
			case SessionMorning:
				row.Morning = r.Status
			case SessionEvening:
				row.Evening = r.Status
			}
			if r.Source == SourceManual {
				row.ManualCredits++
			}
		}
		d.Totals.add(row.Morning)
		d.Totals.add(row.Evening)
		d.Students = append(d.Students, row)
	}
	return d, nil
}

func (t *DashboardTotals) add(st Status) {
	switch st {
	case StatusPresent:
		t.Present++
	case StatusAbsent:
		t.Absent++
	case StatusLate:
		t.Late++
	default:
		t.NotMarked++
	}
}

// StaffActions is what a staff member sees before correcting a student.
type StaffActions struct {
	Student           Student  `json:"student"`
	CreditsUsed       int      `json:"credits_used"`
	RemainingCredits  int      `json:"remaining_credits"`
	AttendanceRecords []Record `json:"attendance_records"`
}

// StaffActions is what a staff member sees before correcting a student.
func (s *Service) StaffActions(ctx context.Context, staffID, admissionNo string) (StaffActions, error) {
	view, err := s.StudentView(ctx, admissionNo)
	if err != nil {
		return StaffActions{}, err
	}
	bal, err := s.ledger.Balance(ctx, staffID)
	if err != nil {
		return StaffActions{}, fmt.Errorf("credits for %s: %w", staffID, err)
	}
	return StaffActions{
		Student:           view.Student,
		CreditsUsed:       bal.Consumed,
		RemainingCredits:  bal.Remaining(),
		AttendanceRecords: view.Records,
	}, nil
}

// ListStudents returns all students.
func (s *Service) ListStudents(ctx context.Context) ([]Student, error) {
	return s.store.ListStudents(ctx)
}

// AddStudent validates and stores a directory entry.
func (s *Service) AddStudent(ctx context.Context, st Student) error {
	st.AdmissionNo = strings.TrimSpace(st.AdmissionNo)
	st.ClassName = strings.TrimSpace(st.ClassName)
	if st.AdmissionNo == "" || st.ClassName == "" {
		return fmt.Errorf("%w: admission_no and class are required", ErrInvalidInput)
	}
	return s.store.CreateStudent(ctx, st)
}
