package queue

import (
	"context"
	"sync/atomic"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"attendance/internal/attendance"
	"attendance/internal/credits"
)

func newService(t *testing.T) (*attendance.Service, *credits.Memory, attendance.Store) {
	t.Helper()
	st := attendance.NewMemoryStore()
	require.NoError(t, st.CreateStudent(context.Background(), attendance.Student{AdmissionNo: "ADM001", Name: "Aarav Sharma", ClassName: "10-A"}))
	ledger := credits.NewMemory(1)
	return attendance.NewService(st, ledger, zerolog.Nop()), ledger, st
}

type countingMarker struct {
	next  Marker
	calls atomic.Int32
}

func (m *countingMarker) MarkAuto(ctx context.Context, staffID, admissionNo, session string) (attendance.Record, error) {
	defer m.calls.Add(1)
	return m.next.MarkAuto(ctx, staffID, admissionNo, session)
}

func TestInMemory_PublishValidates(t *testing.T) {
	q := NewInMemory(1)
	err := q.Publish(context.Background(), Checkin{Device: "gate-1"})
	assert.Error(t, err)
	err = q.Publish(context.Background(), Checkin{AdmissionNo: "ADM001"})
	assert.Error(t, err)
}

func TestWorker_InMemory(t *testing.T) {
	svc, ledger, st := newService(t)
	q := NewInMemory(8)
	ctx, cancel := context.WithCancel(context.Background())

	require.NoError(t, q.Publish(ctx, Checkin{AdmissionNo: "ADM001", Session: "morning", Device: "gate-1"}))
	require.NoError(t, q.Publish(ctx, Checkin{AdmissionNo: "ADM404", Device: "gate-1"}))
	require.NoError(t, q.Publish(ctx, Checkin{AdmissionNo: "ADM001", Session: "noon", Device: "gate-1"}))

	counted := &countingMarker{next: svc}
	done := make(chan Stats, 1)
	go func() {
		s, err := NewWorker(q, counted, zerolog.Nop()).Run(ctx)
		assert.NoError(t, err)
		done <- s
	}()

	require.Eventually(t, func() bool { return counted.calls.Load() == 3 }, 2*time.Second, 10*time.Millisecond)
	cancel()

	stats := <-done
	assert.Equal(t, 1, stats.Processed)
	assert.Equal(t, 2, stats.Rejected)

	recs, err := st.StudentRecords(context.Background(), "ADM001")
	require.NoError(t, err)
	assert.Equal(t, attendance.SourceAuto, recs[0].Source)
	assert.Equal(t, "device:gate-1", recs[0].MarkedBy)

	b, err := ledger.Balance(context.Background(), "device:gate-1")
	require.NoError(t, err)
	assert.Equal(t, 0, b.Consumed)
}

func TestRedisQueue_RoundTrip(t *testing.T) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })

	q := NewRedisQueue(client, "", zerolog.Nop())
	q.timeout = 100 * time.Millisecond
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	require.NoError(t, q.Publish(ctx, Checkin{AdmissionNo: "ADM001", Device: "kiosk"}))
	require.NoError(t, client.LPush(ctx, DefaultKey, "not json").Err())
	require.NoError(t, q.Publish(ctx, Checkin{AdmissionNo: "ADM002", Session: "evening", Device: "kiosk"}))

	ch, err := q.Consume(ctx)
	require.NoError(t, err)

	var got []string
	for len(got) < 2 {
		select {
		case c := <-ch:
			got = append(got, c.AdmissionNo)
		case <-time.After(2 * time.Second):
			t.Fatal("timed out waiting for checkins")
		}
	}
	assert.Equal(t, []string{"ADM001", "ADM002"}, got)
}

func TestRedisQueue_ConsumeUnreachable(t *testing.T) {
	client := redis.NewClient(&redis.Options{Addr: "127.0.0.1:1", DialTimeout: 50 * time.Millisecond})
	t.Cleanup(func() { _ = client.Close() })
	_, err := NewRedisQueue(client, "x", zerolog.Nop()).Consume(context.Background())
	assert.Error(t, err)
}
