package attendance

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"attendance/internal/credits"
)

const staff = "staff@demo.com"

type failingStore struct {
	*MemoryStore
}

func (failingStore) UpsertRecord(context.Context, Record) (Record, error) {
	return Record{}, errors.New("disk full")
}

func fixedClock(hour int) func() time.Time {
	return func() time.Time { return time.Date(2025, 9, 20, hour, 15, 0, 0, time.UTC) }
}

func newTestService(t *testing.T, store Store, ledger credits.Ledger) *Service {
	t.Helper()
	return NewService(store, ledger, zerolog.Nop(), WithClock(fixedClock(9)))
}

func seededStore(t *testing.T) *MemoryStore {
	t.Helper()
	st := NewMemoryStore()
	ctx := context.Background()
	require.NoError(t, st.CreateStudent(ctx, Student{AdmissionNo: "ADM001", Name: "Asha", ClassName: "10-A"}))
	require.NoError(t, st.CreateStudent(ctx, Student{AdmissionNo: "ADM002", Name: "Ravi", ClassName: "10-A"}))
	require.NoError(t, st.CreateStudent(ctx, Student{AdmissionNo: "ADM900", Name: "Mei", ClassName: "11-B"}))
	return st
}

func TestMarkManual_ConsumesUntilExhausted(t *testing.T) {
	ctx := context.Background()
	ledger := credits.NewMemory(3)
	svc := newTestService(t, seededStore(t), ledger)

	sessions := []string{"morning", "evening", "morning"}
	dates := []string{"2025-09-20", "2025-09-20", "2025-09-21"}
	for i, want := range []int{2, 1, 0} {
		res, err := svc.MarkManual(ctx, staff, ManualRequest{
			AdmissionNo: "ADM001", Date: dates[i], Session: sessions[i], Status: "Present",
		})
		require.NoError(t, err)
		assert.Equal(t, want, res.CreditsRemaining)
		assert.Equal(t, i+1, res.CreditsUsed)
		assert.Equal(t, SourceManual, res.Record.Source)
	}

	_, err := svc.MarkManual(ctx, staff, ManualRequest{
		AdmissionNo: "ADM001", Date: "2025-09-21", Session: "evening", Status: "Late",
	})
	require.ErrorIs(t, err, credits.ErrCreditsExhausted)

	b, err := ledger.Balance(ctx, staff)
	require.NoError(t, err)
	assert.Equal(t, 3, b.Consumed)
}

func TestMarkManual_UnknownStudentSpendsNothing(t *testing.T) {
	ctx := context.Background()
	ledger := credits.NewMemory(3)
	svc := newTestService(t, seededStore(t), ledger)

	_, err := svc.MarkManual(ctx, staff, ManualRequest{
		AdmissionNo: "ADM404", Date: "2025-09-20", Session: "morning", Status: "Present",
	})
	require.ErrorIs(t, err, ErrNotFound)

	b, err := ledger.Balance(ctx, staff)
	require.NoError(t, err)
	assert.Equal(t, 0, b.Consumed)
}

func TestMarkManual_InvalidPayload(t *testing.T) {
	svc := newTestService(t, seededStore(t), credits.NewMemory(3))
	cases := []ManualRequest{
		{AdmissionNo: "", Date: "2025-09-20", Session: "morning", Status: "Present"},
		{AdmissionNo: "ADM001", Date: "20-09-2025", Session: "morning", Status: "Present"},
		{AdmissionNo: "ADM001", Date: "2025-09-20", Session: "night", Status: "Present"},
		{AdmissionNo: "ADM001", Date: "2025-09-20", Session: "morning", Status: "Sick"},
	}
	for _, req := range cases {
		_, err := svc.MarkManual(context.Background(), staff, req)
		assert.ErrorIs(t, err, ErrInvalidInput, "%+v", req)
	}
}

func TestMarkManual_RefundsWhenStoreFails(t *testing.T) {
	ctx := context.Background()
	ledger := credits.NewMemory(3)
	svc := newTestService(t, failingStore{seededStore(t)}, ledger)

	_, err := svc.MarkManual(ctx, staff, ManualRequest{
		AdmissionNo: "ADM001", Date: "2025-09-20", Session: "morning", Status: "Absent",
	})
	require.Error(t, err)
	assert.NotErrorIs(t, err, credits.ErrCreditsExhausted)

	b, err := ledger.Balance(ctx, staff)
	require.NoError(t, err)
	assert.Equal(t, 0, b.Consumed)

	h, err := ledger.History(ctx, staff)
	require.NoError(t, err)
	require.Len(t, h, 2)
	assert.Equal(t, credits.KindRefund, h[1].Kind)
}

func TestMarkAuto_BypassesLedger(t *testing.T) {
	ctx := context.Background()
	ledger := credits.NewMemory(1)
	svc := newTestService(t, seededStore(t), ledger)

	rec, err := svc.MarkAuto(ctx, staff, "ADM001", "")
	require.NoError(t, err)
	assert.Equal(t, SessionMorning, rec.Session)
	assert.Equal(t, "2025-09-20", rec.Date)
	assert.Equal(t, StatusPresent, rec.Status)
	assert.Equal(t, SourceAuto, rec.Source)

	rec, err = svc.MarkAuto(ctx, staff, "ADM002", "evening")
	require.NoError(t, err)
	assert.Equal(t, SessionEvening, rec.Session)

	b, err := ledger.Balance(ctx, staff)
	require.NoError(t, err)
	assert.Equal(t, 0, b.Consumed)

	_, err = svc.MarkAuto(ctx, staff, "ADM404", "")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestMarkAuto_AfternoonIsEvening(t *testing.T) {
	svc := NewService(seededStore(t), credits.NewMemory(3), zerolog.Nop(), WithClock(fixedClock(14)))
	rec, err := svc.MarkAuto(context.Background(), staff, "ADM001", "")
	require.NoError(t, err)
	assert.Equal(t, SessionEvening, rec.Session)
}

func TestClassDashboard_GroupsBySession(t *testing.T) {
	ctx := context.Background()
	svc := newTestService(t, seededStore(t), credits.NewMemory(3))

	_, err := svc.MarkAuto(ctx, staff, "ADM001", "morning")
	require.NoError(t, err)
	_, err = svc.MarkManual(ctx, staff, ManualRequest{
		AdmissionNo: "ADM001", Date: "2025-09-20", Session: "evening", Status: "late",
	})
	require.NoError(t, err)
	_, err = svc.MarkAuto(ctx, staff, "ADM900", "morning")
	require.NoError(t, err)

	d, err := svc.ClassDashboard(ctx, "10-A", "")
	require.NoError(t, err)
	assert.Equal(t, "2025-09-20", d.Date)
	require.Len(t, d.Students, 2)

	assert.Equal(t, "ADM001", d.Students[0].AdmissionNo)
	assert.Equal(t, StatusPresent, d.Students[0].Morning)
	assert.Equal(t, StatusLate, d.Students[0].Evening)
	assert.Equal(t, 1, d.Students[0].ManualCredits)

	assert.Equal(t, StatusNotMarked, d.Students[1].Morning)
	assert.Equal(t, StatusNotMarked, d.Students[1].Evening)
	assert.Equal(t, DashboardTotals{Present: 1, Late: 1, NotMarked: 2}, d.Totals)

	_, err = svc.ClassDashboard(ctx, "10-A", "yesterday")
	assert.ErrorIs(t, err, ErrInvalidInput)
}

func TestClassDashboard_UnknownClass(t *testing.T) {
	svc := newTestService(t, seededStore(t), credits.NewMemory(3))
	_, err := svc.ClassDashboard(context.Background(), "12-Z", "2025-09-20")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestStudentView_NewestFirstAndUpsert(t *testing.T) {
	ctx := context.Background()
	svc := newTestService(t, seededStore(t), credits.NewMemory(5))

	for _, req := range []ManualRequest{
		{AdmissionNo: "ADM001", Date: "2025-09-19", Session: "morning", Status: "Present"},
		{AdmissionNo: "ADM001", Date: "2025-09-20", Session: "morning", Status: "Absent"},
		{AdmissionNo: "ADM001", Date: "2025-09-20", Session: "evening", Status: "Present"},
		{AdmissionNo: "ADM001", Date: "2025-09-20", Session: "morning", Status: "Late"},
	} {
		_, err := svc.MarkManual(ctx, staff, req)
		require.NoError(t, err)
	}

	v, err := svc.StudentView(ctx, "ADM001")
	require.NoError(t, err)
	require.Len(t, v.Records, 3)
	assert.Equal(t, "2025-09-20", v.Records[0].Date)
	assert.Equal(t, SessionEvening, v.Records[0].Session)
	assert.Equal(t, StatusLate, v.Records[1].Status)
	assert.Equal(t, "2025-09-19", v.Records[2].Date)
}

func TestStaffActions_ReportsBalance(t *testing.T) {
	ctx := context.Background()
	svc := newTestService(t, seededStore(t), credits.NewMemory(3))

	_, err := svc.MarkManual(ctx, staff, ManualRequest{
		AdmissionNo: "ADM002", Date: "2025-09-20", Session: "morning", Status: "Absent",
	})
	require.NoError(t, err)

	a, err := svc.StaffActions(ctx, staff, "ADM002")
	require.NoError(t, err)
	assert.Equal(t, "Ravi", a.Student.Name)
	assert.Equal(t, 1, a.CreditsUsed)
	assert.Equal(t, 2, a.RemainingCredits)
	assert.Len(t, a.AttendanceRecords, 1)

	_, err = svc.StaffActions(ctx, staff, "ADM404")
	assert.ErrorIs(t, err, ErrNotFound)
}
