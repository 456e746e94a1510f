package attendance

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
)

// Store persists students and records. UpsertRecord keeps one record per
// (admission_no, date, session); a later write replaces status, source and marker.
type Store interface {
	GetStudent(ctx context.Context, admissionNo string) (Student, error)
	CreateStudent(ctx context.Context, s Student) error
	ListStudents(ctx context.Context) ([]Student, error)
	ClassStudents(ctx context.Context, className string) ([]Student, error)
	UpsertRecord(ctx context.Context, r Record) (Record, error)
	// StudentRecords returns newest first.
	StudentRecords(ctx context.Context, admissionNo string) ([]Record, error)
	ClassRecords(ctx context.Context, className, date string) ([]Record, error)
}

type slot struct {
	adm, date string
	session   Session
}

// MemoryStore is an in-process Store for dev and tests.
type MemoryStore struct {
	mu       sync.RWMutex
	students map[string]Student
	records  map[slot]Record
}

// NewMemoryStore returns an empty store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		students: make(map[string]Student),
		records:  make(map[slot]Record),
	}
}

// GetStudent returns ErrNotFound for unknown admission numbers.
func (m *MemoryStore) GetStudent(ctx context.Context, admissionNo string) (Student, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	s, ok := m.students[admissionNo]
	if !ok {
		return Student{}, ErrNotFound
	}
	return s, nil
}

// CreateStudent adds a student; duplicates return ErrAlreadyExists.
func (m *MemoryStore) CreateStudent(ctx context.Context, s Student) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.students[s.AdmissionNo]; ok {
		return ErrAlreadyExists
	}
	m.students[s.AdmissionNo] = s
	return nil
}

// ListStudents returns every student ordered by admission number.
func (m *MemoryStore) ListStudents(ctx context.Context) ([]Student, error) {
	return m.filterStudents(func(Student) bool { return true }), nil
}

// ClassStudents returns the students of one class.
func (m *MemoryStore) ClassStudents(ctx context.Context, className string) ([]Student, error) {
	return m.filterStudents(func(s Student) bool { return s.ClassName == className }), nil
}

func (m *MemoryStore) filterStudents(keep func(Student) bool) []Student {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := []Student{}
	for _, s := range m.students {
		if keep(s) {
			out = append(out, s)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].AdmissionNo < out[j].AdmissionNo })
	return out
}

// UpsertRecord writes the record for its slot, keeping the slot's id and creation time.
func (m *MemoryStore) UpsertRecord(ctx context.Context, r Record) (Record, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	now := time.Now().UTC()
	k := slot{r.AdmissionNo, r.Date, r.Session}
	if prev, ok := m.records[k]; ok {
		r.ID = prev.ID
		r.CreatedAt = prev.CreatedAt
	} else {
		if r.ID == "" {
			r.ID = uuid.NewString()
		}
		r.CreatedAt = now
	}
	r.UpdatedAt = now
	m.records[k] = r
	return r, nil
}

// StudentRecords returns the student's records, newest first.
func (m *MemoryStore) StudentRecords(ctx context.Context, admissionNo string) ([]Record, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := []Record{}
	for k, r := range m.records {
		if k.adm == admissionNo {
			out = append(out, r)
		}
	}
	sortNewestFirst(out)
	return out, nil
}

// ClassRecords returns every record of a class on date.
func (m *MemoryStore) ClassRecords(ctx context.Context, className, date string) ([]Record, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := []Record{}
	for k, r := range m.records {
		if k.date != date {
			continue
		}
		if s, ok := m.students[k.adm]; ok && s.ClassName == className {
			out = append(out, r)
		}
	}
	sortNewestFirst(out)
	return out, nil
}

func sortNewestFirst(rs []Record) {
	sort.Slice(rs, func(i, j int) bool {
		if rs[i].Date != rs[j].Date {
			return rs[i].Date > rs[j].Date
		}
		return rs[i].Session == SessionEvening && rs[j].Session == SessionMorning
	})
}
