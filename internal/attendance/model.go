package attendance

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

var (
	ErrNotFound      = errors.New("not found")
	ErrInvalidInput  = errors.New("invalid input")
	ErrAlreadyExists = errors.New("already exists")
)

// DateLayout is the calendar-date format used for records and dashboards.
const DateLayout = "2006-01-02"

// Session is the half of the school day a record belongs to.
type Session string

const (
	SessionMorning Session = "morning"
	SessionEvening Session = "evening"
)

// ParseSession accepts morning or evening, case-insensitively.
func ParseSession(s string) (Session, error) {
	switch Session(strings.ToLower(strings.TrimSpace(s))) {
	case SessionMorning:
		return SessionMorning, nil
	case SessionEvening:
		return SessionEvening, nil
	}
	return "", fmt.Errorf("%w: session must be morning or evening", ErrInvalidInput)
}

// SessionAt picks the session a clock reading falls into: before noon is morning.
func SessionAt(t time.Time) Session {
	if t.Hour() < 12 {
		return SessionMorning
	}
	return SessionEvening
}

// Status is a recorded attendance outcome.
type Status string

const (
	StatusPresent Status = "Present"
	StatusAbsent  Status = "Absent"
	StatusLate    Status = "Late"
	// StatusNotMarked only appears in dashboards; it is never stored.
	StatusNotMarked Status = "Not Marked"
)

// ParseStatus accepts Present, Absent or Late in any case.
func ParseStatus(s string) (Status, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "present":
		return StatusPresent, nil
	case "absent":
		return StatusAbsent, nil
	case "late":
		return StatusLate, nil
	}
	return "", fmt.Errorf("%w: status must be Present, Absent or Late", ErrInvalidInput)
}

// Source tells automatic marks from staff corrections.
type Source string

const (
	SourceAuto   Source = "auto"
	SourceManual Source = "manual"
)

// Student is a directory entry.
type Student struct {
	AdmissionNo string `json:"admission_no" yaml:"admission_no"`
	Name        string `json:"name" yaml:"name"`
	ClassName   string `json:"class" yaml:"class"`
}

// Record is the attendance of one student for one session of one day.
type Record struct {
	ID          string    `json:"id"`
	AdmissionNo string    `json:"admission_no"`
	Date        string    `json:"date"`
	Session     Session   `json:"session"`
	Status      Status    `json:"status"`
	Source      Source    `json:"source"`
	MarkedBy    string    `json:"marked_by"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

// Reference identifies the slot a record occupies; used as the ledger reference.
func (r Record) Reference() string {
	return r.AdmissionNo + "/" + r.Date + "/" + string(r.Session)
}

func parseDate(s string) (string, error) {
	t, err := time.Parse(DateLayout, strings.TrimSpace(s))
	if err != nil {
		return "", fmt.Errorf("%w: date must be YYYY-MM-DD", ErrInvalidInput)
	}
	return t.Format(DateLayout), nil
}
