package credits

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"
)

var (
	// ErrCreditsExhausted is returned when a consume would exceed the period's total.
	ErrCreditsExhausted = errors.New("credits exhausted")
	// ErrInvalidAmount rejects consumes of less than one credit.
	ErrInvalidAmount = errors.New("credit amount must be positive")
	// ErrInvalidStaff rejects an empty staff id.
	ErrInvalidStaff = errors.New("staff id required")
)

// DefaultPerPeriod is the correction allowance a staff member starts each period with.
const DefaultPerPeriod = 3

// ExhaustedError carries the balance observed when a consume was refused.
type ExhaustedError struct {
	Balance   Balance
	Requested int
}

func (e *ExhaustedError) Error() string {
	return fmt.Sprintf("credits exhausted for %s: %d of %d used, %d requested",
		e.Balance.StaffID, e.Balance.Consumed, e.Balance.Total, e.Requested)
}

func (e *ExhaustedError) Unwrap() error { return ErrCreditsExhausted }

// Balance is a staff member's allowance for the current period.
type Balance struct {
	StaffID  string `json:"staff_id"`
	Total    int    `json:"total"`
	Consumed int    `json:"consumed"`
	Period   int    `json:"period"`
}

// Remaining is always in [0, Total].
func (b Balance) Remaining() int { return b.Total - b.Consumed }

// EntryKind is the kind of an audit log entry.
type EntryKind string

const (
	KindConsume EntryKind = "consume"
	KindRefund  EntryKind = "refund"
	KindReset   EntryKind = "reset"
)

// Entry is one line of a staff member's audit log.
type Entry struct {
	ID        string    `json:"id"`
	StaffID   string    `json:"staff_id"`
	Kind      EntryKind `json:"kind"`
	Amount    int       `json:"amount"`
	Reference string    `json:"reference,omitempty"`
	Period    int       `json:"period"`
	At        time.Time `json:"at"`
}

// Receipt proves a successful consume and is the only handle for compensating it.
type Receipt struct {
	EntryID   string
	StaffID   string
	Amount    int
	Period    int
	Consumed  int
	Remaining int
}

// Ledger tracks per-staff correction credits. Implementations serialize operations per staff
// id; operations on different staff ids do not contend.
type Ledger interface {
	Consume(ctx context.Context, staffID string, amount int, reference string) (Receipt, error)
	// Refund reverses a receipt at most once, and only while its period is current.
	Refund(ctx context.Context, r Receipt) error
	// Reset starts a new period with nothing consumed.
	Reset(ctx context.Context, staffID string) (Balance, error)
	Balance(ctx context.Context, staffID string) (Balance, error)
	History(ctx context.Context, staffID string) ([]Entry, error)
}

func checkConsume(staffID string, amount int) error {
	if strings.TrimSpace(staffID) == "" {
		return ErrInvalidStaff
	}
	if amount < 1 {
		return ErrInvalidAmount
	}
	return nil
}

func perPeriodOrDefault(n int) int {
	if n <= 0 {
		return DefaultPerPeriod
	}
	return n
}
