package credits

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
)

// Memory keeps ledgers in process. Each staff account has its own lock; the map of accounts
// has another. Suitable for dev, tests and single-instance deployments.
type Memory struct {
	perPeriod int
	now       func() time.Time

	mu       sync.Mutex
	accounts map[string]*account
}

type account struct {
	mu       sync.Mutex
	balance  Balance
	log      []Entry
	receipts map[string]int // consume entry id -> amount, current period only
}

// NewMemory returns an empty in-memory ledger granting perPeriod credits per period.
func NewMemory(perPeriod int) *Memory {
	return &Memory{
		perPeriod: perPeriodOrDefault(perPeriod),
		now:       time.Now,
		accounts:  make(map[string]*account),
	}
}

func (m *Memory) account(staffID string) *account {
	m.mu.Lock()
	defer m.mu.Unlock()
	a, ok := m.accounts[staffID]
	if !ok {
		a = &account{
			balance:  Balance{StaffID: staffID, Total: m.perPeriod},
			receipts: make(map[string]int),
		}
		m.accounts[staffID] = a
	}
	return a
}

func (m *Memory) append(a *account, kind EntryKind, amount int, ref string) Entry {
	e := Entry{
		ID:        uuid.NewString(),
		StaffID:   a.balance.StaffID,
		Kind:      kind,
		Amount:    amount,
		Reference: ref,
		Period:    a.balance.Period,
		At:        m.now().UTC(),
	}
	a.log = append(a.log, e)
	return e
}

// Consume spends amount credits under the account lock.
func (m *Memory) Consume(ctx context.Context, staffID string, amount int, reference string) (Receipt, error) {
	if err := checkConsume(staffID, amount); err != nil {
		return Receipt{}, err
	}
	if err := ctx.Err(); err != nil {
		return Receipt{}, err
	}
	a := m.account(staffID)
	a.mu.Lock()
	defer a.mu.Unlock()

	if a.balance.Consumed+amount > a.balance.Total {
		return Receipt{}, &ExhaustedError{Balance: a.balance, Requested: amount}
	}
	a.balance.Consumed += amount
	e := m.append(a, KindConsume, amount, reference)
	a.receipts[e.ID] = amount

	return Receipt{
		EntryID:   e.ID,
		StaffID:   staffID,
		Amount:    amount,
		Period:    a.balance.Period,
		Consumed:  a.balance.Consumed,
		Remaining: a.balance.Remaining(),
	}, nil
}

// Refund returns a receipt's credits once, within its period.
func (m *Memory) Refund(ctx context.Context, r Receipt) error {
	if err := checkConsume(r.StaffID, r.Amount); err != nil {
		return err
	}
	a := m.account(r.StaffID)
	a.mu.Lock()
	defer a.mu.Unlock()

	if a.balance.Period != r.Period {
		return nil
	}
	amount, ok := a.receipts[r.EntryID]
	if !ok {
		return nil
	}
	delete(a.receipts, r.EntryID)
	a.balance.Consumed -= amount
	m.append(a, KindRefund, amount, r.EntryID)
	return nil
}

// Reset starts a new period.
func (m *Memory) Reset(ctx context.Context, staffID string) (Balance, error) {
	if err := checkConsume(staffID, 1); err != nil {
		return Balance{}, err
	}
	a := m.account(staffID)
	a.mu.Lock()
	defer a.mu.Unlock()

	a.balance.Consumed = 0
	a.balance.Total = m.perPeriod
	a.balance.Period++
	a.receipts = make(map[string]int)
	m.append(a, KindReset, 0, "")
	return a.balance, nil
}

// Balance returns the current period's balance.
func (m *Memory) Balance(ctx context.Context, staffID string) (Balance, error) {
	if err := checkConsume(staffID, 1); err != nil {
		return Balance{}, err
	}
	a := m.account(staffID)
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.balance, nil
}

// History returns a copy of the audit log.
func (m *Memory) History(ctx context.Context, staffID string) ([]Entry, error) {
	if err := checkConsume(staffID, 1); err != nil {
		return nil, err
	}
	a := m.account(staffID)
	a.mu.Lock()
	defer a.mu.Unlock()
	out := make([]Entry, len(a.log))
	copy(out, a.log)
	return out, nil
}
