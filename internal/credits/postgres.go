package credits

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// Postgres stores ledgers in credit_ledgers and the audit log in credit_entries.
// The check-and-increment is one conditional UPDATE, so concurrent consumers on the same
// row are serialized by the row lock.
type Postgres struct {
	db        *sql.DB
	perPeriod int
}

// NewPostgres creates a ledger on an open database. Tables come from the store migrations.
func NewPostgres(db *sql.DB, perPeriod int) *Postgres {
	return &Postgres{db: db, perPeriod: perPeriodOrDefault(perPeriod)}
}

type execer interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
}

func (p *Postgres) ensure(ctx context.Context, q execer, staffID string) error {
	_, err := q.ExecContext(ctx, `
		INSERT INTO credit_ledgers (staff_id, total)
		VALUES ($1, $2)
		ON CONFLICT (staff_id) DO NOTHING
	`, staffID, p.perPeriod)
	return err
}

func insertEntry(ctx context.Context, q execer, e Entry) error {
	_, err := q.ExecContext(ctx, `
		INSERT INTO credit_entries (id, staff_id, kind, amount, reference, period, created_at)
		VALUES ($1,$2,$3,$4,$5,$6,$7)
	`, e.ID, e.StaffID, string(e.Kind), e.Amount, e.Reference, e.Period, e.At)
	return err
}

// Consume increments consumed only while it stays within total.
func (p *Postgres) Consume(ctx context.Context, staffID string, amount int, reference string) (Receipt, error) {
	if err := checkConsume(staffID, amount); err != nil {
		return Receipt{}, err
	}
	tx, err := p.db.BeginTx(ctx, nil)
	if err != nil {
		return Receipt{}, fmt.Errorf("begin consume: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	if err := p.ensure(ctx, tx, staffID); err != nil {
		return Receipt{}, fmt.Errorf("ensure ledger: %w", err)
	}

	var b Balance
	b.StaffID = staffID
	err = tx.QueryRowContext(ctx, `
		UPDATE credit_ledgers
		SET consumed = consumed + $2, updated_at = NOW()
		WHERE staff_id = $1 AND consumed + $2 <= total
		RETURNING total, consumed, period
	`, staffID, amount).Scan(&b.Total, &b.Consumed, &b.Period)
	if errors.Is(err, sql.ErrNoRows) {
		cur, berr := scanBalance(tx.QueryRowContext(ctx,
			`SELECT staff_id, total, consumed, period FROM credit_ledgers WHERE staff_id = $1`, staffID))
		if berr != nil {
			return Receipt{}, fmt.Errorf("read ledger: %w", berr)
		}
		return Receipt{}, &ExhaustedError{Balance: cur, Requested: amount}
	}
	if err != nil {
		return Receipt{}, fmt.Errorf("consume credits: %w", err)
	}

	e := Entry{
		ID:        uuid.NewString(),
		StaffID:   staffID,
		Kind:      KindConsume,
		Amount:    amount,
		Reference: reference,
		Period:    b.Period,
		At:        time.Now().UTC(),
	}
	if err := insertEntry(ctx, tx, e); err != nil {
		return Receipt{}, fmt.Errorf("record consume: %w", err)
	}
	if err := tx.Commit(); err != nil {
		return Receipt{}, fmt.Errorf("commit consume: %w", err)
	}
	return Receipt{
		EntryID:   e.ID,
		StaffID:   staffID,
		Amount:    amount,
		Period:    b.Period,
		Consumed:  b.Consumed,
		Remaining: b.Remaining(),
	}, nil
}

// Refund marks the consume entry refunded and gives its credits back.
func (p *Postgres) Refund(ctx context.Context, r Receipt) error {
	if err := checkConsume(r.StaffID, r.Amount); err != nil {
		return err
	}
	tx, err := p.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin refund: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	var period int
	err = tx.QueryRowContext(ctx,
		`SELECT period FROM credit_ledgers WHERE staff_id = $1 FOR UPDATE`, r.StaffID).Scan(&period)
	if errors.Is(err, sql.ErrNoRows) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("lock ledger: %w", err)
	}
	if period != r.Period {
		return nil
	}

	var amount int
	err = tx.QueryRowContext(ctx, `
		UPDATE credit_entries SET refunded = TRUE
		WHERE id = $1 AND staff_id = $2 AND kind = 'consume' AND period = $3 AND refunded = FALSE
		RETURNING amount
	`, r.EntryID, r.StaffID, r.Period).Scan(&amount)
	if errors.Is(err, sql.ErrNoRows) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("mark refunded: %w", err)
	}

	if _, err := tx.ExecContext(ctx, `
		UPDATE credit_ledgers SET consumed = GREATEST(consumed - $2, 0), updated_at = NOW()
		WHERE staff_id = $1
	`, r.StaffID, amount); err != nil {
		return fmt.Errorf("refund credits: %w", err)
	}
	if err := insertEntry(ctx, tx, Entry{
		ID:        uuid.NewString(),
		StaffID:   r.StaffID,
		Kind:      KindRefund,
		Amount:    amount,
		Reference: r.EntryID,
		Period:    period,
		At:        time.Now().UTC(),
	}); err != nil {
		return fmt.Errorf("record refund: %w", err)
	}
	return tx.Commit()
}

// Reset starts a new period.
func (p *Postgres) Reset(ctx context.Context, staffID string) (Balance, error) {
	if err := checkConsume(staffID, 1); err != nil {
		return Balance{}, err
	}
	tx, err := p.db.BeginTx(ctx, nil)
	if err != nil {
		return Balance{}, fmt.Errorf("begin reset: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	if err := p.ensure(ctx, tx, staffID); err != nil {
		return Balance{}, fmt.Errorf("ensure ledger: %w", err)
	}
	b, err := scanBalance(tx.QueryRowContext(ctx, `
		UPDATE credit_ledgers
		SET consumed = 0, total = $2, period = period + 1, updated_at = NOW()
		WHERE staff_id = $1
		RETURNING staff_id, total, consumed, period
	`, staffID, p.perPeriod))
	if err != nil {
		return Balance{}, fmt.Errorf("reset ledger: %w", err)
	}
	if err := insertEntry(ctx, tx, Entry{
		ID:      uuid.NewString(),
		StaffID: staffID,
		Kind:    KindReset,
		Period:  b.Period,
		At:      time.Now().UTC(),
	}); err != nil {
		return Balance{}, fmt.Errorf("record reset: %w", err)
	}
	if err := tx.Commit(); err != nil {
		return Balance{}, fmt.Errorf("commit reset: %w", err)
	}
	return b, nil
}

// Balance returns the current balance, creating the ledger if needed.
func (p *Postgres) Balance(ctx context.Context, staffID string) (Balance, error) {
	if err := checkConsume(staffID, 1); err != nil {
		return Balance{}, err
	}
	if err := p.ensure(ctx, p.db, staffID); err != nil {
		return Balance{}, fmt.Errorf("ensure ledger: %w", err)
	}
	return scanBalance(p.db.QueryRowContext(ctx,
		`SELECT staff_id, total, consumed, period FROM credit_ledgers WHERE staff_id = $1`, staffID))
}

// History returns the audit log oldest first.
func (p *Postgres) History(ctx context.Context, staffID string) ([]Entry, error) {
	rows, err := p.db.QueryContext(ctx, `
		SELECT id, staff_id, kind, amount, reference, period, created_at
		FROM credit_entries
		WHERE staff_id = $1
		ORDER BY created_at, id
	`, staffID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var res []Entry
	for rows.Next() {
		var e Entry
		var kind string
		if err := rows.Scan(&e.ID, &e.StaffID, &kind, &e.Amount, &e.Reference, &e.Period, &e.At); err != nil {
			return nil, err
		}
		e.Kind = EntryKind(kind)
		res = append(res, e)
	}
	return res, rows.Err()
}

func scanBalance(row *sql.Row) (Balance, error) {
	var b Balance
	if err := row.Scan(&b.StaffID, &b.Total, &b.Consumed, &b.Period); err != nil {
		return Balance{}, err
	}
	return b, nil
}
