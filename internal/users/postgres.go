package users

import (
	"context"
	"database/sql"
	"errors"

	"github.com/jackc/pgx/v5/pgconn"

	"attendance/internal/auth"
)

// Postgres persists users in the users table.
type Postgres struct {
	db *sql.DB
}

// NewPostgres creates a repository on an open database.
func NewPostgres(db *sql.DB) *Postgres {
	return &Postgres{db: db}
}

const userColumns = `id, email, password_hash, name, role, COALESCE(admission_no, ''), created_at`

// FindByEmail returns ErrNotFound for unknown emails.
func (p *Postgres) FindByEmail(ctx context.Context, email string) (User, error) {
	row := p.db.QueryRowContext(ctx, `SELECT `+userColumns+` FROM users WHERE email = $1`, email)
	u, err := scanUser(row)
	if errors.Is(err, sql.ErrNoRows) {
		return User{}, ErrNotFound
	}
	return u, err
}

// Create inserts u; a unique violation returns ErrAlreadyExists.
func (p *Postgres) Create(ctx context.Context, u User) (User, error) {
	var adm any
	if u.AdmissionNo != "" {
		adm = u.AdmissionNo
	}
	row := p.db.QueryRowContext(ctx, `
		INSERT INTO users (id, email, password_hash, name, role, admission_no)
		VALUES ($1,$2,$3,$4,$5,$6)
		RETURNING created_at
	`, u.ID, u.Email, u.PasswordHash, u.Name, string(u.Role), adm)
	if err := row.Scan(&u.CreatedAt); err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23505" {
			return User{}, ErrAlreadyExists
		}
		return User{}, err
	}
	return u, nil
}

// List returns users ordered by email.
func (p *Postgres) List(ctx context.Context) ([]User, error) {
	rows, err := p.db.QueryContext(ctx, `SELECT `+userColumns+` FROM users ORDER BY email`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var res []User
	for rows.Next() {
		u, err := scanUser(rows)
		if err != nil {
			return nil, err
		}
		res = append(res, u)
	}
	return res, rows.Err()
}

type scanner interface {
	Scan(dest ...any) error
}

func scanUser(s scanner) (User, error) {
	var u User
	var role string
	if err := s.Scan(&u.ID, &u.Email, &u.PasswordHash, &u.Name, &role, &u.AdmissionNo, &u.CreatedAt); err != nil {
		return User{}, err
	}
	r, err := auth.ParseRole(role)
	if err != nil {
		return User{}, err
	}
	u.Role = r
	return u, nil
}
