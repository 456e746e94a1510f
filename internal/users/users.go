package users

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"attendance/internal/auth"
)

var (
	ErrNotFound      = errors.New("user not found")
	ErrAlreadyExists = errors.New("user already exists")
)

// User is an account. Role is fixed at creation.
type User struct {
	ID           string    `json:"id"`
	Email        string    `json:"email"`
	PasswordHash string    `json:"-"`
	Name         string    `json:"name"`
	Role         auth.Role `json:"user_type"`
	AdmissionNo  string    `json:"admission_no,omitempty"`
	CreatedAt    time.Time `json:"created_at"`
}

// Repository persists users. Emails are stored normalized.
type Repository interface {
	FindByEmail(ctx context.Context, email string) (User, error)
	Create(ctx context.Context, u User) (User, error)
	List(ctx context.Context) ([]User, error)
}

// NewUser describes an account to register; Password is plaintext and only hashed.
type NewUser struct {
	Email       string    `yaml:"email"`
	Password    string    `yaml:"password"`
	Name        string    `yaml:"name"`
	Role        auth.Role `yaml:"role"`
	AdmissionNo string    `yaml:"admission_no"`
}

// Directory adapts a Repository to the credential verifier and handles registration.
type Directory struct {
	repo   Repository
	hasher auth.PasswordHasher
}

// NewDirectory creates a directory over repo.
func NewDirectory(repo Repository, hasher auth.PasswordHasher) *Directory {
	return &Directory{repo: repo, hasher: hasher}
}

// LookupAccount implements auth.AccountLookup.
func (d *Directory) LookupAccount(ctx context.Context, identifier string) (auth.Account, error) {
	u, err := d.repo.FindByEmail(ctx, auth.NormalizeIdentifier(identifier))
	if errors.Is(err, ErrNotFound) {
		return auth.Account{}, auth.ErrAccountNotFound
	}
	if err != nil {
		return auth.Account{}, err
	}
	return auth.Account{
		Email:        u.Email,
		PasswordHash: u.PasswordHash,
		Name:         u.Name,
		Role:         u.Role,
		AdmissionNo:  u.AdmissionNo,
	}, nil
}

// Register validates and hashes n, then creates the user.
func (d *Directory) Register(ctx context.Context, n NewUser) (User, error) {
	email := auth.NormalizeIdentifier(n.Email)
	if email == "" || !strings.Contains(email, "@") {
		return User{}, fmt.Errorf("register %q: invalid email", n.Email)
	}
	if n.Password == "" {
		return User{}, fmt.Errorf("register %s: empty password", email)
	}
	role, err := auth.ParseRole(string(n.Role))
	if err != nil {
		return User{}, fmt.Errorf("register %s: %w", email, err)
	}
	if role == auth.RoleStudent && strings.TrimSpace(n.AdmissionNo) == "" {
		return User{}, fmt.Errorf("register %s: student needs an admission number", email)
	}
	hash, err := d.hasher.Hash(n.Password)
	if err != nil {
		return User{}, fmt.Errorf("register %s: hash password: %w", email, err)
	}
	u := User{
		ID:           uuid.NewString(),
		Email:        email,
		PasswordHash: hash,
		Name:         strings.TrimSpace(n.Name),
		Role:         role,
		CreatedAt:    time.Now().UTC(),
	}
	if role == auth.RoleStudent {
		u.AdmissionNo = strings.TrimSpace(n.AdmissionNo)
	}
	return d.repo.Create(ctx, u)
}

// Get returns the user with email.
func (d *Directory) Get(ctx context.Context, email string) (User, error) {
	return d.repo.FindByEmail(ctx, auth.NormalizeIdentifier(email))
}
