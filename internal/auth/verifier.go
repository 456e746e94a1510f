package auth

import (
	"context"
	"errors"
	"fmt"
	"strings"
)

// Account is what the verifier needs to know about a stored user.
type Account struct {
	Email        string
	PasswordHash string
	Name         string
	Role         Role
	AdmissionNo  string
}

// AccountLookup finds accounts by normalized identifier. Unknown identifiers return ErrAccountNotFound.
type AccountLookup interface {
	LookupAccount(ctx context.Context, identifier string) (Account, error)
}

// NormalizeIdentifier lower-cases and trims an email-like identifier.
func NormalizeIdentifier(identifier string) string {
	return strings.ToLower(strings.TrimSpace(identifier))
}

// CredentialVerifier checks identifier/secret pairs without revealing which part was wrong.
type CredentialVerifier struct {
	accounts  AccountLookup
	hasher    PasswordHasher
	dummyHash string
}

// NewCredentialVerifier precomputes a dummy hash at the hasher's cost so that lookups for
// unknown identifiers spend the same time in bcrypt as real comparisons.
func NewCredentialVerifier(accounts AccountLookup, hasher PasswordHasher) (*CredentialVerifier, error) {
	dummy, err := hasher.Hash("attendance-credential-placeholder")
	if err != nil {
		return nil, fmt.Errorf("prepare credential verifier: %w", err)
	}
	return &CredentialVerifier{accounts: accounts, hasher: hasher, dummyHash: dummy}, nil
}

// Verify returns the identity for a valid pair and ErrInvalidCredentials otherwise.
// Store faults are returned wrapped, never as ErrInvalidCredentials.
func (v *CredentialVerifier) Verify(ctx context.Context, identifier, secret string) (Identity, error) {
	id := NormalizeIdentifier(identifier)
	if id == "" {
		v.hasher.Compare(v.dummyHash, secret)
		return Identity{}, ErrInvalidCredentials
	}

	acct, err := v.accounts.LookupAccount(ctx, id)
	if err != nil {
		if errors.Is(err, ErrAccountNotFound) {
			v.hasher.Compare(v.dummyHash, secret)
			return Identity{}, ErrInvalidCredentials
		}
		return Identity{}, fmt.Errorf("lookup account: %w", err)
	}

	if !v.hasher.Compare(acct.PasswordHash, secret) {
		return Identity{}, ErrInvalidCredentials
	}
	if !acct.Role.Valid() {
		return Identity{}, fmt.Errorf("account %s: %w", id, ErrUnknownRole)
	}

	return Identity{
		Subject:     acct.Email,
		Role:        acct.Role,
		AdmissionNo: acct.AdmissionNo,
		Name:        acct.Name,
	}, nil
}
