package users

import (
	"context"
	"sort"
	"sync"
)

// Memory is an in-process repository for dev and tests.
type Memory struct {
	mu    sync.RWMutex
	users map[string]User
}

// NewMemory returns an empty repository.
func NewMemory() *Memory {
	return &Memory{users: make(map[string]User)}
}

// FindByEmail returns ErrNotFound for unknown emails.
func (m *Memory) FindByEmail(ctx context.Context, email string) (User, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	u, ok := m.users[email]
	if !ok {
		return User{}, ErrNotFound
	}
	return u, nil
}

// Create stores u; an existing email returns ErrAlreadyExists.
func (m *Memory) Create(ctx context.Context, u User) (User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.users[u.Email]; ok {
		return User{}, ErrAlreadyExists
	}
	m.users[u.Email] = u
	return u, nil
}

// List returns users ordered by email.
func (m *Memory) List(ctx context.Context) ([]User, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]User, 0, len(m.users))
	for _, u := range m.users {
		out = append(out, u)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Email < out[j].Email })
	return out, nil
}
