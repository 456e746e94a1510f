package seed

import (
	"context"
	_ "embed"
	"errors"
	"fmt"
	"os"

	"github.com/rs/zerolog"
	"gopkg.in/yaml.v3"

	"attendance/internal/attendance"
	"attendance/internal/users"
)

//go:embed fixture.yaml
var defaultFixture []byte

// Fixture is the seed document.
type Fixture struct {
	Students []attendance.Student `yaml:"students"`
	Users    []users.NewUser      `yaml:"users"`
}

// LoadFixture reads path, or the embedded demo fixture when path is empty.
func LoadFixture(path string) (Fixture, error) {
	raw := defaultFixture
	if path != "" {
		b, err := os.ReadFile(path)
		if err != nil {
			return Fixture{}, fmt.Errorf("read seed file: %w", err)
		}
		raw = b
	}
	return ParseFixture(raw)
}

// ParseFixture decodes a YAML fixture.
func ParseFixture(raw []byte) (Fixture, error) {
	var f Fixture
	if err := yaml.Unmarshal(raw, &f); err != nil {
		return Fixture{}, fmt.Errorf("parse seed file: %w", err)
	}
	return f, nil
}

// Result counts what Apply created and skipped.
type Result struct {
	StudentsCreated int `json:"students_created"`
	StudentsSkipped int `json:"students_skipped"`
	UsersCreated    int `json:"users_created"`
	UsersSkipped    int `json:"users_skipped"`
}

// Seeder writes fixtures through the domain services so validation and hashing apply.
type Seeder struct {
	users    *users.Directory
	students *attendance.Service
	log      zerolog.Logger
}

// NewSeeder creates a seeder writing through dir and svc.
func NewSeeder(dir *users.Directory, svc *attendance.Service, logger zerolog.Logger) *Seeder {
	return &Seeder{users: dir, students: svc, log: logger}
}

// Apply is idempotent: entries that already exist are skipped. Other failures are
// collected and returned together after every entry was attempted.
func (s *Seeder) Apply(ctx context.Context, f Fixture) (Result, error) {
	var res Result
	var errs []error

	for _, st := range f.Students {
		err := s.students.AddStudent(ctx, st)
		switch {
		case err == nil:
			res.StudentsCreated++
		case errors.Is(err, attendance.ErrAlreadyExists):
			res.StudentsSkipped++
		default:
			errs = append(errs, fmt.Errorf("student %s: %w", st.AdmissionNo, err))
		}
	}

	for _, u := range f.Users {
		_, err := s.users.Register(ctx, u)
		switch {
		case err == nil:
			res.UsersCreated++
		case errors.Is(err, users.ErrAlreadyExists):
			res.UsersSkipped++
		default:
			errs = append(errs, fmt.Errorf("user %s: %w", u.Email, err))
		}
	}

	s.log.Info().
		Int("students_created", res.StudentsCreated).
		Int("students_skipped", res.StudentsSkipped).
		Int("users_created", res.UsersCreated).
		Int("users_skipped", res.UsersSkipped).
		Msg("seed applied")
	return res, errors.Join(errs...)
}
