package seed

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"attendance/internal/attendance"
	"attendance/internal/auth"
	"attendance/internal/credits"
	"attendance/internal/users"
)

func newSeeder(t *testing.T) (*Seeder, *users.Directory, *attendance.Service) {
	t.Helper()
	dir := users.NewDirectory(users.NewMemory(), auth.NewPasswordHasher(bcrypt.MinCost))
	svc := attendance.NewService(attendance.NewMemoryStore(), credits.NewMemory(3), zerolog.Nop())
	return NewSeeder(dir, svc, zerolog.Nop()), dir, svc
}

func TestDefaultFixture(t *testing.T) {
	f, err := LoadFixture("")
	require.NoError(t, err)
	assert.Len(t, f.Students, 3)
	assert.Len(t, f.Users, 6)
	for _, u := range f.Users {
		_, err := auth.ParseRole(string(u.Role))
		assert.NoError(t, err, u.Email)
	}
}

func TestApply_Idempotent(t *testing.T) {
	ctx := context.Background()
	s, dir, svc := newSeeder(t)
	f, err := LoadFixture("")
	require.NoError(t, err)

	first, err := s.Apply(ctx, f)
	require.NoError(t, err)
	assert.Equal(t, Result{StudentsCreated: 3, UsersCreated: 6}, first)

	second, err := s.Apply(ctx, f)
	require.NoError(t, err)
	assert.Equal(t, Result{StudentsSkipped: 3, UsersSkipped: 6}, second)

	students, err := svc.ListStudents(ctx)
	require.NoError(t, err)
	assert.Len(t, students, 3)

	u, err := dir.Get(ctx, "Student_User@Test.com")
	require.NoError(t, err)
	assert.Equal(t, auth.RoleStudent, u.Role)
	assert.Equal(t, "ADM001", u.AdmissionNo)
	assert.NotEqual(t, "student_password", u.PasswordHash)
}

func TestApply_CollectsErrors(t *testing.T) {
	s, _, _ := newSeeder(t)
	f := Fixture{
		Students: []attendance.Student{{AdmissionNo: "", Name: "Nobody", ClassName: "10-A"}},
		Users: []users.NewUser{
			{Email: "ok@demo.com", Password: "pw", Role: auth.RoleStaff},
			{Email: "bad@demo.com", Password: "pw", Role: "janitor"},
		},
	}
	res, err := s.Apply(context.Background(), f)
	require.Error(t, err)
	assert.ErrorIs(t, err, attendance.ErrInvalidInput)
	assert.ErrorIs(t, err, auth.ErrUnknownRole)
	assert.Equal(t, 1, res.UsersCreated)
}

func TestLoadFixture_FromFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "seed.yaml")
	require.NoError(t, os.WriteFile(path, []byte("students:\n  - admission_no: X1\n    name: X\n    class: 9-C\n"), 0o600))

	f, err := LoadFixture(path)
	require.NoError(t, err)
	require.Len(t, f.Students, 1)
	assert.Equal(t, "9-C", f.Students[0].ClassName)

	_, err = LoadFixture(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)
}
