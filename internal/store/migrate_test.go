package store

import (
	"context"
	"io/fs"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEmbeddedMigrationsArePaired(t *testing.T) {
	names, err := fs.Glob(migrationFS, "migrations/*.sql")
	require.NoError(t, err)
	require.NotEmpty(t, names)

	ups, downs := map[string]bool{}, map[string]bool{}
	for _, n := range names {
		base := strings.TrimPrefix(n, "migrations/")
		switch {
		case strings.HasSuffix(base, ".up.sql"):
			ups[strings.TrimSuffix(base, ".up.sql")] = true
		case strings.HasSuffix(base, ".down.sql"):
			downs[strings.TrimSuffix(base, ".down.sql")] = true
		default:
			t.Errorf("unexpected migration file %s", n)
		}
	}
	assert.Equal(t, ups, downs)
}

func TestInitMigrationCreatesLedgerConstraint(t *testing.T) {
	b, err := migrationFS.ReadFile("migrations/000001_init.up.sql")
	require.NoError(t, err)
	sql := string(b)
	assert.Contains(t, sql, "consumed >= 0 AND consumed <= total")
	assert.Contains(t, sql, "UNIQUE (admission_no, date, session)")
}

func TestMigrateDownRejectsNonPositiveSteps(t *testing.T) {
	assert.Error(t, MigrateDown("postgres://unused", 0))
}

func TestNilHandlesAreUnhealthy(t *testing.T) {
	var db *DB
	var rdb *Redis
	assert.False(t, db.Healthy(context.Background()))
	assert.False(t, rdb.Healthy(context.Background()))
	assert.NoError(t, db.Close())
}
