package credits

import (
	"context"
	"os"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"attendance/internal/store"
)

// newPostgresLedger migrates DATABASE_URL and empties the credit tables.
func newPostgresLedger(t *testing.T, perPeriod int) Ledger {
	t.Helper()
	dsn := os.Getenv("DATABASE_URL")
	if dsn == "" {
		t.Skip("DATABASE_URL not set")
	}
	require.NoError(t, store.MigrateUp(dsn))
	db, err := store.NewDB(context.Background(), dsn)
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })

	_, err = db.Client.Exec(`TRUNCATE credit_entries, credit_ledgers`)
	require.NoError(t, err)
	return NewPostgres(db.Client, perPeriod)
}

func TestPostgres_ConditionalUpdateSerializesConsumers(t *testing.T) {
	l := newPostgresLedger(t, 2)
	ctx := context.Background()

	var (
		wg        sync.WaitGroup
		mu        sync.Mutex
		ok        int
		exhausted int
	)
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := l.Consume(ctx, "pg-staff", 1, "ref")
			mu.Lock()
			defer mu.Unlock()
			switch {
			case err == nil:
				ok++
			case assert.ErrorIs(t, err, ErrCreditsExhausted):
				exhausted++
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, 2, ok)
	assert.Equal(t, 8, exhausted)

	b, err := l.Balance(ctx, "pg-staff")
	require.NoError(t, err)
	assert.Equal(t, 2, b.Consumed)

	h, err := l.History(ctx, "pg-staff")
	require.NoError(t, err)
	assert.Len(t, h, 2)
}
