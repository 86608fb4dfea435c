package infra

import (
	"context"
	"testing"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
)

// Harness owns the database a test runs against: a container or a shared
// DSN, plus an isolated, migrated schema.
type Harness struct {
	container *PGContainer
	pool      *pgxpool.Pool
}

// NewHarness provides a migrated database for t, skipping the test when
// none is available. Resources are released through t.Cleanup.
func NewHarness(t *testing.T, maxConns int32) *Harness {
	t.Helper()
	if testing.Short() {
		t.Skip("skipping database test in short mode")
	}

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
	defer cancel()

	if !Available(ctx) {
		t.Skipf("no database: set %s or start Docker", DSNEnv)
	}

	pgC, dsn, shared, err := StartPostgres16(ctx, "")
	if err != nil {
		t.Fatalf("start postgres: %v", err)
	}
	h := &Harness{container: pgC}
	t.Cleanup(func() { _ = h.container.Terminate(context.Background()) })

	pool, teardown, err := ApplyMigrations(ctx, dsn, shared, maxConns)
	if err != nil {
		t.Fatalf("apply migrations: %v", err)
	}
	h.pool = pool
	t.Cleanup(func() {
		pool.Close()
		if err := teardown(context.Background()); err != nil {
			t.Logf("teardown warning: %v", err)
		}
	})

	return h
}

// Pool exposes the configured pgx pool.
func (h *Harness) Pool() *pgxpool.Pool {
	return h.pool
}
