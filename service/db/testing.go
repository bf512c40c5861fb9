package db

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/modules/postgres"
	"github.com/testcontainers/testcontainers-go/wait"
)

// TestStore wraps a Store with test cleanup functionality.
type TestStore struct {
	*Store
	pool *pgxpool.Pool
	DSN  string
}

// NewTestStore returns a migrated Store for tests. It uses TEST_DATABASE_URL
// when set and otherwise starts a throwaway Postgres container. The test is
// skipped in -short mode, when SKIP_DB_TESTS is set, or when no container
// runtime is available.
func NewTestStore(t *testing.T) *TestStore {
	t.Helper()

	if testing.Short() || os.Getenv("SKIP_DB_TESTS") != "" {
		t.Skip("Skipping database test")
	}

	ctx := context.Background()
	dsn := os.Getenv("TEST_DATABASE_URL")
	if dsn == "" {
		dsn = startContainer(t)
	}

	if err := Migrate(ctx, dsn); err != nil {
		t.Fatalf("failed to migrate test database: %v", err)
	}

	pool, err := NewPool(ctx, dsn)
	if err != nil {
		t.Fatalf("failed to connect to test database: %v", err)
	}

	ts := &TestStore{
		Store: NewStore(pool, nil),
		pool:  pool,
		DSN:   dsn,
	}
	t.Cleanup(func() {
		ts.Cleanup(t)
		pool.Close()
	})
	return ts
}

func startContainer(t *testing.T) string {
	t.Helper()
	testcontainers.SkipIfProviderIsNotHealthy(t)

	ctx := context.Background()
	container, err := postgres.Run(ctx, "postgres:15-alpine",
		postgres.WithDatabase("caesarbot_test"),
		postgres.WithUsername("test"),
		postgres.WithPassword("test"),
		testcontainers.WithWaitStrategy(
			wait.ForLog("database system is ready to accept connections").
				WithOccurrence(2).
				WithStartupTimeout(60*time.Second),
		),
	)
	if err != nil {
		t.Fatalf("failed to start postgres container: %v", err)
	}
	t.Cleanup(func() {
		if err := container.Terminate(context.Background()); err != nil {
			t.Logf("failed to terminate container: %v", err)
		}
	})

	dsn, err := container.ConnectionString(ctx, "sslmode=disable")
	if err != nil {
		t.Fatalf("failed to get connection string: %v", err)
	}
	return dsn
}

// Cleanup removes all data from test tables.
func (ts *TestStore) Cleanup(t *testing.T) {
	t.Helper()

	_, err := ts.pool.Exec(context.Background(), "TRUNCATE TABLE user_stats, mission_progress")
	if err != nil {
		t.Fatalf("failed to cleanup test database: %v", err)
	}
}

// MustExec executes a SQL statement and fails the test if it errors.
// Useful for setting up test fixtures.
func (ts *TestStore) MustExec(t *testing.T, query string, args ...any) {
	t.Helper()

	_, err := ts.pool.Exec(context.Background(), query, args...)
	if err != nil {
		t.Fatalf("failed to execute query: %v\nQuery: %s", err, query)
	}
}
