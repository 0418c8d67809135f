package pgxstore_test

import (
	"context"
	"os"
	"testing"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/surrealdb/tenantnote/pkg/store"
	"github.com/surrealdb/tenantnote/pkg/store/pgxstore"
	"github.com/surrealdb/tenantnote/pkg/store/storetest"
)

// testSchema keeps these tables apart from the GORM backend's tests, which
// may run in parallel against the same database.
const testSchema = "tenantnote_pgx_test"

func setupTestStore(t *testing.T) store.Store {
	t.Helper()

	dbURL := os.Getenv("TENANTNOTE_TEST_POSTGRES_DSN")
	if dbURL == "" {
		t.Skip("TENANTNOTE_TEST_POSTGRES_DSN not set")
	}
	ctx := context.Background()

	admin, err := pgxpool.New(ctx, dbURL)
	if err != nil {
		t.Skipf("Failed to connect to test database: %v", err)
	}
	defer admin.Close()
	if err := admin.Ping(ctx); err != nil {
		t.Skipf("Failed to ping test database: %v", err)
	}
	if _, err := admin.Exec(ctx, "CREATE SCHEMA IF NOT EXISTS "+testSchema); err != nil {
		t.Fatalf("Failed to create schema: %v", err)
	}

	config, err := pgxpool.ParseConfig(dbURL)
	if err != nil {
		t.Fatalf("Failed to parse database URL: %v", err)
	}
	config.ConnConfig.RuntimeParams["search_path"] = testSchema
	pool, err := pgxpool.NewWithConfig(ctx, config)
	if err != nil {
		t.Fatalf("Failed to create pool: %v", err)
	}

	s := pgxstore.NewFromPool(pool)
	t.Cleanup(func() { _ = s.Close() })

	if err := s.Migrate(ctx); err != nil {
		t.Fatalf("Failed to create tables: %v", err)
	}
	if err := pgxstore.Truncate(ctx, s); err != nil {
		t.Fatalf("Failed to clean up tables: %v", err)
	}
	return s
}

func TestConformance(t *testing.T) {
	storetest.Run(t, setupTestStore)
}
