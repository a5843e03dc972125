package testutil

import (
	"context"
	"database/sql"
	"testing"
	"time"

	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/modules/postgres"
	"github.com/testcontainers/testcontainers-go/wait"

	"github.com/josh-kwaku/potfund-ledger/internal/repository"
	"github.com/josh-kwaku/potfund-ledger/migrations"
)

// SetupTestDB starts a throwaway Postgres 16 with the schema applied.
func SetupTestDB(t *testing.T) *sql.DB {
	t.Helper()
	if testing.Short() {
		t.Skip("skipping integration test in short mode")
	}
	ctx := context.Background()

	container, err := postgres.Run(ctx, "postgres:16-alpine",
		postgres.WithDatabase("potfund_test"),
		postgres.WithUsername("test"),
		postgres.WithPassword("test"),
		testcontainers.WithWaitStrategy(
			wait.ForLog("database system is ready to accept connections").
				WithOccurrence(2).
				WithStartupTimeout(30*time.Second),
		),
	)
	if err != nil {
		t.Fatalf("start postgres container: %v", err)
	}

	t.Cleanup(func() {
		if err := container.Terminate(ctx); err != nil {
			t.Logf("terminate postgres container: %v", err)
		}
	})

	connStr, err := container.ConnectionString(ctx, "sslmode=disable")
	if err != nil {
		t.Fatalf("get connection string: %v", err)
	}

	// concurrency tests run several serializable writers at once
	db, err := repository.NewPostgresDB(ctx, connStr, repository.PoolConfig{
		MaxOpenConns:     20,
		MaxIdleConns:     10,
		ConnMaxLifetimeS: 300,
		ConnMaxIdleTimeS: 60,
	})
	if err != nil {
		t.Fatalf("connect: %v", err)
	}

	t.Cleanup(func() { db.Close() })

	if _, err := migrations.Apply(ctx, db); err != nil {
		t.Fatalf("run migrations: %v", err)
	}

	return db
}
