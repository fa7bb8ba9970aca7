//go:build integration

package repository_test

import (
	"context"
	"fmt"
	"log"
	"os"
	"testing"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/modules/postgres"
	"github.com/testcontainers/testcontainers-go/wait"

	"palmshell-dispatch/internal/repository/migrations"
)

// Shared by every integration test in the package: one container, schema from the embedded migrations.
var (
	tcPool *pgxpool.Pool
	tcDSN  string
)

func TestMain(m *testing.M) {
	ctx := context.Background()

	pg, err := postgres.Run(ctx,
		"postgres:16-alpine",
		postgres.WithDatabase("palmshell_test"),
		postgres.WithUsername("test_user"),
		postgres.WithPassword("test_pass"),
		testcontainers.WithWaitStrategy(
			wait.ForLog("database system is ready to accept connections").
				WithOccurrence(2).
				WithStartupTimeout(30*time.Second),
		),
	)
	if err != nil {
		log.Fatalf("start postgres: %v", err)
	}

	code := 1
	if err := prepare(ctx, pg); err != nil {
		log.Printf("prepare database: %v", err)
	} else {
		code = m.Run()
		tcPool.Close()
	}

	if err := pg.Terminate(ctx); err != nil {
		log.Printf("terminate postgres: %v", err)
	}
	os.Exit(code)
}

func prepare(ctx context.Context, pg *postgres.PostgresContainer) error {
	dsn, err := pg.ConnectionString(ctx, "sslmode=disable")
	if err != nil {
		return fmt.Errorf("connection string: %w", err)
	}

	pool, err := pgxpool.New(ctx, dsn)
	if err != nil {
		return fmt.Errorf("pool: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return fmt.Errorf("ping: %w", err)
	}
	if err := migrations.Up(ctx, pool); err != nil {
		pool.Close()
		return fmt.Errorf("migrate: %w", err)
	}

	tcPool, tcDSN = pool, dsn
	return nil
}
