package postgres

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/couchcryptid/quake-data-etl/migrations"
)

// schemaMigrationLockID serializes migration runs across service
// replicas via a Postgres advisory lock.
const schemaMigrationLockID int64 = 0x51554b455f4d4752 // "QUKE_MGR"

// EnsureSchema applies any pending embedded migrations in order, under
// an advisory lock so concurrent replicas do not race.
func EnsureSchema(ctx context.Context, pool *pgxpool.Pool, logger *slog.Logger) error {
	if pool == nil {
		return errors.New("nil database pool")
	}
	if logger == nil {
		logger = slog.Default()
	}

	conn, err := pool.Acquire(ctx)
	if err != nil {
		return fmt.Errorf("acquire migration connection: %w", err)
	}
	defer conn.Release()

	if _, err := conn.Exec(ctx, "SELECT pg_advisory_lock($1)", schemaMigrationLockID); err != nil {
		return fmt.Errorf("acquire migration lock: %w", err)
	}
	defer func() {
		if _, err := conn.Exec(ctx, "SELECT pg_advisory_unlock($1)", schemaMigrationLockID); err != nil {
			logger.Warn("release migration lock failed", "error", err)
		}
	}()

	if _, err := conn.Exec(ctx, `
		CREATE TABLE IF NOT EXISTS schema_migrations (
			name       TEXT PRIMARY KEY,
			applied_at TIMESTAMPTZ NOT NULL DEFAULT now()
		)
	`); err != nil {
		return fmt.Errorf("create schema_migrations: %w", err)
	}

	files, err := migrations.Ordered()
	if err != nil {
		return fmt.Errorf("read embedded migrations: %w", err)
	}

	for _, file := range files {
		var applied bool
		err := conn.QueryRow(ctx,
			"SELECT EXISTS (SELECT 1 FROM schema_migrations WHERE name = $1)", file.Name,
		).Scan(&applied)
		if err != nil {
			return fmt.Errorf("check migration %s: %w", file.Name, err)
		}
		if applied {
			continue
		}

		if _, err := conn.Exec(ctx, file.SQL); err != nil {
			return fmt.Errorf("apply migration %s: %w", file.Name, err)
		}
		if _, err := conn.Exec(ctx,
			"INSERT INTO schema_migrations (name) VALUES ($1)", file.Name,
		); err != nil {
			return fmt.Errorf("record migration %s: %w", file.Name, err)
		}
		logger.Info("applied migration", "name", file.Name)
	}

	return nil
}
