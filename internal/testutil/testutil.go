// Package testutil holds helpers shared by integration tests.
package testutil

import (
	"context"
	"fmt"
	"io/fs"
	"os"
	"testing"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"

	"github.com/kegstock/kegstock/internal/migrate"
)

// RequireEnv returns an environment variable or skips the test if missing.
func RequireEnv(t testing.TB, key string) string {
	t.Helper()
	value := os.Getenv(key)
	if value == "" {
		t.Skipf("%s not set", key)
	}
	return value
}

const advisoryLockID int64 = 5318008

// AcquireDBLock grabs a global advisory lock to serialize DB tests.
func AcquireDBLock(ctx context.Context, pool *pgxpool.Pool) (func() error, error) {
	conn, err := pool.Acquire(ctx)
	if err != nil {
		return nil, fmt.Errorf("acquire connection: %w", err)
	}

	if _, err := conn.Exec(ctx, "SELECT pg_advisory_lock($1)", advisoryLockID); err != nil {
		conn.Release()
		return nil, fmt.Errorf("acquire advisory lock: %w", err)
	}

	unlock := func() error {
		defer conn.Release()
		if _, err := conn.Exec(ctx, "SELECT pg_advisory_unlock($1)", advisoryLockID); err != nil {
			return fmt.Errorf("release advisory lock: %w", err)
		}
		return nil
	}

	return unlock, nil
}

// ResetSchema rolls every migration in fsys back (newest first) and applies
// them again, leaving empty tables behind. The schema_migrations table is
// dropped so the migrate package starts from scratch too.
func ResetSchema(ctx context.Context, pool *pgxpool.Pool, fsys fs.FS, dir string) error {
	migrations, err := migrate.Load(fsys, dir)
	if err != nil {
		return fmt.Errorf("load migrations: %w", err)
	}

	for i := len(migrations) - 1; i >= 0; i-- {
		if migrations[i].Down == "" {
			continue
		}
		if _, err := pool.Exec(ctx, migrations[i].Down); err != nil {
			return fmt.Errorf("apply down migration %d: %w", migrations[i].Version, err)
		}
	}

	if _, err := pool.Exec(ctx, "DROP TABLE IF EXISTS schema_migrations"); err != nil {
		return fmt.Errorf("drop schema_migrations: %w", err)
	}

	for _, m := range migrations {
		if _, err := pool.Exec(ctx, m.Up); err != nil {
			return fmt.Errorf("apply up migration %d: %w", m.Version, err)
		}
	}

	return nil
}

// FlushRedis clears the current Redis database.
func FlushRedis(ctx context.Context, client *redis.Client) error {
	return client.FlushDB(ctx).Err()
}
