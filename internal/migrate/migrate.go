// Package migrate applies versioned SQL migrations to PostgreSQL.
//
// Migration files follow the pattern NNNNNN_name.up.sql / NNNNNN_name.down.sql.
// Applied versions are tracked in the schema_migrations table. Each migration
// runs in its own transaction together with its bookkeeping row.
package migrate

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"path"
	"regexp"
	"sort"
	"strconv"

	// PostgreSQL driver for database/sql.
	_ "github.com/lib/pq"
)

// Errors returned by the migrator.
var (
	ErrNoMigrations   = errors.New("no migrations found")
	ErrMissingDown    = errors.New("down migration missing")
	ErrDuplicateFile  = errors.New("duplicate migration file")
	ErrNothingApplied = errors.New("no applied migrations")
)

var fileRe = regexp.MustCompile(`^([0-9]{6})_([a-z0-9_]+)\.(up|down)\.sql$`)

// Migration is a single schema version.
type Migration struct {
	Version int
	Name    string
	Up      string
	Down    string
}

// Load reads migrations from dir inside fsys, sorted by version.
// Files that do not match the naming pattern are ignored.
func Load(fsys fs.FS, dir string) ([]Migration, error) {
	entries, err := fs.ReadDir(fsys, dir)
	if err != nil {
		return nil, fmt.Errorf("read migrations dir: %w", err)
	}

	byVersion := make(map[int]*Migration)
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		m := fileRe.FindStringSubmatch(entry.Name())
		if m == nil {
			continue
		}

		version, err := strconv.Atoi(m[1])
		if err != nil {
			continue
		}

		body, err := fs.ReadFile(fsys, path.Join(dir, entry.Name()))
		if err != nil {
			return nil, fmt.Errorf("read %s: %w", entry.Name(), err)
		}

		mig, ok := byVersion[version]
		if !ok {
			mig = &Migration{Version: version, Name: m[2]}
			byVersion[version] = mig
		}

		switch m[3] {
		case "up":
			if mig.Up != "" {
				return nil, fmt.Errorf("%w: %s", ErrDuplicateFile, entry.Name())
			}
			mig.Up = string(body)
		case "down":
			if mig.Down != "" {
				return nil, fmt.Errorf("%w: %s", ErrDuplicateFile, entry.Name())
			}
			mig.Down = string(body)
		}
	}

	result := make([]Migration, 0, len(byVersion))
	for _, mig := range byVersion {
		if mig.Up == "" {
			continue
		}
		result = append(result, *mig)
	}
	if len(result) == 0 {
		return nil, ErrNoMigrations
	}

	sort.Slice(result, func(i, j int) bool { return result[i].Version < result[j].Version })
	return result, nil
}

// Open opens a database/sql handle on the PostgreSQL driver and verifies it.
func Open(ctx context.Context, databaseURL string) (*sql.DB, error) {
	db, err := sql.Open("postgres", databaseURL)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}
	return db, nil
}

// Migrator applies and rolls back migrations.
type Migrator struct {
	db         *sql.DB
	migrations []Migration
	logger     *slog.Logger
}

// New creates a Migrator for the migrations found in dir inside fsys.
func New(db *sql.DB, fsys fs.FS, dir string, logger *slog.Logger) (*Migrator, error) {
	migrations, err := Load(fsys, dir)
	if err != nil {
		return nil, err
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Migrator{
		db:         db,
		migrations: migrations,
		logger:     logger.With("component", "migrate"),
	}, nil
}

func (m *Migrator) ensureTable(ctx context.Context) error {
	_, err := m.db.ExecContext(ctx, `
		CREATE TABLE IF NOT EXISTS schema_migrations (
			version    INTEGER PRIMARY KEY,
			applied_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
		)`)
	if err != nil {
		return fmt.Errorf("create schema_migrations: %w", err)
	}
	return nil
}

func (m *Migrator) applied(ctx context.Context) (map[int]bool, error) {
	rows, err := m.db.QueryContext(ctx, `SELECT version FROM schema_migrations`)
	if err != nil {
		return nil, fmt.Errorf("query schema_migrations: %w", err)
	}
	defer rows.Close()

	got := make(map[int]bool)
	for rows.Next() {
		var v int
		if err := rows.Scan(&v); err != nil {
			return nil, fmt.Errorf("scan version: %w", err)
		}
		got[v] = true
	}
	return got, rows.Err()
}

// Up applies every pending migration in version order.
// It returns the number of migrations applied.
func (m *Migrator) Up(ctx context.Context) (int, error) {
	if err := m.ensureTable(ctx); err != nil {
		return 0, err
	}
	applied, err := m.applied(ctx)
	if err != nil {
		return 0, err
	}

	count := 0
	for _, mig := range m.migrations {
		if applied[mig.Version] {
			continue
		}
		if err := m.run(ctx, mig.Up, `INSERT INTO schema_migrations (version) VALUES ($1)`, mig.Version); err != nil {
			return count, fmt.Errorf("apply %06d_%s: %w", mig.Version, mig.Name, err)
		}
		m.logger.Info("migration_applied", "version", mig.Version, "name", mig.Name)
		count++
	}
	return count, nil
}

// Down rolls back the most recently applied migration and returns its version.
func (m *Migrator) Down(ctx context.Context) (int, error) {
	if err := m.ensureTable(ctx); err != nil {
		return 0, err
	}

	version, err := m.Version(ctx)
	if err != nil {
		return 0, err
	}
	if version == 0 {
		return 0, ErrNothingApplied
	}

	var target *Migration
	for i := range m.migrations {
		if m.migrations[i].Version == version {
			target = &m.migrations[i]
			break
		}
	}
	if target == nil || target.Down == "" {
		return 0, fmt.Errorf("%w: version %d", ErrMissingDown, version)
	}

	if err := m.run(ctx, target.Down, `DELETE FROM schema_migrations WHERE version = $1`, version); err != nil {
		return 0, fmt.Errorf("roll back %06d_%s: %w", target.Version, target.Name, err)
	}
	m.logger.Info("migration_rolled_back", "version", target.Version, "name", target.Name)
	return version, nil
}

// Version returns the highest applied version, or 0 when none is applied.
func (m *Migrator) Version(ctx context.Context) (int, error) {
	if err := m.ensureTable(ctx); err != nil {
		return 0, err
	}
	var version sql.NullInt64
	err := m.db.QueryRowContext(ctx, `SELECT MAX(version) FROM schema_migrations`).Scan(&version)
	if err != nil {
		return 0, fmt.Errorf("query current version: %w", err)
	}
	return int(version.Int64), nil
}

func (m *Migrator) run(ctx context.Context, script, bookkeeping string, version int) error {
	tx, err := m.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, script); err != nil {
		return err
	}
	if _, err := tx.ExecContext(ctx, bookkeeping, version); err != nil {
		return fmt.Errorf("record version: %w", err)
	}
	return tx.Commit()
}
