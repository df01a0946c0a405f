// Package database opens the SQL database and keeps its schema current.
package database

import (
	"context"
	"database/sql"
	"embed"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"path"
	"sort"
	"strings"
	"time"

	"github.com/jmoiron/sqlx"
)

//go:embed migrations
var migrationsFS embed.FS

const createVersionsTable = `
	CREATE TABLE IF NOT EXISTS schema_migrations (
		version    TEXT PRIMARY KEY,
		applied_at TIMESTAMP NOT NULL
	)
`

// Migrator applies plain .up.sql migrations in lexical order, once each.
// Migrations live in one directory per driver.
type Migrator struct {
	db  *sqlx.DB
	fs  fs.FS
	log *slog.Logger
}

// NewMigrator constructs a Migrator over the embedded migrations.
func NewMigrator(db *sqlx.DB, log *slog.Logger) *Migrator {
	if log == nil {
		log = slog.Default()
	}

	return &Migrator{
		db:  db,
		fs:  migrationsFS,
		log: log,
	}
}

// Up applies every pending migration for the database driver and returns how many ran.
func (m *Migrator) Up(ctx context.Context) (int, error) {
	return m.ApplyDir(ctx, m.fs, path.Join("migrations", m.db.DriverName()))
}

// ApplyDir applies the pending *.up.sql files found in dir of fsys.
func (m *Migrator) ApplyDir(ctx context.Context, fsys fs.FS, dir string) (int, error) {
	files, err := ListMigrations(fsys, dir)
	if err != nil {
		return 0, fmt.Errorf("list migrations in %q: %w", dir, err)
	}

	log := m.log.With(slog.String("dir", dir))
	if len(files) == 0 {
		log.Info("no .up.sql migrations found")
		return 0, nil
	}

	if _, err := m.db.ExecContext(ctx, createVersionsTable); err != nil {
		return 0, fmt.Errorf("create schema_migrations: %w", err)
	}

	applied := 0
	for _, name := range files {
		done, err := m.isApplied(ctx, name)
		if err != nil {
			return applied, err
		}
		if done {
			continue
		}

		if err := m.applyFile(ctx, log, fsys, dir, name); err != nil {
			return applied, err
		}
		applied++
	}

	log.Info("migrations up to date", slog.Int("applied", applied), slog.Int("total", len(files)))
	return applied, nil
}

func (m *Migrator) isApplied(ctx context.Context, version string) (bool, error) {
	var found string
	err := m.db.GetContext(ctx, &found, m.db.Rebind(`SELECT version FROM schema_migrations WHERE version = ?`), version)
	if errors.Is(err, sql.ErrNoRows) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("check migration %q: %w", version, err)
	}
	return true, nil
}

func (m *Migrator) applyFile(ctx context.Context, log *slog.Logger, fsys fs.FS, dir, name string) error {
	log = log.With(slog.String("file", name))
	log.Info("applying migration")

	data, err := fs.ReadFile(fsys, path.Join(dir, name))
	if err != nil {
		return fmt.Errorf("read migration %q: %w", name, err)
	}

	statement := strings.TrimSpace(string(data))

	tx, err := m.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin transaction for migration %q: %w", name, err)
	}

	if statement != "" {
		if _, execErr := tx.ExecContext(ctx, statement); execErr != nil {
			if rbErr := tx.Rollback(); rbErr != nil && !errors.Is(rbErr, sql.ErrTxDone) {
				log.Error("rollback error", slog.Any("error", rbErr))
			}
			return fmt.Errorf("execute migration %q: %w", name, execErr)
		}
	} else {
		log.Warn("migration is empty, recording it anyway")
	}

	if _, err := tx.ExecContext(ctx, tx.Rebind(`INSERT INTO schema_migrations (version, applied_at) VALUES (?, ?)`), name, time.Now().UTC()); err != nil {
		_ = tx.Rollback()
		return fmt.Errorf("record migration %q: %w", name, err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit migration %q: %w", name, err)
	}

	return nil
}

func isUpMigration(name string) bool {
	return strings.HasSuffix(name, ".up.sql")
}

// ListMigrations returns all .up.sql files in dir in lexical order.
func ListMigrations(dir fs.FS, root string) ([]string, error) {
	entries, err := fs.ReadDir(dir, root)
	if err != nil {
		return nil, err
	}

	var names []string
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		if isUpMigration(e.Name()) {
			names = append(names, e.Name())
		}
	}

	sort.Strings(names)

	return names, nil
}
