package database

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/golang-migrate/migrate/v4"
	migratedb "github.com/golang-migrate/migrate/v4/database"
	"github.com/golang-migrate/migrate/v4/database/postgres"
	"github.com/golang-migrate/migrate/v4/database/sqlite3"
	_ "github.com/golang-migrate/migrate/v4/source/file"
	"github.com/jmoiron/sqlx"

	"github.com/m3rciful/newsbot/core/logger"
)

const postgresReadyTimeout = 30 * time.Second

// RunMigrations applies all up migrations from <migrations_dir>/<driver> against db.
func RunMigrations(cfg Config, db *sqlx.DB) error {
	if db == nil {
		return fmt.Errorf("migrations: nil database handle")
	}
	driver := cfg.DriverName()
	if driver == DriverPostgres {
		if err := waitReady(db, postgresReadyTimeout, 2*time.Second); err != nil {
			logger.MIG.Error("db not ready", slog.String("event", "db.migrate"), slog.String("err", err.Error()))
			return fmt.Errorf("database not ready: %w", err)
		}
	}

	dir, err := resolveMigrationsDir(cfg, driver)
	if err != nil {
		return err
	}
	files := listMigrationFiles(dir)
	logger.MIG.Debug("migrations resolved", previewAttrs("resolve", files,
		slog.String("path", dir),
	)...)

	m, err := newMigrator(driver, dir, db)
	if err != nil {
		logger.MIG.Error("init failed",
			slog.String("event", "db.migrate"),
			slog.String("driver", driver),
			slog.String("err", err.Error()),
		)
		return err
	}

	from, _, _ := m.Version()
	start := time.Now()
	upErr := m.Up()
	took := time.Since(start)
	if upErr != nil && !errors.Is(upErr, migrate.ErrNoChange) {
		logger.MIG.Error("migration failed",
			slog.String("event", "apply"),
			slog.String("err", upErr.Error()),
			slog.Duration("duration", took),
		)
		return fmt.Errorf("migration execution failed: %w", upErr)
	}
	to, _, _ := m.Version()

	applied := appliedBetween(files, uint64(from), uint64(to))
	if len(applied) > 0 {
		logger.MIG.Debug("applied files", previewAttrs("apply", applied)...)
	}
	logger.MIG.Info("migrations summary",
		slog.String("event", "summary"),
		slog.String("driver", driver),
		slog.Uint64("from_ver", uint64(from)),
		slog.Uint64("to_ver", uint64(to)),
		slog.Int("files", len(applied)),
		slog.Duration("duration", took),
	)
	return nil
}

func newMigrator(driver, dir string, db *sqlx.DB) (*migrate.Migrate, error) {
	var (
		instance migratedb.Driver
		err      error
	)
	switch driver {
	case DriverPostgres:
		instance, err = postgres.WithInstance(db.DB, &postgres.Config{})
	case DriverSQLite:
		instance, err = sqlite3.WithInstance(db.DB, &sqlite3.Config{})
	default:
		return nil, fmt.Errorf("unsupported migration driver %q", driver)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to initialize migration driver: %w", err)
	}
	m, err := migrate.NewWithDatabaseInstance("file://"+dir, driver, instance)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize migrations: %w", err)
	}
	return m, nil
}

// waitReady pings db until it answers or timeout elapses.
func waitReady(db *sqlx.DB, timeout, every time.Duration) error {
	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()
	for {
		err := db.PingContext(ctx)
		if err == nil {
			return nil
		}
		select {
		case <-ctx.Done():
			return fmt.Errorf("timeout reached waiting for database: %w", err)
		case <-time.After(every):
		}
	}
}

func resolveMigrationsDir(cfg Config, driver string) (string, error) {
	root := strings.TrimSpace(cfg.MigrationsDir)
	if root == "" {
		root = "migrations"
	}
	abs, err := filepath.Abs(filepath.Join(root, driver))
	if err != nil {
		return "", fmt.Errorf("resolve migrations dir: %w", err)
	}
	return abs, nil
}

func listMigrationFiles(dir string) []string {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil
	}
	var names []string
	for _, e := range entries {
		if !e.IsDir() && strings.HasSuffix(e.Name(), ".up.sql") {
			names = append(names, e.Name())
		}
	}
	sort.Strings(names)
	return names
}

// appliedBetween returns the files with versions in (from, to].
func appliedBetween(files []string, from, to uint64) []string {
	var out []string
	for _, f := range files {
		prefix, _, _ := strings.Cut(f, "_")
		v, err := strconv.ParseUint(prefix, 10, 64)
		if err == nil && v > from && v <= to {
			out = append(out, f)
		}
	}
	return out
}

func previewAttrs(event string, files []string, extra ...any) []any {
	args := append([]any{
		slog.String("event", event),
		slog.Int("files_total", len(files)),
	}, extra...)
	if preview, truncated := logger.SummarizeStrings(files, 6); preview != "" {
		args = append(args, slog.String("files_preview", preview))
		if truncated {
			args = append(args, slog.Bool("files_truncated", true))
		}
	}
	return args
}
