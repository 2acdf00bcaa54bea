package database

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/golang-migrate/migrate/v4"
	_ "github.com/golang-migrate/migrate/v4/database/postgres"
	_ "github.com/golang-migrate/migrate/v4/database/sqlite3"
	"github.com/golang-migrate/migrate/v4/source/iofs"

	"github.com/m3rciful/slrbot/core/logger"
)

// Migrations locates a directory of golang-migrate files inside a filesystem.
type Migrations struct {
	FS  fs.FS
	Dir string
}

// RunMigrations applies all pending up migrations and logs a summary.
func RunMigrations(ctx context.Context, cfg Config, src Migrations) error {
	if src.FS == nil {
		return errors.New("database: no migrations provided")
	}
	dir := src.Dir
	if dir == "" {
		dir = "."
	}
	dbURL, err := cfg.MigrateURL()
	if err != nil {
		return err
	}
	if cfg.DriverName() == DriverPostgres {
		if err := WaitReady(ctx, cfg, 30*time.Second); err != nil {
			logger.MIG.Error("db not ready",
				slog.String("event", "db.migrate"),
				slog.String("err", err.Error()),
			)
			return fmt.Errorf("database not ready: %w", err)
		}
	}

	files := listMigrationFiles(src.FS, dir)
	logger.MIG.Debug("migrations resolved",
		slog.String("event", "resolve"),
		slog.String("dir", dir),
		slog.Int("files_total", len(files)),
		slog.String("files_preview", preview(files, 6)),
	)

	source, err := iofs.New(src.FS, dir)
	if err != nil {
		return fmt.Errorf("failed to open migration source: %w", err)
	}
	m, err := migrate.NewWithSourceInstance("iofs", source, dbURL)
	if err != nil {
		logger.MIG.Error("init failed",
			slog.String("event", "db.migrate"),
			slog.String("err", err.Error()),
		)
		return fmt.Errorf("failed to initialize migrations: %w", err)
	}
	defer func() {
		if srcErr, dbErr := m.Close(); srcErr != nil || dbErr != nil {
			logger.MIG.Warn("close failed",
				slog.String("event", "db.migrate"),
				slog.Any("err", errors.Join(srcErr, dbErr)),
			)
		}
	}()

	fromVer, _, _ := m.Version()
	start := time.Now()
	upErr := m.Up()
	took := time.Since(start)
	if upErr != nil && !errors.Is(upErr, migrate.ErrNoChange) {
		logger.MIG.Error("migration failed",
			slog.String("event", "apply"),
			slog.String("err", upErr.Error()),
			slog.Duration("duration", logger.RoundMS(took)),
		)
		return fmt.Errorf("migration execution failed: %w", upErr)
	}

	toVer, _, _ := m.Version()
	applied := selectApplied(files, uint64(fromVer), uint64(toVer))
	if len(applied) > 0 {
		logger.MIG.Debug("applied files",
			slog.String("event", "apply"),
			slog.Int("files_total", len(applied)),
			slog.String("files_preview", preview(applied, 6)),
		)
	}
	logger.MIG.Info("migrations summary",
		slog.String("event", "summary"),
		slog.Uint64("from_ver", uint64(fromVer)),
		slog.Uint64("to_ver", uint64(toVer)),
		slog.Int("files", len(applied)),
		slog.Duration("duration", logger.RoundMS(took)),
	)
	return nil
}

func listMigrationFiles(fsys fs.FS, dir string) []string {
	entries, err := fs.ReadDir(fsys, dir)
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

func parseVersion(name string) uint64 {
	head, _, _ := strings.Cut(name, "_")
	v, _ := strconv.ParseUint(head, 10, 64)
	return v
}

func selectApplied(files []string, from, to uint64) []string {
	var out []string
	for _, f := range files {
		if v := parseVersion(f); v > from && v <= to {
			out = append(out, f)
		}
	}
	return out
}

func preview(names []string, limit int) string {
	if len(names) <= limit {
		return strings.Join(names, ", ")
	}
	return strings.Join(names[:limit], ", ") + ", ..."
}
