package bootstrap

import (
	"context"
	"errors"
	"fmt"

	"github.com/jmoiron/sqlx"

	coreconfig "github.com/m3rciful/slrbot/core/config"
	coredatabase "github.com/m3rciful/slrbot/core/database"
	"github.com/m3rciful/slrbot/core/logger"
)

// Options control the generic bootstrap pipeline shared between bots.
// Database is optional; bots that keep their state in files leave it nil.
type Options struct {
	Config     *coreconfig.Config
	Database   *coredatabase.Config
	Migrations *coredatabase.Migrations

	LoggerInit func(*coreconfig.Config) error
	Connect    func(context.Context, coredatabase.Config) (*sqlx.DB, error)
	Migrate    func(context.Context, coredatabase.Config, coredatabase.Migrations) error

	// Seeders run in order after the database is connected.
	Seeders []Seeder
}

// Result exposes infrastructure initialized by the bootstrap pipeline.
type Result struct {
	DB *sqlx.DB
}

// Close releases the resources held by the result.
func (r *Result) Close() error {
	if r == nil || r.DB == nil {
		return nil
	}
	return r.DB.Close()
}

// Run initializes the logger and, when configured, migrates and connects to the database.
func Run(ctx context.Context, opts Options) (*Result, error) {
	if opts.Config == nil {
		return nil, errors.New("bootstrap: nil config provided")
	}

	loggerInit := opts.LoggerInit
	if loggerInit == nil {
		loggerInit = logger.InitLogger
	}
	if err := loggerInit(opts.Config); err != nil {
		return nil, fmt.Errorf("bootstrap: logger init failed: %w", err)
	}
	if opts.Database == nil {
		return &Result{}, nil
	}

	if opts.Migrations != nil {
		migrate := opts.Migrate
		if migrate == nil {
			migrate = coredatabase.RunMigrations
		}
		if err := migrate(ctx, *opts.Database, *opts.Migrations); err != nil {
			return nil, fmt.Errorf("bootstrap: migrations failed: %w", err)
		}
	}

	connect := opts.Connect
	if connect == nil {
		connect = coredatabase.Connect
	}
	db, err := connect(ctx, *opts.Database)
	if err != nil {
		return nil, fmt.Errorf("bootstrap: database initialization failed: %w", err)
	}
	res := &Result{DB: db}
	for i, s := range opts.Seeders {
		if s == nil {
			continue
		}
		if err := s.Seed(ctx, db); err != nil {
			_ = res.Close()
			return nil, fmt.Errorf("bootstrap: seeder %d failed: %w", i, err)
		}
	}
	return res, nil
}
