package app

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/jmoiron/sqlx"

	botconfig "github.com/m3rciful/slrbot/bot/config"
	"github.com/m3rciful/slrbot/bot/order"
	"github.com/m3rciful/slrbot/bot/storage/jsonfile"
	"github.com/m3rciful/slrbot/bot/storage/sqlstore"
	"github.com/m3rciful/slrbot/core/bootstrap"
	coreconfig "github.com/m3rciful/slrbot/core/config"
	"github.com/m3rciful/slrbot/core/logger"
)

// Options tune how the application is assembled.
type Options struct {
	// LoggerInit replaces logger.InitLogger.
	LoggerInit func(*coreconfig.Config) error
}

// Storage is an opened order store together with the resources behind it.
type Storage struct {
	Store order.Store
	boot  *bootstrap.Result
}

// Close releases the database connection, if any.
func (s *Storage) Close() error {
	if s == nil {
		return nil
	}
	return s.boot.Close()
}

// OpenStorage initializes logging and opens the configured order store. For
// database drivers the schema is migrated and the optional JSON import runs.
func OpenStorage(ctx context.Context, cfg *botconfig.Config, opts Options) (*Storage, error) {
	bopts := bootstrap.Options{
		Config:     cfg.CoreConfig(),
		Database:   cfg.DatabaseConfig(),
		LoggerInit: opts.LoggerInit,
	}
	if bopts.Database != nil {
		migs := sqlstore.Migrations(bopts.Database.DriverName())
		bopts.Migrations = &migs
		if cfg.Storage.ImportPath != "" {
			bopts.Seeders = append(bopts.Seeders, importSeeder(cfg.Storage.ImportPath))
		}
	}
	boot, err := bootstrap.Run(ctx, bopts)
	if err != nil {
		return nil, err
	}

	var store order.Store
	if boot.DB != nil {
		store = sqlstore.New(boot.DB)
	} else {
		store = jsonfile.New(cfg.Storage.Path)
	}
	logger.Info(ctx, "store", "store.open",
		slog.String("driver", cfg.Storage.Driver),
		slog.String("path", cfg.Storage.Path),
	)
	return &Storage{Store: store, boot: boot}, nil
}

// importSeeder copies a JSON order file into the database when the database
// holds no state yet.
func importSeeder(path string) bootstrap.Seeder {
	return bootstrap.SeederFunc(func(ctx context.Context, db *sqlx.DB) error {
		dst := sqlstore.New(db)
		current, err := dst.Load(ctx)
		if err != nil {
			return fmt.Errorf("import: read database: %w", err)
		}
		if current.Counter > 0 || len(current.Orders) > 0 {
			logger.Info(ctx, "store", "store.import",
				slog.String("status", "skipped"),
				slog.String("reason", "database_not_empty"),
			)
			return nil
		}
		src, err := jsonfile.New(path).Load(ctx)
		if err != nil {
			return fmt.Errorf("import %s: %w", path, err)
		}
		if src.Counter < int64(len(src.Orders)) {
			src.Counter = int64(len(src.Orders))
		}
		if err := dst.Save(ctx, src); err != nil {
			return fmt.Errorf("import %s: %w", path, err)
		}
		logger.Info(ctx, "store", "store.import",
			slog.String("status", "ok"),
			slog.String("path", path),
			slog.Int64("counter", src.Counter),
			slog.Int("orders", len(src.Orders)),
		)
		return nil
	})
}
