package bootstrap

import (
	"context"
	"errors"
	"testing"
	"testing/fstest"

	"github.com/jmoiron/sqlx"
	_ "github.com/mattn/go-sqlite3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	coreconfig "github.com/m3rciful/slrbot/core/config"
	coredatabase "github.com/m3rciful/slrbot/core/database"
)

func noLogger(*coreconfig.Config) error { return nil }

func TestRunWithoutDatabaseOnlyInitsLogger(t *testing.T) {
	connected := false
	res, err := Run(context.Background(), Options{
		Config:     &coreconfig.Config{},
		LoggerInit: noLogger,
		Connect: func(context.Context, coredatabase.Config) (*sqlx.DB, error) {
			connected = true
			return nil, nil
		},
	})
	require.NoError(t, err)
	assert.Nil(t, res.DB)
	assert.False(t, connected)
	assert.NoError(t, res.Close())
}

func TestRunMigratesBeforeConnecting(t *testing.T) {
	var calls []string
	src := coredatabase.Migrations{FS: fstest.MapFS{}, Dir: "."}
	_, err := Run(context.Background(), Options{
		Config:     &coreconfig.Config{},
		Database:   &coredatabase.Config{Driver: "sqlite3", Path: "x.db"},
		Migrations: &src,
		LoggerInit: noLogger,
		Migrate: func(context.Context, coredatabase.Config, coredatabase.Migrations) error {
			calls = append(calls, "migrate")
			return nil
		},
		Connect: func(context.Context, coredatabase.Config) (*sqlx.DB, error) {
			calls = append(calls, "connect")
			return nil, errors.New("refused")
		},
	})
	require.Error(t, err)
	assert.Equal(t, []string{"migrate", "connect"}, calls)
}

func TestRunRejectsNilConfig(t *testing.T) {
	_, err := Run(context.Background(), Options{})
	assert.Error(t, err)
}

func TestRunSeedsAfterConnecting(t *testing.T) {
	db, err := sqlx.Open("sqlite3", ":memory:")
	require.NoError(t, err)

	var calls []string
	opts := Options{
		Config:     &coreconfig.Config{},
		Database:   &coredatabase.Config{Driver: "sqlite3", Path: ":memory:"},
		LoggerInit: noLogger,
		Connect: func(context.Context, coredatabase.Config) (*sqlx.DB, error) {
			calls = append(calls, "connect")
			return db, nil
		},
		Seeders: []Seeder{
			SeederFunc(func(_ context.Context, got *sqlx.DB) error {
				assert.Same(t, db, got)
				calls = append(calls, "seed")
				return nil
			}),
			nil,
		},
	}
	res, err := Run(context.Background(), opts)
	require.NoError(t, err)
	assert.Equal(t, []string{"connect", "seed"}, calls)
	assert.NoError(t, res.Close())

	db, err = sqlx.Open("sqlite3", ":memory:")
	require.NoError(t, err)
	opts.Seeders = []Seeder{SeederFunc(func(context.Context, *sqlx.DB) error { return errors.New("bad import") })}
	_, err = Run(context.Background(), opts)
	assert.ErrorContains(t, err, "bad import")
}
