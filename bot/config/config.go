// Package config holds the SLR BOOST bot configuration on top of the core one.
package config

import (
	"errors"
	"fmt"
	"net/url"
	"strings"
	"time"
	_ "time/tzdata"

	coreconfig "github.com/m3rciful/slrbot/core/config"
	coredatabase "github.com/m3rciful/slrbot/core/database"
)

// ErrInvalid wraps every configuration error.
var ErrInvalid = errors.New("invalid configuration")

const (
	// DriverFile keeps orders in a JSON file.
	DriverFile = "file"

	defaultShopURL     = "https://example.com"
	defaultTimezone    = "Europe/Paris"
	defaultRecentLimit = 10
	maxRecentLimit     = 50
	defaultSweep       = time.Minute
)

// BackOfficeConfig names the chat receiving order summaries.
type BackOfficeConfig struct {
	ChatID int64 `yaml:"chat_id" envconfig:"BACKOFFICE_CHAT_ID"`
}

// ShopConfig configures the shop button of the welcome menu.
type ShopConfig struct {
	URL string `yaml:"url" envconfig:"SHOP_URL"`
}

// StorageConfig selects where orders are kept.
type StorageConfig struct {
	// Driver is file, postgres or sqlite3.
	Driver string `yaml:"driver" envconfig:"STORAGE_DRIVER"`
	// Path is the JSON file or the SQLite database.
	Path     string              `yaml:"path" envconfig:"ORDERS_PATH"`
	Database coredatabase.Config `yaml:"database"`
	// ImportPath is a JSON order file copied into an empty database at startup.
	ImportPath string `yaml:"import_path" envconfig:"ORDERS_IMPORT_PATH"`
}

// OrdersConfig tunes order numbering and listings.
type OrdersConfig struct {
	// Timezone decides the year of order numbers and the dates shown to the back office.
	Timezone    string `yaml:"timezone" envconfig:"ORDERS_TIMEZONE"`
	RecentLimit int    `yaml:"recent_limit" envconfig:"ORDERS_RECENT_LIMIT"`
}

// SessionConfig controls abandoned conversations. A zero IdleTTL keeps them forever.
type SessionConfig struct {
	IdleTTL       time.Duration `yaml:"idle_ttl" envconfig:"SESSION_IDLE_TTL"`
	SweepInterval time.Duration `yaml:"sweep_interval" envconfig:"SESSION_SWEEP_INTERVAL"`
}

// Config is the full bot configuration.
type Config struct {
	coreconfig.Config `yaml:",inline"`

	BackOffice BackOfficeConfig `yaml:"backoffice"`
	Shop       ShopConfig       `yaml:"shop"`
	Storage    StorageConfig    `yaml:"storage"`
	Orders     OrdersConfig     `yaml:"orders"`
	Session    SessionConfig    `yaml:"session"`

	loc *time.Location
}

// CoreConfig returns the embedded core configuration.
func (c *Config) CoreConfig() *coreconfig.Config {
	return &c.Config
}

// Location returns the configured order time zone.
func (c *Config) Location() *time.Location {
	if c.loc == nil {
		return time.UTC
	}
	return c.loc
}

// DatabaseConfig returns the database settings, or nil for the file driver.
func (c *Config) DatabaseConfig() *coredatabase.Config {
	if c.Storage.Driver == DriverFile {
		return nil
	}
	db := c.Storage.Database
	return &db
}

// Load reads the optional YAML file, overlays the environment and validates.
func Load(path string) (*Config, error) {
	var cfg Config
	if err := coreconfig.Decode(path, &cfg); err != nil {
		return nil, err
	}
	if err := Normalize(&cfg); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// LoadStorage is Load for commands that only touch the order store. The
// Telegram settings are not validated.
func LoadStorage(path string) (*Config, error) {
	var cfg Config
	if err := coreconfig.Decode(path, &cfg); err != nil {
		return nil, err
	}
	if err := normalizeStorage(&cfg); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Normalize validates required settings and fills defaults.
func Normalize(cfg *Config) error {
	if cfg == nil {
		return fmt.Errorf("%w: nil config", ErrInvalid)
	}
	if err := coreconfig.Normalize(&cfg.Config); err != nil {
		return fmt.Errorf("%w: %w", ErrInvalid, err)
	}
	if cfg.BackOffice.ChatID == 0 {
		return fmt.Errorf("%w: backoffice.chat_id is required (BACKOFFICE_CHAT_ID)", ErrInvalid)
	}

	cfg.Shop.URL = strings.TrimSpace(cfg.Shop.URL)
	if cfg.Shop.URL == "" {
		cfg.Shop.URL = defaultShopURL
	}
	u, err := url.Parse(cfg.Shop.URL)
	if err != nil || (u.Scheme != "https" && u.Scheme != "http") || u.Host == "" {
		return fmt.Errorf("%w: shop.url must be an absolute http(s) URL, got %q", ErrInvalid, cfg.Shop.URL)
	}

	if cfg.Session.IdleTTL < 0 {
		return fmt.Errorf("%w: session.idle_ttl must be >= 0", ErrInvalid)
	}
	if cfg.Session.SweepInterval < 0 {
		return fmt.Errorf("%w: session.sweep_interval must be >= 0", ErrInvalid)
	}
	if cfg.Session.IdleTTL > 0 && cfg.Session.SweepInterval == 0 {
		cfg.Session.SweepInterval = defaultSweep
	}
	return normalizeStorage(cfg)
}

func normalizeStorage(cfg *Config) error {
	driver := strings.ToLower(strings.TrimSpace(cfg.Storage.Driver))
	switch driver {
	case "", "json", DriverFile:
		driver = DriverFile
	case "sqlite", coredatabase.DriverSQLite:
		driver = coredatabase.DriverSQLite
	case "pg", "postgresql", coredatabase.DriverPostgres:
		driver = coredatabase.DriverPostgres
	default:
		return fmt.Errorf("%w: invalid storage.driver %q; allowed: file, postgres, sqlite3", ErrInvalid, cfg.Storage.Driver)
	}
	cfg.Storage.Driver = driver

	cfg.Storage.Path = strings.TrimSpace(cfg.Storage.Path)
	switch driver {
	case DriverFile:
		if cfg.Storage.Path == "" {
			cfg.Storage.Path = "orders.json"
		}
	case coredatabase.DriverSQLite:
		if cfg.Storage.Path == "" {
			cfg.Storage.Path = cfg.Storage.Database.Path
		}
		if cfg.Storage.Path == "" {
			cfg.Storage.Path = "orders.db"
		}
		cfg.Storage.Database.Path = cfg.Storage.Path
	case coredatabase.DriverPostgres:
		db := cfg.Storage.Database
		if db.Host == "" || db.Port == "" || db.Name == "" || db.User == "" {
			return fmt.Errorf("%w: storage.database host, port, name and user are required for postgres (DB_HOST, DB_PORT, DB_NAME, DB_USER)", ErrInvalid)
		}
	}
	cfg.Storage.Database.Driver = driver
	cfg.Storage.ImportPath = strings.TrimSpace(cfg.Storage.ImportPath)
	if driver == DriverFile && cfg.Storage.ImportPath != "" {
		return fmt.Errorf("%w: storage.import_path needs a database driver", ErrInvalid)
	}

	tz := strings.TrimSpace(cfg.Orders.Timezone)
	if tz == "" {
		tz = defaultTimezone
	}
	loc, err := time.LoadLocation(tz)
	if err != nil {
		return fmt.Errorf("%w: orders.timezone %q: %w", ErrInvalid, tz, err)
	}
	cfg.Orders.Timezone = tz
	cfg.loc = loc

	switch {
	case cfg.Orders.RecentLimit < 0:
		return fmt.Errorf("%w: orders.recent_limit must be >= 0", ErrInvalid)
	case cfg.Orders.RecentLimit == 0:
		cfg.Orders.RecentLimit = defaultRecentLimit
	case cfg.Orders.RecentLimit > maxRecentLimit:
		cfg.Orders.RecentLimit = maxRecentLimit
	}
	return nil
}
