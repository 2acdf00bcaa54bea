package database

import (
	"fmt"
	"net/url"
	"strings"
)

const (
	// DriverPostgres selects lib/pq.
	DriverPostgres = "postgres"
	// DriverSQLite selects mattn/go-sqlite3.
	DriverSQLite = "sqlite3"
)

// Config holds database connection settings shared across bots.
type Config struct {
	Driver string `yaml:"driver" envconfig:"DB_DRIVER"`
	// Path is the SQLite database file.
	Path           string `yaml:"path" envconfig:"DB_PATH"`
	Host           string `yaml:"host" envconfig:"DB_HOST"`
	Port           string `yaml:"port" envconfig:"DB_PORT"`
	User           string `yaml:"user" envconfig:"DB_USER"`
	Password       string `yaml:"password" envconfig:"DB_PASSWORD"`
	Name           string `yaml:"name" envconfig:"DB_NAME"`
	SSLMode        string `yaml:"sslmode" envconfig:"DB_SSLMODE"`
	MaxConnections int    `yaml:"max_connections" envconfig:"DB_MAX_CONNECTIONS"`
}

// DriverName returns the normalized driver, postgres when unset.
func (c Config) DriverName() string {
	switch d := strings.ToLower(strings.TrimSpace(c.Driver)); d {
	case "", "pg", "postgresql":
		return DriverPostgres
	case "sqlite":
		return DriverSQLite
	default:
		return d
	}
}

// DSN returns the connection string understood by the selected database/sql driver.
func (c Config) DSN() (string, error) {
	switch c.DriverName() {
	case DriverPostgres:
		sslmode := c.SSLMode
		if sslmode == "" {
			sslmode = "disable"
		}
		return fmt.Sprintf("user=%s password=%s host=%s port=%s dbname=%s sslmode=%s",
			c.User, c.Password, c.Host, c.Port, c.Name, sslmode), nil
	case DriverSQLite:
		if strings.TrimSpace(c.Path) == "" {
			return "", fmt.Errorf("database: sqlite3 requires a path")
		}
		return "file:" + c.Path + "?_busy_timeout=5000&_journal_mode=WAL&_foreign_keys=on", nil
	default:
		return "", fmt.Errorf("database: unsupported driver %q", c.Driver)
	}
}

// MigrateURL returns the golang-migrate database URL for the configuration.
func (c Config) MigrateURL() (string, error) {
	switch c.DriverName() {
	case DriverPostgres:
		sslmode := c.SSLMode
		if sslmode == "" {
			sslmode = "disable"
		}
		u := url.URL{
			Scheme:   "postgres",
			User:     url.UserPassword(c.User, c.Password),
			Host:     c.Host + ":" + c.Port,
			Path:     "/" + c.Name,
			RawQuery: "sslmode=" + url.QueryEscape(sslmode),
		}
		return u.String(), nil
	case DriverSQLite:
		if strings.TrimSpace(c.Path) == "" {
			return "", fmt.Errorf("database: sqlite3 requires a path")
		}
		return "sqlite3://" + c.Path, nil
	default:
		return "", fmt.Errorf("database: unsupported driver %q", c.Driver)
	}
}

func (c Config) target() string {
	if c.DriverName() == DriverSQLite {
		return c.Path
	}
	return c.Host + ":" + c.Port + "/" + c.Name
}
