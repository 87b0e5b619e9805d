package postgres

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/poiesic/clinicalner/core"
)

// Config holds PostgreSQL connection settings.
type Config struct {
	Host     string `toml:"host"`
	Port     int    `toml:"port"`
	User     string `toml:"user"`
	Password string `toml:"password"`
	Database string `toml:"database"`
	SSLMode  string `toml:"sslmode"`

	// Table is the notes table. Default: clinical_notes
	Table string `toml:"table"`

	// MaxConns caps open connections. The pipeline is sequential, so one suffices.
	MaxConns int `toml:"max_conns"`

	// ConnectTimeout bounds the initial ping.
	ConnectTimeout time.Duration `toml:"-"`
}

// DefaultConfig returns settings for a local development database.
func DefaultConfig() *Config {
	return &Config{
		Host:           "localhost",
		Port:           5432,
		User:           "postgres",
		Database:       "postgres",
		SSLMode:        "disable",
		Table:          core.NotesTable,
		MaxConns:       1,
		ConnectTimeout: 10 * time.Second,
	}
}

// LoadFromEnv overrides fields from <prefix>_HOST, _PORT, _USER, _PASSWORD,
// _NAME (or _DATABASE) and _SSLMODE. Unset variables leave fields unchanged.
func (c *Config) LoadFromEnv(prefix string) error {
	if host := os.Getenv(prefix + "_HOST"); host != "" {
		c.Host = host
	}
	if port := os.Getenv(prefix + "_PORT"); port != "" {
		p, err := strconv.Atoi(port)
		if err != nil {
			return fmt.Errorf("invalid %s_PORT %q: %w", prefix, port, err)
		}
		c.Port = p
	}
	if user := os.Getenv(prefix + "_USER"); user != "" {
		c.User = user
	}
	if password := os.Getenv(prefix + "_PASSWORD"); password != "" {
		c.Password = password
	}
	if database := os.Getenv(prefix + "_DATABASE"); database != "" {
		c.Database = database
	}
	if database := os.Getenv(prefix + "_NAME"); database != "" {
		c.Database = database
	}
	if sslMode := os.Getenv(prefix + "_SSLMODE"); sslMode != "" {
		c.SSLMode = sslMode
	}
	return nil
}

// DSN returns the key/value connection string understood by lib/pq.
func (c *Config) DSN() string {
	return fmt.Sprintf("host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		dsnValue(c.Host), c.Port, dsnValue(c.User), dsnValue(c.Password), dsnValue(c.Database), dsnValue(c.SSLMode))
}

// Validate checks that the configuration is usable.
func (c *Config) Validate() error {
	if c.Table == "" {
		c.Table = core.NotesTable
	}
	if c.Host == "" {
		return errors.New("postgres config: Host is required")
	}
	if c.Port <= 0 || c.Port > 65535 {
		return errors.New("postgres config: Port must be between 1 and 65535")
	}
	if c.Database == "" {
		return errors.New("postgres config: Database is required")
	}
	if c.MaxConns < 0 {
		return errors.New("postgres config: MaxConns must not be negative")
	}
	return nil
}

// dsnValue quotes v when it is empty or contains characters significant to the DSN parser.
func dsnValue(v string) string {
	if v != "" && !strings.ContainsAny(v, ` '\`) {
		return v
	}
	v = strings.ReplaceAll(v, `\`, `\\`)
	v = strings.ReplaceAll(v, `'`, `\'`)
	return "'" + v + "'"
}
