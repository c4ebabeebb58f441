// File path: internal/store/config.go
package store

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

// Config controls the SQLite catalog connection pool.
type Config struct {
	Path string

	MaxOpenConns int
	MaxIdleConns int

	ConnMaxLifetime time.Duration
	ConnMaxIdleTime time.Duration
	BusyTimeout     time.Duration
}

// LoadConfig reads the catalog configuration from the environment and
// backfills defaults.
func LoadConfig() (Config, error) {
	cfg := Config{Path: strings.TrimSpace(os.Getenv("CATALOG_PATH"))}
	var err error
	if cfg.MaxOpenConns, err = envInt("CATALOG_MAX_OPEN_CONNS"); err != nil {
		return Config{}, err
	}
	if cfg.MaxIdleConns, err = envInt("CATALOG_MAX_IDLE_CONNS"); err != nil {
		return Config{}, err
	}
	if cfg.ConnMaxLifetime, err = envDuration("CATALOG_CONN_MAX_LIFETIME"); err != nil {
		return Config{}, err
	}
	if cfg.ConnMaxIdleTime, err = envDuration("CATALOG_CONN_MAX_IDLE_TIME"); err != nil {
		return Config{}, err
	}
	if cfg.BusyTimeout, err = envDuration("CATALOG_BUSY_TIMEOUT"); err != nil {
		return Config{}, err
	}
	cfg.applyDefaults()
	return cfg, nil
}

func (c *Config) applyDefaults() {
	if strings.TrimSpace(c.Path) == "" {
		c.Path = "data/catalog.db"
	}
	if c.MaxOpenConns <= 0 {
		c.MaxOpenConns = 4
	}
	if c.MaxIdleConns <= 0 {
		c.MaxIdleConns = 2
	}
	if c.ConnMaxLifetime <= 0 {
		c.ConnMaxLifetime = time.Hour
	}
	if c.ConnMaxIdleTime <= 0 {
		c.ConnMaxIdleTime = 15 * time.Minute
	}
	if c.BusyTimeout <= 0 {
		c.BusyTimeout = 5 * time.Second
	}
}

func envInt(key string) (int, error) {
	raw := strings.TrimSpace(os.Getenv(key))
	if raw == "" {
		return 0, nil
	}
	value, err := strconv.Atoi(raw)
	if err != nil {
		return 0, fmt.Errorf("parse %s: %w", key, err)
	}
	return value, nil
}

func envDuration(key string) (time.Duration, error) {
	raw := strings.TrimSpace(os.Getenv(key))
	if raw == "" {
		return 0, nil
	}
	value, err := time.ParseDuration(raw)
	if err != nil {
		return 0, fmt.Errorf("parse %s: %w", key, err)
	}
	return value, nil
}
