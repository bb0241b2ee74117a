package sqlite

import (
	"fmt"
	"net/url"
	"strings"
	"time"
)

// Config captures SQLite store configuration derived from application
// settings.
type Config struct {
	// Path is the database location or ":memory:" for in-memory deployments.
	Path string

	// MaxOpenConns controls the pool size exposed by database/sql.
	MaxOpenConns int

	// BusyTimeout configures the sqlite busy timeout.
	BusyTimeout time.Duration
}

const defaultBusyTimeout = 5 * time.Second

func (c *Config) normalize() {
	if c.MaxOpenConns <= 0 {
		c.MaxOpenConns = 1
	}
	if c.BusyTimeout <= 0 {
		c.BusyTimeout = defaultBusyTimeout
	}
}

func buildDSN(cfg *Config) (string, error) {
	path := strings.TrimSpace(cfg.Path)
	if path == "" {
		return "", fmt.Errorf("sqlite: database path is required")
	}
	if path == ":memory:" {
		return "file::memory:?mode=memory&cache=shared", nil
	}
	return "file:" + url.PathEscape(path) + "?_pragma=journal_mode(WAL)", nil
}
