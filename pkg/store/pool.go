package store

import (
	"context"
	"database/sql"
	"strconv"
	"strings"
	"time"

	// Registered drivers: sqlite3, pgx, postgres.
	_ "github.com/jackc/pgx/v5/stdlib"
	_ "github.com/lib/pq"
	_ "github.com/mattn/go-sqlite3"

	"github.com/fluxorio/exchanger/pkg/core"
)

// PoolConfig configures the database connection pool
type PoolConfig struct {
	// Driver is the database/sql driver name: sqlite3, pgx or postgres
	Driver string

	// DSN is the database connection string
	DSN string

	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxLifetime time.Duration
	ConnMaxIdleTime time.Duration
}

// DefaultPoolConfig returns pool defaults for driver. SQLite gets a single
// connection so an in-memory database is shared by every query.
func DefaultPoolConfig(driver, dsn string) PoolConfig {
	cfg := PoolConfig{
		Driver:          driver,
		DSN:             dsn,
		MaxOpenConns:    10,
		MaxIdleConns:    2,
		ConnMaxLifetime: 5 * time.Minute,
		ConnMaxIdleTime: 10 * time.Minute,
	}
	if driver == "sqlite3" {
		cfg.MaxOpenConns = 1
		cfg.MaxIdleConns = 1
		cfg.ConnMaxLifetime = 0
		cfg.ConnMaxIdleTime = 0
	}
	return cfg
}

func invalidConfig(msg string) error {
	return &core.Error{Code: "INVALID_CONFIG", Message: msg}
}

// validate fails fast on a pool configuration sql.Open would accept
func (c PoolConfig) validate() error {
	if c.DSN == "" {
		return invalidConfig("DSN cannot be empty")
	}
	switch c.Driver {
	case "sqlite3", "pgx", "postgres":
	case "":
		return invalidConfig("Driver cannot be empty")
	default:
		return invalidConfig("unsupported driver " + c.Driver)
	}
	if c.MaxOpenConns <= 0 {
		return invalidConfig("MaxOpenConns must be positive")
	}
	if c.MaxIdleConns < 0 {
		return invalidConfig("MaxIdleConns cannot be negative")
	}
	if c.MaxIdleConns > c.MaxOpenConns {
		return invalidConfig("MaxIdleConns cannot exceed MaxOpenConns")
	}
	if c.ConnMaxLifetime < 0 || c.ConnMaxIdleTime < 0 {
		return invalidConfig("connection lifetimes cannot be negative")
	}
	return nil
}

// openDB opens, configures and pings a pool
func openDB(ctx context.Context, cfg PoolConfig) (*sql.DB, error) {
	if err := cfg.validate(); err != nil {
		return nil, err
	}

	db, err := sql.Open(cfg.Driver, cfg.DSN)
	if err != nil {
		return nil, err
	}
	db.SetMaxOpenConns(cfg.MaxOpenConns)
	db.SetMaxIdleConns(cfg.MaxIdleConns)
	db.SetConnMaxLifetime(cfg.ConnMaxLifetime)
	db.SetConnMaxIdleTime(cfg.ConnMaxIdleTime)

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := db.PingContext(pingCtx); err != nil {
		db.Close()
		return nil, err
	}
	return db, nil
}

// rebind rewrites ? placeholders to $n for the postgres drivers
func rebind(driver, query string) string {
	if driver == "sqlite3" {
		return query
	}
	var b strings.Builder
	n := 0
	for _, r := range query {
		if r == '?' {
			n++
			b.WriteByte('$')
			b.WriteString(strconv.Itoa(n))
			continue
		}
		b.WriteRune(r)
	}
	return b.String()
}
