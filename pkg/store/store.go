// Package store keeps fetched rate history in a SQL database.
package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/fluxorio/exchanger/pkg/config"
	"github.com/fluxorio/exchanger/pkg/rates"
)

// ErrNotFound is returned when no rate is stored for a pair
var ErrNotFound = errors.New("store: no rates stored")

const schema = `CREATE TABLE IF NOT EXISTS rates (
	base   VARCHAR(3)       NOT NULL,
	target VARCHAR(3)       NOT NULL,
	day    VARCHAR(10)      NOT NULL,
	rate   DOUBLE PRECISION NOT NULL,
	PRIMARY KEY (base, target, day)
)`

const upsert = `INSERT INTO rates (base, target, day, rate) VALUES (?, ?, ?, ?)
ON CONFLICT (base, target, day) DO UPDATE SET rate = excluded.rate`

// Store persists rate series per currency pair
type Store struct {
	db     *sql.DB
	driver string
}

// Open opens the configured database. The caller should call Migrate before use.
func Open(ctx context.Context, cfg config.StoreConfig) (*Store, error) {
	return OpenWithPool(ctx, DefaultPoolConfig(cfg.Driver, cfg.DSN))
}

// OpenWithPool opens a database with explicit pool settings
func OpenWithPool(ctx context.Context, cfg PoolConfig) (*Store, error) {
	db, err := openDB(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("store: open %s: %w", cfg.Driver, err)
	}
	return &Store{db: db, driver: cfg.Driver}, nil
}

// DB returns the underlying pool
func (s *Store) DB() *sql.DB {
	return s.db
}

// Close closes the pool
func (s *Store) Close() error {
	return s.db.Close()
}

// Migrate creates the schema if it does not exist
func (s *Store) Migrate(ctx context.Context) error {
	if _, err := s.db.ExecContext(ctx, schema); err != nil {
		return fmt.Errorf("store: migrate: %w", err)
	}
	return nil
}

// SaveSeries upserts every point of series in one transaction
func (s *Store) SaveSeries(ctx context.Context, base, target string, series *rates.TimeSeries) (err error) {
	if series.Len() == 0 {
		return nil
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("store: begin: %w", err)
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	stmt, err := tx.PrepareContext(ctx, rebind(s.driver, upsert))
	if err != nil {
		return fmt.Errorf("store: prepare upsert: %w", err)
	}
	defer stmt.Close()

	for i, d := range series.Dates {
		if _, err = stmt.ExecContext(ctx, base, target, rates.FormatDate(d), series.Rates[i]); err != nil {
			return fmt.Errorf("store: save %s/%s %s: %w", base, target, rates.FormatDate(d), err)
		}
	}
	if err = tx.Commit(); err != nil {
		return fmt.Errorf("store: commit: %w", err)
	}
	return nil
}

// LoadSeries returns the stored rates with from <= date <= to, ascending
func (s *Store) LoadSeries(ctx context.Context, base, target string, from, to time.Time) (*rates.TimeSeries, error) {
	query := rebind(s.driver, `SELECT day, rate FROM rates
WHERE base = ? AND target = ? AND day >= ? AND day <= ?
ORDER BY day`)
	rows, err := s.db.QueryContext(ctx, query, base, target, rates.FormatDate(from), rates.FormatDate(to))
	if err != nil {
		return nil, fmt.Errorf("store: load %s/%s: %w", base, target, err)
	}
	defer rows.Close()

	var points []rates.Point
	for rows.Next() {
		var (
			day  string
			rate float64
		)
		if err := rows.Scan(&day, &rate); err != nil {
			return nil, fmt.Errorf("store: scan: %w", err)
		}
		d, err := rates.ParseDate(day)
		if err != nil {
			return nil, err
		}
		points = append(points, rates.Point{Date: d, Rate: rate})
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("store: load %s/%s: %w", base, target, err)
	}
	return rates.FromPoints(points), nil
}

// Latest returns the most recent stored rate for the pair
func (s *Store) Latest(ctx context.Context, base, target string) (rates.Point, error) {
	query := rebind(s.driver, `SELECT day, rate FROM rates
WHERE base = ? AND target = ?
ORDER BY day DESC LIMIT 1`)

	var (
		day  string
		rate float64
	)
	err := s.db.QueryRowContext(ctx, query, base, target).Scan(&day, &rate)
	if errors.Is(err, sql.ErrNoRows) {
		return rates.Point{}, ErrNotFound
	}
	if err != nil {
		return rates.Point{}, fmt.Errorf("store: latest %s/%s: %w", base, target, err)
	}
	d, err := rates.ParseDate(day)
	if err != nil {
		return rates.Point{}, err
	}
	return rates.Point{Date: d, Rate: rate}, nil
}
