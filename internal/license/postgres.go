package license

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/classreel/classreel/internal/config"
	"github.com/classreel/classreel/internal/domain"
)

const pgSchema = `
CREATE TABLE IF NOT EXISTS license_slots (
	license_key TEXT PRIMARY KEY,
	used        INTEGER NOT NULL DEFAULT 0
)`

// PostgresLedger accounts for slots in a counter table.
// The reservation is a single conditional upsert, atomic across processes.
type PostgresLedger struct {
	pool      *pgxpool.Pool
	validator *Validator
}

// NewPostgresLedger connects to PostgreSQL and ensures the schema exists.
func NewPostgresLedger(ctx context.Context, cfg config.LedgerConfig, validator *Validator) (*PostgresLedger, error) {
	pool, err := pgxpool.New(ctx, cfg.DSN())
	if err != nil {
		return nil, fmt.Errorf("connecting to postgres: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("pinging postgres: %w", err)
	}
	if _, err := pool.Exec(ctx, pgSchema); err != nil {
		pool.Close()
		return nil, fmt.Errorf("creating ledger schema: %w", err)
	}
	return &PostgresLedger{pool: pool, validator: validator}, nil
}

// Close releases the connection pool.
func (l *PostgresLedger) Close() error {
	l.pool.Close()
	return nil
}

// Reserve claims one slot with a conditional upsert.
// Zero rows affected means the key is at its limit.
func (l *PostgresLedger) Reserve(ctx context.Context, key string) error {
	limit := l.validator.LimitFor(key)
	if limit <= 0 {
		return domain.ErrLicenseLimitReached
	}

	tag, err := l.pool.Exec(ctx, `
		INSERT INTO license_slots (license_key, used) VALUES ($1, 1)
		ON CONFLICT (license_key)
		DO UPDATE SET used = license_slots.used + 1
		WHERE license_slots.used < $2`,
		key, limit,
	)
	if err != nil {
		return fmt.Errorf("reserving license %s: %w", key, err)
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrLicenseLimitReached
	}
	return nil
}

// Release returns one slot, never dropping below zero.
func (l *PostgresLedger) Release(ctx context.Context, key string) error {
	_, err := l.pool.Exec(ctx, `
		UPDATE license_slots SET used = used - 1
		WHERE license_key = $1 AND used > 0`,
		key,
	)
	if err != nil {
		return fmt.Errorf("releasing license %s: %w", key, err)
	}
	return nil
}

// Count reports the used slots for a key.
func (l *PostgresLedger) Count(ctx context.Context, key string) (int, error) {
	var used int
	err := l.pool.QueryRow(ctx,
		`SELECT used FROM license_slots WHERE license_key = $1`, key,
	).Scan(&used)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return 0, nil
		}
		return 0, fmt.Errorf("reading license counter %s: %w", key, err)
	}
	return used, nil
}

// Seed sets the counter for a key to the given value.
func (l *PostgresLedger) Seed(ctx context.Context, key string, used int) error {
	_, err := l.pool.Exec(ctx, `
		INSERT INTO license_slots (license_key, used) VALUES ($1, $2)
		ON CONFLICT (license_key) DO UPDATE SET used = $2`,
		key, used,
	)
	if err != nil {
		return fmt.Errorf("seeding license counter %s: %w", key, err)
	}
	return nil
}

// Ensure PostgresLedger implements Ledger.
var _ Ledger = (*PostgresLedger)(nil)
