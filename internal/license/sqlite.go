package license

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	_ "modernc.org/sqlite"

	"github.com/classreel/classreel/internal/config"
	"github.com/classreel/classreel/internal/domain"
)

const sqliteSchema = `
CREATE TABLE IF NOT EXISTS license_slots (
	license_key TEXT PRIMARY KEY,
	used        INTEGER NOT NULL DEFAULT 0
)`

// SqliteLedger accounts for slots in an embedded SQLite counter table.
// Suitable for single-node deployments that want slot accounting to survive
// restarts without running a database server.
type SqliteLedger struct {
	db        *sql.DB
	validator *Validator
}

// NewSqliteLedger opens the database file and ensures the schema exists.
func NewSqliteLedger(ctx context.Context, cfg config.LedgerConfig, validator *Validator) (*SqliteLedger, error) {
	db, err := sql.Open("sqlite", cfg.Path)
	if err != nil {
		return nil, fmt.Errorf("opening sqlite %s: %w", cfg.Path, err)
	}
	// SQLite handles one writer at a time.
	db.SetMaxOpenConns(1)

	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("pinging sqlite: %w", err)
	}
	if _, err := db.ExecContext(ctx, sqliteSchema); err != nil {
		db.Close()
		return nil, fmt.Errorf("creating ledger schema: %w", err)
	}
	return &SqliteLedger{db: db, validator: validator}, nil
}

// Close closes the database file.
func (l *SqliteLedger) Close() error {
	return l.db.Close()
}

// Reserve claims one slot with a conditional upsert.
func (l *SqliteLedger) Reserve(ctx context.Context, key string) error {
	limit := l.validator.LimitFor(key)
	if limit <= 0 {
		return domain.ErrLicenseLimitReached
	}

	res, err := l.db.ExecContext(ctx, `
		INSERT INTO license_slots (license_key, used) VALUES (?, 1)
		ON CONFLICT (license_key)
		DO UPDATE SET used = used + 1
		WHERE used < ?`,
		key, limit,
	)
	if err != nil {
		return fmt.Errorf("reserving license %s: %w", key, err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("reserving license %s: %w", key, err)
	}
	if affected == 0 {
		return domain.ErrLicenseLimitReached
	}
	return nil
}

// Release returns one slot, never dropping below zero.
func (l *SqliteLedger) Release(ctx context.Context, key string) error {
	_, err := l.db.ExecContext(ctx, `
		UPDATE license_slots SET used = used - 1
		WHERE license_key = ? AND used > 0`,
		key,
	)
	if err != nil {
		return fmt.Errorf("releasing license %s: %w", key, err)
	}
	return nil
}

// Count reports the used slots for a key.
func (l *SqliteLedger) Count(ctx context.Context, key string) (int, error) {
	var used int
	err := l.db.QueryRowContext(ctx,
		`SELECT used FROM license_slots WHERE license_key = ?`, key,
	).Scan(&used)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return 0, nil
		}
		return 0, fmt.Errorf("reading license counter %s: %w", key, err)
	}
	return used, nil
}

// Seed sets the counter for a key to the given value.
func (l *SqliteLedger) Seed(ctx context.Context, key string, used int) error {
	_, err := l.db.ExecContext(ctx, `
		INSERT INTO license_slots (license_key, used) VALUES (?, ?)
		ON CONFLICT (license_key) DO UPDATE SET used = excluded.used`,
		key, used,
	)
	if err != nil {
		return fmt.Errorf("seeding license counter %s: %w", key, err)
	}
	return nil
}

// Ensure SqliteLedger implements Ledger.
var _ Ledger = (*SqliteLedger)(nil)
