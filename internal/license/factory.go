package license

import (
	"context"
	"fmt"

	"github.com/rs/zerolog"

	"github.com/classreel/classreel/internal/config"
	"github.com/classreel/classreel/internal/repository"
)

// Seeder is implemented by ledgers whose counters can be aligned with the
// user records already in the store.
type Seeder interface {
	Seed(ctx context.Context, key string, used int) error
}

// NewLedger creates the ledger selected by configuration.
// The returned closer is a no-op for stateless backends.
func NewLedger(
	ctx context.Context,
	cfg config.LedgerConfig,
	validator *Validator,
	users repository.UserRepository,
	cache repository.Cache,
	logger zerolog.Logger,
) (Ledger, func() error, error) {
	noop := func() error { return nil }

	switch cfg.Driver {
	case "scan":
		return NewScanLedger(users, validator), noop, nil

	case "redis":
		if cache == nil {
			return nil, nil, fmt.Errorf("redis ledger requires a redis cache")
		}
		return NewRedisLedger(cache, validator), noop, nil

	case "postgres":
		ledger, err := NewPostgresLedger(ctx, cfg, validator)
		if err != nil {
			return nil, nil, err
		}
		logger.Info().Str("driver", "postgres").Msg("license ledger ready")
		return ledger, ledger.Close, nil

	case "sqlite":
		ledger, err := NewSqliteLedger(ctx, cfg, validator)
		if err != nil {
			return nil, nil, err
		}
		logger.Info().Str("driver", "sqlite").Str("path", cfg.Path).Msg("license ledger ready")
		return ledger, ledger.Close, nil

	default:
		return nil, nil, fmt.Errorf("unknown ledger driver %q", cfg.Driver)
	}
}

// SeedFromStore aligns a seedable ledger's counters with the user records
// currently in the store. Counting ledgers drift when users are created
// outside this deployment; run this after switching drivers.
func SeedFromStore(ctx context.Context, ledger Ledger, validator *Validator, users repository.UserRepository) error {
	seeder, ok := ledger.(Seeder)
	if !ok {
		return nil
	}
	for _, key := range validator.Keys() {
		used, err := users.CountByLicenseKey(ctx, key)
		if err != nil {
			return fmt.Errorf("counting users for %s: %w", key, err)
		}
		if err := seeder.Seed(ctx, key, used); err != nil {
			return err
		}
	}
	return nil
}
