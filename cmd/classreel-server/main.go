// Package main is the entry point for the ClassReel server.
// ClassReel is a school video-sharing backend persisting everything in a
// single object-storage bucket.
package main

import (
	"context"
	"errors"
	"flag"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	goredis "github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/classreel/classreel/internal/blobstore"
	cachememory "github.com/classreel/classreel/internal/cache/memory"
	cacheredis "github.com/classreel/classreel/internal/cache/redis"
	"github.com/classreel/classreel/internal/config"
	"github.com/classreel/classreel/internal/domain"
	"github.com/classreel/classreel/internal/license"
	"github.com/classreel/classreel/internal/lock"
	"github.com/classreel/classreel/internal/metrics"
	"github.com/classreel/classreel/internal/repository"
	"github.com/classreel/classreel/internal/repository/blob"
	"github.com/classreel/classreel/internal/service"
)

// Version information (set at build time)
var (
	Version   = "dev"
	BuildTime = "unknown"
	GitCommit = "unknown"
)

func main() {
	configPath := flag.String("config", "", "path to config file")
	flag.Parse()

	// .env is optional; environment variables win either way.
	_ = godotenv.Load()

	cfg := config.MustLoad(*configPath)
	logger := setupLogger(cfg.Logging)
	log.Logger = logger

	logger.Info().
		Str("version", Version).
		Str("build_time", BuildTime).
		Str("git_commit", GitCommit).
		Msg("starting classreel server")

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	app, err := buildApp(ctx, cfg, logger)
	if err != nil {
		logger.Fatal().Err(err).Msg("startup failed")
	}
	defer app.Close()

	logger.Info().
		Str("ledger", cfg.Ledger.Driver).
		Str("lock", cfg.Lock.Driver).
		Str("listing", cfg.Listing.Mode).
		Msg("services ready")

	if app.MetricsServer != nil {
		go func() {
			if err := app.MetricsServer.Start(); err != nil {
				logger.Error().Err(err).Msg("metrics server failed")
				stop()
			}
		}()
		defer func() {
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
			defer cancel()
			if err := app.MetricsServer.Shutdown(shutdownCtx); err != nil {
				logger.Warn().Err(err).Msg("metrics server shutdown failed")
			}
		}()
	}

	<-ctx.Done()
	logger.Info().Msg("shutting down")
}

// App holds the wired application components.
// Transport layers attach to Users and Videos; the binary itself serves
// metrics and health.
type App struct {
	Store         blobstore.Store
	Users         *service.UserService
	Videos        *service.VideoService
	Ledger        license.Ledger
	MetricsServer *metrics.Server

	closers []func() error
	logger  zerolog.Logger
}

// Close releases resources in reverse acquisition order.
func (a *App) Close() {
	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i](); err != nil {
			a.logger.Warn().Err(err).Msg("close failed")
		}
	}
}

// buildApp wires every component from configuration.
func buildApp(ctx context.Context, cfg *config.Config, logger zerolog.Logger) (*App, error) {
	app := &App{logger: logger}

	var m *metrics.Metrics
	if cfg.Metrics.Enabled {
		m = metrics.New()
	}

	s3store, err := blobstore.NewS3Store(ctx, cfg.S3, logger)
	if err != nil {
		return nil, err
	}

	// The bucket is the only persistence layer; refuse to start without it.
	if err := s3store.Ping(ctx); err != nil {
		if errors.Is(err, domain.ErrStoreUnavailable) {
			logger.Error().Str("bucket", cfg.S3.Bucket).Msg("blob store unreachable")
		}
		return nil, err
	}
	logger.Info().Str("bucket", cfg.S3.Bucket).Str("endpoint", cfg.S3.Endpoint).Msg("blob store ready")

	var store blobstore.Store = s3store
	if m != nil {
		store = metrics.InstrumentStore(s3store, m)
	}
	app.Store = store

	// Shared Redis client for locks, caches and the redis ledger.
	var redisClient *goredis.Client
	if cfg.Redis.Enabled {
		redisClient = goredis.NewClient(&goredis.Options{
			Addr:        cfg.Redis.Addr(),
			Password:    cfg.Redis.Password,
			DB:          cfg.Redis.DB,
			PoolSize:    cfg.Redis.PoolSize,
			DialTimeout: cfg.Redis.DialTimeout,
		})
		if err := redisClient.Ping(ctx).Err(); err != nil {
			return nil, err
		}
		app.closers = append(app.closers, redisClient.Close)
		logger.Info().Str("addr", cfg.Redis.Addr()).Msg("redis ready")
	}

	locker := buildLocker(cfg.Lock, redisClient, logger)

	memCache := cachememory.NewCache()
	app.closers = append(app.closers, func() error { memCache.Stop(); return nil })

	// sharedCache backs reset tokens and, when redis is on, the license
	// counters shared across instances.
	var sharedCache repository.Cache = memCache
	if redisClient != nil {
		sharedCache = cacheredis.NewCacheFromClient(redisClient)
	}

	var recordCache repository.Cache
	switch cfg.Cache.Driver {
	case "memory":
		recordCache = memCache
	case "redis":
		recordCache = sharedCache
	}

	userRepo := blob.NewUserRepository(store, recordCache, cfg.Cache.TTL, logger)
	videoRepo := blob.NewVideoRepository(store, cfg.Listing, logger)

	licenseValidator := license.NewValidator(cfg.Licenses)
	ledger, closeLedger, err := license.NewLedger(ctx, cfg.Ledger, licenseValidator, userRepo, sharedCache, logger)
	if err != nil {
		return nil, err
	}
	app.closers = append(app.closers, closeLedger)
	app.Ledger = ledger

	// Counting backends drift from records written by other deployments;
	// align them on every boot.
	if err := license.SeedFromStore(ctx, ledger, licenseValidator, userRepo); err != nil {
		return nil, err
	}

	app.Users = service.NewUserService(userRepo, videoRepo, licenseValidator, ledger, locker, cfg.Lock.TTL, sharedCache, m, logger)
	app.Videos = service.NewVideoService(videoRepo, userRepo, locker, cfg.Lock.TTL, m, logger)

	if m != nil {
		app.MetricsServer = metrics.NewServer(cfg.Metrics, m, store, logger)
	}

	return app, nil
}

// buildLocker selects the lock backend.
func buildLocker(cfg config.LockConfig, redisClient *goredis.Client, logger zerolog.Logger) lock.Locker {
	switch cfg.Driver {
	case "redis":
		return lock.NewRedisLocker(redisClient)
	case "noop":
		logger.Warn().Msg("noop locks selected: concurrent registrations may race")
		return lock.NewNoopLocker()
	default:
		return lock.NewMemoryLocker()
	}
}

// setupLogger configures the global zerolog logger.
func setupLogger(cfg config.LoggingConfig) zerolog.Logger {
	level, err := zerolog.ParseLevel(strings.ToLower(cfg.Level))
	if err != nil {
		level = zerolog.InfoLevel
	}
	zerolog.TimeFieldFormat = cfg.TimeFormat

	out := os.Stdout
	if cfg.Output == "stderr" {
		out = os.Stderr
	}

	if cfg.Format == "console" {
		return zerolog.New(zerolog.ConsoleWriter{Out: out, TimeFormat: cfg.TimeFormat}).
			Level(level).With().Timestamp().Logger()
	}
	return zerolog.New(out).Level(level).With().Timestamp().Logger()
}
