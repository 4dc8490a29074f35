/*
main.go - Application entry point

PURPOSE:
  Initializes and starts the studio reservation and loyalty server.
  Handles configuration, dependency injection, and graceful shutdown.

STARTUP SEQUENCE:
  1. Load configuration (YAML + .env + ${VAR} expansion)
  2. Initialize SQLite store
  3. Connect optional Redis (cross-instance locks) and AMQP (events)
  4. Build the reservation engine and the rewards service
  5. Seed the reward configuration if none is stored
  6. Start the expiry sweeper and the HTTP server

ENVIRONMENT:
  STUDIO_CONFIG_PATH   Path of the YAML config (default: configs/config.yaml)
  Any ${VAR} referenced by the YAML, e.g. REDIS_PASSWORD, AMQP_URL

GRACEFUL SHUTDOWN:
  On SIGINT/SIGTERM:
  1. Stop accepting new connections
  2. Wait for active requests to complete (30s timeout)
  3. Stop the sweeper and drain background accruals/notifications
  4. Close publisher, Redis and database
  5. Exit

SEE ALSO:
  - api/server.go: Router configuration
  - config/config.go: Configuration schema
  - store/sqlite/sqlite.go: Database implementation
*/
package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"github.com/warp/studio-engine/api"
	"github.com/warp/studio-engine/booking"
	"github.com/warp/studio-engine/config"
	"github.com/warp/studio-engine/factory"
	"github.com/warp/studio-engine/generic"
	"github.com/warp/studio-engine/notify"
	"github.com/warp/studio-engine/rewards"
	"github.com/warp/studio-engine/store/redislock"
	"github.com/warp/studio-engine/store/sqlite"
)

func main() {
	cfg, err := config.Load(os.Getenv("STUDIO_CONFIG_PATH"))
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load config: %v\n", err)
		os.Exit(1)
	}

	logger := newLogger(cfg)

	// Initialize store
	store, err := sqlite.New(cfg.Database.Path)
	if err != nil {
		logger.Fatal().Err(err).Str("path", cfg.Database.Path).Msg("failed to initialize database")
	}
	defer store.Close()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// Optional Redis locks
	var locker generic.Locker
	var rdb *redis.Client
	if cfg.RedisEnabled() {
		rdb = redis.NewClient(&redis.Options{Addr: cfg.Redis.Address, Password: cfg.Redis.Password, DB: cfg.Redis.DB})
		rl := redislock.New(rdb, redislock.Options{TTL: cfg.LockTTL()}, logger)
		if err := rl.Ping(ctx); err != nil {
			logger.Fatal().Err(err).Str("address", cfg.Redis.Address).Msg("failed to connect to redis")
		}
		locker = rl
		defer rdb.Close()
		logger.Info().Str("address", cfg.Redis.Address).Msg("using redis locks")
	}

	// Optional AMQP events
	var publisher notify.Publisher = notify.NopPublisher{}
	if cfg.AMQPEnabled() {
		publisher = notify.NewAMQPPublisher(cfg.AMQP.URL, cfg.AMQP.Exchange, logger)
		logger.Info().Str("exchange", cfg.AMQP.Exchange).Msg("publishing reservation events")
	}
	defer publisher.Close()

	engine := booking.NewEngine(store, locker, nil)
	svc := rewards.NewService(store.Ledger(), store, locker, nil, logger)

	if err := seedRewards(ctx, svc, cfg, logger); err != nil {
		logger.Fatal().Err(err).Msg("failed to seed reward configuration")
	}

	scheduler := api.NewSweepScheduler(svc, logger)
	scheduler.Interval = cfg.SweepInterval()
	scheduler.Enabled = cfg.Sweeper.Enabled

	handler := api.NewHandler(api.Deps{
		Engine:    engine,
		Rewards:   svc,
		Publisher: publisher,
		Scheduler: scheduler,
		Resetter:  store,
		Logger:    logger,
	})

	rps, burst := cfg.RateLimit()
	router := api.NewRouter(handler, api.RouterOptions{
		Logger:         logger,
		CORSOrigins:    cfg.CORSOrigins(),
		RateLimitRPS:   rps,
		RateLimitBurst: burst,
	})

	server := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Port()),
		Handler:      router,
		ReadTimeout:  cfg.ReadTimeout(),
		WriteTimeout: cfg.WriteTimeout(),
		IdleTimeout:  60 * time.Second,
	}

	scheduler.Start()

	// Start server in goroutine
	go func() {
		logger.Info().Int("port", cfg.Port()).Msg("server starting")
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatal().Err(err).Msg("server failed")
		}
	}()

	<-ctx.Done()
	logger.Info().Msg("shutting down server")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error().Err(err).Msg("server forced to shutdown")
	}
	scheduler.Stop()
	handler.Wait()

	logger.Info().Msg("server stopped")
}

func newLogger(cfg *config.Config) zerolog.Logger {
	zerolog.SetGlobalLevel(cfg.LogLevel())
	if cfg.JSONLogs() {
		return zerolog.New(os.Stdout).With().Timestamp().Logger()
	}
	output := zerolog.ConsoleWriter{Out: os.Stdout, TimeFormat: time.RFC3339}
	return zerolog.New(output).With().Timestamp().Logger()
}

// seedRewards stores the configured (or default) reward configuration when
// the database has none yet.
func seedRewards(ctx context.Context, svc *rewards.Service, cfg *config.Config, logger zerolog.Logger) error {
	seed := rewards.DefaultConfig()
	if path := cfg.Rewards.SeedPath; path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return err
		}
		seed, err = factory.NewConfigFactory().ParseConfigYAML(data)
		if err != nil {
			return err
		}
	}

	written, err := svc.Seed(ctx, seed)
	if err != nil {
		return err
	}
	if written {
		logger.Info().Int("tiers", len(seed.Tiers)).Msg("seeded reward configuration")
	}
	return nil
}
