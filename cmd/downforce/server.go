package main

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/coder/quartz"
	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"
	"golang.org/x/time/rate"

	"github.com/lox/downforce/cmd/downforce/shared"
	"github.com/lox/downforce/internal/config"
	"github.com/lox/downforce/internal/janitor"
	"github.com/lox/downforce/internal/randutil"
	"github.com/lox/downforce/internal/room"
	"github.com/lox/downforce/internal/server"
	"github.com/lox/downforce/internal/store"
)

// idleClientTimeout is how long a client's rate-limit bucket is kept
// after its last request.
const idleClientTimeout = 10 * time.Minute

// ServerCmd runs the HTTP API.
type ServerCmd struct {
	Config      string `kong:"default='downforce.hcl',help='Path to the HCL config file'"`
	Addr        string `kong:"help='Listen address, overrides the config file (host:port)'"`
	Debug       bool   `kong:"help='Enable debug logging'"`
	JSONLogs    bool   `kong:"name='json-logs',help='Log JSON instead of console output'"`
	Seed        *int64 `kong:"help='Deterministic RNG seed for room codes (optional)'"`
	Backend     string `kong:"help='Room store backend (memory or postgres), overrides the config file'"`
	DatabaseURL string `kong:"name='database-url',env='DATABASE_URL',help='Postgres connection string'"`
	Snapshot    string `kong:"help='Snapshot file for the memory backend'"`
}

func (c *ServerCmd) Run() error {
	cfg, err := config.Load(c.Config)
	if err != nil {
		return err
	}
	if err := c.applyOverrides(cfg); err != nil {
		return err
	}
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}

	logger := c.logger(cfg)
	gin.SetMode(gin.ReleaseMode)

	ctx := shared.SetupSignalHandlerWithLogger(logger)
	clock := quartz.NewReal()

	st, closeStore, err := openStore(ctx, cfg, clock, logger)
	if err != nil {
		return err
	}
	defer closeStore()

	roomCfg := room.Config{
		TTL:          cfg.Rooms.TTLDuration,
		MaxAttempts:  cfg.Rooms.MaxAttempts,
		CodeAttempts: cfg.Rooms.CodeAttempts,
		Clock:        clock,
	}
	if c.Seed != nil {
		logger.Info().Int64("seed", *c.Seed).Msg("Using deterministic seed for room codes")
		roomCfg.RandSource = randutil.NewLocked(*c.Seed)
	}
	rooms := room.NewService(st, logger, roomCfg)

	limiter := server.NewRateLimiter(rate.Limit(cfg.Server.RateLimit), cfg.Server.RateBurst, clock)
	srv := server.New(rooms, limiter, logger, server.Config{
		Address:     cfg.ListenAddress(),
		CORSOrigins: cfg.Server.CORSOrigins,
		RateLimit:   rate.Limit(cfg.Server.RateLimit),
		RateBurst:   cfg.Server.RateBurst,
	})

	tasks := []janitor.Task{
		{Name: "sweep_rooms", Run: func(ctx context.Context) error {
			removed, err := st.Sweep(ctx)
			if removed > 0 {
				logger.Debug().Int("removed", removed).Msg("Swept expired rooms")
			}
			return err
		}},
		{Name: "prune_rate_limits", Run: func(context.Context) error {
			limiter.Prune(idleClientTimeout)
			return nil
		}},
	}
	if mem, ok := st.(*store.MemoryStore); ok && cfg.Store.SnapshotPath != "" {
		tasks = append(tasks, janitor.Task{Name: "snapshot", Run: func(context.Context) error {
			_, err := mem.SaveSnapshot(cfg.Store.SnapshotPath)
			return err
		}})
	}
	jan := janitor.New(clock, cfg.Store.SweepIntervalDuration, logger, tasks...)

	logger.Info().
		Str("address", cfg.ListenAddress()).
		Str("backend", cfg.Store.Backend).
		Dur("room_ttl", cfg.Rooms.TTLDuration).
		Float64("rate_limit", cfg.Server.RateLimit).
		Int("rate_burst", cfg.Server.RateBurst).
		Str("version", version).
		Msg("Starting Downforce server")

	g, gctx := errgroup.WithContext(ctx)
	g.Go(srv.Start)
	g.Go(func() error { return jan.Run(gctx) })
	g.Go(func() error {
		<-gctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeoutDuration)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})

	err = g.Wait()
	if mem, ok := st.(*store.MemoryStore); ok && cfg.Store.SnapshotPath != "" {
		n, snapErr := mem.SaveSnapshot(cfg.Store.SnapshotPath)
		if snapErr != nil {
			logger.Error().Err(snapErr).Msg("Failed to write final snapshot")
		} else {
			logger.Info().Int("rooms", n).Str("path", cfg.Store.SnapshotPath).Msg("Wrote final snapshot")
		}
	}
	if err != nil && !errors.Is(err, context.Canceled) {
		return err
	}
	logger.Info().Msg("Server stopped")
	return nil
}

func (c *ServerCmd) applyOverrides(cfg *config.Config) error {
	if c.Addr != "" {
		host, port, err := splitHostPort(c.Addr)
		if err != nil {
			return fmt.Errorf("invalid --addr: %w", err)
		}
		cfg.Server.Address = host
		cfg.Server.Port = port
	}
	if c.Backend != "" {
		cfg.Store.Backend = c.Backend
	}
	if c.DatabaseURL != "" {
		cfg.Store.DatabaseURL = c.DatabaseURL
	}
	if c.Snapshot != "" {
		cfg.Store.SnapshotPath = c.Snapshot
	}
	if c.Debug {
		cfg.Server.LogLevel = "debug"
	}
	return nil
}

func (c *ServerCmd) logger(cfg *config.Config) zerolog.Logger {
	level, err := zerolog.ParseLevel(cfg.Server.LogLevel)
	if err != nil {
		level = zerolog.InfoLevel
	}
	if c.JSONLogs {
		return shared.SetupStructuredLogger(level)
	}
	return shared.SetupLogger(level)
}

func openStore(ctx context.Context, cfg *config.Config, clock quartz.Clock, logger zerolog.Logger) (store.Store, func(), error) {
	switch cfg.Store.Backend {
	case config.BackendPostgres:
		pg, err := store.NewPostgresStore(ctx, cfg.Store.DatabaseURL, clock, logger)
		if err != nil {
			return nil, nil, fmt.Errorf("open postgres store: %w", err)
		}
		return pg, func() { _ = pg.Close() }, nil
	default:
		mem := store.NewMemoryStore(clock, logger)
		if cfg.Store.SnapshotPath != "" {
			n, err := mem.LoadSnapshot(cfg.Store.SnapshotPath)
			if err != nil {
				return nil, nil, fmt.Errorf("load snapshot: %w", err)
			}
			logger.Info().Int("rooms", n).Str("path", cfg.Store.SnapshotPath).Msg("Restored rooms from snapshot")
		}
		return mem, func() { _ = mem.Close() }, nil
	}
}
