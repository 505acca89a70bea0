package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os/signal"
	"syscall"

	"golang.org/x/sync/errgroup"

	"github.com/jensholdgaard/player-auction/internal/admin"
	"github.com/jensholdgaard/player-auction/internal/archive"
	"github.com/jensholdgaard/player-auction/internal/auction"
	"github.com/jensholdgaard/player-auction/internal/audit"
	"github.com/jensholdgaard/player-auction/internal/auth"
	"github.com/jensholdgaard/player-auction/internal/bot"
	"github.com/jensholdgaard/player-auction/internal/clock"
	"github.com/jensholdgaard/player-auction/internal/config"
	"github.com/jensholdgaard/player-auction/internal/health"
	"github.com/jensholdgaard/player-auction/internal/leader"
	"github.com/jensholdgaard/player-auction/internal/lifecycle"
	"github.com/jensholdgaard/player-auction/internal/ratelimit"
	"github.com/jensholdgaard/player-auction/internal/retention"
	"github.com/jensholdgaard/player-auction/internal/server"
	"github.com/jensholdgaard/player-auction/internal/store"
	"github.com/jensholdgaard/player-auction/internal/store/redisstore"
	"github.com/jensholdgaard/player-auction/internal/telemetry"

	// Register store drivers so they are available via store.Open.
	_ "github.com/jensholdgaard/player-auction/internal/store/memstore"
	_ "github.com/jensholdgaard/player-auction/internal/store/postgres"
)

func run(ctx context.Context, cfg *config.Config) error {
	ctx, cancel := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	tp, err := telemetry.Setup(ctx, cfg.Telemetry, telemetry.ParseLevel(cfg.LogLevel))
	if err != nil {
		slog.Warn("telemetry setup failed, continuing without OTEL export", slog.Any("error", err))
		tp = telemetry.NewNopProvider()
	}
	defer func() {
		if shutdownErr := tp.Shutdown(context.Background()); shutdownErr != nil {
			slog.Error("telemetry shutdown error", slog.Any("error", shutdownErr))
		}
	}()

	logger := tp.Logger
	clk := clock.Real{}

	repos, err := store.Open(ctx, store.Options{
		Database: cfg.Database,
		Redis:    cfg.Redis,
		Audit:    cfg.Audit,
		Clock:    clk,
	})
	if err != nil {
		return fmt.Errorf("opening store (driver=%s): %w", cfg.Database.Driver, err)
	}
	if repos.Closer != nil {
		defer repos.Closer.Close()
	}
	logger.InfoContext(ctx, "store opened", slog.String("driver", cfg.Database.Driver))

	attempts, creations, closeLimiters, err := limiters(ctx, cfg, clk)
	if err != nil {
		return err
	}
	defer closeLimiters()

	metrics, err := telemetry.NewAuctionMetrics(tp.MeterProvider)
	if err != nil {
		return fmt.Errorf("creating metrics: %w", err)
	}

	var (
		discordBot *bot.Bot
		sinks      []audit.Sink
	)
	if cfg.Discord.Enabled() {
		discordBot, err = bot.New(cfg.Discord, logger, tp.TracerProvider)
		if err != nil {
			return fmt.Errorf("creating bot: %w", err)
		}
		if cfg.Discord.ChannelID != "" {
			sinks = append(sinks, bot.NewAnnouncer(discordBot.Session(), cfg.Discord.ChannelID, repos.Tournaments, repos.Rosters, logger))
		}
	}
	recorder := audit.NewRecorder(repos.Events, cfg.Audit.BufferSize, logger, metrics, sinks...)

	sessions := auth.NewSessions([]byte(cfg.Auth.SessionSecret), cfg.Auth.SessionTTL, clk)
	authz := auth.NewAuthorizer(sessions, attempts, logger)
	gate := lifecycle.NewGate(cfg.Lifecycle.ReadOnlyWindow, clk)

	manager := auction.NewManager(repos, gate, authz, auction.NewMachine(nil), recorder, metrics, logger, tp.TracerProvider, clk)
	adminSvc := admin.NewService(repos, gate, authz, creations, recorder, admin.Options{
		DefaultTTL:       cfg.Lifecycle.DefaultTTL,
		PBKDF2Iterations: cfg.Auth.PBKDF2Iterations,
	}, logger, tp.TracerProvider, clk)

	checkers := []health.Checker{{Name: "store", Check: repos.Ping}}
	var archiver retention.Archiver
	if cfg.Archive.Enabled {
		s3, s3Err := archive.NewS3(ctx, cfg.Archive)
		if s3Err != nil {
			return fmt.Errorf("creating archive client: %w", s3Err)
		}
		archiver = archive.NewArchiver(repos, s3, cfg.Archive.Prefix, clk)
		checkers = append(checkers, health.Checker{Name: "archive", Check: s3.Ping})
	}
	healthHandler := health.NewHandler(clk, version, checkers...)

	srv := server.New(cfg.Server, manager, adminSvc, healthHandler, logger, server.Telemetry{
		TracerProvider: tp.TracerProvider,
		MeterProvider:  tp.MeterProvider,
	}, clk)

	// The recorder outlives the request path so events from in-flight
	// requests are still written during shutdown.
	recorderCtx, stopRecorder := context.WithCancel(context.WithoutCancel(ctx))
	recorderDone := make(chan struct{})
	go func() {
		defer close(recorderDone)
		_ = recorder.Run(recorderCtx)
	}()

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error { return srv.Run(gctx) })

	if cfg.Retention.Enabled {
		sweeper := retention.NewSweeper(repos, archiver, cfg.Retention.Grace, cfg.Retention.Interval, logger, tp.TracerProvider, clk)
		g.Go(func() error {
			return leader.RunWhileLeading(gctx, cfg.LeaderElection, logger, sweeper.Run)
		})
	}
	if discordBot != nil {
		g.Go(func() error { return discordBot.Run(gctx, manager) })
	}

	healthHandler.SetReady(true)
	logger.InfoContext(ctx, "auctiond is running", slog.String("version", version))

	err = g.Wait()
	healthHandler.SetReady(false)

	stopRecorder()
	<-recorderDone
	if dropped := recorder.Dropped(); dropped > 0 {
		logger.Warn("audit events dropped", slog.Int64("count", dropped))
	}

	if err != nil && !errors.Is(err, context.Canceled) {
		return err
	}
	logger.Info("shutdown complete")
	return nil
}

// limiters returns the PIN/recovery attempt limiter, the creation limiter
// and a func releasing their connection. Redis-backed limiters are shared
// across replicas.
func limiters(ctx context.Context, cfg *config.Config, clk clock.Clock) (attempts, creations ratelimit.Limiter, closeFn func() error, err error) {
	rl := cfg.RateLimit
	if !cfg.Redis.Enabled() {
		return ratelimit.NewMemory(rl.AuthAttempts, rl.AuthWindow, clk),
			ratelimit.NewMemory(rl.Creations, rl.CreationWindow, clk),
			func() error { return nil },
			nil
	}
	rdb, err := redisstore.Connect(ctx, cfg.Redis)
	if err != nil {
		return nil, nil, nil, fmt.Errorf("connecting rate limiter to redis: %w", err)
	}
	return ratelimit.NewRedis(rdb, "auctiond:auth", rl.AuthAttempts, rl.AuthWindow, clk),
		ratelimit.NewRedis(rdb, "auctiond:create", rl.Creations, rl.CreationWindow, clk),
		rdb.Close,
		nil
}
