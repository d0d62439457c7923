package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/gestaozabele/demandas/internal/app"
	"github.com/gestaozabele/demandas/internal/attachment"
	"github.com/gestaozabele/demandas/internal/auth"
	"github.com/gestaozabele/demandas/internal/cache"
	"github.com/gestaozabele/demandas/internal/config"
	"github.com/gestaozabele/demandas/internal/demand"
	internalhttp "github.com/gestaozabele/demandas/internal/http"
	httpmiddleware "github.com/gestaozabele/demandas/internal/http/middleware"
	"github.com/gestaozabele/demandas/internal/imagetransform"
	"github.com/gestaozabele/demandas/internal/metrics"
	"github.com/gestaozabele/demandas/internal/sweep"
)

func main() {
	if err := run(); err != nil {
		log.Fatal().Err(err).Msg("api encerrada com erro")
	}
}

func run() error {
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stdout, TimeFormat: time.RFC3339})

	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("config: %w", err)
	}

	if level, err := zerolog.ParseLevel(cfg.LogLevel); err == nil {
		zerolog.SetGlobalLevel(level)
	}

	ctx, stop := context.WithCancel(context.Background())
	defer stop()

	backend, err := app.OpenBackend(ctx, cfg, log.Logger)
	if err != nil {
		return err
	}
	defer backend.Close()

	checks := map[string]internalhttp.Check{"store": backend.Ping}

	departments := backend.Departments
	var quota httpmiddleware.Quota
	if cfg.RedisURL != "" {
		redisOpts, err := redis.ParseURL(cfg.RedisURL)
		if err != nil {
			return fmt.Errorf("redis parse: %w", err)
		}
		redisClient := redis.NewClient(redisOpts)
		defer redisClient.Close()

		departments = cache.NewDepartments(departments, redisClient, cfg.DepartmentCacheTTL,
			log.With().Str("componente", "cache").Logger())
		quota = cache.NewDailyQuota(redisClient, "cota:criar", cfg.CreateDailyLimit)
		checks["redis"] = func(ctx context.Context) error { return redisClient.Ping(ctx).Err() }
	} else {
		log.Warn().Msg("REDIS_URL ausente: cache de secretarias e cota diária desativados")
	}

	m := metrics.New()

	opts := []demand.Option{
		demand.WithLogger(log.With().Str("componente", "demandas").Logger()),
		demand.WithRecorder(m),
	}
	if len(cfg.FallbackFields) > 0 {
		opts = append(opts, demand.WithFallbackFields(cfg.FallbackFields))
	}
	demands := demand.NewService(backend.Store, backend.Users, departments, opts...)

	uploader, err := app.NewUploader(ctx, cfg.Storage)
	if err != nil {
		return err
	}
	pipeline := attachment.NewPipeline(demands, imagetransform.Imaging{}, uploader,
		attachment.WithLogger(log.With().Str("componente", "anexos").Logger()),
		attachment.WithRecorder(m),
		attachment.WithKeyPrefix(cfg.Sweep.Prefix),
	)

	if b, ok := app.SweepBucket(uploader); ok && cfg.Sweep.Interval > 0 {
		sweeper := sweep.NewService(backend.Store, b, sweep.Config{
			Prefix:   cfg.Sweep.Prefix,
			MinAge:   cfg.Sweep.MinAge,
			Interval: cfg.Sweep.Interval,
			DryRun:   cfg.Sweep.DryRun,
		}, m, log.With().Str("componente", "varredura").Logger())
		sweeper.Start(ctx)
		defer sweeper.Stop()
	}

	handler := internalhttp.NewRouter(cfg, internalhttp.Dependencies{
		Demands:     demands,
		Attachments: pipeline,
		Users:       backend.Users,
		JWT:         auth.NewJWTManager(cfg.JWTSecret, cfg.JWTAccessTTL),
		Quota:       quota,
		Metrics:     m,
		Checks:      checks,
	})

	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.Port),
		Handler:           handler,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		log.Info().Msgf("API ouvindo em :%d", cfg.Port)
		errCh <- srv.ListenAndServe()
	}()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	select {
	case sig := <-sigCh:
		log.Info().Str("signal", sig.String()).Msg("encerrando...")
	case err := <-errCh:
		if err != nil && err != http.ErrServerClosed {
			return err
		}
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}
