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

	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/athulya-anil/axon-ingest/pkg/api"
	"github.com/athulya-anil/axon-ingest/pkg/config"
	"github.com/athulya-anil/axon-ingest/pkg/logging"
	"github.com/athulya-anil/axon-ingest/pkg/metrics"
	"github.com/athulya-anil/axon-ingest/pkg/processor"
	"github.com/athulya-anil/axon-ingest/pkg/scheduler"
)

func init() {
	rootCmd.AddCommand(serveCmd)
}

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the ingestion HTTP server and dispatch loop",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := config.Load(configPath)
		if err != nil {
			return err
		}
		return serve(cfg)
	},
}

func serve(cfg *config.Config) error {
	logger, err := logging.Setup(cfg.Log)
	if err != nil {
		return fmt.Errorf("setup logging: %w", err)
	}
	defer func() { _ = logger.Sync() }()

	metrics.Register()

	proc, err := processor.FromConfig(cfg.Processor, logger)
	if err != nil {
		return err
	}

	svc := scheduler.NewService(proc,
		scheduler.WithDispatchInterval(cfg.Scheduler.DispatchInterval),
		scheduler.WithUnitTimeout(cfg.Scheduler.UnitTimeout),
		scheduler.WithLogger(logger),
	)
	svc.Start()
	defer svc.Close()

	if !cfg.Log.Development {
		gin.SetMode(gin.ReleaseMode)
	}
	router := gin.New()
	router.Use(gin.Recovery(), api.RequestLogger(logger), api.CORS(cfg.Server.CORSOrigins))

	var ingestMiddleware []gin.HandlerFunc
	if cfg.RateLimit.Enabled() {
		rdb := redis.NewClient(&redis.Options{
			Addr: cfg.RateLimit.RedisAddr,
			DB:   cfg.RateLimit.RedisDB,
		})
		defer rdb.Close()

		pingCtx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
		if err := rdb.Ping(pingCtx).Err(); err != nil {
			logger.Warn("redis unreachable, rate limiter will let requests through until it recovers",
				zap.String("addr", cfg.RateLimit.RedisAddr), zap.Error(err))
		}
		cancel()

		ingestMiddleware = append(ingestMiddleware, api.NewRateLimiter(api.RateLimiterConfig{
			Redis:     rdb,
			Limit:     cfg.RateLimit.Limit,
			Window:    cfg.RateLimit.Window,
			KeyPrefix: cfg.RateLimit.KeyPrefix,
			Logger:    logger,
		}))
	}

	api.NewAPI(svc, logger, cfg.Server.StreamInterval).SetupRoutes(router, ingestMiddleware...)

	srv := &http.Server{
		Addr:              cfg.Server.Addr,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("http server listening",
			zap.String("addr", cfg.Server.Addr),
			zap.Duration("dispatch_interval", cfg.Scheduler.DispatchInterval),
			zap.String("processor", cfg.Processor.Kind),
		)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(sigCh)

	select {
	case sig := <-sigCh:
		logger.Info("shutting down", zap.String("signal", sig.String()))
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("http server: %w", err)
		}
		return nil
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		logger.Error("http shutdown", zap.Error(err))
	}
	return nil
}
