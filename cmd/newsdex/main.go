package main

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"syscall"

	"go.uber.org/zap"

	"github.com/kailas-cloud/newsdex/internal/app"
	"github.com/kailas-cloud/newsdex/internal/config"
	logpkg "github.com/kailas-cloud/newsdex/internal/logger"
	"github.com/kailas-cloud/newsdex/internal/metrics"
	chiTransport "github.com/kailas-cloud/newsdex/internal/transport/chi"
	"github.com/kailas-cloud/newsdex/internal/version"
)

func main() {
	env := config.GetEnv()

	cfg, err := config.Load(env)
	if err != nil {
		panic("failed to load config: " + err.Error())
	}

	logger, err := logpkg.New(env, cfg.Logging.Level)
	if err != nil {
		panic("failed to create logger: " + err.Error())
	}
	defer func() { _ = logger.Sync() }()

	logger.Info("Starting newsdex API server",
		zap.String("version", version.Version),
		zap.String("commit", version.Commit),
		zap.String("env", env),
		zap.Int("http_port", cfg.Server.Port),
		zap.Strings("db_addrs", cfg.Database.Addrs),
	)

	// Register metrics explicitly (no init())
	metrics.RegisterHTTPMetrics()
	metrics.RegisterSearchMetrics()
	metrics.RegisterEmbeddingMetrics()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	a, err := app.New(ctx, cfg, logger)
	if err != nil {
		logger.Fatal("Failed to initialize services", zap.Error(err))
	}
	defer a.Close()
	logger.Info("Connected to database")

	created, err := a.EnsureIndex(ctx)
	if err != nil {
		logger.Fatal("Failed to prepare index", zap.String("index", a.Schema.Name), zap.Error(err))
	}
	if created {
		logger.Info("Created index", zap.String("index", a.Schema.Name), zap.Int("dimensions", a.Schema.Dimensions))
	}

	server := chiTransport.NewServer(a.Search, a.Analytics, a.Health, chiTransport.Options{
		DefaultAlpha: cfg.Search.DefaultAlpha,
		DefaultTopK:  cfg.Search.DefaultTopK,
		MaxTopK:      cfg.Search.MaxTopK,
		APIKeys:      cfg.Server.APIKeys,
		RateLimit:    cfg.Server.RateLimit.RPS,
		RateBurst:    cfg.Server.RateLimit.Burst,
		Telemetry:    cfg.Telemetry.Enabled,
		ServiceName:  cfg.Telemetry.ServiceName,
	}, logger)

	addr := net.JoinHostPort(cfg.Server.Host, strconv.Itoa(cfg.Server.Port))
	srv := &http.Server{
		Addr:         addr,
		Handler:      server.Handler(),
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("Starting HTTP server", zap.String("addr", addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- fmt.Errorf("listen: %w", err)
		}
		close(errCh)
	}()

	select {
	case <-ctx.Done():
		logger.Info("Received shutdown signal")
	case err := <-errCh:
		if err != nil {
			logger.Error("HTTP server error", zap.Error(err))
		}
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("Error during shutdown", zap.Error(err))
	}

	logger.Info("Server stopped gracefully")
}
