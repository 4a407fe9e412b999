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
	"github.com/wolfman30/callwindow/internal/api/router"
	"github.com/wolfman30/callwindow/internal/app/bootstrap"
	appconfig "github.com/wolfman30/callwindow/internal/config"
	"github.com/wolfman30/callwindow/internal/display"
	"github.com/wolfman30/callwindow/internal/http/handlers"
	"github.com/wolfman30/callwindow/internal/outbound"
	"github.com/wolfman30/callwindow/pkg/logging"
)

type app struct {
	handler    http.Handler
	dispatcher *outbound.Dispatcher
	redis      *redis.Client
}

func (a *app) Close() {
	if a.redis != nil {
		_ = a.redis.Close()
	}
}

func buildApp(ctx context.Context, cfg *appconfig.Config, logger *logging.Logger) (*app, error) {
	engine, err := bootstrap.BuildEngine(cfg)
	if err != nil {
		return nil, err
	}

	redisClient := bootstrap.BuildRedisClient(ctx, cfg, logger, true)
	store := bootstrap.BuildDeferralStore(redisClient)
	metricsHandler, metrics := bootstrap.BuildMetrics()
	gate := bootstrap.BuildGate(engine, store, metrics, logger)
	dispatcher := bootstrap.BuildDispatcher(cfg, store, gate, bootstrap.LoggingDialer(logger), metrics, logger)

	lookupHandler := handlers.NewLookupHandler(handlers.LookupConfig{
		Resolver:      engine.Resolver,
		Evaluator:     engine.Evaluator,
		Formatter:     display.NewFormatter(engine.Evaluator.Projector()),
		DefaultWindow: engine.Window,
		Metrics:       metrics,
		Logger:        logger,
	})
	callsHandler := handlers.NewCallsHandler(gate, store, logger)

	r := router.New(&router.Config{
		Logger:             logger,
		LookupHandler:      lookupHandler,
		CallsHandler:       callsHandler,
		MetricsHandler:     metricsHandler,
		CORSAllowedOrigins: cfg.CORSAllowedOrigins,
		RateLimitRPS:       cfg.RateLimitRPS,
		RateLimitBurst:     cfg.RateLimitBurst,
		Done:               ctx.Done(),
	})
	return &app{handler: r, dispatcher: dispatcher, redis: redisClient}, nil
}

func main() {
	if err := appconfig.LoadDotEnv(); err != nil {
		fmt.Fprintln(os.Stderr, err)
	}

	// Load configuration
	cfg := appconfig.Load()

	// Initialize logger
	logger := logging.New(cfg.LogLevel)
	logger.Info("starting callwindow API server",
		"env", cfg.Env,
		"port", cfg.Port,
	)

	appCtx, stopApp := context.WithCancel(context.Background())
	defer stopApp()

	a, err := buildApp(appCtx, cfg, logger)
	if err != nil {
		logger.Error("failed to initialize", "error", err)
		os.Exit(1)
	}
	defer a.Close()

	workerDone := make(chan struct{})
	go func() {
		defer close(workerDone)
		a.dispatcher.Run(appCtx)
	}()

	// Create HTTP server
	srv := &http.Server{
		Addr:         ":" + cfg.Port,
		Handler:      a.handler,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	// Start server in a goroutine
	go func() {
		logger.Info("server listening", "addr", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("server error", "error", err)
			os.Exit(1)
		}
	}()

	// Wait for interrupt signal to gracefully shutdown the server
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("shutting down server...")

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		logger.Error("server forced to shutdown", "error", err)
	}
	stopApp()
	select {
	case <-workerDone:
	case <-ctx.Done():
		logger.Warn("dispatcher did not stop before timeout")
	}

	logger.Info("server stopped")
}
