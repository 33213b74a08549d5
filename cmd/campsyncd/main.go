// Command campsyncd runs the campaign schedule sync service: scheduled and
// on-demand reconciliation of ad-campaign schedules into the page database,
// with an HTTP API for triggering and monitoring.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5/middleware"
	"github.com/joho/godotenv"
	"go.uber.org/zap"

	"github.com/zzin/campsync/scheduler"
	"github.com/zzin/campsync/server"
	"github.com/zzin/campsync/sync"
)

const (
	serverReadTimeout    = 15 * time.Second
	serverWriteTimeout   = 6 * time.Minute // sync runs are served inline
	serverIdleTimeout    = 60 * time.Second
	defaultGracefulStop  = 10 * time.Second
	serverRequestTimeout = 6 * time.Minute
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "campsyncd: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	configPath := flag.String("config", "config.yaml", "path to YAML config file")
	flag.Parse()

	// A .env file is optional; secrets usually come from the environment.
	_ = godotenv.Load()

	cfg, err := sync.LoadConfigFile(*configPath)
	if err != nil {
		return err
	}
	if err := cfg.Validate(); err != nil {
		return err
	}

	zapLogger, err := zap.NewProduction()
	if err != nil {
		return fmt.Errorf("failed to create logger: %w", err)
	}
	defer zapLogger.Sync()
	logger := zapLogger.Sugar()

	syncContext := &sync.SyncContext{Config: cfg, Logger: logger}
	source := &sync.GoogleAdsFetcher{SyncContext: syncContext}
	store := &sync.NotionFetcherAndUpdater{SyncContext: syncContext}
	reconciler := sync.NewReconciler(syncContext, source, store)
	aggregator := &sync.HealthAggregator{
		SyncContext: syncContext,
		SourceProbe: source,
		StoreProbe:  store,
	}

	coordinator := scheduler.New(logger, reconciler)
	if err := coordinator.AddCronJob("morning sync", cfg.Scheduler.MorningSchedule, cfg.Scheduler.Timezone); err != nil {
		return err
	}
	if err := coordinator.AddCronJob("evening sync", cfg.Scheduler.EveningSchedule, cfg.Scheduler.Timezone); err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := coordinator.Start(ctx); err != nil {
		return err
	}
	defer coordinator.Stop()

	routes := server.NewRoutes(logger, cfg.Server, reconciler, aggregator, coordinator)
	router := server.NewServer(routes,
		server.WithMiddlewares(
			middleware.RealIP,
			middleware.Timeout(serverRequestTimeout),
			server.LoggingMiddleware(logger),
		),
	)

	httpServer := &http.Server{
		Addr:         cfg.Server.Addr,
		Handler:      router,
		ReadTimeout:  serverReadTimeout,
		WriteTimeout: serverWriteTimeout,
		IdleTimeout:  serverIdleTimeout,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Infof("server listening on %s", cfg.Server.Addr)
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}
	logger.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), defaultGracefulStop)
	defer cancel()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("server forced to shutdown: %w", err)
	}
	logger.Info("shutdown complete")
	return nil
}
