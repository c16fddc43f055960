// Sahayak - Citizen Service Recommendation Engine
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/sahayak

package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/tomtom215/sahayak/internal/api"
	"github.com/tomtom215/sahayak/internal/config"
	"github.com/tomtom215/sahayak/internal/database"
	"github.com/tomtom215/sahayak/internal/logging"
	"github.com/tomtom215/sahayak/internal/supervisor"
	"github.com/tomtom215/sahayak/internal/supervisor/services"
)

//nolint:gocyclo // Main initialization function with sequential setup steps
func main() {
	// Load configuration first to get logging settings
	cfg, err := config.Load()
	if err != nil {
		logging.Fatal().Err(err).Msg("Failed to load configuration")
	}

	logging.Init(logging.Config{
		Level:  cfg.Logging.Level,
		Format: cfg.Logging.Format,
		Caller: cfg.Logging.Caller,
	})
	logger := logging.Logger()

	logging.Info().
		Str("db_path", cfg.Database.Path).
		Str("data_source", cfg.Source.Preferred).
		Bool("sync_enabled", cfg.Sync.Enabled).
		Msg("Starting Sahayak with supervisor tree")

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	db, err := database.New(&cfg.Database)
	if err != nil {
		logging.Fatal().Err(err).Msg("Failed to initialize database")
	}
	defer func() {
		if err := db.Close(); err != nil {
			logging.Error().Err(err).Msg("Error closing database")
		}
	}()
	logging.Info().Msg("Database initialized successfully")

	rc, err := initRecommend(ctx, cfg, db, logger)
	if err != nil {
		// Fatal skips deferred calls
		_ = db.Close()
		logging.Fatal().Err(err).Msg("Failed to initialize recommendation engines")
	}
	defer func() {
		if err := rc.Close(); err != nil {
			logging.Error().Err(err).Msg("Error closing artifact store")
		}
	}()

	// Bridge zerolog to slog for sutureslog
	tree, err := supervisor.NewSupervisorTree(logging.NewSlogLogger(), supervisor.TreeConfig{
		FailureThreshold: 5,
		FailureBackoff:   15 * time.Second,
		ShutdownTimeout:  cfg.Server.ShutdownTimeout + cfg.Server.DrainDelay,
	})
	if err != nil {
		logging.Fatal().Err(err).Msg("Failed to create supervisor tree")
	}

	pipeline, err := initPipeline(cfg, db, rc.Regenerator, tree, logger)
	if err != nil {
		_ = rc.Close()
		_ = db.Close()
		logging.Fatal().Err(err).Msg("Failed to initialize sync pipeline")
	}
	defer func() {
		if err := pipeline.Close(); err != nil {
			logging.Error().Err(err).Msg("Error closing event bus")
		}
	}()

	// The API service is created before the router so readiness can
	// report draining; its server is attached below.
	server := &http.Server{
		Addr:              fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port),
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       cfg.Server.Timeout,
		WriteTimeout:      cfg.Server.Timeout,
		IdleTimeout:       60 * time.Second,
	}
	apiSvc := services.NewAPIService(server, services.APIServiceConfig{
		Addr:            server.Addr,
		ShutdownTimeout: cfg.Server.ShutdownTimeout,
		DrainDelay:      cfg.Server.DrainDelay,
	}, logging.WithComponent("api-server"))

	deps := api.HandlerDeps{
		Recommender: rc.Orchestrator,
		Regenerator: rc.Regenerator,
		Ready: map[string]api.ReadinessCheck{
			"api":      apiSvc.Ready,
			"database": db.Ping,
			"catalog": func(ctx context.Context) error {
				_, err := rc.Directory.Catalog(ctx)
				return err
			},
		},
	}
	if pipeline != nil {
		deps.Sync = pipeline.Manager
	}
	handler := api.NewHandler(deps, logging.WithComponent("api"))
	router := api.NewRouter(handler, api.NewChiMiddleware(api.ChiMiddlewareConfigFrom(&cfg.Security)))

	server.Handler = router

	tree.AddAPIService(apiSvc)
	logging.Info().Str("addr", server.Addr).Msg("API service added")

	logging.Info().Msg("Starting supervisor tree...")
	errCh := tree.ServeBackground(ctx)

	select {
	case <-ctx.Done():
		logging.Info().Msg("Received shutdown signal, waiting for supervisor to finish...")
	case err := <-errCh:
		if err != nil && !errors.Is(err, context.Canceled) {
			logging.Error().Err(err).Msg("Supervisor tree error")
		}
	}
	stop()

	for err := range errCh {
		if err != nil && !errors.Is(err, context.Canceled) {
			logging.Error().Err(err).Msg("Supervisor shutdown error")
		}
	}

	unstopped, _ := tree.UnstoppedServiceReport()
	if len(unstopped) > 0 {
		logging.Warn().Int("count", len(unstopped)).Msg("Services failed to stop within timeout")
		for _, svc := range unstopped {
			logging.Warn().Str("service", svc.Name).Msg("Service failed to stop")
		}
	}

	logging.Info().Msg("Application stopped gracefully")
}
