// Sahayak - Citizen Service Recommendation Engine
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/sahayak

package services

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog"
)

// ErrDraining is reported by the readiness check once shutdown has begun.
var ErrDraining = errors.New("api is draining for shutdown")

// Listener is the part of *http.Server the API service drives.
type Listener interface {
	ListenAndServe() error
	Shutdown(ctx context.Context) error
}

// APIServiceConfig controls shutdown of the recommendation API.
type APIServiceConfig struct {
	// Addr is only logged.
	Addr string
	// ShutdownTimeout bounds how long in-flight requests may finish.
	// Non-positive means 10s.
	ShutdownTimeout time.Duration
	// DrainDelay keeps accepting requests after cancellation while
	// Ready fails.
	DrainDelay time.Duration
}

// APIService serves the recommendation API under supervision.
type APIService struct {
	server   Listener
	cfg      APIServiceConfig
	draining atomic.Bool
	logger   zerolog.Logger
}

// NewAPIService wraps server.
func NewAPIService(server Listener, cfg APIServiceConfig, logger zerolog.Logger) *APIService {
	if cfg.ShutdownTimeout <= 0 {
		cfg.ShutdownTimeout = 10 * time.Second
	}
	if cfg.DrainDelay < 0 {
		cfg.DrainDelay = 0
	}
	return &APIService{server: server, cfg: cfg, logger: logger}
}

// Ready is an api.ReadinessCheck: it fails from the moment shutdown starts.
func (a *APIService) Ready(context.Context) error {
	if a.draining.Load() {
		return ErrDraining
	}
	return nil
}

// Serve implements suture.Service. A server closed by Shutdown is not an
// error; cancellation returns ctx.Err().
func (a *APIService) Serve(ctx context.Context) error {
	a.draining.Store(false)

	done := make(chan error, 1)
	go func() {
		err := a.server.ListenAndServe()
		if errors.Is(err, http.ErrServerClosed) {
			err = nil
		}
		done <- err
	}()
	a.logger.Info().Str("addr", a.cfg.Addr).Msg("Recommendation API listening")

	select {
	case err := <-done:
		if err != nil {
			return fmt.Errorf("recommendation api: %w", err)
		}
		return nil
	case <-ctx.Done():
	}

	a.draining.Store(true)
	if a.cfg.DrainDelay > 0 {
		a.logger.Info().Dur("delay", a.cfg.DrainDelay).Msg("Draining: readiness now failing")
		select {
		case <-time.After(a.cfg.DrainDelay):
		case err := <-done:
			// listener died while draining
			if err != nil {
				return fmt.Errorf("recommendation api: %w", err)
			}
			return ctx.Err()
		}
	}

	started := time.Now()
	shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), a.cfg.ShutdownTimeout)
	defer cancel()
	if err := a.server.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("recommendation api shutdown: %w", err)
	}
	<-done
	a.logger.Info().Dur("took", time.Since(started)).Msg("Recommendation API stopped")
	return ctx.Err()
}

func (a *APIService) String() string {
	return "recommendation-api"
}
