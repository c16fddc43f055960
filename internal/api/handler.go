// Sahayak - Citizen Service Recommendation Engine
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/sahayak

package api

import (
	"context"
	"time"

	"github.com/rs/zerolog"

	"github.com/tomtom215/sahayak/internal/models"
	"github.com/tomtom215/sahayak/internal/recommend"
	datasync "github.com/tomtom215/sahayak/internal/sync"
)

// Recommender serves recommendation requests. Satisfied by
// *recommend.Orchestrator.
type Recommender interface {
	Recommend(ctx context.Context, req recommend.Request) (*recommend.Response, error)
}

// Regenerator rebuilds derived artifacts. Satisfied by *recommend.Regenerator.
type Regenerator interface {
	Regenerate(ctx context.Context, artifact recommend.ArtifactType, trigger models.TriggeredBy) (*recommend.RegenerationResult, error)
}

// SyncController runs manual syncs and reports pipeline state. Satisfied
// by *sync.Manager.
type SyncController interface {
	SyncTables(ctx context.Context, tables []string, fromDate string, trigger models.TriggeredBy) (*datasync.CycleResult, error)
	Status(ctx context.Context) (*datasync.Status, error)
}

// ReadinessCheck reports whether one dependency can serve traffic.
type ReadinessCheck func(ctx context.Context) error

// HandlerDeps wires the handler. Sync may be nil when the pipeline is
// disabled; the sync routes then answer 503.
type HandlerDeps struct {
	Recommender Recommender
	Regenerator Regenerator
	Sync        SyncController
	Ready       map[string]ReadinessCheck

	// RetryAfter is sent with regeneration conflicts. Default 30s.
	RetryAfter time.Duration

	// MaxBodyBytes bounds request bodies. Default 64 KiB.
	MaxBodyBytes int64
}

// Handler holds the HTTP handlers.
type Handler struct {
	deps      HandlerDeps
	logger    zerolog.Logger
	startTime time.Time
}

// NewHandler returns a handler over deps.
//
//nolint:gocritic // logger passed by value is acceptable for zerolog
func NewHandler(deps HandlerDeps, logger zerolog.Logger) *Handler {
	if deps.RetryAfter <= 0 {
		deps.RetryAfter = 30 * time.Second
	}
	if deps.MaxBodyBytes <= 0 {
		deps.MaxBodyBytes = 64 << 10
	}
	return &Handler{
		deps:      deps,
		logger:    logger.With().Str("component", "api").Logger(),
		startTime: time.Now(),
	}
}
