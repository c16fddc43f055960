// Sahayak - Citizen Service Recommendation Engine
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/sahayak

package main

import (
	"fmt"
	"net/http"
	"time"

	"github.com/rs/zerolog"

	"github.com/tomtom215/sahayak/internal/config"
	"github.com/tomtom215/sahayak/internal/database"
	"github.com/tomtom215/sahayak/internal/events"
	"github.com/tomtom215/sahayak/internal/recommend"
	datasync "github.com/tomtom215/sahayak/internal/sync"
	"github.com/tomtom215/sahayak/internal/supervisor"
	"github.com/tomtom215/sahayak/internal/supervisor/services"
)

// eventBufferSize is the gochannel output buffer per subscriber.
const eventBufferSize = 16

// PipelineComponents holds the sync pipeline. It is nil when the external
// sync is disabled.
type PipelineComponents struct {
	Bus       *events.Bus
	Manager   *datasync.Manager
	Scheduler *services.SyncSchedulerService
}

// Close shuts the event bus down; subscribers see their channels close.
func (p *PipelineComponents) Close() error {
	if p == nil || p.Bus == nil {
		return nil
	}
	return p.Bus.Close()
}

// initPipeline wires the external authority client, the sync manager and
// the event bus, and registers the scheduler and the regeneration listener
// with the pipeline layer of tree.
//
//nolint:gocritic // hugeParam: logger passed by value for zerolog chaining
func initPipeline(cfg *config.Config, db *database.DB, regen *recommend.Regenerator, tree *supervisor.SupervisorTree, logger zerolog.Logger) (*PipelineComponents, error) {
	if !cfg.Sync.Enabled {
		logger.Info().Msg("External sync disabled (SYNC_ENABLED=false)")
		return nil, nil
	}

	schedule, err := datasync.NewWeeklySchedule(&cfg.Schedule)
	if err != nil {
		return nil, fmt.Errorf("sync schedule: %w", err)
	}

	// Per-request deadlines come from contexts; the client timeout is a
	// backstop for a stalled authority.
	httpClient := &http.Client{Timeout: cfg.Sync.RequestTimeout + 10*time.Second}

	syncLogger := logger.With().Str("component", "sync").Logger()
	auth := datasync.NewAuthenticator(&cfg.Sync, httpClient, syncLogger)
	client, err := datasync.NewClient(&cfg.Sync, httpClient, auth, syncLogger)
	if err != nil {
		return nil, fmt.Errorf("sync client: %w", err)
	}

	bus := events.NewBus(eventBufferSize, logger.With().Str("component", "events").Logger())
	manager := datasync.NewManager(client, db, bus, datasync.NewManagerConfig(&cfg.Sync, schedule.Location), syncLogger)

	p := &PipelineComponents{Bus: bus, Manager: manager}

	if cfg.Schedule.Enabled {
		p.Scheduler = services.NewSyncSchedulerService(manager, schedule, cfg.Schedule.RunOnStartup,
			logger.With().Str("component", "scheduler").Logger())
		manager.SetNextRunSource(p.Scheduler.NextRun)
		tree.AddPipelineService(p.Scheduler)
		logger.Info().
			Str("weekday", schedule.Weekday.String()).
			Int("hour", schedule.Hour).
			Int("minute", schedule.Minute).
			Str("timezone", schedule.Location.String()).
			Msg("Weekly sync scheduled")
	} else {
		logger.Info().Msg("Sync schedule disabled; cycles run only on manual trigger")
	}

	regenSvc := services.NewRegenerationService(bus, regen, cfg.Schedule.RegenDelay,
		logger.With().Str("component", "regeneration").Logger())
	regenSvc.SetPhaseReporter(manager)
	tree.AddPipelineService(regenSvc)

	return p, nil
}
