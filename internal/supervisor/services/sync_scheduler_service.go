// Sahayak - Citizen Service Recommendation Engine
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/sahayak

package services

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/tomtom215/sahayak/internal/models"
	datasync "github.com/tomtom215/sahayak/internal/sync"
)

// CycleRunner runs one sync cycle. Satisfied by *sync.Manager.
type CycleRunner interface {
	RunCycle(ctx context.Context, trigger models.TriggeredBy) (*datasync.CycleResult, error)
}

// Schedule returns the first run strictly after now. Satisfied by
// sync.WeeklySchedule.
type Schedule interface {
	Next(now time.Time) time.Time
}

// SyncSchedulerService runs a sync cycle at every scheduled time.
//
// A failed cycle is logged and never returned: the schedule keeps running
// and the next cycle retries the failed tables from their kept windows.
type SyncSchedulerService struct {
	runner       CycleRunner
	schedule     Schedule
	runOnStartup bool
	logger       zerolog.Logger
	name         string
	now          func() time.Time

	mu   sync.RWMutex
	next time.Time
}

// NewSyncSchedulerService creates the scheduler. With runOnStartup a cycle
// runs as soon as the service starts.
//
//nolint:gocritic // logger passed by value is acceptable for zerolog
func NewSyncSchedulerService(runner CycleRunner, schedule Schedule, runOnStartup bool, logger zerolog.Logger) *SyncSchedulerService {
	return &SyncSchedulerService{
		runner:       runner,
		schedule:     schedule,
		runOnStartup: runOnStartup,
		logger:       logger.With().Str("service", "sync-scheduler").Logger(),
		name:         "sync-scheduler",
		now:          time.Now,
	}
}

// NextRun returns the next scheduled cycle, or the zero time before the
// service has started.
func (s *SyncSchedulerService) NextRun() time.Time {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.next
}

func (s *SyncSchedulerService) setNext(t time.Time) {
	s.mu.Lock()
	s.next = t
	s.mu.Unlock()
}

// Serve implements suture.Service.
func (s *SyncSchedulerService) Serve(ctx context.Context) error {
	defer s.setNext(time.Time{})

	if s.runOnStartup {
		s.run(ctx, models.TriggerStartup)
	}

	for {
		next := s.schedule.Next(s.now())
		s.setNext(next)
		wait := next.Sub(s.now())
		s.logger.Info().Time("next_run", next).Dur("wait", wait).Msg("Next sync cycle scheduled")

		timer := time.NewTimer(wait)
		select {
		case <-ctx.Done():
			timer.Stop()
			s.logger.Info().Msg("Sync scheduler shutting down")
			return ctx.Err()
		case <-timer.C:
			s.run(ctx, models.TriggerScheduler)
		}
	}
}

func (s *SyncSchedulerService) run(ctx context.Context, trigger models.TriggeredBy) {
	res, err := s.runner.RunCycle(ctx, trigger)
	switch {
	case err == nil:
		s.logger.Info().Str("cycle_id", res.CycleID).Int("tables", res.Succeeded).Msg("Scheduled sync cycle complete")
	case errors.Is(err, datasync.ErrSyncInProgress):
		s.logger.Info().Msg("Sync cycle already running, skipping scheduled run")
	case errors.Is(err, datasync.ErrPartialSyncFailure):
		s.logger.Warn().Err(err).Msg("Scheduled sync cycle finished with failed tables")
	default:
		s.logger.Error().Err(err).Msg("Scheduled sync cycle failed")
	}
}

// String implements fmt.Stringer for suture's logs.
func (s *SyncSchedulerService) String() string {
	return s.name
}
