// Sahayak - Citizen Service Recommendation Engine
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/sahayak

package services

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/rs/zerolog"
	"github.com/thejerf/suture/v4"

	"github.com/tomtom215/sahayak/internal/events"
	"github.com/tomtom215/sahayak/internal/models"
	"github.com/tomtom215/sahayak/internal/recommend"
	datasync "github.com/tomtom215/sahayak/internal/sync"
)

// SyncSubscriber delivers SyncCompleted messages. Satisfied by *events.Bus.
type SyncSubscriber interface {
	SubscribeSyncCompleted(ctx context.Context) (<-chan *message.Message, error)
}

// ArtifactRegenerator rebuilds derived artifacts. Satisfied by
// *recommend.Regenerator.
type ArtifactRegenerator interface {
	Regenerate(ctx context.Context, artifact recommend.ArtifactType, trigger models.TriggeredBy) (*recommend.RegenerationResult, error)
}

// PhaseReporter receives the post-sync rebuild step for status reporting.
// Satisfied by *datasync.Manager.
type PhaseReporter interface {
	SetRegenerationPhase(p datasync.Phase)
}

// RegenerationService rebuilds the static artifacts a fixed delay after each
// completed sync cycle. The similarity matrix is never rebuilt here.
type RegenerationService struct {
	subscriber  SyncSubscriber
	regenerator ArtifactRegenerator
	delay       time.Duration
	phases      PhaseReporter
	logger      zerolog.Logger
	name        string
}

// NewRegenerationService creates the listener. A zero delay regenerates
// immediately.
//
//nolint:gocritic // logger passed by value is acceptable for zerolog
func NewRegenerationService(sub SyncSubscriber, regen ArtifactRegenerator, delay time.Duration, logger zerolog.Logger) *RegenerationService {
	return &RegenerationService{
		subscriber:  sub,
		regenerator: regen,
		delay:       delay,
		logger:      logger.With().Str("service", "regeneration").Logger(),
		name:        "regeneration-listener",
	}
}

// SetPhaseReporter registers where the waiting and regenerating steps are
// published. Call before Serve.
func (s *RegenerationService) SetPhaseReporter(r PhaseReporter) {
	s.phases = r
}

func (s *RegenerationService) report(p datasync.Phase) {
	if s.phases != nil {
		s.phases.SetRegenerationPhase(p)
	}
}

// Serve implements suture.Service. A closed bus stops the service for good.
func (s *RegenerationService) Serve(ctx context.Context) error {
	msgs, err := s.subscriber.SubscribeSyncCompleted(ctx)
	if err != nil {
		if errors.Is(err, events.ErrBusClosed) {
			return suture.ErrDoNotRestart
		}
		return fmt.Errorf("subscribe to sync events: %w", err)
	}
	s.logger.Info().Dur("delay", s.delay).Msg("Regeneration listener started")

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case msg, ok := <-msgs:
			if !ok {
				if ctx.Err() != nil {
					return ctx.Err()
				}
				return suture.ErrDoNotRestart
			}
			// Acked up front: a bad payload or a failed rebuild is never redelivered.
			msg.Ack()
			ev, err := events.DecodeSyncCompleted(msg.Payload)
			if err != nil {
				s.logger.Error().Err(err).Str("message_id", msg.UUID).Msg("Dropping malformed sync event")
				continue
			}
			if err := s.handle(ctx, ev); err != nil {
				return err
			}
		}
	}
}

// handle waits out the delay and regenerates. It returns an error only when
// ctx is cancelled during the wait.
func (s *RegenerationService) handle(ctx context.Context, ev *events.SyncCompleted) error {
	log := s.logger.With().Str("cycle_id", ev.CycleID).Logger()
	defer s.report(datasync.PhaseIdle)
	if s.delay > 0 {
		s.report(datasync.PhaseAwaitingRegen)
		log.Info().Strs("tables", ev.Tables).Dur("delay", s.delay).Msg("Static regeneration scheduled")
		timer := time.NewTimer(s.delay)
		select {
		case <-ctx.Done():
			timer.Stop()
			log.Info().Msg("Pending regeneration cancelled")
			return ctx.Err()
		case <-timer.C:
		}
	}

	s.report(datasync.PhaseRegenerating)
	res, err := s.regenerator.Regenerate(ctx, recommend.ArtifactStatic, models.TriggerScheduler)
	switch {
	case recommend.IsConflict(err):
		log.Warn().Err(err).Msg("Regeneration already running, skipping")
	case err != nil:
		log.Error().Err(err).Msg("Static regeneration failed")
	default:
		log.Info().Str("status", res.Status).Strs("artifacts", res.RegeneratedArtifacts).Msg("Static regeneration complete")
	}
	return nil
}

// String implements fmt.Stringer for suture's logs.
func (s *RegenerationService) String() string {
	return s.name
}
