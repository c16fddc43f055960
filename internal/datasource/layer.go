// Sahayak - Citizen Service Recommendation Engine
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/sahayak

package datasource

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"github.com/tomtom215/sahayak/internal/metrics"
)

// Layer chooses between a primary and a fallback source per table.
//
// The primary is probed once at construction. A primary that fails the
// probe is skipped for every table for the lifetime of the layer. A healthy
// primary that lacks a table, or fails to load it, defers to the fallback.
type Layer struct {
	primary        Source
	fallback       Source
	primaryHealthy bool
	logger         zerolog.Logger
}

// NewLayer builds a layer. Either source may be nil.
func NewLayer(ctx context.Context, primary, fallback Source, logger zerolog.Logger) *Layer {
	l := &Layer{primary: primary, fallback: fallback, logger: logger}
	if primary != nil {
		if err := primary.Ping(ctx); err != nil {
			logger.Warn().Err(err).Str("source", string(primary.Kind())).
				Msg("Primary data source unavailable at startup, using fallback only")
		} else {
			l.primaryHealthy = true
		}
	}
	return l
}

// PrimaryHealthy reports the startup probe result.
func (l *Layer) PrimaryHealthy() bool {
	return l.primaryHealthy
}

func (l *Layer) candidates() []Source {
	out := make([]Source, 0, 2)
	if l.primary != nil && l.primaryHealthy {
		out = append(out, l.primary)
	}
	if l.fallback != nil {
		out = append(out, l.fallback)
	}
	return out
}

// Availability returns the source that would answer a load of table.
func (l *Layer) Availability(ctx context.Context, table string) SourceKind {
	for _, s := range l.candidates() {
		if s.HasTable(ctx, table) {
			return s.Kind()
		}
	}
	return SourceNone
}

// Load returns the table from the first source that has it and loads it
// successfully.
func (l *Layer) Load(ctx context.Context, table string) (*Table, error) {
	var lastErr error
	for i, s := range l.candidates() {
		if !s.HasTable(ctx, table) {
			continue
		}
		if i > 0 {
			metrics.RecordSourceFallback(table)
		}

		start := time.Now()
		t, err := s.Load(ctx, table)
		metrics.RecordSourceLoad(table, string(s.Kind()), time.Since(start), err)
		if err != nil {
			lastErr = err
			l.logger.Warn().Err(err).Str("table", table).Str("source", string(s.Kind())).
				Msg("Table load failed, trying next source")
			continue
		}

		l.logger.Debug().Str("table", table).Str("source", string(s.Kind())).
			Int("rows", t.Len()).Msg("Table loaded")
		return t, nil
	}

	if lastErr != nil {
		return nil, fmt.Errorf("%w: %s: %v", ErrDataUnavailable, table, lastErr)
	}
	return nil, fmt.Errorf("%w: %s", ErrDataUnavailable, table)
}
