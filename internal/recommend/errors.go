// Sahayak - Citizen Service Recommendation Engine
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/sahayak

package recommend

import (
	"errors"

	"github.com/tomtom215/sahayak/internal/datasource"
)

var (
	// ErrCitizenNotFound is returned for phone lookups without a match.
	ErrCitizenNotFound = datasource.ErrCitizenNotFound

	// ErrDataUnavailable is returned when the service catalog cannot be loaded.
	ErrDataUnavailable = datasource.ErrDataUnavailable

	// ErrRegenerationConflict means a rebuild of the same artifact is running.
	ErrRegenerationConflict = errors.New("regeneration already in progress")

	// ErrInvalidRequest wraps request validation failures.
	ErrInvalidRequest = errors.New("invalid recommendation request")

	// ErrUnknownArtifact is returned for unrecognized artifact types.
	ErrUnknownArtifact = errors.New("unknown artifact type")
)
