// Sahayak - Citizen Service Recommendation Engine
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/sahayak

package sync

import "errors"

var (
	// ErrAuthenticationFailure means login failed after every retry.
	ErrAuthenticationFailure = errors.New("authentication with external authority failed")

	// ErrPartialSyncFailure means at least one table failed in a cycle.
	ErrPartialSyncFailure = errors.New("one or more tables failed to sync")

	// ErrSyncInProgress means another cycle holds the pipeline.
	ErrSyncInProgress = errors.New("sync already in progress")

	// ErrUnknownTable is returned for tables outside the configured set.
	ErrUnknownTable = errors.New("unknown sync table")

	// ErrInvalidFromDate is returned for a from date not in YYYY-MM-DD form.
	ErrInvalidFromDate = errors.New("invalid from date")
)
