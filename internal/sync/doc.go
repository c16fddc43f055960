// Sahayak - Citizen Service Recommendation Engine
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/sahayak

/*
Package sync mirrors the external authority's source tables into the local
database.

Key Components:

  - Authenticator: logs in with username and password and caches the bearer
    token until its issuance time plus the configured lifetime
  - Client: paginated table fetches (meta call, then pages) behind a rate
    limiter and a circuit breaker
  - Manager: one sync cycle over the configured tables, recording per-table
    outcome in sync metadata and publishing a completion event
  - WeeklySchedule: computes the next weekly run in a fixed time zone

Cycle:

A cycle authenticates once, then fetches and persists each table under its
own timeout. A table that fails keeps its previously persisted rows and its
previous sync window, so the next cycle retries the same range. Other tables
are unaffected; the cycle returns ErrPartialSyncFailure alongside the full
result.

Only one cycle runs at a time. A cycle requested while another is running
fails immediately with ErrSyncInProgress.
*/
package sync
