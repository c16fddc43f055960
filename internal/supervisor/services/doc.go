// Sahayak - Citizen Service Recommendation Engine
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/sahayak

/*
Package services adapts Sahayak components to suture's Serve(ctx) model.

# Available Services

SyncSchedulerService:
  - Runs sync.Manager.RunCycle at every WeeklySchedule.Next
  - Optionally runs one cycle at startup
  - Exposes NextRun for the sync status endpoint

RegenerationService:
  - Subscribes to SyncCompleted events on the watermill bus
  - Waits the configured delay, then regenerates the static artifacts
  - Skips a run when a regeneration is already in progress

APIService:
  - Runs the recommendation API's *http.Server
  - On cancellation fails readiness, waits the drain delay, then shuts down
    within the shutdown timeout

All services return ctx.Err() on cancellation and implement fmt.Stringer so
suture can name them in its logs.
*/
package services
