// Sahayak - Citizen Service Recommendation Engine
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/sahayak

/*
Package supervisor runs Sahayak's long-lived services under a suture v4 tree.

# Overview

Services are grouped into two layers so that a crash in the data pipeline
never takes the HTTP API down:

	RootSupervisor ("sahayak")
	├── PipelineSupervisor ("pipeline-layer")
	│   ├── SyncSchedulerService (weekly authority sync, if SYNC_ENABLED)
	│   └── RegenerationService (rebuilds static artifacts after a sync)
	└── APISupervisor ("api-layer")
	    └── APIService

Each child supervisor counts failures on its own and restarts its services
with backoff. Lifecycle events are logged through sutureslog, which needs a
*slog.Logger; main builds one with logging.NewSlogLogger.

# Usage

	tree, err := supervisor.NewSupervisorTree(logging.NewSlogLogger(), supervisor.TreeConfig{})
	if err != nil {
	    return err
	}
	tree.AddPipelineService(services.NewSyncSchedulerService(manager, schedule, cfg, logger))
	tree.AddPipelineService(services.NewRegenerationService(bus, regenerator, delay, logger))
	tree.AddAPIService(services.NewAPIService(server, services.APIServiceConfig{Addr: server.Addr}, logger))

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()
	if err := tree.Serve(ctx); err != nil && !errors.Is(err, context.Canceled) {
	    logging.Error().Err(err).Msg("Supervisor stopped")
	}

# See Also

  - internal/supervisor/services: the service wrappers
  - github.com/thejerf/suture/v4
*/
package supervisor
