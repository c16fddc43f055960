// Sahayak - Citizen Service Recommendation Engine
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/sahayak

/*
Package main is the entry point for the Sahayak server.

Sahayak recommends government services to citizens at service kiosks. A
citizen is identified by phone number or described by a manual profile; the
server answers with district, demographic, block and content-similarity
recommendations built from the service provision history.

# Application Architecture

The server runs under a Suture v4 supervision tree:

	RootSupervisor ("sahayak")
	├── PipelineSupervisor ("pipeline-layer")
	│   ├── SyncSchedulerService (weekly external sync)
	│   └── RegenerationService (rebuilds artifacts after a sync)
	└── APISupervisor ("api-layer")
	    └── APIService (chi router, drain-aware readiness)

Component initialization order:

 1. Configuration: Koanf v2 with defaults, YAML file and environment
 2. Logging: zerolog with JSON/console output modes
 3. Database: DuckDB holding the synced source tables and pipeline state
 4. Data access: DuckDB primary source with CSV fallback, cached directory
 5. Artifacts: Badger store, engine restore and regeneration of missing artifacts
 6. Pipeline: external authority client, sync manager and watermill event bus
 7. Supervisor Tree: scheduler, regeneration listener and HTTP server

# Configuration

Configuration is loaded via Koanf v2 (highest priority wins):
  - Environment variables (HTTP_PORT, DUCKDB_PATH, SYNC_ENABLED, ...)
  - Config file (CONFIG_PATH, ./config.yaml, /etc/sahayak/config.yaml)
  - Built-in defaults

The external sync is disabled until SYNC_ENABLED=true and the authority
URLs and credentials are set. Without it the server serves whatever the
database or CSV directory holds.

# Signal Handling

SIGINT and SIGTERM cancel the root context. The HTTP server drains
in-flight requests, the pipeline services stop, and the artifact store and
database are closed.

# Example Usage

Serve from CSV files only:

	export DATA_SOURCE=files
	export CSV_DIR=./data
	export ARTIFACTS_IN_MEMORY=true
	./sahayak

With the weekly sync:

	export SYNC_ENABLED=true
	export EXTERNAL_SYNC_BASE_URL=https://authority.example/api
	export EXTERNAL_LOGIN_URL=https://authority.example/api/login
	export EXTERNAL_SYNC_USERNAME=kiosk
	export EXTERNAL_SYNC_PASSWORD=secret
	./sahayak
*/
package main
