// Sahayak - Citizen Service Recommendation Engine
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/sahayak

/*
Package api exposes the recommendation engine and the data pipeline over HTTP.

# Routes

	POST /api/v1/recommend              recommendations for a phone or manual profile
	POST /api/v1/admin/regenerate       rebuild derived artifacts
	POST /api/v1/admin/sync             sync tables from the external authority
	GET  /api/v1/admin/sync/status      pipeline state and last run per table
	GET  /api/v1/health/live            liveness
	GET  /api/v1/health/ready           readiness (database, catalog)
	GET  /metrics                       Prometheus metrics

Every JSON response uses the models.APIResponse envelope:

	{"status": "success", "data": {...}, "metadata": {"timestamp": "...", "request_id": "..."}}
	{"status": "error", "data": null, "metadata": {...}, "error": {"code": "NOT_FOUND", "message": "..."}}

# Error Mapping

	recommend.ErrInvalidRequest, validation failures   400
	recommend.ErrCitizenNotFound                        404
	recommend.ErrRegenerationConflict, sync in progress 409 (regeneration adds Retry-After)
	sync.ErrAuthenticationFailure                       502
	recommend.ErrDataUnavailable, sync disabled         503
	request deadline exceeded                           504

Caller authentication is expected in front of this service; the admin routes
only get a stricter rate limit.
*/
package api
