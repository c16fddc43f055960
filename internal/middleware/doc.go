// Sahayak - Citizen Service Recommendation Engine
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/sahayak

/*
Package middleware provides the chi middleware shared by every API route.

  - RequestID: takes X-Request-ID from the caller or generates a UUID, echoes
    it in the response and stores request and correlation ids in the context
    for logging.Ctx.
  - PrometheusMetrics: counts requests and observes latency per chi route
    pattern, so path parameters do not explode label cardinality.
  - AccessLog: one structured zerolog line per request; requests slower than
    the threshold are logged at warn level.

Order matters: RequestID must run before AccessLog so the log line carries
the request id.

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.AccessLog(logger, 2*time.Second))
	r.Use(middleware.PrometheusMetrics)
*/
package middleware
