// Sahayak - Citizen Service Recommendation Engine
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/sahayak

package api

import (
	"context"
	"net/http"
	"sort"
	"time"
)

// HealthLive handles GET /api/v1/health/live.
func (h *Handler) HealthLive(w http.ResponseWriter, r *http.Request) {
	h.respondData(w, r, http.StatusOK, statusSuccess, map[string]interface{}{
		"alive":  true,
		"uptime": time.Since(h.startTime).Seconds(),
	}, time.Now())
}

// HealthReady handles GET /api/v1/health/ready. Every registered check
// runs with a short timeout; any failure answers 503.
func (h *Handler) HealthReady(w http.ResponseWriter, r *http.Request) {
	started := time.Now()
	ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
	defer cancel()

	names := make([]string, 0, len(h.deps.Ready))
	for name := range h.deps.Ready {
		names = append(names, name)
	}
	sort.Strings(names)

	checks := make(map[string]string, len(names))
	ready := true
	for _, name := range names {
		if err := h.deps.Ready[name](ctx); err != nil {
			checks[name] = err.Error()
			ready = false
			continue
		}
		checks[name] = "ok"
	}

	status, envelope := http.StatusOK, "ready"
	if !ready {
		status, envelope = http.StatusServiceUnavailable, "not_ready"
	}
	h.respondData(w, r, status, envelope, map[string]interface{}{
		"ready_to_serve": ready,
		"checks":         checks,
		"uptime":         time.Since(h.startTime).Seconds(),
	}, started)
}
