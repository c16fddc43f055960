// Sahayak - Citizen Service Recommendation Engine
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/sahayak

package api

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/rs/zerolog"
)

func TestRouter_UnknownRouteIsJSON(t *testing.T) {
	a := newTestAPI(t, false, nil)
	rec := a.do(http.MethodGet, "/api/v1/nope", "")
	if rec.Code != http.StatusNotFound {
		t.Fatalf("status = %d", rec.Code)
	}
	if env := decodeEnvelope(t, rec); env.Error == nil || env.Error.Code != ErrCodeNotFound {
		t.Errorf("envelope = %+v", env)
	}

	rec = a.do(http.MethodGet, "/api/v1/recommend", "")
	if rec.Code != http.StatusMethodNotAllowed {
		t.Errorf("GET /recommend = %d, want 405", rec.Code)
	}
}

func TestRouter_Headers(t *testing.T) {
	a := newTestAPI(t, false, nil)

	req := httptest.NewRequest(http.MethodGet, "/api/v1/health/live", nil)
	req.Header.Set("X-Request-ID", "kiosk-42")
	rec := httptest.NewRecorder()
	a.router.ServeHTTP(rec, req)

	if got := rec.Header().Get("X-Request-ID"); got != "kiosk-42" {
		t.Errorf("X-Request-ID = %q", got)
	}
	if got := rec.Header().Get("X-Content-Type-Options"); got != "nosniff" {
		t.Errorf("X-Content-Type-Options = %q", got)
	}
	if got := rec.Header().Get("Strict-Transport-Security"); got != "" {
		t.Errorf("HSTS on plain HTTP: %q", got)
	}
	if env := decodeEnvelope(t, rec); env.Metadata.RequestID != "kiosk-42" {
		t.Errorf("metadata request_id = %q", env.Metadata.RequestID)
	}

	rec = a.do(http.MethodGet, "/api/v1/health/live", "")
	if rec.Header().Get("X-Request-ID") == "" {
		t.Error("no request id generated")
	}
}

func TestRouter_Metrics(t *testing.T) {
	a := newTestAPI(t, false, nil)
	a.do(http.MethodGet, "/api/v1/health/live", "")

	rec := a.do(http.MethodGet, "/metrics", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	if !strings.Contains(rec.Body.String(), "/api/v1/health/live") {
		t.Error("request metrics missing the route pattern")
	}
}

func TestRouter_AdminRateLimit(t *testing.T) {
	a := newTestAPI(t, true, nil)
	cfg := DefaultChiMiddlewareConfig()
	router := NewRouter(NewHandler(HandlerDeps{Recommender: a.rec, Regenerator: a.regen, Sync: a.sync}, zerolog.Nop()), NewChiMiddleware(cfg))

	var last int
	for i := 0; i <= RateLimitAdmin.Requests; i++ {
		req := httptest.NewRequest(http.MethodGet, "/api/v1/admin/sync/status", nil)
		req.RemoteAddr = "10.0.0.7:5000"
		rec := httptest.NewRecorder()
		router.ServeHTTP(rec, req)
		last = rec.Code
	}
	if last != http.StatusTooManyRequests {
		t.Errorf("request %d = %d, want 429", RateLimitAdmin.Requests+1, last)
	}
}

func TestChiMiddlewareConfigDefaults(t *testing.T) {
	cfg := DefaultChiMiddlewareConfig()
	if cfg.RateLimitRequests != 100 || cfg.RateLimitWindow != time.Minute || len(cfg.CORSAllowedOrigins) != 0 {
		t.Errorf("defaults = %+v", cfg)
	}
}
