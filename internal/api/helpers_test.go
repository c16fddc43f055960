// Sahayak - Citizen Service Recommendation Engine
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/sahayak

package api

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"

	"github.com/goccy/go-json"
	"github.com/rs/zerolog"

	"github.com/tomtom215/sahayak/internal/models"
	"github.com/tomtom215/sahayak/internal/recommend"
	datasync "github.com/tomtom215/sahayak/internal/sync"
)

type fakeRecommender struct {
	mu   sync.Mutex
	resp *recommend.Response
	err  error
	got  []recommend.Request
}

func (f *fakeRecommender) Recommend(_ context.Context, req recommend.Request) (*recommend.Response, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.got = append(f.got, req)
	return f.resp, f.err
}

type fakeRegenerator struct {
	res      *recommend.RegenerationResult
	err      error
	artifact recommend.ArtifactType
	trigger  models.TriggeredBy
}

func (f *fakeRegenerator) Regenerate(_ context.Context, a recommend.ArtifactType, trigger models.TriggeredBy) (*recommend.RegenerationResult, error) {
	f.artifact, f.trigger = a, trigger
	return f.res, f.err
}

type fakeSync struct {
	res       *datasync.CycleResult
	err       error
	status    *datasync.Status
	statusErr error
	tables    []string
	fromDate  string
	calls     int
}

func (f *fakeSync) SyncTables(_ context.Context, tables []string, fromDate string, _ models.TriggeredBy) (*datasync.CycleResult, error) {
	f.calls++
	f.tables, f.fromDate = tables, fromDate
	return f.res, f.err
}

func (f *fakeSync) Status(context.Context) (*datasync.Status, error) {
	return f.status, f.statusErr
}

type testAPI struct {
	rec    *fakeRecommender
	regen  *fakeRegenerator
	sync   *fakeSync
	router http.Handler
}

func newTestAPI(t *testing.T, withSync bool, ready map[string]ReadinessCheck) *testAPI {
	t.Helper()
	a := &testAPI{
		rec:   &fakeRecommender{resp: &recommend.Response{DistrictRecommendations: []string{"Ration Card"}}},
		regen: &fakeRegenerator{},
		sync:  &fakeSync{},
	}
	deps := HandlerDeps{Recommender: a.rec, Regenerator: a.regen, Ready: ready}
	if withSync {
		deps.Sync = a.sync
	}
	cfg := DefaultChiMiddlewareConfig()
	cfg.RateLimitDisabled = true
	a.router = NewRouter(NewHandler(deps, zerolog.Nop()), NewChiMiddleware(cfg))
	return a
}

func (a *testAPI) do(method, path, body string) *httptest.ResponseRecorder {
	var req *http.Request
	if body == "" {
		req = httptest.NewRequest(method, path, nil)
	} else {
		req = httptest.NewRequest(method, path, strings.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
	}
	rec := httptest.NewRecorder()
	a.router.ServeHTTP(rec, req)
	return rec
}

// envelope mirrors models.APIResponse with a raw data field.
type envelope struct {
	Status   string          `json:"status"`
	Data     json.RawMessage `json:"data"`
	Metadata models.Metadata `json:"metadata"`
	Error    *models.APIError `json:"error"`
}

func decodeEnvelope(t *testing.T, rec *httptest.ResponseRecorder) envelope {
	t.Helper()
	var env envelope
	if err := json.Unmarshal(rec.Body.Bytes(), &env); err != nil {
		t.Fatalf("decode response %q: %v", rec.Body.String(), err)
	}
	return env
}
