// Sahayak - Citizen Service Recommendation Engine
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/sahayak

package main

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/goccy/go-json"
	"github.com/rs/zerolog"

	"github.com/tomtom215/sahayak/internal/config"
	"github.com/tomtom215/sahayak/internal/database"
	"github.com/tomtom215/sahayak/internal/datasource"
	"github.com/tomtom215/sahayak/internal/models"
	"github.com/tomtom215/sahayak/internal/recommend"
	"github.com/tomtom215/sahayak/internal/recommend/engines"
	"github.com/tomtom215/sahayak/internal/recommend/storage"
	datasync "github.com/tomtom215/sahayak/internal/sync"
)

// stubAuthority answers login with an opaque token and serves each table
// in a single page. Tables listed in failing answer with that status.
type stubAuthority struct {
	tables  map[string][]map[string]interface{}
	failing map[string]int
}

func (a *stubAuthority) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if r.URL.Path == "/login" {
		_ = json.NewEncoder(w).Encode(map[string]string{"access_token": "tok"})
		return
	}
	if r.Header.Get("Authorization") != "Bearer tok" {
		w.WriteHeader(http.StatusUnauthorized)
		return
	}
	ext := strings.TrimPrefix(r.URL.Path, "/api/")
	if code := a.failing[ext]; code != 0 {
		w.WriteHeader(code)
		return
	}
	rows, ok := a.tables[ext]
	if !ok {
		w.WriteHeader(http.StatusNotFound)
		return
	}
	var req struct {
		Page int `json:"Page"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		w.WriteHeader(http.StatusBadRequest)
		return
	}
	if req.Page == 0 {
		_ = json.NewEncoder(w).Encode(map[string]interface{}{"total_no_of_records": len(rows)})
		return
	}
	if req.Page > 1 {
		rows = nil
	}
	_ = json.NewEncoder(w).Encode(map[string]interface{}{"records": rows})
}

func seed(t *testing.T, db *database.DB, table string, rows []map[string]interface{}) {
	t.Helper()
	if _, err := db.PersistTable(context.Background(), table, rows); err != nil {
		t.Fatalf("seed %s: %v", table, err)
	}
}

func rankedIDs(rs []engines.RankedService) []int {
	ids := make([]int, len(rs))
	for i, r := range rs {
		ids[i] = r.ServiceID
	}
	return ids
}

// A weekly cycle where the provision fetch fails but citizens sync must
// still rebuild the popularity artifacts: the stored provisions are kept
// and joined against the refreshed citizen master.
func TestPartialSyncThenStaticRegeneration(t *testing.T) {
	ctx := context.Background()
	logger := zerolog.Nop()

	db, err := database.New(&config.DatabaseConfig{
		Path:      filepath.Join(t.TempDir(), "sahayak.duckdb"),
		MaxMemory: "512MB",
		Threads:   1,
	})
	if err != nil {
		t.Fatalf("database.New() error = %v", err)
	}
	t.Cleanup(func() { _ = db.Close() })

	// Last week's state: C2 has provisions but is not yet in the citizen
	// master, so their services count for no district.
	seed(t, db, models.TableCitizens, []map[string]interface{}{
		{"citizen_id": "C1", "citizen_phone": "9000000001", "district_id": 1, "age": 34,
			"gender": "Female", "caste": "General", "religion": "Hindu"},
	})
	seed(t, db, models.TableBSK, []map[string]interface{}{
		{"bsk_id": 7, "bsk_name": "Kasba BSK", "block_mun_id": 70, "district_id": 1},
	})
	seed(t, db, models.TableProvisions, []map[string]interface{}{
		{"bsk_id": 7, "customer_id": "C1", "service_id": 10, "service_name": "Ration Card", "prov_date": "2026-10-01"},
		{"bsk_id": 7, "customer_id": "C1", "service_id": 10, "service_name": "Ration Card", "prov_date": "2026-10-02"},
		{"bsk_id": 7, "customer_id": "C2", "service_id": 20, "service_name": "Old Age Pension", "prov_date": "2026-10-03"},
		{"bsk_id": 7, "customer_id": "C2", "service_id": 20, "service_name": "Old Age Pension", "prov_date": "2026-10-04"},
		{"bsk_id": 7, "customer_id": "C2", "service_id": 20, "service_name": "Old Age Pension", "prov_date": "2026-10-05"},
	})

	authority := &stubAuthority{
		tables: map[string][]map[string]interface{}{
			"citizen_master": {
				{"citizen_id": "C2", "citizen_phone": "9000000002", "district_id": 1, "age": 67,
					"gender": "Male", "caste": "SC", "religion": "Hindu"},
			},
			"provision": {
				{"bsk_id": 7, "customer_id": "C2", "service_id": 30, "service_name": "Health Card", "prov_date": "2026-10-12"},
			},
		},
		failing: map[string]int{"provision": http.StatusBadRequest},
	}
	srv := httptest.NewServer(authority)
	t.Cleanup(srv.Close)

	syncCfg := &config.SyncConfig{
		Enabled:           true,
		BaseURL:           srv.URL + "/api",
		LoginURL:          srv.URL + "/login",
		Username:          "bsk",
		Password:          "pw",
		TokenLifetime:     time.Hour,
		AuthRetryAttempts: 1,
		AuthRetryDelay:    time.Millisecond,
		Tables:            []string{models.TableCitizens, models.TableProvisions},
		PageSize:          100,
		RequestTimeout:    5 * time.Second,
		TableTimeout:      5 * time.Second,
		RetryAttempts:     1,
		RetryDelay:        time.Millisecond,
		DefaultFromDate:   "2026-01-01",
	}
	auth := datasync.NewAuthenticator(syncCfg, srv.Client(), logger)
	client, err := datasync.NewClient(syncCfg, srv.Client(), auth, logger)
	if err != nil {
		t.Fatalf("NewClient() error = %v", err)
	}
	manager := datasync.NewManager(client, db, nil, datasync.NewManagerConfig(syncCfg, time.UTC), logger)

	res, err := manager.RunCycle(ctx, models.TriggerScheduler)
	if !errors.Is(err, datasync.ErrPartialSyncFailure) {
		t.Fatalf("RunCycle() error = %v, want ErrPartialSyncFailure", err)
	}
	if res.Succeeded != 1 || res.Failed != 1 {
		t.Fatalf("cycle result = %+v", res)
	}
	prov, err := db.GetSyncMetadata(ctx, models.TableProvisions)
	if err != nil || prov.LastSyncStatus != models.StatusFailure {
		t.Fatalf("provision metadata = %+v, %v", prov, err)
	}

	layer := datasource.NewLayer(ctx, datasource.NewDuckDBSource(db.Conn(), database.SourceTables()), nil, logger)
	demographic, err := engines.NewDemographicEngine(engines.DefaultClusterConfig())
	if err != nil {
		t.Fatal(err)
	}
	eng := &recommend.Engines{
		District:    engines.NewDistrictEngine(10),
		Demographic: demographic,
		Block:       engines.NewBlockEngine(10),
		Content:     engines.NewContentEngine(nil, logger),
	}
	store, err := storage.Open(&config.ArtifactsConfig{InMemory: true}, logger)
	if err != nil {
		t.Fatalf("storage.Open() error = %v", err)
	}
	t.Cleanup(func() { _ = store.Close() })

	regen := recommend.NewRegenerator(recommend.RegeneratorDeps{
		Loader:  layer,
		Engines: eng,
		Store:   store,
		RunLog:  db,
	}, logger)

	result, err := regen.Regenerate(ctx, recommend.ArtifactStatic, models.TriggerScheduler)
	if err != nil {
		t.Fatalf("Regenerate(static) error = %v", err)
	}
	if result.Status != recommend.RegenerationSuccess {
		t.Fatalf("regeneration = %+v", result)
	}

	// C2's stored provisions now count for district 1; the failed fetch's
	// Health Card never arrived.
	if got := rankedIDs(eng.District.TopServicesForDistrict(1, 5)); len(got) != 2 || got[0] != 20 || got[1] != 10 {
		t.Errorf("district 1 ranking = %v, want [20 10]", got)
	}
	if got := rankedIDs(eng.Block.TopServicesForBlock(70, 5)); len(got) != 2 || got[0] != 20 || got[1] != 10 {
		t.Errorf("block 70 ranking = %v, want [20 10]", got)
	}
	// The new citizen forms its own demographic cluster.
	senior := 67
	profile := models.ProfileFromCitizen(&models.Citizen{CitizenID: "X", DistrictID: 1, Age: &senior,
		Gender: "Male", Caste: "SC", Religion: "Hindu"})
	recs := eng.Demographic.Recommend(&profile, 5)
	if ids := rankedIDs(recs); len(ids) == 0 || ids[0] != 20 {
		t.Errorf("demographic recommendations = %v, want Old Age Pension first", ids)
	}

	runs, err := db.RecentRegenerations(ctx, 10)
	if err != nil {
		t.Fatalf("RecentRegenerations() error = %v", err)
	}
	if len(runs) != 3 {
		t.Errorf("regeneration log entries = %d, want 3", len(runs))
	}
}
