// Sahayak - Citizen Service Recommendation Engine
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/sahayak

package sync

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"github.com/tomtom215/sahayak/internal/models"
)

var testToday = time.Date(2026, 10, 18, 0, 5, 0, 0, time.UTC)

func newTestManager(t *testing.T, fa *fakeAuthority) (*Manager, *memSink, *memPublisher) {
	t.Helper()
	srv := httptest.NewServer(fa)
	t.Cleanup(srv.Close)

	cfg := testSyncConfig(srv.URL)
	client, _ := newTestClient(t, srv, cfg)
	sink := newMemSink()
	pub := &memPublisher{}
	m := NewManager(client, sink, pub, NewManagerConfig(cfg, time.UTC), zerolog.Nop())
	m.now = func() time.Time { return testToday }
	return m, sink, pub
}

func TestManager_RunCycleSuccess(t *testing.T) {
	fa := newFakeAuthority()
	fa.tables["citizen_master"] = records(3, "citizen_id")
	fa.tables["provision"] = records(2, "customer_id")
	m, sink, pub := newTestManager(t, fa)

	res, err := m.RunCycle(context.Background(), models.TriggerScheduler)
	if err != nil {
		t.Fatalf("RunCycle() error = %v", err)
	}
	if res.Succeeded != 2 || res.Failed != 0 {
		t.Errorf("result = %+v", res)
	}
	for _, tr := range res.Tables {
		if tr.FromDate != "2024-01-01" || tr.ToDate != "2026-10-18" {
			t.Errorf("%s window = %s..%s", tr.Table, tr.FromDate, tr.ToDate)
		}
	}

	md := sink.metadata(models.TableCitizens)
	if md.LastSyncStatus != models.StatusSuccess || md.RowsSynced != 3 || md.LastSyncFromDate != "2026-10-18" {
		t.Errorf("citizen metadata = %+v", md)
	}
	if pub.count() != 1 || pub.events[0].RowsSynced != 5 || len(pub.events[0].Tables) != 2 {
		t.Errorf("published = %+v", pub.events)
	}
	if m.Running() {
		t.Error("manager still running after cycle")
	}

	// The next cycle starts where the last successful window ended.
	later := testToday.Add(7 * 24 * time.Hour)
	m.now = func() time.Time { return later }
	if _, err := m.RunCycle(context.Background(), models.TriggerScheduler); err != nil {
		t.Fatalf("second RunCycle() error = %v", err)
	}
	if w := fa.windows["citizen_master"]; w != [2]string{"2026-10-18", "2026-10-25"} {
		t.Errorf("second window = %v", w)
	}
}

// One table fails while the other succeeds; regeneration is
// still announced.
func TestManager_PartialFailure(t *testing.T) {
	fa := newFakeAuthority()
	fa.tables["citizen_master"] = records(2, "citizen_id")
	fa.tables["provision"] = records(2, "customer_id")
	fa.failing["provision"] = http.StatusBadRequest
	m, sink, pub := newTestManager(t, fa)
	sink.meta[models.TableProvisions] = models.SyncMetadata{
		TableName:        models.TableProvisions,
		LastSyncFromDate: "2026-10-11",
		LastSyncStatus:   models.StatusSuccess,
		TotalRecords:     100,
	}

	res, err := m.RunCycle(context.Background(), models.TriggerScheduler)
	if !errors.Is(err, ErrPartialSyncFailure) {
		t.Fatalf("RunCycle() error = %v, want ErrPartialSyncFailure", err)
	}
	if res == nil || res.Succeeded != 1 || res.Failed != 1 {
		t.Fatalf("result = %+v", res)
	}

	prov := sink.metadata(models.TableProvisions)
	if prov.LastSyncStatus != models.StatusFailure || prov.ErrorMessage == "" {
		t.Errorf("provision metadata = %+v", prov)
	}
	if prov.LastSyncFromDate != "2026-10-11" || prov.TotalRecords != 100 {
		t.Errorf("failed table lost its previous window: %+v", prov)
	}
	if cit := sink.metadata(models.TableCitizens); cit.LastSyncStatus != models.StatusSuccess {
		t.Errorf("citizen metadata = %+v", cit)
	}
	if len(sink.rows[models.TableProvisions]) != 0 {
		t.Error("failed table was persisted")
	}
	if pub.count() != 1 || len(pub.events[0].FailedTables) != 1 {
		t.Errorf("published = %+v", pub.events)
	}
}

func TestManager_PersistFailure(t *testing.T) {
	fa := newFakeAuthority()
	fa.tables["citizen_master"] = records(2, "citizen_id")
	fa.tables["provision"] = records(2, "customer_id")
	m, sink, pub := newTestManager(t, fa)
	sink.persistErr[models.TableCitizens] = errors.New("constraint violation")
	sink.persistErr[models.TableProvisions] = errors.New("constraint violation")

	res, err := m.RunCycle(context.Background(), models.TriggerManual)
	if !errors.Is(err, ErrPartialSyncFailure) {
		t.Fatalf("RunCycle() error = %v", err)
	}
	if res.Succeeded != 0 {
		t.Errorf("succeeded = %d", res.Succeeded)
	}
	if pub.count() != 0 {
		t.Error("completion published although nothing synced")
	}
}

func TestManager_AuthenticationFailure(t *testing.T) {
	fa := newFakeAuthority()
	fa.loginErr = http.StatusServiceUnavailable
	m, sink, pub := newTestManager(t, fa)

	res, err := m.RunCycle(context.Background(), models.TriggerScheduler)
	if !errors.Is(err, ErrAuthenticationFailure) {
		t.Fatalf("RunCycle() error = %v, want ErrAuthenticationFailure", err)
	}
	if res.Failed != 2 {
		t.Errorf("failed = %d, want every table", res.Failed)
	}
	if md := sink.metadata(models.TableCitizens); md.LastSyncStatus != models.StatusFailure {
		t.Errorf("metadata = %+v", md)
	}
	if pub.count() != 0 {
		t.Error("completion published after failed login")
	}
	if fa.callCount("citizen_master") != 0 {
		t.Error("data endpoint called without a token")
	}
}

func TestManager_SyncTablesValidation(t *testing.T) {
	fa := newFakeAuthority()
	fa.tables["citizen_master"] = records(1, "citizen_id")
	m, _, _ := newTestManager(t, fa)
	ctx := context.Background()

	if _, err := m.SyncTables(ctx, []string{"ml_unknown"}, "", models.TriggerManual); !errors.Is(err, ErrUnknownTable) {
		t.Errorf("unknown table error = %v", err)
	}
	if _, err := m.SyncTables(ctx, nil, "01/02/2024", models.TriggerManual); !errors.Is(err, ErrInvalidFromDate) {
		t.Errorf("bad from date error = %v", err)
	}

	res, err := m.SyncTables(ctx, []string{models.TableCitizens}, "2025-06-01", models.TriggerManual)
	if err != nil {
		t.Fatalf("SyncTables() error = %v", err)
	}
	if len(res.Tables) != 1 || res.Tables[0].FromDate != "2025-06-01" {
		t.Errorf("result = %+v", res.Tables)
	}
	if fa.callCount("provision") != 0 {
		t.Error("untargeted table synced")
	}
}

// blockingFetcher holds Authenticate until released.
type blockingFetcher struct {
	started chan struct{}
	release chan struct{}
}

func (b *blockingFetcher) Authenticate(ctx context.Context) error {
	close(b.started)
	<-b.release
	return nil
}

func (b *blockingFetcher) FetchTable(context.Context, string, string, string) (*FetchResult, error) {
	return &FetchResult{}, nil
}

func TestManager_ConcurrentCycleRejected(t *testing.T) {
	f := &blockingFetcher{started: make(chan struct{}), release: make(chan struct{})}
	m := NewManager(f, newMemSink(), nil, ManagerConfig{Tables: []string{models.TableCitizens}}, zerolog.Nop())

	done := make(chan error, 1)
	go func() {
		_, err := m.RunCycle(context.Background(), models.TriggerScheduler)
		done <- err
	}()
	<-f.started

	if !m.Running() || m.Phase() != PhaseAuthenticating {
		t.Errorf("phase = %q during authentication", m.Phase())
	}
	if _, err := m.RunCycle(context.Background(), models.TriggerManual); !errors.Is(err, ErrSyncInProgress) {
		t.Errorf("concurrent RunCycle() error = %v, want ErrSyncInProgress", err)
	}
	st, err := m.Status(context.Background())
	if err != nil || !st.PipelineRunning {
		t.Errorf("Status() = %+v, %v", st, err)
	}

	close(f.release)
	if err := <-done; err != nil {
		t.Fatalf("first cycle error = %v", err)
	}
	if m.Running() {
		t.Error("still running after completion")
	}
}

func TestManager_Status(t *testing.T) {
	fa := newFakeAuthority()
	fa.tables["citizen_master"] = records(1, "citizen_id")
	fa.tables["provision"] = records(1, "customer_id")
	m, _, _ := newTestManager(t, fa)

	next := time.Date(2026, 10, 25, 0, 0, 0, 0, time.UTC)
	m.SetNextRunSource(func() time.Time { return next })
	if _, err := m.RunCycle(context.Background(), models.TriggerScheduler); err != nil {
		t.Fatalf("RunCycle() error = %v", err)
	}

	st, err := m.Status(context.Background())
	if err != nil {
		t.Fatalf("Status() error = %v", err)
	}
	if st.PipelineRunning || st.Phase != PhaseIdle {
		t.Errorf("status running = %v phase = %q", st.PipelineRunning, st.Phase)
	}
	if st.NextScheduledRun == nil || !st.NextScheduledRun.Equal(next) {
		t.Errorf("next run = %v", st.NextScheduledRun)
	}
	if len(st.LastRunPerTable) != 2 || st.LastRunPerTable[models.TableProvisions].RowsSynced != 1 {
		t.Errorf("last runs = %+v", st.LastRunPerTable)
	}
}

func TestManager_RegenerationPhase(t *testing.T) {
	m := NewManager(nil, newMemSink(), nil, ManagerConfig{Tables: []string{models.TableCitizens}}, zerolog.Nop())

	steps := []struct {
		set     Phase
		want    Phase
		running bool
	}{
		{PhaseAwaitingRegen, PhaseAwaitingRegen, true},
		{PhaseRegenerating, PhaseRegenerating, true},
		{PhaseFetching, PhaseRegenerating, true}, // cycle phases are not accepted here
		{PhaseIdle, PhaseIdle, false},
	}
	for _, step := range steps {
		m.SetRegenerationPhase(step.set)
		st, err := m.Status(context.Background())
		if err != nil {
			t.Fatalf("Status() error = %v", err)
		}
		if st.Phase != step.want || st.PipelineRunning != step.running {
			t.Errorf("after %q: phase = %q running = %v, want %q %v", step.set, st.Phase, st.PipelineRunning, step.want, step.running)
		}
	}
}

func TestManager_CyclePhaseTakesPrecedence(t *testing.T) {
	f := &blockingFetcher{started: make(chan struct{}), release: make(chan struct{})}
	m := NewManager(f, newMemSink(), nil, ManagerConfig{Tables: []string{models.TableCitizens}}, zerolog.Nop())
	m.SetRegenerationPhase(PhaseAwaitingRegen)

	done := make(chan error, 1)
	go func() {
		_, err := m.RunCycle(context.Background(), models.TriggerManual)
		done <- err
	}()
	<-f.started
	if got := m.Phase(); got != PhaseAuthenticating {
		t.Errorf("Phase() during cycle = %q, want authenticating", got)
	}
	close(f.release)
	if err := <-done; err != nil {
		t.Fatalf("RunCycle() error = %v", err)
	}
	if got := m.Phase(); got != PhaseAwaitingRegen {
		t.Errorf("Phase() after cycle = %q, want the pending rebuild", got)
	}
}
