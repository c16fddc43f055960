// Sahayak - Citizen Service Recommendation Engine
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/sahayak

package metrics

import (
	"errors"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestRecordSourceLoad(t *testing.T) {
	ok := SourceLoads.WithLabelValues("ml_district", "files", "success")
	failed := SourceLoads.WithLabelValues("ml_district", "database", "failure")
	okBefore := testutil.ToFloat64(ok)
	failedBefore := testutil.ToFloat64(failed)

	RecordSourceLoad("ml_district", "files", 5*time.Millisecond, nil)
	RecordSourceLoad("ml_district", "database", time.Millisecond, errors.New("connection refused"))

	if got := testutil.ToFloat64(ok) - okBefore; got != 1 {
		t.Errorf("success loads delta = %v, want 1", got)
	}
	if got := testutil.ToFloat64(failed) - failedBefore; got != 1 {
		t.Errorf("failure loads delta = %v, want 1", got)
	}
}

func TestRecordRegeneration(t *testing.T) {
	c := RegenerationRuns.WithLabelValues("district", "failure")
	before := testutil.ToFloat64(c)

	RecordRegeneration("district", time.Second, errors.New("boom"))

	if got := testutil.ToFloat64(c) - before; got != 1 {
		t.Errorf("failure runs delta = %v, want 1", got)
	}
}

func TestSetArtifact(t *testing.T) {
	SetArtifact("demographic", 7, 42)

	if got := testutil.ToFloat64(ArtifactVersion.WithLabelValues("demographic")); got != 7 {
		t.Errorf("version = %v, want 7", got)
	}
	if got := testutil.ToFloat64(ArtifactEntries.WithLabelValues("demographic")); got != 42 {
		t.Errorf("entries = %v, want 42", got)
	}
}

func TestRecordSyncTable(t *testing.T) {
	rows := SyncRowsSynced.WithLabelValues("ml_provision")
	before := testutil.ToFloat64(rows)

	RecordSyncTable("ml_provision", 250, nil)
	RecordSyncTable("ml_provision", 999, errors.New("timeout"))

	if got := testutil.ToFloat64(rows) - before; got != 250 {
		t.Errorf("rows delta = %v, want 250 (failed runs must not count)", got)
	}
}

func TestRecordSyncCycleSetsLastSuccess(t *testing.T) {
	SyncLastSuccess.Set(0)
	RecordSyncCycle(time.Second, 0)
	if got := testutil.ToFloat64(SyncLastSuccess); got != 0 {
		t.Errorf("last success set on a cycle with no successes: %v", got)
	}
	RecordSyncCycle(time.Second, 1)
	if got := testutil.ToFloat64(SyncLastSuccess); got == 0 {
		t.Error("last success not set")
	}
}

func TestRecordAPIRequest(t *testing.T) {
	c := APIRequestsTotal.WithLabelValues("POST", "/api/v1/recommend", "200")
	before := testutil.ToFloat64(c)
	RecordAPIRequest("POST", "/api/v1/recommend", 200, 3*time.Millisecond)
	if got := testutil.ToFloat64(c) - before; got != 1 {
		t.Errorf("api requests delta = %v, want 1", got)
	}
}
