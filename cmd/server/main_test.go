// Sahayak - Citizen Service Recommendation Engine
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/sahayak

package main

import (
	"path/filepath"
	"testing"

	"github.com/rs/zerolog"

	"github.com/tomtom215/sahayak/internal/config"
	"github.com/tomtom215/sahayak/internal/database"
	"github.com/tomtom215/sahayak/internal/datasource"
	"github.com/tomtom215/sahayak/internal/recommend/engines"
)

func TestBuildClusterConfig(t *testing.T) {
	t.Run("empty keeps defaults", func(t *testing.T) {
		got, err := buildClusterConfig(&config.RecommendConfig{ReligionGrouping: true})
		if err != nil {
			t.Fatalf("buildClusterConfig() error = %v", err)
		}
		want := engines.DefaultClusterConfig()
		if len(got.AgeBuckets) != len(want.AgeBuckets) || len(got.Attributes) != len(want.Attributes) || got.TopN != want.TopN {
			t.Errorf("got %+v, want defaults %+v", got, want)
		}
	})

	t.Run("overrides", func(t *testing.T) {
		got, err := buildClusterConfig(&config.RecommendConfig{
			AgeBuckets:        []string{"young:40", "old"},
			ClusterAttributes: []string{"gender", "district"},
			RelaxationOrder:   []string{"district", "gender"},
			ClusterTopN:       7,
		})
		if err != nil {
			t.Fatalf("buildClusterConfig() error = %v", err)
		}
		if len(got.AgeBuckets) != 2 || got.AgeBuckets[0].Label != "young" {
			t.Errorf("AgeBuckets = %+v", got.AgeBuckets)
		}
		if len(got.Attributes) != 2 || got.TopN != 7 || got.ReligionGrouping {
			t.Errorf("got %+v", got)
		}
		if _, err := engines.NewDemographicEngine(got); err != nil {
			t.Errorf("NewDemographicEngine() error = %v", err)
		}
	})

	t.Run("bad bucket", func(t *testing.T) {
		if _, err := buildClusterConfig(&config.RecommendConfig{AgeBuckets: []string{"kid:abc"}}); err == nil {
			t.Error("expected error for a non-numeric bound")
		}
	})
}

func TestBuildSources(t *testing.T) {
	db, err := database.New(&config.DatabaseConfig{Path: filepath.Join(t.TempDir(), "test.duckdb"), MaxMemory: "256MB"})
	if err != nil {
		t.Fatalf("database.New() error = %v", err)
	}
	t.Cleanup(func() { _ = db.Close() })

	tests := []struct {
		preferred    string
		wantPrimary  datasource.SourceKind
		wantFallback datasource.SourceKind
	}{
		{"database", datasource.SourceDatabase, datasource.SourceFiles},
		{"files", datasource.SourceFiles, datasource.SourceDatabase},
	}
	for _, tt := range tests {
		primary, fallback := buildSources(&config.SourceConfig{Preferred: tt.preferred, FilesDir: t.TempDir()}, db)
		if primary.Kind() != tt.wantPrimary || fallback.Kind() != tt.wantFallback {
			t.Errorf("%s: primary %s fallback %s", tt.preferred, primary.Kind(), fallback.Kind())
		}
	}
}

func TestInitPipelineDisabled(t *testing.T) {
	cfg := &config.Config{}
	p, err := initPipeline(cfg, nil, nil, nil, zerolog.Nop())
	if err != nil || p != nil {
		t.Fatalf("initPipeline() = %v, %v; want nil, nil", p, err)
	}
	if err := p.Close(); err != nil {
		t.Errorf("Close() on nil components = %v", err)
	}
}
