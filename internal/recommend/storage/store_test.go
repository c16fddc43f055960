// Sahayak - Citizen Service Recommendation Engine
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/sahayak

package storage

import (
	"context"
	"testing"

	"github.com/rs/zerolog"

	"github.com/tomtom215/sahayak/internal/config"
)

type doc struct {
	Version int64            `json:"version"`
	Ranks   map[string][]int `json:"ranks"`
}

func openTestStore(t *testing.T, cfg *config.ArtifactsConfig) *Store {
	t.Helper()
	s, err := Open(cfg, zerolog.Nop())
	if err != nil {
		t.Fatalf("Open() error = %v", err)
	}
	return s
}

func TestStore_SaveLoad(t *testing.T) {
	s := openTestStore(t, &config.ArtifactsConfig{InMemory: true})
	defer func() { _ = s.Close() }()
	ctx := context.Background()

	var got doc
	found, err := s.Load(ctx, "district", &got)
	if err != nil || found {
		t.Fatalf("Load() on empty store = %v, %v", found, err)
	}

	if err := s.Save(ctx, "district", doc{Version: 1, Ranks: map[string][]int{"1": {10, 11}}}); err != nil {
		t.Fatalf("Save() error = %v", err)
	}
	if err := s.Save(ctx, "district", doc{Version: 2, Ranks: map[string][]int{"2": {12}}}); err != nil {
		t.Fatalf("Save() replace error = %v", err)
	}

	found, err = s.Load(ctx, "district", &got)
	if err != nil || !found {
		t.Fatalf("Load() = %v, %v", found, err)
	}
	if got.Version != 2 || len(got.Ranks) != 1 || got.Ranks["2"][0] != 12 {
		t.Errorf("Load() = %+v, want full replacement with version 2", got)
	}

	if err := s.Delete("district"); err != nil {
		t.Fatalf("Delete() error = %v", err)
	}
	if found, _ := s.Load(ctx, "district", &got); found {
		t.Error("artifact still present after Delete")
	}
}

func TestStore_PersistsAcrossReopen(t *testing.T) {
	cfg := &config.ArtifactsConfig{Path: t.TempDir()}
	ctx := context.Background()

	s := openTestStore(t, cfg)
	if err := s.Save(ctx, "content", doc{Version: 7}); err != nil {
		t.Fatalf("Save() error = %v", err)
	}
	if err := s.Close(); err != nil {
		t.Fatalf("Close() error = %v", err)
	}

	s = openTestStore(t, cfg)
	defer func() { _ = s.Close() }()

	var got doc
	found, err := s.Load(ctx, "content", &got)
	if err != nil || !found || got.Version != 7 {
		t.Fatalf("Load() after reopen = %+v, %v, %v", got, found, err)
	}
}

func TestStore_CanceledContext(t *testing.T) {
	s := openTestStore(t, &config.ArtifactsConfig{InMemory: true})
	defer func() { _ = s.Close() }()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if err := s.Save(ctx, "x", doc{}); err == nil {
		t.Error("Save() with canceled context should fail")
	}
}
