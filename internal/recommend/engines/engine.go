// Sahayak - Citizen Service Recommendation Engine
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/sahayak

// Package engines implements the three scoring strategies behind a
// recommendation (district popularity, demographic clusters, content
// similarity) plus block popularity.
//
// # Artifacts
//
// Every engine serves from a precomputed artifact held in an atomic
// pointer. Build computes a complete new artifact from source data without
// touching the served one; Swap publishes it. Readers therefore see either
// the previous or the new artifact, never a mix. Artifacts are never
// patched in place.
//
// # Thread Safety
//
// All read methods are safe for concurrent use. Build may run concurrently
// with reads; callers serialize Build/Swap per engine.
package engines

import (
	"sort"
	"time"
)

// RankedService is one entry of a ranking. Score is a provision count for
// popularity rankings and a cosine similarity for content rankings.
type RankedService struct {
	ServiceID int     `json:"service_id"`
	Name      string  `json:"service_name"`
	Score     float64 `json:"score"`
}

// ArtifactInfo identifies one build of an artifact.
type ArtifactInfo struct {
	Version int64     `json:"version"`
	BuiltAt time.Time `json:"built_at"`
	Entries int       `json:"entries"`
}

// Accept decides whether a ranked service may be served. A nil Accept
// admits everything.
type Accept func(RankedService) bool

// selectTop returns up to k accepted entries of list, preserving order.
// A non-positive k returns every accepted entry.
func selectTop(list []RankedService, accept Accept, k int) []RankedService {
	out := make([]RankedService, 0, min(len(list), max(k, 0)))
	for _, s := range list {
		if k > 0 && len(out) >= k {
			break
		}
		if accept == nil || accept(s) {
			out = append(out, s)
		}
	}
	return out
}

// rankCounts orders services by descending count, ties broken by ascending
// id, and keeps at most limit entries (all when limit <= 0).
func rankCounts(counts map[int]int64, names map[int]string, limit int) []RankedService {
	out := make([]RankedService, 0, len(counts))
	for id, n := range counts {
		out = append(out, RankedService{ServiceID: id, Name: names[id], Score: float64(n)})
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Score != out[j].Score {
			return out[i].Score > out[j].Score
		}
		return out[i].ServiceID < out[j].ServiceID
	})
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out
}

func nextInfo(prev *ArtifactInfo, entries int, now time.Time) ArtifactInfo {
	var v int64 = 1
	if prev != nil {
		v = prev.Version + 1
	}
	return ArtifactInfo{Version: v, BuiltAt: now.UTC(), Entries: entries}
}
