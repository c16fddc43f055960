// Sahayak - Citizen Service Recommendation Engine
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/sahayak

package engines

import (
	"sync/atomic"
	"time"

	"github.com/tomtom215/sahayak/internal/models"
)

// GroupRanking maps a group (district or block) to its services ordered by
// provision count.
type GroupRanking struct {
	ArtifactInfo
	Groups map[int][]RankedService `json:"groups"`
}

// DistrictRanking is the district engine's artifact.
type DistrictRanking = GroupRanking

// BlockRanking is the block engine's artifact.
type BlockRanking = GroupRanking

// groupRanker holds the served GroupRanking shared by the district and
// block engines.
type groupRanker struct {
	maxRanked int
	now       func() time.Time
	current   atomic.Pointer[GroupRanking]
}

func newGroupRanker(maxRanked int) groupRanker {
	return groupRanker{maxRanked: maxRanked, now: time.Now}
}

// build ranks counts[group][service] into a new artifact.
func (g *groupRanker) build(counts map[int]map[int]int64, names map[int]string) *GroupRanking {
	groups := make(map[int][]RankedService, len(counts))
	entries := 0
	for group, c := range counts {
		groups[group] = rankCounts(c, names, g.maxRanked)
		entries += len(groups[group])
	}
	var prev *ArtifactInfo
	if cur := g.current.Load(); cur != nil {
		prev = &cur.ArtifactInfo
	}
	return &GroupRanking{ArtifactInfo: nextInfo(prev, entries, g.now()), Groups: groups}
}

// Swap publishes r.
func (g *groupRanker) Swap(r *GroupRanking) {
	if r == nil {
		return
	}
	if r.Groups == nil {
		r.Groups = map[int][]RankedService{}
	}
	g.current.Store(r)
}

// Current returns the served artifact, or nil before the first build.
func (g *groupRanker) Current() *GroupRanking {
	return g.current.Load()
}

// Info returns the served artifact's identity.
func (g *groupRanker) Info() (ArtifactInfo, bool) {
	cur := g.current.Load()
	if cur == nil {
		return ArtifactInfo{}, false
	}
	return cur.ArtifactInfo, true
}

func (g *groupRanker) ranking(group int) []RankedService {
	cur := g.current.Load()
	if cur == nil {
		return nil
	}
	return cur.Groups[group]
}

func (g *groupRanker) top(group int, accept Accept, k int) []RankedService {
	return selectTop(g.ranking(group), accept, k)
}

func provisionNames(provisions []models.Provision) map[int]string {
	names := make(map[int]string)
	for _, p := range provisions {
		if p.ServiceName != "" {
			names[p.ServiceID] = p.ServiceName
		}
	}
	return names
}

func addCount(counts map[int]map[int]int64, group, service int) {
	c, ok := counts[group]
	if !ok {
		c = make(map[int]int64)
		counts[group] = c
	}
	c[service]++
}
