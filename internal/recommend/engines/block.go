// Sahayak - Citizen Service Recommendation Engine
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/sahayak

package engines

import "github.com/tomtom215/sahayak/internal/models"

// BlockEngine ranks services per block or municipality, attributing each
// provision to the block of the BSK that delivered it.
type BlockEngine struct {
	groupRanker
}

// NewBlockEngine keeps at most maxRanked services per block.
func NewBlockEngine(maxRanked int) *BlockEngine {
	return &BlockEngine{groupRanker: newGroupRanker(maxRanked)}
}

// Build computes a new ranking from the BSK master and provisions.
func (e *BlockEngine) Build(bsks []models.BSK, provisions []models.Provision) *BlockRanking {
	blockOf := make(map[int]int, len(bsks))
	for _, b := range bsks {
		if b.BlockMunID != 0 {
			blockOf[b.BSKID] = b.BlockMunID
		}
	}

	counts := make(map[int]map[int]int64)
	for _, p := range provisions {
		block, ok := blockOf[p.BSKID]
		if !ok {
			continue
		}
		addCount(counts, block, p.ServiceID)
	}
	return e.build(counts, provisionNames(provisions))
}

// TopServicesForBlock returns at most k services, most provided first.
func (e *BlockEngine) TopServicesForBlock(blockID, k int) []RankedService {
	return e.top(blockID, nil, k)
}

// Select returns up to k accepted services for the block.
func (e *BlockEngine) Select(blockID int, accept Accept, k int) []RankedService {
	return e.top(blockID, accept, k)
}
