// Sahayak - Citizen Service Recommendation Engine
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/sahayak

package engines

import "github.com/tomtom215/sahayak/internal/models"

// DistrictEngine ranks services by how often they were provided to
// citizens of each district. The district comes from the citizen record,
// not from the BSK that delivered the service.
type DistrictEngine struct {
	groupRanker
}

// NewDistrictEngine keeps at most maxRanked services per district.
func NewDistrictEngine(maxRanked int) *DistrictEngine {
	return &DistrictEngine{groupRanker: newGroupRanker(maxRanked)}
}

// Build computes a new ranking. Provisions whose customer is not a known
// citizen, or whose citizen has no district, are ignored.
func (e *DistrictEngine) Build(citizens []models.Citizen, provisions []models.Provision) *DistrictRanking {
	districtOf := make(map[string]int, len(citizens))
	for _, c := range citizens {
		if c.DistrictID != 0 {
			districtOf[c.CitizenID] = c.DistrictID
		}
	}

	counts := make(map[int]map[int]int64)
	for _, p := range provisions {
		d, ok := districtOf[p.CustomerID]
		if !ok {
			continue
		}
		addCount(counts, d, p.ServiceID)
	}
	return e.build(counts, provisionNames(provisions))
}

// Ranking returns the district's full stored ranking.
func (e *DistrictEngine) Ranking(districtID int) []RankedService {
	return e.ranking(districtID)
}

// TopServicesForDistrict returns at most k services, most provided first.
func (e *DistrictEngine) TopServicesForDistrict(districtID, k int) []RankedService {
	return e.top(districtID, nil, k)
}

// Select returns up to k accepted services for the district.
func (e *DistrictEngine) Select(districtID int, accept Accept, k int) []RankedService {
	return e.top(districtID, accept, k)
}
