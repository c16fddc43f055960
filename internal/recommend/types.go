// Sahayak - Citizen Service Recommendation Engine
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/sahayak

package recommend

import (
	"time"

	"github.com/tomtom215/sahayak/internal/models"
)

// Mode says how the request identifies the citizen.
type Mode string

const (
	ModePhone  Mode = "phone"
	ModeManual Mode = "manual"
)

// Category names used in metrics and logs.
const (
	CategoryDistrict    = "district"
	CategoryDemographic = "demographic"
	CategoryBlock       = "block"
	CategoryContent     = "content"
)

// ManualProfile carries demographic fields supplied by the caller. The
// profile is used for this request only and never stored.
type ManualProfile struct {
	DistrictID   int    `json:"district_id,omitempty"`
	DistrictName string `json:"district_name,omitempty"`
	BlockID      int    `json:"block_id,omitempty"`
	Age          *int   `json:"age,omitempty"`
	Gender       string `json:"gender,omitempty"`
	Caste        string `json:"caste,omitempty"`
	Religion     string `json:"religion,omitempty"`
}

// Request asks for recommendations. Exactly one of Phone and Manual is set.
type Request struct {
	Phone              string         `json:"phone,omitempty"`
	Manual             *ManualProfile `json:"manual,omitempty"`
	SelectedServiceIDs []int          `json:"selected_service_ids,omitempty"`
}

// Mode returns the request's input mode.
func (r *Request) Mode() Mode {
	if r.Phone != "" {
		return ModePhone
	}
	return ModeManual
}

// Response holds service names per category. Categories are independent and
// may repeat a service. Content recommendations are keyed by the name of the
// service they are similar to: each selected service and, in phone mode,
// each non-sensitive service in the citizen's recent history.
type Response struct {
	DistrictRecommendations    []string            `json:"district_recommendations"`
	DemographicRecommendations []string            `json:"demographic_recommendations"`
	BlockRecommendations       []string            `json:"block_recommendations"`
	ContentRecommendations     map[string][]string `json:"content_recommendations"`
	ServiceHistory             []HistoryEntry      `json:"service_history,omitempty"`
	Metadata                   ResponseMetadata    `json:"metadata"`
}

// HistoryEntry is one past provision, newest first in a response.
type HistoryEntry struct {
	ServiceID int    `json:"service_id"`
	Service   string `json:"service"`
	Date      string `json:"date,omitempty"`
}

// ResponseMetadata describes how the response was produced.
type ResponseMetadata struct {
	CitizenID        string           `json:"citizen_id,omitempty"`
	Mode             Mode             `json:"mode"`
	Profile          models.Profile   `json:"profile"`
	MatchedCluster   string           `json:"matched_cluster,omitempty"`
	ArtifactVersions map[string]int64 `json:"artifact_versions"`
	GeneratedAt      time.Time        `json:"generated_at"`
}

// RegenerationResult reports a Regenerate call.
type RegenerationResult struct {
	Status               string            `json:"status"`
	RegeneratedArtifacts []string          `json:"regenerated_artifacts"`
	Timestamp            time.Time         `json:"timestamp"`
	Rows                 map[string]int    `json:"rows"`
	Errors               map[string]string `json:"errors,omitempty"`
}
