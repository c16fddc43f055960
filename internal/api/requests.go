// Sahayak - Citizen Service Recommendation Engine
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/sahayak

package api

import "github.com/tomtom215/sahayak/internal/recommend"

// RecommendRequest is the body of POST /api/v1/recommend. Exactly one of
// phone and manual must be set; the orchestrator enforces that.
type RecommendRequest struct {
	Phone              string                `json:"phone,omitempty" validate:"omitempty,phone"`
	Manual             *ManualProfileRequest `json:"manual,omitempty"`
	SelectedServiceIDs []int                 `json:"selected_service_ids,omitempty" validate:"max=20,dive,gt=0"`
}

// ManualProfileRequest is a caller-supplied profile.
type ManualProfileRequest struct {
	DistrictID   int    `json:"district_id,omitempty" validate:"gte=0"`
	DistrictName string `json:"district_name,omitempty" validate:"max=100"`
	BlockID      int    `json:"block_id,omitempty" validate:"gte=0"`
	Age          *int   `json:"age,omitempty" validate:"omitempty,gte=0,lte=130"`
	Gender       string `json:"gender,omitempty" validate:"max=32"`
	Caste        string `json:"caste,omitempty" validate:"max=32"`
	Religion     string `json:"religion,omitempty" validate:"max=32"`
}

func (req *RecommendRequest) toDomain() recommend.Request {
	out := recommend.Request{
		Phone:              req.Phone,
		SelectedServiceIDs: req.SelectedServiceIDs,
	}
	if m := req.Manual; m != nil {
		out.Manual = &recommend.ManualProfile{
			DistrictID:   m.DistrictID,
			DistrictName: m.DistrictName,
			BlockID:      m.BlockID,
			Age:          m.Age,
			Gender:       m.Gender,
			Caste:        m.Caste,
			Religion:     m.Religion,
		}
	}
	return out
}

// RegenerateRequest is the body of POST /api/v1/admin/regenerate.
type RegenerateRequest struct {
	ArtifactType string `json:"artifact_type" validate:"required,max=32"`
}

// SyncRequest is the body of POST /api/v1/admin/sync. An empty target
// syncs every configured table.
type SyncRequest struct {
	TargetTable string `json:"target_table,omitempty" validate:"max=64"`
	FromDate    string `json:"from_date,omitempty" validate:"omitempty,dateonly"`
}
