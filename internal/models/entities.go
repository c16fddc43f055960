// Sahayak - Citizen Service Recommendation Engine
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/sahayak

package models

import "time"

// Source table names.
const (
	TableCitizens   = "ml_citizen_master"
	TableProvisions = "ml_provision"
	TableDistricts  = "ml_district"
	TableBSK        = "ml_bsk_master"
	TableServices   = "services"
)

// Citizen is a row of ml_citizen_master.
type Citizen struct {
	CitizenID  string `json:"citizen_id"`
	Phone      string `json:"citizen_phone"`
	Name       string `json:"citizen_name,omitempty"`
	DistrictID int    `json:"district_id"`
	Age        *int   `json:"age,omitempty"`
	Gender     string `json:"gender,omitempty"`
	Caste      string `json:"caste,omitempty"`
	Religion   string `json:"religion,omitempty"`
}

// Provision records one service delivered to a citizen at a BSK.
type Provision struct {
	BSKID         int       `json:"bsk_id"`
	CustomerID    string    `json:"customer_id"`
	ServiceID     int       `json:"service_id"`
	ServiceName   string    `json:"service_name,omitempty"`
	ProvisionDate time.Time `json:"prov_date"`
}

// Service is a catalog entry together with its eligibility columns.
type Service struct {
	ServiceID   int    `json:"service_id"`
	Name        string `json:"service_name"`
	Description string `json:"service_desc,omitempty"`

	// EnhancedDescription is a rewritten description used for embeddings
	// in place of Description when present.
	EnhancedDescription string `json:"enhanced_desc,omitempty"`

	MinAge *int `json:"min_age,omitempty"`
	MaxAge *int `json:"max_age,omitempty"`

	IsSC       bool `json:"is_sc"`
	IsST       bool `json:"is_st"`
	IsOBCA     bool `json:"is_obc_a"`
	IsOBCB     bool `json:"is_obc_b"`
	IsFemale   bool `json:"is_female"`
	IsMinority bool `json:"is_minority"`
	ForAll     bool `json:"for_all"`

	IsRecurrent bool `json:"is_recurrent"`
	Sensitive   bool `json:"sensitive"`
}

// CasteRestricted reports whether any caste flag is set.
func (s *Service) CasteRestricted() bool {
	return s.IsSC || s.IsST || s.IsOBCA || s.IsOBCB
}

// AdmitsCaste reports whether a caste-restricted service admits caste.
// caste must already be normalized.
func (s *Service) AdmitsCaste(caste string) bool {
	switch caste {
	case CasteSC:
		return s.IsSC
	case CasteST:
		return s.IsST
	case CasteOBCA:
		return s.IsOBCA
	case CasteOBCB:
		return s.IsOBCB
	default:
		return false
	}
}

// District is a row of ml_district.
type District struct {
	DistrictID int    `json:"district_id"`
	Name       string `json:"district_name"`
}

// BSK is a service centre. BlockMunID links provisions to a block or
// municipality.
type BSK struct {
	BSKID      int    `json:"bsk_id"`
	Name       string `json:"bsk_name,omitempty"`
	BlockMunID int    `json:"block_mun_id"`
	DistrictID int    `json:"district_id"`
}

// ProfileSource says how a profile was obtained.
type ProfileSource string

const (
	ProfileLookup ProfileSource = "lookup"
	ProfileManual ProfileSource = "manual"
)

// Profile is the normalized demographic view of a citizen. Zero DistrictID
// or BlockID means unknown.
type Profile struct {
	CitizenID  string        `json:"citizen_id,omitempty"`
	DistrictID int           `json:"district_id,omitempty"`
	BlockID    int           `json:"block_id,omitempty"`
	Age        *int          `json:"age,omitempty"`
	Gender     string        `json:"gender"`
	Caste      string        `json:"caste"`
	Religion   string        `json:"religion"`
	Source     ProfileSource `json:"source"`
}

// ProfileFromCitizen builds a normalized profile from a looked-up citizen.
func ProfileFromCitizen(c *Citizen) Profile {
	return Profile{
		CitizenID:  c.CitizenID,
		DistrictID: c.DistrictID,
		Age:        c.Age,
		Gender:     NormalizeGender(c.Gender),
		Caste:      NormalizeCaste(c.Caste),
		Religion:   NormalizeValue(c.Religion),
		Source:     ProfileLookup,
	}
}
