// Sahayak - Citizen Service Recommendation Engine
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/sahayak

// Package eligibility narrows the service catalog to what a citizen may
// receive.
//
// Each rule is a pure predicate over (profile, service). A service is
// eligible only if every rule admits it, so the result does not depend on
// rule order and applying the filter twice changes nothing.
package eligibility

import (
	"strings"

	"github.com/tomtom215/sahayak/internal/models"
)

// Rule reports whether a service is admissible for a profile.
type Rule struct {
	Name  string
	Admit func(p *models.Profile, s *models.Service) bool
}

// Rules is the fixed rule set, in evaluation order.
var Rules = []Rule{
	{Name: "sensitive", Admit: admitSensitive},
	{Name: "caste", Admit: admitCaste},
	{Name: "age", Admit: admitAge},
	{Name: "religion_gender", Admit: admitReligionGender},
}

// Eligible reports whether svc passes every rule for p.
func Eligible(p *models.Profile, svc *models.Service) bool {
	for _, r := range Rules {
		if !r.Admit(p, svc) {
			return false
		}
	}
	return true
}

// RejectedBy returns the name of the first rule rejecting svc, or "".
func RejectedBy(p *models.Profile, svc *models.Service) string {
	for _, r := range Rules {
		if !r.Admit(p, svc) {
			return r.Name
		}
	}
	return ""
}

// EligibleServices returns the catalog entries eligible for p, preserving
// catalog order. The input slice is not modified.
func EligibleServices(p *models.Profile, catalog []models.Service) []models.Service {
	out := make([]models.Service, 0, len(catalog))
	for i := range catalog {
		if Eligible(p, &catalog[i]) {
			out = append(out, catalog[i])
		}
	}
	return out
}

// admitSensitive drops birth/death and other sensitive services for everyone.
func admitSensitive(_ *models.Profile, s *models.Service) bool {
	return !s.Sensitive
}

// admitCaste keeps unrestricted services and caste-restricted services whose
// flags include the citizen's caste. General citizens are also not offered
// caste certificates.
func admitCaste(p *models.Profile, s *models.Service) bool {
	if s.ForAll {
		return true
	}
	if p.Caste == models.CasteGeneral && strings.Contains(strings.ToLower(s.Name), "caste") {
		return false
	}
	if !s.CasteRestricted() {
		return true
	}
	return s.AdmitsCaste(p.Caste)
}

// admitAge applies [MinAge, MaxAge]. An unknown age is not excluded.
func admitAge(p *models.Profile, s *models.Service) bool {
	if p.Age == nil {
		return true
	}
	age := *p.Age
	if s.MinAge != nil && age < *s.MinAge {
		return false
	}
	if s.MaxAge != nil && age > *s.MaxAge {
		return false
	}
	return true
}

// admitReligionGender drops female-only services for a known non-female
// gender and minority services for Hindu citizens.
func admitReligionGender(p *models.Profile, s *models.Service) bool {
	if s.ForAll {
		return true
	}
	if s.IsFemale && p.Gender != models.GenderFemale && p.Gender != models.Unknown {
		return false
	}
	if s.IsMinority && p.Religion == models.ReligionHindu {
		return false
	}
	return true
}
