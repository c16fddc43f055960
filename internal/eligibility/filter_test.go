// Sahayak - Citizen Service Recommendation Engine
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/sahayak

package eligibility

import (
	"testing"

	"github.com/tomtom215/sahayak/internal/models"
)

func intPtr(v int) *int { return &v }

func profile(age *int, gender, caste, religion string) *models.Profile {
	return &models.Profile{
		Age:      age,
		Gender:   models.NormalizeGender(gender),
		Caste:    models.NormalizeCaste(caste),
		Religion: models.NormalizeValue(religion),
	}
}

func TestEligible(t *testing.T) {
	adultMaleGeneralHindu := profile(intPtr(30), "Male", "General", "Hindu")
	femaleSCMuslim := profile(intPtr(25), "Female", "SC", "Muslim")
	unknownEverything := profile(nil, "", "", "")

	tests := []struct {
		name    string
		p       *models.Profile
		svc     models.Service
		want    bool
		wantBy  string
	}{
		{"plain service", adultMaleGeneralHindu, models.Service{Name: "Khadya Sathi"}, true, ""},
		{"sensitive always dropped", adultMaleGeneralHindu, models.Service{Name: "Birth Certificate", Sensitive: true}, false, "sensitive"},
		{"sensitive dropped for for_all", femaleSCMuslim, models.Service{Name: "Death Certificate", Sensitive: true, ForAll: true}, false, "sensitive"},
		{"general excluded from sc scheme", adultMaleGeneralHindu, models.Service{Name: "Taposili Bandhu", IsSC: true}, false, "caste"},
		{"sc admitted to sc scheme", femaleSCMuslim, models.Service{Name: "Taposili Bandhu", IsSC: true}, true, ""},
		{"sc excluded from obc scheme", femaleSCMuslim, models.Service{Name: "OBC Scholarship", IsOBCA: true, IsOBCB: true}, false, "caste"},
		{"unknown caste excluded from restricted", unknownEverything, models.Service{Name: "Taposili Bandhu", IsST: true}, false, "caste"},
		{"general not offered caste certificate", adultMaleGeneralHindu, models.Service{Name: "Caste Certificate"}, false, "caste"},
		{"sc offered caste certificate", femaleSCMuslim, models.Service{Name: "Caste Certificate"}, true, ""},
		{"below min age", profile(intPtr(15), "Male", "General", "Hindu"), models.Service{Name: "Old Age Pension", MinAge: intPtr(60)}, false, "age"},
		{"above max age", adultMaleGeneralHindu, models.Service{Name: "Kanyashree", MaxAge: intPtr(18)}, false, "age"},
		{"within range", adultMaleGeneralHindu, models.Service{Name: "Yuvasree", MinAge: intPtr(18), MaxAge: intPtr(40)}, true, ""},
		{"boundary inclusive", profile(intPtr(60), "Male", "General", "Hindu"), models.Service{Name: "Old Age Pension", MinAge: intPtr(60)}, true, ""},
		{"unknown age kept", unknownEverything, models.Service{Name: "Old Age Pension", MinAge: intPtr(60)}, true, ""},
		{"female-only for male", adultMaleGeneralHindu, models.Service{Name: "Lakshmir Bhandar", IsFemale: true}, false, "religion_gender"},
		{"female-only for female", femaleSCMuslim, models.Service{Name: "Lakshmir Bhandar", IsFemale: true}, true, ""},
		{"female-only for unknown gender", unknownEverything, models.Service{Name: "Lakshmir Bhandar", IsFemale: true}, true, ""},
		{"minority for hindu", adultMaleGeneralHindu, models.Service{Name: "Aikyasree", IsMinority: true}, false, "religion_gender"},
		{"minority for muslim", femaleSCMuslim, models.Service{Name: "Aikyasree", IsMinority: true}, true, ""},
		{"for_all bypasses caste", adultMaleGeneralHindu, models.Service{Name: "Duare Sarkar", IsSC: true, ForAll: true}, true, ""},
		{"for_all keeps age", profile(intPtr(10), "Male", "General", "Hindu"), models.Service{Name: "Pension", ForAll: true, MinAge: intPtr(60)}, false, "age"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc := tt.svc
			if got := Eligible(tt.p, &svc); got != tt.want {
				t.Errorf("Eligible() = %v, want %v", got, tt.want)
			}
			if got := RejectedBy(tt.p, &svc); got != tt.wantBy {
				t.Errorf("RejectedBy() = %q, want %q", got, tt.wantBy)
			}
		})
	}
}

func TestEligibleServicesNeverReturnsSensitive(t *testing.T) {
	catalog := []models.Service{
		{ServiceID: 1, Name: "Birth Certificate", Sensitive: true, ForAll: true},
		{ServiceID: 2, Name: "Death Certificate", Sensitive: true},
		{ServiceID: 3, Name: "Khadya Sathi"},
		{ServiceID: 4, Name: "Swasthya Sathi", ForAll: true},
	}
	profiles := []*models.Profile{
		profile(intPtr(30), "Male", "General", "Hindu"),
		profile(intPtr(70), "Female", "ST", "Christian"),
		profile(nil, "", "", ""),
	}
	for _, p := range profiles {
		for _, s := range EligibleServices(p, catalog) {
			if s.Sensitive {
				t.Errorf("profile %+v received sensitive service %q", p, s.Name)
			}
		}
	}
}

func TestEligibleServicesIdempotent(t *testing.T) {
	catalog := []models.Service{
		{ServiceID: 1, Name: "Taposili Bandhu", IsSC: true},
		{ServiceID: 2, Name: "Khadya Sathi"},
		{ServiceID: 3, Name: "Kanyashree", MaxAge: intPtr(18), IsFemale: true},
	}
	p := profile(intPtr(16), "Female", "SC", "Hindu")

	once := EligibleServices(p, catalog)
	twice := EligibleServices(p, once)
	if len(once) != len(twice) {
		t.Fatalf("second pass changed length: %d vs %d", len(once), len(twice))
	}
	for i := range once {
		if once[i].ServiceID != twice[i].ServiceID {
			t.Errorf("index %d: %d vs %d", i, once[i].ServiceID, twice[i].ServiceID)
		}
	}
	if len(once) != 3 {
		t.Errorf("EligibleServices() returned %d services, want 3", len(once))
	}
	if len(catalog) != 3 {
		t.Error("input catalog was modified")
	}
}

func TestRuleOrderIndependence(t *testing.T) {
	svc := models.Service{Name: "Scheme", IsSC: true, MinAge: intPtr(18), IsFemale: true}
	p := profile(intPtr(10), "Male", "General", "Hindu")

	want := Eligible(p, &svc)
	reversed := make([]Rule, len(Rules))
	for i, r := range Rules {
		reversed[len(Rules)-1-i] = r
	}
	got := true
	for _, r := range reversed {
		got = got && r.Admit(p, &svc)
	}
	if got != want {
		t.Errorf("reversed rule order = %v, forward = %v", got, want)
	}
}
