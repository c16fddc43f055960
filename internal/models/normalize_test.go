// Sahayak - Citizen Service Recommendation Engine
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/sahayak

package models

import "testing"

func TestNormalizeCaste(t *testing.T) {
	tests := []struct {
		in, want string
	}{
		{"General", CasteGeneral},
		{"GEN", CasteGeneral},
		{"OBC-A", CasteOBCA},
		{"obc_b", CasteOBCB},
		{"OBC A", CasteOBCA},
		{"SC", CasteSC},
		{"", Unknown},
		{"NaN", Unknown},
	}
	for _, tt := range tests {
		if got := NormalizeCaste(tt.in); got != tt.want {
			t.Errorf("NormalizeCaste(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestNormalizeGender(t *testing.T) {
	tests := []struct {
		in, want string
	}{
		{"M", GenderMale},
		{"Female", GenderFemale},
		{" f ", GenderFemale},
		{"null", Unknown},
		{"Other", "other"},
	}
	for _, tt := range tests {
		if got := NormalizeGender(tt.in); got != tt.want {
			t.Errorf("NormalizeGender(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestReligionGroup(t *testing.T) {
	if got := ReligionGroup(ReligionHindu); got != ReligionHindu {
		t.Errorf("ReligionGroup(hindu) = %q", got)
	}
	if got := ReligionGroup("muslim"); got != ReligionMinority {
		t.Errorf("ReligionGroup(muslim) = %q", got)
	}
	if got := ReligionGroup(Unknown); got != Unknown {
		t.Errorf("ReligionGroup(unknown) = %q", got)
	}
}

func TestServiceAdmitsCaste(t *testing.T) {
	svc := Service{IsSC: true, IsOBCA: true}
	if !svc.CasteRestricted() {
		t.Fatal("expected caste restriction")
	}
	for caste, want := range map[string]bool{
		CasteSC:      true,
		CasteOBCA:    true,
		CasteST:      false,
		CasteOBCB:    false,
		CasteGeneral: false,
		Unknown:      false,
	} {
		if got := svc.AdmitsCaste(caste); got != want {
			t.Errorf("AdmitsCaste(%q) = %v, want %v", caste, got, want)
		}
	}
}

func TestProfileFromCitizen(t *testing.T) {
	age := 30
	p := ProfileFromCitizen(&Citizen{CitizenID: "C1", DistrictID: 1, Age: &age, Gender: "M", Caste: "General", Religion: "Hindu"})
	if p.Gender != GenderMale || p.Caste != CasteGeneral || p.Religion != ReligionHindu {
		t.Errorf("ProfileFromCitizen() = %+v", p)
	}
	if p.Source != ProfileLookup {
		t.Errorf("Source = %q, want lookup", p.Source)
	}
}
