// Sahayak - Citizen Service Recommendation Engine
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/sahayak

package models

import "strings"

// Unknown replaces missing demographic values.
const Unknown = "unknown"

// Normalized demographic values.
const (
	GenderMale   = "male"
	GenderFemale = "female"

	CasteGeneral = "general"
	CasteSC      = "sc"
	CasteST      = "st"
	CasteOBCA    = "obc-a"
	CasteOBCB    = "obc-b"

	ReligionHindu    = "hindu"
	ReligionMinority = "minority"
)

// NormalizeValue lower-cases and trims s, returning Unknown when empty or a
// common null marker.
func NormalizeValue(s string) string {
	s = strings.ToLower(strings.TrimSpace(s))
	switch s {
	case "", "null", "none", "nan", "na", "n/a", Unknown:
		return Unknown
	}
	return s
}

// NormalizeGender maps single-letter codes onto male/female.
func NormalizeGender(s string) string {
	switch v := NormalizeValue(s); v {
	case "m":
		return GenderMale
	case "f":
		return GenderFemale
	default:
		return v
	}
}

// NormalizeCaste folds spelling variants of OBC-A/OBC-B and General.
func NormalizeCaste(s string) string {
	v := NormalizeValue(s)
	if v == Unknown {
		return v
	}
	compact := strings.NewReplacer("-", "", "_", "", " ", "").Replace(v)
	switch compact {
	case "obca":
		return CasteOBCA
	case "obcb":
		return CasteOBCB
	case "gen", "general":
		return CasteGeneral
	}
	return v
}

// ReligionGroup buckets a normalized religion into hindu or minority.
func ReligionGroup(religion string) string {
	switch religion {
	case Unknown:
		return Unknown
	case ReligionHindu:
		return ReligionHindu
	default:
		return ReligionMinority
	}
}
