// Sahayak - Citizen Service Recommendation Engine
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/sahayak

package datasource

import (
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"

	"github.com/tomtom215/sahayak/internal/models"
)

// Decoders skip rows whose key columns are missing or unparseable. They
// fail only when a required column is absent from the table.

func requireColumns(t *Table, cols ...string) error {
	for _, c := range cols {
		if !t.HasColumn(c) {
			return fmt.Errorf("table %s: missing column %q", t.Name, c)
		}
	}
	return nil
}

// Citizens decodes ml_citizen_master.
func Citizens(t *Table) ([]models.Citizen, error) {
	if err := requireColumns(t, "citizen_id"); err != nil {
		return nil, err
	}
	out := make([]models.Citizen, 0, t.Len())
	for _, r := range t.Rows {
		id := r["citizen_id"]
		if id == "" {
			continue
		}
		district, _ := parseInt(r["district_id"])
		out = append(out, models.Citizen{
			CitizenID:  id,
			Phone:      r["citizen_phone"],
			Name:       r["citizen_name"],
			DistrictID: district,
			Age:        parseOptionalInt(r["age"]),
			Gender:     r["gender"],
			Caste:      r["caste"],
			Religion:   r["religion"],
		})
	}
	return out, nil
}

// Provisions decodes ml_provision.
func Provisions(t *Table) ([]models.Provision, error) {
	if err := requireColumns(t, "customer_id", "service_id"); err != nil {
		return nil, err
	}
	out := make([]models.Provision, 0, t.Len())
	for _, r := range t.Rows {
		customer := r["customer_id"]
		service, ok := parseInt(r["service_id"])
		if customer == "" || !ok {
			continue
		}
		bsk, _ := parseInt(r["bsk_id"])
		out = append(out, models.Provision{
			BSKID:         bsk,
			CustomerID:    customer,
			ServiceID:     service,
			ServiceName:   r["service_name"],
			ProvisionDate: parseDate(r["prov_date"]),
		})
	}
	return out, nil
}

// Services decodes the service catalog. A service is sensitive when its
// is_sensitive column is set or its name contains one of keywords
// (case-insensitive).
func Services(t *Table, keywords []string) ([]models.Service, error) {
	if err := requireColumns(t, "service_id", "service_name"); err != nil {
		return nil, err
	}
	out := make([]models.Service, 0, t.Len())
	for _, r := range t.Rows {
		id, ok := parseInt(r["service_id"])
		if !ok {
			continue
		}
		s := models.Service{
			ServiceID:           id,
			Name:                r["service_name"],
			Description:         r["service_desc"],
			EnhancedDescription: r["enhanced_desc"],
			MinAge:              parseOptionalInt(r["min_age"]),
			MaxAge:              parseOptionalInt(r["max_age"]),
			IsSC:                parseBool(r["is_sc"]),
			IsST:                parseBool(r["is_st"]),
			IsOBCA:              parseBool(r["is_obc_a"]),
			IsOBCB:              parseBool(r["is_obc_b"]),
			IsFemale:            parseBool(r["is_female"]),
			IsMinority:          parseBool(r["is_minority"]),
			ForAll:              parseBool(r["for_all"]),
			IsRecurrent:         parseBool(r["is_recurrent"]),
		}
		s.Sensitive = parseBool(r["is_sensitive"]) || matchesKeyword(s.Name, keywords)
		out = append(out, s)
	}
	return out, nil
}

// Districts decodes ml_district.
func Districts(t *Table) ([]models.District, error) {
	if err := requireColumns(t, "district_id", "district_name"); err != nil {
		return nil, err
	}
	out := make([]models.District, 0, t.Len())
	for _, r := range t.Rows {
		id, ok := parseInt(r["district_id"])
		if !ok {
			continue
		}
		out = append(out, models.District{DistrictID: id, Name: r["district_name"]})
	}
	return out, nil
}

// BSKs decodes ml_bsk_master.
func BSKs(t *Table) ([]models.BSK, error) {
	if err := requireColumns(t, "bsk_id", "block_mun_id"); err != nil {
		return nil, err
	}
	out := make([]models.BSK, 0, t.Len())
	for _, r := range t.Rows {
		id, ok := parseInt(r["bsk_id"])
		if !ok {
			continue
		}
		block, _ := parseInt(r["block_mun_id"])
		district, _ := parseInt(r["district_id"])
		out = append(out, models.BSK{BSKID: id, Name: r["bsk_name"], BlockMunID: block, DistrictID: district})
	}
	return out, nil
}

func matchesKeyword(name string, keywords []string) bool {
	lower := strings.ToLower(name)
	for _, k := range keywords {
		k = strings.ToLower(strings.TrimSpace(k))
		if k != "" && strings.Contains(lower, k) {
			return true
		}
	}
	return false
}

// parseInt accepts integers and integral floats ("12", "12.0").
func parseInt(s string) (int, bool) {
	s = strings.TrimSpace(s)
	if s == "" {
		return 0, false
	}
	if n, err := strconv.Atoi(s); err == nil {
		return n, true
	}
	f, err := strconv.ParseFloat(s, 64)
	if err != nil || f != math.Trunc(f) || math.IsInf(f, 0) {
		return 0, false
	}
	return int(f), true
}

func parseOptionalInt(s string) *int {
	n, ok := parseInt(s)
	if !ok {
		return nil
	}
	return &n
}

func parseBool(s string) bool {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "1", "1.0", "true", "t", "yes", "y":
		return true
	default:
		return false
	}
}

var dateLayouts = []string{
	time.DateOnly,
	time.RFC3339,
	time.DateTime,
	"2006-01-02T15:04:05",
	"02-01-2006",
	"02/01/2006",
}

func parseDate(s string) time.Time {
	s = strings.TrimSpace(s)
	for _, layout := range dateLayouts {
		if d, err := time.Parse(layout, s); err == nil {
			return d
		}
	}
	return time.Time{}
}
