// Sahayak - Citizen Service Recommendation Engine
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/sahayak

package datasource

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"sync"
	"testing"
)

func writeCSV(t *testing.T, dir, name, content string) {
	t.Helper()
	if err := os.WriteFile(filepath.Join(dir, name+".csv"), []byte(content), 0o600); err != nil {
		t.Fatalf("write %s: %v", name, err)
	}
}

// fixtureDir writes a small but complete data set.
func fixtureDir(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	writeCSV(t, dir, "ml_citizen_master", "citizen_id,citizen_phone,citizen_name,district_id,age,gender,caste,religion\n"+
		"C1,9876543210,Asha,1,30,Female,SC,Hindu\n"+
		"C2,+91 90000 00001,Bilal,2,,Male,General,Muslim\n"+
		",1111111111,Nobody,1,20,M,,\n")
	writeCSV(t, dir, "ml_provision", "bsk_id,customer_id,service_id,service_name,prov_date\n"+
		"10,C1,100,Pension,2024-01-05\n"+
		"11,C1,101,Ration Card,2024-02-05\n"+
		"10,C2,100,Pension,2024-01-07\n")
	writeCSV(t, dir, "ml_district", "district_id,district_name\n1,Nadia\n2,North 24 Parganas\n")
	writeCSV(t, dir, "ml_bsk_master", "bsk_id,bsk_name,block_mun_id,district_id\n10,BSK A,501,1\n11,BSK B,502,1\n")
	writeCSV(t, dir, "service_master", "service_id,service_name,service_desc,min_age,max_age,is_sc,is_female,is_recurrent\n"+
		"100,Pension,Old age pension,60,,0,0,1\n"+
		"101,Ration Card,Food security,,,0,0,0\n"+
		"102,Birth Certificate,Registration,,,0,0,0\n"+
		"103,Kanyashree,Girls scholarship,13,19,0,1.0,0\n")
	return dir
}

// stubSource is an in-memory Source with injectable failures.
type stubSource struct {
	mu      sync.Mutex
	kind    SourceKind
	pingErr error
	tables  map[string]*Table
	loadErr map[string]error
	loads   int
}

func (s *stubSource) Kind() SourceKind { return s.kind }
func (s *stubSource) Ping(context.Context) error { return s.pingErr }
func (s *stubSource) HasTable(_ context.Context, t string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.tables[t]
	return ok
}

func (s *stubSource) Load(_ context.Context, table string) (*Table, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.loads++
	if err := s.loadErr[table]; err != nil {
		return nil, err
	}
	t, ok := s.tables[table]
	if !ok {
		return nil, errors.New("missing")
	}
	return t, nil
}

func (s *stubSource) loadCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.loads
}
