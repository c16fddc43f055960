// Sahayak - Citizen Service Recommendation Engine
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/sahayak

package recommend

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"testing"

	"github.com/rs/zerolog"

	"github.com/tomtom215/sahayak/internal/config"
	"github.com/tomtom215/sahayak/internal/datasource"
	"github.com/tomtom215/sahayak/internal/models"
	"github.com/tomtom215/sahayak/internal/recommend/engines"
	"github.com/tomtom215/sahayak/internal/recommend/storage"
)

var testKeywords = []string{"birth", "death"}

// memLoader serves tables parsed from CSV-like literals.
type memLoader struct {
	mu     sync.Mutex
	tables map[string]*datasource.Table
	loads  map[string]int
}

func newMemLoader() *memLoader {
	return &memLoader{tables: map[string]*datasource.Table{}, loads: map[string]int{}}
}

// set replaces table with the given header and rows ("a,b,c" lines).
func (l *memLoader) set(table, header string, lines ...string) {
	cols := strings.Split(header, ",")
	t := &datasource.Table{Name: table, Source: datasource.SourceFiles, Columns: cols}
	for _, line := range lines {
		vals := strings.Split(line, ",")
		row := datasource.Row{}
		for i, c := range cols {
			if i < len(vals) {
				row[c] = vals[i]
			}
		}
		t.Rows = append(t.Rows, row)
	}
	l.mu.Lock()
	l.tables[table] = t
	l.mu.Unlock()
}

func (l *memLoader) drop(table string) {
	l.mu.Lock()
	delete(l.tables, table)
	l.mu.Unlock()
}

func (l *memLoader) Load(_ context.Context, table string) (*datasource.Table, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.loads[table]++
	t, ok := l.tables[table]
	if !ok {
		return nil, fmt.Errorf("%w: %s", datasource.ErrDataUnavailable, table)
	}
	return t, nil
}

func (l *memLoader) loadCount(table string) int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.loads[table]
}

const serviceHeader = "service_id,service_name,service_desc,min_age,max_age,is_sc,is_st,is_female,is_minority,for_all,is_recurrent"

// fixtureLoader is a district-1 population of young Hindu General-caste men
// who mostly received sensitive or restricted services.
func fixtureLoader() *memLoader {
	l := newMemLoader()
	l.set(models.TableCitizens, "citizen_id,citizen_phone,district_id,age,gender,caste,religion",
		"C1,9876543210,1,30,Male,General,Hindu",
		"C2,9876543211,1,31,M,general,hindu",
		"C3,9876543212,1,29,Male,Gen,Hindu",
		"C4,9876543213,2,65,Female,SC,Muslim",
	)
	l.set(models.TableServices, serviceHeader,
		"101,Ration Card,Food security card,,,0,0,0,0,0,0",
		"102,Birth Certificate,Registration of birth,,,0,0,0,0,0,0",
		"103,Death Certificate,Registration of death,,,0,0,0,0,0,0",
		"104,Caste Certificate,SC ST OBC certificate,,,0,0,0,0,0,0",
		"105,Kanyashree,Girls scholarship,13,19,0,0,1,0,0,0",
		"106,Old Age Pension,Monthly pension,60,,0,0,0,0,0,1",
		"107,Land Records,Mutation of land,,,0,0,0,0,0,0",
		"108,Health Card,Swasthya Sathi,,,0,0,0,0,1,1",
		"109,Minority Scholarship,Scholarship for minorities,,,0,0,0,1,0,0",
		"110,SC Scholarship,Scholarship for SC students,,,1,0,0,0,0,0",
		"124,Krishak Bandhu,Farmer assistance,,,0,0,0,0,0,1",
	)
	l.set(models.TableProvisions, "bsk_id,customer_id,service_id,service_name,prov_date",
		"10,C1,102,Birth Certificate,2024-01-01",
		"10,C2,102,Birth Certificate,2024-01-02",
		"10,C3,102,Birth Certificate,2024-01-03",
		"10,C1,103,Death Certificate,2024-01-04",
		"10,C2,103,Death Certificate,2024-01-05",
		"10,C1,104,Caste Certificate,2024-01-06",
		"10,C2,104,Caste Certificate,2024-01-06",
		"10,C3,124,Krishak Bandhu,2024-01-07",
		"10,C2,124,Krishak Bandhu,2024-01-07",
		"10,C1,101,Ration Card,2024-01-08",
		"10,C2,101,Ration Card,2024-01-08",
		"11,C3,107,Land Records,2024-01-09",
		"10,C1,108,Health Card,2024-01-10",
		"10,C3,105,Kanyashree,2024-01-11",
		"10,C1,106,Old Age Pension,2024-01-11",
		"10,C2,109,Minority Scholarship,2024-01-11",
		"20,C4,106,Old Age Pension,2024-02-01",
		"20,C4,110,SC Scholarship,2024-02-02",
	)
	l.set(models.TableBSK, "bsk_id,bsk_name,block_mun_id,district_id",
		"10,BSK Ten,501,1",
		"11,BSK Eleven,502,1",
		"20,BSK Twenty,601,2",
	)
	l.set(models.TableDistricts, "district_id,district_name", "1,Nadia", "2,North 24 Parganas")
	return l
}

// fakeEmbedder maps a text onto a vector derived from its words so that
// services sharing words are close.
type fakeEmbedder struct {
	mu    sync.Mutex
	calls int
	block chan struct{}
}

var embedVocabulary = []string{"scholarship", "card", "certificate", "pension", "registration", "land", "farmer", "food"}

func (f *fakeEmbedder) Embed(ctx context.Context, texts []string) ([][]float64, error) {
	f.mu.Lock()
	f.calls++
	block := f.block
	f.mu.Unlock()
	if block != nil {
		select {
		case <-block:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}

	out := make([][]float64, len(texts))
	for i, text := range texts {
		lower := strings.ToLower(text)
		v := make([]float64, len(embedVocabulary)+1)
		v[0] = 0.1
		for j, w := range embedVocabulary {
			if strings.Contains(lower, w) {
				v[j+1] = 1
			}
		}
		out[i] = v
	}
	return out, nil
}

// memRunLog records regeneration runs.
type memRunLog struct {
	mu      sync.Mutex
	entries []models.RegenerationLog
}

func (m *memRunLog) RecordRegeneration(_ context.Context, e *models.RegenerationLog) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.entries = append(m.entries, *e)
	return nil
}

func (m *memRunLog) statuses() map[string]string {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make(map[string]string, len(m.entries))
	for _, e := range m.entries {
		out[e.ArtifactType] = e.Status
	}
	return out
}

func newTestEngines(t *testing.T, embedder engines.Embedder) *Engines {
	t.Helper()
	demo, err := engines.NewDemographicEngine(engines.DefaultClusterConfig())
	if err != nil {
		t.Fatalf("NewDemographicEngine() error = %v", err)
	}
	return &Engines{
		District:    engines.NewDistrictEngine(50),
		Demographic: demo,
		Block:       engines.NewBlockEngine(50),
		Content:     engines.NewContentEngine(embedder, zerolog.Nop()),
	}
}

func newTestStore(t *testing.T) *storage.Store {
	t.Helper()
	s, err := storage.Open(&config.ArtifactsConfig{InMemory: true}, zerolog.Nop())
	if err != nil {
		t.Fatalf("storage.Open() error = %v", err)
	}
	t.Cleanup(func() { _ = s.Close() })
	return s
}

// harness wires a directory, engines, regenerator and orchestrator over one
// loader and store.
type harness struct {
	loader  *memLoader
	dir     *datasource.Directory
	engines *Engines
	store   *storage.Store
	runs    *memRunLog
	regen   *Regenerator
	orch    *Orchestrator
}

func newHarness(t *testing.T, loader *memLoader, embedder engines.Embedder) *harness {
	t.Helper()
	h := &harness{
		loader:  loader,
		dir:     datasource.NewDirectory(loader, 0, testKeywords, zerolog.Nop()),
		engines: newTestEngines(t, embedder),
		store:   newTestStore(t),
		runs:    &memRunLog{},
	}
	h.regen = NewRegenerator(RegeneratorDeps{
		Loader:            loader,
		SensitiveKeywords: testKeywords,
		Engines:           h.engines,
		Store:             h.store,
		RunLog:            h.runs,
		Invalidator:       h.dir,
	}, zerolog.Nop())
	h.orch = NewOrchestrator(h.dir, h.engines, Options{
		DistrictK:           5,
		DemographicK:        5,
		BlockK:              5,
		ContentK:            3,
		ExcludeUsedServices: true,
		HistoryDepth:        10,
	}, zerolog.Nop())
	return h
}

func contains(list []string, name string) bool {
	for _, s := range list {
		if s == name {
			return true
		}
	}
	return false
}
