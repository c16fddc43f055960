// Sahayak - Citizen Service Recommendation Engine
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/sahayak

package datasource

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/sync/singleflight"

	"github.com/tomtom215/sahayak/internal/models"
)

// maxServiceHistory bounds the provisions kept per citizen.
const maxServiceHistory = 50

// Directory caches the per-request lookups derived from the source tables.
// Concurrent misses share one load.
type Directory struct {
	loader   Loader
	ttl      time.Duration
	keywords []string
	logger   zerolog.Logger
	now      func() time.Time

	group singleflight.Group
	mu    sync.RWMutex
	snap  *snapshot
	// gen advances on Invalidate; a load started under an older gen is
	// returned to its waiters but not stored.
	gen uint64
}

// snapshot is an immutable view. Each part records its own load error so a
// missing provisions table does not hide the catalog.
type snapshot struct {
	loadedAt time.Time

	byPhone     map[string]*models.Citizen
	citizensErr error

	used         map[string]map[int]struct{}
	history      map[string][]models.Provision
	citizenBlock map[string]int
	usageErr     error

	catalog    []models.Service
	byID       map[int]*models.Service
	catalogErr error

	districts    map[string]int
	districtsErr error
}

// NewDirectory returns a directory over loader. A non-positive ttl caches
// until Invalidate.
func NewDirectory(loader Loader, ttl time.Duration, sensitiveKeywords []string, logger zerolog.Logger) *Directory {
	return &Directory{
		loader:   loader,
		ttl:      ttl,
		keywords: sensitiveKeywords,
		logger:   logger,
		now:      time.Now,
	}
}

// Invalidate drops the cached snapshot; the next lookup reloads.
func (d *Directory) Invalidate() {
	d.mu.Lock()
	d.snap = nil
	d.gen++
	d.mu.Unlock()
}

func (d *Directory) current(ctx context.Context) (*snapshot, error) {
	d.mu.RLock()
	s := d.snap
	gen := d.gen
	d.mu.RUnlock()
	if s != nil && (d.ttl <= 0 || d.now().Sub(s.loadedAt) < d.ttl) {
		return s, nil
	}

	// The shared load outlives any single caller's cancellation.
	loadCtx := context.WithoutCancel(ctx)
	ch := d.group.DoChan(fmt.Sprintf("snapshot-%d", gen), func() (interface{}, error) {
		s := d.load(loadCtx)
		d.mu.Lock()
		if d.gen == gen {
			d.snap = s
		} else {
			d.logger.Debug().Msg("Directory invalidated during load; snapshot not stored")
		}
		d.mu.Unlock()
		return s, nil
	})

	select {
	case res := <-ch:
		if res.Err != nil {
			return nil, res.Err
		}
		return res.Val.(*snapshot), nil
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

func (d *Directory) load(ctx context.Context) *snapshot {
	s := &snapshot{loadedAt: d.now()}

	s.byPhone, s.citizensErr = d.loadCitizens(ctx)
	s.catalog, s.catalogErr = d.loadCatalog(ctx)
	s.byID = make(map[int]*models.Service, len(s.catalog))
	for i := range s.catalog {
		s.byID[s.catalog[i].ServiceID] = &s.catalog[i]
	}
	s.used, s.history, s.citizenBlock, s.usageErr = d.loadUsage(ctx)
	s.districts, s.districtsErr = d.loadDistricts(ctx)

	d.logger.Info().
		Int("citizens", len(s.byPhone)).
		Int("services", len(s.catalog)).
		Int("districts", len(s.districts)).
		Msg("Directory loaded")
	return s
}

func (d *Directory) loadCitizens(ctx context.Context) (map[string]*models.Citizen, error) {
	t, err := d.loader.Load(ctx, models.TableCitizens)
	if err != nil {
		return nil, err
	}
	citizens, err := Citizens(t)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrDataUnavailable, err)
	}
	idx := make(map[string]*models.Citizen, len(citizens))
	for i := range citizens {
		if p := NormalizePhone(citizens[i].Phone); p != "" {
			idx[p] = &citizens[i]
		}
	}
	return idx, nil
}

func (d *Directory) loadCatalog(ctx context.Context) ([]models.Service, error) {
	t, err := d.loader.Load(ctx, models.TableServices)
	if err != nil {
		return nil, err
	}
	services, err := Services(t, d.keywords)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrDataUnavailable, err)
	}
	sort.Slice(services, func(i, j int) bool { return services[i].ServiceID < services[j].ServiceID })
	return services, nil
}

// loadUsage derives each citizen's used services, their latest provisions
// newest first, and the block of their most recent provision. A missing BSK
// table leaves blocks unknown.
func (d *Directory) loadUsage(ctx context.Context) (map[string]map[int]struct{}, map[string][]models.Provision, map[string]int, error) {
	t, err := d.loader.Load(ctx, models.TableProvisions)
	if err != nil {
		return nil, nil, nil, err
	}
	provisions, err := Provisions(t)
	if err != nil {
		return nil, nil, nil, fmt.Errorf("%w: %v", ErrDataUnavailable, err)
	}

	blockOf := map[int]int{}
	if bt, err := d.loader.Load(ctx, models.TableBSK); err == nil {
		if bsks, err := BSKs(bt); err == nil {
			for _, b := range bsks {
				blockOf[b.BSKID] = b.BlockMunID
			}
		}
	}

	used := make(map[string]map[int]struct{})
	history := make(map[string][]models.Provision)
	blocks := make(map[string]int)
	latest := make(map[string]time.Time)
	for _, p := range provisions {
		set, ok := used[p.CustomerID]
		if !ok {
			set = make(map[int]struct{})
			used[p.CustomerID] = set
		}
		set[p.ServiceID] = struct{}{}
		history[p.CustomerID] = append(history[p.CustomerID], p)

		if block, ok := blockOf[p.BSKID]; ok && block != 0 {
			if prev, seen := latest[p.CustomerID]; !seen || !p.ProvisionDate.Before(prev) {
				latest[p.CustomerID] = p.ProvisionDate
				blocks[p.CustomerID] = block
			}
		}
	}
	for id, list := range history {
		// Newest first; equal dates keep the later row first.
		for i, j := 0, len(list)-1; i < j; i, j = i+1, j-1 {
			list[i], list[j] = list[j], list[i]
		}
		sort.SliceStable(list, func(i, j int) bool { return list[i].ProvisionDate.After(list[j].ProvisionDate) })
		if len(list) > maxServiceHistory {
			list = list[:maxServiceHistory:maxServiceHistory]
		}
		history[id] = list
	}
	return used, history, blocks, nil
}

func (d *Directory) loadDistricts(ctx context.Context) (map[string]int, error) {
	t, err := d.loader.Load(ctx, models.TableDistricts)
	if err != nil {
		return nil, err
	}
	districts, err := Districts(t)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrDataUnavailable, err)
	}
	out := make(map[string]int, len(districts))
	for _, dd := range districts {
		out[normalizeName(dd.Name)] = dd.DistrictID
	}
	return out, nil
}

// FindByPhone returns the citizen registered under phone.
func (d *Directory) FindByPhone(ctx context.Context, phone string) (*models.Citizen, error) {
	s, err := d.current(ctx)
	if err != nil {
		return nil, err
	}
	if s.citizensErr != nil {
		return nil, s.citizensErr
	}
	key := NormalizePhone(phone)
	c, ok := s.byPhone[key]
	if key == "" || !ok {
		return nil, ErrCitizenNotFound
	}
	cp := *c
	return &cp, nil
}

// UsedServices returns the service ids the citizen has already received.
// An unavailable provisions table yields an empty set.
func (d *Directory) UsedServices(ctx context.Context, citizenID string) (map[int]struct{}, error) {
	s, err := d.current(ctx)
	if err != nil {
		return nil, err
	}
	if s.usageErr != nil {
		if errors.Is(s.usageErr, ErrDataUnavailable) {
			return map[int]struct{}{}, nil
		}
		return nil, s.usageErr
	}
	out := make(map[int]struct{}, len(s.used[citizenID]))
	for id := range s.used[citizenID] {
		out[id] = struct{}{}
	}
	return out, nil
}

// ServiceHistory returns up to limit of the citizen's provisions, newest
// first. An unavailable provisions table yields no history.
func (d *Directory) ServiceHistory(ctx context.Context, citizenID string, limit int) ([]models.Provision, error) {
	s, err := d.current(ctx)
	if err != nil {
		return nil, err
	}
	if s.usageErr != nil {
		if errors.Is(s.usageErr, ErrDataUnavailable) {
			return nil, nil
		}
		return nil, s.usageErr
	}
	list := s.history[citizenID]
	if limit < len(list) {
		list = list[:limit]
	}
	out := make([]models.Provision, len(list))
	copy(out, list)
	return out, nil
}

// BlockForCitizen returns the block of the citizen's most recent provision.
func (d *Directory) BlockForCitizen(ctx context.Context, citizenID string) (int, bool) {
	s, err := d.current(ctx)
	if err != nil || s.usageErr != nil {
		return 0, false
	}
	b, ok := s.citizenBlock[citizenID]
	return b, ok
}

// Catalog returns the service catalog ordered by id.
func (d *Directory) Catalog(ctx context.Context) ([]models.Service, error) {
	s, err := d.current(ctx)
	if err != nil {
		return nil, err
	}
	if s.catalogErr != nil {
		return nil, s.catalogErr
	}
	return s.catalog, nil
}

// Service returns one catalog entry.
func (d *Directory) Service(ctx context.Context, id int) (*models.Service, bool) {
	s, err := d.current(ctx)
	if err != nil || s.catalogErr != nil {
		return nil, false
	}
	svc, ok := s.byID[id]
	return svc, ok
}

// DistrictID resolves a district name case-insensitively.
func (d *Directory) DistrictID(ctx context.Context, name string) (int, bool, error) {
	s, err := d.current(ctx)
	if err != nil {
		return 0, false, err
	}
	if s.districtsErr != nil {
		return 0, false, s.districtsErr
	}
	id, ok := s.districts[normalizeName(name)]
	return id, ok, nil
}

// NormalizePhone keeps digits only and the last ten of them, dropping
// country prefixes.
func NormalizePhone(phone string) string {
	var b strings.Builder
	for _, r := range phone {
		if r >= '0' && r <= '9' {
			b.WriteRune(r)
		}
	}
	digits := b.String()
	// Float-formatted numbers from spreadsheets ("9876543210.0").
	if i := strings.IndexByte(phone, '.'); i > 0 && strings.Trim(phone[i+1:], "0") == "" {
		digits = strings.TrimSuffix(digits, phone[i+1:])
	}
	if len(digits) > 10 {
		digits = digits[len(digits)-10:]
	}
	return digits
}

func normalizeName(s string) string {
	return strings.Join(strings.Fields(strings.ToLower(s)), " ")
}
