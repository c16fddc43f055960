// Sahayak - Citizen Service Recommendation Engine
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/sahayak

package recommend

import (
	"context"
	"fmt"
	"strconv"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/tomtom215/sahayak/internal/eligibility"
	"github.com/tomtom215/sahayak/internal/logging"
	"github.com/tomtom215/sahayak/internal/metrics"
	"github.com/tomtom215/sahayak/internal/models"
	"github.com/tomtom215/sahayak/internal/recommend/engines"
)

// Directory is the lookup side of the data access layer.
type Directory interface {
	FindByPhone(ctx context.Context, phone string) (*models.Citizen, error)
	UsedServices(ctx context.Context, citizenID string) (map[int]struct{}, error)
	ServiceHistory(ctx context.Context, citizenID string, limit int) ([]models.Provision, error)
	BlockForCitizen(ctx context.Context, citizenID string) (int, bool)
	Catalog(ctx context.Context) ([]models.Service, error)
	DistrictID(ctx context.Context, name string) (int, bool, error)
}

// Engines groups the scoring engines shared by the orchestrator and the
// regenerator.
type Engines struct {
	District    *engines.DistrictEngine
	Demographic *engines.DemographicEngine
	Block       *engines.BlockEngine
	Content     *engines.ContentEngine
}

// Options configures the orchestrator.
type Options struct {
	DistrictK    int
	DemographicK int
	BlockK       int
	ContentK     int

	// DefaultDistrictID applies to manual profiles without a district.
	DefaultDistrictID int

	// ExcludeUsedServices drops non-recurrent services the citizen has
	// already received (phone mode only).
	ExcludeUsedServices bool

	RequestTimeout time.Duration

	// HistoryDepth is how many recent provisions a phone-mode citizen gets
	// back as service history and as content targets.
	HistoryDepth int
}

// Orchestrator serves recommendation requests.
type Orchestrator struct {
	dir     Directory
	engines *Engines
	opts    Options
	logger  zerolog.Logger
}

// NewOrchestrator wires the orchestrator.
func NewOrchestrator(dir Directory, eng *Engines, opts Options, logger zerolog.Logger) *Orchestrator {
	return &Orchestrator{dir: dir, engines: eng, opts: opts, logger: logger}
}

// resolved is the request state after RESOLVE_CITIZEN and FILTER_ELIGIBLE.
type resolved struct {
	profile  models.Profile
	catalog  map[int]*models.Service
	eligible map[int]struct{}
	used     map[int]struct{}
	selected map[int]struct{}
	history  []models.Provision
}

// accept applies eligibility and exclusions to engine rankings.
func (r *resolved) accept(s engines.RankedService) bool {
	if _, ok := r.eligible[s.ServiceID]; !ok {
		return false
	}
	if _, ok := r.selected[s.ServiceID]; ok {
		return false
	}
	if _, ok := r.used[s.ServiceID]; ok {
		if svc := r.catalog[s.ServiceID]; svc == nil || !svc.IsRecurrent {
			return false
		}
	}
	return true
}

// contentTargets lists the services to find neighbours for: the selection,
// then recent history without repeats. Sensitive history entries are skipped.
func (r *resolved) contentTargets(selected []int) []int {
	seen := make(map[int]struct{}, len(selected)+len(r.history))
	out := make([]int, 0, len(selected)+len(r.history))
	for _, id := range selected {
		if _, dup := seen[id]; !dup {
			seen[id] = struct{}{}
			out = append(out, id)
		}
	}
	for _, p := range r.history {
		if _, dup := seen[p.ServiceID]; dup {
			continue
		}
		seen[p.ServiceID] = struct{}{}
		if svc := r.catalog[p.ServiceID]; svc != nil && svc.Sensitive {
			continue
		}
		out = append(out, p.ServiceID)
	}
	return out
}

func (r *resolved) historyEntries() []HistoryEntry {
	if len(r.history) == 0 {
		return nil
	}
	out := make([]HistoryEntry, 0, len(r.history))
	for _, p := range r.history {
		name := p.ServiceName
		if svc := r.catalog[p.ServiceID]; svc != nil && svc.Name != "" {
			name = svc.Name
		}
		e := HistoryEntry{ServiceID: p.ServiceID, Service: name}
		if !p.ProvisionDate.IsZero() {
			e.Date = p.ProvisionDate.Format(time.DateOnly)
		}
		out = append(out, e)
	}
	return out
}

func (r *resolved) name(s engines.RankedService) string {
	if svc := r.catalog[s.ServiceID]; svc != nil && svc.Name != "" {
		return svc.Name
	}
	return s.Name
}

// Recommend runs one request through resolution, eligibility and the
// engines.
func (o *Orchestrator) Recommend(ctx context.Context, req Request) (*Response, error) {
	start := time.Now()
	mode := req.Mode()

	if o.opts.RequestTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, o.opts.RequestTimeout)
		defer cancel()
	}

	resp, err := o.recommend(ctx, req)
	metrics.RecordRecommendation(string(mode), time.Since(start), err)
	if err != nil {
		return nil, err
	}

	log := logging.Enrich(ctx, o.logger)
	log.Debug().
		Str("mode", string(mode)).
		Str("citizen_id", resp.Metadata.CitizenID).
		Int("district", len(resp.DistrictRecommendations)).
		Int("demographic", len(resp.DemographicRecommendations)).
		Int("block", len(resp.BlockRecommendations)).
		Int("content", len(resp.ContentRecommendations)).
		Dur("duration", time.Since(start)).
		Msg("Recommendation served")
	return resp, nil
}

func (o *Orchestrator) recommend(ctx context.Context, req Request) (*Response, error) {
	if err := validateRequest(&req); err != nil {
		return nil, err
	}

	st, err := o.resolve(ctx, &req)
	if err != nil {
		return nil, err
	}

	var (
		wg          sync.WaitGroup
		contentMu   sync.Mutex
		district    []engines.RankedService
		demographic []engines.RankedService
		block       []engines.RankedService
		cluster     string
	)
	targets := st.contentTargets(req.SelectedServiceIDs)
	content := make(map[string][]string, len(targets))

	wg.Add(3)
	go func() {
		defer wg.Done()
		if st.profile.DistrictID != 0 {
			district = o.engines.District.Select(st.profile.DistrictID, st.accept, o.opts.DistrictK)
		}
	}()
	go func() {
		defer wg.Done()
		demographic, cluster = o.engines.Demographic.Select(&st.profile, st.accept, o.opts.DemographicK)
	}()
	go func() {
		defer wg.Done()
		if st.profile.BlockID != 0 {
			block = o.engines.Block.Select(st.profile.BlockID, st.accept, o.opts.BlockK)
		}
	}()
	for _, id := range targets {
		wg.Add(1)
		go func(id int) {
			defer wg.Done()
			similar := o.engines.Content.SimilarServices(id, o.opts.ContentK)
			names := make([]string, 0, len(similar))
			for _, s := range similar {
				names = append(names, s.Name)
			}
			key := strconv.Itoa(id)
			if svc := st.catalog[id]; svc != nil && svc.Name != "" {
				key = svc.Name
			}
			contentMu.Lock()
			content[key] = names
			contentMu.Unlock()
		}(id)
	}
	wg.Wait()

	if err := ctx.Err(); err != nil {
		return nil, err
	}

	resp := &Response{
		DistrictRecommendations:    o.names(st, district, CategoryDistrict),
		DemographicRecommendations: o.names(st, demographic, CategoryDemographic),
		BlockRecommendations:       o.names(st, block, CategoryBlock),
		ContentRecommendations:     content,
		ServiceHistory:             st.historyEntries(),
		Metadata: ResponseMetadata{
			CitizenID:        st.profile.CitizenID,
			Mode:             req.Mode(),
			Profile:          st.profile,
			MatchedCluster:   cluster,
			ArtifactVersions: o.versions(),
			GeneratedAt:      time.Now().UTC(),
		},
	}
	if len(targets) > 0 {
		empty := true
		for _, v := range content {
			if len(v) > 0 {
				empty = false
				break
			}
		}
		if empty {
			metrics.RecordEmptyCategory(CategoryContent)
		}
	}
	return resp, nil
}

func (o *Orchestrator) names(st *resolved, list []engines.RankedService, category string) []string {
	out := make([]string, 0, len(list))
	for _, s := range list {
		out = append(out, st.name(s))
	}
	if len(out) == 0 {
		metrics.RecordEmptyCategory(category)
	}
	return out
}

func (o *Orchestrator) versions() map[string]int64 {
	out := make(map[string]int64, 4)
	if info, ok := o.engines.District.Info(); ok {
		out[string(ArtifactDistrict)] = info.Version
	}
	if info, ok := o.engines.Demographic.Info(); ok {
		out[string(ArtifactDemographic)] = info.Version
	}
	if info, ok := o.engines.Block.Info(); ok {
		out[string(ArtifactBlock)] = info.Version
	}
	if info, ok := o.engines.Content.Info(); ok {
		out[string(ArtifactContent)] = info.Version
	}
	return out
}

func validateRequest(req *Request) error {
	if req.Phone == "" && req.Manual == nil {
		return fmt.Errorf("%w: phone or manual profile required", ErrInvalidRequest)
	}
	if req.Phone != "" && req.Manual != nil {
		return fmt.Errorf("%w: phone and manual profile are mutually exclusive", ErrInvalidRequest)
	}
	for _, id := range req.SelectedServiceIDs {
		if id <= 0 {
			return fmt.Errorf("%w: invalid service id %d", ErrInvalidRequest, id)
		}
	}
	return nil
}

// resolve builds the profile and the eligibility state.
func (o *Orchestrator) resolve(ctx context.Context, req *Request) (*resolved, error) {
	st := &resolved{
		used:     map[int]struct{}{},
		selected: make(map[int]struct{}, len(req.SelectedServiceIDs)),
	}
	for _, id := range req.SelectedServiceIDs {
		st.selected[id] = struct{}{}
	}

	var err error
	if req.Phone != "" {
		err = o.resolvePhone(ctx, req.Phone, st)
	} else {
		err = o.resolveManual(ctx, req.Manual, st)
	}
	if err != nil {
		return nil, err
	}

	catalog, err := o.dir.Catalog(ctx)
	if err != nil {
		return nil, fmt.Errorf("load service catalog: %w", err)
	}
	st.catalog = make(map[int]*models.Service, len(catalog))
	for i := range catalog {
		st.catalog[catalog[i].ServiceID] = &catalog[i]
	}
	eligible := eligibility.EligibleServices(&st.profile, catalog)
	st.eligible = make(map[int]struct{}, len(eligible))
	for _, s := range eligible {
		st.eligible[s.ServiceID] = struct{}{}
	}
	return st, nil
}

func (o *Orchestrator) resolvePhone(ctx context.Context, phone string, st *resolved) error {
	citizen, err := o.dir.FindByPhone(ctx, phone)
	if err != nil {
		return err
	}
	st.profile = models.ProfileFromCitizen(citizen)
	if block, ok := o.dir.BlockForCitizen(ctx, citizen.CitizenID); ok {
		st.profile.BlockID = block
	}
	if o.opts.HistoryDepth > 0 {
		history, err := o.dir.ServiceHistory(ctx, citizen.CitizenID, o.opts.HistoryDepth)
		if err != nil {
			o.logger.Warn().Err(err).Str("citizen_id", citizen.CitizenID).
				Msg("Service history unavailable, content limited to the selection")
		} else {
			st.history = history
		}
	}
	if o.opts.ExcludeUsedServices {
		used, err := o.dir.UsedServices(ctx, citizen.CitizenID)
		if err != nil {
			o.logger.Warn().Err(err).Str("citizen_id", citizen.CitizenID).
				Msg("Used services unavailable, not excluding")
		} else {
			st.used = used
		}
	}
	return nil
}

func (o *Orchestrator) resolveManual(ctx context.Context, m *ManualProfile, st *resolved) error {
	district := m.DistrictID
	if district == 0 && m.DistrictName != "" {
		id, ok, err := o.dir.DistrictID(ctx, m.DistrictName)
		switch {
		case err != nil:
			o.logger.Warn().Err(err).Str("district_name", m.DistrictName).
				Msg("District table unavailable, district left unknown")
		case !ok:
			return fmt.Errorf("%w: unknown district %q", ErrInvalidRequest, m.DistrictName)
		default:
			district = id
		}
	}
	if district == 0 {
		district = o.opts.DefaultDistrictID
	}

	st.profile = models.Profile{
		DistrictID: district,
		BlockID:    m.BlockID,
		Age:        m.Age,
		Gender:     models.NormalizeGender(m.Gender),
		Caste:      models.NormalizeCaste(m.Caste),
		Religion:   models.NormalizeValue(m.Religion),
		Source:     models.ProfileManual,
	}
	return nil
}
