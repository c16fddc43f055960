// Sahayak - Citizen Service Recommendation Engine
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/sahayak

package recommend

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/tomtom215/sahayak/internal/datasource"
	"github.com/tomtom215/sahayak/internal/metrics"
	"github.com/tomtom215/sahayak/internal/models"
	"github.com/tomtom215/sahayak/internal/recommend/engines"
)

// ArtifactType names a derived artifact or a group of them.
type ArtifactType string

const (
	ArtifactDistrict    ArtifactType = "district"
	ArtifactDemographic ArtifactType = "demographic"
	ArtifactBlock       ArtifactType = "block"
	ArtifactContent     ArtifactType = "content"

	// ArtifactStatic is every popularity artifact; the pipeline rebuilds it
	// after each sync.
	ArtifactStatic ArtifactType = "static"

	// ArtifactAll is static plus content.
	ArtifactAll ArtifactType = "all"
)

// Regeneration status values.
const (
	RegenerationSuccess = "success"
	RegenerationPartial = "partial"
	RegenerationFailure = "failure"
)

var concreteArtifacts = []ArtifactType{ArtifactDistrict, ArtifactDemographic, ArtifactBlock, ArtifactContent}

// ParseArtifactType accepts a case-insensitive artifact name.
func ParseArtifactType(s string) (ArtifactType, error) {
	a := ArtifactType(strings.ToLower(strings.TrimSpace(s)))
	if a.Expand() == nil {
		return "", fmt.Errorf("%w: %q", ErrUnknownArtifact, s)
	}
	return a, nil
}

// Expand returns the concrete artifacts a covers, or nil when a is unknown.
func (a ArtifactType) Expand() []ArtifactType {
	switch a {
	case ArtifactDistrict, ArtifactDemographic, ArtifactBlock, ArtifactContent:
		return []ArtifactType{a}
	case ArtifactStatic:
		return []ArtifactType{ArtifactDistrict, ArtifactDemographic, ArtifactBlock}
	case ArtifactAll:
		return append([]ArtifactType(nil), concreteArtifacts...)
	default:
		return nil
	}
}

// ArtifactStore persists serialized artifacts.
type ArtifactStore interface {
	Save(ctx context.Context, artifact string, v interface{}) error
	Load(ctx context.Context, artifact string, v interface{}) (bool, error)
}

// RunLog records regeneration runs.
type RunLog interface {
	RecordRegeneration(ctx context.Context, entry *models.RegenerationLog) error
}

// Invalidator drops cached lookups after source data or artifacts change.
type Invalidator interface {
	Invalidate()
}

// RegeneratorDeps groups the regenerator's collaborators. RunLog and
// Invalidator are optional.
type RegeneratorDeps struct {
	Loader            datasource.Loader
	SensitiveKeywords []string
	Engines           *Engines
	Store             ArtifactStore
	RunLog            RunLog
	Invalidator       Invalidator
}

// Regenerator rebuilds artifacts from the source tables. Each artifact type
// has one guard; a rebuild already in progress rejects new requests for the
// same artifact instead of queueing them.
type Regenerator struct {
	deps   RegeneratorDeps
	logger zerolog.Logger
	now    func() time.Time
	guards map[ArtifactType]*sync.Mutex
}

// NewRegenerator returns a regenerator over deps.
func NewRegenerator(deps RegeneratorDeps, logger zerolog.Logger) *Regenerator {
	guards := make(map[ArtifactType]*sync.Mutex, len(concreteArtifacts))
	for _, a := range concreteArtifacts {
		guards[a] = &sync.Mutex{}
	}
	return &Regenerator{deps: deps, logger: logger, now: time.Now, guards: guards}
}

// acquire takes every guard of artifacts or none of them.
func (r *Regenerator) acquire(artifacts []ArtifactType) (release func(), busy ArtifactType, ok bool) {
	held := make([]*sync.Mutex, 0, len(artifacts))
	for _, a := range artifacts {
		g := r.guards[a]
		if !g.TryLock() {
			for _, h := range held {
				h.Unlock()
			}
			return nil, a, false
		}
		held = append(held, g)
	}
	return func() {
		for _, h := range held {
			h.Unlock()
		}
	}, "", true
}

// Regenerate rebuilds artifact (or each artifact of a group). Every built
// artifact is persisted before it is served. A failure of one artifact does
// not stop the others; the returned error is non-nil only when nothing was
// rebuilt.
func (r *Regenerator) Regenerate(ctx context.Context, artifact ArtifactType, trigger models.TriggeredBy) (*RegenerationResult, error) {
	artifacts := artifact.Expand()
	if artifacts == nil {
		return nil, fmt.Errorf("%w: %q", ErrUnknownArtifact, artifact)
	}

	release, busy, ok := r.acquire(artifacts)
	if !ok {
		metrics.RecordRegenerationConflict(string(busy))
		return nil, fmt.Errorf("%w: %s", ErrRegenerationConflict, busy)
	}
	defer release()

	result := &RegenerationResult{
		RegeneratedArtifacts: []string{},
		Timestamp:            r.now().UTC(),
		Rows:                 map[string]int{},
	}
	src := &sourceData{loader: r.deps.Loader, keywords: r.deps.SensitiveKeywords}

	var firstErr error
	for _, a := range artifacts {
		start := time.Now()
		entries, err := r.rebuild(ctx, a, src)
		duration := time.Since(start)
		metrics.RecordRegeneration(string(a), duration, err)
		r.logRun(ctx, a, entries, duration, trigger, err)

		if err != nil {
			if result.Errors == nil {
				result.Errors = map[string]string{}
			}
			result.Errors[string(a)] = err.Error()
			if firstErr == nil {
				firstErr = err
			}
			r.logger.Error().Err(err).Str("artifact", string(a)).
				Str("triggered_by", string(trigger)).Msg("Artifact regeneration failed")
			continue
		}
		result.RegeneratedArtifacts = append(result.RegeneratedArtifacts, string(a))
		result.Rows[string(a)] = entries
		r.logger.Info().Str("artifact", string(a)).Int("entries", entries).
			Dur("duration", duration).Str("triggered_by", string(trigger)).
			Msg("Artifact regenerated")
	}

	switch {
	case len(result.RegeneratedArtifacts) == len(artifacts):
		result.Status = RegenerationSuccess
	case len(result.RegeneratedArtifacts) > 0:
		result.Status = RegenerationPartial
	default:
		result.Status = RegenerationFailure
	}

	if len(result.RegeneratedArtifacts) > 0 && r.deps.Invalidator != nil {
		r.deps.Invalidator.Invalidate()
	}
	if result.Status == RegenerationFailure {
		return result, fmt.Errorf("regenerate %s: %w", artifact, firstErr)
	}
	return result, nil
}

// rebuild builds, persists and then swaps one artifact.
func (r *Regenerator) rebuild(ctx context.Context, a ArtifactType, src *sourceData) (int, error) {
	eng := r.deps.Engines
	switch a {
	case ArtifactDistrict:
		citizens, provisions, err := src.citizensAndProvisions(ctx)
		if err != nil {
			return 0, err
		}
		art := eng.District.Build(citizens, provisions)
		if err := r.persist(ctx, a, art); err != nil {
			return 0, err
		}
		eng.District.Swap(art)
		metrics.SetArtifact(string(a), art.Version, art.Entries)
		return art.Entries, nil

	case ArtifactDemographic:
		citizens, provisions, err := src.citizensAndProvisions(ctx)
		if err != nil {
			return 0, err
		}
		art := eng.Demographic.BuildClusters(citizens, provisions)
		if err := r.persist(ctx, a, art); err != nil {
			return 0, err
		}
		eng.Demographic.Swap(art)
		metrics.SetArtifact(string(a), art.Version, art.Entries)
		return art.Entries, nil

	case ArtifactBlock:
		bsks, err := src.bskList(ctx)
		if err != nil {
			return 0, err
		}
		provisions, err := src.provisionList(ctx)
		if err != nil {
			return 0, err
		}
		art := eng.Block.Build(bsks, provisions)
		if err := r.persist(ctx, a, art); err != nil {
			return 0, err
		}
		eng.Block.Swap(art)
		metrics.SetArtifact(string(a), art.Version, art.Entries)
		return art.Entries, nil

	case ArtifactContent:
		services, err := src.serviceList(ctx)
		if err != nil {
			return 0, err
		}
		art, err := eng.Content.BuildSimilarityMatrix(ctx, services)
		if err != nil {
			return 0, err
		}
		if err := r.persist(ctx, a, art); err != nil {
			return 0, err
		}
		eng.Content.Swap(art)
		metrics.SetArtifact(string(a), art.Version, art.Entries)
		return art.Entries, nil
	}
	return 0, fmt.Errorf("%w: %q", ErrUnknownArtifact, a)
}

func (r *Regenerator) persist(ctx context.Context, a ArtifactType, v interface{}) error {
	if err := r.deps.Store.Save(ctx, string(a), v); err != nil {
		return fmt.Errorf("persist %s artifact: %w", a, err)
	}
	return nil
}

func (r *Regenerator) logRun(ctx context.Context, a ArtifactType, entries int, d time.Duration, trigger models.TriggeredBy, err error) {
	if r.deps.RunLog == nil {
		return
	}
	entry := &models.RegenerationLog{
		ArtifactType:    string(a),
		RowsGenerated:   int64(entries),
		DurationSeconds: d.Seconds(),
		Status:          models.StatusSuccess,
		TriggeredBy:     trigger,
		CreatedAt:       r.now().UTC(),
	}
	if err != nil {
		entry.Status = models.StatusFailure
		entry.ErrorMessage = err.Error()
	}
	// The run log is an audit trail; a failed write never fails the rebuild.
	if werr := r.deps.RunLog.RecordRegeneration(context.WithoutCancel(ctx), entry); werr != nil {
		r.logger.Warn().Err(werr).Str("artifact", string(a)).Msg("Failed to record regeneration run")
	}
}

// Restore serves the last persisted artifacts. It returns the artifacts
// that have no usable persisted copy.
func (r *Regenerator) Restore(ctx context.Context) []ArtifactType {
	var missing []ArtifactType
	for _, a := range concreteArtifacts {
		ok, err := r.restore(ctx, a)
		if err != nil {
			r.logger.Warn().Err(err).Str("artifact", string(a)).Msg("Failed to restore artifact")
		}
		if !ok {
			missing = append(missing, a)
		}
	}
	return missing
}

func (r *Regenerator) restore(ctx context.Context, a ArtifactType) (bool, error) {
	eng := r.deps.Engines
	var info engines.ArtifactInfo
	switch a {
	case ArtifactDistrict, ArtifactBlock:
		var art engines.GroupRanking
		found, err := r.deps.Store.Load(ctx, string(a), &art)
		if !found || err != nil {
			return false, err
		}
		if a == ArtifactDistrict {
			eng.District.Swap(&art)
		} else {
			eng.Block.Swap(&art)
		}
		info = art.ArtifactInfo
	case ArtifactDemographic:
		var art engines.DemographicClusters
		found, err := r.deps.Store.Load(ctx, string(a), &art)
		if !found || err != nil {
			return false, err
		}
		if !eng.Demographic.Compatible(&art) {
			r.logger.Warn().Str("artifact", string(a)).Str("stored", art.Fingerprint).
				Str("current", eng.Demographic.Fingerprint()).
				Msg("Persisted clusters were built under another cluster configuration; rebuilding")
			return false, nil
		}
		eng.Demographic.Swap(&art)
		info = art.ArtifactInfo
	case ArtifactContent:
		var art engines.SimilarityMatrix
		found, err := r.deps.Store.Load(ctx, string(a), &art)
		if !found || err != nil {
			return false, err
		}
		eng.Content.Swap(&art)
		info = art.ArtifactInfo
	default:
		return false, fmt.Errorf("%w: %q", ErrUnknownArtifact, a)
	}
	metrics.SetArtifact(string(a), info.Version, info.Entries)
	r.logger.Info().Str("artifact", string(a)).Int64("version", info.Version).
		Int("entries", info.Entries).Msg("Artifact restored")
	return true, nil
}

// sourceData loads each source table at most once per regeneration.
type sourceData struct {
	loader   datasource.Loader
	keywords []string

	citizens    []models.Citizen
	citizensErr error
	citizensOK  bool

	provisions    []models.Provision
	provisionsErr error
	provisionsOK  bool

	bsks    []models.BSK
	bsksErr error
	bsksOK  bool

	services    []models.Service
	servicesErr error
	servicesOK  bool
}

func (s *sourceData) table(ctx context.Context, name string) (*datasource.Table, error) {
	t, err := s.loader.Load(ctx, name)
	if err != nil {
		return nil, fmt.Errorf("load %s: %w", name, err)
	}
	return t, nil
}

func (s *sourceData) citizenList(ctx context.Context) ([]models.Citizen, error) {
	if !s.citizensOK {
		s.citizensOK = true
		var t *datasource.Table
		if t, s.citizensErr = s.table(ctx, models.TableCitizens); s.citizensErr == nil {
			s.citizens, s.citizensErr = datasource.Citizens(t)
		}
	}
	return s.citizens, s.citizensErr
}

func (s *sourceData) provisionList(ctx context.Context) ([]models.Provision, error) {
	if !s.provisionsOK {
		s.provisionsOK = true
		var t *datasource.Table
		if t, s.provisionsErr = s.table(ctx, models.TableProvisions); s.provisionsErr == nil {
			s.provisions, s.provisionsErr = datasource.Provisions(t)
		}
	}
	return s.provisions, s.provisionsErr
}

func (s *sourceData) bskList(ctx context.Context) ([]models.BSK, error) {
	if !s.bsksOK {
		s.bsksOK = true
		var t *datasource.Table
		if t, s.bsksErr = s.table(ctx, models.TableBSK); s.bsksErr == nil {
			s.bsks, s.bsksErr = datasource.BSKs(t)
		}
	}
	return s.bsks, s.bsksErr
}

func (s *sourceData) serviceList(ctx context.Context) ([]models.Service, error) {
	if !s.servicesOK {
		s.servicesOK = true
		var t *datasource.Table
		if t, s.servicesErr = s.table(ctx, models.TableServices); s.servicesErr == nil {
			s.services, s.servicesErr = datasource.Services(t, s.keywords)
		}
	}
	return s.services, s.servicesErr
}

func (s *sourceData) citizensAndProvisions(ctx context.Context) ([]models.Citizen, []models.Provision, error) {
	citizens, err := s.citizenList(ctx)
	if err != nil {
		return nil, nil, err
	}
	provisions, err := s.provisionList(ctx)
	if err != nil {
		return nil, nil, err
	}
	return citizens, provisions, nil
}

// IsConflict reports whether err is a regeneration conflict.
func IsConflict(err error) bool {
	return errors.Is(err, ErrRegenerationConflict)
}
