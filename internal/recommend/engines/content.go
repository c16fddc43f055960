// Sahayak - Citizen Service Recommendation Engine
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/sahayak

package engines

import (
	"context"
	"errors"
	"fmt"
	"math"
	"sort"
	"strings"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog"

	"github.com/tomtom215/sahayak/internal/metrics"
	"github.com/tomtom215/sahayak/internal/models"
)

// ErrStaleSimilarity means the matrix predates the requested service.
var ErrStaleSimilarity = errors.New("service not present in similarity matrix")

// Embedder turns texts into vectors of equal dimension, one per text.
type Embedder interface {
	Embed(ctx context.Context, texts []string) ([][]float64, error)
}

// Enhancer rewrites a service description before it is embedded.
type Enhancer interface {
	Enhance(ctx context.Context, name, description string) (string, error)
}

// SimilarityEntry is a row/column of the matrix.
type SimilarityEntry struct {
	ServiceID int    `json:"service_id"`
	Name      string `json:"service_name"`
	Sensitive bool   `json:"sensitive"`
}

// SimilarityMatrix holds pairwise cosine similarity of service embeddings.
// Scores[i][j] == Scores[j][i].
type SimilarityMatrix struct {
	ArtifactInfo
	Services []SimilarityEntry `json:"services"`
	Scores   [][]float64       `json:"scores"`

	index map[int]int
}

func (m *SimilarityMatrix) buildIndex() {
	m.index = make(map[int]int, len(m.Services))
	for i, s := range m.Services {
		m.index[s.ServiceID] = i
	}
}

// ContentEngine recommends services whose descriptions are close to a
// selected service in embedding space.
type ContentEngine struct {
	embedder Embedder
	enhancer Enhancer
	logger   zerolog.Logger
	now      func() time.Time
	current  atomic.Pointer[SimilarityMatrix]
}

// NewContentEngine returns an engine with no matrix loaded.
func NewContentEngine(embedder Embedder, logger zerolog.Logger) *ContentEngine {
	return &ContentEngine{embedder: embedder, logger: logger, now: time.Now}
}

// SetEnhancer makes matrix builds rewrite descriptions that have no
// enhanced form yet. Call before the first build.
func (e *ContentEngine) SetEnhancer(en Enhancer) {
	e.enhancer = en
}

// ServiceText is the text embedded for a service: its name and the enhanced
// description, or the plain one when no enhanced form exists.
func ServiceText(s *models.Service) string {
	name := strings.TrimSpace(s.Name)
	desc := strings.TrimSpace(s.EnhancedDescription)
	if desc == "" {
		desc = strings.TrimSpace(s.Description)
	}
	if desc == "" {
		return name
	}
	return name + ". " + desc
}

// BuildSimilarityMatrix embeds every service and computes the full matrix.
func (e *ContentEngine) BuildSimilarityMatrix(ctx context.Context, services []models.Service) (*SimilarityMatrix, error) {
	if e.embedder == nil {
		return nil, errors.New("content engine: no embedder configured")
	}

	ordered := append([]models.Service(nil), services...)
	sort.Slice(ordered, func(i, j int) bool { return ordered[i].ServiceID < ordered[j].ServiceID })

	e.enhance(ctx, ordered)
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	texts := make([]string, len(ordered))
	entries := make([]SimilarityEntry, len(ordered))
	for i := range ordered {
		texts[i] = ServiceText(&ordered[i])
		entries[i] = SimilarityEntry{ServiceID: ordered[i].ServiceID, Name: ordered[i].Name, Sensitive: ordered[i].Sensitive}
	}

	vectors, err := e.embedder.Embed(ctx, texts)
	if err != nil {
		return nil, fmt.Errorf("embed services: %w", err)
	}
	if len(vectors) != len(texts) {
		return nil, fmt.Errorf("embed services: got %d vectors for %d texts", len(vectors), len(texts))
	}

	n := len(vectors)
	norms := make([]float64, n)
	for i, v := range vectors {
		norms[i] = norm(v)
	}
	scores := make([][]float64, n)
	for i := range scores {
		scores[i] = make([]float64, n)
	}
	for i := 0; i < n; i++ {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		scores[i][i] = 1
		for j := i + 1; j < n; j++ {
			s := cosine(vectors[i], vectors[j], norms[i], norms[j])
			scores[i][j] = s
			scores[j][i] = s
		}
	}

	var prev *ArtifactInfo
	if cur := e.current.Load(); cur != nil {
		prev = &cur.ArtifactInfo
	}
	m := &SimilarityMatrix{
		ArtifactInfo: nextInfo(prev, n, e.now()),
		Services:     entries,
		Scores:       scores,
	}
	m.buildIndex()
	return m, nil
}

// enhance fills EnhancedDescription in place for services that have a plain
// description only. A failed rewrite keeps the plain description.
func (e *ContentEngine) enhance(ctx context.Context, services []models.Service) {
	if e.enhancer == nil {
		return
	}
	if p, ok := e.enhancer.(interface{ PruneEnhanced() int }); ok {
		p.PruneEnhanced()
	}

	var rewritten, failed int
	for i := range services {
		s := &services[i]
		if s.EnhancedDescription != "" || strings.TrimSpace(s.Description) == "" {
			continue
		}
		if ctx.Err() != nil {
			return
		}
		text, err := e.enhancer.Enhance(ctx, s.Name, s.Description)
		if err != nil {
			failed++
			e.logger.Warn().Err(err).Int("service_id", s.ServiceID).Msg("Description enhancement failed, embedding the original")
			continue
		}
		s.EnhancedDescription = text
		rewritten++
	}
	e.logger.Info().Int("rewritten", rewritten).Int("failed", failed).Msg("Service descriptions enhanced")
}

func norm(v []float64) float64 {
	var s float64
	for _, x := range v {
		s += x * x
	}
	return math.Sqrt(s)
}

func cosine(a, b []float64, na, nb float64) float64 {
	if len(a) != len(b) || na == 0 || nb == 0 {
		return 0
	}
	var dot float64
	for i := range a {
		dot += a[i] * b[i]
	}
	return dot / (na * nb)
}

// Swap publishes m.
func (e *ContentEngine) Swap(m *SimilarityMatrix) {
	if m == nil {
		return
	}
	m.buildIndex()
	e.current.Store(m)
}

// Current returns the served matrix, or nil before the first build.
func (e *ContentEngine) Current() *SimilarityMatrix {
	return e.current.Load()
}

// Info returns the served matrix's identity.
func (e *ContentEngine) Info() (ArtifactInfo, bool) {
	cur := e.current.Load()
	if cur == nil {
		return ArtifactInfo{}, false
	}
	return cur.ArtifactInfo, true
}

// Similar returns up to k services most similar to serviceID, excluding
// the service itself, sensitive services and repeated names. It returns
// ErrStaleSimilarity when the matrix has no row for serviceID.
func (e *ContentEngine) Similar(serviceID, k int) ([]RankedService, error) {
	m := e.current.Load()
	if m == nil {
		return nil, ErrStaleSimilarity
	}
	row, ok := m.index[serviceID]
	if !ok {
		return nil, ErrStaleSimilarity
	}

	candidates := make([]RankedService, 0, len(m.Services))
	for j, s := range m.Services {
		if j == row || s.Sensitive {
			continue
		}
		candidates = append(candidates, RankedService{ServiceID: s.ServiceID, Name: s.Name, Score: m.Scores[row][j]})
	}
	sort.Slice(candidates, func(i, j int) bool {
		if candidates[i].Score != candidates[j].Score {
			return candidates[i].Score > candidates[j].Score
		}
		return candidates[i].ServiceID < candidates[j].ServiceID
	})

	seen := map[string]bool{strings.ToLower(strings.TrimSpace(m.Services[row].Name)): true}
	out := make([]RankedService, 0, max(k, 0))
	for _, c := range candidates {
		if k > 0 && len(out) >= k {
			break
		}
		name := strings.ToLower(strings.TrimSpace(c.Name))
		if seen[name] {
			continue
		}
		seen[name] = true
		out = append(out, c)
	}
	return out, nil
}

// SimilarServices is Similar with stale lookups logged, counted and turned
// into an empty list.
func (e *ContentEngine) SimilarServices(serviceID, k int) []RankedService {
	out, err := e.Similar(serviceID, k)
	if errors.Is(err, ErrStaleSimilarity) {
		metrics.RecordStaleSimilarity()
		e.logger.Warn().Int("service_id", serviceID).
			Msg("Similarity matrix has no entry for service, regenerate content artifact")
		return []RankedService{}
	}
	return out
}
