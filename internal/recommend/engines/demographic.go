// Sahayak - Citizen Service Recommendation Engine
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/sahayak

package engines

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"strconv"
	"strings"
	"sync/atomic"
	"time"

	"github.com/tomtom215/sahayak/internal/models"
)

// Cluster attributes, in key order.
const (
	AttrAgeBucket = "age_bucket"
	AttrGender    = "gender"
	AttrCaste     = "caste"
	AttrReligion  = "religion"
	AttrDistrict  = "district"
)

// relaxedValue marks an attribute dropped from a cluster key.
const relaxedValue = "*"

var attributeOrder = []string{AttrAgeBucket, AttrGender, AttrCaste, AttrReligion, AttrDistrict}

// AgeBucket covers ages below Max. The last bucket may leave Max at zero to
// cover every remaining age.
type AgeBucket struct {
	Label string `json:"label"`
	Max   int    `json:"max_exclusive,omitempty"`
}

// ParseAgeBuckets parses "label:max_exclusive" entries. Only the final entry
// may omit its bound, and bounds must increase.
func ParseAgeBuckets(specs []string) ([]AgeBucket, error) {
	buckets := make([]AgeBucket, 0, len(specs))
	prev := 0
	for i, spec := range specs {
		label, bound, hasBound := strings.Cut(strings.TrimSpace(spec), ":")
		label = strings.TrimSpace(label)
		if label == "" {
			return nil, fmt.Errorf("age bucket %d: empty label", i)
		}
		if !hasBound {
			if i != len(specs)-1 {
				return nil, fmt.Errorf("age bucket %q: only the last bucket may be unbounded", label)
			}
			buckets = append(buckets, AgeBucket{Label: label})
			continue
		}
		upper, err := strconv.Atoi(strings.TrimSpace(bound))
		if err != nil {
			return nil, fmt.Errorf("age bucket %q: invalid bound: %w", label, err)
		}
		if upper <= prev {
			return nil, fmt.Errorf("age bucket %q: bound %d must exceed %d", label, upper, prev)
		}
		prev = upper
		buckets = append(buckets, AgeBucket{Label: label, Max: upper})
	}
	return buckets, nil
}

// DefaultAgeBuckets is child <18, youth <35, adult <60, senior.
func DefaultAgeBuckets() []AgeBucket {
	return []AgeBucket{
		{Label: "child", Max: 18},
		{Label: "youth", Max: 35},
		{Label: "adult", Max: 60},
		{Label: "senior"},
	}
}

// ClusterConfig controls demographic keys and fallback.
type ClusterConfig struct {
	AgeBuckets       []AgeBucket
	Attributes       []string
	RelaxationOrder  []string
	ReligionGrouping bool
	TopN             int
}

// DefaultClusterConfig clusters on every attribute and relaxes district
// first, age bucket last.
func DefaultClusterConfig() ClusterConfig {
	return ClusterConfig{
		AgeBuckets:       DefaultAgeBuckets(),
		Attributes:       append([]string(nil), attributeOrder...),
		RelaxationOrder:  []string{AttrDistrict, AttrReligion, AttrCaste, AttrGender, AttrAgeBucket},
		ReligionGrouping: true,
		TopN:             20,
	}
}

// Validate checks attribute names and relaxation coverage.
func (c *ClusterConfig) Validate() error {
	known := make(map[string]bool, len(attributeOrder))
	for _, a := range attributeOrder {
		known[a] = true
	}
	active := make(map[string]bool, len(c.Attributes))
	for _, a := range c.Attributes {
		if !known[a] {
			return fmt.Errorf("unknown cluster attribute %q", a)
		}
		active[a] = true
	}
	if len(active) == 0 {
		return fmt.Errorf("at least one cluster attribute is required")
	}
	for _, a := range c.RelaxationOrder {
		if !known[a] {
			return fmt.Errorf("unknown relaxation attribute %q", a)
		}
	}
	return nil
}

// DemographicClusters maps a cluster key to its services ordered by
// provision count. Fingerprint identifies the cluster configuration the keys
// were built under.
type DemographicClusters struct {
	ArtifactInfo
	Fingerprint string                     `json:"config_fingerprint"`
	Clusters    map[string][]RankedService `json:"clusters"`
}

// DemographicEngine recommends what similar citizens received. A citizen's
// cluster key combines the configured attributes; when the exact cluster is
// empty, attributes are relaxed one at a time in a fixed order down to the
// global ranking.
type DemographicEngine struct {
	cfg         ClusterConfig
	attrs       []string
	levels      []map[string]bool
	fingerprint string
	now         func() time.Time
	current     atomic.Pointer[DemographicClusters]
}

// NewDemographicEngine validates cfg and precomputes the relaxation levels.
func NewDemographicEngine(cfg ClusterConfig) (*DemographicEngine, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if len(cfg.AgeBuckets) == 0 {
		cfg.AgeBuckets = DefaultAgeBuckets()
	}

	active := make(map[string]bool, len(cfg.Attributes))
	for _, a := range cfg.Attributes {
		active[a] = true
	}
	var attrs []string
	for _, a := range attributeOrder {
		if active[a] {
			attrs = append(attrs, a)
		}
	}

	levels := relaxationLevels(attrs, cfg.RelaxationOrder)
	return &DemographicEngine{
		cfg:         cfg,
		attrs:       attrs,
		levels:      levels,
		fingerprint: clusterFingerprint(&cfg, attrs, levels),
		now:         time.Now,
	}, nil
}

// clusterFingerprint hashes everything that shapes a cluster key or its
// ranking: active attributes, the relaxation levels, age buckets, religion
// grouping and the per-cluster cap.
func clusterFingerprint(cfg *ClusterConfig, attrs []string, levels []map[string]bool) string {
	var b strings.Builder
	b.WriteString("attrs=")
	b.WriteString(strings.Join(attrs, ","))
	b.WriteString(";levels=")
	for i, relaxed := range levels {
		if i > 0 {
			b.WriteByte('/')
		}
		for _, a := range attrs {
			if relaxed[a] {
				b.WriteString(a)
				b.WriteByte(',')
			}
		}
	}
	b.WriteString(";buckets=")
	for _, bucket := range cfg.AgeBuckets {
		fmt.Fprintf(&b, "%s<%d,", bucket.Label, bucket.Max)
	}
	fmt.Fprintf(&b, ";religion_grouping=%t;top=%d", cfg.ReligionGrouping, cfg.TopN)

	sum := sha256.Sum256([]byte(b.String()))
	return hex.EncodeToString(sum[:8])
}

// Fingerprint identifies the engine's cluster configuration.
func (e *DemographicEngine) Fingerprint() string {
	return e.fingerprint
}

// Compatible reports whether c was built under the engine's configuration.
// Cluster keys do not survive a configuration change.
func (e *DemographicEngine) Compatible(c *DemographicClusters) bool {
	return c != nil && c.Fingerprint == e.fingerprint
}

// relaxationLevels returns cumulative relaxed-attribute sets: the exact key,
// then one more attribute dropped per level, ending with every attribute
// relaxed (the global ranking).
func relaxationLevels(attrs, order []string) []map[string]bool {
	active := make(map[string]bool, len(attrs))
	for _, a := range attrs {
		active[a] = true
	}

	levels := []map[string]bool{{}}
	relaxed := map[string]bool{}
	for _, a := range order {
		if !active[a] || relaxed[a] {
			continue
		}
		relaxed[a] = true
		levels = append(levels, copySet(relaxed))
	}
	if len(relaxed) < len(attrs) {
		all := make(map[string]bool, len(attrs))
		for _, a := range attrs {
			all[a] = true
		}
		levels = append(levels, all)
	}
	return levels
}

func copySet(m map[string]bool) map[string]bool {
	out := make(map[string]bool, len(m))
	for k, v := range m {
		out[k] = v
	}
	return out
}

// Levels returns the number of relaxation levels including exact and global.
func (e *DemographicEngine) Levels() int {
	return len(e.levels)
}

// AgeBucket returns the bucket label for age, or unknown.
func (e *DemographicEngine) AgeBucket(age *int) string {
	if age == nil || *age < 0 {
		return models.Unknown
	}
	for _, b := range e.cfg.AgeBuckets {
		if b.Max == 0 || *age < b.Max {
			return b.Label
		}
	}
	return models.Unknown
}

// attributeValues normalizes a profile into per-attribute values.
func (e *DemographicEngine) attributeValues(p *models.Profile) map[string]string {
	religion := models.NormalizeValue(p.Religion)
	if e.cfg.ReligionGrouping {
		religion = models.ReligionGroup(religion)
	}
	district := models.Unknown
	if p.DistrictID != 0 {
		district = strconv.Itoa(p.DistrictID)
	}
	return map[string]string{
		AttrAgeBucket: e.AgeBucket(p.Age),
		AttrGender:    models.NormalizeGender(p.Gender),
		AttrCaste:     models.NormalizeCaste(p.Caste),
		AttrReligion:  religion,
		AttrDistrict:  district,
	}
}

// Key returns the cluster key of values at relaxation level.
func (e *DemographicEngine) key(values map[string]string, level int) string {
	relaxed := e.levels[level]
	var b strings.Builder
	for i, a := range e.attrs {
		if i > 0 {
			b.WriteByte('|')
		}
		b.WriteString(a)
		b.WriteByte('=')
		if relaxed[a] {
			b.WriteString(relaxedValue)
		} else {
			b.WriteString(values[a])
		}
	}
	return b.String()
}

// Keys returns the profile's cluster key at every level, exact first.
func (e *DemographicEngine) Keys(p *models.Profile) []string {
	values := e.attributeValues(p)
	keys := make([]string, len(e.levels))
	for i := range e.levels {
		keys[i] = e.key(values, i)
	}
	return keys
}

// BuildClusters counts every provision under each relaxation level of its
// citizen's key. Provisions of unknown citizens are ignored.
func (e *DemographicEngine) BuildClusters(citizens []models.Citizen, provisions []models.Provision) *DemographicClusters {
	keysOf := make(map[string][]string, len(citizens))
	for i := range citizens {
		p := models.ProfileFromCitizen(&citizens[i])
		keysOf[citizens[i].CitizenID] = e.Keys(&p)
	}

	counts := make(map[string]map[int]int64)
	for _, pr := range provisions {
		keys, ok := keysOf[pr.CustomerID]
		if !ok {
			continue
		}
		for _, k := range keys {
			c, ok := counts[k]
			if !ok {
				c = make(map[int]int64)
				counts[k] = c
			}
			c[pr.ServiceID]++
		}
	}

	names := provisionNames(provisions)
	clusters := make(map[string][]RankedService, len(counts))
	entries := 0
	for k, c := range counts {
		clusters[k] = rankCounts(c, names, e.cfg.TopN)
		entries += len(clusters[k])
	}

	var prev *ArtifactInfo
	if cur := e.current.Load(); cur != nil {
		prev = &cur.ArtifactInfo
	}
	return &DemographicClusters{
		ArtifactInfo: nextInfo(prev, entries, e.now()),
		Fingerprint:  e.fingerprint,
		Clusters:     clusters,
	}
}

// Swap publishes c.
func (e *DemographicEngine) Swap(c *DemographicClusters) {
	if c == nil {
		return
	}
	if c.Clusters == nil {
		c.Clusters = map[string][]RankedService{}
	}
	e.current.Store(c)
}

// Current returns the served artifact, or nil before the first build.
func (e *DemographicEngine) Current() *DemographicClusters {
	return e.current.Load()
}

// Info returns the served artifact's identity.
func (e *DemographicEngine) Info() (ArtifactInfo, bool) {
	cur := e.current.Load()
	if cur == nil {
		return ArtifactInfo{}, false
	}
	return cur.ArtifactInfo, true
}

// Recommend returns up to k services from the most specific non-empty
// cluster matching p.
func (e *DemographicEngine) Recommend(p *models.Profile, k int) []RankedService {
	out, _ := e.Select(p, nil, k)
	return out
}

// Select walks the relaxation levels and returns up to k accepted services
// from the first level with any, together with the matched key.
func (e *DemographicEngine) Select(p *models.Profile, accept Accept, k int) ([]RankedService, string) {
	cur := e.current.Load()
	if cur == nil {
		return nil, ""
	}
	for _, key := range e.Keys(p) {
		if out := selectTop(cur.Clusters[key], accept, k); len(out) > 0 {
			return out, key
		}
	}
	return nil, ""
}
