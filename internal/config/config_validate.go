// Sahayak - Citizen Service Recommendation Engine
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/sahayak

package config

import (
	"errors"
	"fmt"
	"net/url"
	"strings"
	"time"
	_ "time/tzdata" // schedule time zones must resolve in minimal containers
)

var validWeekdays = map[string]time.Weekday{
	"sunday":    time.Sunday,
	"monday":    time.Monday,
	"tuesday":   time.Tuesday,
	"wednesday": time.Wednesday,
	"thursday":  time.Thursday,
	"friday":    time.Friday,
	"saturday":  time.Saturday,
}

var validClusterAttributes = map[string]bool{
	"age_bucket": true,
	"gender":     true,
	"caste":      true,
	"religion":   true,
	"district":   true,
}

// Validate checks the whole configuration and reports every problem found.
func (c *Config) Validate() error {
	return errors.Join(
		c.validateServer(),
		c.validateLogging(),
		c.validateSource(),
		c.validateArtifacts(),
		c.validateRecommend(),
		c.validateSync(),
		c.validateSchedule(),
	)
}

// WeekdayValue returns the configured schedule weekday.
func (s ScheduleConfig) WeekdayValue() time.Weekday {
	return validWeekdays[strings.ToLower(s.Weekday)]
}

func (c *Config) validateServer() error {
	if c.Server.Port < 1 || c.Server.Port > 65535 {
		return fmt.Errorf("HTTP_PORT must be between 1 and 65535, got %d", c.Server.Port)
	}
	if c.Server.Timeout <= 0 {
		return fmt.Errorf("HTTP_TIMEOUT must be positive")
	}
	if c.Server.DrainDelay < 0 {
		return fmt.Errorf("HTTP_DRAIN_DELAY must not be negative")
	}
	if !c.Security.RateLimitDisabled && c.Security.RateLimitReqs <= 0 {
		return fmt.Errorf("RATE_LIMIT_REQUESTS must be positive when rate limiting is enabled")
	}
	return nil
}

func (c *Config) validateLogging() error {
	switch strings.ToLower(c.Logging.Level) {
	case "trace", "debug", "info", "warn", "warning", "error":
	default:
		return fmt.Errorf("LOG_LEVEL %q is not one of trace, debug, info, warn, error", c.Logging.Level)
	}
	if c.Logging.Format != "json" && c.Logging.Format != "console" {
		return fmt.Errorf("LOG_FORMAT must be json or console, got %q", c.Logging.Format)
	}
	return nil
}

func (c *Config) validateSource() error {
	if c.Source.Preferred != "database" && c.Source.Preferred != "files" {
		return fmt.Errorf("DATA_SOURCE must be database or files, got %q", c.Source.Preferred)
	}
	if c.Source.FilesDir == "" && c.Database.Path == "" {
		return fmt.Errorf("at least one of CSV_DIR or DUCKDB_PATH is required")
	}
	if c.Source.DirectoryTTL <= 0 {
		return fmt.Errorf("DIRECTORY_TTL must be positive")
	}
	return nil
}

func (c *Config) validateArtifacts() error {
	if !c.Artifacts.InMemory && c.Artifacts.Path == "" {
		return fmt.Errorf("ARTIFACTS_PATH is required unless ARTIFACTS_IN_MEMORY=true")
	}
	return nil
}

func (c *Config) validateRecommend() error {
	r := c.Recommend
	var errs []error
	for name, v := range map[string]int{
		"RECOMMEND_DISTRICT_K":    r.DistrictK,
		"RECOMMEND_DEMOGRAPHIC_K": r.DemographicK,
		"RECOMMEND_CONTENT_K":     r.ContentK,
		"RECOMMEND_BLOCK_K":       r.BlockK,
		"RECOMMEND_MAX_RANKED":    r.MaxRanked,
		"RECOMMEND_CLUSTER_TOP_N": r.ClusterTopN,
	} {
		if v <= 0 {
			errs = append(errs, fmt.Errorf("%s must be positive, got %d", name, v))
		}
	}
	if r.HistoryDepth < 0 {
		errs = append(errs, fmt.Errorf("RECOMMEND_HISTORY_DEPTH must not be negative, got %d", r.HistoryDepth))
	}
	if len(r.AgeBuckets) == 0 {
		errs = append(errs, fmt.Errorf("RECOMMEND_AGE_BUCKETS must not be empty"))
	}
	for _, a := range r.ClusterAttributes {
		if !validClusterAttributes[a] {
			errs = append(errs, fmt.Errorf("unknown cluster attribute %q", a))
		}
	}
	seen := make(map[string]bool, len(r.RelaxationOrder))
	for _, a := range r.RelaxationOrder {
		if !validClusterAttributes[a] {
			errs = append(errs, fmt.Errorf("unknown relaxation attribute %q", a))
		}
		if seen[a] {
			errs = append(errs, fmt.Errorf("relaxation attribute %q listed twice", a))
		}
		seen[a] = true
	}
	return errors.Join(errs...)
}

func (c *Config) validateSync() error {
	if !c.Sync.Enabled {
		return nil
	}
	if err := validateHTTPURL(c.Sync.BaseURL, "EXTERNAL_SYNC_BASE_URL"); err != nil {
		return err
	}
	if err := validateHTTPURL(c.Sync.LoginURL, "EXTERNAL_LOGIN_URL"); err != nil {
		return err
	}
	if c.Sync.Username == "" || c.Sync.Password == "" {
		return fmt.Errorf("EXTERNAL_SYNC_USERNAME and EXTERNAL_SYNC_PASSWORD are required when SYNC_ENABLED=true")
	}
	if c.Sync.TokenLifetime <= c.Sync.TokenRefreshSkew {
		return fmt.Errorf("SYNC_TOKEN_LIFETIME must exceed SYNC_TOKEN_REFRESH_SKEW")
	}
	if c.Sync.PageSize <= 0 {
		return fmt.Errorf("SYNC_PAGE_SIZE must be positive")
	}
	if len(c.Sync.Tables) == 0 {
		return fmt.Errorf("SYNC_TABLES must not be empty")
	}
	for _, alias := range c.Sync.TableAliases {
		if local, external, ok := strings.Cut(alias, "="); !ok || local == "" || external == "" {
			return fmt.Errorf("SYNC_TABLE_ALIASES entry %q must be local=external", alias)
		}
	}
	if _, err := time.Parse(time.DateOnly, c.Sync.DefaultFromDate); err != nil {
		return fmt.Errorf("SYNC_DEFAULT_FROM_DATE must be YYYY-MM-DD: %w", err)
	}
	return nil
}

func (c *Config) validateSchedule() error {
	s := c.Schedule
	if !s.Enabled {
		return nil
	}
	if _, ok := validWeekdays[strings.ToLower(s.Weekday)]; !ok {
		return fmt.Errorf("SCHEDULE_WEEKDAY %q is not a weekday name", s.Weekday)
	}
	if s.Hour < 0 || s.Hour > 23 || s.Minute < 0 || s.Minute > 59 {
		return fmt.Errorf("schedule time %02d:%02d is invalid", s.Hour, s.Minute)
	}
	if _, err := time.LoadLocation(s.Timezone); err != nil {
		return fmt.Errorf("SCHEDULE_TIMEZONE %q: %w", s.Timezone, err)
	}
	if s.RegenDelay < 0 {
		return fmt.Errorf("STATIC_REGEN_DELAY must not be negative")
	}
	return nil
}

// validateHTTPURL checks that rawURL is an absolute http(s) URL.
func validateHTTPURL(rawURL, fieldName string) error {
	if rawURL == "" {
		return fmt.Errorf("%s is required", fieldName)
	}
	u, err := url.Parse(rawURL)
	if err != nil {
		return fmt.Errorf("%s failed to parse URL: %w", fieldName, err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return fmt.Errorf("%s scheme must be http or https, got: %s", fieldName, u.Scheme)
	}
	if u.Host == "" {
		return fmt.Errorf("%s host is required", fieldName)
	}
	return nil
}
