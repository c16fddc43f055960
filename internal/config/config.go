// Sahayak - Citizen Service Recommendation Engine
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/sahayak

// Package config loads Sahayak's configuration with Koanf v2.
//
// Loading order, later sources win:
//  1. Built-in defaults (defaultConfig)
//  2. Optional YAML file (CONFIG_PATH, ./config.yaml, /etc/sahayak/config.yaml)
//  3. Environment variables (see envMappings)
//
// Slice values may be given in the environment as comma-separated lists:
//
//	SYNC_TABLES=ml_citizen_master,ml_provision
//	RECOMMEND_AGE_BUCKETS=child:18,youth:35,adult:60,senior
package config

import "time"

// Config is the root configuration.
type Config struct {
	Server    ServerConfig    `koanf:"server"`
	Security  SecurityConfig  `koanf:"security"`
	Logging   LoggingConfig   `koanf:"logging"`
	Database  DatabaseConfig  `koanf:"database"`
	Source    SourceConfig    `koanf:"source"`
	Artifacts ArtifactsConfig `koanf:"artifacts"`
	Recommend RecommendConfig `koanf:"recommend"`
	Embedding EmbeddingConfig `koanf:"embedding"`
	Sync      SyncConfig      `koanf:"sync"`
	Schedule  ScheduleConfig  `koanf:"schedule"`
}

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	Port            int           `koanf:"port"`
	Host            string        `koanf:"host"`
	Timeout         time.Duration `koanf:"timeout"`
	ShutdownTimeout time.Duration `koanf:"shutdown_timeout"`
	// DrainDelay keeps serving after shutdown starts while readiness
	// reports draining, so a load balancer can stop routing first.
	DrainDelay time.Duration `koanf:"drain_delay"`
}

// SecurityConfig holds CORS and rate limiting settings. Caller
// authentication is handled in front of this service.
type SecurityConfig struct {
	CORSOrigins       []string      `koanf:"cors_origins"`
	RateLimitReqs     int           `koanf:"rate_limit_reqs"`
	RateLimitWindow   time.Duration `koanf:"rate_limit_window"`
	RateLimitDisabled bool          `koanf:"rate_limit_disabled"`
}

// LoggingConfig mirrors logging.Config.
type LoggingConfig struct {
	Level  string `koanf:"level"`
	Format string `koanf:"format"`
	Caller bool   `koanf:"caller"`
}

// DatabaseConfig holds DuckDB settings. The database stores the synced
// source tables, sync metadata and the regeneration log.
type DatabaseConfig struct {
	Path      string `koanf:"path"`
	MaxMemory string `koanf:"max_memory"`
	Threads   int    `koanf:"threads"` // 0 = runtime.NumCPU()
}

// SourceConfig controls the data access layer.
type SourceConfig struct {
	// Preferred is "database" or "files"; the other one is the fallback.
	Preferred string `koanf:"preferred"`

	// FilesDir holds one <table>.csv per table.
	FilesDir string `koanf:"files_dir"`

	// DirectoryTTL bounds how long the citizen index and catalog are cached.
	DirectoryTTL time.Duration `koanf:"directory_ttl"`

	// SensitiveKeywords mark a service sensitive when its name contains one.
	SensitiveKeywords []string `koanf:"sensitive_keywords"`
}

// ArtifactsConfig holds the Badger artifact store settings.
type ArtifactsConfig struct {
	Path     string `koanf:"path"`
	InMemory bool   `koanf:"in_memory"`
}

// RecommendConfig holds engine and orchestrator settings.
type RecommendConfig struct {
	DistrictK    int `koanf:"district_k"`
	DemographicK int `koanf:"demographic_k"`
	ContentK     int `koanf:"content_k"`
	BlockK       int `koanf:"block_k"`

	MaxRanked   int `koanf:"max_ranked"`
	ClusterTopN int `koanf:"cluster_top_n"`

	// AgeBuckets entries are "label:max_exclusive"; the last one may omit
	// the bound and catches everything above.
	AgeBuckets        []string `koanf:"age_buckets"`
	ClusterAttributes []string `koanf:"cluster_attributes"`
	RelaxationOrder   []string `koanf:"relaxation_order"`
	ReligionGrouping  bool     `koanf:"religion_grouping"`

	// DefaultDistrictID is used for manual profiles without a district.
	// Zero leaves the district unknown.
	DefaultDistrictID   int           `koanf:"default_district_id"`
	ExcludeUsedServices bool          `koanf:"exclude_used_services"`
	RequestTimeout      time.Duration `koanf:"request_timeout"`

	// HistoryDepth is how many of a phone-mode citizen's latest provisions
	// are returned as service history and used as content targets. Zero
	// turns both off.
	HistoryDepth int `koanf:"history_depth"`
}

// EmbeddingConfig holds the embedding provider settings.
type EmbeddingConfig struct {
	URL           string        `koanf:"url"`
	APIKey        string        `koanf:"api_key"`
	Model         string        `koanf:"model"`
	BatchSize     int           `koanf:"batch_size"`
	Timeout       time.Duration `koanf:"timeout"`
	RetryAttempts int           `koanf:"retry_attempts"`
	RetryDelay    time.Duration `koanf:"retry_delay"`
	CacheSize     int           `koanf:"cache_size"`

	// EnhanceDescriptions rewrites each service description through the
	// provider's chat completions endpoint before it is embedded. Services
	// that already carry an enhanced_desc column are left as they are.
	EnhanceDescriptions bool          `koanf:"enhance_descriptions"`
	ChatModel           string        `koanf:"chat_model"`
	EnhanceMaxTokens    int           `koanf:"enhance_max_tokens"`
	EnhanceCacheTTL     time.Duration `koanf:"enhance_cache_ttl"`
}

// SyncConfig holds the external authority client settings.
type SyncConfig struct {
	Enabled  bool   `koanf:"enabled"`
	BaseURL  string `koanf:"base_url"`
	LoginURL string `koanf:"login_url"`
	Username string `koanf:"username"`
	Password string `koanf:"password"`

	TokenLifetime     time.Duration `koanf:"token_lifetime"`
	TokenRefreshSkew  time.Duration `koanf:"token_refresh_skew"`
	AuthRetryAttempts int           `koanf:"auth_retry_attempts"`
	AuthRetryDelay    time.Duration `koanf:"auth_retry_delay"`

	Tables []string `koanf:"tables"`

	// TableAliases entries are "local=external" and override the default
	// ml_ prefix stripping.
	TableAliases []string `koanf:"table_aliases"`

	PageSize        int           `koanf:"page_size"`
	RequestTimeout  time.Duration `koanf:"request_timeout"`
	TableTimeout    time.Duration `koanf:"table_timeout"`
	RetryAttempts   int           `koanf:"retry_attempts"`
	RetryDelay      time.Duration `koanf:"retry_delay"`
	RateLimit       float64       `koanf:"rate_limit"` // requests per second, 0 = unlimited
	RateBurst       int           `koanf:"rate_burst"`
	DefaultFromDate string        `koanf:"default_from_date"`
}

// ScheduleConfig holds the weekly sync schedule.
type ScheduleConfig struct {
	Enabled      bool          `koanf:"enabled"`
	Weekday      string        `koanf:"weekday"`
	Hour         int           `koanf:"hour"`
	Minute       int           `koanf:"minute"`
	Timezone     string        `koanf:"timezone"`
	RegenDelay   time.Duration `koanf:"regen_delay"`
	RunOnStartup bool          `koanf:"run_on_startup"`
}

// Load reads the configuration from defaults, the optional YAML file and
// the environment.
func Load() (*Config, error) {
	return LoadWithKoanf()
}
