// Sahayak - Citizen Service Recommendation Engine
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/sahayak

package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/providers/structs"
	"github.com/knadh/koanf/v2"
)

// DefaultConfigPaths are searched in order; the first existing file wins.
var DefaultConfigPaths = []string{
	"config.yaml",
	"config.yml",
	"/etc/sahayak/config.yaml",
	"/etc/sahayak/config.yml",
}

// ConfigPathEnvVar overrides the config file location.
const ConfigPathEnvVar = "CONFIG_PATH"

func defaultConfig() *Config {
	return &Config{
		Server: ServerConfig{
			Port:            8000,
			Host:            "0.0.0.0",
			Timeout:         30 * time.Second,
			ShutdownTimeout: 10 * time.Second,
		},
		Security: SecurityConfig{
			CORSOrigins:     []string{},
			RateLimitReqs:   100,
			RateLimitWindow: time.Minute,
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "json",
		},
		Database: DatabaseConfig{
			Path:      "/data/sahayak.duckdb",
			MaxMemory: "1GB",
		},
		Source: SourceConfig{
			Preferred:         "database",
			FilesDir:          "/data/csv",
			DirectoryTTL:      10 * time.Minute,
			SensitiveKeywords: []string{"birth", "death"},
		},
		Artifacts: ArtifactsConfig{
			Path: "/data/artifacts",
		},
		Recommend: RecommendConfig{
			DistrictK:           5,
			DemographicK:        5,
			ContentK:            5,
			BlockK:              5,
			MaxRanked:           50,
			ClusterTopN:         20,
			AgeBuckets:          []string{"child:18", "youth:35", "adult:60", "senior"},
			ClusterAttributes:   []string{"age_bucket", "gender", "caste", "religion", "district"},
			RelaxationOrder:     []string{"district", "religion", "caste", "gender", "age_bucket"},
			ReligionGrouping:    true,
			ExcludeUsedServices: true,
			RequestTimeout:      15 * time.Second,
			HistoryDepth:        10,
		},
		Embedding: EmbeddingConfig{
			URL:           "https://api.openai.com/v1",
			Model:         "text-embedding-ada-002",
			BatchSize:     100,
			Timeout:       60 * time.Second,
			RetryAttempts: 3,
			RetryDelay:    2 * time.Second,
			CacheSize:     4096,

			ChatModel:        "gpt-3.5-turbo",
			EnhanceMaxTokens: 200,
			EnhanceCacheTTL:  7 * 24 * time.Hour,
		},
		Sync: SyncConfig{
			Enabled:           false,
			TokenLifetime:     time.Hour,
			TokenRefreshSkew:  2 * time.Minute,
			AuthRetryAttempts: 3,
			AuthRetryDelay:    2 * time.Second,
			Tables:            []string{"ml_citizen_master", "ml_provision", "ml_district", "ml_bsk_master"},
			TableAliases:      []string{"services=service_master"},
			PageSize:          1000,
			RequestTimeout:    60 * time.Second,
			TableTimeout:      30 * time.Minute,
			RetryAttempts:     3,
			RetryDelay:        2 * time.Second,
			RateLimit:         5,
			RateBurst:         5,
			DefaultFromDate:   "2024-01-01",
		},
		Schedule: ScheduleConfig{
			Enabled:    true,
			Weekday:    "sunday",
			Hour:       0,
			Minute:     0,
			Timezone:   "Asia/Kolkata",
			RegenDelay: time.Hour,
		},
	}
}

// LoadWithKoanf loads defaults, the optional config file and the environment,
// then validates the result.
func LoadWithKoanf() (*Config, error) {
	k := koanf.New(".")

	if err := k.Load(structs.Provider(defaultConfig(), "koanf"), nil); err != nil {
		return nil, fmt.Errorf("failed to load defaults: %w", err)
	}

	if path := findConfigFile(); path != "" {
		if err := k.Load(file.Provider(path), yaml.Parser()); err != nil {
			return nil, fmt.Errorf("failed to load config file %s: %w", path, err)
		}
	}

	if err := k.Load(env.Provider("", ".", envTransformFunc), nil); err != nil {
		return nil, fmt.Errorf("failed to load environment variables: %w", err)
	}

	if err := processSliceFields(k); err != nil {
		return nil, fmt.Errorf("failed to process slice fields: %w", err)
	}

	cfg := &Config{}
	if err := k.Unmarshal("", cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal configuration: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}
	return cfg, nil
}

func findConfigFile() string {
	if p := os.Getenv(ConfigPathEnvVar); p != "" {
		if _, err := os.Stat(p); err == nil {
			return p
		}
	}
	for _, p := range DefaultConfigPaths {
		if _, err := os.Stat(p); err == nil {
			return p
		}
	}
	return ""
}

var sliceConfigPaths = []string{
	"security.cors_origins",
	"source.sensitive_keywords",
	"recommend.age_buckets",
	"recommend.cluster_attributes",
	"recommend.relaxation_order",
	"sync.tables",
	"sync.table_aliases",
}

// processSliceFields splits comma-separated strings coming from the
// environment into string slices.
func processSliceFields(k *koanf.Koanf) error {
	for _, path := range sliceConfigPaths {
		s, ok := k.Get(path).(string)
		if !ok {
			continue
		}
		parts := splitList(s)
		if err := k.Set(path, parts); err != nil {
			return fmt.Errorf("failed to set %s: %w", path, err)
		}
	}
	return nil
}

func splitList(s string) []string {
	out := []string{}
	for _, p := range strings.Split(s, ",") {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}

var envMappings = map[string]string{
	"http_port":             "server.port",
	"http_host":             "server.host",
	"http_timeout":          "server.timeout",
	"http_shutdown_timeout": "server.shutdown_timeout",
	"http_drain_delay":      "server.drain_delay",

	"cors_origins":        "security.cors_origins",
	"rate_limit_requests": "security.rate_limit_reqs",
	"rate_limit_window":   "security.rate_limit_window",
	"disable_rate_limit":  "security.rate_limit_disabled",

	"log_level":  "logging.level",
	"log_format": "logging.format",
	"log_caller": "logging.caller",

	"duckdb_path":       "database.path",
	"duckdb_max_memory": "database.max_memory",
	"duckdb_threads":    "database.threads",

	"data_source":        "source.preferred",
	"csv_dir":            "source.files_dir",
	"directory_ttl":      "source.directory_ttl",
	"sensitive_keywords": "source.sensitive_keywords",

	"artifacts_path":      "artifacts.path",
	"artifacts_in_memory": "artifacts.in_memory",

	"recommend_district_k":          "recommend.district_k",
	"recommend_demographic_k":       "recommend.demographic_k",
	"recommend_content_k":           "recommend.content_k",
	"recommend_block_k":             "recommend.block_k",
	"recommend_max_ranked":          "recommend.max_ranked",
	"recommend_cluster_top_n":       "recommend.cluster_top_n",
	"recommend_age_buckets":         "recommend.age_buckets",
	"recommend_cluster_attributes":  "recommend.cluster_attributes",
	"recommend_relaxation_order":    "recommend.relaxation_order",
	"recommend_religion_grouping":   "recommend.religion_grouping",
	"recommend_default_district_id": "recommend.default_district_id",
	"recommend_exclude_used":        "recommend.exclude_used_services",
	"recommend_request_timeout":     "recommend.request_timeout",
	"recommend_history_depth":       "recommend.history_depth",

	"embedding_url":            "embedding.url",
	"openai_api_key":           "embedding.api_key",
	"embedding_model":          "embedding.model",
	"embedding_batch_size":     "embedding.batch_size",
	"embedding_timeout":        "embedding.timeout",
	"embedding_retry_attempts": "embedding.retry_attempts",
	"embedding_retry_delay":    "embedding.retry_delay",
	"embedding_cache_size":     "embedding.cache_size",

	"embedding_enhance_descriptions": "embedding.enhance_descriptions",
	"embedding_chat_model":           "embedding.chat_model",
	"embedding_enhance_max_tokens":   "embedding.enhance_max_tokens",
	"embedding_enhance_cache_ttl":    "embedding.enhance_cache_ttl",

	"sync_enabled":             "sync.enabled",
	"external_sync_base_url":   "sync.base_url",
	"external_login_url":       "sync.login_url",
	"external_sync_username":   "sync.username",
	"external_sync_password":   "sync.password",
	"sync_token_lifetime":      "sync.token_lifetime",
	"sync_token_refresh_skew":  "sync.token_refresh_skew",
	"sync_auth_retry_attempts": "sync.auth_retry_attempts",
	"sync_auth_retry_delay":    "sync.auth_retry_delay",
	"sync_tables":              "sync.tables",
	"sync_table_aliases":       "sync.table_aliases",
	"sync_page_size":           "sync.page_size",
	"sync_request_timeout":     "sync.request_timeout",
	"sync_table_timeout":       "sync.table_timeout",
	"sync_retry_attempts":      "sync.retry_attempts",
	"sync_retry_delay":         "sync.retry_delay",
	"sync_rate_limit":          "sync.rate_limit",
	"sync_rate_burst":          "sync.rate_burst",
	"sync_default_from_date":   "sync.default_from_date",

	"schedule_enabled":        "schedule.enabled",
	"schedule_weekday":        "schedule.weekday",
	"schedule_hour":           "schedule.hour",
	"schedule_minute":         "schedule.minute",
	"schedule_timezone":       "schedule.timezone",
	"static_regen_delay":      "schedule.regen_delay",
	"schedule_run_on_startup": "schedule.run_on_startup",
}

// envTransformFunc maps known environment variables onto config keys.
// Anything not in envMappings is ignored.
func envTransformFunc(key string) string {
	if mapped, ok := envMappings[strings.ToLower(key)]; ok {
		return mapped
	}
	return ""
}
