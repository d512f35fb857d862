// Curio - Retrieval Fusion and Personalized Ranking
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/curio

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

	"github.com/tomtom215/curio/internal/eventprocessor"
	"github.com/tomtom215/curio/internal/recommend"
)

// DefaultConfigPaths lists the paths where config files are searched in order of priority.
// The first file found will be used.
var DefaultConfigPaths = []string{
	"config.yaml",
	"config.yml",
	"/etc/curio/config.yaml",
	"/etc/curio/config.yml",
}

// ConfigPathEnvVar is the environment variable that can override the config file path.
const ConfigPathEnvVar = "CONFIG_PATH"

// defaultConfig returns a Config struct with all sensible default values.
// These defaults are applied first, then overridden by config file and env vars.
func defaultConfig() *Config {
	rc := recommend.DefaultConfig()
	ec := eventprocessor.DefaultConfig()

	return &Config{
		Server: ServerConfig{
			Port:            8080,
			Host:            "0.0.0.0",
			Timeout:         30 * time.Second,
			ShutdownTimeout: 15 * time.Second,
			Environment:     "development",
		},
		API: APIConfig{
			DefaultPageSize:   rc.Limits.DefaultLimit,
			MaxPageSize:       rc.Limits.MaxLimit,
			MaxImageBytes:     8 << 20,
			RateLimitReqs:     100,
			RateLimitWindow:   time.Minute,
			RateLimitDisabled: false,
			CORSOrigins:       []string{"*"},
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "json",
			Caller: false,
		},
		Catalog: CatalogConfig{
			Path:      "/data/curio.duckdb",
			Threads:   0, // 0 = DuckDB default
			MaxMemory: "1GB",
		},
		Store: StoreConfig{
			Path:       "/data/feedback",
			InMemory:   false,
			SyncWrites: false,
		},
		Embed: EmbedConfig{
			Enabled:           false,
			Timeout:           5 * time.Second,
			RequestsPerSecond: 20,
			Burst:             10,
		},
		Events: EventsConfig{
			Enabled:              true,
			BufferSize:           ec.BufferSize,
			CloseTimeout:         ec.CloseTimeout,
			RetryMaxRetries:      ec.RetryMaxRetries,
			RetryInitialInterval: ec.RetryInitialInterval,
			RetryMaxInterval:     ec.RetryMaxInterval,
			RetryMultiplier:      ec.RetryMultiplier,
			ThrottlePerSecond:    ec.ThrottlePerSecond,
			PoisonTopic:          ec.PoisonTopic,
			DedupTTL:             ec.DedupTTL,
		},
		Ranking: RankingConfig{
			Strictness:      rc.Scoring.Strictness,
			TagWeight:       rc.Scoring.TagWeight,
			VisualWeight:    rc.Scoring.VisualWeight,
			Floor:           rc.Scoring.Floor,
			JitterSigma:     rc.Scoring.JitterSigma,
			CandidateWindow: rc.Window.Candidate,
			MaxWindow:       rc.Window.MaxCandidate,
			PoolSize:        rc.Window.Pool,
			MaxPoolSize:     rc.Window.MaxPool,
			ActivityWindow:  rc.Window.Activity,
			FallbackWindow:  rc.Window.Fallback,
			Clusters:        rc.Clusters.K,
			RRFK:            rc.Search.RRFK,
			CacheEnabled:    rc.Cache.Enabled,
			RankingCacheTTL: rc.Cache.RankingTTL,
			ProfileCacheTTL: rc.Cache.ProfileTTL,
			CacheMaxEntries: rc.Cache.MaxEntries,
			MaxDepth:        rc.Limits.MaxDepth,
		},
		Retry: RetryConfig{
			PendingInterval: 30 * time.Second,
		},
	}
}

// Load loads configuration using Koanf with layered sources:
//
//  1. Defaults: Built-in sensible defaults
//  2. Config File: Optional YAML config file (if exists)
//  3. Environment Variables: Override any mapped setting
func Load() (*Config, error) {
	k := koanf.New(".")

	// Layer 1: Load defaults from struct
	if err := k.Load(structs.Provider(defaultConfig(), "koanf"), nil); err != nil {
		return nil, fmt.Errorf("failed to load defaults: %w", err)
	}

	// Layer 2: Load config file (optional)
	if configPath := findConfigFile(); configPath != "" {
		if err := k.Load(file.Provider(configPath), yaml.Parser()); err != nil {
			return nil, fmt.Errorf("failed to load config file %s: %w", configPath, err)
		}
	}

	// Layer 3: Load environment variables (highest priority)
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

// findConfigFile searches for a config file in the default paths.
// Returns the path to the first file found, or empty string if none found.
func findConfigFile() string {
	if envPath := os.Getenv(ConfigPathEnvVar); envPath != "" {
		if _, err := os.Stat(envPath); err == nil {
			return envPath
		}
	}

	for _, path := range DefaultConfigPaths {
		if _, err := os.Stat(path); err == nil {
			return path
		}
	}

	return ""
}

// sliceConfigPaths defines which config paths should be parsed as comma-separated slices
var sliceConfigPaths = []string{
	"api.cors_origins",
}

// processSliceFields converts comma-separated string values to slices for known slice fields.
// Env vars arrive as strings; YAML values are already slices.
func processSliceFields(k *koanf.Koanf) error {
	for _, path := range sliceConfigPaths {
		strVal, ok := k.Get(path).(string)
		if !ok || strVal == "" {
			continue
		}

		parts := strings.Split(strVal, ",")
		trimmed := make([]string, 0, len(parts))
		for _, p := range parts {
			if p = strings.TrimSpace(p); p != "" {
				trimmed = append(trimmed, p)
			}
		}
		if len(trimmed) > 0 {
			if err := k.Set(path, trimmed); err != nil {
				return fmt.Errorf("failed to set %s: %w", path, err)
			}
		}
	}
	return nil
}

// envMappings maps environment variable names (lowercased) to koanf paths.
var envMappings = map[string]string{
	// Server
	"http_port":        "server.port",
	"http_host":        "server.host",
	"http_timeout":     "server.timeout",
	"shutdown_timeout": "server.shutdown_timeout",
	"environment":      "server.environment",

	// API
	"api_default_page_size": "api.default_page_size",
	"api_max_page_size":     "api.max_page_size",
	"api_max_image_bytes":   "api.max_image_bytes",
	"rate_limit_reqs":       "api.rate_limit_reqs",
	"rate_limit_window":     "api.rate_limit_window",
	"disable_rate_limit":    "api.rate_limit_disabled",
	"cors_origins":          "api.cors_origins",

	// Logging
	"log_level":  "logging.level",
	"log_format": "logging.format",
	"log_caller": "logging.caller",

	// Catalog (DuckDB)
	"duckdb_path":       "catalog.path",
	"duckdb_threads":    "catalog.threads",
	"duckdb_max_memory": "catalog.max_memory",
	"catalog_seed_file": "catalog.seed_file",

	// Feedback store (Badger)
	"badger_path":        "store.path",
	"badger_in_memory":   "store.in_memory",
	"badger_sync_writes": "store.sync_writes",

	// Embedding service
	"embed_enabled":             "embed.enabled",
	"embed_url":                 "embed.base_url",
	"embed_api_key":             "embed.api_key",
	"embed_timeout":             "embed.timeout",
	"embed_requests_per_second": "embed.requests_per_second",
	"embed_burst":               "embed.burst",
	"embed_dimension":           "embed.dimension",

	// Event bus
	"events_enabled":                "events.enabled",
	"events_buffer_size":            "events.buffer_size",
	"events_close_timeout":          "events.close_timeout",
	"events_retry_max_retries":      "events.retry_max_retries",
	"events_retry_initial_interval": "events.retry_initial_interval",
	"events_retry_max_interval":     "events.retry_max_interval",
	"events_retry_multiplier":       "events.retry_multiplier",
	"events_throttle_per_second":    "events.throttle_per_second",
	"events_poison_topic":           "events.poison_topic",
	"events_dedup_ttl":              "events.dedup_ttl",

	// Ranking
	"ranking_strictness":        "ranking.strictness",
	"ranking_tag_weight":        "ranking.tag_weight",
	"ranking_visual_weight":     "ranking.visual_weight",
	"ranking_floor":             "ranking.floor",
	"ranking_jitter_sigma":      "ranking.jitter_sigma",
	"ranking_candidate_window":  "ranking.candidate_window",
	"ranking_max_window":        "ranking.max_window",
	"ranking_pool_size":         "ranking.pool_size",
	"ranking_max_pool_size":     "ranking.max_pool_size",
	"ranking_activity_window":   "ranking.activity_window",
	"ranking_fallback_window":   "ranking.fallback_window",
	"ranking_clusters":          "ranking.clusters",
	"ranking_rrf_k":             "ranking.rrf_k",
	"ranking_cache_enabled":     "ranking.cache_enabled",
	"ranking_cache_ttl":         "ranking.ranking_cache_ttl",
	"profile_cache_ttl":         "ranking.profile_cache_ttl",
	"ranking_cache_max_entries": "ranking.cache_max_entries",
	"ranking_max_depth":         "ranking.max_depth",

	// Retry
	"profile_retry_interval": "retry.pending_interval",
}

// envTransformFunc transforms environment variable names to koanf config paths.
//
// Examples:
//   - HTTP_PORT -> server.port
//   - DUCKDB_PATH -> catalog.path
//   - EMBED_URL -> embed.base_url
//   - RANKING_CACHE_TTL -> ranking.ranking_cache_ttl
func envTransformFunc(key string) string {
	if mapped, ok := envMappings[strings.ToLower(key)]; ok {
		return mapped
	}
	// Unmapped keys are skipped so unrelated environment variables never
	// reach the configuration.
	return ""
}
