// Curio - Retrieval Fusion and Personalized Ranking
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/curio

package config

import (
	"time"

	"github.com/tomtom215/curio/internal/catalog"
	"github.com/tomtom215/curio/internal/embed"
	"github.com/tomtom215/curio/internal/eventprocessor"
	"github.com/tomtom215/curio/internal/logging"
	"github.com/tomtom215/curio/internal/recommend"
	"github.com/tomtom215/curio/internal/store"
)

// Config holds all application configuration.
type Config struct {
	Server  ServerConfig  `koanf:"server"`
	API     APIConfig     `koanf:"api"`
	Logging LoggingConfig `koanf:"logging"`
	Catalog CatalogConfig `koanf:"catalog"`
	Store   StoreConfig   `koanf:"store"`
	Embed   EmbedConfig   `koanf:"embed"`
	Events  EventsConfig  `koanf:"events"`
	Ranking RankingConfig `koanf:"ranking"`
	Retry   RetryConfig   `koanf:"retry"`
}

// ServerConfig holds HTTP server settings
type ServerConfig struct {
	Port            int           `koanf:"port"`
	Host            string        `koanf:"host"`
	Timeout         time.Duration `koanf:"timeout"`
	ShutdownTimeout time.Duration `koanf:"shutdown_timeout"`
	Environment     string        `koanf:"environment"` // development, staging, production
}

// APIConfig holds request limits and cross-origin settings.
type APIConfig struct {
	DefaultPageSize   int           `koanf:"default_page_size"`
	MaxPageSize       int           `koanf:"max_page_size"`
	MaxImageBytes     int64         `koanf:"max_image_bytes"`
	RateLimitReqs     int           `koanf:"rate_limit_reqs"`
	RateLimitWindow   time.Duration `koanf:"rate_limit_window"`
	RateLimitDisabled bool          `koanf:"rate_limit_disabled"`
	CORSOrigins       []string      `koanf:"cors_origins"`
}

// LoggingConfig holds logging configuration.
//
// Environment Variables:
//   - LOG_LEVEL: trace, debug, info, warn, error (default: info)
//   - LOG_FORMAT: json, console (default: json)
//   - LOG_CALLER: true/false - include caller file:line (default: false)
type LoggingConfig struct {
	Level  string `koanf:"level"`
	Format string `koanf:"format"`
	Caller bool   `koanf:"caller"`
}

// CatalogConfig locates the DuckDB catalog database.
type CatalogConfig struct {
	Path      string `koanf:"path"` // empty = in-memory
	Threads   int    `koanf:"threads"`
	MaxMemory string `koanf:"max_memory"`
	// SeedFile is an optional JSON-lines file imported at startup.
	SeedFile string `koanf:"seed_file"`
}

// StoreConfig locates the Badger feedback and profile store.
type StoreConfig struct {
	Path       string `koanf:"path"`
	InMemory   bool   `koanf:"in_memory"`
	SyncWrites bool   `koanf:"sync_writes"`
}

// EmbedConfig configures the embedding service client. When disabled the
// visual search channels report unavailable.
type EmbedConfig struct {
	Enabled           bool          `koanf:"enabled"`
	BaseURL           string        `koanf:"base_url"`
	APIKey            string        `koanf:"api_key"`
	Timeout           time.Duration `koanf:"timeout"`
	RequestsPerSecond float64       `koanf:"requests_per_second"`
	Burst             int           `koanf:"burst"`
	Dimension         int           `koanf:"dimension"`
}

// EventsConfig configures the asynchronous profile update bus. When
// disabled profile updates are applied inline.
type EventsConfig struct {
	Enabled              bool          `koanf:"enabled"`
	BufferSize           int           `koanf:"buffer_size"`
	CloseTimeout         time.Duration `koanf:"close_timeout"`
	RetryMaxRetries      int           `koanf:"retry_max_retries"`
	RetryInitialInterval time.Duration `koanf:"retry_initial_interval"`
	RetryMaxInterval     time.Duration `koanf:"retry_max_interval"`
	RetryMultiplier      float64       `koanf:"retry_multiplier"`
	ThrottlePerSecond    int64         `koanf:"throttle_per_second"`
	PoisonTopic          string        `koanf:"poison_topic"`
	DedupTTL             time.Duration `koanf:"dedup_ttl"`
}

// RankingConfig exposes the tunable ranking knobs. Anything not listed
// keeps the recommend package default.
type RankingConfig struct {
	Strictness      float64       `koanf:"strictness"`
	TagWeight       float64       `koanf:"tag_weight"`
	VisualWeight    float64       `koanf:"visual_weight"`
	Floor           float64       `koanf:"floor"`
	JitterSigma     float64       `koanf:"jitter_sigma"`
	CandidateWindow time.Duration `koanf:"candidate_window"`
	MaxWindow       time.Duration `koanf:"max_window"`
	PoolSize        int           `koanf:"pool_size"`
	MaxPoolSize     int           `koanf:"max_pool_size"`
	ActivityWindow  time.Duration `koanf:"activity_window"`
	FallbackWindow  time.Duration `koanf:"fallback_window"`
	Clusters        int           `koanf:"clusters"`
	RRFK            int           `koanf:"rrf_k"`
	CacheEnabled    bool          `koanf:"cache_enabled"`
	RankingCacheTTL time.Duration `koanf:"ranking_cache_ttl"`
	ProfileCacheTTL time.Duration `koanf:"profile_cache_ttl"`
	CacheMaxEntries int           `koanf:"cache_max_entries"`
	MaxDepth        int           `koanf:"max_depth"`
}

// RetryConfig controls the pending profile save retry service.
type RetryConfig struct {
	PendingInterval time.Duration `koanf:"pending_interval"`
}

// Addr returns the HTTP listen address.
func (s *ServerConfig) Addr() string {
	return joinHostPort(s.Host, s.Port)
}

// LoggingOptions converts to the logging package configuration.
func (c *Config) LoggingOptions() logging.Config {
	cfg := logging.DefaultConfig()
	cfg.Level = c.Logging.Level
	cfg.Format = c.Logging.Format
	cfg.Caller = c.Logging.Caller
	return cfg
}

// CatalogOptions converts to the catalog store options.
func (c *Config) CatalogOptions() catalog.Options {
	return catalog.Options{
		Path:      c.Catalog.Path,
		Threads:   c.Catalog.Threads,
		MaxMemory: c.Catalog.MaxMemory,
	}
}

// StoreOptions converts to the Badger store options.
func (c *Config) StoreOptions() store.Options {
	return store.Options{
		Path:       c.Store.Path,
		InMemory:   c.Store.InMemory,
		SyncWrites: c.Store.SyncWrites,
	}
}

// EmbedOptions converts to the embedding client configuration.
func (c *Config) EmbedOptions() embed.Config {
	return embed.Config{
		BaseURL:           c.Embed.BaseURL,
		APIKey:            c.Embed.APIKey,
		Timeout:           c.Embed.Timeout,
		RequestsPerSecond: c.Embed.RequestsPerSecond,
		Burst:             c.Embed.Burst,
		Dimension:         c.Embed.Dimension,
	}
}

// EventOptions converts to the event bus configuration.
func (c *Config) EventOptions() eventprocessor.Config {
	e := c.Events
	return eventprocessor.Config{
		BufferSize:           e.BufferSize,
		CloseTimeout:         e.CloseTimeout,
		RetryMaxRetries:      e.RetryMaxRetries,
		RetryInitialInterval: e.RetryInitialInterval,
		RetryMaxInterval:     e.RetryMaxInterval,
		RetryMultiplier:      e.RetryMultiplier,
		ThrottlePerSecond:    e.ThrottlePerSecond,
		PoisonTopic:          e.PoisonTopic,
		DedupTTL:             e.DedupTTL,
	}
}

// RecommendConfig overlays the ranking section on the recommend defaults.
func (c *Config) RecommendConfig() *recommend.Config {
	r := c.Ranking
	rc := recommend.DefaultConfig()

	rc.Scoring.Strictness = r.Strictness
	rc.Scoring.TagWeight = r.TagWeight
	rc.Scoring.VisualWeight = r.VisualWeight
	rc.Scoring.Floor = r.Floor
	rc.Scoring.JitterSigma = r.JitterSigma

	rc.Window.Candidate = r.CandidateWindow
	rc.Window.MaxCandidate = r.MaxWindow
	rc.Window.Pool = r.PoolSize
	rc.Window.MaxPool = r.MaxPoolSize
	rc.Window.Activity = r.ActivityWindow
	rc.Window.Fallback = r.FallbackWindow

	rc.Clusters.K = r.Clusters
	if rc.Clusters.MaxSample < rc.Clusters.K {
		rc.Clusters.MaxSample = rc.Clusters.K
	}
	rc.Search.RRFK = r.RRFK

	rc.Cache.Enabled = r.CacheEnabled
	rc.Cache.RankingTTL = r.RankingCacheTTL
	rc.Cache.ProfileTTL = r.ProfileCacheTTL
	rc.Cache.MaxEntries = r.CacheMaxEntries

	rc.Limits.DefaultLimit = c.API.DefaultPageSize
	rc.Limits.MaxLimit = c.API.MaxPageSize
	rc.Limits.MaxDepth = r.MaxDepth
	return rc
}
