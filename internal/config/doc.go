// Curio - Retrieval Fusion and Personalized Ranking
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/curio

/*
Package config loads application configuration with Koanf.

Sources are layered, later layers winning:

 1. Struct defaults (defaultConfig)
 2. Optional YAML file: CONFIG_PATH, else config.yaml / config.yml in the
    working directory, else /etc/curio/config.yaml
 3. Environment variables, through an explicit mapping table so unrelated
    variables never leak into the configuration

Comma-separated env values for slice fields (CORS_ORIGINS) are split after
loading. Load finishes with Validate, which also validates the derived
recommend.Config and eventprocessor.Config.

# Sections

  - server: listen address, timeouts, environment
  - api: page sizes, image upload bound, rate limiting, CORS
  - logging: level, format, caller
  - catalog: DuckDB path, threads, memory limit, optional seed file
  - store: Badger path, in-memory mode, sync writes
  - embed: embedding service endpoint, rate limit, dimension
  - events: feedback bus buffer, retry and dedup settings
  - ranking: scoring weights, windows, cache TTLs, depth limit
  - retry: pending profile save retry interval

# Example

	server:
	  port: 8080
	catalog:
	  path: /data/curio.duckdb
	  seed_file: /data/seed.jsonl
	embed:
	  enabled: true
	  base_url: http://embedder:9000
	ranking:
	  strictness: 0.6
	  ranking_cache_ttl: 2m

The Options methods (CatalogOptions, StoreOptions, EmbedOptions,
EventOptions, RecommendConfig) convert sections into the types consumed by
the corresponding packages.
*/
package config
