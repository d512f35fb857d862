// Curio - Retrieval Fusion and Personalized Ranking
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/curio

package config

import (
	"errors"
	"fmt"
	"net"
	"net/url"
	"strconv"
	"strings"

	"github.com/tomtom215/curio/internal/logging"
)

var validEnvironments = map[string]bool{
	"development": true,
	"staging":     true,
	"production":  true,
}

// Validate checks every section and the derived ranking configuration.
//
//nolint:gocyclo // validation needs to check many fields
func (c *Config) Validate() error {
	if c.Server.Port < 1 || c.Server.Port > 65535 {
		return fmt.Errorf("server.port must be in [1, 65535], got %d", c.Server.Port)
	}
	if c.Server.Timeout <= 0 {
		return errors.New("server.timeout must be positive")
	}
	if c.Server.ShutdownTimeout <= 0 {
		return errors.New("server.shutdown_timeout must be positive")
	}
	if !validEnvironments[strings.ToLower(c.Server.Environment)] {
		return fmt.Errorf("server.environment must be development, staging or production, got %q", c.Server.Environment)
	}

	if c.API.DefaultPageSize < 1 || c.API.MaxPageSize < c.API.DefaultPageSize {
		return fmt.Errorf("api page sizes must satisfy 1 <= default <= max, got %d / %d", c.API.DefaultPageSize, c.API.MaxPageSize)
	}
	if c.API.MaxImageBytes < 1 {
		return errors.New("api.max_image_bytes must be positive")
	}
	if !c.API.RateLimitDisabled && (c.API.RateLimitReqs < 1 || c.API.RateLimitWindow <= 0) {
		return errors.New("api rate limit requires positive reqs and window")
	}

	if !logging.ValidLevel(c.Logging.Level) {
		return fmt.Errorf("logging.level %q is not a valid level", c.Logging.Level)
	}
	if c.Logging.Format != "json" && c.Logging.Format != "console" {
		return fmt.Errorf("logging.format must be json or console, got %q", c.Logging.Format)
	}

	if c.Catalog.Threads < 0 {
		return errors.New("catalog.threads must be non-negative")
	}
	if !c.Store.InMemory && c.Store.Path == "" {
		return errors.New("store.path is required unless store.in_memory is set")
	}

	if c.Embed.Enabled {
		if err := validateURL(c.Embed.BaseURL); err != nil {
			return fmt.Errorf("embed.base_url: %w", err)
		}
		if c.Embed.Timeout <= 0 {
			return errors.New("embed.timeout must be positive")
		}
		if c.Embed.RequestsPerSecond < 0 || c.Embed.Burst < 0 || c.Embed.Dimension < 0 {
			return errors.New("embed rate, burst and dimension must be non-negative")
		}
	}

	if c.Events.Enabled {
		ec := c.EventOptions()
		if err := ec.Validate(); err != nil {
			return fmt.Errorf("events: %w", err)
		}
	}

	if err := c.RecommendConfig().Validate(); err != nil {
		return fmt.Errorf("ranking: %w", err)
	}

	if c.Retry.PendingInterval <= 0 {
		return errors.New("retry.pending_interval must be positive")
	}
	return nil
}

// IsProduction reports whether the server runs in production mode.
func (c *Config) IsProduction() bool {
	return strings.EqualFold(c.Server.Environment, "production")
}

func validateURL(raw string) error {
	if raw == "" {
		return errors.New("required")
	}
	u, err := url.Parse(raw)
	if err != nil {
		return fmt.Errorf("invalid url: %w", err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return fmt.Errorf("scheme must be http or https, got %q", u.Scheme)
	}
	if u.Host == "" {
		return errors.New("host is required")
	}
	return nil
}

func joinHostPort(host string, port int) string {
	return net.JoinHostPort(host, strconv.Itoa(port))
}
