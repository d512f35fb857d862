// Curio - Retrieval Fusion and Personalized Ranking
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/curio

package api

import (
	"context"
	"net/http"
	"time"
)

// HealthStatus is the body of the health endpoint.
type HealthStatus struct {
	Status     string            `json:"status"`
	Components map[string]string `json:"components"`
	Uptime     float64           `json:"uptime_seconds"`
}

const (
	statusHealthy  = "healthy"
	statusDegraded = "degraded"
	componentUp    = "ok"
)

// Health handles GET /api/v1/health. Every registered check runs with its
// own timeout; any failure turns the response into a 503.
func (h *Handler) Health(w http.ResponseWriter, r *http.Request) {
	rw := NewResponseWriter(w, r)

	h.mu.RLock()
	checks := make([]namedCheck, len(h.checks))
	copy(checks, h.checks)
	h.mu.RUnlock()

	status := HealthStatus{
		Status:     statusHealthy,
		Components: make(map[string]string, len(checks)),
		Uptime:     time.Since(h.started).Seconds(),
	}
	for _, c := range checks {
		ctx, cancel := context.WithTimeout(r.Context(), h.cfg.HealthTimeout)
		err := c.check(ctx)
		cancel()
		if err != nil {
			status.Status = statusDegraded
			status.Components[c.name] = err.Error()
			continue
		}
		status.Components[c.name] = componentUp
	}

	if status.Status != statusHealthy {
		rw.ErrorWithDetails(http.StatusServiceUnavailable, ErrCodeServiceUnavailable, "One or more components are unhealthy", status)
		return
	}
	rw.Success(status)
}

// Live handles GET /api/v1/health/live. It only proves the process serves
// HTTP.
func (h *Handler) Live(w http.ResponseWriter, r *http.Request) {
	NewResponseWriter(w, r).Success(map[string]string{"status": "alive"})
}
