// Curio - Retrieval Fusion and Personalized Ranking
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/curio

// Package middleware provides the HTTP middleware shared by all API routes:
// request and correlation ids (RequestID), Prometheus request metrics keyed
// by chi route pattern (PrometheusMetrics) and structured access logging
// (AccessLog). All three use the chi func(http.Handler) http.Handler form.
package middleware
