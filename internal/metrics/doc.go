// Curio - Retrieval Fusion and Personalized Ranking
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/curio

/*
Package metrics provides Prometheus metrics for the ranking service.

All collectors are registered on the default registry through promauto and
exposed at /metrics by the API router:

	curl http://localhost:8480/metrics

# Available Metrics

Ranking:
  - ranking_requests_total{operation, reason}
  - ranking_duration_seconds{operation, cache}
  - ranking_candidates
  - ranking_exclusions_total{reason}
  - ranking_cache_lookups_total{cache, result}

Retrieval channels:
  - search_channel_requests_total{channel, status}
  - search_channel_hits_total{channel}

Feedback:
  - feedback_events_total{action}
  - profile_updates_total{result}
  - profile_pending_events
  - events_published_total{topic, result}, events_handled_total{topic, result}

Stores and dependencies:
  - store_operation_duration_seconds{store, operation}
  - store_operation_errors_total{store, operation}
  - embed_requests_total{kind, result}, embed_request_duration_seconds{kind}
  - circuit_breaker_state{name} and related breaker counters

HTTP:
  - http_requests_total{method, endpoint, status}
  - http_request_duration_seconds{method, endpoint}
  - http_requests_in_flight

# Usage

	start := time.Now()
	resp, err := engine.Recommend(ctx, req)
	metrics.RecordRanking("recommend", string(resp.Meta.Reason), resp.Meta.CacheHit, time.Since(start))
*/
package metrics
