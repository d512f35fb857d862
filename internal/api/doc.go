// Curio - Retrieval Fusion and Personalized Ranking
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/curio

/*
Package api exposes search, recommendations and feedback over HTTP using the
chi router.

# Routes

	GET    /api/v1/health                          component health
	GET    /api/v1/health/live                     liveness probe
	GET    /api/v1/search                          hybrid search
	POST   /api/v1/search/image                    search by image (multipart "image" or raw body)
	GET    /api/v1/users/{user}/recommendations    recommendation page
	POST   /api/v1/users/{user}/feedback           record feedback
	DELETE /api/v1/users/{user}/profile            clear the feedback profile
	GET    /metrics                                Prometheus metrics

# Responses

Every JSON response uses the APIResponse envelope:

	{
	  "success": true,
	  "data": {...},
	  "meta": {
	    "request_id": "...",
	    "timestamp": "...",
	    "duration_ms": 12,
	    "pagination": {"count": 20, "has_more": true, "next_cursor": "..."}
	  }
	}

Parameter validation failures answer 400 with code VALIDATION_FAILED.
Ranking failures are not HTTP errors: the engines answer 200 with an empty
page and data.meta.reason set to unavailable, no_candidates or
invalid_input.

# Middleware

Global: request id, real IP, panic recovery, CORS (go-chi/cors) and access
logging. Under /api/v1: per-IP rate limiting (go-chi/httprate), Prometheus
request metrics and response compression.
*/
package api
