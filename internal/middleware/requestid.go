// Curio - Retrieval Fusion and Personalized Ranking
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/curio

package middleware

import (
	"net/http"

	"github.com/google/uuid"

	"github.com/tomtom215/curio/internal/logging"
)

// Header names.
const (
	HeaderRequestID     = "X-Request-ID"
	HeaderCorrelationID = "X-Correlation-ID"
)

// maxInboundIDLength bounds ids accepted from upstream proxies.
const maxInboundIDLength = 64

// RequestID assigns each request an id, reusing a well-formed X-Request-ID
// from upstream. The id is echoed in the response header and stored in the
// logging context together with a correlation id, which feedback events
// carry onto the event bus.
func RequestID(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		requestID := r.Header.Get(HeaderRequestID)
		if !validInboundID(requestID) {
			requestID = uuid.New().String()
		}
		correlationID := r.Header.Get(HeaderCorrelationID)
		if !validInboundID(correlationID) {
			correlationID = logging.GenerateCorrelationID()
		}

		w.Header().Set(HeaderRequestID, requestID)

		ctx := logging.ContextWithRequestID(r.Context(), requestID)
		ctx = logging.ContextWithCorrelationID(ctx, correlationID)

		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// validInboundID accepts ids of printable ASCII without spaces.
func validInboundID(id string) bool {
	if id == "" || len(id) > maxInboundIDLength {
		return false
	}
	for i := 0; i < len(id); i++ {
		if c := id[i]; c <= ' ' || c > '~' {
			return false
		}
	}
	return true
}
