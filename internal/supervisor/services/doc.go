// Curio - Retrieval Fusion and Personalized Ranking
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/curio

/*
Package services adapts Curio components to suture's Serve(ctx) error
lifecycle.

HTTPServerService translates http.Server's ListenAndServe/Shutdown pair.
ProfileRetryService is a ticker loop that retries profile saves held
pending by the feedback store.

The event bus needs no wrapper: eventprocessor.Bus already implements
suture.Service and builds a fresh router on each Serve.
*/
package services
