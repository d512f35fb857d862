// Curio - Retrieval Fusion and Personalized Ranking
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/curio

/*
Package supervisor runs Curio's long-lived services under a suture v4 tree.

	curio
	├── storage-layer
	│   └── ProfileRetryService   re-applies profile batches whose save failed
	├── messaging-layer
	│   └── eventprocessor.Bus    feedback.recorded router (if events enabled)
	└── api-layer
	    └── HTTPServerService

Crashed services are restarted with suture's backoff. Supervisor events are
logged through sutureslog onto the zerolog logger via logging.NewSlogLogger.

# Usage

	tree, err := supervisor.NewSupervisorTree(logging.NewSlogLogger(log.Logger), supervisor.DefaultTreeConfig())
	if err != nil {
	    return err
	}
	tree.AddStorageService(services.NewProfileRetryService(svc, services.ProfileRetryConfig{Interval: 30 * time.Second}, logger))
	tree.AddMessagingService(bus)
	tree.AddAPIService(services.NewHTTPServerService(server, 10*time.Second))
	return tree.Serve(ctx)
*/
package supervisor
