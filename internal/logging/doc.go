// Curio - Retrieval Fusion and Personalized Ranking
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/curio

/*
Package logging configures the process-wide zerolog logger and bridges it to
the logging interfaces of third-party libraries.

# Global logger

	logging.Init(logging.Config{Level: "info", Format: "json"})
	logging.Info().Str("addr", addr).Msg("Server starting")

Components take a zerolog.Logger in their constructor and derive a sub-logger
with a "component" field. WithComponent does the same from the global logger:

	logger := logging.WithComponent("catalog")

# Request context

HTTP middleware stores a request id in the context; Ctx returns a logger that
carries it, so handler and engine logs for one request correlate:

	logging.Ctx(r.Context()).Warn().Err(err).Msg("search degraded")

# Adapters

  - SlogHandler implements slog.Handler for sutureslog (supervisor events).
  - WatermillLogger implements watermill.LoggerAdapter for the event bus.

Environment variables LOG_LEVEL, LOG_FORMAT and LOG_CALLER are mapped by
internal/config.
*/
package logging
