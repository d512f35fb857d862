// Curio - Retrieval Fusion and Personalized Ranking
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/curio

package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"time"

	"github.com/dgraph-io/badger/v4"
	"github.com/rs/zerolog"
	gobreaker "github.com/sony/gobreaker/v2"

	"github.com/tomtom215/curio/internal/api"
	"github.com/tomtom215/curio/internal/cache"
	"github.com/tomtom215/curio/internal/catalog"
	"github.com/tomtom215/curio/internal/config"
	"github.com/tomtom215/curio/internal/embed"
	"github.com/tomtom215/curio/internal/eventprocessor"
	"github.com/tomtom215/curio/internal/recommend"
	"github.com/tomtom215/curio/internal/recommend/feedback"
	"github.com/tomtom215/curio/internal/recommend/profile"
	"github.com/tomtom215/curio/internal/store"
	"github.com/tomtom215/curio/internal/supervisor"
	"github.com/tomtom215/curio/internal/supervisor/services"
)

// app holds every long-lived component so shutdown can close them in
// reverse order.
type app struct {
	cfg    *config.Config
	logger zerolog.Logger

	catalog  *catalog.DuckDBStore
	badger   *badger.DB
	service  *recommend.Service
	bus      *eventprocessor.Bus
	server   *http.Server
	embedder *embed.Client

	profileCache *cache.TTL[*profile.Snapshot]
	rankCache    *cache.TTL[*recommend.RankingEntry]
	searchCache  *cache.TTL[*recommend.RankingEntry]
}

// newApp opens the stores and builds the ranking stack. On error every
// component opened so far is closed.
//
//nolint:gocritic // logger passed by value is acceptable for zerolog
func newApp(ctx context.Context, cfg *config.Config, logger zerolog.Logger) (*app, error) {
	a := &app{cfg: cfg, logger: logger}
	if err := a.build(ctx); err != nil {
		a.Close()
		return nil, err
	}
	return a, nil
}

func (a *app) build(ctx context.Context) (err error) {
	cfg, logger := a.cfg, a.logger

	a.catalog, err = catalog.Open(ctx, cfg.CatalogOptions(), logger)
	if err != nil {
		return fmt.Errorf("open catalog: %w", err)
	}
	if err := a.seedCatalog(ctx); err != nil {
		return err
	}

	a.badger, err = store.Open(cfg.StoreOptions(), logger)
	if err != nil {
		return fmt.Errorf("open feedback store: %w", err)
	}
	feedbackLog := store.NewFeedbackLog(a.badger)
	profiles := feedback.NewStore(feedbackLog, store.NewProfileStore(a.badger), a.catalog, logger)

	rc := cfg.RecommendConfig()

	var embedder recommend.Embedder
	if cfg.Embed.Enabled {
		a.embedder, err = embed.New(cfg.EmbedOptions(), logger)
		if err != nil {
			return fmt.Errorf("embedding client: %w", err)
		}
		embedder = a.embedder
	}

	var (
		profileCache cache.Cacher[*profile.Snapshot]
		rankCache    *recommend.RankingCache
		searchCache  *recommend.RankingCache
	)
	if rc.Cache.Enabled {
		a.profileCache = cache.New[*profile.Snapshot](cache.Options{TTL: rc.Cache.ProfileTTL, Capacity: rc.Cache.MaxEntries})
		a.rankCache = cache.New[*recommend.RankingEntry](cache.Options{TTL: rc.Cache.RankingTTL, Capacity: rc.Cache.MaxEntries})
		a.searchCache = cache.New[*recommend.RankingEntry](cache.Options{TTL: rc.Cache.RankingTTL, Capacity: rc.Cache.MaxEntries})
		profileCache = a.profileCache
		rankCache = recommend.NewRankingCache("recommend", a.rankCache, rc.Cache.RankingTTL)
		searchCache = recommend.NewRankingCache("search", a.searchCache, rc.Cache.RankingTTL)
	}

	provider := profile.NewProvider(a.catalog, profileCache, rc.ProfileConfig(), logger)

	engine, err := recommend.NewEngine(rc, recommend.EngineDeps{
		Candidates: a.catalog,
		Membership: a.catalog,
		Profiles:   provider,
		Vectors:    profiles,
		Log:        feedbackLog,
		Cache:      rankCache,
		Dimension:  profiles.Dimension(),
	}, logger)
	if err != nil {
		return fmt.Errorf("recommendation engine: %w", err)
	}

	search, err := recommend.NewSearchEngine(rc, a.catalog, embedder, searchCache, logger)
	if err != nil {
		return fmt.Errorf("search engine: %w", err)
	}

	a.service = recommend.NewService(engine, search, profiles, feedbackLog, nil, logger)

	if cfg.Events.Enabled {
		a.bus, err = eventprocessor.New(cfg.EventOptions(), a.service, logger)
		if err != nil {
			return fmt.Errorf("event bus: %w", err)
		}
		a.service.SetPublisher(a.bus)
	}

	a.server = a.newHTTPServer()
	return nil
}

// seedCatalog imports the configured JSON-lines seed file, if any.
func (a *app) seedCatalog(ctx context.Context) error {
	path := a.cfg.Catalog.SeedFile
	if path == "" {
		return nil
	}
	f, err := os.Open(path) //nolint:gosec // path comes from operator configuration
	if err != nil {
		return fmt.Errorf("open seed file: %w", err)
	}
	defer func() { _ = f.Close() }()

	start := time.Now()
	stats, err := a.catalog.Import(ctx, f)
	if err != nil {
		return fmt.Errorf("import seed file: %w", err)
	}
	a.logger.Info().
		Str("file", path).
		Int("items", stats.Items).
		Int("activity", stats.Activity).
		Int("skipped", stats.Skipped).
		Dur("duration", time.Since(start)).
		Msg("Catalog seeded")
	return nil
}

func (a *app) newHTTPServer() *http.Server {
	cfg := a.cfg

	handler := api.NewHandler(a.service, api.HandlerConfig{
		RequestTimeout: cfg.Server.Timeout,
		MaxImageBytes:  cfg.API.MaxImageBytes,
	}, a.logger)

	handler.AddHealthCheck("catalog", a.catalog.Ping)
	handler.AddHealthCheck("store", func(context.Context) error {
		if a.badger.IsClosed() {
			return errors.New("feedback store is closed")
		}
		return nil
	})
	if a.bus != nil {
		handler.AddHealthCheck("events", func(context.Context) error {
			if !a.bus.Running() {
				return eventprocessor.ErrNotRunning
			}
			return nil
		})
	}
	if a.embedder != nil {
		handler.AddHealthCheck("embed", func(context.Context) error {
			if a.embedder.State() == gobreaker.StateOpen {
				return embed.ErrUnavailable
			}
			return nil
		})
	}

	mw := api.DefaultChiMiddlewareConfig()
	mw.CORSAllowedOrigins = cfg.API.CORSOrigins
	mw.RateLimitRequests = cfg.API.RateLimitReqs
	mw.RateLimitWindow = cfg.API.RateLimitWindow
	mw.RateLimitDisabled = cfg.API.RateLimitDisabled

	return &http.Server{
		Addr:              cfg.Server.Addr(),
		Handler:           api.NewRouter(handler, mw, a.logger).Setup(),
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       cfg.Server.Timeout,
		WriteTimeout:      cfg.Server.Timeout + 5*time.Second,
		IdleTimeout:       120 * time.Second,
	}
}

// register adds the long-running services to the tree.
func (a *app) register(tree *supervisor.SupervisorTree) {
	tree.AddStorageService(services.NewProfileRetryService(a.service, services.ProfileRetryConfig{
		Interval: a.cfg.Retry.PendingInterval,
	}, a.logger))
	if a.bus != nil {
		tree.AddMessagingService(a.bus)
	}
	tree.AddAPIService(services.NewHTTPServerService(a.server, a.cfg.Server.ShutdownTimeout))
}

// Close releases resources in reverse dependency order. It is safe to call
// more than once and on a partially built app.
func (a *app) Close() {
	if a.bus != nil {
		if err := a.bus.Close(); err != nil {
			a.logger.Error().Err(err).Msg("Error closing event bus")
		}
	}
	if a.profileCache != nil {
		a.profileCache.Close()
	}
	if a.rankCache != nil {
		a.rankCache.Close()
	}
	if a.searchCache != nil {
		a.searchCache.Close()
	}
	if a.badger != nil && !a.badger.IsClosed() {
		if err := a.badger.Close(); err != nil {
			a.logger.Error().Err(err).Msg("Error closing feedback store")
		}
	}
	if a.catalog != nil {
		if err := a.catalog.Close(); err != nil {
			a.logger.Error().Err(err).Msg("Error closing catalog")
		}
		a.catalog = nil
	}
}
