// Curio - Retrieval Fusion and Personalized Ranking
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/curio

// Package recommend ranks catalog items for two operations: hybrid search
// over an explicit query, and passive per-user recommendation.
//
// # Architecture
//
// Search fans a query out to up to eight retrieval channels (text match, tag
// overlap, description-embedding and visual-embedding nearest neighbour, for
// the library and the external catalog), then fuses the per-channel rankings
// with weighted Reciprocal Rank Fusion (package fusion).
//
// Recommend pulls a recency-windowed candidate pool and scores every
// candidate against three user signals:
//
//   - tag affinity built from recent activity (package profile)
//   - visual clusters of recently viewed covers (package profile)
//   - a persisted embedding vector moved by feedback events (package feedback)
//
// Scores are then penalized by repeated clicks and impressions, and
// candidates the user already owns, disliked or read are removed outright.
//
// # Caching
//
// Both operations sit behind a RankingCache. Recommendation keys include the
// user's feedback revision, so any new feedback event or profile reset makes
// the next request miss without any explicit eviction.
//
// # Failure Handling
//
// Collaborator failures never surface as raw errors. A failed search channel
// is dropped from fusion; a failed activity lookup yields a neutral profile;
// an unavailable candidate source produces an empty result whose Meta.Reason
// is ReasonUnavailable.
//
// # Usage
//
//	svc := recommend.NewService(engine, search, feedbackStore, feedbackLog, publisher, logger)
//
//	resp, err := svc.Recommend(ctx, recommend.RecommendRequest{
//	    User:  "u-42",
//	    Mode:  recommend.ModeExplore,
//	    Limit: 20,
//	})
package recommend
