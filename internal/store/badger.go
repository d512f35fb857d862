// Curio - Retrieval Fusion and Personalized Ranking
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/curio

// Package store persists the feedback log and per-user profile vectors in
// BadgerDB.
//
// Key layout:
//
//	fb:<user>\x00<unix nanos>\x00<seq>        event JSON
//	fbc:<user>\x00<action>\x00<identity>      event count (uint64 big endian)
//	fbrev:<user>                              feedback.Stats JSON
//	profile:<user>                            feedback.Record JSON
package store

import (
	"errors"
	"fmt"
	"time"

	"github.com/dgraph-io/badger/v4"
	"github.com/rs/zerolog"
)

// Key prefixes for BadgerDB storage
const (
	eventKeyPrefix   = "fb:"
	countKeyPrefix   = "fbc:"
	statsKeyPrefix   = "fbrev:"
	profileKeyPrefix = "profile:"

	keySep = "\x00"
)

// maxTxnRetries bounds retries of update transactions that hit a conflict.
const maxTxnRetries = 5

// Options configures how the database is opened.
type Options struct {
	// Path is the data directory. Ignored when InMemory is set.
	Path     string
	InMemory bool
	// SyncWrites makes every commit durable before returning.
	SyncWrites bool
}

// Open opens a BadgerDB instance that logs through zerolog.
//
//nolint:gocritic // logger passed by value is acceptable for zerolog
func Open(opts Options, logger zerolog.Logger) (*badger.DB, error) {
	var bopts badger.Options
	if opts.InMemory {
		bopts = badger.DefaultOptions("").WithInMemory(true)
	} else {
		if opts.Path == "" {
			return nil, errors.New("store: path is required unless in-memory")
		}
		bopts = badger.DefaultOptions(opts.Path)
	}
	bopts = bopts.
		WithSyncWrites(opts.SyncWrites).
		WithLogger(&badgerLogger{logger: logger.With().Str("component", "badger").Logger()})

	db, err := badger.Open(bopts)
	if err != nil {
		return nil, fmt.Errorf("open badger: %w", err)
	}
	return db, nil
}

// update runs fn in a read-write transaction, retrying on conflicts.
func update(db *badger.DB, fn func(txn *badger.Txn) error) error {
	var err error
	for attempt := 0; attempt < maxTxnRetries; attempt++ {
		err = db.Update(fn)
		if !errors.Is(err, badger.ErrConflict) {
			return err
		}
		time.Sleep(time.Duration(attempt+1) * time.Millisecond)
	}
	return err
}

// badgerLogger routes badger's internal logging into zerolog.
// Info and debug output is demoted one level; badger is chatty at startup.
type badgerLogger struct {
	logger zerolog.Logger
}

func (l *badgerLogger) Errorf(format string, args ...interface{}) {
	l.logger.Error().Msgf(format, args...)
}

func (l *badgerLogger) Warningf(format string, args ...interface{}) {
	l.logger.Warn().Msgf(format, args...)
}

func (l *badgerLogger) Infof(format string, args ...interface{}) {
	l.logger.Debug().Msgf(format, args...)
}

func (l *badgerLogger) Debugf(format string, args ...interface{}) {
	l.logger.Trace().Msgf(format, args...)
}
