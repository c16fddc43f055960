// Sahayak - Citizen Service Recommendation Engine
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/sahayak

// Package storage persists derived recommendation artifacts in BadgerDB.
// Each artifact type is a single key holding one JSON document, so a save
// replaces the whole artifact atomically.
package storage

import (
	"context"
	"errors"
	"fmt"
	"os"

	"github.com/dgraph-io/badger/v4"
	"github.com/goccy/go-json"
	"github.com/rs/zerolog"

	"github.com/tomtom215/sahayak/internal/config"
)

const artifactKeyPrefix = "artifact:"

// Store is a Badger-backed artifact store.
type Store struct {
	db *badger.DB
}

// Open opens the store described by cfg.
func Open(cfg *config.ArtifactsConfig, logger zerolog.Logger) (*Store, error) {
	var opts badger.Options
	if cfg.InMemory {
		opts = badger.DefaultOptions("").WithInMemory(true)
	} else {
		if err := os.MkdirAll(cfg.Path, 0o750); err != nil {
			return nil, fmt.Errorf("create artifact directory %s: %w", cfg.Path, err)
		}
		opts = badger.DefaultOptions(cfg.Path)
	}
	opts = opts.WithLogger(badgerLogger{logger: logger})

	db, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("open artifact store: %w", err)
	}
	return &Store{db: db}, nil
}

// NewStore wraps an already open Badger database.
func NewStore(db *badger.DB) *Store {
	return &Store{db: db}
}

func key(artifact string) []byte {
	return []byte(artifactKeyPrefix + artifact)
}

// Save replaces the stored document for artifact with v.
func (s *Store) Save(ctx context.Context, artifact string, v interface{}) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	data, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("marshal artifact %s: %w", artifact, err)
	}
	err = s.db.Update(func(txn *badger.Txn) error {
		return txn.Set(key(artifact), data)
	})
	if err != nil {
		return fmt.Errorf("save artifact %s: %w", artifact, err)
	}
	return nil
}

// Load decodes the stored document for artifact into v. found is false when
// the artifact has never been saved.
func (s *Store) Load(ctx context.Context, artifact string, v interface{}) (found bool, err error) {
	if err := ctx.Err(); err != nil {
		return false, err
	}
	err = s.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get(key(artifact))
		if err != nil {
			return err
		}
		return item.Value(func(val []byte) error {
			return json.Unmarshal(val, v)
		})
	})
	if errors.Is(err, badger.ErrKeyNotFound) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("load artifact %s: %w", artifact, err)
	}
	return true, nil
}

// Delete removes a stored artifact.
func (s *Store) Delete(artifact string) error {
	return s.db.Update(func(txn *badger.Txn) error {
		return txn.Delete(key(artifact))
	})
}

// Close closes the underlying database.
func (s *Store) Close() error {
	return s.db.Close()
}

// badgerLogger routes Badger's internal logging through zerolog. Badger's
// info output is chatty, so it is logged at debug.
type badgerLogger struct {
	logger zerolog.Logger
}

func (l badgerLogger) Errorf(format string, args ...interface{}) {
	l.logger.Error().Msgf(format, args...)
}

func (l badgerLogger) Warningf(format string, args ...interface{}) {
	l.logger.Warn().Msgf(format, args...)
}

func (l badgerLogger) Infof(format string, args ...interface{}) {
	l.logger.Debug().Msgf(format, args...)
}

func (l badgerLogger) Debugf(format string, args ...interface{}) {
	l.logger.Trace().Msgf(format, args...)
}
