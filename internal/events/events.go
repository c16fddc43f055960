// Sahayak - Citizen Service Recommendation Engine
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/sahayak

// Package events carries pipeline notifications between services over an
// in-process watermill pub/sub.
//
// The sync manager publishes SyncCompleted after every cycle in which at
// least one table was refreshed; the regeneration service subscribes and
// rebuilds the popularity artifacts after a delay. Delivery is at most once
// per subscriber and nothing is persisted: a notification published while
// no one is subscribed is dropped.
package events

import (
	"fmt"
	"time"

	"github.com/goccy/go-json"

	"github.com/tomtom215/sahayak/internal/models"
)

// TopicSyncCompleted is the topic SyncCompleted events are published on.
const TopicSyncCompleted = "sahayak.sync.completed"

// SyncCompleted reports a sync cycle that refreshed at least one table.
type SyncCompleted struct {
	CycleID      string             `json:"cycle_id"`
	TriggeredBy  models.TriggeredBy `json:"triggered_by"`
	Tables       []string           `json:"tables"`
	FailedTables []string           `json:"failed_tables,omitempty"`
	RowsSynced   int64              `json:"rows_synced"`
	CompletedAt  time.Time          `json:"completed_at"`
}

// Encode serializes e.
func (e *SyncCompleted) Encode() ([]byte, error) {
	data, err := json.Marshal(e)
	if err != nil {
		return nil, fmt.Errorf("encode sync completed: %w", err)
	}
	return data, nil
}

// DecodeSyncCompleted parses a SyncCompleted payload.
func DecodeSyncCompleted(data []byte) (*SyncCompleted, error) {
	var e SyncCompleted
	if err := json.Unmarshal(data, &e); err != nil {
		return nil, fmt.Errorf("decode sync completed: %w", err)
	}
	return &e, nil
}
