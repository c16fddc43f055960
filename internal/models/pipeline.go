// Sahayak - Citizen Service Recommendation Engine
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/sahayak

package models

import "time"

// TriggeredBy records who started a sync or regeneration.
type TriggeredBy string

const (
	TriggerScheduler TriggeredBy = "scheduler"
	TriggerManual    TriggeredBy = "manual"
	TriggerStartup   TriggeredBy = "startup"
)

// Run status values shared by sync metadata and the regeneration log.
const (
	StatusSuccess = "success"
	StatusFailure = "failure"
)

// SyncMetadata is the last sync outcome of one source table.
type SyncMetadata struct {
	TableName         string    `json:"table_name"`
	LastSyncTimestamp time.Time `json:"last_sync_timestamp"`
	LastSyncFromDate  string    `json:"last_sync_from_date,omitempty"`
	LastSyncStatus    string    `json:"last_sync_status"`
	TotalRecords      int64     `json:"total_records"`
	RowsSynced        int64     `json:"rows_synced"`
	ErrorMessage      string    `json:"error_message,omitempty"`
}

// RegenerationLog is one derived-artifact rebuild.
type RegenerationLog struct {
	ArtifactType    string      `json:"artifact_type"`
	RowsGenerated   int64       `json:"rows_generated"`
	DurationSeconds float64     `json:"duration_seconds"`
	Status          string      `json:"status"`
	ErrorMessage    string      `json:"error_message,omitempty"`
	TriggeredBy     TriggeredBy `json:"triggered_by"`
	CreatedAt       time.Time   `json:"created_at"`
}
