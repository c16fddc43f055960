// Sahayak - Citizen Service Recommendation Engine
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/sahayak

package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/tomtom215/sahayak/internal/models"
)

// GetSyncMetadata returns the stored metadata for table, or nil when the
// table has never been synced.
func (db *DB) GetSyncMetadata(ctx context.Context, table string) (*models.SyncMetadata, error) {
	row := db.conn.QueryRowContext(ctx, `
		SELECT table_name, last_sync_timestamp, last_sync_from_date, last_sync_status,
		       total_records, rows_synced, error_message
		FROM sync_metadata WHERE table_name = ?`, table)

	m, err := scanSyncMetadata(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get sync metadata %s: %w", table, err)
	}
	return m, nil
}

// ListSyncMetadata returns the metadata of every synced table ordered by name.
func (db *DB) ListSyncMetadata(ctx context.Context) ([]models.SyncMetadata, error) {
	rows, err := db.conn.QueryContext(ctx, `
		SELECT table_name, last_sync_timestamp, last_sync_from_date, last_sync_status,
		       total_records, rows_synced, error_message
		FROM sync_metadata ORDER BY table_name`)
	if err != nil {
		return nil, fmt.Errorf("list sync metadata: %w", err)
	}
	defer closeQuietly(rows)

	var out []models.SyncMetadata
	for rows.Next() {
		m, err := scanSyncMetadata(rows)
		if err != nil {
			return nil, fmt.Errorf("scan sync metadata: %w", err)
		}
		out = append(out, *m)
	}
	return out, rows.Err()
}

// SaveSyncMetadata upserts one table's metadata.
func (db *DB) SaveSyncMetadata(ctx context.Context, m *models.SyncMetadata) error {
	_, err := db.conn.ExecContext(ctx, `
		INSERT OR REPLACE INTO sync_metadata
			(table_name, last_sync_timestamp, last_sync_from_date, last_sync_status,
			 total_records, rows_synced, error_message)
		VALUES (?, ?, ?, ?, ?, ?, ?)`,
		m.TableName, m.LastSyncTimestamp, nullString(m.LastSyncFromDate), m.LastSyncStatus,
		m.TotalRecords, m.RowsSynced, nullString(m.ErrorMessage))
	if err != nil {
		return fmt.Errorf("save sync metadata %s: %w", m.TableName, err)
	}
	return nil
}

// RecordRegeneration appends an entry to the regeneration log.
func (db *DB) RecordRegeneration(ctx context.Context, entry *models.RegenerationLog) error {
	_, err := db.conn.ExecContext(ctx, `
		INSERT INTO regeneration_log
			(artifact_type, rows_generated, duration_seconds, status, error_message, triggered_by, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)`,
		entry.ArtifactType, entry.RowsGenerated, entry.DurationSeconds, entry.Status,
		nullString(entry.ErrorMessage), string(entry.TriggeredBy), entry.CreatedAt)
	if err != nil {
		return fmt.Errorf("record regeneration %s: %w", entry.ArtifactType, err)
	}
	return nil
}

// RecentRegenerations returns the newest log entries first.
func (db *DB) RecentRegenerations(ctx context.Context, limit int) ([]models.RegenerationLog, error) {
	rows, err := db.conn.QueryContext(ctx, `
		SELECT artifact_type, rows_generated, duration_seconds, status, error_message, triggered_by, created_at
		FROM regeneration_log ORDER BY id DESC LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("list regenerations: %w", err)
	}
	defer closeQuietly(rows)

	var out []models.RegenerationLog
	for rows.Next() {
		var (
			e        models.RegenerationLog
			errMsg   sql.NullString
			trigger  sql.NullString
			produced sql.NullInt64
		)
		if err := rows.Scan(&e.ArtifactType, &produced, &e.DurationSeconds, &e.Status, &errMsg, &trigger, &e.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan regeneration: %w", err)
		}
		e.RowsGenerated = produced.Int64
		e.ErrorMessage = errMsg.String
		e.TriggeredBy = models.TriggeredBy(trigger.String)
		out = append(out, e)
	}
	return out, rows.Err()
}

type scanner interface {
	Scan(dest ...interface{}) error
}

func scanSyncMetadata(s scanner) (*models.SyncMetadata, error) {
	var (
		m        models.SyncMetadata
		ts       sql.NullTime
		fromDate sql.NullString
		status   sql.NullString
		total    sql.NullInt64
		synced   sql.NullInt64
		errMsg   sql.NullString
	)
	if err := s.Scan(&m.TableName, &ts, &fromDate, &status, &total, &synced, &errMsg); err != nil {
		return nil, err
	}
	m.LastSyncTimestamp = ts.Time
	m.LastSyncFromDate = fromDate.String
	m.LastSyncStatus = status.String
	m.TotalRecords = total.Int64
	m.RowsSynced = synced.Int64
	m.ErrorMessage = errMsg.String
	return &m, nil
}

func nullString(s string) interface{} {
	if s == "" {
		return nil
	}
	return s
}
