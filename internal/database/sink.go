// Sahayak - Citizen Service Recommendation Engine
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/sahayak

package database

import (
	"context"
	"errors"
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"
)

// ErrUnknownTable is returned for tables the sink has no schema for.
var ErrUnknownTable = errors.New("unknown source table")

const maxConflictRetries = 3

// PersistTable writes fetched records into a source table. Provisions are
// insert-only; master tables are upserted on their primary key. The whole
// batch is written in one transaction, so a failure leaves the previously
// persisted rows untouched. Records missing a primary key column are
// skipped. Returns the number of rows written.
func (db *DB) PersistTable(ctx context.Context, table string, records []map[string]interface{}) (int64, error) {
	schema, ok := schemaFor(table)
	if !ok {
		return 0, fmt.Errorf("%w: %s", ErrUnknownTable, table)
	}

	rows, err := schema.bindAll(records)
	if err != nil {
		return 0, err
	}
	if len(rows) == 0 {
		return 0, nil
	}

	db.writeMu.Lock()
	defer db.writeMu.Unlock()

	var written int64
	for attempt := 1; ; attempt++ {
		written, err = db.writeRows(ctx, schema, rows)
		if err == nil || !isTransactionConflict(err) || attempt >= maxConflictRetries {
			break
		}
		select {
		case <-ctx.Done():
			return 0, ctx.Err()
		case <-time.After(time.Duration(attempt) * 100 * time.Millisecond):
		}
	}
	if err != nil {
		return 0, fmt.Errorf("persist %s: %w", table, err)
	}
	return written, nil
}

func (db *DB) writeRows(ctx context.Context, schema *tableSchema, rows [][]interface{}) (int64, error) {
	tx, err := db.conn.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("begin: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	stmt, err := tx.PrepareContext(ctx, schema.insertStatement())
	if err != nil {
		return 0, fmt.Errorf("prepare: %w", err)
	}
	defer closeQuietly(stmt)

	var written int64
	for _, args := range rows {
		res, err := stmt.ExecContext(ctx, args...)
		if err != nil {
			return 0, err
		}
		if n, err := res.RowsAffected(); err == nil {
			written += n
		}
	}

	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("commit: %w", err)
	}
	return written, nil
}

func (s *tableSchema) insertStatement() string {
	cols := s.columnNames()
	placeholders := strings.TrimSuffix(strings.Repeat("?, ", len(cols)), ", ")
	if s.insertOnly {
		return fmt.Sprintf("INSERT INTO %s (%s) VALUES (%s) ON CONFLICT DO NOTHING",
			s.name, strings.Join(cols, ", "), placeholders)
	}
	return fmt.Sprintf("INSERT OR REPLACE INTO %s (%s) VALUES (%s)",
		s.name, strings.Join(cols, ", "), placeholders)
}

// bindAll converts records into argument rows, dropping keyless records and
// collapsing duplicate keys (last wins for upserts, first wins for
// insert-only tables).
func (s *tableSchema) bindAll(records []map[string]interface{}) ([][]interface{}, error) {
	rows := make([][]interface{}, 0, len(records))
	index := make(map[string]int, len(records))

	for i, rec := range records {
		args, key, err := s.bind(rec)
		if err != nil {
			return nil, fmt.Errorf("%s record %d: %w", s.name, i, err)
		}
		if args == nil {
			continue
		}
		if pos, dup := index[key]; dup {
			if !s.insertOnly {
				rows[pos] = args
			}
			continue
		}
		index[key] = len(rows)
		rows = append(rows, args)
	}
	return rows, nil
}

func (s *tableSchema) bind(rec map[string]interface{}) ([]interface{}, string, error) {
	lowered := make(map[string]interface{}, len(rec))
	for k, v := range rec {
		lowered[strings.ToLower(strings.TrimSpace(k))] = v
	}

	args := make([]interface{}, len(s.columns))
	keyParts := make([]string, 0, len(s.primaryKey))
	for i, c := range s.columns {
		v, err := coerce(lowered[c.name], c.sqlType)
		if err != nil {
			return nil, "", fmt.Errorf("column %s: %w", c.name, err)
		}
		if s.isKey(c.name) {
			if v == nil {
				return nil, "", nil
			}
			keyParts = append(keyParts, fmt.Sprint(v))
		}
		args[i] = v
	}
	return args, strings.Join(keyParts, "\x1f"), nil
}

var dateLayouts = []string{
	time.DateOnly,
	time.RFC3339,
	time.DateTime,
	"2006-01-02T15:04:05",
	"2006-01-02T15:04:05.000",
	"02-01-2006",
	"02/01/2006",
}

// coerce converts a decoded JSON value into the Go value bound for sqlType.
// Empty strings become NULL for every non-text column.
func coerce(v interface{}, sqlType string) (interface{}, error) {
	if v == nil {
		return nil, nil
	}
	if s, ok := v.(string); ok {
		s = strings.TrimSpace(s)
		if sqlType == typeText {
			return s, nil
		}
		if s == "" || strings.EqualFold(s, "null") {
			return nil, nil
		}
		v = s
	}

	switch sqlType {
	case typeText:
		return formatText(v), nil
	case typeInt:
		return toInt64(v)
	case typeBool:
		return toBool(v)
	case typeDate:
		return toDate(v)
	default:
		return v, nil
	}
}

func formatText(v interface{}) string {
	switch t := v.(type) {
	case float64:
		if t == math.Trunc(t) && math.Abs(t) < 1e15 {
			return strconv.FormatInt(int64(t), 10)
		}
		return strconv.FormatFloat(t, 'f', -1, 64)
	case bool:
		return strconv.FormatBool(t)
	default:
		return fmt.Sprint(t)
	}
}

func toInt64(v interface{}) (interface{}, error) {
	switch t := v.(type) {
	case float64:
		if t != math.Trunc(t) {
			return nil, fmt.Errorf("non-integer value %v", t)
		}
		return int64(t), nil
	case int:
		return int64(t), nil
	case int64:
		return t, nil
	case bool:
		if t {
			return int64(1), nil
		}
		return int64(0), nil
	case string:
		if n, err := strconv.ParseInt(t, 10, 64); err == nil {
			return n, nil
		}
		f, err := strconv.ParseFloat(t, 64)
		if err != nil || f != math.Trunc(f) {
			return nil, fmt.Errorf("invalid integer %q", t)
		}
		return int64(f), nil
	default:
		return nil, fmt.Errorf("unsupported integer type %T", v)
	}
}

func toBool(v interface{}) (interface{}, error) {
	switch t := v.(type) {
	case bool:
		return t, nil
	case float64:
		return t != 0, nil
	case int:
		return t != 0, nil
	case int64:
		return t != 0, nil
	case string:
		switch strings.ToLower(t) {
		case "1", "1.0", "true", "t", "yes", "y":
			return true, nil
		case "0", "0.0", "false", "f", "no", "n":
			return false, nil
		}
		return nil, fmt.Errorf("invalid boolean %q", t)
	default:
		return nil, fmt.Errorf("unsupported boolean type %T", v)
	}
}

func toDate(v interface{}) (interface{}, error) {
	switch t := v.(type) {
	case time.Time:
		return t, nil
	case string:
		for _, layout := range dateLayouts {
			if d, err := time.Parse(layout, t); err == nil {
				return d, nil
			}
		}
		return nil, fmt.Errorf("invalid date %q", t)
	default:
		return nil, fmt.Errorf("unsupported date type %T", v)
	}
}
