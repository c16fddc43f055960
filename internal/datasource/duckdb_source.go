// Sahayak - Citizen Service Recommendation Engine
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/sahayak

package datasource

import (
	"context"
	"database/sql"
	"fmt"
	"strconv"
	"strings"
	"time"
)

// DuckDBSource reads the tables written by the sync sink. Only tables in
// the allowlist are ever interpolated into SQL.
type DuckDBSource struct {
	conn    *sql.DB
	allowed map[string]struct{}
}

// NewDuckDBSource returns a source over conn restricted to tables.
func NewDuckDBSource(conn *sql.DB, tables []string) *DuckDBSource {
	allowed := make(map[string]struct{}, len(tables))
	for _, t := range tables {
		allowed[t] = struct{}{}
	}
	return &DuckDBSource{conn: conn, allowed: allowed}
}

// Kind implements Source.
func (s *DuckDBSource) Kind() SourceKind { return SourceDatabase }

// Ping implements Source.
func (s *DuckDBSource) Ping(ctx context.Context) error {
	if s.conn == nil {
		return fmt.Errorf("duckdb source: no connection")
	}
	return s.conn.PingContext(ctx)
}

// HasTable reports whether the table exists and holds at least one row. An
// empty table has not been synced yet and defers to the fallback.
func (s *DuckDBSource) HasTable(ctx context.Context, table string) bool {
	if _, ok := s.allowed[table]; !ok || s.conn == nil {
		return false
	}
	var exists int
	err := s.conn.QueryRowContext(ctx,
		"SELECT COUNT(*) FROM information_schema.tables WHERE table_name = ?", table).Scan(&exists)
	if err != nil || exists == 0 {
		return false
	}
	var one int
	err = s.conn.QueryRowContext(ctx, "SELECT 1 FROM "+table+" LIMIT 1").Scan(&one)
	return err == nil
}

// Load implements Source.
func (s *DuckDBSource) Load(ctx context.Context, table string) (*Table, error) {
	if _, ok := s.allowed[table]; !ok {
		return nil, fmt.Errorf("duckdb source: table %q not allowed", table)
	}

	rows, err := s.conn.QueryContext(ctx, "SELECT * FROM "+table)
	if err != nil {
		return nil, fmt.Errorf("query %s: %w", table, err)
	}
	defer func() { _ = rows.Close() }()

	cols, err := rows.Columns()
	if err != nil {
		return nil, fmt.Errorf("columns %s: %w", table, err)
	}
	for i := range cols {
		cols[i] = strings.ToLower(cols[i])
	}

	out := &Table{Name: table, Source: SourceDatabase, Columns: cols}
	values := make([]interface{}, len(cols))
	ptrs := make([]interface{}, len(cols))
	for i := range values {
		ptrs[i] = &values[i]
	}
	for rows.Next() {
		if err := rows.Scan(ptrs...); err != nil {
			return nil, fmt.Errorf("scan %s: %w", table, err)
		}
		row := make(Row, len(cols))
		for i, c := range cols {
			row[c] = stringify(values[i])
		}
		out.Rows = append(out.Rows, row)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate %s: %w", table, err)
	}
	return out, nil
}

func stringify(v interface{}) string {
	switch t := v.(type) {
	case nil:
		return ""
	case string:
		return t
	case []byte:
		return string(t)
	case bool:
		return strconv.FormatBool(t)
	case int32:
		return strconv.FormatInt(int64(t), 10)
	case int64:
		return strconv.FormatInt(t, 10)
	case float64:
		return strconv.FormatFloat(t, 'f', -1, 64)
	case time.Time:
		if t.Hour() == 0 && t.Minute() == 0 && t.Second() == 0 && t.Nanosecond() == 0 {
			return t.Format(time.DateOnly)
		}
		return t.Format(time.RFC3339)
	default:
		return fmt.Sprint(t)
	}
}
