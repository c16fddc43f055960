// Sahayak - Citizen Service Recommendation Engine
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/sahayak

// Package datasource is the read-only data access layer. It loads source
// tables from the relational store (DuckDB) or from flat CSV files, decodes
// them into model types, and caches the lookups a recommendation request
// needs (phone index, used services, service catalog, district names).
package datasource

import (
	"context"
	"errors"
)

var (
	// ErrDataUnavailable means neither source could supply a table.
	ErrDataUnavailable = errors.New("data unavailable")

	// ErrCitizenNotFound means no citizen matches the requested phone number.
	ErrCitizenNotFound = errors.New("citizen not found")
)

// SourceKind identifies which backing store answered a load.
type SourceKind string

const (
	SourceDatabase SourceKind = "database"
	SourceFiles    SourceKind = "files"
	SourceNone     SourceKind = "none"
)

// Row is one record keyed by lower-cased column name. Missing values are
// empty strings.
type Row map[string]string

// Table is an ordered set of homogeneous records.
type Table struct {
	Name    string
	Source  SourceKind
	Columns []string
	Rows    []Row
}

// Len returns the number of rows.
func (t *Table) Len() int {
	if t == nil {
		return 0
	}
	return len(t.Rows)
}

// HasColumn reports whether the table carries col.
func (t *Table) HasColumn(col string) bool {
	for _, c := range t.Columns {
		if c == col {
			return true
		}
	}
	return false
}

// Source is a backing store for source tables.
type Source interface {
	Kind() SourceKind
	Ping(ctx context.Context) error
	HasTable(ctx context.Context, table string) bool
	Load(ctx context.Context, table string) (*Table, error)
}

// Loader is the read side consumed by decoders' callers.
type Loader interface {
	Load(ctx context.Context, table string) (*Table, error)
}
