// Sahayak - Citizen Service Recommendation Engine
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/sahayak

package database

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/tomtom215/sahayak/internal/models"
)

// Column types understood by the sink's value coercion.
const (
	typeText = "VARCHAR"
	typeInt  = "INTEGER"
	typeBool = "BOOLEAN"
	typeDate = "DATE"
)

type column struct {
	name    string
	sqlType string
}

// tableSchema describes a synced source table.
type tableSchema struct {
	name       string
	columns    []column
	primaryKey []string

	// insertOnly tables are append-only history: existing keys are kept
	// as they are rather than replaced.
	insertOnly bool
}

var sourceTables = []*tableSchema{
	{
		name: models.TableCitizens,
		columns: []column{
			{"citizen_id", typeText},
			{"citizen_phone", typeText},
			{"citizen_name", typeText},
			{"district_id", typeInt},
			{"age", typeInt},
			{"gender", typeText},
			{"caste", typeText},
			{"religion", typeText},
		},
		primaryKey: []string{"citizen_id"},
	},
	{
		name: models.TableProvisions,
		columns: []column{
			{"bsk_id", typeInt},
			{"customer_id", typeText},
			{"service_id", typeInt},
			{"service_name", typeText},
			{"prov_date", typeDate},
		},
		primaryKey: []string{"bsk_id", "customer_id", "service_id", "prov_date"},
		insertOnly: true,
	},
	{
		name: models.TableDistricts,
		columns: []column{
			{"district_id", typeInt},
			{"district_name", typeText},
		},
		primaryKey: []string{"district_id"},
	},
	{
		name: models.TableBSK,
		columns: []column{
			{"bsk_id", typeInt},
			{"bsk_name", typeText},
			{"block_mun_id", typeInt},
			{"district_id", typeInt},
		},
		primaryKey: []string{"bsk_id"},
	},
	{
		name: models.TableServices,
		columns: []column{
			{"service_id", typeInt},
			{"service_name", typeText},
			{"service_desc", typeText},
			{"min_age", typeInt},
			{"max_age", typeInt},
			{"is_sc", typeBool},
			{"is_st", typeBool},
			{"is_obc_a", typeBool},
			{"is_obc_b", typeBool},
			{"is_female", typeBool},
			{"is_minority", typeBool},
			{"for_all", typeBool},
			{"is_recurrent", typeBool},
			{"is_sensitive", typeBool},
		},
		primaryKey: []string{"service_id"},
	},
}

func schemaFor(table string) (*tableSchema, bool) {
	for _, s := range sourceTables {
		if s.name == table {
			return s, true
		}
	}
	return nil, false
}

// SourceTables lists the table names the sink accepts.
func SourceTables() []string {
	names := make([]string, len(sourceTables))
	for i, s := range sourceTables {
		names[i] = s.name
	}
	return names
}

func (s *tableSchema) createStatement() string {
	defs := make([]string, 0, len(s.columns)+1)
	for _, c := range s.columns {
		defs = append(defs, c.name+" "+c.sqlType)
	}
	defs = append(defs, "PRIMARY KEY ("+strings.Join(s.primaryKey, ", ")+")")
	return fmt.Sprintf("CREATE TABLE IF NOT EXISTS %s (\n\t%s\n)", s.name, strings.Join(defs, ",\n\t"))
}

func (s *tableSchema) columnNames() []string {
	names := make([]string, len(s.columns))
	for i, c := range s.columns {
		names[i] = c.name
	}
	return names
}

func (s *tableSchema) isKey(col string) bool {
	for _, k := range s.primaryKey {
		if k == col {
			return true
		}
	}
	return false
}

var pipelineTables = []string{
	`CREATE TABLE IF NOT EXISTS sync_metadata (
	table_name VARCHAR PRIMARY KEY,
	last_sync_timestamp TIMESTAMP,
	last_sync_from_date VARCHAR,
	last_sync_status VARCHAR,
	total_records BIGINT,
	rows_synced BIGINT,
	error_message VARCHAR
)`,
	`CREATE SEQUENCE IF NOT EXISTS regeneration_log_seq START 1`,
	`CREATE TABLE IF NOT EXISTS regeneration_log (
	id BIGINT PRIMARY KEY DEFAULT nextval('regeneration_log_seq'),
	artifact_type VARCHAR NOT NULL,
	rows_generated BIGINT,
	duration_seconds DOUBLE,
	status VARCHAR NOT NULL,
	error_message VARCHAR,
	triggered_by VARCHAR,
	created_at TIMESTAMP NOT NULL
)`,
}

func (db *DB) createTables() error {
	ctx, cancel := context.WithTimeout(context.Background(), 60*time.Second)
	defer cancel()

	for _, s := range sourceTables {
		if _, err := db.conn.ExecContext(ctx, s.createStatement()); err != nil {
			return fmt.Errorf("create %s: %w", s.name, err)
		}
	}
	for _, q := range pipelineTables {
		if _, err := db.conn.ExecContext(ctx, q); err != nil {
			return fmt.Errorf("create pipeline table: %w", err)
		}
	}
	return nil
}
