// Sahayak - Citizen Service Recommendation Engine
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/sahayak

// Package models defines the records shared between the data access layer,
// the recommendation engines, the sync pipeline and the HTTP API.
//
// Source records (Citizen, Provision, Service, District, BSK) are decoded
// from either DuckDB or CSV files by the datasource package. Profile is the
// normalized view of a citizen that the eligibility filter and engines
// consume; values are lower-cased and missing values become Unknown.
package models
