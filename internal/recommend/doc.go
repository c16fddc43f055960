// Sahayak - Citizen Service Recommendation Engine
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/sahayak

// Package recommend combines the scoring engines into one recommendation
// and owns the rebuild of their artifacts.
//
// # Request flow
//
// A request resolves a profile (phone lookup or manual fields), computes the
// citizen's eligible services from the catalog, then queries the district,
// demographic, block and content engines concurrently. Eligibility and the
// exclusions (selected services, already received non-recurrent services)
// are applied to the full engine rankings before the top k are taken, so a
// category is only short when the ranking itself runs out. Content results
// apply their own filtering (self, sensitive, duplicate names). An engine
// without an artifact contributes an empty category; the request still
// succeeds.
//
// # Regeneration
//
// Regenerator rebuilds artifacts from the source tables, persists them to
// the artifact store, then swaps them into the engines. Each artifact has its
// own guard: a rebuild requested while one is running is rejected with
// ErrRegenerationConflict rather than queued.
package recommend
