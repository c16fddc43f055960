// Sahayak - Citizen Service Recommendation Engine
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/sahayak

package api

import (
	"context"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/tomtom215/sahayak/internal/models"
	"github.com/tomtom215/sahayak/internal/recommend"
	datasync "github.com/tomtom215/sahayak/internal/sync"
)

// Regenerate handles POST /api/v1/admin/regenerate.
func (h *Handler) Regenerate(w http.ResponseWriter, r *http.Request) {
	started := time.Now()

	var req RegenerateRequest
	if !h.bind(w, r, &req) {
		return
	}
	artifact, err := recommend.ParseArtifactType(req.ArtifactType)
	if err != nil {
		h.respondError(w, r, http.StatusBadRequest, ErrCodeBadRequest, err.Error(), nil)
		return
	}

	// Rebuilds outlive a disconnected caller; the artifact guard is held
	// until they finish either way.
	res, err := h.deps.Regenerator.Regenerate(context.WithoutCancel(r.Context()), artifact, models.TriggerManual)
	switch {
	case recommend.IsConflict(err):
		w.Header().Set("Retry-After", strconv.Itoa(int(h.deps.RetryAfter.Seconds())))
		h.respondError(w, r, http.StatusConflict, ErrCodeConflict, err.Error(), nil)
	case errors.Is(err, recommend.ErrUnknownArtifact):
		h.respondError(w, r, http.StatusBadRequest, ErrCodeBadRequest, err.Error(), nil)
	case err != nil && res != nil:
		h.respondErrorDetails(w, r, http.StatusInternalServerError, ErrCodeInternalError,
			"Regeneration failed for every artifact", map[string]interface{}{"errors": res.Errors}, err)
	case err != nil:
		h.respondError(w, r, http.StatusInternalServerError, ErrCodeInternalError, "Regeneration failed", err)
	case res.Status == recommend.RegenerationPartial:
		h.respondData(w, r, http.StatusOK, statusPartial, res, started)
	default:
		h.respondData(w, r, http.StatusOK, statusSuccess, res, started)
	}
}

// Sync handles POST /api/v1/admin/sync.
func (h *Handler) Sync(w http.ResponseWriter, r *http.Request) {
	started := time.Now()
	if h.deps.Sync == nil {
		h.respondError(w, r, http.StatusServiceUnavailable, ErrCodeServiceUnavailable, "Data sync is disabled", nil)
		return
	}

	var req SyncRequest
	if !h.bind(w, r, &req) {
		return
	}
	var tables []string
	if req.TargetTable != "" {
		tables = []string{req.TargetTable}
	}

	res, err := h.deps.Sync.SyncTables(context.WithoutCancel(r.Context()), tables, req.FromDate, models.TriggerManual)
	switch {
	case err == nil:
		h.respondData(w, r, http.StatusOK, statusSuccess, res, started)
	case errors.Is(err, datasync.ErrPartialSyncFailure):
		h.respondData(w, r, http.StatusOK, statusPartial, res, started)
	case errors.Is(err, datasync.ErrSyncInProgress):
		h.respondError(w, r, http.StatusConflict, ErrCodeConflict, "A sync cycle is already running", nil)
	case errors.Is(err, datasync.ErrUnknownTable), errors.Is(err, datasync.ErrInvalidFromDate):
		h.respondError(w, r, http.StatusBadRequest, ErrCodeBadRequest, err.Error(), nil)
	case errors.Is(err, datasync.ErrAuthenticationFailure):
		h.respondErrorDetails(w, r, http.StatusBadGateway, ErrCodeExternalService,
			"Could not authenticate with the data authority", map[string]interface{}{"result": res}, err)
	default:
		h.respondError(w, r, http.StatusInternalServerError, ErrCodeInternalError, "Sync failed", err)
	}
}

// SyncStatus handles GET /api/v1/admin/sync/status.
func (h *Handler) SyncStatus(w http.ResponseWriter, r *http.Request) {
	started := time.Now()
	if h.deps.Sync == nil {
		h.respondError(w, r, http.StatusServiceUnavailable, ErrCodeServiceUnavailable, "Data sync is disabled", nil)
		return
	}
	st, err := h.deps.Sync.Status(r.Context())
	if err != nil {
		h.respondError(w, r, http.StatusInternalServerError, ErrCodeInternalError, "Failed to read sync status", err)
		return
	}
	h.respondData(w, r, http.StatusOK, statusSuccess, st, started)
}
