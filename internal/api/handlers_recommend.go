// Sahayak - Citizen Service Recommendation Engine
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/sahayak

package api

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/tomtom215/sahayak/internal/recommend"
)

// Recommend handles POST /api/v1/recommend.
func (h *Handler) Recommend(w http.ResponseWriter, r *http.Request) {
	started := time.Now()

	var req RecommendRequest
	if !h.bind(w, r, &req) {
		return
	}

	resp, err := h.deps.Recommender.Recommend(r.Context(), req.toDomain())
	if err != nil {
		h.recommendError(w, r, err)
		return
	}
	h.respondData(w, r, http.StatusOK, statusSuccess, resp, started)
}

func (h *Handler) recommendError(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case errors.Is(err, recommend.ErrInvalidRequest):
		h.respondError(w, r, http.StatusBadRequest, ErrCodeBadRequest, err.Error(), nil)
	case errors.Is(err, recommend.ErrCitizenNotFound):
		h.respondError(w, r, http.StatusNotFound, ErrCodeNotFound, "No citizen is registered with this phone number", nil)
	case errors.Is(err, recommend.ErrDataUnavailable):
		h.respondError(w, r, http.StatusServiceUnavailable, ErrCodeServiceUnavailable, "Service data is temporarily unavailable", err)
	case errors.Is(err, context.DeadlineExceeded):
		h.respondError(w, r, http.StatusGatewayTimeout, ErrCodeTimeout, "Recommendation timed out", err)
	default:
		h.respondError(w, r, http.StatusInternalServerError, ErrCodeInternalError, "Failed to generate recommendations", err)
	}
}
