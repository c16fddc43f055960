// Sahayak - Citizen Service Recommendation Engine
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/sahayak

package api

import (
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/goccy/go-json"

	"github.com/tomtom215/sahayak/internal/logging"
	"github.com/tomtom215/sahayak/internal/models"
	"github.com/tomtom215/sahayak/internal/validation"
)

// Error codes for API responses
const (
	ErrCodeBadRequest         = "BAD_REQUEST"
	ErrCodeNotFound           = "NOT_FOUND"
	ErrCodeConflict           = "CONFLICT"
	ErrCodeInternalError      = "INTERNAL_ERROR"
	ErrCodeServiceUnavailable = "SERVICE_UNAVAILABLE"
	ErrCodeTimeout            = "TIMEOUT"
	ErrCodeExternalService    = "EXTERNAL_SERVICE_FAILED"
	ErrCodeValidationFailed   = validation.ErrorCode
)

const (
	statusSuccess = "success"
	statusPartial = "partial"
	statusError   = "error"
)

func (h *Handler) respondJSON(w http.ResponseWriter, r *http.Request, status int, response *models.APIResponse) {
	response.Metadata.Timestamp = time.Now().UTC()
	response.Metadata.RequestID = logging.RequestIDFromContext(r.Context())

	data, err := json.Marshal(response)
	if err != nil {
		log := logging.Enrich(r.Context(), h.logger)
		log.Error().Err(err).Msg("Failed to marshal JSON response")
		w.WriteHeader(http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.Header().Set("Cache-Control", "no-store")
	w.WriteHeader(status)
	if _, err := w.Write(data); err != nil {
		log := logging.Enrich(r.Context(), h.logger)
		log.Debug().Err(err).Msg("Failed to write JSON response")
	}
}

func (h *Handler) respondData(w http.ResponseWriter, r *http.Request, status int, envelope string, data interface{}, started time.Time) {
	h.respondJSON(w, r, status, &models.APIResponse{
		Status:   envelope,
		Data:     data,
		Metadata: models.Metadata{QueryTimeMS: time.Since(started).Milliseconds()},
	})
}

// respondError writes the error envelope. err, when set, is logged and
// never sent to the caller.
func (h *Handler) respondError(w http.ResponseWriter, r *http.Request, status int, code, message string, err error) {
	h.respondErrorDetails(w, r, status, code, message, nil, err)
}

func (h *Handler) respondErrorDetails(w http.ResponseWriter, r *http.Request, status int, code, message string, details map[string]interface{}, err error) {
	if err != nil {
		log := logging.Enrich(r.Context(), h.logger)
		ev := log.Warn()
		if status >= http.StatusInternalServerError {
			ev = log.Error()
		}
		ev.Err(err).Str("code", code).Int("status", status).Str("path", r.URL.Path).Msg("API error")
	}
	h.respondJSON(w, r, status, &models.APIResponse{
		Status: statusError,
		Error:  &models.APIError{Code: code, Message: message, Details: details},
	})
}

var errBodyTooLarge = errors.New("request body too large")

// decodeJSON reads one JSON object into dst and rejects unknown fields. An
// empty body leaves dst untouched.
func (h *Handler) decodeJSON(w http.ResponseWriter, r *http.Request, dst interface{}) error {
	body := http.MaxBytesReader(w, r.Body, h.deps.MaxBodyBytes)
	dec := json.NewDecoder(body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(dst); err != nil {
		var maxErr *http.MaxBytesError
		switch {
		case errors.Is(err, io.EOF):
			return nil
		case errors.As(err, &maxErr):
			return errBodyTooLarge
		}
		return fmt.Errorf("invalid JSON body: %s", strings.TrimPrefix(err.Error(), "json: "))
	}
	return nil
}

// bind decodes and validates a request body, writing the 400 response
// itself. It returns false when the handler should stop.
func (h *Handler) bind(w http.ResponseWriter, r *http.Request, dst interface{}) bool {
	if err := h.decodeJSON(w, r, dst); err != nil {
		if errors.Is(err, errBodyTooLarge) {
			h.respondError(w, r, http.StatusRequestEntityTooLarge, ErrCodeBadRequest, err.Error(), nil)
			return false
		}
		h.respondError(w, r, http.StatusBadRequest, ErrCodeBadRequest, err.Error(), nil)
		return false
	}
	if verr := validation.ValidateStruct(dst); verr != nil {
		apiErr := verr.ToAPIError()
		h.respondErrorDetails(w, r, http.StatusBadRequest, apiErr.Code, apiErr.Message, apiErr.Details, nil)
		return false
	}
	return true
}
