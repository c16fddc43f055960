// Sahayak - Citizen Service Recommendation Engine
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/sahayak

// Package validation validates API request bodies with go-playground/validator v10.
//
// A single validator instance is built once and shared. Field names in
// errors are taken from the json tag so messages match the request body the
// caller sent.
//
// # Custom Tags
//
//   - phone: a phone number with 10 to 13 digits; spaces, dashes,
//     parentheses and a leading + are allowed
//   - dateonly: a YYYY-MM-DD calendar date
//
// # Usage
//
//	type SyncRequest struct {
//	    TargetTable string `json:"target_table" validate:"omitempty,max=64"`
//	    FromDate    string `json:"from_date" validate:"omitempty,dateonly"`
//	}
//
//	if verr := validation.ValidateStruct(&req); verr != nil {
//	    apiErr := verr.ToAPIError()
//	    // 400 with apiErr.Code, apiErr.Message and apiErr.Details
//	}
package validation
