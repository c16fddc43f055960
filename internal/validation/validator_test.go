// Sahayak - Citizen Service Recommendation Engine
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/sahayak

package validation

import (
	"strings"
	"testing"
)

type sampleRequest struct {
	Phone    string `json:"phone" validate:"omitempty,phone"`
	FromDate string `json:"from_date" validate:"omitempty,dateonly"`
	Artifact string `json:"artifact_type" validate:"required,oneof=district demographic block content static all"`
	Age      *int   `json:"age,omitempty" validate:"omitempty,gte=0,lte=130"`
	IDs      []int  `json:"selected_service_ids" validate:"max=3,dive,gt=0"`
	Name     string `validate:"max=5"`
}

func intPtr(v int) *int { return &v }

func TestGetValidator_Singleton(t *testing.T) {
	if GetValidator() != GetValidator() {
		t.Error("GetValidator() returned different instances")
	}
}

func TestValidateStruct(t *testing.T) {
	tests := []struct {
		name      string
		input     sampleRequest
		wantField string
		wantTag   string
	}{
		{name: "valid", input: sampleRequest{Phone: "+91 98765-43210", FromDate: "2024-01-01", Artifact: "static", Age: intPtr(30), IDs: []int{124}}},
		{name: "ten digit phone", input: sampleRequest{Phone: "9876543210", Artifact: "all"}},
		{name: "short phone", input: sampleRequest{Phone: "12345", Artifact: "all"}, wantField: "phone", wantTag: "phone"},
		{name: "letters in phone", input: sampleRequest{Phone: "98765abc10", Artifact: "all"}, wantField: "phone", wantTag: "phone"},
		{name: "bad date", input: sampleRequest{FromDate: "01/02/2024", Artifact: "all"}, wantField: "from_date", wantTag: "dateonly"},
		{name: "missing artifact", input: sampleRequest{}, wantField: "artifact_type", wantTag: "required"},
		{name: "unknown artifact", input: sampleRequest{Artifact: "weekly"}, wantField: "artifact_type", wantTag: "oneof"},
		{name: "negative age", input: sampleRequest{Artifact: "all", Age: intPtr(-1)}, wantField: "age", wantTag: "gte"},
		{name: "zero service id", input: sampleRequest{Artifact: "all", IDs: []int{0}}, wantField: "selected_service_ids[0]", wantTag: "gt"},
		{name: "too many ids", input: sampleRequest{Artifact: "all", IDs: []int{1, 2, 3, 4}}, wantField: "selected_service_ids", wantTag: "max"},
		{name: "untagged field keeps go name", input: sampleRequest{Artifact: "all", Name: "toolong"}, wantField: "Name", wantTag: "max"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			verr := ValidateStruct(&tt.input)
			if tt.wantField == "" {
				if verr != nil {
					t.Fatalf("ValidateStruct() = %v, want nil", verr)
				}
				return
			}
			if verr == nil {
				t.Fatal("ValidateStruct() = nil, want error")
			}
			errs := verr.Errors()
			if len(errs) != 1 {
				t.Fatalf("got %d errors: %v", len(errs), verr)
			}
			if errs[0].Field() != tt.wantField || errs[0].Tag() != tt.wantTag {
				t.Errorf("error = %s/%s, want %s/%s", errs[0].Field(), errs[0].Tag(), tt.wantField, tt.wantTag)
			}
		})
	}
}

func TestTranslateMessages(t *testing.T) {
	tests := []struct {
		input sampleRequest
		want  string
	}{
		{sampleRequest{Phone: "1", Artifact: "all"}, "phone must be a phone number with 10 to 13 digits"},
		{sampleRequest{FromDate: "2024-13-01", Artifact: "all"}, "from_date must be a date in YYYY-MM-DD format"},
		{sampleRequest{Artifact: "x"}, "artifact_type must be one of: district demographic block content static all"},
		{sampleRequest{Artifact: "all", Name: "abcdef"}, "Name must be at most 5 characters"},
		{sampleRequest{Artifact: "all", IDs: []int{1, 2, 3, 4}}, "selected_service_ids must be at most 3 items"},
	}
	for _, tt := range tests {
		verr := ValidateStruct(&tt.input)
		if verr == nil {
			t.Fatalf("ValidateStruct(%+v) = nil", tt.input)
		}
		if got := verr.Error(); got != tt.want {
			t.Errorf("message = %q, want %q", got, tt.want)
		}
	}
}

func TestToAPIError(t *testing.T) {
	single := ValidateStruct(&sampleRequest{})
	apiErr := single.ToAPIError()
	if apiErr.Code != ErrorCode || apiErr.Details["field"] != "artifact_type" {
		t.Errorf("single ToAPIError() = %+v", apiErr)
	}

	multi := ValidateStruct(&sampleRequest{Phone: "1", FromDate: "x"})
	apiErr = multi.ToAPIError()
	fields, ok := apiErr.Details["fields"].([]map[string]interface{})
	if !ok || len(fields) != 3 {
		t.Fatalf("multi details = %+v", apiErr.Details)
	}
	if !strings.Contains(apiErr.Message, "; ") {
		t.Errorf("multi message = %q", apiErr.Message)
	}

	empty := &RequestValidationError{}
	if empty.ToAPIError().Message != "Validation failed" || empty.Error() != "validation failed" {
		t.Error("empty error messages changed")
	}
}
