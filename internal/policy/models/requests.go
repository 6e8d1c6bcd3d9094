package models

import (
	"strings"
	"time"

	dErrors "planlens/pkg/domain-errors"
)

// CreatePolicyRequest is the HTTP request DTO for creating an analysis.
//
// Two creation paths exist:
//   - inline fields: the caller supplies already-extracted fields
//   - document upload: the caller supplies a base64 document; extraction
//     produces the initial field set, and the raw file is retained when
//     Retain is set
//
// Tenant identity is never part of the body; it comes from the auth context.
type CreatePolicyRequest struct {
	Provider  string        `json:"provider,omitempty"`
	PlanType  string        `json:"plan_type,omitempty"`
	Fields    []PolicyField `json:"extracted_fields,omitempty"`
	FileB64   string        `json:"file_b64,omitempty"`
	Filename  string        `json:"filename,omitempty"`
	Retain    bool          `json:"retain,omitempty"`
	ExpiresAt *time.Time    `json:"expires_at,omitempty"`
}

// Normalize trims user-supplied strings in place.
func (r *CreatePolicyRequest) Normalize() {
	r.Provider = strings.TrimSpace(r.Provider)
	r.PlanType = strings.TrimSpace(r.PlanType)
	r.Filename = strings.TrimSpace(r.Filename)
	r.FileB64 = strings.TrimSpace(r.FileB64)
}

// Validate checks the request invariants. Field-level invariants are checked
// here so a bad confidence is rejected before any state changes.
func (r *CreatePolicyRequest) Validate() error {
	if len(r.Fields) == 0 && r.FileB64 == "" {
		return dErrors.New(dErrors.CodeValidation, "either extracted_fields or file_b64 is required")
	}
	if r.Retain && r.FileB64 == "" {
		return dErrors.New(dErrors.CodeValidation, "retain requires file_b64")
	}
	if err := ValidateFields(r.Fields); err != nil {
		return dErrors.New(dErrors.CodeValidation, dErrors.MessageOf(err))
	}
	return nil
}

// UpdatePolicyRequest is the HTTP request DTO for partial updates.
// Only provider, plan type, and the field sequence are mutable; nil means
// "leave unchanged". ID, tenant, and creation time can never be updated.
type UpdatePolicyRequest struct {
	Provider *string        `json:"provider"`
	PlanType *string        `json:"plan_type"`
	Fields   *[]PolicyField `json:"extracted_fields"`
}

// Normalize trims user-supplied strings in place.
func (r *UpdatePolicyRequest) Normalize() {
	if r.Provider != nil {
		trimmed := strings.TrimSpace(*r.Provider)
		r.Provider = &trimmed
	}
	if r.PlanType != nil {
		trimmed := strings.TrimSpace(*r.PlanType)
		r.PlanType = &trimmed
	}
}

// Validate checks the request invariants.
func (r *UpdatePolicyRequest) Validate() error {
	if r.Provider == nil && r.PlanType == nil && r.Fields == nil {
		return dErrors.New(dErrors.CodeValidation, "update must change at least one of provider, plan_type, extracted_fields")
	}
	if r.Fields != nil {
		if err := ValidateFields(*r.Fields); err != nil {
			return dErrors.New(dErrors.CodeValidation, dErrors.MessageOf(err))
		}
	}
	return nil
}

// ListFilter narrows a tenant listing. Matching is exact and case-sensitive;
// empty values mean "no filter".
type ListFilter struct {
	Provider string
	PlanType string
}

// Matches reports whether the analysis passes the filter.
func (f ListFilter) Matches(a *PolicyAnalysis) bool {
	if f.Provider != "" && a.Provider != f.Provider {
		return false
	}
	if f.PlanType != "" && a.PlanType != f.PlanType {
		return false
	}
	return true
}
