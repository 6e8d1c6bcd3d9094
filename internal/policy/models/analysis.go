package models

import (
	"strings"
	"time"

	id "planlens/pkg/domain"
	dErrors "planlens/pkg/domain-errors"
)

// PolicyField is a single attribute extracted from a policy document.
//
// Invariants:
//   - Name is non-empty
//   - Confidence lies in [0.0, 1.0]
//   - SourcePage, when present, is a positive page number
//
// Fields have no identity or lifecycle of their own; they exist only inside
// their parent PolicyAnalysis, in extraction pipeline order.
type PolicyField struct {
	Name         string  `json:"name"`
	Value        string  `json:"value"`
	Confidence   float64 `json:"confidence"`
	SourcePage   *int    `json:"source_page,omitempty"`
	Citation     string  `json:"citation,omitempty"`
	ModelVersion string  `json:"model_version,omitempty"`
}

// Validate checks the field invariants. Called at every boundary where
// fields enter the system (create, update, extraction output).
func (f PolicyField) Validate() error {
	if strings.TrimSpace(f.Name) == "" {
		return dErrors.New(dErrors.CodeInvariantViolation, "field name cannot be empty")
	}
	if f.Confidence < 0.0 || f.Confidence > 1.0 {
		return dErrors.New(dErrors.CodeInvariantViolation, "field confidence must be between 0.0 and 1.0")
	}
	if f.SourcePage != nil && *f.SourcePage < 1 {
		return dErrors.New(dErrors.CodeInvariantViolation, "field source_page must be a positive page number")
	}
	return nil
}

// ValidateFields checks every field in a sequence.
func ValidateFields(fields []PolicyField) error {
	for i := range fields {
		if err := fields[i].Validate(); err != nil {
			return err
		}
	}
	return nil
}

// cloneFields deep-copies a field sequence, preserving order.
func cloneFields(fields []PolicyField) []PolicyField {
	if fields == nil {
		return nil
	}
	out := make([]PolicyField, len(fields))
	for i, f := range fields {
		out[i] = f
		if f.SourcePage != nil {
			page := *f.SourcePage
			out[i].SourcePage = &page
		}
	}
	return out
}

// PolicyAnalysis is the aggregate root for a processed policy document.
//
// Invariants:
//   - ID, TenantID, and CreatedAt are immutable after construction
//   - Fields keep insertion order (extraction pipeline order is significant)
//   - UpdatedAt never moves backwards
//
// The analysis owns its field sequence exclusively; stores hand out deep
// copies so callers never alias stored state.
type PolicyAnalysis struct {
	ID        id.PolicyID   `json:"id"`
	TenantID  id.TenantID   `json:"tenant_id"`
	Provider  string        `json:"provider,omitempty"`
	PlanType  string        `json:"plan_type,omitempty"`
	Fields    []PolicyField `json:"extracted_fields"`
	CreatedAt time.Time     `json:"created_at"`
	UpdatedAt time.Time     `json:"updated_at"`
	ExpiresAt *time.Time    `json:"expires_at,omitempty"`
}

// NewPolicyAnalysis constructs a validated analysis with CreatedAt ==
// UpdatedAt == now. The field sequence is copied in.
func NewPolicyAnalysis(policyID id.PolicyID, tenantID id.TenantID, provider, planType string, fields []PolicyField, now time.Time) (*PolicyAnalysis, error) {
	if policyID.IsNil() {
		return nil, dErrors.New(dErrors.CodeInvariantViolation, "policy id is required")
	}
	if tenantID.IsNil() {
		return nil, dErrors.New(dErrors.CodeInvariantViolation, "tenant id is required")
	}
	if err := ValidateFields(fields); err != nil {
		return nil, err
	}
	return &PolicyAnalysis{
		ID:        policyID,
		TenantID:  tenantID,
		Provider:  strings.TrimSpace(provider),
		PlanType:  strings.TrimSpace(planType),
		Fields:    cloneFields(fields),
		CreatedAt: now,
		UpdatedAt: now,
	}, nil
}

// ApplyUpdate mutates the attributes an update may touch: provider, plan
// type, and the field sequence. Nil pointers mean "leave unchanged".
// UpdatedAt advances monotonically even if the supplied clock regressed.
func (a *PolicyAnalysis) ApplyUpdate(provider, planType *string, fields []PolicyField, now time.Time) {
	if provider != nil {
		a.Provider = strings.TrimSpace(*provider)
	}
	if planType != nil {
		a.PlanType = strings.TrimSpace(*planType)
	}
	if fields != nil {
		a.Fields = cloneFields(fields)
	}
	if !now.After(a.UpdatedAt) {
		now = a.UpdatedAt.Add(time.Nanosecond)
	}
	a.UpdatedAt = now
}

// Clone deep-copies the analysis so stored state is never aliased.
func (a *PolicyAnalysis) Clone() *PolicyAnalysis {
	out := *a
	out.Fields = cloneFields(a.Fields)
	if a.ExpiresAt != nil {
		exp := *a.ExpiresAt
		out.ExpiresAt = &exp
	}
	return &out
}
