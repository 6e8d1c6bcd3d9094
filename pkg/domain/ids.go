// Package domain provides typed identifiers used across planlens.
//
// IDs are distinct named types so the compiler rejects cross-type
// assignment: a TenantID can never be passed where a PolicyID is expected.
// Parsing enforces validity at trust boundaries (HTTP path params, claims).
package domain

import (
	"strings"
	"unicode"

	"github.com/google/uuid"

	dErrors "planlens/pkg/domain-errors"
)

// PolicyID uniquely identifies a policy analysis. Assigned by the store at
// creation, immutable for the record's lifetime.
type PolicyID uuid.UUID

// NewPolicyID returns a freshly generated random identifier.
// Random 128-bit IDs keep creation collision-resistant without coordination.
func NewPolicyID() PolicyID {
	return PolicyID(uuid.New())
}

// ParsePolicyID validates and returns a PolicyID.
// Rejects empty strings, malformed UUIDs, and the nil UUID.
func ParsePolicyID(s string) (PolicyID, error) {
	if s == "" {
		return PolicyID{}, dErrors.New(dErrors.CodeInvalidInput, "policy id cannot be empty")
	}
	u, err := uuid.Parse(s)
	if err != nil {
		return PolicyID{}, dErrors.New(dErrors.CodeInvalidInput, "policy id must be a valid UUID")
	}
	if u == uuid.Nil {
		return PolicyID{}, dErrors.New(dErrors.CodeInvalidInput, "policy id cannot be the nil UUID")
	}
	return PolicyID(u), nil
}

func (id PolicyID) String() string {
	return uuid.UUID(id).String()
}

// IsNil reports whether the ID is the zero value.
func (id PolicyID) IsNil() bool {
	return uuid.UUID(id) == uuid.Nil
}

// MarshalText serializes the ID as its canonical UUID string.
func (id PolicyID) MarshalText() ([]byte, error) {
	return []byte(id.String()), nil
}

// UnmarshalText parses a canonical UUID string.
func (id *PolicyID) UnmarshalText(b []byte) error {
	u, err := uuid.Parse(string(b))
	if err != nil {
		return err
	}
	*id = PolicyID(u)
	return nil
}

// TenantID is the opaque partition key every record belongs to. The service
// never interprets it beyond equality; it arrives from the auth layer and is
// treated as an isolation boundary, not as data.
type TenantID string

// MaxTenantIDLength bounds tenant keys so they stay usable as store and
// cache key components.
const MaxTenantIDLength = 128

// ParseTenantID validates an externally supplied tenant key.
// Rejects empty, oversized, and whitespace/control-character keys.
func ParseTenantID(s string) (TenantID, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return "", dErrors.New(dErrors.CodeInvalidInput, "tenant id cannot be empty")
	}
	if len(s) > MaxTenantIDLength {
		return "", dErrors.New(dErrors.CodeInvalidInput, "tenant id must be 128 characters or less")
	}
	for _, r := range s {
		if unicode.IsSpace(r) || unicode.IsControl(r) {
			return "", dErrors.New(dErrors.CodeInvalidInput, "tenant id cannot contain whitespace or control characters")
		}
	}
	return TenantID(s), nil
}

func (t TenantID) String() string {
	return string(t)
}

// IsNil reports whether the tenant key is empty.
func (t TenantID) IsNil() bool {
	return t == ""
}
