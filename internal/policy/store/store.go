// Package store defines the PolicyStore contract shared by the memory,
// postgres, and cache implementations.
package store

import (
	"context"

	"planlens/internal/policy/models"
	id "planlens/pkg/domain"
)

// Store is the authoritative home of policy analyses.
//
// Every operation takes the tenant key as a mandatory parameter; tenant
// isolation is enforced at this single choke point so no call path can
// bypass it. A record that exists under another tenant is reported exactly
// like an absent record (sentinel.ErrNotFound) to prevent cross-tenant
// existence leakage.
//
// Implementations must keep reads consistent: a Get or List never observes
// a record mid-mutation, and returned records are deep copies.
type Store interface {
	// Create inserts a new analysis. Returns sentinel.ErrConflict if the
	// identifier is already taken.
	Create(ctx context.Context, analysis *models.PolicyAnalysis) error

	// Get returns a copy of the record owned by tenantID.
	Get(ctx context.Context, tenantID id.TenantID, policyID id.PolicyID) (*models.PolicyAnalysis, error)

	// Execute atomically applies mutate to the record owned by tenantID,
	// holding the store's exclusion (mutex or row lock) for the duration.
	// A non-nil error from mutate aborts the mutation and is returned
	// unchanged. On success the updated record is returned as a copy.
	Execute(ctx context.Context, tenantID id.TenantID, policyID id.PolicyID, mutate func(*models.PolicyAnalysis) error) (*models.PolicyAnalysis, error)

	// List returns the tenant's records in creation order, narrowed by the
	// filter. An unknown tenant yields an empty sequence, not an error.
	List(ctx context.Context, tenantID id.TenantID, filter models.ListFilter) ([]*models.PolicyAnalysis, error)

	// Delete removes the record owned by tenantID. Deletion is not
	// idempotent: a second delete reports sentinel.ErrNotFound.
	Delete(ctx context.Context, tenantID id.TenantID, policyID id.PolicyID) error
}
