// Package memory provides the in-memory PolicyStore.
//
// State is process-scoped: initialized empty, discarded at termination.
// That is a documented property of this implementation, not a defect; the
// postgres store carries the same contract with durability.
package memory

import (
	"context"
	"sync"

	"planlens/internal/policy/models"
	id "planlens/pkg/domain"
	"planlens/pkg/platform/sentinel"
)

// InMemory keeps analyses in tenant-partitioned maps guarded by a single
// RWMutex. Contention is expected to be low; clarity wins over sharding.
type InMemory struct {
	mu      sync.RWMutex
	records map[id.PolicyID]*models.PolicyAnalysis
	// order preserves per-tenant insertion order for List.
	order map[id.TenantID][]id.PolicyID
}

// NewInMemory constructs an empty store.
func NewInMemory() *InMemory {
	return &InMemory{
		records: make(map[id.PolicyID]*models.PolicyAnalysis),
		order:   make(map[id.TenantID][]id.PolicyID),
	}
}

func (s *InMemory) Create(_ context.Context, analysis *models.PolicyAnalysis) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.records[analysis.ID]; exists {
		return sentinel.ErrConflict
	}
	s.records[analysis.ID] = analysis.Clone()
	s.order[analysis.TenantID] = append(s.order[analysis.TenantID], analysis.ID)
	return nil
}

func (s *InMemory) Get(_ context.Context, tenantID id.TenantID, policyID id.PolicyID) (*models.PolicyAnalysis, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rec := s.lookup(tenantID, policyID)
	if rec == nil {
		return nil, sentinel.ErrNotFound
	}
	return rec.Clone(), nil
}

func (s *InMemory) Execute(_ context.Context, tenantID id.TenantID, policyID id.PolicyID, mutate func(*models.PolicyAnalysis) error) (*models.PolicyAnalysis, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	rec := s.lookup(tenantID, policyID)
	if rec == nil {
		return nil, sentinel.ErrNotFound
	}

	// Mutate a copy so an aborting callback leaves stored state untouched.
	working := rec.Clone()
	if err := mutate(working); err != nil {
		return nil, err
	}
	s.records[policyID] = working
	return working.Clone(), nil
}

func (s *InMemory) List(_ context.Context, tenantID id.TenantID, filter models.ListFilter) ([]*models.PolicyAnalysis, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	ids := s.order[tenantID]
	out := make([]*models.PolicyAnalysis, 0, len(ids))
	for _, policyID := range ids {
		rec := s.records[policyID]
		if rec == nil {
			continue
		}
		if filter.Matches(rec) {
			out = append(out, rec.Clone())
		}
	}
	return out, nil
}

func (s *InMemory) Delete(_ context.Context, tenantID id.TenantID, policyID id.PolicyID) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.lookup(tenantID, policyID) == nil {
		return sentinel.ErrNotFound
	}
	delete(s.records, policyID)

	ids := s.order[tenantID]
	for i, existing := range ids {
		if existing == policyID {
			s.order[tenantID] = append(ids[:i], ids[i+1:]...)
			break
		}
	}
	return nil
}

// lookup returns the stored record only when it is owned by tenantID.
// Callers must hold the mutex.
func (s *InMemory) lookup(tenantID id.TenantID, policyID id.PolicyID) *models.PolicyAnalysis {
	rec, ok := s.records[policyID]
	if !ok || rec.TenantID != tenantID {
		return nil
	}
	return rec
}
