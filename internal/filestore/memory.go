// Package filestore holds retained source documents for policy analyses.
//
// Files share the lifecycle of their analysis: stored at creation when the
// caller asks for retention, removed when the analysis is deleted. Keys are
// tenant-scoped for the same isolation guarantee as the policy store.
package filestore

import (
	"context"
	"sync"

	id "planlens/pkg/domain"
	"planlens/pkg/platform/sentinel"
)

// File is a retained source document.
type File struct {
	Name    string
	Content []byte
}

// InMemory keeps retained files in a mutex-guarded map.
type InMemory struct {
	mu    sync.RWMutex
	files map[string]File
}

// NewInMemory constructs an empty file store.
func NewInMemory() *InMemory {
	return &InMemory{files: make(map[string]File)}
}

func key(tenantID id.TenantID, policyID id.PolicyID) string {
	return tenantID.String() + "/" + policyID.String()
}

func (s *InMemory) Put(_ context.Context, tenantID id.TenantID, policyID id.PolicyID, file File) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	content := make([]byte, len(file.Content))
	copy(content, file.Content)
	s.files[key(tenantID, policyID)] = File{Name: file.Name, Content: content}
	return nil
}

func (s *InMemory) Get(_ context.Context, tenantID id.TenantID, policyID id.PolicyID) (File, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	file, ok := s.files[key(tenantID, policyID)]
	if !ok {
		return File{}, sentinel.ErrNotFound
	}
	content := make([]byte, len(file.Content))
	copy(content, file.Content)
	return File{Name: file.Name, Content: content}, nil
}

// Exists reports whether a retained file is present without copying it.
func (s *InMemory) Exists(_ context.Context, tenantID id.TenantID, policyID id.PolicyID) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	_, ok := s.files[key(tenantID, policyID)]
	return ok
}

func (s *InMemory) Delete(_ context.Context, tenantID id.TenantID, policyID id.PolicyID) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.files, key(tenantID, policyID))
	return nil
}
