package service

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"log/slog"

	"planlens/internal/audit"
	"planlens/internal/extraction"
	"planlens/internal/filestore"
	policymetrics "planlens/internal/policy/metrics"
	"planlens/internal/policy/models"
	"planlens/internal/policy/store"
	id "planlens/pkg/domain"
	dErrors "planlens/pkg/domain-errors"
	"planlens/pkg/platform/sentinel"
	"planlens/pkg/requestcontext"
)

// FileStore holds retained source documents alongside their analyses.
type FileStore interface {
	Put(ctx context.Context, tenantID id.TenantID, policyID id.PolicyID, file filestore.File) error
	Get(ctx context.Context, tenantID id.TenantID, policyID id.PolicyID) (filestore.File, error)
	Exists(ctx context.Context, tenantID id.TenantID, policyID id.PolicyID) bool
	Delete(ctx context.Context, tenantID id.TenantID, policyID id.PolicyID) error
}

// AuditPublisher records policy lifecycle events.
type AuditPublisher interface {
	Emit(ctx context.Context, event audit.Event) error
}

// defaultModelVersion tags fields produced by the built-in placeholder
// extractor.
const defaultModelVersion = "static-v1"

// Service orchestrates policy analysis lifecycle: validation, identity
// assignment, tenant scoping, extraction of uploads, file retention, audit,
// and metrics. Tenant isolation is enforced by requiring the tenant key on
// every operation and passing it to the store choke point unchanged.
type Service struct {
	store     store.Store
	files     FileStore
	extractor extraction.Extractor
	logger    *slog.Logger
	metrics   *policymetrics.Metrics
	auditor   AuditPublisher
}

// Option configures the Service.
type Option func(*Service)

func WithLogger(logger *slog.Logger) Option {
	return func(s *Service) { s.logger = logger }
}

func WithMetrics(m *policymetrics.Metrics) Option {
	return func(s *Service) { s.metrics = m }
}

func WithAuditPublisher(publisher AuditPublisher) Option {
	return func(s *Service) { s.auditor = publisher }
}

func WithFileStore(files FileStore) Option {
	return func(s *Service) { s.files = files }
}

func WithExtractor(extractor extraction.Extractor) Option {
	return func(s *Service) { s.extractor = extractor }
}

// New constructs a Service. The file store and extractor default to the
// in-process implementations when not supplied.
func New(policies store.Store, opts ...Option) *Service {
	s := &Service{store: policies}
	for _, opt := range opts {
		opt(s)
	}
	if s.files == nil {
		s.files = filestore.NewInMemory()
	}
	if s.extractor == nil {
		s.extractor = extraction.NewStatic(defaultModelVersion)
	}
	return s
}

// CreateResult is a created analysis plus the URL of its retained file, if
// any.
type CreateResult struct {
	Analysis *models.PolicyAnalysis
	FileURL  string
}

// Create builds and stores a new analysis for the tenant. Input is either
// already-extracted fields or a base64 document; for documents the
// extractor produces the initial field set and the raw file is retained
// when requested.
func (s *Service) Create(ctx context.Context, tenantID id.TenantID, req *models.CreatePolicyRequest) (*CreateResult, error) {
	if err := requireTenantID(tenantID); err != nil {
		return nil, err
	}
	start := requestcontext.Now(ctx)

	req.Normalize()
	if err := req.Validate(); err != nil {
		return nil, err
	}

	fields := req.Fields
	var raw []byte
	if req.FileB64 != "" {
		var err error
		raw, err = base64.StdEncoding.DecodeString(req.FileB64)
		if err != nil {
			return nil, dErrors.New(dErrors.CodeValidation, "file_b64 is not valid base64")
		}
		if len(fields) == 0 {
			fields, err = s.extractor.Extract(ctx, extraction.Document{Content: raw, Filename: req.Filename})
			if err != nil {
				return nil, dErrors.Wrap(err, dErrors.CodeValidation, "document could not be processed")
			}
		}
	}

	analysis, err := models.NewPolicyAnalysis(id.NewPolicyID(), tenantID, req.Provider, req.PlanType, fields, start)
	if err != nil {
		if dErrors.HasCode(err, dErrors.CodeInvariantViolation) {
			return nil, dErrors.New(dErrors.CodeValidation, dErrors.MessageOf(err))
		}
		return nil, err
	}
	if req.ExpiresAt != nil {
		if !req.ExpiresAt.After(start) {
			return nil, dErrors.New(dErrors.CodeValidation, "expires_at must be in the future")
		}
		exp := *req.ExpiresAt
		analysis.ExpiresAt = &exp
	}

	if err := s.store.Create(ctx, analysis); err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to create policy analysis")
	}

	result := &CreateResult{Analysis: analysis}
	if req.Retain {
		file := filestore.File{Name: req.Filename, Content: raw}
		if err := s.files.Put(ctx, tenantID, analysis.ID, file); err != nil {
			// Roll back so a half-created record never outlives its file.
			if delErr := s.store.Delete(ctx, tenantID, analysis.ID); delErr != nil {
				s.logError(ctx, "failed to roll back create after retention failure", delErr)
			}
			return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to retain policy document")
		}
		result.FileURL = fileURL(analysis.ID)
		s.emitAudit(ctx, audit.ActionFileRetained, tenantID, analysis.ID)
	}

	s.emitAudit(ctx, audit.ActionPolicyCreated, tenantID, analysis.ID)
	if s.metrics != nil {
		s.metrics.IncrementPoliciesCreated()
		s.metrics.ObserveCreate(start)
	}
	return result, nil
}

// Get returns the tenant's analysis with the URL of its retained file, if
// any. Absence and cross-tenant ownership are indistinguishable.
func (s *Service) Get(ctx context.Context, tenantID id.TenantID, policyID id.PolicyID) (*CreateResult, error) {
	if err := requireTenantID(tenantID); err != nil {
		return nil, err
	}
	start := requestcontext.Now(ctx)

	analysis, err := s.store.Get(ctx, tenantID, policyID)
	if err != nil {
		return nil, wrapStoreErr(err, "failed to get policy analysis")
	}

	result := &CreateResult{Analysis: analysis}
	if s.files.Exists(ctx, tenantID, policyID) {
		result.FileURL = fileURL(policyID)
	}
	if s.metrics != nil {
		s.metrics.ObserveGet(start)
	}
	return result, nil
}

// Update applies the partial update to the tenant's analysis atomically and
// returns the updated record. ID, tenant, and creation time never change.
func (s *Service) Update(ctx context.Context, tenantID id.TenantID, policyID id.PolicyID, req *models.UpdatePolicyRequest) (*models.PolicyAnalysis, error) {
	if err := requireTenantID(tenantID); err != nil {
		return nil, err
	}
	now := requestcontext.Now(ctx)

	req.Normalize()
	if err := req.Validate(); err != nil {
		return nil, err
	}

	var fields []models.PolicyField
	if req.Fields != nil {
		fields = *req.Fields
	}
	updated, err := s.store.Execute(ctx, tenantID, policyID, func(rec *models.PolicyAnalysis) error {
		rec.ApplyUpdate(req.Provider, req.PlanType, fields, now)
		return nil
	})
	if err != nil {
		return nil, wrapStoreErr(err, "failed to update policy analysis")
	}

	s.emitAudit(ctx, audit.ActionPolicyUpdated, tenantID, policyID)
	return updated, nil
}

// List returns the tenant's analyses in creation order, narrowed by the
// filter. An unknown tenant yields an empty sequence.
func (s *Service) List(ctx context.Context, tenantID id.TenantID, filter models.ListFilter) ([]*models.PolicyAnalysis, error) {
	if err := requireTenantID(tenantID); err != nil {
		return nil, err
	}
	start := requestcontext.Now(ctx)

	analyses, err := s.store.List(ctx, tenantID, filter)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to list policy analyses")
	}
	if s.metrics != nil {
		s.metrics.ObserveList(start)
	}
	return analyses, nil
}

// Delete removes the tenant's analysis and any retained file. Not
// idempotent: a second delete reports not found.
func (s *Service) Delete(ctx context.Context, tenantID id.TenantID, policyID id.PolicyID) error {
	if err := requireTenantID(tenantID); err != nil {
		return err
	}

	if err := s.store.Delete(ctx, tenantID, policyID); err != nil {
		return wrapStoreErr(err, "failed to delete policy analysis")
	}
	if err := s.files.Delete(ctx, tenantID, policyID); err != nil {
		s.logError(ctx, "failed to delete retained policy document", err)
	}

	s.emitAudit(ctx, audit.ActionPolicyDeleted, tenantID, policyID)
	if s.metrics != nil {
		s.metrics.IncrementPoliciesDeleted()
	}
	return nil
}

// GetFile returns the retained source document for the tenant's analysis.
// The analysis is resolved first so file access obeys the same tenant
// scoping and absence rules as the record itself.
func (s *Service) GetFile(ctx context.Context, tenantID id.TenantID, policyID id.PolicyID) (filestore.File, error) {
	if err := requireTenantID(tenantID); err != nil {
		return filestore.File{}, err
	}

	if _, err := s.store.Get(ctx, tenantID, policyID); err != nil {
		return filestore.File{}, wrapStoreErr(err, "failed to get policy analysis")
	}
	file, err := s.files.Get(ctx, tenantID, policyID)
	if err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			return filestore.File{}, dErrors.New(dErrors.CodeNotFound, "policy analysis has no retained document")
		}
		return filestore.File{}, dErrors.Wrap(err, dErrors.CodeInternal, "failed to load retained document")
	}
	return file, nil
}

func fileURL(policyID id.PolicyID) string {
	return fmt.Sprintf("/policies/%s/file", policyID)
}

func requireTenantID(tenantID id.TenantID) error {
	if tenantID.IsNil() {
		return dErrors.New(dErrors.CodeUnauthorized, "tenant identity is required")
	}
	return nil
}

// wrapStoreErr translates store sentinels into domain errors. Not-found is
// deliberately uninformative about whether the record is absent or owned by
// another tenant.
func wrapStoreErr(err error, internalMsg string) error {
	if errors.Is(err, sentinel.ErrNotFound) {
		return dErrors.New(dErrors.CodeNotFound, "policy analysis not found")
	}
	return dErrors.Wrap(err, dErrors.CodeInternal, internalMsg)
}

func (s *Service) emitAudit(ctx context.Context, action audit.Action, tenantID id.TenantID, policyID id.PolicyID) {
	if s.auditor == nil {
		return
	}
	event := audit.Event{
		TenantID:  tenantID,
		PolicyID:  policyID.String(),
		Action:    action,
		RequestID: requestcontext.RequestID(ctx),
	}
	if err := s.auditor.Emit(ctx, event); err != nil {
		s.logError(ctx, "failed to emit audit event", err)
	}
}

func (s *Service) logError(ctx context.Context, msg string, err error) {
	if s.logger != nil {
		s.logger.ErrorContext(ctx, msg, "error", err)
	}
}
