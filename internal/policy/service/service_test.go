package service

import (
	"context"
	"encoding/base64"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/suite"

	"planlens/internal/audit"
	"planlens/internal/policy/models"
	"planlens/internal/policy/store/memory"
	id "planlens/pkg/domain"
	dErrors "planlens/pkg/domain-errors"
	"planlens/pkg/requestcontext"
)

// recordingPublisher captures emitted audit events synchronously.
type recordingPublisher struct {
	mu     sync.Mutex
	events []audit.Event
}

func (p *recordingPublisher) Emit(_ context.Context, event audit.Event) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, event)
	return nil
}

func (p *recordingPublisher) actions() []audit.Action {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]audit.Action, len(p.events))
	for i, e := range p.events {
		out[i] = e.Action
	}
	return out
}

type PolicyServiceSuite struct {
	suite.Suite
	service *Service
	files   FileStore
	auditor *recordingPublisher
	ctx     context.Context
	now     time.Time

	acme   id.TenantID
	globex id.TenantID
}

func TestPolicyServiceSuite(t *testing.T) {
	suite.Run(t, new(PolicyServiceSuite))
}

func (s *PolicyServiceSuite) SetupTest() {
	s.auditor = &recordingPublisher{}
	svc := New(memory.NewInMemory(), WithAuditPublisher(s.auditor))
	s.service = svc
	s.files = svc.files

	s.now = time.Date(2026, 3, 14, 9, 30, 0, 0, time.UTC)
	s.ctx = requestcontext.WithTime(context.Background(), s.now)
	s.acme = id.TenantID("acme")
	s.globex = id.TenantID("globex")
}

func (s *PolicyServiceSuite) createInline(tenantID id.TenantID, provider, planType string) *models.PolicyAnalysis {
	result, err := s.service.Create(s.ctx, tenantID, &models.CreatePolicyRequest{
		Provider: provider,
		PlanType: planType,
		Fields: []models.PolicyField{
			{Name: "deductible", Value: "500", Confidence: 0.92},
		},
	})
	s.Require().NoError(err)
	return result.Analysis
}

func (s *PolicyServiceSuite) TestCreateInlineFields() {
	result, err := s.service.Create(s.ctx, s.acme, &models.CreatePolicyRequest{
		Provider: "Aetna",
		PlanType: "HMO",
		Fields: []models.PolicyField{
			{Name: "deductible", Value: "500", Confidence: 0.92},
			{Name: "copay", Value: "25", Confidence: 0.88},
		},
	})
	s.Require().NoError(err)

	analysis := result.Analysis
	s.False(analysis.ID.IsNil())
	s.Equal(s.acme, analysis.TenantID)
	s.Equal("Aetna", analysis.Provider)
	s.Equal(s.now, analysis.CreatedAt)
	s.Equal(analysis.CreatedAt, analysis.UpdatedAt)
	s.Len(analysis.Fields, 2)
	s.Empty(result.FileURL, "inline creates retain no file")

	s.Equal([]audit.Action{audit.ActionPolicyCreated}, s.auditor.actions())
}

func (s *PolicyServiceSuite) TestCreateRejectsInvalidConfidence() {
	_, err := s.service.Create(s.ctx, s.acme, &models.CreatePolicyRequest{
		Fields: []models.PolicyField{
			{Name: "deductible", Value: "500", Confidence: 1.5},
		},
	})
	s.Require().Error(err)
	s.True(dErrors.HasCode(err, dErrors.CodeValidation))

	listed, err := s.service.List(s.ctx, s.acme, models.ListFilter{})
	s.Require().NoError(err)
	s.Empty(listed, "rejected creates leave no state behind")
}

func (s *PolicyServiceSuite) TestCreateWithRetentionDeadline() {
	expires := s.now.Add(90 * 24 * time.Hour)
	result, err := s.service.Create(s.ctx, s.acme, &models.CreatePolicyRequest{
		Fields:    []models.PolicyField{{Name: "deductible", Value: "500", Confidence: 0.92}},
		ExpiresAt: &expires,
	})
	s.Require().NoError(err)
	s.Require().NotNil(result.Analysis.ExpiresAt)
	s.Equal(expires, *result.Analysis.ExpiresAt)

	past := s.now.Add(-time.Hour)
	_, err = s.service.Create(s.ctx, s.acme, &models.CreatePolicyRequest{
		Fields:    []models.PolicyField{{Name: "deductible", Value: "500", Confidence: 0.92}},
		ExpiresAt: &past,
	})
	s.Require().Error(err)
	s.True(dErrors.HasCode(err, dErrors.CodeValidation))
}

func (s *PolicyServiceSuite) TestCreateRejectsEmptyInput() {
	_, err := s.service.Create(s.ctx, s.acme, &models.CreatePolicyRequest{})
	s.Require().Error(err)
	s.True(dErrors.HasCode(err, dErrors.CodeValidation))
}

func (s *PolicyServiceSuite) TestCreateFromUploadExtractsFields() {
	doc := []byte("%PDF-1.4 sample policy document")
	result, err := s.service.Create(s.ctx, s.acme, &models.CreatePolicyRequest{
		Provider: "Cigna",
		FileB64:  base64.StdEncoding.EncodeToString(doc),
		Filename: "policy.pdf",
	})
	s.Require().NoError(err)

	s.NotEmpty(result.Analysis.Fields, "extraction seeds the field set")
	for _, field := range result.Analysis.Fields {
		s.NotEmpty(field.ModelVersion)
	}
	s.Empty(result.FileURL, "file not retained unless requested")
	s.False(s.files.Exists(s.ctx, s.acme, result.Analysis.ID))
}

func (s *PolicyServiceSuite) TestCreateRetainsUploadedFile() {
	doc := []byte("%PDF-1.4 sample policy document")
	result, err := s.service.Create(s.ctx, s.acme, &models.CreatePolicyRequest{
		FileB64:  base64.StdEncoding.EncodeToString(doc),
		Filename: "policy.pdf",
		Retain:   true,
	})
	s.Require().NoError(err)

	s.Equal("/policies/"+result.Analysis.ID.String()+"/file", result.FileURL)

	file, err := s.service.GetFile(s.ctx, s.acme, result.Analysis.ID)
	s.Require().NoError(err)
	s.Equal("policy.pdf", file.Name)
	s.Equal(doc, file.Content)

	s.Contains(s.auditor.actions(), audit.ActionFileRetained)
}

func (s *PolicyServiceSuite) TestCreateRejectsMalformedBase64() {
	_, err := s.service.Create(s.ctx, s.acme, &models.CreatePolicyRequest{
		FileB64: "not-base64!!",
	})
	s.Require().Error(err)
	s.True(dErrors.HasCode(err, dErrors.CodeValidation))
}

func (s *PolicyServiceSuite) TestGetReturnsFileURLOnlyWhenRetained() {
	inline := s.createInline(s.acme, "Aetna", "HMO")

	result, err := s.service.Get(s.ctx, s.acme, inline.ID)
	s.Require().NoError(err)
	s.Empty(result.FileURL)

	retained, err := s.service.Create(s.ctx, s.acme, &models.CreatePolicyRequest{
		FileB64: base64.StdEncoding.EncodeToString([]byte("doc")),
		Retain:  true,
	})
	s.Require().NoError(err)

	result, err = s.service.Get(s.ctx, s.acme, retained.Analysis.ID)
	s.Require().NoError(err)
	s.Equal("/policies/"+retained.Analysis.ID.String()+"/file", result.FileURL)
}

func (s *PolicyServiceSuite) TestGetHidesOtherTenantsRecords() {
	analysis := s.createInline(s.acme, "Aetna", "HMO")

	_, err := s.service.Get(s.ctx, s.globex, analysis.ID)
	s.Require().Error(err)
	s.True(dErrors.HasCode(err, dErrors.CodeNotFound),
		"cross-tenant access reads as absence")
}

func (s *PolicyServiceSuite) TestUpdatePartial() {
	analysis := s.createInline(s.acme, "Aetna", "HMO")

	later := s.now.Add(5 * time.Minute)
	provider := "Cigna"
	updated, err := s.service.Update(requestcontext.WithTime(s.ctx, later), s.acme, analysis.ID,
		&models.UpdatePolicyRequest{Provider: &provider})
	s.Require().NoError(err)

	s.Equal("Cigna", updated.Provider)
	s.Equal("HMO", updated.PlanType, "unmentioned attributes unchanged")
	s.Equal(analysis.Fields, updated.Fields)
	s.Equal(analysis.CreatedAt, updated.CreatedAt)
	s.Equal(later, updated.UpdatedAt)
	s.Contains(s.auditor.actions(), audit.ActionPolicyUpdated)
}

func (s *PolicyServiceSuite) TestUpdateRejectsEmptyRequest() {
	analysis := s.createInline(s.acme, "Aetna", "HMO")

	_, err := s.service.Update(s.ctx, s.acme, analysis.ID, &models.UpdatePolicyRequest{})
	s.Require().Error(err)
	s.True(dErrors.HasCode(err, dErrors.CodeValidation))
}

func (s *PolicyServiceSuite) TestUpdateRejectsInvalidFieldsWithoutStateChange() {
	analysis := s.createInline(s.acme, "Aetna", "HMO")

	bad := []models.PolicyField{{Name: "deductible", Value: "500", Confidence: -0.1}}
	_, err := s.service.Update(s.ctx, s.acme, analysis.ID,
		&models.UpdatePolicyRequest{Fields: &bad})
	s.Require().Error(err)
	s.True(dErrors.HasCode(err, dErrors.CodeValidation))

	current, err := s.service.Get(s.ctx, s.acme, analysis.ID)
	s.Require().NoError(err)
	s.Equal(analysis.Fields, current.Analysis.Fields)
	s.Equal(analysis.UpdatedAt, current.Analysis.UpdatedAt)
}

func (s *PolicyServiceSuite) TestUpdateMissingRecord() {
	provider := "Cigna"
	_, err := s.service.Update(s.ctx, s.acme, id.NewPolicyID(),
		&models.UpdatePolicyRequest{Provider: &provider})
	s.Require().Error(err)
	s.True(dErrors.HasCode(err, dErrors.CodeNotFound))
}

func (s *PolicyServiceSuite) TestListFiltersAndOrdering() {
	first := s.createInline(s.acme, "Aetna", "HMO")
	second := s.createInline(s.acme, "Cigna", "PPO")
	third := s.createInline(s.acme, "Aetna", "PPO")
	s.createInline(s.globex, "Aetna", "HMO")

	all, err := s.service.List(s.ctx, s.acme, models.ListFilter{})
	s.Require().NoError(err)
	s.Require().Len(all, 3, "listing never crosses tenants")
	s.Equal([]id.PolicyID{first.ID, second.ID, third.ID},
		[]id.PolicyID{all[0].ID, all[1].ID, all[2].ID})

	aetna, err := s.service.List(s.ctx, s.acme, models.ListFilter{Provider: "Aetna"})
	s.Require().NoError(err)
	s.Len(aetna, 2)

	both, err := s.service.List(s.ctx, s.acme, models.ListFilter{Provider: "Aetna", PlanType: "PPO"})
	s.Require().NoError(err)
	s.Require().Len(both, 1)
	s.Equal(third.ID, both[0].ID)

	lower, err := s.service.List(s.ctx, s.acme, models.ListFilter{Provider: "aetna"})
	s.Require().NoError(err)
	s.Empty(lower, "filter matching is case-sensitive")
}

func (s *PolicyServiceSuite) TestListUnknownTenantIsEmpty() {
	listed, err := s.service.List(s.ctx, id.TenantID("nobody"), models.ListFilter{})
	s.Require().NoError(err)
	s.Empty(listed)
}

func (s *PolicyServiceSuite) TestDeleteRemovesRecordAndFile() {
	result, err := s.service.Create(s.ctx, s.acme, &models.CreatePolicyRequest{
		FileB64: base64.StdEncoding.EncodeToString([]byte("doc")),
		Retain:  true,
	})
	s.Require().NoError(err)
	policyID := result.Analysis.ID

	s.Require().NoError(s.service.Delete(s.ctx, s.acme, policyID))

	_, err = s.service.Get(s.ctx, s.acme, policyID)
	s.True(dErrors.HasCode(err, dErrors.CodeNotFound))
	s.False(s.files.Exists(s.ctx, s.acme, policyID), "retained file shares the record lifecycle")
	s.Contains(s.auditor.actions(), audit.ActionPolicyDeleted)
}

func (s *PolicyServiceSuite) TestDeleteIsNotIdempotent() {
	analysis := s.createInline(s.acme, "Aetna", "HMO")

	s.Require().NoError(s.service.Delete(s.ctx, s.acme, analysis.ID))

	err := s.service.Delete(s.ctx, s.acme, analysis.ID)
	s.Require().Error(err)
	s.True(dErrors.HasCode(err, dErrors.CodeNotFound))
}

func (s *PolicyServiceSuite) TestDeleteHidesOtherTenantsRecords() {
	analysis := s.createInline(s.acme, "Aetna", "HMO")

	err := s.service.Delete(s.ctx, s.globex, analysis.ID)
	s.Require().Error(err)
	s.True(dErrors.HasCode(err, dErrors.CodeNotFound))

	_, err = s.service.Get(s.ctx, s.acme, analysis.ID)
	s.NoError(err, "record survives a cross-tenant delete attempt")
}

func (s *PolicyServiceSuite) TestGetFileWithoutRetention() {
	analysis := s.createInline(s.acme, "Aetna", "HMO")

	_, err := s.service.GetFile(s.ctx, s.acme, analysis.ID)
	s.Require().Error(err)
	s.True(dErrors.HasCode(err, dErrors.CodeNotFound))
}

func (s *PolicyServiceSuite) TestGetFileHidesOtherTenantsFiles() {
	result, err := s.service.Create(s.ctx, s.acme, &models.CreatePolicyRequest{
		FileB64: base64.StdEncoding.EncodeToString([]byte("doc")),
		Retain:  true,
	})
	s.Require().NoError(err)

	_, err = s.service.GetFile(s.ctx, s.globex, result.Analysis.ID)
	s.Require().Error(err)
	s.True(dErrors.HasCode(err, dErrors.CodeNotFound))
}

func (s *PolicyServiceSuite) TestOperationsRequireTenant() {
	_, err := s.service.Create(s.ctx, "", &models.CreatePolicyRequest{
		Fields: []models.PolicyField{{Name: "deductible", Value: "500", Confidence: 0.9}},
	})
	s.True(dErrors.HasCode(err, dErrors.CodeUnauthorized))

	_, err = s.service.List(s.ctx, "", models.ListFilter{})
	s.True(dErrors.HasCode(err, dErrors.CodeUnauthorized))
}
