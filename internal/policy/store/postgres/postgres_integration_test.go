//go:build integration

package postgres_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/suite"

	"planlens/internal/policy/models"
	"planlens/internal/policy/store/postgres"
	id "planlens/pkg/domain"
	"planlens/pkg/platform/sentinel"
	"planlens/pkg/testutil"
)

// The suite runs against the database named by PLANLENS_TEST_DATABASE_URL and
// skips when the variable is unset, so `go test -tags integration` stays
// runnable on machines without a local postgres.
type PostgresStoreSuite struct {
	suite.Suite
	store *postgres.PostgresStore
}

func TestPostgresStoreSuite(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test in short mode")
	}
	suite.Run(t, new(PostgresStoreSuite))
}

func (s *PostgresStoreSuite) SetupSuite() {
	url := testutil.RequireEnv(s.T(), "PLANLENS_TEST_DATABASE_URL")
	store, err := postgres.New(context.Background(), url)
	s.Require().NoError(err)
	s.store = store
}

func (s *PostgresStoreSuite) TearDownSuite() {
	if s.store != nil {
		s.store.Close()
	}
}

func (s *PostgresStoreSuite) newAnalysis(tenant id.TenantID, provider, planType string) *models.PolicyAnalysis {
	a, err := models.NewPolicyAnalysis(id.NewPolicyID(), tenant, provider, planType,
		[]models.PolicyField{{Name: "deductible", Value: "$500", Confidence: 0.92}}, time.Now().UTC())
	s.Require().NoError(err)
	return a
}

// Each test scopes itself to a fresh random tenant instead of truncating, so
// suites can share a database.
func (s *PostgresStoreSuite) freshTenant() id.TenantID {
	return id.TenantID("it-" + id.NewPolicyID().String())
}

func (s *PostgresStoreSuite) TestCreateGetRoundTrip() {
	ctx := context.Background()
	tenant := s.freshTenant()

	a := s.newAnalysis(tenant, "Acme Insurance", "PPO")
	s.Require().NoError(s.store.Create(ctx, a))

	found, err := s.store.Get(ctx, tenant, a.ID)
	s.Require().NoError(err)
	s.Equal(a.ID, found.ID)
	s.Equal(tenant, found.TenantID)
	s.Require().Len(found.Fields, 1)
	s.Equal("deductible", found.Fields[0].Name)
	s.InDelta(0.92, found.Fields[0].Confidence, 1e-9)
}

func (s *PostgresStoreSuite) TestTenantScopingInQueries() {
	ctx := context.Background()
	tenant := s.freshTenant()

	a := s.newAnalysis(tenant, "Acme Insurance", "PPO")
	s.Require().NoError(s.store.Create(ctx, a))

	_, err := s.store.Get(ctx, s.freshTenant(), a.ID)
	s.Require().ErrorIs(err, sentinel.ErrNotFound)

	s.Require().ErrorIs(s.store.Delete(ctx, s.freshTenant(), a.ID), sentinel.ErrNotFound)
}

func (s *PostgresStoreSuite) TestExecuteUpdatesUnderRowLock() {
	ctx := context.Background()
	tenant := s.freshTenant()

	a := s.newAnalysis(tenant, "Acme Insurance", "PPO")
	s.Require().NoError(s.store.Create(ctx, a))

	planType := "HMO"
	updated, err := s.store.Execute(ctx, tenant, a.ID, func(rec *models.PolicyAnalysis) error {
		rec.ApplyUpdate(nil, &planType, nil, time.Now().UTC())
		return nil
	})
	s.Require().NoError(err)
	s.Equal("HMO", updated.PlanType)
	s.True(updated.UpdatedAt.After(a.UpdatedAt))

	found, err := s.store.Get(ctx, tenant, a.ID)
	s.Require().NoError(err)
	s.Equal("HMO", found.PlanType)
	s.Equal("Acme Insurance", found.Provider)
}

func (s *PostgresStoreSuite) TestListOrderAndFilters() {
	ctx := context.Background()
	tenant := s.freshTenant()

	first := s.newAnalysis(tenant, "Acme Insurance", "PPO")
	second := s.newAnalysis(tenant, "Globex Mutual", "HMO")
	s.Require().NoError(s.store.Create(ctx, first))
	s.Require().NoError(s.store.Create(ctx, second))

	all, err := s.store.List(ctx, tenant, models.ListFilter{})
	s.Require().NoError(err)
	s.Require().Len(all, 2)
	s.Equal(first.ID, all[0].ID)
	s.Equal(second.ID, all[1].ID)

	hmo, err := s.store.List(ctx, tenant, models.ListFilter{PlanType: "HMO"})
	s.Require().NoError(err)
	s.Require().Len(hmo, 1)
	s.Equal(second.ID, hmo[0].ID)
}

func (s *PostgresStoreSuite) TestDeleteIsNotIdempotent() {
	ctx := context.Background()
	tenant := s.freshTenant()

	a := s.newAnalysis(tenant, "Acme Insurance", "PPO")
	s.Require().NoError(s.store.Create(ctx, a))

	s.Require().NoError(s.store.Delete(ctx, tenant, a.ID))
	s.Require().ErrorIs(s.store.Delete(ctx, tenant, a.ID), sentinel.ErrNotFound)
}
