//go:build integration

package cache_test

import (
	"context"
	"testing"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"planlens/internal/policy/models"
	"planlens/internal/policy/store/cache"
	"planlens/internal/policy/store/memory"
	id "planlens/pkg/domain"
	"planlens/pkg/testutil"
)

// Runs against the redis named by PLANLENS_TEST_REDIS_ADDR; skips otherwise.
func newTestClient(t *testing.T) *redis.Client {
	t.Helper()
	addr := testutil.RequireEnv(t, "PLANLENS_TEST_REDIS_ADDR")
	client := redis.NewClient(&redis.Options{Addr: addr})
	require.NoError(t, client.Ping(context.Background()).Err())
	t.Cleanup(func() { _ = client.Close() })
	return client
}

func TestCacheReadThroughAndInvalidation(t *testing.T) {
	ctx := context.Background()
	client := newTestClient(t)
	next := memory.NewInMemory()
	cached := cache.New(next, client, time.Minute)

	a, err := models.NewPolicyAnalysis(id.NewPolicyID(), "acme", "Acme Insurance", "PPO",
		[]models.PolicyField{{Name: "deductible", Value: "$500", Confidence: 0.92}}, time.Now().UTC())
	require.NoError(t, err)
	require.NoError(t, cached.Create(ctx, a))

	// First get primes the cache; a direct delete from the underlying store
	// then proves the second get is served from redis.
	first, err := cached.Get(ctx, "acme", a.ID)
	require.NoError(t, err)
	require.NoError(t, next.Delete(ctx, "acme", a.ID))

	second, err := cached.Get(ctx, "acme", a.ID)
	require.NoError(t, err)
	assert.Equal(t, first.ID, second.ID)

	// Recreate, then verify an update is visible immediately (invalidation).
	require.NoError(t, next.Create(ctx, a))
	planType := "HMO"
	_, err = cached.Execute(ctx, "acme", a.ID, func(rec *models.PolicyAnalysis) error {
		rec.ApplyUpdate(nil, &planType, nil, time.Now().UTC())
		return nil
	})
	require.NoError(t, err)

	after, err := cached.Get(ctx, "acme", a.ID)
	require.NoError(t, err)
	assert.Equal(t, "HMO", after.PlanType)
}
