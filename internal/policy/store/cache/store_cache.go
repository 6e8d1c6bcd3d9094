// Package cache provides a redis read-through decorator for a PolicyStore.
//
// Only Get is served from cache; List stays on the underlying store because
// filtered listings would need per-filter invalidation. Any redis failure
// degrades to the underlying store, so the cache can never make a correct
// store incorrect.
package cache

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"time"

	"github.com/redis/go-redis/v9"

	"planlens/internal/policy/models"
	"planlens/internal/policy/store"
	id "planlens/pkg/domain"
)

const keyPrefix = "planlens:policy:"

// CachedStore decorates a Store with a redis read-through cache.
type CachedStore struct {
	next   store.Store
	client *redis.Client
	ttl    time.Duration
	logger *slog.Logger
}

// Option configures the CachedStore.
type Option func(*CachedStore)

// WithLogger sets a logger for cache degradation warnings.
func WithLogger(logger *slog.Logger) Option {
	return func(c *CachedStore) {
		c.logger = logger
	}
}

// New wraps next with a redis cache. The client lifecycle is managed
// externally.
func New(next store.Store, client *redis.Client, ttl time.Duration, opts ...Option) *CachedStore {
	c := &CachedStore{next: next, client: client, ttl: ttl}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

func cacheKey(tenantID id.TenantID, policyID id.PolicyID) string {
	return keyPrefix + tenantID.String() + ":" + policyID.String()
}

func (c *CachedStore) Create(ctx context.Context, analysis *models.PolicyAnalysis) error {
	return c.next.Create(ctx, analysis)
}

func (c *CachedStore) Get(ctx context.Context, tenantID id.TenantID, policyID id.PolicyID) (*models.PolicyAnalysis, error) {
	key := cacheKey(tenantID, policyID)

	raw, err := c.client.Get(ctx, key).Bytes()
	if err == nil {
		var analysis models.PolicyAnalysis
		if err := json.Unmarshal(raw, &analysis); err == nil {
			return &analysis, nil
		}
		// Corrupt entry; fall through to the store and overwrite below.
	} else if !errors.Is(err, redis.Nil) {
		c.warn(ctx, "cache read failed", err)
	}

	analysis, err := c.next.Get(ctx, tenantID, policyID)
	if err != nil {
		return nil, err
	}
	c.prime(ctx, key, analysis)
	return analysis, nil
}

func (c *CachedStore) Execute(ctx context.Context, tenantID id.TenantID, policyID id.PolicyID, mutate func(*models.PolicyAnalysis) error) (*models.PolicyAnalysis, error) {
	updated, err := c.next.Execute(ctx, tenantID, policyID, mutate)
	if err != nil {
		return nil, err
	}
	c.invalidate(ctx, tenantID, policyID)
	return updated, nil
}

func (c *CachedStore) List(ctx context.Context, tenantID id.TenantID, filter models.ListFilter) ([]*models.PolicyAnalysis, error) {
	return c.next.List(ctx, tenantID, filter)
}

func (c *CachedStore) Delete(ctx context.Context, tenantID id.TenantID, policyID id.PolicyID) error {
	if err := c.next.Delete(ctx, tenantID, policyID); err != nil {
		return err
	}
	c.invalidate(ctx, tenantID, policyID)
	return nil
}

func (c *CachedStore) prime(ctx context.Context, key string, analysis *models.PolicyAnalysis) {
	raw, err := json.Marshal(analysis)
	if err != nil {
		return
	}
	if err := c.client.Set(ctx, key, raw, c.ttl).Err(); err != nil {
		c.warn(ctx, "cache write failed", err)
	}
}

func (c *CachedStore) invalidate(ctx context.Context, tenantID id.TenantID, policyID id.PolicyID) {
	if err := c.client.Del(ctx, cacheKey(tenantID, policyID)).Err(); err != nil {
		c.warn(ctx, "cache invalidation failed", err)
	}
}

func (c *CachedStore) warn(ctx context.Context, msg string, err error) {
	if c.logger != nil {
		c.logger.WarnContext(ctx, msg, "error", err)
	}
}
