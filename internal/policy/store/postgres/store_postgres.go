// Package postgres provides the pgx-backed PolicyStore.
//
// Extracted fields are stored as JSONB; per-tenant creation order is kept by
// an identity column so List matches the memory store's ordering contract.
package postgres

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"planlens/internal/policy/models"
	id "planlens/pkg/domain"
	"planlens/pkg/platform/sentinel"
)

const migration = `
CREATE TABLE IF NOT EXISTS policy_analyses (
	id         UUID PRIMARY KEY,
	tenant_id  TEXT NOT NULL,
	provider   TEXT NOT NULL DEFAULT '',
	plan_type  TEXT NOT NULL DEFAULT '',
	fields     JSONB NOT NULL DEFAULT '[]',
	created_at TIMESTAMPTZ NOT NULL,
	updated_at TIMESTAMPTZ NOT NULL,
	expires_at TIMESTAMPTZ,
	seq        BIGINT GENERATED ALWAYS AS IDENTITY
);

CREATE INDEX IF NOT EXISTS idx_policy_analyses_tenant_seq
	ON policy_analyses (tenant_id, seq);
`

const selectColumns = `id, tenant_id, provider, plan_type, fields, created_at, updated_at, expires_at`

// PostgresStore persists policy analyses in PostgreSQL via pgxpool.
type PostgresStore struct {
	pool *pgxpool.Pool
}

// New connects a pool, verifies it with a ping, and applies the migration.
func New(ctx context.Context, connString string) (*PostgresStore, error) {
	cfg, err := pgxpool.ParseConfig(connString)
	if err != nil {
		return nil, fmt.Errorf("postgres: parse config: %w", err)
	}
	cfg.MaxConns = 10
	cfg.MinConns = 2
	cfg.MaxConnLifetime = 30 * time.Minute
	cfg.MaxConnIdleTime = 5 * time.Minute

	pool, err := pgxpool.NewWithConfig(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("postgres: create pool: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("postgres: ping: %w", err)
	}
	if _, err := pool.Exec(ctx, migration); err != nil {
		pool.Close()
		return nil, fmt.Errorf("postgres: migrate: %w", err)
	}
	return &PostgresStore{pool: pool}, nil
}

// NewWithPool wraps an existing pool. The caller owns the pool lifecycle;
// the migration is still applied.
func NewWithPool(ctx context.Context, pool *pgxpool.Pool) (*PostgresStore, error) {
	if _, err := pool.Exec(ctx, migration); err != nil {
		return nil, fmt.Errorf("postgres: migrate: %w", err)
	}
	return &PostgresStore{pool: pool}, nil
}

// Close releases the connection pool.
func (s *PostgresStore) Close() {
	s.pool.Close()
}

func (s *PostgresStore) Create(ctx context.Context, analysis *models.PolicyAnalysis) error {
	fields, err := json.Marshal(analysis.Fields)
	if err != nil {
		return fmt.Errorf("marshal fields: %w", err)
	}
	_, err = s.pool.Exec(ctx, `
		INSERT INTO policy_analyses (id, tenant_id, provider, plan_type, fields, created_at, updated_at, expires_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`,
		uuid.UUID(analysis.ID), analysis.TenantID.String(), analysis.Provider, analysis.PlanType,
		fields, analysis.CreatedAt, analysis.UpdatedAt, analysis.ExpiresAt,
	)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23505" {
			return sentinel.ErrConflict
		}
		return fmt.Errorf("insert policy analysis: %w", err)
	}
	return nil
}

func (s *PostgresStore) Get(ctx context.Context, tenantID id.TenantID, policyID id.PolicyID) (*models.PolicyAnalysis, error) {
	row := s.pool.QueryRow(ctx,
		`SELECT `+selectColumns+` FROM policy_analyses WHERE id = $1 AND tenant_id = $2`,
		uuid.UUID(policyID), tenantID.String(),
	)
	return scanAnalysis(row)
}

func (s *PostgresStore) Execute(ctx context.Context, tenantID id.TenantID, policyID id.PolicyID, mutate func(*models.PolicyAnalysis) error) (*models.PolicyAnalysis, error) {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("begin: %w", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	row := tx.QueryRow(ctx,
		`SELECT `+selectColumns+` FROM policy_analyses WHERE id = $1 AND tenant_id = $2 FOR UPDATE`,
		uuid.UUID(policyID), tenantID.String(),
	)
	analysis, err := scanAnalysis(row)
	if err != nil {
		return nil, err
	}

	if err := mutate(analysis); err != nil {
		return nil, err
	}

	fields, err := json.Marshal(analysis.Fields)
	if err != nil {
		return nil, fmt.Errorf("marshal fields: %w", err)
	}
	_, err = tx.Exec(ctx, `
		UPDATE policy_analyses
		SET provider = $1, plan_type = $2, fields = $3, updated_at = $4, expires_at = $5
		WHERE id = $6 AND tenant_id = $7`,
		analysis.Provider, analysis.PlanType, fields, analysis.UpdatedAt, analysis.ExpiresAt,
		uuid.UUID(policyID), tenantID.String(),
	)
	if err != nil {
		return nil, fmt.Errorf("update policy analysis: %w", err)
	}
	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("commit: %w", err)
	}
	return analysis, nil
}

func (s *PostgresStore) List(ctx context.Context, tenantID id.TenantID, filter models.ListFilter) ([]*models.PolicyAnalysis, error) {
	query := `SELECT ` + selectColumns + ` FROM policy_analyses WHERE tenant_id = $1`
	args := []any{tenantID.String()}
	if filter.Provider != "" {
		args = append(args, filter.Provider)
		query += fmt.Sprintf(" AND provider = $%d", len(args))
	}
	if filter.PlanType != "" {
		args = append(args, filter.PlanType)
		query += fmt.Sprintf(" AND plan_type = $%d", len(args))
	}
	query += " ORDER BY seq"

	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list policy analyses: %w", err)
	}
	defer rows.Close()

	out := make([]*models.PolicyAnalysis, 0)
	for rows.Next() {
		analysis, err := scanAnalysis(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, analysis)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list policy analyses: %w", err)
	}
	return out, nil
}

func (s *PostgresStore) Delete(ctx context.Context, tenantID id.TenantID, policyID id.PolicyID) error {
	tag, err := s.pool.Exec(ctx,
		`DELETE FROM policy_analyses WHERE id = $1 AND tenant_id = $2`,
		uuid.UUID(policyID), tenantID.String(),
	)
	if err != nil {
		return fmt.Errorf("delete policy analysis: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return sentinel.ErrNotFound
	}
	return nil
}

func scanAnalysis(row pgx.Row) (*models.PolicyAnalysis, error) {
	var (
		recordID  uuid.UUID
		tenant    string
		analysis  models.PolicyAnalysis
		rawFields []byte
	)
	err := row.Scan(&recordID, &tenant, &analysis.Provider, &analysis.PlanType,
		&rawFields, &analysis.CreatedAt, &analysis.UpdatedAt, &analysis.ExpiresAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, sentinel.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("scan policy analysis: %w", err)
	}
	analysis.ID = id.PolicyID(recordID)
	analysis.TenantID = id.TenantID(tenant)
	if err := json.Unmarshal(rawFields, &analysis.Fields); err != nil {
		return nil, fmt.Errorf("unmarshal fields: %w", err)
	}
	return &analysis, nil
}
