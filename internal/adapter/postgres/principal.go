package postgres

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"adcp-engine/internal/core/domain"
)

// PrincipalStore implements port.PrincipalStore over the principals table.
type PrincipalStore struct {
	pool *pgxpool.Pool
}

// NewPrincipalStore returns a principal store backed by the pool.
func NewPrincipalStore(pool *pgxpool.Pool) *PrincipalStore {
	return &PrincipalStore{pool: pool}
}

// FindByToken resolves an active principal from its bearer token.
func (s *PrincipalStore) FindByToken(ctx context.Context, token string) (*domain.Principal, error) {
	var (
		p    domain.Principal
		tier string
	)
	err := s.pool.QueryRow(ctx, `SELECT id, tenant_id, principal_id, name,
		access_tier, is_active, created_at
		FROM principals WHERE auth_token = $1 AND is_active`, token).
		Scan(&p.ID, &p.TenantID, &p.PrincipalID, &p.Name, &tier, &p.Active, &p.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, domain.ErrPrincipalNotFound
	}
	if err != nil {
		return nil, err
	}
	p.AccessTier = domain.AccessTier(tier)
	return &p, nil
}
