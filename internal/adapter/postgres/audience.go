package postgres

import (
	"context"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"adcp-engine/internal/core/domain"
)

// AudienceStore implements port.AudienceAccessor over the matched_audiences
// table. Records whose overlap count falls below their k-anonymity floor or
// the engine-wide minimum floor, or that have expired, are never returned.
type AudienceStore struct {
	pool     *pgxpool.Pool
	minFloor int64
}

// NewAudienceStore returns an audience accessor backed by the pool. minFloor
// is the engine-wide k-anonymity minimum applied alongside each record's own
// floor.
func NewAudienceStore(pool *pgxpool.Pool, minFloor int64) *AudienceStore {
	return &AudienceStore{pool: pool, minFloor: minFloor}
}

// GetAudiences returns servable overlap records by segment id.
func (s *AudienceStore) GetAudiences(ctx context.Context, segmentIDs []string) (map[string]domain.MatchedAudience, error) {
	rows, err := s.pool.Query(ctx, `SELECT id, segment_id, segment_name, tenant_id,
		principal_id, overlap_count, match_rate, engagement_score,
		k_anonymity_floor, dp_epsilon, created_at, COALESCE(expires_at, 'infinity'::timestamptz)
		FROM matched_audiences
		WHERE segment_id = ANY($1)
		  AND overlap_count >= GREATEST(k_anonymity_floor, $2)
		  AND (expires_at IS NULL OR expires_at > now())`,
		segmentIDs, s.minFloor)
	if err != nil {
		return nil, err
	}

	audiences, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (domain.MatchedAudience, error) {
		var a domain.MatchedAudience
		err := row.Scan(&a.ID, &a.SegmentID, &a.SegmentName, &a.TenantID,
			&a.PrincipalID, &a.OverlapCount, &a.MatchRate, &a.EngagementScore,
			&a.Privacy.KAnonymityFloor, &a.Privacy.Epsilon, &a.CreatedAt, &a.ExpiresAt)
		return a, err
	})
	if err != nil {
		return nil, err
	}

	result := make(map[string]domain.MatchedAudience, len(audiences))
	for _, a := range audiences {
		result[a.SegmentID] = a
	}
	return result, nil
}
