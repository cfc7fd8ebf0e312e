package domain

import "time"

// PrivacyParams are the guarantees a matched audience was computed under.
type PrivacyParams struct {
	KAnonymityFloor int     `json:"k_anonymity_floor"`
	Epsilon         float64 `json:"differential_privacy_epsilon"`
}

// MatchedAudience is a privacy-aggregated overlap record produced upstream.
// Records whose overlap count falls below the k-anonymity floor are never
// servable. Read-only from this engine's perspective.
type MatchedAudience struct {
	ID              string
	SegmentID       string
	SegmentName     string
	TenantID        string
	PrincipalID     string
	OverlapCount    int64
	MatchRate       float64
	EngagementScore float64
	Privacy         PrivacyParams
	CreatedAt       time.Time
	ExpiresAt       time.Time
}
