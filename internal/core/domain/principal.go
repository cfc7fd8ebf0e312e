package domain

import (
	"fmt"
	"time"
)

// AccessTier is the ordered access level of a principal. Higher tiers map to
// larger pricing discounts.
type AccessTier string

const (
	TierStandard   AccessTier = "standard"
	TierPremium    AccessTier = "premium"
	TierEnterprise AccessTier = "enterprise"
)

// ParseAccessTier converts untyped external input into an AccessTier.
func ParseAccessTier(s string) (AccessTier, error) {
	switch AccessTier(s) {
	case TierStandard, TierPremium, TierEnterprise:
		return AccessTier(s), nil
	}
	return "", fmt.Errorf("unknown access tier %q", s)
}

// DiscountFraction returns the discount applied to base prices for the tier.
func (t AccessTier) DiscountFraction() float64 {
	switch t {
	case TierPremium:
		return 0.10
	case TierEnterprise:
		return 0.15
	default:
		return 0.0
	}
}

// Principal is an authenticated advertiser. It is immutable for the duration
// of a request; account management lives outside this engine.
type Principal struct {
	ID          string
	TenantID    string
	PrincipalID string
	Name        string
	AccessTier  AccessTier
	Active      bool
	CreatedAt   time.Time
}
