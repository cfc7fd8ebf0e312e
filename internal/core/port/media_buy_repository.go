package port

import (
	"context"
	"time"

	"adcp-engine/internal/core/domain"
)

// Window bounds a delivery aggregation. The zero value means the full
// history of the buy.
type Window struct {
	From time.Time
	To   time.Time
}

// DeliverySums is the raw aggregation result over delivery rows. RowCount
// distinguishes a buy with zero rows from one that summed to zero.
type DeliverySums struct {
	Totals   domain.DeliveryTotals
	RowCount int64
}

// DeliveryBreakdown groups the same underlying rows by day, device and geo.
type DeliveryBreakdown struct {
	ByDay    []BreakdownRow
	ByDevice []BreakdownRow
	ByGeo    []BreakdownRow
}

// MediaBuyRepository is the persistence port for media buys. Implementations
// must create a buy and its packages atomically and serialize concurrent
// updates to the same buy while leaving distinct buys independent.
type MediaBuyRepository interface {
	// CreateMediaBuy persists the buy with all its packages and format
	// references as one atomic unit. Partial package creation is not a
	// valid terminal state.
	CreateMediaBuy(ctx context.Context, buy *domain.MediaBuy) error

	// GetMediaBuy returns the buy and its packages, scoped to the owning
	// principal. Returns domain.ErrMediaBuyNotFound when absent.
	GetMediaBuy(ctx context.Context, mediaBuyID, principalID string) (*domain.MediaBuy, error)

	// UpdateMediaBuy loads the buy under a per-buy lock, invokes apply to
	// mutate it, and persists the result. An error from apply aborts the
	// update with nothing written. Concurrent updates to the same buy
	// serialize; reads observe either the pre- or post-update snapshot,
	// never a torn one.
	UpdateMediaBuy(ctx context.Context, mediaBuyID, principalID string, apply func(*domain.MediaBuy) error) (*domain.MediaBuy, error)

	// SumDelivery aggregates delivery rows for the buy over the window.
	SumDelivery(ctx context.Context, buyID string, window Window) (DeliverySums, error)

	// DeliveryBreakdown groups delivery rows by day, device and geo.
	DeliveryBreakdown(ctx context.Context, buyID string, window Window) (*DeliveryBreakdown, error)

	// RefreshDeliveryCache writes fresh totals into the buy's cached
	// delivery counters. Cache-only: it never touches lifecycle state.
	RefreshDeliveryCache(ctx context.Context, buyID string, totals domain.DeliveryTotals) error
}

// CatalogAccessor is the read-only lookup of sellable inventory. One batched
// call serves a whole validation pass.
type CatalogAccessor interface {
	// GetProducts returns products by product id, scoped to the tenant.
	// Missing ids are simply absent from the map, not an error.
	GetProducts(ctx context.Context, tenantID string, productIDs []string) (map[string]domain.Product, error)
}

// AudienceAccessor is the read-only lookup of previously computed
// audience-overlap records. Records below the k-anonymity floor are never
// returned.
type AudienceAccessor interface {
	GetAudiences(ctx context.Context, segmentIDs []string) (map[string]domain.MatchedAudience, error)
}

// AuditRecorder appends immutable records of state-changing operations. A
// state-changing operation is not finished until its audit entry is durable.
type AuditRecorder interface {
	Record(ctx context.Context, entry domain.AuditEntry) error
}

// PrincipalStore resolves authenticated callers from their bearer tokens.
type PrincipalStore interface {
	FindByToken(ctx context.Context, token string) (*domain.Principal, error)
}
