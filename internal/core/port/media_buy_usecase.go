package port

import (
	"context"
	"time"

	"adcp-engine/internal/core/domain"
)

// MediaBuyUseCase defines the business operations exposed by the media-buy
// engine. This interface is the primary port into the application domain.
type MediaBuyUseCase interface {
	// CreateMediaBuy validates the request exhaustively, resolves
	// principal-specific pricing per package, persists the buy and its
	// packages as one atomic unit in pending_creative, and records an
	// audit entry. On validation failure nothing is persisted and the
	// returned error is a *domain.ViolationError carrying every
	// violation found.
	CreateMediaBuy(ctx context.Context, principal domain.Principal, req CreateMediaBuyReq) (*MediaBuySummary, error)

	// GetMediaBuy returns the buy and its packages. No side effects;
	// available in any state including terminal ones.
	GetMediaBuy(ctx context.Context, principal domain.Principal, mediaBuyID string) (*domain.MediaBuy, error)

	// UpdateMediaBuy applies a partial field set, revalidating only the
	// fields being changed. Illegal lifecycle transitions fail with a
	// *domain.TransitionError. On success the derived total budget is
	// recomputed and an audit entry captures old and new values.
	UpdateMediaBuy(ctx context.Context, principal domain.Principal, mediaBuyID string, req UpdateMediaBuyReq) (*domain.MediaBuy, error)

	// CancelMediaBuy moves the buy to cancelled. Legal only from
	// pending_creative or active. History is preserved.
	CancelMediaBuy(ctx context.Context, principal domain.Principal, mediaBuyID string) (*domain.MediaBuy, error)

	// GetDelivery aggregates delivery rows into totals, guarded rates and
	// pacing health. A buy with no rows yet reports all-zero metrics and
	// pacing "not_started".
	GetDelivery(ctx context.Context, principal domain.Principal, mediaBuyID string) (*DeliverySummary, error)

	// GetReport additionally breaks delivery down by day, device and geo
	// over the requested range.
	GetReport(ctx context.Context, principal domain.Principal, mediaBuyID string, dateRange string) (*DeliveryReport, error)

	// ListCreativeFormats returns the static creative-format catalog.
	ListCreativeFormats() []FormatSpec
}

// FormatRefInput is one creative-format reference as submitted by a caller.
type FormatRefInput struct {
	AgentURL string `json:"agent_url"`
	ID       string `json:"id"`
}

// PackageInput is one line item of a create request. Budget is in minor
// units of the buy's currency. Pacing arrives untyped and is parsed against
// the closed enum during validation.
type PackageInput struct {
	BuyerRef        string           `json:"buyer_ref"`
	ProductID       string           `json:"product_id"`
	Budget          int64            `json:"budget"`
	PricingOptionID string           `json:"pricing_option_id"`
	Pacing          string           `json:"pacing"`
	Formats         []FormatRefInput `json:"format_ids"`
	Targeting       domain.Targeting `json:"targeting_overlay,omitempty"`
}

// CreateMediaBuyReq is the input to CreateMediaBuy.
type CreateMediaBuyReq struct {
	BuyerRef    string         `json:"buyer_ref"`
	Currency    string         `json:"currency"`
	Packages    []PackageInput `json:"packages"`
	FlightStart time.Time      `json:"flight_start_date"`
	FlightEnd   time.Time      `json:"flight_end_date"`
}

// PackageUpdate is a partial update to one package. Nil fields are left
// unchanged.
type PackageUpdate struct {
	PackageID string           `json:"package_id"`
	Budget    *int64           `json:"budget,omitempty"`
	Pacing    *string          `json:"pacing,omitempty"`
	Targeting domain.Targeting `json:"targeting_overlay,omitempty"`
}

// UpdateMediaBuyReq is a partial field set for UpdateMediaBuy.
type UpdateMediaBuyReq struct {
	Packages    []PackageUpdate `json:"packages,omitempty"`
	FlightStart *time.Time      `json:"flight_start_date,omitempty"`
	FlightEnd   *time.Time      `json:"flight_end_date,omitempty"`
	Status      *string         `json:"status,omitempty"`
}

// MediaBuySummary is the create response returned to the caller.
type MediaBuySummary struct {
	MediaBuyID       string         `json:"media_buy_id"`
	Status           domain.Status  `json:"status"`
	TotalBudget      domain.Money   `json:"total_budget"`
	FlightStart      time.Time      `json:"flight_start_date"`
	FlightEnd        time.Time      `json:"flight_end_date"`
	CreativeDeadline time.Time      `json:"creative_deadline"`
	PackageCount     int            `json:"package_count"`
	Workflow         map[string]any `json:"workflow"`
	CreatedAt        time.Time      `json:"created_at"`
}

// PacingHealth classifies spend fraction against elapsed-time fraction.
type PacingHealth string

const (
	PacingNotStarted PacingHealth = "not_started"
	PacingOnTrack    PacingHealth = "on_track"
	PacingAhead      PacingHealth = "ahead"
	PacingBehind     PacingHealth = "behind"
)

// PerformanceRates are the division-guarded derived metrics.
type PerformanceRates struct {
	CTR float64      `json:"ctr"` // clicks / impressions
	CVR float64      `json:"cvr"` // conversions / clicks
	CPM domain.Money `json:"cpm"`
	CPC domain.Money `json:"cpc"`
	CPA domain.Money `json:"cpa"`
}

// PacingSummary compares budget consumption against flight progress.
type PacingSummary struct {
	SpendFraction float64      `json:"spend_fraction"`
	TimeFraction  float64      `json:"time_fraction"`
	Health        PacingHealth `json:"health"`
	DaysElapsed   int          `json:"days_elapsed"`
	DaysTotal     int          `json:"days_total"`
}

// DeliverySummary is the GetDelivery response.
type DeliverySummary struct {
	MediaBuyID  string                `json:"media_buy_id"`
	Status      domain.Status         `json:"status"`
	TotalBudget domain.Money          `json:"total_budget"`
	Remaining   domain.Money          `json:"remaining_budget"`
	Totals      domain.DeliveryTotals `json:"delivery"`
	Rates       PerformanceRates      `json:"performance"`
	Pacing      PacingSummary         `json:"pacing"`
}

// BreakdownRow is one grouped slice of a delivery report.
type BreakdownRow struct {
	Key         string       `json:"key"`
	Impressions int64        `json:"impressions"`
	Clicks      int64        `json:"clicks"`
	Conversions int64        `json:"conversions"`
	Spend       domain.Money `json:"spend"`
	CTR         float64      `json:"ctr"`
}

// DeliveryReport is the GetReport response. Overall's totals and rates cover
// the requested range; its remaining budget and pacing always reflect the
// full flight.
type DeliveryReport struct {
	MediaBuyID string          `json:"media_buy_id"`
	RangeStart time.Time       `json:"range_start"`
	RangeEnd   time.Time       `json:"range_end"`
	RangeType  string          `json:"range_type"`
	Overall    DeliverySummary `json:"overall"`
	ByDay      []BreakdownRow  `json:"daily_breakdown"`
	ByDevice   []BreakdownRow  `json:"device_breakdown"`
	ByGeo      []BreakdownRow  `json:"geo_breakdown"`
}

// FormatSpec describes one entry of the static creative-format catalog.
type FormatSpec struct {
	ID       string `json:"id"`
	Name     string `json:"name"`
	Type     string `json:"type"`
	AgentURL string `json:"agent_url"`
}
