package usecase

import (
	"context"
	"fmt"
	"math"
	"time"

	"adcp-engine/internal/core/domain"
	"adcp-engine/internal/core/port"
)

// MetricsAggregator reads time-series delivery rows and produces derived
// performance and pacing summaries. It never mutates lifecycle state; its
// only write is refreshing the cached delivery counters on the buy.
type MetricsAggregator struct {
	repo      port.MediaBuyRepository
	tolerance float64

	now func() time.Time
}

// NewMetricsAggregator creates an aggregator with the given pacing
// tolerance, expressed as a fraction (0.10 means ten percentage points).
func NewMetricsAggregator(repo port.MediaBuyRepository, tolerance float64) *MetricsAggregator {
	return &MetricsAggregator{repo: repo, tolerance: tolerance, now: time.Now}
}

// Delivery sums all delivery rows of the buy into totals, guarded rates and
// pacing health. A buy with no rows yet reports all-zero metrics and pacing
// not_started rather than an error.
func (a *MetricsAggregator) Delivery(ctx context.Context, principal domain.Principal, mediaBuyID string) (*port.DeliverySummary, error) {
	buy, err := a.repo.GetMediaBuy(ctx, mediaBuyID, principal.ID)
	if err != nil {
		return nil, err
	}
	return a.summarize(ctx, buy, port.Window{})
}

// Report breaks the same underlying rows down by day, device and geography
// over the requested range. Supported ranges are last_7_days (the default),
// last_30_days and flight.
func (a *MetricsAggregator) Report(ctx context.Context, principal domain.Principal, mediaBuyID, dateRange string) (*port.DeliveryReport, error) {
	buy, err := a.repo.GetMediaBuy(ctx, mediaBuyID, principal.ID)
	if err != nil {
		return nil, err
	}

	now := a.now().UTC()
	var from time.Time
	switch dateRange {
	case "", "last_7_days":
		dateRange = "last_7_days"
		from = now.AddDate(0, 0, -7)
	case "last_30_days":
		from = now.AddDate(0, 0, -30)
	case "flight":
		from = buy.FlightStart
	default:
		return nil, &domain.ViolationError{Violations: []domain.Violation{{
			Code:    domain.ViolationInvalidDateRange,
			Field:   "date_range",
			Message: fmt.Sprintf("date range %q is not one of last_7_days, last_30_days, flight", dateRange),
		}}}
	}

	window := port.Window{From: from, To: now}
	overall, err := a.summarize(ctx, buy, window)
	if err != nil {
		return nil, err
	}

	breakdown, err := a.repo.DeliveryBreakdown(ctx, buy.ID, window)
	if err != nil {
		return nil, fmt.Errorf("delivery breakdown: %w", err)
	}
	fillCTR(breakdown.ByDay)
	fillCTR(breakdown.ByDevice)
	fillCTR(breakdown.ByGeo)

	return &port.DeliveryReport{
		MediaBuyID: buy.MediaBuyID,
		RangeStart: from,
		RangeEnd:   now,
		RangeType:  dateRange,
		Overall:    *overall,
		ByDay:      breakdown.ByDay,
		ByDevice:   breakdown.ByDevice,
		ByGeo:      breakdown.ByGeo,
	}, nil
}

// summarize builds the delivery summary. Totals and rates cover the given
// window; remaining budget and pacing always come from the full history, as
// does the cached-counter refresh. A zero window means full history.
func (a *MetricsAggregator) summarize(ctx context.Context, buy *domain.MediaBuy, window port.Window) (*port.DeliverySummary, error) {
	lifetime, err := a.repo.SumDelivery(ctx, buy.ID, port.Window{})
	if err != nil {
		return nil, fmt.Errorf("delivery sums: %w", err)
	}
	currency := buy.TotalBudget.Currency
	lifetime.Totals.Spend.Currency = currency

	// write-through cache refresh; a failure here must not fail the read
	_ = a.repo.RefreshDeliveryCache(ctx, buy.ID, lifetime.Totals)

	totals := lifetime.Totals
	if !window.From.IsZero() || !window.To.IsZero() {
		scoped, err := a.repo.SumDelivery(ctx, buy.ID, window)
		if err != nil {
			return nil, fmt.Errorf("delivery sums: %w", err)
		}
		totals = scoped.Totals
		totals.Spend.Currency = currency
	}

	rates := port.PerformanceRates{
		CPM: domain.Money{Currency: currency},
		CPC: domain.Money{Currency: currency},
		CPA: domain.Money{Currency: currency},
	}
	if totals.Impressions > 0 {
		rates.CTR = float64(totals.Clicks) / float64(totals.Impressions)
		rates.CPM.Amount = int64(math.RoundToEven(float64(totals.Spend.Amount) / float64(totals.Impressions) * 1000))
	}
	if totals.Clicks > 0 {
		rates.CVR = float64(totals.Conversions) / float64(totals.Clicks)
		rates.CPC.Amount = int64(math.RoundToEven(float64(totals.Spend.Amount) / float64(totals.Clicks)))
	}
	if totals.Conversions > 0 {
		rates.CPA.Amount = int64(math.RoundToEven(float64(totals.Spend.Amount) / float64(totals.Conversions)))
	}

	pacing := a.pacing(buy, lifetime.Totals, lifetime.RowCount)

	return &port.DeliverySummary{
		MediaBuyID:  buy.MediaBuyID,
		Status:      buy.Status,
		TotalBudget: buy.TotalBudget,
		Remaining:   domain.Money{Amount: buy.TotalBudget.Amount - lifetime.Totals.Spend.Amount, Currency: currency},
		Totals:      totals,
		Rates:       rates,
		Pacing:      pacing,
	}, nil
}

// pacing compares the spent-budget fraction against the elapsed-time
// fraction of the flight window. Outside the tolerance band the buy is
// ahead or behind; with no delivery rows at all it has not started.
func (a *MetricsAggregator) pacing(buy *domain.MediaBuy, totals domain.DeliveryTotals, rowCount int64) port.PacingSummary {
	now := a.now().UTC()

	var timeFraction float64
	flight := buy.FlightEnd.Sub(buy.FlightStart)
	if flight > 0 {
		timeFraction = clamp01(float64(now.Sub(buy.FlightStart)) / float64(flight))
	}
	var spendFraction float64
	if buy.TotalBudget.Amount > 0 {
		spendFraction = float64(totals.Spend.Amount) / float64(buy.TotalBudget.Amount)
	}

	daysTotal := int(flight.Hours() / 24)
	daysElapsed := int(now.Sub(buy.FlightStart).Hours() / 24)
	if daysElapsed < 0 {
		daysElapsed = 0
	}
	if daysElapsed > daysTotal {
		daysElapsed = daysTotal
	}

	summary := port.PacingSummary{
		SpendFraction: spendFraction,
		TimeFraction:  timeFraction,
		DaysElapsed:   daysElapsed,
		DaysTotal:     daysTotal,
	}
	switch {
	case rowCount == 0:
		summary.Health = port.PacingNotStarted
	case spendFraction > timeFraction+a.tolerance:
		summary.Health = port.PacingAhead
	case spendFraction < timeFraction-a.tolerance:
		summary.Health = port.PacingBehind
	default:
		summary.Health = port.PacingOnTrack
	}
	return summary
}

func fillCTR(rows []port.BreakdownRow) {
	for i := range rows {
		if rows[i].Impressions > 0 {
			rows[i].CTR = float64(rows[i].Clicks) / float64(rows[i].Impressions)
		}
	}
}

func clamp01(f float64) float64 {
	if f < 0 {
		return 0
	}
	if f > 1 {
		return 1
	}
	return f
}
