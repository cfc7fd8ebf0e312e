package domain

import (
	"fmt"
	"time"
)

// Status is the lifecycle state of a media buy.
//
// The legal transitions are:
//
//	pending_creative -> active | cancelled
//	active           -> paused | completed | cancelled
//	paused           -> completed
//
// completed and cancelled are terminal. Every buy starts in pending_creative;
// the engine never creates a buy directly into active.
type Status string

const (
	StatusPendingCreative Status = "pending_creative"
	StatusActive          Status = "active"
	StatusPaused          Status = "paused"
	StatusCompleted       Status = "completed"
	StatusCancelled       Status = "cancelled"
)

// ParseStatus converts untyped external input into a Status.
func ParseStatus(s string) (Status, error) {
	switch Status(s) {
	case StatusPendingCreative, StatusActive, StatusPaused, StatusCompleted, StatusCancelled:
		return Status(s), nil
	}
	return "", fmt.Errorf("unknown status %q", s)
}

var legalTransitions = map[Status][]Status{
	StatusPendingCreative: {StatusActive, StatusCancelled},
	StatusActive:          {StatusPaused, StatusCompleted, StatusCancelled},
	StatusPaused:          {StatusCompleted},
}

// CanTransition reports whether a transition from s to next is legal.
func (s Status) CanTransition(next Status) bool {
	for _, t := range legalTransitions[s] {
		if t == next {
			return true
		}
	}
	return false
}

// Terminal reports whether no transition leaves the state.
func (s Status) Terminal() bool {
	return s == StatusCompleted || s == StatusCancelled
}

// DeliveryTotals is the cached delivery counters on a media buy, refreshed
// by the metrics aggregator as a write-through cache.
type DeliveryTotals struct {
	Impressions int64 `json:"impressions"`
	Clicks      int64 `json:"clicks"`
	Conversions int64 `json:"conversions"`
	Spend       Money `json:"spend"`
}

// MediaBuy is one advertising campaign composed of budget-bearing packages.
// TotalBudget is derived: the engine recomputes it as the sum of package
// budgets and never trusts a caller-supplied total.
type MediaBuy struct {
	ID               string
	TenantID         string
	MediaBuyID       string // externally visible, unique per tenant
	PrincipalID      string
	BuyerRef         string
	Packages         []Package
	TotalBudget      Money
	FlightStart      time.Time
	FlightEnd        time.Time
	Status           Status
	Workflow         map[string]any // human-approval bookkeeping
	AudienceID       string         // resolved matched-audience reference, may be empty
	CreativeDeadline time.Time
	Delivery         DeliveryTotals
	Version          int64
	CreatedAt        time.Time
	UpdatedAt        time.Time
}

// SumPackageBudgets recomputes the derived total from the packages.
func (b *MediaBuy) SumPackageBudgets() Money {
	total := Money{Currency: b.TotalBudget.Currency}
	for _, p := range b.Packages {
		total = total.Add(p.Budget)
	}
	return total
}
