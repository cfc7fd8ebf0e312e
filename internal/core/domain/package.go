package domain

import (
	"fmt"
	"net/url"
	"time"
)

// Pacing is the intended spend-rate shape over the flight window.
type Pacing string

const (
	PacingEven        Pacing = "even"
	PacingASAP        Pacing = "asap"
	PacingFrontLoaded Pacing = "front_loaded"
)

// ParsePacing converts untyped external input into a Pacing value.
func ParsePacing(s string) (Pacing, error) {
	switch Pacing(s) {
	case PacingEven, PacingASAP, PacingFrontLoaded:
		return Pacing(s), nil
	}
	return "", fmt.Errorf("unknown pacing %q", s)
}

// FormatRef names one creative format by its defining agent and identifier.
// Both fields are mandatory and AgentURL must be an absolute URL.
type FormatRef struct {
	AgentURL string `json:"agent_url"`
	ID       string `json:"id"`
}

// Valid reports whether both fields are present and the agent URL parses as
// an absolute URL with a scheme and host.
func (f FormatRef) Valid() bool {
	if f.AgentURL == "" || f.ID == "" {
		return false
	}
	u, err := url.Parse(f.AgentURL)
	return err == nil && u.Scheme != "" && u.Host != ""
}

// Targeting is a free-form targeting overlay on a package: country lists,
// age bounds, device types and similar constraints.
type Targeting map[string]any

// Package is one budgeted line item inside a media buy. It is created
// atomically with its parent and cannot outlive it.
type Package struct {
	ID              string
	PackageID       string // unique within the media buy
	BuyerRef        string
	ProductID       string
	Budget          Money
	PricingOptionID string
	Pacing          Pacing
	Formats         []FormatRef
	Targeting       Targeting
	Price           EffectivePrice
	Status          Status
	CreatedAt       time.Time
	UpdatedAt       time.Time
}

// EffectivePrice is the principal-specific price attached to a package at
// creation time.
type EffectivePrice struct {
	Base             Price   `json:"base"`
	DiscountFraction float64 `json:"discount_fraction"`
	Final            Money   `json:"final"`
}
