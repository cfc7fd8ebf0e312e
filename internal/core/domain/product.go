package domain

import (
	"fmt"
	"time"
)

// ProductType classifies a sellable inventory unit.
type ProductType string

const (
	ProductDisplay ProductType = "display"
	ProductVideo   ProductType = "video"
	ProductNative  ProductType = "native"
	ProductAudio   ProductType = "audio"
	ProductCTV     ProductType = "ctv"
)

// ParseProductType converts untyped external input into a ProductType.
func ParseProductType(s string) (ProductType, error) {
	switch ProductType(s) {
	case ProductDisplay, ProductVideo, ProductNative, ProductAudio, ProductCTV:
		return ProductType(s), nil
	}
	return "", fmt.Errorf("unknown product type %q", s)
}

// PriceUnit names the unit a base price is quoted in.
type PriceUnit string

const (
	UnitCPM PriceUnit = "cpm" // cost per thousand impressions
	UnitCPC PriceUnit = "cpc" // cost per click
	UnitCPA PriceUnit = "cpa" // cost per acquisition
	UnitCPV PriceUnit = "cpv" // cost per view
)

// Price is a unit-tagged base price for a product.
type Price struct {
	Unit  PriceUnit `json:"unit"`
	Value Money     `json:"value"`
}

// Product is a sellable inventory unit owned by the catalog's backing store.
// The engine reads it, never writes it.
type Product struct {
	ID                 string
	TenantID           string
	ProductID          string
	Name               string
	Description        string
	Type               ProductType
	FormatIDs          []string // supported creative format identifiers, non-empty
	BasePrice          Price
	MinimumSpend       Money
	EstimatedReach     int64
	MatchedAudienceIDs []string
	Active             bool
	CreatedAt          time.Time
	UpdatedAt          time.Time
}
