package models

import (
	"math"
	"time"
)

// Listing is a raw product record as returned by the marketplace search API.
// Field tags follow the /sites/MLB/search response shape.
type Listing struct {
	ID              string   `json:"id" validate:"required"`
	Title           string   `json:"title" validate:"required"`
	Price           float64  `json:"price" validate:"gte=0"`
	OriginalPrice   float64  `json:"original_price"`
	CategoryID      string   `json:"category_id"`
	Permalink       string   `json:"permalink" validate:"required,url"`
	Thumbnail       string   `json:"thumbnail" validate:"omitempty,url"`
	OfficialStoreID *int64   `json:"official_store_id"`
	Shipping        Shipping `json:"shipping"`
}

// Shipping carries the nested shipping block of a search result.
type Shipping struct {
	FreeShipping bool `json:"free_shipping"`
}

// IsOfficialStore reports whether the listing belongs to an official store.
// The API sends a zero ID for some non-store sellers, so zero counts as
// not-official.
func (l Listing) IsOfficialStore() bool {
	return l.OfficialStoreID != nil && *l.OfficialStoreID != 0
}

// Offer is a listing annotated with its computed discount percentage.
type Offer struct {
	Listing
	DiscountPct float64
}

// ComputeDiscount returns the percentage drop from original to current price,
// rounded to one decimal and clamped to [0, 100]. A missing or non-positive
// original price yields 0; out-of-range upstream values are never trusted.
func ComputeDiscount(price, originalPrice float64) float64 {
	if originalPrice <= 0 || price <= 0 || originalPrice <= price {
		return 0
	}
	pct := math.Round((1-price/originalPrice)*1000) / 10
	if pct < 0 {
		return 0
	}
	if pct > 100 {
		return 100
	}
	return pct
}

// DispatchRecord is one row of the per-run audit export.
type DispatchRecord struct {
	ItemID       string
	CategoryID   string
	Title        string
	Price        float64
	DiscountPct  float64
	AffiliateURL string
	Permalink    string
	LocalImage   string
	Channels     []string
	DispatchedAt time.Time
}
