// Package filter turns raw listings into qualified offers.
package filter

import "github.com/EddyMaster88/ml-affiliate-poster/internal/models"

// Criteria holds the predicates an offer must satisfy.
type Criteria struct {
	MinDiscountPct    float64
	OfficialStoreOnly bool
	FreeShippingOnly  bool
}

// Apply computes each listing's discount and keeps only those passing every
// predicate. Pure function: the input slice is never mutated.
func Apply(listings []models.Listing, c Criteria) []models.Offer {
	offers := make([]models.Offer, 0, len(listings))
	for _, l := range listings {
		if l.Price <= 0 {
			continue
		}

		discount := models.ComputeDiscount(l.Price, l.OriginalPrice)
		if discount < c.MinDiscountPct {
			continue
		}
		if c.OfficialStoreOnly && !l.IsOfficialStore() {
			continue
		}
		if c.FreeShippingOnly && !l.Shipping.FreeShipping {
			continue
		}

		offers = append(offers, models.Offer{Listing: l, DiscountPct: discount})
	}
	return offers
}
