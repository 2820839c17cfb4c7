// Package rank orders qualified offers and picks the batch to publish.
package rank

import (
	"sort"

	"github.com/EddyMaster88/ml-affiliate-poster/internal/models"
)

// SelectTop returns up to n offers sorted by discount percentage descending.
// The sort is stable, so ties keep their original relative order and the
// result is deterministic. The input slice is left untouched.
func SelectTop(offers []models.Offer, n int) []models.Offer {
	if n <= 0 || len(offers) == 0 {
		return nil
	}

	sorted := make([]models.Offer, len(offers))
	copy(sorted, offers)
	sort.SliceStable(sorted, func(i, j int) bool {
		return sorted[i].DiscountPct > sorted[j].DiscountPct
	})

	if len(sorted) > n {
		sorted = sorted[:n]
	}
	return sorted
}
