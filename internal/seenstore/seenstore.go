// Package seenstore tracks listing identifiers that were already dispatched,
// so restarts never repost the same offer.
package seenstore

import "github.com/EddyMaster88/ml-affiliate-poster/internal/models"

// Store is the seen-set contract. Implementations are not safe for concurrent
// use; the pipeline owns the store exclusively for the run.
type Store interface {
	// Contains reports whether the identifier was already dispatched.
	Contains(id string) bool
	// Add marks an identifier as dispatched. Call only after a successful send.
	Add(id string)
	// Persist flushes the set to the backing storage.
	Persist() error
	// Len returns the number of tracked identifiers.
	Len() int
}

// FilterNew drops offers whose identifier is already in the store, preserving
// the relative order of the remainder.
func FilterNew(store Store, offers []models.Offer) []models.Offer {
	fresh := make([]models.Offer, 0, len(offers))
	for _, o := range offers {
		if store.Contains(o.ID) {
			continue
		}
		fresh = append(fresh, o)
	}
	return fresh
}
