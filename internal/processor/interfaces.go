package processor

import (
	"context"

	"github.com/EddyMaster88/ml-affiliate-poster/internal/catalog"
	"github.com/EddyMaster88/ml-affiliate-poster/internal/models"
)

// CatalogSource abstracts the marketplace search. Fetch never fails; on
// upstream trouble it returns the fixture set.
type CatalogSource interface {
	Fetch(ctx context.Context, q catalog.Query) []models.Listing
}

// LinkResolver turns a product permalink into a trackable affiliate link.
type LinkResolver interface {
	Resolve(ctx context.Context, productURL string) (string, error)
}

// SeenStore tracks already-dispatched listing identifiers.
type SeenStore interface {
	Contains(id string) bool
	Add(id string)
	Persist() error
	Len() int
}

// Exporter records the dispatched batch for audit.
type Exporter interface {
	Write(records []models.DispatchRecord) error
}

// MediaFetcher caches a thumbnail locally, returning the local path.
type MediaFetcher interface {
	Fetch(ctx context.Context, imageURL string) (string, error)
}
