package validator

import (
	"fmt"
	"log/slog"

	"github.com/go-playground/validator/v10"

	"github.com/EddyMaster88/ml-affiliate-poster/internal/models"
)

// Validator checks listings coming off the wire against their struct tags.
type Validator struct {
	validate *validator.Validate
}

func New() *Validator {
	return &Validator{
		validate: validator.New(),
	}
}

// ValidateListing checks one listing against its struct tags.
func (v *Validator) ValidateListing(l models.Listing) error {
	if err := v.validate.Struct(l); err != nil {
		return fmt.Errorf("validation failed: %w", err)
	}
	return nil
}

// FilterValid drops malformed listings from a batch. The search API and the
// page scraper both occasionally produce records with missing identifiers or
// broken permalinks; those are logged and skipped rather than failing the
// whole response.
func (v *Validator) FilterValid(listings []models.Listing) []models.Listing {
	valid := listings[:0:0]
	for _, l := range listings {
		if err := v.ValidateListing(l); err != nil {
			slog.Warn("Dropping malformed listing", "id", l.ID, "error", err)
			continue
		}
		valid = append(valid, l)
	}
	return valid
}
