// Package export writes the per-run audit file of dispatched offers.
package export

import (
	"encoding/csv"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/EddyMaster88/ml-affiliate-poster/internal/models"
)

var header = []string{
	"dispatched_at", "item_id", "category_id", "title",
	"price", "discount_pct", "affiliate_url", "permalink", "local_image", "channels",
}

// CSVExporter writes one delimited audit file per run. The configured path is
// a template; each run gets its own timestamped file next to it so looping
// deployments keep the whole trail instead of only the last cycle.
type CSVExporter struct {
	path string
	now  func() time.Time
}

func NewCSV(path string) *CSVExporter {
	return &CSVExporter{path: path, now: time.Now}
}

// Write creates a new per-run file with the given records. An empty batch
// still produces a file with just the header so "ran but dispatched nothing"
// is visible in the audit trail.
func (e *CSVExporter) Write(records []models.DispatchRecord) error {
	path := e.runPath(e.now())

	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("create export directory: %w", err)
	}

	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create export file: %w", err)
	}
	defer f.Close()

	w := csv.NewWriter(f)
	if err := w.Write(header); err != nil {
		return fmt.Errorf("write export header: %w", err)
	}

	for _, rec := range records {
		row := []string{
			rec.DispatchedAt.Format(time.RFC3339),
			rec.ItemID,
			rec.CategoryID,
			rec.Title,
			strconv.FormatFloat(rec.Price, 'f', 2, 64),
			strconv.FormatFloat(rec.DiscountPct, 'f', 1, 64),
			rec.AffiliateURL,
			rec.Permalink,
			rec.LocalImage,
			strings.Join(rec.Channels, "|"),
		}
		if err := w.Write(row); err != nil {
			return fmt.Errorf("write export row for %s: %w", rec.ItemID, err)
		}
	}

	w.Flush()
	if err := w.Error(); err != nil {
		return fmt.Errorf("flush export file: %w", err)
	}
	return nil
}

// runPath inserts the run timestamp before the configured path's extension,
// e.g. data/exports/offers.csv → data/exports/offers-20250601-123000.csv.
func (e *CSVExporter) runPath(t time.Time) string {
	ext := filepath.Ext(e.path)
	if ext == "" {
		ext = ".csv"
	}
	return fmt.Sprintf("%s-%s%s", strings.TrimSuffix(e.path, ext), t.UTC().Format("20060102-150405"), ext)
}
