package processor

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/EddyMaster88/ml-affiliate-poster/internal/catalog"
	"github.com/EddyMaster88/ml-affiliate-poster/internal/config"
	"github.com/EddyMaster88/ml-affiliate-poster/internal/filter"
	"github.com/EddyMaster88/ml-affiliate-poster/internal/message"
	"github.com/EddyMaster88/ml-affiliate-poster/internal/models"
	"github.com/EddyMaster88/ml-affiliate-poster/internal/notifier"
	"github.com/EddyMaster88/ml-affiliate-poster/internal/rank"
	"github.com/EddyMaster88/ml-affiliate-poster/internal/seenstore"
)

// Summary is the outcome of one pipeline run, used for logging and the
// server's health endpoint.
type Summary struct {
	StartedAt  time.Time `json:"started_at"`
	FinishedAt time.Time `json:"finished_at"`
	Fetched    int       `json:"fetched"`
	Qualified  int       `json:"qualified"`
	Selected   int       `json:"selected"`
	Fresh      int       `json:"fresh"`
	Dispatched int       `json:"dispatched"`
	Failed     int       `json:"failed"`
}

// OfferProcessor runs the fetch → filter → select → dedup → link → format →
// dispatch pipeline for one configuration.
type OfferProcessor struct {
	catalog     CatalogSource
	resolver    LinkResolver
	seen        SeenStore
	dispatchers []notifier.Dispatcher
	exporter    Exporter
	media       MediaFetcher
	cfg         *config.Config
}

func New(source CatalogSource, resolver LinkResolver, seen SeenStore, dispatchers []notifier.Dispatcher, exporter Exporter, media MediaFetcher, cfg *config.Config) *OfferProcessor {
	return &OfferProcessor{
		catalog:     source,
		resolver:    resolver,
		seen:        seen,
		dispatchers: dispatchers,
		exporter:    exporter,
		media:       media,
		cfg:         cfg,
	}
}

// Run executes one full pipeline pass. Offers are processed one at a time;
// a failing offer or channel is logged and the batch continues, so partial
// progress is expected and there is no all-or-nothing guarantee.
func (p *OfferProcessor) Run(ctx context.Context) (Summary, error) {
	summary := Summary{StartedAt: time.Now()}

	listings := p.fetchAll(ctx)
	summary.Fetched = len(listings)
	slog.Info("Fetched listings", "count", len(listings))

	offers := filter.Apply(listings, filter.Criteria{
		MinDiscountPct:    p.cfg.MinDiscountPct,
		OfficialStoreOnly: p.cfg.OfficialStoreOnly,
		FreeShippingOnly:  p.cfg.FreeShippingOnly,
	})
	summary.Qualified = len(offers)
	slog.Info("Qualified offers", "count", len(offers))

	selected := rank.SelectTop(offers, p.cfg.TopN)
	summary.Selected = len(selected)

	fresh := seenstore.FilterNew(p.seen, selected)
	summary.Fresh = len(fresh)
	slog.Info("Selected offers", "selected", len(selected), "fresh", len(fresh))

	var records []models.DispatchRecord
	var errorMessages []string

	for _, offer := range fresh {
		if ctx.Err() != nil {
			errorMessages = append(errorMessages, fmt.Sprintf("run cancelled: %v", ctx.Err()))
			break
		}

		record, err := p.processOffer(ctx, offer)
		if err != nil {
			summary.Failed++
			errorMessages = append(errorMessages, err.Error())
			continue
		}
		summary.Dispatched++
		records = append(records, record)
	}

	if p.exporter != nil {
		if err := p.exporter.Write(records); err != nil {
			slog.Warn("Failed to write export file", "error", err)
		}
	}

	summary.FinishedAt = time.Now()
	slog.Info("Finished run",
		"fetched", summary.Fetched,
		"qualified", summary.Qualified,
		"dispatched", summary.Dispatched,
		"failed", summary.Failed,
	)

	if len(errorMessages) > 0 {
		return summary, fmt.Errorf("processed with errors: %s", strings.Join(errorMessages, "; "))
	}
	return summary, nil
}

// fetchAll collects listings across the configured query and categories,
// deduplicating identifiers within the batch (the same item can appear in
// several category searches).
func (p *OfferProcessor) fetchAll(ctx context.Context) []models.Listing {
	var queries []catalog.Query
	if p.cfg.Query != "" {
		queries = append(queries, catalog.Query{Text: p.cfg.Query, Limit: p.cfg.SearchLimit})
	}
	for _, cat := range p.cfg.Categories {
		queries = append(queries, catalog.Query{CategoryID: cat, Limit: p.cfg.SearchLimit})
	}

	inBatch := make(map[string]struct{})
	var listings []models.Listing
	for _, q := range queries {
		for _, l := range p.catalog.Fetch(ctx, q) {
			if _, dup := inBatch[l.ID]; dup {
				continue
			}
			inBatch[l.ID] = struct{}{}
			listings = append(listings, l)
		}
	}
	return listings
}

func (p *OfferProcessor) processOffer(ctx context.Context, offer models.Offer) (models.DispatchRecord, error) {
	link := offer.Permalink
	if p.resolver != nil {
		resolved, err := p.resolver.Resolve(ctx, offer.Permalink)
		if err != nil {
			// Posting the raw permalink is better than dropping the offer.
			slog.Warn("Affiliate link resolution failed, using permalink", "id", offer.ID, "error", err)
		} else {
			link = resolved
		}
	}

	var localImage string
	if p.media != nil && offer.Thumbnail != "" {
		path, err := p.media.Fetch(ctx, offer.Thumbnail)
		if err != nil {
			slog.Warn("Thumbnail download failed", "id", offer.ID, "error", err)
		} else {
			localImage = path
			slog.Info("Thumbnail cached", "id", offer.ID, "path", path)
		}
	}

	text := message.FormatOffer(offer, link)

	channels, err := notifier.Fanout(ctx, p.dispatchers, text, offer.Thumbnail)
	if err != nil {
		return models.DispatchRecord{}, fmt.Errorf("dispatch %s: %w", offer.ID, err)
	}

	if !p.cfg.DryRun {
		p.seen.Add(offer.ID)
		// Persist immediately after each mark so a crash mid-batch cannot
		// repost already-sent offers.
		if err := p.seen.Persist(); err != nil {
			slog.Warn("Failed to persist seen set", "id", offer.ID, "error", err)
		}
	}

	return models.DispatchRecord{
		ItemID:       offer.ID,
		CategoryID:   offer.CategoryID,
		Title:        offer.Title,
		Price:        offer.Price,
		DiscountPct:  offer.DiscountPct,
		AffiliateURL: link,
		Permalink:    offer.Permalink,
		LocalImage:   localImage,
		Channels:     channels,
		DispatchedAt: time.Now(),
	}, nil
}
