package processor

import (
	"context"
	"errors"
	"path"
	"strings"
	"testing"

	"github.com/EddyMaster88/ml-affiliate-poster/internal/catalog"
	"github.com/EddyMaster88/ml-affiliate-poster/internal/config"
	"github.com/EddyMaster88/ml-affiliate-poster/internal/models"
	"github.com/EddyMaster88/ml-affiliate-poster/internal/notifier"
)

// --- Mock implementations ---

type mockCatalog struct {
	listings []models.Listing
	queries  []catalog.Query
}

func (m *mockCatalog) Fetch(_ context.Context, q catalog.Query) []models.Listing {
	m.queries = append(m.queries, q)
	return m.listings
}

type mockResolver struct {
	links map[string]string
	err   error
	calls int
}

func (m *mockResolver) Resolve(_ context.Context, permalink string) (string, error) {
	m.calls++
	if m.err != nil {
		return "", m.err
	}
	if link, ok := m.links[permalink]; ok {
		return link, nil
	}
	return permalink + "?tag=aff", nil
}

type mockSeen struct {
	seen      map[string]struct{}
	persisted int
}

func newMockSeen(ids ...string) *mockSeen {
	m := &mockSeen{seen: make(map[string]struct{})}
	for _, id := range ids {
		m.seen[id] = struct{}{}
	}
	return m
}

func (m *mockSeen) Contains(id string) bool { _, ok := m.seen[id]; return ok }
func (m *mockSeen) Add(id string)           { m.seen[id] = struct{}{} }
func (m *mockSeen) Persist() error          { m.persisted++; return nil }
func (m *mockSeen) Len() int                { return len(m.seen) }

type mockDispatcher struct {
	name  string
	err   error
	texts []string
}

func (m *mockDispatcher) Name() string { return m.name }

func (m *mockDispatcher) Send(_ context.Context, text, _ string) error {
	if m.err != nil {
		return m.err
	}
	m.texts = append(m.texts, text)
	return nil
}

type mockMedia struct {
	err   error
	calls int
}

func (m *mockMedia) Fetch(_ context.Context, imageURL string) (string, error) {
	m.calls++
	if m.err != nil {
		return "", m.err
	}
	return "data/media/" + path.Base(imageURL), nil
}

type mockExporter struct {
	records []models.DispatchRecord
	calls   int
}

func (m *mockExporter) Write(records []models.DispatchRecord) error {
	m.calls++
	m.records = records
	return nil
}

// --- Helpers ---

func testListing(id, title string, price, original float64) models.Listing {
	store := int64(123)
	return models.Listing{
		ID:              id,
		Title:           title,
		Price:           price,
		OriginalPrice:   original,
		CategoryID:      "MLB1234",
		Permalink:       "https://produto.mercadolivre.com.br/" + id,
		Thumbnail:       "https://http2.mlstatic.com/" + id + ".jpg",
		OfficialStoreID: &store,
		Shipping:        models.Shipping{FreeShipping: true},
	}
}

func testConfig() *config.Config {
	return &config.Config{
		Query:          "nivea",
		SearchLimit:    30,
		MinDiscountPct: 20,
		TopN:           3,
	}
}

func newTestProcessor(cat *mockCatalog, seen *mockSeen, disp notifier.Dispatcher, cfg *config.Config) (*OfferProcessor, *mockResolver, *mockExporter) {
	resolver := &mockResolver{}
	exporter := &mockExporter{}
	p := New(cat, resolver, seen, []notifier.Dispatcher{disp}, exporter, nil, cfg)
	return p, resolver, exporter
}

// --- Tests ---

func TestRunDispatchesQualifiedOffers(t *testing.T) {
	cat := &mockCatalog{listings: []models.Listing{
		testListing("MLB1", "Big discount", 50, 100),
		testListing("MLB2", "Small discount", 95, 100),
		testListing("MLB3", "Mid discount", 70, 100),
	}}
	seen := newMockSeen()
	disp := &mockDispatcher{name: "telegram"}
	p, _, exporter := newTestProcessor(cat, seen, disp, testConfig())

	summary, err := p.Run(context.Background())
	if err != nil {
		t.Fatalf("Run failed: %v", err)
	}
	if summary.Fetched != 3 {
		t.Errorf("expected 3 fetched, got %d", summary.Fetched)
	}
	if summary.Qualified != 2 {
		t.Errorf("expected 2 qualified (MLB2 is only 5%% off), got %d", summary.Qualified)
	}
	if summary.Dispatched != 2 {
		t.Errorf("expected 2 dispatched, got %d", summary.Dispatched)
	}
	if len(disp.texts) != 2 {
		t.Fatalf("expected 2 messages sent, got %d", len(disp.texts))
	}
	// Highest discount first.
	if !strings.Contains(disp.texts[0], "Big discount") {
		t.Errorf("expected biggest discount dispatched first, got %q", disp.texts[0])
	}
	if !seen.Contains("MLB1") || !seen.Contains("MLB3") {
		t.Error("dispatched offers should be marked seen")
	}
	if seen.Contains("MLB2") {
		t.Error("filtered-out offer should not be marked seen")
	}
	if seen.persisted != 2 {
		t.Errorf("expected persist after each dispatch, got %d calls", seen.persisted)
	}
	if exporter.calls != 1 || len(exporter.records) != 2 {
		t.Errorf("expected 2 exported records, got %d", len(exporter.records))
	}
}

func TestRunSecondPassDispatchesNothing(t *testing.T) {
	cat := &mockCatalog{listings: []models.Listing{
		testListing("MLB1", "Offer", 50, 100),
	}}
	seen := newMockSeen()
	disp := &mockDispatcher{name: "telegram"}
	p, _, _ := newTestProcessor(cat, seen, disp, testConfig())

	if _, err := p.Run(context.Background()); err != nil {
		t.Fatalf("first run failed: %v", err)
	}
	summary, err := p.Run(context.Background())
	if err != nil {
		t.Fatalf("second run failed: %v", err)
	}
	if summary.Fresh != 0 || summary.Dispatched != 0 {
		t.Errorf("expected nothing fresh on second pass, got fresh=%d dispatched=%d", summary.Fresh, summary.Dispatched)
	}
	if len(disp.texts) != 1 {
		t.Errorf("expected exactly one message across both runs, got %d", len(disp.texts))
	}
}

func TestRunFallsBackToPermalinkOnResolverError(t *testing.T) {
	cat := &mockCatalog{listings: []models.Listing{
		testListing("MLB1", "Offer", 50, 100),
	}}
	seen := newMockSeen()
	disp := &mockDispatcher{name: "telegram"}
	cfg := testConfig()
	resolver := &mockResolver{err: errors.New("chrome unreachable")}
	exporter := &mockExporter{}
	p := New(cat, resolver, seen, []notifier.Dispatcher{disp}, exporter, nil, cfg)

	summary, err := p.Run(context.Background())
	if err != nil {
		t.Fatalf("Run failed: %v", err)
	}
	if summary.Dispatched != 1 {
		t.Fatalf("expected offer dispatched despite resolver failure, got %d", summary.Dispatched)
	}
	if !strings.Contains(disp.texts[0], "https://produto.mercadolivre.com.br/MLB1") {
		t.Errorf("expected raw permalink in message, got %q", disp.texts[0])
	}
	if len(exporter.records) != 1 || exporter.records[0].AffiliateURL != "https://produto.mercadolivre.com.br/MLB1" {
		t.Errorf("expected permalink recorded as link, got %+v", exporter.records)
	}
}

func TestRunDispatchFailureDoesNotMarkSeen(t *testing.T) {
	cat := &mockCatalog{listings: []models.Listing{
		testListing("MLB1", "Offer", 50, 100),
	}}
	seen := newMockSeen()
	disp := &mockDispatcher{name: "telegram", err: errors.New("429 too many requests")}
	p, _, _ := newTestProcessor(cat, seen, disp, testConfig())

	summary, err := p.Run(context.Background())
	if err == nil {
		t.Fatal("expected error when all channels fail")
	}
	if !strings.Contains(err.Error(), "processed with errors") {
		t.Errorf("unexpected error: %v", err)
	}
	if summary.Failed != 1 || summary.Dispatched != 0 {
		t.Errorf("expected 1 failed, 0 dispatched, got failed=%d dispatched=%d", summary.Failed, summary.Dispatched)
	}
	if seen.Contains("MLB1") {
		t.Error("failed dispatch must not mark the offer seen")
	}
	if seen.persisted != 0 {
		t.Errorf("expected no persist after failed dispatch, got %d", seen.persisted)
	}
}

func TestRunFailingOfferDoesNotStopBatch(t *testing.T) {
	cat := &mockCatalog{listings: []models.Listing{
		testListing("MLB1", "First", 40, 100),
		testListing("MLB2", "Second", 50, 100),
	}}
	seen := newMockSeen()
	disp := &failOnceDispatcher{name: "telegram"}
	resolver := &mockResolver{}
	exporter := &mockExporter{}
	p := New(cat, resolver, seen, []notifier.Dispatcher{disp}, exporter, nil, testConfig())

	summary, err := p.Run(context.Background())
	if err == nil {
		t.Fatal("expected aggregate error for the failed offer")
	}
	if summary.Dispatched != 1 || summary.Failed != 1 {
		t.Errorf("expected dispatched=1 failed=1, got dispatched=%d failed=%d", summary.Dispatched, summary.Failed)
	}
}

type failOnceDispatcher struct {
	name  string
	calls int
}

func (d *failOnceDispatcher) Name() string { return d.name }

func (d *failOnceDispatcher) Send(context.Context, string, string) error {
	d.calls++
	if d.calls == 1 {
		return errors.New("transient")
	}
	return nil
}

func TestRunDryRunDoesNotMarkSeen(t *testing.T) {
	cat := &mockCatalog{listings: []models.Listing{
		testListing("MLB1", "Offer", 50, 100),
	}}
	seen := newMockSeen()
	disp := notifier.DryRun{}
	cfg := testConfig()
	cfg.DryRun = true
	resolver := &mockResolver{}
	p := New(cat, resolver, seen, []notifier.Dispatcher{disp}, &mockExporter{}, nil, cfg)

	summary, err := p.Run(context.Background())
	if err != nil {
		t.Fatalf("Run failed: %v", err)
	}
	if summary.Dispatched != 1 {
		t.Errorf("dry run should still count dispatches, got %d", summary.Dispatched)
	}
	if seen.Len() != 0 || seen.persisted != 0 {
		t.Error("dry run must not mark seen or persist")
	}
}

func TestRunRecordsCachedThumbnail(t *testing.T) {
	cat := &mockCatalog{listings: []models.Listing{
		testListing("MLB1", "Offer", 50, 100),
	}}
	seen := newMockSeen()
	disp := &mockDispatcher{name: "telegram"}
	fetcher := &mockMedia{}
	exporter := &mockExporter{}
	p := New(cat, &mockResolver{}, seen, []notifier.Dispatcher{disp}, exporter, fetcher, testConfig())

	if _, err := p.Run(context.Background()); err != nil {
		t.Fatalf("Run failed: %v", err)
	}
	if fetcher.calls != 1 {
		t.Fatalf("expected one thumbnail fetch, got %d", fetcher.calls)
	}
	if len(exporter.records) != 1 {
		t.Fatalf("expected 1 exported record, got %d", len(exporter.records))
	}
	if got := exporter.records[0].LocalImage; got != "data/media/MLB1.jpg" {
		t.Errorf("expected cached thumbnail path in the audit record, got %q", got)
	}
}

func TestRunThumbnailFailureDoesNotFailOffer(t *testing.T) {
	cat := &mockCatalog{listings: []models.Listing{
		testListing("MLB1", "Offer", 50, 100),
	}}
	seen := newMockSeen()
	disp := &mockDispatcher{name: "telegram"}
	fetcher := &mockMedia{err: errors.New("image gone")}
	exporter := &mockExporter{}
	p := New(cat, &mockResolver{}, seen, []notifier.Dispatcher{disp}, exporter, fetcher, testConfig())

	summary, err := p.Run(context.Background())
	if err != nil {
		t.Fatalf("Run failed: %v", err)
	}
	if summary.Dispatched != 1 {
		t.Fatalf("expected dispatch despite image failure, got %d", summary.Dispatched)
	}
	if exporter.records[0].LocalImage != "" {
		t.Errorf("expected empty local image on fetch failure, got %q", exporter.records[0].LocalImage)
	}
}

func TestFetchAllDeduplicatesAcrossQueries(t *testing.T) {
	cat := &mockCatalog{listings: []models.Listing{
		testListing("MLB1", "Offer", 50, 100),
	}}
	cfg := testConfig()
	cfg.Categories = []string{"MLB1234", "MLB5678"}
	seen := newMockSeen()
	p, _, _ := newTestProcessor(cat, seen, &mockDispatcher{name: "telegram"}, cfg)

	listings := p.fetchAll(context.Background())
	if len(cat.queries) != 3 {
		t.Fatalf("expected one query plus two category searches, got %d", len(cat.queries))
	}
	if len(listings) != 1 {
		t.Errorf("expected duplicate IDs collapsed to 1 listing, got %d", len(listings))
	}
}

func TestRunAlreadySeenOffersSkipped(t *testing.T) {
	cat := &mockCatalog{listings: []models.Listing{
		testListing("MLB1", "Old", 50, 100),
		testListing("MLB2", "New", 40, 100),
	}}
	seen := newMockSeen("MLB1")
	disp := &mockDispatcher{name: "telegram"}
	p, resolver, _ := newTestProcessor(cat, seen, disp, testConfig())

	summary, err := p.Run(context.Background())
	if err != nil {
		t.Fatalf("Run failed: %v", err)
	}
	if summary.Selected != 2 || summary.Fresh != 1 {
		t.Errorf("expected selected=2 fresh=1, got selected=%d fresh=%d", summary.Selected, summary.Fresh)
	}
	if resolver.calls != 1 {
		t.Errorf("resolver should only run for fresh offers, got %d calls", resolver.calls)
	}
	if len(disp.texts) != 1 || !strings.Contains(disp.texts[0], "New") {
		t.Errorf("expected only the new offer dispatched, got %v", disp.texts)
	}
}
