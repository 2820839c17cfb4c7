package catalog

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"golang.org/x/time/rate"

	"github.com/EddyMaster88/ml-affiliate-poster/internal/config"
	"github.com/EddyMaster88/ml-affiliate-poster/internal/models"
	"github.com/EddyMaster88/ml-affiliate-poster/internal/util"
	"github.com/EddyMaster88/ml-affiliate-poster/internal/validator"
)

// The public search surface intermittently blocks non-browser clients, so
// requests carry a browser-like User-Agent the same way the page scraper does.
const userAgent = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0 Safari/537.36 ml_affiliate_poster/1.0"

// ErrBlocked indicates the search API rejected the request outright (403),
// which is worth routing to the HTML fallback rather than retrying.
var ErrBlocked = errors.New("search API blocked the request")

// Query describes one catalog search.
type Query struct {
	Text       string
	CategoryID string
	Limit      int
	Sort       string
}

type Client struct {
	httpClient  *http.Client
	baseURL     string
	pageBaseURL string
	siteID      string
	limiter     *rate.Limiter
	maxRetries  int
	validator   *validator.Validator
}

func New(cfg *config.Config) *Client {
	return &Client{
		httpClient: &http.Client{
			Timeout: 15 * time.Second,
		},
		baseURL:     cfg.CatalogURL,
		pageBaseURL: cfg.SearchPageURL,
		siteID:      cfg.SiteID,
		// One request per second is plenty for a poller and stays far from
		// the anonymous quota.
		limiter:    rate.NewLimiter(rate.Every(time.Second), 1),
		maxRetries: 3,
		validator:  validator.New(),
	}
}

// Search queries the marketplace search API and returns the raw listings.
// A 403 from the API is retried against the public search page before the
// error is surfaced. Callers that need the never-fails contract should use
// Fetch instead.
func (c *Client) Search(ctx context.Context, q Query) ([]models.Listing, error) {
	var listings []models.Listing
	err := util.RetryWithBackoff(ctx, c.maxRetries, func(attempt int) error {
		if attempt > 0 {
			slog.Warn("Retrying catalog search", "attempt", attempt)
		}
		var attemptErr error
		listings, attemptErr = c.searchOnce(ctx, q)
		if errors.Is(attemptErr, ErrBlocked) {
			// Blocks do not clear on retry; switch strategy immediately.
			var pageErr error
			listings, pageErr = c.scrapeSearchPage(ctx, q)
			if pageErr != nil {
				return fmt.Errorf("api blocked and page scrape failed: %w", pageErr)
			}
			return nil
		}
		return attemptErr
	})
	if err != nil {
		return nil, err
	}
	return c.validator.FilterValid(listings), nil
}

func (c *Client) searchOnce(ctx context.Context, q Query) ([]models.Listing, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return nil, err
	}

	endpoint := fmt.Sprintf("%s/sites/%s/search", c.baseURL, c.siteID)
	params := url.Values{}
	if q.Text != "" {
		params.Set("q", q.Text)
	}
	if q.CategoryID != "" {
		params.Set("category", q.CategoryID)
	}
	if q.Limit > 0 {
		params.Set("limit", strconv.Itoa(q.Limit))
	}
	sort := q.Sort
	if sort == "" {
		sort = "relevance"
	}
	params.Set("sort", sort)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint+"?"+params.Encode(), nil)
	if err != nil {
		return nil, fmt.Errorf("build search request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("User-Agent", userAgent)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("search request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusForbidden {
		return nil, ErrBlocked
	}
	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return nil, fmt.Errorf("search returned status %d: %s", resp.StatusCode, string(body))
	}

	var payload searchResponse
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		return nil, fmt.Errorf("decode search response: %w", err)
	}
	return payload.Results, nil
}

type searchResponse struct {
	Results []models.Listing `json:"results"`
}

// Fetch runs Search and substitutes the fixture set on failure so the
// pipeline always receives well-formed input. A successful search with zero
// results stays empty: "nothing qualifying" and "API down" are distinct
// outcomes and only the latter gets fixtures.
func (c *Client) Fetch(ctx context.Context, q Query) []models.Listing {
	listings, err := c.Search(ctx, q)
	if err != nil {
		slog.Warn("Catalog search failed, using fixture listings", "error", err, "query", q.Text, "category", q.CategoryID)
		return FallbackListings()
	}
	return listings
}
