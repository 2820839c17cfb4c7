package catalog

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"regexp"
	"strconv"
	"strings"

	"github.com/PuerkitoBio/goquery"

	"github.com/EddyMaster88/ml-affiliate-poster/internal/models"
)

// pageSelectors describes where listing data lives on the public search page.
// Kept as data so a layout change is a one-struct edit, not new parsing code.
type pageSelectors struct {
	Item          string
	TitleLink     string
	Title         string
	PriceBlock    string
	Fraction      string
	Cents         string
	OriginalPrice string
	Thumbnail     string
	OfficialStore string
	FreeShipping  string
}

var defaultPageSelectors = pageSelectors{
	Item:          "li.ui-search-layout__item",
	TitleLink:     "a.ui-search-link",
	Title:         ".ui-search-item__title",
	PriceBlock:    ".ui-search-price__second-line",
	Fraction:      ".andes-money-amount__fraction",
	Cents:         ".andes-money-amount__cents",
	OriginalPrice: ".ui-search-price__original-value",
	Thumbnail:     ".ui-search-result-image__element",
	OfficialStore: ".ui-search-official-store-label",
	FreeShipping:  ".ui-search-item__shipping--free",
}

var itemIDPattern = regexp.MustCompile(`MLB-?(\d+)`)

// scrapeSearchPage extracts listings from the rendered search page. It is the
// fallback strategy for when the JSON API blocks anonymous clients; category
// searches have no page equivalent and fail outright.
func (c *Client) scrapeSearchPage(ctx context.Context, q Query) ([]models.Listing, error) {
	if q.Text == "" {
		return nil, fmt.Errorf("page scrape requires a text query, got category %q", q.CategoryID)
	}

	pageURL := c.pageBaseURL + "/" + url.PathEscape(strings.ReplaceAll(strings.TrimSpace(q.Text), " ", "-"))
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, pageURL, nil)
	if err != nil {
		return nil, fmt.Errorf("build page request: %w", err)
	}
	req.Header.Set("User-Agent", userAgent)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetch search page: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("search page returned status %d", resp.StatusCode)
	}

	doc, err := goquery.NewDocumentFromReader(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("parse search page: %w", err)
	}

	return parseSearchPage(doc, defaultPageSelectors, q.Limit), nil
}

func parseSearchPage(doc *goquery.Document, sel pageSelectors, limit int) []models.Listing {
	var listings []models.Listing

	doc.Find(sel.Item).EachWithBreak(func(_ int, s *goquery.Selection) bool {
		if limit > 0 && len(listings) >= limit {
			return false
		}

		link := s.Find(sel.TitleLink).First()
		permalink, _ := link.Attr("href")
		permalink = stripTracking(permalink)

		idMatch := itemIDPattern.FindString(permalink)
		if idMatch == "" {
			return true
		}

		title := strings.TrimSpace(s.Find(sel.Title).First().Text())
		if title == "" {
			title = strings.TrimSpace(link.Text())
		}
		if title == "" {
			return true
		}

		priceBlock := s.Find(sel.PriceBlock).First()
		price := parseAmount(
			priceBlock.Find(sel.Fraction).First().Text(),
			priceBlock.Find(sel.Cents).First().Text(),
		)
		if price <= 0 {
			return true
		}

		originalBlock := s.Find(sel.OriginalPrice).First()
		original := parseAmount(
			originalBlock.Find(sel.Fraction).First().Text(),
			originalBlock.Find(sel.Cents).First().Text(),
		)

		listing := models.Listing{
			ID:            strings.ReplaceAll(idMatch, "-", ""),
			Title:         title,
			Price:         price,
			OriginalPrice: original,
			Permalink:     permalink,
			Shipping:      models.Shipping{FreeShipping: s.Find(sel.FreeShipping).Length() > 0},
		}
		if src, ok := s.Find(sel.Thumbnail).First().Attr("data-src"); ok && src != "" {
			listing.Thumbnail = src
		} else if src, ok := s.Find(sel.Thumbnail).First().Attr("src"); ok {
			listing.Thumbnail = src
		}
		if s.Find(sel.OfficialStore).Length() > 0 {
			// The page shows only the badge; any non-nil value marks the flag.
			one := int64(1)
			listing.OfficialStoreID = &one
		}

		listings = append(listings, listing)
		return true
	})

	return listings
}

// parseAmount joins the fraction and cents spans into a float. The fraction
// uses dots as thousands separators ("3.499").
func parseAmount(fraction, cents string) float64 {
	fraction = strings.ReplaceAll(strings.TrimSpace(fraction), ".", "")
	if fraction == "" {
		return 0
	}
	cents = strings.TrimSpace(cents)
	if cents == "" {
		cents = "00"
	}
	v, err := strconv.ParseFloat(fraction+"."+cents, 64)
	if err != nil {
		return 0
	}
	return v
}

// stripTracking removes click-tracking query params and fragments the search
// page appends to outbound item links.
func stripTracking(rawURL string) string {
	parsed, err := url.Parse(rawURL)
	if err != nil {
		return rawURL
	}
	parsed.RawQuery = ""
	parsed.Fragment = ""
	return parsed.String()
}
