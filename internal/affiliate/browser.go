package affiliate

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"regexp"
	"strings"
	"time"

	"github.com/chromedp/chromedp"
	"github.com/chromedp/chromedp/kb"
)

const linkBuilderURL = "https://www.mercadolivre.com.br/afiliados/linkbuilder#hub"

// ErrLinkTimeout is returned when the link builder does not produce a short
// link within the configured deadline.
var ErrLinkTimeout = errors.New("timed out waiting for affiliate short link")

// shortLinkPattern matches the short links the builder emits.
var shortLinkPattern = regexp.MustCompile(`https?://[^\s"'<>]*mercadolivre\.com[^\s"'<>]*/sec/[^\s"'<>]+`)

// locator is one attempt at finding an element. Strategies are tried in
// order with a bounded timeout each, stopping at the first success, so a page
// redesign degrades to the next selector instead of branching code.
type locator struct {
	name    string
	sel     string
	byXPath bool
}

var (
	productTitleLocators = []locator{
		{name: "pdp title", sel: "h1.ui-pdp-title"},
		{name: "catalog title", sel: "h1.ui-pdp-title--catalog"},
	}
	builderInputLocators = []locator{
		{name: "andes textarea", sel: "textarea.andes-form-control__field"},
		{name: "any textarea", sel: "textarea"},
	}
	generateButtonLocators = []locator{
		{name: "gerar button", sel: `//button[contains(., 'Gerar')]`, byXPath: true},
		{name: "submit button", sel: `button[type="submit"]`},
	}
)

// BrowserResolver drives a logged-in Chrome session through the affiliate
// link builder UI. The session must be started separately with remote
// debugging enabled (chrome --remote-debugging-port=9222); the resolver only
// attaches to it, so the operator's Mercado Livre login is reused.
type BrowserResolver struct {
	debugURL string
	timeout  time.Duration
}

func NewBrowserResolver(debugURL string, timeout time.Duration) *BrowserResolver {
	if timeout <= 0 {
		timeout = 60 * time.Second
	}
	return &BrowserResolver{debugURL: debugURL, timeout: timeout}
}

// Resolve opens the product page for its canonical URL, feeds it to the link
// builder and polls the rendered page until a short link appears.
func (r *BrowserResolver) Resolve(ctx context.Context, productURL string) (string, error) {
	allocCtx, cancelAlloc := chromedp.NewRemoteAllocator(ctx, r.debugURL)
	defer cancelAlloc()

	browserCtx, cancelBrowser := chromedp.NewContext(allocCtx)
	defer cancelBrowser()

	deadlineCtx, cancelDeadline := context.WithTimeout(browserCtx, r.timeout)
	defer cancelDeadline()

	canonical, err := r.canonicalURL(deadlineCtx, productURL)
	if err != nil {
		return "", err
	}

	if err := chromedp.Run(deadlineCtx, chromedp.Navigate(linkBuilderURL)); err != nil {
		return "", fmt.Errorf("open link builder: %w", err)
	}

	input, err := waitFirst(deadlineCtx, builderInputLocators, 20*time.Second)
	if err != nil {
		return "", fmt.Errorf("link builder input not found: %w", err)
	}
	if err := chromedp.Run(deadlineCtx,
		chromedp.Clear(input.sel, queryOpts(input)...),
		chromedp.SendKeys(input.sel, canonical+kb.Enter, queryOpts(input)...),
	); err != nil {
		return "", fmt.Errorf("fill link builder input: %w", err)
	}

	button, err := waitFirst(deadlineCtx, generateButtonLocators, 20*time.Second)
	if err != nil {
		return "", fmt.Errorf("generate button not found: %w", err)
	}
	if err := chromedp.Run(deadlineCtx, chromedp.Click(button.sel, queryOpts(button)...)); err != nil {
		return "", fmt.Errorf("click generate: %w", err)
	}

	link, err := r.pollForShortLink(deadlineCtx)
	if err != nil {
		return "", err
	}
	slog.Info("Affiliate short link generated", "link", link)
	return link, nil
}

// canonicalURL loads the product page in the logged-in session and returns
// the final URL, which is the long form the link builder accepts.
func (r *BrowserResolver) canonicalURL(ctx context.Context, productURL string) (string, error) {
	if err := chromedp.Run(ctx, chromedp.Navigate(productURL)); err != nil {
		return "", fmt.Errorf("open product page: %w", err)
	}

	if _, err := waitFirst(ctx, productTitleLocators, 15*time.Second); err != nil {
		// The builder often still accepts the current URL; log and continue.
		slog.Warn("Product title never appeared, using current URL anyway", "url", productURL)
	}

	var current string
	if err := chromedp.Run(ctx, chromedp.Location(&current)); err != nil {
		return "", fmt.Errorf("read canonical URL: %w", err)
	}
	return strings.TrimSpace(current), nil
}

// pollForShortLink scans the rendered page once a second for the generated
// short link, across input values and visible text.
func (r *BrowserResolver) pollForShortLink(ctx context.Context) (string, error) {
	const harvest = `(() => {
		const parts = [];
		for (const el of document.querySelectorAll('input, textarea')) {
			if (el.value) parts.push(el.value);
		}
		parts.push(document.body.innerText || '');
		return parts.join('\n');
	})()`

	ticker := time.NewTicker(time.Second)
	defer ticker.Stop()

	for {
		var text string
		if err := chromedp.Run(ctx, chromedp.Evaluate(harvest, &text)); err == nil {
			if link := ExtractShortLink(text); link != "" {
				return link, nil
			}
		}

		select {
		case <-ctx.Done():
			return "", fmt.Errorf("%w: %v", ErrLinkTimeout, ctx.Err())
		case <-ticker.C:
		}
	}
}

// ExtractShortLink returns the first affiliate short link found in text, or
// an empty string.
func ExtractShortLink(text string) string {
	return shortLinkPattern.FindString(text)
}

func waitFirst(ctx context.Context, locators []locator, perAttempt time.Duration) (locator, error) {
	var lastErr error
	for _, loc := range locators {
		attemptCtx, cancel := context.WithTimeout(ctx, perAttempt)
		err := chromedp.Run(attemptCtx, chromedp.WaitVisible(loc.sel, queryOpts(loc)...))
		cancel()
		if err == nil {
			return loc, nil
		}
		lastErr = err
		if ctx.Err() != nil {
			break
		}
		slog.Debug("Locator strategy missed", "strategy", loc.name, "error", err)
	}
	return locator{}, fmt.Errorf("no locator matched: %w", lastErr)
}

func queryOpts(loc locator) []chromedp.QueryOption {
	if loc.byXPath {
		return []chromedp.QueryOption{chromedp.BySearch}
	}
	return []chromedp.QueryOption{chromedp.ByQuery}
}
