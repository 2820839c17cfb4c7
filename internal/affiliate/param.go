// Package affiliate turns product permalinks into trackable links.
package affiliate

import (
	"context"
	"fmt"
	"net/url"
	"strings"
)

// Resolver produces a trackable link for a product URL.
type Resolver interface {
	Resolve(ctx context.Context, productURL string) (string, error)
}

// ParamResolver appends a fixed tracking parameter to the permalink. This is
// the cheap, deterministic alternative to the browser-driven link builder.
type ParamResolver struct {
	param string
}

func NewParamResolver(param string) *ParamResolver {
	return &ParamResolver{param: strings.TrimPrefix(strings.TrimSpace(param), "&")}
}

// Resolve merges the tracking parameter into the URL's query string. The
// parameter is configured as "key=value" (or several joined by &).
func (r *ParamResolver) Resolve(_ context.Context, productURL string) (string, error) {
	if r.param == "" {
		return productURL, nil
	}

	parsed, err := url.Parse(productURL)
	if err != nil {
		return "", fmt.Errorf("parse product URL: %w", err)
	}

	extra, err := url.ParseQuery(r.param)
	if err != nil {
		return "", fmt.Errorf("parse affiliate param %q: %w", r.param, err)
	}

	query := parsed.Query()
	for key, values := range extra {
		query.Del(key)
		for _, v := range values {
			query.Add(key, v)
		}
	}
	parsed.RawQuery = query.Encode()
	return parsed.String(), nil
}
