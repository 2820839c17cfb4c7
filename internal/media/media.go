// Package media caches offer thumbnails locally for channels and audits that
// need a file rather than a URL.
package media

import (
	"context"
	"crypto/sha1"
	"encoding/hex"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"time"
)

type Fetcher struct {
	dir    string
	client *http.Client
}

func NewFetcher(dir string) *Fetcher {
	return &Fetcher{
		dir:    dir,
		client: &http.Client{Timeout: 30 * time.Second},
	}
}

// Fetch downloads the image to the cache directory and returns the local
// path. Files are named by URL hash, so repeated fetches of the same
// thumbnail are free.
func (f *Fetcher) Fetch(ctx context.Context, imageURL string) (string, error) {
	sum := sha1.Sum([]byte(imageURL))
	path := filepath.Join(f.dir, hex.EncodeToString(sum[:])+".jpg")

	if _, err := os.Stat(path); err == nil {
		return path, nil
	}

	if err := os.MkdirAll(f.dir, 0o755); err != nil {
		return "", fmt.Errorf("create media directory: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, imageURL, nil)
	if err != nil {
		return "", fmt.Errorf("build image request: %w", err)
	}

	resp, err := f.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("fetch image: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("image fetch returned status %d", resp.StatusCode)
	}

	tmp, err := os.CreateTemp(f.dir, "download-*")
	if err != nil {
		return "", fmt.Errorf("create temp image file: %w", err)
	}
	defer os.Remove(tmp.Name())

	if _, err := io.Copy(tmp, resp.Body); err != nil {
		tmp.Close()
		return "", fmt.Errorf("write image file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return "", fmt.Errorf("close image file: %w", err)
	}
	if err := os.Rename(tmp.Name(), path); err != nil {
		return "", fmt.Errorf("finalize image file: %w", err)
	}
	return path, nil
}
