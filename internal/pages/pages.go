package pages

import (
	"context"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	readability "github.com/go-shiori/go-readability"
)

// Fetcher downloads an article page and extracts its readable HTML body. It
// backs the optional enrichment of directly cached articles whose provider
// snippets are too short to pass the cache admission gate.
type Fetcher struct {
	client *http.Client
}

// NewFetcher creates a page fetcher with the given per-request timeout.
func NewFetcher(timeout time.Duration) *Fetcher {
	if timeout == 0 {
		timeout = 15 * time.Second
	}
	return &Fetcher{
		client: &http.Client{
			Timeout: timeout,
			CheckRedirect: func(req *http.Request, via []*http.Request) error {
				if len(via) >= 10 {
					return http.ErrUseLastResponse
				}
				return nil
			},
		},
	}
}

// Content fetches articleURL and returns the extracted HTML content, or ""
// when the page cannot be fetched or yields nothing substantial. Failures are
// soft: a snippet-only article simply stays ineligible for direct caching.
func (f *Fetcher) Content(ctx context.Context, articleURL string) string {
	req, err := http.NewRequestWithContext(ctx, "GET", articleURL, nil)
	if err != nil {
		return ""
	}
	req.Header.Set("User-Agent", "newsroom/1.0 (news aggregator)")

	resp, err := f.client.Do(req)
	if err != nil {
		return ""
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		return ""
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return ""
	}

	parsedURL, _ := url.Parse(articleURL)
	article, err := readability.FromReader(strings.NewReader(string(body)), parsedURL)
	if err != nil {
		return ""
	}

	content := strings.TrimSpace(article.Content)
	if len(content) > 100 {
		return content
	}
	return ""
}
