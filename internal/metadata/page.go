package metadata

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"regexp"
	"strings"

	"bagwatch/internal/domain"
)

// DefaultPageBaseURL is the launchpad's token page prefix.
const DefaultPageBaseURL = "https://bags.fm/"

// maxPageBytes caps how much of a token page we read.
const maxPageBytes = 4 << 20

var (
	scriptRe = regexp.MustCompile(`(?is)<(script|style)[^>]*>.*?</(script|style)>`)
	tagRe    = regexp.MustCompile(`<[^>]+>`)
	spaceRe  = regexp.MustCompile(`\s+`)
)

// HTTPPageFetcher loads token pages over plain HTTP. Pages rendered fully
// client-side come back without the fee data; the extractor then simply
// finds no anchor phrases, which downgrades gracefully to an announcement
// without the split.
type HTTPPageFetcher struct {
	client  *http.Client
	baseURL string
}

// NewHTTPPageFetcher creates a page fetcher rooted at baseURL, or the
// launchpad default when empty.
func NewHTTPPageFetcher(client *http.Client, baseURL string) *HTTPPageFetcher {
	if client == nil {
		client = http.DefaultClient
	}
	if baseURL == "" {
		baseURL = DefaultPageBaseURL
	}
	return &HTTPPageFetcher{client: client, baseURL: baseURL}
}

// FetchPage implements PageFetcher.
func (f *HTTPPageFetcher) FetchPage(ctx context.Context, mint domain.Mint) (*Page, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, f.baseURL+string(mint), nil)
	if err != nil {
		return nil, fmt.Errorf("build page request: %w", err)
	}

	resp, err := f.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetch token page: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusTooManyRequests {
		return nil, fmt.Errorf("%w: page for %s", ErrRateLimited, mint)
	}
	if resp.StatusCode == http.StatusNotFound {
		return nil, fmt.Errorf("%w: page for %s", ErrNotIndexed, mint)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("fetch token page: status %d", resp.StatusCode)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxPageBytes))
	if err != nil {
		return nil, fmt.Errorf("read token page: %w", err)
	}

	markup := string(body)
	return &Page{Markup: markup, Text: VisibleText(markup)}, nil
}

// VisibleText strips tags, scripts, and styles from markup, collapsing
// whitespace. Good enough for phrase and percent scanning; not a renderer.
func VisibleText(markup string) string {
	text := scriptRe.ReplaceAllString(markup, " ")
	text = tagRe.ReplaceAllString(text, " ")
	return strings.TrimSpace(spaceRe.ReplaceAllString(text, " "))
}
