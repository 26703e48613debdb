package knowledge

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/go-shiori/go-readability"
)

// WebLoader fetches URLs and extracts readable article text.
type WebLoader struct {
	client *http.Client
}

// NewWebLoader creates a WebLoader with a 15-second timeout.
func NewWebLoader() *WebLoader {
	return &WebLoader{
		client: &http.Client{Timeout: 15 * time.Second},
	}
}

// Fetch downloads a URL, runs readability extraction, and returns the page
// as a Document. The response body is capped at 1MB.
func (w *WebLoader) Fetch(ctx context.Context, rawURL string) (Document, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return Document{}, fmt.Errorf("invalid URL: %w", err)
	}
	req.Header.Set("User-Agent", "Mozilla/5.0 (compatible; SwitchboardBot/1.0)")

	resp, err := w.client.Do(req)
	if err != nil {
		return Document{}, fmt.Errorf("fetch error: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		return Document{}, fmt.Errorf("HTTP %d from %s", resp.StatusCode, rawURL)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return Document{}, fmt.Errorf("read error: %w", err)
	}

	parsedURL, _ := url.Parse(rawURL)
	article, err := readability.FromReader(strings.NewReader(string(body)), parsedURL)
	if err != nil || strings.TrimSpace(article.TextContent) == "" {
		return Document{}, fmt.Errorf("no readable content at %s", rawURL)
	}

	meta := map[string]any{}
	if article.Title != "" {
		meta["title"] = article.Title
	}
	return Document{
		ID:       rawURL,
		Source:   rawURL,
		Text:     strings.TrimSpace(article.TextContent),
		Metadata: meta,
	}, nil
}
