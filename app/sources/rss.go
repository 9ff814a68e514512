package sources

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/mmcdole/gofeed"

	"github.com/lysyi3m/social-comb/app/config"
	"github.com/lysyi3m/social-comb/app/content"
)

// RSS discovers items from an RSS or Atom feed. Each entry becomes an
// immutable content.Item carrying the source's configured default license.
type RSS struct {
	httpClient *http.Client
	parser     *gofeed.Parser
	userAgent  string
	now        func() time.Time
}

func NewRSS(userAgent string) *RSS {
	return &RSS{
		httpClient: &http.Client{},
		parser:     gofeed.NewParser(),
		userAgent:  userAgent,
		now:        time.Now,
	}
}

// Fetch downloads and parses the source's feed, returning at most the
// source's configured item cap.
func (r *RSS) Fetch(ctx context.Context, source *config.Source) ([]content.Item, error) {
	data, err := r.fetchFeed(ctx, source)
	if err != nil {
		return nil, err
	}

	feed, err := r.parser.Parse(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("failed to parse feed: %w", err)
	}

	discoveredAt := r.now().UTC()
	maxItems := source.Settings.MaxItems

	var items []content.Item
	for _, entry := range feed.Items {
		if maxItems > 0 && len(items) >= maxItems {
			break
		}
		items = append(items, r.normalizeEntry(source, entry, discoveredAt))
	}

	return items, nil
}

func (r *RSS) normalizeEntry(source *config.Source, entry *gofeed.Item, discoveredAt time.Time) content.Item {
	item := content.Item{
		Source:       source.Name,
		ExternalID:   entry.GUID,
		Title:        strings.TrimSpace(entry.Title),
		RawText:      entryText(entry),
		URL:          entry.Link,
		License:      source.License,
		Categories:   entry.Categories,
		DiscoveredAt: discoveredAt,
	}

	if entry.GUID == "" {
		item.ExternalID = entry.Link
	}
	if entry.PublishedParsed != nil {
		published := entry.PublishedParsed.UTC()
		item.PublishedAt = &published
	}
	if len(entry.Authors) > 0 && entry.Authors[0] != nil {
		item.Author = entry.Authors[0].Name
	}

	return item
}

func (r *RSS) fetchFeed(ctx context.Context, source *config.Source) ([]byte, error) {
	timeoutCtx, cancel := context.WithTimeout(ctx, time.Duration(source.Settings.Timeout)*time.Second)
	defer cancel()

	req, err := http.NewRequestWithContext(timeoutCtx, "GET", source.URL, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}

	req.Header.Set("User-Agent", r.userAgent)

	resp, err := r.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch feed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("HTTP error: %d %s", resp.StatusCode, resp.Status)
	}

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response body: %w", err)
	}

	return data, nil
}

// entryText prefers the full content body over the description and strips
// nothing; normalization happens at fingerprinting time.
func entryText(entry *gofeed.Item) string {
	if strings.TrimSpace(entry.Content) != "" {
		return strings.TrimSpace(entry.Content)
	}
	return strings.TrimSpace(entry.Description)
}
