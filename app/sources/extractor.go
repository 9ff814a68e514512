package sources

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/go-shiori/go-readability"
)

// ContentExtractor fetches an item's page and extracts its readable text.
// Used for sources that only publish teasers in their feed; the full text
// makes fingerprinting and scoring far more reliable.
type ContentExtractor struct {
	httpClient *http.Client
	userAgent  string
}

func NewContentExtractor(userAgent string) *ContentExtractor {
	return &ContentExtractor{
		httpClient: &http.Client{},
		userAgent:  userAgent,
	}
}

// Run fetches the page at url and returns its readable plain text.
func (e *ContentExtractor) Run(ctx context.Context, url string, timeout time.Duration) (string, error) {
	data, err := e.fetchPage(ctx, url, timeout)
	if err != nil {
		return "", err
	}
	return e.Extract(data)
}

// Extract pulls the readable plain text out of raw HTML.
func (e *ContentExtractor) Extract(data []byte) (string, error) {
	if len(data) == 0 {
		return "", fmt.Errorf("HTML data is empty")
	}

	article, err := readability.FromReader(strings.NewReader(string(data)), nil)
	if err != nil {
		return "", fmt.Errorf("failed to extract content: %w", err)
	}

	text := strings.TrimSpace(article.TextContent)
	if text == "" {
		return "", fmt.Errorf("no content extracted from HTML data")
	}

	slog.Debug("Content extracted successfully",
		"title", article.Title,
		"content_length", len(text))

	return text, nil
}

func (e *ContentExtractor) fetchPage(ctx context.Context, url string, timeout time.Duration) ([]byte, error) {
	timeoutCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(timeoutCtx, "GET", url, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}

	req.Header.Set("User-Agent", e.userAgent)

	resp, err := e.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch page: %w", err)
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
