package sources

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/lysyi3m/social-comb/app/config"
)

const sampleFeed = `<?xml version="1.0" encoding="UTF-8"?>
<rss version="2.0">
  <channel>
    <title>Example Feed</title>
    <link>https://example.com</link>
    <item>
      <guid>entry-1</guid>
      <title>First entry</title>
      <link>https://example.com/1</link>
      <description>Short teaser.</description>
      <category>golang</category>
      <pubDate>Fri, 28 Aug 2026 08:00:00 GMT</pubDate>
    </item>
    <item>
      <guid>entry-2</guid>
      <title>Second entry</title>
      <link>https://example.com/2</link>
      <description>Another teaser.</description>
    </item>
    <item>
      <title>No GUID entry</title>
      <link>https://example.com/3</link>
      <description>Teaser three.</description>
    </item>
  </channel>
</rss>`

func feedServer(t *testing.T) *httptest.Server {
	t.Helper()
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !strings.Contains(r.Header.Get("User-Agent"), "test-agent") {
			t.Errorf("Unexpected user agent: %s", r.Header.Get("User-Agent"))
		}
		w.Header().Set("Content-Type", "application/rss+xml")
		w.Write([]byte(sampleFeed))
	}))
	t.Cleanup(server.Close)
	return server
}

func testSource(url string) *config.Source {
	return &config.Source{
		Name:    "example",
		URL:     url,
		License: "cc-by",
		Settings: config.SourceSettings{
			Enabled: true,
			Timeout: 5,
		},
	}
}

func TestRSSFetch(t *testing.T) {
	server := feedServer(t)
	rss := NewRSS("test-agent")

	items, err := rss.Fetch(context.Background(), testSource(server.URL))
	if err != nil {
		t.Fatalf("Fetch failed: %v", err)
	}
	if len(items) != 3 {
		t.Fatalf("Expected 3 items, got %d", len(items))
	}

	first := items[0]
	if first.Source != "example" {
		t.Errorf("Expected source 'example', got '%s'", first.Source)
	}
	if first.ExternalID != "entry-1" {
		t.Errorf("Expected external ID 'entry-1', got '%s'", first.ExternalID)
	}
	if first.License != "cc-by" {
		t.Errorf("Expected source default license, got '%s'", first.License)
	}
	if first.RawText != "Short teaser." {
		t.Errorf("Unexpected raw text: '%s'", first.RawText)
	}
	if len(first.Categories) != 1 || first.Categories[0] != "golang" {
		t.Errorf("Unexpected categories: %v", first.Categories)
	}
	if first.PublishedAt == nil {
		t.Error("Expected published time")
	}
	if first.DiscoveredAt.IsZero() {
		t.Error("Expected discovery time")
	}
}

func TestRSSFetchFallsBackToLinkForExternalID(t *testing.T) {
	server := feedServer(t)
	rss := NewRSS("test-agent")

	items, err := rss.Fetch(context.Background(), testSource(server.URL))
	if err != nil {
		t.Fatalf("Fetch failed: %v", err)
	}

	if items[2].ExternalID != "https://example.com/3" {
		t.Errorf("Expected link fallback, got '%s'", items[2].ExternalID)
	}
}

func TestRSSFetchRespectsMaxItems(t *testing.T) {
	server := feedServer(t)
	rss := NewRSS("test-agent")

	source := testSource(server.URL)
	source.Settings.MaxItems = 1

	items, err := rss.Fetch(context.Background(), source)
	if err != nil {
		t.Fatalf("Fetch failed: %v", err)
	}
	if len(items) != 1 {
		t.Errorf("Expected 1 item, got %d", len(items))
	}
}

func TestRSSFetchHTTPError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer server.Close()

	rss := NewRSS("test-agent")
	if _, err := rss.Fetch(context.Background(), testSource(server.URL)); err == nil {
		t.Error("Expected error for HTTP 503")
	}
}

func TestRSSFetchInvalidFeed(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("not a feed"))
	}))
	defer server.Close()

	rss := NewRSS("test-agent")
	if _, err := rss.Fetch(context.Background(), testSource(server.URL)); err == nil {
		t.Error("Expected error for invalid feed")
	}
}

func TestContentExtractor(t *testing.T) {
	html := `<html><head><title>Page</title></head><body>
		<article><h1>Headline</h1>
		<p>` + strings.Repeat("Readable paragraph text that the extractor should keep. ", 10) + `</p>
		</article></body></html>`

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(html))
	}))
	defer server.Close()

	extractor := NewContentExtractor("test-agent")
	text, err := extractor.Run(context.Background(), server.URL, 5*time.Second)
	if err != nil {
		t.Fatalf("Run failed: %v", err)
	}
	if !strings.Contains(text, "Readable paragraph text") {
		t.Errorf("Expected extracted paragraph text, got: %q", text)
	}
	if strings.Contains(text, "<p>") {
		t.Error("Expected plain text without HTML tags")
	}
}

func TestContentExtractorEmptyInput(t *testing.T) {
	extractor := NewContentExtractor("test-agent")
	if _, err := extractor.Extract(nil); err == nil {
		t.Error("Expected error for empty input")
	}
}
