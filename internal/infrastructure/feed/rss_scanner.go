package feed

import (
	"context"
	"net/http"
	"strings"
	"time"

	"github.com/mmcdole/gofeed"
	"github.com/rotisserie/eris"

	"OpportunityMonitor/internal/domain"
	"OpportunityMonitor/internal/scanner"
)

const (
	// TypeRSS is the source type handled by RSSScanner. Atom and JSON feeds
	// are accepted under the same type since the parser detects the format.
	TypeRSS = "rss"

	defaultUserAgent  = "OpportunityMonitor/1.0"
	defaultMaxEntries = 200
)

// RSSScanner downloads a syndication feed and flattens its items into raw entries.
type RSSScanner struct {
	client    *http.Client
	userAgent string
}

var _ scanner.Scanner = (*RSSScanner)(nil)

// NewRSSScanner wires an HTTP client; a nil client gets a 20s timeout.
func NewRSSScanner(client *http.Client, userAgent string) *RSSScanner {
	if client == nil {
		client = &http.Client{Timeout: 20 * time.Second}
	}
	if strings.TrimSpace(userAgent) == "" {
		userAgent = defaultUserAgent
	}
	return &RSSScanner{client: client, userAgent: userAgent}
}

// Type identifies the strategy inside the registry.
func (s *RSSScanner) Type() string {
	return TypeRSS
}

// Scan fetches the feed and returns at most req.MaxEntries entries in feed order.
func (s *RSSScanner) Scan(ctx context.Context, req scanner.Request) ([]domain.RawEntry, error) {
	if req.Source.URL == "" {
		return nil, eris.Errorf("rss: source %s has no url", req.Source.Name)
	}

	feed, err := s.fetchFeed(ctx, req.Source.URL)
	if err != nil {
		return nil, eris.Wrapf(err, "rss: source %s", req.Source.Name)
	}

	limit := req.MaxEntries
	if limit <= 0 {
		limit = defaultMaxEntries
	}
	items := feed.Items
	if len(items) > limit {
		items = items[:limit]
	}

	entries := make([]domain.RawEntry, 0, len(items))
	for _, item := range items {
		if item == nil {
			continue
		}
		entries = append(entries, toRawEntry(item))
	}
	return entries, nil
}

func (s *RSSScanner) fetchFeed(ctx context.Context, feedURL string) (*gofeed.Feed, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, feedURL, nil)
	if err != nil {
		return nil, eris.Wrap(err, "build request")
	}
	req.Header.Set("User-Agent", s.userAgent)
	req.Header.Set("Accept", "application/rss+xml, application/atom+xml, application/xml;q=0.9, */*;q=0.8")

	resp, err := s.client.Do(req)
	if err != nil {
		return nil, eris.Wrap(err, "request feed")
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, eris.Errorf("feed returned %s", resp.Status)
	}

	feed, err := gofeed.NewParser().Parse(resp.Body)
	if err != nil {
		return nil, eris.Wrap(err, "parse feed")
	}
	return feed, nil
}

// toRawEntry maps parsed item fields onto the keys the pipeline understands.
// The item description (RSS <description>, Atom <summary>) is the summary and the
// full content is kept as the description fallback.
func toRawEntry(item *gofeed.Item) domain.RawEntry {
	entry := domain.RawEntry{}
	set := func(key, value string) {
		if value = strings.TrimSpace(value); value != "" {
			entry[key] = value
		}
	}

	set(domain.FieldTitle, item.Title)
	set(domain.FieldLink, item.Link)
	set(domain.FieldSummary, item.Description)
	set(domain.FieldDescription, item.Content)
	set(domain.FieldPublished, item.Published)
	set(domain.FieldUpdated, item.Updated)
	if dc := item.DublinCoreExt; dc != nil && len(dc.Date) > 0 {
		set(domain.FieldCreated, dc.Date[0])
	}

	return entry
}
