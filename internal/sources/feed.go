package sources

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"
)

// FeedAdapter fetches listings from a source's JSON feed endpoint. It is
// the one adapter implementation shipped with the service; per-source
// HTML scrapers plug in behind the same Adapter interface from outside.
type FeedAdapter struct {
	source  string
	feedURL string
	client  *http.Client
}

// NewFeedAdapter creates a feed adapter for the named source
func NewFeedAdapter(source, feedURL string, client *http.Client) *FeedAdapter {
	if client == nil {
		client = &http.Client{Timeout: 30 * time.Second}
	}
	return &FeedAdapter{
		source:  source,
		feedURL: feedURL,
		client:  client,
	}
}

// Source returns the source name this adapter serves
func (a *FeedAdapter) Source() string {
	return a.source
}

// feedListing is the wire shape of one listing in a source feed
type feedListing struct {
	Destination string   `json:"destination"`
	Title       string   `json:"title"`
	Island      string   `json:"island"`
	Resort      string   `json:"resort"`
	Price       float64  `json:"price"`
	Currency    string   `json:"currency"`
	URL         string   `json:"url"`
	Duration    string   `json:"duration"`
	Inclusions  []string `json:"inclusions"`
	Exclusions  []string `json:"exclusions"`
}

// Fetch downloads and decodes the source feed. Safe to call repeatedly;
// it holds no state between calls.
func (a *FeedAdapter) Fetch(ctx context.Context, cfg FetchConfig) ([]RawListing, error) {
	if cfg.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, cfg.Timeout)
		defer cancel()
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, a.feedURL, nil)
	if err != nil {
		return nil, fmt.Errorf("building feed request for %s: %w", a.source, err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := a.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetching feed for %s: %w", a.source, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("feed for %s returned status %d", a.source, resp.StatusCode)
	}

	var feed struct {
		Listings []feedListing `json:"listings"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&feed); err != nil {
		return nil, fmt.Errorf("decoding feed for %s: %w", a.source, err)
	}

	listings := make([]RawListing, 0, len(feed.Listings))
	for _, fl := range feed.Listings {
		listings = append(listings, RawListing{
			Source:      a.source,
			Destination: fl.Destination,
			Title:       fl.Title,
			Island:      fl.Island,
			Resort:      fl.Resort,
			Price:       fl.Price,
			Currency:    fl.Currency,
			URL:         fl.URL,
			Duration:    fl.Duration,
			Inclusions:  fl.Inclusions,
			Exclusions:  fl.Exclusions,
		})
		if cfg.BatchSize > 0 && len(listings) >= cfg.BatchSize {
			break
		}
	}

	return listings, nil
}

// FetchDetail fetches a per-listing detail document. Feed sources expose
// detail as JSON alongside the feed; the heuristics for HTML detail pages
// live in external adapters.
func (a *FeedAdapter) FetchDetail(ctx context.Context, url string) (DetailFacts, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return DetailFacts{}, fmt.Errorf("building detail request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := a.client.Do(req)
	if err != nil {
		return DetailFacts{}, fmt.Errorf("fetching detail page: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return DetailFacts{}, fmt.Errorf("detail page returned status %d", resp.StatusCode)
	}

	var facts DetailFacts
	if err := json.NewDecoder(resp.Body).Decode(&facts); err != nil {
		return DetailFacts{}, fmt.Errorf("decoding detail page: %w", err)
	}
	return facts, nil
}
