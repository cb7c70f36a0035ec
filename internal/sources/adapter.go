// Package sources defines the adapter contract each external
// travel-package provider implements, and the registry holding the fixed
// set of known sources.
package sources

import (
	"context"
	"time"
)

// RawListing is one scraped travel package as delivered by an adapter.
// Source, Destination and Title identify a listing downstream; adapters
// must supply all three non-empty or the listing is dropped.
type RawListing struct {
	Source      string   `json:"source"`
	Destination string   `json:"destination"`
	Title       string   `json:"title"`
	Island      string   `json:"island,omitempty"`
	Resort      string   `json:"resort,omitempty"`
	Price       float64  `json:"price,omitempty"`
	Currency    string   `json:"currency,omitempty"`
	URL         string   `json:"url,omitempty"`
	Duration    string   `json:"duration,omitempty"`
	Inclusions  []string `json:"inclusions,omitempty"`
	Exclusions  []string `json:"exclusions,omitempty"`
}

// DetailFacts carries the extra facts a detail page yields. Extraction
// heuristics are site-specific and live behind the adapter boundary.
type DetailFacts struct {
	Duration   string   `json:"duration,omitempty"`
	Inclusions []string `json:"inclusions,omitempty"`
	Exclusions []string `json:"exclusions,omitempty"`
}

// FetchConfig carries the per-run knobs an adapter may honor
type FetchConfig struct {
	Timeout   time.Duration
	BatchSize int
}

// Adapter is the uniform contract per external source.
//
// Fetch must be idempotent and must not partially mutate shared state on
// failure. FetchDetail is best-effort; callers treat its errors as
// warnings, never as source failures.
type Adapter interface {
	Source() string
	Fetch(ctx context.Context, cfg FetchConfig) ([]RawListing, error)
	FetchDetail(ctx context.Context, url string) (DetailFacts, error)
}

// Valid reports whether the listing carries the three identity fields
func (l RawListing) Valid() bool {
	return l.Source != "" && l.Destination != "" && l.Title != ""
}
