// Package geocode resolves noisy resort names to scored coordinates.
//
// Resolution runs a query fan-out against an external geocoder, scores
// every candidate deterministically, and memoizes accepted results in a
// persistent cache keyed by normalized query. Verified entries are
// protected from every automatic write path.
package geocode

import (
	"context"
	"encoding/json"
	"fmt"
	"time"
)

// Resolution method recorded on a cache entry
const (
	MethodAPIGeocoding = "api_geocoding"
	MethodBeachMatch   = "beach_match"
	MethodFallback     = "fallback"
	MethodManual       = "manual"
)

// Coordinates is a longitude/latitude pair. It marshals as the
// two-element [lng, lat] array used on the wire.
type Coordinates struct {
	Lon float64
	Lat float64
}

// MarshalJSON renders the coordinate as [lng, lat]
func (c Coordinates) MarshalJSON() ([]byte, error) {
	return json.Marshal([2]float64{c.Lon, c.Lat})
}

// UnmarshalJSON accepts a [lng, lat] array
func (c *Coordinates) UnmarshalJSON(data []byte) error {
	var arr [2]float64
	if err := json.Unmarshal(data, &arr); err != nil {
		return fmt.Errorf("coordinates must be a [lng, lat] array: %w", err)
	}
	c.Lon, c.Lat = arr[0], arr[1]
	return nil
}

// Valid reports whether the pair is inside the global lng/lat ranges
func (c Coordinates) Valid() bool {
	return c.Lon >= -180 && c.Lon <= 180 && c.Lat >= -90 && c.Lat <= 90
}

// CacheEntry is the memo of one resolved coordinate
type CacheEntry struct {
	QueryKey         string      `json:"queryKey"`
	ResortName       string      `json:"resortName"`
	Island           string      `json:"island"`
	Coordinates      Coordinates `json:"coordinates"`
	FormattedAddress string      `json:"formattedAddress"`
	QualityScore     int         `json:"qualityScore"`
	Method           string      `json:"method"`
	IsVerified       bool        `json:"isVerified"`
	LastUpdated      time.Time   `json:"lastUpdated"`
}

// Resolution is the outcome of a successful resolve
type Resolution struct {
	Coordinates      Coordinates `json:"coordinates"`
	FormattedAddress string      `json:"formattedAddress"`
	QualityScore     int         `json:"qualityScore"`
	Method           string      `json:"method"`
}

// Cache is the persistent geocode memo store.
//
// Upsert must skip the write when the existing row for the same QueryKey
// is verified; Put writes unconditionally and exists only for the
// operator edit path.
type Cache interface {
	Get(ctx context.Context, queryKey string) (*CacheEntry, error)
	Upsert(ctx context.Context, entry CacheEntry) error
	Put(ctx context.Context, entry CacheEntry) error
	List(ctx context.Context) ([]CacheEntry, error)
	ListBelowScore(ctx context.Context, threshold int) ([]CacheEntry, error)
	Clear(ctx context.Context) error
}

// Candidate is one geometry answer from the external geocoder
type Candidate struct {
	Coordinates Coordinates
	DisplayName string
}

// Geocoder is the external geocoding endpoint behind an interface so
// tests can substitute canned answers.
type Geocoder interface {
	Geocode(ctx context.Context, query string) ([]Candidate, error)
}
