package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	apperrors "tripharvest/internal/errors"
	"tripharvest/internal/geocode"
)

// Get loads one geocode cache entry by its normalized query key
func (s *Store) Get(ctx context.Context, queryKey string) (*geocode.CacheEntry, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT query_key, resort_name, island, lon, lat, formatted_address,
		       quality_score, method, is_verified, last_updated
		FROM geocode_cache WHERE query_key = ?`, queryKey)

	entry, err := scanCacheEntry(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, apperrors.ErrEntryNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("reading cache entry %s: %w", queryKey, err)
	}
	return entry, nil
}

// Upsert writes an entry keyed by query_key, skipping the update when
// the existing row is verified. The conditional update is the
// compare-and-swap protecting operator-verified entries from automatic
// re-resolution.
func (s *Store) Upsert(ctx context.Context, entry geocode.CacheEntry) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO geocode_cache
			(query_key, resort_name, island, lon, lat, formatted_address,
			 quality_score, method, is_verified, last_updated)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(query_key) DO UPDATE SET
			resort_name = excluded.resort_name,
			island = excluded.island,
			lon = excluded.lon,
			lat = excluded.lat,
			formatted_address = excluded.formatted_address,
			quality_score = excluded.quality_score,
			method = excluded.method,
			last_updated = excluded.last_updated
		WHERE geocode_cache.is_verified = 0`,
		entry.QueryKey, entry.ResortName, entry.Island,
		entry.Coordinates.Lon, entry.Coordinates.Lat, entry.FormattedAddress,
		entry.QualityScore, entry.Method, boolToInt(entry.IsVerified),
		entry.LastUpdated.UTC())
	if err != nil {
		return fmt.Errorf("upserting cache entry %s: %w", entry.QueryKey, err)
	}
	return nil
}

// Put writes an entry unconditionally. Reserved for the operator edit
// path, the only one allowed to touch verified entries.
func (s *Store) Put(ctx context.Context, entry geocode.CacheEntry) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO geocode_cache
			(query_key, resort_name, island, lon, lat, formatted_address,
			 quality_score, method, is_verified, last_updated)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(query_key) DO UPDATE SET
			resort_name = excluded.resort_name,
			island = excluded.island,
			lon = excluded.lon,
			lat = excluded.lat,
			formatted_address = excluded.formatted_address,
			quality_score = excluded.quality_score,
			method = excluded.method,
			is_verified = excluded.is_verified,
			last_updated = excluded.last_updated`,
		entry.QueryKey, entry.ResortName, entry.Island,
		entry.Coordinates.Lon, entry.Coordinates.Lat, entry.FormattedAddress,
		entry.QualityScore, entry.Method, boolToInt(entry.IsVerified),
		entry.LastUpdated.UTC())
	if err != nil {
		return fmt.Errorf("writing cache entry %s: %w", entry.QueryKey, err)
	}
	return nil
}

// List returns every cache entry
func (s *Store) List(ctx context.Context) ([]geocode.CacheEntry, error) {
	return s.queryCacheEntries(ctx, `
		SELECT query_key, resort_name, island, lon, lat, formatted_address,
		       quality_score, method, is_verified, last_updated
		FROM geocode_cache ORDER BY query_key`)
}

// ListBelowScore returns entries scored strictly below the threshold
func (s *Store) ListBelowScore(ctx context.Context, threshold int) ([]geocode.CacheEntry, error) {
	return s.queryCacheEntries(ctx, `
		SELECT query_key, resort_name, island, lon, lat, formatted_address,
		       quality_score, method, is_verified, last_updated
		FROM geocode_cache WHERE quality_score < ? ORDER BY query_key`, threshold)
}

// Clear removes every cache entry
func (s *Store) Clear(ctx context.Context) error {
	if _, err := s.db.ExecContext(ctx, `DELETE FROM geocode_cache`); err != nil {
		return fmt.Errorf("clearing geocode cache: %w", err)
	}
	return nil
}

func (s *Store) queryCacheEntries(ctx context.Context, query string, args ...interface{}) ([]geocode.CacheEntry, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("listing cache entries: %w", err)
	}
	defer rows.Close()

	var entries []geocode.CacheEntry
	for rows.Next() {
		entry, err := scanCacheEntry(rows)
		if err != nil {
			return nil, fmt.Errorf("scanning cache entry: %w", err)
		}
		entries = append(entries, *entry)
	}
	return entries, rows.Err()
}

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanCacheEntry(row rowScanner) (*geocode.CacheEntry, error) {
	var entry geocode.CacheEntry
	var verified int
	if err := row.Scan(&entry.QueryKey, &entry.ResortName, &entry.Island,
		&entry.Coordinates.Lon, &entry.Coordinates.Lat, &entry.FormattedAddress,
		&entry.QualityScore, &entry.Method, &verified, &entry.LastUpdated); err != nil {
		return nil, err
	}
	entry.IsVerified = verified != 0
	return &entry, nil
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
