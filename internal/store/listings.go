package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"tripharvest/internal/geocode"
	"tripharvest/internal/sources"
)

// UpsertListing writes a listing keyed (source, destination, title) and
// reports whether the row was created rather than updated.
func (s *Store) UpsertListing(ctx context.Context, l sources.RawListing) (bool, error) {
	inclusions, err := json.Marshal(l.Inclusions)
	if err != nil {
		return false, fmt.Errorf("encoding inclusions: %w", err)
	}
	exclusions, err := json.Marshal(l.Exclusions)
	if err != nil {
		return false, fmt.Errorf("encoding exclusions: %w", err)
	}

	var exists int
	err = s.db.QueryRowContext(ctx, `
		SELECT 1 FROM listings WHERE source = ? AND destination = ? AND title = ?`,
		l.Source, l.Destination, l.Title).Scan(&exists)
	isNew := errors.Is(err, sql.ErrNoRows)
	if err != nil && !isNew {
		return false, fmt.Errorf("checking listing existence: %w", err)
	}

	now := time.Now().UTC()
	if isNew {
		_, err = s.db.ExecContext(ctx, `
			INSERT INTO listings (source, destination, title, island, resort,
				price, currency, url, duration, inclusions, exclusions,
				first_seen, last_seen)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
			l.Source, l.Destination, l.Title, l.Island, l.Resort,
			l.Price, l.Currency, l.URL, l.Duration,
			string(inclusions), string(exclusions), now, now)
	} else {
		_, err = s.db.ExecContext(ctx, `
			UPDATE listings SET island = ?, resort = ?, price = ?, currency = ?,
				url = ?, duration = ?, inclusions = ?, exclusions = ?, last_seen = ?
			WHERE source = ? AND destination = ? AND title = ?`,
			l.Island, l.Resort, l.Price, l.Currency,
			l.URL, l.Duration, string(inclusions), string(exclusions), now,
			l.Source, l.Destination, l.Title)
	}
	if err != nil {
		return false, fmt.Errorf("writing listing %s/%s/%s: %w", l.Source, l.Destination, l.Title, err)
	}
	return isNew, nil
}

// DistinctResorts returns every distinct (resort, island) pair across
// all persisted listings. Feeds the geocode Populate maintenance run.
func (s *Store) DistinctResorts(ctx context.Context) ([]geocode.ResortQuery, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT DISTINCT resort, island, destination FROM listings
		WHERE resort <> '' AND island <> ''`)
	if err != nil {
		return nil, fmt.Errorf("listing distinct resorts: %w", err)
	}
	defer rows.Close()

	var resorts []geocode.ResortQuery
	for rows.Next() {
		var rq geocode.ResortQuery
		if err := rows.Scan(&rq.Resort, &rq.Island, &rq.AddressHint); err != nil {
			return nil, fmt.Errorf("scanning resort row: %w", err)
		}
		resorts = append(resorts, rq)
	}
	return resorts, rows.Err()
}
