package store

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	apperrors "tripharvest/internal/errors"
	"tripharvest/internal/geocode"
	"tripharvest/internal/operations"
	"tripharvest/internal/sources"
)

func openTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := Open(filepath.Join(t.TempDir(), "harvester.db"))
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s
}

func cacheEntry(key string, score int, verified bool) geocode.CacheEntry {
	return geocode.CacheEntry{
		QueryKey:         key,
		ResortName:       "laguna redang island resort",
		Island:           "redang",
		Coordinates:      geocode.Coordinates{Lon: 103.01, Lat: 5.78},
		FormattedAddress: "Laguna Redang Island Resort, Redang, Terengganu, Malaysia",
		QualityScore:     score,
		Method:           geocode.MethodAPIGeocoding,
		IsVerified:       verified,
		LastUpdated:      time.Now().UTC(),
	}
}

func TestGeocacheGetMissing(t *testing.T) {
	s := openTestStore(t)
	_, err := s.Get(context.Background(), "nope|nowhere")
	assert.ErrorIs(t, err, apperrors.ErrEntryNotFound)
}

func TestGeocacheUpsertRoundTrip(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	entry := cacheEntry("laguna|redang", 75, false)
	require.NoError(t, s.Upsert(ctx, entry))

	got, err := s.Get(ctx, "laguna|redang")
	require.NoError(t, err)
	assert.Equal(t, entry.Coordinates, got.Coordinates)
	assert.Equal(t, 75, got.QualityScore)
	assert.False(t, got.IsVerified)

	// A second upsert for the same key replaces the unverified row.
	entry.QualityScore = 90
	entry.Coordinates = geocode.Coordinates{Lon: 103.02, Lat: 5.79}
	require.NoError(t, s.Upsert(ctx, entry))

	got, err = s.Get(ctx, "laguna|redang")
	require.NoError(t, err)
	assert.Equal(t, 90, got.QualityScore)
	assert.Equal(t, geocode.Coordinates{Lon: 103.02, Lat: 5.79}, got.Coordinates)
}

func TestGeocacheUpsertNeverTouchesVerifiedRows(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	pinned := cacheEntry("laguna|redang", 100, true)
	pinned.Method = geocode.MethodManual
	require.NoError(t, s.Put(ctx, pinned))

	attempt := cacheEntry("laguna|redang", 40, false)
	attempt.Coordinates = geocode.Coordinates{Lon: 101.0, Lat: 3.0}
	require.NoError(t, s.Upsert(ctx, attempt))

	got, err := s.Get(ctx, "laguna|redang")
	require.NoError(t, err)
	assert.Equal(t, pinned.Coordinates, got.Coordinates)
	assert.Equal(t, 100, got.QualityScore)
	assert.Equal(t, geocode.MethodManual, got.Method)
	assert.True(t, got.IsVerified)

	// Put, the operator path, may overwrite a verified row.
	edit := cacheEntry("laguna|redang", 100, true)
	edit.Coordinates = geocode.Coordinates{Lon: 103.05, Lat: 5.80}
	require.NoError(t, s.Put(ctx, edit))

	got, err = s.Get(ctx, "laguna|redang")
	require.NoError(t, err)
	assert.Equal(t, edit.Coordinates, got.Coordinates)
}

func TestGeocacheListBelowScoreAndClear(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	require.NoError(t, s.Put(ctx, cacheEntry("a|redang", 30, false)))
	require.NoError(t, s.Put(ctx, cacheEntry("b|redang", 60, false)))
	require.NoError(t, s.Put(ctx, cacheEntry("c|redang", 90, false)))

	low, err := s.ListBelowScore(ctx, 60)
	require.NoError(t, err)
	require.Len(t, low, 1)
	assert.Equal(t, "a|redang", low[0].QueryKey)

	all, err := s.List(ctx)
	require.NoError(t, err)
	assert.Len(t, all, 3)

	require.NoError(t, s.Clear(ctx))
	all, err = s.List(ctx)
	require.NoError(t, err)
	assert.Empty(t, all)
}

func sampleSnapshot(id string, trigger operations.TriggerKind, status operations.Status, start time.Time) *operations.Snapshot {
	snap := &operations.Snapshot{
		ID:          id,
		TriggerKind: trigger,
		Status:      status,
		Progress:    100,
		StartTime:   start,
		SourceResults: []operations.SourceResult{
			{Source: "alpha", Status: operations.SourceCompleted, ListingsFound: 3},
		},
		Aggregate: operations.AggregateResults{TotalSources: 1, SuccessfulSources: 1, TotalListingsFound: 3},
	}
	if status.Terminal() {
		end := start.Add(time.Minute)
		snap.EndTime = &end
	}
	return snap
}

func TestOperationsSaveIsAnUpsert(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()
	start := time.Date(2026, 8, 1, 3, 0, 0, 0, time.UTC)

	running := sampleSnapshot("op-1", operations.TriggerAPI, operations.StatusRunning, start)
	running.EndTime = nil
	require.NoError(t, s.SaveOperation(ctx, running))

	done := sampleSnapshot("op-1", operations.TriggerAPI, operations.StatusCompleted, start)
	require.NoError(t, s.SaveOperation(ctx, done))

	got, err := s.GetOperation(ctx, "op-1")
	require.NoError(t, err)
	assert.Equal(t, operations.StatusCompleted, got.Status)
	require.NotNil(t, got.EndTime)
	assert.Equal(t, 3, got.Aggregate.TotalListingsFound)

	_, err = s.GetOperation(ctx, "op-404")
	assert.ErrorIs(t, err, apperrors.ErrOperationNotFound)
}

func TestListOperationsFilteringAndPaging(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	base := time.Date(2026, 8, 1, 3, 0, 0, 0, time.UTC)
	require.NoError(t, s.SaveOperation(ctx, sampleSnapshot("op-1", operations.TriggerScheduled, operations.StatusCompleted, base)))
	require.NoError(t, s.SaveOperation(ctx, sampleSnapshot("op-2", operations.TriggerManual, operations.StatusCancelled, base.Add(24*time.Hour))))
	require.NoError(t, s.SaveOperation(ctx, sampleSnapshot("op-3", operations.TriggerScheduled, operations.StatusCompleted, base.Add(48*time.Hour))))

	// Newest first, no filter.
	snaps, total, err := s.ListOperations(ctx, operations.LogFilter{})
	require.NoError(t, err)
	assert.Equal(t, 3, total)
	require.Len(t, snaps, 3)
	assert.Equal(t, "op-3", snaps[0].ID)

	// Trigger filter.
	snaps, total, err = s.ListOperations(ctx, operations.LogFilter{TriggerKind: operations.TriggerManual})
	require.NoError(t, err)
	assert.Equal(t, 1, total)
	require.Len(t, snaps, 1)
	assert.Equal(t, "op-2", snaps[0].ID)

	// Status filter.
	_, total, err = s.ListOperations(ctx, operations.LogFilter{Status: operations.StatusCompleted})
	require.NoError(t, err)
	assert.Equal(t, 2, total)

	// Inclusive date range covering only the middle day.
	snaps, total, err = s.ListOperations(ctx, operations.LogFilter{StartDate: "2026-08-02", EndDate: "2026-08-02"})
	require.NoError(t, err)
	assert.Equal(t, 1, total)
	require.Len(t, snaps, 1)
	assert.Equal(t, "op-2", snaps[0].ID)

	// Paging.
	snaps, total, err = s.ListOperations(ctx, operations.LogFilter{Page: 2, Limit: 2})
	require.NoError(t, err)
	assert.Equal(t, 3, total)
	require.Len(t, snaps, 1)
	assert.Equal(t, "op-1", snaps[0].ID)

	// Bad date surfaces as an error.
	_, _, err = s.ListOperations(ctx, operations.LogFilter{StartDate: "08/02/2026"})
	assert.Error(t, err)
}

func rawListing(title string) sources.RawListing {
	return sources.RawListing{
		Source:      "holidaygogogo",
		Destination: "Pulau Redang",
		Title:       title,
		Island:      "Redang",
		Resort:      "Laguna Redang",
		Price:       450,
		Currency:    "MYR",
		URL:         "https://example.com/p/" + title,
		Duration:    "3D2N",
		Inclusions:  []string{"boat transfer", "snorkeling"},
	}
}

func TestUpsertListingCreateThenUpdate(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	created, err := s.UpsertListing(ctx, rawListing("pkg-1"))
	require.NoError(t, err)
	assert.True(t, created)

	update := rawListing("pkg-1")
	update.Price = 399
	created, err = s.UpsertListing(ctx, update)
	require.NoError(t, err)
	assert.False(t, created)
}

func TestDistinctResortsSkipsIncompleteRows(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	_, err := s.UpsertListing(ctx, rawListing("pkg-1"))
	require.NoError(t, err)
	_, err = s.UpsertListing(ctx, rawListing("pkg-2"))
	require.NoError(t, err)

	bare := sources.RawListing{Source: "amitravel", Destination: "KL", Title: "city tour"}
	_, err = s.UpsertListing(ctx, bare)
	require.NoError(t, err)

	resorts, err := s.DistinctResorts(ctx)
	require.NoError(t, err)
	require.Len(t, resorts, 1, "identical (resort, island, destination) rows collapse; bare rows drop")
	assert.Equal(t, "Laguna Redang", resorts[0].Resort)
	assert.Equal(t, "Redang", resorts[0].Island)
	assert.Equal(t, "Pulau Redang", resorts[0].AddressHint)
}
