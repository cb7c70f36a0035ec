package geocode

import (
	"context"
	"errors"
	"log/slog"
	"os"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"tripharvest/internal/config"
	apperrors "tripharvest/internal/errors"
)

// memCache is an in-memory Cache with the same verified-write semantics
// as the SQLite implementation.
type memCache struct {
	mu      sync.Mutex
	entries map[string]CacheEntry
}

func newMemCache() *memCache {
	return &memCache{entries: make(map[string]CacheEntry)}
}

func (m *memCache) Get(_ context.Context, queryKey string) (*CacheEntry, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	e, ok := m.entries[queryKey]
	if !ok {
		return nil, apperrors.ErrEntryNotFound
	}
	return &e, nil
}

func (m *memCache) Upsert(_ context.Context, entry CacheEntry) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if existing, ok := m.entries[entry.QueryKey]; ok && existing.IsVerified {
		return nil
	}
	m.entries[entry.QueryKey] = entry
	return nil
}

func (m *memCache) Put(_ context.Context, entry CacheEntry) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.entries[entry.QueryKey] = entry
	return nil
}

func (m *memCache) List(_ context.Context) ([]CacheEntry, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]CacheEntry, 0, len(m.entries))
	for _, e := range m.entries {
		out = append(out, e)
	}
	return out, nil
}

func (m *memCache) ListBelowScore(_ context.Context, threshold int) ([]CacheEntry, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []CacheEntry
	for _, e := range m.entries {
		if e.QualityScore < threshold {
			out = append(out, e)
		}
	}
	return out, nil
}

func (m *memCache) Clear(_ context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.entries = make(map[string]CacheEntry)
	return nil
}

// fakeGeocoder returns the same canned candidates for every query and
// counts the calls it receives.
type fakeGeocoder struct {
	mu         sync.Mutex
	calls      int
	candidates []Candidate
	err        error
}

func (f *fakeGeocoder) Geocode(_ context.Context, _ string) ([]Candidate, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	return f.candidates, f.err
}

func (f *fakeGeocoder) callCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls
}

func testEngine(cache Cache, geocoder Geocoder) *Engine {
	cfg := config.GeocodeConfig{
		RequestDelay:     time.Microsecond,
		QualityFloor:     20,
		GoodEnoughScore:  60,
		ImproveThreshold: 15,
	}
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelError}))
	return NewEngine(cache, geocoder, cfg, logger)
}

func TestResolveCachesAcceptedResult(t *testing.T) {
	cache := newMemCache()
	geocoder := &fakeGeocoder{candidates: []Candidate{{
		Coordinates: Coordinates{Lon: 103.01, Lat: 5.78},
		DisplayName: "Laguna Redang Island Resort, Redang, Terengganu, Malaysia",
	}}}
	engine := testEngine(cache, geocoder)

	res, err := engine.Resolve(context.Background(), "Laguna Redang", "Pulau Redang", "")
	require.NoError(t, err)
	require.NotNil(t, res)
	assert.Equal(t, 90, res.QualityScore)

	entry, err := cache.Get(context.Background(), "laguna redang island resort|redang")
	require.NoError(t, err)
	assert.Equal(t, res.Coordinates, entry.Coordinates)
	assert.Equal(t, "laguna redang island resort", entry.ResortName)
	assert.Equal(t, "redang", entry.Island)
}

func TestResolveVerifiedHitSkipsGeocoder(t *testing.T) {
	cache := newMemCache()
	key := QueryKey("Laguna Redang", "Redang")
	require.NoError(t, cache.Put(context.Background(), CacheEntry{
		QueryKey:     key,
		ResortName:   "laguna redang island resort",
		Island:       "redang",
		Coordinates:  Coordinates{Lon: 103.02, Lat: 5.77},
		QualityScore: 100,
		Method:       MethodManual,
		IsVerified:   true,
	}))

	geocoder := &fakeGeocoder{err: errors.New("must not be called")}
	engine := testEngine(cache, geocoder)

	res, err := engine.Resolve(context.Background(), "Laguna Redang", "Redang", "")
	require.NoError(t, err)
	require.NotNil(t, res)
	assert.Equal(t, Coordinates{Lon: 103.02, Lat: 5.77}, res.Coordinates)
	assert.Equal(t, MethodManual, res.Method)
	assert.Equal(t, 0, geocoder.callCount())
}

func TestResolveExhaustionIsNotAnError(t *testing.T) {
	cache := newMemCache()
	// Only generic centroids come back, all below the quality floor.
	geocoder := &fakeGeocoder{candidates: []Candidate{{
		Coordinates: Coordinates{Lon: 112.5, Lat: 2.5},
		DisplayName: "MY",
	}}}
	engine := testEngine(cache, geocoder)

	res, err := engine.Resolve(context.Background(), "Nowhere Chalet", "Redang", "")
	require.NoError(t, err)
	assert.Nil(t, res)

	_, err = cache.Get(context.Background(), QueryKey("Nowhere Chalet", "Redang"))
	assert.ErrorIs(t, err, apperrors.ErrEntryNotFound)
	assert.Greater(t, geocoder.callCount(), 1, "fan-out should try multiple templates")
}

func TestResolveQueryFailureMovesOn(t *testing.T) {
	cache := newMemCache()
	geocoder := &flakyGeocoder{good: Candidate{
		Coordinates: Coordinates{Lon: 103.01, Lat: 5.78},
		DisplayName: "Coral Redang Island Resort, Redang, Terengganu, Malaysia",
	}}
	engine := testEngine(cache, geocoder)

	res, err := engine.Resolve(context.Background(), "Coral Redang", "Redang", "")
	require.NoError(t, err)
	require.NotNil(t, res)
	assert.GreaterOrEqual(t, res.QualityScore, 60)
}

// flakyGeocoder fails its first call and answers from the second on
type flakyGeocoder struct {
	mu    sync.Mutex
	calls int
	good  Candidate
}

func (f *flakyGeocoder) Geocode(_ context.Context, _ string) ([]Candidate, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	if f.calls == 1 {
		return nil, errors.New("upstream timeout")
	}
	return []Candidate{f.good}, nil
}

func TestPopulateDeduplicatesQueryKeys(t *testing.T) {
	cache := newMemCache()
	geocoder := &fakeGeocoder{candidates: []Candidate{{
		Coordinates: Coordinates{Lon: 103.01, Lat: 5.78},
		DisplayName: "Laguna Redang Island Resort, Redang, Terengganu, Malaysia",
	}}}
	engine := testEngine(cache, geocoder)

	report, err := engine.Populate(context.Background(), []ResortQuery{
		{Resort: "Laguna Redang", Island: "Pulau Redang"},
		{Resort: "Laguna Redang 2024", Island: "Redang Island"},
	})
	require.NoError(t, err)
	assert.Equal(t, 1, report.Examined)
	assert.Equal(t, 1, report.Resolved)
}

func TestFixGenericSkipsVerifiedAndOffsetsTheRest(t *testing.T) {
	cache := newMemCache()
	generic := Coordinates{Lon: 103.0, Lat: 5.3} // Terengganu centroid

	require.NoError(t, cache.Put(context.Background(), CacheEntry{
		QueryKey: "pinned|redang", ResortName: "pinned", Island: "redang",
		Coordinates: generic, QualityScore: 100, IsVerified: true,
	}))
	require.NoError(t, cache.Put(context.Background(), CacheEntry{
		QueryKey: "stuck chalet|redang", ResortName: "stuck chalet", Island: "redang",
		Coordinates: generic, QualityScore: 10,
	}))

	// Alternate queries find nothing better either.
	engine := testEngine(cache, &fakeGeocoder{candidates: []Candidate{{Coordinates: generic, DisplayName: "MY"}}})

	report, err := engine.FixGeneric(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 2, report.Examined)
	assert.Equal(t, 1, report.Skipped)
	assert.Equal(t, 1, report.Resolved)

	pinned, err := cache.Get(context.Background(), "pinned|redang")
	require.NoError(t, err)
	assert.Equal(t, generic, pinned.Coordinates, "verified entry must not move")

	stuck, err := cache.Get(context.Background(), "stuck chalet|redang")
	require.NoError(t, err)
	assert.NotEqual(t, generic, stuck.Coordinates)
	assert.Equal(t, MethodFallback, stuck.Method)

	isl, _ := LookupIsland("redang")
	assert.True(t, isl.Bounds.Contains(stuck.Coordinates), "offset must stay inside the island box")
}

func TestImproveQualityRequiresSignificantGain(t *testing.T) {
	cache := newMemCache()
	require.NoError(t, cache.Put(context.Background(), CacheEntry{
		QueryKey: "alpha chalet|redang", ResortName: "alpha chalet", Island: "redang",
		Coordinates: Coordinates{Lon: 103.0, Lat: 5.75}, QualityScore: 30,
	}))
	require.NoError(t, cache.Put(context.Background(), CacheEntry{
		QueryKey: "beta chalet|redang", ResortName: "beta chalet", Island: "redang",
		Coordinates: Coordinates{Lon: 103.0, Lat: 5.76}, QualityScore: 55,
	}))

	// Candidate scores 65: 10 base + 30 bounds + 15 island + 10 country.
	engine := testEngine(cache, &fakeGeocoder{candidates: []Candidate{{
		Coordinates: Coordinates{Lon: 103.02, Lat: 5.79},
		DisplayName: "Pasir Panjang, Redang, Terengganu, Malaysia",
	}}})

	report, err := engine.ImproveQuality(context.Background(), 70)
	require.NoError(t, err)
	assert.Equal(t, 2, report.Examined)
	assert.Equal(t, 1, report.Improved)
	assert.Equal(t, 1, report.Skipped)

	alpha, err := cache.Get(context.Background(), "alpha chalet|redang")
	require.NoError(t, err)
	assert.Equal(t, 65, alpha.QualityScore)

	beta, err := cache.Get(context.Background(), "beta chalet|redang")
	require.NoError(t, err)
	assert.Equal(t, 55, beta.QualityScore, "a 10 point gain is below the churn threshold")
}
