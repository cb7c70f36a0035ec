package sources

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const sampleFeed = `{
	"listings": [
		{
			"destination": "Pulau Redang",
			"title": "3D2N Laguna Redang Snorkeling Package",
			"island": "Redang",
			"resort": "Laguna Redang",
			"price": 450,
			"currency": "MYR",
			"url": "https://example.com/p/laguna",
			"duration": "3D2N",
			"inclusions": ["boat transfer", "snorkeling"]
		},
		{
			"destination": "Pulau Tioman",
			"title": "4D3N Berjaya Tioman Fullboard",
			"island": "Tioman",
			"resort": "Berjaya Tioman",
			"price": 620,
			"currency": "MYR",
			"url": "https://example.com/p/berjaya"
		},
		{
			"destination": "Pulau Perhentian",
			"title": "3D2N Bubu Long Beach",
			"island": "Perhentian",
			"resort": "Bubu Resort",
			"price": 520,
			"currency": "MYR"
		}
	]
}`

func TestFeedAdapterFetch(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "application/json", r.Header.Get("Accept"))
		w.Write([]byte(sampleFeed))
	}))
	defer srv.Close()

	adapter := NewFeedAdapter("holidaygogogo", srv.URL, srv.Client())
	listings, err := adapter.Fetch(context.Background(), FetchConfig{})
	require.NoError(t, err)
	require.Len(t, listings, 3)

	first := listings[0]
	assert.Equal(t, "holidaygogogo", first.Source)
	assert.Equal(t, "Pulau Redang", first.Destination)
	assert.Equal(t, "Laguna Redang", first.Resort)
	assert.Equal(t, 450.0, first.Price)
	assert.True(t, first.Valid())
}

func TestFeedAdapterFetchHonorsBatchSize(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Write([]byte(sampleFeed))
	}))
	defer srv.Close()

	adapter := NewFeedAdapter("holidaygogogo", srv.URL, srv.Client())
	listings, err := adapter.Fetch(context.Background(), FetchConfig{BatchSize: 2})
	require.NoError(t, err)
	assert.Len(t, listings, 2)
}

func TestFeedAdapterFetchErrors(t *testing.T) {
	t.Run("non-200 status", func(t *testing.T) {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
			w.WriteHeader(http.StatusBadGateway)
		}))
		defer srv.Close()

		adapter := NewFeedAdapter("amitravel", srv.URL, srv.Client())
		_, err := adapter.Fetch(context.Background(), FetchConfig{})
		assert.Error(t, err)
	})

	t.Run("malformed body", func(t *testing.T) {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
			w.Write([]byte("<html>not json</html>"))
		}))
		defer srv.Close()

		adapter := NewFeedAdapter("amitravel", srv.URL, srv.Client())
		_, err := adapter.Fetch(context.Background(), FetchConfig{})
		assert.Error(t, err)
	})
}

func TestFeedAdapterFetchDetail(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Write([]byte(`{"duration":"3D2N","inclusions":["meals"],"exclusions":["flights"]}`))
	}))
	defer srv.Close()

	adapter := NewFeedAdapter("tripcarte", srv.URL, srv.Client())
	facts, err := adapter.FetchDetail(context.Background(), srv.URL+"/detail/1")
	require.NoError(t, err)
	assert.Equal(t, "3D2N", facts.Duration)
	assert.Equal(t, []string{"meals"}, facts.Inclusions)
	assert.Equal(t, []string{"flights"}, facts.Exclusions)
}

func TestRegistry(t *testing.T) {
	r := NewRegistry()

	a := NewFeedAdapter("holidaygogogo", "https://example.com/feed", nil)
	b := NewFeedAdapter("amitravel", "https://example.com/feed2", nil)
	require.NoError(t, r.Register(a))
	require.NoError(t, r.Register(b))

	assert.Error(t, r.Register(a), "duplicate registration rejected")
	assert.Error(t, r.Register(nil))

	assert.True(t, r.Has("holidaygogogo"))
	assert.False(t, r.Has("ghost"))
	assert.Equal(t, 2, r.Count())
	assert.Equal(t, []string{"holidaygogogo", "amitravel"}, r.Names())

	got, err := r.Get("amitravel")
	require.NoError(t, err)
	assert.Equal(t, "amitravel", got.Source())
	_, err = r.Get("ghost")
	assert.Error(t, err)

	known, unknown := r.Filter([]string{"amitravel", "ghost", "holidaygogogo"})
	assert.Equal(t, []string{"amitravel", "holidaygogogo"}, known)
	assert.Equal(t, []string{"ghost"}, unknown)
}

func TestRawListingValid(t *testing.T) {
	assert.True(t, RawListing{Source: "a", Destination: "b", Title: "c"}.Valid())
	assert.False(t, RawListing{Source: "a", Title: "c"}.Valid())
	assert.False(t, RawListing{}.Valid())
}
