package geocode

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestScoreCandidate(t *testing.T) {
	tests := []struct {
		name   string
		cand   Candidate
		resort string
		island string
		want   int
	}{
		{
			name: "strong candidate inside island bounds with full address echo",
			cand: Candidate{
				Coordinates: Coordinates{Lon: 103.01, Lat: 5.78},
				DisplayName: "Laguna Redang Island Resort, Redang, Terengganu, Malaysia",
			},
			resort: "laguna redang island resort",
			island: "Pulau Redang",
			// 10 base + 30 bounds + 25 resort + 15 island + 10 country
			want: 90,
		},
		{
			name: "generic centroid clamps to zero",
			cand: Candidate{
				Coordinates: Coordinates{Lon: 112.5, Lat: 2.5},
				DisplayName: "MY",
			},
			resort: "laguna redang island resort",
			island: "Pulau Redang",
			want:   0,
		},
		{
			name: "in bounds but no textual echoes",
			cand: Candidate{
				Coordinates: Coordinates{Lon: 103.01, Lat: 5.78},
				DisplayName: "Unnamed road, somewhere else entirely",
			},
			resort: "laguna redang island resort",
			island: "Pulau Redang",
			want:   40,
		},
		{
			name: "outside island bounds loses the containment bonus",
			cand: Candidate{
				Coordinates: Coordinates{Lon: 101.7, Lat: 3.1},
				DisplayName: "Laguna Redang Island Resort sales office, Kuala Lumpur, Malaysia",
			},
			resort: "laguna redang island resort",
			island: "Pulau Redang",
			// 10 base - 20 out of bounds + 25 resort + 15 island + 10 country
			want: 40,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, ScoreCandidate(tt.cand, tt.resort, tt.island))
		})
	}
}

func TestIsGenericCentroid(t *testing.T) {
	assert.True(t, IsGenericCentroid(Coordinates{Lon: 112.5, Lat: 2.5}))
	assert.True(t, IsGenericCentroid(Coordinates{Lon: 103.004, Lat: 5.297}))
	assert.False(t, IsGenericCentroid(Coordinates{Lon: 103.02, Lat: 5.76}))
}

func TestBoundingBoxContains(t *testing.T) {
	isl, ok := LookupIsland("Pulau Redang")
	assert.True(t, ok)
	assert.True(t, isl.Bounds.Contains(Coordinates{Lon: 103.0, Lat: 5.78}))
	assert.False(t, isl.Bounds.Contains(Coordinates{Lon: 104.1, Lat: 2.8}))
}
