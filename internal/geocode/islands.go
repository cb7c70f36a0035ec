package geocode

import "fmt"

// CountryName is the country all known sources sell packages for
const CountryName = "Malaysia"

// BoundingBox is an inclusive lng/lat rectangle
type BoundingBox struct {
	MinLon, MinLat, MaxLon, MaxLat float64
}

// Contains reports whether the coordinate falls inside the box
func (b BoundingBox) Contains(c Coordinates) bool {
	return c.Lon >= b.MinLon && c.Lon <= b.MaxLon &&
		c.Lat >= b.MinLat && c.Lat <= b.MaxLat
}

// CountryBounds is the outer bounding box for Malaysia, used to validate
// operator-supplied coordinates.
var CountryBounds = BoundingBox{MinLon: 99.5, MinLat: 0.8, MaxLon: 119.5, MaxLat: 7.5}

// Island holds the static knowledge the resolver has about one of the
// targeted islands: its bounding box, its state (for the specific query
// template), and the beach/sub-area table when one exists.
type Island struct {
	Name    string
	State   string
	Bounds  BoundingBox
	Beaches []string
}

var islands = map[string]Island{
	"tioman": {
		Name:    "Tioman",
		State:   "Pahang",
		Bounds:  BoundingBox{MinLon: 104.06, MinLat: 2.68, MaxLon: 104.25, MaxLat: 2.95},
		Beaches: []string{"Salang", "Tekek", "Juara", "Genting", "Paya"},
	},
	"redang": {
		Name:    "Redang",
		State:   "Terengganu",
		Bounds:  BoundingBox{MinLon: 102.96, MinLat: 5.72, MaxLon: 103.10, MaxLat: 5.84},
		Beaches: []string{"Pasir Panjang", "Teluk Dalam", "Teluk Kalong"},
	},
	"perhentian": {
		Name:    "Perhentian",
		State:   "Terengganu",
		Bounds:  BoundingBox{MinLon: 102.68, MinLat: 5.87, MaxLon: 102.78, MaxLat: 5.98},
		Beaches: []string{"Long Beach", "Coral Bay", "Teluk Keke"},
	},
	"langkawi": {
		Name:    "Langkawi",
		State:   "Kedah",
		Bounds:  BoundingBox{MinLon: 99.64, MinLat: 6.18, MaxLon: 99.96, MaxLat: 6.47},
		Beaches: []string{"Pantai Cenang", "Pantai Tengah", "Datai Bay", "Tanjung Rhu"},
	},
	"pangkor": {
		Name:    "Pangkor",
		State:   "Perak",
		Bounds:  BoundingBox{MinLon: 100.54, MinLat: 4.19, MaxLon: 100.61, MaxLat: 4.28},
		Beaches: []string{"Pasir Bogak", "Teluk Nipah", "Coral Beach"},
	},
}

// LookupIsland returns the static island record for a raw island name
func LookupIsland(raw string) (Island, bool) {
	isl, ok := islands[NormalizeIsland(raw)]
	return isl, ok
}

// KnownIslands returns the names of every targeted island
func KnownIslands() []string {
	names := make([]string, 0, len(islands))
	for _, isl := range islands {
		names = append(names, isl.Name)
	}
	return names
}

// genericCentroids are coordinates a geocoder falls back to when it
// cannot locate a specific point. Matching one of these (within epsilon)
// is the dominant signal of a useless answer.
var genericCentroids = []Coordinates{
	{Lon: 112.5, Lat: 2.5},  // Malaysia
	{Lon: 102.3, Lat: 3.8},  // Pahang
	{Lon: 103.0, Lat: 5.3},  // Terengganu
	{Lon: 100.4, Lat: 6.1},  // Kedah
	{Lon: 101.0, Lat: 4.75}, // Perak
}

const centroidEpsilon = 0.01

// IsGenericCentroid reports whether the coordinate equals one of the
// known country/state fallback centroids within epsilon.
func IsGenericCentroid(c Coordinates) bool {
	for _, g := range genericCentroids {
		if abs(c.Lon-g.Lon) < centroidEpsilon && abs(c.Lat-g.Lat) < centroidEpsilon {
			return true
		}
	}
	return false
}

func abs(f float64) float64 {
	if f < 0 {
		return -f
	}
	return f
}

// geocodeQuery couples one fan-out query string with the method recorded
// if its best candidate wins.
type geocodeQuery struct {
	text   string
	method string
}

// buildQueries constructs the ordered fan-out for a resolve, most to
// least specific. Beach-augmented queries lead when the island has a
// beach table and the hint or resort name mentions one of its beaches.
func buildQueries(resortName, islandRaw, addressHint string) []geocodeQuery {
	var queries []geocodeQuery

	isl, known := LookupIsland(islandRaw)
	islandLabel := islandRaw
	if known {
		islandLabel = isl.Name
	}

	if known {
		for _, beach := range matchBeaches(isl, resortName, addressHint) {
			queries = append(queries, geocodeQuery{
				text:   fmt.Sprintf("%s, %s, %s Island, %s, %s", resortName, beach, isl.Name, isl.State, CountryName),
				method: MethodBeachMatch,
			})
		}
		queries = append(queries, geocodeQuery{
			text:   fmt.Sprintf("%s, %s Island, %s, %s", resortName, isl.Name, isl.State, CountryName),
			method: MethodAPIGeocoding,
		})
	}

	// Generic template, also the fallback for islands outside the table
	queries = append(queries,
		geocodeQuery{
			text:   fmt.Sprintf("%s, %s Island, %s", resortName, islandLabel, CountryName),
			method: MethodAPIGeocoding,
		},
		geocodeQuery{
			text:   fmt.Sprintf("%s, %s, %s", resortName, islandLabel, CountryName),
			method: MethodAPIGeocoding,
		},
	)

	return queries
}

// alternateQueries is the FixGeneric fan-out: every beach of the island
// paired with the resort, which is more specific than anything the
// original resolve tried.
func alternateQueries(resortName, islandRaw string) []geocodeQuery {
	isl, known := LookupIsland(islandRaw)
	if !known {
		return nil
	}

	queries := make([]geocodeQuery, 0, len(isl.Beaches))
	for _, beach := range isl.Beaches {
		queries = append(queries, geocodeQuery{
			text:   fmt.Sprintf("%s, %s, %s Island, %s, %s", resortName, beach, isl.Name, isl.State, CountryName),
			method: MethodBeachMatch,
		})
	}
	return queries
}

func matchBeaches(isl Island, resortName, addressHint string) []string {
	var matched []string
	for _, beach := range isl.Beaches {
		if containsFold(resortName, beach) || containsFold(addressHint, beach) {
			matched = append(matched, beach)
		}
	}
	return matched
}
