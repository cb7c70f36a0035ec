package geocode

import "strings"

// Score weights. The relative ordering is the contract: the generic
// centroid penalty dominates, bounding-box containment and textual
// echoes are secondary signals. The specific values are tuned defaults.
const (
	scoreBase            = 10
	penaltyGenericPoint  = 50
	bonusInIslandBounds  = 30
	penaltyOutOfBounds   = 20
	bonusAddressResort   = 25
	bonusAddressIsland   = 15
	bonusAddressCountry  = 10
	penaltyShortAddress  = 10
	shortAddressLength   = 12
)

// ScoreCandidate computes the deterministic 0-100 trust score for one
// geocoder candidate against the resort and island it was queried for.
func ScoreCandidate(c Candidate, resortName, islandRaw string) int {
	score := scoreBase

	if IsGenericCentroid(c.Coordinates) {
		score -= penaltyGenericPoint
	}

	if isl, known := LookupIsland(islandRaw); known {
		if isl.Bounds.Contains(c.Coordinates) {
			score += bonusInIslandBounds
		} else {
			score -= penaltyOutOfBounds
		}
	}

	addr := c.DisplayName
	if containsFold(addr, resortName) {
		score += bonusAddressResort
	}
	if containsFold(addr, NormalizeIsland(islandRaw)) {
		score += bonusAddressIsland
	}
	if containsFold(addr, CountryName) {
		score += bonusAddressCountry
	}
	if len(strings.TrimSpace(addr)) < shortAddressLength {
		score -= penaltyShortAddress
	}

	if score < 0 {
		score = 0
	}
	if score > 100 {
		score = 100
	}
	return score
}

func containsFold(haystack, needle string) bool {
	if needle == "" {
		return false
	}
	return strings.Contains(strings.ToLower(haystack), strings.ToLower(needle))
}
