package geocode

import (
	"regexp"
	"strings"
)

// Promotional, duration and price tokens stripped from raw resort names
// before alias lookup. Listings routinely embed these in titles
// ("3D2N Pulau Redang Laguna Resort RM450 PROMO!").
var (
	durationPattern = regexp.MustCompile(`(?i)\b\d+\s*d\s*\d+\s*n\b`)
	pricePattern    = regexp.MustCompile(`(?i)\brm\s*\d+([.,]\d+)?\b`)
	yearPattern     = regexp.MustCompile(`\b20\d{2}\b`)
	spacePattern    = regexp.MustCompile(`\s+`)
	symbolPattern   = regexp.MustCompile(`[^\p{L}\p{N}\s&']`)
)

var promoTokens = []string{
	"promo", "promosi", "promotion", "package", "pakej", "murah",
	"offer", "deal", "cuti", "percutian", "trip", "tour", "snorkeling",
	"fullboard", "full board", "all in", "termasuk",
}

// resortAliases maps known spelling variants to canonical resort names.
// Data-driven on purpose: extending coverage means adding a row, not a
// branch.
var resortAliases = map[string]string{
	"laguna redang":        "laguna redang island resort",
	"laguna":               "laguna redang island resort",
	"coral redang":         "coral redang island resort",
	"redang beach resort":  "redang beach resort",
	"redang bay":           "redang bay resort",
	"redang reef":          "redang reef resort",
	"berjaya tioman":       "berjaya tioman resort",
	"paya beach":           "paya beach spa & dive resort",
	"tunamaya":             "tunamaya beach & spa resort",
	"japamala":             "japamala resort",
	"salang indah":         "salang indah resort",
	"sari pacifica":        "sari pacifica resort & spa",
	"perhentian island resort": "perhentian island resort",
	"bubu resort":          "bubu long beach resort",
	"mimpi perhentian":     "mimpi perhentian resort",
	"the barat":            "the barat perhentian",
	"pangkor laut":         "pangkor laut resort",
	"casuarina":            "casuarina @ pangkor",
	"the datai":            "the datai langkawi",
	"datai":                "the datai langkawi",
	"berjaya langkawi":     "berjaya langkawi resort",
	"pelangi beach":        "pelangi beach resort & spa",
}

// NormalizeResortName cleans a raw resort string and maps known aliases
// to their canonical resort name. Falls back to the cleaned string when
// no alias matches.
func NormalizeResortName(raw string) string {
	cleaned := strings.ToLower(strings.TrimSpace(raw))
	cleaned = durationPattern.ReplaceAllString(cleaned, " ")
	cleaned = pricePattern.ReplaceAllString(cleaned, " ")
	cleaned = yearPattern.ReplaceAllString(cleaned, " ")
	cleaned = symbolPattern.ReplaceAllString(cleaned, " ")

	for _, tok := range promoTokens {
		cleaned = strings.ReplaceAll(cleaned, tok, " ")
	}

	cleaned = strings.TrimSpace(spacePattern.ReplaceAllString(cleaned, " "))

	if canonical, ok := resortAliases[cleaned]; ok {
		return canonical
	}

	// Alias keys are usually the distinctive prefix of a longer title
	for alias, canonical := range resortAliases {
		if strings.HasPrefix(cleaned, alias+" ") {
			return canonical
		}
	}

	return cleaned
}

// NormalizeIsland lowercases and strips the pulau/island qualifiers so
// "Pulau Redang" and "Redang Island" key identically.
func NormalizeIsland(raw string) string {
	cleaned := strings.ToLower(strings.TrimSpace(raw))
	cleaned = strings.TrimPrefix(cleaned, "pulau ")
	cleaned = strings.TrimSuffix(cleaned, " island")
	return strings.TrimSpace(cleaned)
}

// QueryKey builds the unique cache key for a (resort, island) pair
func QueryKey(resortName, island string) string {
	return NormalizeResortName(resortName) + "|" + NormalizeIsland(island)
}
