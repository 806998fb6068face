// Package tiger downloads Census Bureau tract boundary shapefiles, parses
// them into regions and caches the result per state.
package tiger

import (
	"fmt"
	"sort"
	"strings"
)

// Kind selects the tract boundary product.
type Kind string

// Boundary products.
const (
	// KindCartographic is the generalized 1:500k cartographic boundary file.
	KindCartographic Kind = "cb"
	// KindTIGER is the full-resolution TIGER/Line file.
	KindTIGER Kind = "tl"
)

// Defaults for tract downloads.
const (
	DefaultBaseURL = "https://www2.census.gov/geo/tiger"
	DefaultYear    = 2021
)

// KindFor maps the cartographic flag to a Kind.
func KindFor(cartographic bool) Kind {
	if cartographic {
		return KindCartographic
	}
	return KindTIGER
}

// FIPSCodes maps state abbreviation to 2-digit FIPS code for the 50
// states, DC and Puerto Rico.
var FIPSCodes = map[string]string{
	"AL": "01", "AK": "02", "AZ": "04", "AR": "05", "CA": "06",
	"CO": "08", "CT": "09", "DE": "10", "DC": "11", "FL": "12",
	"GA": "13", "HI": "15", "ID": "16", "IL": "17", "IN": "18",
	"IA": "19", "KS": "20", "KY": "21", "LA": "22", "ME": "23",
	"MD": "24", "MA": "25", "MI": "26", "MN": "27", "MS": "28",
	"MO": "29", "MT": "30", "NE": "31", "NV": "32", "NH": "33",
	"NJ": "34", "NM": "35", "NY": "36", "NC": "37", "ND": "38",
	"OH": "39", "OK": "40", "OR": "41", "PA": "42", "RI": "44",
	"SC": "45", "SD": "46", "TN": "47", "TX": "48", "UT": "49",
	"VT": "50", "VA": "51", "WA": "53", "WV": "54", "WI": "55",
	"WY": "56", "PR": "72",
}

var abbrByFIPS map[string]string

func init() {
	abbrByFIPS = make(map[string]string, len(FIPSCodes))
	for abbr, fips := range FIPSCodes {
		abbrByFIPS[fips] = abbr
	}
}

// FIPSFor returns the FIPS code for a state abbreviation, case-insensitive.
func FIPSFor(abbr string) (string, bool) {
	fips, ok := FIPSCodes[strings.ToUpper(strings.TrimSpace(abbr))]
	return fips, ok
}

// AbbrFromFIPS returns the state abbreviation for a FIPS code.
func AbbrFromFIPS(fips string) (string, bool) {
	abbr, ok := abbrByFIPS[fips]
	return abbr, ok
}

// AllStateFIPS returns a sorted list of all state FIPS codes.
func AllStateFIPS() []string {
	codes := make([]string, 0, len(FIPSCodes))
	for _, fips := range FIPSCodes {
		codes = append(codes, fips)
	}
	sort.Strings(codes)
	return codes
}

// AllStateAbbrs returns a sorted list of state abbreviations.
func AllStateAbbrs() []string {
	abbrs := make([]string, 0, len(FIPSCodes))
	for abbr := range FIPSCodes {
		abbrs = append(abbrs, abbr)
	}
	sort.Strings(abbrs)
	return abbrs
}

// TractURL builds the download URL of a state's tract shapefile.
// Cartographic files live under GENZ{year}/shp, TIGER/Line files under
// TIGER{year}/TRACT.
func TractURL(baseURL string, year int, stateFIPS string, kind Kind) string {
	base := strings.TrimRight(baseURL, "/")
	if base == "" {
		base = DefaultBaseURL
	}
	if kind == KindTIGER {
		return fmt.Sprintf("%s/TIGER%d/TRACT/tl_%d_%s_tract.zip", base, year, year, stateFIPS)
	}
	return fmt.Sprintf("%s/GENZ%d/shp/cb_%d_%s_tract_500k.zip", base, year, year, stateFIPS)
}

// CacheKey is the tract cache key for a state, year and product.
func CacheKey(stateFIPS string, year int, kind Kind) string {
	return fmt.Sprintf("tracts:%s:%d:%s", stateFIPS, year, kind)
}
