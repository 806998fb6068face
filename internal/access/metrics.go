package access

import (
	"strings"

	"github.com/sells-group/trauma-access/internal/model"
)

// Level1Match selects how a trauma-level label is recognised as Level I.
type Level1Match string

const (
	// MatchToken requires "LEVEL I" to end at a non-numeral boundary, so
	// "LEVEL I, II" matches and "LEVEL II" or "LEVEL IV" do not.
	MatchToken Level1Match = "token"
	// MatchSubstring is plain substring containment and also counts
	// "LEVEL II", "LEVEL III" and "LEVEL IV".
	MatchSubstring Level1Match = "substring"
)

const level1Label = "LEVEL I"

// MetricsOptions tunes the facility predicates.
type MetricsOptions struct {
	Level1Match            Level1Match
	HelipadCaseInsensitive bool
}

// Metrics summarises a facility collection.
type Metrics struct {
	HospitalCount  int `json:"hospital_count" yaml:"hospital_count"`
	HelipadCount   int `json:"helipad_count" yaml:"helipad_count"`
	Level1Count    int `json:"level1_count" yaml:"level1_count"`
	Level1BedTotal int `json:"level1_bed_total" yaml:"level1_bed_total"`
}

// Aggregate counts hospitals, helipads and Level I centers and sums Level I
// beds. Missing bed counts contribute zero.
func Aggregate(facilities []model.Facility, opts MetricsOptions) Metrics {
	var m Metrics
	for _, f := range facilities {
		m.HospitalCount++
		if HasHelipad(f.Helipad, opts.HelipadCaseInsensitive) {
			m.HelipadCount++
		}
		if IsLevel1(f.TraumaLevel, opts.Level1Match) {
			m.Level1Count++
			m.Level1BedTotal += f.BedCount()
		}
	}
	return m
}

// HasHelipad reports whether a helipad flag is affirmative.
func HasHelipad(flag string, caseInsensitive bool) bool {
	if caseInsensitive {
		return strings.EqualFold(strings.TrimSpace(flag), model.HelipadYes)
	}
	return flag == model.HelipadYes
}

// IsLevel1 reports whether a trauma-level label designates a Level I center.
func IsLevel1(label string, mode Level1Match) bool {
	if mode == MatchSubstring {
		return strings.Contains(label, level1Label)
	}
	for rest := label; ; {
		i := strings.Index(rest, level1Label)
		if i < 0 {
			return false
		}
		rest = rest[i+len(level1Label):]
		if rest == "" || !isNumeral(rest[0]) {
			return true
		}
	}
}

func isNumeral(b byte) bool {
	return b == 'I' || b == 'V' || b == 'X'
}
