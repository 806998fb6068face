package access

import (
	"math"
	"sort"

	"github.com/rotisserie/eris"
)

// Summary holds distance statistics in kilometres.
type Summary struct {
	Mean   float64 `json:"mean_km" yaml:"mean_km"`
	Median float64 `json:"median_km" yaml:"median_km"`
	Max    float64 `json:"max_km" yaml:"max_km"`
	Count  int     `json:"count" yaml:"count"`
}

// Summarize returns the mean, median and maximum of distances. The median
// of an even-length input is the midpoint of the two central values.
func Summarize(distances []float64) (Summary, error) {
	if len(distances) == 0 {
		return Summary{}, eris.Wrap(ErrEmptyInput, "summarize")
	}
	if err := validateDistances(distances); err != nil {
		return Summary{}, err
	}

	sorted := append([]float64(nil), distances...)
	sort.Float64s(sorted)

	var sum float64
	for _, d := range sorted {
		sum += d
	}

	n := len(sorted)
	median := sorted[n/2]
	if n%2 == 0 {
		median = (sorted[n/2-1] + sorted[n/2]) / 2
	}

	return Summary{
		Mean:   sum / float64(n),
		Median: median,
		Max:    sorted[n-1],
		Count:  n,
	}, nil
}

func validateDistances(distances []float64) error {
	for i, d := range distances {
		if math.IsNaN(d) || math.IsInf(d, 0) || d < 0 {
			return eris.Wrapf(ErrInvalidInput, "distance[%d] = %v", i, d)
		}
	}
	return nil
}
