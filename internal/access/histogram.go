package access

import (
	"math"

	"github.com/rotisserie/eris"
)

// Bin width tiers (km) chosen from the padded x-axis maximum.
const (
	xMaxPadding   = 1.1
	smallRangeMax = 20.0
	mediumRange   = 50.0
	smallBinKm    = 0.5
	mediumBinKm   = 1.0
	largeBinKm    = 2.0
	binEpsilon    = 1e-9
)

// HistogramOptions overrides the derived binning. Zero values derive.
type HistogramOptions struct {
	BinWidthKm float64
	XMaxKm     float64
}

// Bin counts distances in [Start, End); the last bin also includes End.
type Bin struct {
	Start float64 `json:"start_km" yaml:"start_km"`
	End   float64 `json:"end_km" yaml:"end_km"`
	Count int     `json:"count" yaml:"count"`
}

// Histogram is a contiguous binning of distances over [0, XMaxKm].
type Histogram struct {
	BinWidthKm float64 `json:"bin_width_km" yaml:"bin_width_km"`
	XMaxKm     float64 `json:"x_max_km" yaml:"x_max_km"`
	Bins       []Bin   `json:"bins" yaml:"bins"`
}

// Total returns the number of binned values.
func (h *Histogram) Total() int {
	n := 0
	for _, b := range h.Bins {
		n += b.Count
	}
	return n
}

// BinWidthFor returns the bin width for a padded x-axis maximum:
// <= 20 km uses 0.5 km bins, <= 50 km uses 1 km bins, otherwise 2 km.
func BinWidthFor(xMaxKm float64) float64 {
	switch {
	case xMaxKm <= smallRangeMax:
		return smallBinKm
	case xMaxKm <= mediumRange:
		return mediumBinKm
	default:
		return largeBinKm
	}
}

// BuildHistogram bins distances. XMaxKm defaults to max(distances)*1.1 and
// the bin width follows BinWidthFor. An x-axis maximum of zero becomes one
// bin of the derived width.
func BuildHistogram(distances []float64, opts HistogramOptions) (*Histogram, error) {
	if len(distances) == 0 {
		return nil, eris.Wrap(ErrEmptyInput, "histogram")
	}
	if err := validateDistances(distances); err != nil {
		return nil, err
	}
	if opts.XMaxKm < 0 || opts.BinWidthKm < 0 {
		return nil, eris.Wrapf(ErrInvalidInput, "histogram options %+v", opts)
	}

	maxD := 0.0
	for _, d := range distances {
		maxD = math.Max(maxD, d)
	}

	xMax := maxD * xMaxPadding
	if opts.XMaxKm > 0 {
		if opts.XMaxKm < maxD {
			return nil, eris.Wrapf(ErrInvalidInput, "x max %.3f km below largest distance %.3f km", opts.XMaxKm, maxD)
		}
		xMax = opts.XMaxKm
	}

	width := opts.BinWidthKm
	if width == 0 {
		width = BinWidthFor(xMax)
	}
	if xMax == 0 {
		xMax = width
	}

	// Tolerate float noise from the padding multiply (10*1.1 > 11).
	n := int(math.Ceil(xMax/width - binEpsilon))
	if n < 1 {
		n = 1
	}

	bins := make([]Bin, n)
	for i := range bins {
		bins[i] = Bin{Start: float64(i) * width, End: float64(i+1) * width}
	}
	for _, d := range distances {
		idx := int(math.Floor(d / width))
		if idx >= n {
			idx = n - 1
		}
		bins[idx].Count++
	}

	return &Histogram{BinWidthKm: width, XMaxKm: xMax, Bins: bins}, nil
}
