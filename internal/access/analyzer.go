// Package access computes trauma-center accessibility for census tracts:
// per-tract minimum distance to the nearest facility, summary statistics,
// histogram binning and facility metrics.
package access

import (
	"math"

	"github.com/rotisserie/eris"
	"github.com/twpayne/go-geom"

	"github.com/sells-group/trauma-access/internal/model"
)

// DefaultCatchmentRadiusMeters bounds which facilities participate in the
// per-region minimum.
const DefaultCatchmentRadiusMeters = 100_000.0

const metresPerKilometre = 1000.0

// Outcome is the result for one region, index-aligned with the input.
type Outcome struct {
	Index      int     `json:"index"`
	GEOID      string  `json:"geoid"`
	DistanceKM float64 `json:"distance_km"`
	Err        error   `json:"-"`
}

// OK reports whether a distance was computed.
func (o Outcome) OK() bool { return o.Err == nil }

// Result holds per-region outcomes in input order.
type Result struct {
	Outcomes []Outcome `json:"outcomes"`
	// Candidates is the number of facilities inside the catchment.
	Candidates int `json:"candidates"`
	SRID       int `json:"srid"`
}

// Distances returns the successful distances (km) in input order.
func (r *Result) Distances() []float64 {
	out := make([]float64, 0, len(r.Outcomes))
	for _, o := range r.Outcomes {
		if o.OK() {
			out = append(out, o.DistanceKM)
		}
	}
	return out
}

// Failures returns the outcomes that carry an error.
func (r *Result) Failures() []Outcome {
	var out []Outcome
	for _, o := range r.Outcomes {
		if !o.OK() {
			out = append(out, o)
		}
	}
	return out
}

// Reachable returns the number of regions with a computed distance.
func (r *Result) Reachable() int {
	return len(r.Outcomes) - len(r.Failures())
}

// ComputeMinDistances returns, for each region centroid, the planar
// distance in kilometres to the nearest facility inside that region's
// catchment. Both collections must already share one metre-based projected
// CRS. Regions without a reachable facility get ErrNoFacilityInRange in
// their outcome; structural problems abort with an error.
//
// The buffered union is split into connected pieces and a region only
// considers facilities in its own piece. A remote island whose piece holds
// no facility therefore fails with ErrNoFacilityInRange rather than being
// measured to the nearest facility elsewhere in the union, which lowers the
// reachable count and the maximum for states such as Alaska.
func ComputeMinDistances(facilities []model.Facility, regions []model.Region, catchmentRadiusMeters float64) (*Result, error) {
	if len(regions) == 0 {
		return nil, eris.Wrap(ErrEmptyInput, "regions")
	}
	if catchmentRadiusMeters <= 0 || math.IsNaN(catchmentRadiusMeters) || math.IsInf(catchmentRadiusMeters, 0) {
		return nil, eris.Wrapf(ErrInvalidInput, "catchment radius %v", catchmentRadiusMeters)
	}

	srid, err := checkCRS(facilities, regions)
	if err != nil {
		return nil, err
	}

	shapes := make([]*shape, len(regions))
	for i, r := range regions {
		s, err := newShape(r)
		if err != nil {
			return nil, err
		}
		shapes[i] = s
	}

	points := make([]geom.Coord, len(facilities))
	for i, f := range facilities {
		c, err := facilityCoord(f)
		if err != nil {
			return nil, err
		}
		points[i] = c
	}

	catch := newCatchment(shapes, catchmentRadiusMeters)

	byPiece := map[int][]geom.Coord{}
	candidates := 0
	for _, pt := range points {
		if p := catch.piece(pt); p >= 0 {
			byPiece[p] = append(byPiece[p], pt)
			candidates++
		}
	}

	res := &Result{Outcomes: make([]Outcome, len(regions)), Candidates: candidates, SRID: srid}
	for i, s := range shapes {
		out := Outcome{Index: i, GEOID: regions[i].GEOID}

		pts := byPiece[catch.find(i)]
		if len(pts) == 0 {
			out.Err = eris.Wrapf(ErrNoFacilityInRange, "region %s", regions[i].GEOID)
			res.Outcomes[i] = out
			continue
		}

		best := math.Inf(1)
		for _, pt := range pts {
			if d := math.Hypot(pt[0]-s.centroid[0], pt[1]-s.centroid[1]); d < best {
				best = d
			}
		}
		out.DistanceKM = best / metresPerKilometre
		res.Outcomes[i] = out
	}

	return res, nil
}
