package access

import (
	"math"
	"sort"

	"github.com/rotisserie/eris"
	"github.com/twpayne/go-geom"
	"github.com/twpayne/go-geom/xy"

	"github.com/sells-group/trauma-access/internal/crs"
	"github.com/sells-group/trauma-access/internal/model"
)

// shape is a validated region geometry with its bounding box and centroid.
type shape struct {
	polys    []*geom.Polygon
	layout   geom.Layout
	bounds   *geom.Bounds
	centroid geom.Coord
}

func newShape(r model.Region) (*shape, error) {
	var polys []*geom.Polygon
	switch g := r.Geometry.(type) {
	case *geom.Polygon:
		if g != nil {
			polys = []*geom.Polygon{g}
		}
	case *geom.MultiPolygon:
		if g != nil {
			for i := 0; i < g.NumPolygons(); i++ {
				polys = append(polys, g.Polygon(i))
			}
		}
	case nil:
		return nil, eris.Wrapf(ErrInvalidGeometry, "region %s: nil geometry", r.GEOID)
	default:
		return nil, eris.Wrapf(ErrInvalidGeometry, "region %s: unsupported geometry %T", r.GEOID, r.Geometry)
	}
	if len(polys) == 0 {
		return nil, eris.Wrapf(ErrInvalidGeometry, "region %s: empty geometry", r.GEOID)
	}
	for _, p := range polys {
		if p.NumLinearRings() == 0 || p.LinearRing(0).NumCoords() < 3 {
			return nil, eris.Wrapf(ErrInvalidGeometry, "region %s: degenerate polygon", r.GEOID)
		}
	}
	if !finite(r.Geometry.FlatCoords()) {
		return nil, eris.Wrapf(ErrInvalidGeometry, "region %s: non-finite coordinate", r.GEOID)
	}

	c, err := xy.Centroid(r.Geometry)
	if err != nil {
		return nil, eris.Wrapf(ErrInvalidGeometry, "region %s: centroid: %v", r.GEOID, err)
	}
	if len(c) < 2 || !finite(c[:2]) {
		return nil, eris.Wrapf(ErrInvalidGeometry, "region %s: undefined centroid", r.GEOID)
	}

	return &shape{
		polys:    polys,
		layout:   r.Geometry.Layout(),
		bounds:   r.Geometry.Bounds(),
		centroid: c,
	}, nil
}

func facilityCoord(f model.Facility) (geom.Coord, error) {
	if f.Location == nil || f.Location.Empty() {
		return nil, eris.Wrapf(ErrInvalidGeometry, "facility %s: missing location", f.ID)
	}
	c := f.Location.Coords()
	if !finite(c[:2]) {
		return nil, eris.Wrapf(ErrInvalidGeometry, "facility %s: non-finite coordinate", f.ID)
	}
	return c, nil
}

// checkCRS enforces a single, registered, metre-based SRID across all
// inputs. All-zero SRIDs mean the caller supplies projected metres without
// metadata.
func checkCRS(facilities []model.Facility, regions []model.Region) (int, error) {
	seen := map[int]int{}
	for _, f := range facilities {
		if f.Location != nil {
			seen[f.Location.SRID()]++
		}
	}
	for _, r := range regions {
		if r.Geometry != nil {
			seen[r.Geometry.SRID()]++
		}
	}

	switch {
	case len(seen) == 0:
		return 0, nil
	case len(seen) > 1:
		return 0, eris.Wrapf(ErrCRSMismatch, "mixed srids %v", sridKeys(seen))
	}

	var srid int
	for k := range seen {
		srid = k
	}
	if srid == 0 {
		return 0, nil
	}
	c, ok := crs.Lookup(srid)
	if !ok {
		return 0, eris.Wrapf(ErrCRSMismatch, "unregistered srid %d", srid)
	}
	if !c.Linear() {
		return 0, eris.Wrapf(ErrCRSMismatch, "srid %d (%s) has %s units", srid, c.Name, c.Unit)
	}
	return srid, nil
}

// pointPolygonDistance is zero inside the polygon and the distance to the
// nearest ring otherwise (holes count as outside).
func pointPolygonDistance(layout geom.Layout, c geom.Coord, p *geom.Polygon) float64 {
	if xy.IsPointInRing(layout, c, p.LinearRing(0).FlatCoords()) {
		inHole := false
		for i := 1; i < p.NumLinearRings(); i++ {
			if xy.IsPointInRing(layout, c, p.LinearRing(i).FlatCoords()) {
				inHole = true
				break
			}
		}
		if !inHole {
			return 0
		}
	}
	best := math.Inf(1)
	for i := 0; i < p.NumLinearRings(); i++ {
		if d := xy.DistanceFromPointToLineString(layout, c, p.LinearRing(i).FlatCoords()); d < best {
			best = d
		}
	}
	return best
}

func (s *shape) distanceTo(c geom.Coord) float64 {
	best := math.Inf(1)
	for _, p := range s.polys {
		if d := pointPolygonDistance(s.layout, c, p); d < best {
			best = d
			if best == 0 {
				break
			}
		}
	}
	return best
}

// boxGap is a lower bound on the distance from c to anything in b.
func boxGap(b *geom.Bounds, c geom.Coord) float64 {
	dx := math.Max(0, math.Max(b.Min(0)-c[0], c[0]-b.Max(0)))
	dy := math.Max(0, math.Max(b.Min(1)-c[1], c[1]-b.Max(1)))
	return math.Hypot(dx, dy)
}

// boxesGap is a lower bound on the distance between anything in a and b.
func boxesGap(a, b *geom.Bounds) float64 {
	dx := math.Max(0, math.Max(a.Min(0)-b.Max(0), b.Min(0)-a.Max(0)))
	dy := math.Max(0, math.Max(a.Min(1)-b.Max(1), b.Min(1)-a.Max(1)))
	return math.Hypot(dx, dy)
}

// within reports whether s and o lie within d of each other. Two rings
// that do not cross are closest at a vertex of one of them, so vertex
// distances plus a crossing test are exact.
func (s *shape) within(o *shape, d float64) bool {
	if boxesGap(s.bounds, o.bounds) > d {
		return false
	}
	return s.anyVertexWithin(o, d) || o.anyVertexWithin(s, d) || s.edgesCross(o)
}

func (s *shape) anyVertexWithin(o *shape, d float64) bool {
	stride := s.layout.Stride()
	for _, flat := range s.rings() {
		for i := 0; i+1 < len(flat); i += stride {
			c := geom.Coord{flat[i], flat[i+1]}
			if boxGap(o.bounds, c) > d {
				continue
			}
			if o.distanceTo(c) <= d {
				return true
			}
		}
	}
	return false
}

// edgesCross reports whether any ring edge of s intersects a ring edge of o.
func (s *shape) edgesCross(o *shape) bool {
	sStride, oStride := s.layout.Stride(), o.layout.Stride()
	oRings := o.rings()
	for _, a := range s.rings() {
		for i := 0; i+sStride+1 < len(a); i += sStride {
			p1 := geom.Coord{a[i], a[i+1]}
			p2 := geom.Coord{a[i+sStride], a[i+sStride+1]}
			if boxesGap(segmentBounds(p1, p2), o.bounds) > 0 {
				continue
			}
			for _, b := range oRings {
				for j := 0; j+oStride+1 < len(b); j += oStride {
					q1 := geom.Coord{b[j], b[j+1]}
					q2 := geom.Coord{b[j+oStride], b[j+oStride+1]}
					if segmentsIntersect(p1, p2, q1, q2) {
						return true
					}
				}
			}
		}
	}
	return false
}

func (s *shape) rings() [][]float64 {
	var out [][]float64
	for _, p := range s.polys {
		for i := 0; i < p.NumLinearRings(); i++ {
			out = append(out, p.LinearRing(i).FlatCoords())
		}
	}
	return out
}

func segmentBounds(a, b geom.Coord) *geom.Bounds {
	return geom.NewBounds(geom.XY).Set(
		math.Min(a[0], b[0]), math.Min(a[1], b[1]),
		math.Max(a[0], b[0]), math.Max(a[1], b[1]),
	)
}

// cross is the z component of (b-a) x (c-a).
func cross(a, b, c geom.Coord) float64 {
	return (b[0]-a[0])*(c[1]-a[1]) - (b[1]-a[1])*(c[0]-a[0])
}

// onSegment reports whether c, collinear with ab, lies within ab's box.
func onSegment(a, b, c geom.Coord) bool {
	return math.Min(a[0], b[0]) <= c[0] && c[0] <= math.Max(a[0], b[0]) &&
		math.Min(a[1], b[1]) <= c[1] && c[1] <= math.Max(a[1], b[1])
}

// segmentsIntersect reports whether segments p1p2 and q1q2 share a point.
func segmentsIntersect(p1, p2, q1, q2 geom.Coord) bool {
	d1 := cross(q1, q2, p1)
	d2 := cross(q1, q2, p2)
	d3 := cross(p1, p2, q1)
	d4 := cross(p1, p2, q2)
	if ((d1 > 0 && d2 < 0) || (d1 < 0 && d2 > 0)) &&
		((d3 > 0 && d4 < 0) || (d3 < 0 && d4 > 0)) {
		return true
	}
	switch {
	case d1 == 0 && onSegment(q1, q2, p1),
		d2 == 0 && onSegment(q1, q2, p2),
		d3 == 0 && onSegment(p1, p2, q1),
		d4 == 0 && onSegment(p1, p2, q2):
		return true
	}
	return false
}

func finite(vals []float64) bool {
	for _, v := range vals {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return false
		}
	}
	return true
}

func sridKeys(m map[int]int) []int {
	out := make([]int, 0, len(m))
	for k := range m {
		out = append(out, k)
	}
	sort.Ints(out)
	return out
}
