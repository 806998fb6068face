package tiger

import (
	"github.com/jonas-p/go-shp"
	"github.com/rotisserie/eris"
	"github.com/twpayne/go-geom"
	"github.com/twpayne/go-geom/encoding/ewkb"
	"github.com/twpayne/go-geom/xy"

	"github.com/sells-group/trauma-access/internal/crs"
	"github.com/sells-group/trauma-access/internal/model"
	"github.com/sells-group/trauma-access/internal/store"
)

// polygonGeometry converts a shapefile polygon into a *geom.Polygon or
// *geom.MultiPolygon with SRID srid. Clockwise rings start a new polygon;
// counter-clockwise rings are holes of the outer ring containing them.
// Returns nil when no usable ring remains.
func polygonGeometry(p *shp.Polygon, srid int) geom.T {
	if p == nil || p.NumParts == 0 || len(p.Points) == 0 {
		return nil
	}

	type ring struct{ flat []float64 }
	var polys [][]ring
	var holes [][]float64

	for i := int32(0); i < p.NumParts; i++ {
		start := p.Parts[i]
		end := int32(len(p.Points))
		if i+1 < p.NumParts {
			end = p.Parts[i+1]
		}
		if start < 0 || end > int32(len(p.Points)) || end-start < 4 {
			continue
		}

		flat := make([]float64, 0, 2*(end-start))
		for _, pt := range p.Points[start:end] {
			flat = append(flat, pt.X, pt.Y)
		}
		if signedArea(flat) < 0 {
			polys = append(polys, []ring{{flat: flat}})
		} else {
			holes = append(holes, flat)
		}
	}

	// Some writers ignore orientation; with no outer ring every ring is an outer.
	if len(polys) == 0 {
		for _, h := range holes {
			polys = append(polys, []ring{{flat: h}})
		}
		holes = nil
	}
	if len(polys) == 0 {
		return nil
	}

	for _, h := range holes {
		owner := len(polys) - 1
		first := geom.Coord{h[0], h[1]}
		for j, poly := range polys {
			if xy.IsPointInRing(geom.XY, first, poly[0].flat) {
				owner = j
				break
			}
		}
		polys[owner] = append(polys[owner], ring{flat: h})
	}

	var flat []float64
	endss := make([][]int, 0, len(polys))
	for _, poly := range polys {
		ends := make([]int, 0, len(poly))
		for _, r := range poly {
			flat = append(flat, r.flat...)
			ends = append(ends, len(flat))
		}
		endss = append(endss, ends)
	}

	if len(endss) == 1 {
		return geom.NewPolygonFlat(geom.XY, flat, endss[0]).SetSRID(srid)
	}
	return geom.NewMultiPolygonFlat(geom.XY, flat, endss).SetSRID(srid)
}

// signedArea is the shoelace area of a closed ring; positive when the
// ring runs counter-clockwise.
func signedArea(flat []float64) float64 {
	var sum float64
	n := len(flat) / 2
	for i := 0; i < n; i++ {
		j := (i + 1) % n
		sum += flat[2*i]*flat[2*j+1] - flat[2*j]*flat[2*i+1]
	}
	return sum / 2
}

// EncodeRegion converts a region into a cache record with EWKB geometry.
func EncodeRegion(r model.Region) (store.TractRecord, error) {
	if r.Geometry == nil {
		return store.TractRecord{}, eris.Errorf("tiger: region %s has no geometry", r.GEOID)
	}
	data, err := ewkb.Marshal(r.Geometry, ewkb.NDR)
	if err != nil {
		return store.TractRecord{}, eris.Wrapf(err, "tiger: encode region %s", r.GEOID)
	}
	return store.TractRecord{
		GEOID:      r.GEOID,
		Name:       r.Name,
		StateFIPS:  r.StateFIPS,
		CountyFIPS: r.CountyFIPS,
		TractCE:    r.TractCE,
		Geometry:   data,
	}, nil
}

// DecodeRegion restores a region from a cache record. Records without an
// embedded SRID are assumed to be NAD83.
func DecodeRegion(rec store.TractRecord) (model.Region, error) {
	g, err := ewkb.Unmarshal(rec.Geometry)
	if err != nil {
		return model.Region{}, eris.Wrapf(err, "tiger: decode region %s", rec.GEOID)
	}
	switch t := g.(type) {
	case *geom.Polygon:
		if t.SRID() == 0 {
			t.SetSRID(crs.NAD83)
		}
	case *geom.MultiPolygon:
		if t.SRID() == 0 {
			t.SetSRID(crs.NAD83)
		}
	default:
		return model.Region{}, eris.Errorf("tiger: region %s has %T geometry", rec.GEOID, g)
	}
	return model.Region{
		GEOID:      rec.GEOID,
		Name:       rec.Name,
		StateFIPS:  rec.StateFIPS,
		CountyFIPS: rec.CountyFIPS,
		TractCE:    rec.TractCE,
		Geometry:   g,
	}, nil
}
