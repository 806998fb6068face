package crs

import (
	"github.com/rotisserie/eris"
	"github.com/twpayne/go-geom"
)

// ErrUnsupportedTransform is returned when no forward projection exists
// between two SRIDs.
var ErrUnsupportedTransform = eris.New("crs: unsupported transformation")

// Reproject returns g transformed into the target SRID. The source CRS is
// taken from g.SRID() and must be a registered geographic CRS unless it
// already equals target. The returned geometry carries the target SRID;
// the input is never modified.
func Reproject(g geom.T, target int) (geom.T, error) {
	if g == nil {
		return nil, eris.New("crs: nil geometry")
	}
	if g.SRID() == target {
		return g, nil
	}

	src, ok := Lookup(g.SRID())
	if !ok || !src.Geographic() {
		return nil, eris.Wrapf(ErrUnsupportedTransform, "from srid %d to %d", g.SRID(), target)
	}
	dst, ok := Lookup(target)
	if !ok || dst.project == nil {
		return nil, eris.Wrapf(ErrUnsupportedTransform, "from srid %d to %d", g.SRID(), target)
	}

	flat := projectFlat(g.FlatCoords(), g.Stride(), dst.project)

	switch t := g.(type) {
	case *geom.Point:
		return geom.NewPointFlat(t.Layout(), flat).SetSRID(target), nil
	case *geom.MultiPoint:
		return geom.NewMultiPointFlat(t.Layout(), flat).SetSRID(target), nil
	case *geom.LineString:
		return geom.NewLineStringFlat(t.Layout(), flat).SetSRID(target), nil
	case *geom.Polygon:
		return geom.NewPolygonFlat(t.Layout(), flat, t.Ends()).SetSRID(target), nil
	case *geom.MultiPolygon:
		return geom.NewMultiPolygonFlat(t.Layout(), flat, t.Endss()).SetSRID(target), nil
	default:
		return nil, eris.Errorf("crs: unsupported geometry type %T", g)
	}
}

// ReprojectPoint is Reproject for points.
func ReprojectPoint(p *geom.Point, target int) (*geom.Point, error) {
	if p == nil {
		return nil, eris.New("crs: nil geometry")
	}
	g, err := Reproject(p, target)
	if err != nil {
		return nil, err
	}
	return g.(*geom.Point), nil
}

func projectFlat(in []float64, stride int, fn func(lon, lat float64) (float64, float64)) []float64 {
	out := make([]float64, len(in))
	copy(out, in)
	for i := 0; i+1 < len(out); i += stride {
		out[i], out[i+1] = fn(out[i], out[i+1])
	}
	return out
}
