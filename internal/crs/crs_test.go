package crs

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/twpayne/go-geom"
)

func TestLookup(t *testing.T) {
	c, ok := Lookup(WGS84)
	require.True(t, ok)
	assert.True(t, c.Geographic())
	assert.False(t, c.Linear())

	c, ok = Lookup(ConusAlbers)
	require.True(t, ok)
	assert.True(t, c.Linear())

	_, ok = Lookup(6571)
	assert.False(t, ok)
}

func TestProjected(t *testing.T) {
	assert.Equal(t, []int{AlaskaAlbers, WebMercator, ConusAlbers, HawaiiAlbers}, Projected())
}

func TestForState(t *testing.T) {
	assert.Equal(t, AlaskaAlbers, ForState("AK").SRID)
	assert.Equal(t, HawaiiAlbers, ForState("HI").SRID)
	assert.Equal(t, ConusAlbers, ForState("TX").SRID)
}

func TestConusAlbers_Origin(t *testing.T) {
	x, y := conusAlbers.forward(-96, 23)
	assert.InDelta(t, 0, x, 1e-6)
	assert.InDelta(t, 0, y, 1e-6)
}

func TestConusAlbers_CentralMeridian(t *testing.T) {
	x, y := conusAlbers.forward(-96, 40)
	assert.InDelta(t, 0, x, 1e-6)
	assert.Greater(t, y, 1_800_000.0)
	assert.Less(t, y, 1_950_000.0)
}

func TestConusAlbers_DegreeOfLatitude(t *testing.T) {
	// One degree of latitude around 40N is ~111.0 km on the ellipsoid.
	_, y1 := conusAlbers.forward(-96, 39.5)
	_, y2 := conusAlbers.forward(-96, 40.5)
	assert.InEpsilon(t, 111_030.0, y2-y1, 0.02)
}

func TestAlaskaAlbers_DegreeOfLatitude(t *testing.T) {
	_, y1 := alaskaAlbers.forward(-154, 59.5)
	_, y2 := alaskaAlbers.forward(-154, 60.5)
	assert.InEpsilon(t, 111_420.0, y2-y1, 0.02)
}

func TestWebMercator_Origin(t *testing.T) {
	x, y := webMercator(0, 0)
	assert.InDelta(t, 0, x, 1e-6)
	assert.InDelta(t, 0, y, 1e-6)

	x, _ = webMercator(180, 0)
	assert.InDelta(t, 20037508.34, x, 0.01)
}

func TestReproject_Point(t *testing.T) {
	p := geom.NewPointFlat(geom.XY, []float64{-96, 23}).SetSRID(WGS84)

	got, err := ReprojectPoint(p, ConusAlbers)
	require.NoError(t, err)
	assert.Equal(t, ConusAlbers, got.SRID())
	assert.InDelta(t, 0, got.X(), 1e-6)
	assert.InDelta(t, 0, got.Y(), 1e-6)

	// Input untouched.
	assert.Equal(t, WGS84, p.SRID())
	assert.Equal(t, -96.0, p.X())
}

func TestReproject_Polygon(t *testing.T) {
	poly := geom.NewPolygonFlat(geom.XY, []float64{
		-97, 40, -95, 40, -95, 41, -97, 41, -97, 40,
	}, []int{10}).SetSRID(NAD83)

	got, err := Reproject(poly, ConusAlbers)
	require.NoError(t, err)

	out, ok := got.(*geom.Polygon)
	require.True(t, ok)
	assert.Equal(t, ConusAlbers, out.SRID())
	assert.Equal(t, []int{10}, out.Ends())
	for _, v := range out.FlatCoords() {
		assert.False(t, math.IsNaN(v))
	}
	// Symmetric about the central meridian.
	assert.InDelta(t, -out.FlatCoords()[0], out.FlatCoords()[2], 1e-6)
}

func TestReproject_MultiPolygon(t *testing.T) {
	mp := geom.NewMultiPolygonFlat(geom.XY, []float64{
		-150, 60, -149, 60, -149, 61, -150, 60,
	}, [][]int{{8}}).SetSRID(WGS84)

	got, err := Reproject(mp, AlaskaAlbers)
	require.NoError(t, err)
	assert.Equal(t, AlaskaAlbers, got.SRID())
	assert.Equal(t, [][]int{{8}}, got.(*geom.MultiPolygon).Endss())
}

func TestReproject_SameSRID(t *testing.T) {
	p := geom.NewPointFlat(geom.XY, []float64{10, 20}).SetSRID(ConusAlbers)
	got, err := Reproject(p, ConusAlbers)
	require.NoError(t, err)
	assert.Same(t, p, got)
}

func TestReproject_Unsupported(t *testing.T) {
	tests := []struct {
		name   string
		src    int
		target int
	}{
		{"projected source", ConusAlbers, AlaskaAlbers},
		{"unknown source", 0, ConusAlbers},
		{"geographic target", WGS84, NAD83},
		{"unknown target", WGS84, 6571},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := geom.NewPointFlat(geom.XY, []float64{-96, 40}).SetSRID(tt.src)
			_, err := Reproject(p, tt.target)
			require.Error(t, err)
			assert.ErrorIs(t, err, ErrUnsupportedTransform)
		})
	}
}

func TestReprojectPoint_Nil(t *testing.T) {
	_, err := ReprojectPoint(nil, ConusAlbers)
	assert.Error(t, err)
}

func TestAlaskaAlbers_Antimeridian(t *testing.T) {
	// Attu and Amchitka straddle 180 degrees; ~13.7 km apart at 52N.
	east, err := ReprojectPoint(geom.NewPointFlat(geom.XY, []float64{179.9, 52}).SetSRID(WGS84), AlaskaAlbers)
	require.NoError(t, err)
	west, err := ReprojectPoint(geom.NewPointFlat(geom.XY, []float64{-179.9, 52}).SetSRID(WGS84), AlaskaAlbers)
	require.NoError(t, err)

	d := math.Hypot(east.X()-west.X(), east.Y()-west.Y())
	assert.Greater(t, d, 10_000.0)
	assert.Less(t, d, 20_000.0)
	assert.Less(t, east.X(), west.X(), "179.9E lies west of 179.9W in Alaska Albers")
}

func TestWrapLon(t *testing.T) {
	tests := []struct {
		in, want float64
	}{
		{0, 0},
		{math.Pi, math.Pi},
		{-math.Pi, -math.Pi},
		{rad(333.9), rad(-26.1)},
		{rad(-333.9), rad(26.1)},
	}
	for _, tt := range tests {
		assert.InDelta(t, tt.want, wrapLon(tt.in), 1e-12)
	}
}
