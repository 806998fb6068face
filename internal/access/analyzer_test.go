package access

import (
	"math"
	"testing"

	"github.com/rotisserie/eris"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/twpayne/go-geom"

	"github.com/sells-group/trauma-access/internal/crs"
	"github.com/sells-group/trauma-access/internal/model"
)

// square returns a closed square polygon centred on (cx, cy).
func square(geoid string, cx, cy, half float64, srid int) model.Region {
	poly := geom.NewPolygonFlat(geom.XY, []float64{
		cx - half, cy - half,
		cx + half, cy - half,
		cx + half, cy + half,
		cx - half, cy + half,
		cx - half, cy - half,
	}, []int{10}).SetSRID(srid)
	return model.Region{GEOID: geoid, Geometry: poly}
}

func facilityAt(id string, x, y float64, srid int) model.Facility {
	return model.Facility{ID: id, Location: geom.NewPointFlat(geom.XY, []float64{x, y}).SetSRID(srid)}
}

func TestComputeMinDistances_SingleRegionSingleFacility(t *testing.T) {
	regions := []model.Region{square("r1", 0, 0, 1000, crs.ConusAlbers)}
	facilities := []model.Facility{facilityAt("f1", 12345, 0, crs.ConusAlbers)}

	res, err := ComputeMinDistances(facilities, regions, DefaultCatchmentRadiusMeters)
	require.NoError(t, err)
	require.Len(t, res.Outcomes, 1)
	assert.NoError(t, res.Outcomes[0].Err)
	assert.InDelta(t, 12.345, res.Outcomes[0].DistanceKM, 1e-9)
	assert.Equal(t, []float64{res.Outcomes[0].DistanceKM}, res.Distances())
	assert.Equal(t, 1, res.Candidates)
	assert.Equal(t, crs.ConusAlbers, res.SRID)
}

func TestComputeMinDistances_UnitConversion(t *testing.T) {
	regions := []model.Region{square("r1", 0, 0, 10, 0)}
	facilities := []model.Facility{facilityAt("f1", 9000, 12000, 0)}

	res, err := ComputeMinDistances(facilities, regions, DefaultCatchmentRadiusMeters)
	require.NoError(t, err)
	assert.InDelta(t, 15.0, res.Outcomes[0].DistanceKM, 1e-9)
}

func TestComputeMinDistances_NearestWinsAndOrderPreserved(t *testing.T) {
	regions := []model.Region{
		square("far", 50_000, 0, 500, 0),
		square("near", 0, 0, 500, 0),
	}
	facilities := []model.Facility{
		facilityAt("a", 3000, 4000, 0),
		facilityAt("b", 52_000, 0, 0),
		facilityAt("c", -20_000, 0, 0),
	}

	res, err := ComputeMinDistances(facilities, regions, DefaultCatchmentRadiusMeters)
	require.NoError(t, err)
	require.Len(t, res.Outcomes, 2)

	assert.Equal(t, "far", res.Outcomes[0].GEOID)
	assert.Equal(t, 0, res.Outcomes[0].Index)
	assert.InDelta(t, 2.0, res.Outcomes[0].DistanceKM, 1e-9)

	assert.Equal(t, "near", res.Outcomes[1].GEOID)
	assert.InDelta(t, 5.0, res.Outcomes[1].DistanceKM, 1e-9)
}

func TestComputeMinDistances_FacilityOutsideCatchmentIgnored(t *testing.T) {
	regions := []model.Region{square("r1", 0, 0, 1000, 0)}
	facilities := []model.Facility{
		facilityAt("inside", 60_000, 0, 0),
		facilityAt("outside", 0, 150_000, 0),
	}

	res, err := ComputeMinDistances(facilities, regions, DefaultCatchmentRadiusMeters)
	require.NoError(t, err)
	assert.Equal(t, 1, res.Candidates)
	assert.InDelta(t, 60.0, res.Outcomes[0].DistanceKM, 1e-9)
}

func TestComputeMinDistances_NoFacilityInRange(t *testing.T) {
	regions := []model.Region{
		square("mainland", 0, 0, 1000, 0),
		square("island", 1_000_000, 0, 1000, 0),
	}
	facilities := []model.Facility{facilityAt("f1", 10_000, 0, 0)}

	res, err := ComputeMinDistances(facilities, regions, DefaultCatchmentRadiusMeters)
	require.NoError(t, err)

	assert.NoError(t, res.Outcomes[0].Err)
	assert.InDelta(t, 10.0, res.Outcomes[0].DistanceKM, 1e-9)

	require.Error(t, res.Outcomes[1].Err)
	assert.True(t, eris.Is(res.Outcomes[1].Err, ErrNoFacilityInRange))
	assert.False(t, IsStructural(res.Outcomes[1].Err))
	assert.Equal(t, 0.0, res.Outcomes[1].DistanceKM)

	assert.Equal(t, 1, res.Reachable())
	require.Len(t, res.Failures(), 1)
	assert.Equal(t, "island", res.Failures()[0].GEOID)
	assert.Equal(t, []float64{10.0}, res.Distances())
}

func TestComputeMinDistances_ChainedRegionsShareCatchment(t *testing.T) {
	// Regions 150 km apart have overlapping 100 km buffers, so a facility
	// near the first one still serves the second.
	regions := []model.Region{
		square("a", 0, 0, 1000, 0),
		square("b", 150_000, 0, 1000, 0),
	}
	facilities := []model.Facility{facilityAt("f1", -5000, 0, 0)}

	res, err := ComputeMinDistances(facilities, regions, DefaultCatchmentRadiusMeters)
	require.NoError(t, err)
	assert.NoError(t, res.Outcomes[1].Err)
	assert.InDelta(t, 155.0, res.Outcomes[1].DistanceKM, 1e-9)
}

func TestComputeMinDistances_NoFacilities(t *testing.T) {
	regions := []model.Region{square("r1", 0, 0, 1000, 0), square("r2", 5000, 0, 1000, 0)}

	res, err := ComputeMinDistances(nil, regions, DefaultCatchmentRadiusMeters)
	require.NoError(t, err)
	assert.Len(t, res.Failures(), 2)
	assert.Empty(t, res.Distances())
}

func TestComputeMinDistances_Idempotent(t *testing.T) {
	regions := []model.Region{
		square("a", 0, 0, 800, 0),
		square("b", 20_000, 5000, 1200, 0),
		square("c", -7000, 30_000, 600, 0),
	}
	facilities := []model.Facility{
		facilityAt("f1", 1000, 1000, 0),
		facilityAt("f2", 25_000, 9000, 0),
	}

	first, err := ComputeMinDistances(facilities, regions, DefaultCatchmentRadiusMeters)
	require.NoError(t, err)
	second, err := ComputeMinDistances(facilities, regions, DefaultCatchmentRadiusMeters)
	require.NoError(t, err)
	assert.Equal(t, first, second)
}

func TestComputeMinDistances_SanityBound(t *testing.T) {
	var regions []model.Region
	for i := 0; i < 6; i++ {
		regions = append(regions, square("r", float64(i)*7000, float64(i%3)*9000, 1500, 0))
	}
	facilities := []model.Facility{
		facilityAt("f1", 2000, -3000, 0),
		facilityAt("f2", 40_000, 15_000, 0),
		facilityAt("f3", 18_000, 26_000, 0),
	}

	res, err := ComputeMinDistances(facilities, regions, DefaultCatchmentRadiusMeters)
	require.NoError(t, err)

	// Region centroids are the square centres.
	maxPair := 0.0
	for i := range regions {
		cx, cy := float64(i)*7000, float64(i%3)*9000
		for _, f := range facilities {
			maxPair = math.Max(maxPair, math.Hypot(f.Location.X()-cx, f.Location.Y()-cy)/1000)
		}
	}
	for _, d := range res.Distances() {
		assert.GreaterOrEqual(t, d, 0.0)
		assert.LessOrEqual(t, d, maxPair)
	}
}

func TestComputeMinDistances_MultiPolygonCentroid(t *testing.T) {
	mp := geom.NewMultiPolygonFlat(geom.XY, []float64{
		-2000, -1000, 0, -1000, 0, 1000, -2000, 1000, -2000, -1000,
		10_000, -1000, 12_000, -1000, 12_000, 1000, 10_000, 1000, 10_000, -1000,
	}, [][]int{{10}, {20}})
	regions := []model.Region{{GEOID: "split", Geometry: mp}}
	facilities := []model.Facility{facilityAt("f1", 5000, 3000, 0)}

	res, err := ComputeMinDistances(facilities, regions, DefaultCatchmentRadiusMeters)
	require.NoError(t, err)
	// Equal-area halves put the centroid at (5000, 0).
	assert.InDelta(t, 3.0, res.Outcomes[0].DistanceKM, 1e-9)
}

func TestComputeMinDistances_StructuralErrors(t *testing.T) {
	good := square("r1", 0, 0, 1000, crs.ConusAlbers)

	tests := []struct {
		name       string
		facilities []model.Facility
		regions    []model.Region
		radius     float64
		want       error
	}{
		{
			name:   "empty regions",
			radius: DefaultCatchmentRadiusMeters,
			want:   ErrEmptyInput,
		},
		{
			name:    "zero radius",
			regions: []model.Region{good},
			radius:  0,
			want:    ErrInvalidInput,
		},
		{
			name:    "geographic regions",
			regions: []model.Region{square("r1", -96, 40, 0.1, crs.WGS84)},
			radius:  DefaultCatchmentRadiusMeters,
			want:    ErrCRSMismatch,
		},
		{
			name:       "mixed srids",
			regions:    []model.Region{good},
			facilities: []model.Facility{facilityAt("f1", 10, 10, crs.AlaskaAlbers)},
			radius:     DefaultCatchmentRadiusMeters,
			want:       ErrCRSMismatch,
		},
		{
			name:       "metadata on one side only",
			regions:    []model.Region{good},
			facilities: []model.Facility{facilityAt("f1", 10, 10, 0)},
			radius:     DefaultCatchmentRadiusMeters,
			want:       ErrCRSMismatch,
		},
		{
			name:    "unregistered srid",
			regions: []model.Region{square("r1", 0, 0, 1000, 6571)},
			radius:  DefaultCatchmentRadiusMeters,
			want:    ErrCRSMismatch,
		},
		{
			name:    "nil region geometry",
			regions: []model.Region{{GEOID: "nil"}},
			radius:  DefaultCatchmentRadiusMeters,
			want:    ErrInvalidGeometry,
		},
		{
			name:    "point as region",
			regions: []model.Region{{GEOID: "pt", Geometry: geom.NewPointFlat(geom.XY, []float64{0, 0})}},
			radius:  DefaultCatchmentRadiusMeters,
			want:    ErrInvalidGeometry,
		},
		{
			name:       "facility without location",
			regions:    []model.Region{square("r1", 0, 0, 1000, 0)},
			facilities: []model.Facility{{ID: "f1"}},
			radius:     DefaultCatchmentRadiusMeters,
			want:       ErrInvalidGeometry,
		},
		{
			name:       "non-finite facility",
			regions:    []model.Region{square("r1", 0, 0, 1000, 0)},
			facilities: []model.Facility{facilityAt("f1", math.NaN(), 0, 0)},
			radius:     DefaultCatchmentRadiusMeters,
			want:       ErrInvalidGeometry,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			res, err := ComputeMinDistances(tt.facilities, tt.regions, tt.radius)
			require.Error(t, err)
			assert.Nil(t, res)
			assert.True(t, eris.Is(err, tt.want), "got %v", err)
			assert.True(t, IsStructural(err))
		})
	}
}

func TestPointPolygonDistance_Hole(t *testing.T) {
	poly := geom.NewPolygonFlat(geom.XY, []float64{
		0, 0, 100, 0, 100, 100, 0, 100, 0, 0,
		40, 40, 40, 60, 60, 60, 60, 40, 40, 40,
	}, []int{10, 20})

	assert.Equal(t, 0.0, pointPolygonDistance(geom.XY, geom.Coord{10, 10}, poly))
	assert.InDelta(t, 10.0, pointPolygonDistance(geom.XY, geom.Coord{50, 50}, poly), 1e-9)
	assert.InDelta(t, 20.0, pointPolygonDistance(geom.XY, geom.Coord{120, 50}, poly), 1e-9)
}

func rect(geoid string, minX, minY, maxX, maxY float64) model.Region {
	poly := geom.NewPolygonFlat(geom.XY, []float64{
		minX, minY, maxX, minY, maxX, maxY, minX, maxY, minX, minY,
	}, []int{10})
	return model.Region{GEOID: geoid, Geometry: poly}
}

func TestComputeMinDistances_CrossingRegionsShareCatchment(t *testing.T) {
	// Thin strips crossing at the origin; no vertex of either lies near
	// the other.
	regions := []model.Region{
		rect("h", -100_000, -1, 100_000, 1),
		rect("v", -1, -100_000, 1, 100_000),
	}
	facilities := []model.Facility{facilityAt("f1", 90_000, 0, 0)}

	res, err := ComputeMinDistances(facilities, regions, 10)
	require.NoError(t, err)
	require.Len(t, res.Outcomes, 2)
	for _, o := range res.Outcomes {
		require.NoError(t, o.Err, o.GEOID)
		assert.InDelta(t, 90.0, o.DistanceKM, 1e-9, o.GEOID)
	}
}

func TestSegmentsIntersect(t *testing.T) {
	tests := []struct {
		name           string
		p1, p2, q1, q2 geom.Coord
		want           bool
	}{
		{"proper crossing", geom.Coord{-1, 0}, geom.Coord{1, 0}, geom.Coord{0, -1}, geom.Coord{0, 1}, true},
		{"touching endpoint", geom.Coord{0, 0}, geom.Coord{1, 0}, geom.Coord{1, 0}, geom.Coord{1, 1}, true},
		{"collinear overlap", geom.Coord{0, 0}, geom.Coord{2, 0}, geom.Coord{1, 0}, geom.Coord{3, 0}, true},
		{"collinear disjoint", geom.Coord{0, 0}, geom.Coord{1, 0}, geom.Coord{2, 0}, geom.Coord{3, 0}, false},
		{"parallel", geom.Coord{0, 0}, geom.Coord{1, 0}, geom.Coord{0, 1}, geom.Coord{1, 1}, false},
		{"short of crossing", geom.Coord{-1, 0}, geom.Coord{1, 0}, geom.Coord{0, 0.5}, geom.Coord{0, 2}, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, segmentsIntersect(tt.p1, tt.p2, tt.q1, tt.q2))
		})
	}
}
