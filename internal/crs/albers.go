package crs

import "math"

// GRS80 ellipsoid, shared by NAD83 and (to sub-metre precision) WGS84.
const (
	grs80A  = 6378137.0
	grs80E2 = 0.00669438002290
)

// albers holds precomputed constants for an ellipsoidal Albers equal-area
// conic projection (Snyder, Map Projections: A Working Manual, eq. 14-1..14-6).
type albers struct {
	lon0 float64 // radians
	n    float64
	c    float64
	rho0 float64
	e    float64
}

func newAlbers(lat1, lat2, lat0, lon0 float64) albers {
	e := math.Sqrt(grs80E2)
	phi1, phi2, phi0 := rad(lat1), rad(lat2), rad(lat0)

	m1, m2 := albersM(phi1), albersM(phi2)
	q1, q2, q0 := albersQ(phi1, e), albersQ(phi2, e), albersQ(phi0, e)

	n := (m1*m1 - m2*m2) / (q2 - q1)
	c := m1*m1 + n*q1
	return albers{
		lon0: rad(lon0),
		n:    n,
		c:    c,
		rho0: grs80A * math.Sqrt(c-n*q0) / n,
		e:    e,
	}
}

var (
	conusAlbers  = newAlbers(29.5, 45.5, 23, -96)
	alaskaAlbers = newAlbers(55, 65, 50, -154)
	hawaiiAlbers = newAlbers(8, 18, 13, -157)
)

func (p albers) forward(lon, lat float64) (float64, float64) {
	q := albersQ(rad(lat), p.e)
	rho := grs80A * math.Sqrt(p.c-p.n*q) / p.n
	theta := p.n * wrapLon(rad(lon)-p.lon0)
	return rho * math.Sin(theta), p.rho0 - rho*math.Cos(theta)
}

func albersM(phi float64) float64 {
	s := math.Sin(phi)
	return math.Cos(phi) / math.Sqrt(1-grs80E2*s*s)
}

func albersQ(phi, e float64) float64 {
	s := math.Sin(phi)
	return (1 - grs80E2) * (s/(1-grs80E2*s*s) - (1/(2*e))*math.Log((1-e*s)/(1+e*s)))
}

func rad(deg float64) float64 { return deg * math.Pi / 180 }

// wrapLon folds a longitude difference into [-pi, pi] so points across the
// antimeridian stay next to the central meridian.
func wrapLon(dl float64) float64 {
	if dl >= -math.Pi && dl <= math.Pi {
		return dl
	}
	dl = math.Mod(dl+math.Pi, 2*math.Pi)
	if dl < 0 {
		dl += 2 * math.Pi
	}
	return dl - math.Pi
}
