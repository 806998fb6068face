package model

import "github.com/twpayne/go-geom"

// Region is a census tract boundary. Geometry is a *geom.Polygon or
// *geom.MultiPolygon whose SRID identifies the coordinate reference system.
type Region struct {
	GEOID      string `json:"geoid"`
	Name       string `json:"name,omitempty"`
	StateFIPS  string `json:"state_fips"`
	CountyFIPS string `json:"county_fips"`
	TractCE    string `json:"tract_ce"`
	Geometry   geom.T `json:"-"`
}

// WithGeometry returns a copy of the region with a replaced geometry.
func (r Region) WithGeometry(g geom.T) Region {
	r.Geometry = g
	return r
}
