package crs

import (
	"github.com/paulmach/orb"
	"github.com/paulmach/orb/project"
)

func webMercator(lon, lat float64) (float64, float64) {
	p := project.Point(orb.Point{lon, lat}, project.WGS84.ToMercator)
	return p.X(), p.Y()
}
