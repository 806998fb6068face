// Package crs tracks coordinate reference systems by SRID and reprojects
// go-geom geometries from geographic coordinates into metre-based
// projections suitable for planar distance arithmetic.
package crs

import (
	"sort"

	"github.com/rotisserie/eris"
)

// Well-known SRIDs.
const (
	WGS84        = 4326   // geographic, degrees
	NAD83        = 4269   // geographic, degrees (Census TIGER/Line)
	WebMercator  = 3857   // projected, metres
	ConusAlbers  = 5070   // NAD83 / Conus Albers, metres
	AlaskaAlbers = 3338   // NAD83 / Alaska Albers, metres
	HawaiiAlbers = 102007 // ESRI Hawaii Albers Equal Area Conic, metres
)

// Unit is the base unit of a CRS axis.
type Unit string

// Axis units.
const (
	UnitDegree Unit = "degree"
	UnitMetre  Unit = "metre"
)

// CRS describes a registered coordinate reference system.
type CRS struct {
	SRID int    `json:"srid"`
	Name string `json:"name"`
	Unit Unit   `json:"unit"`

	project func(lon, lat float64) (x, y float64)
}

// Linear reports whether the CRS has linear (metre) axis units.
func (c CRS) Linear() bool { return c.Unit == UnitMetre }

// Geographic reports whether the CRS has angular axis units.
func (c CRS) Geographic() bool { return c.Unit == UnitDegree }

var registry = map[int]CRS{
	WGS84:        {SRID: WGS84, Name: "WGS 84", Unit: UnitDegree},
	NAD83:        {SRID: NAD83, Name: "NAD83", Unit: UnitDegree},
	WebMercator:  {SRID: WebMercator, Name: "WGS 84 / Pseudo-Mercator", Unit: UnitMetre, project: webMercator},
	ConusAlbers:  {SRID: ConusAlbers, Name: "NAD83 / Conus Albers", Unit: UnitMetre, project: conusAlbers.forward},
	AlaskaAlbers: {SRID: AlaskaAlbers, Name: "NAD83 / Alaska Albers", Unit: UnitMetre, project: alaskaAlbers.forward},
	HawaiiAlbers: {SRID: HawaiiAlbers, Name: "Hawaii Albers Equal Area Conic", Unit: UnitMetre, project: hawaiiAlbers.forward},
}

// Lookup returns the registered CRS for an SRID.
func Lookup(srid int) (CRS, bool) {
	c, ok := registry[srid]
	return c, ok
}

// MustLookup is Lookup for SRIDs known to be registered.
func MustLookup(srid int) CRS {
	c, ok := registry[srid]
	if !ok {
		panic(eris.Errorf("crs: unregistered srid %d", srid))
	}
	return c
}

// Projected returns the SRIDs of all registered linear CRSes, sorted.
func Projected() []int {
	var out []int
	for srid, c := range registry {
		if c.Linear() {
			out = append(out, srid)
		}
	}
	sort.Ints(out)
	return out
}

// ForState picks an equal-area projection suited to a state's extent.
// Alaska and Hawaii get their own Albers parameters; everything else
// uses the contiguous-US Albers.
func ForState(stateAbbr string) CRS {
	switch stateAbbr {
	case "AK":
		return registry[AlaskaAlbers]
	case "HI":
		return registry[HawaiiAlbers]
	default:
		return registry[ConusAlbers]
	}
}
