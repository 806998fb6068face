package model

import "github.com/twpayne/go-geom"

// HelipadYes is the affirmative token used by the HIFLD HELIPAD attribute.
const HelipadYes = "Y"

// Facility is a trauma hospital record.
type Facility struct {
	ID          string      `json:"id"`
	Name        string      `json:"name"`
	Address     string      `json:"address,omitempty"`
	City        string      `json:"city,omitempty"`
	State       string      `json:"state"`
	Zip         string      `json:"zip,omitempty"`
	TraumaLevel string      `json:"trauma_level,omitempty"`
	Helipad     string      `json:"helipad,omitempty"`
	Beds        *int        `json:"beds,omitempty"`
	Location    *geom.Point `json:"-"`
}

// BedCount returns the bed count, treating missing and negative
// sentinel values as zero.
func (f Facility) BedCount() int {
	if f.Beds == nil || *f.Beds < 0 {
		return 0
	}
	return *f.Beds
}

// WithLocation returns a copy of the facility with a replaced location.
func (f Facility) WithLocation(p *geom.Point) Facility {
	f.Location = p
	return f
}
