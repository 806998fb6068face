package pipeline

import (
	"time"

	"github.com/sells-group/trauma-access/internal/access"
	"github.com/sells-group/trauma-access/internal/crs"
	"github.com/sells-group/trauma-access/internal/model"
)

// Report is the outcome of one state analysis.
type Report struct {
	RunID             string            `json:"run_id" yaml:"run_id"`
	State             string            `json:"state" yaml:"state"`
	GeneratedAt       time.Time         `json:"generated_at" yaml:"generated_at"`
	CRS               crs.CRS           `json:"crs" yaml:"crs"`
	CatchmentRadiusKm float64           `json:"catchment_radius_km" yaml:"catchment_radius_km"`
	Facilities        access.Metrics    `json:"facilities" yaml:"facilities"`
	FacilitiesInRange int               `json:"facilities_in_range" yaml:"facilities_in_range"`
	Reachable         int               `json:"reachable_tracts" yaml:"reachable_tracts"`
	Unreachable       int               `json:"unreachable_tracts" yaml:"unreachable_tracts"`
	Summary           *access.Summary   `json:"summary,omitempty" yaml:"summary,omitempty"`
	Histogram         *access.Histogram `json:"histogram,omitempty" yaml:"histogram,omitempty"`
	Tracts            []TractResult     `json:"tracts" yaml:"tracts"`
	DurationMs        int64             `json:"duration_ms" yaml:"duration_ms"`
}

// TractResult is one tract's distance, or the reason it has none.
type TractResult struct {
	GEOID      string   `json:"geoid" yaml:"geoid"`
	Name       string   `json:"name,omitempty" yaml:"name,omitempty"`
	CountyFIPS string   `json:"county_fips" yaml:"county_fips"`
	DistanceKM *float64 `json:"distance_km" yaml:"distance_km"`
	Error      string   `json:"error,omitempty" yaml:"error,omitempty"`
}

func tractResults(regions []model.Region, res *access.Result) []TractResult {
	out := make([]TractResult, len(res.Outcomes))
	for i, o := range res.Outcomes {
		tr := TractResult{
			GEOID:      o.GEOID,
			Name:       regions[o.Index].Name,
			CountyFIPS: regions[o.Index].CountyFIPS,
		}
		if o.OK() {
			d := o.DistanceKM
			tr.DistanceKM = &d
		} else {
			tr.Error = o.Err.Error()
		}
		out[i] = tr
	}
	return out
}

// FacilityRecord is one trauma hospital as listed for a state. Lon and Lat
// are in the catalog CRS (WGS84) and absent when the record has no location.
type FacilityRecord struct {
	ID          string   `json:"id" yaml:"id"`
	Name        string   `json:"name" yaml:"name"`
	Address     string   `json:"address" yaml:"address"`
	City        string   `json:"city" yaml:"city"`
	State       string   `json:"state" yaml:"state"`
	Zip         string   `json:"zip" yaml:"zip"`
	TraumaLevel string   `json:"trauma_level" yaml:"trauma_level"`
	Helipad     string   `json:"helipad" yaml:"helipad"`
	Beds        *int     `json:"beds" yaml:"beds"`
	Lon         *float64 `json:"lon" yaml:"lon"`
	Lat         *float64 `json:"lat" yaml:"lat"`
}

func facilityRecords(facilities []model.Facility) []FacilityRecord {
	out := make([]FacilityRecord, 0, len(facilities))
	for _, f := range facilities {
		rec := FacilityRecord{
			ID:          f.ID,
			Name:        f.Name,
			Address:     f.Address,
			City:        f.City,
			State:       f.State,
			Zip:         f.Zip,
			TraumaLevel: f.TraumaLevel,
			Helipad:     f.Helipad,
			Beds:        f.Beds,
		}
		if f.Location != nil && !f.Location.Empty() {
			lon, lat := f.Location.X(), f.Location.Y()
			rec.Lon, rec.Lat = &lon, &lat
		}
		out = append(out, rec)
	}
	return out
}
