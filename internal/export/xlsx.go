package export

import (
	"io"

	"github.com/rotisserie/eris"
	"github.com/tealeg/xlsx/v2"

	"github.com/sells-group/trauma-access/internal/pipeline"
)

// Workbook sheet names.
const (
	SheetSummary   = "Summary"
	SheetTracts    = "Tracts"
	SheetHistogram = "Histogram"
)

var (
	summaryHeader   = []string{"state", "run_id", "srid", "crs", "catchment_radius_km", "hospitals", "helipads", "level1", "level1_beds", "facilities_in_range", "reachable", "unreachable", "mean_km", "median_km", "max_km"}
	tractHeader     = []string{"state", "geoid", "county_fips", "name", "distance_km", "error"}
	histogramHeader = []string{"state", "start_km", "end_km", "count"}
)

// BuildWorkbook lays reports out as three sheets: one summary row per
// state, one row per tract and one row per histogram bin.
func BuildWorkbook(reports []*pipeline.Report) (*xlsx.File, error) {
	f := xlsx.NewFile()

	summary, err := addSheet(f, SheetSummary, summaryHeader)
	if err != nil {
		return nil, err
	}
	tracts, err := addSheet(f, SheetTracts, tractHeader)
	if err != nil {
		return nil, err
	}
	hist, err := addSheet(f, SheetHistogram, histogramHeader)
	if err != nil {
		return nil, err
	}

	for _, r := range reports {
		row := summary.AddRow()
		row.AddCell().SetString(r.State)
		row.AddCell().SetString(r.RunID)
		row.AddCell().SetInt(r.CRS.SRID)
		row.AddCell().SetString(r.CRS.Name)
		row.AddCell().SetFloat(r.CatchmentRadiusKm)
		row.AddCell().SetInt(r.Facilities.HospitalCount)
		row.AddCell().SetInt(r.Facilities.HelipadCount)
		row.AddCell().SetInt(r.Facilities.Level1Count)
		row.AddCell().SetInt(r.Facilities.Level1BedTotal)
		row.AddCell().SetInt(r.FacilitiesInRange)
		row.AddCell().SetInt(r.Reachable)
		row.AddCell().SetInt(r.Unreachable)
		if r.Summary != nil {
			row.AddCell().SetFloat(r.Summary.Mean)
			row.AddCell().SetFloat(r.Summary.Median)
			row.AddCell().SetFloat(r.Summary.Max)
		}

		for _, t := range r.Tracts {
			row := tracts.AddRow()
			row.AddCell().SetString(r.State)
			row.AddCell().SetString(t.GEOID)
			row.AddCell().SetString(t.CountyFIPS)
			row.AddCell().SetString(t.Name)
			if t.DistanceKM != nil {
				row.AddCell().SetFloat(*t.DistanceKM)
			} else {
				row.AddCell().SetString("")
			}
			row.AddCell().SetString(t.Error)
		}

		if r.Histogram != nil {
			for _, b := range r.Histogram.Bins {
				row := hist.AddRow()
				row.AddCell().SetString(r.State)
				row.AddCell().SetFloat(b.Start)
				row.AddCell().SetFloat(b.End)
				row.AddCell().SetInt(b.Count)
			}
		}
	}
	return f, nil
}

// SaveXLSX writes reports as a workbook at path.
func SaveXLSX(path string, reports []*pipeline.Report) error {
	f, err := BuildWorkbook(reports)
	if err != nil {
		return err
	}
	return eris.Wrapf(f.Save(path), "export: save %s", path)
}

// WriteXLSX streams the workbook to w.
func WriteXLSX(w io.Writer, reports []*pipeline.Report) error {
	f, err := BuildWorkbook(reports)
	if err != nil {
		return err
	}
	return eris.Wrap(f.Write(w), "export: write xlsx")
}

func addSheet(f *xlsx.File, name string, header []string) (*xlsx.Sheet, error) {
	sheet, err := f.AddSheet(name)
	if err != nil {
		return nil, eris.Wrapf(err, "export: add sheet %s", name)
	}
	row := sheet.AddRow()
	for _, h := range header {
		row.AddCell().SetString(h)
	}
	return sheet, nil
}
