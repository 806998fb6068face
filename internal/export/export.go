// Package export renders analysis reports as text tables, JSON, YAML and
// XLSX workbooks.
package export

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"
	"text/tabwriter"

	"github.com/rotisserie/eris"
	"gopkg.in/yaml.v3"

	"github.com/sells-group/trauma-access/internal/pipeline"
)

// Format is an output encoding.
type Format string

// Supported formats.
const (
	FormatTable Format = "table"
	FormatJSON  Format = "json"
	FormatYAML  Format = "yaml"
)

// ParseFormat validates a format name. Empty means table.
func ParseFormat(s string) (Format, error) {
	switch f := Format(strings.ToLower(strings.TrimSpace(s))); f {
	case "":
		return FormatTable, nil
	case FormatTable, FormatJSON, FormatYAML:
		return f, nil
	default:
		return "", eris.Errorf("export: unknown format %q (want table, json or yaml)", s)
	}
}

// Write renders reports to w in the given format.
func Write(w io.Writer, format Format, reports []*pipeline.Report) error {
	switch format {
	case FormatJSON:
		return WriteJSON(w, reports)
	case FormatYAML:
		return WriteYAML(w, reports)
	case FormatTable, "":
		return WriteTable(w, reports)
	default:
		return eris.Errorf("export: unknown format %q", format)
	}
}

// WriteJSON writes reports as an indented JSON array.
func WriteJSON(w io.Writer, reports []*pipeline.Report) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return eris.Wrap(enc.Encode(reports), "export: encode json")
}

// WriteYAML writes reports as a YAML sequence.
func WriteYAML(w io.Writer, reports []*pipeline.Report) error {
	enc := yaml.NewEncoder(w)
	enc.SetIndent(2)
	if err := enc.Encode(reports); err != nil {
		return eris.Wrap(err, "export: encode yaml")
	}
	return eris.Wrap(enc.Close(), "export: close yaml encoder")
}

// WriteTable writes one summary row per report followed by each report's
// histogram.
func WriteTable(out io.Writer, reports []*pipeline.Report) error {
	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	_, _ = fmt.Fprintln(w, "STATE\tCRS\tTRACTS\tUNREACHABLE\tHOSPITALS\tHELIPADS\tLEVEL_I\tLEVEL_I_BEDS\tMEAN_KM\tMEDIAN_KM\tMAX_KM")
	_, _ = fmt.Fprintln(w, "-----\t---\t------\t-----------\t---------\t--------\t-------\t------------\t-------\t---------\t------")
	for _, r := range reports {
		mean, median, max := "-", "-", "-"
		if r.Summary != nil {
			mean = km(r.Summary.Mean)
			median = km(r.Summary.Median)
			max = km(r.Summary.Max)
		}
		_, _ = fmt.Fprintf(w, "%s\t%d\t%d\t%d\t%d\t%d\t%d\t%d\t%s\t%s\t%s\n",
			r.State, r.CRS.SRID, len(r.Tracts), r.Unreachable,
			r.Facilities.HospitalCount, r.Facilities.HelipadCount,
			r.Facilities.Level1Count, r.Facilities.Level1BedTotal,
			mean, median, max,
		)
	}
	if err := w.Flush(); err != nil {
		return eris.Wrap(err, "export: flush table")
	}

	for _, r := range reports {
		if r.Histogram == nil {
			continue
		}
		_, _ = fmt.Fprintf(out, "\n%s distance histogram (bin %s km)\n", r.State, km(r.Histogram.BinWidthKm))
		hw := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
		_, _ = fmt.Fprintln(hw, "FROM_KM\tTO_KM\tTRACTS")
		for _, b := range r.Histogram.Bins {
			_, _ = fmt.Fprintf(hw, "%s\t%s\t%d\n", km(b.Start), km(b.End), b.Count)
		}
		if err := hw.Flush(); err != nil {
			return eris.Wrap(err, "export: flush histogram")
		}
	}
	return nil
}

// WriteFacilities renders a state's facility listing in the given format.
func WriteFacilities(w io.Writer, format Format, recs []pipeline.FacilityRecord) error {
	switch format {
	case FormatJSON:
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return eris.Wrap(enc.Encode(recs), "export: encode json")
	case FormatYAML:
		enc := yaml.NewEncoder(w)
		enc.SetIndent(2)
		if err := enc.Encode(recs); err != nil {
			return eris.Wrap(err, "export: encode yaml")
		}
		return eris.Wrap(enc.Close(), "export: close yaml encoder")
	case FormatTable, "":
		return writeFacilityTable(w, recs)
	default:
		return eris.Errorf("export: unknown format %q", format)
	}
}

func writeFacilityTable(out io.Writer, recs []pipeline.FacilityRecord) error {
	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	_, _ = fmt.Fprintln(w, "ID\tNAME\tADDRESS\tCITY\tSTATE\tZIP\tTRAUMA\tHELIPAD\tBEDS\tLON\tLAT")
	_, _ = fmt.Fprintln(w, "--\t----\t-------\t----\t-----\t---\t------\t-------\t----\t---\t---")
	for _, r := range recs {
		beds, lon, lat := "-", "-", "-"
		if r.Beds != nil && *r.Beds >= 0 {
			beds = fmt.Sprintf("%d", *r.Beds)
		}
		if r.Lon != nil && r.Lat != nil {
			lon = fmt.Sprintf("%.5f", *r.Lon)
			lat = fmt.Sprintf("%.5f", *r.Lat)
		}
		_, _ = fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\t%s\t%s\t%s\t%s\t%s\t%s\n",
			r.ID, r.Name, r.Address, r.City, r.State, r.Zip,
			r.TraumaLevel, r.Helipad, beds, lon, lat,
		)
	}
	return eris.Wrap(w.Flush(), "export: flush facilities")
}

func km(v float64) string { return fmt.Sprintf("%.2f", v) }
