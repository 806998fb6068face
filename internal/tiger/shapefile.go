package tiger

import (
	"strings"

	"github.com/jonas-p/go-shp"
	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/trauma-access/internal/crs"
	"github.com/sells-group/trauma-access/internal/model"
)

// ParseTracts reads a tract shapefile into regions in NAD83 (SRID 4269).
// Records without polygon geometry are skipped.
func ParseTracts(shpPath string) ([]model.Region, error) {
	reader, err := shp.Open(shpPath)
	if err != nil {
		return nil, eris.Wrapf(err, "tiger: open shapefile %s", shpPath)
	}
	defer func() { _ = reader.Close() }()

	fields := reader.Fields()
	fieldIdx := make(map[string]int, len(fields))
	for i, f := range fields {
		name := strings.TrimRight(f.String(), "\x00")
		fieldIdx[strings.ToLower(name)] = i
	}
	attr := func(col string) string {
		idx, ok := fieldIdx[col]
		if !ok {
			return ""
		}
		return strings.TrimSpace(strings.TrimRight(reader.Attribute(idx), "\x00"))
	}

	var regions []model.Region
	var skipped int

	for reader.Next() {
		_, shape := reader.Shape()

		poly, ok := shape.(*shp.Polygon)
		if !ok {
			skipped++
			continue
		}
		g := polygonGeometry(poly, crs.NAD83)
		if g == nil {
			skipped++
			continue
		}

		r := model.Region{
			GEOID:      attr("geoid"),
			Name:       attr("name"),
			StateFIPS:  attr("statefp"),
			CountyFIPS: attr("countyfp"),
			TractCE:    attr("tractce"),
			Geometry:   g,
		}
		if r.GEOID == "" {
			r.GEOID = r.StateFIPS + r.CountyFIPS + r.TractCE
		}
		regions = append(regions, r)
	}

	if skipped > 0 {
		zap.L().Debug("tiger: skipped shapefile records",
			zap.String("path", shpPath),
			zap.Int("skipped", skipped),
		)
	}
	return regions, nil
}
