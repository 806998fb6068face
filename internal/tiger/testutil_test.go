package tiger

import (
	"archive/zip"
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/jonas-p/go-shp"
	"github.com/stretchr/testify/require"
)

type testTract struct {
	geoid string
	name  string
	rings [][]shp.Point
}

// square returns a closed ring; clockwise rings are outers in shapefiles.
func square(x0, y0, size float64, clockwise bool) []shp.Point {
	if clockwise {
		return []shp.Point{{X: x0, Y: y0}, {X: x0, Y: y0 + size}, {X: x0 + size, Y: y0 + size}, {X: x0 + size, Y: y0}, {X: x0, Y: y0}}
	}
	return []shp.Point{{X: x0, Y: y0}, {X: x0 + size, Y: y0}, {X: x0 + size, Y: y0 + size}, {X: x0, Y: y0 + size}, {X: x0, Y: y0}}
}

func testTracts() []testTract {
	return []testTract{
		{geoid: "02020000100", name: "1", rings: [][]shp.Point{square(-150, 61, 1, true)}},
		{geoid: "02020000200", name: "2", rings: [][]shp.Point{
			square(-149, 61, 1, true),
			square(-148.75, 61.25, 0.5, false),
		}},
		{geoid: "02016000100", name: "1", rings: [][]shp.Point{
			square(-170, 52, 0.5, true),
			square(-168, 52, 0.5, true),
		}},
	}
}

// writeTractShapefile writes a tract shapefile and returns the .shp path.
func writeTractShapefile(t *testing.T, dir string, tracts []testTract) string {
	t.Helper()
	path := filepath.Join(dir, "cb_2021_02_tract_500k.shp")

	w, err := shp.Create(path, shp.POLYGON)
	require.NoError(t, err)
	fields := []shp.Field{
		shp.StringField("STATEFP", 2),
		shp.StringField("COUNTYFP", 3),
		shp.StringField("TRACTCE", 6),
		shp.StringField("GEOID", 11),
		shp.StringField("NAME", 20),
	}
	w.SetFields(fields) //nolint:errcheck

	for _, tr := range tracts {
		poly := shp.Polygon(*shp.NewPolyLine(tr.rings))
		row := int(w.Write(&poly))
		for i, v := range []string{tr.geoid[:2], tr.geoid[2:5], tr.geoid[5:], tr.geoid, tr.name} {
			require.NoError(t, w.WriteAttribute(row, i, v))
		}
	}
	w.Close()
	return path
}

// zipShapefile bundles every sidecar of shpPath into an in-memory ZIP.
func zipShapefile(t *testing.T, shpPath string) []byte {
	t.Helper()
	base := strings.TrimSuffix(shpPath, ".shp")

	var buf bytes.Buffer
	zw := zip.NewWriter(&buf)
	for _, ext := range []string{".shp", ".shx", ".dbf"} {
		data, err := os.ReadFile(base + ext)
		require.NoError(t, err)
		fw, err := zw.Create(filepath.Base(base + ext))
		require.NoError(t, err)
		_, err = fw.Write(data)
		require.NoError(t, err)
	}
	require.NoError(t, zw.Close())
	return buf.Bytes()
}
