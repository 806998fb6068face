// Package facility loads trauma hospital records from a GeoJSON
// FeatureCollection and indexes them by state.
package facility

import (
	"encoding/json"
	"fmt"
	"io"
	"math"
	"strconv"
	"strings"

	"github.com/rotisserie/eris"
	"github.com/twpayne/go-geom"
	"github.com/twpayne/go-geom/encoding/geojson"
	"go.uber.org/zap"

	"github.com/sells-group/trauma-access/internal/crs"
	"github.com/sells-group/trauma-access/internal/model"
)

type rawFeature struct {
	ID         any             `json:"id"`
	Geometry   json.RawMessage `json:"geometry"`
	Properties map[string]any  `json:"properties"`
}

type rawCollection struct {
	Type     string       `json:"type"`
	Features []rawFeature `json:"features"`
}

// Decode reads a GeoJSON FeatureCollection of hospital points. Coordinates
// are WGS84 per RFC 7946; features without a point geometry are skipped.
func Decode(r io.Reader) ([]model.Facility, error) {
	var fc rawCollection
	if err := json.NewDecoder(r).Decode(&fc); err != nil {
		return nil, eris.Wrap(err, "facility: decode geojson")
	}
	if fc.Type != "FeatureCollection" {
		return nil, eris.Errorf("facility: expected FeatureCollection, got %q", fc.Type)
	}

	out := make([]model.Facility, 0, len(fc.Features))
	var skipped int
	for i, rf := range fc.Features {
		pt, err := decodePoint(rf.Geometry)
		if err != nil {
			zap.L().Debug("facility: skipping feature",
				zap.Int("index", i),
				zap.Error(err),
			)
			skipped++
			continue
		}

		props := rf.Properties
		f := model.Facility{
			ID:          firstNonEmpty(prop(props, "ID"), prop(props, "OBJECTID"), scalar(rf.ID)),
			Name:        prop(props, "NAME"),
			Address:     prop(props, "ADDRESS"),
			City:        prop(props, "CITY"),
			State:       strings.ToUpper(prop(props, "STATE")),
			Zip:         prop(props, "ZIP"),
			TraumaLevel: prop(props, "TRAUMA"),
			Helipad:     prop(props, "HELIPAD"),
			Beds:        intProp(props, "BEDS"),
			Location:    pt,
		}
		out = append(out, f)
	}

	if skipped > 0 {
		zap.L().Warn("facility: skipped features without point geometry",
			zap.Int("skipped", skipped),
			zap.Int("loaded", len(out)),
		)
	}
	return out, nil
}

func decodePoint(raw json.RawMessage) (*geom.Point, error) {
	if len(raw) == 0 || string(raw) == "null" {
		return nil, eris.New("null geometry")
	}
	var g geom.T
	if err := geojson.Unmarshal(raw, &g); err != nil {
		return nil, eris.Wrap(err, "unmarshal geometry")
	}
	pt, ok := g.(*geom.Point)
	if !ok {
		return nil, eris.Errorf("geometry is %T, not a point", g)
	}
	if pt.Empty() {
		return nil, eris.New("empty point")
	}
	return pt.SetSRID(crs.WGS84), nil
}

// prop returns a trimmed string form of a property. Keys are matched
// case-insensitively since HIFLD exports vary.
func prop(props map[string]any, key string) string {
	if v, ok := props[key]; ok {
		return scalar(v)
	}
	for k, v := range props {
		if strings.EqualFold(k, key) {
			return scalar(v)
		}
	}
	return ""
}

func scalar(v any) string {
	switch t := v.(type) {
	case nil:
		return ""
	case string:
		return strings.TrimSpace(t)
	case float64:
		if t == math.Trunc(t) && math.Abs(t) < 1e15 {
			return strconv.FormatInt(int64(t), 10)
		}
		return strconv.FormatFloat(t, 'f', -1, 64)
	case bool:
		return strconv.FormatBool(t)
	default:
		return strings.TrimSpace(fmt.Sprint(t))
	}
}

// intProp parses a numeric property; "NOT AVAILABLE", empty and
// non-numeric values are reported as missing.
func intProp(props map[string]any, key string) *int {
	s := prop(props, key)
	if s == "" {
		return nil
	}
	f, err := strconv.ParseFloat(s, 64)
	if err != nil || math.IsNaN(f) || math.IsInf(f, 0) {
		return nil
	}
	n := int(f)
	return &n
}

func firstNonEmpty(vals ...string) string {
	for _, v := range vals {
		if v != "" {
			return v
		}
	}
	return ""
}
