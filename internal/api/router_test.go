package api

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/rotisserie/eris"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tealeg/xlsx/v2"

	"github.com/sells-group/trauma-access/internal/access"
	"github.com/sells-group/trauma-access/internal/crs"
	"github.com/sells-group/trauma-access/internal/monitoring"
	"github.com/sells-group/trauma-access/internal/pipeline"
	"github.com/sells-group/trauma-access/internal/tiger"
)

type stubAnalyzer struct {
	runErr  error
	lastReq pipeline.Request
}

func (s *stubAnalyzer) States() []string { return []string{"AK", "CA"} }

func (s *stubAnalyzer) FacilityMetrics(state string) (access.Metrics, error) {
	if _, ok := tiger.FIPSFor(state); !ok {
		return access.Metrics{}, eris.Wrapf(tiger.ErrUnknownState, "%q", state)
	}
	return access.Metrics{HospitalCount: 3, HelipadCount: 2, Level1Count: 2, Level1BedTotal: 35}, nil
}

func (s *stubAnalyzer) FacilityListing(state string) ([]pipeline.FacilityRecord, error) {
	if _, ok := tiger.FIPSFor(state); !ok {
		return nil, eris.Wrapf(tiger.ErrUnknownState, "%q", state)
	}
	if state != "AK" {
		return []pipeline.FacilityRecord{}, nil
	}
	beds, lon, lat := 100, -149.8, 61.21
	return []pipeline.FacilityRecord{
		{ID: "1", Name: "Anchorage Regional", Address: "2801 DeBarr Rd", City: "Anchorage", State: "AK", Zip: "99508",
			TraumaLevel: "LEVEL I", Helipad: "Y", Beds: &beds, Lon: &lon, Lat: &lat},
	}, nil
}

func (s *stubAnalyzer) Run(_ context.Context, state string, req pipeline.Request) (*pipeline.Report, error) {
	s.lastReq = req
	if s.runErr != nil {
		return nil, s.runErr
	}
	st := strings.ToUpper(state)
	if _, ok := tiger.FIPSFor(st); !ok {
		return nil, eris.Wrapf(tiger.ErrUnknownState, "%q", state)
	}
	d := 12.345
	return &pipeline.Report{
		RunID:       "run-1",
		State:       st,
		CRS:         crs.ForState(st),
		Reachable:   1,
		Unreachable: 1,
		Summary:     &access.Summary{Mean: d, Median: d, Max: d, Count: 1},
		Tracts: []pipeline.TractResult{
			{GEOID: "02020000100", DistanceKM: &d},
			{GEOID: "02016000100", Error: "access: no facility within catchment"},
		},
	}, nil
}

func newTestRouter(t *testing.T, a Analyzer) (http.Handler, *monitoring.Collector) {
	t.Helper()
	metrics, err := monitoring.NewCollector(prometheus.NewRegistry())
	require.NoError(t, err)
	return NewRouter(a, metrics, Options{}), metrics
}

func get(t *testing.T, h http.Handler, target string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(http.MethodGet, target, nil)
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func decode(t *testing.T, rec *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var body map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	return body
}

func TestHealth(t *testing.T) {
	h, _ := newTestRouter(t, &stubAnalyzer{})
	rec := get(t, h, "/health")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "application/json", rec.Header().Get("Content-Type"))
	assert.Equal(t, "ok", decode(t, rec)["status"])
}

func TestListStates(t *testing.T) {
	h, _ := newTestRouter(t, &stubAnalyzer{})
	rec := get(t, h, "/v1/states")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, []any{"AK", "CA"}, decode(t, rec)["states"])
}

func TestFacilityMetrics(t *testing.T) {
	h, _ := newTestRouter(t, &stubAnalyzer{})

	rec := get(t, h, "/v1/states/ak/metrics")
	require.Equal(t, http.StatusOK, rec.Code)
	body := decode(t, rec)
	assert.Equal(t, "AK", body["state"])
	m := body["metrics"].(map[string]any)
	assert.Equal(t, 3.0, m["hospital_count"])
	assert.Equal(t, 35.0, m["level1_bed_total"])

	rec = get(t, h, "/v1/states/ZZ/metrics")
	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Contains(t, decode(t, rec)["error"], "unknown state")
}

func TestFacilityListing(t *testing.T) {
	h, metrics := newTestRouter(t, &stubAnalyzer{})

	rec := get(t, h, "/v1/states/ak/facilities")
	require.Equal(t, http.StatusOK, rec.Code)
	body := decode(t, rec)
	assert.Equal(t, "AK", body["state"])
	assert.Equal(t, 1.0, body["count"])
	recs := body["facilities"].([]any)
	require.Len(t, recs, 1)
	f := recs[0].(map[string]any)
	assert.Equal(t, "Anchorage Regional", f["name"])
	assert.Equal(t, "2801 DeBarr Rd", f["address"])
	assert.Equal(t, "99508", f["zip"])
	assert.Equal(t, -149.8, f["lon"])
	assert.Equal(t, 61.21, f["lat"])

	rec = get(t, h, "/v1/states/HI/facilities")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, []any{}, decode(t, rec)["facilities"])

	rec = get(t, h, "/v1/states/ZZ/facilities")
	assert.Equal(t, http.StatusNotFound, rec.Code)

	assert.Equal(t, 2.0, testutil.ToFloat64(metrics.HTTPRequests.WithLabelValues("/v1/states/{state}/facilities", "200")))
}

func TestAccessibility(t *testing.T) {
	a := &stubAnalyzer{}
	h, metrics := newTestRouter(t, a)

	rec := get(t, h, "/v1/states/AK/accessibility?radius_km=50&xmax_km=40")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, pipeline.Request{RadiusKm: 50, XMaxKm: 40}, a.lastReq)

	body := decode(t, rec)
	assert.Equal(t, "AK", body["state"])
	assert.Equal(t, 1.0, body["unreachable_tracts"])
	tracts := body["tracts"].([]any)
	require.Len(t, tracts, 2)
	assert.Nil(t, tracts[1].(map[string]any)["distance_km"])
	assert.Equal(t, "access: no facility within catchment", tracts[1].(map[string]any)["error"])

	assert.Equal(t, 1.0, testutil.ToFloat64(metrics.HTTPRequests.WithLabelValues("/v1/states/{state}/accessibility", "200")))
}

func TestAccessibility_OmitTracts(t *testing.T) {
	h, _ := newTestRouter(t, &stubAnalyzer{})
	rec := get(t, h, "/v1/states/AK/accessibility?tracts=false")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Nil(t, decode(t, rec)["tracts"])
}

func TestAccessibility_XLSX(t *testing.T) {
	h, _ := newTestRouter(t, &stubAnalyzer{})
	rec := get(t, h, "/v1/states/AK/accessibility.xlsx")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Header().Get("Content-Disposition"), "AK-accessibility.xlsx")

	body, err := io.ReadAll(rec.Body)
	require.NoError(t, err)
	f, err := xlsx.OpenBinary(body)
	require.NoError(t, err)
	assert.Len(t, f.Sheets, 3)
}

func TestAccessibility_Errors(t *testing.T) {
	tests := []struct {
		name   string
		target string
		runErr error
		want   int
	}{
		{"bad radius", "/v1/states/AK/accessibility?radius_km=abc", nil, http.StatusBadRequest},
		{"negative radius", "/v1/states/AK/accessibility?radius_km=-5", nil, http.StatusBadRequest},
		{"unknown state", "/v1/states/ZZ/accessibility", nil, http.StatusNotFound},
		{"contract violation", "/v1/states/AK/accessibility", eris.Wrap(access.ErrCRSMismatch, "srid 4326"), http.StatusUnprocessableEntity},
		{"download failure", "/v1/states/AK/accessibility", eris.Wrap(tiger.ErrDownload, "503"), http.StatusBadGateway},
		{"internal", "/v1/states/AK/accessibility", eris.New("disk full"), http.StatusInternalServerError},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h, _ := newTestRouter(t, &stubAnalyzer{runErr: tt.runErr})
			rec := get(t, h, tt.target)
			assert.Equal(t, tt.want, rec.Code)
			assert.NotEmpty(t, decode(t, rec)["error"])
		})
	}
}

func TestStatusFor(t *testing.T) {
	assert.Equal(t, http.StatusOK, StatusFor(nil))
	assert.Equal(t, http.StatusBadRequest, StatusFor(pipeline.ErrInvalidRequest))
	assert.Equal(t, http.StatusUnprocessableEntity, StatusFor(access.ErrEmptyInput))
	assert.Equal(t, http.StatusUnprocessableEntity, StatusFor(access.ErrInvalidGeometry))
	assert.Equal(t, http.StatusNotFound, StatusFor(eris.Wrap(tiger.ErrUnknownState, "ZZ")))
}

func TestMetricsEndpoint(t *testing.T) {
	h, _ := newTestRouter(t, &stubAnalyzer{})
	_ = get(t, h, "/health")

	rec := get(t, h, "/metrics")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "trauma_http_requests_total")
}

func TestCORS(t *testing.T) {
	h, _ := newTestRouter(t, &stubAnalyzer{})
	req := httptest.NewRequest(http.MethodGet, "/v1/states", nil)
	req.Header.Set("Origin", "https://dashboard.example.org")
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	assert.Equal(t, "*", rec.Header().Get("Access-Control-Allow-Origin"))
}
