// Package api serves accessibility reports over HTTP.
package api

import (
	"context"
	"encoding/json"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/trauma-access/internal/access"
	"github.com/sells-group/trauma-access/internal/export"
	"github.com/sells-group/trauma-access/internal/monitoring"
	"github.com/sells-group/trauma-access/internal/pipeline"
	"github.com/sells-group/trauma-access/internal/tiger"
)

// Analyzer is the pipeline surface the API needs.
type Analyzer interface {
	States() []string
	FacilityMetrics(state string) (access.Metrics, error)
	FacilityListing(state string) ([]pipeline.FacilityRecord, error)
	Run(ctx context.Context, state string, req pipeline.Request) (*pipeline.Report, error)
}

// Options configures the router.
type Options struct {
	CORSOrigins []string
	// Timeout bounds one request; default 5 minutes for cold tract downloads.
	Timeout time.Duration
}

type handler struct {
	analyzer Analyzer
	metrics  *monitoring.Collector
}

// NewRouter builds the HTTP API.
func NewRouter(a Analyzer, metrics *monitoring.Collector, opts Options) http.Handler {
	if len(opts.CORSOrigins) == 0 {
		opts.CORSOrigins = []string{"*"}
	}
	if opts.Timeout <= 0 {
		opts.Timeout = 5 * time.Minute
	}
	h := &handler{analyzer: a, metrics: metrics}

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: opts.CORSOrigins,
		AllowedMethods: []string{http.MethodGet, http.MethodOptions},
		AllowedHeaders: []string{"Accept", "Content-Type"},
		MaxAge:         300,
	}))
	r.Use(h.instrument)
	r.Use(middleware.Timeout(opts.Timeout))

	r.Get("/health", h.health)
	r.Method(http.MethodGet, "/metrics", metrics.Handler())
	r.Route("/v1/states", func(r chi.Router) {
		r.Get("/", h.listStates)
		r.Get("/{state}/metrics", h.facilityMetrics)
		r.Get("/{state}/facilities", h.facilityListing)
		r.Get("/{state}/accessibility", h.accessibility)
		r.Get("/{state}/accessibility.xlsx", h.accessibilityXLSX)
	})
	return r
}

// instrument logs and counts every request by its route pattern.
func (h *handler) instrument(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)

		route := r.URL.Path
		if rc := chi.RouteContext(r.Context()); rc != nil && rc.RoutePattern() != "" {
			route = rc.RoutePattern()
		}
		status := ww.Status()
		if status == 0 {
			status = http.StatusOK
		}
		h.metrics.Request(route, strconv.Itoa(status))
		zap.L().Debug("api: request",
			zap.String("component", "api"),
			zap.String("method", r.Method),
			zap.String("route", route),
			zap.Int("status", status),
			zap.Duration("duration", time.Since(start)),
			zap.String("request_id", middleware.GetReqID(r.Context())),
		)
	})
}

func (h *handler) health(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (h *handler) listStates(w http.ResponseWriter, _ *http.Request) {
	states := h.analyzer.States()
	if states == nil {
		states = []string{}
	}
	writeJSON(w, http.StatusOK, map[string]any{"states": states})
}

func (h *handler) facilityMetrics(w http.ResponseWriter, r *http.Request) {
	state := strings.ToUpper(chi.URLParam(r, "state"))
	m, err := h.analyzer.FacilityMetrics(state)
	if err != nil {
		writeErr(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"state": state, "metrics": m})
}

func (h *handler) facilityListing(w http.ResponseWriter, r *http.Request) {
	state := strings.ToUpper(chi.URLParam(r, "state"))
	recs, err := h.analyzer.FacilityListing(state)
	if err != nil {
		writeErr(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"state": state, "count": len(recs), "facilities": recs})
}

func (h *handler) accessibility(w http.ResponseWriter, r *http.Request) {
	report, ok := h.runReport(w, r)
	if !ok {
		return
	}
	if r.URL.Query().Get("tracts") == "false" {
		report.Tracts = nil
	}
	writeJSON(w, http.StatusOK, report)
}

func (h *handler) accessibilityXLSX(w http.ResponseWriter, r *http.Request) {
	report, ok := h.runReport(w, r)
	if !ok {
		return
	}
	w.Header().Set("Content-Type", "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet")
	w.Header().Set("Content-Disposition", `attachment; filename="`+report.State+`-accessibility.xlsx"`)
	if err := export.WriteXLSX(w, []*pipeline.Report{report}); err != nil {
		zap.L().Error("api: write xlsx", zap.String("state", report.State), zap.Error(err))
	}
}

func (h *handler) runReport(w http.ResponseWriter, r *http.Request) (*pipeline.Report, bool) {
	req, err := parseRequest(r)
	if err != nil {
		writeErr(w, err)
		return nil, false
	}
	report, err := h.analyzer.Run(r.Context(), chi.URLParam(r, "state"), req)
	if err != nil {
		writeErr(w, err)
		return nil, false
	}
	return report, true
}

func parseRequest(r *http.Request) (pipeline.Request, error) {
	q := r.URL.Query()
	var req pipeline.Request
	for _, p := range []struct {
		name string
		dst  *float64
	}{
		{"radius_km", &req.RadiusKm},
		{"xmax_km", &req.XMaxKm},
		{"bin_width_km", &req.BinWidthKm},
	} {
		raw := q.Get(p.name)
		if raw == "" {
			continue
		}
		v, err := strconv.ParseFloat(raw, 64)
		if err != nil {
			return req, eris.Wrapf(pipeline.ErrInvalidRequest, "%s: %q is not a number", p.name, raw)
		}
		*p.dst = v
	}
	return req, req.Validate()
}

// StatusFor maps a pipeline error to an HTTP status.
func StatusFor(err error) int {
	switch {
	case err == nil:
		return http.StatusOK
	case eris.Is(err, pipeline.ErrInvalidRequest):
		return http.StatusBadRequest
	case eris.Is(err, tiger.ErrUnknownState):
		return http.StatusNotFound
	case access.IsStructural(err):
		return http.StatusUnprocessableEntity
	case eris.Is(err, tiger.ErrDownload):
		return http.StatusBadGateway
	case eris.Is(err, context.DeadlineExceeded):
		return http.StatusGatewayTimeout
	default:
		return http.StatusInternalServerError
	}
}

func writeErr(w http.ResponseWriter, err error) {
	status := StatusFor(err)
	if status >= http.StatusInternalServerError {
		zap.L().Error("api: request failed", zap.Int("status", status), zap.Error(err))
	}
	writeJSON(w, status, map[string]string{"error": err.Error()})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
