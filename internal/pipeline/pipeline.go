// Package pipeline runs one accessibility analysis for a state: it loads
// facilities and tracts, reprojects both into a metre-based CRS and feeds
// them through the access package.
package pipeline

import (
	"context"
	"math"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rotisserie/eris"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/sells-group/trauma-access/internal/access"
	"github.com/sells-group/trauma-access/internal/crs"
	"github.com/sells-group/trauma-access/internal/model"
	"github.com/sells-group/trauma-access/internal/monitoring"
	"github.com/sells-group/trauma-access/internal/tiger"
)

// ErrInvalidRequest is returned for malformed caller input such as a
// non-positive radius.
var ErrInvalidRequest = eris.New("pipeline: invalid request")

// Facilities is the read side of a facility catalog.
type Facilities interface {
	States() []string
	ForState(state string) []model.Facility
}

// Tracts loads the census tracts of a state.
type Tracts interface {
	Tracts(ctx context.Context, state string) ([]model.Region, error)
}

// Options configures a Pipeline.
type Options struct {
	CatchmentRadiusMeters float64
	// TargetEPSG forces one projection; 0 picks per state.
	TargetEPSG  int
	Metrics     access.MetricsOptions
	Concurrency int
}

// Request overrides per-analysis parameters. Zero values use the defaults.
type Request struct {
	RadiusKm   float64
	XMaxKm     float64
	BinWidthKm float64
}

// Validate rejects negative or non-finite overrides.
func (r Request) Validate() error {
	for name, v := range map[string]float64{"radius_km": r.RadiusKm, "xmax_km": r.XMaxKm, "bin_width_km": r.BinWidthKm} {
		if v < 0 || math.IsNaN(v) || math.IsInf(v, 0) {
			return eris.Wrapf(ErrInvalidRequest, "%s must be a non-negative number, got %v", name, v)
		}
	}
	return nil
}

// Pipeline orchestrates facility loading, tract loading, reprojection and
// the accessibility computation.
type Pipeline struct {
	facilities Facilities
	tracts     Tracts
	metrics    *monitoring.Collector
	opts       Options
}

// New creates a Pipeline. A non-zero TargetEPSG must name a registered
// metre-based CRS.
func New(facilities Facilities, tracts Tracts, metrics *monitoring.Collector, opts Options) (*Pipeline, error) {
	if opts.CatchmentRadiusMeters <= 0 {
		opts.CatchmentRadiusMeters = access.DefaultCatchmentRadiusMeters
	}
	if opts.Concurrency <= 0 {
		opts.Concurrency = 3
	}
	if opts.TargetEPSG != 0 {
		c, ok := crs.Lookup(opts.TargetEPSG)
		if !ok || !c.Linear() {
			return nil, eris.Errorf("pipeline: target epsg %d is not a registered projected crs", opts.TargetEPSG)
		}
	}
	return &Pipeline{facilities: facilities, tracts: tracts, metrics: metrics, opts: opts}, nil
}

// States returns the states with at least one facility.
func (p *Pipeline) States() []string { return p.facilities.States() }

// FacilityMetrics aggregates the facilities of one state.
func (p *Pipeline) FacilityMetrics(state string) (access.Metrics, error) {
	st, err := normalizeState(state)
	if err != nil {
		return access.Metrics{}, err
	}
	return access.Aggregate(p.facilities.ForState(st), p.opts.Metrics), nil
}

// FacilityListing returns the facilities of one state in catalog order.
func (p *Pipeline) FacilityListing(state string) ([]FacilityRecord, error) {
	st, err := normalizeState(state)
	if err != nil {
		return nil, err
	}
	return facilityRecords(p.facilities.ForState(st)), nil
}

// ProjectionFor returns the CRS an analysis of state runs in.
func (p *Pipeline) ProjectionFor(state string) crs.CRS {
	if p.opts.TargetEPSG != 0 {
		return crs.MustLookup(p.opts.TargetEPSG)
	}
	return crs.ForState(state)
}

// Run analyzes one state.
func (p *Pipeline) Run(ctx context.Context, state string, req Request) (*Report, error) {
	start := time.Now()
	st, err := normalizeState(state)
	if err != nil {
		return nil, err
	}
	report, err := p.run(ctx, st, req)
	unreachable := 0
	if report != nil {
		unreachable = report.Unreachable
	}
	p.metrics.ObserveAnalysis(st, time.Since(start), unreachable, err)
	return report, err
}

func (p *Pipeline) run(ctx context.Context, state string, req Request) (*Report, error) {
	if err := req.Validate(); err != nil {
		return nil, err
	}
	radius := p.opts.CatchmentRadiusMeters
	if req.RadiusKm > 0 {
		radius = req.RadiusKm * 1000
	}

	runID := uuid.New().String()
	log := zap.L().With(
		zap.String("component", "pipeline"),
		zap.String("run_id", runID),
		zap.String("state", state),
	)
	log.Info("pipeline: starting analysis", zap.Float64("radius_m", radius))
	start := time.Now()

	facilities := p.facilities.ForState(state)
	regions, err := p.tracts.Tracts(ctx, state)
	if err != nil {
		return nil, eris.Wrapf(err, "pipeline: load tracts for %s", state)
	}
	if err := ctx.Err(); err != nil {
		return nil, eris.Wrap(err, "pipeline: cancelled")
	}

	proj := p.ProjectionFor(state)
	projFacilities, skipped, err := projectFacilities(facilities, proj.SRID)
	if err != nil {
		return nil, err
	}
	if skipped > 0 {
		log.Warn("facilities without a location skipped", zap.Int("count", skipped))
	}
	projRegions, err := projectRegions(regions, proj.SRID)
	if err != nil {
		return nil, err
	}

	res, err := access.ComputeMinDistances(projFacilities, projRegions, radius)
	if err != nil {
		return nil, eris.Wrapf(err, "pipeline: analyze %s", state)
	}

	report := &Report{
		RunID:             runID,
		State:             state,
		GeneratedAt:       time.Now().UTC(),
		CRS:               proj,
		CatchmentRadiusKm: radius / 1000,
		Facilities:        access.Aggregate(facilities, p.opts.Metrics),
		FacilitiesInRange: res.Candidates,
		Tracts:            tractResults(regions, res),
		Reachable:         res.Reachable(),
		Unreachable:       len(res.Failures()),
	}

	if dists := res.Distances(); len(dists) > 0 {
		sum, err := access.Summarize(dists)
		if err != nil {
			return nil, eris.Wrapf(err, "pipeline: summarize %s", state)
		}
		hist, err := access.BuildHistogram(dists, access.HistogramOptions{XMaxKm: req.XMaxKm, BinWidthKm: req.BinWidthKm})
		if err != nil {
			return nil, eris.Wrapf(err, "pipeline: histogram %s", state)
		}
		report.Summary = &sum
		report.Histogram = hist
	}
	report.DurationMs = time.Since(start).Milliseconds()

	log.Info("pipeline: analysis complete",
		zap.Int("tracts", len(regions)),
		zap.Int("unreachable", report.Unreachable),
		zap.Int("facilities_in_range", report.FacilitiesInRange),
		zap.Int64("duration_ms", report.DurationMs),
	)
	return report, nil
}

// RunAll analyzes several states concurrently. Reports are returned in the
// order of states; the first failure cancels the rest.
func (p *Pipeline) RunAll(ctx context.Context, states []string, req Request) ([]*Report, error) {
	reports := make([]*Report, len(states))
	g, gCtx := errgroup.WithContext(ctx)
	g.SetLimit(p.opts.Concurrency)
	for i, st := range states {
		i, st := i, st
		g.Go(func() error {
			r, err := p.Run(gCtx, st, req)
			if err != nil {
				return err
			}
			reports[i] = r
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return reports, nil
}

func normalizeState(state string) (string, error) {
	st := strings.ToUpper(strings.TrimSpace(state))
	if _, ok := tiger.FIPSFor(st); !ok {
		return "", eris.Wrapf(tiger.ErrUnknownState, "%q", state)
	}
	return st, nil
}

func projectFacilities(facilities []model.Facility, srid int) ([]model.Facility, int, error) {
	out := make([]model.Facility, 0, len(facilities))
	skipped := 0
	for _, f := range facilities {
		if f.Location == nil {
			skipped++
			continue
		}
		pt, err := crs.ReprojectPoint(f.Location, srid)
		if err != nil {
			return nil, 0, eris.Wrapf(err, "pipeline: reproject facility %s", f.ID)
		}
		out = append(out, f.WithLocation(pt))
	}
	return out, skipped, nil
}

func projectRegions(regions []model.Region, srid int) ([]model.Region, error) {
	out := make([]model.Region, len(regions))
	for i, r := range regions {
		g, err := crs.Reproject(r.Geometry, srid)
		if err != nil {
			return nil, eris.Wrapf(err, "pipeline: reproject tract %s", r.GEOID)
		}
		out[i] = r.WithGeometry(g)
	}
	return out, nil
}
