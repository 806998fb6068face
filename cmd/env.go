package main

import (
	"context"
	"strings"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/trauma-access/internal/access"
	"github.com/sells-group/trauma-access/internal/config"
	"github.com/sells-group/trauma-access/internal/facility"
	"github.com/sells-group/trauma-access/internal/monitoring"
	"github.com/sells-group/trauma-access/internal/pipeline"
	"github.com/sells-group/trauma-access/internal/resilience"
	"github.com/sells-group/trauma-access/internal/store"
	"github.com/sells-group/trauma-access/internal/tiger"
)

// appEnv holds the initialized cache, services and pipeline shared by the
// analyze, states, tracts and serve commands.
type appEnv struct {
	Cache    store.TractCache // nil when caching is disabled
	Tracts   *tiger.Service
	Catalog  *facility.Catalog // nil for tract-only commands
	Pipeline *pipeline.Pipeline
	Metrics  *monitoring.Collector
}

// Close releases resources held by the environment.
func (e *appEnv) Close() {
	if e.Cache != nil {
		_ = e.Cache.Close()
	}
}

// initTracts opens the tract cache and builds the tract service.
func initTracts(ctx context.Context, c *config.Config) (*appEnv, error) {
	metrics, err := monitoring.NewCollector(nil)
	if err != nil {
		return nil, err
	}

	var cache store.TractCache
	if c.Cache.Driver != "none" {
		cache, err = store.Open(ctx, c.Cache.Driver, c.Cache.DSN)
		if err != nil {
			return nil, eris.Wrap(err, "open tract cache")
		}
	} else {
		zap.L().Warn("tract cache disabled, every analysis downloads its tracts")
	}

	return &appEnv{
		Cache:   cache,
		Tracts:  tiger.NewService(cache, metrics, tigerOptions(c)),
		Metrics: metrics,
	}, nil
}

// initApp builds the full environment including the facility catalog and
// pipeline. Callers should defer env.Close().
func initApp(ctx context.Context, c *config.Config, mode string) (*appEnv, error) {
	if err := c.Validate(mode); err != nil {
		return nil, err
	}

	env, err := initTracts(ctx, c)
	if err != nil {
		return nil, err
	}

	src, err := facilitySource(ctx, c)
	if err != nil {
		env.Close()
		return nil, err
	}
	catalog, err := facility.Load(ctx, src, c.Facilities.Source)
	if err != nil {
		env.Close()
		return nil, eris.Wrap(err, "load facilities")
	}

	p, err := pipeline.New(catalog, env.Tracts, env.Metrics, pipeline.Options{
		CatchmentRadiusMeters: c.Analysis.CatchmentRadiusMeters,
		TargetEPSG:            c.Analysis.TargetEPSG,
		Metrics: access.MetricsOptions{
			Level1Match:            access.Level1Match(c.Facilities.Level1Match),
			HelipadCaseInsensitive: c.Facilities.HelipadCaseInsensitive,
		},
		Concurrency: c.Tracts.Concurrency,
	})
	if err != nil {
		env.Close()
		return nil, err
	}

	env.Catalog = catalog
	env.Pipeline = p
	return env, nil
}

// facilitySource builds a Source, with an S3 client only for s3:// locations.
func facilitySource(ctx context.Context, c *config.Config) (*facility.Source, error) {
	if !strings.HasPrefix(c.Facilities.Source, "s3://") {
		return facility.NewSource(nil), nil
	}
	s3c, err := facility.NewS3Client(ctx, facility.S3Config{
		Region:    c.S3.Region,
		Endpoint:  c.S3.Endpoint,
		PathStyle: c.S3.PathStyle,
	})
	if err != nil {
		return nil, err
	}
	return facility.NewSource(s3c), nil
}

func tigerOptions(c *config.Config) tiger.Options {
	retry := resilience.FromSettings(c.Tracts.RetryAttempts, c.Tracts.RetryBackoffMs)
	retry.OnRetry = resilience.RetryLogger("tiger.service", "download")
	return tiger.Options{
		Year:              c.Tracts.Year,
		Kind:              tiger.KindFor(c.Tracts.Cartographic),
		BaseURL:           c.Tracts.BaseURL,
		TempDir:           c.Tracts.TempDir,
		CacheTTL:          c.Tracts.CacheTTL(),
		RequestsPerSecond: c.Tracts.RequestsPerSecond,
		Concurrency:       c.Tracts.Concurrency,
		Retry:             retry,
	}
}

func pruneInterval(c *config.Config) time.Duration {
	return time.Duration(c.Tracts.PruneIntervalMins) * time.Minute
}

// parseStates splits comma-separated state codes and upper-cases them.
func parseStates(vals []string) []string {
	var out []string
	for _, v := range vals {
		for _, s := range strings.Split(v, ",") {
			if s = strings.ToUpper(strings.TrimSpace(s)); s != "" {
				out = append(out, s)
			}
		}
	}
	return out
}
