package tiger

import (
	"context"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
	"golang.org/x/time/rate"

	"github.com/sells-group/trauma-access/internal/model"
	"github.com/sells-group/trauma-access/internal/monitoring"
	"github.com/sells-group/trauma-access/internal/resilience"
	"github.com/sells-group/trauma-access/internal/store"
)

var (
	// ErrUnknownState is returned for a state code with no FIPS mapping.
	ErrUnknownState = eris.New("tiger: unknown state")
	// ErrDownload is returned when the Census Bureau file cannot be fetched.
	ErrDownload = eris.New("tiger: tract download failed")
)

// Options configures tract loading.
type Options struct {
	Year              int           // boundary vintage (default 2021)
	Kind              Kind          // cb or tl (default cb)
	BaseURL           string        // Census mirror root
	TempDir           string        // download directory
	CacheTTL          time.Duration // default 30 days
	RequestsPerSecond float64       // download pacing (default 2)
	Concurrency       int           // parallel states in Prefetch (default 3)
	Retry             resilience.RetryConfig
	HTTPClient        *http.Client
}

func (o Options) withDefaults() Options {
	if o.Year == 0 {
		o.Year = DefaultYear
	}
	if o.Kind == "" {
		o.Kind = KindCartographic
	}
	if o.BaseURL == "" {
		o.BaseURL = DefaultBaseURL
	}
	if o.TempDir == "" {
		o.TempDir = filepath.Join(os.TempDir(), "trauma-access", "tiger")
	}
	if o.CacheTTL <= 0 {
		o.CacheTTL = 30 * 24 * time.Hour
	}
	if o.RequestsPerSecond <= 0 {
		o.RequestsPerSecond = 2
	}
	if o.Concurrency <= 0 {
		o.Concurrency = 3
	}
	if o.HTTPClient == nil {
		o.HTTPClient = &http.Client{Timeout: 10 * time.Minute}
	}
	if o.Retry.OnRetry == nil {
		o.Retry.OnRetry = resilience.RetryLogger("tiger.service", "download")
	}
	return o
}

// Service loads tract regions per state, reading through a TractCache.
// A nil cache disables caching.
type Service struct {
	cache   store.TractCache
	metrics *monitoring.Collector
	limiter *rate.Limiter
	breaker *resilience.CircuitBreaker
	opts    Options
}

// NewService creates a tract service.
func NewService(cache store.TractCache, metrics *monitoring.Collector, opts Options) *Service {
	opts = opts.withDefaults()
	return &Service{
		cache:   cache,
		metrics: metrics,
		limiter: rate.NewLimiter(rate.Limit(opts.RequestsPerSecond), 1),
		breaker: resilience.NewCircuitBreaker(resilience.CircuitBreakerConfig{
			FailureThreshold: 5,
			ResetTimeout:     time.Minute,
			ShouldTrip:       resilience.IsTransient,
		}),
		opts: opts,
	}
}

// Options returns the effective options.
func (s *Service) Options() Options { return s.opts }

// Key returns the cache key for a state under the service's year and kind.
func (s *Service) Key(state string) (string, error) {
	fips, ok := FIPSFor(state)
	if !ok {
		return "", eris.Wrapf(ErrUnknownState, "%q", state)
	}
	return CacheKey(fips, s.opts.Year, s.opts.Kind), nil
}

// Tracts returns the census tracts of a state in NAD83.
func (s *Service) Tracts(ctx context.Context, state string) ([]model.Region, error) {
	key, err := s.Key(state)
	if err != nil {
		return nil, err
	}
	log := zap.L().With(
		zap.String("component", "tiger.service"),
		zap.String("state", strings.ToUpper(state)),
		zap.String("key", key),
	)

	if regions, ok := s.fromCache(ctx, key, log); ok {
		return regions, nil
	}

	fips, _ := FIPSFor(state)
	regions, err := s.fetch(ctx, fips, log)
	if err != nil {
		return nil, err
	}

	s.toCache(ctx, key, regions, log)
	return regions, nil
}

func (s *Service) fromCache(ctx context.Context, key string, log *zap.Logger) ([]model.Region, bool) {
	if s.cache == nil {
		return nil, false
	}
	recs, err := s.cache.GetTracts(ctx, key)
	if err != nil {
		s.metrics.CacheError()
		log.Warn("tract cache read failed, downloading", zap.Error(err))
		return nil, false
	}
	if len(recs) == 0 {
		s.metrics.CacheMiss()
		return nil, false
	}

	regions := make([]model.Region, 0, len(recs))
	for _, rec := range recs {
		r, err := DecodeRegion(rec)
		if err != nil {
			s.metrics.CacheError()
			log.Warn("corrupt tract cache entry, downloading", zap.Error(err))
			return nil, false
		}
		regions = append(regions, r)
	}
	s.metrics.CacheHit()
	log.Debug("tract cache hit", zap.Int("tracts", len(regions)))
	return regions, true
}

func (s *Service) toCache(ctx context.Context, key string, regions []model.Region, log *zap.Logger) {
	if s.cache == nil {
		return
	}
	recs := make([]store.TractRecord, 0, len(regions))
	for _, r := range regions {
		rec, err := EncodeRegion(r)
		if err != nil {
			log.Warn("skipping tract cache write", zap.Error(err))
			return
		}
		recs = append(recs, rec)
	}
	if err := s.cache.SetTracts(ctx, key, recs, s.opts.CacheTTL); err != nil {
		log.Warn("tract cache write failed", zap.Error(err))
	}
}

func (s *Service) fetch(ctx context.Context, fips string, log *zap.Logger) ([]model.Region, error) {
	url := TractURL(s.opts.BaseURL, s.opts.Year, fips, s.opts.Kind)
	destDir := filepath.Join(s.opts.TempDir, string(s.opts.Kind), fips)

	start := time.Now()
	shpPath, err := resilience.DoVal(ctx, s.opts.Retry, func(ctx context.Context) (string, error) {
		if err := s.limiter.Wait(ctx); err != nil {
			return "", err
		}
		return resilience.ExecuteVal(ctx, s.breaker, func(ctx context.Context) (string, error) {
			return Download(ctx, s.opts.HTTPClient, url, destDir)
		})
	})
	s.metrics.Download(err)
	if err != nil {
		if ctx.Err() != nil {
			return nil, eris.Wrap(ctx.Err(), "tiger: download cancelled")
		}
		return nil, eris.Wrapf(ErrDownload, "%s: %v", url, err)
	}

	regions, err := ParseTracts(shpPath)
	if err != nil {
		return nil, err
	}
	if len(regions) == 0 {
		return nil, eris.Errorf("tiger: %s contains no tract polygons", url)
	}

	log.Info("tracts downloaded",
		zap.Int("tracts", len(regions)),
		zap.Duration("duration", time.Since(start)),
	)
	return regions, nil
}

// Prefetch warms the cache for several states concurrently.
func (s *Service) Prefetch(ctx context.Context, states []string) error {
	if len(states) == 0 {
		states = AllStateAbbrs()
	}
	for _, st := range states {
		if _, ok := FIPSFor(st); !ok {
			return eris.Wrapf(ErrUnknownState, "%q", st)
		}
	}

	g, gCtx := errgroup.WithContext(ctx)
	g.SetLimit(s.opts.Concurrency)
	for _, st := range states {
		st := st
		g.Go(func() error {
			_, err := s.Tracts(gCtx, st)
			return eris.Wrapf(err, "tiger: prefetch %s", st)
		})
	}
	return g.Wait()
}

// Invalidate drops the cached tracts of a state.
func (s *Service) Invalidate(ctx context.Context, state string) (int, error) {
	key, err := s.Key(state)
	if err != nil {
		return 0, err
	}
	if s.cache == nil {
		return 0, nil
	}
	return s.cache.DeleteTracts(ctx, key)
}

// Prune drops expired cache entries.
func (s *Service) Prune(ctx context.Context) (int, error) {
	if s.cache == nil {
		return 0, nil
	}
	return s.cache.DeleteExpired(ctx)
}

// Entries lists the cache contents.
func (s *Service) Entries(ctx context.Context) ([]store.Entry, error) {
	if s.cache == nil {
		return nil, nil
	}
	return s.cache.ListEntries(ctx)
}
