// Package store persists downloaded census tract geometries so repeat
// analyses of a state skip the Census Bureau download.
package store

import (
	"context"
	"time"

	"github.com/rotisserie/eris"
)

// Supported cache drivers.
const (
	DriverSQLite   = "sqlite"
	DriverPostgres = "postgres"
)

// TractRecord is one cached tract. Geometry holds EWKB.
type TractRecord struct {
	GEOID      string
	Name       string
	StateFIPS  string
	CountyFIPS string
	TractCE    string
	Geometry   []byte
}

// Entry summarizes one cache key.
type Entry struct {
	Key       string    `json:"key"`
	Tracts    int       `json:"tracts"`
	CachedAt  time.Time `json:"cached_at"`
	ExpiresAt time.Time `json:"expires_at"`
}

// Expired reports whether the entry has passed its TTL at now.
func (e Entry) Expired(now time.Time) bool { return !now.Before(e.ExpiresAt) }

// TractCache stores tract sets under a key with a TTL.
type TractCache interface {
	// GetTracts returns the unexpired tracts for key in insertion order,
	// or nil, nil on a miss.
	GetTracts(ctx context.Context, key string) ([]TractRecord, error)
	// SetTracts replaces everything stored under key.
	SetTracts(ctx context.Context, key string, tracts []TractRecord, ttl time.Duration) error
	// DeleteTracts drops key and returns the number of tracts removed.
	DeleteTracts(ctx context.Context, key string) (int, error)
	// DeleteExpired drops every expired tract.
	DeleteExpired(ctx context.Context) (int, error)
	// ListEntries summarizes the cached keys, expired ones included.
	ListEntries(ctx context.Context) ([]Entry, error)

	Migrate(ctx context.Context) error
	Close() error
}

// Open connects to the configured cache backend and runs its migration.
func Open(ctx context.Context, driver, dsn string) (TractCache, error) {
	var (
		c   TractCache
		err error
	)
	switch driver {
	case DriverSQLite, "":
		c, err = NewSQLite(dsn)
	case DriverPostgres:
		c, err = NewPostgres(ctx, dsn, nil)
	default:
		return nil, eris.Errorf("store: unknown cache driver %q", driver)
	}
	if err != nil {
		return nil, err
	}
	if err := c.Migrate(ctx); err != nil {
		_ = c.Close()
		return nil, err
	}
	return c, nil
}
