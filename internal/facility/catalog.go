package facility

import (
	"context"
	"sort"
	"strings"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/trauma-access/internal/model"
)

// Catalog is an immutable, state-indexed set of facilities.
type Catalog struct {
	all     []model.Facility
	byState map[string][]model.Facility
}

// NewCatalog indexes facilities by their upper-cased state code.
func NewCatalog(facilities []model.Facility) *Catalog {
	c := &Catalog{
		all:     append([]model.Facility(nil), facilities...),
		byState: make(map[string][]model.Facility),
	}
	for _, f := range c.all {
		st := strings.ToUpper(strings.TrimSpace(f.State))
		if st == "" {
			continue
		}
		c.byState[st] = append(c.byState[st], f)
	}
	return c
}

// Load opens location through src, decodes it and builds a Catalog.
func Load(ctx context.Context, src *Source, location string) (*Catalog, error) {
	rc, err := src.Open(ctx, location)
	if err != nil {
		return nil, err
	}
	defer rc.Close() //nolint:errcheck

	facilities, err := Decode(rc)
	if err != nil {
		return nil, eris.Wrapf(err, "facility: load %s", location)
	}

	c := NewCatalog(facilities)
	zap.L().Info("facility catalog loaded",
		zap.String("component", "facility.catalog"),
		zap.String("location", location),
		zap.Int("facilities", c.Len()),
		zap.Int("states", len(c.byState)),
	)
	return c, nil
}

// Len returns the total number of facilities.
func (c *Catalog) Len() int { return len(c.all) }

// States returns the sorted state codes present in the catalog.
func (c *Catalog) States() []string {
	out := make([]string, 0, len(c.byState))
	for st := range c.byState {
		out = append(out, st)
	}
	sort.Strings(out)
	return out
}

// Has reports whether any facility carries the state code.
func (c *Catalog) Has(state string) bool {
	_, ok := c.byState[strings.ToUpper(state)]
	return ok
}

// ForState returns a copy of the facilities in a state.
func (c *Catalog) ForState(state string) []model.Facility {
	return append([]model.Facility(nil), c.byState[strings.ToUpper(state)]...)
}
