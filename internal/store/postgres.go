package store

import (
	"context"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rotisserie/eris"

	"github.com/sells-group/trauma-access/internal/db"
)

// PostgresStore implements TractCache using pgxpool.
type PostgresStore struct {
	pool db.Pool
	now  func() time.Time
}

// PoolConfig holds optional connection pool tuning parameters.
type PoolConfig struct {
	MaxConns int32 `yaml:"max_conns" mapstructure:"max_conns"`
	MinConns int32 `yaml:"min_conns" mapstructure:"min_conns"`
}

var tractColumns = []string{
	"cache_key", "seq", "geoid", "name", "statefp", "countyfp", "tractce", "geom", "cached_at", "expires_at",
}

// NewPostgres creates a PostgresStore with a connection pool.
func NewPostgres(ctx context.Context, connString string, poolCfg *PoolConfig) (*PostgresStore, error) {
	pgxCfg, err := pgxpool.ParseConfig(connString)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: parse config")
	}

	maxConns, minConns := int32(10), int32(1)
	if poolCfg != nil {
		if poolCfg.MaxConns > 0 {
			maxConns = poolCfg.MaxConns
		}
		if poolCfg.MinConns > 0 {
			minConns = poolCfg.MinConns
		}
	}
	pgxCfg.MaxConns = maxConns
	pgxCfg.MinConns = minConns
	pgxCfg.MaxConnLifetime = 30 * time.Minute
	pgxCfg.MaxConnIdleTime = 5 * time.Minute

	pool, err := pgxpool.NewWithConfig(ctx, pgxCfg)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: create pool")
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, eris.Wrap(err, "postgres: ping")
	}
	return &PostgresStore{pool: pool, now: time.Now}, nil
}

const postgresMigration = `
CREATE TABLE IF NOT EXISTS tract_cache (
	cache_key   TEXT NOT NULL,
	seq         INTEGER NOT NULL,
	geoid       TEXT NOT NULL,
	name        TEXT NOT NULL DEFAULT '',
	statefp     TEXT NOT NULL DEFAULT '',
	countyfp    TEXT NOT NULL DEFAULT '',
	tractce     TEXT NOT NULL DEFAULT '',
	geom        BYTEA NOT NULL,
	cached_at   TIMESTAMPTZ NOT NULL DEFAULT now(),
	expires_at  TIMESTAMPTZ NOT NULL,
	PRIMARY KEY (cache_key, seq)
);

CREATE INDEX IF NOT EXISTS idx_tract_cache_expires_at ON tract_cache(expires_at);
`

func (s *PostgresStore) Migrate(ctx context.Context) error {
	_, err := s.pool.Exec(ctx, postgresMigration)
	return eris.Wrap(err, "postgres: migrate")
}

func (s *PostgresStore) Close() error {
	s.pool.Close()
	return nil
}

func (s *PostgresStore) GetTracts(ctx context.Context, key string) ([]TractRecord, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT geoid, name, statefp, countyfp, tractce, geom FROM tract_cache
		 WHERE cache_key = $1 AND expires_at > $2
		 ORDER BY seq`,
		key, s.now().UTC(),
	)
	if err != nil {
		return nil, eris.Wrapf(err, "postgres: get tracts %s", key)
	}
	defer rows.Close()

	var out []TractRecord
	for rows.Next() {
		var r TractRecord
		if err := rows.Scan(&r.GEOID, &r.Name, &r.StateFIPS, &r.CountyFIPS, &r.TractCE, &r.Geometry); err != nil {
			return nil, eris.Wrap(err, "postgres: scan tract")
		}
		out = append(out, r)
	}
	if err := rows.Err(); err != nil {
		return nil, eris.Wrap(err, "postgres: iterate tracts")
	}
	return out, nil
}

// SetTracts replaces key inside one transaction and bulk-loads the new
// rows with COPY.
func (s *PostgresStore) SetTracts(ctx context.Context, key string, tracts []TractRecord, ttl time.Duration) error {
	now := s.now().UTC()
	expiresAt := now.Add(ttl)

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return eris.Wrap(err, "postgres: begin tx")
	}
	defer func() { _ = tx.Rollback(ctx) }()

	if _, err := tx.Exec(ctx, `DELETE FROM tract_cache WHERE cache_key = $1`, key); err != nil {
		return eris.Wrapf(err, "postgres: clear tracts %s", key)
	}

	rows := make([][]any, len(tracts))
	for i, r := range tracts {
		rows[i] = []any{key, i, r.GEOID, r.Name, r.StateFIPS, r.CountyFIPS, r.TractCE, r.Geometry, now, expiresAt}
	}
	if _, err := db.CopyFrom(ctx, tx, "tract_cache", tractColumns, rows); err != nil {
		return eris.Wrapf(err, "postgres: load tracts %s", key)
	}

	return eris.Wrap(tx.Commit(ctx), "postgres: commit tracts")
}

func (s *PostgresStore) DeleteTracts(ctx context.Context, key string) (int, error) {
	tag, err := s.pool.Exec(ctx, `DELETE FROM tract_cache WHERE cache_key = $1`, key)
	if err != nil {
		return 0, eris.Wrapf(err, "postgres: delete tracts %s", key)
	}
	return int(tag.RowsAffected()), nil
}

func (s *PostgresStore) DeleteExpired(ctx context.Context) (int, error) {
	tag, err := s.pool.Exec(ctx, `DELETE FROM tract_cache WHERE expires_at <= $1`, s.now().UTC())
	if err != nil {
		return 0, eris.Wrap(err, "postgres: delete expired tracts")
	}
	return int(tag.RowsAffected()), nil
}

func (s *PostgresStore) ListEntries(ctx context.Context) ([]Entry, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT cache_key, COUNT(*), MIN(cached_at), MIN(expires_at) FROM tract_cache
		 GROUP BY cache_key ORDER BY cache_key`,
	)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: list entries")
	}
	defer rows.Close()

	var out []Entry
	for rows.Next() {
		var e Entry
		if err := rows.Scan(&e.Key, &e.Tracts, &e.CachedAt, &e.ExpiresAt); err != nil {
			return nil, eris.Wrap(err, "postgres: scan entry")
		}
		out = append(out, e)
	}
	return out, eris.Wrap(rows.Err(), "postgres: iterate entries")
}
