package store

import (
	"context"
	"database/sql"
	"time"

	"github.com/rotisserie/eris"
	_ "modernc.org/sqlite"
)

// SQLiteStore implements TractCache using modernc.org/sqlite. Timestamps
// are stored as unix seconds.
type SQLiteStore struct {
	db  *sql.DB
	now func() time.Time
}

// NewSQLite opens a SQLite database at dsn and configures WAL mode.
func NewSQLite(dsn string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: open")
	}
	for _, pragma := range []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA busy_timeout=5000",
		"PRAGMA synchronous=NORMAL",
	} {
		if _, err := db.Exec(pragma); err != nil {
			db.Close() //nolint:errcheck
			return nil, eris.Wrapf(err, "sqlite: exec %s", pragma)
		}
	}
	return &SQLiteStore{db: db, now: time.Now}, nil
}

const sqliteMigration = `
CREATE TABLE IF NOT EXISTS tract_cache (
	cache_key   TEXT NOT NULL,
	seq         INTEGER NOT NULL,
	geoid       TEXT NOT NULL,
	name        TEXT NOT NULL DEFAULT '',
	statefp     TEXT NOT NULL DEFAULT '',
	countyfp    TEXT NOT NULL DEFAULT '',
	tractce     TEXT NOT NULL DEFAULT '',
	geom        BLOB NOT NULL,
	cached_at   INTEGER NOT NULL,
	expires_at  INTEGER NOT NULL,
	PRIMARY KEY (cache_key, seq)
);

CREATE INDEX IF NOT EXISTS idx_tract_cache_expires_at ON tract_cache(expires_at);
`

func (s *SQLiteStore) Migrate(ctx context.Context) error {
	_, err := s.db.ExecContext(ctx, sqliteMigration)
	return eris.Wrap(err, "sqlite: migrate")
}

func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

func (s *SQLiteStore) GetTracts(ctx context.Context, key string) ([]TractRecord, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT geoid, name, statefp, countyfp, tractce, geom FROM tract_cache
		 WHERE cache_key = ? AND expires_at > ?
		 ORDER BY seq`,
		key, s.now().Unix(),
	)
	if err != nil {
		return nil, eris.Wrapf(err, "sqlite: get tracts %s", key)
	}
	defer rows.Close() //nolint:errcheck

	var out []TractRecord
	for rows.Next() {
		var r TractRecord
		if err := rows.Scan(&r.GEOID, &r.Name, &r.StateFIPS, &r.CountyFIPS, &r.TractCE, &r.Geometry); err != nil {
			return nil, eris.Wrap(err, "sqlite: scan tract")
		}
		out = append(out, r)
	}
	if err := rows.Err(); err != nil {
		return nil, eris.Wrap(err, "sqlite: iterate tracts")
	}
	return out, nil
}

func (s *SQLiteStore) SetTracts(ctx context.Context, key string, tracts []TractRecord, ttl time.Duration) error {
	now := s.now()
	cachedAt, expiresAt := now.Unix(), now.Add(ttl).Unix()

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return eris.Wrap(err, "sqlite: begin tx")
	}
	defer func() { _ = tx.Rollback() }()

	if _, err := tx.ExecContext(ctx, `DELETE FROM tract_cache WHERE cache_key = ?`, key); err != nil {
		return eris.Wrapf(err, "sqlite: clear tracts %s", key)
	}

	stmt, err := tx.PrepareContext(ctx,
		`INSERT INTO tract_cache (cache_key, seq, geoid, name, statefp, countyfp, tractce, geom, cached_at, expires_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
	)
	if err != nil {
		return eris.Wrap(err, "sqlite: prepare insert")
	}
	defer stmt.Close() //nolint:errcheck

	for i, r := range tracts {
		if _, err := stmt.ExecContext(ctx, key, i, r.GEOID, r.Name, r.StateFIPS, r.CountyFIPS, r.TractCE, r.Geometry, cachedAt, expiresAt); err != nil {
			return eris.Wrapf(err, "sqlite: insert tract %s", r.GEOID)
		}
	}

	return eris.Wrap(tx.Commit(), "sqlite: commit tracts")
}

func (s *SQLiteStore) DeleteTracts(ctx context.Context, key string) (int, error) {
	res, err := s.db.ExecContext(ctx, `DELETE FROM tract_cache WHERE cache_key = ?`, key)
	if err != nil {
		return 0, eris.Wrapf(err, "sqlite: delete tracts %s", key)
	}
	return rowsAffected(res)
}

func (s *SQLiteStore) DeleteExpired(ctx context.Context) (int, error) {
	res, err := s.db.ExecContext(ctx, `DELETE FROM tract_cache WHERE expires_at <= ?`, s.now().Unix())
	if err != nil {
		return 0, eris.Wrap(err, "sqlite: delete expired tracts")
	}
	return rowsAffected(res)
}

func (s *SQLiteStore) ListEntries(ctx context.Context) ([]Entry, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT cache_key, COUNT(*), MIN(cached_at), MIN(expires_at) FROM tract_cache
		 GROUP BY cache_key ORDER BY cache_key`,
	)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: list entries")
	}
	defer rows.Close() //nolint:errcheck

	var out []Entry
	for rows.Next() {
		var e Entry
		var cachedAt, expiresAt int64
		if err := rows.Scan(&e.Key, &e.Tracts, &cachedAt, &expiresAt); err != nil {
			return nil, eris.Wrap(err, "sqlite: scan entry")
		}
		e.CachedAt = time.Unix(cachedAt, 0).UTC()
		e.ExpiresAt = time.Unix(expiresAt, 0).UTC()
		out = append(out, e)
	}
	return out, eris.Wrap(rows.Err(), "sqlite: iterate entries")
}

func rowsAffected(res sql.Result) (int, error) {
	n, err := res.RowsAffected()
	if err != nil {
		return 0, eris.Wrap(err, "rows affected")
	}
	return int(n), nil
}
