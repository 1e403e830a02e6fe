package cache

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"city-distance-service/internal/domain"
	"city-distance-service/internal/ports"
)

// SQLStore is a Postgres-backed cache store with the same contract as
// SqliteStore. Per-key read-modify-write sequences lock the row with
// SELECT ... FOR UPDATE instead of a process-wide mutex.
type SQLStore struct {
	db      *sql.DB
	opts    StoreOptions
	session string
}

func NewSQLStore(db *sql.DB, opts StoreOptions) *SQLStore {
	opts = opts.withDefaults()
	return &SQLStore{db: db, opts: opts, session: opts.SessionID}
}

// SessionID identifies the counter row this process writes to.
func (s *SQLStore) SessionID() string { return s.session }

// InitSQLSchema creates the cache tables on Postgres.
func InitSQLSchema(db *sql.DB) error {
	if db == nil {
		return errors.New("init sql schema: DB is nil")
	}

	tx, err := db.Begin()
	if err != nil {
		return fmt.Errorf("init sql schema: begin tx: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	statements := []string{
		`CREATE TABLE IF NOT EXISTS coordinates (
			place_key TEXT PRIMARY KEY,
			place_name TEXT NOT NULL,
			place_name_normalized TEXT NOT NULL,
			longitude DOUBLE PRECISION NOT NULL,
			latitude DOUBLE PRECISION NOT NULL,
			source TEXT NOT NULL DEFAULT 'nominatim',
			confidence DOUBLE PRECISION NOT NULL DEFAULT 1.0,
			created_at BIGINT NOT NULL,
			expires_at BIGINT NOT NULL,
			hits BIGINT NOT NULL DEFAULT 0
		);`,
		`CREATE TABLE IF NOT EXISTS distances (
			pair_key TEXT PRIMARY KEY,
			origin_name TEXT NOT NULL,
			destination_name TEXT NOT NULL,
			distance_km DOUBLE PRECISION NOT NULL,
			duration_min DOUBLE PRECISION NOT NULL,
			source TEXT NOT NULL DEFAULT 'osrm',
			created_at BIGINT NOT NULL,
			expires_at BIGINT NOT NULL,
			hits BIGINT NOT NULL DEFAULT 0
		);`,
		`CREATE TABLE IF NOT EXISTS cache_stats (
			session_id TEXT NOT NULL,
			date TEXT NOT NULL,
			coord_hits BIGINT NOT NULL DEFAULT 0,
			coord_misses BIGINT NOT NULL DEFAULT 0,
			coord_saves BIGINT NOT NULL DEFAULT 0,
			distance_hits BIGINT NOT NULL DEFAULT 0,
			distance_misses BIGINT NOT NULL DEFAULT 0,
			distance_saves BIGINT NOT NULL DEFAULT 0,
			cleanups BIGINT NOT NULL DEFAULT 0,
			PRIMARY KEY (session_id, date)
		);`,
		`CREATE INDEX IF NOT EXISTS idx_coordinates_expires ON coordinates(expires_at);`,
		`CREATE INDEX IF NOT EXISTS idx_coordinates_name ON coordinates(place_name_normalized);`,
		`CREATE INDEX IF NOT EXISTS idx_distances_expires ON distances(expires_at);`,
	}

	for i, stmt := range statements {
		if _, err := tx.Exec(stmt); err != nil {
			return fmt.Errorf("init sql schema: exec statement #%d: %w", i+1, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("init sql schema: commit tx: %w", err)
	}

	return nil
}

func (s *SQLStore) GetCoordinates(ctx context.Context, name string) (domain.Coordinates, bool, error) {
	key := domain.PlaceKey(name)
	now := s.opts.Clock.Now().Unix()

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return domain.Coordinates{}, false, fmt.Errorf("get coordinates: begin tx: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	var lon, lat float64
	var expiresAt int64
	err = tx.QueryRowContext(ctx, `
	SELECT longitude, latitude, expires_at
	FROM coordinates
	WHERE place_key = $1
	FOR UPDATE;
	`, key).Scan(&lon, &lat, &expiresAt)

	switch {
	case errors.Is(err, sql.ErrNoRows):
		return domain.Coordinates{}, false, s.finishMiss(ctx, tx, kindCoordinate)
	case err != nil:
		return domain.Coordinates{}, false, fmt.Errorf("get coordinates %q: %w", name, err)
	}

	if expiresAt <= now {
		if _, err := tx.ExecContext(ctx, `DELETE FROM coordinates WHERE place_key = $1;`, key); err != nil {
			return domain.Coordinates{}, false, fmt.Errorf("get coordinates %q: delete expired: %w", name, err)
		}
		return domain.Coordinates{}, false, s.finishMiss(ctx, tx, kindCoordinate)
	}

	if _, err := tx.ExecContext(ctx, `UPDATE coordinates SET hits = hits + 1 WHERE place_key = $1;`, key); err != nil {
		return domain.Coordinates{}, false, fmt.Errorf("get coordinates %q: bump hits: %w", name, err)
	}

	if err := s.finishHit(ctx, tx, kindCoordinate); err != nil {
		return domain.Coordinates{}, false, err
	}

	return domain.Coordinates{Lon: lon, Lat: lat}, true, nil
}

func (s *SQLStore) PutCoordinates(ctx context.Context, name string, coords domain.Coordinates, source string, confidence float64) error {
	canonical := domain.Canonical(name)
	if canonical == "" {
		return errors.New("put coordinates: empty place name")
	}
	if !coords.Valid() {
		return fmt.Errorf("put coordinates %q: coordinates must be finite", name)
	}

	now := s.opts.Clock.Now()

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("put coordinates: begin tx: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	_, err = tx.ExecContext(ctx, `
	INSERT INTO coordinates (
		place_key, place_name, place_name_normalized,
		longitude, latitude, source, confidence, created_at, expires_at
	)
	VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
	ON CONFLICT (place_key) DO UPDATE SET
		longitude = EXCLUDED.longitude,
		latitude = EXCLUDED.latitude,
		source = EXCLUDED.source,
		confidence = EXCLUDED.confidence,
		expires_at = EXCLUDED.expires_at;
	`, domain.PlaceKey(name), name, canonical,
		coords.Lon, coords.Lat, source, confidence,
		now.Unix(), now.Add(s.opts.CoordinateTTL).Unix())
	if err != nil {
		return fmt.Errorf("put coordinates %q: %w", name, err)
	}

	if err := s.bumpStat(ctx, tx, "coord_saves"); err != nil {
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("put coordinates %q: commit: %w", name, err)
	}

	s.opts.Metrics.CacheSaves.WithLabelValues(kindCoordinate).Inc()
	return nil
}

func (s *SQLStore) GetDistance(ctx context.Context, a, b string) (ports.DistanceRecord, bool, error) {
	key := domain.PairKey(a, b)
	now := s.opts.Clock.Now().Unix()

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return ports.DistanceRecord{}, false, fmt.Errorf("get distance: begin tx: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	var rec ports.DistanceRecord
	var createdAt, expiresAt int64
	err = tx.QueryRowContext(ctx, `
	SELECT origin_name, destination_name, distance_km, duration_min,
	       source, hits, created_at, expires_at
	FROM distances
	WHERE pair_key = $1
	FOR UPDATE;
	`, key).Scan(&rec.OriginName, &rec.DestinationName, &rec.DistanceKm, &rec.DurationMin,
		&rec.Source, &rec.Hits, &createdAt, &expiresAt)

	switch {
	case errors.Is(err, sql.ErrNoRows):
		return ports.DistanceRecord{}, false, s.finishMiss(ctx, tx, kindDistance)
	case err != nil:
		return ports.DistanceRecord{}, false, fmt.Errorf("get distance %q -> %q: %w", a, b, err)
	}

	if expiresAt <= now {
		if _, err := tx.ExecContext(ctx, `DELETE FROM distances WHERE pair_key = $1;`, key); err != nil {
			return ports.DistanceRecord{}, false, fmt.Errorf("get distance %q -> %q: delete expired: %w", a, b, err)
		}
		return ports.DistanceRecord{}, false, s.finishMiss(ctx, tx, kindDistance)
	}

	if _, err := tx.ExecContext(ctx, `UPDATE distances SET hits = hits + 1 WHERE pair_key = $1;`, key); err != nil {
		return ports.DistanceRecord{}, false, fmt.Errorf("get distance %q -> %q: bump hits: %w", a, b, err)
	}

	if err := s.finishHit(ctx, tx, kindDistance); err != nil {
		return ports.DistanceRecord{}, false, err
	}

	rec.Hits++
	rec.CreatedAt = time.Unix(createdAt, 0)
	return rec, true, nil
}

func (s *SQLStore) PutDistance(ctx context.Context, a, b string, distanceKm, durationMin float64, source string) error {
	if domain.Canonical(a) == "" || domain.Canonical(b) == "" {
		return errors.New("put distance: origin and destination must be non-empty")
	}

	now := s.opts.Clock.Now()

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("put distance: begin tx: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	_, err = tx.ExecContext(ctx, `
	INSERT INTO distances (
		pair_key, origin_name, destination_name,
		distance_km, duration_min, source, created_at, expires_at
	)
	VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
	ON CONFLICT (pair_key) DO UPDATE SET
		distance_km = EXCLUDED.distance_km,
		duration_min = EXCLUDED.duration_min,
		source = EXCLUDED.source,
		expires_at = EXCLUDED.expires_at;
	`, domain.PairKey(a, b), a, b,
		distanceKm, durationMin, source,
		now.Unix(), now.Add(s.opts.DistanceTTL).Unix())
	if err != nil {
		return fmt.Errorf("put distance %q -> %q: %w", a, b, err)
	}

	if err := s.bumpStat(ctx, tx, "distance_saves"); err != nil {
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("put distance %q -> %q: commit: %w", a, b, err)
	}

	s.opts.Metrics.CacheSaves.WithLabelValues(kindDistance).Inc()
	return nil
}

func (s *SQLStore) Cleanup(ctx context.Context) (int, error) {
	now := s.opts.Clock.Now().Unix()

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("cleanup: begin tx: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	removed := 0
	for _, table := range []string{"coordinates", "distances"} {
		res, err := tx.ExecContext(ctx,
			fmt.Sprintf(`DELETE FROM %s WHERE expires_at <= $1;`, table), now)
		if err != nil {
			return 0, fmt.Errorf("cleanup: delete expired %s: %w", table, err)
		}
		n, err := res.RowsAffected()
		if err != nil {
			return 0, fmt.Errorf("cleanup: rows affected for %s: %w", table, err)
		}
		removed += int(n)
	}

	if err := s.bumpStat(ctx, tx, "cleanups"); err != nil {
		return 0, err
	}
	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("cleanup: commit: %w", err)
	}

	return removed, nil
}

func (s *SQLStore) Clear(ctx context.Context) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("clear cache: begin tx: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	if _, err := tx.ExecContext(ctx, `DELETE FROM coordinates;`); err != nil {
		return fmt.Errorf("clear cache: coordinates: %w", err)
	}
	if _, err := tx.ExecContext(ctx, `DELETE FROM distances;`); err != nil {
		return fmt.Errorf("clear cache: distances: %w", err)
	}
	if _, err := tx.ExecContext(ctx, `DELETE FROM cache_stats WHERE session_id = $1;`, s.session); err != nil {
		return fmt.Errorf("clear cache: session counters: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("clear cache: commit: %w", err)
	}

	return nil
}

func (s *SQLStore) Stats(ctx context.Context) (domain.StatsSnapshot, error) {
	now := s.opts.Clock.Now().Unix()
	snap := domain.StatsSnapshot{SessionID: s.session}

	err := s.db.QueryRowContext(ctx, `
	SELECT COALESCE(SUM(coord_hits), 0), COALESCE(SUM(coord_misses), 0), COALESCE(SUM(coord_saves), 0),
	       COALESCE(SUM(distance_hits), 0), COALESCE(SUM(distance_misses), 0), COALESCE(SUM(distance_saves), 0)
	FROM cache_stats
	WHERE session_id = $1;
	`, s.session).Scan(
		&snap.Coordinates.Hits, &snap.Coordinates.Misses, &snap.Coordinates.Saves,
		&snap.Distances.Hits, &snap.Distances.Misses, &snap.Distances.Saves,
	)
	if err != nil {
		return domain.StatsSnapshot{}, fmt.Errorf("cache stats: session counters: %w", err)
	}

	if err := s.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM coordinates WHERE expires_at > $1;`, now,
	).Scan(&snap.Coordinates.LiveEntries); err != nil {
		return domain.StatsSnapshot{}, fmt.Errorf("cache stats: live coordinates: %w", err)
	}
	if err := s.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM distances WHERE expires_at > $1;`, now,
	).Scan(&snap.Distances.LiveEntries); err != nil {
		return domain.StatsSnapshot{}, fmt.Errorf("cache stats: live distances: %w", err)
	}

	snap.TotalEntries = snap.Coordinates.LiveEntries + snap.Distances.LiveEntries
	return snap, nil
}

func (s *SQLStore) Search(ctx context.Context, pattern string, limit int) (ports.SearchResult, error) {
	if limit <= 0 {
		limit = 50
	}
	like := "%" + domain.Canonical(pattern) + "%"
	now := s.opts.Clock.Now().Unix()

	out := ports.SearchResult{}

	rows, err := s.db.QueryContext(ctx, `
	SELECT place_name, longitude, latitude, source, confidence, hits, created_at, expires_at
	FROM coordinates
	WHERE place_name_normalized LIKE $1 AND expires_at > $2
	ORDER BY hits DESC
	LIMIT $3;
	`, like, now, limit)
	if err != nil {
		return ports.SearchResult{}, fmt.Errorf("search coordinates: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var rec ports.CoordinateRecord
		var createdAt, expiresAt int64
		if err := rows.Scan(&rec.PlaceName, &rec.Coords.Lon, &rec.Coords.Lat,
			&rec.Source, &rec.Confidence, &rec.Hits, &createdAt, &expiresAt); err != nil {
			return ports.SearchResult{}, fmt.Errorf("search coordinates: scan: %w", err)
		}
		rec.CreatedAt = time.Unix(createdAt, 0)
		rec.ExpiresAt = time.Unix(expiresAt, 0)
		out.Coordinates = append(out.Coordinates, rec)
	}
	if err := rows.Err(); err != nil {
		return ports.SearchResult{}, fmt.Errorf("search coordinates: rows: %w", err)
	}

	drows, err := s.db.QueryContext(ctx, `
	SELECT origin_name, destination_name, distance_km, duration_min, source, hits, created_at
	FROM distances
	WHERE (UPPER(origin_name) LIKE $1 OR UPPER(destination_name) LIKE $1) AND expires_at > $2
	ORDER BY hits DESC
	LIMIT $3;
	`, like, now, limit)
	if err != nil {
		return ports.SearchResult{}, fmt.Errorf("search distances: %w", err)
	}
	defer drows.Close()

	for drows.Next() {
		var rec ports.DistanceRecord
		var createdAt int64
		if err := drows.Scan(&rec.OriginName, &rec.DestinationName, &rec.DistanceKm,
			&rec.DurationMin, &rec.Source, &rec.Hits, &createdAt); err != nil {
			return ports.SearchResult{}, fmt.Errorf("search distances: scan: %w", err)
		}
		rec.CreatedAt = time.Unix(createdAt, 0)
		out.Distances = append(out.Distances, rec)
	}
	if err := drows.Err(); err != nil {
		return ports.SearchResult{}, fmt.Errorf("search distances: rows: %w", err)
	}

	return out, nil
}

func (s *SQLStore) finishHit(ctx context.Context, tx *sql.Tx, kind string) error {
	if err := s.bumpStat(ctx, tx, statColumn(kind, "hits")); err != nil {
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("cache hit: commit: %w", err)
	}
	s.opts.Metrics.CacheLookups.WithLabelValues(kind, "hit").Inc()
	return nil
}

func (s *SQLStore) finishMiss(ctx context.Context, tx *sql.Tx, kind string) error {
	if err := s.bumpStat(ctx, tx, statColumn(kind, "misses")); err != nil {
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("cache miss: commit: %w", err)
	}
	s.opts.Metrics.CacheLookups.WithLabelValues(kind, "miss").Inc()
	return nil
}

// Column names come from a fixed internal set, never from input.
func (s *SQLStore) bumpStat(ctx context.Context, tx *sql.Tx, column string) error {
	date := s.opts.Clock.Now().UTC().Format("2006-01-02")

	_, err := tx.ExecContext(ctx, fmt.Sprintf(`
	INSERT INTO cache_stats (session_id, date, %s)
	VALUES ($1, $2, 1)
	ON CONFLICT (session_id, date) DO UPDATE SET %s = cache_stats.%s + 1;
	`, column, column, column), s.session, date)
	if err != nil {
		return fmt.Errorf("update stats %s: %w", column, err)
	}

	return nil
}
