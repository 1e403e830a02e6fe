package cache

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"sync"
	"time"

	"city-distance-service/internal/domain"
	"city-distance-service/internal/platform/obs"
	"city-distance-service/internal/ports"

	"github.com/google/uuid"
	"github.com/jonboulle/clockwork"
)

// Default TTLs. Route geometry is far more stable than a geocoder's
// confidence in a name match, so distances live a week and coordinates a day.
const (
	DefaultCoordinateTTL = 24 * time.Hour
	DefaultDistanceTTL   = 168 * time.Hour
)

// StoreOptions tunes a cache store. Zero values select defaults.
type StoreOptions struct {
	CoordinateTTL time.Duration
	DistanceTTL   time.Duration
	Clock         clockwork.Clock
	Metrics       *obs.Metrics
	SessionID     string
}

func (o StoreOptions) withDefaults() StoreOptions {
	if o.CoordinateTTL <= 0 {
		o.CoordinateTTL = DefaultCoordinateTTL
	}
	if o.DistanceTTL <= 0 {
		o.DistanceTTL = DefaultDistanceTTL
	}
	if o.Clock == nil {
		o.Clock = clockwork.NewRealClock()
	}
	if o.Metrics == nil {
		o.Metrics = obs.NewMetricsForTesting()
	}
	if o.SessionID == "" {
		o.SessionID = uuid.NewString()
	}
	return o
}

// SQLite backed cache store for coordinates and distances.
//
// Entries are keyed by canonical hashes of normalized place names and carry
// unix-second expiry timestamps computed against an injectable clock. Session
// hit/miss/save counters are persisted to the cache_stats table inside the
// same transaction as the lookup that produced them. A single mutex
// serializes read-modify-write sequences (lookup, expiry check, hit bump) so
// concurrent callers never observe a torn update on one key.
type SqliteStore struct {
	db      *sql.DB
	path    string
	clock   clockwork.Clock
	metrics *obs.Metrics
	session string

	coordTTL time.Duration
	distTTL  time.Duration

	mu sync.Mutex
}

func NewSqliteStore(db *sql.DB, path string, opts StoreOptions) *SqliteStore {
	opts = opts.withDefaults()
	return &SqliteStore{
		db:       db,
		path:     path,
		clock:    opts.Clock,
		metrics:  opts.Metrics,
		session:  opts.SessionID,
		coordTTL: opts.CoordinateTTL,
		distTTL:  opts.DistanceTTL,
	}
}

// SessionID identifies the counter row this process writes to.
func (s *SqliteStore) SessionID() string { return s.session }

// InitSchema creates the cache tables and their indexes. The expires_at
// indexes keep the cleanup sweep from scanning live entries.
func InitSchema(db *sql.DB) error {
	if db == nil {
		return errors.New("init schema: DB is nil")
	}

	tx, err := db.Begin()
	if err != nil {
		return fmt.Errorf("init schema: begin tx: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	statements := []string{
		`CREATE TABLE IF NOT EXISTS coordinates (
			place_key TEXT PRIMARY KEY,
			place_name TEXT NOT NULL,
			place_name_normalized TEXT NOT NULL,
			longitude REAL NOT NULL,
			latitude REAL NOT NULL,
			source TEXT NOT NULL DEFAULT 'nominatim',
			confidence REAL NOT NULL DEFAULT 1.0,
			created_at INTEGER NOT NULL,
			expires_at INTEGER NOT NULL,
			hits INTEGER NOT NULL DEFAULT 0
		);`,
		`CREATE TABLE IF NOT EXISTS distances (
			pair_key TEXT PRIMARY KEY,
			origin_name TEXT NOT NULL,
			destination_name TEXT NOT NULL,
			distance_km REAL NOT NULL,
			duration_min REAL NOT NULL,
			source TEXT NOT NULL DEFAULT 'osrm',
			created_at INTEGER NOT NULL,
			expires_at INTEGER NOT NULL,
			hits INTEGER NOT NULL DEFAULT 0
		);`,
		`CREATE TABLE IF NOT EXISTS cache_stats (
			session_id TEXT NOT NULL,
			date TEXT NOT NULL,
			coord_hits INTEGER NOT NULL DEFAULT 0,
			coord_misses INTEGER NOT NULL DEFAULT 0,
			coord_saves INTEGER NOT NULL DEFAULT 0,
			distance_hits INTEGER NOT NULL DEFAULT 0,
			distance_misses INTEGER NOT NULL DEFAULT 0,
			distance_saves INTEGER NOT NULL DEFAULT 0,
			cleanups INTEGER NOT NULL DEFAULT 0,
			PRIMARY KEY (session_id, date)
		);`,
		`CREATE INDEX IF NOT EXISTS idx_coordinates_expires ON coordinates(expires_at);`,
		`CREATE INDEX IF NOT EXISTS idx_coordinates_name ON coordinates(place_name_normalized);`,
		`CREATE INDEX IF NOT EXISTS idx_distances_expires ON distances(expires_at);`,
		`CREATE INDEX IF NOT EXISTS idx_distances_names ON distances(origin_name, destination_name);`,
	}

	for i, stmt := range statements {
		if _, err := tx.Exec(stmt); err != nil {
			return fmt.Errorf("init schema: exec statement #%d: %w", i+1, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("init schema: commit tx: %w", err)
	}

	return nil
}

// Fetch cached coordinates for one place name. Expired entries are deleted
// on read and reported as misses.
func (s *SqliteStore) GetCoordinates(ctx context.Context, name string) (domain.Coordinates, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	key := domain.PlaceKey(name)
	now := s.clock.Now().Unix()

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
	WHERE place_key = ?;
	`, key).Scan(&lon, &lat, &expiresAt)

	switch {
	case errors.Is(err, sql.ErrNoRows):
		return domain.Coordinates{}, false, s.finishMiss(ctx, tx, kindCoordinate)
	case err != nil:
		return domain.Coordinates{}, false, fmt.Errorf("get coordinates %q: %w", name, err)
	}

	if expiresAt <= now {
		if _, err := tx.ExecContext(ctx, `DELETE FROM coordinates WHERE place_key = ?;`, key); err != nil {
			return domain.Coordinates{}, false, fmt.Errorf("get coordinates %q: delete expired: %w", name, err)
		}
		return domain.Coordinates{}, false, s.finishMiss(ctx, tx, kindCoordinate)
	}

	if _, err := tx.ExecContext(ctx, `UPDATE coordinates SET hits = hits + 1 WHERE place_key = ?;`, key); err != nil {
		return domain.Coordinates{}, false, fmt.Errorf("get coordinates %q: bump hits: %w", name, err)
	}

	if err := s.finishHit(ctx, tx, kindCoordinate); err != nil {
		return domain.Coordinates{}, false, err
	}

	return domain.Coordinates{Lon: lon, Lat: lat}, true, nil
}

// Store coordinates for a place name. Re-saving the same name overwrites in
// place and refreshes the expiry.
func (s *SqliteStore) PutCoordinates(ctx context.Context, name string, coords domain.Coordinates, source string, confidence float64) error {
	canonical := domain.Canonical(name)
	if canonical == "" {
		return errors.New("put coordinates: empty place name")
	}
	if !coords.Valid() {
		return fmt.Errorf("put coordinates %q: coordinates must be finite", name)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.clock.Now()

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
	VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
	ON CONFLICT(place_key) DO UPDATE SET
		longitude = excluded.longitude,
		latitude = excluded.latitude,
		source = excluded.source,
		confidence = excluded.confidence,
		expires_at = excluded.expires_at;
	`, domain.PlaceKey(name), name, canonical,
		coords.Lon, coords.Lat, source, confidence,
		now.Unix(), now.Add(s.coordTTL).Unix())
	if err != nil {
		return fmt.Errorf("put coordinates %q: %w", name, err)
	}

	if err := s.bumpStat(ctx, tx, "coord_saves"); err != nil {
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("put coordinates %q: commit: %w", name, err)
	}

	s.metrics.CacheSaves.WithLabelValues(kindCoordinate).Inc()
	return nil
}

// Fetch a cached distance for an unordered pair of place names.
func (s *SqliteStore) GetDistance(ctx context.Context, a, b string) (ports.DistanceRecord, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	key := domain.PairKey(a, b)
	now := s.clock.Now().Unix()

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return ports.DistanceRecord{}, false, fmt.Errorf("get distance: begin tx: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	var rec ports.DistanceRecord
	var expiresAt, createdAt int64
	err = tx.QueryRowContext(ctx, `
	SELECT origin_name, destination_name, distance_km, duration_min,
	       source, hits, created_at, expires_at
	FROM distances
	WHERE pair_key = ?;
	`, key).Scan(&rec.OriginName, &rec.DestinationName, &rec.DistanceKm, &rec.DurationMin,
		&rec.Source, &rec.Hits, &createdAt, &expiresAt)

	switch {
	case errors.Is(err, sql.ErrNoRows):
		return ports.DistanceRecord{}, false, s.finishMiss(ctx, tx, kindDistance)
	case err != nil:
		return ports.DistanceRecord{}, false, fmt.Errorf("get distance %q -> %q: %w", a, b, err)
	}

	if expiresAt <= now {
		if _, err := tx.ExecContext(ctx, `DELETE FROM distances WHERE pair_key = ?;`, key); err != nil {
			return ports.DistanceRecord{}, false, fmt.Errorf("get distance %q -> %q: delete expired: %w", a, b, err)
		}
		return ports.DistanceRecord{}, false, s.finishMiss(ctx, tx, kindDistance)
	}

	if _, err := tx.ExecContext(ctx, `UPDATE distances SET hits = hits + 1 WHERE pair_key = ?;`, key); err != nil {
		return ports.DistanceRecord{}, false, fmt.Errorf("get distance %q -> %q: bump hits: %w", a, b, err)
	}

	if err := s.finishHit(ctx, tx, kindDistance); err != nil {
		return ports.DistanceRecord{}, false, err
	}

	rec.Hits++
	rec.CreatedAt = time.Unix(createdAt, 0)
	return rec, true, nil
}

// Store a distance for an unordered pair of place names.
func (s *SqliteStore) PutDistance(ctx context.Context, a, b string, distanceKm, durationMin float64, source string) error {
	if domain.Canonical(a) == "" || domain.Canonical(b) == "" {
		return errors.New("put distance: origin and destination must be non-empty")
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.clock.Now()

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
	VALUES (?, ?, ?, ?, ?, ?, ?, ?)
	ON CONFLICT(pair_key) DO UPDATE SET
		distance_km = excluded.distance_km,
		duration_min = excluded.duration_min,
		source = excluded.source,
		expires_at = excluded.expires_at;
	`, domain.PairKey(a, b), a, b,
		distanceKm, durationMin, source,
		now.Unix(), now.Add(s.distTTL).Unix())
	if err != nil {
		return fmt.Errorf("put distance %q -> %q: %w", a, b, err)
	}

	if err := s.bumpStat(ctx, tx, "distance_saves"); err != nil {
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("put distance %q -> %q: commit: %w", a, b, err)
	}

	s.metrics.CacheSaves.WithLabelValues(kindDistance).Inc()
	return nil
}

// Cleanup deletes every expired entry of both kinds and returns how many
// were removed.
func (s *SqliteStore) Cleanup(ctx context.Context) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.clock.Now().Unix()

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("cleanup: begin tx: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	removed := 0
	for _, table := range []string{"coordinates", "distances"} {
		res, err := tx.ExecContext(ctx,
			fmt.Sprintf(`DELETE FROM %s WHERE expires_at <= ?;`, table), now)
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

// Clear removes all entries of both kinds and resets this session's counters.
func (s *SqliteStore) Clear(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

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
	if _, err := tx.ExecContext(ctx, `DELETE FROM cache_stats WHERE session_id = ?;`, s.session); err != nil {
		return fmt.Errorf("clear cache: session counters: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("clear cache: commit: %w", err)
	}

	return nil
}

// Stats returns this session's counters plus live entry counts and file size.
func (s *SqliteStore) Stats(ctx context.Context) (domain.StatsSnapshot, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.clock.Now().Unix()
	snap := domain.StatsSnapshot{
		DatabasePath: s.path,
		SessionID:    s.session,
	}

	err := s.db.QueryRowContext(ctx, `
	SELECT COALESCE(SUM(coord_hits), 0), COALESCE(SUM(coord_misses), 0), COALESCE(SUM(coord_saves), 0),
	       COALESCE(SUM(distance_hits), 0), COALESCE(SUM(distance_misses), 0), COALESCE(SUM(distance_saves), 0)
	FROM cache_stats
	WHERE session_id = ?;
	`, s.session).Scan(
		&snap.Coordinates.Hits, &snap.Coordinates.Misses, &snap.Coordinates.Saves,
		&snap.Distances.Hits, &snap.Distances.Misses, &snap.Distances.Saves,
	)
	if err != nil {
		return domain.StatsSnapshot{}, fmt.Errorf("cache stats: session counters: %w", err)
	}

	if err := s.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM coordinates WHERE expires_at > ?;`, now,
	).Scan(&snap.Coordinates.LiveEntries); err != nil {
		return domain.StatsSnapshot{}, fmt.Errorf("cache stats: live coordinates: %w", err)
	}
	if err := s.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM distances WHERE expires_at > ?;`, now,
	).Scan(&snap.Distances.LiveEntries); err != nil {
		return domain.StatsSnapshot{}, fmt.Errorf("cache stats: live distances: %w", err)
	}

	snap.TotalEntries = snap.Coordinates.LiveEntries + snap.Distances.LiveEntries

	if s.path != "" {
		if fi, err := os.Stat(s.path); err == nil {
			snap.FileSizeBytes = fi.Size()
		}
	}

	return snap, nil
}

// Search returns live entries whose place names contain pattern
// (case-insensitive), capped at limit rows per kind.
func (s *SqliteStore) Search(ctx context.Context, pattern string, limit int) (ports.SearchResult, error) {
	if limit <= 0 {
		limit = 50
	}
	like := "%" + domain.Canonical(pattern) + "%"
	now := s.clock.Now().Unix()

	out := ports.SearchResult{}

	rows, err := s.db.QueryContext(ctx, `
	SELECT place_name, longitude, latitude, source, confidence, hits, created_at, expires_at
	FROM coordinates
	WHERE place_name_normalized LIKE ? AND expires_at > ?
	ORDER BY hits DESC
	LIMIT ?;
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
	WHERE (UPPER(origin_name) LIKE ? OR UPPER(destination_name) LIKE ?) AND expires_at > ?
	ORDER BY hits DESC
	LIMIT ?;
	`, like, like, now, limit)
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

const (
	kindCoordinate = "coordinate"
	kindDistance   = "distance"
)

func statColumn(kind, result string) string {
	prefix := "coord"
	if kind == kindDistance {
		prefix = "distance"
	}
	return prefix + "_" + result
}

func (s *SqliteStore) finishHit(ctx context.Context, tx *sql.Tx, kind string) error {
	if err := s.bumpStat(ctx, tx, statColumn(kind, "hits")); err != nil {
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("cache hit: commit: %w", err)
	}
	s.metrics.CacheLookups.WithLabelValues(kind, "hit").Inc()
	return nil
}

func (s *SqliteStore) finishMiss(ctx context.Context, tx *sql.Tx, kind string) error {
	if err := s.bumpStat(ctx, tx, statColumn(kind, "misses")); err != nil {
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("cache miss: commit: %w", err)
	}
	s.metrics.CacheLookups.WithLabelValues(kind, "miss").Inc()
	return nil
}

// bumpStat increments one session counter inside the caller's transaction.
// Column names come from a fixed internal set, never from input.
func (s *SqliteStore) bumpStat(ctx context.Context, tx *sql.Tx, column string) error {
	date := s.clock.Now().UTC().Format("2006-01-02")

	res, err := tx.ExecContext(ctx, fmt.Sprintf(`
	UPDATE cache_stats SET %s = %s + 1
	WHERE session_id = ? AND date = ?;
	`, column, column), s.session, date)
	if err != nil {
		return fmt.Errorf("update stats %s: %w", column, err)
	}

	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("update stats %s: rows affected: %w", column, err)
	}
	if n == 0 {
		if _, err := tx.ExecContext(ctx, fmt.Sprintf(`
		INSERT INTO cache_stats (session_id, date, %s) VALUES (?, ?, 1);
		`, column), s.session, date); err != nil {
			return fmt.Errorf("insert stats %s: %w", column, err)
		}
	}

	return nil
}
