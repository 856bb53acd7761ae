package store

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rotisserie/eris"
	"github.com/twpayne/go-geom"
	_ "modernc.org/sqlite"

	"github.com/trailworks/trailnet/internal/model"
)

// SQLiteStore implements Store using modernc.org/sqlite. Geometries are
// EWKB blobs; every spatial table carries explicit bbox columns so the
// intersection prefilters stay plain SQL.
type SQLiteStore struct {
	sqliteQ
	db *sql.DB
}

// execer is the subset of database/sql shared by *sql.DB and *sql.Tx, so
// the same query code serves the store root and its transactions.
type execer interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// NewSQLite opens a SQLite database at the given DSN and configures WAL
// mode. Use ":memory:" for an ephemeral database.
func NewSQLite(dsn string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: open")
	}
	// The engine runs one transaction at a time per mutation; a second
	// connection would see foreign_keys off.
	db.SetMaxOpenConns(1)
	for _, pragma := range []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA busy_timeout=5000",
		"PRAGMA synchronous=NORMAL",
		"PRAGMA foreign_keys=ON",
	} {
		if _, err := db.Exec(pragma); err != nil {
			db.Close()
			return nil, eris.Wrapf(err, "sqlite: exec %s", pragma)
		}
	}
	return &SQLiteStore{sqliteQ: sqliteQ{db: db}, db: db}, nil
}

const sqliteMigration = `
CREATE TABLE IF NOT EXISTS segments (
	id            INTEGER PRIMARY KEY AUTOINCREMENT,
	uuid          TEXT NOT NULL UNIQUE,
	name          TEXT NOT NULL DEFAULT '',
	comment       TEXT NOT NULL DEFAULT '',
	geom          BLOB NOT NULL,
	geom_cadastre BLOB,
	length_3d     REAL NOT NULL DEFAULT 0,
	elevation_min INTEGER NOT NULL DEFAULT 0,
	elevation_max INTEGER NOT NULL DEFAULT 0,
	ascent        INTEGER NOT NULL DEFAULT 0,
	descent       INTEGER NOT NULL DEFAULT 0,
	min_x         REAL NOT NULL,
	min_y         REAL NOT NULL,
	max_x         REAL NOT NULL,
	max_y         REAL NOT NULL,
	created_at    DATETIME NOT NULL,
	updated_at    DATETIME NOT NULL
);

CREATE TABLE IF NOT EXISTS events (
	id             INTEGER PRIMARY KEY AUTOINCREMENT,
	uuid           TEXT NOT NULL UNIQUE,
	kind           TEXT NOT NULL,
	state          TEXT NOT NULL DEFAULT 'active',
	label          TEXT NOT NULL DEFAULT '',
	lateral_offset REAL NOT NULL DEFAULT 0,
	length_3d      REAL NOT NULL DEFAULT 0,
	geom           BLOB,
	created_at     DATETIME NOT NULL,
	updated_at     DATETIME NOT NULL
);

CREATE TABLE IF NOT EXISTS segment_events (
	id         INTEGER PRIMARY KEY AUTOINCREMENT,
	segment_id INTEGER NOT NULL REFERENCES segments(id) ON DELETE CASCADE,
	event_id   INTEGER NOT NULL REFERENCES events(id) ON DELETE CASCADE,
	start_pos  REAL NOT NULL,
	end_pos    REAL NOT NULL,
	CHECK (start_pos <= end_pos)
);

CREATE TABLE IF NOT EXISTS cities (
	id    INTEGER PRIMARY KEY AUTOINCREMENT,
	code  TEXT UNIQUE,
	name  TEXT NOT NULL,
	geom  BLOB NOT NULL,
	min_x REAL NOT NULL,
	min_y REAL NOT NULL,
	max_x REAL NOT NULL,
	max_y REAL NOT NULL
);

CREATE TABLE IF NOT EXISTS districts (
	id    INTEGER PRIMARY KEY AUTOINCREMENT,
	code  TEXT UNIQUE,
	name  TEXT NOT NULL,
	geom  BLOB NOT NULL,
	min_x REAL NOT NULL,
	min_y REAL NOT NULL,
	max_x REAL NOT NULL,
	max_y REAL NOT NULL
);

CREATE TABLE IF NOT EXISTS restricted_areas (
	id    INTEGER PRIMARY KEY AUTOINCREMENT,
	code  TEXT UNIQUE,
	name  TEXT NOT NULL,
	geom  BLOB NOT NULL,
	min_x REAL NOT NULL,
	min_y REAL NOT NULL,
	max_x REAL NOT NULL,
	max_y REAL NOT NULL
);

CREATE TABLE IF NOT EXISTS city_events (
	event_id INTEGER NOT NULL REFERENCES events(id) ON DELETE CASCADE,
	area_id  INTEGER NOT NULL REFERENCES cities(id) ON DELETE CASCADE,
	PRIMARY KEY (event_id, area_id)
);

CREATE TABLE IF NOT EXISTS district_events (
	event_id INTEGER NOT NULL REFERENCES events(id) ON DELETE CASCADE,
	area_id  INTEGER NOT NULL REFERENCES districts(id) ON DELETE CASCADE,
	PRIMARY KEY (event_id, area_id)
);

CREATE TABLE IF NOT EXISTS restricted_area_events (
	event_id INTEGER NOT NULL REFERENCES events(id) ON DELETE CASCADE,
	area_id  INTEGER NOT NULL REFERENCES restricted_areas(id) ON DELETE CASCADE,
	PRIMARY KEY (event_id, area_id)
);

CREATE TABLE IF NOT EXISTS routes (
	id         INTEGER PRIMARY KEY AUTOINCREMENT,
	name       TEXT NOT NULL,
	event_id   INTEGER NOT NULL REFERENCES events(id),
	published  INTEGER NOT NULL DEFAULT 0,
	created_at DATETIME NOT NULL,
	updated_at DATETIME NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_segments_bbox ON segments(min_x, max_x, min_y, max_y);
CREATE INDEX IF NOT EXISTS idx_segment_events_segment ON segment_events(segment_id);
CREATE INDEX IF NOT EXISTS idx_segment_events_event ON segment_events(event_id);
CREATE INDEX IF NOT EXISTS idx_events_kind ON events(kind);
CREATE INDEX IF NOT EXISTS idx_routes_event ON routes(event_id);
`

func (s *SQLiteStore) Migrate(ctx context.Context) error {
	_, err := s.db.ExecContext(ctx, sqliteMigration)
	return eris.Wrap(err, "sqlite: migrate")
}

func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

// WithTx runs fn inside one transaction, committing on nil and rolling back
// on error.
func (s *SQLiteStore) WithTx(ctx context.Context, fn func(Tx) error) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return eris.Wrap(err, "sqlite: begin tx")
	}
	if err := fn(&sqliteTx{sqliteQ{db: tx}}); err != nil {
		_ = tx.Rollback()
		return err
	}
	if err := tx.Commit(); err != nil {
		return eris.Wrap(err, "sqlite: commit tx")
	}
	return nil
}

// sqliteQ implements Queries over either the pool or a transaction.
type sqliteQ struct {
	db execer
}

// sqliteTx adds the mutations to sqliteQ.
type sqliteTx struct {
	sqliteQ
}

const segmentCols = `id, uuid, name, comment, geom, geom_cadastre, length_3d,
	elevation_min, elevation_max, ascent, descent, created_at, updated_at`

func (q *sqliteQ) scanSegment(row interface{ Scan(...any) error }) (*model.PathSegment, error) {
	var seg model.PathSegment
	var uid string
	var geomB, cadB []byte
	err := row.Scan(&seg.ID, &uid, &seg.Name, &seg.Comment, &geomB, &cadB,
		&seg.Length3D, &seg.ElevationMin, &seg.ElevationMax, &seg.Ascent,
		&seg.Descent, &seg.CreatedAt, &seg.UpdatedAt)
	if err != nil {
		return nil, err
	}
	if seg.UUID, err = uuid.Parse(uid); err != nil {
		return nil, eris.Wrap(err, "sqlite: parse segment uuid")
	}
	if seg.Geom, err = decodeLineString(geomB); err != nil {
		return nil, err
	}
	if seg.GeomCadastre, err = decodeLineString(cadB); err != nil {
		return nil, err
	}
	return &seg, nil
}

func (q *sqliteQ) GetSegment(ctx context.Context, id int64) (*model.PathSegment, error) {
	row := q.db.QueryRowContext(ctx,
		`SELECT `+segmentCols+` FROM segments WHERE id = ?`, id)
	seg, err := q.scanSegment(row)
	if err == sql.ErrNoRows {
		return nil, eris.Wrapf(ErrNotFound, "segment %d", id)
	}
	if err != nil {
		return nil, eris.Wrapf(err, "sqlite: get segment %d", id)
	}
	return seg, nil
}

func (q *sqliteQ) querySegments(ctx context.Context, query string, args ...any) ([]model.PathSegment, error) {
	rows, err := q.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: query segments")
	}
	defer rows.Close()

	var out []model.PathSegment
	for rows.Next() {
		seg, err := q.scanSegment(rows)
		if err != nil {
			return nil, eris.Wrap(err, "sqlite: scan segment")
		}
		out = append(out, *seg)
	}
	return out, eris.Wrap(rows.Err(), "sqlite: segments")
}

func (q *sqliteQ) ListSegments(ctx context.Context, f SegmentFilter) ([]model.PathSegment, error) {
	query := `SELECT ` + segmentCols + ` FROM segments`
	var args []any
	if f.BBox != nil {
		query += ` WHERE min_x <= ? AND max_x >= ? AND min_y <= ? AND max_y >= ?`
		args = append(args, f.BBox[2], f.BBox[0], f.BBox[3], f.BBox[1])
	}
	query += ` ORDER BY id`
	if f.Limit > 0 {
		query += fmt.Sprintf(` LIMIT %d OFFSET %d`, f.Limit, f.Offset)
	}
	return q.querySegments(ctx, query, args...)
}

func (q *sqliteQ) SegmentsIntersecting(ctx context.Context, b *geom.Bounds, excludeID int64) ([]model.PathSegment, error) {
	return q.querySegments(ctx,
		`SELECT `+segmentCols+` FROM segments
		 WHERE id != ? AND min_x <= ? AND max_x >= ? AND min_y <= ? AND max_y >= ?
		 ORDER BY id`,
		excludeID, b.Max(0), b.Min(0), b.Max(1), b.Min(1))
}

func (t *sqliteTx) InsertSegment(ctx context.Context, seg *model.PathSegment) error {
	now := time.Now().UTC()
	seg.CreatedAt, seg.UpdatedAt = now, now
	if seg.UUID == uuid.Nil {
		seg.UUID = uuid.New()
	}
	geomB, err := encodeGeom(seg.Geom)
	if err != nil {
		return err
	}
	cadB, err := encodeGeom(lineOrNil(seg.GeomCadastre))
	if err != nil {
		return err
	}
	minX, minY, maxX, maxY := bboxOf(seg.Geom)
	res, err := t.db.ExecContext(ctx,
		`INSERT INTO segments (uuid, name, comment, geom, geom_cadastre, length_3d,
			elevation_min, elevation_max, ascent, descent,
			min_x, min_y, max_x, max_y, created_at, updated_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		seg.UUID.String(), seg.Name, seg.Comment, geomB, cadB, seg.Length3D,
		seg.ElevationMin, seg.ElevationMax, seg.Ascent, seg.Descent,
		minX, minY, maxX, maxY, now, now)
	if err != nil {
		return eris.Wrap(err, "sqlite: insert segment")
	}
	seg.ID, err = res.LastInsertId()
	return eris.Wrap(err, "sqlite: insert segment id")
}

func (t *sqliteTx) UpdateSegment(ctx context.Context, seg *model.PathSegment) error {
	seg.UpdatedAt = time.Now().UTC()
	geomB, err := encodeGeom(seg.Geom)
	if err != nil {
		return err
	}
	cadB, err := encodeGeom(lineOrNil(seg.GeomCadastre))
	if err != nil {
		return err
	}
	minX, minY, maxX, maxY := bboxOf(seg.Geom)
	res, err := t.db.ExecContext(ctx,
		`UPDATE segments SET name = ?, comment = ?, geom = ?, geom_cadastre = ?,
			length_3d = ?, elevation_min = ?, elevation_max = ?, ascent = ?, descent = ?,
			min_x = ?, min_y = ?, max_x = ?, max_y = ?, updated_at = ?
		 WHERE id = ?`,
		seg.Name, seg.Comment, geomB, cadB, seg.Length3D,
		seg.ElevationMin, seg.ElevationMax, seg.Ascent, seg.Descent,
		minX, minY, maxX, maxY, seg.UpdatedAt, seg.ID)
	if err != nil {
		return eris.Wrapf(err, "sqlite: update segment %d", seg.ID)
	}
	return checkAffected(res, "segment", seg.ID)
}

func (t *sqliteTx) DeleteSegment(ctx context.Context, id int64) error {
	res, err := t.db.ExecContext(ctx, `DELETE FROM segments WHERE id = ?`, id)
	if err != nil {
		return eris.Wrapf(err, "sqlite: delete segment %d", id)
	}
	return checkAffected(res, "segment", id)
}

const eventCols = `id, uuid, kind, state, label, lateral_offset, length_3d,
	geom, created_at, updated_at`

func (q *sqliteQ) scanEvent(row interface{ Scan(...any) error }) (*model.Event, error) {
	var ev model.Event
	var uid, kind, state string
	var geomB []byte
	err := row.Scan(&ev.ID, &uid, &kind, &state, &ev.Label, &ev.LateralOffset,
		&ev.Length3D, &geomB, &ev.CreatedAt, &ev.UpdatedAt)
	if err != nil {
		return nil, err
	}
	ev.Kind, ev.State = model.EventKind(kind), model.EventState(state)
	if ev.UUID, err = uuid.Parse(uid); err != nil {
		return nil, eris.Wrap(err, "sqlite: parse event uuid")
	}
	if ev.Geom, err = decodeGeom(geomB); err != nil {
		return nil, err
	}
	return &ev, nil
}

func (q *sqliteQ) GetEvent(ctx context.Context, id int64) (*model.Event, error) {
	row := q.db.QueryRowContext(ctx,
		`SELECT `+eventCols+` FROM events WHERE id = ?`, id)
	ev, err := q.scanEvent(row)
	if err == sql.ErrNoRows {
		return nil, eris.Wrapf(ErrNotFound, "event %d", id)
	}
	if err != nil {
		return nil, eris.Wrapf(err, "sqlite: get event %d", id)
	}
	return ev, nil
}

func (q *sqliteQ) queryEvents(ctx context.Context, query string, args ...any) ([]model.Event, error) {
	rows, err := q.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: query events")
	}
	defer rows.Close()

	var out []model.Event
	for rows.Next() {
		ev, err := q.scanEvent(rows)
		if err != nil {
			return nil, eris.Wrap(err, "sqlite: scan event")
		}
		out = append(out, *ev)
	}
	return out, eris.Wrap(rows.Err(), "sqlite: events")
}

func (q *sqliteQ) ListEvents(ctx context.Context, f EventFilter) ([]model.Event, error) {
	query := `SELECT ` + eventCols + ` FROM events`
	var conds []string
	var args []any
	if f.Kind != "" {
		conds = append(conds, "kind = ?")
		args = append(args, string(f.Kind))
	}
	if f.State != "" {
		conds = append(conds, "state = ?")
		args = append(args, string(f.State))
	}
	if len(conds) > 0 {
		query += " WHERE " + strings.Join(conds, " AND ")
	}
	query += ` ORDER BY id`
	if f.Limit > 0 {
		query += fmt.Sprintf(` LIMIT %d OFFSET %d`, f.Limit, f.Offset)
	}
	return q.queryEvents(ctx, query, args...)
}

func (q *sqliteQ) EventsForSegment(ctx context.Context, segmentID int64) ([]model.Event, error) {
	return q.queryEvents(ctx,
		`SELECT DISTINCT e.id, e.uuid, e.kind, e.state, e.label, e.lateral_offset,
			e.length_3d, e.geom, e.created_at, e.updated_at
		 FROM events e JOIN segment_events l ON l.event_id = e.id
		 WHERE l.segment_id = ? ORDER BY e.id`, segmentID)
}

func (t *sqliteTx) InsertEvent(ctx context.Context, ev *model.Event) error {
	now := time.Now().UTC()
	ev.CreatedAt, ev.UpdatedAt = now, now
	if ev.UUID == uuid.Nil {
		ev.UUID = uuid.New()
	}
	if ev.State == "" {
		ev.State = model.StateActive
	}
	geomB, err := encodeGeom(ev.Geom)
	if err != nil {
		return err
	}
	res, err := t.db.ExecContext(ctx,
		`INSERT INTO events (uuid, kind, state, label, lateral_offset, length_3d,
			geom, created_at, updated_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		ev.UUID.String(), string(ev.Kind), string(ev.State), ev.Label,
		ev.LateralOffset, ev.Length3D, geomB, now, now)
	if err != nil {
		return eris.Wrap(err, "sqlite: insert event")
	}
	ev.ID, err = res.LastInsertId()
	return eris.Wrap(err, "sqlite: insert event id")
}

func (t *sqliteTx) UpdateEvent(ctx context.Context, ev *model.Event) error {
	ev.UpdatedAt = time.Now().UTC()
	geomB, err := encodeGeom(ev.Geom)
	if err != nil {
		return err
	}
	res, err := t.db.ExecContext(ctx,
		`UPDATE events SET kind = ?, state = ?, label = ?, lateral_offset = ?,
			length_3d = ?, geom = ?, updated_at = ?
		 WHERE id = ?`,
		string(ev.Kind), string(ev.State), ev.Label, ev.LateralOffset,
		ev.Length3D, geomB, ev.UpdatedAt, ev.ID)
	if err != nil {
		return eris.Wrapf(err, "sqlite: update event %d", ev.ID)
	}
	return checkAffected(res, "event", ev.ID)
}

func (t *sqliteTx) SetEventState(ctx context.Context, id int64, state model.EventState) error {
	res, err := t.db.ExecContext(ctx,
		`UPDATE events SET state = ?, updated_at = ? WHERE id = ?`,
		string(state), time.Now().UTC(), id)
	if err != nil {
		return eris.Wrapf(err, "sqlite: set event %d state", id)
	}
	return checkAffected(res, "event", id)
}

func (t *sqliteTx) DeleteEvents(ctx context.Context, ids []int64) error {
	if len(ids) == 0 {
		return nil
	}
	query := `DELETE FROM events WHERE id IN (` + placeholders(len(ids)) + `)`
	if _, err := t.db.ExecContext(ctx, query, int64Args(ids)...); err != nil {
		return eris.Wrap(err, "sqlite: delete events")
	}
	return nil
}

func (q *sqliteQ) queryLinks(ctx context.Context, query string, args ...any) ([]model.SegmentEventLink, error) {
	rows, err := q.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: query links")
	}
	defer rows.Close()

	var out []model.SegmentEventLink
	for rows.Next() {
		var l model.SegmentEventLink
		if err := rows.Scan(&l.ID, &l.SegmentID, &l.EventID, &l.StartPos, &l.EndPos); err != nil {
			return nil, eris.Wrap(err, "sqlite: scan link")
		}
		out = append(out, l)
	}
	return out, eris.Wrap(rows.Err(), "sqlite: links")
}

func (q *sqliteQ) LinksForSegment(ctx context.Context, segmentID int64) ([]model.SegmentEventLink, error) {
	return q.queryLinks(ctx,
		`SELECT id, segment_id, event_id, start_pos, end_pos
		 FROM segment_events WHERE segment_id = ? ORDER BY id`, segmentID)
}

func (q *sqliteQ) LinksForEvent(ctx context.Context, eventID int64) ([]model.SegmentEventLink, error) {
	return q.queryLinks(ctx,
		`SELECT id, segment_id, event_id, start_pos, end_pos
		 FROM segment_events WHERE event_id = ? ORDER BY id`, eventID)
}

func (q *sqliteQ) SystemEventIDs(ctx context.Context, segmentID int64) ([]int64, error) {
	rows, err := q.db.QueryContext(ctx,
		`SELECT DISTINCT e.id FROM events e
		 JOIN segment_events l ON l.event_id = e.id
		 WHERE l.segment_id = ? AND e.kind IN (?, ?, ?)`,
		segmentID, string(model.KindCityEdge), string(model.KindDistrictEdge),
		string(model.KindRestrictedAreaEdge))
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: system event ids")
	}
	defer rows.Close()

	var ids []int64
	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			return nil, eris.Wrap(err, "sqlite: scan event id")
		}
		ids = append(ids, id)
	}
	return ids, eris.Wrap(rows.Err(), "sqlite: system event ids")
}

func (t *sqliteTx) InsertLink(ctx context.Context, link *model.SegmentEventLink) error {
	link.Normalize()
	res, err := t.db.ExecContext(ctx,
		`INSERT INTO segment_events (segment_id, event_id, start_pos, end_pos)
		 VALUES (?, ?, ?, ?)`,
		link.SegmentID, link.EventID, link.StartPos, link.EndPos)
	if err != nil {
		return eris.Wrap(err, "sqlite: insert link")
	}
	link.ID, err = res.LastInsertId()
	return eris.Wrap(err, "sqlite: insert link id")
}

func (t *sqliteTx) UpdateLinkPositions(ctx context.Context, id int64, start, end float64) error {
	if start > end {
		start, end = end, start
	}
	res, err := t.db.ExecContext(ctx,
		`UPDATE segment_events SET start_pos = ?, end_pos = ? WHERE id = ?`,
		start, end, id)
	if err != nil {
		return eris.Wrapf(err, "sqlite: update link %d", id)
	}
	return checkAffected(res, "link", id)
}

func (t *sqliteTx) DeleteLinksBySegment(ctx context.Context, segmentID int64) error {
	_, err := t.db.ExecContext(ctx,
		`DELETE FROM segment_events WHERE segment_id = ?`, segmentID)
	return eris.Wrapf(err, "sqlite: delete links of segment %d", segmentID)
}

func (q *sqliteQ) scanArea(row interface{ Scan(...any) error }) (*model.AdminArea, error) {
	var area model.AdminArea
	var code sql.NullString
	var geomB []byte
	if err := row.Scan(&area.ID, &code, &area.Name, &geomB); err != nil {
		return nil, err
	}
	area.Code = code.String
	var err error
	if area.Geom, err = decodeMultiPolygon(geomB); err != nil {
		return nil, err
	}
	return &area, nil
}

func (q *sqliteQ) GetArea(ctx context.Context, layer model.Layer, id int64) (*model.AdminArea, error) {
	table, err := areaTable(layer)
	if err != nil {
		return nil, err
	}
	row := q.db.QueryRowContext(ctx,
		`SELECT id, code, name, geom FROM `+table+` WHERE id = ?`, id)
	area, err := q.scanArea(row)
	if err == sql.ErrNoRows {
		return nil, eris.Wrapf(ErrNotFound, "%s %d", table, id)
	}
	if err != nil {
		return nil, eris.Wrapf(err, "sqlite: get %s %d", table, id)
	}
	return area, nil
}

func (q *sqliteQ) queryAreas(ctx context.Context, query string, args ...any) ([]model.AdminArea, error) {
	rows, err := q.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: query areas")
	}
	defer rows.Close()

	var out []model.AdminArea
	for rows.Next() {
		area, err := q.scanArea(rows)
		if err != nil {
			return nil, eris.Wrap(err, "sqlite: scan area")
		}
		out = append(out, *area)
	}
	return out, eris.Wrap(rows.Err(), "sqlite: areas")
}

func (q *sqliteQ) ListAreas(ctx context.Context, layer model.Layer) ([]model.AdminArea, error) {
	table, err := areaTable(layer)
	if err != nil {
		return nil, err
	}
	return q.queryAreas(ctx, `SELECT id, code, name, geom FROM `+table+` ORDER BY id`)
}

func (q *sqliteQ) CountAreas(ctx context.Context, layer model.Layer) (int64, error) {
	table, err := areaTable(layer)
	if err != nil {
		return 0, err
	}
	var n int64
	err = q.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM `+table).Scan(&n)
	return n, eris.Wrapf(err, "sqlite: count %s", table)
}

func (q *sqliteQ) AreasIntersecting(ctx context.Context, layer model.Layer, b *geom.Bounds) ([]model.AdminArea, error) {
	table, err := areaTable(layer)
	if err != nil {
		return nil, err
	}
	return q.queryAreas(ctx,
		`SELECT id, code, name, geom FROM `+table+`
		 WHERE min_x <= ? AND max_x >= ? AND min_y <= ? AND max_y >= ?
		 ORDER BY id`,
		b.Max(0), b.Min(0), b.Max(1), b.Min(1))
}

func (q *sqliteQ) AreaIDsForEvent(ctx context.Context, layer model.Layer, eventID int64) ([]int64, error) {
	table, err := adminLinkTable(layer)
	if err != nil {
		return nil, err
	}
	rows, err := q.db.QueryContext(ctx,
		`SELECT area_id FROM `+table+` WHERE event_id = ? ORDER BY area_id`, eventID)
	if err != nil {
		return nil, eris.Wrapf(err, "sqlite: query %s", table)
	}
	defer rows.Close()

	var ids []int64
	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			return nil, eris.Wrapf(err, "sqlite: scan %s", table)
		}
		ids = append(ids, id)
	}
	return ids, eris.Wrapf(rows.Err(), "sqlite: %s", table)
}

func (t *sqliteTx) InsertArea(ctx context.Context, layer model.Layer, area *model.AdminArea) error {
	table, err := areaTable(layer)
	if err != nil {
		return err
	}
	geomB, err := encodeGeom(area.Geom)
	if err != nil {
		return err
	}
	minX, minY, maxX, maxY := bboxOf(area.Geom)
	res, err := t.db.ExecContext(ctx,
		`INSERT INTO `+table+` (code, name, geom, min_x, min_y, max_x, max_y)
		 VALUES (?, ?, ?, ?, ?, ?, ?)`,
		nullIfEmpty(area.Code), area.Name, geomB, minX, minY, maxX, maxY)
	if err != nil {
		return eris.Wrapf(err, "sqlite: insert %s", table)
	}
	area.ID, err = res.LastInsertId()
	return eris.Wrapf(err, "sqlite: insert %s id", table)
}

func (t *sqliteTx) UpsertAreas(ctx context.Context, layer model.Layer, areas []model.AdminArea) (int64, error) {
	table, err := areaTable(layer)
	if err != nil {
		return 0, err
	}
	var n int64
	for i := range areas {
		area := &areas[i]
		if area.Code == "" {
			return n, eris.Errorf("sqlite: upsert into %s needs a code (area %q)", table, area.Name)
		}
		geomB, err := encodeGeom(area.Geom)
		if err != nil {
			return n, err
		}
		minX, minY, maxX, maxY := bboxOf(area.Geom)
		_, err = t.db.ExecContext(ctx,
			`INSERT INTO `+table+` (code, name, geom, min_x, min_y, max_x, max_y)
			 VALUES (?, ?, ?, ?, ?, ?, ?)
			 ON CONFLICT(code) DO UPDATE SET
				name = excluded.name, geom = excluded.geom,
				min_x = excluded.min_x, min_y = excluded.min_y,
				max_x = excluded.max_x, max_y = excluded.max_y`,
			area.Code, area.Name, geomB, minX, minY, maxX, maxY)
		if err != nil {
			return n, eris.Wrapf(err, "sqlite: upsert %s %q", table, area.Code)
		}
		n++
	}
	return n, nil
}

func (t *sqliteTx) InsertAdminLink(ctx context.Context, layer model.Layer, link model.AdminLink) error {
	table, err := adminLinkTable(layer)
	if err != nil {
		return err
	}
	_, err = t.db.ExecContext(ctx,
		`INSERT INTO `+table+` (event_id, area_id) VALUES (?, ?)`,
		link.EventID, link.AreaID)
	return eris.Wrapf(err, "sqlite: insert %s", table)
}

func (q *sqliteQ) GetRoute(ctx context.Context, id int64) (*model.Route, error) {
	var rt model.Route
	err := q.db.QueryRowContext(ctx,
		`SELECT id, name, event_id, published, created_at, updated_at
		 FROM routes WHERE id = ?`, id).
		Scan(&rt.ID, &rt.Name, &rt.EventID, &rt.Published, &rt.CreatedAt, &rt.UpdatedAt)
	if err == sql.ErrNoRows {
		return nil, eris.Wrapf(ErrNotFound, "route %d", id)
	}
	if err != nil {
		return nil, eris.Wrapf(err, "sqlite: get route %d", id)
	}
	return &rt, nil
}

func (q *sqliteQ) ListRoutes(ctx context.Context, f RouteFilter) ([]model.Route, error) {
	query := `SELECT id, name, event_id, published, created_at, updated_at FROM routes`
	var args []any
	if f.Published != nil {
		query += ` WHERE published = ?`
		args = append(args, *f.Published)
	}
	query += ` ORDER BY id`
	rows, err := q.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: query routes")
	}
	defer rows.Close()

	var out []model.Route
	for rows.Next() {
		var rt model.Route
		if err := rows.Scan(&rt.ID, &rt.Name, &rt.EventID, &rt.Published,
			&rt.CreatedAt, &rt.UpdatedAt); err != nil {
			return nil, eris.Wrap(err, "sqlite: scan route")
		}
		out = append(out, rt)
	}
	return out, eris.Wrap(rows.Err(), "sqlite: routes")
}

func (t *sqliteTx) InsertRoute(ctx context.Context, rt *model.Route) error {
	now := time.Now().UTC()
	rt.CreatedAt, rt.UpdatedAt = now, now
	res, err := t.db.ExecContext(ctx,
		`INSERT INTO routes (name, event_id, published, created_at, updated_at)
		 VALUES (?, ?, ?, ?, ?)`,
		rt.Name, rt.EventID, rt.Published, now, now)
	if err != nil {
		return eris.Wrap(err, "sqlite: insert route")
	}
	rt.ID, err = res.LastInsertId()
	return eris.Wrap(err, "sqlite: insert route id")
}

func (t *sqliteTx) SetRoutePublished(ctx context.Context, id int64, published bool) error {
	res, err := t.db.ExecContext(ctx,
		`UPDATE routes SET published = ?, updated_at = ? WHERE id = ?`,
		published, time.Now().UTC(), id)
	if err != nil {
		return eris.Wrapf(err, "sqlite: publish route %d", id)
	}
	return checkAffected(res, "route", id)
}

func (t *sqliteTx) UnpublishRoutesForEvents(ctx context.Context, eventIDs []int64) (int64, error) {
	if len(eventIDs) == 0 {
		return 0, nil
	}
	query := `UPDATE routes SET published = 0, updated_at = ?
		 WHERE published = 1 AND event_id IN (` + placeholders(len(eventIDs)) + `)`
	args := append([]any{time.Now().UTC()}, int64Args(eventIDs)...)
	res, err := t.db.ExecContext(ctx, query, args...)
	if err != nil {
		return 0, eris.Wrap(err, "sqlite: unpublish routes")
	}
	n, err := res.RowsAffected()
	return n, eris.Wrap(err, "sqlite: unpublish routes affected")
}

func checkAffected(res sql.Result, entity string, id int64) error {
	n, err := res.RowsAffected()
	if err != nil {
		return eris.Wrapf(err, "sqlite: rows affected for %s %d", entity, id)
	}
	if n == 0 {
		return eris.Wrapf(ErrNotFound, "%s %d", entity, id)
	}
	return nil
}

func placeholders(n int) string {
	return strings.TrimSuffix(strings.Repeat("?, ", n), ", ")
}

func int64Args(ids []int64) []any {
	args := make([]any, len(ids))
	for i, id := range ids {
		args[i] = id
	}
	return args
}

func nullIfEmpty(s string) any {
	if s == "" {
		return nil
	}
	return s
}

// lineOrNil keeps a typed nil *LineString from reaching the encoder as a
// non-nil geom.T.
func lineOrNil(ls *geom.LineString) geom.T {
	if ls == nil {
		return nil
	}
	return ls
}
