package store

import (
	"context"
	"embed"
	"errors"
	"fmt"
	"io/fs"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rotisserie/eris"
	"github.com/twpayne/go-geom"
	"go.uber.org/zap"

	"github.com/trailworks/trailnet/internal/db"
	"github.com/trailworks/trailnet/internal/model"
)

//go:embed migrations/*.sql
var migrationFS embed.FS

// PostgresStore implements Store using pgx over PostGIS geometry columns.
type PostgresStore struct {
	postgresQ
	closeFn func()
}

// PoolConfig holds optional connection pool tuning parameters.
type PoolConfig struct {
	MaxConns int32 `yaml:"max_conns" mapstructure:"max_conns"`
	MinConns int32 `yaml:"min_conns" mapstructure:"min_conns"`
}

// NewPostgres creates a PostgresStore with a connection pool.
func NewPostgres(ctx context.Context, connString string, poolCfg *PoolConfig) (*PostgresStore, error) {
	pgxCfg, err := pgxpool.ParseConfig(connString)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: parse config")
	}

	maxConns := int32(10)
	minConns := int32(2)
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
	return &PostgresStore{postgresQ: postgresQ{pool: pool}, closeFn: pool.Close}, nil
}

// Pool returns the underlying database pool for subsystems that need direct
// query access (bulk layer loading).
func (s *PostgresStore) Pool() db.Pool {
	return s.pool
}

// Migrate applies all pending SQL migrations in lexicographic order, under
// an advisory lock so overlapping deploys cannot race.
func (s *PostgresStore) Migrate(ctx context.Context) error {
	log := zap.L().With(zap.String("component", "store.migrate"))

	if _, err := s.pool.Exec(ctx, "SELECT pg_advisory_lock(727144)"); err != nil {
		return eris.Wrap(err, "postgres: acquire migration advisory lock")
	}
	defer func() {
		if _, err := s.pool.Exec(ctx, "SELECT pg_advisory_unlock(727144)"); err != nil {
			log.Warn("release migration advisory lock", zap.Error(err))
		}
	}()

	if _, err := s.pool.Exec(ctx, `CREATE TABLE IF NOT EXISTS schema_migrations (
		filename   TEXT PRIMARY KEY,
		applied_at TIMESTAMPTZ NOT NULL
	)`); err != nil {
		return eris.Wrap(err, "postgres: create migration table")
	}

	entries, err := fs.ReadDir(migrationFS, "migrations")
	if err != nil {
		return eris.Wrap(err, "postgres: read migration dir")
	}
	sort.Slice(entries, func(i, j int) bool { return entries[i].Name() < entries[j].Name() })

	applied := map[string]bool{}
	rows, err := s.pool.Query(ctx, `SELECT filename FROM schema_migrations`)
	if err != nil {
		return eris.Wrap(err, "postgres: query applied migrations")
	}
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			rows.Close()
			return eris.Wrap(err, "postgres: scan applied migration")
		}
		applied[name] = true
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return eris.Wrap(err, "postgres: applied migrations")
	}

	for _, entry := range entries {
		name := entry.Name()
		if applied[name] {
			continue
		}
		data, err := migrationFS.ReadFile("migrations/" + name)
		if err != nil {
			return eris.Wrapf(err, "postgres: read migration %s", name)
		}
		log.Info("applying migration", zap.String("file", name))
		if _, err := s.pool.Exec(ctx, string(data)); err != nil {
			return eris.Wrapf(err, "postgres: apply migration %s", name)
		}
		if _, err := s.pool.Exec(ctx,
			`INSERT INTO schema_migrations (filename, applied_at) VALUES ($1, now())`,
			name); err != nil {
			return eris.Wrapf(err, "postgres: record migration %s", name)
		}
	}
	return nil
}

func (s *PostgresStore) Close() error {
	if s.closeFn != nil {
		s.closeFn()
	}
	return nil
}

// WithTx runs fn inside one transaction, committing on nil and rolling back
// on error.
func (s *PostgresStore) WithTx(ctx context.Context, fn func(Tx) error) error {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return eris.Wrap(err, "postgres: begin tx")
	}
	if err := fn(&postgresTx{postgresQ{pool: tx}}); err != nil {
		_ = tx.Rollback(ctx)
		return err
	}
	if err := tx.Commit(ctx); err != nil {
		return eris.Wrap(err, "postgres: commit tx")
	}
	return nil
}

// postgresQ implements Queries over either the pool or a transaction;
// pgx.Tx satisfies db.Pool, so the same query code serves both.
type postgresQ struct {
	pool db.Pool
}

// postgresTx adds the mutations to postgresQ.
type postgresTx struct {
	postgresQ
}

const pgSegmentCols = `id, uuid, name, comment, ST_AsEWKB(geom), ST_AsEWKB(geom_cadastre),
	length_3d, elevation_min, elevation_max, ascent, descent, created_at, updated_at`

func scanPgSegment(row pgx.Row) (*model.PathSegment, error) {
	var seg model.PathSegment
	var geomB, cadB []byte
	err := row.Scan(&seg.ID, &seg.UUID, &seg.Name, &seg.Comment, &geomB, &cadB,
		&seg.Length3D, &seg.ElevationMin, &seg.ElevationMax, &seg.Ascent,
		&seg.Descent, &seg.CreatedAt, &seg.UpdatedAt)
	if err != nil {
		return nil, err
	}
	if seg.Geom, err = decodeLineString(geomB); err != nil {
		return nil, err
	}
	if seg.GeomCadastre, err = decodeLineString(cadB); err != nil {
		return nil, err
	}
	return &seg, nil
}

func (q *postgresQ) GetSegment(ctx context.Context, id int64) (*model.PathSegment, error) {
	row := q.pool.QueryRow(ctx,
		`SELECT `+pgSegmentCols+` FROM segments WHERE id = $1`, id)
	seg, err := scanPgSegment(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, eris.Wrapf(ErrNotFound, "segment %d", id)
	}
	if err != nil {
		return nil, eris.Wrapf(err, "postgres: get segment %d", id)
	}
	return seg, nil
}

func (q *postgresQ) querySegments(ctx context.Context, query string, args ...any) ([]model.PathSegment, error) {
	rows, err := q.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: query segments")
	}
	defer rows.Close()

	var out []model.PathSegment
	for rows.Next() {
		seg, err := scanPgSegment(rows)
		if err != nil {
			return nil, eris.Wrap(err, "postgres: scan segment")
		}
		out = append(out, *seg)
	}
	return out, eris.Wrap(rows.Err(), "postgres: segments")
}

func (q *postgresQ) ListSegments(ctx context.Context, f SegmentFilter) ([]model.PathSegment, error) {
	query := `SELECT ` + pgSegmentCols + ` FROM segments`
	var args []any
	if f.BBox != nil {
		query += ` WHERE geom && ST_MakeEnvelope($1, $2, $3, $4)`
		args = append(args, f.BBox[0], f.BBox[1], f.BBox[2], f.BBox[3])
	}
	query += ` ORDER BY id`
	if f.Limit > 0 {
		query += fmt.Sprintf(` LIMIT %d OFFSET %d`, f.Limit, f.Offset)
	}
	return q.querySegments(ctx, query, args...)
}

func (q *postgresQ) SegmentsIntersecting(ctx context.Context, b *geom.Bounds, excludeID int64) ([]model.PathSegment, error) {
	return q.querySegments(ctx,
		`SELECT `+pgSegmentCols+` FROM segments
		 WHERE id != $1 AND geom && ST_MakeEnvelope($2, $3, $4, $5)
		 ORDER BY id`,
		excludeID, b.Min(0), b.Min(1), b.Max(0), b.Max(1))
}

func (t *postgresTx) InsertSegment(ctx context.Context, seg *model.PathSegment) error {
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
	err = t.pool.QueryRow(ctx,
		`INSERT INTO segments (uuid, name, comment, geom, geom_cadastre, length_3d,
			elevation_min, elevation_max, ascent, descent, created_at, updated_at)
		 VALUES ($1, $2, $3, ST_GeomFromEWKB($4), ST_GeomFromEWKB($5), $6, $7, $8, $9, $10, now(), now())
		 RETURNING id, created_at, updated_at`,
		seg.UUID, seg.Name, seg.Comment, geomB, cadB, seg.Length3D,
		seg.ElevationMin, seg.ElevationMax, seg.Ascent, seg.Descent).
		Scan(&seg.ID, &seg.CreatedAt, &seg.UpdatedAt)
	return eris.Wrap(err, "postgres: insert segment")
}

func (t *postgresTx) UpdateSegment(ctx context.Context, seg *model.PathSegment) error {
	geomB, err := encodeGeom(seg.Geom)
	if err != nil {
		return err
	}
	cadB, err := encodeGeom(lineOrNil(seg.GeomCadastre))
	if err != nil {
		return err
	}
	tag, err := t.pool.Exec(ctx,
		`UPDATE segments SET name = $1, comment = $2, geom = ST_GeomFromEWKB($3),
			geom_cadastre = ST_GeomFromEWKB($4), length_3d = $5, elevation_min = $6,
			elevation_max = $7, ascent = $8, descent = $9, updated_at = now()
		 WHERE id = $10`,
		seg.Name, seg.Comment, geomB, cadB, seg.Length3D, seg.ElevationMin,
		seg.ElevationMax, seg.Ascent, seg.Descent, seg.ID)
	if err != nil {
		return eris.Wrapf(err, "postgres: update segment %d", seg.ID)
	}
	return checkTag(tag.RowsAffected(), "segment", seg.ID)
}

func (t *postgresTx) DeleteSegment(ctx context.Context, id int64) error {
	tag, err := t.pool.Exec(ctx, `DELETE FROM segments WHERE id = $1`, id)
	if err != nil {
		return eris.Wrapf(err, "postgres: delete segment %d", id)
	}
	return checkTag(tag.RowsAffected(), "segment", id)
}

const pgEventCols = `id, uuid, kind, state, label, lateral_offset, length_3d,
	ST_AsEWKB(geom), created_at, updated_at`

func scanPgEvent(row pgx.Row) (*model.Event, error) {
	var ev model.Event
	var kind, state string
	var geomB []byte
	err := row.Scan(&ev.ID, &ev.UUID, &kind, &state, &ev.Label, &ev.LateralOffset,
		&ev.Length3D, &geomB, &ev.CreatedAt, &ev.UpdatedAt)
	if err != nil {
		return nil, err
	}
	ev.Kind, ev.State = model.EventKind(kind), model.EventState(state)
	if ev.Geom, err = decodeGeom(geomB); err != nil {
		return nil, err
	}
	return &ev, nil
}

func (q *postgresQ) GetEvent(ctx context.Context, id int64) (*model.Event, error) {
	row := q.pool.QueryRow(ctx, `SELECT `+pgEventCols+` FROM events WHERE id = $1`, id)
	ev, err := scanPgEvent(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, eris.Wrapf(ErrNotFound, "event %d", id)
	}
	if err != nil {
		return nil, eris.Wrapf(err, "postgres: get event %d", id)
	}
	return ev, nil
}

func (q *postgresQ) queryEvents(ctx context.Context, query string, args ...any) ([]model.Event, error) {
	rows, err := q.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: query events")
	}
	defer rows.Close()

	var out []model.Event
	for rows.Next() {
		ev, err := scanPgEvent(rows)
		if err != nil {
			return nil, eris.Wrap(err, "postgres: scan event")
		}
		out = append(out, *ev)
	}
	return out, eris.Wrap(rows.Err(), "postgres: events")
}

func (q *postgresQ) ListEvents(ctx context.Context, f EventFilter) ([]model.Event, error) {
	query := `SELECT ` + pgEventCols + ` FROM events`
	var conds []string
	var args []any
	if f.Kind != "" {
		args = append(args, string(f.Kind))
		conds = append(conds, fmt.Sprintf("kind = $%d", len(args)))
	}
	if f.State != "" {
		args = append(args, string(f.State))
		conds = append(conds, fmt.Sprintf("state = $%d", len(args)))
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

func (q *postgresQ) EventsForSegment(ctx context.Context, segmentID int64) ([]model.Event, error) {
	return q.queryEvents(ctx,
		`SELECT DISTINCT e.id, e.uuid, e.kind, e.state, e.label, e.lateral_offset,
			e.length_3d, ST_AsEWKB(e.geom), e.created_at, e.updated_at
		 FROM events e JOIN segment_events l ON l.event_id = e.id
		 WHERE l.segment_id = $1 ORDER BY e.id`, segmentID)
}

func (t *postgresTx) InsertEvent(ctx context.Context, ev *model.Event) error {
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
	err = t.pool.QueryRow(ctx,
		`INSERT INTO events (uuid, kind, state, label, lateral_offset, length_3d, geom, created_at, updated_at)
		 VALUES ($1, $2, $3, $4, $5, $6, ST_GeomFromEWKB($7), now(), now())
		 RETURNING id, created_at, updated_at`,
		ev.UUID, string(ev.Kind), string(ev.State), ev.Label, ev.LateralOffset,
		ev.Length3D, geomB).
		Scan(&ev.ID, &ev.CreatedAt, &ev.UpdatedAt)
	return eris.Wrap(err, "postgres: insert event")
}

func (t *postgresTx) UpdateEvent(ctx context.Context, ev *model.Event) error {
	geomB, err := encodeGeom(ev.Geom)
	if err != nil {
		return err
	}
	tag, err := t.pool.Exec(ctx,
		`UPDATE events SET kind = $1, state = $2, label = $3, lateral_offset = $4,
			length_3d = $5, geom = ST_GeomFromEWKB($6), updated_at = now()
		 WHERE id = $7`,
		string(ev.Kind), string(ev.State), ev.Label, ev.LateralOffset,
		ev.Length3D, geomB, ev.ID)
	if err != nil {
		return eris.Wrapf(err, "postgres: update event %d", ev.ID)
	}
	return checkTag(tag.RowsAffected(), "event", ev.ID)
}

func (t *postgresTx) SetEventState(ctx context.Context, id int64, state model.EventState) error {
	tag, err := t.pool.Exec(ctx,
		`UPDATE events SET state = $1, updated_at = now() WHERE id = $2`,
		string(state), id)
	if err != nil {
		return eris.Wrapf(err, "postgres: set event %d state", id)
	}
	return checkTag(tag.RowsAffected(), "event", id)
}

func (t *postgresTx) DeleteEvents(ctx context.Context, ids []int64) error {
	if len(ids) == 0 {
		return nil
	}
	_, err := t.pool.Exec(ctx, `DELETE FROM events WHERE id = ANY($1)`, ids)
	return eris.Wrap(err, "postgres: delete events")
}

func (q *postgresQ) queryLinks(ctx context.Context, query string, args ...any) ([]model.SegmentEventLink, error) {
	rows, err := q.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: query links")
	}
	defer rows.Close()

	var out []model.SegmentEventLink
	for rows.Next() {
		var l model.SegmentEventLink
		if err := rows.Scan(&l.ID, &l.SegmentID, &l.EventID, &l.StartPos, &l.EndPos); err != nil {
			return nil, eris.Wrap(err, "postgres: scan link")
		}
		out = append(out, l)
	}
	return out, eris.Wrap(rows.Err(), "postgres: links")
}

func (q *postgresQ) LinksForSegment(ctx context.Context, segmentID int64) ([]model.SegmentEventLink, error) {
	return q.queryLinks(ctx,
		`SELECT id, segment_id, event_id, start_pos, end_pos
		 FROM segment_events WHERE segment_id = $1 ORDER BY id`, segmentID)
}

func (q *postgresQ) LinksForEvent(ctx context.Context, eventID int64) ([]model.SegmentEventLink, error) {
	return q.queryLinks(ctx,
		`SELECT id, segment_id, event_id, start_pos, end_pos
		 FROM segment_events WHERE event_id = $1 ORDER BY id`, eventID)
}

func (q *postgresQ) SystemEventIDs(ctx context.Context, segmentID int64) ([]int64, error) {
	rows, err := q.pool.Query(ctx,
		`SELECT DISTINCT e.id FROM events e
		 JOIN segment_events l ON l.event_id = e.id
		 WHERE l.segment_id = $1 AND e.kind = ANY($2)`,
		segmentID, []string{string(model.KindCityEdge), string(model.KindDistrictEdge),
			string(model.KindRestrictedAreaEdge)})
	if err != nil {
		return nil, eris.Wrap(err, "postgres: system event ids")
	}
	defer rows.Close()

	var ids []int64
	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			return nil, eris.Wrap(err, "postgres: scan event id")
		}
		ids = append(ids, id)
	}
	return ids, eris.Wrap(rows.Err(), "postgres: system event ids")
}

func (t *postgresTx) InsertLink(ctx context.Context, link *model.SegmentEventLink) error {
	link.Normalize()
	err := t.pool.QueryRow(ctx,
		`INSERT INTO segment_events (segment_id, event_id, start_pos, end_pos)
		 VALUES ($1, $2, $3, $4) RETURNING id`,
		link.SegmentID, link.EventID, link.StartPos, link.EndPos).
		Scan(&link.ID)
	return eris.Wrap(err, "postgres: insert link")
}

func (t *postgresTx) UpdateLinkPositions(ctx context.Context, id int64, start, end float64) error {
	if start > end {
		start, end = end, start
	}
	tag, err := t.pool.Exec(ctx,
		`UPDATE segment_events SET start_pos = $1, end_pos = $2 WHERE id = $3`,
		start, end, id)
	if err != nil {
		return eris.Wrapf(err, "postgres: update link %d", id)
	}
	return checkTag(tag.RowsAffected(), "link", id)
}

func (t *postgresTx) DeleteLinksBySegment(ctx context.Context, segmentID int64) error {
	_, err := t.pool.Exec(ctx,
		`DELETE FROM segment_events WHERE segment_id = $1`, segmentID)
	return eris.Wrapf(err, "postgres: delete links of segment %d", segmentID)
}

func scanPgArea(row pgx.Row) (*model.AdminArea, error) {
	var area model.AdminArea
	var code *string
	var geomB []byte
	if err := row.Scan(&area.ID, &code, &area.Name, &geomB); err != nil {
		return nil, err
	}
	if code != nil {
		area.Code = *code
	}
	var err error
	if area.Geom, err = decodeMultiPolygon(geomB); err != nil {
		return nil, err
	}
	return &area, nil
}

func (q *postgresQ) GetArea(ctx context.Context, layer model.Layer, id int64) (*model.AdminArea, error) {
	table, err := areaTable(layer)
	if err != nil {
		return nil, err
	}
	row := q.pool.QueryRow(ctx,
		`SELECT id, code, name, ST_AsEWKB(geom) FROM `+table+` WHERE id = $1`, id)
	area, err := scanPgArea(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, eris.Wrapf(ErrNotFound, "%s %d", table, id)
	}
	if err != nil {
		return nil, eris.Wrapf(err, "postgres: get %s %d", table, id)
	}
	return area, nil
}

func (q *postgresQ) queryAreas(ctx context.Context, query string, args ...any) ([]model.AdminArea, error) {
	rows, err := q.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: query areas")
	}
	defer rows.Close()

	var out []model.AdminArea
	for rows.Next() {
		area, err := scanPgArea(rows)
		if err != nil {
			return nil, eris.Wrap(err, "postgres: scan area")
		}
		out = append(out, *area)
	}
	return out, eris.Wrap(rows.Err(), "postgres: areas")
}

func (q *postgresQ) ListAreas(ctx context.Context, layer model.Layer) ([]model.AdminArea, error) {
	table, err := areaTable(layer)
	if err != nil {
		return nil, err
	}
	return q.queryAreas(ctx,
		`SELECT id, code, name, ST_AsEWKB(geom) FROM `+table+` ORDER BY id`)
}

func (q *postgresQ) CountAreas(ctx context.Context, layer model.Layer) (int64, error) {
	table, err := areaTable(layer)
	if err != nil {
		return 0, err
	}
	var n int64
	err = q.pool.QueryRow(ctx, `SELECT COUNT(*) FROM `+table).Scan(&n)
	return n, eris.Wrapf(err, "postgres: count %s", table)
}

func (q *postgresQ) AreasIntersecting(ctx context.Context, layer model.Layer, b *geom.Bounds) ([]model.AdminArea, error) {
	table, err := areaTable(layer)
	if err != nil {
		return nil, err
	}
	return q.queryAreas(ctx,
		`SELECT id, code, name, ST_AsEWKB(geom) FROM `+table+`
		 WHERE geom && ST_MakeEnvelope($1, $2, $3, $4) ORDER BY id`,
		b.Min(0), b.Min(1), b.Max(0), b.Max(1))
}

func (q *postgresQ) AreaIDsForEvent(ctx context.Context, layer model.Layer, eventID int64) ([]int64, error) {
	table, err := adminLinkTable(layer)
	if err != nil {
		return nil, err
	}
	rows, err := q.pool.Query(ctx,
		`SELECT area_id FROM `+table+` WHERE event_id = $1 ORDER BY area_id`, eventID)
	if err != nil {
		return nil, eris.Wrapf(err, "postgres: query %s", table)
	}
	defer rows.Close()

	var ids []int64
	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			return nil, eris.Wrapf(err, "postgres: scan %s", table)
		}
		ids = append(ids, id)
	}
	return ids, eris.Wrapf(rows.Err(), "postgres: %s", table)
}

func (t *postgresTx) InsertArea(ctx context.Context, layer model.Layer, area *model.AdminArea) error {
	table, err := areaTable(layer)
	if err != nil {
		return err
	}
	geomB, err := encodeGeom(area.Geom)
	if err != nil {
		return err
	}
	err = t.pool.QueryRow(ctx,
		`INSERT INTO `+table+` (code, name, geom) VALUES (NULLIF($1, ''), $2, ST_GeomFromEWKB($3)) RETURNING id`,
		area.Code, area.Name, geomB).
		Scan(&area.ID)
	return eris.Wrapf(err, "postgres: insert %s", table)
}

// UpsertAreas bulk-loads a layer through a temp-table COPY upsert keyed on
// the area code. An empty layer table takes a straight COPY instead, since
// no row can conflict on a first load.
func (t *postgresTx) UpsertAreas(ctx context.Context, layer model.Layer, areas []model.AdminArea) (int64, error) {
	table, err := areaTable(layer)
	if err != nil {
		return 0, err
	}
	rows := make([][]any, 0, len(areas))
	for i := range areas {
		area := &areas[i]
		if area.Code == "" {
			return 0, eris.Errorf("postgres: upsert into %s needs a code (area %q)", table, area.Name)
		}
		geomB, err := encodeGeom(area.Geom)
		if err != nil {
			return 0, err
		}
		rows = append(rows, []any{area.Code, area.Name, geomB})
	}
	cols := []string{"code", "name", "geom"}
	existing, err := t.CountAreas(ctx, layer)
	if err != nil {
		return 0, err
	}
	if existing == 0 {
		n, err := db.CopyFrom(ctx, t.pool, table, cols, rows)
		return n, eris.Wrapf(err, "postgres: load %s", table)
	}
	n, err := db.BulkUpsert(ctx, t.pool, db.UpsertConfig{
		Table:        table,
		Columns:      cols,
		ConflictKeys: []string{"code"},
	}, rows)
	return n, eris.Wrapf(err, "postgres: upsert %s", table)
}

func (t *postgresTx) InsertAdminLink(ctx context.Context, layer model.Layer, link model.AdminLink) error {
	table, err := adminLinkTable(layer)
	if err != nil {
		return err
	}
	_, err = t.pool.Exec(ctx,
		`INSERT INTO `+table+` (event_id, area_id) VALUES ($1, $2)`,
		link.EventID, link.AreaID)
	return eris.Wrapf(err, "postgres: insert %s", table)
}

func (q *postgresQ) GetRoute(ctx context.Context, id int64) (*model.Route, error) {
	var rt model.Route
	err := q.pool.QueryRow(ctx,
		`SELECT id, name, event_id, published, created_at, updated_at
		 FROM routes WHERE id = $1`, id).
		Scan(&rt.ID, &rt.Name, &rt.EventID, &rt.Published, &rt.CreatedAt, &rt.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, eris.Wrapf(ErrNotFound, "route %d", id)
	}
	if err != nil {
		return nil, eris.Wrapf(err, "postgres: get route %d", id)
	}
	return &rt, nil
}

func (q *postgresQ) ListRoutes(ctx context.Context, f RouteFilter) ([]model.Route, error) {
	query := `SELECT id, name, event_id, published, created_at, updated_at FROM routes`
	var args []any
	if f.Published != nil {
		query += ` WHERE published = $1`
		args = append(args, *f.Published)
	}
	query += ` ORDER BY id`
	rows, err := q.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: query routes")
	}
	defer rows.Close()

	var out []model.Route
	for rows.Next() {
		var rt model.Route
		if err := rows.Scan(&rt.ID, &rt.Name, &rt.EventID, &rt.Published,
			&rt.CreatedAt, &rt.UpdatedAt); err != nil {
			return nil, eris.Wrap(err, "postgres: scan route")
		}
		out = append(out, rt)
	}
	return out, eris.Wrap(rows.Err(), "postgres: routes")
}

func (t *postgresTx) InsertRoute(ctx context.Context, rt *model.Route) error {
	err := t.pool.QueryRow(ctx,
		`INSERT INTO routes (name, event_id, published, created_at, updated_at)
		 VALUES ($1, $2, $3, now(), now()) RETURNING id, created_at, updated_at`,
		rt.Name, rt.EventID, rt.Published).
		Scan(&rt.ID, &rt.CreatedAt, &rt.UpdatedAt)
	return eris.Wrap(err, "postgres: insert route")
}

func (t *postgresTx) SetRoutePublished(ctx context.Context, id int64, published bool) error {
	tag, err := t.pool.Exec(ctx,
		`UPDATE routes SET published = $1, updated_at = now() WHERE id = $2`,
		published, id)
	if err != nil {
		return eris.Wrapf(err, "postgres: publish route %d", id)
	}
	return checkTag(tag.RowsAffected(), "route", id)
}

func (t *postgresTx) UnpublishRoutesForEvents(ctx context.Context, eventIDs []int64) (int64, error) {
	if len(eventIDs) == 0 {
		return 0, nil
	}
	tag, err := t.pool.Exec(ctx,
		`UPDATE routes SET published = false, updated_at = now()
		 WHERE published AND event_id = ANY($1)`, eventIDs)
	if err != nil {
		return 0, eris.Wrap(err, "postgres: unpublish routes")
	}
	return tag.RowsAffected(), nil
}

func checkTag(n int64, entity string, id int64) error {
	if n == 0 {
		return eris.Wrapf(ErrNotFound, "%s %d", entity, id)
	}
	return nil
}
