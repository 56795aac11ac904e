// Package store holds the storage backends behind the match engine ports.
package store

import (
	"context"
	"database/sql"
	_ "embed"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/lib/pq"

	"gitea.kood.tech/petrkubec/match-engine/logger"
	"gitea.kood.tech/petrkubec/match-engine/match"
)

//go:embed schema.sql
var schema string

// pq error codes
const (
	uniqueViolation     = "23505"
	foreignKeyViolation = "23503"
)

// PoolConfig sizes the database/sql connection pool.
type PoolConfig struct {
	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxLifetime time.Duration
}

// Open connects to Postgres and verifies the connection.
func Open(ctx context.Context, dsn string, pool PoolConfig) (*sql.DB, error) {
	db, err := sql.Open("postgres", dsn)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	if pool.MaxOpenConns > 0 {
		db.SetMaxOpenConns(pool.MaxOpenConns)
	}
	if pool.MaxIdleConns > 0 {
		db.SetMaxIdleConns(pool.MaxIdleConns)
	}
	if pool.ConnMaxLifetime > 0 {
		db.SetConnMaxLifetime(pool.ConnMaxLifetime)
	}

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := db.PingContext(pingCtx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("cannot reach the database: %w", err)
	}
	return db, nil
}

// Migrate applies the embedded schema. It is safe to run repeatedly.
func Migrate(ctx context.Context, db *sql.DB) error {
	if _, err := db.ExecContext(ctx, schema); err != nil {
		return fmt.Errorf("apply schema: %w", err)
	}
	return nil
}

// Postgres implements the engine ports on database/sql with lib/pq.
type Postgres struct {
	db  *sql.DB
	log *logger.Logger
}

var _ match.Store = (*Postgres)(nil)
var _ match.BatchAttributeSource = (*Postgres)(nil)

func NewPostgres(db *sql.DB, log *logger.Logger) *Postgres {
	if log == nil {
		log = logger.NewNop()
	}
	return &Postgres{db: db, log: log.With("component", "postgres-store")}
}

// DB exposes the handle for health checks.
func (p *Postgres) DB() *sql.DB {
	return p.db
}

const userColumns = `id, pseudonym, age_range, latitude, longitude, is_active`

func scanUser(row rowScanner) (*match.UserRecord, error) {
	var (
		u        match.UserRecord
		lat, lon sql.NullFloat64
	)
	if err := row.Scan(&u.ID, &u.Pseudonym, &u.AgeRange, &lat, &lon, &u.Active); err != nil {
		return nil, err
	}
	if lat.Valid && lon.Valid {
		u.Location = &match.GeoPoint{Lat: lat.Float64, Lon: lon.Float64}
	}
	return &u, nil
}

func (p *Postgres) GetUserAttributes(ctx context.Context, id string) (*match.UserRecord, error) {
	u, err := scanUser(p.db.QueryRowContext(ctx, `SELECT `+userColumns+` FROM users WHERE id = $1`, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("%w: user %s", match.ErrNotFound, id)
		}
		return nil, fmt.Errorf("load user %s: %w", id, err)
	}
	return u, nil
}

// GetTagSet joins from users so an unknown id is told apart from a user with no tags.
func (p *Postgres) GetTagSet(ctx context.Context, id string) ([]match.UserTag, error) {
	rows, err := p.db.QueryContext(ctx, `
		SELECT ut.tag_id, ut.preference
		FROM users u
		LEFT JOIN user_tags ut ON ut.user_id = u.id
		WHERE u.id = $1
		ORDER BY ut.tag_id
	`, id)
	if err != nil {
		return nil, fmt.Errorf("load tags for %s: %w", id, err)
	}
	defer rows.Close()

	found := false
	tags := []match.UserTag{}
	for rows.Next() {
		found = true
		var tagID, pref sql.NullString
		if err := rows.Scan(&tagID, &pref); err != nil {
			return nil, fmt.Errorf("scan tag for %s: %w", id, err)
		}
		if tagID.Valid {
			tags = append(tags, match.UserTag{TagID: tagID.String, Preference: match.TagPreference(pref.String)})
		}
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("load tags for %s: %w", id, err)
	}
	if !found {
		return nil, fmt.Errorf("%w: user %s", match.ErrNotFound, id)
	}
	return tags, nil
}

func (p *Postgres) GetPersonality(ctx context.Context, id string) (*match.PersonalityProfile, error) {
	var (
		archetype sql.NullString
		traits    []byte
		dom, sub  sql.NullInt64
	)
	err := p.db.QueryRowContext(ctx, `
		SELECT pp.archetype, pp.traits, pp.dominance_level, pp.submission_level
		FROM users u
		LEFT JOIN personality_profiles pp ON pp.user_id = u.id
		WHERE u.id = $1
	`, id).Scan(&archetype, &traits, &dom, &sub)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("%w: user %s", match.ErrNotFound, id)
		}
		return nil, fmt.Errorf("load personality for %s: %w", id, err)
	}
	if !archetype.Valid {
		return nil, nil
	}
	return buildProfile(archetype.String, traits, dom.Int64, sub.Int64)
}

func buildProfile(archetype string, traits []byte, dom, sub int64) (*match.PersonalityProfile, error) {
	prof := &match.PersonalityProfile{
		Archetype:       archetype,
		DominanceLevel:  int(dom),
		SubmissionLevel: int(sub),
	}
	if len(traits) > 0 {
		if err := json.Unmarshal(traits, &prof.Traits); err != nil {
			return nil, fmt.Errorf("decode traits: %w", err)
		}
	}
	return prof, nil
}

// AttributesByIDs loads users, tags and profiles for a batch in three queries.
func (p *Postgres) AttributesByIDs(ctx context.Context, ids []string) (map[string]*match.Attributes, error) {
	out := make(map[string]*match.Attributes, len(ids))
	if len(ids) == 0 {
		return out, nil
	}

	rows, err := p.db.QueryContext(ctx, `SELECT `+userColumns+` FROM users WHERE id = ANY($1::uuid[])`, pq.Array(ids))
	if err != nil {
		return nil, fmt.Errorf("batch load users: %w", err)
	}
	for rows.Next() {
		u, err := scanUser(rows)
		if err != nil {
			rows.Close()
			return nil, fmt.Errorf("batch scan user: %w", err)
		}
		out[u.ID] = &match.Attributes{UserRecord: *u, Tags: []match.UserTag{}}
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("batch load users: %w", err)
	}
	if len(out) == 0 {
		return out, nil
	}

	rows, err = p.db.QueryContext(ctx, `
		SELECT user_id, tag_id, preference
		FROM user_tags
		WHERE user_id = ANY($1::uuid[])
		ORDER BY user_id, tag_id
	`, pq.Array(ids))
	if err != nil {
		return nil, fmt.Errorf("batch load tags: %w", err)
	}
	for rows.Next() {
		var userID, tagID, pref string
		if err := rows.Scan(&userID, &tagID, &pref); err != nil {
			rows.Close()
			return nil, fmt.Errorf("batch scan tag: %w", err)
		}
		if a, ok := out[userID]; ok {
			a.Tags = append(a.Tags, match.UserTag{TagID: tagID, Preference: match.TagPreference(pref)})
		}
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("batch load tags: %w", err)
	}

	rows, err = p.db.QueryContext(ctx, `
		SELECT user_id, archetype, traits, dominance_level, submission_level
		FROM personality_profiles
		WHERE user_id = ANY($1::uuid[])
	`, pq.Array(ids))
	if err != nil {
		return nil, fmt.Errorf("batch load personalities: %w", err)
	}
	defer rows.Close()
	for rows.Next() {
		var (
			userID, archetype string
			traits            []byte
			dom, sub          int64
		)
		if err := rows.Scan(&userID, &archetype, &traits, &dom, &sub); err != nil {
			return nil, fmt.Errorf("batch scan personality: %w", err)
		}
		prof, err := buildProfile(archetype, traits, dom, sub)
		if err != nil {
			return nil, fmt.Errorf("personality for %s: %w", userID, err)
		}
		if a, ok := out[userID]; ok {
			a.Personality = prof
		}
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("batch load personalities: %w", err)
	}
	return out, nil
}

// QueryActiveUsersInBoundingBox pushes every filter into SQL. The geo clause is
// switched off with $2 when the requester has no coordinates.
func (p *Postgres) QueryActiveUsersInBoundingBox(ctx context.Context, q match.BoundingBoxQuery) ([]match.UserRecord, error) {
	exclude := make([]string, 0, len(q.Exclude))
	for id := range q.Exclude {
		exclude = append(exclude, id)
	}

	var (
		geo                            bool
		minLat, maxLat, minLon, maxLon float64
	)
	if q.Center != nil {
		geo = true
		minLat, maxLat = q.Center.Lat-q.DeltaDeg, q.Center.Lat+q.DeltaDeg
		minLon, maxLon = q.Center.Lon-q.DeltaDeg, q.Center.Lon+q.DeltaDeg
	}
	var limit sql.NullInt64
	if q.Limit > 0 {
		limit = sql.NullInt64{Int64: int64(q.Limit), Valid: true}
	}

	rows, err := p.db.QueryContext(ctx, `
		SELECT `+userColumns+`
		FROM users
		WHERE is_active
		  AND NOT (id = ANY($1::uuid[]))
		  AND (
		        NOT $2::boolean
		        OR (latitude BETWEEN $3 AND $4 AND longitude BETWEEN $5 AND $6)
		  )
		ORDER BY id
		LIMIT $7
	`, pq.Array(exclude), geo, minLat, maxLat, minLon, maxLon, limit)
	if err != nil {
		return nil, fmt.Errorf("query candidates: %w", err)
	}
	defer rows.Close()

	var out []match.UserRecord
	for rows.Next() {
		u, err := scanUser(rows)
		if err != nil {
			return nil, fmt.Errorf("scan candidate: %w", err)
		}
		out = append(out, *u)
	}
	return out, rows.Err()
}

const matchColumns = `id, user_a, user_b, compatibility_score, status, created_at`

func (p *Postgres) FindMatchRecordsInvolving(ctx context.Context, userID string) ([]match.MatchRecord, error) {
	rows, err := p.db.QueryContext(ctx, `
		SELECT `+matchColumns+`
		FROM matches
		WHERE user_a = $1 OR user_b = $1
	`, userID)
	if err != nil {
		return nil, fmt.Errorf("find matches for %s: %w", userID, err)
	}
	return collectMatches(rows)
}

func (p *Postgres) ListMatchRecords(ctx context.Context, userID string, page match.Page) ([]match.MatchRecord, error) {
	rows, err := p.db.QueryContext(ctx, `
		SELECT `+matchColumns+`
		FROM matches
		WHERE user_a = $1 OR user_b = $1
		ORDER BY compatibility_score DESC, created_at DESC, id ASC
		LIMIT $2 OFFSET $3
	`, userID, page.Limit, page.Offset)
	if err != nil {
		return nil, fmt.Errorf("list matches for %s: %w", userID, err)
	}
	return collectMatches(rows)
}

func collectMatches(rows *sql.Rows) ([]match.MatchRecord, error) {
	defer rows.Close()
	out := []match.MatchRecord{}
	for rows.Next() {
		rec, err := scanMatch(rows)
		if err != nil {
			return nil, fmt.Errorf("scan match: %w", err)
		}
		out = append(out, *rec)
	}
	return out, rows.Err()
}

func (p *Postgres) GetMatchRecord(ctx context.Context, id string) (*match.MatchRecord, error) {
	rec, err := scanMatch(p.db.QueryRowContext(ctx, `SELECT `+matchColumns+` FROM matches WHERE id = $1`, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("%w: match %s", match.ErrNotFound, id)
		}
		return nil, fmt.Errorf("load match %s: %w", id, err)
	}
	return rec, nil
}

// InsertMatchRecordIfAbsent locks any existing row for the pair, then inserts
// with ON CONFLICT DO NOTHING so a concurrent insert of the reversed pair
// loses on the pair index instead of creating a second row.
func (p *Postgres) InsertMatchRecordIfAbsent(ctx context.Context, rec *match.MatchRecord) (*match.MatchRecord, error) {
	var created *match.MatchRecord
	err := withTx(ctx, p.db, func(tx *sql.Tx) error {
		existing, err := loadPairForUpdate(ctx, tx, rec.UserA, rec.UserB)
		if err != nil {
			return err
		}
		if existing != nil {
			return fmt.Errorf("%w: pair %s/%s (match %s)", match.ErrAlreadyExists, rec.UserA, rec.UserB, existing.ID)
		}

		row := tx.QueryRowContext(ctx, `
			INSERT INTO matches (id, user_a, user_b, compatibility_score, status, created_at)
			VALUES ($1, $2, $3, $4, $5, $6)
			ON CONFLICT DO NOTHING
			RETURNING `+matchColumns,
			rec.ID, rec.UserA, rec.UserB, rec.CompatibilityScore, rec.Status, rec.CreatedAt)
		created, err = scanMatch(row)
		if errors.Is(err, sql.ErrNoRows) {
			return fmt.Errorf("%w: pair %s/%s", match.ErrAlreadyExists, rec.UserA, rec.UserB)
		}
		return err
	})
	if err != nil {
		var pqErr *pq.Error
		if errors.As(err, &pqErr) {
			switch string(pqErr.Code) {
			case uniqueViolation:
				return nil, fmt.Errorf("%w: %s", match.ErrAlreadyExists, pqErr.Message)
			case foreignKeyViolation:
				return nil, fmt.Errorf("%w: user %s or %s", match.ErrNotFound, rec.UserA, rec.UserB)
			}
		}
		if errors.Is(err, match.ErrAlreadyExists) {
			return nil, err
		}
		return nil, fmt.Errorf("insert match: %w", err)
	}
	return created, nil
}

func (p *Postgres) DeleteMatchRecord(ctx context.Context, id string) error {
	res, err := p.db.ExecContext(ctx, `DELETE FROM matches WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("delete match %s: %w", id, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("delete match %s: %w", id, err)
	}
	if n == 0 {
		return fmt.Errorf("%w: match %s", match.ErrNotFound, id)
	}
	return nil
}
