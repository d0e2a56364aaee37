package store

import (
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/danielpatrickdp/segment-steward/internal/segment"
	_ "modernc.org/sqlite"
)

// #region schema
const schema = `
CREATE TABLE IF NOT EXISTS segments (
	id                  TEXT PRIMARY KEY,
	kind                TEXT NOT NULL,
	title               TEXT NOT NULL DEFAULT '',
	rigidity            TEXT NOT NULL DEFAULT 'soft',
	start_at            TEXT NOT NULL,
	end_at              TEXT NOT NULL,
	tone_at_start       TEXT,
	start_confirmed_at  TEXT,
	midpoint_status     TEXT,
	end_status          TEXT,
	hold_status         TEXT,
	reason_code         TEXT,
	reschedule_target   TEXT,
	created_at          TEXT NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_segments_window ON segments(end_status, start_at, end_at);

CREATE TABLE IF NOT EXISTS day_state (
	day                      TEXT PRIMARY KEY,
	current_tone             TEXT NOT NULL DEFAULT 'gentle',
	consecutive_misses       INTEGER NOT NULL DEFAULT 0,
	consecutive_completions  INTEGER NOT NULL DEFAULT 0,
	tone_cooldown_until      TEXT,
	recovery_blocks_used     INTEGER NOT NULL DEFAULT 0
);

CREATE TABLE IF NOT EXISTS decision_log (
	id          INTEGER PRIMARY KEY AUTOINCREMENT,
	segment_id  TEXT NOT NULL,
	event       TEXT NOT NULL,
	action      TEXT NOT NULL,
	tone        TEXT NOT NULL,
	reason      TEXT,
	created_at  TEXT NOT NULL
);
`

// #endregion schema

// #region store-struct
// Store persists segments, day state, and the decision log in SQLite.
type Store struct {
	db *sql.DB
}

// #endregion store-struct

// #region constructor
// NewStore opens a SQLite database and runs migrations.
func NewStore(dbPath string) (*Store, error) {
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open db: %w", err)
	}
	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		return nil, fmt.Errorf("pragma: %w", err)
	}
	if _, err := db.Exec(schema); err != nil {
		return nil, fmt.Errorf("migrate: %w", err)
	}
	return &Store{db: db}, nil
}

// #endregion constructor

// #region close
// Close closes the underlying database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

// #endregion close

// #region db-accessor
// DB returns the underlying *sql.DB for use by other packages (e.g. logging).
func (s *Store) DB() *sql.DB {
	return s.db
}

// #endregion db-accessor

// #region insert
// InsertSegment stores a new segment. CreatedAt defaults to now when zero.
func (s *Store) InsertSegment(seg segment.Segment) error {
	if seg.CreatedAt.IsZero() {
		seg.CreatedAt = time.Now().UTC()
	}
	_, err := s.db.Exec(
		`INSERT INTO segments (id, kind, title, rigidity, start_at, end_at, tone_at_start,
		                       start_confirmed_at, midpoint_status, end_status, hold_status,
		                       reason_code, reschedule_target, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		seg.ID, string(seg.Kind), seg.Title, string(seg.Rigidity),
		formatTime(seg.StartAt), formatTime(seg.EndAt),
		nullIfEmpty(string(seg.ToneAtStart)),
		nullableTime(seg.StartConfirmedAt),
		nullIfEmpty(string(seg.MidpointStatus)),
		nullIfEmpty(string(seg.EndStatus)),
		nullIfEmpty(string(seg.HoldStatus)),
		nullIfEmpty(seg.ReasonCode),
		nullableTime(seg.RescheduleTarget),
		formatTime(seg.CreatedAt),
	)
	if err != nil {
		return fmt.Errorf("insert segment %s: %w", seg.ID, err)
	}
	return nil
}

// UpsertSegment inserts a segment or, when the id already exists, refreshes
// its calendar-derived fields without touching stewardship markers. Used by
// the calendar reconcile pass.
func (s *Store) UpsertSegment(seg segment.Segment) error {
	if seg.CreatedAt.IsZero() {
		seg.CreatedAt = time.Now().UTC()
	}
	_, err := s.db.Exec(
		`INSERT INTO segments (id, kind, title, rigidity, start_at, end_at, tone_at_start, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		 ON CONFLICT(id) DO UPDATE SET
		   title    = excluded.title,
		   rigidity = excluded.rigidity,
		   start_at = excluded.start_at,
		   end_at   = excluded.end_at`,
		seg.ID, string(seg.Kind), seg.Title, string(seg.Rigidity),
		formatTime(seg.StartAt), formatTime(seg.EndAt),
		nullIfEmpty(string(seg.ToneAtStart)),
		formatTime(seg.CreatedAt),
	)
	if err != nil {
		return fmt.Errorf("upsert segment %s: %w", seg.ID, err)
	}
	return nil
}

// #endregion insert

// #region update
// SegmentPatch is a field-level update; nil pointers leave the column alone.
// Writes are last-writer-wins.
type SegmentPatch struct {
	Title            *string
	StartAt          *time.Time
	EndAt            *time.Time
	ToneAtStart      *segment.Tone
	StartConfirmedAt *time.Time
	MidpointStatus   *segment.MidStatus
	EndStatus        *segment.EndStatus
	HoldStatus       *segment.HoldStatus
	ReasonCode       *string
	RescheduleTarget *time.Time
}

// UpdateSegment applies a patch to the segment row.
func (s *Store) UpdateSegment(id string, patch SegmentPatch) error {
	set := []string{}
	args := []interface{}{}
	add := func(col string, v interface{}) {
		set = append(set, col+" = ?")
		args = append(args, v)
	}

	if patch.Title != nil {
		add("title", *patch.Title)
	}
	if patch.StartAt != nil {
		add("start_at", formatTime(*patch.StartAt))
	}
	if patch.EndAt != nil {
		add("end_at", formatTime(*patch.EndAt))
	}
	if patch.ToneAtStart != nil {
		add("tone_at_start", string(*patch.ToneAtStart))
	}
	if patch.StartConfirmedAt != nil {
		add("start_confirmed_at", formatTime(*patch.StartConfirmedAt))
	}
	if patch.MidpointStatus != nil {
		add("midpoint_status", nullIfEmpty(string(*patch.MidpointStatus)))
	}
	if patch.EndStatus != nil {
		add("end_status", nullIfEmpty(string(*patch.EndStatus)))
	}
	if patch.HoldStatus != nil {
		add("hold_status", nullIfEmpty(string(*patch.HoldStatus)))
	}
	if patch.ReasonCode != nil {
		add("reason_code", nullIfEmpty(*patch.ReasonCode))
	}
	if patch.RescheduleTarget != nil {
		add("reschedule_target", formatTime(*patch.RescheduleTarget))
	}
	if len(set) == 0 {
		return nil
	}

	args = append(args, id)
	query := "UPDATE segments SET " + strings.Join(set, ", ") + " WHERE id = ?"
	res, err := s.db.Exec(query, args...)
	if err != nil {
		return fmt.Errorf("update segment %s: %w", id, err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return fmt.Errorf("update segment %s: not found", id)
	}
	return nil
}

// #endregion update

// #region queries
const segmentColumns = `id, kind, title, rigidity, start_at, end_at, tone_at_start,
	start_confirmed_at, midpoint_status, end_status, hold_status,
	reason_code, reschedule_target, created_at`

// GetActive returns the open segment whose window contains now, or nil.
// When a scheduled segment and a free-time window overlap, the scheduled
// segment wins.
func (s *Store) GetActive(now time.Time) (*segment.Segment, error) {
	row := s.db.QueryRow(
		`SELECT `+segmentColumns+` FROM segments
		 WHERE end_status IS NULL AND start_at <= ? AND end_at > ?
		 ORDER BY CASE kind WHEN 'scheduled' THEN 0 ELSE 1 END, start_at
		 LIMIT 1`,
		formatTime(now), formatTime(now),
	)
	return scanOptionalSegment(row)
}

// ActiveFreeWindow returns the open free-kind segment containing now, or
// nil. Needed separately from GetActive, which prefers scheduled segments
// when windows overlap.
func (s *Store) ActiveFreeWindow(now time.Time) (*segment.Segment, error) {
	row := s.db.QueryRow(
		`SELECT `+segmentColumns+` FROM segments
		 WHERE end_status IS NULL AND kind = 'free' AND start_at <= ? AND end_at > ?
		 ORDER BY start_at LIMIT 1`,
		formatTime(now), formatTime(now),
	)
	return scanOptionalSegment(row)
}

// GetNext returns the first open segment starting strictly after the given
// instant, or nil.
func (s *Store) GetNext(after time.Time) (*segment.Segment, error) {
	row := s.db.QueryRow(
		`SELECT `+segmentColumns+` FROM segments
		 WHERE end_status IS NULL AND start_at > ?
		 ORDER BY start_at LIMIT 1`,
		formatTime(after),
	)
	return scanOptionalSegment(row)
}

// GetByID fetches one segment, or nil when absent.
func (s *Store) GetByID(id string) (*segment.Segment, error) {
	row := s.db.QueryRow(`SELECT `+segmentColumns+` FROM segments WHERE id = ?`, id)
	return scanOptionalSegment(row)
}

// JustEnded returns open segments whose end_at passed within the trailing
// window. Catches segments the active query no longer sees at the moment
// their end boundary passes.
func (s *Store) JustEnded(now time.Time, window time.Duration) ([]segment.Segment, error) {
	rows, err := s.db.Query(
		`SELECT `+segmentColumns+` FROM segments
		 WHERE end_status IS NULL AND end_at > ? AND end_at <= ?
		 ORDER BY end_at`,
		formatTime(now.Add(-window)), formatTime(now),
	)
	if err != nil {
		return nil, fmt.Errorf("just-ended query: %w", err)
	}
	defer rows.Close()

	var segs []segment.Segment
	for rows.Next() {
		seg, err := scanSegment(rows)
		if err != nil {
			return nil, err
		}
		segs = append(segs, seg)
	}
	return segs, rows.Err()
}

// #endregion queries

// #region day-state
// GetDayState reads the day record, creating it with defaults on first access.
func (s *Store) GetDayState(day string) (segment.DayState, error) {
	_, err := s.db.Exec(
		`INSERT OR IGNORE INTO day_state (day, current_tone) VALUES (?, 'gentle')`, day,
	)
	if err != nil {
		return segment.DayState{}, fmt.Errorf("init day state %s: %w", day, err)
	}

	var ds segment.DayState
	var cooldown sql.NullString
	var tone string
	err = s.db.QueryRow(
		`SELECT day, current_tone, consecutive_misses, consecutive_completions,
		        tone_cooldown_until, recovery_blocks_used
		 FROM day_state WHERE day = ?`, day,
	).Scan(&ds.Day, &tone, &ds.ConsecutiveMisses, &ds.ConsecutiveCompletions, &cooldown, &ds.RecoveryBlocksUsed)
	if err != nil {
		return segment.DayState{}, fmt.Errorf("get day state %s: %w", day, err)
	}
	ds.CurrentTone = segment.ParseTone(tone)
	if cooldown.Valid {
		t, err := parseTime(cooldown.String)
		if err != nil {
			return segment.DayState{}, fmt.Errorf("day state %s cooldown: %w", day, err)
		}
		ds.ToneCooldownUntil = &t
	}
	return ds, nil
}

// SetDayState writes the full day record back.
func (s *Store) SetDayState(ds segment.DayState) error {
	_, err := s.db.Exec(
		`INSERT INTO day_state (day, current_tone, consecutive_misses, consecutive_completions,
		                        tone_cooldown_until, recovery_blocks_used)
		 VALUES (?, ?, ?, ?, ?, ?)
		 ON CONFLICT(day) DO UPDATE SET
		   current_tone            = excluded.current_tone,
		   consecutive_misses      = excluded.consecutive_misses,
		   consecutive_completions = excluded.consecutive_completions,
		   tone_cooldown_until     = excluded.tone_cooldown_until,
		   recovery_blocks_used    = excluded.recovery_blocks_used`,
		ds.Day, string(ds.CurrentTone), ds.ConsecutiveMisses, ds.ConsecutiveCompletions,
		nullableTime(ds.ToneCooldownUntil), ds.RecoveryBlocksUsed,
	)
	if err != nil {
		return fmt.Errorf("set day state %s: %w", ds.Day, err)
	}
	return nil
}

// #endregion day-state

// #region scan
type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanSegment(row rowScanner) (segment.Segment, error) {
	var seg segment.Segment
	var kind, rigidity, startStr, endStr, createdStr string
	var tone, confirmed, mid, end, hold, reason, target sql.NullString

	err := row.Scan(&seg.ID, &kind, &seg.Title, &rigidity, &startStr, &endStr,
		&tone, &confirmed, &mid, &end, &hold, &reason, &target, &createdStr)
	if err != nil {
		return segment.Segment{}, err
	}

	seg.Kind = segment.Kind(kind)
	seg.Rigidity = segment.ParseRigidity(rigidity)
	if seg.StartAt, err = parseTime(startStr); err != nil {
		return segment.Segment{}, fmt.Errorf("segment %s start_at: %w", seg.ID, err)
	}
	if seg.EndAt, err = parseTime(endStr); err != nil {
		return segment.Segment{}, fmt.Errorf("segment %s end_at: %w", seg.ID, err)
	}
	if tone.Valid {
		seg.ToneAtStart = segment.ParseTone(tone.String)
	}
	if confirmed.Valid {
		t, err := parseTime(confirmed.String)
		if err != nil {
			return segment.Segment{}, fmt.Errorf("segment %s start_confirmed_at: %w", seg.ID, err)
		}
		seg.StartConfirmedAt = &t
	}
	if mid.Valid {
		seg.MidpointStatus = segment.MidStatus(mid.String)
	}
	if end.Valid {
		seg.EndStatus = segment.EndStatus(end.String)
	}
	if hold.Valid {
		seg.HoldStatus = segment.HoldStatus(hold.String)
	}
	if reason.Valid {
		seg.ReasonCode = reason.String
	}
	if target.Valid {
		t, err := parseTime(target.String)
		if err != nil {
			return segment.Segment{}, fmt.Errorf("segment %s reschedule_target: %w", seg.ID, err)
		}
		seg.RescheduleTarget = &t
	}
	seg.CreatedAt, _ = parseTime(createdStr)
	return seg, nil
}

func scanOptionalSegment(row *sql.Row) (*segment.Segment, error) {
	seg, err := scanSegment(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &seg, nil
}

// #endregion scan

// #region helpers
// Timestamps are stored as second-truncated UTC RFC3339 text so the fixed
// width keeps lexical comparison in SQL aligned with chronological order.
func formatTime(t time.Time) string {
	return t.UTC().Truncate(time.Second).Format(time.RFC3339)
}

func parseTime(s string) (time.Time, error) {
	return time.Parse(time.RFC3339, s)
}

func nullableTime(t *time.Time) interface{} {
	if t == nil {
		return nil
	}
	return formatTime(*t)
}

func nullIfEmpty(s string) interface{} {
	if s == "" {
		return nil
	}
	return s
}

// #endregion helpers
