package logging

import (
	"database/sql"
	"fmt"
	"time"
)

// #region types

// DecisionEntry is one audit row: what the steward decided for a segment
// and in which tone. A collaborator renders and sends the user-facing copy;
// this log only records the abstract decision.
type DecisionEntry struct {
	SegmentID string
	Event     string
	Action    string
	Tone      string
	Reason    string
	CreatedAt time.Time
}

// #endregion types

// #region log-decision

// LogDecision appends an entry to the decision_log table.
func LogDecision(db *sql.DB, entry DecisionEntry) error {
	if entry.CreatedAt.IsZero() {
		entry.CreatedAt = time.Now().UTC()
	}

	_, err := db.Exec(
		`INSERT INTO decision_log (segment_id, event, action, tone, reason, created_at)
		 VALUES (?, ?, ?, ?, ?, ?)`,
		entry.SegmentID,
		entry.Event,
		entry.Action,
		entry.Tone,
		nullIfEmpty(entry.Reason),
		entry.CreatedAt.UTC().Format(time.RFC3339),
	)
	if err != nil {
		return fmt.Errorf("log decision: %w", err)
	}
	return nil
}

// #endregion log-decision

// #region list-recent

// ListRecent returns the newest decisions, most recent first.
func ListRecent(db *sql.DB, limit int) ([]DecisionEntry, error) {
	rows, err := db.Query(
		`SELECT segment_id, event, action, tone, reason, created_at
		 FROM decision_log ORDER BY id DESC LIMIT ?`, limit,
	)
	if err != nil {
		return nil, fmt.Errorf("list decisions: %w", err)
	}
	defer rows.Close()

	var entries []DecisionEntry
	for rows.Next() {
		var e DecisionEntry
		var reason sql.NullString
		var createdStr string
		if err := rows.Scan(&e.SegmentID, &e.Event, &e.Action, &e.Tone, &reason, &createdStr); err != nil {
			return nil, fmt.Errorf("scan decision: %w", err)
		}
		if reason.Valid {
			e.Reason = reason.String
		}
		e.CreatedAt, _ = time.Parse(time.RFC3339, createdStr)
		entries = append(entries, e)
	}
	return entries, rows.Err()
}

// #endregion list-recent

// #region helpers
func nullIfEmpty(s string) interface{} {
	if s == "" {
		return nil
	}
	return s
}

// #endregion helpers
