package replay

import (
	"encoding/json"
	"fmt"
	"os"
	"time"

	"github.com/danielpatrickdp/segment-steward/internal/calbridge"
	"github.com/danielpatrickdp/segment-steward/internal/segment"
)

// #region fixture-types

// Fixture is the top-level JSON structure for a replay fixture: one
// scripted day of segments, calendar answers, and timeline steps.
type Fixture struct {
	Description string            `json:"description"`
	Timezone    string            `json:"timezone"`
	QuietHours  string            `json:"quiet_hours"`
	Escalated   bool              `json:"escalated"`
	Segments    []FixtureSegment  `json:"segments"`
	Calendar    FixtureCalendar   `json:"calendar"`
	Timeline    []FixtureStep     `json:"timeline"`
	Expected    []FixtureExpected `json:"expected_decisions"`
}

// FixtureSegment mirrors segment.Segment with JSON tags.
type FixtureSegment struct {
	ID       string    `json:"id"`
	Kind     string    `json:"kind"`
	Title    string    `json:"title"`
	Rigidity string    `json:"rigidity"`
	StartAt  time.Time `json:"start_at"`
	EndAt    time.Time `json:"end_at"`
}

// FixtureCalendar scripts the bridge's answers for the whole run.
type FixtureCalendar struct {
	Events []FixtureEvent `json:"events"`
	Slots  []FixtureSlot  `json:"slots"`
}

// FixtureEvent mirrors calbridge.Event with JSON tags.
type FixtureEvent struct {
	ID           string    `json:"id"`
	Title        string    `json:"title"`
	Description  string    `json:"description"`
	StartAt      time.Time `json:"start_at"`
	EndAt        time.Time `json:"end_at"`
	HasAttendees bool      `json:"has_attendees"`
}

// FixtureSlot mirrors calbridge.Slot with JSON tags.
type FixtureSlot struct {
	StartAt time.Time `json:"start_at"`
	Minutes int       `json:"minutes"`
}

// FixtureStep is one timeline entry. An empty verb means a tick; anything
// else is a user command.
type FixtureStep struct {
	At        time.Time `json:"at"`
	Verb      string    `json:"verb"`
	SegmentID string    `json:"segment_id"`
	Minutes   int       `json:"minutes"`
	Focus     string    `json:"focus"`
}

// FixtureExpected is the reference action sequence for comparison runs.
type FixtureExpected struct {
	SegmentID string `json:"segment_id"`
	Action    string `json:"action"`
}

// #endregion fixture-types

// #region fixture-loader

// LoadFixture reads and parses a JSON fixture file.
func LoadFixture(path string) (*Fixture, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read fixture %s: %w", path, err)
	}
	var f Fixture
	if err := json.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("parse fixture %s: %w", path, err)
	}
	return &f, nil
}

// ToSegment converts a FixtureSegment to a domain Segment. Kind defaults
// to scheduled, rigidity to soft.
func (fs *FixtureSegment) ToSegment() segment.Segment {
	kind := segment.Kind(fs.Kind)
	if kind != segment.KindFree {
		kind = segment.KindScheduled
	}
	return segment.Segment{
		ID:       fs.ID,
		Kind:     kind,
		Title:    fs.Title,
		Rigidity: segment.ParseRigidity(fs.Rigidity),
		StartAt:  fs.StartAt,
		EndAt:    fs.EndAt,
	}
}

// ToEvent converts a FixtureEvent to a domain calbridge.Event.
func (fe *FixtureEvent) ToEvent() calbridge.Event {
	return calbridge.Event{
		ID:           fe.ID,
		Title:        fe.Title,
		Description:  fe.Description,
		StartAt:      fe.StartAt,
		EndAt:        fe.EndAt,
		HasAttendees: fe.HasAttendees,
	}
}

// #endregion fixture-loader
