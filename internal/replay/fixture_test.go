package replay

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/danielpatrickdp/segment-steward/internal/segment"
)

const sampleFixture = `{
  "description": "one soft block, one tick",
  "timezone": "UTC",
  "quiet_hours": "22:00-06:00",
  "escalated": true,
  "segments": [
    {"id": "gcal:a", "title": "Deep work", "rigidity": "soft",
     "start_at": "2025-03-10T09:00:00Z", "end_at": "2025-03-10T09:30:00Z"}
  ],
  "calendar": {
    "events": [
      {"id": "ev1", "title": "Standup", "has_attendees": true,
       "start_at": "2025-03-10T10:00:00Z", "end_at": "2025-03-10T10:15:00Z"}
    ],
    "slots": [{"start_at": "2025-03-10T11:00:00Z", "minutes": 30}]
  },
  "timeline": [
    {"at": "2025-03-10T09:00:30Z"},
    {"at": "2025-03-10T09:05:00Z", "verb": "snooze", "minutes": 15}
  ],
  "expected_decisions": [
    {"segment_id": "gcal:a", "action": "send_start"}
  ]
}`

func TestLoadFixture(t *testing.T) {
	path := filepath.Join(t.TempDir(), "day.json")
	if err := os.WriteFile(path, []byte(sampleFixture), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}

	f, err := LoadFixture(path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if !f.Escalated || f.QuietHours != "22:00-06:00" {
		t.Fatalf("header fields: %+v", f)
	}
	if len(f.Segments) != 1 || len(f.Calendar.Events) != 1 || len(f.Calendar.Slots) != 1 {
		t.Fatalf("collections: %+v", f)
	}
	if f.Timeline[0].Verb != "" {
		t.Fatalf("first step should be a tick, got verb %q", f.Timeline[0].Verb)
	}
	if f.Timeline[1].Verb != "snooze" || f.Timeline[1].Minutes != 15 {
		t.Fatalf("second step: %+v", f.Timeline[1])
	}

	seg := f.Segments[0].ToSegment()
	if seg.Kind != segment.KindScheduled {
		t.Fatalf("kind = %s, want scheduled default", seg.Kind)
	}
	if seg.Rigidity != segment.RigiditySoft {
		t.Fatalf("rigidity = %s", seg.Rigidity)
	}

	ev := f.Calendar.Events[0].ToEvent()
	if !ev.HasAttendees || ev.Title != "Standup" {
		t.Fatalf("event: %+v", ev)
	}
}

func TestLoadFixtureMissingFile(t *testing.T) {
	if _, err := LoadFixture("/nonexistent/day.json"); err == nil {
		t.Fatal("expected error")
	}
}
