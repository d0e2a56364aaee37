package store

import (
	"testing"
	"time"

	"github.com/danielpatrickdp/segment-steward/internal/segment"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := NewStore(":memory:")
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

func mkSegment(id string, start time.Time, d time.Duration) segment.Segment {
	return segment.Segment{
		ID:       id,
		Kind:     segment.KindScheduled,
		Title:    "Deep work",
		Rigidity: segment.RigiditySoft,
		StartAt:  start,
		EndAt:    start.Add(d),
	}
}

func TestInsertAndGetByID(t *testing.T) {
	s := newTestStore(t)
	start := time.Date(2025, 3, 10, 10, 0, 0, 0, time.UTC)
	if err := s.InsertSegment(mkSegment("gcal:a", start, 30*time.Minute)); err != nil {
		t.Fatalf("insert: %v", err)
	}

	got, err := s.GetByID("gcal:a")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if got == nil {
		t.Fatal("expected segment")
	}
	if got.Title != "Deep work" || got.Rigidity != segment.RigiditySoft {
		t.Fatalf("round trip mismatch: %+v", got)
	}
	if !got.StartAt.Equal(start) {
		t.Fatalf("start_at = %v, want %v", got.StartAt, start)
	}
	if got.Closed() {
		t.Fatal("new segment should be open")
	}
}

func TestGetByIDMissingReturnsNil(t *testing.T) {
	s := newTestStore(t)
	got, err := s.GetByID("nope")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if got != nil {
		t.Fatalf("expected nil, got %+v", got)
	}
}

func TestGetActivePrefersScheduledOverFree(t *testing.T) {
	s := newTestStore(t)
	now := time.Date(2025, 3, 10, 10, 15, 0, 0, time.UTC)

	free := mkSegment("ftw:20250310T1000", now.Add(-15*time.Minute), time.Hour)
	free.Kind = segment.KindFree
	free.Rigidity = segment.RigidityFree
	if err := s.InsertSegment(free); err != nil {
		t.Fatalf("insert free: %v", err)
	}
	if err := s.InsertSegment(mkSegment("gcal:b", now.Add(-5*time.Minute), 30*time.Minute)); err != nil {
		t.Fatalf("insert scheduled: %v", err)
	}

	got, err := s.GetActive(now)
	if err != nil {
		t.Fatalf("get active: %v", err)
	}
	if got == nil || got.ID != "gcal:b" {
		t.Fatalf("active = %+v, want gcal:b", got)
	}
}

func TestGetActiveExcludesClosed(t *testing.T) {
	s := newTestStore(t)
	now := time.Date(2025, 3, 10, 10, 15, 0, 0, time.UTC)
	if err := s.InsertSegment(mkSegment("gcal:c", now.Add(-5*time.Minute), 30*time.Minute)); err != nil {
		t.Fatalf("insert: %v", err)
	}
	end := segment.EndCompleted
	if err := s.UpdateSegment("gcal:c", SegmentPatch{EndStatus: &end}); err != nil {
		t.Fatalf("close: %v", err)
	}

	got, err := s.GetActive(now)
	if err != nil {
		t.Fatalf("get active: %v", err)
	}
	if got != nil {
		t.Fatalf("closed segment should not be active: %+v", got)
	}
}

func TestGetNext(t *testing.T) {
	s := newTestStore(t)
	now := time.Date(2025, 3, 10, 10, 0, 0, 0, time.UTC)
	if err := s.InsertSegment(mkSegment("gcal:later", now.Add(2*time.Hour), 30*time.Minute)); err != nil {
		t.Fatalf("insert: %v", err)
	}
	if err := s.InsertSegment(mkSegment("gcal:sooner", now.Add(time.Hour), 30*time.Minute)); err != nil {
		t.Fatalf("insert: %v", err)
	}

	got, err := s.GetNext(now)
	if err != nil {
		t.Fatalf("get next: %v", err)
	}
	if got == nil || got.ID != "gcal:sooner" {
		t.Fatalf("next = %+v, want gcal:sooner", got)
	}
}

func TestJustEndedWindow(t *testing.T) {
	s := newTestStore(t)
	now := time.Date(2025, 3, 10, 10, 30, 30, 0, time.UTC)

	inWindow := mkSegment("gcal:in", now.Add(-1*time.Hour), 59*time.Minute+40*time.Second)
	if err := s.InsertSegment(inWindow); err != nil {
		t.Fatalf("insert: %v", err)
	}
	tooOld := mkSegment("gcal:old", now.Add(-2*time.Hour), 30*time.Minute)
	if err := s.InsertSegment(tooOld); err != nil {
		t.Fatalf("insert: %v", err)
	}
	stillOpen := mkSegment("gcal:open", now.Add(-10*time.Minute), time.Hour)
	if err := s.InsertSegment(stillOpen); err != nil {
		t.Fatalf("insert: %v", err)
	}

	segs, err := s.JustEnded(now, 65*time.Second)
	if err != nil {
		t.Fatalf("just ended: %v", err)
	}
	if len(segs) != 1 || segs[0].ID != "gcal:in" {
		t.Fatalf("just ended = %+v, want only gcal:in", segs)
	}
}

func TestUpdateSegmentPatch(t *testing.T) {
	s := newTestStore(t)
	start := time.Date(2025, 3, 10, 10, 0, 0, 0, time.UTC)
	if err := s.InsertSegment(mkSegment("gcal:d", start, 30*time.Minute)); err != nil {
		t.Fatalf("insert: %v", err)
	}

	confirmed := start.Add(2 * time.Minute)
	mid := segment.MidPinged
	if err := s.UpdateSegment("gcal:d", SegmentPatch{
		StartConfirmedAt: &confirmed,
		MidpointStatus:   &mid,
	}); err != nil {
		t.Fatalf("update: %v", err)
	}

	got, err := s.GetByID("gcal:d")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if got.StartConfirmedAt == nil || !got.StartConfirmedAt.Equal(confirmed) {
		t.Fatalf("start_confirmed_at = %v, want %v", got.StartConfirmedAt, confirmed)
	}
	if got.MidpointStatus != segment.MidPinged {
		t.Fatalf("midpoint_status = %s, want pinged", got.MidpointStatus)
	}
	// untouched columns survive
	if got.Title != "Deep work" {
		t.Fatalf("title clobbered: %q", got.Title)
	}
}

func TestUpdateSegmentMissing(t *testing.T) {
	s := newTestStore(t)
	end := segment.EndMissed
	if err := s.UpdateSegment("ghost", SegmentPatch{EndStatus: &end}); err == nil {
		t.Fatal("expected error for missing segment")
	}
}

func TestUpsertSegmentKeepsMarkers(t *testing.T) {
	s := newTestStore(t)
	start := time.Date(2025, 3, 10, 10, 0, 0, 0, time.UTC)
	if err := s.UpsertSegment(mkSegment("gcal:e", start, 30*time.Minute)); err != nil {
		t.Fatalf("upsert: %v", err)
	}
	confirmed := start.Add(time.Minute)
	if err := s.UpdateSegment("gcal:e", SegmentPatch{StartConfirmedAt: &confirmed}); err != nil {
		t.Fatalf("update: %v", err)
	}

	// Calendar moved the event 10 minutes later; marker must survive.
	moved := mkSegment("gcal:e", start.Add(10*time.Minute), 30*time.Minute)
	if err := s.UpsertSegment(moved); err != nil {
		t.Fatalf("re-upsert: %v", err)
	}

	got, err := s.GetByID("gcal:e")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if !got.StartAt.Equal(start.Add(10 * time.Minute)) {
		t.Fatalf("start_at not refreshed: %v", got.StartAt)
	}
	if got.StartConfirmedAt == nil {
		t.Fatal("start_confirmed_at lost on upsert")
	}
}

func TestDayStateAutoCreate(t *testing.T) {
	s := newTestStore(t)
	ds, err := s.GetDayState("2025-03-10")
	if err != nil {
		t.Fatalf("get day state: %v", err)
	}
	if ds.CurrentTone != segment.ToneGentle {
		t.Fatalf("default tone = %s, want gentle", ds.CurrentTone)
	}
	if ds.ConsecutiveMisses != 0 || ds.ConsecutiveCompletions != 0 || ds.RecoveryBlocksUsed != 0 {
		t.Fatalf("default counters not zero: %+v", ds)
	}
}

func TestDayStateRoundTrip(t *testing.T) {
	s := newTestStore(t)
	cooldown := time.Date(2025, 3, 10, 11, 0, 0, 0, time.UTC)
	ds := segment.DayState{
		Day:                "2025-03-10",
		CurrentTone:        segment.ToneCoach,
		ConsecutiveMisses:  2,
		ToneCooldownUntil:  &cooldown,
		RecoveryBlocksUsed: 1,
	}
	if err := s.SetDayState(ds); err != nil {
		t.Fatalf("set day state: %v", err)
	}

	got, err := s.GetDayState("2025-03-10")
	if err != nil {
		t.Fatalf("get day state: %v", err)
	}
	if got.CurrentTone != segment.ToneCoach || got.ConsecutiveMisses != 2 || got.RecoveryBlocksUsed != 1 {
		t.Fatalf("round trip mismatch: %+v", got)
	}
	if got.ToneCooldownUntil == nil || !got.ToneCooldownUntil.Equal(cooldown) {
		t.Fatalf("cooldown = %v, want %v", got.ToneCooldownUntil, cooldown)
	}
}

func TestActiveFreeWindowIgnoresScheduled(t *testing.T) {
	s := newTestStore(t)
	now := time.Date(2025, 3, 10, 10, 15, 0, 0, time.UTC)

	if err := s.InsertSegment(mkSegment("gcal:f", now.Add(-5*time.Minute), 30*time.Minute)); err != nil {
		t.Fatalf("insert scheduled: %v", err)
	}
	got, err := s.ActiveFreeWindow(now)
	if err != nil {
		t.Fatalf("active free window: %v", err)
	}
	if got != nil {
		t.Fatalf("scheduled segment reported as free window: %+v", got)
	}

	free := mkSegment("ftw:20250310T1000", now.Add(-15*time.Minute), time.Hour)
	free.Kind = segment.KindFree
	free.Rigidity = segment.RigidityFree
	if err := s.InsertSegment(free); err != nil {
		t.Fatalf("insert free: %v", err)
	}
	got, err = s.ActiveFreeWindow(now)
	if err != nil {
		t.Fatalf("active free window: %v", err)
	}
	if got == nil || got.ID != free.ID {
		t.Fatalf("free window = %+v, want %s", got, free.ID)
	}
}
