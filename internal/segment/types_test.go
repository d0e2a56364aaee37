package segment

import (
	"testing"
	"time"
)

func TestValidateAcceptsWellFormedSegment(t *testing.T) {
	start := time.Date(2025, 3, 10, 10, 0, 0, 0, time.UTC)
	seg := Segment{
		ID:       "gcal:abc",
		Kind:     KindScheduled,
		Rigidity: RigiditySoft,
		StartAt:  start,
		EndAt:    start.Add(30 * time.Minute),
	}
	if err := seg.Validate(); err != nil {
		t.Fatalf("unexpected validation error: %v", err)
	}
}

func TestValidateRejectsInvertedWindow(t *testing.T) {
	start := time.Date(2025, 3, 10, 10, 0, 0, 0, time.UTC)
	seg := Segment{
		ID:       "gcal:abc",
		Kind:     KindScheduled,
		Rigidity: RigiditySoft,
		StartAt:  start,
		EndAt:    start,
	}
	if err := seg.Validate(); err == nil {
		t.Fatal("expected error for end_at == start_at")
	}
}

func TestValidateRejectsMissingTimestamps(t *testing.T) {
	seg := Segment{ID: "x", Kind: KindFree, Rigidity: RigidityFree}
	if err := seg.Validate(); err == nil {
		t.Fatal("expected error for zero timestamps")
	}
}

func TestMidpoint(t *testing.T) {
	start := time.Date(2025, 3, 10, 10, 0, 0, 0, time.UTC)
	seg := Segment{StartAt: start, EndAt: start.Add(30 * time.Minute)}
	want := start.Add(15 * time.Minute)
	if got := seg.Midpoint(); !got.Equal(want) {
		t.Fatalf("midpoint = %v, want %v", got, want)
	}
}

func TestTerminalStates(t *testing.T) {
	for _, s := range []State{StateCompleted, StateMissed, StateRescheduled} {
		if !s.Terminal() {
			t.Errorf("%s should be terminal", s)
		}
	}
	for _, s := range []State{StatePlanned, StateAwaitingStart, StateInProgress, StateOffTrack, StatePaused, StateSnoozed, StateInterrupted, StateIdleDay} {
		if s.Terminal() {
			t.Errorf("%s should not be terminal", s)
		}
	}
}

func TestParseRigidityDefaultsToSoft(t *testing.T) {
	if got := ParseRigidity("granite"); got != RigiditySoft {
		t.Fatalf("ParseRigidity = %s, want soft", got)
	}
	if got := ParseRigidity("hard"); got != RigidityHard {
		t.Fatalf("ParseRigidity = %s, want hard", got)
	}
}
