package fsm

import (
	"testing"
	"time"

	"github.com/danielpatrickdp/segment-steward/internal/segment"
)

func TestBumpToneEscalates(t *testing.T) {
	now := time.Date(2025, 3, 10, 10, 0, 0, 0, time.UTC)
	day := segment.DefaultDayState("2025-03-10")

	if !BumpTone(&day, +1, now) {
		t.Fatal("expected bump to take effect")
	}
	if day.CurrentTone != segment.ToneCoach {
		t.Fatalf("tone = %s, want coach", day.CurrentTone)
	}
	if day.ToneCooldownUntil == nil || !day.ToneCooldownUntil.Equal(now.Add(ToneCooldown)) {
		t.Fatalf("cooldown = %v, want %v", day.ToneCooldownUntil, now.Add(ToneCooldown))
	}
}

func TestBumpToneCooldownBlocksSecondBump(t *testing.T) {
	now := time.Date(2025, 3, 10, 10, 0, 0, 0, time.UTC)
	day := segment.DefaultDayState("2025-03-10")

	BumpTone(&day, +1, now)
	if BumpTone(&day, +1, now.Add(5*time.Minute)) {
		t.Fatal("second bump within cooldown must not take effect")
	}
	if day.CurrentTone != segment.ToneCoach {
		t.Fatalf("tone = %s, want coach", day.CurrentTone)
	}

	// past cooldown the bump lands
	if !BumpTone(&day, +1, now.Add(ToneCooldown)) {
		t.Fatal("bump at cooldown expiry should take effect")
	}
	if day.CurrentTone != segment.ToneDS {
		t.Fatalf("tone = %s, want ds", day.CurrentTone)
	}
}

func TestBumpToneClampsAtEnds(t *testing.T) {
	now := time.Date(2025, 3, 10, 10, 0, 0, 0, time.UTC)

	day := segment.DefaultDayState("2025-03-10")
	if BumpTone(&day, -1, now) {
		t.Fatal("relax below gentle must be a no-op")
	}
	if day.CurrentTone != segment.ToneGentle {
		t.Fatalf("tone = %s, want gentle", day.CurrentTone)
	}

	day.CurrentTone = segment.ToneDS
	if BumpTone(&day, +1, now) {
		t.Fatal("escalate above ds must be a no-op")
	}
	if day.CurrentTone != segment.ToneDS {
		t.Fatalf("tone = %s, want ds", day.CurrentTone)
	}
	// a clamp no-op must not burn the cooldown
	if day.ToneCooldownUntil != nil {
		t.Fatal("clamped bump should not reset cooldown")
	}
}

func TestEscalateOnMIA(t *testing.T) {
	now := time.Date(2025, 3, 10, 10, 0, 0, 0, time.UTC)

	day := segment.DefaultDayState("2025-03-10")
	if EscalateOnMIA(&day, false, now) {
		t.Fatal("no escalation when escalated mode is off")
	}
	if day.CurrentTone != segment.ToneGentle {
		t.Fatalf("tone = %s, want gentle", day.CurrentTone)
	}

	// escalated mode on, tone gentle, cooldown expired → coach
	if !EscalateOnMIA(&day, true, now) {
		t.Fatal("expected escalation")
	}
	if day.CurrentTone != segment.ToneCoach {
		t.Fatalf("tone = %s, want coach", day.CurrentTone)
	}
}

func TestStreakExclusivity(t *testing.T) {
	day := segment.DefaultDayState("2025-03-10")

	RecordCompletion(&day)
	RecordCompletion(&day)
	if day.ConsecutiveCompletions != 2 || day.ConsecutiveMisses != 0 {
		t.Fatalf("after completions: %+v", day)
	}

	RecordMiss(&day)
	if day.ConsecutiveMisses != 1 || day.ConsecutiveCompletions != 0 {
		t.Fatalf("after miss: %+v", day)
	}

	RecordCompletion(&day)
	if day.ConsecutiveCompletions != 1 || day.ConsecutiveMisses != 0 {
		t.Fatalf("after completion: %+v", day)
	}
}

func TestMaybeRelaxAfterCleanRun(t *testing.T) {
	now := time.Date(2025, 3, 10, 10, 0, 0, 0, time.UTC)
	day := segment.DefaultDayState("2025-03-10")
	day.CurrentTone = segment.ToneDS

	RecordCompletion(&day)
	RecordCompletion(&day)
	if MaybeRelax(&day, now) {
		t.Fatal("relax before the streak threshold")
	}

	RecordCompletion(&day)
	if !MaybeRelax(&day, now) {
		t.Fatal("expected relax after three clean completions")
	}
	if day.CurrentTone != segment.ToneCoach {
		t.Fatalf("tone = %s, want coach", day.CurrentTone)
	}

	// fourth completion is not a fresh multiple of the streak
	RecordCompletion(&day)
	if MaybeRelax(&day, now.Add(time.Hour)) {
		t.Fatal("relax must wait for the next full streak")
	}
}
