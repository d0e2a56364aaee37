package fsm

import (
	"time"

	"github.com/danielpatrickdp/segment-steward/internal/segment"
)

// #region cooldown

// ToneCooldown is the fixed window during which the tone may not change
// again after an effective bump.
const ToneCooldown = 30 * time.Minute

func canChangeTone(day segment.DayState, now time.Time) bool {
	return day.ToneCooldownUntil == nil || !now.Before(*day.ToneCooldownUntil)
}

// #endregion cooldown

// #region bump

// BumpTone moves the day's tone one step along the ladder, clamped to the
// ends. The change only takes effect past the cooldown; an effective change
// resets the cooldown. Returns whether the tone actually changed.
func BumpTone(day *segment.DayState, direction int, now time.Time) bool {
	idx := toneIndex(day.CurrentTone) + direction
	if idx < 0 {
		idx = 0
	}
	if idx > len(segment.ToneLadder)-1 {
		idx = len(segment.ToneLadder) - 1
	}
	next := segment.ToneLadder[idx]
	if next == day.CurrentTone || !canChangeTone(*day, now) {
		return false
	}
	day.CurrentTone = next
	until := now.Add(ToneCooldown)
	day.ToneCooldownUntil = &until
	return true
}

// EscalateOnMIA is the AUTO_MIA side channel: when escalated mode is
// active, the tone is bumped one level before any segment transition is
// evaluated. Returns whether the tone changed.
func EscalateOnMIA(day *segment.DayState, escalated bool, now time.Time) bool {
	if !escalated {
		return false
	}
	return BumpTone(day, +1, now)
}

func toneIndex(t segment.Tone) int {
	for i, v := range segment.ToneLadder {
		if v == t {
			return i
		}
	}
	return 0
}

// #endregion bump

// #region streaks

// RecordCompletion bumps the completion streak and clears the miss streak.
func RecordCompletion(day *segment.DayState) {
	day.ConsecutiveCompletions++
	day.ConsecutiveMisses = 0
}

// RecordMiss bumps the miss streak and clears the completion streak.
func RecordMiss(day *segment.DayState) {
	day.ConsecutiveMisses++
	day.ConsecutiveCompletions = 0
}

// RelaxAfterStreak is how many clean completions in a row earn a relax bump.
const RelaxAfterStreak = 3

// MaybeRelax relaxes the tone one level after a run of clean completions.
// The relax primitive itself stays cooldown-gated like any other bump.
func MaybeRelax(day *segment.DayState, now time.Time) bool {
	if day.ConsecutiveCompletions < RelaxAfterStreak {
		return false
	}
	if day.ConsecutiveCompletions%RelaxAfterStreak != 0 {
		return false
	}
	return BumpTone(day, -1, now)
}

// #endregion streaks
