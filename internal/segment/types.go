package segment

// #region imports
import (
	"fmt"
	"time"
)

// #endregion

// #region kind

// Kind distinguishes calendar-origin segments from free-time windows.
type Kind string

const (
	KindScheduled Kind = "scheduled"
	KindFree      Kind = "free"
)

// #endregion

// #region rigidity

// Rigidity is a segment's tolerance for automatic movement, most to least
// protected: hard > firm > soft > free.
type Rigidity string

const (
	RigidityHard Rigidity = "hard"
	RigidityFirm Rigidity = "firm"
	RigiditySoft Rigidity = "soft"
	RigidityFree Rigidity = "free"
)

// #endregion

// #region tone

// Tone is the escalation level of prompt style for the day.
type Tone string

const (
	ToneGentle Tone = "gentle"
	ToneCoach  Tone = "coach"
	ToneDS     Tone = "ds"
)

// ToneLadder is the ordered escalation scale, mildest first.
var ToneLadder = []Tone{ToneGentle, ToneCoach, ToneDS}

// #endregion

// #region state

// State is a segment's position in the stewardship lifecycle.
type State string

const (
	StateIdleDay       State = "idle_day"
	StatePlanned       State = "segment_planned"
	StateAwaitingStart State = "awaiting_start"
	StateInProgress    State = "in_progress"
	StateOffTrack      State = "off_track"
	StatePaused        State = "paused"
	StateSnoozed       State = "snoozed"
	StateInterrupted   State = "interrupted"
	StateCompleted     State = "completed"
	StateMissed        State = "missed"
	StateRescheduled   State = "rescheduled"
)

// Terminal reports whether s absorbs into IDLE_DAY on the next evaluation.
func (s State) Terminal() bool {
	return s == StateCompleted || s == StateMissed || s == StateRescheduled
}

// #endregion

// #region event

// Event is a lifecycle input: a detected boundary crossing, a user verb,
// or an external interruption signal.
type Event string

const (
	EventTickStart           Event = "tick_start"
	EventTickMid             Event = "tick_mid"
	EventTickEnd             Event = "tick_end"
	EventUserStart           Event = "user_start"
	EventUserSnooze          Event = "user_snooze"
	EventUserSkip            Event = "user_skip"
	EventUserExtend15        Event = "user_extend_15"
	EventUserExtend30        Event = "user_extend_30"
	EventUserPivot           Event = "user_pivot"
	EventUserDone            Event = "user_done"
	EventUserNeedMore        Event = "user_need_more"
	EventUserDidntStart      Event = "user_didnt_start"
	EventUserPause           Event = "user_pause"
	EventExternalInterrupted Event = "external_interrupted"
	EventExternalResume      Event = "external_resume"
	EventAutoMIA             Event = "auto_mia"
)

// #endregion

// #region action

// Action is the side-effect tag returned by the state machine; the
// orchestrator performs it.
type Action string

const (
	ActionNone                   Action = ""
	ActionSendStart              Action = "send_start"
	ActionSendMid                Action = "send_mid"
	ActionSendEnd                Action = "send_end"
	ActionSendFTWIntent          Action = "send_ftw_intent"
	ActionMarkStarted            Action = "started"
	ActionMarkMIA                Action = "mark_mia"
	ActionExtend15               Action = "extend_15"
	ActionExtend30               Action = "extend_30"
	ActionPivot                  Action = "pivot"
	ActionSnooze                 Action = "snooze_segment"
	ActionPause                  Action = "pause_timer"
	ActionScheduleMore           Action = "schedule_more"
	ActionScheduleRecovery       Action = "schedule_recovery"
	ActionConfirmReschedule      Action = "confirm_reschedule"
	ActionNeedsConfirmReschedule Action = "needs_confirm_reschedule"
	ActionNoSlot                 Action = "no_slot_available"
)

// #endregion

// #region status-markers

// MidStatus is the persisted midpoint marker. Empty means the midpoint
// boundary has not been handled yet.
type MidStatus string

const (
	MidUnset   MidStatus = ""
	MidPinged  MidStatus = "pinged" // midpoint prompt sent, awaiting answer
	MidOK      MidStatus = "ok"
	MidMIA     MidStatus = "mia"
	MidOverrun MidStatus = "overrun"
	MidPivot   MidStatus = "pivot"
)

// EndStatus is the persisted terminal marker. Once set the segment is closed
// and excluded from tick processing.
type EndStatus string

const (
	EndUnset       EndStatus = ""
	EndCompleted   EndStatus = "completed"
	EndMissed      EndStatus = "missed"
	EndRescheduled EndStatus = "rescheduled"
	EndPivoted     EndStatus = "pivoted"
	EndDrift       EndStatus = "drift"
)

// HoldStatus is the persisted hold marker for manual pause, timed snooze,
// and external interruptions. Lifecycle state is re-derived from persisted
// fields on every tick, so holds must survive a restart like any other marker.
type HoldStatus string

const (
	HoldNone        HoldStatus = ""
	HoldPaused      HoldStatus = "paused"
	HoldSnoozed     HoldStatus = "snoozed"
	HoldInterrupted HoldStatus = "interrupted"
)

// #endregion

// #region segment

// Segment is one block of intended activity or protected free time.
type Segment struct {
	ID               string
	Kind             Kind
	Title            string
	Rigidity         Rigidity
	StartAt          time.Time
	EndAt            time.Time
	ToneAtStart      Tone
	StartConfirmedAt *time.Time
	MidpointStatus   MidStatus
	EndStatus        EndStatus
	HoldStatus       HoldStatus
	ReasonCode       string
	RescheduleTarget *time.Time
	CreatedAt        time.Time
}

// Closed reports whether a terminal end status has been set.
func (s Segment) Closed() bool {
	return s.EndStatus != EndUnset
}

// Duration returns the planned length of the segment.
func (s Segment) Duration() time.Duration {
	return s.EndAt.Sub(s.StartAt)
}

// Midpoint returns the instant halfway through the segment.
func (s Segment) Midpoint() time.Time {
	return s.StartAt.Add(s.Duration() / 2)
}

// Validate checks the fields the tick loop depends on. A segment failing
// validation is skipped for the tick, not auto-closed.
func (s Segment) Validate() error {
	if s.ID == "" {
		return fmt.Errorf("segment missing id")
	}
	if s.Kind != KindScheduled && s.Kind != KindFree {
		return fmt.Errorf("segment %s: unknown kind %q", s.ID, s.Kind)
	}
	switch s.Rigidity {
	case RigidityHard, RigidityFirm, RigiditySoft, RigidityFree:
	default:
		return fmt.Errorf("segment %s: unknown rigidity %q", s.ID, s.Rigidity)
	}
	if s.StartAt.IsZero() || s.EndAt.IsZero() {
		return fmt.Errorf("segment %s: missing start/end timestamps", s.ID)
	}
	if !s.EndAt.After(s.StartAt) {
		return fmt.Errorf("segment %s: end_at %s not after start_at %s", s.ID, s.EndAt, s.StartAt)
	}
	return nil
}

// #endregion

// #region day-state

// DayState is the per-day aggregate: tone, streaks, and recovery usage.
// The streak counters are mutually exclusive; incrementing one resets the
// other to zero.
type DayState struct {
	Day                    string // YYYY-MM-DD in the steward's timezone
	CurrentTone            Tone
	ConsecutiveMisses      int
	ConsecutiveCompletions int
	ToneCooldownUntil      *time.Time
	RecoveryBlocksUsed     int
}

// DefaultDayState returns the record auto-created on first access for a day.
func DefaultDayState(day string) DayState {
	return DayState{Day: day, CurrentTone: ToneGentle}
}

// #endregion

// #region parse

// ParseRigidity normalizes a stored or tagged rigidity string, defaulting
// to soft for anything unrecognized.
func ParseRigidity(s string) Rigidity {
	switch Rigidity(s) {
	case RigidityHard, RigidityFirm, RigiditySoft, RigidityFree:
		return Rigidity(s)
	}
	return RigiditySoft
}

// ParseTone normalizes a stored tone string, defaulting to gentle.
func ParseTone(s string) Tone {
	switch Tone(s) {
	case ToneGentle, ToneCoach, ToneDS:
		return Tone(s)
	}
	return ToneGentle
}

// #endregion
