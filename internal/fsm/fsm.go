package fsm

import (
	"github.com/danielpatrickdp/segment-steward/internal/policy"
	"github.com/danielpatrickdp/segment-steward/internal/segment"
)

// #region outcome

// Outcome is the state machine's answer: the next state and the
// side-effect tag the orchestrator performs.
type Outcome struct {
	State  segment.State
	Action segment.Action
}

// #endregion outcome

// #region table

type key struct {
	State segment.State
	Event segment.Event
}

// rule is one transition table entry. viaPolicy rows resolve through the
// rigidity policy; escalatedOnly rows are no-ops unless escalated mode is
// active; escalatedRecovery rows force the recovery path under escalation
// and fall back to the policy otherwise.
type rule struct {
	To                segment.State
	Action            segment.Action
	ViaPolicy         bool
	EscalatedOnly     bool
	EscalatedRecovery bool
}

var transitions = map[key]rule{
	// Planned → Awaiting
	{segment.StatePlanned, segment.EventTickStart}: {To: segment.StateAwaitingStart, Action: segment.ActionSendStart},

	// Awaiting start
	{segment.StateAwaitingStart, segment.EventUserStart}:           {To: segment.StateInProgress, Action: segment.ActionMarkStarted},
	{segment.StateAwaitingStart, segment.EventUserSnooze}:          {To: segment.StateSnoozed, Action: segment.ActionSnooze},
	{segment.StateAwaitingStart, segment.EventUserPause}:           {To: segment.StatePaused, Action: segment.ActionPause},
	{segment.StateAwaitingStart, segment.EventUserSkip}:            {ViaPolicy: true},
	{segment.StateAwaitingStart, segment.EventUserDidntStart}:      {ViaPolicy: true},
	{segment.StateAwaitingStart, segment.EventExternalInterrupted}: {To: segment.StateInterrupted},
	{segment.StateAwaitingStart, segment.EventTickMid}:             {To: segment.StateOffTrack, Action: segment.ActionMarkMIA, EscalatedOnly: true},
	{segment.StateAwaitingStart, segment.EventTickEnd}:             {ViaPolicy: true, EscalatedRecovery: true},

	// In progress
	{segment.StateInProgress, segment.EventTickMid}:      {To: segment.StateInProgress, Action: segment.ActionSendMid},
	{segment.StateInProgress, segment.EventUserExtend15}: {To: segment.StateInProgress, Action: segment.ActionExtend15},
	{segment.StateInProgress, segment.EventUserExtend30}: {To: segment.StateInProgress, Action: segment.ActionExtend30},
	{segment.StateInProgress, segment.EventUserPivot}:    {To: segment.StateOffTrack, Action: segment.ActionPivot},
	{segment.StateInProgress, segment.EventUserSnooze}:   {To: segment.StatePaused, Action: segment.ActionPause},
	{segment.StateInProgress, segment.EventUserSkip}:     {ViaPolicy: true},
	{segment.StateInProgress, segment.EventUserNeedMore}: {ViaPolicy: true},
	{segment.StateInProgress, segment.EventUserDone}:     {To: segment.StateCompleted, Action: segment.ActionSendEnd},
	{segment.StateInProgress, segment.EventTickEnd}:      {ViaPolicy: true, EscalatedRecovery: true},

	// Paused
	{segment.StatePaused, segment.EventUserStart}: {To: segment.StateInProgress, Action: segment.ActionMarkStarted},
	{segment.StatePaused, segment.EventTickStart}: {To: segment.StateInProgress, Action: segment.ActionMarkStarted},
	{segment.StatePaused, segment.EventTickEnd}:   {ViaPolicy: true},

	// Snoozed (timed): auto-starts at the shifted start boundary
	{segment.StateSnoozed, segment.EventUserStart}: {To: segment.StateInProgress, Action: segment.ActionMarkStarted},
	{segment.StateSnoozed, segment.EventTickStart}: {To: segment.StateInProgress, Action: segment.ActionMarkStarted},
	{segment.StateSnoozed, segment.EventTickEnd}:   {ViaPolicy: true},

	// Interrupted (external)
	{segment.StateInterrupted, segment.EventExternalResume}: {To: segment.StateAwaitingStart, Action: segment.ActionSendStart},
	{segment.StateInterrupted, segment.EventTickEnd}:        {ViaPolicy: true},

	// Off-track resolution
	{segment.StateOffTrack, segment.EventUserDone}:     {To: segment.StateCompleted, Action: segment.ActionSendEnd},
	{segment.StateOffTrack, segment.EventUserNeedMore}: {ViaPolicy: true},
	{segment.StateOffTrack, segment.EventTickEnd}:      {To: segment.StateMissed, Action: segment.ActionScheduleRecovery, EscalatedOnly: true},
}

// #endregion table

// #region apply

// Apply evaluates one event against the current state and returns the next
// state and action. Events not valid for the current state are no-ops: the
// state comes back unchanged with no action, so duplicate or late-arriving
// events from a jittery scheduler never corrupt state.
//
// Apply is pure; tone escalation on AUTO_MIA is a separate step the
// orchestrator composes (see EscalateOnMIA).
func Apply(state segment.State, event segment.Event, rig segment.Rigidity, escalated bool) Outcome {
	// Terminal states absorb into IDLE_DAY on the next evaluation.
	if state.Terminal() {
		return Outcome{State: segment.StateIdleDay}
	}

	r, ok := transitions[key{state, event}]
	if !ok {
		return Outcome{State: state}
	}
	if r.EscalatedOnly && !escalated {
		return Outcome{State: state}
	}
	if r.EscalatedRecovery && escalated {
		return Outcome{State: segment.StateMissed, Action: segment.ActionScheduleRecovery}
	}
	if r.ViaPolicy {
		res := policy.Resolve(rig, escalated)
		return Outcome{State: res.State, Action: res.Action}
	}
	return Outcome{State: r.To, Action: r.Action}
}

// #endregion apply
