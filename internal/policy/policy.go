package policy

import (
	"github.com/danielpatrickdp/segment-steward/internal/segment"
)

// #region resolve

// Resolution is the policy's answer for a segment that did not happen as
// planned: the terminal state plus the action the orchestrator must perform.
type Resolution struct {
	State  segment.State
	Action segment.Action
}

// Resolve decides the outcome of a missed/extended/abandoned segment from
// its rigidity and whether escalated mode is active.
//
//   - hard: never auto-moved; an explicit confirmation is mandatory before
//     any calendar mutation.
//   - firm: a proposal is generated and shown, awaiting a lighter accept.
//   - soft/free, escalated off: auto-book the next suitable slot today.
//   - soft/free, escalated on: recovery path. The segment is marked missed
//     and a recovery block is searched today-first, distinct from a
//     reschedule for reporting.
func Resolve(rig segment.Rigidity, escalated bool) Resolution {
	switch rig {
	case segment.RigidityHard:
		return Resolution{segment.StateRescheduled, segment.ActionNeedsConfirmReschedule}
	case segment.RigidityFirm:
		return Resolution{segment.StateRescheduled, segment.ActionConfirmReschedule}
	}
	// soft / free
	if escalated {
		return Resolution{segment.StateMissed, segment.ActionScheduleRecovery}
	}
	return Resolution{segment.StateRescheduled, segment.ActionScheduleMore}
}

// #endregion resolve
