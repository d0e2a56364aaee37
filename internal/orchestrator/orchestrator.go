package orchestrator

// #region imports
import (
	"context"
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/danielpatrickdp/segment-steward/internal/calbridge"
	"github.com/danielpatrickdp/segment-steward/internal/flags"
	"github.com/danielpatrickdp/segment-steward/internal/freetime"
	"github.com/danielpatrickdp/segment-steward/internal/fsm"
	"github.com/danielpatrickdp/segment-steward/internal/logging"
	"github.com/danielpatrickdp/segment-steward/internal/policy"
	"github.com/danielpatrickdp/segment-steward/internal/segment"
	"github.com/danielpatrickdp/segment-steward/internal/store"
	"github.com/danielpatrickdp/segment-steward/internal/tick"
)

// #endregion

// #region orchestrator-struct

// Orchestrator runs the per-tick stewardship pipeline: calendar mirroring,
// boundary detection, state transitions, policy booking, and decision
// dispatch. Tick, HandleCommand, and Reconcile are called from a single
// goroutine; the watermark map is not locked.
type Orchestrator struct {
	store      *store.Store
	cal        Calendar
	planner    *policy.Planner
	flags      Flags
	dispatcher Dispatcher
	config     Config
	watermarks map[string]time.Time // per-segment last evaluation instant
}

// #endregion

// #region constructor

// New creates a fully wired orchestrator.
func New(st *store.Store, cal Calendar, fl Flags, d Dispatcher, cfg Config) *Orchestrator {
	if cfg.Location == nil {
		cfg.Location = time.UTC
	}
	return &Orchestrator{
		store:      st,
		cal:        cal,
		planner:    policy.NewPlanner(st, cal, cfg.Planner),
		flags:      fl,
		dispatcher: d,
		config:     cfg,
		watermarks: make(map[string]time.Time),
	}
}

// #endregion

// #region tick

// Tick runs one evaluation pass. Calendar unavailability degrades the pass
// (no mirroring, no free-time allocation) instead of failing it; per-segment
// errors are logged and the segment is retried on the next tick.
func (o *Orchestrator) Tick(ctx context.Context, now time.Time) error {
	day, err := o.store.GetDayState(o.dayKey(now))
	if err != nil {
		return err
	}

	current, next, calErr := o.cal.CurrentAndNext(ctx)
	if calErr != nil {
		log.Printf("[ORCH] calendar unavailable this tick: %v", calErr)
	} else if current != nil {
		if err := o.ensureMirrored(*current); err != nil {
			log.Printf("[ORCH] mirror %s: %v", current.ID, err)
		}
	}

	// A real event taking over a stewarded free window closes it as drift.
	if current != nil {
		if ftw, err := o.store.ActiveFreeWindow(now); err != nil {
			log.Printf("[ORCH] free window lookup: %v", err)
		} else if ftw != nil {
			if err := o.closeDrift(*ftw); err != nil {
				log.Printf("[ORCH] drift close %s: %v", ftw.ID, err)
			}
		}
	}

	active, err := o.store.GetActive(now)
	if err != nil {
		return err
	}

	if active != nil {
		if err := o.processSegment(ctx, *active, &day, now); err != nil {
			log.Printf("[ORCH] segment %s: %v", active.ID, err)
		}
	}

	// Trailing sweep for end boundaries the active query no longer sees.
	swept, err := o.store.JustEnded(now, tick.JustEndedWindow)
	if err != nil {
		log.Printf("[ORCH] just-ended sweep: %v", err)
	} else {
		for _, seg := range swept {
			if active != nil && seg.ID == active.ID {
				continue
			}
			if err := o.processSegment(ctx, seg, &day, now); err != nil {
				log.Printf("[ORCH] segment %s: %v", seg.ID, err)
			}
		}
	}

	if calErr == nil && current == nil && o.flags.Enabled(flags.FreeTime) {
		if err := o.allocateFreeTime(now, next, day.CurrentTone); err != nil {
			log.Printf("[ORCH] free time: %v", err)
		}
	}

	return o.store.SetDayState(day)
}

func (o *Orchestrator) allocateFreeTime(now time.Time, next *calbridge.Event, tone segment.Tone) error {
	active, err := o.store.GetActive(now)
	if err != nil || active != nil {
		return err
	}

	// Gap runs until the earlier of the next calendar event and the next
	// stored segment (a booked recovery block counts as a commitment).
	var nextStart *time.Time
	if next != nil {
		nextStart = &next.StartAt
	}
	if upcoming, err := o.store.GetNext(now); err == nil && upcoming != nil {
		if nextStart == nil || upcoming.StartAt.Before(*nextStart) {
			nextStart = &upcoming.StartAt
		}
	}

	ftw := freetime.Propose(now, nextStart, tone)
	if ftw == nil {
		return nil
	}
	if existing, err := o.store.GetByID(ftw.ID); err != nil || existing != nil {
		return err
	}
	if err := o.store.InsertSegment(*ftw); err != nil {
		return err
	}
	log.Printf("[ORCH] free-time window %s until %s", ftw.ID, ftw.EndAt.Format(time.RFC3339))
	return nil
}

// #endregion tick

// #region process-segment

// processSegment detects boundary crossings for one segment and applies each
// through the state machine. The watermark only advances after a fully
// successful pass, so a failed update is re-detected next tick.
func (o *Orchestrator) processSegment(ctx context.Context, seg segment.Segment, day *segment.DayState, now time.Time) error {
	if err := seg.Validate(); err != nil {
		log.Printf("[ORCH] skipping malformed segment: %v", err)
		return nil
	}

	wm, ok := o.watermarks[seg.ID]
	if !ok {
		wm = tick.ColdWatermark(now)
	}

	for _, ev := range tick.Detect(seg, wm, now) {
		if seg.Kind == segment.KindFree && ev == segment.EventTickEnd {
			if err := o.closeFreeWindow(ctx, seg, *day, now); err != nil {
				return err
			}
			break
		}
		if err := o.applyEvent(ctx, &seg, day, ev, now, Command{}); err != nil {
			return err
		}
		if seg.Closed() {
			break
		}
	}

	o.watermarks[seg.ID] = now
	return nil
}

// applyEvent runs one event through the state machine and performs the
// resulting action, then reloads the segment so the next event in the batch
// sees the persisted markers.
func (o *Orchestrator) applyEvent(ctx context.Context, seg *segment.Segment, day *segment.DayState, ev segment.Event, now time.Time, cmd Command) error {
	state := tick.InferState(*seg, evalInstant(*seg, ev, now))
	out := fsm.Apply(state, ev, o.effectiveRigidity(*seg), o.escalated())
	if out.State == state && out.Action == segment.ActionNone {
		log.Printf("[ORCH] %s: %s in %s is a no-op", seg.ID, ev, state)
		return nil
	}

	if err := o.perform(ctx, seg, day, ev, out, now, cmd); err != nil {
		return err
	}

	fresh, err := o.store.GetByID(seg.ID)
	if err != nil {
		return err
	}
	if fresh != nil {
		*seg = *fresh
	}
	return nil
}

// evalInstant returns the instant a transition should be evaluated at. A
// boundary event sees the state as it stood just before the boundary, so a
// start crossing finds SEGMENT_PLANNED rather than the already-in-window
// AWAITING_START.
func evalInstant(seg segment.Segment, ev segment.Event, now time.Time) time.Time {
	switch ev {
	case segment.EventTickStart:
		return seg.StartAt.Add(-time.Nanosecond)
	case segment.EventTickMid:
		return seg.Midpoint().Add(-time.Nanosecond)
	case segment.EventTickEnd:
		return seg.EndAt.Add(-time.Nanosecond)
	}
	return now
}

// #endregion process-segment

// #region perform

// perform persists the action's markers, updates day-state bookkeeping, and
// emits the decision. Markers are written before dispatch so a lost delivery
// never refires.
func (o *Orchestrator) perform(ctx context.Context, seg *segment.Segment, day *segment.DayState, ev segment.Event, out fsm.Outcome, now time.Time, cmd Command) error {
	d := Decision{SegmentID: seg.ID, Event: ev, Action: out.Action, Tone: day.CurrentTone}

	switch out.Action {
	case segment.ActionSendStart:
		tone := day.CurrentTone
		patch := store.SegmentPatch{ToneAtStart: &tone}
		if seg.HoldStatus != segment.HoldNone {
			hold := segment.HoldNone
			patch.HoldStatus = &hold
		}
		if seg.Kind == segment.KindFree {
			// Free windows need no start confirmation; the intent prompt
			// itself marks them in progress.
			patch.StartConfirmedAt = &now
			d.Action = segment.ActionSendFTWIntent
		}
		if err := o.store.UpdateSegment(seg.ID, patch); err != nil {
			return err
		}
		return o.emit(ctx, d, now)

	case segment.ActionMarkStarted:
		hold := segment.HoldNone
		if err := o.store.UpdateSegment(seg.ID, store.SegmentPatch{
			StartConfirmedAt: &now,
			HoldStatus:       &hold,
		}); err != nil {
			return err
		}
		return o.emit(ctx, d, now)

	case segment.ActionSendMid:
		mid := segment.MidPinged
		if err := o.store.UpdateSegment(seg.ID, store.SegmentPatch{MidpointStatus: &mid}); err != nil {
			return err
		}
		return o.emit(ctx, d, now)

	case segment.ActionMarkMIA:
		mid := segment.MidMIA
		if err := o.store.UpdateSegment(seg.ID, store.SegmentPatch{MidpointStatus: &mid}); err != nil {
			return err
		}
		if fsm.EscalateOnMIA(day, o.escalated(), now) {
			log.Printf("[ORCH] tone escalated to %s after MIA on %s", day.CurrentTone, seg.ID)
		}
		d.Tone = day.CurrentTone
		return o.emit(ctx, d, now)

	case segment.ActionSendEnd:
		if err := o.closeSegment(seg.ID, segment.EndCompleted, string(ev)); err != nil {
			return err
		}
		if seg.Kind == segment.KindScheduled {
			fsm.RecordCompletion(day)
			if fsm.MaybeRelax(day, now) {
				log.Printf("[ORCH] tone relaxed to %s after %d clean completions", day.CurrentTone, day.ConsecutiveCompletions)
			}
		}
		return o.emit(ctx, d, now)

	case segment.ActionExtend15:
		return o.extend(ctx, seg, d, 15*time.Minute, now)
	case segment.ActionExtend30:
		return o.extend(ctx, seg, d, 30*time.Minute, now)

	case segment.ActionPivot:
		mid := segment.MidPivot
		if err := o.store.UpdateSegment(seg.ID, store.SegmentPatch{MidpointStatus: &mid}); err != nil {
			return err
		}
		d.Reason = cmd.Focus
		return o.emit(ctx, d, now)

	case segment.ActionSnooze:
		m := cmd.Minutes
		if m <= 0 {
			m = 10
		}
		newStart := now.Add(time.Duration(m) * time.Minute)
		newEnd := newStart.Add(seg.Duration())
		hold := segment.HoldSnoozed
		if err := o.store.UpdateSegment(seg.ID, store.SegmentPatch{
			StartAt:    &newStart,
			EndAt:      &newEnd,
			HoldStatus: &hold,
		}); err != nil {
			return err
		}
		d.Reason = fmt.Sprintf("%dm", m)
		return o.emit(ctx, d, now)

	case segment.ActionPause:
		hold := segment.HoldPaused
		if err := o.store.UpdateSegment(seg.ID, store.SegmentPatch{HoldStatus: &hold}); err != nil {
			return err
		}
		return o.emit(ctx, d, now)

	case segment.ActionScheduleMore:
		booking, err := o.planner.ScheduleMore(ctx, *seg, now, string(ev))
		if err != nil {
			return err
		}
		fillBooking(&d, booking)
		return o.emit(ctx, d, now)

	case segment.ActionScheduleRecovery:
		booking, err := o.planner.ScheduleRecovery(ctx, *seg, day, now, string(ev))
		if err != nil {
			return err
		}
		if seg.Kind == segment.KindScheduled {
			fsm.RecordMiss(day)
		}
		fillBooking(&d, booking)
		return o.emit(ctx, d, now)

	case segment.ActionNeedsConfirmReschedule, segment.ActionConfirmReschedule:
		if err := o.closeSegment(seg.ID, segment.EndRescheduled, "awaiting_confirm"); err != nil {
			return err
		}
		d.Reason = "awaiting_confirm"
		return o.emit(ctx, d, now)
	}

	// State-only transitions: external interruption holds the segment
	// without an outbound prompt.
	if ev == segment.EventExternalInterrupted {
		hold := segment.HoldInterrupted
		if err := o.store.UpdateSegment(seg.ID, store.SegmentPatch{HoldStatus: &hold}); err != nil {
			return err
		}
		o.logDecision(Decision{SegmentID: seg.ID, Event: ev, Tone: day.CurrentTone, Reason: "hold"})
	}
	return nil
}

func (o *Orchestrator) extend(ctx context.Context, seg *segment.Segment, d Decision, by time.Duration, now time.Time) error {
	newEnd := seg.EndAt.Add(by)
	patch := store.SegmentPatch{EndAt: &newEnd}
	if seg.MidpointStatus == segment.MidPinged {
		// extending in answer to the midpoint ping resolves it as overrun
		mid := segment.MidOverrun
		patch.MidpointStatus = &mid
	}
	if err := o.store.UpdateSegment(seg.ID, patch); err != nil {
		return err
	}
	d.Reason = newEnd.Format(time.RFC3339)
	return o.emit(ctx, d, now)
}

func fillBooking(d *Decision, booking policy.Booking) {
	if booking.Outcome == policy.OutcomeNoSlot {
		d.Action = segment.ActionNoSlot
		d.Reason = booking.Reason
		return
	}
	d.Reason = booking.Target.Format(time.RFC3339)
}

func (o *Orchestrator) closeSegment(id string, end segment.EndStatus, reason string) error {
	return o.store.UpdateSegment(id, store.SegmentPatch{EndStatus: &end, ReasonCode: &reason})
}

// closeFreeWindow ends an undisturbed free-time window as completed; free
// time is never rescheduled or recovered.
func (o *Orchestrator) closeFreeWindow(ctx context.Context, seg segment.Segment, day segment.DayState, now time.Time) error {
	if err := o.closeSegment(seg.ID, segment.EndCompleted, "free_window_elapsed"); err != nil {
		return err
	}
	return o.emit(ctx, Decision{
		SegmentID: seg.ID,
		Event:     segment.EventTickEnd,
		Action:    segment.ActionSendEnd,
		Tone:      day.CurrentTone,
		Reason:    "free_window_elapsed",
	}, now)
}

func (o *Orchestrator) closeDrift(freeSeg segment.Segment) error {
	if err := o.closeSegment(freeSeg.ID, segment.EndDrift, "calendar_takeover"); err != nil {
		return err
	}
	o.logDecision(Decision{SegmentID: freeSeg.ID, Event: segment.EventTickEnd, Reason: "calendar_takeover"})
	log.Printf("[ORCH] free window %s closed: calendar event took over", freeSeg.ID)
	return nil
}

// #endregion perform

// #region emit

// emit appends the decision to the audit log and dispatches it unless quiet
// hours suppress delivery. Suppressed decisions stay logged; the persisted
// markers keep them from refiring after the window.
func (o *Orchestrator) emit(ctx context.Context, d Decision, now time.Time) error {
	o.logDecision(d)
	if o.flags.Enabled(flags.QuietGate) && o.config.Quiet.Contains(now.In(o.config.Location)) {
		log.Printf("[ORCH] quiet hours: suppressed %s for %s", d.Action, d.SegmentID)
		return nil
	}
	return o.dispatcher.Dispatch(ctx, d)
}

func (o *Orchestrator) logDecision(d Decision) {
	err := logging.LogDecision(o.store.DB(), logging.DecisionEntry{
		SegmentID: d.SegmentID,
		Event:     string(d.Event),
		Action:    string(d.Action),
		Tone:      string(d.Tone),
		Reason:    d.Reason,
	})
	if err != nil {
		log.Printf("[ORCH] decision log: %v", err)
	}
}

// #endregion emit

// #region commands

var verbEvents = map[string]segment.Event{
	"start":       segment.EventUserStart,
	"done":        segment.EventUserDone,
	"didnt_start": segment.EventUserDidntStart,
	"need_more":   segment.EventUserNeedMore,
	"snooze":      segment.EventUserSnooze,
	"pause":       segment.EventUserPause,
	"pivot":       segment.EventUserPivot,
	"skip":        segment.EventUserSkip,
	"interrupted": segment.EventExternalInterrupted,
	"resume":      segment.EventExternalResume,
}

// HandleCommand applies a user verb to its target segment. A verb that is
// invalid for the segment's current state is a logged no-op.
func (o *Orchestrator) HandleCommand(ctx context.Context, now time.Time, cmd Command) error {
	seg, err := o.targetSegment(cmd, now)
	if err != nil {
		return err
	}
	if seg == nil {
		log.Printf("[ORCH] command %q: no segment to steward", cmd.Verb)
		return nil
	}

	day, err := o.store.GetDayState(o.dayKey(now))
	if err != nil {
		return err
	}

	switch cmd.Verb {
	case "mid_ok":
		mid := segment.MidOK
		if err := o.store.UpdateSegment(seg.ID, store.SegmentPatch{MidpointStatus: &mid}); err != nil {
			return err
		}
		o.logDecision(Decision{SegmentID: seg.ID, Event: segment.EventTickMid, Tone: day.CurrentTone, Reason: "mid_ok"})
		return nil

	case "confirm_reschedule":
		booking, err := o.planner.ScheduleMore(ctx, *seg, now, "confirmed_reschedule")
		if err != nil {
			return err
		}
		d := Decision{SegmentID: seg.ID, Action: segment.ActionConfirmReschedule, Tone: day.CurrentTone}
		fillBooking(&d, booking)
		return o.emit(ctx, d, now)
	}

	ev, ok := verbEvents[cmd.Verb]
	if cmd.Verb == "extend" {
		ev, ok = segment.EventUserExtend15, true
		if cmd.Minutes >= 30 {
			ev = segment.EventUserExtend30
		}
	}
	if !ok {
		log.Printf("[ORCH] unknown verb %q", cmd.Verb)
		return nil
	}
	if ev == segment.EventUserSnooze && !o.flags.Enabled(flags.Snooze) {
		log.Printf("[ORCH] snooze disabled; ignoring for %s", seg.ID)
		return nil
	}

	if err := o.applyEvent(ctx, seg, &day, ev, now, cmd); err != nil {
		return err
	}
	return o.store.SetDayState(day)
}

// targetSegment resolves the segment a command addresses: an explicit id,
// else the active segment, else the most recently ended open segment (a
// "done" sent just after the end boundary still lands).
func (o *Orchestrator) targetSegment(cmd Command, now time.Time) (*segment.Segment, error) {
	if cmd.SegmentID != "" {
		return o.store.GetByID(cmd.SegmentID)
	}
	if active, err := o.store.GetActive(now); err != nil || active != nil {
		return active, err
	}
	ended, err := o.store.JustEnded(now, tick.JustEndedWindow)
	if err != nil || len(ended) == 0 {
		return nil, err
	}
	return &ended[len(ended)-1], nil
}

// #endregion commands

// #region reconcile

// Reconcile mirrors today's calendar events into segments. Existing rows
// keep their stewardship markers; only calendar-derived fields refresh.
func (o *Orchestrator) Reconcile(ctx context.Context, now time.Time) error {
	events, err := o.cal.ListToday(ctx)
	if err != nil {
		return fmt.Errorf("list today: %w", err)
	}
	for _, ev := range events {
		if err := o.store.UpsertSegment(mirrorSegment(ev)); err != nil {
			log.Printf("[ORCH] reconcile %s: %v", ev.ID, err)
		}
	}
	log.Printf("[ORCH] reconcile: mirrored %d events", len(events))
	return nil
}

func (o *Orchestrator) ensureMirrored(ev calbridge.Event) error {
	existing, err := o.store.GetByID("gcal:" + ev.ID)
	if err != nil || existing != nil {
		return err
	}
	seg := mirrorSegment(ev)
	if err := o.store.InsertSegment(seg); err != nil {
		return err
	}
	log.Printf("[ORCH] mirrored %s (%s, %s)", seg.ID, seg.Title, seg.Rigidity)
	return nil
}

// mirrorSegment maps a calendar event to its stewarded segment. A
// #rigidity:<level> tag in the description wins; otherwise events with
// attendees are firm, the rest soft.
func mirrorSegment(ev calbridge.Event) segment.Segment {
	rig, tagged := tagRigidity(ev.Description)
	if !tagged {
		rig = segment.RigiditySoft
		if ev.HasAttendees {
			rig = segment.RigidityFirm
		}
	}
	return segment.Segment{
		ID:       "gcal:" + ev.ID,
		Kind:     segment.KindScheduled,
		Title:    ev.Title,
		Rigidity: rig,
		StartAt:  ev.StartAt,
		EndAt:    ev.EndAt,
	}
}

func tagRigidity(desc string) (segment.Rigidity, bool) {
	for _, field := range strings.Fields(desc) {
		if strings.HasPrefix(field, "#rigidity:") {
			return segment.ParseRigidity(strings.TrimPrefix(field, "#rigidity:")), true
		}
	}
	return segment.RigiditySoft, false
}

// #endregion reconcile

// #region helpers

func (o *Orchestrator) escalated() bool {
	return o.flags.Enabled(flags.DSMode)
}

// effectiveRigidity degrades every segment to soft when the rigidity flag
// is off, so the policy ladder collapses to plain rescheduling.
func (o *Orchestrator) effectiveRigidity(seg segment.Segment) segment.Rigidity {
	if !o.flags.Enabled(flags.Rigidity) {
		return segment.RigiditySoft
	}
	return seg.Rigidity
}

func (o *Orchestrator) dayKey(now time.Time) string {
	return now.In(o.config.Location).Format("2006-01-02")
}

// #endregion helpers
