package tick

import (
	"time"

	"github.com/danielpatrickdp/segment-steward/internal/segment"
)

// #region constants

// coldStartLag bounds the lower edge of a crossing check when no prior
// watermark exists (first tick after process start).
const coldStartLag = 61 * time.Second

// JustEndedWindow is the trailing sweep window for segments whose end
// boundary passed while they were outside the active-segment query.
const JustEndedWindow = 65 * time.Second

// #endregion

// #region cold-watermark

// ColdWatermark returns the fallback watermark for a segment with no
// evaluation history in this process. It is only a lower bound for crossing
// checks; the persisted markers remain the duplicate-firing gate.
func ColdWatermark(now time.Time) time.Time {
	return now.Add(-coldStartLag)
}

// #endregion

// #region detect

// Detect reports which of the segment's start, midpoint, and end boundaries
// were crossed in (watermark, now]. Each crossing is gated on the segment's
// own persisted marker, so a crossing whose marker is already set never
// fires again, across restarts or overlapping invocations. Results are in
// chronological order: start, mid, end.
func Detect(seg segment.Segment, watermark, now time.Time) []segment.Event {
	var events []segment.Event

	if crossed(watermark, seg.StartAt, now) && seg.StartConfirmedAt == nil {
		events = append(events, segment.EventTickStart)
	}

	if seg.Duration() > 0 {
		if crossed(watermark, seg.Midpoint(), now) && seg.MidpointStatus == segment.MidUnset {
			events = append(events, segment.EventTickMid)
		}
	}

	if crossed(watermark, seg.EndAt, now) && seg.EndStatus == segment.EndUnset {
		events = append(events, segment.EventTickEnd)
	}

	return events
}

func crossed(watermark, boundary, now time.Time) bool {
	return watermark.Before(boundary) && !now.Before(boundary)
}

// #endregion

// #region infer-state

// InferState derives the lifecycle state from the segment's persisted fields
// alone. Holds (pause/snooze/interruption) take precedence over the window
// position; a segment that ran past its end without closing is still
// IN_PROGRESS until something closes it.
func InferState(seg segment.Segment, now time.Time) segment.State {
	if seg.Closed() {
		return segment.StateIdleDay
	}
	switch seg.HoldStatus {
	case segment.HoldPaused:
		return segment.StatePaused
	case segment.HoldSnoozed:
		return segment.StateSnoozed
	case segment.HoldInterrupted:
		return segment.StateInterrupted
	}
	if seg.StartAt.After(now) {
		return segment.StatePlanned
	}
	if !now.After(seg.EndAt) {
		if seg.StartConfirmedAt == nil {
			return segment.StateAwaitingStart
		}
		if seg.MidpointStatus == segment.MidMIA || seg.MidpointStatus == segment.MidPivot {
			return segment.StateOffTrack
		}
		return segment.StateInProgress
	}
	// past end but not closed
	if seg.StartConfirmedAt == nil {
		return segment.StateAwaitingStart
	}
	if seg.MidpointStatus == segment.MidMIA || seg.MidpointStatus == segment.MidPivot {
		return segment.StateOffTrack
	}
	return segment.StateInProgress
}

// #endregion
