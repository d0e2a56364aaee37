package freetime

import (
	"time"

	"github.com/danielpatrickdp/segment-steward/internal/segment"
)

// #region constants

// MinGap is the smallest calendar gap worth stewarding as free time.
const MinGap = 15 * time.Minute

// DefaultHorizon bounds a free-time window when no next commitment is known.
const DefaultHorizon = 30 * time.Minute

// #endregion constants

// #region propose

// Propose materializes a free-time segment covering the gap from now until
// the next known commitment (or the default horizon). Returns nil when the
// gap is below the minimum threshold. The caller only invokes this when no
// segment is active and no calendar event is current.
func Propose(now time.Time, nextStart *time.Time, dayTone segment.Tone) *segment.Segment {
	gapEnd := now.Add(DefaultHorizon)
	if nextStart != nil {
		gapEnd = *nextStart
	}
	if gapEnd.Sub(now) < MinGap {
		return nil
	}
	return &segment.Segment{
		ID:          "ftw:" + now.UTC().Format("20060102T1504"),
		Kind:        segment.KindFree,
		Title:       "Free time",
		Rigidity:    segment.RigidityFree,
		StartAt:     now,
		EndAt:       gapEnd,
		ToneAtStart: dayTone,
	}
}

// #endregion propose
