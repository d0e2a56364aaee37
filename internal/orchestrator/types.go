package orchestrator

// #region imports
import (
	"context"
	"time"

	"github.com/danielpatrickdp/segment-steward/internal/calbridge"
	"github.com/danielpatrickdp/segment-steward/internal/policy"
	"github.com/danielpatrickdp/segment-steward/internal/segment"
)

// #endregion

// #region decision

// Decision is one outbound stewardship decision: which segment, what
// happened, what to do about it, and at which tone level.
type Decision struct {
	SegmentID string
	Event     segment.Event
	Action    segment.Action
	Tone      segment.Tone
	Reason    string
}

// #endregion

// #region collaborators

// Dispatcher delivers decisions to the user-facing channel. The orchestrator
// persists markers before dispatching, so a lost delivery never refires.
type Dispatcher interface {
	Dispatch(ctx context.Context, d Decision) error
}

// Calendar is the slice of the bridge the orchestrator needs. Satisfied by
// *calbridge.Client; replay and tests inject scripted implementations.
type Calendar interface {
	CurrentAndNext(ctx context.Context) (current, next *calbridge.Event, err error)
	ListToday(ctx context.Context) ([]calbridge.Event, error)
	CreateEvent(ctx context.Context, title string, start time.Time, minutes int) (string, error)
	Reschedule(ctx context.Context, eventID string, newStart time.Time) error
	FreeSlots(ctx context.Context, from, to time.Time, minMinutes int) ([]calbridge.Slot, error)
}

// Flags is the feature-flag surface read per decision.
type Flags interface {
	Enabled(name string) bool
}

// #endregion

// #region command

// Command is a user verb aimed at a segment. SegmentID may be empty, in
// which case the verb targets the active segment.
type Command struct {
	SegmentID string
	Verb      string
	Minutes   int    // snooze/extend amount
	Focus     string // pivot focus note
}

// #endregion

// #region config

// Config carries the orchestrator's environment-derived settings.
type Config struct {
	Quiet    QuietWindow
	Location *time.Location
	Planner  policy.Config
}

// DefaultConfig returns local-time defaults with the standard quiet window.
func DefaultConfig() Config {
	quiet, _ := ParseQuietWindow(DefaultQuietHours)
	return Config{
		Quiet:    quiet,
		Location: time.Local,
		Planner:  policy.DefaultConfig(),
	}
}

// #endregion
