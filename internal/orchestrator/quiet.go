package orchestrator

import (
	"fmt"
	"time"
)

// #region quiet-window

// DefaultQuietHours is the window during which outbound decisions are
// suppressed unless configured otherwise.
const DefaultQuietHours = "22:00-06:00"

// QuietWindow is a daily local-time window, possibly wrapping midnight.
// The zero value is an empty window that contains nothing.
type QuietWindow struct {
	start int // minutes since midnight, inclusive
	end   int // minutes since midnight, exclusive
	set   bool
}

// ParseQuietWindow parses "HH:MM-HH:MM". Equal endpoints yield an empty
// window (quiet hours effectively off).
func ParseQuietWindow(s string) (QuietWindow, error) {
	var sh, sm, eh, em int
	if _, err := fmt.Sscanf(s, "%d:%d-%d:%d", &sh, &sm, &eh, &em); err != nil {
		return QuietWindow{}, fmt.Errorf("quiet hours %q: %w", s, err)
	}
	if sh < 0 || sh > 23 || eh < 0 || eh > 23 || sm < 0 || sm > 59 || em < 0 || em > 59 {
		return QuietWindow{}, fmt.Errorf("quiet hours %q: out of range", s)
	}
	return QuietWindow{start: sh*60 + sm, end: eh*60 + em, set: true}, nil
}

// Contains reports whether the wall-clock time of t falls in the window.
func (w QuietWindow) Contains(t time.Time) bool {
	if !w.set || w.start == w.end {
		return false
	}
	m := t.Hour()*60 + t.Minute()
	if w.start < w.end {
		return m >= w.start && m < w.end
	}
	// wraps midnight
	return m >= w.start || m < w.end
}

// #endregion
