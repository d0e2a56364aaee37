package calbridge

import "time"

// #region event

// Event is a calendar event as reported by the bridge sidecar.
type Event struct {
	ID           string
	Title        string
	Description  string
	StartAt      time.Time
	EndAt        time.Time
	HasAttendees bool
}

// #endregion event

// #region slot

// Slot is a free calendar window usable for follow-up or recovery blocks.
type Slot struct {
	StartAt time.Time
	Minutes int
}

// #endregion slot
