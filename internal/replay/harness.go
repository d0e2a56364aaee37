package replay

import (
	"context"
	"fmt"
	"time"

	"github.com/danielpatrickdp/segment-steward/internal/calbridge"
	"github.com/danielpatrickdp/segment-steward/internal/flags"
	"github.com/danielpatrickdp/segment-steward/internal/orchestrator"
	"github.com/danielpatrickdp/segment-steward/internal/segment"
	"github.com/danielpatrickdp/segment-steward/internal/store"
)

// #region scripted-calendar

// scriptedCalendar answers bridge calls from fixture data. current/next are
// derived from the event list at the clock position of the step being
// replayed.
type scriptedCalendar struct {
	events  []calbridge.Event
	slots   []calbridge.Slot
	now     time.Time
	created int
}

func (c *scriptedCalendar) CurrentAndNext(context.Context) (*calbridge.Event, *calbridge.Event, error) {
	var current, next *calbridge.Event
	for i := range c.events {
		ev := &c.events[i]
		if !ev.StartAt.After(c.now) && ev.EndAt.After(c.now) && current == nil {
			current = ev
		}
		if ev.StartAt.After(c.now) && (next == nil || ev.StartAt.Before(next.StartAt)) {
			next = ev
		}
	}
	return current, next, nil
}

func (c *scriptedCalendar) ListToday(context.Context) ([]calbridge.Event, error) {
	return c.events, nil
}

func (c *scriptedCalendar) CreateEvent(_ context.Context, title string, start time.Time, minutes int) (string, error) {
	c.created++
	return fmt.Sprintf("replay-ev-%d", c.created), nil
}

func (c *scriptedCalendar) Reschedule(context.Context, string, time.Time) error { return nil }

func (c *scriptedCalendar) FreeSlots(_ context.Context, from, to time.Time, minMinutes int) ([]calbridge.Slot, error) {
	var out []calbridge.Slot
	for _, s := range c.slots {
		if s.StartAt.After(from) && s.StartAt.Before(to) && s.Minutes >= minMinutes {
			out = append(out, s)
		}
	}
	return out, nil
}

// #endregion scripted-calendar

// #region capture-dispatcher

type captureDispatcher struct {
	decisions []orchestrator.Decision
}

func (c *captureDispatcher) Dispatch(_ context.Context, d orchestrator.Decision) error {
	c.decisions = append(c.decisions, d)
	return nil
}

// #endregion capture-dispatcher

// #region result

// Summary aggregates one replayed day.
type Summary struct {
	Steps       int
	Completed   int
	Missed      int
	Rescheduled int
	Drifted     int
	Prompts     int
	Recoveries  int
	NoSlots     int
	FinalTone   segment.Tone
}

// Result is the outcome of replaying a fixture: every dispatched decision
// in order, plus the aggregate summary.
type Result struct {
	Decisions []orchestrator.Decision
	Summary   Summary
}

// #endregion result

// #region run

// Run replays a fixture day against an in-memory store and a scripted
// calendar, capturing every dispatched decision.
func Run(f *Fixture) (*Result, error) {
	st, err := store.NewStore(":memory:")
	if err != nil {
		return nil, err
	}
	defer st.Close()

	for _, fs := range f.Segments {
		if err := st.InsertSegment(fs.ToSegment()); err != nil {
			return nil, err
		}
	}

	cal := &scriptedCalendar{}
	for _, fe := range f.Calendar.Events {
		cal.events = append(cal.events, fe.ToEvent())
	}
	for _, s := range f.Calendar.Slots {
		cal.slots = append(cal.slots, calbridge.Slot{StartAt: s.StartAt, Minutes: s.Minutes})
	}

	fl := flags.New("")
	fl.Set(flags.DSMode, f.Escalated)
	disp := &captureDispatcher{}

	cfg := orchestrator.DefaultConfig()
	cfg.Location = time.UTC
	if f.Timezone != "" {
		loc, err := time.LoadLocation(f.Timezone)
		if err != nil {
			return nil, fmt.Errorf("fixture timezone: %w", err)
		}
		cfg.Location = loc
	}
	if f.QuietHours != "" {
		if cfg.Quiet, err = orchestrator.ParseQuietWindow(f.QuietHours); err != nil {
			return nil, err
		}
	}

	orch := orchestrator.New(st, cal, fl, disp, cfg)

	ctx := context.Background()
	var last time.Time
	for i, step := range f.Timeline {
		cal.now = step.At
		last = step.At
		if step.Verb == "" {
			err = orch.Tick(ctx, step.At)
		} else {
			err = orch.HandleCommand(ctx, step.At, orchestrator.Command{
				SegmentID: step.SegmentID,
				Verb:      step.Verb,
				Minutes:   step.Minutes,
				Focus:     step.Focus,
			})
		}
		if err != nil {
			return nil, fmt.Errorf("step %d at %s: %w", i, step.At.Format(time.RFC3339), err)
		}
	}

	return &Result{
		Decisions: disp.decisions,
		Summary:   summarize(st, disp.decisions, len(f.Timeline), last, cfg.Location),
	}, nil
}

func summarize(st *store.Store, decisions []orchestrator.Decision, steps int, last time.Time, loc *time.Location) Summary {
	s := Summary{Steps: steps, FinalTone: segment.ToneGentle}

	rows, err := st.DB().Query(
		`SELECT end_status, COUNT(*) FROM segments WHERE end_status IS NOT NULL GROUP BY end_status`,
	)
	if err == nil {
		defer rows.Close()
		for rows.Next() {
			var status string
			var n int
			if rows.Scan(&status, &n) != nil {
				continue
			}
			switch segment.EndStatus(status) {
			case segment.EndCompleted:
				s.Completed = n
			case segment.EndMissed:
				s.Missed = n
			case segment.EndRescheduled:
				s.Rescheduled = n
			case segment.EndDrift:
				s.Drifted = n
			}
		}
	}

	for _, d := range decisions {
		switch d.Action {
		case segment.ActionSendStart, segment.ActionSendMid, segment.ActionSendFTWIntent:
			s.Prompts++
		case segment.ActionScheduleRecovery:
			s.Recoveries++
		case segment.ActionNoSlot:
			s.NoSlots++
		}
	}

	if !last.IsZero() {
		if day, err := st.GetDayState(last.In(loc).Format("2006-01-02")); err == nil {
			s.FinalTone = day.CurrentTone
		}
	}
	return s
}

// #endregion run

// #region compare

// Compare checks captured decisions against the fixture's expected sequence
// and reports mismatches as strings for display. An expected entry with an
// empty segment id matches any segment.
func Compare(expected []FixtureExpected, got []orchestrator.Decision) []string {
	var diffs []string
	n := len(expected)
	if len(got) < n {
		n = len(got)
	}
	for i := 0; i < n; i++ {
		e, g := expected[i], got[i]
		if string(g.Action) != e.Action || (e.SegmentID != "" && e.SegmentID != g.SegmentID) {
			diffs = append(diffs, fmt.Sprintf("decision %d: expected %s/%s, got %s/%s",
				i, e.SegmentID, e.Action, g.SegmentID, g.Action))
		}
	}
	if len(expected) != len(got) {
		diffs = append(diffs, fmt.Sprintf("decision count: expected %d, got %d", len(expected), len(got)))
	}
	return diffs
}

// #endregion compare
