package main

import (
	"encoding/json"
	"flag"
	"fmt"
	"os"
	"time"

	"github.com/danielpatrickdp/segment-steward/internal/logging"
	"github.com/danielpatrickdp/segment-steward/internal/segment"
	"github.com/danielpatrickdp/segment-steward/internal/store"
)

// #region main

func main() {
	dbPath := flag.String("db", "", "path to steward.db")
	last := flag.Int("last", 20, "show N most recent decisions")
	jsonOut := flag.Bool("json", false, "output as JSON instead of text")
	flag.Parse()

	if *dbPath == "" {
		fmt.Fprintln(os.Stderr, "usage: inspect --db path/to/steward.db [--last N] [--json]")
		os.Exit(2)
	}

	st, err := store.NewStore(*dbPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "open db: %v\n", err)
		os.Exit(1)
	}
	defer st.Close()

	if err := run(st, *last, *jsonOut); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

// #endregion main

// #region report

type segmentView struct {
	ID             string `json:"id"`
	Title          string `json:"title"`
	Rigidity       string `json:"rigidity"`
	StartAt        string `json:"start_at"`
	EndAt          string `json:"end_at"`
	State          string `json:"state,omitempty"`
	MidpointStatus string `json:"midpoint_status,omitempty"`
}

type report struct {
	Day       string                 `json:"day"`
	Tone      string                 `json:"tone"`
	Streaks   string                 `json:"streaks"`
	Recovery  string                 `json:"recovery"`
	Active    *segmentView           `json:"active,omitempty"`
	Next      *segmentView           `json:"next,omitempty"`
	Decisions []logging.DecisionEntry `json:"decisions"`
}

func run(st *store.Store, last int, jsonOut bool) error {
	now := time.Now()

	day, err := st.GetDayState(now.Format("2006-01-02"))
	if err != nil {
		return err
	}
	active, err := st.GetActive(now)
	if err != nil {
		return err
	}
	next, err := st.GetNext(now)
	if err != nil {
		return err
	}
	decisions, err := logging.ListRecent(st.DB(), last)
	if err != nil {
		return err
	}

	r := report{
		Day:       day.Day,
		Tone:      string(day.CurrentTone),
		Streaks:   fmt.Sprintf("%d completions / %d misses", day.ConsecutiveCompletions, day.ConsecutiveMisses),
		Recovery:  fmt.Sprintf("%d blocks used", day.RecoveryBlocksUsed),
		Active:    toView(active),
		Next:      toView(next),
		Decisions: decisions,
	}

	if jsonOut {
		data, err := json.MarshalIndent(r, "", "  ")
		if err != nil {
			return fmt.Errorf("marshal json: %w", err)
		}
		fmt.Println(string(data))
		return nil
	}

	fmt.Printf("Day:      %s\n", r.Day)
	fmt.Printf("Tone:     %s\n", r.Tone)
	fmt.Printf("Streaks:  %s\n", r.Streaks)
	fmt.Printf("Recovery: %s\n", r.Recovery)

	printSegment("Active", r.Active)
	printSegment("Next", r.Next)

	fmt.Printf("\nRecent decisions:\n")
	if len(r.Decisions) == 0 {
		fmt.Println("  (none)")
		return nil
	}
	for _, d := range r.Decisions {
		reason := ""
		if d.Reason != "" {
			reason = " " + d.Reason
		}
		fmt.Printf("  %s  %-12s %-10s %-20s %s%s\n",
			d.CreatedAt.Format("15:04:05"), d.Tone, d.Event, d.Action, d.SegmentID, reason)
	}
	return nil
}

func toView(seg *segment.Segment) *segmentView {
	if seg == nil {
		return nil
	}
	return &segmentView{
		ID:             seg.ID,
		Title:          seg.Title,
		Rigidity:       string(seg.Rigidity),
		StartAt:        seg.StartAt.Local().Format("15:04"),
		EndAt:          seg.EndAt.Local().Format("15:04"),
		MidpointStatus: string(seg.MidpointStatus),
	}
}

func printSegment(label string, v *segmentView) {
	if v == nil {
		fmt.Printf("%-8s  (none)\n", label+":")
		return
	}
	fmt.Printf("%-8s  %s %q %s–%s (%s)\n", label+":", v.ID, v.Title, v.StartAt, v.EndAt, v.Rigidity)
}

// #endregion report
