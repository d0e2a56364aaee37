package main

import (
	"flag"
	"fmt"
	"os"

	"github.com/danielpatrickdp/segment-steward/internal/replay"
)

// #region main

func main() {
	fixturePath := flag.String("fixture", "", "path to day fixture JSON")
	flag.Parse()

	if *fixturePath == "" {
		fmt.Fprintln(os.Stderr, "usage: replay --fixture path/to/day.json")
		os.Exit(2)
	}

	f, err := replay.LoadFixture(*fixturePath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "load fixture: %v\n", err)
		os.Exit(2)
	}

	res, err := replay.Run(f)
	if err != nil {
		fmt.Fprintf(os.Stderr, "replay: %v\n", err)
		os.Exit(2)
	}

	if f.Description != "" {
		fmt.Printf("%s\n\n", f.Description)
	}
	fmt.Printf("%-22s| %-24s| %-8s| %s\n", "Segment", "Action", "Tone", "Reason")
	fmt.Printf("%-22s+%-25s+%-9s+%s\n",
		"----------------------", "-------------------------", "---------", "--------")
	for _, d := range res.Decisions {
		fmt.Printf("%-22s| %-24s| %-8s| %s\n", d.SegmentID, d.Action, d.Tone, d.Reason)
	}

	s := res.Summary
	fmt.Printf("\nSummary: %d steps, %d prompts | completed %d, missed %d, rescheduled %d, drift %d | recoveries %d, no-slot %d | final tone %s\n",
		s.Steps, s.Prompts, s.Completed, s.Missed, s.Rescheduled, s.Drifted, s.Recoveries, s.NoSlots, s.FinalTone)

	if len(f.Expected) > 0 {
		diffs := replay.Compare(f.Expected, res.Decisions)
		if len(diffs) > 0 {
			fmt.Println("\nDivergence from expected decisions:")
			for _, d := range diffs {
				fmt.Printf("  %s\n", d)
			}
			os.Exit(1)
		}
		fmt.Println("\nAll expected decisions matched.")
	}
}

// #endregion main
