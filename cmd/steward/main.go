package main

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"log"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"syscall"
	"time"

	"github.com/danielpatrickdp/segment-steward/internal/calbridge"
	"github.com/danielpatrickdp/segment-steward/internal/flags"
	"github.com/danielpatrickdp/segment-steward/internal/orchestrator"
	"github.com/danielpatrickdp/segment-steward/internal/store"
)

// #region main
func main() {
	dbPath := envOr("STEWARD_DB", "steward.db")
	bridgeAddr := envOr("CALBRIDGE_ADDR", "localhost:50061")
	tzName := envOr("TIMEZONE", "Local")
	quietSpec := envOr("QUIET_HOURS", orchestrator.DefaultQuietHours)
	flagsFile := envOr("FLAGS_FILE", "flags.yml")

	st, err := store.NewStore(dbPath)
	if err != nil {
		log.Fatalf("failed to open store: %v", err)
	}
	defer st.Close()

	bridge, err := calbridge.NewClient(bridgeAddr)
	if err != nil {
		log.Fatalf("failed to connect to calendar bridge at %s: %v", bridgeAddr, err)
	}
	defer bridge.Close()

	fl := flags.New(flagsFile)
	if err := fl.Watch(); err != nil {
		log.Printf("[MAIN] flag hot reload disabled: %v", err)
	}
	defer fl.Close()

	loc := time.Local
	if tzName != "Local" {
		if loc, err = time.LoadLocation(tzName); err != nil {
			log.Fatalf("bad TIMEZONE %q: %v", tzName, err)
		}
	}
	quiet, err := orchestrator.ParseQuietWindow(quietSpec)
	if err != nil {
		log.Fatalf("bad QUIET_HOURS: %v", err)
	}

	cfg := orchestrator.DefaultConfig()
	cfg.Location = loc
	cfg.Quiet = quiet
	orch := orchestrator.New(st, bridge, fl, consoleDispatcher{}, cfg)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	fmt.Println("Segment steward ready.")
	fmt.Printf("  DB: %s | Bridge: %s | TZ: %s | Quiet: %s\n", dbPath, bridgeAddr, loc, quietSpec)
	fmt.Println("Verbs: start, done, didnt_start, need_more, extend <min>, snooze <min>,")
	fmt.Println("       pause, pivot <focus>, skip, interrupted, resume, mid_ok, confirm_reschedule")

	if err := orch.Reconcile(ctx, time.Now()); err != nil {
		log.Printf("[MAIN] initial reconcile: %v", err)
	}
	if err := orch.Tick(ctx, time.Now()); err != nil {
		log.Printf("[MAIN] tick: %v", err)
	}

	cmds := make(chan orchestrator.Command)
	go readCommands(os.Stdin, cmds)

	tick := time.NewTicker(time.Minute)
	defer tick.Stop()
	reconcile := time.NewTicker(30 * time.Minute)
	defer reconcile.Stop()

	for {
		select {
		case <-ctx.Done():
			log.Println("[MAIN] shutting down")
			return
		case now := <-tick.C:
			if err := orch.Tick(ctx, now); err != nil {
				log.Printf("[MAIN] tick: %v", err)
			}
		case now := <-reconcile.C:
			if err := orch.Reconcile(ctx, now); err != nil {
				log.Printf("[MAIN] reconcile: %v", err)
			}
		case cmd := <-cmds:
			if err := orch.HandleCommand(ctx, time.Now(), cmd); err != nil {
				log.Printf("[MAIN] %s: %v", cmd.Verb, err)
			}
		}
	}
}

// #endregion main

// #region dispatcher

// consoleDispatcher prints decisions to stdout; the messaging surface that
// turns decisions into chat prompts lives outside this process.
type consoleDispatcher struct{}

func (consoleDispatcher) Dispatch(_ context.Context, d orchestrator.Decision) error {
	if d.Reason != "" {
		fmt.Printf("[%s] %s → %s (%s)\n", d.Tone, d.SegmentID, d.Action, d.Reason)
		return nil
	}
	fmt.Printf("[%s] %s → %s\n", d.Tone, d.SegmentID, d.Action)
	return nil
}

// #endregion dispatcher

// #region command-reader

// readCommands parses stdin lines into commands: a verb, then optional
// minutes, an explicit segment id, or a pivot focus note.
func readCommands(r io.Reader, out chan<- orchestrator.Command) {
	scanner := bufio.NewScanner(r)
	for scanner.Scan() {
		fields := strings.Fields(scanner.Text())
		if len(fields) == 0 {
			continue
		}
		cmd := orchestrator.Command{Verb: fields[0]}
		for _, f := range fields[1:] {
			switch {
			case isSegmentID(f):
				cmd.SegmentID = f
			default:
				if n, err := strconv.Atoi(f); err == nil {
					cmd.Minutes = n
				} else if cmd.Focus == "" {
					cmd.Focus = f
				} else {
					cmd.Focus += " " + f
				}
			}
		}
		out <- cmd
	}
}

func isSegmentID(s string) bool {
	for _, prefix := range []string{"gcal:", "ftw:", "fu:", "rec:"} {
		if strings.HasPrefix(s, prefix) {
			return true
		}
	}
	return false
}

// #endregion command-reader

// #region helpers
func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

// #endregion helpers
