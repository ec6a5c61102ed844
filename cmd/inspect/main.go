package main

import (
	"encoding/json"
	"flag"
	"fmt"
	"os"
	"time"

	"github.com/danielpatrickdp/exergate/internal/governance"
	"github.com/danielpatrickdp/exergate/internal/journal"
)

// #region main

func main() {
	dbPath := flag.String("db", "", "path to governance_journal.db")
	session := flag.String("session", "", "show one session's transitions")
	last := flag.Int("last", 20, "show N most recent sessions or transitions")
	tail := flag.Bool("tail", false, "show most recent transitions across sessions")
	jsonOut := flag.Bool("json", false, "output as JSON instead of table")
	flag.Parse()

	if *dbPath == "" {
		fmt.Fprintln(os.Stderr, "usage: inspect --db path/to/governance_journal.db [--session id] [--last N] [--tail] [--json]")
		os.Exit(2)
	}

	store, err := journal.NewStore(*dbPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "open db: %v\n", err)
		os.Exit(1)
	}
	defer store.Close()

	switch {
	case *session != "":
		err = runSessionMode(store, *session, *jsonOut)
	case *tail:
		err = runTailMode(store, *last, *jsonOut)
	default:
		err = runListMode(store, *last, *jsonOut)
	}
	if err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

// #endregion main

// #region list-mode

func runListMode(store *journal.Store, last int, jsonOut bool) error {
	sessions, err := store.ListSessions(last)
	if err != nil {
		return err
	}
	if len(sessions) == 0 {
		fmt.Fprintln(os.Stderr, "no sessions found")
		return nil
	}

	if jsonOut {
		return printJSON(sessions)
	}

	fmt.Printf("%-38s %-12s %-25s %s\n", "Session", "Media", "Started", "Transitions")
	for _, s := range sessions {
		fmt.Printf("%-38s %-12s %-25s %d\n",
			s.SessionID, s.MediaID, s.StartedAt.Format(time.RFC3339), s.Transitions)
	}
	return nil
}

// #endregion list-mode

// #region session-mode

func runSessionMode(store *journal.Store, sessionID string, jsonOut bool) error {
	transitions, err := store.ListTransitions(sessionID)
	if err != nil {
		return err
	}
	if len(transitions) == 0 {
		fmt.Fprintf(os.Stderr, "no transitions for session %s\n", sessionID)
		return nil
	}
	return printTransitions(transitions, jsonOut)
}

func runTailMode(store *journal.Store, last int, jsonOut bool) error {
	transitions, err := store.TailTransitions(last)
	if err != nil {
		return err
	}
	if len(transitions) == 0 {
		fmt.Fprintln(os.Stderr, "no transitions found")
		return nil
	}
	return printTransitions(transitions, jsonOut)
}

func printTransitions(transitions []governance.TransitionRecord, jsonOut bool) error {
	if jsonOut {
		return printJSON(transitions)
	}

	fmt.Printf("%-25s %-10s %-10s %-10s %-7s %s\n", "At", "From", "To", "Trigger", "Locked", "Reason")
	for _, t := range transitions {
		fmt.Printf("%-25s %-10s %-10s %-10s %-7v %s\n",
			t.At.Format(time.RFC3339), t.FromPhase, t.ToPhase, t.Trigger, t.VideoLocked, t.Reason)
	}
	return nil
}

func printJSON(v interface{}) error {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

// #endregion session-mode
