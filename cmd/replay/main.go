package main

import (
	"flag"
	"fmt"
	"os"

	"github.com/danielpatrickdp/exergate/internal/replay"
)

// #region main

func main() {
	fixturePath := flag.String("fixture", "", "path to fixture JSON")
	verbose := flag.Bool("v", false, "print every event, not just mismatches")
	flag.Parse()

	if *fixturePath == "" {
		fmt.Fprintln(os.Stderr, "usage: replay --fixture path/to/fixture.json [-v]")
		os.Exit(2)
	}

	os.Exit(run(*fixturePath, *verbose))
}

func run(path string, verbose bool) int {
	f, err := replay.LoadFixture(path)
	if err != nil {
		fmt.Fprintf(os.Stderr, "load fixture: %v\n", err)
		return 2
	}
	if f.Description != "" {
		fmt.Printf("# %s\n\n", f.Description)
	}

	h, err := replay.NewHarness(f.Zones, f.ToPolicies(), f.Config.ToConfig(), f.Seed)
	if err != nil {
		fmt.Fprintf(os.Stderr, "build harness: %v\n", err)
		return 2
	}
	results, err := h.Run(f.ToEvents())
	if err != nil {
		fmt.Fprintf(os.Stderr, "replay: %v\n", err)
		return 2
	}

	code := printComparison(results, f.Expected, verbose)

	s := h.Summarize(results)
	fmt.Printf("\nfinal: phase=%s videoLocked=%v transitions=%d\n",
		s.FinalState.Phase, s.FinalState.VideoLocked, s.PhaseTransitions)
	return code
}

// #endregion main

// #region output

// printComparison outputs the per-event comparison table and returns the
// exit code: 0 when every expectation matched, 1 otherwise.
func printComparison(results []replay.Result, expected []replay.FixtureExpected, verbose bool) int {
	if len(expected) == 0 {
		for _, r := range results {
			fmt.Printf("%8dms  %-7s  phase=%-9s locked=%v\n", r.AtMs, r.Kind, r.Phase, r.VideoLocked)
		}
		return 0
	}

	total := len(results)
	if len(expected) < total {
		total = len(expected)
	}

	matches := 0
	for i := 0; i < total; i++ {
		r := results[i]
		e := expected[i]
		ok := string(r.Phase) == e.Phase && r.VideoLocked == e.VideoLocked
		if ok {
			matches++
		}
		if !ok || verbose {
			mark := "OK"
			if !ok {
				mark = "DIFF"
			}
			fmt.Printf("%8dms  %-7s  expected %-9s got %-9s locked=%v  %s\n",
				r.AtMs, r.Kind, e.Phase, r.Phase, r.VideoLocked, mark)
		}
	}

	diverge := total - matches
	fmt.Printf("\nSummary: %d events, %d match, %d diverge\n", total, matches, diverge)
	if diverge > 0 {
		return 1
	}
	return 0
}

// #endregion output
