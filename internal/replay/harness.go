package replay

import (
	"fmt"
	"sort"
	"time"

	"github.com/danielpatrickdp/exergate/internal/governance"
	"github.com/danielpatrickdp/exergate/internal/policy"
	"github.com/danielpatrickdp/exergate/internal/roster"
	"github.com/danielpatrickdp/exergate/internal/zones"
)

// #region types
// Event is a single recorded input on the session timeline. Offsets are
// relative to the run's start instant so fixtures stay portable.
type Event struct {
	AtMs          int64
	Kind          EventKind
	ParticipantID string
	HeartRateBpm  int
	Exempt        bool
	Media         governance.GovernedMedia
}

// EventKind names a timeline input.
type EventKind string

const (
	EventFrame  EventKind = "frame"  // heart-rate reading
	EventPulse  EventKind = "pulse"  // periodic re-evaluation tick
	EventMedia  EventKind = "media"  // governed-media change
	EventExempt EventKind = "exempt" // exemption toggle
	EventRemove EventKind = "remove" // participant removal
)

// Result captures the published state right after one event.
type Result struct {
	AtMs        int64
	Kind        EventKind
	Phase       governance.Phase
	VideoLocked bool
	Reason      string
}

// Summary aggregates a replay run.
type Summary struct {
	Events           int
	PhaseTransitions int
	FinalState       governance.State
}

// #endregion types

// #region harness
// Harness replays a recorded timeline through a deterministic engine: fixed
// scheduler seed, fake clock driven by event offsets. Two runs of the same
// fixture always produce the same transitions.
type Harness struct {
	engine *governance.Engine
	roster *roster.Roster
	start  time.Time
	now    time.Time
}

type fixturePolicies map[string]policy.Policy

func (f fixturePolicies) LoadPolicy(id string) (policy.Policy, error) {
	p, ok := f[id]
	if !ok {
		return policy.Policy{}, fmt.Errorf("policy %q not in fixture", id)
	}
	return p, nil
}

// NewHarness builds the engine stack from fixture-provided zones and
// policies.
func NewHarness(defs []zones.ZoneDefinition, policies []policy.Policy, config governance.Config, seed int64) (*Harness, error) {
	if len(defs) == 0 {
		return nil, fmt.Errorf("fixture defines no zones")
	}
	table := zones.NewTable(defs)
	r := roster.New(table, zones.NewStabilizer(zones.DefaultStabilizerConfig()))

	byID := make(fixturePolicies, len(policies))
	for _, p := range policies {
		byID[p.ID] = p
	}

	h := &Harness{
		roster: r,
		start:  time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC),
	}
	h.now = h.start
	h.engine = governance.NewEngineSeeded(config, table, r, byID, seed)
	h.engine.SetClock(func() time.Time { return h.now })
	return h, nil
}

// Run replays events in timeline order and returns the state after each.
func (h *Harness) Run(events []Event) ([]Result, error) {
	ordered := make([]Event, len(events))
	copy(ordered, events)
	sort.SliceStable(ordered, func(i, j int) bool { return ordered[i].AtMs < ordered[j].AtMs })

	results := make([]Result, 0, len(ordered))
	for _, ev := range ordered {
		h.now = h.start.Add(time.Duration(ev.AtMs) * time.Millisecond)

		var st governance.State
		switch ev.Kind {
		case EventFrame:
			h.roster.ReportHeartRate(ev.ParticipantID, ev.HeartRateBpm, h.now)
			st = h.engine.Evaluate(governance.TriggerZoneChange)
		case EventPulse:
			st = h.engine.Evaluate(governance.TriggerPulse)
		case EventMedia:
			// An unresolvable policy still replays; the engine degrades to a
			// locked configuration-error state.
			_ = h.engine.SetGovernedMedia(ev.Media)
			st = h.engine.Evaluate(governance.TriggerSnapshot)
		case EventExempt:
			h.roster.SetExempt(ev.ParticipantID, ev.Exempt)
			st = h.engine.Evaluate(governance.TriggerSnapshot)
		case EventRemove:
			h.roster.Remove(ev.ParticipantID)
			st = h.engine.Evaluate(governance.TriggerSnapshot)
		default:
			return nil, fmt.Errorf("unknown event kind %q at %dms", ev.Kind, ev.AtMs)
		}

		results = append(results, Result{
			AtMs:        ev.AtMs,
			Kind:        ev.Kind,
			Phase:       st.Phase,
			VideoLocked: st.VideoLocked,
			Reason:      st.PhaseReason,
		})
	}
	return results, nil
}

// Summarize computes aggregate stats from replay results.
func (h *Harness) Summarize(results []Result) Summary {
	s := Summary{
		Events:     len(results),
		FinalState: h.engine.GetState(),
	}
	prev := governance.Phase("")
	for _, r := range results {
		if r.Phase != prev {
			if prev != "" {
				s.PhaseTransitions++
			}
			prev = r.Phase
		}
	}
	return s
}

// #endregion harness
