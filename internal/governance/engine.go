package governance

import (
	"fmt"
	"log"
	"reflect"
	"sync"
	"time"

	"github.com/danielpatrickdp/exergate/internal/challenge"
	"github.com/danielpatrickdp/exergate/internal/policy"
	"github.com/danielpatrickdp/exergate/internal/zones"
)

// #region engine
// Engine is the single evaluation gateway. Regardless of which trigger
// invoked it, Evaluate assembles the snapshot the same way from the
// authoritative roster, so no caller can supply partial data. Re-entrant
// calls arriving while an evaluation is in flight are coalesced through a
// dirty flag rather than interleaved.
type Engine struct {
	mu     sync.Mutex
	config Config

	table     *zones.Table
	rosterSrc RosterSource
	loader    PolicyLoader
	machine   *Machine
	sink      TransitionSink
	nowFn     func() time.Time

	media            GovernedMedia
	policy           policy.Policy
	policyLoadFailed bool

	state      State
	evaluating bool
	dirty      bool
	dirtyTrig  Trigger

	subs    map[int]subscriber
	nextSub int
}

type subscriber struct {
	fn        func(State)
	phaseOnly bool
}

// NewEngine creates an engine with a time-seeded challenge scheduler.
func NewEngine(config Config, table *zones.Table, rosterSrc RosterSource, loader PolicyLoader) *Engine {
	return newEngine(config, table, rosterSrc, loader, challenge.NewScheduler(config.Challenge))
}

// NewEngineSeeded fixes the challenge scheduler seed, for replay and tests.
func NewEngineSeeded(config Config, table *zones.Table, rosterSrc RosterSource, loader PolicyLoader, seed int64) *Engine {
	return newEngine(config, table, rosterSrc, loader, challenge.NewSchedulerSeeded(config.Challenge, seed))
}

func newEngine(config Config, table *zones.Table, rosterSrc RosterSource, loader PolicyLoader, sched *challenge.Scheduler) *Engine {
	return &Engine{
		config:    config,
		table:     table,
		rosterSrc: rosterSrc,
		loader:    loader,
		machine:   NewMachine(config, sched),
		nowFn:     time.Now,
		state:     State{Phase: PhaseIdle},
		subs:      make(map[int]subscriber),
	}
}

// SetClock replaces the time source. Call before the first evaluation.
func (e *Engine) SetClock(nowFn func() time.Time) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.nowFn = nowFn
}

// SetTransitionSink wires a journal for phase transitions.
func (e *Engine) SetTransitionSink(sink TransitionSink) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.sink = sink
}

// #endregion engine

// #region media
// SetGovernedMedia switches the gated content. The active challenge, the
// grace countdown, and every other timer are cancelled atomically in the
// session reset. It does not evaluate; callers invoke
// Evaluate(TriggerSnapshot) afterwards.
func (e *Engine) SetGovernedMedia(m GovernedMedia) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	if m == e.media {
		return nil
	}
	e.media = m
	e.policy = policy.Policy{}
	e.policyLoadFailed = false

	if m.Governed && m.PolicyID != "" {
		p, err := e.loader.LoadPolicy(m.PolicyID)
		if err != nil {
			// Degrade to unsatisfiable rather than unlocking or crashing.
			e.policyLoadFailed = true
			e.machine.ResetSession(nil)
			return fmt.Errorf("load policy %s: %w", m.PolicyID, err)
		}
		e.policy = p
	}
	e.machine.ResetSession(e.policy.Challenges)
	return nil
}

// Media returns the current governed media configuration.
func (e *Engine) Media() GovernedMedia {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.media
}

// #endregion media

// #region evaluate
// Evaluate runs one evaluation cycle and returns the published state. It is
// safe to call from timer callbacks, ingestion callbacks, and from within
// subscriber callbacks; nested calls are coalesced into a trailing
// re-evaluation instead of interleaving.
func (e *Engine) Evaluate(trigger Trigger) State {
	e.mu.Lock()
	if e.evaluating {
		e.dirty = true
		e.dirtyTrig = trigger
		st := e.state
		e.mu.Unlock()
		return st
	}
	e.evaluating = true

	var result State
	for {
		snap := e.assembleLocked(trigger)
		prev := e.state
		next := e.machine.Step(snap)
		e.state = next
		result = next

		phaseChanged := next.Phase != prev.Phase
		stateChanged := !statesEquivalent(prev, next)
		var callbacks []func(State)
		for _, s := range e.subs {
			if (s.phaseOnly && phaseChanged) || (!s.phaseOnly && stateChanged) {
				callbacks = append(callbacks, s.fn)
			}
		}
		sink := e.sink
		e.mu.Unlock()

		if phaseChanged {
			log.Printf("[GOV] %s: phase %s -> %s (%s)", trigger, prev.Phase, next.Phase, next.PhaseReason)
			if sink != nil {
				rec := TransitionRecord{
					SessionID:     next.SessionID,
					MediaID:       next.MediaID,
					FromPhase:     prev.Phase,
					ToPhase:       next.Phase,
					Trigger:       trigger,
					Reason:        next.PhaseReason,
					VideoLocked:   next.VideoLocked,
					SatisfiedOnce: next.SatisfiedOnce,
					At:            next.EvaluatedAt,
				}
				if err := sink.RecordTransition(rec); err != nil {
					log.Printf("[GOV] failed to record transition: %v", err)
				}
			}
		}
		for _, cb := range callbacks {
			cb(next)
		}

		e.mu.Lock()
		if !e.dirty {
			break
		}
		e.dirty = false
		trigger = e.dirtyTrig
	}
	e.evaluating = false
	e.mu.Unlock()
	return result
}

// assembleLocked builds the snapshot for one evaluation. The roster is
// pulled fresh every time; the ghost filter runs only after the full
// population is in hand, never against a snapshot still being assembled.
func (e *Engine) assembleLocked(trigger Trigger) Snapshot {
	now := e.nowFn()
	participants := e.rosterSrc.Snapshot()

	snap := Snapshot{
		Now:              now,
		Trigger:          trigger,
		Governed:         e.media.Governed,
		MediaID:          e.media.MediaID,
		Policy:           e.policy,
		PolicyLoadFailed: e.policyLoadFailed,
		RankTable:        e.table.Ranks(),
		ParticipantZones: make(map[string]zones.ZoneID),
		ExemptIDs:        make(map[string]bool),
	}
	for _, p := range participants {
		if now.Sub(p.LastSeenAt) > e.config.StalenessWindow {
			snap.GhostParticipantIDs = append(snap.GhostParticipantIDs, p.ID)
			continue
		}
		snap.ActiveParticipantIDs = append(snap.ActiveParticipantIDs, p.ID)
		snap.ParticipantZones[p.ID] = p.StabilizedZoneID
		if p.Exempt {
			snap.ExemptIDs[p.ID] = true
		}
	}
	return snap
}

// #endregion evaluate

// #region reads
// GetState returns the last published state.
func (e *Engine) GetState() State {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.state
}

// Diagnostics exports the full internal snapshot for tooling. The
// participant view is assembled fresh; the state is the last published one.
func (e *Engine) Diagnostics() Diagnostics {
	e.mu.Lock()
	defer e.mu.Unlock()

	snap := e.assembleLocked(TriggerSnapshot)
	var exempt []string
	for id := range snap.ExemptIDs {
		exempt = append(exempt, id)
	}
	return Diagnostics{
		State:            e.state,
		Media:            e.media,
		RankTable:        snap.RankTable,
		ParticipantZones: snap.ParticipantZones,
		GhostIDs:         snap.GhostParticipantIDs,
		ExemptIDs:        exempt,
		PolicyID:         e.policy.ID,
		PolicyLoadFailed: e.policyLoadFailed,
	}
}

// #endregion reads

// #region subscriptions
// Subscription is a registered callback handle.
type Subscription struct {
	id     int
	engine *Engine
}

// Unsubscribe removes the callback. Safe to call from within a callback.
func (s *Subscription) Unsubscribe() {
	s.engine.mu.Lock()
	defer s.engine.mu.Unlock()
	delete(s.engine.subs, s.id)
}

// OnStateChange registers a callback fired whenever the published state
// changes in any way. Callbacks always receive the full state, never diffs.
func (e *Engine) OnStateChange(fn func(State)) *Subscription {
	return e.subscribe(fn, false)
}

// OnPhaseChange registers a callback fired only on phase transitions.
func (e *Engine) OnPhaseChange(fn func(State)) *Subscription {
	return e.subscribe(fn, true)
}

func (e *Engine) subscribe(fn func(State), phaseOnly bool) *Subscription {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.nextSub++
	e.subs[e.nextSub] = subscriber{fn: fn, phaseOnly: phaseOnly}
	return &Subscription{id: e.nextSub, engine: e}
}

// #endregion subscriptions

// #region state-equivalence
// statesEquivalent ignores the evaluation timestamp and the per-evaluation
// challenge event: two evaluations with no new input data publish identical
// states.
func statesEquivalent(a, b State) bool {
	a.EvaluatedAt = time.Time{}
	b.EvaluatedAt = time.Time{}
	a.ChallengeEvent = challenge.EventNone
	b.ChallengeEvent = challenge.EventNone
	return reflect.DeepEqual(a, b)
}

// #endregion state-equivalence
