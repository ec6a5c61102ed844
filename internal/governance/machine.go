package governance

import (
	"log"
	"time"

	"github.com/danielpatrickdp/exergate/internal/challenge"
	"github.com/danielpatrickdp/exergate/internal/policy"
	"github.com/google/uuid"
)

// #region machine
// Machine is the phase state machine. It combines base-policy evaluation,
// the challenge scheduler, and the two hysteresis timers into one
// authoritative phase decision per snapshot. All timers are explicit
// deadlines stored in the published state, never opaque timer handles.
type Machine struct {
	config    Config
	scheduler *challenge.Scheduler

	phase                Phase
	satisfiedOnce        bool
	satisfiedSince       time.Time
	graceDeadlineAt      time.Time
	warningCooldownUntil time.Time
	sessionID            string
	reason               string
}

// NewMachine creates a machine in the idle phase.
func NewMachine(config Config, scheduler *challenge.Scheduler) *Machine {
	return &Machine{config: config, scheduler: scheduler, phase: PhaseIdle}
}

// ResetSession starts a fresh governed-media session: the challenge
// rotation is replaced and every timer, the grace countdown included, is
// cancelled in the same call. Partial cancellation is an invariant
// violation, so this is the only reset path.
func (m *Machine) ResetSession(specs []policy.ChallengeSpec) {
	m.scheduler.SetSpecs(specs)
	m.phase = PhaseIdle
	m.satisfiedOnce = false
	m.satisfiedSince = time.Time{}
	m.graceDeadlineAt = time.Time{}
	m.warningCooldownUntil = time.Time{}
	m.sessionID = uuid.New().String()
	m.reason = "session reset"
}

// #endregion machine

// #region step
// Step applies the transition table to one snapshot and returns the
// published state. Evaluation never panics or returns an error: malformed
// input degrades to an unsatisfiable requirement with a diagnostic flag.
func (m *Machine) Step(snap Snapshot) State {
	now := snap.Now

	// 1. No governed media or nobody active: idle, session progress resets.
	if !snap.Governed || len(snap.ActiveParticipantIDs) == 0 {
		reason := "no governed media"
		if snap.Governed {
			reason = "no active participants"
		}
		m.setPhase(PhaseIdle, reason)
		m.satisfiedOnce = false
		m.satisfiedSince = time.Time{}
		m.graceDeadlineAt = time.Time{}
		m.warningCooldownUntil = time.Time{}
		m.scheduler.Reset()
		return m.publish(snap, policy.PolicyResult{}, now, challenge.EventNone)
	}

	// Governed media with live participants: an idle machine enters the
	// session in pending before any hysteresis can complete.
	if m.phase == PhaseIdle {
		m.setPhase(PhasePending, "governed session started")
	}

	// 2. Base policy evaluation. A policy that failed to load degrades to
	// unsatisfiable with the configuration-error flag.
	res := policy.EvaluatePolicy(snap.Policy, snap.RankTable, snap.ParticipantZones, snap.ExemptIDs)
	if snap.PolicyLoadFailed {
		res = policy.PolicyResult{AllSatisfied: false, ConfigurationError: true}
	}

	// Challenge lifecycle ticks from the same snapshot.
	ev := m.scheduler.Tick(challenge.TickInput{
		Now:              now,
		Unlocked:         m.phase == PhaseUnlocked,
		BaseSatisfied:    res.AllSatisfied,
		Ranks:            snap.RankTable,
		ParticipantZones: snap.ParticipantZones,
		Exempt:           snap.ExemptIDs,
	})
	if ev != challenge.EventNone {
		log.Printf("[CHAL] challenge %s (media=%s)", ev, snap.MediaID)
	}

	// 3. A failed challenge forces the lock, but only while the base policy
	// is also unmet: a timeout alone never punishes a compliant group.
	if c := m.scheduler.Active(); c != nil && c.Status == challenge.StatusFailed && !res.AllSatisfied {
		m.satisfiedSince = time.Time{}
		m.setPhase(PhaseLocked, "challenge failed while base policy unmet")
		return m.publish(snap, res, now, ev)
	}

	if res.AllSatisfied {
		m.stepSatisfied(now)
	} else {
		m.stepUnsatisfied(now)
	}
	return m.publish(snap, res, now, ev)
}

// stepSatisfied accumulates the unlock hold. Below the threshold the
// current phase holds; the grace deadline is deliberately left running so a
// transient re-satisfaction inside a warning episode cannot extend it.
func (m *Machine) stepSatisfied(now time.Time) {
	if m.satisfiedSince.IsZero() {
		m.satisfiedSince = now
	}
	if now.Sub(m.satisfiedSince) < m.config.UnlockHold {
		return
	}
	if m.phase != PhaseUnlocked {
		if m.phase == PhaseWarning || m.phase == PhaseLocked {
			m.warningCooldownUntil = now.Add(m.config.WarningCooldown)
		}
		m.setPhase(PhaseUnlocked, "base policy held through unlock window")
	}
	m.satisfiedOnce = true
	m.graceDeadlineAt = time.Time{}
}

// stepUnsatisfied splits pending from warning and runs the grace countdown.
func (m *Machine) stepUnsatisfied(now time.Time) {
	m.satisfiedSince = time.Time{}

	if !m.satisfiedOnce {
		m.setPhase(PhasePending, "base policy never satisfied this session")
		return
	}

	// Warning cooldown: a transient drop right after re-unlocking does not
	// re-enter warning until the cooldown elapses.
	if m.phase == PhaseUnlocked && now.Before(m.warningCooldownUntil) {
		return
	}

	if m.phase != PhaseWarning && m.phase != PhaseLocked {
		m.setPhase(PhaseWarning, "base policy broke after unlock")
	}
	if m.phase == PhaseWarning {
		if m.graceDeadlineAt.IsZero() {
			m.graceDeadlineAt = now.Add(m.config.GracePeriod)
		}
		if !now.Before(m.graceDeadlineAt) {
			m.setPhase(PhaseLocked, "grace period expired")
		}
	}
}

// #endregion step

// #region publish
// publish builds the immutable published state for this evaluation.
func (m *Machine) publish(snap Snapshot, res policy.PolicyResult, now time.Time, ev challenge.Event) State {
	videoLocked := snap.Governed && m.phase != PhaseUnlocked && m.phase != PhaseWarning
	return State{
		SessionID:            m.sessionID,
		Phase:                m.phase,
		Governed:             snap.Governed,
		MediaID:              snap.MediaID,
		SatisfiedOnce:        m.satisfiedOnce,
		VideoLocked:          videoLocked,
		Requirements:         res.Requirements,
		ConfigurationError:   res.ConfigurationError,
		ActiveChallenge:      m.scheduler.Active(),
		ChallengeEvent:       ev,
		SatisfiedSince:       m.satisfiedSince,
		GraceDeadlineAt:      m.graceDeadlineAt,
		WarningCooldownUntil: m.warningCooldownUntil,
		PhaseReason:          m.reason,
		ActiveParticipantIDs: snap.ActiveParticipantIDs,
		GhostParticipantIDs:  snap.GhostParticipantIDs,
		EvaluatedAt:          now,
	}
}

func (m *Machine) setPhase(to Phase, reason string) {
	if m.phase == to {
		return
	}
	m.phase = to
	m.reason = reason
}

// #endregion publish
