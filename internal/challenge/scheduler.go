package challenge

import (
	"math/rand"
	"time"

	"github.com/danielpatrickdp/exergate/internal/policy"
	"github.com/google/uuid"
)

// #region scheduler
// Scheduler manages the optional secondary timed task layered on top of a
// satisfied base policy. Lifecycle: idle → pending → success|failed. It
// never advances time itself; the governance machine ticks it on every
// evaluation.
type Scheduler struct {
	config Config
	rng    *rand.Rand
	specs  []policy.ChallengeSpec
	next   int
	armAt  time.Time // zero = not armed
	active *ActiveChallenge
}

// NewScheduler creates a scheduler with a time-seeded arming interval.
func NewScheduler(config Config) *Scheduler {
	return NewSchedulerSeeded(config, time.Now().UnixNano())
}

// NewSchedulerSeeded creates a scheduler with a fixed seed for deterministic
// replay and tests.
func NewSchedulerSeeded(config Config, seed int64) *Scheduler {
	return &Scheduler{
		config: config,
		rng:    rand.New(rand.NewSource(seed)),
	}
}

// SetSpecs replaces the challenge rotation and clears all live state. Called
// on every policy/media change so a stale challenge can never outlive its
// policy.
func (s *Scheduler) SetSpecs(specs []policy.ChallengeSpec) {
	s.specs = specs
	s.next = 0
	s.Reset()
}

// Reset cancels the active challenge and any armed timer.
func (s *Scheduler) Reset() {
	s.active = nil
	s.armAt = time.Time{}
}

// Active returns a copy of the live challenge, or nil when idle.
func (s *Scheduler) Active() *ActiveChallenge {
	if s.active == nil {
		return nil
	}
	c := *s.active
	return &c
}

// #endregion scheduler

// #region tick
// Tick advances the challenge lifecycle one evaluation step.
func (s *Scheduler) Tick(in TickInput) Event {
	if len(s.specs) == 0 {
		return EventNone
	}
	if s.active == nil {
		return s.tickIdle(in)
	}

	switch s.active.Status {
	case StatusFailed:
		// A failed challenge only matters while the base policy is unmet;
		// once the base re-satisfies, the failure is spent.
		if in.BaseSatisfied {
			s.active = nil
			s.arm(in.Now)
			return EventCleared
		}
		return EventNone
	case StatusPending:
		return s.tickPending(in)
	}
	return EventNone
}

// tickIdle arms and fires the next challenge while the phase is unlocked.
func (s *Scheduler) tickIdle(in TickInput) Event {
	if !in.Unlocked {
		s.armAt = time.Time{}
		return EventNone
	}
	if s.armAt.IsZero() {
		s.arm(in.Now)
		return EventNone
	}
	if in.Now.Before(s.armAt) {
		return EventNone
	}

	spec := s.specs[s.next%len(s.specs)]
	s.next++
	s.armAt = time.Time{}
	s.active = &ActiveChallenge{
		ID:         uuid.New().String(),
		Spec:       spec,
		Status:     StatusPending,
		DeadlineAt: in.Now.Add(spec.TimeLimit),
	}
	return EventStarted
}

// tickPending handles pause/resume, success hold, and the deadline.
func (s *Scheduler) tickPending(in TickInput) Event {
	c := s.active

	// Base policy broke: freeze the deadline clock. The participant already
	// carries the base penalty; the challenge must not compound it.
	if !in.BaseSatisfied {
		if !c.Paused {
			c.Paused = true
			c.PausedAt = in.Now
			c.PausedRemaining = c.DeadlineAt.Sub(in.Now)
			if c.PausedRemaining < 0 {
				c.PausedRemaining = 0
			}
			c.SatisfiedSince = time.Time{}
			return EventPaused
		}
		return EventNone
	}
	if c.Paused {
		c.DeadlineAt = in.Now.Add(c.PausedRemaining)
		c.Paused = false
		c.PausedAt = time.Time{}
		c.PausedRemaining = 0
		return EventResumed
	}

	// Success check runs before the deadline check so a tick where both hold
	// resolves in the participant's favor.
	req := policy.RequirementSpec{
		TargetZoneID:  c.Spec.TargetZoneID,
		Rule:          policy.RuleCount,
		RequiredCount: c.Spec.RequiredCount,
	}
	res := policy.EvaluateRequirement(req, in.Ranks, in.ParticipantZones, in.Exempt)
	if res.Satisfied {
		if c.SatisfiedSince.IsZero() {
			c.SatisfiedSince = in.Now
		}
		if in.Now.Sub(c.SatisfiedSince) >= s.config.SuccessHold {
			s.active = nil
			s.arm(in.Now)
			return EventSucceeded
		}
	} else {
		c.SatisfiedSince = time.Time{}
	}

	if !in.Now.Before(c.DeadlineAt) {
		c.Status = StatusFailed
		return EventFailed
	}
	return EventNone
}

// arm schedules the next firing at a random point in the configured window.
func (s *Scheduler) arm(now time.Time) {
	delay := s.config.MinArmDelay
	if spread := s.config.MaxArmDelay - s.config.MinArmDelay; spread > 0 {
		delay += time.Duration(s.rng.Int63n(int64(spread) + 1))
	}
	s.armAt = now.Add(delay)
}

// #endregion tick
