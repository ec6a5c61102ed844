package challenge

import (
	"time"

	"github.com/danielpatrickdp/exergate/internal/policy"
	"github.com/danielpatrickdp/exergate/internal/zones"
)

// #region status
// Status is the lifecycle state of an active challenge.
type Status string

const (
	StatusPending Status = "pending"
	StatusSuccess Status = "success"
	StatusFailed  Status = "failed"
)

// #endregion status

// #region event
// Event reports what the scheduler did on a tick, for logging and journal.
type Event string

const (
	EventNone      Event = ""
	EventStarted   Event = "started"
	EventPaused    Event = "paused"
	EventResumed   Event = "resumed"
	EventSucceeded Event = "succeeded"
	EventFailed    Event = "failed"
	EventCleared   Event = "cleared"
)

// #endregion event

// #region config
// Config holds scheduler timing knobs.
type Config struct {
	MinArmDelay time.Duration // earliest a new challenge can fire after unlock
	MaxArmDelay time.Duration // latest a new challenge can fire
	SuccessHold time.Duration // continuous satisfaction required for success
}

// DefaultConfig returns the production arming window and success hold.
func DefaultConfig() Config {
	return Config{
		MinArmDelay: 30 * time.Second,
		MaxArmDelay: 90 * time.Second,
		SuccessHold: 500 * time.Millisecond,
	}
}

// #endregion config

// #region active-challenge
// ActiveChallenge is the live state of one fired challenge. While paused the
// deadline clock is frozen: PausedRemaining captures the unused budget and
// DeadlineAt is recomputed on resume.
type ActiveChallenge struct {
	ID              string
	Spec            policy.ChallengeSpec
	Status          Status
	DeadlineAt      time.Time
	SatisfiedSince  time.Time // zero while the challenge requirement is unmet
	Paused          bool
	PausedAt        time.Time
	PausedRemaining time.Duration
}

// #endregion active-challenge

// #region tick-input
// TickInput carries everything one scheduler tick needs. The challenge
// requirement is evaluated from the same snapshot data as the base policy
// but as a fully separate requirement, never merged into the base summary.
type TickInput struct {
	Now              time.Time
	Unlocked         bool // current phase is unlocked (arming gate)
	BaseSatisfied    bool // base policy satisfied this tick (pause/clear gate)
	Ranks            zones.RankTable
	ParticipantZones map[string]zones.ZoneID
	Exempt           map[string]bool
}

// #endregion tick-input
