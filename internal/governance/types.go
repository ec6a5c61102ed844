package governance

import (
	"time"

	"github.com/danielpatrickdp/exergate/internal/challenge"
	"github.com/danielpatrickdp/exergate/internal/policy"
	"github.com/danielpatrickdp/exergate/internal/roster"
	"github.com/danielpatrickdp/exergate/internal/zones"
)

// #region phase
// Phase is the current gating status.
type Phase string

const (
	PhaseIdle     Phase = "idle" // no governed media or no active participants
	PhasePending  Phase = "pending"
	PhaseUnlocked Phase = "unlocked"
	PhaseWarning  Phase = "warning"
	PhaseLocked   Phase = "locked"
)

// #endregion phase

// #region trigger
// Trigger names the external path that requested an evaluation. Every
// trigger assembles the same snapshot; the name exists for logs and the
// transition journal only.
type Trigger string

const (
	TriggerPulse      Trigger = "pulse"
	TriggerSnapshot   Trigger = "snapshot"
	TriggerZoneChange Trigger = "zoneChange"
)

// #endregion trigger

// #region config
// Config holds the engine's timing windows. Exactly two stabilization
// mechanisms exist beyond the zone stabilizer: the unlock hold and the
// warning cooldown. Widen these before adding new timing layers.
type Config struct {
	UnlockHold      time.Duration // continuous satisfaction required to unlock
	GracePeriod     time.Duration // warning countdown before locking
	WarningCooldown time.Duration // suppresses warning re-entry after an unlock from warning/locked
	StalenessWindow time.Duration // participants silent longer than this are ghosts
	Challenge       challenge.Config
}

// DefaultConfig returns the production windows.
func DefaultConfig() Config {
	return Config{
		UnlockHold:      500 * time.Millisecond,
		GracePeriod:     15 * time.Second,
		WarningCooldown: 30 * time.Second,
		StalenessWindow: 10 * time.Second,
		Challenge:       challenge.DefaultConfig(),
	}
}

// #endregion config

// #region governed-media
// GovernedMedia identifies the playback content currently subject to gating.
type GovernedMedia struct {
	MediaID  string `json:"media_id"`
	Governed bool   `json:"governed"`
	PolicyID string `json:"policy_id,omitempty"`
}

// #endregion governed-media

// #region snapshot
// Snapshot is the ephemeral input to one evaluation. It is assembled the
// same way for every trigger and is the only structure the policy evaluator
// and transition logic may read; never a cached prior snapshot.
type Snapshot struct {
	Now                  time.Time
	Trigger              Trigger
	Governed             bool
	MediaID              string
	Policy               policy.Policy
	PolicyLoadFailed     bool
	RankTable            zones.RankTable
	ParticipantZones     map[string]zones.ZoneID
	ActiveParticipantIDs []string
	GhostParticipantIDs  []string
	ExemptIDs            map[string]bool
}

// #endregion snapshot

// #region state
// State is the published output of an evaluation. VideoLocked is derived
// (governed and phase outside unlocked/warning) and is the sole authority
// consumed by playback control. States are immutable value objects,
// replaced on every evaluation and never mutated in place. ChallengeEvent
// carries the scheduler event this evaluation produced, EventNone on every
// other evaluation; it is excluded from change detection.
type State struct {
	SessionID            string
	Phase                Phase
	Governed             bool
	MediaID              string
	SatisfiedOnce        bool
	VideoLocked          bool
	Requirements         []policy.RequirementResult
	ConfigurationError   bool
	ActiveChallenge      *challenge.ActiveChallenge
	ChallengeEvent       challenge.Event
	SatisfiedSince       time.Time
	GraceDeadlineAt      time.Time
	WarningCooldownUntil time.Time
	PhaseReason          string
	ActiveParticipantIDs []string
	GhostParticipantIDs  []string
	EvaluatedAt          time.Time
}

// #endregion state

// #region transition-record
// TransitionRecord describes one phase change, for the journal.
type TransitionRecord struct {
	SessionID     string
	MediaID       string
	FromPhase     Phase
	ToPhase       Phase
	Trigger       Trigger
	Reason        string
	VideoLocked   bool
	SatisfiedOnce bool
	At            time.Time
}

// #endregion transition-record

// #region collaborator-interfaces
// RosterSource supplies the authoritative participant roster. The engine
// pulls a fresh snapshot on every evaluation; it never caches rosters
// across calls.
type RosterSource interface {
	Snapshot() []roster.ParticipantState
}

// PolicyLoader resolves a policy ID to a full policy on media change.
type PolicyLoader interface {
	LoadPolicy(policyID string) (policy.Policy, error)
}

// TransitionSink receives phase transitions, e.g. the sqlite journal.
type TransitionSink interface {
	RecordTransition(rec TransitionRecord) error
}

// #endregion collaborator-interfaces

// #region diagnostics
// Diagnostics is the full internal snapshot exported for test and
// observability tooling.
type Diagnostics struct {
	State            State
	Media            GovernedMedia
	RankTable        zones.RankTable
	ParticipantZones map[string]zones.ZoneID
	GhostIDs         []string
	ExemptIDs        []string
	PolicyID         string
	PolicyLoadFailed bool
}

// #endregion diagnostics
