package zones

import "time"

// #region stabilizer-config
// StabilizerConfig holds timing windows for zone commit decisions.
type StabilizerConfig struct {
	StabilityWindow time.Duration // pending zone must hold this long before commit
	Cooldown        time.Duration // max time a participant can sit uncommitted after a commit
}

// DefaultStabilizerConfig returns the production windows.
func DefaultStabilizerConfig() StabilizerConfig {
	return StabilizerConfig{
		StabilityWindow: 3 * time.Second,
		Cooldown:        5 * time.Second,
	}
}

// #endregion stabilizer-config

// #region commit-state
// commitState tracks the per-participant debounce window.
type commitState struct {
	committed    ZoneID
	committedAt  time.Time
	pending      ZoneID
	pendingSince time.Time
	hasPending   bool
}

// #endregion commit-state

// #region stabilizer
// Stabilizer converts raw per-participant zone classifications into
// stabilized zones, suppressing rapid toggling near zone boundaries.
type Stabilizer struct {
	config       StabilizerConfig
	participants map[string]*commitState
}

// NewStabilizer creates a stabilizer with the given windows. Cooldown is
// clamped to at least StabilityWindow so the unblock path can never commit
// faster than the stability window allows.
func NewStabilizer(config StabilizerConfig) *Stabilizer {
	if config.Cooldown < config.StabilityWindow {
		config.Cooldown = config.StabilityWindow
	}
	return &Stabilizer{
		config:       config,
		participants: make(map[string]*commitState),
	}
}

// Update feeds one raw zone observation and returns the stabilized zone.
//
// First observation commits immediately. A raw zone equal to the committed
// zone clears any pending window. Otherwise the raw zone is tracked as
// pending and commits at the earlier of: holding continuously for
// StabilityWindow, or Cooldown elapsing since the last commit (the unblock
// path for participants oscillating across a boundary, which otherwise
// would never accumulate a continuous hold).
//
// An empty raw zone is the disconnect sentinel: the stabilizer does not
// update at all and the last known zone is preserved.
func (s *Stabilizer) Update(participantID string, raw ZoneID, now time.Time) ZoneID {
	cs, ok := s.participants[participantID]
	if raw == "" {
		if !ok {
			return ""
		}
		return cs.committed
	}

	if !ok {
		cs = &commitState{committed: raw, committedAt: now}
		s.participants[participantID] = cs
		return raw
	}

	if raw == cs.committed {
		cs.hasPending = false
		cs.pending = ""
		return cs.committed
	}

	if !cs.hasPending || cs.pending != raw {
		cs.hasPending = true
		cs.pending = raw
		cs.pendingSince = now
	}

	heldLongEnough := now.Sub(cs.pendingSince) >= s.config.StabilityWindow
	cooldownElapsed := now.Sub(cs.committedAt) >= s.config.Cooldown
	if heldLongEnough || cooldownElapsed {
		cs.committed = cs.pending
		cs.committedAt = now
		cs.hasPending = false
		cs.pending = ""
	}
	return cs.committed
}

// Committed returns the participant's stabilized zone, if one exists.
func (s *Stabilizer) Committed(participantID string) (ZoneID, bool) {
	cs, ok := s.participants[participantID]
	if !ok {
		return "", false
	}
	return cs.committed, true
}

// Remove drops a participant's commit state.
func (s *Stabilizer) Remove(participantID string) {
	delete(s.participants, participantID)
}

// Reset clears all commit state, e.g. at session end.
func (s *Stabilizer) Reset() {
	s.participants = make(map[string]*commitState)
}

// #endregion stabilizer
