package replay

import (
	"encoding/json"
	"fmt"
	"os"
	"time"

	"github.com/danielpatrickdp/exergate/internal/challenge"
	"github.com/danielpatrickdp/exergate/internal/governance"
	"github.com/danielpatrickdp/exergate/internal/policy"
	"github.com/danielpatrickdp/exergate/internal/zones"
)

// #region fixture-types

// Fixture is the top-level JSON structure for a replay fixture: the zone
// ladder, the policies the timeline may reference, the engine windows, and
// the recorded events with expected phases.
type Fixture struct {
	Description string                 `json:"description"`
	Seed        int64                  `json:"seed"`
	Zones       []zones.ZoneDefinition `json:"zones"`
	Policies    []FixturePolicy        `json:"policies"`
	Config      FixtureConfig          `json:"config"`
	Events      []FixtureEvent         `json:"events"`
	Expected    []FixtureExpected      `json:"expected"`
}

// FixturePolicy mirrors policy.Policy with JSON tags.
type FixturePolicy struct {
	ID           string               `json:"id"`
	Requirements []FixtureRequirement `json:"requirements"`
	Challenges   []FixtureChallenge   `json:"challenges,omitempty"`
}

// FixtureRequirement mirrors policy.RequirementSpec.
type FixtureRequirement struct {
	TargetZoneID  string `json:"target_zone_id"`
	Rule          string `json:"rule"`
	RequiredCount int    `json:"required_count,omitempty"`
}

// FixtureChallenge mirrors policy.ChallengeSpec with a millisecond limit.
type FixtureChallenge struct {
	TargetZoneID  string `json:"target_zone_id"`
	RequiredCount int    `json:"required_count"`
	TimeLimitMs   int64  `json:"time_limit_ms"`
}

// FixtureConfig mirrors governance.Config in milliseconds. Zero values fall
// back to the production defaults.
type FixtureConfig struct {
	UnlockHoldMs      int64 `json:"unlock_hold_ms"`
	GracePeriodMs     int64 `json:"grace_period_ms"`
	WarningCooldownMs int64 `json:"warning_cooldown_ms"`
	StalenessWindowMs int64 `json:"staleness_window_ms"`
	ChallengeMinArmMs int64 `json:"challenge_min_arm_ms"`
	ChallengeMaxArmMs int64 `json:"challenge_max_arm_ms"`
}

// FixtureEvent mirrors Event with JSON tags.
type FixtureEvent struct {
	AtMs          int64                     `json:"at_ms"`
	Kind          string                    `json:"kind"`
	ParticipantID string                    `json:"participant_id,omitempty"`
	HeartRateBpm  int                       `json:"heart_rate_bpm,omitempty"`
	Exempt        bool                      `json:"exempt,omitempty"`
	Media         *governance.GovernedMedia `json:"media,omitempty"`
}

// FixtureExpected is the expected phase right after the event at the given
// offset.
type FixtureExpected struct {
	AtMs        int64  `json:"at_ms"`
	Phase       string `json:"phase"`
	VideoLocked bool   `json:"video_locked"`
}

// #endregion fixture-types

// #region fixture-loader

// LoadFixture reads and parses a JSON fixture file.
func LoadFixture(path string) (*Fixture, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read fixture %s: %w", path, err)
	}
	var f Fixture
	if err := json.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("parse fixture %s: %w", path, err)
	}
	return &f, nil
}

// ToPolicies converts the fixture policies to domain policies.
func (f *Fixture) ToPolicies() []policy.Policy {
	out := make([]policy.Policy, 0, len(f.Policies))
	for _, fp := range f.Policies {
		p := policy.Policy{ID: fp.ID}
		for _, r := range fp.Requirements {
			p.BaseRequirements = append(p.BaseRequirements, policy.RequirementSpec{
				TargetZoneID:  zones.ZoneID(r.TargetZoneID),
				Rule:          policy.Rule(r.Rule),
				RequiredCount: r.RequiredCount,
			})
		}
		for _, c := range fp.Challenges {
			p.Challenges = append(p.Challenges, policy.ChallengeSpec{
				TargetZoneID:  zones.ZoneID(c.TargetZoneID),
				RequiredCount: c.RequiredCount,
				TimeLimit:     time.Duration(c.TimeLimitMs) * time.Millisecond,
			})
		}
		out = append(out, p)
	}
	return out
}

// ToConfig converts the fixture config, defaulting unset windows.
func (fc *FixtureConfig) ToConfig() governance.Config {
	config := governance.DefaultConfig()
	if fc.UnlockHoldMs > 0 {
		config.UnlockHold = time.Duration(fc.UnlockHoldMs) * time.Millisecond
	}
	if fc.GracePeriodMs > 0 {
		config.GracePeriod = time.Duration(fc.GracePeriodMs) * time.Millisecond
	}
	if fc.WarningCooldownMs > 0 {
		config.WarningCooldown = time.Duration(fc.WarningCooldownMs) * time.Millisecond
	}
	if fc.StalenessWindowMs > 0 {
		config.StalenessWindow = time.Duration(fc.StalenessWindowMs) * time.Millisecond
	}
	if fc.ChallengeMinArmMs > 0 || fc.ChallengeMaxArmMs > 0 {
		config.Challenge = challenge.Config{
			MinArmDelay: time.Duration(fc.ChallengeMinArmMs) * time.Millisecond,
			MaxArmDelay: time.Duration(fc.ChallengeMaxArmMs) * time.Millisecond,
			SuccessHold: challenge.DefaultConfig().SuccessHold,
		}
	}
	return config
}

// ToEvents converts the fixture events to domain events.
func (f *Fixture) ToEvents() []Event {
	out := make([]Event, 0, len(f.Events))
	for _, fe := range f.Events {
		ev := Event{
			AtMs:          fe.AtMs,
			Kind:          EventKind(fe.Kind),
			ParticipantID: fe.ParticipantID,
			HeartRateBpm:  fe.HeartRateBpm,
			Exempt:        fe.Exempt,
		}
		if fe.Media != nil {
			ev.Media = *fe.Media
		}
		out = append(out, ev)
	}
	return out
}

// #endregion fixture-loader
