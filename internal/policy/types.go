package policy

import (
	"time"

	"github.com/danielpatrickdp/exergate/internal/zones"
)

// #region rule
// Rule selects how many non-exempt participants must meet a requirement.
type Rule string

const (
	RuleAll   Rule = "all"   // every non-exempt active participant
	RuleCount Rule = "count" // at least RequiredCount non-exempt participants
)

// #endregion rule

// #region requirement-spec
// RequirementSpec is one zone requirement within a policy.
type RequirementSpec struct {
	TargetZoneID  zones.ZoneID `json:"target_zone_id"`
	Rule          Rule         `json:"rule"`
	RequiredCount int          `json:"required_count,omitempty"` // RuleCount only
}

// #endregion requirement-spec

// #region challenge-spec
// ChallengeSpec describes a secondary time-boxed requirement layered on top
// of a satisfied base policy.
type ChallengeSpec struct {
	TargetZoneID  zones.ZoneID  `json:"target_zone_id"`
	RequiredCount int           `json:"required_count"`
	TimeLimit     time.Duration `json:"time_limit"`
}

// #endregion challenge-spec

// #region policy
// Policy is the full gating configuration loaded once per media change.
type Policy struct {
	ID               string            `json:"id"`
	BaseRequirements []RequirementSpec `json:"base_requirements"`
	Challenges       []ChallengeSpec   `json:"challenges,omitempty"`
}

// #endregion policy

// #region requirement-result
// RequirementResult is the evaluation outcome for a single requirement.
type RequirementResult struct {
	Spec                  RequirementSpec
	Satisfied             bool
	ConfigurationError    bool // target zone missing from the rank table
	MetParticipantIDs     []string
	MissingParticipantIDs []string
	RequiredCount         int
	ActualMetCount        int // non-exempt met count only
}

// #endregion requirement-result

// #region policy-result
// PolicyResult aggregates base requirement results with AND semantics.
type PolicyResult struct {
	AllSatisfied       bool
	ConfigurationError bool
	Requirements       []RequirementResult
}

// #endregion policy-result
