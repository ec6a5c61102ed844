package policy

import (
	"encoding/json"
	"fmt"
	"os"
	"time"

	"github.com/danielpatrickdp/exergate/internal/zones"
)

// #region file-format
// configFile is the on-disk JSON layout: zone table plus named policies.
// Challenge time limits and arming windows are expressed in milliseconds.
type configFile struct {
	Zones    []zones.ZoneDefinition `json:"zones"`
	Policies []filePolicy           `json:"policies"`
}

type filePolicy struct {
	ID               string            `json:"id"`
	BaseRequirements []RequirementSpec `json:"base_requirements"`
	Challenges       []fileChallenge   `json:"challenges,omitempty"`
}

type fileChallenge struct {
	TargetZoneID  zones.ZoneID `json:"target_zone_id"`
	RequiredCount int          `json:"required_count"`
	TimeLimitMs   int64        `json:"time_limit_ms"`
}

// #endregion file-format

// #region registry
// Registry holds loaded policies and the zone table they reference. It is
// the default PolicyLoader for the governance engine.
type Registry struct {
	table    *zones.Table
	policies map[string]Policy
}

// NewRegistry creates a registry over an explicit zone table and policy set.
func NewRegistry(table *zones.Table, policies []Policy) *Registry {
	byID := make(map[string]Policy, len(policies))
	for _, p := range policies {
		byID[p.ID] = p
	}
	return &Registry{table: table, policies: byID}
}

// NewRegistryFromFile reads the zone table and policies from a JSON file.
func NewRegistryFromFile(path string) (*Registry, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read policy file: %w", err)
	}
	var cfg configFile
	if err := json.Unmarshal(raw, &cfg); err != nil {
		return nil, fmt.Errorf("parse policy file: %w", err)
	}
	if len(cfg.Zones) == 0 {
		return nil, fmt.Errorf("policy file %s defines no zones", path)
	}

	policies := make([]Policy, 0, len(cfg.Policies))
	for _, fp := range cfg.Policies {
		p := Policy{ID: fp.ID, BaseRequirements: fp.BaseRequirements}
		for _, fc := range fp.Challenges {
			p.Challenges = append(p.Challenges, ChallengeSpec{
				TargetZoneID:  fc.TargetZoneID,
				RequiredCount: fc.RequiredCount,
				TimeLimit:     time.Duration(fc.TimeLimitMs) * time.Millisecond,
			})
		}
		policies = append(policies, p)
	}
	return NewRegistry(zones.NewTable(cfg.Zones), policies), nil
}

// Table returns the zone table the policies reference.
func (r *Registry) Table() *zones.Table {
	return r.table
}

// LoadPolicy returns the policy for the given ID.
func (r *Registry) LoadPolicy(policyID string) (Policy, error) {
	p, ok := r.policies[policyID]
	if !ok {
		return Policy{}, fmt.Errorf("policy %q not found", policyID)
	}
	return p, nil
}

// #endregion registry
