package policy

import (
	"sort"

	"github.com/danielpatrickdp/exergate/internal/zones"
)

// #region evaluate-requirement
// EvaluateRequirement is a pure function: given one requirement, the zone
// rank table, current stabilized zones, and the exempt set, it computes
// satisfaction and the met/missing participant lists.
//
// Exempt participants are excluded from both the denominator and the
// numerator; they never substitute for a non-exempt participant who drops
// below threshold. A target zone absent from the rank table makes the
// requirement unsatisfiable by construction, reported with the
// configuration-error flag rather than silently passing.
func EvaluateRequirement(
	spec RequirementSpec,
	ranks zones.RankTable,
	participantZones map[string]zones.ZoneID,
	exempt map[string]bool,
) RequirementResult {
	result := RequirementResult{Spec: spec}

	targetRank, ok := ranks[spec.TargetZoneID]
	if !ok {
		result.ConfigurationError = true
		result.Satisfied = false
		result.RequiredCount = requiredFor(spec, countNonExempt(participantZones, exempt))
		for id := range participantZones {
			if !exempt[id] {
				result.MissingParticipantIDs = append(result.MissingParticipantIDs, id)
			}
		}
		sort.Strings(result.MissingParticipantIDs)
		return result
	}

	totalNonExempt := 0
	nonExemptMet := 0
	for id, zone := range participantZones {
		if exempt[id] {
			continue
		}
		totalNonExempt++
		rank, known := ranks[zone]
		if known && rank >= targetRank {
			nonExemptMet++
			result.MetParticipantIDs = append(result.MetParticipantIDs, id)
		} else {
			result.MissingParticipantIDs = append(result.MissingParticipantIDs, id)
		}
	}
	sort.Strings(result.MetParticipantIDs)
	sort.Strings(result.MissingParticipantIDs)

	result.ActualMetCount = nonExemptMet
	result.RequiredCount = requiredFor(spec, totalNonExempt)

	switch spec.Rule {
	case RuleCount:
		result.Satisfied = nonExemptMet >= spec.RequiredCount
	default: // RuleAll
		result.Satisfied = nonExemptMet == totalNonExempt
	}
	return result
}

// #endregion evaluate-requirement

// #region evaluate-policy
// EvaluatePolicy runs every base requirement and ANDs the outcomes. An empty
// requirement list is trivially satisfied; any configuration error surfaces
// on the aggregate so consumers can render the unreachable-target state.
func EvaluatePolicy(
	p Policy,
	ranks zones.RankTable,
	participantZones map[string]zones.ZoneID,
	exempt map[string]bool,
) PolicyResult {
	result := PolicyResult{AllSatisfied: true}
	for _, spec := range p.BaseRequirements {
		r := EvaluateRequirement(spec, ranks, participantZones, exempt)
		result.Requirements = append(result.Requirements, r)
		if !r.Satisfied {
			result.AllSatisfied = false
		}
		if r.ConfigurationError {
			result.ConfigurationError = true
		}
	}
	return result
}

// #endregion evaluate-policy

// #region helpers
func requiredFor(spec RequirementSpec, totalNonExempt int) int {
	if spec.Rule == RuleCount {
		return spec.RequiredCount
	}
	return totalNonExempt
}

func countNonExempt(participantZones map[string]zones.ZoneID, exempt map[string]bool) int {
	n := 0
	for id := range participantZones {
		if !exempt[id] {
			n++
		}
	}
	return n
}

// #endregion helpers
