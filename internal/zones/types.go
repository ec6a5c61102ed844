package zones

import "sort"

// #region zone-id
// ZoneID identifies a zone definition.
type ZoneID string

// #endregion zone-id

// #region zone-definition
// ZoneDefinition describes one heart-rate zone. Rank is the sole basis for
// meets-or-exceeds comparisons; thresholds exist only to classify raw bpm
// and are not globally comparable because of per-participant overrides.
type ZoneDefinition struct {
	ID              ZoneID `json:"id"`
	Rank            int    `json:"rank"`
	MinThresholdBpm int    `json:"min_threshold_bpm"`
	// PerParticipantOverride replaces MinThresholdBpm for specific participants.
	PerParticipantOverride map[string]int `json:"per_participant_override,omitempty"`
}

// #endregion zone-definition

// #region rank-table
// RankTable maps zone IDs to their monotonic ranks.
type RankTable map[ZoneID]int

// #endregion rank-table

// #region table
// Table holds zone definitions ordered by rank ascending.
type Table struct {
	defs  []ZoneDefinition
	ranks RankTable
}

// NewTable builds a Table from definitions, sorting by rank ascending.
func NewTable(defs []ZoneDefinition) *Table {
	sorted := make([]ZoneDefinition, len(defs))
	copy(sorted, defs)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].Rank < sorted[j].Rank })

	ranks := make(RankTable, len(sorted))
	for _, d := range sorted {
		ranks[d.ID] = d.Rank
	}
	return &Table{defs: sorted, ranks: ranks}
}

// Ranks returns the zone rank lookup table.
func (t *Table) Ranks() RankTable {
	return t.ranks
}

// Definitions returns the zone definitions ordered by rank ascending.
func (t *Table) Definitions() []ZoneDefinition {
	return t.defs
}

// Classify maps a heart-rate reading to the highest-ranked zone whose
// effective threshold the reading meets. Per-participant overrides take
// precedence over the zone's base threshold. Readings at or below zero are
// the sensor disconnect sentinel and never classify; callers must not feed
// them to the stabilizer.
func (t *Table) Classify(participantID string, bpm int) (ZoneID, bool) {
	if bpm <= 0 || len(t.defs) == 0 {
		return "", false
	}
	// defs are rank-ascending; walk down from the top.
	for i := len(t.defs) - 1; i >= 0; i-- {
		d := t.defs[i]
		threshold := d.MinThresholdBpm
		if override, ok := d.PerParticipantOverride[participantID]; ok {
			threshold = override
		}
		if bpm >= threshold {
			return d.ID, true
		}
	}
	// Below every threshold: the lowest-ranked zone is the floor.
	return t.defs[0].ID, true
}

// #endregion table
