package roster

import (
	"sort"
	"sync"
	"time"

	"github.com/danielpatrickdp/exergate/internal/zones"
)

// #region participant-state
// ParticipantState is the per-participant record. The ID is a stable
// identifier, never a display name. StabilizedZoneID is mutated only
// through the zone stabilizer.
type ParticipantState struct {
	ID               string
	LastHeartRateBpm int
	LastSeenAt       time.Time
	StabilizedZoneID zones.ZoneID
	Exempt           bool
}

// #endregion participant-state

// #region roster
// Roster tracks participant state fed by the external device-management
// layer. It owns the zone stabilizer; ghost filtering happens downstream in
// the evaluation coordinator, never here, so a snapshot is always complete.
type Roster struct {
	mu           sync.Mutex
	table        *zones.Table
	stabilizer   *zones.Stabilizer
	participants map[string]*ParticipantState
}

// New creates a roster over the given zone table and stabilizer.
func New(table *zones.Table, stabilizer *zones.Stabilizer) *Roster {
	return &Roster{
		table:        table,
		stabilizer:   stabilizer,
		participants: make(map[string]*ParticipantState),
	}
}

// ReportHeartRate ingests one sensor reading. A reading at or below zero is
// the disconnect sentinel: it touches neither the stabilizer nor the
// last-seen timestamp, so the participant keeps the last known zone and
// ages out through the staleness window rather than dropping instantly.
func (r *Roster) ReportHeartRate(participantID string, bpm int, at time.Time) {
	r.mu.Lock()
	defer r.mu.Unlock()

	p, ok := r.participants[participantID]
	if !ok {
		p = &ParticipantState{ID: participantID}
		r.participants[participantID] = p
	}

	raw, valid := r.table.Classify(participantID, bpm)
	if !valid {
		return
	}

	p.LastHeartRateBpm = bpm
	p.LastSeenAt = at
	p.StabilizedZoneID = r.stabilizer.Update(participantID, raw, at)
}

// Snapshot returns value copies of every participant, sorted by ID.
func (r *Roster) Snapshot() []ParticipantState {
	r.mu.Lock()
	defer r.mu.Unlock()

	out := make([]ParticipantState, 0, len(r.participants))
	for _, p := range r.participants {
		out = append(out, *p)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

// SetExempt marks or unmarks a participant as exempt. Returns false when
// the participant is unknown.
func (r *Roster) SetExempt(participantID string, exempt bool) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	p, ok := r.participants[participantID]
	if !ok {
		return false
	}
	p.Exempt = exempt
	return true
}

// Remove drops a participant and its stabilizer state.
func (r *Roster) Remove(participantID string) {
	r.mu.Lock()
	defer r.mu.Unlock()

	delete(r.participants, participantID)
	r.stabilizer.Remove(participantID)
}

// Reset clears all participants, e.g. at session end.
func (r *Roster) Reset() {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.participants = make(map[string]*ParticipantState)
	r.stabilizer.Reset()
}

// #endregion roster
