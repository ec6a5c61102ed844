package transport

import (
	"time"

	"github.com/danielpatrickdp/exergate/internal/governance"
)

// #region sensor-frame
// SensorFrame is one heart-rate reading from the device-management layer.
// A heart rate at or below zero is the disconnect sentinel.
type SensorFrame struct {
	ParticipantID string `json:"participant_id"`
	HeartRateBpm  int    `json:"heart_rate_bpm"`
}

// #endregion sensor-frame

// #region engine-interfaces
// Engine is the evaluation surface the transport layer drives. Satisfied by
// *governance.Engine.
type Engine interface {
	Evaluate(trigger governance.Trigger) governance.State
	GetState() governance.State
	Diagnostics() governance.Diagnostics
	SetGovernedMedia(m governance.GovernedMedia) error
	Media() governance.GovernedMedia
}

// Roster is the participant ingestion surface. Satisfied by *roster.Roster.
type Roster interface {
	ReportHeartRate(participantID string, bpm int, at time.Time)
	SetExempt(participantID string, exempt bool) bool
	Remove(participantID string)
}

// #endregion engine-interfaces

// #region state-payload
// requirementPayload is the wire view of one requirement result.
type requirementPayload struct {
	TargetZoneID        string   `json:"target_zone_id"`
	Rule                string   `json:"rule"`
	Satisfied           bool     `json:"satisfied"`
	ConfigurationError  bool     `json:"configuration_error,omitempty"`
	RequiredCount       int      `json:"required_count"`
	ActualMetCount      int      `json:"actual_met_count"`
	MetParticipants     []string `json:"met_participants,omitempty"`
	MissingParticipants []string `json:"missing_participants,omitempty"`
}

// challengePayload is the wire view of the active challenge.
type challengePayload struct {
	ID            string     `json:"id"`
	TargetZoneID  string     `json:"target_zone_id"`
	RequiredCount int        `json:"required_count"`
	Status        string     `json:"status"`
	DeadlineAt    *time.Time `json:"deadline_at,omitempty"`
	Paused        bool       `json:"paused"`
	RemainingMs   int64      `json:"remaining_ms"`
}

// StatePayload is the wire view of a published state, sent on /ws/state and
// returned by the HTTP API.
type StatePayload struct {
	SessionID          string               `json:"session_id"`
	Phase              string               `json:"phase"`
	Governed           bool                 `json:"governed"`
	MediaID            string               `json:"media_id,omitempty"`
	VideoLocked        bool                 `json:"video_locked"`
	SatisfiedOnce      bool                 `json:"satisfied_once"`
	ConfigurationError bool                 `json:"configuration_error,omitempty"`
	PhaseReason        string               `json:"phase_reason,omitempty"`
	Requirements       []requirementPayload `json:"requirements,omitempty"`
	ActiveChallenge    *challengePayload    `json:"active_challenge,omitempty"`
	GraceDeadlineAt    *time.Time           `json:"grace_deadline_at,omitempty"`
	ActiveParticipants []string             `json:"active_participants,omitempty"`
	GhostParticipants  []string             `json:"ghost_participants,omitempty"`
	EvaluatedAt        time.Time            `json:"evaluated_at"`
}

// NewStatePayload converts a published state into its wire view.
func NewStatePayload(st governance.State) StatePayload {
	p := StatePayload{
		SessionID:          st.SessionID,
		Phase:              string(st.Phase),
		Governed:           st.Governed,
		MediaID:            st.MediaID,
		VideoLocked:        st.VideoLocked,
		SatisfiedOnce:      st.SatisfiedOnce,
		ConfigurationError: st.ConfigurationError,
		PhaseReason:        st.PhaseReason,
		ActiveParticipants: st.ActiveParticipantIDs,
		GhostParticipants:  st.GhostParticipantIDs,
		EvaluatedAt:        st.EvaluatedAt,
	}
	for _, r := range st.Requirements {
		p.Requirements = append(p.Requirements, requirementPayload{
			TargetZoneID:        string(r.Spec.TargetZoneID),
			Rule:                string(r.Spec.Rule),
			Satisfied:           r.Satisfied,
			ConfigurationError:  r.ConfigurationError,
			RequiredCount:       r.RequiredCount,
			ActualMetCount:      r.ActualMetCount,
			MetParticipants:     r.MetParticipantIDs,
			MissingParticipants: r.MissingParticipantIDs,
		})
	}
	if c := st.ActiveChallenge; c != nil {
		cp := &challengePayload{
			ID:            c.ID,
			TargetZoneID:  string(c.Spec.TargetZoneID),
			RequiredCount: c.Spec.RequiredCount,
			Status:        string(c.Status),
			Paused:        c.Paused,
		}
		if c.Paused {
			cp.RemainingMs = c.PausedRemaining.Milliseconds()
		} else if !c.DeadlineAt.IsZero() {
			d := c.DeadlineAt
			cp.DeadlineAt = &d
			cp.RemainingMs = c.DeadlineAt.Sub(st.EvaluatedAt).Milliseconds()
		}
		p.ActiveChallenge = cp
	}
	if !st.GraceDeadlineAt.IsZero() {
		g := st.GraceDeadlineAt
		p.GraceDeadlineAt = &g
	}
	return p
}

// #endregion state-payload
