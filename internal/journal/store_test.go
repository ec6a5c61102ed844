package journal

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/danielpatrickdp/exergate/internal/governance"
)

func tempDB(t *testing.T) *Store {
	t.Helper()
	dir := t.TempDir()
	s, err := NewStore(filepath.Join(dir, "journal.db"))
	if err != nil {
		t.Fatalf("NewStore: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

func makeTransition(sessionID string, from, to governance.Phase, at time.Time) governance.TransitionRecord {
	return governance.TransitionRecord{
		SessionID:   sessionID,
		MediaID:     "m1",
		FromPhase:   from,
		ToPhase:     to,
		Trigger:     governance.TriggerPulse,
		Reason:      "test",
		VideoLocked: to != governance.PhaseUnlocked && to != governance.PhaseWarning,
		At:          at,
	}
}

func TestRecordAndListTransitions(t *testing.T) {
	s := tempDB(t)
	base := time.Date(2026, 3, 14, 9, 0, 0, 0, time.UTC)

	steps := []struct{ from, to governance.Phase }{
		{governance.PhaseIdle, governance.PhasePending},
		{governance.PhasePending, governance.PhaseUnlocked},
		{governance.PhaseUnlocked, governance.PhaseWarning},
		{governance.PhaseWarning, governance.PhaseLocked},
	}
	for i, st := range steps {
		rec := makeTransition("s1", st.from, st.to, base.Add(time.Duration(i)*time.Second))
		if err := s.RecordTransition(rec); err != nil {
			t.Fatalf("RecordTransition %d: %v", i, err)
		}
	}

	got, err := s.ListTransitions("s1")
	if err != nil {
		t.Fatalf("ListTransitions: %v", err)
	}
	if len(got) != len(steps) {
		t.Fatalf("got %d transitions, want %d", len(got), len(steps))
	}
	for i, rec := range got {
		if rec.FromPhase != steps[i].from || rec.ToPhase != steps[i].to {
			t.Fatalf("transition %d = %s→%s, want %s→%s", i, rec.FromPhase, rec.ToPhase, steps[i].from, steps[i].to)
		}
	}
	if !got[0].VideoLocked {
		t.Fatal("pending transition should be video-locked")
	}
	if got[1].VideoLocked {
		t.Fatal("unlocked transition should not be video-locked")
	}
	if !got[0].At.Equal(base) {
		t.Fatalf("timestamp round-trip: got %v, want %v", got[0].At, base)
	}
}

func TestListSessionsGroupsAndCounts(t *testing.T) {
	s := tempDB(t)
	base := time.Date(2026, 3, 14, 9, 0, 0, 0, time.UTC)

	for i := 0; i < 3; i++ {
		rec := makeTransition("s1", governance.PhaseIdle, governance.PhasePending, base.Add(time.Duration(i)*time.Second))
		if err := s.RecordTransition(rec); err != nil {
			t.Fatalf("RecordTransition: %v", err)
		}
	}
	rec := makeTransition("s2", governance.PhaseIdle, governance.PhasePending, base.Add(time.Minute))
	if err := s.RecordTransition(rec); err != nil {
		t.Fatalf("RecordTransition: %v", err)
	}

	sessions, err := s.ListSessions(10)
	if err != nil {
		t.Fatalf("ListSessions: %v", err)
	}
	if len(sessions) != 2 {
		t.Fatalf("got %d sessions, want 2", len(sessions))
	}
	// Newest first.
	if sessions[0].SessionID != "s2" || sessions[0].Transitions != 1 {
		t.Fatalf("sessions[0] = %+v", sessions[0])
	}
	if sessions[1].SessionID != "s1" || sessions[1].Transitions != 3 {
		t.Fatalf("sessions[1] = %+v", sessions[1])
	}
}

func TestTailTransitionsNewestFirst(t *testing.T) {
	s := tempDB(t)
	base := time.Date(2026, 3, 14, 9, 0, 0, 0, time.UTC)

	phases := []governance.Phase{governance.PhasePending, governance.PhaseUnlocked, governance.PhaseWarning}
	prev := governance.PhaseIdle
	for i, p := range phases {
		if err := s.RecordTransition(makeTransition("s1", prev, p, base.Add(time.Duration(i)*time.Second))); err != nil {
			t.Fatalf("RecordTransition: %v", err)
		}
		prev = p
	}

	tail, err := s.TailTransitions(2)
	if err != nil {
		t.Fatalf("TailTransitions: %v", err)
	}
	if len(tail) != 2 {
		t.Fatalf("got %d transitions, want 2", len(tail))
	}
	if tail[0].ToPhase != governance.PhaseWarning || tail[1].ToPhase != governance.PhaseUnlocked {
		t.Fatalf("tail order wrong: %s, %s", tail[0].ToPhase, tail[1].ToPhase)
	}
}
