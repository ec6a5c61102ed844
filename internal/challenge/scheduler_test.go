package challenge

import (
	"testing"
	"time"

	"github.com/danielpatrickdp/exergate/internal/policy"
	"github.com/danielpatrickdp/exergate/internal/zones"
)

var t0 = time.Date(2026, 3, 14, 9, 0, 0, 0, time.UTC)

func fixedConfig() Config {
	// Min == Max removes arming randomness from tests.
	return Config{
		MinArmDelay: 10 * time.Second,
		MaxArmDelay: 10 * time.Second,
		SuccessHold: 500 * time.Millisecond,
	}
}

func hotChallenge() []policy.ChallengeSpec {
	return []policy.ChallengeSpec{{
		TargetZoneID:  "hot",
		RequiredCount: 1,
		TimeLimit:     5 * time.Second,
	}}
}

func testRanks() zones.RankTable {
	return zones.RankTable{"rest": 0, "active": 1, "warm": 2, "hot": 3}
}

func tick(s *Scheduler, now time.Time, unlocked, baseSatisfied bool, zone zones.ZoneID) Event {
	return s.Tick(TickInput{
		Now:              now,
		Unlocked:         unlocked,
		BaseSatisfied:    baseSatisfied,
		Ranks:            testRanks(),
		ParticipantZones: map[string]zones.ZoneID{"p1": zone},
	})
}

// startPending arms and fires a challenge, returning the fire time.
func startPending(t *testing.T, s *Scheduler) time.Time {
	t.Helper()
	if ev := tick(s, t0, true, true, "warm"); ev != EventNone {
		t.Fatalf("arming tick produced %s", ev)
	}
	fireAt := t0.Add(10 * time.Second)
	if ev := tick(s, fireAt, true, true, "warm"); ev != EventStarted {
		t.Fatalf("expected started at arm time, got %q", ev)
	}
	return fireAt
}

func TestNoChallengeWithoutSpecs(t *testing.T) {
	s := NewSchedulerSeeded(fixedConfig(), 1)
	if ev := tick(s, t0, true, true, "hot"); ev != EventNone {
		t.Fatalf("empty spec list fired %s", ev)
	}
}

func TestArmsOnlyWhileUnlocked(t *testing.T) {
	s := NewSchedulerSeeded(fixedConfig(), 1)
	s.SetSpecs(hotChallenge())

	tick(s, t0, false, false, "rest")
	// Not unlocked at the would-be fire time either: nothing fires.
	if ev := tick(s, t0.Add(11*time.Second), false, false, "rest"); ev != EventNone {
		t.Fatalf("fired while locked: %s", ev)
	}
	// Arming restarts from the unlock, not from t0.
	tick(s, t0.Add(12*time.Second), true, true, "warm")
	if ev := tick(s, t0.Add(13*time.Second), true, true, "warm"); ev != EventNone {
		t.Fatalf("fired before re-armed delay elapsed: %s", ev)
	}
	if ev := tick(s, t0.Add(22*time.Second), true, true, "warm"); ev != EventStarted {
		t.Fatalf("expected started after re-armed delay, got %q", ev)
	}
}

func TestSuccessRequiresContinuousHold(t *testing.T) {
	s := NewSchedulerSeeded(fixedConfig(), 1)
	s.SetSpecs(hotChallenge())
	fireAt := startPending(t, s)

	// Satisfied once, then a dip resets the hold.
	tick(s, fireAt.Add(time.Second), true, true, "hot")
	tick(s, fireAt.Add(1200*time.Millisecond), true, true, "warm")
	if ev := tick(s, fireAt.Add(1400*time.Millisecond), true, true, "hot"); ev != EventNone {
		t.Fatalf("hold should have reset, got %q", ev)
	}
	if ev := tick(s, fireAt.Add(2*time.Second), true, true, "hot"); ev != EventSucceeded {
		t.Fatalf("expected success after continuous hold, got %q", ev)
	}
	if s.Active() != nil {
		t.Fatal("challenge should be destroyed on success")
	}
}

func TestDeadlineFailure(t *testing.T) {
	s := NewSchedulerSeeded(fixedConfig(), 1)
	s.SetSpecs(hotChallenge())
	fireAt := startPending(t, s)

	if ev := tick(s, fireAt.Add(5*time.Second), true, true, "warm"); ev != EventFailed {
		t.Fatalf("expected failure at deadline, got %q", ev)
	}
	c := s.Active()
	if c == nil || c.Status != StatusFailed {
		t.Fatalf("failed challenge must persist for the lock decision: %+v", c)
	}
}

func TestPausePreservesRemainingBudget(t *testing.T) {
	// Deadline 5s, base breaks at t+2s, re-satisfies at t+4s; the new
	// deadline is t+7s, not t+9s.
	s := NewSchedulerSeeded(fixedConfig(), 1)
	s.SetSpecs(hotChallenge())
	fireAt := startPending(t, s)

	if ev := tick(s, fireAt.Add(2*time.Second), true, false, "rest"); ev != EventPaused {
		t.Fatalf("expected pause when base breaks, got %q", ev)
	}
	c := s.Active()
	if c.PausedRemaining != 3*time.Second {
		t.Fatalf("paused remaining = %v, want 3s", c.PausedRemaining)
	}

	// While paused the deadline clock is frozen.
	if ev := tick(s, fireAt.Add(3*time.Second), false, false, "rest"); ev != EventNone {
		t.Fatalf("paused challenge advanced: %q", ev)
	}

	resumeAt := fireAt.Add(4 * time.Second)
	if ev := tick(s, resumeAt, true, true, "warm"); ev != EventResumed {
		t.Fatalf("expected resume, got %q", ev)
	}
	c = s.Active()
	if want := fireAt.Add(7 * time.Second); !c.DeadlineAt.Equal(want) {
		t.Fatalf("resumed deadline = %v, want %v", c.DeadlineAt, want)
	}

	// Past the original deadline but inside the recomputed one: no failure.
	if ev := tick(s, fireAt.Add(6900*time.Millisecond), true, true, "warm"); ev != EventNone {
		t.Fatalf("failed before recomputed deadline: %q", ev)
	}
	if ev := tick(s, fireAt.Add(7*time.Second), true, true, "warm"); ev != EventFailed {
		t.Fatalf("expected failure at recomputed deadline, got %q", ev)
	}
}

func TestFailedChallengeClearedOnceBaseSatisfied(t *testing.T) {
	s := NewSchedulerSeeded(fixedConfig(), 1)
	s.SetSpecs(hotChallenge())
	fireAt := startPending(t, s)
	tick(s, fireAt.Add(5*time.Second), true, true, "warm") // fail

	if ev := tick(s, fireAt.Add(6*time.Second), false, false, "rest"); ev != EventNone {
		t.Fatalf("failed challenge should persist while base unmet, got %q", ev)
	}
	if ev := tick(s, fireAt.Add(8*time.Second), false, true, "warm"); ev != EventCleared {
		t.Fatalf("expected cleared once base re-satisfied, got %q", ev)
	}
	if s.Active() != nil {
		t.Fatal("cleared challenge still active")
	}
}

func TestSuccessOutranksDeadlineOnSameTick(t *testing.T) {
	s := NewSchedulerSeeded(fixedConfig(), 1)
	s.SetSpecs(hotChallenge())
	fireAt := startPending(t, s)

	tick(s, fireAt.Add(4*time.Second), true, true, "hot")
	// At exactly the deadline the hold is complete too: the user wins.
	if ev := tick(s, fireAt.Add(5*time.Second), true, true, "hot"); ev != EventSucceeded {
		t.Fatalf("tie must favor the user, got %q", ev)
	}
}

func TestSetSpecsCancelsLiveChallenge(t *testing.T) {
	s := NewSchedulerSeeded(fixedConfig(), 1)
	s.SetSpecs(hotChallenge())
	startPending(t, s)

	s.SetSpecs(hotChallenge())
	if s.Active() != nil {
		t.Fatal("policy change must destroy the active challenge")
	}
}
