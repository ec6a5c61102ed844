package zones

import (
	"testing"
	"time"
)

var t0 = time.Date(2026, 3, 14, 9, 0, 0, 0, time.UTC)

func testTable() *Table {
	return NewTable([]ZoneDefinition{
		{ID: "rest", Rank: 0, MinThresholdBpm: 0},
		{ID: "active", Rank: 1, MinThresholdBpm: 100},
		{ID: "warm", Rank: 2, MinThresholdBpm: 130},
		{ID: "hot", Rank: 3, MinThresholdBpm: 160},
	})
}

func TestClassifyPicksHighestMetThreshold(t *testing.T) {
	table := testTable()

	cases := []struct {
		bpm  int
		want ZoneID
	}{
		{50, "rest"},
		{100, "active"},
		{129, "active"},
		{130, "warm"},
		{175, "hot"},
	}
	for _, c := range cases {
		got, ok := table.Classify("p1", c.bpm)
		if !ok {
			t.Fatalf("classify(%d) not ok", c.bpm)
		}
		if got != c.want {
			t.Errorf("classify(%d) = %s, want %s", c.bpm, got, c.want)
		}
	}
}

func TestClassifyRejectsDisconnectSentinel(t *testing.T) {
	table := testTable()
	if _, ok := table.Classify("p1", 0); ok {
		t.Fatal("bpm 0 should not classify")
	}
	if _, ok := table.Classify("p1", -5); ok {
		t.Fatal("negative bpm should not classify")
	}
}

func TestClassifyPerParticipantOverride(t *testing.T) {
	table := NewTable([]ZoneDefinition{
		{ID: "rest", Rank: 0, MinThresholdBpm: 0},
		{ID: "active", Rank: 1, MinThresholdBpm: 100,
			PerParticipantOverride: map[string]int{"older": 85}},
	})

	if got, _ := table.Classify("older", 90); got != "active" {
		t.Errorf("override participant at 90 bpm = %s, want active", got)
	}
	if got, _ := table.Classify("default", 90); got != "rest" {
		t.Errorf("default participant at 90 bpm = %s, want rest", got)
	}
}

func TestStabilizerFirstObservationCommitsImmediately(t *testing.T) {
	s := NewStabilizer(DefaultStabilizerConfig())
	if got := s.Update("p1", "warm", t0); got != "warm" {
		t.Fatalf("first observation = %s, want warm", got)
	}
}

func TestStabilizerSuppressesShortToggle(t *testing.T) {
	s := NewStabilizer(DefaultStabilizerConfig())
	s.Update("p1", "warm", t0)

	// Drops to active for under the stability window, then back.
	if got := s.Update("p1", "active", t0.Add(500*time.Millisecond)); got != "warm" {
		t.Fatalf("zone flipped early: %s", got)
	}
	if got := s.Update("p1", "active", t0.Add(2*time.Second)); got != "warm" {
		t.Fatalf("zone flipped before stability window: %s", got)
	}
	if got := s.Update("p1", "warm", t0.Add(2500*time.Millisecond)); got != "warm" {
		t.Fatalf("returning to committed zone changed it: %s", got)
	}
}

func TestStabilizerCommitsAfterStabilityWindow(t *testing.T) {
	s := NewStabilizer(DefaultStabilizerConfig())
	s.Update("p1", "warm", t0)

	s.Update("p1", "active", t0.Add(time.Second))
	if got := s.Update("p1", "active", t0.Add(4*time.Second)); got != "active" {
		t.Fatalf("pending zone held 3s should commit, got %s", got)
	}
}

func TestStabilizerPendingResetOnZoneChange(t *testing.T) {
	s := NewStabilizer(DefaultStabilizerConfig())
	s.Update("p1", "warm", t0)

	// Pending changes target before the window elapses; the hold restarts.
	s.Update("p1", "active", t0.Add(time.Second))
	s.Update("p1", "hot", t0.Add(3*time.Second))
	if got := s.Update("p1", "hot", t0.Add(4500*time.Millisecond)); got != "warm" {
		t.Fatalf("restarted pending committed too early: %s", got)
	}
}

func TestStabilizerCooldownUnblocksOscillation(t *testing.T) {
	s := NewStabilizer(DefaultStabilizerConfig())
	s.Update("p1", "warm", t0)

	// Oscillate between two zones so no pending hold ever reaches 3s.
	s.Update("p1", "active", t0.Add(1*time.Second))
	s.Update("p1", "hot", t0.Add(3*time.Second))
	s.Update("p1", "active", t0.Add(4500*time.Millisecond))
	// Cooldown (5s since commit) unblocks whatever is pending.
	if got := s.Update("p1", "active", t0.Add(5100*time.Millisecond)); got != "active" {
		t.Fatalf("cooldown should commit pending zone, got %s", got)
	}
}

func TestStabilizerSentinelPreservesLastZone(t *testing.T) {
	s := NewStabilizer(DefaultStabilizerConfig())
	s.Update("p1", "warm", t0)

	if got := s.Update("p1", "", t0.Add(time.Second)); got != "warm" {
		t.Fatalf("sentinel update changed zone to %s", got)
	}
	if got, ok := s.Committed("p1"); !ok || got != "warm" {
		t.Fatalf("committed zone after sentinel = %s (ok=%v)", got, ok)
	}
}

func TestStabilizerCooldownClampedToStabilityWindow(t *testing.T) {
	s := NewStabilizer(StabilizerConfig{
		StabilityWindow: 3 * time.Second,
		Cooldown:        time.Second,
	})
	s.Update("p1", "warm", t0)

	s.Update("p1", "active", t0.Add(500*time.Millisecond))
	// Misconfigured cooldown below the stability window must not allow a
	// commit faster than the stability window itself.
	if got := s.Update("p1", "active", t0.Add(1500*time.Millisecond)); got != "warm" {
		t.Fatalf("commit before stability window via short cooldown: %s", got)
	}
}
