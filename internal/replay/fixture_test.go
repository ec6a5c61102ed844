package replay

import (
	"os"
	"path/filepath"
	"testing"
)

// #region fixture-tests

// TestFixture_GatedSession replays the recorded session fixture and compares
// each event's phase against the expected timeline. This is the primary
// regression test: if stabilizer, hysteresis, or grace parameters drift,
// this catches it.
func TestFixture_GatedSession(t *testing.T) {
	f, err := LoadFixture(filepath.Join("testdata", "gated_session.json"))
	if err != nil {
		t.Fatalf("LoadFixture: %v", err)
	}

	h, err := NewHarness(f.Zones, f.ToPolicies(), f.Config.ToConfig(), f.Seed)
	if err != nil {
		t.Fatalf("NewHarness: %v", err)
	}
	results, err := h.Run(f.ToEvents())
	if err != nil {
		t.Fatalf("Run: %v", err)
	}

	if len(results) != len(f.Expected) {
		t.Fatalf("expected %d results, got %d", len(f.Expected), len(results))
	}
	for i, expected := range f.Expected {
		actual := results[i]
		if actual.AtMs != expected.AtMs {
			t.Errorf("event %d: expected at_ms=%d, got %d", i, expected.AtMs, actual.AtMs)
		}
		if string(actual.Phase) != expected.Phase {
			t.Errorf("event %d (%dms): expected phase=%s, got %s (reason: %s)",
				i, expected.AtMs, expected.Phase, actual.Phase, actual.Reason)
		}
		if actual.VideoLocked != expected.VideoLocked {
			t.Errorf("event %d (%dms): expected video_locked=%v, got %v",
				i, expected.AtMs, expected.VideoLocked, actual.VideoLocked)
		}
	}
}

// TestLoadFixture_NotFound verifies error on missing file.
func TestLoadFixture_NotFound(t *testing.T) {
	_, err := LoadFixture("testdata/nonexistent.json")
	if err == nil {
		t.Fatal("expected error for missing file, got nil")
	}
}

// TestLoadFixture_Malformed verifies error on invalid JSON.
func TestLoadFixture_Malformed(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "bad.json")
	if err := os.WriteFile(path, []byte("{not valid json}"), 0644); err != nil {
		t.Fatalf("write temp file: %v", err)
	}

	_, err := LoadFixture(path)
	if err == nil {
		t.Fatal("expected error for malformed JSON, got nil")
	}
}

// #endregion fixture-tests
