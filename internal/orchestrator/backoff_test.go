package orchestrator

import "testing"

func TestCooldownDuration_DoublesPerFailureUpToCap(t *testing.T) {
	if got := cooldownDuration(1); got != DefaultCooldownBase {
		t.Errorf("expected base duration on first failure, got %s", got)
	}
	if got := cooldownDuration(2); got != DefaultCooldownBase*2 {
		t.Errorf("expected doubled duration on second failure, got %s", got)
	}
	if got := cooldownDuration(20); got != DefaultCooldownCap {
		t.Errorf("expected duration capped at %s, got %s", DefaultCooldownCap, got)
	}
}

func TestCooldownDuration_ZeroOrNegativeTreatedAsFirstFailure(t *testing.T) {
	if got := cooldownDuration(0); got != DefaultCooldownBase {
		t.Errorf("expected base duration for non-positive input, got %s", got)
	}
}
