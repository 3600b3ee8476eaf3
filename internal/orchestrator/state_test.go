package orchestrator

import "testing"

func TestCanTransition_LegalEdgesAllowed(t *testing.T) {
	cases := []struct{ from, to State }{
		{StateIdle, StateScheduled},
		{StateScheduled, StateRunning},
		{StateRunning, StateSucceeded},
		{StateRunning, StateFailed},
		{StateRunning, StateCooldown},
		{StateSucceeded, StateScheduled},
		{StateFailed, StateScheduled},
		{StateCooldown, StateScheduled},
	}
	for _, c := range cases {
		if !CanTransition(c.from, c.to) {
			t.Errorf("expected %s -> %s to be legal", c.from, c.to)
		}
	}
}

func TestCanTransition_IllegalEdgesRejected(t *testing.T) {
	cases := []struct{ from, to State }{
		{StateIdle, StateRunning},
		{StateIdle, StateSucceeded},
		{StateScheduled, StateSucceeded},
		{StateSucceeded, StateRunning},
		{StateCooldown, StateRunning},
	}
	for _, c := range cases {
		if CanTransition(c.from, c.to) {
			t.Errorf("expected %s -> %s to be illegal", c.from, c.to)
		}
	}
}
