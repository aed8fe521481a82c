package salesflow

import (
	"testing"
	"time"
)

func TestStateTimeoutClasses(t *testing.T) {
	want := map[SalesState]time.Duration{
		StateGreeting:       4 * time.Second,
		StatePermission:     4 * time.Second,
		StatePainConfirm:    4 * time.Second,
		StateExit:           4 * time.Second,
		StateDiscoveryOpen:  5 * time.Second,
		StateDiscoveryProbe: 5 * time.Second,
		StateValueBridge:    5 * time.Second,
		StateAuthority:      5 * time.Second,
		StateFollowUp:       5 * time.Second,
		StateScheduling:     5 * time.Second,
		StateValueProp:      6 * time.Second,
		StateDeepEngage:     6 * time.Second,
		StateObjection:      6 * time.Second,
	}
	if len(want) != NumStates {
		t.Fatalf("table covers %d states, want %d", len(want), NumStates)
	}
	for s, d := range want {
		if got := s.LLMTimeout(); got != d {
			t.Errorf("%v.LLMTimeout() = %v, want %v", s, got, d)
		}
		if got := s.GatherTimeout(); got != d {
			t.Errorf("%v.GatherTimeout() = %v, want %v", s, got, d)
		}
	}
}

func TestStatePhases(t *testing.T) {
	tests := []struct {
		state SalesState
		want  Phase
	}{
		{StateGreeting, PhaseOpening},
		{StatePermission, PhaseOpening},
		{StateDiscoveryProbe, PhaseDiscovery},
		{StateValueProp, PhasePresentation},
		{StateObjection, PhaseObjection},
		{StateScheduling, PhaseClosing},
		{StateExit, PhaseClosing},
	}
	for _, tc := range tests {
		if got := tc.state.Phase(); got != tc.want {
			t.Errorf("%v.Phase() = %q, want %q", tc.state, got, tc.want)
		}
	}
}

func TestOnlyExitIsTerminal(t *testing.T) {
	for s := StateGreeting; s <= StateExit; s++ {
		if s.Terminal() != (s == StateExit) {
			t.Errorf("%v.Terminal() = %v", s, s.Terminal())
		}
	}
}

func TestStateFromIDClampsOutOfRange(t *testing.T) {
	if got := StateFromID(7); got != StateDeepEngage {
		t.Errorf("StateFromID(7) = %v", got)
	}
	if got := StateFromID(-1); got != StateGreeting {
		t.Errorf("StateFromID(-1) = %v", got)
	}
	if got := StateFromID(99); got != StateGreeting {
		t.Errorf("StateFromID(99) = %v", got)
	}
}

func TestStateStrings(t *testing.T) {
	if s := StateGreeting.String(); s != "S0" {
		t.Errorf("StateGreeting.String() = %q", s)
	}
	if s := StateExit.String(); s != "S12" {
		t.Errorf("StateExit.String() = %q", s)
	}
	if s := SalesState(42).String(); s != "S?" {
		t.Errorf("invalid state String() = %q", s)
	}
}
