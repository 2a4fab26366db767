package session

import (
	"slices"
	"testing"
)

func TestNextTransitions(t *testing.T) {
	cases := []struct {
		from    State
		trigger Trigger
		to      State
		effects []Effect
		ignored bool
	}{
		{StateDisconnected, TriggerStart, StateConnecting, []Effect{EffectAcquire}, false},
		{StateConnected, TriggerStart, StateConnecting, []Effect{EffectTeardown, EffectAcquire}, false},
		{StateConnecting, TriggerReady, StateConnected, []Effect{EffectActivate, EffectNotifyOK}, false},
		{StateConnecting, TriggerPermissionDenied, StateError, []Effect{EffectTeardown, EffectNotifyErr}, false},
		{StateConnecting, TriggerHandshakeFailed, StateError, []Effect{EffectTeardown, EffectNotifyErr}, false},
		{StateConnected, TriggerCaptureLost, StateDisconnected, []Effect{EffectTeardown, EffectNotifyErr}, false},
		{StateConnected, TriggerTransportError, StateError, []Effect{EffectTeardown, EffectNotifyErr}, false},
		{StateConnected, TriggerRemoteClosed, StateDisconnected, []Effect{EffectTeardown}, false},
		{StateConnecting, TriggerStop, StateDisconnected, []Effect{EffectTeardown}, false},
		{StateDisconnected, TriggerStop, StateDisconnected, nil, false},
		{StateError, TriggerStop, StateDisconnected, nil, false},
		{StateDisconnected, TriggerReady, StateDisconnected, nil, true},
		{StateError, TriggerTransportError, StateError, nil, true},
		{"", TriggerStop, StateDisconnected, nil, false},
	}
	for _, tc := range cases {
		got := Next(tc.from, tc.trigger)
		if got.To != tc.to || got.Ignored != tc.ignored || !slices.Equal(got.Effects, tc.effects) {
			t.Fatalf("Next(%q, %q) = %+v, want to=%q effects=%v ignored=%v",
				tc.from, tc.trigger, got, tc.to, tc.effects, tc.ignored)
		}
	}
}

func TestTerminalTriggersNeverReachConnected(t *testing.T) {
	states := []State{StateDisconnected, StateConnecting, StateConnected, StateError}
	for _, s := range states {
		for _, tr := range []Trigger{TriggerPermissionDenied, TriggerHandshakeFailed, TriggerCaptureLost, TriggerTransportError, TriggerStop} {
			got := Next(s, tr)
			if got.Ignored {
				if got.To != s || len(got.Effects) != 0 {
					t.Fatalf("ignored Next(%q, %q) = %+v, want no change", s, tr, got)
				}
				continue
			}
			if got.To == StateConnected {
				t.Fatalf("Next(%q, %q) reached connected", s, tr)
			}
		}
	}
}

func TestTransitionHas(t *testing.T) {
	tr := Next(StateConnected, TriggerStart)
	if !tr.Has(EffectTeardown) || tr.Has(EffectActivate) {
		t.Fatalf("Has() mismatch for %+v", tr)
	}
}
