package quick

import (
	"strings"
	"testing"

	"github.com/algonox/aados/internal/quality"
	"github.com/algonox/aados/internal/salesflow"
)

func TestEligible(t *testing.T) {
	tests := []struct {
		state salesflow.SalesState
		input string
		want  bool
	}{
		{salesflow.StateGreeting, "", true},
		{salesflow.StateGreeting, "who is this", true},
		{salesflow.StatePermission, "sure", true},
		{salesflow.StatePermission, strings.Repeat("complex pushback ", 10), false},
		{salesflow.StateExit, "bye", true},
		{salesflow.StateValueProp, "tell me more", false},
		{salesflow.StateDiscoveryOpen, "", false},
	}
	for _, tt := range tests {
		if got := Eligible(tt.state, tt.input); got != tt.want {
			t.Errorf("Eligible(%v, %q) = %v, want %v", tt.state, tt.input, got, tt.want)
		}
	}
}

func TestReplySlotFilling(t *testing.T) {
	reply, ok := Reply(salesflow.StateGreeting, salesflow.ChannelColdCall, "mhm", "Maya Chen")
	if !ok {
		t.Fatal("Reply(S0) ok = false, want true")
	}
	if !strings.Contains(reply, "Maya") {
		t.Errorf("Reply = %q, want lead first name included", reply)
	}
	if strings.Contains(reply, "Chen") {
		t.Errorf("Reply = %q, want first name only", reply)
	}
}

func TestReplyNeutralFallback(t *testing.T) {
	reply, ok := Reply(salesflow.StatePermission, salesflow.ChannelColdCall, "hm, remind me again", "")
	if !ok {
		t.Fatal("Reply(S1) ok = false, want true")
	}
	if !strings.Contains(reply, "there") {
		t.Errorf("Reply = %q, want neutral address token", reply)
	}
}

func TestReplyVariesByChannelTone(t *testing.T) {
	channels := []salesflow.Channel{
		salesflow.ChannelColdCall,
		salesflow.ChannelWarmReferral,
		salesflow.ChannelInbound,
	}

	// The permission-granted branch is worded per tone profile.
	seen := make(map[string]salesflow.Channel, len(channels))
	for _, ch := range channels {
		reply, ok := Reply(salesflow.StatePermission, ch, "sure, go ahead", "Maya")
		if !ok {
			t.Fatalf("Reply(S1, %v) ok = false", ch)
		}
		if prev, dup := seen[reply]; dup {
			t.Errorf("channels %v and %v share the wording %q", prev, ch, reply)
		}
		seen[reply] = ch
	}
}

func TestReplySameCueStableWithinChannel(t *testing.T) {
	a, _ := Reply(salesflow.StatePermission, salesflow.ChannelInbound, "sure", "Maya")
	b, _ := Reply(salesflow.StatePermission, salesflow.ChannelInbound, "sure", "Maya")
	if a != b {
		t.Errorf("same (state, channel, cue) produced %q then %q", a, b)
	}
}

func TestReplyAtMostOneQuestion(t *testing.T) {
	inputs := []string{"", "yes", "who is this", "busy right now", "thanks bye", "email me"}
	states := []salesflow.SalesState{salesflow.StateGreeting, salesflow.StatePermission, salesflow.StateExit}
	channels := []salesflow.Channel{
		salesflow.ChannelColdCall,
		salesflow.ChannelWarmReferral,
		salesflow.ChannelInbound,
	}

	for _, ch := range channels {
		for _, state := range states {
			for _, input := range inputs {
				reply, ok := Reply(state, ch, input, "Maya")
				if !ok {
					continue
				}
				if n := strings.Count(reply, "?"); n > 1 {
					t.Errorf("Reply(%v, %v, %q) = %q has %d questions, want <= 1", state, ch, input, reply, n)
				}
			}
		}
	}
}

func TestQuickRepliesMeetQualityFloor(t *testing.T) {
	scorer := quality.NewScorer()

	inputs := []string{"", "yes", "sure go ahead", "who is this", "busy", "thanks, goodbye"}
	states := []salesflow.SalesState{salesflow.StateGreeting, salesflow.StatePermission, salesflow.StateExit}
	channels := []salesflow.Channel{
		salesflow.ChannelColdCall,
		salesflow.ChannelWarmReferral,
		salesflow.ChannelInbound,
	}

	for _, ch := range channels {
		for _, state := range states {
			for _, input := range inputs {
				reply, ok := Reply(state, ch, input, "Maya")
				if !ok {
					continue
				}
				score := scorer.Score(reply, input, quality.SourceQuick)
				if score.Overall < 70 {
					t.Errorf("Reply(%v, %v, %q) = %q scored %d, want >= 70", state, ch, input, reply, score.Overall)
				}
			}
		}
	}
}

func TestInterruptReplies(t *testing.T) {
	kinds := []salesflow.Interrupt{
		salesflow.InterruptHostile,
		salesflow.InterruptTechRepair,
		salesflow.InterruptTechExit,
		salesflow.InterruptNotInterested,
		salesflow.InterruptNoTime,
		salesflow.InterruptWhoIsThis,
	}
	for _, k := range kinds {
		reply, ok := InterruptReply(k, "Acme")
		if !ok || reply == "" {
			t.Errorf("InterruptReply(%q) = (%q, %v), want non-empty reply", k, reply, ok)
		}
		if words := len(strings.Fields(reply)); words > 25 {
			t.Errorf("InterruptReply(%q) = %d words, want a short exit line", k, words)
		}
	}

	if _, ok := InterruptReply(salesflow.InterruptNone, ""); ok {
		t.Error("InterruptReply(none) ok = true, want false")
	}
}

func TestOpenerNamesLead(t *testing.T) {
	for _, ch := range []salesflow.Channel{
		salesflow.ChannelColdCall,
		salesflow.ChannelWarmReferral,
		salesflow.ChannelInbound,
	} {
		got := Opener("Maya Chen", ch)
		if !strings.Contains(got, "Maya") || !strings.Contains(got, "Algonox") {
			t.Errorf("Opener(%v) = %q, want name and company", ch, got)
		}
	}
}

func TestOpenerVariesByChannel(t *testing.T) {
	cold := Opener("Maya Chen", salesflow.ChannelColdCall)
	inbound := Opener("Maya Chen", salesflow.ChannelInbound)
	if cold == inbound {
		t.Errorf("cold and inbound openers share the wording %q", cold)
	}
}
