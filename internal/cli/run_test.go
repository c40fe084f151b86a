package cli

import (
	"bufio"
	"context"
	"strings"
	"testing"
	"time"

	"github.com/Subloop/Subloop/internal/approval"
	"github.com/Subloop/Subloop/internal/bus"
)

func TestApprovalRoundTripOverBus(t *testing.T) {
	mgr := approval.NewManager(nil)
	b := bus.NewMessageBus()
	b.Subscribe(func(msg *bus.PromptMessage) {
		b.PublishDecision(&bus.DecisionMessage{
			ApprovalID: msg.ApprovalID,
			Outcome:    approval.OutcomeApprove,
		})
	})

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	go b.DispatchPrompts(ctx)
	go pumpDecisions(ctx, b, mgr)

	req := &approval.Request{Tool: "exec", Arguments: map[string]any{"command": "ls"}}
	id := mgr.Create(req)
	publishPrompt(b)(req)

	outcome, err := mgr.Wait(ctx, id)
	if err != nil {
		t.Fatalf("wait: %v", err)
	}
	if outcome != approval.OutcomeApprove {
		t.Fatalf("outcome = %s", outcome)
	}
}

func TestPromptOnTerminalDecisions(t *testing.T) {
	cases := []struct {
		input string
		want  approval.Outcome
	}{
		{"y\n", approval.OutcomeApprove},
		{"yes\n", approval.OutcomeApprove},
		{"a\n", approval.OutcomeApproveAlways},
		{"n\n", approval.OutcomeDeny},
		{"whatever\n", approval.OutcomeDeny},
		{"always:a1\n", approval.OutcomeApproveAlways},
		{"deny:a1\n", approval.OutcomeDeny},
		// A decision reply for a different approval falls through to deny.
		{"approve:other\n", approval.OutcomeDeny},
	}
	for _, tc := range cases {
		reader := bufio.NewReader(strings.NewReader(tc.input))
		got := promptOnTerminal(reader, &bus.PromptMessage{ApprovalID: "a1", Tool: "exec"})
		if got != tc.want {
			t.Fatalf("input %q: outcome = %s, want %s", tc.input, got, tc.want)
		}
	}
}

func TestPromptOnTerminalEOFDenies(t *testing.T) {
	reader := bufio.NewReader(strings.NewReader(""))
	if got := promptOnTerminal(reader, &bus.PromptMessage{ApprovalID: "a1"}); got != approval.OutcomeDeny {
		t.Fatalf("outcome = %s", got)
	}
}

func TestParseVars(t *testing.T) {
	vars, err := parseVars([]string{"topic=kafka", "lang=en"})
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if vars["topic"] != "kafka" || vars["lang"] != "en" {
		t.Fatalf("vars = %+v", vars)
	}
	if _, err := parseVars([]string{"novalue"}); err == nil {
		t.Fatal("expected error for missing =")
	}
	if _, err := parseVars([]string{"=x"}); err == nil {
		t.Fatal("expected error for empty key")
	}
}
