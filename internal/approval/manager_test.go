package approval

import (
	"context"
	"testing"
	"time"
)

func TestApproved(t *testing.T) {
	m := NewManager(nil)
	id := m.Create(&Request{Tool: "exec"})

	go func() {
		time.Sleep(10 * time.Millisecond)
		if err := m.Respond(id, OutcomeApprove); err != nil {
			t.Errorf("respond failed: %v", err)
		}
	}()

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	outcome, err := m.Wait(ctx, id)
	if err != nil {
		t.Fatalf("wait failed: %v", err)
	}
	if outcome != OutcomeApprove {
		t.Fatalf("outcome = %s", outcome)
	}
}

func TestApproveAlways(t *testing.T) {
	m := NewManager(nil)
	id := m.Create(&Request{Tool: "write_file"})

	go func() {
		time.Sleep(10 * time.Millisecond)
		_ = m.Respond(id, OutcomeApproveAlways)
	}()

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	outcome, err := m.Wait(ctx, id)
	if err != nil {
		t.Fatalf("wait failed: %v", err)
	}
	if outcome != OutcomeApproveAlways {
		t.Fatalf("outcome = %s", outcome)
	}
}

func TestDenied(t *testing.T) {
	m := NewManager(nil)
	id := m.Create(&Request{Tool: "exec"})

	go func() {
		time.Sleep(10 * time.Millisecond)
		_ = m.Respond(id, OutcomeDeny)
	}()

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	outcome, err := m.Wait(ctx, id)
	if err != nil {
		t.Fatalf("wait failed: %v", err)
	}
	if outcome != OutcomeDeny {
		t.Fatalf("outcome = %s", outcome)
	}
}

func TestContextCancellation(t *testing.T) {
	m := NewManager(nil)
	id := m.Create(&Request{Tool: "exec"})

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	outcome, err := m.Wait(ctx, id)
	if err == nil {
		t.Fatal("expected context error")
	}
	if outcome != OutcomeDeny {
		t.Fatalf("outcome = %s", outcome)
	}
	if m.PendingCount() != 0 {
		t.Fatal("pending entry not cleaned up")
	}
}

func TestRespondUnknownID(t *testing.T) {
	m := NewManager(nil)
	if err := m.Respond("missing", OutcomeApprove); err == nil {
		t.Fatal("expected error for unknown approval id")
	}
}
