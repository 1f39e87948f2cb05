package models

import "testing"

func TestStatusTerminal(t *testing.T) {
	terminal := map[GenerationStatus]bool{
		GenerationStatusPending:    false,
		GenerationStatusProcessing: false,
		GenerationStatusCompleted:  true,
		GenerationStatusFailed:     true,
		GenerationStatusCancelled:  true,
	}

	for status, want := range terminal {
		if got := status.Terminal(); got != want {
			t.Fatalf("Terminal(%s) = %v, want %v", status, got, want)
		}
	}
}

func TestStatusTransitionsAreMonotonic(t *testing.T) {
	if !GenerationStatusPending.CanTransition(GenerationStatusProcessing) {
		t.Fatal("pending must allow processing")
	}
	if !GenerationStatusProcessing.CanTransition(GenerationStatusCompleted) {
		t.Fatal("processing must allow completed")
	}
	if !GenerationStatusPending.CanTransition(GenerationStatusCancelled) {
		t.Fatal("pending must allow cancellation")
	}
	if GenerationStatusProcessing.CanTransition(GenerationStatusPending) {
		t.Fatal("processing must not regress to pending")
	}

	for _, terminal := range []GenerationStatus{
		GenerationStatusCompleted,
		GenerationStatusFailed,
		GenerationStatusCancelled,
	} {
		for _, next := range []GenerationStatus{
			GenerationStatusPending,
			GenerationStatusProcessing,
			GenerationStatusCompleted,
			GenerationStatusFailed,
			GenerationStatusCancelled,
		} {
			if terminal.CanTransition(next) {
				t.Fatalf("terminal status %s must not transition to %s", terminal, next)
			}
		}
	}
}

func TestStatusSelfTransition(t *testing.T) {
	// Repeated progress publishes re-assert the current status, but a
	// terminal status admits no further writes at all.
	if !GenerationStatusPending.CanTransition(GenerationStatusPending) {
		t.Fatal("pending self transition must be allowed")
	}
	if !GenerationStatusProcessing.CanTransition(GenerationStatusProcessing) {
		t.Fatal("processing self transition must be allowed")
	}
	if GenerationStatusCancelled.CanTransition(GenerationStatusCancelled) {
		t.Fatal("terminal self transition must be rejected")
	}
}
