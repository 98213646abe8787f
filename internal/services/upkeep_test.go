package services

import (
	"testing"
	"time"

	"raffle/internal/models"
)

func TestKeeperRunOnce(t *testing.T) {
	g := newTestRegistry()
	keeper := NewKeeper(g, time.Second)

	eligible, _ := g.Create(testParams())
	idle, _ := g.Create(testParams())

	if err := eligible.Enter("alice", 100); err != nil {
		t.Fatalf("Enter failed: %v", err)
	}
	eligible.lastDraw = time.Now().Add(-2 * time.Minute)
	// idle has no entrants and stays open.

	if requested := keeper.RunOnce(); requested != 1 {
		t.Fatalf("Expected 1 draw requested, got %d", requested)
	}
	if eligible.State() != models.StateDrawing {
		t.Errorf("Eligible raffle not drawing, state %s", eligible.State())
	}
	if idle.State() != models.StateOpen {
		t.Errorf("Idle raffle left open state: %s", idle.State())
	}

	// A second sweep finds nothing: the only candidate is already drawing.
	if requested := keeper.RunOnce(); requested != 0 {
		t.Errorf("Expected no draws on second sweep, got %d", requested)
	}
}
