package store

import (
	"context"
	"testing"
)

func TestMemoryStore_ReadStateOnUnknownActorReturnsEmptyMap(t *testing.T) {
	s := NewMemoryStore()
	state, err := s.ReadState(context.Background(), "agent/thread-1")
	if err != nil {
		t.Fatalf("ReadState: %v", err)
	}
	if len(state) != 0 {
		t.Errorf("expected empty map, got %v", state)
	}
}

func TestMemoryStore_WriteThenReadRoundTrips(t *testing.T) {
	s := NewMemoryStore()
	ctx := context.Background()
	if err := s.WriteState(ctx, "agent/thread-1", map[string]any{"count": 3}); err != nil {
		t.Fatalf("WriteState: %v", err)
	}
	state, err := s.ReadState(ctx, "agent/thread-1")
	if err != nil {
		t.Fatalf("ReadState: %v", err)
	}
	if state["count"] != 3 {
		t.Errorf("expected count 3, got %v", state["count"])
	}
}

func TestMemoryStore_DeleteStateClearsActor(t *testing.T) {
	s := NewMemoryStore()
	ctx := context.Background()
	_ = s.WriteState(ctx, "agent/thread-1", map[string]any{"a": 1})
	if err := s.DeleteState(ctx, "agent/thread-1"); err != nil {
		t.Fatalf("DeleteState: %v", err)
	}
	state, _ := s.ReadState(ctx, "agent/thread-1")
	if len(state) != 0 {
		t.Errorf("expected empty state after delete, got %v", state)
	}
}
