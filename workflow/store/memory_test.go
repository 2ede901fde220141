package store

import (
	"context"
	"errors"
	"testing"
)

func TestMemoryStore_LoadLatestOnEmptyStoreReturnsNotFound(t *testing.T) {
	s := NewMemoryStore()
	if _, err := s.LoadLatest(context.Background(), "missing-run"); !errors.Is(err, ErrNotFound) {
		t.Errorf("expected ErrNotFound, got %v", err)
	}
}

func TestMemoryStore_SaveAndLoadLatestPicksHighestSuperstep(t *testing.T) {
	s := NewMemoryStore()
	ctx := context.Background()

	for step := 0; step < 3; step++ {
		ck := Checkpoint{RunID: "run-1", Superstep: step, SharedState: map[string]any{"step": step}}
		if err := s.SaveCheckpoint(ctx, ck); err != nil {
			t.Fatalf("SaveCheckpoint: %v", err)
		}
	}

	latest, err := s.LoadLatest(ctx, "run-1")
	if err != nil {
		t.Fatalf("LoadLatest: %v", err)
	}
	if latest.Superstep != 2 {
		t.Errorf("expected superstep 2, got %d", latest.Superstep)
	}
}

func TestMemoryStore_SaveCheckpointIsIdempotent(t *testing.T) {
	s := NewMemoryStore()
	ctx := context.Background()

	ck := Checkpoint{RunID: "run-1", Superstep: 0, SharedState: map[string]any{"a": 1}, IdempotencyKey: "key-a"}
	if err := s.SaveCheckpoint(ctx, ck); err != nil {
		t.Fatalf("first SaveCheckpoint: %v", err)
	}
	ck.SharedState = map[string]any{"a": 2}
	if err := s.SaveCheckpoint(ctx, ck); err != nil {
		t.Fatalf("second SaveCheckpoint: %v", err)
	}

	latest, err := s.LoadLatest(ctx, "run-1")
	if err != nil {
		t.Fatalf("LoadLatest: %v", err)
	}
	if got := latest.SharedState["a"]; got != 1 {
		t.Errorf("expected idempotent commit to keep first value 1, got %v", got)
	}
}

func TestMemoryStore_LabeledCheckpointRoundTrip(t *testing.T) {
	s := NewMemoryStore()
	ctx := context.Background()

	ck := Checkpoint{RunID: "run-1", Superstep: 5, SharedState: map[string]any{"milestone": "before_deploy"}}
	if err := s.SaveLabeled(ctx, "before-deploy", ck); err != nil {
		t.Fatalf("SaveLabeled: %v", err)
	}

	loaded, err := s.LoadLabeled(ctx, "before-deploy")
	if err != nil {
		t.Fatalf("LoadLabeled: %v", err)
	}
	if loaded.Label != "before-deploy" || loaded.Superstep != 5 {
		t.Errorf("unexpected labeled checkpoint: %+v", loaded)
	}

	if _, err := s.LoadLabeled(ctx, "missing"); !errors.Is(err, ErrNotFound) {
		t.Errorf("expected ErrNotFound for missing label, got %v", err)
	}
}

func TestMemoryStore_CheckIdempotency(t *testing.T) {
	s := NewMemoryStore()
	ctx := context.Background()

	exists, err := s.CheckIdempotency(ctx, "never-seen")
	if err != nil || exists {
		t.Fatalf("expected (false, nil) for unseen key, got (%v, %v)", exists, err)
	}

	_ = s.SaveCheckpoint(ctx, Checkpoint{RunID: "run-1", Superstep: 0, IdempotencyKey: "seen-key"})
	exists, err = s.CheckIdempotency(ctx, "seen-key")
	if err != nil || !exists {
		t.Fatalf("expected (true, nil) for committed key, got (%v, %v)", exists, err)
	}
}
