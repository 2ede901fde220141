package workflow

import (
	"crypto/sha256"
	"encoding/binary"
	"encoding/hex"
	"encoding/json"
	"sort"

	"github.com/meshrun/meshrun/workflow/store"
)

// computeIdempotencyKey derives a deterministic commit key from a run id,
// superstep number, the frontier about to be checkpointed, and the shared
// state snapshot. Two calls with identical inputs always produce the same
// key, which lets a Store reject a duplicate commit after a crash-retry
// instead of re-applying a superstep twice. Generalized from the teacher's
// computeIdempotencyKey[S any] (graph/checkpoint.go), replacing its
// WorkItem[S]/State fields with this module's workItem/SharedState
// snapshot.
func computeIdempotencyKey(runID string, superstep int, items []workItem, state map[string]any) (string, error) {
	h := sha256.New()
	h.Write([]byte(runID))

	stepBytes := make([]byte, 8)
	binary.BigEndian.PutUint64(stepBytes, uint64(superstep))
	h.Write(stepBytes)

	sorted := make([]workItem, len(items))
	copy(sorted, items)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].OrderKey < sorted[j].OrderKey })

	for _, item := range sorted {
		h.Write([]byte(item.TargetID))
		orderBytes := make([]byte, 8)
		binary.BigEndian.PutUint64(orderBytes, item.OrderKey)
		h.Write(orderBytes)
	}

	stateJSON, err := json.Marshal(state)
	if err != nil {
		return "", err
	}
	h.Write(stateJSON)

	return "sha256:" + hex.EncodeToString(h.Sum(nil)), nil
}

// encodeFrontier JSON-encodes a set of workItems for storage in a
// store.Checkpoint's opaque Frontier field.
func encodeFrontier(items []workItem) ([]byte, error) {
	return json.Marshal(items)
}

func decodeFrontier(data []byte) ([]workItem, error) {
	if len(data) == 0 {
		return nil, nil
	}
	var items []workItem
	if err := json.Unmarshal(data, &items); err != nil {
		return nil, err
	}
	return items, nil
}

// encodePendingRequests JSON-encodes the requestID -> original-request map
// used by the Request/Response Mixin for storage in a checkpoint.
func encodePendingRequests(pending map[string]any) ([]byte, error) {
	return json.Marshal(pending)
}

func decodePendingRequests(data []byte) (map[string]any, error) {
	if len(data) == 0 {
		return map[string]any{}, nil
	}
	pending := make(map[string]any)
	if err := json.Unmarshal(data, &pending); err != nil {
		return nil, err
	}
	return pending, nil
}

// saveCheckpoint builds a store.Checkpoint from the current run state,
// with the IdempotencyKey a Store deduplicates on. It does not commit the
// checkpoint; Run.checkpoint passes it to the configured Store.
func saveCheckpoint(runID string, superstep int, state *SharedState, items []workItem, pending map[string]any, label string) (store.Checkpoint, error) {
	frontierBytes, err := encodeFrontier(items)
	if err != nil {
		return store.Checkpoint{}, err
	}
	pendingBytes, err := encodePendingRequests(pending)
	if err != nil {
		return store.Checkpoint{}, err
	}
	snapshot := state.Snapshot()
	key, err := computeIdempotencyKey(runID, superstep, items, snapshot)
	if err != nil {
		return store.Checkpoint{}, err
	}
	return store.Checkpoint{
		RunID:           runID,
		Superstep:       superstep,
		SharedState:     snapshot,
		Frontier:        frontierBytes,
		PendingRequests: pendingBytes,
		IdempotencyKey:  key,
		Label:           label,
	}, nil
}
