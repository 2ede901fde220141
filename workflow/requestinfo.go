package workflow

import "sync"

// pendingRequest records an outstanding RequestInfoEvent: an executor
// called Context.RequestInfo and is waiting for a caller to supply the
// answer via Run.SendResponses before the run can advance past this
// superstep for that executor.
type pendingRequest struct {
	ExecutorID string
	Prompt     any
}

// requestTable tracks outstanding requests for one run, keyed by request
// id, grounded on the Request/Response Mixin described for the teacher's
// human-in-the-loop node pattern but with no single direct teacher
// analogue in graph/ (the teacher has no pause/resume primitive); the
// bookkeeping shape here follows graph/checkpoint.go's map-keyed pending
// state in spirit, adapted to this module's request/response mixin.
type requestTable struct {
	mu      sync.Mutex
	pending map[string]pendingRequest
}

func newRequestTable() *requestTable {
	return &requestTable{pending: make(map[string]pendingRequest)}
}

// Add records a new outstanding request and returns its id.
func (t *requestTable) Add(id string, executorID string, prompt any) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.pending[id] = pendingRequest{ExecutorID: executorID, Prompt: prompt}
}

// Resolve removes and returns the pending request for id, reporting
// whether it existed.
func (t *requestTable) Resolve(id string) (pendingRequest, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	req, ok := t.pending[id]
	if ok {
		delete(t.pending, id)
	}
	return req, ok
}

// Len reports the number of outstanding requests.
func (t *requestTable) Len() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return len(t.pending)
}

// Snapshot returns a copy of the pending table for checkpointing, keyed by
// request id to the original prompt value (the executor id travels
// alongside so resume can re-deliver the response to the right handler).
func (t *requestTable) Snapshot() map[string]any {
	t.mu.Lock()
	defer t.mu.Unlock()
	out := make(map[string]any, len(t.pending))
	for id, req := range t.pending {
		out[id] = map[string]any{
			"executor_id": req.ExecutorID,
			"prompt":      req.Prompt,
		}
	}
	return out
}

// Restore replaces the table's contents from a checkpoint snapshot.
func (t *requestTable) Restore(snapshot map[string]any) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.pending = make(map[string]pendingRequest, len(snapshot))
	for id, raw := range snapshot {
		entry, ok := raw.(map[string]any)
		if !ok {
			continue
		}
		executorID, _ := entry["executor_id"].(string)
		t.pending[id] = pendingRequest{ExecutorID: executorID, Prompt: entry["prompt"]}
	}
}
