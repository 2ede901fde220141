package workflow

import (
	"container/heap"
	"context"
	"crypto/sha256"
	"encoding/binary"
	"sync"
	"sync/atomic"
)

// workItem is a schedulable unit of work: a Message addressed to a target
// executor, plus the provenance needed for deterministic ordering. It
// generalizes the teacher's WorkItem[S] (graph/scheduler.go) from a single
// generic state snapshot per item to this module's any-typed Message.
type workItem struct {
	Superstep int
	OrderKey  uint64
	TargetID  string
	Message   Message
	Attempt   int
}

// computeOrderKey hashes the source executor id and edge index into a
// uint64 sort key, exactly as the teacher's ComputeOrderKey does, so that
// concurrently produced messages within a superstep are still delivered in
// a deterministic, replay-stable order.
func computeOrderKey(sourceID string, edgeIndex int) uint64 {
	h := sha256.New()
	h.Write([]byte(sourceID))
	edgeBytes := make([]byte, 4)
	binary.BigEndian.PutUint32(edgeBytes, uint32(edgeIndex))
	h.Write(edgeBytes)
	sum := h.Sum(nil)
	return binary.BigEndian.Uint64(sum[:8])
}

type workHeap []workItem

func (h workHeap) Len() int            { return len(h) }
func (h workHeap) Less(i, j int) bool  { return h[i].OrderKey < h[j].OrderKey }
func (h workHeap) Swap(i, j int)       { h[i], h[j] = h[j], h[i] }
func (h *workHeap) Push(x interface{}) { *h = append(*h, x.(workItem)) }
func (h *workHeap) Pop() interface{} {
	old := *h
	n := len(old)
	item := old[n-1]
	*h = old[:n-1]
	return item
}

// frontier is the bounded, deterministically ordered message queue a Runner
// drains once per superstep. It combines a priority heap (for OrderKey
// ordering) with a buffered channel (for bounded capacity and
// backpressure), generalized from the teacher's Frontier[S].
type frontier struct {
	mu   sync.Mutex
	heap workHeap
	sem  chan struct{} // bounded capacity token; one token per queued item

	totalEnqueued      atomic.Int64
	totalDequeued      atomic.Int64
	backpressureEvents atomic.Int64
	peakQueueDepth     atomic.Int32
}

func newFrontier(capacity int) *frontier {
	f := &frontier{
		heap: make(workHeap, 0),
		sem:  make(chan struct{}, capacity),
	}
	heap.Init(&f.heap)
	return f
}

// Enqueue blocks until capacity is available or ctx is cancelled.
func (f *frontier) Enqueue(ctx context.Context, item workItem) error {
	if ctx.Err() != nil {
		return ctx.Err()
	}
	select {
	case f.sem <- struct{}{}:
	default:
		f.backpressureEvents.Add(1)
		select {
		case f.sem <- struct{}{}:
		case <-ctx.Done():
			return ctx.Err()
		}
	}

	f.mu.Lock()
	heap.Push(&f.heap, item)
	depth := int32(f.heap.Len())
	f.mu.Unlock()

	for {
		oldPeak := f.peakQueueDepth.Load()
		if depth <= oldPeak || f.peakQueueDepth.CompareAndSwap(oldPeak, depth) {
			break
		}
	}
	f.totalEnqueued.Add(1)
	return nil
}

// DrainSuperstep removes and returns every item currently queued, in
// OrderKey order, releasing their capacity tokens. A Runner calls this
// once per superstep boundary rather than dequeuing item-by-item, since a
// FanInEdgeGroup needs to see the whole batch before it can aggregate.
func (f *frontier) DrainSuperstep() []workItem {
	f.mu.Lock()
	defer f.mu.Unlock()

	items := make([]workItem, 0, f.heap.Len())
	for f.heap.Len() > 0 {
		items = append(items, heap.Pop(&f.heap).(workItem))
		<-f.sem
	}
	f.totalDequeued.Add(int64(len(items)))
	return items
}

// Items returns a non-destructive snapshot of everything currently queued,
// in heap order, for checkpointing mid-superstep without disturbing the
// queue.
func (f *frontier) Items() []workItem {
	f.mu.Lock()
	defer f.mu.Unlock()
	items := make([]workItem, len(f.heap))
	copy(items, f.heap)
	return items
}

func (f *frontier) Len() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.heap.Len()
}

// SchedulerMetrics is a point-in-time snapshot of frontier activity,
// exposed through a Runner for operators tuning queue depth and
// concurrency, mirroring the teacher's SchedulerMetrics.
type SchedulerMetrics struct {
	QueueDepth         int32
	QueueCapacity      int32
	TotalEnqueued      int64
	TotalDequeued      int64
	BackpressureEvents int64
	PeakQueueDepth     int32
}

func (f *frontier) Metrics() SchedulerMetrics {
	f.mu.Lock()
	depth := int32(f.heap.Len())
	f.mu.Unlock()
	return SchedulerMetrics{
		QueueDepth:         depth,
		QueueCapacity:      int32(cap(f.sem)),
		TotalEnqueued:      f.totalEnqueued.Load(),
		TotalDequeued:      f.totalDequeued.Load(),
		BackpressureEvents: f.backpressureEvents.Load(),
		PeakQueueDepth:     f.peakQueueDepth.Load(),
	}
}
