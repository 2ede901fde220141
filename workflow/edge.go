package workflow

import "reflect"

// Edge connects one source executor to one target executor. Condition, if
// non-nil, must return true for the edge to be traversed for a given
// message; a nil Condition always traverses.
type Edge struct {
	SourceID  string
	TargetID  string
	Condition func(data any) bool
}

// CanHandle reports whether this edge should carry the given message.
func (e Edge) CanHandle(data any) bool {
	if e.Condition == nil {
		return true
	}
	return e.Condition(data)
}

// EdgeGroup decides, for a message produced by a source executor, which
// target executor(s) should receive it and how. The five implementations
// below cover the fan-out/fan-in/conditional/partitioning shapes a
// dataflow graph needs; callers rarely implement EdgeGroup themselves.
type EdgeGroup interface {
	SourceIDs() []string
	// Route returns the messages to deliver this superstep given the
	// messages newly produced by the named source executor.
	Route(sourceID string, data any) []Message
}

// SingleEdgeGroup is a single unconditional or conditional edge.
type SingleEdgeGroup struct {
	Edge Edge
}

func (g SingleEdgeGroup) SourceIDs() []string { return []string{g.Edge.SourceID} }

func (g SingleEdgeGroup) Route(sourceID string, data any) []Message {
	if sourceID != g.Edge.SourceID || !g.Edge.CanHandle(data) {
		return nil
	}
	target := g.Edge.TargetID
	return []Message{{Data: data, SourceID: sourceID, TargetID: &target}}
}

// FanOutEdgeGroup delivers every message from the source to every target
// edge whose condition accepts it (broadcast, filtered per-edge).
type FanOutEdgeGroup struct {
	Source string
	Edges  []Edge
}

func (g FanOutEdgeGroup) SourceIDs() []string { return []string{g.Source} }

func (g FanOutEdgeGroup) Route(sourceID string, data any) []Message {
	if sourceID != g.Source {
		return nil
	}
	var out []Message
	for _, e := range g.Edges {
		if e.CanHandle(data) {
			target := e.TargetID
			out = append(out, Message{Data: data, SourceID: sourceID, TargetID: &target})
		}
	}
	return out
}

// FanInEdgeGroup aggregates messages from multiple sources before
// delivering a combined payload to a single target. The aggregator
// receives the output each of its sources produced during the current
// superstep, keyed by source id, and returns the combined value to
// deliver (or nil to deliver nothing this superstep).
type FanInEdgeGroup struct {
	Sources    []string
	Target     string
	Aggregator func(bySource map[string]any) any
}

func (g FanInEdgeGroup) SourceIDs() []string { return g.Sources }

// Route is not used directly for FanInEdgeGroup; the runner calls
// Aggregate once per superstep after collecting every source's output.
// Route always returns nil so a generic dispatch loop over EdgeGroup
// doesn't double-deliver.
func (g FanInEdgeGroup) Route(string, any) []Message { return nil }

// Aggregate combines this superstep's per-source outputs into a single
// message for Target, or returns (Message{}, false) if not ready.
func (g FanInEdgeGroup) Aggregate(bySource map[string]any) (Message, bool) {
	for _, src := range g.Sources {
		if _, ok := bySource[src]; !ok {
			return Message{}, false
		}
	}
	combined := g.Aggregator(bySource)
	if combined == nil {
		return Message{}, false
	}
	target := g.Target
	return Message{Data: combined, TargetID: &target}, true
}

// ConditionalEdgeGroup picks the first matching edge (in declaration
// order) and routes only to it, modeling an if/else router.
type ConditionalEdgeGroup struct {
	Source string
	Edges  []Edge
}

func (g ConditionalEdgeGroup) SourceIDs() []string { return []string{g.Source} }

func (g ConditionalEdgeGroup) Route(sourceID string, data any) []Message {
	if sourceID != g.Source {
		return nil
	}
	for _, e := range g.Edges {
		if e.CanHandle(data) {
			target := e.TargetID
			return []Message{{Data: data, SourceID: sourceID, TargetID: &target}}
		}
	}
	return nil
}

// PartitioningEdgeGroup routes a message to exactly one of N targets by a
// caller-supplied index function, e.g. consistent-hash sharding across
// parallel workers of the same kind. An index outside [0, len(Targets)) is
// a fatal PartitionError.
type PartitioningEdgeGroup struct {
	Source  string
	Targets []string
	Index   func(data any) int
}

func (g PartitioningEdgeGroup) SourceIDs() []string { return []string{g.Source} }

func (g PartitioningEdgeGroup) Route(sourceID string, data any) []Message {
	if sourceID != g.Source {
		return nil
	}
	idx := g.Index(data)
	if idx < 0 || idx >= len(g.Targets) {
		panic(&PartitionError{Source: g.Source, Index: idx, NumTargets: len(g.Targets)})
	}
	target := g.Targets[idx]
	return []Message{{Data: data, SourceID: sourceID, TargetID: &target}}
}

// typeAssignable reports whether a value of type 'from' can be passed to a
// Handler declared for type 'to', per reflect.Type.AssignableTo. Used by
// handler lookup and by response-handler resolution.
func typeAssignable(from, to reflect.Type) bool {
	if from == nil || to == nil {
		return from == to
	}
	return from.AssignableTo(to)
}
