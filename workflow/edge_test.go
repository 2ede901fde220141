package workflow

import "testing"

func TestFanOutEdgeGroup_FiltersByCondition(t *testing.T) {
	g := FanOutEdgeGroup{
		Source: "split",
		Edges: []Edge{
			{SourceID: "split", TargetID: "even", Condition: func(d any) bool { return d.(int)%2 == 0 }},
			{SourceID: "split", TargetID: "odd", Condition: func(d any) bool { return d.(int)%2 != 0 }},
		},
	}

	msgs := g.Route("split", 4)
	if len(msgs) != 1 || *msgs[0].TargetID != "even" {
		t.Fatalf("expected single message to 'even', got %+v", msgs)
	}
}

func TestConditionalEdgeGroup_RoutesFirstMatchOnly(t *testing.T) {
	g := ConditionalEdgeGroup{
		Source: "router",
		Edges: []Edge{
			{SourceID: "router", TargetID: "a", Condition: func(any) bool { return true }},
			{SourceID: "router", TargetID: "b", Condition: func(any) bool { return true }},
		},
	}

	msgs := g.Route("router", "x")
	if len(msgs) != 1 || *msgs[0].TargetID != "a" {
		t.Fatalf("expected exactly one message to 'a', got %+v", msgs)
	}
}

func TestPartitioningEdgeGroup_PanicsOnOutOfRangeIndex(t *testing.T) {
	g := PartitioningEdgeGroup{
		Source:  "shard",
		Targets: []string{"w0", "w1"},
		Index:   func(any) int { return 5 },
	}

	defer func() {
		r := recover()
		if r == nil {
			t.Fatal("expected panic for out-of-range partition index")
		}
		if _, ok := r.(*PartitionError); !ok {
			t.Fatalf("expected *PartitionError panic, got %T", r)
		}
	}()
	g.Route("shard", "anything")
}

func TestFanInEdgeGroup_AggregatesOnlyWhenAllSourcesPresent(t *testing.T) {
	g := FanInEdgeGroup{
		Sources: []string{"a", "b"},
		Target:  "merge",
		Aggregator: func(bySource map[string]any) any {
			return bySource["a"].(int) + bySource["b"].(int)
		},
	}

	if _, ready := g.Aggregate(map[string]any{"a": 1}); ready {
		t.Fatal("expected not ready with only one source present")
	}

	msg, ready := g.Aggregate(map[string]any{"a": 1, "b": 2})
	if !ready {
		t.Fatal("expected ready with both sources present")
	}
	if msg.Data.(int) != 3 {
		t.Fatalf("expected aggregated value 3, got %v", msg.Data)
	}
	if *msg.TargetID != "merge" {
		t.Fatalf("expected target 'merge', got %v", *msg.TargetID)
	}
}
