package feature

import "testing"

func TestTopoSortLevelsIndependentNodes(t *testing.T) {
	a := &Node{ID: "a"}
	b := &Node{ID: "b"}
	c := &Node{ID: "c", Inputs: []InputEdge{{Name: "a_out", Producer: "a"}, {Name: "b_out", Producer: "b"}}}
	dag := &DAG{Nodes: map[NodeID]*Node{"a": a, "b": b, "c": c}}

	levels, err := topoSort(dag)
	if err != nil {
		t.Fatalf("topoSort() error = %v", err)
	}
	if len(levels) != 2 {
		t.Fatalf("expected 2 levels, got %d: %v", len(levels), levels)
	}
	if len(levels[0]) != 2 {
		t.Fatalf("expected level 0 to hold both independent nodes, got %v", levels[0])
	}
	if len(levels[1]) != 1 || levels[1][0] != "c" {
		t.Fatalf("expected level 1 to hold only c, got %v", levels[1])
	}
}

func TestTopoSortDetectsCycle(t *testing.T) {
	a := &Node{ID: "a", Inputs: []InputEdge{{Name: "b_out", Producer: "b"}}}
	b := &Node{ID: "b", Inputs: []InputEdge{{Name: "a_out", Producer: "a"}}}
	dag := &DAG{Nodes: map[NodeID]*Node{"a": a, "b": b}}

	if _, err := topoSort(dag); err == nil {
		t.Fatal("expected PipelineCycle error for mutually dependent nodes")
	}
}

func TestTopoSortDeterministicOrderWithinLevel(t *testing.T) {
	nodes := map[NodeID]*Node{
		"z": {ID: "z"},
		"a": {ID: "a"},
		"m": {ID: "m"},
	}
	dag := &DAG{Nodes: nodes}
	levels, err := topoSort(dag)
	if err != nil {
		t.Fatalf("topoSort() error = %v", err)
	}
	if len(levels) != 1 || len(levels[0]) != 3 {
		t.Fatalf("expected a single level of 3 nodes, got %v", levels)
	}
	want := []NodeID{"a", "m", "z"}
	for i, id := range levels[0] {
		if id != want[i] {
			t.Errorf("levels[0][%d] = %q, want %q", i, id, want[i])
		}
	}
}
