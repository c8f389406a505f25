package feature

import "github.com/coachpo/meltica/internal/errs"

// topoSort levels a DAG by Kahn's algorithm: each level holds every node whose producers all
// belong to strictly earlier levels, so that a scheduler can fan a level out in parallel and
// know every dependency already ran, per spec §4.3/§5. Ties within a level are broken by
// ascending NodeID so that iteration order (and therefore emission order) is deterministic
// across runs regardless of map iteration or worker-pool scheduling, per spec §9.
func topoSort(dag *DAG) ([][]NodeID, error) {
	indegree := make(map[NodeID]int, len(dag.Nodes))
	dependents := make(map[NodeID][]NodeID, len(dag.Nodes))

	for id, n := range dag.Nodes {
		producers := producersOf(n)
		indegree[id] = len(producers)
		for _, p := range producers {
			dependents[p] = append(dependents[p], id)
		}
	}

	var levels [][]NodeID
	remaining := len(dag.Nodes)
	frontier := make([]NodeID, 0, len(dag.Nodes))
	for id, deg := range indegree {
		if deg == 0 {
			frontier = append(frontier, id)
		}
	}
	sortNodeIDs(frontier)

	for len(frontier) > 0 {
		levels = append(levels, frontier)
		remaining -= len(frontier)

		var next []NodeID
		seen := make(map[NodeID]bool)
		for _, id := range frontier {
			for _, dep := range dependents[id] {
				indegree[dep]--
				if indegree[dep] == 0 && !seen[dep] {
					seen[dep] = true
					next = append(next, dep)
				}
			}
		}
		sortNodeIDs(next)
		frontier = next
	}

	if remaining > 0 {
		return nil, errs.PipelineCycle("feature.topo_sort", cyclePath(dag, indegree))
	}
	return levels, nil
}

func producersOf(n *Node) []NodeID {
	out := make([]NodeID, 0, len(n.Inputs)+len(n.Inputs2))
	for _, e := range n.Inputs {
		if !e.Raw {
			out = append(out, e.Producer)
		}
	}
	for _, e := range n.Inputs2 {
		if !e.Raw {
			out = append(out, e.Producer)
		}
	}
	return out
}

// cyclePath returns the ids of every node left with unsatisfied dependencies after Kahn's
// algorithm stalls, for inclusion in the PipelineCycle error.
func cyclePath(dag *DAG, indegree map[NodeID]int) []string {
	var path []string
	for id, n := range dag.Nodes {
		if indegree[id] > 0 {
			path = append(path, string(n.ID))
		}
	}
	sortStrings(path)
	return path
}

func sortNodeIDs(ids []NodeID) {
	for i := 1; i < len(ids); i++ {
		for j := i; j > 0 && ids[j-1] > ids[j]; j-- {
			ids[j-1], ids[j] = ids[j], ids[j-1]
		}
	}
}

func sortStrings(ss []string) {
	for i := 1; i < len(ss); i++ {
		for j := i; j > 0 && ss[j-1] > ss[j]; j-- {
			ss[j-1], ss[j] = ss[j], ss[j-1]
		}
	}
}
