// Package dag builds and queries the reference graph between nodes.
//
// # Overview
//
// Nodes may embed other nodes through reference fields. The induced graph
// must stay acyclic: a cycle leaves no order in which every node can be
// resolved after the nodes it references. This package enforces that in two
// ways:
//
//   - Eagerly, [Build] fails with a [*CyclicDependencyError] carrying the
//     cycle path when the node set already contains one.
//   - Preventively, [WouldCreateCycle] answers whether a candidate reference
//     would close a cycle, without touching the graph.
//
// # Ordering
//
// [Order] returns a dependency-first order (leaves first) using Kahn's
// algorithm over the referenced-by relation:
//
//	g, err := dag.Build(nodes)
//	if err != nil {
//	    return err // *dag.CyclicDependencyError
//	}
//	for _, id := range dag.Order(g) {
//	    // every node id references was visited earlier
//	}
//
// All functions are pure and safe for concurrent use on a graph that is no
// longer being modified.
package dag
