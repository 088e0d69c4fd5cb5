package dag

import (
	"errors"
	"fmt"
	"maps"
	"slices"
	"strings"

	"github.com/matzehuels/postroc/pkg/custom"
	perrors "github.com/matzehuels/postroc/pkg/errors"
)

// ErrCyclicDependency matches every [*CyclicDependencyError] through
// [errors.Is]. Callers that only need to know whether a cycle was found can
// compare against it instead of type-asserting.
var ErrCyclicDependency = errors.New("cyclic dependency")

// Graph maps each node id to the ids it references. Targets are
// deduplicated; ids that are referenced but not present as keys are
// dangling references and are kept as-is.
type Graph map[string][]string

// CyclicDependencyError is returned by [Build] and [Validate] when the
// reference graph contains a cycle. The cycle starts and ends at the same
// node, e.g. [A B C A].
type CyclicDependencyError struct {
	Cycle []string // Display names along the cycle
	IDs   []string // Node ids along the cycle
}

func (e *CyclicDependencyError) Error() string {
	return "cyclic dependency: " + strings.Join(e.Cycle, " -> ")
}

// Is reports whether target is [ErrCyclicDependency].
func (e *CyclicDependencyError) Is(target error) bool {
	return target == ErrCyclicDependency
}

// Code returns the structured error code for the cycle.
func (e *CyclicDependencyError) Code() perrors.Code {
	return perrors.ErrCodeCyclicDependency
}

// Build scans every field of every node, nested children included, for
// references and returns the resulting graph. It fails with a
// [*CyclicDependencyError] if the references form a cycle. Dangling
// references are not an error here; they surface as warnings during
// resolution.
func Build(nodes []custom.Node) (Graph, error) {
	g := make(Graph, len(nodes))
	ids := make([]string, 0, len(nodes))
	names := make(map[string]string, len(nodes))
	for _, n := range nodes {
		if _, dup := g[n.ID]; !dup {
			ids = append(ids, n.ID)
		}
		g[n.ID] = ReferenceTargets(n)
		names[n.ID] = n.DisplayName()
	}

	if cycle := findCycle(ids, g); cycle != nil {
		return nil, newCycleError(cycle, names)
	}
	return g, nil
}

// Validate runs cycle detection over an already built graph. Nodes are
// visited in sorted order and the reported cycle uses ids as names.
func Validate(g Graph) error {
	if cycle := findCycle(sortedKeys(g), g); cycle != nil {
		return newCycleError(cycle, nil)
	}
	return nil
}

// ReferenceTargets returns the ids n references, in field order, without
// duplicates. References nested in objects, arrays and cached fetch
// templates count. Unexported fields count too: they still describe an
// edge the editor must keep acyclic.
func ReferenceTargets(n custom.Node) []string {
	var out []string
	seen := make(map[string]bool)
	var walk func(fields []custom.Field)
	walk = func(fields []custom.Field) {
		for _, f := range fields {
			if ref, ok := f.Kind.(custom.Reference); ok && ref.TargetID != "" && !seen[ref.TargetID] {
				seen[ref.TargetID] = true
				out = append(out, ref.TargetID)
			}
			walk(f.Children)
		}
	}
	walk(n.Fields)
	return out
}

// findCycle runs a depth-first search with white/gray/black coloring from
// every root in order. The first back-edge found yields the path slice from
// the revisited node to the current node, closed with the revisited node.
func findCycle(roots []string, g Graph) []string {
	const (
		white = iota
		gray
		black
	)

	color := make(map[string]int, len(g))
	var path []string
	var cycle []string

	var dfs func(id string) bool
	dfs = func(id string) bool {
		color[id] = gray
		path = append(path, id)
		for _, next := range g[id] {
			switch color[next] {
			case white:
				if dfs(next) {
					return true
				}
			case gray:
				start := slices.Index(path, next)
				cycle = append(slices.Clone(path[start:]), next)
				return true
			}
		}
		path = path[:len(path)-1]
		color[id] = black
		return false
	}

	for _, id := range roots {
		if color[id] == white && dfs(id) {
			return cycle
		}
	}
	return nil
}

func newCycleError(ids []string, names map[string]string) *CyclicDependencyError {
	cycle := make([]string, len(ids))
	for i, id := range ids {
		if name, ok := names[id]; ok && name != "" {
			cycle[i] = name
		} else {
			cycle[i] = id
		}
	}
	return &CyclicDependencyError{Cycle: cycle, IDs: ids}
}

// WouldCreateCycle reports whether adding the edge source -> target to g
// would close a cycle, i.e. whether source is reachable from target. It does
// not modify g, and g need not contain the candidate edge.
func WouldCreateCycle(source, target string, g Graph) bool {
	if source == target {
		return true
	}
	visited := map[string]bool{target: true}
	queue := []string{target}
	for len(queue) > 0 {
		cur := queue[0]
		queue = queue[1:]
		for _, next := range g[cur] {
			if next == source {
				return true
			}
			if !visited[next] {
				visited[next] = true
				queue = append(queue, next)
			}
		}
	}
	return false
}

// Order returns the node ids of g so that every node comes after all nodes
// it references. It runs Kahn's algorithm over the referenced-by relation
// (nodes nobody references go first) and reverses the result. Ties are
// broken by sorted id, so the order is deterministic.
//
// Dangling targets are not part of the order. Nodes on a cycle are omitted;
// run [Build] or [Validate] first.
func Order(g Graph) []string {
	inDegree := make(map[string]int, len(g))
	for id := range g {
		for _, dep := range g[id] {
			if _, ok := g[dep]; ok {
				inDegree[dep]++
			}
		}
	}

	var queue []string
	for _, id := range sortedKeys(g) {
		if inDegree[id] == 0 {
			queue = append(queue, id)
		}
	}

	order := make([]string, 0, len(g))
	for len(queue) > 0 {
		cur := queue[0]
		queue = queue[1:]
		order = append(order, cur)
		for _, dep := range g[cur] {
			if _, ok := g[dep]; !ok {
				continue
			}
			inDegree[dep]--
			if inDegree[dep] == 0 {
				queue = append(queue, dep)
			}
		}
	}

	slices.Reverse(order)
	return order
}

// Dependencies returns the sorted ids that id references.
func Dependencies(id string, g Graph) []string {
	deps := slices.Clone(g[id])
	slices.Sort(deps)
	return deps
}

// Dependents returns the sorted ids of the nodes that reference id.
func Dependents(id string, g Graph) []string {
	var out []string
	for from, deps := range g {
		if slices.Contains(deps, id) {
			out = append(out, from)
		}
	}
	slices.Sort(out)
	return out
}

// ResolutionOrder builds the graph over nodes and returns the nodes in
// dependency-first order.
func ResolutionOrder(nodes []custom.Node) ([]custom.Node, error) {
	g, err := Build(nodes)
	if err != nil {
		return nil, err
	}
	byID := make(map[string]custom.Node, len(nodes))
	for _, n := range nodes {
		byID[n.ID] = n
	}
	ids := Order(g)
	out := make([]custom.Node, 0, len(ids))
	for _, id := range ids {
		out = append(out, byID[id])
	}
	if len(out) != len(byID) {
		return nil, fmt.Errorf("dag: ordered %d of %d nodes", len(out), len(byID))
	}
	return out, nil
}

func sortedKeys(g Graph) []string {
	return slices.Sorted(maps.Keys(g))
}
