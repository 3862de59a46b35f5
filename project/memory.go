package project

import (
	"errors"
	"fmt"

	"github.com/dominikbraun/graph"
)

var (
	ErrUnknownProject   = errors.New("unknown project")
	ErrDependencyCycle  = errors.New("dependency cycle")
	ErrDuplicateProject = errors.New("duplicate project")
)

// MemoryGraph is an immutable in-memory project graph. Edges point from a
// project to the projects it uses.
type MemoryGraph struct {
	store     graph.Graph[string, *Node]
	adjacency map[string]map[string]graph.Edge[string]
	order     []*Node
}

func nodeHash(node *Node) string {
	return node.Name
}

// NewMemoryGraph builds a graph from nodes, wiring edges from each node's Uses
// list. Cycles, unknown references, duplicate names and default-version
// projects referencing more than one project are rejected.
func NewMemoryGraph(nodes []*Node, classifier Classifier) (*MemoryGraph, error) {
	store := graph.New[string, *Node](nodeHash, graph.Directed(), graph.PreventCycles())
	for _, node := range nodes {
		if node == nil || len(node.Name) == 0 {
			return nil, fmt.Errorf("project without a name: %w", ErrUnknownProject)
		}
		err := store.AddVertex(node)
		if errors.Is(err, graph.ErrVertexAlreadyExists) {
			return nil, fmt.Errorf("%w: %q", ErrDuplicateProject, node.Name)
		}
		if err != nil {
			return nil, fmt.Errorf("adding project %q: %w", node.Name, err)
		}
	}
	for _, node := range nodes {
		if classifier != nil && classifier.IsDefaultVersion(node) && len(node.Uses) > 1 {
			return nil, fmt.Errorf("default version project %q must use at most one project, not %d", node.Name, len(node.Uses))
		}
		for _, used := range node.Uses {
			err := store.AddEdge(node.Name, used)
			switch {
			case err == nil, errors.Is(err, graph.ErrEdgeAlreadyExists):
				continue
			case errors.Is(err, graph.ErrVertexNotFound):
				return nil, fmt.Errorf("%w: %q used by %q", ErrUnknownProject, used, node.Name)
			case errors.Is(err, graph.ErrEdgeCreatesCycle):
				return nil, fmt.Errorf("%w: %q -> %q", ErrDependencyCycle, node.Name, used)
			default:
				return nil, fmt.Errorf("linking %q -> %q: %w", node.Name, used, err)
			}
		}
	}
	adjacency, err := store.AdjacencyMap()
	if err != nil {
		return nil, err
	}
	order := make([]*Node, len(nodes))
	copy(order, nodes)
	return &MemoryGraph{
		store:     store,
		adjacency: adjacency,
		order:     order,
	}, nil
}

// Nodes returns every project in declaration order.
func (it *MemoryGraph) Nodes() []*Node {
	result := make([]*Node, len(it.order))
	copy(result, it.order)
	return result
}

func (it *MemoryGraph) Node(name string) (*Node, bool) {
	node, err := it.store.Vertex(name)
	if err != nil {
		return nil, false
	}
	return node, true
}

// Lookup resolves names to nodes, failing on the first unknown name.
func (it *MemoryGraph) Lookup(names ...string) ([]*Node, error) {
	result := make([]*Node, 0, len(names))
	for _, name := range names {
		node, ok := it.Node(name)
		if !ok {
			return nil, fmt.Errorf("%w: %q", ErrUnknownProject, name)
		}
		result = append(result, node)
	}
	return result, nil
}

// Roots returns projects no other project depends on, in declaration order.
func (it *MemoryGraph) Roots() []*Node {
	used := make(map[string]bool)
	for _, targets := range it.adjacency {
		for target := range targets {
			used[target] = true
		}
	}
	result := make([]*Node, 0, len(it.order))
	for _, node := range it.order {
		if !used[node.Name] {
			result = append(result, node)
		}
	}
	return result
}

func (it *MemoryGraph) ImmediateDependencies(node *Node) []*Node {
	targets, ok := it.adjacency[node.Name]
	if !ok {
		return nil
	}
	result := make([]*Node, 0, len(targets))
	for name := range targets {
		if dependency, found := it.Node(name); found {
			result = append(result, dependency)
		}
	}
	return SortedByName(result)
}

func (it *MemoryGraph) AllDependencies(node *Node) []*Node {
	if _, ok := it.adjacency[node.Name]; !ok {
		return nil
	}
	result := make([]*Node, 0, 16)
	err := graph.DFS(it.store, node.Name, func(name string) bool {
		if name == node.Name {
			return false
		}
		if dependency, found := it.Node(name); found {
			result = append(result, dependency)
		}
		return false
	})
	if err != nil {
		return nil
	}
	return SortedByName(result)
}
