package sbom

import (
	"errors"
	"fmt"

	"github.com/joshyorko/bomforge/common"
	"github.com/joshyorko/bomforge/project"
)

// ErrDuplicateRef is matched by every DuplicateRefError.
var ErrDuplicateRef = errors.New("duplicate bom-ref")

// DuplicateRefError reports two distinct projects resolving to one bom-ref.
// It only happens when a bom-ref override collides with another project, and
// it aborts assembly of the whole document.
type DuplicateRefError struct {
	Ref    string
	First  string
	Second string
}

func (it *DuplicateRefError) Error() string {
	return fmt.Sprintf("duplicate bom-ref detected in SBOM generation: %q is claimed by projects %q and %q; each component must have a unique bom-ref", it.Ref, it.First, it.Second)
}

func (it *DuplicateRefError) Unwrap() error {
	return ErrDuplicateRef
}

// IdentifierMap records the bom-ref assigned to each project, in assignment
// order. Projects are identified by name.
type IdentifierMap struct {
	order  []*project.Node
	refs   map[string]string
	owners map[string]string
}

func NewIdentifierMap() *IdentifierMap {
	return &IdentifierMap{
		order:  make([]*project.Node, 0, 32),
		refs:   make(map[string]string),
		owners: make(map[string]string),
	}
}

// Assign records ref for node. Assigning a ref already owned by another
// project fails with a DuplicateRefError.
func (it *IdentifierMap) Assign(node *project.Node, ref string) error {
	if owner, taken := it.owners[ref]; taken && owner != node.Name {
		return &DuplicateRefError{Ref: ref, First: owner, Second: node.Name}
	}
	if _, known := it.refs[node.Name]; !known {
		it.order = append(it.order, node)
	}
	it.refs[node.Name] = ref
	it.owners[ref] = node.Name
	return nil
}

func (it *IdentifierMap) Ref(node *project.Node) (string, bool) {
	ref, ok := it.refs[node.Name]
	return ref, ok
}

func (it *IdentifierMap) Has(node *project.Node) bool {
	_, ok := it.refs[node.Name]
	return ok
}

func (it *IdentifierMap) Len() int {
	return len(it.order)
}

// Nodes returns projects in assignment order.
func (it *IdentifierMap) Nodes() []*project.Node {
	result := make([]*project.Node, len(it.order))
	copy(result, it.order)
	return result
}

// Builder walks the project graph and produces components and dependency
// edges for one root project.
type Builder struct {
	graph    project.Graph
	resolver *Resolver
}

func NewBuilder(graph project.Graph, resolver *Resolver) *Builder {
	return &Builder{
		graph:    graph,
		resolver: resolver,
	}
}

// closure returns root followed by its transitive dependencies in name order.
func (it *Builder) closure(root *project.Node) []*project.Node {
	dependencies := project.SortedByName(it.graph.AllDependencies(root))
	result := make([]*project.Node, 0, len(dependencies)+1)
	result = append(result, root)
	for _, dependency := range dependencies {
		if dependency.Name != root.Name {
			result = append(result, dependency)
		}
	}
	return result
}

// BuildComponents resolves one component per project in the closure of root.
// On a bom-ref collision nothing is returned but the error.
func (it *Builder) BuildComponents(root *project.Node) ([]*Component, *IdentifierMap, error) {
	ids := NewIdentifierMap()
	members := it.closure(root)
	components := make([]*Component, 0, len(members))
	for _, member := range members {
		if ids.Has(member) {
			continue
		}
		component := it.resolver.Resolve(member)
		if err := ids.Assign(member, component.BomRef); err != nil {
			return nil, nil, err
		}
		components = append(components, component)
	}
	common.Debug("Resolved %d components for %s.", len(components), root.Name)
	return components, ids, nil
}

// BuildEdges emits one dependency entry per project in ids, listing the
// bom-refs of its immediate dependencies. Projects without dependencies still
// get an entry.
func (it *Builder) BuildEdges(ids *IdentifierMap) []*Dependency {
	result := make([]*Dependency, 0, ids.Len())
	for _, node := range ids.Nodes() {
		ref, _ := ids.Ref(node)
		immediate := project.SortedByName(it.graph.ImmediateDependencies(node))
		dependsOn := make([]string, 0, len(immediate))
		for _, dependency := range immediate {
			target, ok := ids.Ref(dependency)
			if !ok {
				common.Debug("Dependency %s of %s is outside the assembled closure; edge skipped.", dependency.Name, node.Name)
				continue
			}
			dependsOn = append(dependsOn, target)
		}
		result = append(result, &Dependency{
			Ref:       ref,
			DependsOn: dependsOn,
		})
	}
	return result
}
