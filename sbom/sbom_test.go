package sbom_test

import (
	"testing"

	"github.com/joshyorko/bomforge/compliance"
	"github.com/joshyorko/bomforge/project"
	"github.com/joshyorko/bomforge/sbom"
	"github.com/stretchr/testify/require"
)

var testTool = sbom.Tool{Name: "bomforge", Version: "test"}

type fixture struct {
	graph    *project.MemoryGraph
	ledger   *compliance.Ledger
	resolver *sbom.Resolver
	builder  *sbom.Builder
}

func newFixture(t *testing.T, nodes ...*project.Node) *fixture {
	t.Helper()
	classifier := project.DefaultClassifier()
	graph, err := project.NewMemoryGraph(nodes, classifier)
	require.NoError(t, err)
	ledger := compliance.NewLedger().Quiet()
	resolver := sbom.NewResolver(graph, classifier, sbom.Defaults{ProductVersion: "4.2.0", ProprietaryLicense: "Acme Proprietary"}, ledger)
	return &fixture{
		graph:    graph,
		ledger:   ledger,
		resolver: resolver,
		builder:  sbom.NewBuilder(graph, resolver),
	}
}

func (it *fixture) node(t *testing.T, name string) *project.Node {
	t.Helper()
	node, ok := it.graph.Node(name)
	require.True(t, ok, "no project %q", name)
	return node
}

func (it *fixture) assemble(t *testing.T, root string, version int) (*sbom.Document, *sbom.IdentifierMap) {
	t.Helper()
	components, ids, err := it.builder.BuildComponents(it.node(t, root))
	require.NoError(t, err)
	return sbom.Assemble(version, components, it.builder.BuildEdges(ids), testTool), ids
}
