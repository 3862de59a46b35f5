package supplement_test

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"testing"

	"github.com/joshyorko/bomforge/compliance"
	"github.com/joshyorko/bomforge/project"
	"github.com/joshyorko/bomforge/sbom"
	"github.com/joshyorko/bomforge/scanner"
	"github.com/joshyorko/bomforge/supplement"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeProducer writes canned fragments for known sources and remembers what
// it was asked to scan.
type fakeProducer struct {
	mu        sync.Mutex
	fragments map[string]string
	requests  []scanner.Request
}

func (it *fakeProducer) Produce(ctx context.Context, request scanner.Request) (string, error) {
	it.mu.Lock()
	defer it.mu.Unlock()
	it.requests = append(it.requests, request)
	content, ok := it.fragments[request.Source]
	if !ok {
		return "", scanner.ErrUnavailable
	}
	if err := os.MkdirAll(filepath.Dir(request.Output), 0o755); err != nil {
		return "", err
	}
	if err := os.WriteFile(request.Output, []byte(content), 0o644); err != nil {
		return "", err
	}
	return request.Output, nil
}

func fragmentOf(refs ...string) string {
	components := ""
	for at, ref := range refs {
		if at > 0 {
			components += ","
		}
		components += fmt.Sprintf(`{"bom-ref": %q, "type": "library", "name": %q}`, ref, ref)
	}
	return fmt.Sprintf(`{"components": [%s, {"bom-ref": "f", "type": "file", "name": "lock"}]}`, components)
}

type workspace struct {
	root       string
	output     string
	graph      *project.MemoryGraph
	ledger     *compliance.Ledger
	filesystem *fakeProducer
	image      *fakeProducer
	collector  *supplement.Collector
}

func mkdir(t *testing.T, parts ...string) string {
	t.Helper()
	where := filepath.Join(parts...)
	require.NoError(t, os.MkdirAll(where, 0o755))
	return where
}

func touch(t *testing.T, parts ...string) string {
	t.Helper()
	where := filepath.Join(parts...)
	mkdir(t, filepath.Dir(where))
	require.NoError(t, os.WriteFile(where, []byte("{}"), 0o644))
	return where
}

func newWorkspace(t *testing.T) *workspace {
	t.Helper()
	root := t.TempDir()
	nuget := mkdir(t, root, "service", "bin")
	touch(t, nuget, supplement.NugetLockFile)
	nolock := mkdir(t, root, "admin", "bin")
	widgets := mkdir(t, root, "widgets", "deps")

	nodes := []*project.Node{
		{Name: "Product", Features: []string{"application", "docker"}, Path: root, Uses: []string{"Service", "Admin", "Legacy", "Widgets", "Charts", "Bare", "Portal"}},
		{Name: "Service", Features: []string{"dot_net"}, BuildFolder: nuget},
		{Name: "Admin", Features: []string{"asp_net_website"}, BuildFolder: nolock},
		{Name: "Legacy", Features: []string{"dot_net_framework"}, BuildFolder: filepath.Join(root, "legacy", "missing")},
		{Name: "Widgets", Features: []string{"javascript", "third_party"}, Version: "1", License: "MIT", Purl: "pkg:npm/widgets@1", DependencyMetadataFolder: widgets},
		{Name: "Charts", Features: []string{"javascript", "third_party"}, Version: "1", License: "MIT", Purl: "pkg:npm/charts@1", DependencyMetadataFolder: filepath.Join(root, "charts", "gone")},
		{Name: "Bare", Features: []string{"javascript", "third_party"}, Version: "1", License: "MIT", Purl: "pkg:npm/bare@1"},
		{Name: "Portal", Features: []string{"javascript"}},
	}
	graph, err := project.NewMemoryGraph(nodes, project.DefaultClassifier())
	require.NoError(t, err)

	ledger := compliance.NewLedger().Quiet()
	filesystem := &fakeProducer{fragments: map[string]string{
		nuget:   fragmentOf("pkg:nuget/Newtonsoft.Json@13.0.3"),
		widgets: fragmentOf("pkg:npm/lodash@4.17.21", "pkg:npm/react@18.2.0"),
	}}
	image := &fakeProducer{fragments: map[string]string{}}
	output := filepath.Join(root, "sbom")
	merger := sbom.NewMerger(sbom.NewStore(), ledger)
	return &workspace{
		root:       root,
		output:     output,
		graph:      graph,
		ledger:     ledger,
		filesystem: filesystem,
		image:      image,
		collector:  supplement.NewCollector(project.DefaultClassifier(), filesystem, image, merger, ledger, output),
	}
}

func (it *workspace) document(t *testing.T) (*project.Node, *sbom.IdentifierMap, string) {
	t.Helper()
	classifier := project.DefaultClassifier()
	resolver := sbom.NewResolver(it.graph, classifier, sbom.Defaults{ProductVersion: "1.0.0"}, compliance.Discard)
	builder := sbom.NewBuilder(it.graph, resolver)
	target, _ := it.graph.Node("Product")
	components, ids, err := builder.BuildComponents(target)
	require.NoError(t, err)
	document := sbom.Assemble(1, components, builder.BuildEdges(ids), sbom.Tool{Name: "bomforge", Version: "test"})
	where := sbom.DocumentPath(it.output, target.Name)
	require.NoError(t, sbom.NewStore().Save(context.Background(), where, document))
	return target, ids, where
}

func TestCollectMergesAvailableMetadataAndRecordsTheRest(t *testing.T) {
	ctx := context.Background()
	sut := newWorkspace(t)
	target, ids, where := sut.document(t)

	summary := sut.collector.Collect(ctx, target, ids, where)

	assert.Equal(t, supplement.Summary{Attempted: 2, Merged: 2}, summary)
	merged, err := sbom.NewStore().Load(ctx, where)
	require.NoError(t, err)
	require.NoError(t, sbom.Verify(merged))
	service, _ := merged.Dependency("Service")
	assert.Equal(t, []string{"pkg:nuget/Newtonsoft.Json@13.0.3"}, service.DependsOn)
	widgets, _ := merged.Dependency("Widgets")
	assert.Equal(t, []string{"pkg:npm/lodash@4.17.21", "pkg:npm/react@18.2.0"}, widgets.DependsOn)
	_, found := merged.Component("f")
	assert.False(t, found)

	kinds := map[compliance.Kind][]string{}
	for _, warning := range sut.ledger.Warnings() {
		kinds[warning.Kind] = append(kinds[warning.Kind], warning.Project)
	}
	assert.Equal(t, map[compliance.Kind][]string{
		compliance.MissingLockFile:       {"Admin"},
		compliance.MissingBuildFolder:    {"Legacy"},
		compliance.MissingMetadataFolder: {"Bare", "Charts"},
	}, kinds)
}

func TestDotNetPassRunsBeforeJavaScriptPass(t *testing.T) {
	sut := newWorkspace(t)
	target, ids, where := sut.document(t)

	sut.collector.Collect(context.Background(), target, ids, where)

	require.Len(t, sut.filesystem.requests, 2)
	assert.Equal(t, supplement.FragmentPath(sut.output, "Product", "Service"), sut.filesystem.requests[0].Output)
	assert.Equal(t, supplement.FragmentPath(sut.output, "Product", "Widgets"), sut.filesystem.requests[1].Output)
	assert.Equal(t, filepath.Join(sut.output, "Product", "WidgetsDependencyMetadataSbom.json"), sut.filesystem.requests[1].Output)
}

func TestMissingScanOutputIsRecordedNotMerged(t *testing.T) {
	ctx := context.Background()
	sut := newWorkspace(t)
	sut.filesystem.fragments = map[string]string{}
	target, ids, where := sut.document(t)

	summary := sut.collector.Collect(ctx, target, ids, where)

	assert.Equal(t, supplement.Summary{}, summary)
	missing := sut.ledger.Of(compliance.MissingFragment)
	require.Len(t, missing, 2)
	assert.Equal(t, "Service", missing[0].Project)
	assert.Equal(t, "Widgets", missing[1].Project)
}

func TestScanImageWritesSiblingDocument(t *testing.T) {
	ctx := context.Background()
	sut := newWorkspace(t)
	target, _ := sut.graph.Node("Product")

	_, ok := sut.collector.ScanImage(ctx, target)
	assert.False(t, ok)
	require.Len(t, sut.ledger.Of(compliance.MissingImage), 1)

	archive := touch(t, sut.root, "Product.tar.gz")
	sut.image.fragments[archive] = `{"components": []}`
	written, ok := sut.collector.ScanImage(ctx, target)

	require.True(t, ok)
	assert.Equal(t, supplement.ImagePath(sut.output, "Product"), written)
	assert.FileExists(t, written)
}

func TestScanImageIgnoresNonContainerProjects(t *testing.T) {
	sut := newWorkspace(t)
	service, _ := sut.graph.Node("Service")

	_, ok := sut.collector.ScanImage(context.Background(), service)

	assert.False(t, ok)
	assert.Empty(t, sut.image.requests)
	assert.Zero(t, sut.ledger.Count())
}

func TestImageArchivePrefersExplicitPath(t *testing.T) {
	assert.Equal(t, "/x/App.tar.gz", supplement.ImageArchive(&project.Node{Name: "App", Path: "/x"}))
	assert.Equal(t, "/y/image.tar", supplement.ImageArchive(&project.Node{Name: "App", Path: "/x", ImageArchive: "/y/image.tar"}))
}
