package sbom_test

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"testing"

	"github.com/joshyorko/bomforge/compliance"
	"github.com/joshyorko/bomforge/project"
	"github.com/joshyorko/bomforge/sbom"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const scannedFragment = `{
  "bomFormat": "CycloneDX",
  "specVersion": "1.6",
  "components": [
    {
      "bom-ref": "pkg:npm/react@18.2.0?package-id=1",
      "type": "library",
      "name": "react",
      "version": "18.2.0",
      "purl": "pkg:npm/react@18.2.0",
      "cpe": "cpe:2.3:a:react:react:18.2.0:*:*:*:*:*:*:*",
      "properties": [{"name": "syft:package:foundBy", "value": "javascript-lock-cataloger"}],
      "licenses": [{"license": {"id": "MIT", "acknowledgement": "declared"}}]
    },
    {
      "bom-ref": "pkg:npm/loose-envify@1.4.0?package-id=2",
      "type": "library",
      "name": "loose-envify",
      "version": "1.4.0"
    },
    {
      "bom-ref": "file-1",
      "type": "file",
      "name": "/package-lock.json"
    }
  ],
  "dependencies": [
    {"ref": "pkg:npm/react@18.2.0?package-id=1", "dependsOn": ["pkg:npm/loose-envify@1.4.0?package-id=2"]}
  ]
}`

func parseFragment(t *testing.T, content string) *sbom.Fragment {
	t.Helper()
	fragment, err := sbom.ParseFragment([]byte(content))
	require.NoError(t, err)
	return fragment
}

func webFixture(t *testing.T) (*fixture, *sbom.Document, *sbom.IdentifierMap) {
	t.Helper()
	sut := newFixture(t,
		&project.Node{Name: "Site", Uses: []string{"Web"}},
		&project.Node{Name: "Web", Features: []string{"javascript", "third_party"}, Version: "2.0.0", License: "MIT", Purl: "pkg:generic/web@2.0.0"},
	)
	document, ids := sut.assemble(t, "Site", 1)
	return sut, document, ids
}

func TestMergeFlattensFragmentIntoOwner(t *testing.T) {
	_, document, _ := webFixture(t)

	added, err := sbom.MergeFragment(document, parseFragment(t, scannedFragment), "Web")

	require.NoError(t, err)
	assert.Equal(t, []string{"pkg:npm/react@18.2.0?package-id=1", "pkg:npm/loose-envify@1.4.0?package-id=2"}, added)
	assert.Len(t, document.Components, 4)
	web, _ := document.Dependency("Web")
	assert.Equal(t, added, web.DependsOn)
	site, _ := document.Dependency("Site")
	assert.Equal(t, []string{"Web"}, site.DependsOn)
	_, found := document.Component("file-1")
	assert.False(t, found)
}

func TestMergeIsIdempotent(t *testing.T) {
	_, document, _ := webFixture(t)
	fragment := parseFragment(t, scannedFragment)

	_, err := sbom.MergeFragment(document, fragment, "Web")
	require.NoError(t, err)
	added, err := sbom.MergeFragment(document, fragment, "Web")
	require.NoError(t, err)

	assert.Empty(t, added)
	assert.Len(t, document.Components, 4)
	web, _ := document.Dependency("Web")
	assert.Len(t, web.DependsOn, 2)
}

func TestMergeAddsNothingForKnownComponentsAndFiles(t *testing.T) {
	document := sbom.Assemble(1, []*sbom.Component{
		{BomRef: "owner", Type: sbom.TypeApplication, Name: "owner"},
		{BomRef: "pkgA", Type: sbom.TypeLibrary, Name: "pkgA"},
	}, []*sbom.Dependency{
		{Ref: "owner", DependsOn: []string{"pkgA"}},
		{Ref: "pkgA", DependsOn: []string{}},
	}, testTool)
	fragment := parseFragment(t, `{"components": [
		{"bom-ref": "pkgA", "type": "library", "name": "pkgA"},
		{"bom-ref": "fileX", "type": "file", "name": "fileX"}
	]}`)

	added, err := sbom.MergeFragment(document, fragment, "owner")

	require.NoError(t, err)
	assert.Empty(t, added)
	assert.Equal(t, []string{"owner", "pkgA"}, refs(document.Components))
	owner, _ := document.Dependency("owner")
	assert.Equal(t, []string{"pkgA"}, owner.DependsOn)
}

func TestMergeFailsWithoutOwnerEdgeAndLeavesDocumentAlone(t *testing.T) {
	_, document, _ := webFixture(t)

	_, err := sbom.MergeFragment(document, parseFragment(t, scannedFragment), "Nobody")

	assert.ErrorContains(t, err, `"Nobody"`)
	assert.Len(t, document.Components, 2)
}

func TestFragmentsMustCarryExpectedKeys(t *testing.T) {
	tests := []struct {
		name    string
		content string
	}{
		{"no components", `{"bomFormat": "CycloneDX"}`},
		{"null components", `{"components": null}`},
		{"component without type", `{"components": [{"bom-ref": "x", "name": "x"}]}`},
		{"package without ref", `{"components": [{"type": "library", "name": "x"}]}`},
		{"not json", `{"components": [`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := sbom.ParseFragment([]byte(tt.content))
			assert.Error(t, err)
		})
	}

	_, err := sbom.ParseFragment([]byte(`{"components": [{"type": "file", "name": "lock"}]}`))
	assert.NoError(t, err, "file components need no bom-ref")
}

func TestMergedComponentsKeepScannerFields(t *testing.T) {
	_, document, _ := webFixture(t)
	_, err := sbom.MergeFragment(document, parseFragment(t, scannedFragment), "Web")
	require.NoError(t, err)

	content, err := json.Marshal(document)
	require.NoError(t, err)
	reloaded, err := sbom.ParseDocument(content)
	require.NoError(t, err)

	react, found := reloaded.Component("pkg:npm/react@18.2.0?package-id=1")
	require.True(t, found)
	encoded, err := json.Marshal(react)
	require.NoError(t, err)
	assert.JSONEq(t, `{
		"bom-ref": "pkg:npm/react@18.2.0?package-id=1",
		"type": "library",
		"name": "react",
		"version": "18.2.0",
		"purl": "pkg:npm/react@18.2.0",
		"cpe": "cpe:2.3:a:react:react:18.2.0:*:*:*:*:*:*:*",
		"properties": [{"name": "syft:package:foundBy", "value": "javascript-lock-cataloger"}],
		"licenses": [{"license": {"id": "MIT", "acknowledgement": "declared"}}]
	}`, string(encoded))
	assert.Equal(t, "MIT", react.LicenseName())
}

func writeFile(t *testing.T, where, content string) string {
	t.Helper()
	require.NoError(t, os.MkdirAll(filepath.Dir(where), 0o755))
	require.NoError(t, os.WriteFile(where, []byte(content), 0o644))
	return where
}

func TestMergerReadsMergesAndWrites(t *testing.T) {
	ctx := context.Background()
	sut, document, ids := webFixture(t)
	folder := t.TempDir()
	store := sbom.NewStore()
	target := sbom.DocumentPath(folder, "Site")
	require.NoError(t, store.Save(ctx, target, document))
	fragment := writeFile(t, filepath.Join(folder, "Site", "WebDependencyMetadataSbom.json"), scannedFragment)

	ledger := compliance.NewLedger().Quiet()
	merger := sbom.NewMerger(store, ledger)
	require.True(t, merger.Merge(ctx, sut.node(t, "Web"), ids, fragment, target))
	require.True(t, merger.Merge(ctx, sut.node(t, "Web"), ids, fragment, target))

	merged, err := store.Load(ctx, target)
	require.NoError(t, err)
	assert.Len(t, merged.Components, 4)
	assert.NoError(t, sbom.Verify(merged))
	assert.Zero(t, ledger.Count())
}

func TestMergerReportsFailuresInsteadOfRaising(t *testing.T) {
	ctx := context.Background()
	sut, document, ids := webFixture(t)
	folder := t.TempDir()
	store := sbom.NewStore()
	target := sbom.DocumentPath(folder, "Site")
	require.NoError(t, store.Save(ctx, target, document))

	tests := []struct {
		name     string
		fragment string
		owner    *project.Node
	}{
		{"malformed fragment", writeFile(t, filepath.Join(folder, "bad.json"), `{"components": [`), sut.node(t, "Web")},
		{"missing keys", writeFile(t, filepath.Join(folder, "keys.json"), `{"packages": []}`), sut.node(t, "Web")},
		{"missing fragment", filepath.Join(folder, "absent.json"), sut.node(t, "Web")},
		{"owner outside document", writeFile(t, filepath.Join(folder, "good.json"), scannedFragment), &project.Node{Name: "Stranger"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ledger := compliance.NewLedger().Quiet()
			merger := sbom.NewMerger(store, ledger)
			assert.False(t, merger.Merge(ctx, tt.owner, ids, tt.fragment, target))
			warnings := ledger.Of(compliance.MergeFailed)
			require.Len(t, warnings, 1)
			assert.Equal(t, tt.owner.Name, warnings[0].Project)
		})
	}

	untouched, err := store.Load(ctx, target)
	require.NoError(t, err)
	assert.Len(t, untouched.Components, 2)
}

func TestConcurrentMergesIntoOneDocumentKeepEveryUpdate(t *testing.T) {
	ctx := context.Background()
	nodes := []*project.Node{{Name: "Root"}}
	uses := make([]string, 0, 8)
	for index := 0; index < 8; index++ {
		name := fmt.Sprintf("Vendor%d", index)
		uses = append(uses, name)
		nodes = append(nodes, &project.Node{Name: name, Features: []string{"third_party"}, Version: "1", License: "MIT", Purl: "pkg:generic/v@1"})
	}
	nodes[0].Uses = uses
	sut := newFixture(t, nodes...)
	document, ids := sut.assemble(t, "Root", 1)

	folder := t.TempDir()
	store := sbom.NewStore()
	target := sbom.DocumentPath(folder, "Root")
	require.NoError(t, store.Save(ctx, target, document))
	merger := sbom.NewMerger(store, compliance.NewLedger().Quiet())

	group := sync.WaitGroup{}
	for index := 0; index < 8; index++ {
		fragment := writeFile(t, filepath.Join(folder, fmt.Sprintf("f%d.json", index)),
			fmt.Sprintf(`{"components": [{"bom-ref": "pkg-%d", "type": "library", "name": "pkg-%d"}]}`, index, index))
		owner := sut.node(t, fmt.Sprintf("Vendor%d", index))
		group.Add(1)
		go func() {
			defer group.Done()
			assert.True(t, merger.Merge(ctx, owner, ids, fragment, target))
		}()
	}
	group.Wait()

	merged, err := store.Load(ctx, target)
	require.NoError(t, err)
	assert.Len(t, merged.Components, 17)
	for index := 0; index < 8; index++ {
		vendor, _ := merged.Dependency(fmt.Sprintf("Vendor%d", index))
		assert.Equal(t, []string{fmt.Sprintf("pkg-%d", index)}, vendor.DependsOn)
	}
}
