// Package supplement pulls externally scanned dependency metadata into a
// custom software SBOM. Some ecosystems (NuGet, npm bundles) are invisible
// to the project graph, so their packages are scanned from build output or
// vendored metadata and merged under the project that owns them.
package supplement

import (
	"context"
	"errors"
	"os"
	"path/filepath"

	"github.com/joshyorko/bomforge/common"
	"github.com/joshyorko/bomforge/compliance"
	"github.com/joshyorko/bomforge/project"
	"github.com/joshyorko/bomforge/sbom"
	"github.com/joshyorko/bomforge/scanner"
)

const (
	JavaScriptFeature = "javascript"
	DockerFeature     = "docker"

	NugetLockFile       = "packages.lock.json"
	FragmentSuffix      = "DependencyMetadataSbom.json"
	ImageArchiveDefault = ".tar.gz"
)

var DotNetFeatures = []string{"dot_net", "dot_net_framework", "asp_net_website", "asp_net_library"}

// Summary counts merges for one target.
type Summary struct {
	Attempted int
	Merged    int
}

func (it *Summary) add(other Summary) {
	it.Attempted += other.Attempted
	it.Merged += other.Merged
}

type Collector struct {
	classifier project.Classifier
	filesystem scanner.Producer
	image      scanner.Producer
	merger     *sbom.Merger
	recorder   compliance.Recorder
	output     string
}

func NewCollector(classifier project.Classifier, filesystem, image scanner.Producer, merger *sbom.Merger, recorder compliance.Recorder, output string) *Collector {
	if recorder == nil {
		recorder = compliance.Logging
	}
	return &Collector{
		classifier: classifier,
		filesystem: filesystem,
		image:      image,
		merger:     merger,
		recorder:   recorder,
		output:     output,
	}
}

// FragmentPath is where the dependency metadata fragment of dependency is
// written while building the SBOM of target.
func FragmentPath(output, target, dependency string) string {
	return filepath.Join(output, target, dependency+FragmentSuffix)
}

// ImagePath is where the container image SBOM of target lives.
func ImagePath(output, target string) string {
	return filepath.Join(output, target, sbom.ContainerImageSbomName)
}

// Collect merges .NET and then JavaScript dependency metadata for every
// project in ids into the document at documentPath. Missing inputs are
// recorded and skipped.
func (it *Collector) Collect(ctx context.Context, target *project.Node, ids *sbom.IdentifierMap, documentPath string) Summary {
	summary := Summary{}
	summary.add(it.collectDotNet(ctx, target, ids, documentPath))
	summary.add(it.collectJavaScript(ctx, target, ids, documentPath))
	return summary
}

func (it *Collector) collectDotNet(ctx context.Context, target *project.Node, ids *sbom.IdentifierMap, documentPath string) Summary {
	summary := Summary{}
	for _, node := range ids.Nodes() {
		if !node.HasAnyFeature(DotNetFeatures...) {
			continue
		}
		if !isDir(node.BuildFolder) {
			it.recorder.Record(compliance.MissingBuildFolder, node.Name, "Could not find build folder for .NET project %s at %q. NuGet dependencies for this project will not be included in the SBOM.", node.Name, node.BuildFolder)
			continue
		}
		if !isFile(filepath.Join(node.BuildFolder, NugetLockFile)) {
			it.recorder.Record(compliance.MissingLockFile, node.Name, "NuGet lock file (%s) not found for .NET project %s. If there are NuGet dependencies for this project, enable RestorePackagesWithLockFile so they can be included in the SBOM.", NugetLockFile, node.Name)
			continue
		}
		summary.add(it.scanAndMerge(ctx, target, node, ids, node.BuildFolder, documentPath, ".NET"))
	}
	return summary
}

func (it *Collector) collectJavaScript(ctx context.Context, target *project.Node, ids *sbom.IdentifierMap, documentPath string) Summary {
	summary := Summary{}
	for _, node := range ids.Nodes() {
		if !node.HasFeature(JavaScriptFeature) || !it.classifier.IsThirdParty(node) {
			continue
		}
		if len(node.DependencyMetadataFolder) == 0 {
			it.recorder.Record(compliance.MissingMetadataFolder, node.Name, "Third-party JavaScript project %s does not provide dependency metadata. Its dependencies will not be included in the SBOM.", node.Name)
			continue
		}
		if !isDir(node.DependencyMetadataFolder) {
			it.recorder.Record(compliance.MissingMetadataFolder, node.Name, "Could not find dependency metadata folder for JavaScript project %s at %q. Its dependencies will not be included in the SBOM.", node.Name, node.DependencyMetadataFolder)
			continue
		}
		summary.add(it.scanAndMerge(ctx, target, node, ids, node.DependencyMetadataFolder, documentPath, "JavaScript"))
	}
	return summary
}

func (it *Collector) scanAndMerge(ctx context.Context, target, node *project.Node, ids *sbom.IdentifierMap, source, documentPath, ecosystem string) Summary {
	request := scanner.Request{
		Source: source,
		Output: FragmentPath(it.output, target.Name, node.Name),
	}
	fragment, err := it.filesystem.Produce(ctx, request)
	if err != nil {
		common.Debug("Scanning %s for %s: %v", source, node.Name, err)
		it.recorder.Record(compliance.MissingFragment, node.Name, "%s dependency metadata JSON file not found for project %s. Its dependencies will not be included in the SBOM.", ecosystem, node.Name)
		return Summary{}
	}
	summary := Summary{Attempted: 1}
	if it.merger.Merge(ctx, node, ids, fragment, documentPath) {
		summary.Merged = 1
	}
	return summary
}

// ImageArchive is the archive scanned for a container project.
func ImageArchive(node *project.Node) string {
	if len(node.ImageArchive) > 0 {
		return node.ImageArchive
	}
	return filepath.Join(node.Path, node.Name+ImageArchiveDefault)
}

// ScanImage writes the container image SBOM for a docker target. It returns
// the written path, or false when target is not a container project or the
// image could not be scanned. The image SBOM is never merged with the custom
// software SBOM.
func (it *Collector) ScanImage(ctx context.Context, target *project.Node) (string, bool) {
	if !target.HasFeature(DockerFeature) {
		return "", false
	}
	archive := ImageArchive(target)
	if !isFile(archive) {
		it.recorder.Record(compliance.MissingImage, target.Name, "Container image archive %q not found for %s. No container image SBOM will be generated.", archive, target.Name)
		return "", false
	}
	written, err := it.image.Produce(ctx, scanner.Request{
		Source: archive,
		Output: ImagePath(it.output, target.Name),
	})
	if errors.Is(err, scanner.ErrUnavailable) {
		it.recorder.Record(compliance.MissingImage, target.Name, "Scanning container image %q for %s produced no SBOM.", archive, target.Name)
		return "", false
	}
	if err != nil {
		common.Error("container image scan", err)
		return "", false
	}
	common.Log("Container image SBOM for %s saved to %s.", target.Name, written)
	return written, true
}

func isDir(where string) bool {
	if len(where) == 0 {
		return false
	}
	stat, err := os.Stat(where)
	return err == nil && stat.IsDir()
}

func isFile(where string) bool {
	if len(where) == 0 {
		return false
	}
	stat, err := os.Stat(where)
	return err == nil && !stat.IsDir()
}
