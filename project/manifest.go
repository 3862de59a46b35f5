package project

import (
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v2"
)

// Manifest is the on-disk description of the project graph.
type Manifest struct {
	Projects []*Node `yaml:"projects"`
}

// ParseManifest decodes manifest YAML. Unknown keys are errors, so typos in
// override names do not silently fall back to placeholder metadata.
func ParseManifest(content []byte) (*Manifest, error) {
	manifest := &Manifest{}
	err := yaml.UnmarshalStrict(content, manifest)
	if err != nil {
		return nil, fmt.Errorf("parsing project manifest: %w", err)
	}
	return manifest, nil
}

// LoadManifest reads filename and builds the project graph from it. Relative
// project paths are resolved against the manifest's directory; per-project
// folders and archives are resolved against the project path.
func LoadManifest(filename string, classifier Classifier) (*MemoryGraph, error) {
	content, err := os.ReadFile(filename)
	if err != nil {
		return nil, fmt.Errorf("reading project manifest: %w", err)
	}
	manifest, err := ParseManifest(content)
	if err != nil {
		return nil, err
	}
	base, err := filepath.Abs(filepath.Dir(filename))
	if err != nil {
		return nil, err
	}
	manifest.Anchor(base)
	return NewMemoryGraph(manifest.Projects, classifier)
}

// Anchor turns relative paths into absolute ones below base. Projects without
// a path live in base itself.
func (it *Manifest) Anchor(base string) {
	for _, node := range it.Projects {
		if node == nil {
			continue
		}
		node.Path = anchored(base, node.Path)
		if len(node.Path) == 0 {
			node.Path = base
		}
		node.BuildFolder = anchored(node.Path, node.BuildFolder)
		node.DependencyMetadataFolder = anchored(node.Path, node.DependencyMetadataFolder)
		node.ImageArchive = anchored(node.Path, node.ImageArchive)
	}
}

func anchored(base, location string) string {
	if len(location) == 0 || filepath.IsAbs(location) {
		return location
	}
	return filepath.Join(base, location)
}
