// Package project models the build's project graph as a read-only oracle:
// project nodes with their feature tags and metadata overrides, dependency
// lookups, and classification predicates.
package project

import (
	"sort"
)

// Node is one project of the build. Empty override fields mean "not provided".
type Node struct {
	Name     string   `yaml:"name"`
	Features []string `yaml:"features,omitempty"`
	Uses     []string `yaml:"use,omitempty"`

	Version string `yaml:"version,omitempty"`
	License string `yaml:"license,omitempty"`
	Purl    string `yaml:"purl,omitempty"`
	BomRef  string `yaml:"bom_ref,omitempty"`

	Path                     string `yaml:"path,omitempty"`
	BuildFolder              string `yaml:"build_folder,omitempty"`
	DependencyMetadataFolder string `yaml:"dependency_metadata_folder,omitempty"`
	ImageArchive             string `yaml:"image_archive,omitempty"`
}

func (it *Node) String() string {
	if it == nil {
		return "<nil>"
	}
	return it.Name
}

func (it *Node) HasFeature(name string) bool {
	for _, feature := range it.Features {
		if feature == name {
			return true
		}
	}
	return false
}

func (it *Node) HasAnyFeature(names ...string) bool {
	for _, name := range names {
		if it.HasFeature(name) {
			return true
		}
	}
	return false
}

// FeatureSet returns the feature tags as a set.
func (it *Node) FeatureSet() map[string]bool {
	result := make(map[string]bool, len(it.Features))
	for _, feature := range it.Features {
		result[feature] = true
	}
	return result
}

// SortedByName returns a copy of nodes ordered by name.
func SortedByName(nodes []*Node) []*Node {
	result := make([]*Node, len(nodes))
	copy(result, nodes)
	sort.SliceStable(result, func(left, right int) bool {
		return result[left].Name < result[right].Name
	})
	return result
}
