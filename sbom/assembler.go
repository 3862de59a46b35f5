package sbom

import (
	"time"
)

const (
	CustomSoftwareSbomName = "CustomSoftwareSbom.json"
	ContainerImageSbomName = "ContainerImageSbom.json"
)

// Assemble wraps components and edges into a document stamped with the
// current UTC time. version is the document revision; it is never derived
// from content and must be raised deliberately when an SBOM is revised.
func Assemble(version int, components []*Component, edges []*Dependency, tool Tool) *Document {
	return AssembleAt(time.Now(), version, components, edges, tool)
}

// AssembleAt is Assemble with an explicit creation time.
func AssembleAt(created time.Time, version int, components []*Component, edges []*Dependency, tool Tool) *Document {
	if components == nil {
		components = []*Component{}
	}
	if edges == nil {
		edges = []*Dependency{}
	}
	return &Document{
		BomFormat:   BomFormat,
		SpecVersion: SpecVersion,
		Version:     version,
		Metadata: Metadata{
			Timestamp: created.UTC().Format(time.RFC3339),
			Tools:     []Tool{tool},
		},
		Components:   components,
		Dependencies: edges,
	}
}
