package sbom

import (
	"github.com/joshyorko/bomforge/common"
	"github.com/joshyorko/bomforge/compliance"
	"github.com/joshyorko/bomforge/project"
	"github.com/package-url/packageurl-go"
)

const (
	UnknownVersion            = "Unknown"
	UnknownThirdPartyLicense  = "Unknown Third-Party License"
	DefaultProprietaryLicense = "Proprietary"
	genericPackageURLType     = "generic"
)

// Defaults are the values first-party projects fall back to.
type Defaults struct {
	ProductVersion     string
	ProprietaryLicense string
}

// Resolver turns a project node into its SBOM component.
type Resolver struct {
	graph      project.Graph
	classifier project.Classifier
	defaults   Defaults
	recorder   compliance.Recorder
}

func NewResolver(graph project.Graph, classifier project.Classifier, defaults Defaults, recorder compliance.Recorder) *Resolver {
	if len(defaults.ProprietaryLicense) == 0 {
		defaults.ProprietaryLicense = DefaultProprietaryLicense
	}
	if recorder == nil {
		recorder = compliance.Logging
	}
	return &Resolver{
		graph:      graph,
		classifier: classifier,
		defaults:   defaults,
		recorder:   recorder,
	}
}

// referenced returns the project a default version project stands in for, or
// nil when node is not a default version project.
func (it *Resolver) referenced(node *project.Node) *project.Node {
	if !it.classifier.IsDefaultVersion(node) {
		return nil
	}
	immediate := it.graph.ImmediateDependencies(node)
	if len(immediate) != 1 {
		common.Debug("Default version project %s references %d projects; nothing to inherit.", node.Name, len(immediate))
		return nil
	}
	return immediate[0]
}

// Resolve builds the component for node: explicit overrides first, then values
// inherited from the referenced project of a default version project, then
// defaults. Third-party placeholders are recorded as compliance warnings.
func (it *Resolver) Resolve(node *project.Node) *Component {
	source := it.referenced(node)
	thirdParty := it.classifier.IsThirdParty(node)

	version := node.Version
	if len(version) == 0 && source != nil {
		version = source.Version
	}
	if len(version) == 0 {
		if thirdParty || len(it.defaults.ProductVersion) == 0 {
			it.recorder.Record(compliance.MissingVersion, node.Name, "No version number provided for project %s. A generic version number will be used, which likely will not meet security compliance requirements.", node.Name)
			version = UnknownVersion
		} else {
			version = it.defaults.ProductVersion
		}
	}

	license := node.License
	if len(license) == 0 && source != nil {
		license = source.License
	}
	if len(license) == 0 {
		if thirdParty {
			it.recorder.Record(compliance.MissingLicense, node.Name, "No license name provided for third-party project %s. A generic license name will be used, which likely will not meet security compliance requirements.", node.Name)
			license = UnknownThirdPartyLicense
		} else {
			license = it.defaults.ProprietaryLicense
		}
	}

	purl := node.Purl
	if len(purl) == 0 && source != nil {
		purl = source.Purl
	}
	if len(purl) == 0 && thirdParty {
		it.recorder.Record(compliance.MissingPurl, node.Name, "No package URL (PURL) provided for third-party project %s. A generic PURL will be used, which likely will not meet security compliance requirements.", node.Name)
		purl = GenericPurl(node.Name, version)
	}

	ref := node.BomRef
	if len(ref) == 0 {
		ref = node.Name
	}

	kind := TypeApplication
	if it.classifier.IsLibrary(node) {
		kind = TypeLibrary
	}

	return &Component{
		BomRef:   ref,
		Type:     kind,
		Name:     node.Name,
		Version:  version,
		Licenses: []License{NamedLicense(license)},
		Purl:     purl,
	}
}

// GenericPurl is the placeholder package URL for packages without a known
// ecosystem.
func GenericPurl(name, version string) string {
	return packageurl.NewPackageURL(genericPackageURLType, "", name, version, nil, "").ToString()
}
