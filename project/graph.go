package project

// Graph answers dependency questions about projects. Implementations are
// read-only for the duration of an SBOM run.
type Graph interface {
	// AllDependencies returns the transitive dependency closure of node,
	// excluding node itself.
	AllDependencies(node *Node) []*Node
	// ImmediateDependencies returns only the direct dependencies of node.
	ImmediateDependencies(node *Node) []*Node
}

// Classifier decides how a project is treated during metadata resolution.
type Classifier interface {
	IsThirdParty(node *Node) bool
	IsLibrary(node *Node) bool
	// IsDefaultVersion reports projects that carry no metadata of their own
	// and stand in for exactly one referenced project.
	IsDefaultVersion(node *Node) bool
}

// FeatureClassifier classifies projects by their feature tags.
type FeatureClassifier struct {
	ThirdParty     []string `mapstructure:"third_party"`
	Library        []string `mapstructure:"library"`
	DefaultVersion []string `mapstructure:"default_version"`
}

func DefaultClassifier() *FeatureClassifier {
	return &FeatureClassifier{
		ThirdParty: []string{"third_party"},
		Library: []string{
			"library",
			"static_library",
			"shared_library",
			"cstlib",
			"cshlib",
			"cxxstlib",
			"cxxshlib",
			"dot_net_library",
			"asp_net_library",
			"python_library",
			"javascript_library",
		},
		DefaultVersion: []string{"default_version"},
	}
}

func (it *FeatureClassifier) IsThirdParty(node *Node) bool {
	return node.HasAnyFeature(it.ThirdParty...)
}

func (it *FeatureClassifier) IsLibrary(node *Node) bool {
	return node.HasAnyFeature(it.Library...)
}

func (it *FeatureClassifier) IsDefaultVersion(node *Node) bool {
	return node.HasAnyFeature(it.DefaultVersion...)
}
