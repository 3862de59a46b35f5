package sbom

import (
	"encoding/json"
	"errors"
	"fmt"

	"github.com/dchest/siphash"
	"github.com/package-url/packageurl-go"
)

const (
	fingerprintKey0 = 0x626f6d666f726765
	fingerprintKey1 = 0x6465706772617068
)

// Verify checks the structural invariants of a finished document: unique
// bom-refs, at most one dependency entry per ref, no dangling refs, no
// unreachable components and well formed package URLs. Merged fragment
// components have no entry of their own; their owner's dependsOn reaches
// them. All violations are reported together.
func Verify(document *Document) error {
	problems := make([]error, 0, 4)
	components := make(map[string]int, len(document.Components))
	for _, component := range document.Components {
		components[component.BomRef]++
		if components[component.BomRef] == 2 {
			problems = append(problems, fmt.Errorf("%w: %q appears more than once in components", ErrDuplicateRef, component.BomRef))
		}
		if component.declares("purl") || len(component.Purl) > 0 {
			if _, err := packageurl.FromString(component.Purl); err != nil {
				problems = append(problems, fmt.Errorf("component %q has invalid purl %q: %v", component.BomRef, component.Purl, err))
			}
		}
	}
	edges := make(map[string]int, len(document.Dependencies))
	reached := make(map[string]bool, len(document.Components))
	for _, dependency := range document.Dependencies {
		edges[dependency.Ref]++
		if edges[dependency.Ref] == 2 {
			problems = append(problems, fmt.Errorf("dependency entry for %q appears more than once", dependency.Ref))
		}
		if components[dependency.Ref] == 0 {
			problems = append(problems, fmt.Errorf("dependency entry %q has no component", dependency.Ref))
		}
		for _, target := range dependency.DependsOn {
			reached[target] = true
			if components[target] == 0 {
				problems = append(problems, fmt.Errorf("%q depends on unknown component %q", dependency.Ref, target))
			}
		}
	}
	for _, component := range document.Components {
		if edges[component.BomRef] == 0 && !reached[component.BomRef] {
			problems = append(problems, fmt.Errorf("component %q has no dependency entry and nothing depends on it", component.BomRef))
		}
	}
	return errors.Join(problems...)
}

// Fingerprint digests components and dependencies only. Raising the document
// version or re-assembling at another time leaves it unchanged.
func Fingerprint(document *Document) (string, error) {
	content, err := json.Marshal(struct {
		Components   []*Component  `json:"components"`
		Dependencies []*Dependency `json:"dependencies"`
	}{
		Components:   document.Components,
		Dependencies: document.Dependencies,
	})
	if err != nil {
		return "", err
	}
	high, low := siphash.Hash128(fingerprintKey0, fingerprintKey1, content)
	return fmt.Sprintf("%016x%016x", high, low), nil
}
