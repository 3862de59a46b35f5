package sbom

import (
	"bytes"
	"encoding/json"
	"fmt"
	"sort"
)

const (
	BomFormat   = "CycloneDX"
	SpecVersion = "1.6"

	// MediaType is the media type for CycloneDX JSON documents.
	MediaType = "application/vnd.cyclonedx+json"

	TypeLibrary     = "library"
	TypeApplication = "application"
	TypeFile        = "file"
)

// Tool identifies the generator of a document.
type Tool struct {
	Name    string `json:"name"`
	Version string `json:"version"`
}

type Metadata struct {
	Timestamp string `json:"timestamp"`
	Tools     []Tool `json:"tools"`
}

// LicenseChoice is the "license" object of a CycloneDX license entry.
type LicenseChoice struct {
	BomRef          string          `json:"bom-ref,omitempty"`
	ID              string          `json:"id,omitempty"`
	Name            string          `json:"name,omitempty"`
	Acknowledgement string          `json:"acknowledgement,omitempty"`
	Text            json.RawMessage `json:"text,omitempty"`
	URL             string          `json:"url,omitempty"`
	Licensing       json.RawMessage `json:"licensing,omitempty"`
	Properties      json.RawMessage `json:"properties,omitempty"`
}

// License is one entry of a component's "licenses" array: either a license
// object or an SPDX expression.
type License struct {
	License         *LicenseChoice `json:"license,omitempty"`
	Expression      string         `json:"expression,omitempty"`
	Acknowledgement string         `json:"acknowledgement,omitempty"`
	BomRef          string         `json:"bom-ref,omitempty"`
}

func NamedLicense(name string) License {
	return License{License: &LicenseChoice{Name: name}}
}

// Component is a CycloneDX component. Keys this type does not model are kept
// when decoding and written back unchanged when encoding, so components taken
// from scanner output survive a merge intact.
type Component struct {
	BomRef   string    `json:"bom-ref"`
	Type     string    `json:"type"`
	Name     string    `json:"name"`
	Version  string    `json:"version,omitempty"`
	Licenses []License `json:"licenses,omitempty"`
	Purl     string    `json:"purl,omitempty"`

	extra   map[string]json.RawMessage
	present map[string]bool
}

type plainComponent Component

var componentKeys = []string{"bom-ref", "type", "name", "version", "licenses", "purl"}

func (it Component) MarshalJSON() ([]byte, error) {
	known, err := json.Marshal(plainComponent(it))
	if err != nil || len(it.extra) == 0 {
		return known, err
	}
	keys := make([]string, 0, len(it.extra))
	for key := range it.extra {
		keys = append(keys, key)
	}
	sort.Strings(keys)

	buffer := bytes.NewBuffer(make([]byte, 0, len(known)+64*len(keys)))
	buffer.Write(known[:len(known)-1])
	for _, key := range keys {
		name, err := json.Marshal(key)
		if err != nil {
			return nil, err
		}
		buffer.WriteByte(',')
		buffer.Write(name)
		buffer.WriteByte(':')
		buffer.Write(it.extra[key])
	}
	buffer.WriteByte('}')
	return buffer.Bytes(), nil
}

func (it *Component) UnmarshalJSON(content []byte) error {
	fields := make(map[string]json.RawMessage)
	if err := json.Unmarshal(content, &fields); err != nil {
		return err
	}
	var plain plainComponent
	if err := json.Unmarshal(content, &plain); err != nil {
		return err
	}
	*it = Component(plain)
	it.present = make(map[string]bool, len(fields))
	for key := range fields {
		it.present[key] = true
	}
	for _, key := range componentKeys {
		delete(fields, key)
	}
	if len(fields) > 0 {
		it.extra = fields
	}
	return nil
}

// declares reports whether a decoded component carried key. Components built
// in memory declare every modelled key that is set.
func (it *Component) declares(key string) bool {
	if it.present != nil {
		return it.present[key]
	}
	switch key {
	case "bom-ref":
		return len(it.BomRef) > 0
	case "type":
		return len(it.Type) > 0
	case "name":
		return len(it.Name) > 0
	}
	return false
}

// LicenseName returns the first license name, id or expression, if any.
func (it *Component) LicenseName() string {
	for _, license := range it.Licenses {
		switch {
		case license.License != nil && len(license.License.Name) > 0:
			return license.License.Name
		case license.License != nil && len(license.License.ID) > 0:
			return license.License.ID
		case len(license.Expression) > 0:
			return license.Expression
		}
	}
	return ""
}

// Dependency lists the bom-refs a component directly depends on.
type Dependency struct {
	Ref       string   `json:"ref"`
	DependsOn []string `json:"dependsOn"`
}

type plainDependency Dependency

// MarshalJSON always writes "dependsOn", as an empty array when there are no
// dependencies.
func (it Dependency) MarshalJSON() ([]byte, error) {
	if it.DependsOn == nil {
		it.DependsOn = []string{}
	}
	return json.Marshal(plainDependency(it))
}

// Document is a CycloneDX BOM as produced by this package.
type Document struct {
	BomFormat    string        `json:"bomFormat"`
	SpecVersion  string        `json:"specVersion"`
	Version      int           `json:"version"`
	Metadata     Metadata      `json:"metadata"`
	Components   []*Component  `json:"components"`
	Dependencies []*Dependency `json:"dependencies"`
}

// Refs returns the set of component bom-refs in the document.
func (it *Document) Refs() map[string]bool {
	result := make(map[string]bool, len(it.Components))
	for _, component := range it.Components {
		result[component.BomRef] = true
	}
	return result
}

// Component finds a component by bom-ref.
func (it *Document) Component(ref string) (*Component, bool) {
	for _, component := range it.Components {
		if component.BomRef == ref {
			return component, true
		}
	}
	return nil, false
}

// Dependency finds the dependency entry owned by ref.
func (it *Document) Dependency(ref string) (*Dependency, bool) {
	for _, dependency := range it.Dependencies {
		if dependency.Ref == ref {
			return dependency, true
		}
	}
	return nil, false
}

type documentKeys struct {
	Components   json.RawMessage `json:"components"`
	Dependencies json.RawMessage `json:"dependencies"`
}

func missing(raw json.RawMessage) bool {
	return len(raw) == 0 || string(raw) == "null"
}

// ParseDocument decodes an assembled document. Both the "components" and the
// "dependencies" keys are required.
func ParseDocument(content []byte) (*Document, error) {
	keys := documentKeys{}
	if err := json.Unmarshal(content, &keys); err != nil {
		return nil, fmt.Errorf("decoding SBOM document: %w", err)
	}
	if missing(keys.Components) {
		return nil, fmt.Errorf("SBOM document has no %q key", "components")
	}
	if missing(keys.Dependencies) {
		return nil, fmt.Errorf("SBOM document has no %q key", "dependencies")
	}
	document := &Document{}
	if err := json.Unmarshal(content, document); err != nil {
		return nil, fmt.Errorf("decoding SBOM document: %w", err)
	}
	return document, nil
}

// Fragment is the part of an externally produced document this package uses.
type Fragment struct {
	Components []*Component `json:"components"`
}

// ParseFragment decodes a fragment document. The "components" key is
// required; every component needs a "type", and every non-file component
// needs a "bom-ref".
func ParseFragment(content []byte) (*Fragment, error) {
	keys := documentKeys{}
	if err := json.Unmarshal(content, &keys); err != nil {
		return nil, fmt.Errorf("decoding fragment: %w", err)
	}
	if missing(keys.Components) {
		return nil, fmt.Errorf("fragment has no %q key", "components")
	}
	fragment := &Fragment{}
	if err := json.Unmarshal(content, fragment); err != nil {
		return nil, fmt.Errorf("decoding fragment: %w", err)
	}
	for index, component := range fragment.Components {
		if component == nil {
			return nil, fmt.Errorf("fragment component #%d is null", index)
		}
		if !component.declares("type") {
			return nil, fmt.Errorf("fragment component #%d (%s) has no %q key", index, component.Name, "type")
		}
		if component.Type != TypeFile && !component.declares("bom-ref") {
			return nil, fmt.Errorf("fragment component #%d (%s) has no %q key", index, component.Name, "bom-ref")
		}
	}
	return fragment, nil
}
