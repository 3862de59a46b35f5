// Package sbom assembles CycloneDX Software Bills of Materials from a project
// graph and merges externally scanned fragment documents into them.
//
// Assembly resolves one component per project in the root's transitive
// closure, assigns each a unique bom-ref, and emits one dependency entry per
// component listing its immediate dependencies. Merging folds the package
// components of a fragment into an assembled document and lists them as direct
// dependencies of the project that owns them.
package sbom
