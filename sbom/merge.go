package sbom

import (
	"context"
	"fmt"
	"sync"

	"github.com/joshyorko/bomforge/common"
	"github.com/joshyorko/bomforge/compliance"
	"github.com/joshyorko/bomforge/project"
)

// MergeFragment appends the package components of fragment that doc does not
// already have, and lists each of them as a direct dependency of ownerRef.
// File components are dropped. Nesting inside the fragment is flattened:
// everything it contains becomes a direct dependency of the owner.
// It returns the refs that were added. On error doc is left untouched.
func MergeFragment(doc *Document, fragment *Fragment, ownerRef string) ([]string, error) {
	owner, ok := doc.Dependency(ownerRef)
	if !ok {
		return nil, fmt.Errorf("no dependency entry for %q in SBOM document", ownerRef)
	}

	known := doc.Refs()
	added := make([]string, 0, len(fragment.Components))
	for _, component := range fragment.Components {
		if component.Type == TypeFile {
			continue
		}
		if known[component.BomRef] {
			continue
		}
		doc.Components = append(doc.Components, component)
		known[component.BomRef] = true
		added = append(added, component.BomRef)
	}

	listed := make(map[string]bool, len(owner.DependsOn)+len(added))
	for _, ref := range owner.DependsOn {
		listed[ref] = true
	}
	if owner.DependsOn == nil {
		owner.DependsOn = []string{}
	}
	for _, ref := range added {
		if listed[ref] {
			continue
		}
		owner.DependsOn = append(owner.DependsOn, ref)
		listed[ref] = true
	}
	return added, nil
}

// Merger folds fragment files into document files. Merges into the same
// document are serialized; different documents merge independently.
type Merger struct {
	store    *Store
	recorder compliance.Recorder

	mu    sync.Mutex
	locks map[string]*sync.Mutex
}

func NewMerger(store *Store, recorder compliance.Recorder) *Merger {
	if recorder == nil {
		recorder = compliance.Logging
	}
	return &Merger{
		store:    store,
		recorder: recorder,
		locks:    make(map[string]*sync.Mutex),
	}
}

func (it *Merger) lock(target string) func() {
	it.mu.Lock()
	guard, ok := it.locks[target]
	if !ok {
		guard = &sync.Mutex{}
		it.locks[target] = guard
	}
	it.mu.Unlock()
	guard.Lock()
	return guard.Unlock
}

// Merge merges the fragment at fragmentPath into the document at targetPath on
// behalf of owner, whose bom-ref is looked up in ids. Failures are logged and
// recorded, never raised: the result only tells whether the merge happened.
func (it *Merger) Merge(ctx context.Context, owner *project.Node, ids *IdentifierMap, fragmentPath, targetPath string) bool {
	ref, ok := ids.Ref(owner)
	if !ok {
		it.failed(owner.Name, fmt.Errorf("project has no bom-ref in this SBOM"))
		return false
	}
	return it.MergeRef(ctx, owner.Name, ref, fragmentPath, targetPath)
}

// MergeRef is Merge for callers that already know the owner's bom-ref.
func (it *Merger) MergeRef(ctx context.Context, ownerName, ownerRef, fragmentPath, targetPath string) bool {
	defer it.lock(location(targetPath))()

	added, err := it.merge(ctx, ownerRef, fragmentPath, targetPath)
	if err != nil {
		it.failed(ownerName, err)
		return false
	}
	common.Log("Components and dependencies for %s merged into %s (%d new).", ownerName, targetPath, len(added))
	return true
}

func (it *Merger) merge(ctx context.Context, ownerRef, fragmentPath, targetPath string) ([]string, error) {
	fragment, err := it.store.LoadFragment(ctx, fragmentPath)
	if err != nil {
		return nil, err
	}
	document, err := it.store.Load(ctx, targetPath)
	if err != nil {
		return nil, err
	}
	added, err := MergeFragment(document, fragment, ownerRef)
	if err != nil {
		return nil, err
	}
	if err := it.store.Save(ctx, targetPath, document); err != nil {
		return nil, err
	}
	return added, nil
}

func (it *Merger) failed(ownerName string, err error) {
	it.recorder.Record(compliance.MergeFailed, ownerName, "Failed to merge components and dependencies for %s into the custom software SBOM: %v", ownerName, err)
}
