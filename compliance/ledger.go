// Package compliance records placeholder and missing-input conditions found
// while assembling SBOMs. These are not errors: the run continues, but the
// resulting document is known to fall short of compliance requirements, and
// release automation can gate on an empty ledger.
package compliance

import (
	"fmt"
	"sort"
	"sync"

	"github.com/joshyorko/bomforge/common"
)

type Kind string

const (
	MissingVersion        Kind = "missing-version"
	MissingLicense        Kind = "missing-license"
	MissingPurl           Kind = "missing-purl"
	MissingBuildFolder    Kind = "missing-build-folder"
	MissingLockFile       Kind = "missing-lock-file"
	MissingMetadataFolder Kind = "missing-metadata-folder"
	MissingFragment       Kind = "missing-fragment"
	MergeFailed           Kind = "merge-failed"
	MissingImage          Kind = "missing-image"
)

type Warning struct {
	Kind    Kind   `json:"kind"`
	Project string `json:"project"`
	Message string `json:"message"`
}

// Recorder is what producers of compliance warnings depend on.
type Recorder interface {
	Record(kind Kind, project string, format string, details ...interface{})
}

type Ledger struct {
	mu       sync.Mutex
	warnings []Warning
	quiet    bool
}

func NewLedger() *Ledger {
	return &Ledger{
		warnings: make([]Warning, 0, 16),
	}
}

// Quiet stops the ledger from echoing warnings to the log.
func (it *Ledger) Quiet() *Ledger {
	it.quiet = true
	return it
}

func (it *Ledger) Record(kind Kind, project string, format string, details ...interface{}) {
	warning := Warning{
		Kind:    kind,
		Project: project,
		Message: fmt.Sprintf(format, details...),
	}
	it.mu.Lock()
	it.warnings = append(it.warnings, warning)
	it.mu.Unlock()
	if !it.quiet {
		common.Warning("[%s] %s", kind, warning.Message)
	}
}

func (it *Ledger) Count() int {
	it.mu.Lock()
	defer it.mu.Unlock()
	return len(it.warnings)
}

func (it *Ledger) Warnings() []Warning {
	it.mu.Lock()
	defer it.mu.Unlock()
	result := make([]Warning, len(it.warnings))
	copy(result, it.warnings)
	return result
}

func (it *Ledger) Of(kind Kind) []Warning {
	result := make([]Warning, 0, 4)
	for _, warning := range it.Warnings() {
		if warning.Kind == kind {
			result = append(result, warning)
		}
	}
	return result
}

// Tally counts warnings per kind, ordered by kind name.
func (it *Ledger) Tally() []KindCount {
	counts := make(map[Kind]int)
	for _, warning := range it.Warnings() {
		counts[warning.Kind]++
	}
	result := make([]KindCount, 0, len(counts))
	for kind, count := range counts {
		result = append(result, KindCount{Kind: kind, Count: count})
	}
	sort.Slice(result, func(left, right int) bool {
		return result[left].Kind < result[right].Kind
	})
	return result
}

type KindCount struct {
	Kind  Kind `json:"kind"`
	Count int  `json:"count"`
}

// Discard is a Recorder that drops everything.
var Discard Recorder = discard{}

type discard struct{}

func (discard) Record(Kind, string, string, ...interface{}) {}

// Logging is a Recorder that only writes warnings to the log.
var Logging Recorder = logging{}

type logging struct{}

func (logging) Record(kind Kind, project string, format string, details ...interface{}) {
	common.Warning("[%s] %s", kind, fmt.Sprintf(format, details...))
}
