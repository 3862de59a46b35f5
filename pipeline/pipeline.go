// Package pipeline runs SBOM generation for target projects: assemble the
// custom software SBOM, fold in supplemental dependency metadata, and scan
// the container image. Targets run in parallel; the steps of one target run
// strictly in order against its own files.
package pipeline

import (
	"context"
	"errors"
	"fmt"

	"github.com/joshyorko/bomforge/anywork"
	"github.com/joshyorko/bomforge/common"
	"github.com/joshyorko/bomforge/compliance"
	"github.com/joshyorko/bomforge/project"
	"github.com/joshyorko/bomforge/sbom"
	"github.com/joshyorko/bomforge/scanner"
	"github.com/joshyorko/bomforge/supplement"
)

var errUnfinished = errors.New("target processing did not finish")

type Options struct {
	DocumentVersion int
	Output          string
	Defaults        sbom.Defaults
	Tool            sbom.Tool
	Filesystem      scanner.Producer
	Image           scanner.Producer
}

type Result struct {
	Project     string `json:"project"`
	Document    string `json:"document,omitempty"`
	Image       string `json:"image,omitempty"`
	Components  int    `json:"components"`
	Attempted   int    `json:"merges_attempted"`
	Merged      int    `json:"merges_succeeded"`
	Fingerprint string `json:"fingerprint,omitempty"`
	Error       string `json:"error,omitempty"`

	Err error `json:"-"`
}

func (it *Result) fail(err error) Result {
	it.Err = err
	it.Error = err.Error()
	return *it
}

type Pipeline struct {
	options   Options
	store     *sbom.Store
	builder   *sbom.Builder
	collector *supplement.Collector
}

func New(graph project.Graph, classifier project.Classifier, recorder compliance.Recorder, options Options) *Pipeline {
	if recorder == nil {
		recorder = compliance.Logging
	}
	if options.Filesystem == nil {
		options.Filesystem = scanner.NewCommandProducer(scanner.DefaultFilesystemTemplate)
	}
	if options.Image == nil {
		options.Image = scanner.NewCommandProducer(scanner.DefaultImageTemplate)
	}
	store := sbom.NewStore()
	resolver := sbom.NewResolver(graph, classifier, options.Defaults, recorder)
	merger := sbom.NewMerger(store, recorder)
	return &Pipeline{
		options:   options,
		store:     store,
		builder:   sbom.NewBuilder(graph, resolver),
		collector: supplement.NewCollector(classifier, options.Filesystem, options.Image, merger, recorder, options.Output),
	}
}

// Run processes every target and returns one result per target, in the
// order given. A failing target never stops the others.
func (it *Pipeline) Run(ctx context.Context, targets []*project.Node) []Result {
	results := make([]Result, len(targets))
	for at, target := range targets {
		results[at] = Result{Project: target.Name, Err: errUnfinished, Error: errUnfinished.Error()}
		anywork.Backlog(func() {
			results[at] = it.RunOne(ctx, target)
		})
	}
	if err := anywork.Sync(); err != nil {
		common.Error("sbom pipeline", err)
	}
	return results
}

// RunOne generates the SBOMs of a single target.
func (it *Pipeline) RunOne(ctx context.Context, target *project.Node) Result {
	stopwatch := common.Stopwatch("SBOM for %s took", target.Name)
	defer stopwatch.Debug()

	result := Result{Project: target.Name}
	if err := ctx.Err(); err != nil {
		return result.fail(err)
	}
	components, ids, err := it.builder.BuildComponents(target)
	if err != nil {
		return result.fail(fmt.Errorf("building components for %s: %w", target.Name, err))
	}
	document := sbom.Assemble(it.options.DocumentVersion, components, it.builder.BuildEdges(ids), it.options.Tool)
	result.Document = sbom.DocumentPath(it.options.Output, target.Name)
	err = it.store.Save(ctx, result.Document, document)
	if err != nil {
		return result.fail(fmt.Errorf("saving SBOM for %s: %w", target.Name, err))
	}
	common.Log("Initial custom software SBOM for %s saved to %s.", target.Name, result.Document)

	summary := it.collector.Collect(ctx, target, ids, result.Document)
	result.Attempted, result.Merged = summary.Attempted, summary.Merged

	if image, ok := it.collector.ScanImage(ctx, target); ok {
		result.Image = image
	}

	final, err := it.store.Load(ctx, result.Document)
	if err != nil {
		return result.fail(err)
	}
	result.Components = len(final.Components)
	result.Fingerprint, err = sbom.Fingerprint(final)
	if err != nil {
		return result.fail(err)
	}
	return result
}

// Failed counts results that carry an error.
func Failed(results []Result) int {
	count := 0
	for _, result := range results {
		if result.Err != nil {
			count++
		}
	}
	return count
}
