package cmd

import (
	"context"
	"encoding/json"

	"github.com/joshyorko/bomforge/common"
	"github.com/joshyorko/bomforge/compliance"
	"github.com/joshyorko/bomforge/pipeline"
	"github.com/joshyorko/bomforge/pretty"
	"github.com/joshyorko/bomforge/project"
	"github.com/joshyorko/bomforge/scanner"
	"github.com/joshyorko/bomforge/settings"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
)

const documentVersionFlag = "sbom_document_version"

var (
	noScanFlag bool
	strictFlag bool
)

type sbomReport struct {
	Results    []pipeline.Result      `json:"results"`
	Compliance []compliance.KindCount `json:"compliance"`
	Warnings   []compliance.Warning   `json:"warnings"`
}

// selectTargets returns the named projects, or every root project that is
// not a library.
func selectTargets(graph *project.MemoryGraph, classifier project.Classifier, names []string) ([]*project.Node, error) {
	if len(names) > 0 {
		return graph.Lookup(names...)
	}
	result := make([]*project.Node, 0, 4)
	for _, root := range graph.Roots() {
		if !classifier.IsLibrary(root) {
			result = append(result, root)
		}
	}
	return result, nil
}

var sbomCmd = &cobra.Command{
	Use:   "sbom [targets...]",
	Short: "Generate CycloneDX SBOMs for target projects.",
	Long: `Generate CycloneDX SBOMs for target projects.

For every target this writes <output>/<target>/CustomSoftwareSbom.json, which
lists the target and all of its dependencies, then merges scanned .NET and
JavaScript dependency metadata into it. Targets with the "docker" feature
also get <output>/<target>/ContainerImageSbom.json from their image archive.

When no targets are given, every application project that nothing else
depends on is a target.

Increase --sbom_document_version whenever an SBOM is revised for an already
released artifact.

Examples:
  bomforge sbom --manifest projects.yaml --product-version 2.3.0
  bomforge sbom Portal --sbom_document_version 2 --strict
  bomforge sbom --no-scan --json`,
	Run: func(cmd *cobra.Command, args []string) {
		defer common.Stopwatch("SBOM command lasted").Report()

		current := settings.Global
		classifier := current.Classifier()
		graph, err := project.LoadManifest(current.Manifest, classifier)
		pretty.Guard(err == nil, 1, "Could not load project manifest %q: %v", current.Manifest, err)
		pretty.Guard(current.DocumentVersion > 0, 1, "SBOM document version must be positive, not %d.", current.DocumentVersion)

		targets, err := selectTargets(graph, classifier, args)
		pretty.Guard(err == nil, 1, "%v", err)
		pretty.Guard(len(targets) > 0, 1, "No target projects found in %q.", current.Manifest)

		options := pipeline.Options{
			DocumentVersion: current.DocumentVersion,
			Output:          current.OutputDirectory,
			Defaults:        current.Defaults(),
			Tool:            current.SbomTool(),
			Filesystem:      scanner.NewCommandProducer(current.Scanner.Filesystem),
			Image:           scanner.NewCommandProducer(current.Scanner.Image),
		}
		if noScanFlag {
			options.Filesystem, options.Image = scanner.Prebuilt{}, scanner.Prebuilt{}
		}
		if len(current.ProductVersion) == 0 {
			pretty.Warning("No product version configured; first-party projects get version %q.", "Unknown")
		}

		ledger := compliance.NewLedger()
		if jsonFlag {
			ledger.Quiet()
		}
		results := pipeline.New(graph, classifier, ledger, options).Run(context.Background(), targets)
		common.WaitLogs()

		if jsonFlag {
			nice, err := json.MarshalIndent(sbomReport{
				Results:    results,
				Compliance: ledger.Tally(),
				Warnings:   ledger.Warnings(),
			}, "", "  ")
			pretty.Guard(err == nil, 4, "%v", err)
			common.Stdout("%s\n", nice)
		} else {
			showSummary(results, ledger.Tally())
		}

		failed := pipeline.Failed(results)
		pretty.Guard(failed == 0, 2, "SBOM generation failed for %d of %d target(s).", failed, len(results))
		pretty.Guard(!strictFlag || ledger.Count() == 0, 3, "Strict mode: %d compliance warning(s) found.", ledger.Count())
		pretty.Ok()
	},
}

func documentVersionAlias(flags *pflag.FlagSet, name string) pflag.NormalizedName {
	if name == "document-version" {
		name = documentVersionFlag
	}
	return pflag.NormalizedName(name)
}

func init() {
	rootCmd.AddCommand(sbomCmd)
	flags := sbomCmd.Flags()
	flags.SetNormalizeFunc(documentVersionAlias)
	flags.StringP("manifest", "m", "projects.yaml", "Project manifest describing the project graph.")
	flags.Int(documentVersionFlag, 1, "Version of the SBOM document itself, stored in its metadata. Increment when revising an SBOM for the same artifact.")
	flags.String("product-version", "", "Version given to first-party projects without their own version.")
	flags.StringP("output", "o", "sbom", "Directory where SBOMs are written, one subdirectory per target.")
	flags.BoolVar(&noScanFlag, "no-scan", false, "Do not run scanners; merge fragments already present in the output directory.")
	flags.BoolVar(&strictFlag, "strict", false, "Fail when any compliance warning was recorded.")
	flags.BoolVarP(&jsonFlag, "json", "j", false, "Output results in JSON format.")

	bindSetting(settings.ManifestKey, flags.Lookup("manifest"))
	bindSetting(settings.DocumentVersionKey, flags.Lookup(documentVersionFlag))
	bindSetting(settings.ProductVersionKey, flags.Lookup("product-version"))
	bindSetting(settings.OutputDirectoryKey, flags.Lookup("output"))
}
