package cmd

import (
	"context"

	"github.com/joshyorko/bomforge/common"
	"github.com/joshyorko/bomforge/compliance"
	"github.com/joshyorko/bomforge/pretty"
	"github.com/joshyorko/bomforge/sbom"
	"github.com/spf13/cobra"
)

var mergeCmd = &cobra.Command{
	Use:   "merge <owner-ref> <fragment> <document>",
	Short: "Merge a scanned SBOM fragment into an existing SBOM document.",
	Long: `Merge a scanned SBOM fragment into an existing SBOM document.

Package components of the fragment that the document does not have yet are
added, and each of them becomes a direct dependency of the component whose
bom-ref is <owner-ref>. File components are skipped. Merging the same
fragment twice changes nothing the second time.

Example:
  bomforge merge Widgets sbom/Portal/WidgetsDependencyMetadataSbom.json sbom/Portal/CustomSoftwareSbom.json`,
	Args: cobra.ExactArgs(3),
	Run: func(cmd *cobra.Command, args []string) {
		if common.DebugFlag() {
			defer common.Stopwatch("Merge command lasted").Report()
		}
		ownerRef, fragment, document := args[0], args[1], args[2]
		merger := sbom.NewMerger(sbom.NewStore(), compliance.Logging)
		ok := merger.MergeRef(context.Background(), ownerRef, ownerRef, fragment, document)
		pretty.Guard(ok, 2, "Merging %q into %q failed.", fragment, document)
		pretty.Ok()
	},
}

func init() {
	rootCmd.AddCommand(mergeCmd)
}
