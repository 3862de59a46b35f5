package cmd

import (
	"context"
	"encoding/json"
	"errors"

	"github.com/joshyorko/bomforge/common"
	"github.com/joshyorko/bomforge/pretty"
	"github.com/joshyorko/bomforge/sbom"
	"github.com/spf13/cobra"
)

type checkReport struct {
	Document    string   `json:"document"`
	Version     int      `json:"version"`
	Components  int      `json:"components"`
	Fingerprint string   `json:"fingerprint"`
	Problems    []string `json:"problems"`
}

func unjoined(err error) []string {
	result := []string{}
	if err == nil {
		return result
	}
	joined, ok := err.(interface{ Unwrap() []error })
	if !ok {
		return append(result, err.Error())
	}
	for _, each := range joined.Unwrap() {
		result = append(result, each.Error())
	}
	return result
}

var checkCmd = &cobra.Command{
	Use:   "check <document>",
	Short: "Verify an SBOM document and print its content fingerprint.",
	Long: `Verify an SBOM document and print its content fingerprint.

Checks that bom-refs are unique, every dependency entry and dependsOn ref
points at a component, no component is unreachable, and package URLs are
well formed. The fingerprint covers components and dependencies only, so
re-assembling with a bumped document version keeps it unchanged.`,
	Args: cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		document, err := sbom.NewStore().Load(context.Background(), args[0])
		pretty.Guard(err == nil, 1, "%v", err)
		fingerprint, err := sbom.Fingerprint(document)
		pretty.Guard(err == nil, 1, "%v", err)
		problems := sbom.Verify(document)

		report := checkReport{
			Document:    args[0],
			Version:     document.Version,
			Components:  len(document.Components),
			Fingerprint: fingerprint,
			Problems:    unjoined(problems),
		}
		if jsonFlag {
			nice, err := json.MarshalIndent(report, "", "  ")
			pretty.Guard(err == nil, 4, "%v", err)
			common.Stdout("%s\n", nice)
		} else {
			common.Log("Document %s: version %d, %d components.", report.Document, report.Version, report.Components)
			for _, problem := range report.Problems {
				pretty.Warning("%s", problem)
			}
			common.Stdout("%s\n", fingerprint)
		}
		if errors.Is(problems, sbom.ErrDuplicateRef) {
			pretty.Exit(3, "Document has duplicate bom-refs.")
		}
		pretty.Guard(problems == nil, 2, "Document has %d problem(s).", len(report.Problems))
		pretty.Ok()
	},
}

func init() {
	rootCmd.AddCommand(checkCmd)
	checkCmd.Flags().BoolVarP(&jsonFlag, "json", "j", false, "Output in JSON format.")
}
