package cmd

import (
	"fmt"

	"github.com/joshyorko/bomforge/common"
	"github.com/joshyorko/bomforge/compliance"
	"github.com/joshyorko/bomforge/pipeline"
	"github.com/joshyorko/bomforge/pretty"
)

func shortened(text string, size int) string {
	if len(text) > size {
		return text[:size]
	}
	return text
}

func resultRows(results []pipeline.Result) [][]string {
	rows := make([][]string, 0, len(results))
	for _, result := range results {
		status := "ok"
		if result.Err != nil {
			status = result.Error
		}
		image := "-"
		if len(result.Image) > 0 {
			image = "yes"
		}
		rows = append(rows, []string{
			result.Project,
			fmt.Sprintf("%d", result.Components),
			fmt.Sprintf("%d/%d", result.Merged, result.Attempted),
			image,
			shortened(result.Fingerprint, 16),
			status,
		})
	}
	return rows
}

func tallyRows(tally []compliance.KindCount) [][]string {
	rows := make([][]string, 0, len(tally))
	for _, entry := range tally {
		rows = append(rows, []string{string(entry.Kind), fmt.Sprintf("%d", entry.Count)})
	}
	return rows
}

func showSummary(results []pipeline.Result, tally []compliance.KindCount) {
	if common.Silent() {
		return
	}
	width := pretty.TerminalWidth()
	common.Stdout("%s\n", pretty.Table("SBOM targets", width, []string{"Project", "Components", "Merged", "Image", "Fingerprint", "Status"}, resultRows(results)))
	if len(tally) > 0 {
		common.Stdout("%s\n", pretty.Table("Compliance warnings", 0, []string{"Kind", "Count"}, tallyRows(tally)))
	}
}
