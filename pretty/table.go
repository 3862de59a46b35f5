package pretty

import (
	"os"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/table"
	"github.com/joshyorko/bomforge/common"
	"golang.org/x/term"
)

var (
	headerStyle = lipgloss.NewStyle().Bold(true).Padding(0, 1)
	cellStyle   = lipgloss.NewStyle().Padding(0, 1)
	titleStyle  = lipgloss.NewStyle().Bold(true).MarginTop(1)
)

// TerminalWidth falls back to 80 columns when stdout is not a terminal.
func TerminalWidth() int {
	width, _, err := term.GetSize(int(os.Stdout.Fd()))
	if err != nil || width <= 0 {
		common.Trace("Failed to get terminal width, using fallback: %v", err)
		return 80
	}
	return width
}

// Table renders rows under headers, fitted to at most width columns.
func Table(title string, width int, headers []string, rows [][]string) string {
	rendered := table.New().
		Border(lipgloss.RoundedBorder()).
		Headers(headers...).
		Rows(rows...).
		StyleFunc(func(row, col int) lipgloss.Style {
			if row == table.HeaderRow {
				return headerStyle
			}
			return cellStyle
		})
	if width > 0 {
		rendered = rendered.Width(width)
	}
	if len(title) == 0 {
		return rendered.Render()
	}
	return lipgloss.JoinVertical(lipgloss.Left, titleStyle.Render(title), rendered.Render())
}
