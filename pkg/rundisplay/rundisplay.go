// Package rundisplay renders the human-readable run summary printed once
// at the end of a batch (recipes built/skipped/failed, bytes reclaimed).
// Grounded on pi/pkg/cli/theme.go's lipgloss-styled terminal theme, stripped
// of its interactive-REPL coloring concerns (Bubbletea is not carried
// forward — see DESIGN.md) and kept only as the final, non-interactive
// status-line styling layer.
package rundisplay

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"
)

var (
	boldStyle   = lipgloss.NewStyle().Bold(true)
	greenStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("2"))
	yellowStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("3"))
	redStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("1"))
	dimStyle    = lipgloss.NewStyle().Faint(true)
)

// Summary collects the counters a run boundary reports once, independent
// of the structured slog lines each stage already emitted.
type Summary struct {
	RunID        string
	Total        int
	Built        int
	AlreadyBuilt int
	Failed       []string
	Reclaimed    string
}

// Render produces the final multi-line block main prints to stderr after
// the orchestrator returns.
func (s Summary) Render() string {
	var b strings.Builder

	fmt.Fprintf(&b, "%s %s\n", boldStyle.Render("Run"), dimStyle.Render(s.RunID))
	fmt.Fprintf(&b, "  %s %d\n", dimStyle.Render("recipes:"), s.Total)
	fmt.Fprintf(&b, "  %s %s\n", dimStyle.Render("built:"), greenStyle.Render(fmt.Sprintf("%d", s.Built)))
	fmt.Fprintf(&b, "  %s %s\n", dimStyle.Render("already built:"), fmt.Sprintf("%d", s.AlreadyBuilt))

	if len(s.Failed) > 0 {
		fmt.Fprintf(&b, "  %s %s\n", redStyle.Render("failed:"), strings.Join(s.Failed, ", "))
	} else {
		fmt.Fprintf(&b, "  %s\n", yellowStyle.Render("no failures"))
	}

	if s.Reclaimed != "" {
		fmt.Fprintf(&b, "  %s %s\n", dimStyle.Render("reclaimed:"), s.Reclaimed)
	}

	return b.String()
}
