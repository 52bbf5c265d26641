package ui

import (
	"fmt"
	"io"
	"strings"

	"github.com/charmbracelet/lipgloss"
)

// ProgressBar renders done/total as a bar followed by a percentage.
// An empty list shows an empty bar at 0%.
func ProgressBar(done, total, width int) string {
	if width < 5 {
		width = 5
	}
	t := Current()
	if total <= 0 {
		return fmt.Sprintf("%s %3d%%", strings.Repeat(t.BarEmpty, width), 0)
	}
	done = min(max(done, 0), total)
	filled := done * width / total
	pct := done * 100 / total
	return fmt.Sprintf("%s %3d%%", strings.Repeat(t.BarFull, filled)+strings.Repeat(t.BarEmpty, width-filled), pct)
}

// Panel draws lines in a framed box using the current theme.
func Panel(w io.Writer, lines []string) {
	t := Current()
	maxw := 0
	for _, ln := range lines {
		maxw = max(maxw, lipgloss.Width(ln))
	}
	fmt.Fprintln(w, t.CornerTL+strings.Repeat(t.H, maxw+2)+t.CornerTR)
	for _, ln := range lines {
		pad := strings.Repeat(" ", maxw-lipgloss.Width(ln))
		fmt.Fprintln(w, t.V+" "+ln+pad+" "+t.V)
	}
	fmt.Fprintln(w, t.CornerBL+strings.Repeat(t.H, maxw+2)+t.CornerBR)
}
