package tui

import (
	"strings"

	"github.com/charmbracelet/lipgloss"
)

const (
	scrollbarThumb = "█"
	scrollbarTrack = "│"
)

var (
	scrollTrackStyle = lipgloss.NewStyle().Foreground(colorBorder)
	scrollThumbStyle = lipgloss.NewStyle().Foreground(colorBrandDim)
)

// renderScrollbar draws a rows-tall bar for a window starting at offset
// into total items. The thumb is proportional to rows/total.
func renderScrollbar(rows, total, offset int) string {
	if rows <= 0 {
		return ""
	}

	thumbSize, thumbPos := 0, 0
	if total > rows {
		thumbSize = min(max(rows*rows/total, 1), rows)
		ratio := min(max(float64(offset)/float64(total-rows), 0), 1)
		thumbPos = int(ratio * float64(rows-thumbSize))
	}

	lines := make([]string, rows)
	for i := range lines {
		if i >= thumbPos && i < thumbPos+thumbSize {
			lines[i] = scrollThumbStyle.Render(scrollbarThumb)
		} else {
			lines[i] = scrollTrackStyle.Render(scrollbarTrack)
		}
	}
	return strings.Join(lines, "\n")
}
