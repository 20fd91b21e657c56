package ui

import (
	"fmt"
	"io"
	"strings"
	"time"

	"kernsync/pkg/scenarios"

	"github.com/charmbracelet/lipgloss"
)

const splash = `
╔════════════════════════════════════════════════════╗
║                                                    ║
║   ██╗  ██╗███████╗██████╗ ███╗   ██╗               ║
║   ██║ ██╔╝██╔════╝██╔══██╗████╗  ██║               ║
║   █████╔╝ █████╗  ██████╔╝██╔██╗ ██║               ║
║   ██╔═██╗ ██╔══╝  ██╔══██╗██║╚██╗██║               ║
║   ██║  ██╗███████╗██║  ██║██║ ╚████║  sync         ║
║   ╚═╝  ╚═╝╚══════╝╚═╝  ╚═╝╚═╝  ╚═══╝               ║
║                                                    ║
║     semaphores · donation · condition variables    ║
╚════════════════════════════════════════════════════╝
`

// Splash returns the styled start-up banner.
func Splash() string {
	return lipgloss.NewStyle().
		Foreground(palette.Primary).
		Bold(true).
		Render(splash)
}

// Report writes one line per result and a summary. With verbose set the
// transcript of every scenario is included; failing scenarios always show
// theirs along with the expected transcript.
func Report(w io.Writer, results []scenarios.Result, verbose bool) {
	h := NewTranscriptHighlighter()
	width := 0
	for _, r := range results {
		width = max(width, len(r.Name))
	}

	passed := 0
	var total time.Duration
	for _, r := range results {
		total += r.Duration
		badge := failStyle.Render("FAIL")
		if r.Passed {
			badge = passStyle.Render("PASS")
			passed++
		}
		fmt.Fprintf(w, "%s %s %s\n", badge, padRight(r.Name, width),
			mutedStyle.Render(fmt.Sprintf("%d ticks, %v", r.Stats.Ticks, r.Duration.Round(time.Microsecond))))

		if !r.Passed {
			fmt.Fprintf(w, "     %s\n", errorTextStyle.Render(r.Summary()))
		}
		if verbose || !r.Passed {
			writeLines(w, h, "output", r.Output)
		}
		if !r.Passed && r.Expected != nil {
			writeLines(w, h, "expected", r.Expected)
		}
	}

	summary := fmt.Sprintf("%d/%d scenarios passed in %v", passed, len(results), total.Round(time.Millisecond))
	if passed == len(results) {
		fmt.Fprintln(w, "\n"+passStyle.Render(summary))
	} else {
		fmt.Fprintln(w, "\n"+failStyle.Render(summary))
	}
}

func writeLines(w io.Writer, h *TranscriptHighlighter, label string, lines []string) {
	fmt.Fprintf(w, "     %s\n", labelStyle.Render(label+":"))
	for _, line := range lines {
		fmt.Fprintf(w, "       %s\n", h.Highlight(line))
	}
}

// padRight pads s with spaces to width runes.
func padRight(s string, width int) string {
	if n := len([]rune(s)); n < width {
		return s + strings.Repeat(" ", width-n)
	}
	return s
}
