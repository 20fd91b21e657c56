package ui

import (
	"regexp"

	"github.com/charmbracelet/lipgloss"
)

// TranscriptHighlighter colours the parts of a scenario transcript a reader
// scans for: thread names, priorities and tick counts.
type TranscriptHighlighter struct {
	rules []highlightRule
}

type highlightRule struct {
	re    *regexp.Regexp
	style lipgloss.Style
}

// NewTranscriptHighlighter returns a highlighter using the shared palette.
func NewTranscriptHighlighter() *TranscriptHighlighter {
	return &TranscriptHighlighter{
		rules: []highlightRule{
			{regexp.MustCompile(`\b(PASS|done\.?)`), lipgloss.NewStyle().Foreground(palette.Success).Bold(true)},
			{regexp.MustCompile(`\b[Pp]riority \d+`), lipgloss.NewStyle().Foreground(palette.Warning)},
			{regexp.MustCompile(`\b(thread|interloper) \d+`), lipgloss.NewStyle().Foreground(palette.Secondary)},
			{regexp.MustCompile(`\b\d+ ticks?\b`), lipgloss.NewStyle().Foreground(palette.Primary)},
		},
	}
}

// Highlight returns line with its interesting spans styled.
func (h *TranscriptHighlighter) Highlight(line string) string {
	for _, r := range h.rules {
		line = r.re.ReplaceAllStringFunc(line, func(s string) string { return r.style.Render(s) })
	}
	return line
}
