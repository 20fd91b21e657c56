package ui

import (
	"bytes"
	"errors"
	"strings"
	"testing"

	"kernsync/pkg/machine"
	"kernsync/pkg/scenarios"

	tea "github.com/charmbracelet/bubbletea"
)

func TestPadRight(t *testing.T) {
	tests := []struct {
		in    string
		width int
		want  string
	}{
		{"ab", 4, "ab  "},
		{"abcd", 4, "abcd"},
		{"abcdef", 4, "abcdef"},
		{"", 2, "  "},
	}
	for _, tt := range tests {
		if got := padRight(tt.in, tt.width); got != tt.want {
			t.Errorf("padRight(%q, %d) = %q, want %q", tt.in, tt.width, got, tt.want)
		}
	}
}

func TestHighlightKeepsText(t *testing.T) {
	h := NewTranscriptHighlighter()
	lines := []string{
		"Thread thread 3 woke up.",
		"Main thread should have priority 32.  Actual priority: 32.",
		"PASS",
		"thread 0: duration=10, iteration=1, product=10",
	}
	for _, line := range lines {
		if got := h.Highlight(line); !strings.Contains(stripANSI(got), line) {
			t.Errorf("Highlight(%q) lost text: %q", line, got)
		}
	}
}

func TestReport(t *testing.T) {
	results := []scenarios.Result{
		{Name: "alarm-zero", Passed: true, Output: []string{"PASS"}},
		{
			Name:     "priority-change",
			Output:   []string{"got"},
			Expected: []string{"want"},
		},
		{Name: "priority-sema", Err: errors.New("kernel panic")},
	}

	var buf bytes.Buffer
	Report(&buf, results, false)
	out := stripANSI(buf.String())

	for _, want := range []string{
		"alarm-zero",
		"priority-change",
		"transcript mismatch",
		"expected:",
		"want",
		"kernel panic",
		"1/3 scenarios passed",
	} {
		if !strings.Contains(out, want) {
			t.Errorf("report missing %q:\n%s", want, out)
		}
	}
	if strings.Contains(out, "       PASS") {
		t.Errorf("passing transcript printed without verbose:\n%s", out)
	}
}

func TestModelRowsAndSelection(t *testing.T) {
	m := NewModel(machine.DefaultConfig())

	if got, want := len(m.table.Rows()), len(scenarios.Names()); got != want {
		t.Fatalf("rows = %d, want %d", got, want)
	}

	next, _ := m.Update(runFinishedMsg{results: []scenarios.Result{
		{Name: scenarios.Names()[0], Passed: true, Output: []string{"line"}},
	}})
	m = next.(Model)

	if m.running {
		t.Error("still running after results arrived")
	}
	if got := m.table.Rows()[0][1]; got != "PASS" {
		t.Errorf("status = %q, want PASS", got)
	}
	if got := m.table.Rows()[1][1]; got != "-" {
		t.Errorf("unrun status = %q, want -", got)
	}
}

func TestModelQuitAndToggles(t *testing.T) {
	m := NewModel(machine.DefaultConfig())

	next, _ := m.Update(tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune{'?'}})
	m = next.(Model)
	if !m.showHelp {
		t.Error("? did not toggle help")
	}

	next, _ = m.Update(tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune{'t'}})
	m = next.(Model)
	if !m.showTranscript {
		t.Error("t did not toggle transcript")
	}

	_, cmd := m.Update(tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune{'q'}})
	if cmd == nil {
		t.Fatal("q returned no command")
	}
	if _, ok := cmd().(tea.QuitMsg); !ok {
		t.Error("q did not quit")
	}
}

// stripANSI drops terminal escape sequences.
func stripANSI(s string) string {
	var b strings.Builder
	esc := false
	for _, r := range s {
		switch {
		case r == 0x1b:
			esc = true
		case esc:
			if (r >= 'a' && r <= 'z') || (r >= 'A' && r <= 'Z') {
				esc = false
			}
		default:
			b.WriteRune(r)
		}
	}
	return b.String()
}
