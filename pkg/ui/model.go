// Package ui renders scenario results: a styled report for the command line
// and an interactive runner built on bubbletea.
package ui

import (
	"context"
	"fmt"
	"strings"
	"time"

	"kernsync/pkg/machine"
	"kernsync/pkg/scenarios"

	"github.com/charmbracelet/bubbles/help"
	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/bubbles/table"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
)

// Model is the interactive scenario runner.
type Model struct {
	cfg        machine.Config
	suite      []scenarios.Scenario
	results    map[string]scenarios.Result
	table      table.Model
	transcript viewport.Model
	spinner    spinner.Model
	help       help.Model
	highlight  *TranscriptHighlighter

	width          int
	height         int
	running        bool
	showHelp       bool
	showTranscript bool
	showStats      bool
	lastErr        error
	lastRun        time.Duration
	keys           keyMap
}

// runFinishedMsg carries the results of one batch of scenario runs.
type runFinishedMsg struct {
	results []scenarios.Result
	err     error
	elapsed time.Duration
}

// NewModel returns a runner over every registered scenario, booting each
// run with cfg.
func NewModel(cfg machine.Config) Model {
	t := table.New(
		table.WithColumns(columns(80)),
		table.WithFocused(true),
		table.WithHeight(12),
	)

	s := table.DefaultStyles()
	s.Header = s.Header.
		BorderStyle(lipgloss.NormalBorder()).
		BorderForeground(palette.Primary).
		BorderBottom(true).
		Bold(true).
		Foreground(palette.Primary)
	s.Selected = s.Selected.
		Foreground(lipgloss.Color("#0F172A")).
		Background(palette.Secondary).
		Bold(false)
	t.SetStyles(s)

	vp := viewport.New(80, 10)
	vp.Style = transcriptStyle

	sp := spinner.New()
	sp.Spinner = spinner.Points
	sp.Style = lipgloss.NewStyle().Foreground(palette.Primary)

	m := Model{
		cfg:        cfg,
		suite:      scenarios.All(),
		results:    make(map[string]scenarios.Result),
		table:      t,
		transcript: vp,
		spinner:    sp,
		help:       help.New(),
		highlight:  NewTranscriptHighlighter(),
		keys:       keys,
	}
	m.refreshRows()
	return m
}

func columns(width int) []table.Column {
	name := max(24, width-60)
	return []table.Column{
		{Title: "Scenario", Width: name},
		{Title: "Status", Width: 8},
		{Title: "Ticks", Width: 8},
		{Title: "Switches", Width: 10},
		{Title: "Time", Width: 10},
	}
}

func (m Model) Init() tea.Cmd {
	return m.spinner.Tick
}

func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	var cmds []tea.Cmd

	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		m.updateLayout()

	case tea.KeyMsg:
		if key.Matches(msg, m.keys.Quit) {
			return m, tea.Quit
		}
		if m.running {
			return m, nil
		}

		switch {
		case key.Matches(msg, m.keys.Run):
			if row := m.table.SelectedRow(); row != nil {
				m.running = true
				return m, m.runScenarios([]string{row[0]})
			}

		case key.Matches(msg, m.keys.RunAll):
			m.running = true
			return m, m.runScenarios(nil)

		case key.Matches(msg, m.keys.Transcript):
			m.showTranscript = !m.showTranscript
			m.updateTranscript()

		case key.Matches(msg, m.keys.Stats):
			m.showStats = !m.showStats

		case key.Matches(msg, m.keys.Help):
			m.showHelp = !m.showHelp

		default:
			var cmd tea.Cmd
			m.table, cmd = m.table.Update(msg)
			m.updateTranscript()
			cmds = append(cmds, cmd)
		}

	case runFinishedMsg:
		m.running = false
		m.lastErr = msg.err
		m.lastRun = msg.elapsed
		for _, r := range msg.results {
			m.results[r.Name] = r
		}
		m.refreshRows()
		m.updateTranscript()

	case spinner.TickMsg:
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		cmds = append(cmds, cmd)
	}

	if m.showTranscript {
		var cmd tea.Cmd
		m.transcript, cmd = m.transcript.Update(msg)
		cmds = append(cmds, cmd)
	}

	return m, tea.Batch(cmds...)
}

func (m Model) View() string {
	if m.width == 0 {
		return "Booting..."
	}

	var sections []string
	sections = append(sections, m.renderHeader())
	sections = append(sections, m.table.View())

	if m.showTranscript {
		sections = append(sections, m.transcript.View())
	}
	if m.showStats {
		sections = append(sections, m.renderStats())
	}
	if m.lastErr != nil {
		sections = append(sections, errorTextStyle.Render("✗ "+m.lastErr.Error()))
	}

	sections = append(sections, m.renderStatusBar())

	if m.showHelp {
		sections = append(sections, helpBoxStyle.Render(m.help.FullHelpView(m.keys.FullHelp())))
	} else {
		sections = append(sections, m.help.ShortHelpView(m.keys.ShortHelp()))
	}

	return appStyle.Render(lipgloss.JoinVertical(lipgloss.Left, sections...))
}

func (m *Model) updateLayout() {
	w := max(40, m.width-6)
	m.table.SetColumns(columns(w))
	m.table.SetWidth(w)
	m.transcript.Width = w
	m.transcript.Height = max(5, m.height/3)
	m.help.Width = w
}

// runScenarios runs names (all when empty) off the UI goroutine.
func (m Model) runScenarios(names []string) tea.Cmd {
	cfg := m.cfg
	return func() tea.Msg {
		started := time.Now()
		results, err := scenarios.RunAll(context.Background(), cfg, names)
		return runFinishedMsg{results: results, err: err, elapsed: time.Since(started)}
	}
}

func (m *Model) refreshRows() {
	rows := make([]table.Row, len(m.suite))
	for i, s := range m.suite {
		r, ok := m.results[s.Name]
		if !ok {
			rows[i] = table.Row{s.Name, "-", "-", "-", "-"}
			continue
		}
		status := "FAIL"
		if r.Passed {
			status = "PASS"
		}
		rows[i] = table.Row{
			s.Name,
			status,
			fmt.Sprintf("%d", r.Stats.Ticks),
			fmt.Sprintf("%d", r.Stats.Switches),
			r.Duration.Round(time.Microsecond).String(),
		}
	}
	m.table.SetRows(rows)
}

func (m *Model) selected() (scenarios.Scenario, bool) {
	row := m.table.SelectedRow()
	if row == nil {
		return scenarios.Scenario{}, false
	}
	return scenarios.Lookup(row[0])
}

func (m *Model) updateTranscript() {
	s, ok := m.selected()
	if !ok {
		m.transcript.SetContent("")
		return
	}
	r, ran := m.results[s.Name]
	if !ran {
		m.transcript.SetContent(mutedStyle.Render(s.Description + "\n\nnot run yet"))
		return
	}

	var b strings.Builder
	for _, line := range r.Output {
		b.WriteString(m.highlight.Highlight(line))
		b.WriteByte('\n')
	}
	for _, f := range r.Failures {
		b.WriteString(errorTextStyle.Render("check failed: " + f))
		b.WriteByte('\n')
	}
	if r.Err != nil {
		b.WriteString(errorTextStyle.Render(r.Err.Error()))
		b.WriteByte('\n')
	}
	m.transcript.SetContent(b.String())
	m.transcript.GotoTop()
}

func (m Model) renderHeader() string {
	title := titleStyle.Render("kernsync")
	clock := badgeStyle.Render(fmt.Sprintf("%s clock · %d Hz", m.cfg.Clock, m.cfg.TimerFreq))
	return lipgloss.JoinHorizontal(lipgloss.Center, title, " ", clock) + "\n"
}

func (m Model) renderStats() string {
	s, ok := m.selected()
	if !ok {
		return ""
	}
	r, ran := m.results[s.Name]
	if !ran {
		return mutedStyle.Render("no statistics yet")
	}
	return labelStyle.Render("Machine: ") + r.Stats.String()
}

func (m Model) renderStatusBar() string {
	if m.running {
		return statusBarStyle.Render(m.spinner.View() + " running scenarios...")
	}

	passed, failed := 0, 0
	for _, r := range m.results {
		if r.Passed {
			passed++
		} else {
			failed++
		}
	}
	status := fmt.Sprintf("%d/%d run · %d passed · %d failed", len(m.results), len(m.suite), passed, failed)
	if m.lastRun > 0 {
		status += fmt.Sprintf(" · last run %v", m.lastRun.Round(time.Millisecond))
	}
	return statusBarStyle.Foreground(textPrimary).Render(status)
}
