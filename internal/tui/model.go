// Package tui renders the synchronized dashboard states in a terminal.
package tui

import (
	"context"
	"fmt"
	"strings"
	"time"

	"bot-dashboard/internal/domain"
	"bot-dashboard/internal/service"

	"github.com/charmbracelet/bubbles/table"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
)

const refreshEvery = time.Second

var (
	headerStyle = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("39")).Padding(0, 1)
	footerStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("245"))
	errorStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("9"))
	baseStyle   = lipgloss.NewStyle().
			BorderStyle(lipgloss.RoundedBorder()).
			BorderForeground(lipgloss.Color("240"))
)

// Source supplies the states to render.
type Source interface {
	States(ctx context.Context) []service.KeyedState
	RefreshAll(ctx context.Context) []service.KeyedState
}

type statesMsg struct {
	states    []service.KeyedState
	refreshed bool
}

type tickMsg time.Time

type Model struct {
	source     Source
	table      table.Model
	states     []service.KeyedState
	refreshing bool
	now        func() time.Time
	width      int
}

func NewModel(source Source) Model {
	columns := []table.Column{
		{Title: "Key", Width: 20},
		{Title: "Origin", Width: 11},
		{Title: "Stale", Width: 5},
		{Title: "Age", Width: 6},
		{Title: "Value", Width: 22},
		{Title: "Error", Width: 40},
	}
	t := table.New(
		table.WithColumns(columns),
		table.WithFocused(true),
		table.WithHeight(12),
	)
	styles := table.DefaultStyles()
	styles.Header = styles.Header.
		BorderStyle(lipgloss.NormalBorder()).
		BorderForeground(lipgloss.Color("240")).
		BorderBottom(true).
		Bold(true)
	styles.Selected = styles.Selected.
		Foreground(lipgloss.Color("229")).
		Background(lipgloss.Color("57"))
	t.SetStyles(styles)

	return Model{source: source, table: t, now: time.Now}
}

func (m Model) Init() tea.Cmd {
	return tea.Batch(m.load(), tick())
}

func tick() tea.Cmd {
	return tea.Tick(refreshEvery, func(t time.Time) tea.Msg { return tickMsg(t) })
}

func (m Model) load() tea.Cmd {
	return func() tea.Msg {
		return statesMsg{states: m.source.States(context.Background())}
	}
}

func (m Model) refreshAll() tea.Cmd {
	return func() tea.Msg {
		return statesMsg{states: m.source.RefreshAll(context.Background()), refreshed: true}
	}
}

func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch msg.String() {
		case "q", "ctrl+c":
			return m, tea.Quit
		case "r":
			if m.refreshing {
				return m, nil
			}
			m.refreshing = true
			return m, m.refreshAll()
		}
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.table.SetHeight(max(msg.Height-6, 3))
		return m, nil
	case tickMsg:
		return m, tea.Batch(m.load(), tick())
	case statesMsg:
		if msg.refreshed {
			m.refreshing = false
		}
		m.states = msg.states
		m.table.SetRows(m.rows())
		return m, nil
	}

	var cmd tea.Cmd
	m.table, cmd = m.table.Update(msg)
	return m, cmd
}

func (m Model) rows() []table.Row {
	now := m.now()
	rows := make([]table.Row, 0, len(m.states))
	for _, s := range m.states {
		rows = append(rows, Row(s, now))
	}
	return rows
}

// Row renders one state as table cells.
func Row(s service.KeyedState, now time.Time) table.Row {
	origin := string(s.Origin)
	if origin == "" {
		origin = "pending"
	}
	stale := ""
	if s.IsStale {
		stale = "yes"
	}
	age := "-"
	if s.Resolved() {
		age = s.Age(now).Truncate(time.Second).String()
	}
	return table.Row{s.Key.String(), origin, stale, age, Headline(s.Value), s.Error}
}

func (m Model) View() string {
	var b strings.Builder
	title := fmt.Sprintf("Bot dashboard | %d subscriptions | %s", len(m.states), m.now().Format("15:04:05"))
	b.WriteString(headerStyle.Render(title))
	b.WriteString("\n")
	b.WriteString(baseStyle.Render(m.table.View()))
	b.WriteString("\n")

	stale := 0
	for _, s := range m.states {
		if s.IsStale {
			stale++
		}
	}
	if stale > 0 {
		b.WriteString(errorStyle.Render(fmt.Sprintf("%d stale", stale)))
		b.WriteString("  ")
	}
	help := "r refresh all • q quit"
	if m.refreshing {
		help = "refreshing… • q quit"
	}
	b.WriteString(footerStyle.Render(help))
	return b.String()
}

// Headline is the one-cell summary of a resolved value.
func Headline(v any) string {
	switch val := v.(type) {
	case nil:
		return ""
	case *domain.Ticker:
		return val.Last
	case *domain.MarketAnalysis:
		return val.Trend
	case *domain.BotStatus:
		if val.Running {
			return "running"
		}
		if val.State != "" {
			return val.State
		}
		return "stopped"
	case domain.ConfigTree:
		if s, ok := val["activeStrategy"].(string); ok {
			return s
		}
		return fmt.Sprintf("%d settings", len(val))
	default:
		return fmt.Sprint(val)
	}
}
