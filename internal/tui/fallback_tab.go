package tui

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
)

// fallbackTabModel lists virtual models and their fallback chains, polled
// from /api/fallback.
type fallbackTabModel struct {
	client   *Client
	viewport viewport.Model
	ready    bool
	err      error
	last     []map[string]any
}

type fallbackDataMsg struct {
	models []map[string]any
	err    error
}

func newFallbackTabModel(client *Client) fallbackTabModel {
	return fallbackTabModel{client: client}
}

func (m fallbackTabModel) Init() tea.Cmd {
	return m.fetchData
}

func (m fallbackTabModel) fetchData() tea.Msg {
	models, err := m.client.GetFallbackModels()
	return fallbackDataMsg{models: models, err: err}
}

func (m fallbackTabModel) Update(msg tea.Msg) (fallbackTabModel, tea.Cmd) {
	switch msg := msg.(type) {
	case fallbackDataMsg:
		if msg.err != nil {
			m.err = msg.err
			m.setContent(errorStyle.Render("error: " + msg.err.Error()))
			return m, nil
		}
		m.err = nil
		m.last = msg.models
		m.setContent(m.render(msg.models))
		return m, nil
	case tea.KeyMsg:
		if msg.String() == "r" {
			return m, m.fetchData
		}
	}
	var cmd tea.Cmd
	m.viewport, cmd = m.viewport.Update(msg)
	return m, cmd
}

func (m *fallbackTabModel) setContent(s string) {
	if m.ready {
		m.viewport.SetContent(s)
	}
}

func (m *fallbackTabModel) SetSize(w, h int) {
	if !m.ready {
		m.viewport = viewport.New(w, h)
		m.ready = true
	} else {
		m.viewport.Width = w
		m.viewport.Height = h
	}
	if m.last != nil {
		m.setContent(m.render(m.last))
	}
}

func (m fallbackTabModel) View() string {
	if !m.ready {
		return "loading..."
	}
	return m.viewport.View()
}

func (m fallbackTabModel) render(models []map[string]any) string {
	var sb strings.Builder
	sb.WriteString(titleStyle.Render("Virtual models"))
	sb.WriteString("\n\n")
	for _, vm := range models {
		name := fmt.Sprint(vm["name"])
		enabled := vm["is_enabled"]
		header := fmt.Sprintf("%s  enabled=%v  strategy=%v", name, enabled, vm["strategy"])
		if b, ok := enabled.(bool); ok && b {
			sb.WriteString(successStyle.Render(header))
		} else {
			sb.WriteString(warningStyle.Render(header))
		}
		sb.WriteString("\n")
		entries, _ := vm["entries"].([]any)
		for _, e := range entries {
			entry, ok := e.(map[string]any)
			if !ok {
				continue
			}
			line := fmt.Sprintf("  - %-14s %-24s priority=%v success_rate=%.2f cooling=%v",
				fmt.Sprint(entry["provider"]), fmt.Sprint(entry["model_id"]),
				entry["priority"], asFloat(entry["success_rate"]), entry["cooling"])
			sb.WriteString(valueStyle.Render(line))
			sb.WriteString("\n")
		}
	}
	if len(models) == 0 {
		sb.WriteString(helpStyle.Render("no virtual models configured"))
		sb.WriteString("\n")
	}
	return sb.String()
}

func asFloat(v any) float64 {
	f, _ := v.(float64)
	return f
}
