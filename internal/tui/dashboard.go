package tui

import (
	"fmt"
	"sort"
	"strings"

	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
)

// dashboardModel renders aggregate usage stats polled from /api/stats.
type dashboardModel struct {
	client   *Client
	viewport viewport.Model
	ready    bool
	err      error
	last     map[string]any
}

type dashboardDataMsg struct {
	stats map[string]any
	err   error
}

func newDashboardModel(client *Client) dashboardModel {
	return dashboardModel{client: client}
}

func (m dashboardModel) Init() tea.Cmd {
	return m.fetchData
}

func (m dashboardModel) fetchData() tea.Msg {
	stats, err := m.client.GetStats()
	return dashboardDataMsg{stats: stats, err: err}
}

func (m dashboardModel) Update(msg tea.Msg) (dashboardModel, tea.Cmd) {
	switch msg := msg.(type) {
	case dashboardDataMsg:
		if msg.err != nil {
			m.err = msg.err
			m.setContent(errorStyle.Render("error: " + msg.err.Error()))
			return m, nil
		}
		m.err = nil
		m.last = msg.stats
		m.setContent(m.render(msg.stats))
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

func (m *dashboardModel) setContent(s string) {
	if !m.ready {
		return
	}
	m.viewport.SetContent(s)
}

func (m *dashboardModel) SetSize(w, h int) {
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

func (m dashboardModel) View() string {
	if !m.ready {
		return "loading..."
	}
	return m.viewport.View()
}

func (m dashboardModel) render(stats map[string]any) string {
	var sb strings.Builder
	sb.WriteString(titleStyle.Render("Gateway usage"))
	sb.WriteString("\n")
	sb.WriteString(helpStyle.Render("press r to refresh, tab to switch views"))
	sb.WriteString("\n\n")

	if total, ok := stats["total"].(map[string]any); ok {
		sb.WriteString(labelStyle.Render("requests"))
		sb.WriteString(valueStyle.Render(fmt.Sprint(total["request_count"])))
		sb.WriteString("\n")
		sb.WriteString(labelStyle.Render("failures"))
		sb.WriteString(valueStyle.Render(fmt.Sprint(total["failure_count"])))
		sb.WriteString("\n")
		sb.WriteString(labelStyle.Render("total tokens"))
		sb.WriteString(valueStyle.Render(fmt.Sprint(total["total_tokens"])))
		sb.WriteString("\n\n")
	}

	buckets, _ := stats["buckets"].([]any)
	rows := make([]map[string]any, 0, len(buckets))
	for _, b := range buckets {
		if m, ok := b.(map[string]any); ok {
			rows = append(rows, m)
		}
	}
	sort.Slice(rows, func(i, j int) bool {
		return fmt.Sprint(rows[i]["provider"]) < fmt.Sprint(rows[j]["provider"])
	})

	sb.WriteString(tabActiveStyle.Render("provider") + " " + tabActiveStyle.Render("model") + "\n")
	for _, row := range rows {
		line := fmt.Sprintf("%-16s %-24s reqs=%v fail=%v tokens=%v",
			fmt.Sprint(row["provider"]), fmt.Sprint(row["model"]),
			row["request_count"], row["failure_count"], row["total_tokens"])
		sb.WriteString(valueStyle.Render(line))
		sb.WriteString("\n")
	}
	if len(rows) == 0 {
		sb.WriteString(helpStyle.Render("no traffic recorded yet"))
		sb.WriteString("\n")
	}
	return sb.String()
}
