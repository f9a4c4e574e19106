package tui

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
)

// credentialsTabModel lists stored credentials (redacted) polled from /auth.
type credentialsTabModel struct {
	client   *Client
	viewport viewport.Model
	ready    bool
	err      error
	last     []map[string]any
}

type credentialsDataMsg struct {
	creds []map[string]any
	err   error
}

func newCredentialsTabModel(client *Client) credentialsTabModel {
	return credentialsTabModel{client: client}
}

func (m credentialsTabModel) Init() tea.Cmd {
	return m.fetchData
}

func (m credentialsTabModel) fetchData() tea.Msg {
	creds, err := m.client.GetCredentials()
	return credentialsDataMsg{creds: creds, err: err}
}

func (m credentialsTabModel) Update(msg tea.Msg) (credentialsTabModel, tea.Cmd) {
	switch msg := msg.(type) {
	case credentialsDataMsg:
		if msg.err != nil {
			m.err = msg.err
			m.setContent(errorStyle.Render("error: " + msg.err.Error()))
			return m, nil
		}
		m.err = nil
		m.last = msg.creds
		m.setContent(m.render(msg.creds))
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

func (m *credentialsTabModel) setContent(s string) {
	if m.ready {
		m.viewport.SetContent(s)
	}
}

func (m *credentialsTabModel) SetSize(w, h int) {
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

func (m credentialsTabModel) View() string {
	if !m.ready {
		return "loading..."
	}
	return m.viewport.View()
}

func (m credentialsTabModel) render(creds []map[string]any) string {
	var sb strings.Builder
	sb.WriteString(titleStyle.Render("Credentials"))
	sb.WriteString("\n\n")
	for _, cr := range creds {
		status := fmt.Sprint(cr["status"])
		line := fmt.Sprintf("%-14s %-28s %-10s disabled=%v quota=%v/%v",
			fmt.Sprint(cr["provider"]), fmt.Sprint(cr["id"]), status,
			cr["disabled"], cr["quota_used"], cr["quota_limit"])
		sb.WriteString(statusStyle(status).Render(line))
		sb.WriteString("\n")
	}
	if len(creds) == 0 {
		sb.WriteString(helpStyle.Render("no credentials stored yet"))
		sb.WriteString("\n")
	}
	return sb.String()
}
