package tui

import (
	"os"

	tea "github.com/charmbracelet/bubbletea"
)

const (
	tabDashboard = iota
	tabCredentials
	tabFallback
)

var tabNames = []string{"dashboard", "credentials", "fallback"}

// App is the root bubbletea model; it owns one sub-model per tab and routes
// messages to whichever is active.
type App struct {
	activeTab int

	dashboard   dashboardModel
	credentials credentialsTabModel
	fallback    fallbackTabModel

	client *Client

	width  int
	height int
	ready  bool
}

// NewApp builds the root TUI model against the gateway's management API.
func NewApp(host string, port int, secretKey string) App {
	client := NewClient(host, port, secretKey)
	return App{
		dashboard:   newDashboardModel(client),
		credentials: newCredentialsTabModel(client),
		fallback:    newFallbackTabModel(client),
		client:      client,
	}
}

func (a App) Init() tea.Cmd {
	return tea.Batch(a.dashboard.Init(), a.credentials.Init(), a.fallback.Init())
}

func (a App) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		a.width = msg.Width
		a.height = msg.Height
		a.ready = true
		contentH := a.height - 4
		if contentH < 1 {
			contentH = 1
		}
		a.dashboard.SetSize(a.width, contentH)
		a.credentials.SetSize(a.width, contentH)
		a.fallback.SetSize(a.width, contentH)
		return a, nil

	case tea.KeyMsg:
		switch msg.String() {
		case "ctrl+c", "q":
			return a, tea.Quit
		case "tab":
			a.activeTab = (a.activeTab + 1) % len(tabNames)
			return a, nil
		case "shift+tab":
			a.activeTab = (a.activeTab - 1 + len(tabNames)) % len(tabNames)
			return a, nil
		}
	}

	var cmd tea.Cmd
	switch a.activeTab {
	case tabDashboard:
		a.dashboard, cmd = a.dashboard.Update(msg)
	case tabCredentials:
		a.credentials, cmd = a.credentials.Update(msg)
	case tabFallback:
		a.fallback, cmd = a.fallback.Update(msg)
	}
	return a, cmd
}

func (a App) View() string {
	if !a.ready {
		return "loading..."
	}
	var tabBar string
	for i, name := range tabNames {
		if i == a.activeTab {
			tabBar += tabActiveStyle.Render(name)
		} else {
			tabBar += tabInactiveStyle.Render(name)
		}
	}

	var content string
	switch a.activeTab {
	case tabDashboard:
		content = a.dashboard.View()
	case tabCredentials:
		content = a.credentials.View()
	case tabFallback:
		content = a.fallback.View()
	}

	status := statusBarStyle.Render(a.client.baseURL + "  (tab: switch, r: refresh, q: quit)")
	return tabBar + "\n" + content + "\n" + status
}

// Run starts the TUI program against host:port, authenticating management
// requests with secretKey when the gateway requires one.
func Run(host string, port int, secretKey string) error {
	app := NewApp(host, port, secretKey)
	p := tea.NewProgram(app, tea.WithAltScreen(), tea.WithOutput(os.Stdout))
	_, err := p.Run()
	return err
}
