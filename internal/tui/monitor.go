// Package tui implements the postserve system monitor.
package tui

import (
	"encoding/json"
	"fmt"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/table"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/mattjoyce/postserve/internal/events"
)

const (
	maxEventLog   = 50
	maxDeliveries = 200
)

// --- Styles ---

var (
	docStyle = lipgloss.NewStyle().Margin(1, 2)

	borderStyle = lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(lipgloss.Color("#874BFD"))

	statusOK      = lipgloss.NewStyle().Foreground(lipgloss.Color("#00FF00"))
	statusWarn    = lipgloss.NewStyle().Foreground(lipgloss.Color("#FFFF00"))
	statusFailed  = lipgloss.NewStyle().Foreground(lipgloss.Color("#FF0000"))
	dimStyle      = lipgloss.NewStyle().Foreground(lipgloss.Color("#888888"))
	helpStyle     = lipgloss.NewStyle().Foreground(lipgloss.Color("241"))
	highlightStub = lipgloss.NewStyle().Foreground(lipgloss.Color("#E5C07B"))

	titleStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("#FAFAFA")).
			Padding(0, 1)
)

// --- Types ---

// deliveryRow is one webhook outcome as shown in the deliveries table.
type deliveryRow struct {
	DeliveryID   string `json:"delivery_id"`
	ServeEventID string `json:"serve_event_id"`
	URL          string `json:"url"`
	Status       string `json:"status"`
	HTTPStatus   int    `json:"http_status"`
	Error        string `json:"error"`
	Failed       bool   `json:"-"`
}

type stubServed struct {
	ServeEventID string `json:"serve_event_id"`
	Stub         string `json:"stub"`
	Method       string `json:"method"`
	Path         string `json:"path"`
	Webhooks     int    `json:"webhooks"`
}

// Model is the bubbletea model behind `postserve system monitor`. It follows
// the admin event stream and polls health.
type Model struct {
	client client

	width  int
	height int

	health    healthMsg
	connected bool
	lastError string

	lastEventID int64
	eventLog    []events.Event
	hubEvents   chan events.Event

	served     int
	dispatched int
	failed     int
	stubCounts map[string]int
	deliveries []deliveryRow

	table    table.Model
	viewport viewport.Model
}

// NewMonitor returns a monitor for the postserve at baseURL. token may be
// empty when the admin endpoints are open.
func NewMonitor(baseURL, token string) Model {
	t := table.New(
		table.WithColumns([]table.Column{
			{Title: "ST", Width: 2},
			{Title: "HTTP", Width: 4},
			{Title: "URL", Width: 40},
			{Title: "Serve", Width: 8},
			{Title: "Delivery", Width: 8},
			{Title: "Error", Width: 30},
		}),
		table.WithFocused(true),
		table.WithHeight(10),
	)

	s := table.DefaultStyles()
	s.Header = s.Header.
		BorderStyle(lipgloss.NormalBorder()).
		BorderForeground(lipgloss.Color("240")).
		BorderBottom(true).
		Bold(false)
	s.Selected = s.Selected.
		Foreground(lipgloss.Color("229")).
		Background(lipgloss.Color("57")).
		Bold(false)
	t.SetStyles(s)

	return Model{
		client:     newClient(baseURL, token),
		hubEvents:  make(chan events.Event, 100),
		stubCounts: make(map[string]int),
		table:      t,
		viewport:   viewport.New(0, 10),
	}
}

func (m Model) Init() tea.Cmd {
	return tea.Batch(
		subscribeToEvents(m.client, 0, m.hubEvents),
		receiveNextEvent(m.hubEvents),
		func() tea.Msg { return fetchHealth(m.client) },
		tea.EnterAltScreen,
	)
}

// --- Update ---

func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	var cmd tea.Cmd

	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch msg.String() {
		case "q", "ctrl+c":
			return m, tea.Quit
		}

	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		m.table.SetWidth(m.width - 6)
		m.viewport.Width = m.width - 6
		m.viewport.Height = m.height / 3
		m.refresh()

	case eventMsg:
		m.handleEvent(events.Event(msg))
		m.connected = true
		m.lastError = ""
		m.refresh()
		return m, receiveNextEvent(m.hubEvents)

	case healthMsg:
		// A lower uptime means the server restarted and its event ids did too.
		if msg.UptimeSeconds < m.health.UptimeSeconds {
			m.lastEventID = 0
		}
		m.health = msg
		m.lastError = ""
		return m, tea.Tick(5*time.Second, func(time.Time) tea.Msg {
			return fetchHealth(m.client)
		})

	case sseDisconnectedMsg:
		m.connected = false
		m.lastError = "event stream disconnected, reconnecting..."
		if msg.err != nil {
			m.lastError = fmt.Sprintf("event stream: %v, reconnecting...", msg.err)
		}
		return m, tea.Tick(3*time.Second, func(time.Time) tea.Msg {
			return reconnectMsg{}
		})

	case reconnectMsg:
		return m, subscribeToEvents(m.client, m.lastEventID, m.hubEvents)

	case errMsg:
		m.lastError = msg.Error()
		return m, tea.Tick(5*time.Second, func(time.Time) tea.Msg {
			return fetchHealth(m.client)
		})
	}

	m.table, cmd = m.table.Update(msg)
	return m, cmd
}

func (m *Model) handleEvent(e events.Event) {
	if e.ID > m.lastEventID {
		m.lastEventID = e.ID
	}
	m.eventLog = append([]events.Event{e}, m.eventLog...)
	if len(m.eventLog) > maxEventLog {
		m.eventLog = m.eventLog[:maxEventLog]
	}

	switch e.Type {
	case events.TypeStubServed:
		var s stubServed
		if err := json.Unmarshal(e.Data, &s); err != nil {
			return
		}
		m.served++
		m.stubCounts[s.Stub]++

	case events.TypeWebhookDispatched, events.TypeWebhookFailed:
		var row deliveryRow
		if err := json.Unmarshal(e.Data, &row); err != nil {
			return
		}
		row.Failed = e.Type == events.TypeWebhookFailed
		if row.Failed {
			m.failed++
		} else {
			m.dispatched++
		}
		m.deliveries = append([]deliveryRow{row}, m.deliveries...)
		if len(m.deliveries) > maxDeliveries {
			m.deliveries = m.deliveries[:maxDeliveries]
		}
	}
}

func (m *Model) refresh() {
	rows := make([]table.Row, 0, len(m.deliveries))
	for _, d := range m.deliveries {
		rows = append(rows, deliveryToRow(d))
	}
	m.table.SetRows(rows)
	m.viewport.SetContent(m.renderEvents())
}

func deliveryToRow(d deliveryRow) table.Row {
	sym := statusOK.Render("●")
	switch {
	case d.Failed:
		sym = statusFailed.Render("∅")
	case d.HTTPStatus >= 300:
		sym = statusWarn.Render("◑")
	}

	code := "-"
	if d.HTTPStatus > 0 {
		code = strconv.Itoa(d.HTTPStatus)
	}

	return table.Row{
		sym,
		code,
		d.URL,
		shortID(d.ServeEventID),
		shortID(d.DeliveryID),
		d.Error,
	}
}

func shortID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	if id == "" {
		return "-"
	}
	return id
}

// --- View ---

func (m Model) View() string {
	if m.width == 0 {
		return "Initializing..."
	}

	deliveries := borderStyle.Width(m.width - 4).Render(
		lipgloss.JoinVertical(lipgloss.Left,
			titleStyle.Render("Webhook Deliveries"),
			m.table.View(),
		),
	)

	stubs := borderStyle.Width(m.width - 4).Render(
		lipgloss.JoinVertical(lipgloss.Left,
			titleStyle.Render("Stubs Served"),
			m.renderStubs(),
		),
	)

	eventsView := borderStyle.Width(m.width - 4).Render(
		lipgloss.JoinVertical(lipgloss.Left,
			titleStyle.Render("Event Stream"),
			m.viewport.View(),
		),
	)

	parts := []string{m.renderHeader(), stubs, deliveries, eventsView}
	if m.lastError != "" {
		parts = append(parts, statusFailed.Render(" ⚠ "+m.lastError))
	}
	parts = append(parts, helpStyle.Render(" [q] Quit • [↑/↓] Scroll Deliveries"))

	return docStyle.Render(lipgloss.JoinVertical(lipgloss.Left, parts...))
}

func (m Model) renderHeader() string {
	status := dimStyle.Render("CONNECTING")
	switch {
	case m.health.Status == "ok" && m.connected:
		status = statusOK.Render("LIVE")
	case m.health.Status == "ok":
		status = statusWarn.Render("NO STREAM")
	case m.health.Status != "":
		status = statusFailed.Render("DEGRADED")
	}

	uptime := time.Duration(m.health.UptimeSeconds) * time.Second
	items := []string{
		fmt.Sprintf("Status: %s", status),
		fmt.Sprintf("Uptime: %s", uptime.String()),
		fmt.Sprintf("Stubs: %d", m.health.Stubs),
		fmt.Sprintf("Served: %d", m.served),
		fmt.Sprintf("Dispatched: %d", m.dispatched),
		fmt.Sprintf("Failed: %d", m.failed),
	}

	cell := lipgloss.NewStyle().Width((m.width - 4) / len(items))
	cells := make([]string, len(items))
	for i, item := range items {
		cells[i] = cell.Render(item)
	}
	return borderStyle.Width(m.width - 4).Render(lipgloss.JoinHorizontal(lipgloss.Top, cells...))
}

func (m Model) renderStubs() string {
	if len(m.stubCounts) == 0 {
		return dimStyle.Render("  No requests served yet...")
	}
	names := make([]string, 0, len(m.stubCounts))
	for name := range m.stubCounts {
		names = append(names, name)
	}
	sort.Strings(names)

	parts := make([]string, len(names))
	for i, name := range names {
		parts[i] = fmt.Sprintf("%s %d", highlightStub.Render(name), m.stubCounts[name])
	}
	return lipgloss.NewStyle().Padding(0, 1).Render(strings.Join(parts, "  "))
}

func (m Model) renderEvents() string {
	if len(m.eventLog) == 0 {
		return dimStyle.Render("  No events yet...")
	}
	lines := make([]string, 0, len(m.eventLog))
	for _, e := range m.eventLog {
		lines = append(lines, fmt.Sprintf("%s | %-18s | %s", e.At.Format("15:04:05"), e.Type, describe(e)))
	}
	return lipgloss.NewStyle().Padding(0, 1).Render(strings.Join(lines, "\n"))
}

// describe summarizes an event payload on one line.
func describe(e events.Event) string {
	switch e.Type {
	case events.TypeStubServed:
		var s stubServed
		if err := json.Unmarshal(e.Data, &s); err == nil {
			return fmt.Sprintf("%s %s -> %s (%d webhooks)", s.Method, s.Path, s.Stub, s.Webhooks)
		}
	case events.TypeWebhookDispatched, events.TypeWebhookFailed:
		var d deliveryRow
		if err := json.Unmarshal(e.Data, &d); err == nil {
			if d.Error != "" {
				return fmt.Sprintf("%s %s", d.URL, d.Error)
			}
			return fmt.Sprintf("%s %d", d.URL, d.HTTPStatus)
		}
	}
	return string(e.Data)
}
