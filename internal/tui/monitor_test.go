package tui

import (
	"errors"
	"testing"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mattjoyce/postserve/internal/events"
)

func update(t *testing.T, m Model, msg tea.Msg) Model {
	t.Helper()
	next, _ := m.Update(msg)
	got, ok := next.(Model)
	require.True(t, ok, "got %T", next)
	return got
}

func event(id int64, typ, data string) eventMsg {
	return eventMsg(events.Event{ID: id, Type: typ, At: time.Now(), Data: []byte(data)})
}

func TestMonitorTracksStubsAndDeliveries(t *testing.T) {
	m := NewMonitor("http://127.0.0.1:8080", "")
	m = update(t, m, tea.WindowSizeMsg{Width: 160, Height: 60})

	m = update(t, m, event(1, events.TypeStubServed,
		`{"serve_event_id":"0f6c1a2b-aaaa","stub":"hook","method":"POST","path":"/hook","webhooks":2}`))
	m = update(t, m, event(2, events.TypeStubServed,
		`{"serve_event_id":"77d1e0c4-bbbb","stub":"hook","method":"POST","path":"/hook","webhooks":2}`))
	m = update(t, m, event(3, events.TypeWebhookDispatched,
		`{"delivery_id":"d1e2f3a4-cccc","serve_event_id":"0f6c1a2b-aaaa","url":"http://a/in","status":"delivered","http_status":202}`))
	m = update(t, m, event(4, events.TypeWebhookFailed,
		`{"delivery_id":"a9b8c7d6-dddd","serve_event_id":"0f6c1a2b-aaaa","url":"http://b/in","status":"failed","error":"connection refused"}`))

	assert.Equal(t, 2, m.served)
	assert.Equal(t, 1, m.dispatched)
	assert.Equal(t, 1, m.failed)
	assert.Equal(t, map[string]int{"hook": 2}, m.stubCounts)
	assert.Equal(t, int64(4), m.lastEventID)
	assert.True(t, m.connected)

	rows := m.table.Rows()
	require.Len(t, rows, 2)
	assert.Equal(t, "-", rows[0][1])
	assert.Equal(t, "http://b/in", rows[0][2])
	assert.Equal(t, "0f6c1a2b", rows[0][3])
	assert.Equal(t, "a9b8c7d6", rows[0][4])
	assert.Equal(t, "connection refused", rows[0][5])
	assert.Equal(t, "202", rows[1][1])

	view := m.View()
	assert.Contains(t, view, "Served: 2")
	assert.Contains(t, view, "Dispatched: 1")
	assert.Contains(t, view, "Failed: 1")
	assert.Contains(t, view, "POST /hook -> hook (2 webhooks)")
	assert.Contains(t, view, "http://b/in")
}

func TestMonitorIgnoresMalformedPayloads(t *testing.T) {
	m := NewMonitor("http://127.0.0.1:8080", "")
	m = update(t, m, event(1, events.TypeWebhookDispatched, `not json`))
	m = update(t, m, event(2, "other.thing", `{}`))

	assert.Zero(t, m.dispatched)
	assert.Empty(t, m.table.Rows())
	assert.Len(t, m.eventLog, 2)
	assert.Equal(t, "other.thing", m.eventLog[0].Type)
}

func TestMonitorConnectionState(t *testing.T) {
	m := NewMonitor("http://127.0.0.1:8080", "")
	m = update(t, m, event(9, events.TypeStubServed, `{"stub":"a"}`))

	m = update(t, m, sseDisconnectedMsg{err: errors.New("EOF")})
	assert.False(t, m.connected)
	assert.Contains(t, m.lastError, "EOF")

	m = update(t, m, healthMsg{Status: "ok", UptimeSeconds: 100, Stubs: 1})
	assert.Equal(t, int64(9), m.lastEventID)
	assert.Empty(t, m.lastError)

	// Uptime going backwards means a restart; resume the stream from scratch.
	m = update(t, m, healthMsg{Status: "ok", UptimeSeconds: 3, Stubs: 1})
	assert.Zero(t, m.lastEventID)

	m = update(t, m, errMsg(errors.New("healthz: 401 Unauthorized")))
	assert.Equal(t, "healthz: 401 Unauthorized", m.lastError)
}

func TestMonitorQuit(t *testing.T) {
	m := NewMonitor("http://127.0.0.1:8080", "")
	_, cmd := m.Update(tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune("q")})
	require.NotNil(t, cmd)
	assert.Equal(t, tea.Quit(), cmd())
}

func TestShortID(t *testing.T) {
	assert.Equal(t, "-", shortID(""))
	assert.Equal(t, "abc", shortID("abc"))
	assert.Equal(t, "0123abcd", shortID("0123abcd-ef"))
}
