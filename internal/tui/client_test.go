package tui

import (
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mattjoyce/postserve/internal/events"
)

func TestReadEvents(t *testing.T) {
	stream := strings.Join([]string{
		": keep-alive",
		"",
		"id: 7",
		"event: stub.served",
		`data: {"stub":"hook"}`,
		"",
		"id:8",
		"event:webhook.failed",
		`data: {"url":"http://x",`,
		`data: "error":"refused"}`,
		"",
		"id: 9",
		"event: partial",
	}, "\n")

	ch := make(chan events.Event, 4)
	require.NoError(t, readEvents(strings.NewReader(stream), ch))
	close(ch)

	var got []events.Event
	for e := range ch {
		got = append(got, e)
	}
	require.Len(t, got, 2)

	assert.Equal(t, int64(7), got[0].ID)
	assert.Equal(t, events.TypeStubServed, got[0].Type)
	assert.JSONEq(t, `{"stub":"hook"}`, string(got[0].Data))

	assert.Equal(t, int64(8), got[1].ID)
	assert.Equal(t, events.TypeWebhookFailed, got[1].Type)
	assert.JSONEq(t, `{"url":"http://x","error":"refused"}`, string(got[1].Data))
}

func TestSubscribeToEvents(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/__admin/events", r.URL.Path)
		assert.Equal(t, "Bearer secret", r.Header.Get("Authorization"))
		assert.Equal(t, "41", r.Header.Get("Last-Event-ID"))
		w.Header().Set("Content-Type", "text/event-stream")
		fmt.Fprint(w, "id: 42\nevent: webhook.dispatched\ndata: {\"http_status\":200}\n\n")
	}))
	defer srv.Close()

	ch := make(chan events.Event, 1)
	msg := subscribeToEvents(newClient(srv.URL+"/", "secret"), 41, ch)()

	disc, ok := msg.(sseDisconnectedMsg)
	require.True(t, ok, "got %T", msg)
	assert.NoError(t, disc.err)

	require.Len(t, ch, 1)
	e := <-ch
	assert.Equal(t, int64(42), e.ID)
	assert.Equal(t, events.TypeWebhookDispatched, e.Type)
}

func TestSubscribeToEventsRejected(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Empty(t, r.Header.Get("Authorization"))
		w.WriteHeader(http.StatusUnauthorized)
	}))
	defer srv.Close()

	msg := subscribeToEvents(newClient(srv.URL, ""), 0, make(chan events.Event))()
	disc, ok := msg.(sseDisconnectedMsg)
	require.True(t, ok, "got %T", msg)
	require.Error(t, disc.err)
	assert.Contains(t, disc.err.Error(), "401")
}

func TestFetchHealth(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/__admin/healthz" {
			w.WriteHeader(http.StatusNotFound)
			return
		}
		fmt.Fprint(w, `{"status":"ok","uptime_seconds":12,"stubs":3}`)
	}))
	defer srv.Close()

	msg := fetchHealth(newClient(srv.URL, ""))
	h, ok := msg.(healthMsg)
	require.True(t, ok, "got %T", msg)
	assert.Equal(t, healthMsg{Status: "ok", UptimeSeconds: 12, Stubs: 3}, h)

	srv.Close()
	_, ok = fetchHealth(newClient(srv.URL, "")).(errMsg)
	assert.True(t, ok)
}
