package journal

import (
	"context"
	"io"
	"log/slog"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mattjoyce/postserve/internal/storage"
	"github.com/mattjoyce/postserve/internal/webhook"
)

func openStore(t *testing.T) *Store {
	t.Helper()
	db, err := storage.OpenSQLite(context.Background(), filepath.Join(t.TempDir(), "journal.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	return NewStore(db)
}

func TestRecordAndGet(t *testing.T) {
	store := openStore(t)
	ctx := context.Background()

	req := webhook.NewRequest(webhook.MethodPost, "http://localhost/callback/123").
		WithHeader("Content-Type", "application/json").
		WithHeaderValues("X-Multi", "6", "param-one-value").
		WithBody("Tom")

	id, err := store.Record(ctx, Delivery{
		ServeEventID: "evt-1",
		Stub:         "POST /templating",
		Request:      req,
		Status:       StatusDelivered,
		Response: &webhook.LoggedResponse{
			Status: 202,
			Header: webhook.NewHeader("Set-Cookie", "a=1", "Set-Cookie", "b=2"),
			Body:   []byte("accepted"),
		},
	})
	require.NoError(t, err)
	require.NotEmpty(t, id)

	got, err := store.Get(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, "evt-1", got.ServeEventID)
	assert.Equal(t, StatusDelivered, got.Status)
	assert.True(t, got.Request.Equal(req), "request round trip")
	require.NotNil(t, got.Response)
	assert.Equal(t, 202, got.Response.Status)

	view, ok := got.ResponseView()
	require.True(t, ok)
	cookies, ok := view.Header("set-cookie")
	require.True(t, ok)
	assert.Equal(t, []string{"a=1", "b=2"}, cookies.Values())
	assert.Equal(t, "accepted", view.Body())
}

func TestRecordAbortedDelivery(t *testing.T) {
	store := openStore(t)
	ctx := context.Background()

	id, err := store.Record(ctx, Delivery{
		ServeEventID: "evt-2",
		Request:      webhook.NewRequest(webhook.MethodGet, "http://x"),
		Status:       StatusAborted,
		Error:        "signing algorithm unavailable",
	})
	require.NoError(t, err)

	got, err := store.Get(ctx, id)
	require.NoError(t, err)
	assert.Nil(t, got.Response)
	assert.Equal(t, "signing algorithm unavailable", got.Error)
	_, hasBody := got.Request.Body()
	assert.False(t, hasBody)

	_, ok := got.ResponseView()
	assert.False(t, ok)
}

func TestGetNotFound(t *testing.T) {
	store := openStore(t)
	_, err := store.Get(context.Background(), "missing")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestRecordValidation(t *testing.T) {
	store := openStore(t)
	_, err := store.Record(context.Background(), Delivery{Status: StatusDelivered})
	assert.Error(t, err)
	_, err = store.Record(context.Background(), Delivery{ServeEventID: "e"})
	assert.Error(t, err)
}

func TestListAndPrune(t *testing.T) {
	store := openStore(t)
	ctx := context.Background()
	base := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)

	for i, evt := range []string{"a", "b", "a"} {
		at := base.Add(time.Duration(i) * time.Minute)
		_, err := store.Record(ctx, Delivery{
			ServeEventID: evt,
			Request:      webhook.NewRequest(webhook.MethodPost, "http://x"),
			Status:       StatusDelivered,
			CreatedAt:    at,
			CompletedAt:  at,
		})
		require.NoError(t, err)
	}

	all, err := store.List(ctx, ListFilter{})
	require.NoError(t, err)
	require.Len(t, all, 3)
	assert.True(t, all[0].CreatedAt.After(all[2].CreatedAt), "newest first")

	onlyA, err := store.List(ctx, ListFilter{ServeEventID: "a"})
	require.NoError(t, err)
	assert.Len(t, onlyA, 2)

	n, err := store.Prune(ctx, base.Add(90*time.Second))
	require.NoError(t, err)
	assert.Equal(t, int64(2), n)

	rest, err := store.List(ctx, ListFilter{Limit: 10})
	require.NoError(t, err)
	assert.Len(t, rest, 1)
}

func TestRunPruner(t *testing.T) {
	store := openStore(t)
	ctx := context.Background()

	old := time.Now().Add(-48 * time.Hour)
	_, err := store.Record(ctx, Delivery{
		ServeEventID: "evt-old",
		Request:      webhook.NewRequest(webhook.MethodGet, "http://x"),
		Status:       StatusFailed,
		CreatedAt:    old,
		CompletedAt:  old,
	})
	require.NoError(t, err)
	_, err = store.Record(ctx, Delivery{
		ServeEventID: "evt-new",
		Request:      webhook.NewRequest(webhook.MethodGet, "http://x"),
		Status:       StatusFailed,
	})
	require.NoError(t, err)

	runCtx, cancel := context.WithCancel(ctx)
	done := make(chan struct{})
	go func() {
		store.RunPruner(runCtx, 24*time.Hour, time.Hour, slog.New(slog.NewTextHandler(io.Discard, nil)))
		close(done)
	}()

	require.Eventually(t, func() bool {
		list, err := store.List(ctx, ListFilter{})
		return err == nil && len(list) == 1 && list[0].ServeEventID == "evt-new"
	}, 5*time.Second, 10*time.Millisecond)

	cancel()
	<-done
}

func TestRunPrunerDisabled(t *testing.T) {
	store := openStore(t)
	// Returns immediately without a retention.
	store.RunPruner(context.Background(), 0, time.Millisecond, nil)
}
