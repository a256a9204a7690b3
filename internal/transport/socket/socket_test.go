// Copyright (c) 2025, s0up and the autobrr contributors.
// SPDX-License-Identifier: GPL-2.0-or-later

package socket

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	gwebsocket "github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sqlgate/sqlgate/internal/allowlist"
	"github.com/sqlgate/sqlgate/internal/domain"
	"github.com/sqlgate/sqlgate/internal/pipeline"
	"github.com/sqlgate/sqlgate/internal/querycache"
	"github.com/sqlgate/sqlgate/internal/rls"
)

type fakeDispatcher struct {
	rows []map[string]any
	err  error
}

func (f *fakeDispatcher) EnqueueShaped(ctx context.Context, sql string, params []any) ([]map[string]any, error) {
	if f.err != nil {
		return nil, f.err
	}
	return f.rows, nil
}

func (f *fakeDispatcher) EnqueueRaw(ctx context.Context, sql string, params []any) (*domain.RawResult, error) {
	return nil, f.err
}

func (f *fakeDispatcher) EnqueueTransaction(ctx context.Context, statements []domain.Statement) ([]domain.TxResult, error) {
	return nil, f.err
}

func newTestOrchestrator(disp pipeline.Dispatcher) *pipeline.Orchestrator {
	gate := allowlist.New(nil, false)
	rewriter := rls.New(nil, false)
	cache := querycache.New(nil, false, 60, func() int64 { return 0 })
	return pipeline.New(gate, rewriter, cache, false, disp, nil)
}

func dialToHandler(t *testing.T, h *Handler) *gwebsocket.Conn {
	t.Helper()
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		h.ServeHTTP(w, r, domain.RequestContext{Role: domain.RoleAdmin, Source: domain.SourceInternal})
	}))
	t.Cleanup(server.Close)

	wsURL := "ws" + strings.TrimPrefix(server.URL, "http")
	conn, _, err := gwebsocket.DefaultDialer.Dial(wsURL, nil)
	require.NoError(t, err)
	t.Cleanup(func() { conn.Close() })
	return conn
}

func TestSocketHandlerRunsQuery(t *testing.T) {
	h := NewHandler(newTestOrchestrator(&fakeDispatcher{rows: []map[string]any{{"id": float64(1)}}}))
	conn := dialToHandler(t, h)

	require.NoError(t, conn.WriteJSON(map[string]any{"action": "query", "sql": "SELECT * FROM widgets"}))

	var resp outboundMessage
	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	require.NoError(t, conn.ReadJSON(&resp))

	assert.Empty(t, resp.Error)
	assert.NotNil(t, resp.Result)
}

func TestSocketHandlerRejectsUnsupportedAction(t *testing.T) {
	h := NewHandler(newTestOrchestrator(&fakeDispatcher{}))
	conn := dialToHandler(t, h)

	require.NoError(t, conn.WriteJSON(map[string]any{"action": "subscribe"}))

	var resp outboundMessage
	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	require.NoError(t, conn.ReadJSON(&resp))

	assert.Contains(t, resp.Error, "unsupported action")
}

func TestSocketHandlerRegistersAndDeregistersSession(t *testing.T) {
	h := NewHandler(newTestOrchestrator(&fakeDispatcher{}))
	conn := dialToHandler(t, h)

	require.NoError(t, conn.WriteJSON(map[string]any{"action": "query", "sql": "SELECT 1"}))
	var resp outboundMessage
	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	require.NoError(t, conn.ReadJSON(&resp))

	assert.Equal(t, 1, h.Registry().Len())

	conn.Close()
	assert.Eventually(t, func() bool { return h.Registry().Len() == 0 }, time.Second, 10*time.Millisecond)
}
