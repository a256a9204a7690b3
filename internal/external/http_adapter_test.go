// Copyright (c) 2025-2026, s0up and the autobrr contributors.
// SPDX-License-Identifier: GPL-2.0-or-later

package external

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sqlgate/sqlgate/internal/domain"
)

func TestExecShapedHTTPRebindsToNamedParams(t *testing.T) {
	var gotBody httpRequest
	var gotAuth string

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotAuth = r.Header.Get("Authorization")
		require.NoError(t, json.NewDecoder(r.Body).Decode(&gotBody))
		_ = json.NewEncoder(w).Encode(httpResponse{Shaped: []map[string]any{{"id": float64(1)}}})
	}))
	defer server.Close()

	a := OpenHTTP(server.URL, "remote-token")
	rows, err := a.ExecShaped(context.Background(), "SELECT * FROM widgets WHERE id = ?", []any{1})

	require.NoError(t, err)
	require.Len(t, rows, 1)
	assert.Equal(t, "SELECT * FROM widgets WHERE id = :p0", gotBody.SQL)
	assert.Equal(t, float64(1), gotBody.Params["p0"])
	assert.Equal(t, "Bearer remote-token", gotAuth)
}

func TestExecRawHTTPNormalizesEnvelope(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewEncoder(w).Encode(httpResponse{
			Columns:  []string{"id"},
			Rows:     [][]any{{float64(1)}},
			RowsRead: 1,
		})
	}))
	defer server.Close()

	a := OpenHTTP(server.URL, "")
	raw, err := a.ExecRaw(context.Background(), "SELECT id FROM widgets", nil)

	require.NoError(t, err)
	assert.Equal(t, []string{"id"}, raw.Columns)
	assert.Equal(t, int64(1), raw.Meta.RowsRead)
}

func TestExecShapedHTTPPropagatesRemoteError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewEncoder(w).Encode(httpResponse{Error: "no such table: ghosts"})
	}))
	defer server.Close()

	a := OpenHTTP(server.URL, "")
	_, err := a.ExecShaped(context.Background(), "SELECT * FROM ghosts", nil)

	require.Error(t, err)
	assert.Contains(t, err.Error(), "no such table")
}

func TestTransactionSyncHTTPStopsOnFirstFailure(t *testing.T) {
	calls := 0
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		if calls == 1 {
			_ = json.NewEncoder(w).Encode(httpResponse{Shaped: []map[string]any{{"id": float64(1)}}})
			return
		}
		_ = json.NewEncoder(w).Encode(httpResponse{Error: "constraint violation"})
	}))
	defer server.Close()

	a := OpenHTTP(server.URL, "")
	_, err := a.TransactionSync(context.Background(), []domain.Statement{
		{SQL: "INSERT INTO widgets (id) VALUES (1)"},
		{SQL: "INSERT INTO widgets (id) VALUES (1)"},
	})

	require.Error(t, err)
	assert.Equal(t, 2, calls)
}
