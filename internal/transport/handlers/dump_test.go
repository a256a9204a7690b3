// Copyright (c) 2025, s0up and the autobrr contributors.
// SPDX-License-Identifier: GPL-2.0-or-later

package handlers

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sqlgate/sqlgate/internal/domain"
)

type fakeTableLister struct {
	tables []string
	err    error
}

func (f fakeTableLister) ListUserTables(ctx context.Context) ([]string, error) {
	return f.tables, f.err
}

func TestDumpExportRequiresAdmin(t *testing.T) {
	h := NewDumpHandler(newTestOrchestrator(&fakeDispatcher{}), fakeTableLister{tables: []string{"widgets"}})

	req := httptest.NewRequest(http.MethodGet, "/export/dump", nil)
	req = withRequestContext(req, domain.RequestContext{Role: domain.RoleClient, Source: domain.SourceInternal})
	rec := httptest.NewRecorder()
	h.Export(rec, req)

	assert.Equal(t, http.StatusForbidden, rec.Code)
}

func TestDumpExportStreamsEveryTable(t *testing.T) {
	disp := &fakeDispatcher{rawResult: &domain.RawResult{Columns: []string{"id"}, Rows: [][]any{{int64(1)}}}}
	h := NewDumpHandler(newTestOrchestrator(disp), fakeTableLister{tables: []string{"widgets", "gadgets"}})

	req := httptest.NewRequest(http.MethodGet, "/export/dump", nil)
	req = withRequestContext(req, domain.RequestContext{Role: domain.RoleAdmin, Source: domain.SourceInternal})
	rec := httptest.NewRecorder()
	h.Export(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)

	var env Envelope
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &env))
	dumps, ok := env.Result.([]any)
	require.True(t, ok)
	assert.Len(t, dumps, 2)
	assert.Equal(t, 2, disp.calls)
}

func TestDumpExportPartialFailureReturns207(t *testing.T) {
	disp := &fakeDispatcher{err: assertErr("boom")}
	h := NewDumpHandler(newTestOrchestrator(disp), fakeTableLister{tables: []string{"widgets"}})

	req := httptest.NewRequest(http.MethodGet, "/export/dump", nil)
	req = withRequestContext(req, domain.RequestContext{Role: domain.RoleAdmin, Source: domain.SourceInternal})
	rec := httptest.NewRecorder()
	h.Export(rec, req)

	assert.Equal(t, http.StatusMultiStatus, rec.Code)
}

func TestDumpImportInsertsPerTableTransaction(t *testing.T) {
	disp := &fakeDispatcher{txResults: []domain.TxResult{{Shaped: []map[string]any{{"id": int64(1)}}}}}
	h := NewDumpHandler(newTestOrchestrator(disp), fakeTableLister{})

	body := `{"tables":[{"table":"widgets","rows":[{"id":1,"name":"bolt"}]}]}`
	req := httptest.NewRequest(http.MethodPost, "/import/dump", strings.NewReader(body))
	req = withRequestContext(req, domain.RequestContext{Role: domain.RoleAdmin, Source: domain.SourceInternal})
	rec := httptest.NewRecorder()
	h.Import(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, 1, disp.calls)
}

func TestDumpImportRejectsInvalidTableName(t *testing.T) {
	h := NewDumpHandler(newTestOrchestrator(&fakeDispatcher{}), fakeTableLister{})

	body := `{"tables":[{"table":"bad;name","rows":[{"id":1}]}]}`
	req := httptest.NewRequest(http.MethodPost, "/import/dump", strings.NewReader(body))
	req = withRequestContext(req, domain.RequestContext{Role: domain.RoleAdmin, Source: domain.SourceInternal})
	rec := httptest.NewRecorder()
	h.Import(rec, req)

	assert.Equal(t, http.StatusMultiStatus, rec.Code)
}

func TestDumpImportRequiresAdmin(t *testing.T) {
	h := NewDumpHandler(newTestOrchestrator(&fakeDispatcher{}), fakeTableLister{})

	req := httptest.NewRequest(http.MethodPost, "/import/dump", strings.NewReader(`{"tables":[]}`))
	req = withRequestContext(req, domain.RequestContext{Role: domain.RoleClient, Source: domain.SourceInternal})
	rec := httptest.NewRecorder()
	h.Import(rec, req)

	assert.Equal(t, http.StatusForbidden, rec.Code)
}

type assertErrType string

func (e assertErrType) Error() string { return string(e) }

func assertErr(msg string) error { return assertErrType(msg) }
