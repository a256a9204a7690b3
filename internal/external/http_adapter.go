// Copyright (c) 2025-2026, s0up and the autobrr contributors.
// SPDX-License-Identifier: GPL-2.0-or-later

package external

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"
	"strings"

	"github.com/sqlgate/sqlgate/internal/apierr"
	"github.com/sqlgate/sqlgate/internal/domain"
	"github.com/sqlgate/sqlgate/pkg/redact"
)

// OpenHTTP constructs an Adapter for the HTTP-pipeline remote-SQLite-family
// case described in §4.3: instead of a database/sql driver, every
// exec_*/transaction_sync call becomes a bearer-authenticated POST against
// baseURL, with `?` placeholders rebound to the `:p0, :p1, …` convention
// and bound as a name → value map rather than a positional slice.
func OpenHTTP(baseURL, token string) *Adapter {
	return &Adapter{
		engine:     EngineHTTP,
		httpClient: &http.Client{},
		baseURL:    strings.TrimSuffix(baseURL, "/"),
		token:      token,
	}
}

// httpRequest is the body posted to the remote backend's query endpoint.
type httpRequest struct {
	SQL    string         `json:"sql"`
	Params map[string]any `json:"params,omitempty"`
}

// httpResponse is the envelope read back from the remote backend: columns,
// rows and row counts at the top level for /query/raw, shaped rows for
// /query, or an error string. It is not the gateway's own {result, error}
// transport envelope.
type httpResponse struct {
	Columns     []string         `json:"columns,omitempty"`
	Rows        [][]any          `json:"rows,omitempty"`
	RowsRead    int64            `json:"rows_read,omitempty"`
	RowsWritten int64            `json:"rows_written,omitempty"`
	Shaped      []map[string]any `json:"shaped,omitempty"`
	Error       string           `json:"error,omitempty"`
}

func namedParams(query string, params []any) (string, map[string]any) {
	bound := rebind(EngineHTTP, query)
	named := make(map[string]any, len(params))
	for i, v := range params {
		named["p"+strconv.Itoa(i)] = v
	}
	return bound, named
}

func (a *Adapter) post(ctx context.Context, path string, body httpRequest, out *httpResponse) error {
	payload, err := json.Marshal(body)
	if err != nil {
		return apierr.Wrap(apierr.KindExternalFailure, "encode http request", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, a.baseURL+path, bytes.NewReader(payload))
	if err != nil {
		return apierr.FromExternal(redact.URLError(err), "build http request")
	}
	req.Header.Set("Content-Type", "application/json")
	if a.token != "" {
		req.Header.Set("Authorization", "Bearer "+a.token)
	}

	resp, err := a.httpClient.Do(req)
	if err != nil {
		return apierr.FromExternal(redact.URLError(err), "call external backend")
	}
	defer resp.Body.Close()

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return apierr.Wrap(apierr.KindExternalFailure, "decode http response", err)
	}
	if out.Error != "" {
		return apierr.New(apierr.KindExternalFailure, out.Error)
	}
	if resp.StatusCode >= 400 {
		return apierr.New(apierr.KindExternalFailure, fmt.Sprintf("external backend returned status %d", resp.StatusCode))
	}
	return nil
}

func (a *Adapter) execShapedHTTP(ctx context.Context, query string, params []any) ([]map[string]any, error) {
	sql, named := namedParams(query, params)
	var out httpResponse
	if err := a.post(ctx, "/query", httpRequest{SQL: sql, Params: named}, &out); err != nil {
		return nil, err
	}
	return out.Shaped, nil
}

func (a *Adapter) execRawHTTP(ctx context.Context, query string, params []any) (*domain.RawResult, error) {
	sql, named := namedParams(query, params)
	var out httpResponse
	if err := a.post(ctx, "/query/raw", httpRequest{SQL: sql, Params: named}, &out); err != nil {
		return nil, err
	}
	return &domain.RawResult{
		Columns: out.Columns,
		Rows:    out.Rows,
		Meta:    domain.RawMeta{RowsRead: out.RowsRead, RowsWritten: out.RowsWritten},
	}, nil
}

// transactionSyncHTTP runs each statement against the remote backend in
// turn. The remote backend owns its own transactional boundary; this
// adapter has no way to span one HTTP call, so statements are dispatched
// sequentially and the first failure aborts the remaining ones.
func (a *Adapter) transactionSyncHTTP(ctx context.Context, statements []domain.Statement) ([]domain.TxResult, error) {
	results := make([]domain.TxResult, 0, len(statements))
	for _, stmt := range statements {
		rows, err := a.execShapedHTTP(ctx, stmt.SQL, stmt.Params)
		if err != nil {
			return nil, err
		}
		results = append(results, domain.TxResult{Shaped: rows})
	}
	return results, nil
}

func (a *Adapter) loadTableColumnsHTTP(ctx context.Context, table string) ([]domain.ColumnInfo, error) {
	rows, err := a.execShapedHTTP(ctx, "SELECT column_name, data_type, is_primary_key FROM information_schema.columns WHERE table_name = ?", []any{table})
	if err != nil {
		return nil, err
	}

	cols := make([]domain.ColumnInfo, 0, len(rows))
	for _, row := range rows {
		name, _ := row["column_name"].(string)
		typ, _ := row["data_type"].(string)
		pk, _ := row["is_primary_key"].(bool)
		cols = append(cols, domain.ColumnInfo{Name: name, Type: typ, PrimaryKey: pk})
	}
	return cols, nil
}
