// Copyright (c) 2025, s0up and the autobrr contributors.
// SPDX-License-Identifier: GPL-2.0-or-later

package handlers

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"

	"github.com/sqlgate/sqlgate/internal/apierr"
	"github.com/sqlgate/sqlgate/internal/domain"
	"github.com/sqlgate/sqlgate/internal/pipeline"
	"github.com/sqlgate/sqlgate/internal/transport/reqctx"
)

// TableLister enumerates the user tables a dump should cover.
type TableLister interface {
	ListUserTables(ctx context.Context) ([]string, error)
}

// DumpHandler serves /export/dump and /import/dump: whole-database bulk
// export/import as a sequence of per-table raw envelopes.
type DumpHandler struct {
	orchestrator *pipeline.Orchestrator
	tables       TableLister
}

// NewDumpHandler constructs a DumpHandler.
func NewDumpHandler(o *pipeline.Orchestrator, tables TableLister) *DumpHandler {
	return &DumpHandler{orchestrator: o, tables: tables}
}

// tableDump is one table's worth of a dump, in either direction.
type tableDump struct {
	Table string            `json:"table"`
	Raw   *domain.RawResult `json:"raw,omitempty"`
	Error string            `json:"error,omitempty"`
}

// Export handles GET /export/dump: streams every user table as a raw
// envelope.
func (h *DumpHandler) Export(w http.ResponseWriter, r *http.Request) {
	rc := reqctx.FromContext(r.Context())
	if !rc.IsAdmin() {
		RespondError(w, apierr.Forbidden("export requires the admin token"))
		return
	}

	names, err := h.tables.ListUserTables(r.Context())
	if err != nil {
		RespondError(w, err)
		return
	}

	dumps := make([]tableDump, 0, len(names))
	failed := false
	for _, table := range names {
		stmt := domain.Statement{SQL: fmt.Sprintf("SELECT * FROM %s", table)}
		_, raw, err := h.orchestrator.Run(r.Context(), stmt, rc, true)
		if err != nil {
			failed = true
			dumps = append(dumps, tableDump{Table: table, Error: err.Error()})
			continue
		}
		dumps = append(dumps, tableDump{Table: table, Raw: raw})
	}

	status := http.StatusOK
	if failed {
		status = http.StatusMultiStatus
	}
	RespondJSON(w, status, Envelope{Result: dumps})
}

// importRequest is the body accepted by POST /import/dump: a list of tables,
// each with its rows as column-name -> value objects. This is not the
// raw-envelope shape Export produces.
type importRequest struct {
	Tables []tableImport `json:"tables"`
}

type tableImport struct {
	Table string           `json:"table"`
	Rows  []map[string]any `json:"rows"`
}

// Import handles POST /import/dump: each table's rows are inserted inside
// one transaction per table; a failure on one table does not block the
// others, so the overall response is 207 when any table failed.
func (h *DumpHandler) Import(w http.ResponseWriter, r *http.Request) {
	rc := reqctx.FromContext(r.Context())
	if !rc.IsAdmin() {
		RespondError(w, apierr.Forbidden("import requires the admin token"))
		return
	}

	var body importRequest
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		RespondBadRequest(w, "invalid JSON body")
		return
	}

	results := make([]tableDump, 0, len(body.Tables))
	failed := false
	for _, t := range body.Tables {
		batch, err := insertBatchFor(t)
		if err != nil {
			failed = true
			results = append(results, tableDump{Table: t.Table, Error: err.Error()})
			continue
		}
		if len(batch.Statements) == 0 {
			results = append(results, tableDump{Table: t.Table})
			continue
		}
		if _, err := h.orchestrator.RunBatch(r.Context(), batch, rc); err != nil {
			failed = true
			results = append(results, tableDump{Table: t.Table, Error: err.Error()})
			continue
		}
		results = append(results, tableDump{Table: t.Table})
	}

	status := http.StatusOK
	if failed {
		status = http.StatusMultiStatus
	}
	RespondJSON(w, status, Envelope{Result: results})
}

func insertBatchFor(t tableImport) (domain.Batch, error) {
	table, err := sanitizeTableName(t.Table)
	if err != nil {
		return domain.Batch{}, err
	}

	var statements []domain.Statement
	for _, row := range t.Rows {
		cols := make([]string, 0, len(row))
		placeholders := make([]string, 0, len(row))
		params := make([]any, 0, len(row))
		for col, val := range row {
			cols = append(cols, col)
			placeholders = append(placeholders, "?")
			params = append(params, val)
		}
		sql := fmt.Sprintf("INSERT INTO %s (%s) VALUES (%s)", table, strings.Join(cols, ", "), strings.Join(placeholders, ", "))
		statements = append(statements, domain.Statement{SQL: sql, Params: params})
	}
	return domain.Batch{Statements: statements}, nil
}

func sanitizeTableName(s string) (string, error) {
	for _, r := range s {
		if !(r >= 'a' && r <= 'z' || r >= 'A' && r <= 'Z' || r >= '0' && r <= '9' || r == '_') {
			return "", apierr.BadRequest("invalid table name %q", s)
		}
	}
	if s == "" {
		return "", apierr.BadRequest("table name must not be empty")
	}
	return s, nil
}

