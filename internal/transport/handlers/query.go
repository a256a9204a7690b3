// Copyright (c) 2025, s0up and the autobrr contributors.
// SPDX-License-Identifier: GPL-2.0-or-later

package handlers

import (
	"encoding/json"
	"net/http"
	"strings"

	"github.com/sqlgate/sqlgate/internal/domain"
	"github.com/sqlgate/sqlgate/internal/pipeline"
	"github.com/sqlgate/sqlgate/internal/transport/reqctx"
)

// requestBody is the union of the two accepted POST /query shapes: a
// single statement, or a transaction batch.
type requestBody struct {
	SQL         string             `json:"sql"`
	Params      []any              `json:"params"`
	Transaction []domain.Statement `json:"transaction"`
}

// QueryHandler serves POST /query and POST /query/raw.
type QueryHandler struct {
	orchestrator *pipeline.Orchestrator
}

// NewQueryHandler constructs a QueryHandler bound to the given orchestrator.
func NewQueryHandler(o *pipeline.Orchestrator) *QueryHandler {
	return &QueryHandler{orchestrator: o}
}

// Query handles POST /query: shaped-row responses.
func (h *QueryHandler) Query(w http.ResponseWriter, r *http.Request) {
	h.handle(w, r, false)
}

// QueryRaw handles POST /query/raw: the raw column-oriented envelope.
func (h *QueryHandler) QueryRaw(w http.ResponseWriter, r *http.Request) {
	h.handle(w, r, true)
}

func (h *QueryHandler) handle(w http.ResponseWriter, r *http.Request, raw bool) {
	if !strings.HasPrefix(r.Header.Get("Content-Type"), "application/json") {
		RespondJSON(w, http.StatusUnsupportedMediaType, Envelope{Error: "Content-Type must be application/json"})
		return
	}

	var body requestBody
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		RespondBadRequest(w, "invalid JSON body")
		return
	}

	rc := reqctx.FromContext(r.Context())

	if len(body.Transaction) > 0 {
		results, err := h.orchestrator.RunBatch(r.Context(), domain.Batch{Statements: body.Transaction}, rc)
		if err != nil {
			RespondError(w, err)
			return
		}
		RespondResult(w, results)
		return
	}

	stmt := domain.Statement{SQL: body.SQL, Params: body.Params}
	rows, rawResult, err := h.orchestrator.Run(r.Context(), stmt, rc, raw)
	if err != nil {
		RespondError(w, err)
		return
	}
	if raw {
		RespondResult(w, rawResult)
		return
	}
	RespondResult(w, rows)
}
