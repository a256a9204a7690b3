// Copyright (c) 2025, s0up and the autobrr contributors.
// SPDX-License-Identifier: GPL-2.0-or-later

package handlers

import (
	"encoding/json"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/sqlgate/sqlgate/internal/rest"
	"github.com/sqlgate/sqlgate/internal/transport/reqctx"
)

// RESTHandler serves /rest/{table}[/{id...}], delegating the verb-to-SQL
// mapping to the REST Facade.
type RESTHandler struct {
	facade *rest.Facade
}

// NewRESTHandler constructs a RESTHandler.
func NewRESTHandler(facade *rest.Facade) *RESTHandler {
	return &RESTHandler{facade: facade}
}

// Handle serves every verb under /rest/{table}/*, dispatching by
// r.Method.
func (h *RESTHandler) Handle(w http.ResponseWriter, r *http.Request) {
	table := chi.URLParam(r, "table")
	idPath := chi.URLParam(r, "*")

	var id []string
	if idPath != "" {
		id = strings.Split(idPath, "/")
	}

	req := rest.Request{
		Table:  table,
		ID:     id,
		Method: r.Method,
	}

	if r.Method == http.MethodPost || r.Method == http.MethodPatch || r.Method == http.MethodPut {
		var body map[string]any
		if r.ContentLength != 0 {
			if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
				RespondBadRequest(w, "invalid JSON body")
				return
			}
		}
		req.Body = body
	}

	if r.Method == http.MethodGet {
		req.Filters = make(map[string][]string)
		for key, values := range r.URL.Query() {
			switch key {
			case "sort_by":
				req.SortBy = values[0]
			case "order":
				req.Order = values[0]
			case "limit":
				req.Limit = values[0]
			case "offset":
				req.Offset = values[0]
			default:
				req.Filters[key] = values
			}
		}
	}

	rc := reqctx.FromContext(r.Context())
	rows, err := h.facade.Handle(r.Context(), req, rc)
	if err != nil {
		RespondError(w, err)
		return
	}
	RespondResult(w, rows)
}
