// Copyright (c) 2025, s0up and the autobrr contributors.
// SPDX-License-Identifier: GPL-2.0-or-later

package handlers

import (
	"encoding/json"
	"net/http"

	"github.com/rs/zerolog/log"

	"github.com/sqlgate/sqlgate/internal/apierr"
)

// Envelope is the response shape for every gateway endpoint (§6): result on
// success, error on failure, never both.
type Envelope struct {
	Result any    `json:"result,omitempty"`
	Error  string `json:"error,omitempty"`
}

// RespondJSON writes data as the JSON body with the given status.
func RespondJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if data != nil {
		if err := json.NewEncoder(w).Encode(data); err != nil {
			log.Error().Err(err).Msg("failed to encode JSON response")
		}
	}
}

// RespondResult writes a successful Envelope.
func RespondResult(w http.ResponseWriter, result any) {
	RespondJSON(w, http.StatusOK, Envelope{Result: result})
}

// RespondError classifies err into an apierr.Kind (KindInternal if err
// isn't one) and writes the matching HTTP status and Envelope.
func RespondError(w http.ResponseWriter, err error) {
	status := apierr.StatusFor(apierr.KindOf(err))
	log.Debug().Err(err).Int("status", status).Msg("request failed")
	RespondJSON(w, status, Envelope{Error: err.Error()})
}

// RespondBadRequest writes a plain BadRequest envelope for errors that
// never reached the pipeline (malformed JSON, wrong content type).
func RespondBadRequest(w http.ResponseWriter, message string) {
	RespondJSON(w, http.StatusBadRequest, Envelope{Error: message})
}
