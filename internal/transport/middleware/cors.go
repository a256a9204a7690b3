// Copyright (c) 2025, s0up and the autobrr contributors.
// SPDX-License-Identifier: GPL-2.0-or-later

package middleware

import (
	"net/http"

	"github.com/rs/cors"
)

// CORS builds the preflight handler specified in §6: GET/POST/OPTIONS,
// Authorization/Content-Type/X-Starbase-Source/X-Data-Source headers, 204
// on preflight. allowedOrigins defaults to "*" when empty.
func CORS(allowedOrigins []string) func(http.Handler) http.Handler {
	if len(allowedOrigins) == 0 {
		allowedOrigins = []string{"*"}
	}
	c := cors.New(cors.Options{
		AllowedOrigins:       allowedOrigins,
		AllowedMethods:       []string{http.MethodGet, http.MethodPost, http.MethodOptions},
		AllowedHeaders:       []string{"Authorization", "Content-Type", "X-Starbase-Source", "X-Data-Source"},
		OptionsSuccessStatus: http.StatusNoContent,
	})
	return c.Handler
}
