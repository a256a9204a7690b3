// Copyright (c) 2025, s0up and the autobrr contributors.
// SPDX-License-Identifier: GPL-2.0-or-later

// Package transport implements the Transport Adapter (§4.9): the HTTP
// router, its middleware chain, and the REST/query/socket/dump handlers
// that sit in front of the Pipeline Orchestrator.
package transport

import (
	"net/http"

	"github.com/CAFxX/httpcompression"
	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog/log"

	"github.com/sqlgate/sqlgate/internal/auth"
	"github.com/sqlgate/sqlgate/internal/metrics"
	"github.com/sqlgate/sqlgate/internal/pipeline"
	"github.com/sqlgate/sqlgate/internal/rest"
	"github.com/sqlgate/sqlgate/internal/transport/handlers"
	"github.com/sqlgate/sqlgate/internal/transport/middleware"
	"github.com/sqlgate/sqlgate/internal/transport/reqctx"
	"github.com/sqlgate/sqlgate/internal/transport/socket"
)

// Dependencies holds everything the router needs to wire up handlers.
type Dependencies struct {
	Orchestrator   *pipeline.Orchestrator
	AuthService    *auth.Service
	RESTFacade     *rest.Facade
	DiskUsager     handlers.DiskUsager
	DatabasePath   string
	TableLister    handlers.TableLister
	MetricsManager *metrics.Manager
	AllowedOrigins []string
}

// NewRouter builds the full HTTP surface described in §6.
func NewRouter(deps Dependencies) *chi.Mux {
	r := chi.NewRouter()

	r.Use(chimw.RequestID)
	r.Use(chimw.Logger)
	r.Use(chimw.Recoverer)
	r.Use(chimw.RealIP)

	compressor, err := httpcompression.DefaultAdapter()
	if err != nil {
		log.Error().Err(err).Msg("failed to create HTTP compression adapter")
	} else {
		r.Use(compressor)
	}

	r.Use(middleware.CORS(deps.AllowedOrigins))

	queryHandler := handlers.NewQueryHandler(deps.Orchestrator)
	statusHandler := handlers.NewStatusHandler(deps.DiskUsager, deps.DatabasePath)
	restHandler := handlers.NewRESTHandler(deps.RESTFacade)
	dumpHandler := handlers.NewDumpHandler(deps.Orchestrator, deps.TableLister)
	socketHandler := socket.NewHandler(deps.Orchestrator)

	r.Get("/status", statusHandler.Status)

	if deps.MetricsManager != nil {
		r.Handle("/metrics", promhttp.HandlerFor(deps.MetricsManager.Registry(), promhttp.HandlerOpts{}))
	}

	r.Group(func(r chi.Router) {
		r.Use(middleware.Authenticate(deps.AuthService))

		r.Post("/query", queryHandler.Query)
		r.Post("/query/raw", queryHandler.QueryRaw)

		r.Get("/export/dump", dumpHandler.Export)
		r.Post("/import/dump", dumpHandler.Import)

		r.Route("/rest/{table}", func(r chi.Router) {
			r.Get("/", restHandler.Handle)
			r.Post("/", restHandler.Handle)
			r.Get("/*", restHandler.Handle)
			r.Patch("/*", restHandler.Handle)
			r.Put("/*", restHandler.Handle)
			r.Delete("/*", restHandler.Handle)
		})

		r.Get("/socket", func(w http.ResponseWriter, req *http.Request) {
			rc := reqctx.FromContext(req.Context())
			socketHandler.ServeHTTP(w, req, rc)
		})
	})

	return r
}
