// Copyright (c) 2025, s0up and the autobrr contributors.
// SPDX-License-Identifier: GPL-2.0-or-later

package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/sqlgate/sqlgate/internal/allowlist"
	"github.com/sqlgate/sqlgate/internal/auth"
	"github.com/sqlgate/sqlgate/internal/config"
	"github.com/sqlgate/sqlgate/internal/external"
	"github.com/sqlgate/sqlgate/internal/logging"
	"github.com/sqlgate/sqlgate/internal/metrics"
	"github.com/sqlgate/sqlgate/internal/pipeline"
	"github.com/sqlgate/sqlgate/internal/queue"
	"github.com/sqlgate/sqlgate/internal/querycache"
	"github.com/sqlgate/sqlgate/internal/rls"
	"github.com/sqlgate/sqlgate/internal/rest"
	"github.com/sqlgate/sqlgate/internal/storage"
	"github.com/sqlgate/sqlgate/internal/transport"
)

func runServeCommand(configPath *string) *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the gateway's HTTP/WebSocket server",
		RunE: func(cmd *cobra.Command, _ []string) error {
			return serve(cmd.Context(), *configPath)
		},
	}
}

func serve(ctx context.Context, configPath string) error {
	cfg, err := config.New(configPath)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	logging.Configure(cfg.LogLevel, cfg.LogPath)

	executor, err := storage.Open(cfg.GetDatabasePath())
	if err != nil {
		return fmt.Errorf("open storage executor: %w", err)
	}
	defer executor.Close()

	opQueue := queue.New(executor, cfg.QueueTimeout())
	defer opQueue.Close()

	gate := allowlist.New(executor, cfg.FeatureAllowlist)
	rewriter := rls.New(executor, cfg.FeatureRLS)
	cache := querycache.New(executor, cfg.FeatureCache, int64(cfg.CacheTTL().Seconds()), func() int64 {
		return time.Now().UnixMilli()
	})

	var externalAdapter *external.Adapter
	switch {
	case cfg.ExternalHTTPURL != "":
		externalAdapter = external.OpenHTTP(cfg.ExternalHTTPURL, cfg.ExternalHTTPAuth)
	case cfg.ExternalEngine != "" && cfg.ExternalDSN != "":
		externalAdapter, err = external.Open(external.Config{
			Engine: external.Engine(cfg.ExternalEngine),
			DSN:    cfg.ExternalDSN,
		})
		if err != nil {
			return fmt.Errorf("open external adapter: %w", err)
		}
		defer externalAdapter.Close()
	}

	var dispatcher pipeline.Dispatcher
	if externalAdapter != nil {
		dispatcher = externalAdapter
	}

	orchestrator := pipeline.New(gate, rewriter, cache, cfg.FeatureCache, opQueue, dispatcher)

	restFacade := rest.New(orchestrator, executor)
	authService := auth.New(cfg.AdminToken, cfg.ClientToken, cfg.JWKSIssuer, cfg.JWKSAudience)

	var metricsManager *metrics.Manager
	if cfg.MetricsEnabled {
		metricsManager = metrics.NewManager(opQueue)
	}

	router := transport.NewRouter(transport.Dependencies{
		Orchestrator:   orchestrator,
		AuthService:    authService,
		RESTFacade:     restFacade,
		DiskUsager:     executor,
		DatabasePath:   cfg.GetDatabasePath(),
		TableLister:    executor,
		MetricsManager: metricsManager,
		AllowedOrigins: cfg.CORSAllowedOrigins,
	})

	addr := fmt.Sprintf("%s:%d", cfg.Host, cfg.Port)
	srv := &http.Server{
		Addr:              addr,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	runCtx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	errCh := make(chan error, 1)
	go func() {
		log.Info().Str("addr", addr).Msg("sqlgate listening")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
			return
		}
		errCh <- nil
	}()

	select {
	case <-runCtx.Done():
		log.Info().Msg("shutting down")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	case err := <-errCh:
		return err
	}
}
