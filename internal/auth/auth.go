// Copyright (c) 2025, s0up and the autobrr contributors.
// SPDX-License-Identifier: GPL-2.0-or-later

// Package auth resolves an inbound request's bearer token into a
// domain.RequestContext: the admin/client static tokens, or a JWT verified
// against a remote JWKS issuer, per §6.
package auth

import (
	"context"
	"net/http"
	"strings"

	"github.com/coreos/go-oidc/v3/oidc"
	"github.com/rs/zerolog/log"

	"github.com/sqlgate/sqlgate/internal/apierr"
	"github.com/sqlgate/sqlgate/internal/domain"
)

// Service authenticates requests against the two static tokens and,
// optionally, a remote JWKS issuer.
type Service struct {
	adminToken  string
	clientToken string
	verifier    *oidc.IDTokenVerifier
}

// New constructs a Service. If issuer is non-empty the JWKS provider
// lookup is performed synchronously inside New; a failure there is logged and
// JWT verification is simply disabled rather than failing startup.
func New(adminToken, clientToken, issuer, audience string) *Service {
	s := &Service{adminToken: adminToken, clientToken: clientToken}

	if issuer == "" {
		return s
	}

	provider, err := oidc.NewProvider(context.Background(), issuer)
	if err != nil {
		log.Warn().Err(err).Str("issuer", issuer).Msg("failed to initialize JWKS provider, JWT auth disabled")
		return s
	}

	cfg := &oidc.Config{SkipClientIDCheck: audience == ""}
	if audience != "" {
		cfg.ClientID = audience
	}
	s.verifier = provider.Verifier(cfg)
	return s
}

// Authenticate resolves the bearer token carried by an HTTP request (the
// Authorization header, or the ?token= query parameter for WebSocket
// upgrades that cannot set headers) into a RequestContext.
func (s *Service) Authenticate(r *http.Request) (domain.RequestContext, error) {
	return s.fromToken(r.Context(), bearerToken(r), r.Header)
}

func bearerToken(r *http.Request) string {
	if auth := r.Header.Get("Authorization"); auth != "" {
		return strings.TrimPrefix(auth, "Bearer ")
	}
	return r.URL.Query().Get("token")
}

func (s *Service) fromToken(ctx context.Context, token string, headers http.Header) (domain.RequestContext, error) {
	rc := domain.RequestContext{
		Source: sourceFromHeader(headers.Get("X-Starbase-Source")),
		Cache:  headers.Get("X-Starbase-Cache") == "true",
	}

	if token == "" {
		return domain.RequestContext{}, apierr.Unauthorized("missing bearer token")
	}

	switch {
	case s.adminToken != "" && token == s.adminToken:
		rc.Role = domain.RoleAdmin
		return rc, nil
	case s.clientToken != "" && token == s.clientToken:
		rc.Role = domain.RoleClient
		return rc, nil
	}

	if s.verifier == nil {
		return domain.RequestContext{}, apierr.Unauthorized("invalid bearer token")
	}

	idToken, err := s.verifier.Verify(ctx, token)
	if err != nil {
		return domain.RequestContext{}, apierr.Wrap(apierr.KindUnauthorized, "verify JWT", err)
	}

	var claims map[string]any
	if err := idToken.Claims(&claims); err != nil {
		return domain.RequestContext{}, apierr.Wrap(apierr.KindUnauthorized, "decode JWT claims", err)
	}

	rc.Role = domain.RoleClient
	rc.Claims = claims
	return rc, nil
}

func sourceFromHeader(v string) domain.Source {
	if v == "external" {
		return domain.SourceExternal
	}
	return domain.SourceInternal
}
