// Copyright (c) 2025, s0up and the autobrr contributors.
// SPDX-License-Identifier: GPL-2.0-or-later

package auth

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sqlgate/sqlgate/internal/apierr"
	"github.com/sqlgate/sqlgate/internal/domain"
)

func TestAuthenticateAdminToken(t *testing.T) {
	s := New("admin-secret", "client-secret", "", "")
	r := httptest.NewRequest(http.MethodPost, "/query", nil)
	r.Header.Set("Authorization", "Bearer admin-secret")

	rc, err := s.Authenticate(r)
	require.NoError(t, err)
	assert.Equal(t, domain.RoleAdmin, rc.Role)
	assert.True(t, rc.IsAdmin())
}

func TestAuthenticateClientToken(t *testing.T) {
	s := New("admin-secret", "client-secret", "", "")
	r := httptest.NewRequest(http.MethodPost, "/query", nil)
	r.Header.Set("Authorization", "Bearer client-secret")

	rc, err := s.Authenticate(r)
	require.NoError(t, err)
	assert.Equal(t, domain.RoleClient, rc.Role)
}

func TestAuthenticateMissingTokenIsUnauthorized(t *testing.T) {
	s := New("admin-secret", "client-secret", "", "")
	r := httptest.NewRequest(http.MethodPost, "/query", nil)

	_, err := s.Authenticate(r)
	require.Error(t, err)
	assert.Equal(t, apierr.KindUnauthorized, apierr.KindOf(err))
}

func TestAuthenticateUnknownTokenWithoutJWKSIsUnauthorized(t *testing.T) {
	s := New("admin-secret", "client-secret", "", "")
	r := httptest.NewRequest(http.MethodPost, "/query", nil)
	r.Header.Set("Authorization", "Bearer garbage")

	_, err := s.Authenticate(r)
	require.Error(t, err)
	assert.Equal(t, apierr.KindUnauthorized, apierr.KindOf(err))
}

func TestAuthenticateReadsSourceAndCacheHeaders(t *testing.T) {
	s := New("admin-secret", "", "", "")
	r := httptest.NewRequest(http.MethodPost, "/query", nil)
	r.Header.Set("Authorization", "Bearer admin-secret")
	r.Header.Set("X-Starbase-Source", "external")
	r.Header.Set("X-Starbase-Cache", "true")

	rc, err := s.Authenticate(r)
	require.NoError(t, err)
	assert.Equal(t, domain.SourceExternal, rc.Source)
	assert.True(t, rc.Cache)
}

func TestAuthenticateFallsBackToQueryTokenForSockets(t *testing.T) {
	s := New("admin-secret", "", "", "")
	r := httptest.NewRequest(http.MethodGet, "/socket?token=admin-secret", nil)

	rc, err := s.Authenticate(r)
	require.NoError(t, err)
	assert.Equal(t, domain.RoleAdmin, rc.Role)
}
