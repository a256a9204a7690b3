// Copyright (c) 2025, s0up and the autobrr contributors.
// SPDX-License-Identifier: GPL-2.0-or-later

package allowlist

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sqlgate/sqlgate/internal/domain"
)

type fakeStore struct {
	entries []domain.AllowlistEntry
	err     error
}

func (f *fakeStore) LoadAllowlist(ctx context.Context) ([]domain.AllowlistEntry, error) {
	return f.entries, f.err
}

func TestCheckDisabledFeatureAlwaysAllows(t *testing.T) {
	g := New(&fakeStore{}, false)
	res, err := g.Check(context.Background(), "SELECT * FROM users WHERE id = 1 OR 1=1", domain.RequestContext{Role: domain.RoleClient})
	require.NoError(t, err)
	assert.True(t, res.Allowed)
}

func TestCheckAdminBypasses(t *testing.T) {
	g := New(&fakeStore{}, true)
	res, err := g.Check(context.Background(), "DROP TABLE users", domain.RequestContext{Role: domain.RoleAdmin})
	require.NoError(t, err)
	assert.True(t, res.Allowed)
}

func TestCheckMatchesModuloLiterals(t *testing.T) {
	store := &fakeStore{entries: []domain.AllowlistEntry{
		{ID: 1, SQL: "SELECT * FROM users WHERE id = 1"},
	}}
	g := New(store, true)

	res, err := g.Check(context.Background(), "SELECT * FROM users WHERE id = 99", domain.RequestContext{Role: domain.RoleClient})
	require.NoError(t, err)
	assert.True(t, res.Allowed)
}

func TestCheckPragmaBypassesGate(t *testing.T) {
	g := New(&fakeStore{}, true)
	res, err := g.Check(context.Background(), "PRAGMA table_info(users)", domain.RequestContext{Role: domain.RoleClient})
	require.NoError(t, err)
	assert.True(t, res.Allowed)
}

func TestCheckDeniesInjectedClause(t *testing.T) {
	store := &fakeStore{entries: []domain.AllowlistEntry{
		{ID: 1, SQL: "SELECT * FROM users WHERE id = 1"},
	}}
	g := New(store, true)

	res, err := g.Check(context.Background(), "SELECT * FROM users WHERE id = 1 OR 1=1", domain.RequestContext{Role: domain.RoleClient})
	require.NoError(t, err)
	assert.False(t, res.Allowed)
	assert.Equal(t, "query not allowed", res.Reason)
}
