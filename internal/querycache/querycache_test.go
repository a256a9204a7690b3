// Copyright (c) 2025, s0up and the autobrr contributors.
// SPDX-License-Identifier: GPL-2.0-or-later

package querycache

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sqlgate/sqlgate/internal/domain"
	"github.com/sqlgate/sqlgate/internal/sqlast"
)

type fakeStore struct {
	entry    *domain.CacheEntry
	upserted *domain.CacheEntry
}

func (f *fakeStore) LookupCache(ctx context.Context, query string, now int64) (*domain.CacheEntry, error) {
	return f.entry, nil
}

func (f *fakeStore) UpsertCache(ctx context.Context, entry domain.CacheEntry) error {
	f.upserted = &entry
	return nil
}

func fixedClock(t int64) Clock { return func() int64 { return t } }

func TestCacheableRequiresExternalCacheNoParamsNonModifying(t *testing.T) {
	stmt, err := sqlast.Parse("SELECT * FROM documents")
	require.NoError(t, err)

	assert.True(t, Cacheable(stmt, nil, domain.RequestContext{Source: domain.SourceExternal, Cache: true}, true))
	assert.False(t, Cacheable(stmt, nil, domain.RequestContext{Source: domain.SourceInternal, Cache: true}, true))
	assert.False(t, Cacheable(stmt, nil, domain.RequestContext{Source: domain.SourceExternal, Cache: false}, true))
	assert.False(t, Cacheable(stmt, []any{1}, domain.RequestContext{Source: domain.SourceExternal, Cache: true}, true))
	assert.False(t, Cacheable(stmt, nil, domain.RequestContext{Source: domain.SourceExternal, Cache: true}, false))

	modifying, err := sqlast.Parse("DELETE FROM documents")
	require.NoError(t, err)
	assert.False(t, Cacheable(modifying, nil, domain.RequestContext{Source: domain.SourceExternal, Cache: true}, true))
}

func TestStoreThenLookup(t *testing.T) {
	store := &fakeStore{}
	c := New(store, true, 60, fixedClock(1000))

	rows := []map[string]any{{"id": float64(1)}}
	c.Store(context.Background(), "SELECT * FROM documents", rows)

	require.NotNil(t, store.upserted)
	assert.Equal(t, int64(1000), store.upserted.Timestamp)
	assert.Equal(t, int64(60), store.upserted.TTL)

	store.entry = store.upserted
	got, hit, err := c.Lookup(context.Background(), "SELECT * FROM documents")
	require.NoError(t, err)
	assert.True(t, hit)
	assert.Equal(t, rows, got)
}

func TestLookupDisabledReturnsMiss(t *testing.T) {
	c := New(&fakeStore{}, false, 60, fixedClock(0))
	_, hit, err := c.Lookup(context.Background(), "SELECT 1")
	require.NoError(t, err)
	assert.False(t, hit)
}
