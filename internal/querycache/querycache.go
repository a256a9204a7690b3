// Copyright (c) 2025, s0up and the autobrr contributors.
// SPDX-License-Identifier: GPL-2.0-or-later

// Package querycache implements the TTL-bounded cache of external,
// parameterless, non-modifying query results described in §4.7.
package querycache

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/rs/zerolog/log"

	"github.com/sqlgate/sqlgate/internal/domain"
	"github.com/sqlgate/sqlgate/internal/sqlast"
)

// maxStoredResultBytes bounds the serialized result size tolerated by the
// transport layer; entries larger than this are skipped on store with a
// warning log.
const maxStoredResultBytes = 1 << 20 // 1 MiB

// Store persists cache rows against tmp_cache.
type Store interface {
	LookupCache(ctx context.Context, query string, nowUnixMillis int64) (*domain.CacheEntry, error)
	UpsertCache(ctx context.Context, entry domain.CacheEntry) error
}

// Clock returns the current time as unix milliseconds; overridable in
// tests.
type Clock func() int64

// Cache mediates reads/writes against the persisted query cache.
type Cache struct {
	store   Store
	now     Clock
	ttl     int64 // seconds
	enabled bool
}

// New constructs a Cache. enabled mirrors the features.cache config
// toggle; ttlSeconds defaults to 60 per §4.7 when zero.
func New(store Store, enabled bool, ttlSeconds int64, now Clock) *Cache {
	if ttlSeconds <= 0 {
		ttlSeconds = 60
	}
	return &Cache{store: store, now: now, ttl: ttlSeconds, enabled: enabled}
}

// Cacheable implements the policy gate of §4.7: only external-sourced,
// cache-requested, parameterless, non-modifying reads are eligible.
func Cacheable(stmt *sqlast.Statement, params []any, rc domain.RequestContext, cacheFlagEnabled bool) bool {
	if !cacheFlagEnabled {
		return false
	}
	if rc.Source != domain.SourceExternal || !rc.Cache {
		return false
	}
	if len(params) > 0 {
		return false
	}
	return !sqlast.IsModifying(stmt.AST)
}

// Lookup returns cached rows for query, or (nil, false) on a miss or
// expired entry. query is canonicalized (§4.4) before use as the
// Fingerprint cache key, so requests differing only in trailing
// whitespace or a trailing `;` share one cache row.
func (c *Cache) Lookup(ctx context.Context, query string) ([]map[string]any, bool, error) {
	if !c.enabled {
		return nil, false, nil
	}
	fingerprint := sqlast.Canonicalize(query)
	entry, err := c.store.LookupCache(ctx, fingerprint, c.now())
	if err != nil {
		return nil, false, fmt.Errorf("cache lookup: %w", err)
	}
	if entry == nil {
		return nil, false, nil
	}

	var rows []map[string]any
	if err := json.Unmarshal([]byte(entry.Results), &rows); err != nil {
		return nil, false, fmt.Errorf("decode cached results: %w", err)
	}
	return rows, true, nil
}

// Store upserts rows under query's Fingerprint (§4.4 Canonicalize). A
// failure to store (including exceeding maxStoredResultBytes) is logged
// and swallowed: per §4.7 a cache-store failure must never fail the query
// that produced the rows.
func (c *Cache) Store(ctx context.Context, query string, rows []map[string]any) {
	if !c.enabled {
		return
	}

	encoded, err := json.Marshal(rows)
	if err != nil {
		log.Warn().Err(err).Msg("cache store: encode failed")
		return
	}
	if len(encoded) > maxStoredResultBytes {
		log.Warn().Int("bytes", len(encoded)).Msg("cache store: result too large, skipping")
		return
	}

	entry := domain.CacheEntry{
		Query:     sqlast.Canonicalize(query),
		Timestamp: c.now(),
		TTL:       c.ttl,
		Results:   string(encoded),
	}
	if err := c.store.UpsertCache(ctx, entry); err != nil {
		log.Warn().Err(err).Msg("cache store: upsert failed")
	}
}
