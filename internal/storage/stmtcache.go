// Copyright (c) 2025, s0up and the autobrr contributors.
// SPDX-License-Identifier: GPL-2.0-or-later

package storage

import (
	"database/sql"
	"sync"
	"time"
)

// stmtCache caches prepared statements keyed by their SQL text with a
// sliding TTL, mirroring the teacher's ttlcache-backed prepared statement
// cache in internal/database/db.go but self-contained: the gateway does not
// depend on autobrr's sibling application module for a single small cache.
type stmtCache struct {
	mu      sync.Mutex
	ttl     time.Duration
	entries map[string]*stmtEntry
}

type stmtEntry struct {
	stmt     *sql.Stmt
	deadline time.Time
}

func newStmtCache(ttl time.Duration) *stmtCache {
	if ttl <= 0 {
		ttl = 5 * time.Minute
	}
	return &stmtCache{ttl: ttl, entries: make(map[string]*stmtEntry)}
}

func (c *stmtCache) get(query string) (*sql.Stmt, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	e, ok := c.entries[query]
	if !ok {
		return nil, false
	}
	if time.Now().After(e.deadline) {
		delete(c.entries, query)
		_ = e.stmt.Close()
		return nil, false
	}
	e.deadline = time.Now().Add(c.ttl)
	return e.stmt, true
}

func (c *stmtCache) set(query string, stmt *sql.Stmt) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if existing, ok := c.entries[query]; ok && existing.stmt != stmt {
		_ = existing.stmt.Close()
	}
	c.entries[query] = &stmtEntry{stmt: stmt, deadline: time.Now().Add(c.ttl)}
}

func (c *stmtCache) close() {
	c.mu.Lock()
	defer c.mu.Unlock()

	for k, e := range c.entries {
		_ = e.stmt.Close()
		delete(c.entries, k)
	}
}
