// Copyright (c) 2025, s0up and the autobrr contributors.
// SPDX-License-Identifier: GPL-2.0-or-later

// Package allowlist implements the query pipeline's allowlist gate: a
// non-admin caller's statement must structurally match, modulo literal
// values, a row in tmp_allowlist_queries.
package allowlist

import (
	"context"
	"fmt"

	"github.com/rs/zerolog/log"

	"github.com/sqlgate/sqlgate/internal/domain"
	"github.com/sqlgate/sqlgate/internal/sqlast"
)

// Store loads the persisted allowlist snapshot. Implemented by the storage
// executor against tmp_allowlist_queries.
type Store interface {
	LoadAllowlist(ctx context.Context) ([]domain.AllowlistEntry, error)
}

// Result is the outcome of a Check call.
type Result struct {
	Allowed bool
	Reason  string
}

// Gate evaluates incoming SQL against the allowlist snapshot.
type Gate struct {
	store   Store
	enabled bool
}

// New constructs a Gate. enabled mirrors the features.allowlist config
// toggle; when false, Check always returns OK without consulting the
// store.
func New(store Store, enabled bool) *Gate {
	return &Gate{store: store, enabled: enabled}
}

// Check implements §4.5: admins, the disabled-feature case, and PRAGMA
// statements (which vitess's parser doesn't understand) bypass the gate;
// otherwise the incoming SQL must be AST-equivalent, modulo literal
// values, to at least one allowlisted entry.
func (g *Gate) Check(ctx context.Context, sql string, rc domain.RequestContext) (Result, error) {
	if !g.enabled {
		return Result{Allowed: true}, nil
	}
	if rc.IsAdmin() {
		return Result{Allowed: true}, nil
	}
	if sqlast.IsPragma(sql) {
		return Result{Allowed: true}, nil
	}

	incoming, err := sqlast.NormalizeLiterals(sql)
	if err != nil {
		return Result{}, fmt.Errorf("%w", err)
	}

	entries, err := g.store.LoadAllowlist(ctx)
	if err != nil {
		return Result{}, fmt.Errorf("load allowlist: %w", err)
	}

	for _, entry := range entries {
		canon, err := sqlast.NormalizeLiterals(entry.SQL)
		if err != nil {
			log.Warn().Err(err).Int64("entry_id", entry.ID).Msg("skipping malformed allowlist entry")
			continue
		}
		if canon == incoming {
			return Result{Allowed: true}, nil
		}
	}

	return Result{Allowed: false, Reason: "query not allowed"}, nil
}
