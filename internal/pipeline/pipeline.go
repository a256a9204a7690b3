// Copyright (c) 2025, s0up and the autobrr contributors.
// SPDX-License-Identifier: GPL-2.0-or-later

// Package pipeline implements the Pipeline Orchestrator (§4.8): the single
// place every statement or batch passes through on its way from the
// transport layer to a storage backend, running the allowlist gate, RLS
// rewrite, query cache, and dispatch in a fixed order.
package pipeline

import (
	"context"
	"fmt"

	"github.com/sqlgate/sqlgate/internal/allowlist"
	"github.com/sqlgate/sqlgate/internal/apierr"
	"github.com/sqlgate/sqlgate/internal/domain"
	"github.com/sqlgate/sqlgate/internal/querycache"
	"github.com/sqlgate/sqlgate/internal/rls"
	"github.com/sqlgate/sqlgate/internal/sqlast"
)

// Dispatcher runs a statement or batch against a concrete backend (the
// internal Operation Queue or an External Adapter). Both satisfy this
// shape, so the orchestrator doesn't need to know which one it's talking
// to beyond context.source.
type Dispatcher interface {
	EnqueueShaped(ctx context.Context, sql string, params []any) ([]map[string]any, error)
	EnqueueRaw(ctx context.Context, sql string, params []any) (*domain.RawResult, error)
	EnqueueTransaction(ctx context.Context, statements []domain.Statement) ([]domain.TxResult, error)
}

// PostHook is the documented extension point run after a successful
// dispatch; identity by default.
type PostHook func(ctx context.Context, rows []map[string]any) []map[string]any

// Orchestrator wires the allowlist gate, RLS rewriter, query cache and
// dispatch targets together per §4.8.
type Orchestrator struct {
	allowlist *allowlist.Gate
	rls       *rls.Rewriter
	cache     *querycache.Cache
	cacheFlag bool

	internal Dispatcher
	external Dispatcher

	postHook PostHook
}

// New constructs an Orchestrator. external may be nil if no remote backend
// is configured; requests with context.source = external then fail with
// ExternalFailure.
func New(gate *allowlist.Gate, rewriter *rls.Rewriter, cache *querycache.Cache, cacheFlag bool, internal, external Dispatcher) *Orchestrator {
	return &Orchestrator{
		allowlist: gate,
		rls:       rewriter,
		cache:     cache,
		cacheFlag: cacheFlag,
		internal:  internal,
		external:  external,
		postHook:  func(_ context.Context, rows []map[string]any) []map[string]any { return rows },
	}
}

// WithPostHook overrides the default identity post-hook.
func (o *Orchestrator) WithPostHook(hook PostHook) {
	o.postHook = hook
}

// Run implements §4.8 for a single statement.
func (o *Orchestrator) Run(ctx context.Context, stmt domain.Statement, rc domain.RequestContext, raw bool) (shaped []map[string]any, rawResult *domain.RawResult, err error) {
	if stmt.Empty() {
		return nil, nil, apierr.BadRequest("sql must be a non-empty string")
	}

	sql, cacheable, err := o.prepare(ctx, stmt.SQL, stmt.Params, rc)
	if err != nil {
		return nil, nil, err
	}

	if cacheable {
		if rows, hit, err := o.cache.Lookup(ctx, sql); err == nil && hit {
			return rows, nil, nil
		}
	}

	dispatcher := o.dispatcherFor(rc)
	if dispatcher == nil {
		return nil, nil, apierr.New(apierr.KindExternalFailure, "no external backend configured")
	}

	if raw {
		res, err := dispatcher.EnqueueRaw(ctx, sql, stmt.Params)
		if err != nil {
			return nil, nil, err
		}
		return nil, res, nil
	}

	rows, err := dispatcher.EnqueueShaped(ctx, sql, stmt.Params)
	if err != nil {
		return nil, nil, err
	}
	rows = o.postHook(ctx, rows)

	if cacheable {
		o.cache.Store(ctx, sql, rows)
	}

	return rows, nil, nil
}

// RunBatch implements §4.8 steps 2-5 applied to every statement in a
// Batch, then executes the whole sequence as one atomic transaction (I5).
// Batches are never cacheable (they may contain writes).
func (o *Orchestrator) RunBatch(ctx context.Context, batch domain.Batch, rc domain.RequestContext) ([]domain.TxResult, error) {
	if len(batch.Statements) == 0 {
		return nil, apierr.BadRequest("transaction must contain at least one statement")
	}

	rewritten := make([]domain.Statement, 0, len(batch.Statements))
	for _, stmt := range batch.Statements {
		if stmt.Empty() {
			return nil, apierr.BadRequest("sql must be a non-empty string")
		}
		sql, _, err := o.prepare(ctx, stmt.SQL, stmt.Params, rc)
		if err != nil {
			return nil, err
		}
		rewritten = append(rewritten, domain.Statement{SQL: sql, Params: stmt.Params})
	}

	dispatcher := o.dispatcherFor(rc)
	if dispatcher == nil {
		return nil, apierr.New(apierr.KindExternalFailure, "no external backend configured")
	}
	return dispatcher.EnqueueTransaction(ctx, rewritten)
}

// prepare runs steps 3-5: parse, allowlist, RLS, returning the rewritten
// SQL and whether the statement is cache-eligible. PRAGMA statements pass
// through untouched (spec.md §4.6): vitess's parser doesn't understand
// them, so they skip parsing, the allowlist gate, and RLS entirely and
// are never cache-eligible.
func (o *Orchestrator) prepare(ctx context.Context, sql string, params []any, rc domain.RequestContext) (string, bool, error) {
	if sqlast.IsPragma(sql) {
		return sql, false, nil
	}

	stmt, err := sqlast.Parse(sql)
	if err != nil {
		return "", false, apierr.Wrap(apierr.KindBadRequest, "parse statement", err)
	}

	allowRes, err := o.allowlist.Check(ctx, sql, rc)
	if err != nil {
		return "", false, fmt.Errorf("allowlist check: %w", err)
	}
	if !allowRes.Allowed {
		return "", false, apierr.Forbidden(allowRes.Reason)
	}

	rlsRes, err := o.rls.Rewrite(ctx, sql, rc)
	if err != nil {
		return "", false, fmt.Errorf("rls rewrite: %w", err)
	}
	if !rlsRes.Allowed {
		return "", false, apierr.Forbidden(rlsRes.Reason)
	}

	cacheable := o.cacheFlag && querycache.Cacheable(stmt, params, rc, o.cacheFlag)
	return rlsRes.SQL, cacheable, nil
}

func (o *Orchestrator) dispatcherFor(rc domain.RequestContext) Dispatcher {
	if rc.Source == domain.SourceExternal {
		return o.external
	}
	return o.internal
}
