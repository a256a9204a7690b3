// Copyright (c) 2025, s0up and the autobrr contributors.
// SPDX-License-Identifier: GPL-2.0-or-later

package handlers

import (
	"context"

	"github.com/sqlgate/sqlgate/internal/allowlist"
	"github.com/sqlgate/sqlgate/internal/domain"
	"github.com/sqlgate/sqlgate/internal/pipeline"
	"github.com/sqlgate/sqlgate/internal/querycache"
	"github.com/sqlgate/sqlgate/internal/rls"
)

// fakeDispatcher is a minimal in-memory pipeline.Dispatcher used to drive
// an Orchestrator without touching real storage.
type fakeDispatcher struct {
	shapedRows []map[string]any
	rawResult  *domain.RawResult
	txResults  []domain.TxResult
	err        error

	lastSQL    string
	lastParams []any
	calls      int
}

func (f *fakeDispatcher) EnqueueShaped(ctx context.Context, sql string, params []any) ([]map[string]any, error) {
	f.calls++
	f.lastSQL, f.lastParams = sql, params
	if f.err != nil {
		return nil, f.err
	}
	return f.shapedRows, nil
}

func (f *fakeDispatcher) EnqueueRaw(ctx context.Context, sql string, params []any) (*domain.RawResult, error) {
	f.calls++
	f.lastSQL, f.lastParams = sql, params
	if f.err != nil {
		return nil, f.err
	}
	return f.rawResult, nil
}

func (f *fakeDispatcher) EnqueueTransaction(ctx context.Context, statements []domain.Statement) ([]domain.TxResult, error) {
	f.calls++
	if f.err != nil {
		return nil, f.err
	}
	return f.txResults, nil
}

var _ pipeline.Dispatcher = (*fakeDispatcher)(nil)

// newTestOrchestrator builds an Orchestrator with the allowlist, RLS gate
// and cache all disabled, so any syntactically valid SQL passes straight
// through to dispatch.
func newTestOrchestrator(internal pipeline.Dispatcher) *pipeline.Orchestrator {
	gate := allowlist.New(nil, false)
	rewriter := rls.New(nil, false)
	cache := querycache.New(nil, false, 60, func() int64 { return 0 })
	return pipeline.New(gate, rewriter, cache, false, internal, nil)
}
