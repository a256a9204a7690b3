// Copyright (c) 2025, s0up and the autobrr contributors.
// SPDX-License-Identifier: GPL-2.0-or-later

// Package queue implements the single-writer operation queue described in
// §4.2: every ticket against the embedded engine is serialized through one
// worker goroutine, FIFO, with no reordering or coalescing.
package queue

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/sqlgate/sqlgate/internal/apierr"
	"github.com/sqlgate/sqlgate/internal/domain"
)

// Executor is the subset of the Storage Executor contract the queue
// dispatches tickets to.
type Executor interface {
	ExecShaped(ctx context.Context, sql string, params []any) ([]map[string]any, error)
	ExecRaw(ctx context.Context, sql string, params []any) (*domain.RawResult, error)
	TransactionSync(ctx context.Context, statements []domain.Statement) ([]domain.TxResult, error)
}

// ticketKind selects which Executor method a ticket dispatches to.
type ticketKind int

const (
	kindShaped ticketKind = iota
	kindRaw
	kindTransaction
)

type ticket struct {
	ctx        context.Context
	kind       ticketKind
	sql        string
	params     []any
	statements []domain.Statement
	resCh      chan ticketResult
}

type ticketResult struct {
	rows   []map[string]any
	raw    *domain.RawResult
	tx     []domain.TxResult
	err    error
}

const defaultBuffer = 256

// Queue serializes operations against one logical database through a
// single draining goroutine.
type Queue struct {
	executor Executor
	timeout  time.Duration

	ch   chan ticket
	stop chan struct{}
	wg   sync.WaitGroup

	closeOnce sync.Once
}

// New starts the queue's worker goroutine. timeout is the per-ticket
// deadline applied if the caller's context carries none; default 25s.
func New(executor Executor, timeout time.Duration) *Queue {
	if timeout <= 0 {
		timeout = 25 * time.Second
	}
	q := &Queue{
		executor: executor,
		timeout:  timeout,
		ch:       make(chan ticket, defaultBuffer),
		stop:     make(chan struct{}),
	}
	q.wg.Add(1)
	go q.worker()
	return q
}

// EnqueueShaped runs sql/params against the executor's shaped result path.
func (q *Queue) EnqueueShaped(ctx context.Context, sql string, params []any) ([]map[string]any, error) {
	res, err := q.enqueue(ctx, ticket{kind: kindShaped, sql: sql, params: params})
	return res.rows, err
}

// EnqueueRaw runs sql/params against the executor's raw result path.
func (q *Queue) EnqueueRaw(ctx context.Context, sql string, params []any) (*domain.RawResult, error) {
	res, err := q.enqueue(ctx, ticket{kind: kindRaw, sql: sql, params: params})
	return res.raw, err
}

// EnqueueTransaction runs a batch of statements as a single atomic
// transaction (§4.1 transaction_sync, I5).
func (q *Queue) EnqueueTransaction(ctx context.Context, statements []domain.Statement) ([]domain.TxResult, error) {
	res, err := q.enqueue(ctx, ticket{kind: kindTransaction, statements: statements})
	return res.tx, err
}

func (q *Queue) enqueue(ctx context.Context, t ticket) (ticketResult, error) {
	deadline, ok := ctx.Deadline()
	if !ok {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, q.timeout)
		defer cancel()
		deadline = time.Now().Add(q.timeout)
	}
	_ = deadline

	t.ctx = ctx
	t.resCh = make(chan ticketResult, 1)

	select {
	case q.ch <- t:
	case <-ctx.Done():
		return ticketResult{}, apierr.Timeout("operation queue: ticket rejected, deadline exceeded before dispatch")
	case <-q.stop:
		return ticketResult{}, fmt.Errorf("operation queue: closed")
	}

	select {
	case res := <-t.resCh:
		return res, res.err
	case <-ctx.Done():
		return ticketResult{}, apierr.Timeout("operation queue: deadline exceeded waiting for result")
	}
}

// worker drains the queue FIFO, one ticket at a time, exactly as the
// teacher's writerLoop/processWrite pair does for the embedded engine's
// single write connection.
func (q *Queue) worker() {
	defer q.wg.Done()

	draining := false
	for {
		if draining {
			select {
			case t, ok := <-q.ch:
				if !ok {
					return
				}
				q.process(t)
			default:
				return
			}
			continue
		}

		select {
		case t, ok := <-q.ch:
			if !ok {
				return
			}
			q.process(t)
		case <-q.stop:
			draining = true
		}
	}
}

func (q *Queue) process(t ticket) {
	var res ticketResult
	switch t.kind {
	case kindShaped:
		res.rows, res.err = q.executor.ExecShaped(t.ctx, t.sql, t.params)
	case kindRaw:
		res.raw, res.err = q.executor.ExecRaw(t.ctx, t.sql, t.params)
	case kindTransaction:
		res.tx, res.err = q.executor.TransactionSync(t.ctx, t.statements)
	}
	select {
	case t.resCh <- res:
	default:
	}
}

// Depth reports the number of tickets currently buffered, for metrics.
func (q *Queue) Depth() int {
	return len(q.ch)
}

// Close drains in-flight tickets (refusing new ones) and stops the worker.
// The caller is responsible for closing the underlying executor afterward.
func (q *Queue) Close() {
	q.closeOnce.Do(func() {
		close(q.stop)
		q.wg.Wait()
		log.Debug().Msg("operation queue drained")
	})
}
