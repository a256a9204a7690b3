// Copyright (c) 2025, s0up and the autobrr contributors.
// SPDX-License-Identifier: GPL-2.0-or-later

// Package storage implements the Storage Executor (§4.1): the embedded
// modernc.org/sqlite engine, its single dedicated write connection, and the
// three bootstrap control tables the rest of the pipeline reads from.
package storage

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"
	"unicode"

	"github.com/rs/zerolog/log"
	"modernc.org/sqlite"

	"github.com/sqlgate/sqlgate/internal/apierr"
	"github.com/sqlgate/sqlgate/internal/domain"
)

const (
	defaultBusyTimeout     = 5 * time.Second
	connectionSetupTimeout = 5 * time.Second
)

var driverInit sync.Once

func registerConnectionHook() {
	driverInit.Do(func() {
		sqlite.RegisterConnectionHook(func(conn sqlite.ExecQuerierContext, dsn string) error {
			ctx, cancel := context.WithTimeout(context.Background(), connectionSetupTimeout)
			defer cancel()
			return applyConnectionPragmas(ctx, func(ctx context.Context, stmt string) error {
				_, err := conn.ExecContext(ctx, stmt, nil)
				return err
			})
		})
	})
}

func applyConnectionPragmas(ctx context.Context, exec func(context.Context, string) error) error {
	pragmas := []string{
		"PRAGMA journal_mode = WAL",
		"PRAGMA foreign_keys = ON",
		fmt.Sprintf("PRAGMA busy_timeout = %d", int(defaultBusyTimeout/time.Millisecond)),
	}
	for _, p := range pragmas {
		if err := exec(ctx, p); err != nil {
			return fmt.Errorf("apply connection pragma %q: %w", p, err)
		}
	}
	return nil
}

// Executor is the embedded Storage Executor. It owns a read connection pool
// and one dedicated write connection; the Operation Queue (internal/queue)
// is the only caller permitted to reach the write path, which keeps I4 (at
// most one in-flight write) true without the executor itself needing to
// know about callers.
type Executor struct {
	conn      *sql.DB
	writeConn *sql.Conn
	stmts     *stmtCache

	closeOnce sync.Once
}

// Open creates or opens the embedded database at path, applies pragmas,
// ensures the bootstrap tables exist, and acquires the dedicated write
// connection.
func Open(path string) (*Executor, error) {
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("create database directory: %w", err)
		}
	}

	registerConnectionHook()

	conn, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open database at %s: %w", path, err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), connectionSetupTimeout)
	defer cancel()
	if err := applyConnectionPragmas(ctx, func(ctx context.Context, s string) error {
		_, execErr := conn.ExecContext(ctx, s)
		return execErr
	}); err != nil {
		conn.Close()
		return nil, err
	}

	for _, ddl := range bootstrapTables {
		if _, err := conn.ExecContext(ctx, ddl); err != nil {
			conn.Close()
			return nil, fmt.Errorf("bootstrap table: %w", err)
		}
	}

	writeConn, err := conn.Conn(ctx)
	if err != nil {
		conn.Close()
		return nil, fmt.Errorf("acquire write connection: %w", err)
	}

	log.Info().Str("path", path).Msg("storage executor initialized")

	return &Executor{
		conn:      conn,
		writeConn: writeConn,
		stmts:     newStmtCache(5 * time.Minute),
	}, nil
}

// Close releases the write connection and closes the pool.
func (e *Executor) Close() error {
	var closeErr error
	e.closeOnce.Do(func() {
		e.stmts.close()
		if e.writeConn != nil {
			if err := e.writeConn.Close(); err != nil {
				log.Warn().Err(err).Msg("failed to close write connection")
			}
		}
		closeErr = e.conn.Close()
	})
	return closeErr
}

func isWriteQuery(query string) bool {
	q := strings.TrimLeftFunc(query, unicode.IsSpace)
	upper := strings.ToUpper(q)
	return strings.HasPrefix(upper, "INSERT") ||
		strings.HasPrefix(upper, "UPDATE") ||
		strings.HasPrefix(upper, "DELETE") ||
		strings.HasPrefix(upper, "REPLACE") ||
		strings.HasPrefix(upper, "CREATE") ||
		strings.HasPrefix(upper, "DROP") ||
		strings.HasPrefix(upper, "ALTER")
}

// getStmt prepares and caches a statement against the read pool for
// non-write queries; write queries always go straight through the
// dedicated write connection since sql.DB may route a prepared statement
// to any pooled connection.
func (e *Executor) getStmt(ctx context.Context, query string) (*sql.Stmt, error) {
	if s, ok := e.stmts.get(query); ok {
		return s, nil
	}
	s, err := e.conn.PrepareContext(ctx, query)
	if err != nil {
		return nil, err
	}
	e.stmts.set(query, s)
	return s, nil
}

// ExecShaped implements exec_shaped: statement execution with results
// returned as a sequence of column-name -> scalar mappings.
func (e *Executor) ExecShaped(ctx context.Context, query string, params []any) ([]map[string]any, error) {
	if isWriteQuery(query) {
		if _, err := e.writeConn.ExecContext(ctx, query, params...); err != nil {
			return nil, apierr.FromStorage(err, "exec_shaped")
		}
		return nil, nil
	}

	rows, err := e.queryRows(ctx, query, params)
	if err != nil {
		return nil, apierr.FromStorage(err, "exec_shaped")
	}
	return rows, nil
}

// ExecRaw implements exec_raw: ordered columns, ordered row tuples, and
// rows_read/rows_written metadata.
func (e *Executor) ExecRaw(ctx context.Context, query string, params []any) (*domain.RawResult, error) {
	if isWriteQuery(query) {
		res, err := e.writeConn.ExecContext(ctx, query, params...)
		if err != nil {
			return nil, apierr.FromStorage(err, "exec_raw")
		}
		affected, _ := res.RowsAffected()
		return &domain.RawResult{Meta: domain.RawMeta{RowsWritten: affected}}, nil
	}

	stmt, err := e.getStmt(ctx, query)
	var rows *sql.Rows
	if err == nil {
		rows, err = stmt.QueryContext(ctx, params...)
	} else {
		rows, err = e.conn.QueryContext(ctx, query, params...)
	}
	if err != nil {
		return nil, apierr.FromStorage(err, "exec_raw")
	}
	defer rows.Close()

	cols, err := rows.Columns()
	if err != nil {
		return nil, apierr.FromStorage(err, "exec_raw: columns")
	}

	var out [][]any
	for rows.Next() {
		vals := make([]any, len(cols))
		ptrs := make([]any, len(cols))
		for i := range vals {
			ptrs[i] = &vals[i]
		}
		if err := rows.Scan(ptrs...); err != nil {
			return nil, apierr.FromStorage(err, "exec_raw: scan")
		}
		out = append(out, vals)
	}
	if err := rows.Err(); err != nil {
		return nil, apierr.FromStorage(err, "exec_raw: iterate")
	}

	return &domain.RawResult{
		Columns: cols,
		Rows:    out,
		Meta:    domain.RawMeta{RowsRead: int64(len(out))},
	}, nil
}

func (e *Executor) queryRows(ctx context.Context, query string, params []any) ([]map[string]any, error) {
	stmt, err := e.getStmt(ctx, query)
	var rows *sql.Rows
	if err == nil {
		rows, err = stmt.QueryContext(ctx, params...)
	} else {
		rows, err = e.conn.QueryContext(ctx, query, params...)
	}
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	cols, err := rows.Columns()
	if err != nil {
		return nil, err
	}

	var out []map[string]any
	for rows.Next() {
		vals := make([]any, len(cols))
		ptrs := make([]any, len(cols))
		for i := range vals {
			ptrs[i] = &vals[i]
		}
		if err := rows.Scan(ptrs...); err != nil {
			return nil, err
		}
		row := make(map[string]any, len(cols))
		for i, c := range cols {
			row[c] = vals[i]
		}
		out = append(out, row)
	}
	return out, rows.Err()
}

// TransactionSync implements transaction_sync: a Batch either fully
// commits or fully rolls back (I5). It always runs on the dedicated write
// connection, regardless of whether every statement in the batch is itself
// a write, since mixing read/write statements inside one sql.Tx requires a
// single underlying connection.
func (e *Executor) TransactionSync(ctx context.Context, statements []domain.Statement) ([]domain.TxResult, error) {
	tx, err := e.writeConn.BeginTx(ctx, nil)
	if err != nil {
		return nil, apierr.FromStorage(err, "transaction_sync: begin")
	}
	defer tx.Rollback()

	results := make([]domain.TxResult, 0, len(statements))
	for _, stmt := range statements {
		if isWriteQuery(stmt.SQL) {
			if _, err := tx.ExecContext(ctx, stmt.SQL, stmt.Params...); err != nil {
				return nil, apierr.FromStorage(err, "transaction_sync: exec")
			}
			results = append(results, domain.TxResult{})
			continue
		}

		rows, err := tx.QueryContext(ctx, stmt.SQL, stmt.Params...)
		if err != nil {
			return nil, apierr.FromStorage(err, "transaction_sync: query")
		}
		shaped, err := scanShaped(rows)
		rows.Close()
		if err != nil {
			return nil, apierr.FromStorage(err, "transaction_sync: scan")
		}
		results = append(results, domain.TxResult{Shaped: shaped})
	}

	if err := tx.Commit(); err != nil {
		return nil, apierr.FromStorage(err, "transaction_sync: commit")
	}
	return results, nil
}

func scanShaped(rows *sql.Rows) ([]map[string]any, error) {
	cols, err := rows.Columns()
	if err != nil {
		return nil, err
	}
	var out []map[string]any
	for rows.Next() {
		vals := make([]any, len(cols))
		ptrs := make([]any, len(cols))
		for i := range vals {
			ptrs[i] = &vals[i]
		}
		if err := rows.Scan(ptrs...); err != nil {
			return nil, err
		}
		row := make(map[string]any, len(cols))
		for i, c := range cols {
			row[c] = vals[i]
		}
		out = append(out, row)
	}
	return out, rows.Err()
}
