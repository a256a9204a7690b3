// Copyright (c) 2025-2026, s0up and the autobrr contributors.
// SPDX-License-Identifier: GPL-2.0-or-later

// Package external implements the External Adapter (§4.3): a uniform
// facade over a remote Postgres, MySQL, or HTTP-pipeline SQLite-family
// backend, presenting the same exec_shaped/exec_raw/transaction_sync shape
// as the embedded Storage Executor so the Pipeline Orchestrator can treat
// context.source = external identically regardless of backend.
package external

import (
	"context"
	"database/sql"
	"net/http"

	_ "github.com/go-sql-driver/mysql"
	_ "github.com/jackc/pgx/v5/stdlib"

	"github.com/sqlgate/sqlgate/internal/apierr"
	"github.com/sqlgate/sqlgate/internal/domain"
)

// Adapter dispatches statements to one configured remote SQL backend.
type Adapter struct {
	engine Engine
	db     *sql.DB

	// http* are only set when engine == EngineHTTP; see http_adapter.go.
	httpClient *http.Client
	baseURL    string
	token      string
}

// Config configures which remote backend an Adapter dispatches to.
type Config struct {
	Engine Engine
	DSN    string
}

// Open opens a connection pool to the configured backend. HTTP-pipeline
// backends are opened separately via OpenHTTP.
func Open(cfg Config) (*Adapter, error) {
	driver := "pgx"
	if cfg.Engine == EngineMySQL {
		driver = "mysql"
	}
	db, err := sql.Open(driver, cfg.DSN)
	if err != nil {
		return nil, apierr.Wrap(apierr.KindExternalFailure, "open external backend", err)
	}
	return &Adapter{engine: cfg.Engine, db: db}, nil
}

// Close releases the adapter's connection pool. HTTP adapters hold no
// persistent connection and close is a no-op.
func (a *Adapter) Close() error {
	if a.db == nil {
		return nil
	}
	return a.db.Close()
}

// ExecShaped implements exec_shaped against the remote backend.
func (a *Adapter) ExecShaped(ctx context.Context, query string, params []any) ([]map[string]any, error) {
	if a.engine == EngineHTTP {
		return a.execShapedHTTP(ctx, query, params)
	}

	bound := rebind(a.engine, query)

	if isWriteQuery(bound) {
		if _, err := a.db.ExecContext(ctx, bound, params...); err != nil {
			return nil, apierr.FromExternal(err, "exec_shaped")
		}
		return nil, nil
	}

	rows, err := a.db.QueryContext(ctx, bound, params...)
	if err != nil {
		return nil, apierr.FromExternal(err, "exec_shaped")
	}
	defer rows.Close()

	shaped, err := scanShaped(rows)
	if err != nil {
		return nil, apierr.FromExternal(err, "exec_shaped: scan")
	}
	return shaped, nil
}

// ExecRaw implements exec_raw against the remote backend, normalizing the
// response into the same column-oriented envelope as the embedded engine.
func (a *Adapter) ExecRaw(ctx context.Context, query string, params []any) (*domain.RawResult, error) {
	if a.engine == EngineHTTP {
		return a.execRawHTTP(ctx, query, params)
	}

	bound := rebind(a.engine, query)

	if isWriteQuery(bound) {
		res, err := a.db.ExecContext(ctx, bound, params...)
		if err != nil {
			return nil, apierr.FromExternal(err, "exec_raw")
		}
		affected, _ := res.RowsAffected()
		return &domain.RawResult{Meta: domain.RawMeta{RowsWritten: affected}}, nil
	}

	rows, err := a.db.QueryContext(ctx, bound, params...)
	if err != nil {
		return nil, apierr.FromExternal(err, "exec_raw")
	}
	defer rows.Close()

	cols, err := rows.Columns()
	if err != nil {
		return nil, apierr.FromExternal(err, "exec_raw: columns")
	}

	var out [][]any
	for rows.Next() {
		vals := make([]any, len(cols))
		ptrs := make([]any, len(cols))
		for i := range vals {
			ptrs[i] = &vals[i]
		}
		if err := rows.Scan(ptrs...); err != nil {
			return nil, apierr.FromExternal(err, "exec_raw: scan")
		}
		out = append(out, vals)
	}
	if err := rows.Err(); err != nil {
		return nil, apierr.FromExternal(err, "exec_raw: iterate")
	}

	return &domain.RawResult{Columns: cols, Rows: out, Meta: domain.RawMeta{RowsRead: int64(len(out))}}, nil
}

// TransactionSync implements transaction_sync against the remote backend;
// a Batch either fully commits or fully rolls back (I5).
func (a *Adapter) TransactionSync(ctx context.Context, statements []domain.Statement) ([]domain.TxResult, error) {
	if a.engine == EngineHTTP {
		return a.transactionSyncHTTP(ctx, statements)
	}

	tx, err := a.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, apierr.FromExternal(err, "transaction_sync: begin")
	}
	defer tx.Rollback()

	results := make([]domain.TxResult, 0, len(statements))
	for _, stmt := range statements {
		bound := rebind(a.engine, stmt.SQL)
		if isWriteQuery(bound) {
			if _, err := tx.ExecContext(ctx, bound, stmt.Params...); err != nil {
				return nil, apierr.FromExternal(err, "transaction_sync: exec")
			}
			results = append(results, domain.TxResult{})
			continue
		}

		rows, err := tx.QueryContext(ctx, bound, stmt.Params...)
		if err != nil {
			return nil, apierr.FromExternal(err, "transaction_sync: query")
		}
		shaped, err := scanShaped(rows)
		rows.Close()
		if err != nil {
			return nil, apierr.FromExternal(err, "transaction_sync: scan")
		}
		results = append(results, domain.TxResult{Shaped: shaped})
	}

	if err := tx.Commit(); err != nil {
		return nil, apierr.FromExternal(err, "transaction_sync: commit")
	}
	return results, nil
}

// EnqueueShaped satisfies pipeline.Dispatcher so the orchestrator can treat
// the External Adapter identically to the Operation Queue.
func (a *Adapter) EnqueueShaped(ctx context.Context, query string, params []any) ([]map[string]any, error) {
	return a.ExecShaped(ctx, query, params)
}

// EnqueueRaw satisfies pipeline.Dispatcher.
func (a *Adapter) EnqueueRaw(ctx context.Context, query string, params []any) (*domain.RawResult, error) {
	return a.ExecRaw(ctx, query, params)
}

// EnqueueTransaction satisfies pipeline.Dispatcher.
func (a *Adapter) EnqueueTransaction(ctx context.Context, statements []domain.Statement) ([]domain.TxResult, error) {
	return a.TransactionSync(ctx, statements)
}

// LoadTableColumns discovers a table's columns and primary key via
// information_schema, the dialect-appropriate equivalent of the embedded
// engine's PRAGMA table_info (§4.10).
func (a *Adapter) LoadTableColumns(ctx context.Context, table string) ([]domain.ColumnInfo, error) {
	if a.engine == EngineHTTP {
		return a.loadTableColumnsHTTP(ctx, table)
	}

	rows, err := a.db.QueryContext(ctx, rebind(a.engine, informationSchemaQueryTemplate), table)
	if err != nil {
		return nil, apierr.FromExternal(err, "load table columns")
	}
	defer rows.Close()

	var cols []domain.ColumnInfo
	for rows.Next() {
		var c domain.ColumnInfo
		var pk bool
		if err := rows.Scan(&c.Name, &c.Type, &pk); err != nil {
			return nil, apierr.FromExternal(err, "load table columns: scan")
		}
		c.PrimaryKey = pk
		cols = append(cols, c)
	}
	if err := rows.Err(); err != nil {
		return nil, apierr.FromExternal(err, "load table columns: iterate")
	}
	return cols, nil
}

// informationSchemaQueryTemplate joins column metadata against the table's
// primary key constraint; written with `?` placeholders and rebound per
// engine before use.
const informationSchemaQueryTemplate = `
SELECT c.column_name, c.data_type,
       CASE WHEN kcu.column_name IS NOT NULL THEN true ELSE false END AS is_primary_key
FROM information_schema.columns c
LEFT JOIN information_schema.key_column_usage kcu
       ON kcu.table_name = c.table_name
      AND kcu.column_name = c.column_name
      AND kcu.constraint_name IN (
          SELECT constraint_name FROM information_schema.table_constraints
          WHERE table_name = c.table_name AND constraint_type = 'PRIMARY KEY'
      )
WHERE c.table_name = ?
ORDER BY c.ordinal_position`

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

func isWriteQuery(query string) bool {
	for _, prefix := range []string{"INSERT", "UPDATE", "DELETE", "REPLACE", "CREATE", "DROP", "ALTER"} {
		if hasUpperPrefix(query, prefix) {
			return true
		}
	}
	return false
}

func hasUpperPrefix(query, prefix string) bool {
	trimmed := trimLeadingSpace(query)
	if len(trimmed) < len(prefix) {
		return false
	}
	for i := 0; i < len(prefix); i++ {
		c := trimmed[i]
		if c >= 'a' && c <= 'z' {
			c -= 'a' - 'A'
		}
		if c != prefix[i] {
			return false
		}
	}
	return true
}

func trimLeadingSpace(s string) string {
	i := 0
	for i < len(s) && (s[i] == ' ' || s[i] == '\t' || s[i] == '\n' || s[i] == '\r') {
		i++
	}
	return s[i:]
}
