// Copyright (c) 2025, s0up and the autobrr contributors.
// SPDX-License-Identifier: GPL-2.0-or-later

package storage

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/sqlgate/sqlgate/internal/domain"
)

// LoadAllowlist implements allowlist.Store against tmp_allowlist_queries.
func (e *Executor) LoadAllowlist(ctx context.Context) ([]domain.AllowlistEntry, error) {
	rows, err := e.conn.QueryContext(ctx, `SELECT id, sql_statement FROM tmp_allowlist_queries`)
	if err != nil {
		return nil, fmt.Errorf("load allowlist: %w", err)
	}
	defer rows.Close()

	var entries []domain.AllowlistEntry
	for rows.Next() {
		var entry domain.AllowlistEntry
		if err := rows.Scan(&entry.ID, &entry.SQL); err != nil {
			return nil, fmt.Errorf("scan allowlist row: %w", err)
		}
		entries = append(entries, entry)
	}
	return entries, rows.Err()
}

// LoadPolicies implements rls.Store against tmp_rls_policies.
func (e *Executor) LoadPolicies(ctx context.Context) ([]domain.Policy, error) {
	rows, err := e.conn.QueryContext(ctx, `
		SELECT id, actions, "schema", "table", column, value, value_type, operator
		FROM tmp_rls_policies`)
	if err != nil {
		return nil, fmt.Errorf("load rls policies: %w", err)
	}
	defer rows.Close()

	var policies []domain.Policy
	for rows.Next() {
		var p domain.Policy
		if err := rows.Scan(&p.ID, &p.Action, &p.Schema, &p.Table, &p.Column, &p.Value, &p.ValueType, &p.Operator); err != nil {
			return nil, fmt.Errorf("scan rls policy row: %w", err)
		}
		policies = append(policies, p)
	}
	return policies, rows.Err()
}

// LookupCache implements querycache.Store's read side against tmp_cache.
func (e *Executor) LookupCache(ctx context.Context, query string, nowUnixMillis int64) (*domain.CacheEntry, error) {
	var entry domain.CacheEntry
	row := e.conn.QueryRowContext(ctx, `
		SELECT id, query, timestamp, ttl, results FROM tmp_cache WHERE query = ?`, query)
	if err := row.Scan(&entry.ID, &entry.Query, &entry.Timestamp, &entry.TTL, &entry.Results); err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		return nil, fmt.Errorf("lookup cache: %w", err)
	}
	if entry.Timestamp+entry.TTL*1000 <= nowUnixMillis {
		return nil, nil
	}
	return &entry, nil
}

// UpsertCache implements querycache.Store's write side: upsert by the
// query column's UNIQUE constraint.
func (e *Executor) UpsertCache(ctx context.Context, entry domain.CacheEntry) error {
	_, err := e.writeConn.ExecContext(ctx, `
		INSERT INTO tmp_cache (query, timestamp, ttl, results) VALUES (?, ?, ?, ?)
		ON CONFLICT(query) DO UPDATE SET timestamp = excluded.timestamp, ttl = excluded.ttl, results = excluded.results`,
		entry.Query, entry.Timestamp, entry.TTL, entry.Results)
	if err != nil {
		return fmt.Errorf("upsert cache: %w", err)
	}
	return nil
}

// ListUserTables returns every table name in the database except the
// bootstrap control tables, for the export/import dump facade.
func (e *Executor) ListUserTables(ctx context.Context) ([]string, error) {
	rows, err := e.conn.QueryContext(ctx, `
		SELECT name FROM sqlite_master
		WHERE type = 'table' AND name NOT LIKE 'tmp_%' AND name NOT LIKE 'sqlite_%'
		ORDER BY name`)
	if err != nil {
		return nil, fmt.Errorf("list user tables: %w", err)
	}
	defer rows.Close()

	var tables []string
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return nil, fmt.Errorf("scan table name: %w", err)
		}
		tables = append(tables, name)
	}
	return tables, rows.Err()
}

// LoadTableColumns returns a table's column names in declaration order via
// PRAGMA table_info, used by the REST facade's primary-key discovery.
func (e *Executor) LoadTableColumns(ctx context.Context, table string) ([]domain.ColumnInfo, error) {
	rows, err := e.conn.QueryContext(ctx, fmt.Sprintf(`PRAGMA table_info(%q)`, table))
	if err != nil {
		return nil, fmt.Errorf("load table columns: %w", err)
	}
	defer rows.Close()

	var cols []domain.ColumnInfo
	for rows.Next() {
		var (
			cid       int
			name      string
			ctype     string
			notNull   int
			dfltValue sql.NullString
			pk        int
		)
		if err := rows.Scan(&cid, &name, &ctype, &notNull, &dfltValue, &pk); err != nil {
			return nil, fmt.Errorf("scan table_info row: %w", err)
		}
		cols = append(cols, domain.ColumnInfo{Name: name, Type: ctype, PrimaryKey: pk > 0})
	}
	return cols, rows.Err()
}
