// Copyright (c) 2025, s0up and the autobrr contributors.
// SPDX-License-Identifier: GPL-2.0-or-later

// Package rest implements the REST Facade (§4.10): it maps
// /rest/<table>[/<id>] and an HTTP verb into a generated SQL statement,
// then routes that statement through the Pipeline Orchestrator exactly as
// /query does, so every REST request is still subject to the allowlist
// gate and RLS rewrite.
package rest

import (
	"context"
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"github.com/sqlgate/sqlgate/internal/apierr"
	"github.com/sqlgate/sqlgate/internal/domain"
)

// Runner is the subset of the Pipeline Orchestrator the facade needs.
type Runner interface {
	Run(ctx context.Context, stmt domain.Statement, rc domain.RequestContext, raw bool) ([]map[string]any, *domain.RawResult, error)
}

// ColumnSource discovers a table's columns and primary key, dialect by
// dialect (PRAGMA table_info for SQLite, information_schema for
// Postgres/MySQL).
type ColumnSource interface {
	LoadTableColumns(ctx context.Context, table string) ([]domain.ColumnInfo, error)
}

// Facade builds and dispatches the SQL generated from a /rest/<table>[/<id>]
// request.
type Facade struct {
	runner  Runner
	columns ColumnSource
}

// New constructs a Facade.
func New(runner Runner, columns ColumnSource) *Facade {
	return &Facade{runner: runner, columns: columns}
}

var identifierPattern = regexp.MustCompile(`^[A-Za-z0-9_]+$`)

func sanitizeIdentifier(s string) (string, error) {
	if !identifierPattern.MatchString(s) {
		return "", apierr.BadRequest("invalid identifier %q", s)
	}
	return s, nil
}

var reservedQueryKeys = map[string]bool{
	"sort_by": true,
	"order":   true,
	"limit":   true,
	"offset":  true,
}

var filterSuffixes = map[string]string{
	".eq":   "=",
	".ne":   "!=",
	".gt":   ">",
	".lt":   "<",
	".gte":  ">=",
	".lte":  "<=",
	".like": "LIKE",
	".in":   "IN",
}

// Request is the facade's dialect-neutral description of one REST call,
// built by the transport layer from the URL path, query string, verb, and
// JSON body.
type Request struct {
	Table   string
	ID      []string // composite primary-key segments from the URL path, if any
	Method  string    // GET, POST, PATCH, PUT, DELETE
	Filters map[string][]string
	SortBy  string
	Order   string
	Limit   string
	Offset  string
	Body    map[string]any // POST/PATCH/PUT column values
}

// Handle builds the SQL for req, dispatches it through the orchestrator,
// and returns the shaped rows.
func (f *Facade) Handle(ctx context.Context, req Request, rc domain.RequestContext) ([]map[string]any, error) {
	table, err := sanitizeIdentifier(req.Table)
	if err != nil {
		return nil, err
	}

	cols, err := f.columns.LoadTableColumns(ctx, table)
	if err != nil {
		return nil, err
	}
	if len(cols) == 0 {
		return nil, apierr.New(apierr.KindBadRequest, fmt.Sprintf("unknown table %q", table))
	}
	pk := primaryKeyColumns(cols)

	var stmt domain.Statement
	switch req.Method {
	case "GET":
		stmt, err = f.buildSelect(table, pk, req)
	case "POST":
		stmt, err = f.buildInsert(table, req)
	case "PATCH":
		stmt, err = f.buildUpdate(table, pk, nonPKColumns(cols), req)
	case "PUT":
		stmt, err = f.buildUpdate(table, pk, allColumnNames(cols), req)
	case "DELETE":
		stmt, err = f.buildDelete(table, pk, req)
	default:
		return nil, apierr.New(apierr.KindBadRequest, "method not allowed: "+req.Method)
	}
	if err != nil {
		return nil, err
	}

	rows, _, err := f.runner.Run(ctx, stmt, rc, false)
	return rows, err
}

func primaryKeyColumns(cols []domain.ColumnInfo) []string {
	var pk []string
	for _, c := range cols {
		if c.PrimaryKey {
			pk = append(pk, c.Name)
		}
	}
	return pk
}

func nonPKColumns(cols []domain.ColumnInfo) []string {
	var out []string
	for _, c := range cols {
		if !c.PrimaryKey {
			out = append(out, c.Name)
		}
	}
	return out
}

func allColumnNames(cols []domain.ColumnInfo) []string {
	out := make([]string, len(cols))
	for i, c := range cols {
		out[i] = c.Name
	}
	return out
}

func (f *Facade) buildSelect(table string, pk []string, req Request) (domain.Statement, error) {
	var where []string
	var params []any

	if len(req.ID) > 0 {
		if len(req.ID) != len(pk) {
			return domain.Statement{}, apierr.BadRequest("expected %d primary key segment(s), got %d", len(pk), len(req.ID))
		}
		for i, col := range pk {
			where = append(where, fmt.Sprintf("%s = ?", col))
			params = append(params, req.ID[i])
		}
	}

	for key, values := range req.Filters {
		clause, vals, err := filterClause(key, values)
		if err != nil {
			return domain.Statement{}, err
		}
		where = append(where, clause)
		params = append(params, vals...)
	}

	sql := fmt.Sprintf("SELECT * FROM %s", table)
	if len(where) > 0 {
		sql += " WHERE " + strings.Join(where, " AND ")
	}

	if req.SortBy != "" {
		sortCol, err := sanitizeIdentifier(req.SortBy)
		if err != nil {
			return domain.Statement{}, err
		}
		order := "ASC"
		if strings.EqualFold(req.Order, "DESC") {
			order = "DESC"
		}
		sql += fmt.Sprintf(" ORDER BY %s %s", sortCol, order)
	}
	if req.Limit != "" {
		n, err := strconv.Atoi(req.Limit)
		if err != nil {
			return domain.Statement{}, apierr.BadRequest("invalid limit %q", req.Limit)
		}
		sql += fmt.Sprintf(" LIMIT %d", n)
	}
	if req.Offset != "" {
		n, err := strconv.Atoi(req.Offset)
		if err != nil {
			return domain.Statement{}, apierr.BadRequest("invalid offset %q", req.Offset)
		}
		sql += fmt.Sprintf(" OFFSET %d", n)
	}

	return domain.Statement{SQL: sql, Params: params}, nil
}

func filterClause(key string, values []string) (string, []any, error) {
	col := key
	op := "="
	for suffix, sqlOp := range filterSuffixes {
		if strings.HasSuffix(key, suffix) {
			col = strings.TrimSuffix(key, suffix)
			op = sqlOp
			break
		}
	}
	col, err := sanitizeIdentifier(col)
	if err != nil {
		return "", nil, err
	}

	if op == "IN" {
		parts := strings.Split(values[0], ",")
		placeholders := make([]string, len(parts))
		vals := make([]any, len(parts))
		for i, p := range parts {
			placeholders[i] = "?"
			vals[i] = p
		}
		return fmt.Sprintf("%s IN (%s)", col, strings.Join(placeholders, ", ")), vals, nil
	}

	return fmt.Sprintf("%s %s ?", col, op), []any{values[0]}, nil
}

func (f *Facade) buildInsert(table string, req Request) (domain.Statement, error) {
	if len(req.Body) == 0 {
		return domain.Statement{}, apierr.BadRequest("request body must contain at least one column")
	}
	cols := make([]string, 0, len(req.Body))
	placeholders := make([]string, 0, len(req.Body))
	params := make([]any, 0, len(req.Body))
	for col, val := range req.Body {
		col, err := sanitizeIdentifier(col)
		if err != nil {
			return domain.Statement{}, err
		}
		cols = append(cols, col)
		placeholders = append(placeholders, "?")
		params = append(params, val)
	}
	sql := fmt.Sprintf("INSERT INTO %s (%s) VALUES (%s)", table, strings.Join(cols, ", "), strings.Join(placeholders, ", "))
	return domain.Statement{SQL: sql, Params: params}, nil
}

func (f *Facade) buildUpdate(table string, pk, writable []string, req Request) (domain.Statement, error) {
	if len(req.ID) != len(pk) {
		return domain.Statement{}, apierr.BadRequest("expected %d primary key segment(s), got %d", len(pk), len(req.ID))
	}
	if len(req.Body) == 0 {
		return domain.Statement{}, apierr.BadRequest("request body must contain at least one column")
	}

	writableSet := make(map[string]bool, len(writable))
	for _, c := range writable {
		writableSet[c] = true
	}

	var sets []string
	var params []any
	for col, val := range req.Body {
		col, err := sanitizeIdentifier(col)
		if err != nil {
			return domain.Statement{}, err
		}
		if !writableSet[col] {
			return domain.Statement{}, apierr.BadRequest("column %q is not writable here", col)
		}
		sets = append(sets, fmt.Sprintf("%s = ?", col))
		params = append(params, val)
	}

	var where []string
	for i, col := range pk {
		where = append(where, fmt.Sprintf("%s = ?", col))
		params = append(params, req.ID[i])
	}

	sql := fmt.Sprintf("UPDATE %s SET %s WHERE %s", table, strings.Join(sets, ", "), strings.Join(where, " AND "))
	return domain.Statement{SQL: sql, Params: params}, nil
}

func (f *Facade) buildDelete(table string, pk []string, req Request) (domain.Statement, error) {
	if len(req.ID) != len(pk) {
		return domain.Statement{}, apierr.BadRequest("expected %d primary key segment(s), got %d", len(pk), len(req.ID))
	}
	var where []string
	var params []any
	for i, col := range pk {
		where = append(where, fmt.Sprintf("%s = ?", col))
		params = append(params, req.ID[i])
	}
	sql := fmt.Sprintf("DELETE FROM %s WHERE %s", table, strings.Join(where, " AND "))
	return domain.Statement{SQL: sql, Params: params}, nil
}

// IsReservedQueryKey reports whether key is a reserved query-string
// parameter rather than a column filter.
func IsReservedQueryKey(key string) bool {
	return reservedQueryKeys[key]
}
