// Copyright (c) 2025, s0up and the autobrr contributors.
// SPDX-License-Identifier: GPL-2.0-or-later

// Package rls implements row-level security: it gates statements against
// table/action rules and rewrites their WHERE clause (or INSERT values) to
// enforce per-caller predicates.
package rls

import (
	"context"
	"fmt"
	"strings"

	"vitess.io/vitess/go/vt/sqlparser"

	"github.com/sqlgate/sqlgate/internal/domain"
	"github.com/sqlgate/sqlgate/internal/sqlast"
)

// Store loads the persisted policy snapshot, from tmp_rls_policies.
type Store interface {
	LoadPolicies(ctx context.Context) ([]domain.Policy, error)
}

// Result is the outcome of a Rewrite call.
type Result struct {
	Allowed bool
	Reason  string
	SQL     string
}

// Rewriter applies row-level security policies to incoming statements.
type Rewriter struct {
	store   Store
	enabled bool
}

// New constructs a Rewriter. enabled mirrors the features.rls config
// toggle.
func New(store Store, enabled bool) *Rewriter {
	return &Rewriter{store: store, enabled: enabled}
}

// Rewrite implements §4.6. PRAGMA statements and the disabled-feature case
// pass through untouched.
func (r *Rewriter) Rewrite(ctx context.Context, sql string, rc domain.RequestContext) (Result, error) {
	if !r.enabled || sqlast.IsPragma(sql) {
		return Result{Allowed: true, SQL: sql}, nil
	}

	policies, err := r.store.LoadPolicies(ctx)
	if err != nil {
		return Result{}, fmt.Errorf("load rls policies: %w", err)
	}
	if len(policies) == 0 {
		return Result{Allowed: true, SQL: sql}, nil
	}

	stmt, err := sqlast.Parse(sql)
	if err != nil {
		return Result{}, fmt.Errorf("%w", err)
	}

	rw := &rewriter{policies: policies, rc: rc}
	if denied, reason := rw.apply(stmt.AST); denied {
		return Result{Allowed: false, Reason: reason}, nil
	}

	return Result{Allowed: true, SQL: sqlparser.String(stmt.AST)}, nil
}

type rewriter struct {
	policies []domain.Policy
	rc       domain.RequestContext
}

// apply walks every top-level statement — including nested ones inside
// CTEs, set operations, and subqueries — gating and rewriting each in
// place. It returns (true, reason) on the first denial.
func (rw *rewriter) apply(node sqlparser.SQLNode) (denied bool, reason string) {
	switch stmt := node.(type) {
	case *sqlparser.Select:
		if d, r := rw.applyToTables(stmt, sqlast.KindSelect, stmt.From); d {
			return true, r
		}
		return rw.recurse(stmt)
	case *sqlparser.Union:
		if d, r := rw.apply(stmt.Left); d {
			return true, r
		}
		return rw.apply(stmt.Right)
	case *sqlparser.Update:
		if d, r := rw.applyToTables(stmt, sqlast.KindUpdate, stmt.TableExprs); d {
			return true, r
		}
		return rw.recurse(stmt)
	case *sqlparser.Delete:
		if d, r := rw.applyToTables(stmt, sqlast.KindDelete, stmt.TableExprs); d {
			return true, r
		}
		return rw.recurse(stmt)
	case *sqlparser.Insert:
		return rw.applyInsert(stmt)
	}
	return false, ""
}

// recurse descends into subqueries nested in WHERE/SELECT-list/JOIN
// clauses and CTE bodies so their target tables are independently gated.
func (rw *rewriter) recurse(node sqlparser.SQLNode) (bool, string) {
	var denied bool
	var reason string
	_ = sqlparser.Walk(func(n sqlparser.SQLNode) (bool, error) {
		if denied {
			return false, nil
		}
		switch sub := n.(type) {
		case *sqlparser.Subquery:
			if d, r := rw.apply(sub.Select); d {
				denied, reason = true, r
				return false, nil
			}
			return false, nil
		case *sqlparser.CommonTableExpr:
			if d, r := rw.apply(sub.Subquery.Select); d {
				denied, reason = true, r
				return false, nil
			}
			return false, nil
		}
		return true, nil
	}, node)
	return denied, reason
}

func targetTableNames(exprs sqlparser.TableExprs) []string {
	stmt := &sqlparser.Select{From: exprs}
	return sqlast.TargetTables(stmt)
}

// applyToTables implements steps 1-4 of §4.6 for SELECT/UPDATE/DELETE: gate
// on tablesWithRules, then inject each matching policy's predicate into the
// statement's WHERE clause.
func (rw *rewriter) applyToTables(stmt sqlparser.SQLNode, action sqlast.Kind, exprs sqlparser.TableExprs) (bool, string) {
	tables := targetTableNames(exprs)

	var matched []domain.Policy
	for _, table := range tables {
		ruleActions, hasRules := rw.tablesWithRules()[table]
		if !hasRules {
			continue
		}
		if !ruleActions[domain.Action(action)] && !ruleActions[domain.ActionAny] {
			return true, fmt.Sprintf("rls: %s not permitted on %s", action, table)
		}
		for _, p := range rw.policies {
			if p.Matches(domain.Action(action), "", table) {
				matched = append(matched, p)
			}
		}
	}
	if len(matched) == 0 {
		return false, ""
	}

	predicate := rw.buildPredicate(matched)
	if predicate == nil {
		return false, ""
	}

	switch s := any(stmt).(type) {
	case *sqlparser.Select:
		s.Where = combineWhere(s.Where, predicate)
	case *sqlparser.Update:
		s.Where = combineWhere(s.Where, predicate)
	case *sqlparser.Delete:
		s.Where = combineWhere(s.Where, predicate)
	}
	return false, ""
}

// tablesWithRules builds table -> set<action> from the loaded policy set.
func (rw *rewriter) tablesWithRules() map[string]map[domain.Action]bool {
	m := make(map[string]map[domain.Action]bool)
	for _, p := range rw.policies {
		if m[p.Table] == nil {
			m[p.Table] = make(map[domain.Action]bool)
		}
		m[p.Table][p.Action] = true
	}
	return m
}

// buildPredicate ANDs together one comparison expression per matched
// policy, each individually parenthesized so an injected OR cannot
// associate out of its own clause.
func (rw *rewriter) buildPredicate(policies []domain.Policy) sqlparser.Expr {
	var expr sqlparser.Expr
	for _, p := range policies {
		resolved, ok := parseContextExpr(p.Value).resolve(rw.rc, p.ValueType)
		if !ok {
			continue
		}
		cmp := &sqlparser.ComparisonExpr{
			Operator: vitessOperator(p.Operator),
			Left:     &sqlparser.ColName{Name: sqlparser.NewIdentifierCI(p.Column)},
			Right:    literalFor(resolved),
		}
		paren := &sqlparser.ParenExpr{Expr: cmp}
		if expr == nil {
			expr = paren
		} else {
			expr = &sqlparser.AndExpr{Left: expr, Right: paren}
		}
	}
	return expr
}

func combineWhere(existing *sqlparser.Where, predicate sqlparser.Expr) *sqlparser.Where {
	if existing == nil || existing.Expr == nil {
		return &sqlparser.Where{Type: sqlparser.WhereClause, Expr: predicate}
	}
	combined := &sqlparser.AndExpr{
		Left:  &sqlparser.ParenExpr{Expr: existing.Expr},
		Right: predicate,
	}
	return &sqlparser.Where{Type: sqlparser.WhereClause, Expr: combined}
}

// applyInsert implements step 4's INSERT case: the value at policy.column's
// index is overwritten in every row tuple. Columns absent from the INSERT
// column list are left alone per the open question adopted from the
// original source.
func (rw *rewriter) applyInsert(stmt *sqlparser.Insert) (bool, string) {
	table := stmt.Table.Name.String()
	ruleActions, hasRules := rw.tablesWithRules()[table]
	if !hasRules {
		return false, ""
	}
	if !ruleActions[domain.ActionInsert] && !ruleActions[domain.ActionAny] {
		return true, fmt.Sprintf("rls: INSERT not permitted on %s", table)
	}

	rows, ok := stmt.Rows.(sqlparser.Values)
	if !ok {
		return false, ""
	}

	for _, p := range rw.policies {
		if !p.Matches(domain.ActionInsert, "", table) {
			continue
		}
		idx := columnIndex(stmt.Columns, p.Column)
		if idx < 0 {
			continue
		}
		resolved, ok := parseContextExpr(p.Value).resolve(rw.rc, p.ValueType)
		if !ok {
			continue
		}
		lit := literalFor(resolved)
		for _, tuple := range rows {
			if idx < len(tuple) {
				tuple[idx] = lit
			}
		}
	}
	return false, ""
}

func columnIndex(cols sqlparser.Columns, name string) int {
	for i, c := range cols {
		if strings.EqualFold(c.String(), name) {
			return i
		}
	}
	return -1
}

func vitessOperator(op domain.Operator) sqlparser.ComparisonExprOperator {
	switch op {
	case domain.OpNeq:
		return sqlparser.NotEqualOp
	case domain.OpLt:
		return sqlparser.LessThanOp
	case domain.OpLte:
		return sqlparser.LessEqualOp
	case domain.OpGt:
		return sqlparser.GreaterThanOp
	case domain.OpGte:
		return sqlparser.GreaterEqualOp
	case domain.OpLike:
		return sqlparser.LikeOp
	case domain.OpIn:
		return sqlparser.InOp
	default:
		return sqlparser.EqualOp
	}
}

func literalFor(v any) sqlparser.Expr {
	switch t := v.(type) {
	case string:
		return sqlparser.NewStrLiteral(t)
	case int64:
		return sqlparser.NewIntLiteral(fmt.Sprintf("%d", t))
	case float64:
		return sqlparser.NewFloatLiteral(fmt.Sprintf("%v", t))
	default:
		return sqlparser.NewStrLiteral(fmt.Sprintf("%v", t))
	}
}
