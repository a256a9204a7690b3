// Copyright (c) 2025, s0up and the autobrr contributors.
// SPDX-License-Identifier: GPL-2.0-or-later

// Package sqlast wraps vitess's SQL parser to give the rest of the query
// pipeline a single place that parses, renders and walks statement ASTs:
// the allowlist gate compares statements modulo literals, the RLS rewriter
// finds target tables and injects predicates, and the orchestrator and
// query cache classify statements.
package sqlast

import (
	"fmt"
	"strings"

	"vitess.io/vitess/go/vt/sqlparser"
)

// Statement is a parsed SQL statement together with the raw text it was
// parsed from.
type Statement struct {
	Raw string
	AST sqlparser.Statement
}

// Parse parses a single SQL statement.
func Parse(sql string) (*Statement, error) {
	stmt, err := sqlparser.Parse(sql)
	if err != nil {
		return nil, fmt.Errorf("parse statement: %w", err)
	}
	return &Statement{Raw: sql, AST: stmt}, nil
}

// Render renders the statement's current AST back to SQL text, reflecting
// any rewrites applied to it.
func (s *Statement) Render() string {
	return sqlparser.String(s.AST)
}

// Canonicalize implements §4.4's canonicalize(sql) -> sql: strip a single
// trailing `;` and surrounding whitespace. This is the Fingerprint
// (Glossary) used as the Query Cache's key, and is a plain text operation
// that works on PRAGMA statements too, unlike Parse/NormalizeLiterals.
func Canonicalize(sql string) string {
	trimmed := strings.TrimSpace(sql)
	trimmed = strings.TrimSuffix(trimmed, ";")
	return strings.TrimSpace(trimmed)
}

// Kind identifies the statement's DML/DDL kind.
type Kind string

const (
	KindSelect  Kind = "SELECT"
	KindInsert  Kind = "INSERT"
	KindUpdate  Kind = "UPDATE"
	KindDelete  Kind = "DELETE"
	KindOther   Kind = "OTHER"
)

// KindOf classifies the statement's top-level kind.
func KindOf(stmt sqlparser.Statement) Kind {
	switch stmt.(type) {
	case *sqlparser.Select:
		return KindSelect
	case *sqlparser.Insert:
		return KindInsert
	case *sqlparser.Update:
		return KindUpdate
	case *sqlparser.Delete:
		return KindDelete
	default:
		return KindOther
	}
}

// IsModifying reports whether the statement (including any nested DML in a
// CTE or subquery) writes data. A plain SELECT with no nested modifying
// statement returns false.
func IsModifying(stmt sqlparser.Statement) bool {
	switch KindOf(stmt) {
	case KindInsert, KindUpdate, KindDelete:
		return true
	}

	modifying := false
	_ = sqlparser.Walk(func(node sqlparser.SQLNode) (bool, error) {
		switch node.(type) {
		case *sqlparser.Insert, *sqlparser.Update, *sqlparser.Delete:
			modifying = true
			return false, nil
		}
		return true, nil
	}, stmt)
	return modifying
}

// TargetTables returns the base table names a statement reads from or
// writes to, used by the RLS rewriter to decide which policies apply.
func TargetTables(stmt sqlparser.Statement) []string {
	var tables []string
	seen := map[string]bool{}
	add := func(name string) {
		if name == "" || seen[name] {
			return
		}
		seen[name] = true
		tables = append(tables, name)
	}

	switch s := stmt.(type) {
	case *sqlparser.Insert:
		add(s.Table.Name.String())
	case *sqlparser.Update:
		for _, t := range s.TableExprs {
			walkTableExpr(t, add)
		}
	case *sqlparser.Delete:
		for _, t := range s.TableExprs {
			walkTableExpr(t, add)
		}
	case *sqlparser.Select:
		for _, t := range s.From {
			walkTableExpr(t, add)
		}
	}

	_ = sqlparser.Walk(func(node sqlparser.SQLNode) (bool, error) {
		if aliased, ok := node.(*sqlparser.AliasedTableExpr); ok {
			if tn, ok := aliased.Expr.(sqlparser.TableName); ok {
				add(tn.Name.String())
			}
		}
		return true, nil
	}, stmt)

	return tables
}

func walkTableExpr(expr sqlparser.TableExpr, add func(string)) {
	switch t := expr.(type) {
	case *sqlparser.AliasedTableExpr:
		if tn, ok := t.Expr.(sqlparser.TableName); ok {
			add(tn.Name.String())
		}
	case *sqlparser.JoinTableExpr:
		walkTableExpr(t.LeftExpr, add)
		walkTableExpr(t.RightExpr, add)
	case *sqlparser.ParenTableExpr:
		for _, e := range t.Exprs {
			walkTableExpr(e, add)
		}
	}
}

// IsPragma reports whether the raw SQL text is a PRAGMA statement, which
// vitess's parser does not understand and which the gateway passes through
// untouched (§4.6 of the design).
func IsPragma(sql string) bool {
	trimmed := leadingWord(sql)
	return trimmed == "pragma"
}

func leadingWord(sql string) string {
	i := 0
	for i < len(sql) && (sql[i] == ' ' || sql[i] == '\t' || sql[i] == '\n' || sql[i] == '\r') {
		i++
	}
	start := i
	for i < len(sql) && sql[i] != ' ' && sql[i] != '\t' && sql[i] != '\n' && sql[i] != '\r' && sql[i] != '(' {
		i++
	}
	word := sql[start:i]
	out := make([]byte, len(word))
	for idx, c := range []byte(word) {
		if c >= 'A' && c <= 'Z' {
			c += 'a' - 'A'
		}
		out[idx] = c
	}
	return string(out)
}
