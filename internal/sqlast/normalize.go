// Copyright (c) 2025, s0up and the autobrr contributors.
// SPDX-License-Identifier: GPL-2.0-or-later

package sqlast

import (
	"vitess.io/vitess/go/vt/sqlparser"
)

// literalPlaceholder replaces every literal value's rendering, so two
// statements that differ only in their literal values render identically.
const literalPlaceholder = "?"

// NormalizeLiterals renders sql with every literal value (string, numeric,
// bound argument) replaced by a placeholder, so the allowlist gate can
// compare an incoming statement to an allowlisted template using plain
// string equality instead of a literal-aware AST diff. This is distinct
// from Canonicalize (§4.4), which only trims whitespace/trailing `;` and
// never touches literals.
func NormalizeLiterals(sql string) (string, error) {
	stmt, err := Parse(sql)
	if err != nil {
		return "", err
	}
	clone := sqlparser.CloneStatement(stmt.AST)
	blankLiterals(clone)
	return sqlparser.String(clone), nil
}

func blankLiterals(node sqlparser.SQLNode) {
	_ = sqlparser.Rewrite(node, func(cursor *sqlparser.Cursor) bool {
		switch n := cursor.Node().(type) {
		case *sqlparser.Literal:
			cursor.Replace(sqlparser.NewStrLiteral(literalPlaceholder))
		case sqlparser.ListArg:
			_ = n
			cursor.Replace(sqlparser.NewStrLiteral(literalPlaceholder))
		case *sqlparser.Argument:
			cursor.Replace(sqlparser.NewStrLiteral(literalPlaceholder))
		}
		return true
	}, nil)
}

// Equivalent reports whether two statements are identical once their
// literal values are blanked out.
func Equivalent(a, b string) (bool, error) {
	ca, err := NormalizeLiterals(a)
	if err != nil {
		return false, err
	}
	cb, err := NormalizeLiterals(b)
	if err != nil {
		return false, err
	}
	return ca == cb, nil
}
