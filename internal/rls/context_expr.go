// Copyright (c) 2025, s0up and the autobrr contributors.
// SPDX-License-Identifier: GPL-2.0-or-later

package rls

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/sqlgate/sqlgate/internal/domain"
)

// exprKind distinguishes a policy value that is a literal from one that
// must be resolved from the caller's claims at request time.
type exprKind int

const (
	exprLiteral exprKind = iota
	exprClaim
)

// contextExpr is a policy's "value" column parsed once at load time,
// per the redesign note in SPEC_FULL.md §D: context.<key>() is recognized
// up front instead of re-matched by regex on every request.
type contextExpr struct {
	kind  exprKind
	key   string // claim name, only set for exprClaim
	value string // literal text, only set for exprLiteral
}

const (
	contextPrefix = "context."
	contextSuffix = "()"
	subClaim      = "id" // context.id() is shorthand for context.claims.sub
)

// parseContextExpr parses a policy's raw value column. Anything not of the
// shape "context.<key>()" is treated as a literal.
func parseContextExpr(raw string) contextExpr {
	trimmed := strings.TrimSpace(raw)
	if strings.HasPrefix(trimmed, contextPrefix) && strings.HasSuffix(trimmed, contextSuffix) {
		key := strings.TrimSuffix(strings.TrimPrefix(trimmed, contextPrefix), contextSuffix)
		if key == subClaim {
			key = "sub"
		}
		return contextExpr{kind: exprClaim, key: key}
	}
	return contextExpr{kind: exprLiteral, value: raw}
}

// resolve substitutes a parsed expression against the caller's claims,
// casting to an integer when valueType = number.
func (e contextExpr) resolve(rc domain.RequestContext, valueType domain.ValueType) (any, bool) {
	var raw string
	switch e.kind {
	case exprClaim:
		v, ok := rc.Claim(e.key)
		if !ok {
			return nil, false
		}
		raw = toString(v)
	default:
		raw = e.value
	}

	if valueType == domain.ValueTypeNumber {
		if n, err := strconv.ParseInt(raw, 10, 64); err == nil {
			return n, true
		}
		if f, err := strconv.ParseFloat(raw, 64); err == nil {
			return f, true
		}
		return nil, false
	}
	return raw, true
}

func toString(v any) string {
	if s, ok := v.(string); ok {
		return s
	}
	return fmt.Sprintf("%v", v)
}
