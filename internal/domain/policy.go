// Copyright (c) 2025, s0up and the autobrr contributors.
// SPDX-License-Identifier: GPL-2.0-or-later

package domain

// Action is the statement kind an allowlist entry or policy applies to.
type Action string

const (
	ActionSelect Action = "SELECT"
	ActionInsert Action = "INSERT"
	ActionUpdate Action = "UPDATE"
	ActionDelete Action = "DELETE"
	ActionAny    Action = "*"
)

// ValueType tells the RLS rewriter how to coerce a policy's literal value.
type ValueType string

const (
	ValueTypeString ValueType = "string"
	ValueTypeNumber ValueType = "number"
)

// Operator is the comparison used when a policy predicate is rendered.
type Operator string

const (
	OpEq   Operator = "="
	OpNeq  Operator = "!="
	OpLt   Operator = "<"
	OpLte  Operator = "<="
	OpGt   Operator = ">"
	OpGte  Operator = ">="
	OpLike Operator = "LIKE"
	OpIn   Operator = "IN"
)

// AllowlistEntry is one permitted statement template, persisted in
// tmp_allowlist_queries and reloaded on every non-admin request.
type AllowlistEntry struct {
	ID  int64
	SQL string
}

// Policy is one row-level security rule, persisted in tmp_rls_policies.
// Value may be a literal or a context expression such as "context.id()";
// ResolvedValue is filled in per-request after claim substitution.
type Policy struct {
	ID        int64
	Action    Action
	Schema    string
	Table     string
	Column    string
	Value     string
	ValueType ValueType
	Operator  Operator

	ResolvedValue any
}

// Matches reports whether the policy applies to the given action, table and
// schema. A policy with ActionAny matches every action.
func (p Policy) Matches(action Action, schema, table string) bool {
	if p.Table != table {
		return false
	}
	if p.Schema != "" && schema != "" && p.Schema != schema {
		return false
	}
	return p.Action == ActionAny || p.Action == action
}

// CacheEntry is a cached read result, persisted in tmp_cache.
type CacheEntry struct {
	ID        int64
	Query     string
	Timestamp int64 // unix millis
	TTL       int64 // seconds
	Results   string
}
