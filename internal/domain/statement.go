// Copyright (c) 2025, s0up and the autobrr contributors.
// SPDX-License-Identifier: GPL-2.0-or-later

// Package domain holds the shared value types that flow through the query
// pipeline: statements, batches, request context, and the persisted
// allowlist/policy/cache rows.
package domain

import "strings"

// Statement is one SQL text with its bound positional parameters.
type Statement struct {
	SQL    string `json:"sql"`
	Params []any  `json:"params,omitempty"`
}

// Empty reports whether the statement has no SQL text.
func (s Statement) Empty() bool {
	return strings.TrimSpace(s.SQL) == ""
}

// Batch is an ordered sequence of statements committed atomically.
type Batch struct {
	Statements []Statement
}

// Source identifies who is calling the gateway: the co-located embedded
// engine caller, or a caller that should be routed to an external backend.
type Source string

const (
	SourceInternal Source = "internal"
	SourceExternal Source = "external"
)

// Role is the caller's authenticated role.
type Role string

const (
	RoleAdmin  Role = "admin"
	RoleClient Role = "client"
)

// RequestContext is the caller identity and feature flags built at the
// transport layer and threaded by value down the pipeline.
type RequestContext struct {
	Role   Role
	Claims map[string]any
	Source Source
	Cache  bool
}

// IsAdmin reports whether the caller has the admin role.
func (c RequestContext) IsAdmin() bool {
	return c.Role == RoleAdmin
}

// Claim returns a claim value by key and whether it was present.
func (c RequestContext) Claim(key string) (any, bool) {
	if c.Claims == nil {
		return nil, false
	}
	v, ok := c.Claims[key]
	return v, ok
}
