// Copyright (c) 2025, s0up and the autobrr contributors.
// SPDX-License-Identifier: GPL-2.0-or-later

// Package reqctx carries the authenticated domain.RequestContext through a
// request's context.Context. It is split out from the auth middleware so
// that both the middleware and the handlers it protects can depend on it
// without an import cycle between the two.
package reqctx

import (
	"context"

	"github.com/sqlgate/sqlgate/internal/domain"
)

type key struct{}

// With returns a context carrying rc, retrievable via FromContext.
func With(ctx context.Context, rc domain.RequestContext) context.Context {
	return context.WithValue(ctx, key{}, rc)
}

// FromContext returns the RequestContext stashed by With, or the zero
// value if none was set.
func FromContext(ctx context.Context) domain.RequestContext {
	rc, _ := ctx.Value(key{}).(domain.RequestContext)
	return rc
}
