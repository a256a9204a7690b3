// Copyright (c) 2025, s0up and the autobrr contributors.
// SPDX-License-Identifier: GPL-2.0-or-later

package reqctx

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/sqlgate/sqlgate/internal/domain"
)

func TestWithAndFromContext(t *testing.T) {
	rc := domain.RequestContext{Role: domain.RoleAdmin, Source: domain.SourceExternal}
	ctx := With(context.Background(), rc)

	assert.Equal(t, rc, FromContext(ctx))
}

func TestFromContextZeroValueWhenUnset(t *testing.T) {
	assert.Equal(t, domain.RequestContext{}, FromContext(context.Background()))
}
