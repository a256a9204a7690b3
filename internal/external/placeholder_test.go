// Copyright (c) 2025-2026, s0up and the autobrr contributors.
// SPDX-License-Identifier: GPL-2.0-or-later

package external

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestRebindQuestionToDollar(t *testing.T) {
	tests := []struct {
		name  string
		query string
		want  string
	}{
		{"no placeholders", "SELECT 1", "SELECT 1"},
		{"simple", "SELECT * FROM t WHERE a = ? AND b = ?", "SELECT * FROM t WHERE a = $1 AND b = $2"},
		{"literal question mark untouched", "SELECT '?' FROM t WHERE a = ?", "SELECT '?' FROM t WHERE a = $1"},
		{"line comment untouched", "SELECT a FROM t -- what about ?\nWHERE a = ?", "SELECT a FROM t -- what about ?\nWHERE a = $1"},
		{"block comment untouched", "SELECT a FROM t /* is this ? */ WHERE a = ?", "SELECT a FROM t /* is this ? */ WHERE a = $1"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, rebindQuestionToDollar(tt.query))
		})
	}
}

func TestRebindQuestionToNamed(t *testing.T) {
	got := rebindQuestionToNamed("SELECT * FROM t WHERE a = ? AND b = ?")
	assert.Equal(t, "SELECT * FROM t WHERE a = :p0 AND b = :p1", got)
}

func TestRebindDispatchesByEngine(t *testing.T) {
	assert.Equal(t, "SELECT $1", rebind(EnginePostgres, "SELECT ?"))
	assert.Equal(t, "SELECT ?", rebind(EngineMySQL, "SELECT ?"))
	assert.Equal(t, "SELECT :p0", rebind(EngineHTTP, "SELECT ?"))
}
