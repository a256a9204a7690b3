// Copyright (c) 2025, s0up and the autobrr contributors.
// SPDX-License-Identifier: GPL-2.0-or-later

package sqlast

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestKindOf(t *testing.T) {
	tests := []struct {
		sql  string
		want Kind
	}{
		{"SELECT * FROM users", KindSelect},
		{"INSERT INTO users (id) VALUES (1)", KindInsert},
		{"UPDATE users SET name = 'a' WHERE id = 1", KindUpdate},
		{"DELETE FROM users WHERE id = 1", KindDelete},
	}
	for _, tt := range tests {
		stmt, err := Parse(tt.sql)
		require.NoError(t, err)
		assert.Equal(t, tt.want, KindOf(stmt.AST))
	}
}

func TestIsModifyingDetectsNestedDML(t *testing.T) {
	stmt, err := Parse("SELECT * FROM users WHERE id = 1")
	require.NoError(t, err)
	assert.False(t, IsModifying(stmt.AST))

	stmt, err = Parse("UPDATE users SET name = 'a' WHERE id = 1")
	require.NoError(t, err)
	assert.True(t, IsModifying(stmt.AST))
}

func TestTargetTables(t *testing.T) {
	stmt, err := Parse("SELECT * FROM users JOIN orders ON orders.user_id = users.id")
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{"users", "orders"}, TargetTables(stmt.AST))
}

func TestEquivalentIgnoresLiterals(t *testing.T) {
	ok, err := Equivalent(
		"SELECT * FROM users WHERE id = 1",
		"SELECT * FROM users WHERE id = 42",
	)
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = Equivalent(
		"SELECT * FROM users WHERE id = 1",
		"SELECT * FROM accounts WHERE id = 1",
	)
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestIsPragma(t *testing.T) {
	assert.True(t, IsPragma("PRAGMA table_info(users)"))
	assert.True(t, IsPragma("  pragma foreign_keys = on"))
	assert.False(t, IsPragma("SELECT 1"))
}

func TestCanonicalizeStripsTrailingSemicolonAndWhitespace(t *testing.T) {
	assert.Equal(t, "SELECT * FROM users", Canonicalize("  SELECT * FROM users  "))
	assert.Equal(t, "SELECT * FROM users", Canonicalize("SELECT * FROM users;"))
	assert.Equal(t, "SELECT * FROM users", Canonicalize("  SELECT * FROM users;  \n"))
	assert.Equal(t, "SELECT * FROM users", Canonicalize("SELECT * FROM users"))
}

func TestCanonicalizeIsIdempotent(t *testing.T) {
	sql := "  SELECT * FROM users;  "
	once := Canonicalize(sql)
	twice := Canonicalize(once)
	assert.Equal(t, once, twice)
}

func TestCanonicalizeWorksOnPragma(t *testing.T) {
	assert.Equal(t, "PRAGMA table_info(users)", Canonicalize("PRAGMA table_info(users);  "))
}
