// Copyright (c) 2025, s0up and the autobrr contributors.
// SPDX-License-Identifier: GPL-2.0-or-later

package storage

// bootstrapTables are the three control tables the gateway owns inside the
// embedded engine (§6): the query cache, the allowlist snapshot, and the
// RLS policy set. All three are created IF NOT EXISTS on construction so
// repeated startups are idempotent.
var bootstrapTables = []string{
	`CREATE TABLE IF NOT EXISTS tmp_cache (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		query TEXT NOT NULL UNIQUE,
		timestamp INTEGER NOT NULL,
		ttl INTEGER NOT NULL,
		results TEXT NOT NULL
	)`,
	`CREATE TABLE IF NOT EXISTS tmp_allowlist_queries (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		sql_statement TEXT NOT NULL
	)`,
	`CREATE TABLE IF NOT EXISTS tmp_rls_policies (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		actions TEXT NOT NULL,
		"schema" TEXT NOT NULL DEFAULT '',
		"table" TEXT NOT NULL,
		column TEXT NOT NULL,
		value TEXT NOT NULL,
		value_type TEXT NOT NULL DEFAULT 'string',
		operator TEXT NOT NULL DEFAULT '='
	)`,
}
