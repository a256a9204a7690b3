// Copyright (c) 2025, s0up and the autobrr contributors.
// SPDX-License-Identifier: GPL-2.0-or-later

package domain

// RawResult is the column-oriented envelope returned by exec_raw (§4.1):
// ordered column names, ordered value tuples, and execution metadata.
type RawResult struct {
	Columns []string `json:"columns"`
	Rows    [][]any  `json:"rows"`
	Meta    RawMeta  `json:"meta"`
}

// RawMeta reports how many rows a statement touched.
type RawMeta struct {
	RowsRead    int64 `json:"rows_read"`
	RowsWritten int64 `json:"rows_written"`
}

// TxResult is one statement's outcome within a Batch's transaction_sync.
type TxResult struct {
	Shaped []map[string]any `json:"shaped,omitempty"`
	Raw    *RawResult       `json:"raw,omitempty"`
}
