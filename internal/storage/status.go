// Copyright (c) 2025, s0up and the autobrr contributors.
// SPDX-License-Identifier: GPL-2.0-or-later

package storage

import "os"

// DiskUsage returns the embedded database file's size in bytes, used by
// GET /status's usedDisk field.
func (e *Executor) DiskUsage(path string) (int64, error) {
	info, err := os.Stat(path)
	if err != nil {
		return 0, err
	}
	return info.Size(), nil
}
