// Copyright (c) 2025, s0up and the autobrr contributors.
// SPDX-License-Identifier: GPL-2.0-or-later

package handlers

import (
	"net/http"
	"time"
)

// DiskUsager reports the embedded database file's size on disk.
type DiskUsager interface {
	DiskUsage(path string) (int64, error)
}

// StatusHandler serves GET /status.
type StatusHandler struct {
	usager       DiskUsager
	databasePath string
}

// NewStatusHandler constructs a StatusHandler.
func NewStatusHandler(usager DiskUsager, databasePath string) *StatusHandler {
	return &StatusHandler{usager: usager, databasePath: databasePath}
}

type statusResponse struct {
	Status    string `json:"status"`
	Timestamp int64  `json:"timestamp"`
	UsedDisk  int64  `json:"usedDisk"`
}

// Status handles GET /status.
func (h *StatusHandler) Status(w http.ResponseWriter, r *http.Request) {
	used, err := h.usager.DiskUsage(h.databasePath)
	if err != nil {
		RespondError(w, err)
		return
	}
	RespondJSON(w, http.StatusOK, statusResponse{
		Status:    "reachable",
		Timestamp: time.Now().UnixMilli(),
		UsedDisk:  used,
	})
}
