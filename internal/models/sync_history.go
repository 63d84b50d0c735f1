// Package models provides data model definitions for the equipment-sync core.
package models

import "time"

// SyncHistory records the outcome of one completed sync pass. Rows feed
// the dashboard's "last sync" panel and survive restarts.
type SyncHistory struct {
	ID          int64  `db:"id" json:"id"`
	StartedAt   int64  `db:"started_at" json:"started_at"`   // epoch ms
	FinishedAt  int64  `db:"finished_at" json:"finished_at"` // epoch ms
	Trigger     string `db:"trigger_kind" json:"trigger"`    // manual, reconnect, auto, retry
	SyncedCount int    `db:"synced_count" json:"synced_count"`
	FailedCount int    `db:"failed_count" json:"failed_count"`
	Status      string `db:"status" json:"status"` // success, partial, failed
}

// TableName returns the table name for SyncHistory.
func (SyncHistory) TableName() string {
	return "sync_history"
}

// Duration returns how long the pass took.
func (h *SyncHistory) Duration() time.Duration {
	return time.Duration(h.FinishedAt-h.StartedAt) * time.Millisecond
}
