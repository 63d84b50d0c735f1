// Package models provides data model definitions for the equipment-sync core.
package models

// UUID is a string-typed UUID for database and JSON bridging.
type UUID string

// SyncStatus is an in-memory snapshot of the sync subsystem. It is
// derived on demand and never persisted.
type SyncStatus struct {
	IsRunning    bool  `json:"is_running"`
	LastSyncTime int64 `json:"last_sync_time"` // epoch ms, 0 = never synced
	PendingCount int   `json:"pending_count"`  // unsynced mutations + queue entries
	FailedCount  int   `json:"failed_count"`   // queue entries with retry_count > 0
	Progress     int   `json:"progress"`       // 0-100, last reported pass progress
}

// StoreStats holds per-family record counts for observability.
type StoreStats struct {
	Mutations         int `json:"mutations"`
	UnsyncedMutations int `json:"unsynced_mutations"`
	QueueEntries      int `json:"queue_entries"`
	CachedResponses   int `json:"cached_responses"`
	HistoryRows       int `json:"history_rows"`
}
