// Package models provides data model definitions for the equipment-sync core.
package models

import "time"

// DefaultMaxRetries is the retry budget applied when an entry is
// enqueued without an explicit one.
const DefaultMaxRetries = 3

// QueueEntry is a generic "replay this request" unit, decoupled from
// entity semantics. Entries are disposable side-effect calls and are
// dead-lettered once RetryCount reaches MaxRetries, unlike mutations
// which are retried indefinitely.
type QueueEntry struct {
	ID            UUID              `db:"id" json:"id"`
	URL           string            `db:"url" json:"url"`
	Method        string            `db:"method" json:"method"`
	Headers       map[string]string `db:"headers" json:"headers"`
	Body          []byte            `db:"body" json:"body,omitempty"`
	MaxRetries    int               `db:"max_retries" json:"max_retries"`
	RetryCount    int               `db:"retry_count" json:"retry_count"`
	CreatedAt     int64             `db:"created_at" json:"created_at"`           // epoch ms
	LastAttemptAt int64             `db:"last_attempt_at" json:"last_attempt_at"` // epoch ms, 0 = never attempted
}

// TableName returns the table name for QueueEntry.
func (QueueEntry) TableName() string {
	return "sync_queue"
}

// Time returns CreatedAt as time.Time.
func (e *QueueEntry) Time() time.Time {
	return time.UnixMilli(e.CreatedAt)
}

// Exhausted reports whether the entry has used up its retry budget.
func (e *QueueEntry) Exhausted() bool {
	return e.RetryCount >= e.MaxRetries
}
