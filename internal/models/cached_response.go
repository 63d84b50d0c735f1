// Package models provides data model definitions for the equipment-sync core.
package models

import (
	"encoding/json"
	"time"
)

// CachedResponse is a time-boxed read-through cache entry keyed by the
// resource locator of the cached request.
type CachedResponse struct {
	Key      string          `db:"key" json:"key"`
	Data     json.RawMessage `db:"data" json:"data"`
	CachedAt int64           `db:"cached_at" json:"cached_at"` // epoch ms
	TTL      int64           `db:"ttl" json:"ttl"`             // milliseconds
}

// TableName returns the table name for CachedResponse.
func (CachedResponse) TableName() string {
	return "api_cache"
}

// Valid reports whether the entry is still fresh at the given instant.
func (c *CachedResponse) Valid(now time.Time) bool {
	return now.UnixMilli()-c.CachedAt < c.TTL
}
