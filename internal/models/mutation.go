// Package models provides data model definitions for the equipment-sync core.
package models

import (
	"encoding/json"
	"time"
)

// EntityType identifies which maintenance collection a mutation targets.
type EntityType string

const (
	EntityBreakdown EntityType = "breakdown"
	EntityRepair    EntityType = "repair"
	EntityEquipment EntityType = "equipment"
	EntityUser      EntityType = "user"
)

// Action identifies the kind of local change a mutation records.
type Action string

const (
	ActionCreate Action = "create"
	ActionUpdate Action = "update"
	ActionDelete Action = "delete"
)

// Mutation is a recorded local change awaiting synchronization.
// Payload is opaque to the sync core; schema correctness is the
// producing caller's responsibility.
type Mutation struct {
	ID         UUID            `db:"id" json:"id"`
	EntityType EntityType      `db:"entity_type" json:"entity_type"`
	Action     Action          `db:"action" json:"action"`
	Payload    json.RawMessage `db:"payload" json:"payload"`
	CreatedAt  int64           `db:"created_at" json:"created_at"` // epoch ms
	Synced     bool            `db:"synced" json:"synced"`
	RetryCount int             `db:"retry_count" json:"retry_count"`
}

// TableName returns the table name for Mutation.
func (Mutation) TableName() string {
	return "offline_data"
}

// Time returns CreatedAt as time.Time.
func (m *Mutation) Time() time.Time {
	return time.UnixMilli(m.CreatedAt)
}

// ValidEntityType reports whether s names a known entity collection.
func ValidEntityType(s string) bool {
	switch EntityType(s) {
	case EntityBreakdown, EntityRepair, EntityEquipment, EntityUser:
		return true
	}
	return false
}

// ValidAction reports whether s names a known mutation action.
func ValidAction(s string) bool {
	switch Action(s) {
	case ActionCreate, ActionUpdate, ActionDelete:
		return true
	}
	return false
}
