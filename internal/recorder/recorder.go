// Package recorder captures local state changes performed while
// disconnected so they can be replayed later. It is the only producer
// of offline mutation records.
package recorder

import (
	"encoding/json"

	"github.com/batman3101/equipment-sync/internal/errors"
	"github.com/batman3101/equipment-sync/internal/logging"
	"github.com/batman3101/equipment-sync/internal/models"
	"github.com/batman3101/equipment-sync/internal/store"
)

// Recorder persists replayable mutation records. The payload is opaque
// to the recorder; shape validation belongs to the producing caller.
type Recorder struct {
	store *store.Store
}

// NewRecorder creates a Recorder writing to the given store.
func NewRecorder(st *store.Store) *Recorder {
	return &Recorder{store: st}
}

// Record persists one local change as a replayable mutation. The
// caller may await the return for durability confirmation, but
// synchronization itself happens later; optimistic UI flows never
// block on it. Entity type and action are the only validated inputs.
func (r *Recorder) Record(entityType models.EntityType, action models.Action, payload json.RawMessage) (*models.Mutation, error) {
	if !models.ValidEntityType(string(entityType)) {
		return nil, errors.New(errors.ErrValidation, "unknown entity type: "+string(entityType))
	}
	if !models.ValidAction(string(action)) {
		return nil, errors.New(errors.ErrValidation, "unknown action: "+string(action))
	}

	m, err := r.store.SaveMutation(entityType, action, payload)
	if err != nil {
		return nil, errors.Wrap(errors.ErrStorage, "failed to record offline mutation", err)
	}

	logging.Debug("Recorded offline mutation",
		map[string]interface{}{
			"id":          string(m.ID),
			"entity_type": string(entityType),
			"action":      string(action),
		})

	return m, nil
}
