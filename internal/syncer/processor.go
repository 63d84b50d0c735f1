// Package syncer coordinates synchronization passes: replaying the
// generic sync queue and the offline mutations against the remote API,
// with retry accounting, dead-lettering and progress signaling.
package syncer

import (
	"context"
	"encoding/json"
	"fmt"
	"math"
	"net/http"
	"sync/atomic"
	"time"

	"github.com/batman3101/equipment-sync/internal/api"
	"github.com/batman3101/equipment-sync/internal/errors"
	"github.com/batman3101/equipment-sync/internal/events"
	"github.com/batman3101/equipment-sync/internal/logging"
	"github.com/batman3101/equipment-sync/internal/models"
	"github.com/batman3101/equipment-sync/internal/store"
)

// Requester issues replay requests. The API client satisfies this;
// tests substitute scripted fakes.
type Requester interface {
	Do(ctx context.Context, method, url string, headers map[string]string, body []byte) (*api.Envelope, error)
}

// Result aggregates the outcome of one sync pass. Per-item failures
// are collected here rather than thrown, so one bad item cannot abort
// the whole pass.
type Result struct {
	SyncedCount int      `json:"synced_count"`
	FailedCount int      `json:"failed_count"`
	Errors      []string `json:"errors,omitempty"`
	StartedAt   int64    `json:"started_at"`  // epoch ms
	FinishedAt  int64    `json:"finished_at"` // epoch ms
}

// Processor performs one synchronization pass at a time: the generic
// queue family first, then the mutation family, each drained
// sequentially in ascending creation order. Sequential replay preserves
// relative ordering, which matters because later mutations may update
// records created by earlier ones.
type Processor struct {
	store  *store.Store
	client Requester
	bus    *events.Bus

	// Guards the single-pass invariant. Check-and-set must be atomic;
	// a second concurrent start fails fast instead of queueing.
	running atomic.Bool
}

// NewProcessor creates a Processor.
func NewProcessor(st *store.Store, client Requester, bus *events.Bus) *Processor {
	return &Processor{
		store:  st,
		client: client,
		bus:    bus,
	}
}

// IsRunning reports whether a pass is currently active.
func (p *Processor) IsRunning() bool {
	return p.running.Load()
}

// Run executes one full pass. A call while another pass is active
// fails fast with SYNC_ALREADY_RUNNING; the active pass's item set is
// processed exactly once.
func (p *Processor) Run(ctx context.Context) (*Result, error) {
	if !p.running.CompareAndSwap(false, true) {
		return nil, errors.New(errors.ErrSyncAlreadyRunning, "a sync pass is already in progress")
	}
	defer p.running.Store(false)

	result := &Result{StartedAt: time.Now().UnixMilli()}

	entries, err := p.store.ListQueue()
	if err != nil {
		return nil, errors.Wrap(errors.ErrStorage, "failed to read sync queue", err)
	}
	mutations, err := p.store.UnsyncedMutations("")
	if err != nil {
		return nil, errors.Wrap(errors.ErrStorage, "failed to read offline mutations", err)
	}

	p.bus.Publish(events.EventSyncStarted, map[string]interface{}{
		"queue_entries": len(entries),
		"mutations":     len(mutations),
	})
	logging.Info("Sync pass started",
		map[string]interface{}{
			"queue_entries": len(entries),
			"mutations":     len(mutations),
		})

	p.drainQueue(ctx, entries, result)
	p.drainMutations(ctx, mutations, result)

	result.FinishedAt = time.Now().UnixMilli()

	p.bus.Publish(events.EventSyncCompleted, map[string]interface{}{
		"success":      result.FailedCount == 0,
		"synced_count": result.SyncedCount,
		"failed_count": result.FailedCount,
		"timestamp":    result.FinishedAt,
	})
	logging.Info("Sync pass completed",
		map[string]interface{}{
			"synced": result.SyncedCount,
			"failed": result.FailedCount,
		})

	return result, nil
}

// drainQueue replays the generic queue family. Entries that exhaust
// their retry budget are dead-lettered: removed from the queue with a
// distinguishable permanent-failure signal, never retried again.
func (p *Processor) drainQueue(ctx context.Context, entries []*models.QueueEntry, result *Result) {
	total := len(entries)
	for i, entry := range entries {
		_, err := p.client.Do(ctx, entry.Method, entry.URL, entry.Headers, entry.Body)
		if err == nil {
			if derr := p.store.Dequeue(entry.ID); derr != nil {
				logging.Error("Failed to dequeue synced entry", derr,
					map[string]interface{}{"id": string(entry.ID)})
			}
			result.SyncedCount++
		} else {
			result.FailedCount++
			result.Errors = append(result.Errors,
				fmt.Sprintf("queue %s: %v", entry.ID, err))

			count, rerr := p.store.IncrementQueueRetry(entry.ID)
			if rerr != nil {
				logging.Error("Failed to record queue retry", rerr,
					map[string]interface{}{"id": string(entry.ID)})
			}

			permanent := count >= entry.MaxRetries
			if permanent {
				// Queue entries are disposable side-effect calls;
				// past the ceiling they are dropped, unlike mutations.
				if derr := p.store.Dequeue(entry.ID); derr != nil {
					logging.Error("Failed to dead-letter entry", derr,
						map[string]interface{}{"id": string(entry.ID)})
				}
				logging.Warn("Queue entry dead-lettered",
					map[string]interface{}{
						"id":          string(entry.ID),
						"url":         entry.URL,
						"max_retries": entry.MaxRetries,
					})
			}

			p.bus.Publish(events.EventSyncItemFailed, map[string]interface{}{
				"item_id":   string(entry.ID),
				"error":     err.Error(),
				"permanent": permanent,
			})
		}

		p.publishProgress(i+1, total, string(entry.ID))
	}
}

// drainMutations replays the mutation family. Mutations represent user
// data and are never auto-dead-lettered: a failed mutation stays
// pending for future passes until it succeeds or is explicitly cleared.
func (p *Processor) drainMutations(ctx context.Context, mutations []*models.Mutation, result *Result) {
	total := len(mutations)
	for i, m := range mutations {
		method, url, body := mutationRequest(m)

		_, err := p.client.Do(ctx, method, url, nil, body)
		if err == nil {
			if merr := p.store.MarkSynced(m.ID); merr != nil {
				logging.Error("Failed to mark mutation synced", merr,
					map[string]interface{}{"id": string(m.ID)})
			}
			result.SyncedCount++
		} else {
			result.FailedCount++
			result.Errors = append(result.Errors,
				fmt.Sprintf("mutation %s: %v", m.ID, err))

			if rerr := p.store.IncrementRetry(m.ID); rerr != nil {
				logging.Error("Failed to record mutation retry", rerr,
					map[string]interface{}{"id": string(m.ID)})
			}

			p.bus.Publish(events.EventSyncItemFailed, map[string]interface{}{
				"item_id":   string(m.ID),
				"error":     err.Error(),
				"permanent": false,
			})
		}

		p.publishProgress(i+1, total, string(m.ID))
	}
}

// publishProgress emits the per-item progress event for the current
// family: round(processed / total * 100).
func (p *Processor) publishProgress(processed, total int, itemID string) {
	if total == 0 {
		return
	}
	progress := int(math.Round(float64(processed) / float64(total) * 100))
	p.bus.Publish(events.EventSyncProgress, map[string]interface{}{
		"progress": progress,
		"item_id":  itemID,
	})
}

// mutationRequest maps a mutation to its replay request. The payload's
// own id addresses update and delete targets; delete sends no body.
func mutationRequest(m *models.Mutation) (method, url string, body []byte) {
	collection := api.CollectionPath(m.EntityType)
	switch m.Action {
	case models.ActionCreate:
		return http.MethodPost, "/" + collection, m.Payload
	case models.ActionUpdate:
		return http.MethodPut, "/" + collection + "/" + payloadID(m), m.Payload
	case models.ActionDelete:
		return http.MethodDelete, "/" + collection + "/" + payloadID(m), nil
	}
	return http.MethodPost, "/" + collection, m.Payload
}

// payloadID extracts the target record id from the mutation payload.
func payloadID(m *models.Mutation) string {
	var probe struct {
		ID string `json:"id"`
	}
	if err := json.Unmarshal(m.Payload, &probe); err != nil {
		return ""
	}
	return probe.ID
}
