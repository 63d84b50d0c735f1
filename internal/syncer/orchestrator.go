package syncer

import (
	"context"
	"sync"
	"time"

	"github.com/batman3101/equipment-sync/internal/errors"
	"github.com/batman3101/equipment-sync/internal/events"
	"github.com/batman3101/equipment-sync/internal/logging"
	"github.com/batman3101/equipment-sync/internal/models"
	"github.com/batman3101/equipment-sync/internal/store"
)

// Sync pass triggers, recorded in history rows.
const (
	TriggerManual    = "manual"
	TriggerReconnect = "reconnect"
	TriggerAuto      = "auto"
	TriggerRetry     = "retry"
)

// OnlineChecker reports current connectivity. The network monitor
// satisfies this; tests substitute fixed values.
type OnlineChecker interface {
	IsOnline() bool
}

// Orchestrator decides when sync passes run: on demand, on
// reconnection, on a periodic timer, and as a delayed retry after a
// pass with failures. The Processor does the work; the Orchestrator
// owns the timers and the history trail.
type Orchestrator struct {
	store     *store.Store
	processor *Processor
	monitor   OnlineChecker
	bus       *events.Bus

	// Delay before the automatic retry pass after a partial failure.
	// Fixed rather than exponential: passes are cheap and the queue's
	// per-entry retry ceiling already bounds total work.
	retryDelay time.Duration

	mu         sync.Mutex
	autoStop   chan struct{}
	autoWG     sync.WaitGroup
	retryTimer *time.Timer
	lastSync   int64 // epoch ms, 0 = never
	progress   int

	unsubProgress func()
}

// NewOrchestrator creates an Orchestrator. retryDelay <= 0 disables
// the post-failure retry pass.
func NewOrchestrator(st *store.Store, proc *Processor, monitor OnlineChecker, bus *events.Bus, retryDelay time.Duration) *Orchestrator {
	o := &Orchestrator{
		store:      st,
		processor:  proc,
		monitor:    monitor,
		bus:        bus,
		retryDelay: retryDelay,
	}
	o.unsubProgress = bus.Subscribe(events.EventSyncProgress, func(e events.Event) {
		if pct, ok := e.Data["progress"].(int); ok {
			o.mu.Lock()
			o.progress = pct
			o.mu.Unlock()
		}
	})
	return o
}

// SyncNow runs one pass immediately. It fails fast when offline or
// when a pass is already running.
func (o *Orchestrator) SyncNow(ctx context.Context) (*Result, error) {
	return o.syncOnce(ctx, TriggerManual)
}

// SyncOnReconnect runs a pass in response to connectivity recovery.
// Wired as the network monitor's recovery callback.
func (o *Orchestrator) SyncOnReconnect() {
	if _, err := o.syncOnce(context.Background(), TriggerReconnect); err != nil {
		logging.Warn("Reconnect sync did not run",
			map[string]interface{}{"error": err.Error()})
	}
}

func (o *Orchestrator) syncOnce(ctx context.Context, trigger string) (*Result, error) {
	if !o.monitor.IsOnline() {
		return nil, errors.New(errors.ErrSyncOffline, "cannot sync while offline")
	}

	result, err := o.processor.Run(ctx)
	if err != nil {
		return nil, err
	}

	o.mu.Lock()
	o.lastSync = result.FinishedAt
	o.mu.Unlock()

	h := &models.SyncHistory{
		StartedAt:   result.StartedAt,
		FinishedAt:  result.FinishedAt,
		Trigger:     trigger,
		SyncedCount: result.SyncedCount,
		FailedCount: result.FailedCount,
		Status:      historyStatus(result),
	}
	if herr := o.store.RecordHistory(h); herr != nil {
		logging.Error("Failed to record sync history", herr, nil)
	}

	if pruned, perr := o.store.PruneSynced(); perr != nil {
		logging.Error("Failed to prune synced mutations", perr, nil)
	} else if pruned > 0 {
		logging.Debug("Pruned synced mutations",
			map[string]interface{}{"count": pruned})
	}

	if result.FailedCount > 0 && o.retryDelay > 0 {
		o.scheduleRetry()
	}

	return result, nil
}

// scheduleRetry arms a single delayed retry pass, replacing any retry
// already pending so failures in back-to-back passes collapse into one
// follow-up.
func (o *Orchestrator) scheduleRetry() {
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.retryTimer != nil {
		o.retryTimer.Stop()
	}
	o.retryTimer = time.AfterFunc(o.retryDelay, func() {
		if !o.monitor.IsOnline() || o.processor.IsRunning() {
			return
		}
		if _, err := o.syncOnce(context.Background(), TriggerRetry); err != nil {
			logging.Warn("Retry sync did not run",
				map[string]interface{}{"error": err.Error()})
		}
	})
	logging.Debug("Retry pass scheduled",
		map[string]interface{}{"delay_ms": o.retryDelay.Milliseconds()})
}

// StartAutoSync begins periodic passes at the given interval. Ticks
// are skipped while offline or while a pass is still running. Calling
// it again replaces the previous schedule.
func (o *Orchestrator) StartAutoSync(interval time.Duration) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.stopAutoLocked()

	stop := make(chan struct{})
	o.autoStop = stop
	o.autoWG.Add(1)
	go func() {
		defer o.autoWG.Done()
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-stop:
				return
			case <-ticker.C:
				if !o.monitor.IsOnline() || o.processor.IsRunning() {
					continue
				}
				if _, err := o.syncOnce(context.Background(), TriggerAuto); err != nil {
					logging.Warn("Auto sync did not run",
						map[string]interface{}{"error": err.Error()})
				}
			}
		}
	}()
	logging.Info("Auto sync started",
		map[string]interface{}{"interval_ms": interval.Milliseconds()})
}

// StopAutoSync cancels the periodic schedule. Safe to call when auto
// sync is not running.
func (o *Orchestrator) StopAutoSync() {
	o.mu.Lock()
	o.stopAutoLocked()
	o.mu.Unlock()
	o.autoWG.Wait()
}

func (o *Orchestrator) stopAutoLocked() {
	if o.autoStop != nil {
		close(o.autoStop)
		o.autoStop = nil
	}
}

// Close stops timers and releases the event subscription.
func (o *Orchestrator) Close() {
	o.StopAutoSync()
	o.mu.Lock()
	if o.retryTimer != nil {
		o.retryTimer.Stop()
		o.retryTimer = nil
	}
	o.mu.Unlock()
	if o.unsubProgress != nil {
		o.unsubProgress()
	}
}

// Status derives a snapshot of the sync subsystem: pending and failed
// counts from the store, the last completed pass time, and the last
// reported progress.
func (o *Orchestrator) Status() (*models.SyncStatus, error) {
	stats, err := o.store.Stats()
	if err != nil {
		return nil, err
	}
	failed, err := o.store.CountQueueFailed()
	if err != nil {
		return nil, err
	}

	o.mu.Lock()
	lastSync := o.lastSync
	progress := o.progress
	o.mu.Unlock()

	if lastSync == 0 {
		if h, herr := o.store.LastHistory(); herr == nil && h != nil {
			lastSync = h.FinishedAt
		}
	}

	return &models.SyncStatus{
		IsRunning:    o.processor.IsRunning(),
		LastSyncTime: lastSync,
		PendingCount: stats.UnsyncedMutations + stats.QueueEntries,
		FailedCount:  failed,
		Progress:     progress,
	}, nil
}

func historyStatus(r *Result) string {
	switch {
	case r.FailedCount == 0:
		return "success"
	case r.SyncedCount > 0:
		return "partial"
	default:
		return "failed"
	}
}
