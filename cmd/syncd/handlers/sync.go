// Package handlers provides the REST surface of the sync daemon.
package handlers

import (
	"encoding/json"
	"net/http"
	"strconv"
	"time"

	"github.com/batman3101/equipment-sync/internal/api"
	"github.com/batman3101/equipment-sync/internal/errors"
	"github.com/batman3101/equipment-sync/internal/models"
	"github.com/batman3101/equipment-sync/internal/netmon"
	"github.com/batman3101/equipment-sync/internal/recorder"
	"github.com/batman3101/equipment-sync/internal/store"
	"github.com/batman3101/equipment-sync/internal/syncer"
)

// SyncHandler exposes mutation recording, queueing and sync control.
type SyncHandler struct {
	recorder *recorder.Recorder
	orch     *syncer.Orchestrator
	store    *store.Store
	client   *api.Client
	monitor  *netmon.Monitor
	cacheTTL time.Duration
}

// NewSyncHandler creates a SyncHandler.
func NewSyncHandler(rec *recorder.Recorder, orch *syncer.Orchestrator, st *store.Store, client *api.Client, mon *netmon.Monitor, cacheTTL time.Duration) *SyncHandler {
	return &SyncHandler{
		recorder: rec,
		orch:     orch,
		store:    st,
		client:   client,
		monitor:  mon,
		cacheTTL: cacheTTL,
	}
}

// Register mounts all routes on the mux.
func (h *SyncHandler) Register(mux *http.ServeMux) {
	mux.HandleFunc("/api/mutations", h.Mutations)
	mux.HandleFunc("/api/queue", h.Queue)
	mux.HandleFunc("/api/sync", h.SyncNow)
	mux.HandleFunc("/api/sync/status", h.Status)
	mux.HandleFunc("/api/network", h.Network)
	mux.HandleFunc("/api/stats", h.Stats)
	mux.HandleFunc("/api/cached", h.Cached)
}

// Mutations handles POST /api/mutations (record a local change) and
// GET /api/mutations (list pending changes, optional ?entity_type=).
func (h *SyncHandler) Mutations(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodPost:
		var req struct {
			EntityType string          `json:"entity_type"`
			Action     string          `json:"action"`
			Payload    json.RawMessage `json:"payload"`
		}
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeError(w, http.StatusBadRequest, errors.New(errors.ErrValidation, "invalid request body"))
			return
		}
		m, err := h.recorder.Record(models.EntityType(req.EntityType), models.Action(req.Action), req.Payload)
		if err != nil {
			writeError(w, statusFor(err), err)
			return
		}
		writeData(w, http.StatusCreated, m)

	case http.MethodGet:
		entityType := models.EntityType(r.URL.Query().Get("entity_type"))
		pending, err := h.store.UnsyncedMutations(entityType)
		if err != nil {
			writeError(w, http.StatusInternalServerError, err)
			return
		}
		writeData(w, http.StatusOK, pending)

	default:
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
	}
}

// Queue handles POST /api/queue (enqueue a replay request) and
// GET /api/queue (list queued entries).
func (h *SyncHandler) Queue(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodPost:
		var entry models.QueueEntry
		if err := json.NewDecoder(r.Body).Decode(&entry); err != nil {
			writeError(w, http.StatusBadRequest, errors.New(errors.ErrValidation, "invalid request body"))
			return
		}
		if entry.URL == "" || entry.Method == "" {
			writeError(w, http.StatusBadRequest, errors.New(errors.ErrValidation, "url and method are required"))
			return
		}
		if err := h.store.Enqueue(&entry); err != nil {
			writeError(w, http.StatusInternalServerError, err)
			return
		}
		writeData(w, http.StatusCreated, &entry)

	case http.MethodGet:
		entries, err := h.store.ListQueue()
		if err != nil {
			writeError(w, http.StatusInternalServerError, err)
			return
		}
		writeData(w, http.StatusOK, entries)

	default:
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
	}
}

// SyncNow handles POST /api/sync: run one pass immediately.
func (h *SyncHandler) SyncNow(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	result, err := h.orch.SyncNow(r.Context())
	if err != nil {
		writeError(w, statusFor(err), err)
		return
	}
	writeData(w, http.StatusOK, result)
}

// Status handles GET /api/sync/status.
func (h *SyncHandler) Status(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	status, err := h.orch.Status()
	if err != nil {
		writeError(w, http.StatusInternalServerError, err)
		return
	}
	writeData(w, http.StatusOK, status)
}

// Network handles GET /api/network: connectivity state and quality.
func (h *SyncHandler) Network(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	writeData(w, http.StatusOK, map[string]interface{}{
		"online":  h.monitor.IsOnline(),
		"quality": h.monitor.CurrentQuality(),
	})
}

// Stats handles GET /api/stats: per-family store counts.
func (h *SyncHandler) Stats(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	stats, err := h.store.Stats()
	if err != nil {
		writeError(w, http.StatusInternalServerError, err)
		return
	}
	writeData(w, http.StatusOK, stats)
}

// Cached handles GET /api/cached?path=...&ttl_ms=...: read-through
// cached fetch against the remote API.
func (h *SyncHandler) Cached(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	path := r.URL.Query().Get("path")
	if path == "" {
		writeError(w, http.StatusBadRequest, errors.New(errors.ErrValidation, "path is required"))
		return
	}
	ttl := h.cacheTTL
	if raw := r.URL.Query().Get("ttl_ms"); raw != "" {
		if ms, err := strconv.ParseInt(raw, 10, 64); err == nil && ms > 0 {
			ttl = time.Duration(ms) * time.Millisecond
		}
	}

	data, err := h.client.GetCached(r.Context(), path, ttl)
	if err != nil {
		writeError(w, statusFor(err), err)
		return
	}
	writeData(w, http.StatusOK, data)
}

// writeData writes the standard response envelope around data.
func writeData(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(map[string]interface{}{
		"success":   true,
		"data":      data,
		"timestamp": time.Now().UnixMilli(),
	})
}

// writeError writes the standard error envelope.
func writeError(w http.ResponseWriter, status int, err error) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(map[string]interface{}{
		"success":   false,
		"error":     err.Error(),
		"timestamp": time.Now().UnixMilli(),
	})
}

// statusFor maps error codes to HTTP statuses.
func statusFor(err error) int {
	switch {
	case errors.Is(err, errors.ErrValidation):
		return http.StatusBadRequest
	case errors.Is(err, errors.ErrSyncOffline):
		return http.StatusServiceUnavailable
	case errors.Is(err, errors.ErrSyncAlreadyRunning):
		return http.StatusConflict
	case errors.Is(err, errors.ErrRequestTimeout):
		return http.StatusGatewayTimeout
	case errors.Is(err, errors.ErrNetwork):
		return http.StatusBadGateway
	case errors.Is(err, errors.ErrRemoteRejected):
		return http.StatusBadGateway
	case errors.Is(err, errors.ErrNotFound):
		return http.StatusNotFound
	default:
		return http.StatusInternalServerError
	}
}
