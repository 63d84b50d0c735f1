// Package main provides the sync daemon: a localhost service that
// records offline mutations, replays them against the maintenance
// backend when connectivity allows, and streams sync events to
// dashboard clients over REST and WebSocket.
package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/batman3101/equipment-sync/cmd/syncd/handlers"
	"github.com/batman3101/equipment-sync/internal/api"
	"github.com/batman3101/equipment-sync/internal/config"
	"github.com/batman3101/equipment-sync/internal/events"
	"github.com/batman3101/equipment-sync/internal/logging"
	"github.com/batman3101/equipment-sync/internal/netmon"
	"github.com/batman3101/equipment-sync/internal/recorder"
	"github.com/batman3101/equipment-sync/internal/store"
	"github.com/batman3101/equipment-sync/internal/syncer"
)

const defaultPort = "8091"

func main() {
	cfg := config.Load()
	logging.Init(os.Stdout, logging.LogLevel(cfg.LogLevel))

	st := store.NewStore(cfg.DataDir)
	if err := st.Init(); err != nil {
		logging.Error("Failed to initialize local store", err,
			map[string]interface{}{"data_dir": cfg.DataDir})
		os.Exit(1)
	}
	defer st.Close()

	if stats, err := st.Stats(); err == nil {
		logging.Info("Local store opened", map[string]interface{}{
			"unsynced_mutations": stats.UnsyncedMutations,
			"queue_entries":      stats.QueueEntries,
			"cached_responses":   stats.CachedResponses,
		})
	}

	bus := events.NewBus(256)
	defer bus.Close()

	client := api.NewClient(cfg.APIBaseURL, st)
	client.HTTP.Timeout = cfg.RequestTimeout

	monitor := netmon.NewMonitor(client, bus, &netmon.Config{
		ProbeInterval: cfg.ProbeInterval,
		ProbeTimeout:  cfg.ProbeTimeout,
	})

	proc := syncer.NewProcessor(st, client, bus)
	orch := syncer.NewOrchestrator(st, proc, monitor, bus, cfg.RetryDelay)
	defer orch.Close()

	monitor.OnRecovery(orch.SyncOnReconnect)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	monitor.Start(ctx)
	defer monitor.Stop()

	if cfg.AutoSyncInterval > 0 {
		orch.StartAutoSync(cfg.AutoSyncInterval)
		defer orch.StopAutoSync()
	}

	hub := NewWSHub()
	unbind := BindBus(hub, bus)
	defer unbind()

	mux := http.NewServeMux()
	h := handlers.NewSyncHandler(recorder.NewRecorder(st), orch, st, client, monitor, cfg.DefaultCacheTTL)
	h.Register(mux)
	mux.HandleFunc("/api/health", func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodGet {
			http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"status":"ok","service":"equipment-syncd"}`))
	})
	mux.HandleFunc("/ws", HandleWebSocket(hub))

	port := os.Getenv("SYNC_PORT")
	if port == "" {
		port = defaultPort
	}
	server := &http.Server{
		Addr:    "localhost:" + port,
		Handler: mux,
	}

	go func() {
		logging.Info("Sync daemon listening", map[string]interface{}{
			"addr":     server.Addr,
			"api_base": cfg.APIBaseURL,
		})
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logging.Error("HTTP server failed", err, nil)
			cancel()
		}
	}()

	sig := make(chan os.Signal, 1)
	signal.Notify(sig, syscall.SIGINT, syscall.SIGTERM)
	select {
	case <-sig:
	case <-ctx.Done():
	}

	logging.Info("Shutting down", nil)
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logging.Error("HTTP shutdown failed", err, nil)
	}
}
