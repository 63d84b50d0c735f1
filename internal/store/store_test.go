// Package store provides unit tests for the persistent local store.
package store

import (
	"os"
	"sync"
	"testing"

	"github.com/batman3101/equipment-sync/internal/models"
)

// newTestStore opens a store in a temp directory.
func newTestStore(t *testing.T) *Store {
	t.Helper()
	s := NewStore(t.TempDir())
	if err := s.Init(); err != nil {
		t.Fatalf("Init failed: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

// TestInitIdempotent tests that repeated and concurrent Init calls
// share a single open.
func TestInitIdempotent(t *testing.T) {
	s := NewStore(t.TempDir())
	defer s.Close()

	var wg sync.WaitGroup
	errs := make([]error, 10)
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			errs[i] = s.Init()
		}(i)
	}
	wg.Wait()

	for i, err := range errs {
		if err != nil {
			t.Errorf("Init %d failed: %v", i, err)
		}
	}

	// A second explicit call must also succeed
	if err := s.Init(); err != nil {
		t.Errorf("Repeated Init failed: %v", err)
	}
}

// TestInitFailureSurfaces tests that an unopenable data dir is fatal.
func TestInitFailureSurfaces(t *testing.T) {
	// A file where the directory should be
	dir := t.TempDir() + "/blocked"
	if err := os.WriteFile(dir, []byte("x"), 0644); err != nil {
		t.Fatalf("setup: %v", err)
	}

	s := NewStore(dir + "/nested")
	if err := s.Init(); err == nil {
		t.Error("Expected Init to fail when data dir cannot be created")
		s.Close()
	}
}

// TestStoreSurvivesReopen tests durability across handles.
func TestStoreSurvivesReopen(t *testing.T) {
	dir := t.TempDir()

	s1 := NewStore(dir)
	if err := s1.Init(); err != nil {
		t.Fatalf("Init failed: %v", err)
	}
	if _, err := s1.SaveMutation(models.EntityBreakdown, models.ActionCreate, []byte(`{"note":"spindle jam"}`)); err != nil {
		t.Fatalf("SaveMutation failed: %v", err)
	}
	s1.Close()

	s2 := NewStore(dir)
	defer s2.Close()
	pending, err := s2.UnsyncedMutations("")
	if err != nil {
		t.Fatalf("UnsyncedMutations failed: %v", err)
	}
	if len(pending) != 1 {
		t.Fatalf("Expected 1 pending mutation after reopen, got %d", len(pending))
	}
}

// TestStats tests per-family counts.
func TestStats(t *testing.T) {
	s := newTestStore(t)

	m, _ := s.SaveMutation(models.EntityRepair, models.ActionCreate, []byte(`{}`))
	s.SaveMutation(models.EntityRepair, models.ActionUpdate, []byte(`{}`))
	s.MarkSynced(m.ID)
	s.Enqueue(&models.QueueEntry{URL: "http://example.com/ping", Method: "POST", MaxRetries: 3})
	s.CachePut("equipment:list", []byte(`[]`), 60000)

	stats, err := s.Stats()
	if err != nil {
		t.Fatalf("Stats failed: %v", err)
	}

	if stats.Mutations != 2 {
		t.Errorf("Expected 2 mutations, got %d", stats.Mutations)
	}
	if stats.UnsyncedMutations != 1 {
		t.Errorf("Expected 1 unsynced mutation, got %d", stats.UnsyncedMutations)
	}
	if stats.QueueEntries != 1 {
		t.Errorf("Expected 1 queue entry, got %d", stats.QueueEntries)
	}
	if stats.CachedResponses != 1 {
		t.Errorf("Expected 1 cached response, got %d", stats.CachedResponses)
	}
}
