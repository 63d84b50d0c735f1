// Package store provides CRUD repository operations over the record families.
package store

import (
	"database/sql"
	"encoding/json"
	"fmt"

	"github.com/batman3101/equipment-sync/internal/models"
	"github.com/batman3101/equipment-sync/internal/uuid"
)

// =====================================================
// Offline Mutation Operations
// =====================================================

// SaveMutation persists a new offline mutation with a generated id,
// synced=false and retry_count=0. Duplicate business payloads are not
// rejected; uniqueness is by generated id only.
func (s *Store) SaveMutation(entityType models.EntityType, action models.Action, payload json.RawMessage) (*models.Mutation, error) {
	if err := s.Init(); err != nil {
		return nil, err
	}

	m := &models.Mutation{
		ID:         models.UUID(uuid.New()),
		EntityType: entityType,
		Action:     action,
		Payload:    payload,
		CreatedAt:  s.now().UnixMilli(),
		Synced:     false,
		RetryCount: 0,
	}

	query := `
	INSERT INTO offline_data (id, entity_type, action, payload, created_at, synced, retry_count)
	VALUES (?, ?, ?, ?, ?, 0, 0)
	`
	_, err := s.db.Exec(query, m.ID, m.EntityType, m.Action, string(m.Payload), m.CreatedAt)
	if err != nil {
		return nil, fmt.Errorf("failed to save mutation: %w", err)
	}
	return m, nil
}

// UnsyncedMutations returns all mutations with synced=false in oldest-
// first replay order. An empty entityType returns every entity family.
func (s *Store) UnsyncedMutations(entityType models.EntityType) ([]*models.Mutation, error) {
	if err := s.Init(); err != nil {
		return nil, err
	}

	query := `
	SELECT id, entity_type, action, payload, created_at, synced, retry_count
	FROM offline_data WHERE synced = 0
	`
	args := []interface{}{}
	if entityType != "" {
		query += " AND entity_type = ?"
		args = append(args, entityType)
	}
	query += " ORDER BY created_at ASC, seq ASC"

	rows, err := s.db.Query(query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list unsynced mutations: %w", err)
	}
	defer rows.Close()

	var mutations []*models.Mutation
	for rows.Next() {
		var m models.Mutation
		var payload string
		if err := rows.Scan(&m.ID, &m.EntityType, &m.Action, &payload,
			&m.CreatedAt, &m.Synced, &m.RetryCount); err != nil {
			return nil, err
		}
		m.Payload = json.RawMessage(payload)
		mutations = append(mutations, &m)
	}
	return mutations, rows.Err()
}

// MarkSynced flips synced=true for the mutation. A missing id is
// treated as already handled and is not an error.
func (s *Store) MarkSynced(id models.UUID) error {
	if err := s.Init(); err != nil {
		return err
	}
	_, err := s.db.Exec("UPDATE offline_data SET synced = 1 WHERE id = ?", id)
	return err
}

// IncrementRetry bumps the mutation's retry counter. A missing id is a
// silent no-op.
func (s *Store) IncrementRetry(id models.UUID) error {
	if err := s.Init(); err != nil {
		return err
	}
	_, err := s.db.Exec("UPDATE offline_data SET retry_count = retry_count + 1 WHERE id = ?", id)
	return err
}

// DeleteMutation removes a single mutation record.
func (s *Store) DeleteMutation(id models.UUID) error {
	if err := s.Init(); err != nil {
		return err
	}
	_, err := s.db.Exec("DELETE FROM offline_data WHERE id = ?", id)
	return err
}

// ClearMutations removes all mutation records, synced or not.
func (s *Store) ClearMutations() error {
	if err := s.Init(); err != nil {
		return err
	}
	_, err := s.db.Exec("DELETE FROM offline_data")
	return err
}

// PruneSynced removes mutations that completed replay. Returns the
// number of rows removed.
func (s *Store) PruneSynced() (int, error) {
	if err := s.Init(); err != nil {
		return 0, err
	}
	res, err := s.db.Exec("DELETE FROM offline_data WHERE synced = 1")
	if err != nil {
		return 0, err
	}
	n, _ := res.RowsAffected()
	return int(n), nil
}

// =====================================================
// Sync Queue Operations
// =====================================================

// Enqueue stores a generic replay entry. A missing id is generated;
// CreatedAt is stamped if unset.
func (s *Store) Enqueue(e *models.QueueEntry) error {
	if err := s.Init(); err != nil {
		return err
	}

	if e.ID == "" {
		e.ID = models.UUID(uuid.New())
	}
	if e.CreatedAt == 0 {
		e.CreatedAt = s.now().UnixMilli()
	}
	if e.MaxRetries <= 0 {
		e.MaxRetries = models.DefaultMaxRetries
	}

	headers, err := json.Marshal(e.Headers)
	if err != nil {
		return fmt.Errorf("failed to marshal headers: %w", err)
	}

	query := `
	INSERT INTO sync_queue (id, url, method, headers, body, max_retries, retry_count, created_at, last_attempt_at)
	VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
	`
	_, err = s.db.Exec(query, e.ID, e.URL, e.Method, string(headers), e.Body,
		e.MaxRetries, e.RetryCount, e.CreatedAt, e.LastAttemptAt)
	if err != nil {
		return fmt.Errorf("failed to enqueue entry: %w", err)
	}
	return nil
}

// ListQueue returns all queue entries in oldest-first replay order.
func (s *Store) ListQueue() ([]*models.QueueEntry, error) {
	if err := s.Init(); err != nil {
		return nil, err
	}

	query := `
	SELECT id, url, method, headers, body, max_retries, retry_count, created_at, last_attempt_at
	FROM sync_queue ORDER BY created_at ASC, rowid ASC
	`
	rows, err := s.db.Query(query)
	if err != nil {
		return nil, fmt.Errorf("failed to list queue: %w", err)
	}
	defer rows.Close()

	var entries []*models.QueueEntry
	for rows.Next() {
		var e models.QueueEntry
		var headers string
		var body []byte
		if err := rows.Scan(&e.ID, &e.URL, &e.Method, &headers, &body,
			&e.MaxRetries, &e.RetryCount, &e.CreatedAt, &e.LastAttemptAt); err != nil {
			return nil, err
		}
		if err := json.Unmarshal([]byte(headers), &e.Headers); err != nil {
			return nil, fmt.Errorf("failed to unmarshal headers for %s: %w", e.ID, err)
		}
		e.Body = body
		entries = append(entries, &e)
	}
	return entries, rows.Err()
}

// Dequeue removes a queue entry by id. Used both for success and for
// dead-lettering; a missing id is a silent no-op.
func (s *Store) Dequeue(id models.UUID) error {
	if err := s.Init(); err != nil {
		return err
	}
	_, err := s.db.Exec("DELETE FROM sync_queue WHERE id = ?", id)
	return err
}

// IncrementQueueRetry bumps the entry's retry counter and records the
// attempt time. Returns the new retry count, or -1 if the id is gone.
func (s *Store) IncrementQueueRetry(id models.UUID) (int, error) {
	if err := s.Init(); err != nil {
		return 0, err
	}

	_, err := s.db.Exec(
		"UPDATE sync_queue SET retry_count = retry_count + 1, last_attempt_at = ? WHERE id = ?",
		s.now().UnixMilli(), id)
	if err != nil {
		return 0, err
	}

	stmt, err := s.prepareStmt("SELECT retry_count FROM sync_queue WHERE id = ?")
	if err != nil {
		return 0, err
	}
	var count int
	err = stmt.QueryRow(id).Scan(&count)
	if err == sql.ErrNoRows {
		return -1, nil
	}
	if err != nil {
		return 0, err
	}
	return count, nil
}

// =====================================================
// Response Cache Operations
// =====================================================

// CachePut stores a response under key with the given TTL in
// milliseconds, replacing any previous entry for the key.
func (s *Store) CachePut(key string, data json.RawMessage, ttlMillis int64) error {
	if err := s.Init(); err != nil {
		return err
	}

	query := `
	INSERT INTO api_cache (key, data, cached_at, ttl) VALUES (?, ?, ?, ?)
	ON CONFLICT(key) DO UPDATE SET data = excluded.data, cached_at = excluded.cached_at, ttl = excluded.ttl
	`
	_, err := s.db.Exec(query, key, string(data), s.now().UnixMilli(), ttlMillis)
	return err
}

// CacheGet returns the cached data for key if still fresh. A miss or an
// expired entry returns (nil, nil); expiry is evaluated on read even
// before a sweep runs.
func (s *Store) CacheGet(key string) (json.RawMessage, error) {
	if err := s.Init(); err != nil {
		return nil, err
	}

	stmt, err := s.prepareStmt("SELECT data, cached_at, ttl FROM api_cache WHERE key = ?")
	if err != nil {
		return nil, err
	}

	var data string
	var cachedAt, ttl int64
	err = stmt.QueryRow(key).Scan(&data, &cachedAt, &ttl)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	if s.now().UnixMilli()-cachedAt >= ttl {
		return nil, nil
	}
	return json.RawMessage(data), nil
}

// SweepExpired purges all cache entries past their TTL. Returns the
// number of rows removed.
func (s *Store) SweepExpired() (int, error) {
	if err := s.Init(); err != nil {
		return 0, err
	}

	res, err := s.db.Exec("DELETE FROM api_cache WHERE ? - cached_at >= ttl", s.now().UnixMilli())
	if err != nil {
		return 0, err
	}
	n, _ := res.RowsAffected()
	return int(n), nil
}

// =====================================================
// Sync History Operations
// =====================================================

// RecordHistory appends a completed-pass record.
func (s *Store) RecordHistory(h *models.SyncHistory) error {
	if err := s.Init(); err != nil {
		return err
	}

	query := `
	INSERT INTO sync_history (started_at, finished_at, trigger_kind, synced_count, failed_count, status)
	VALUES (?, ?, ?, ?, ?, ?)
	`
	res, err := s.db.Exec(query, h.StartedAt, h.FinishedAt, h.Trigger,
		h.SyncedCount, h.FailedCount, h.Status)
	if err != nil {
		return fmt.Errorf("failed to record history: %w", err)
	}
	h.ID, _ = res.LastInsertId()
	return nil
}

// LastHistory returns the most recent pass record, or nil if no pass
// has ever completed.
func (s *Store) LastHistory() (*models.SyncHistory, error) {
	if err := s.Init(); err != nil {
		return nil, err
	}

	query := `
	SELECT id, started_at, finished_at, trigger_kind, synced_count, failed_count, status
	FROM sync_history ORDER BY id DESC LIMIT 1
	`
	var h models.SyncHistory
	err := s.db.QueryRow(query).Scan(&h.ID, &h.StartedAt, &h.FinishedAt,
		&h.Trigger, &h.SyncedCount, &h.FailedCount, &h.Status)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &h, nil
}

// =====================================================
// Observability
// =====================================================

// Stats returns record counts for each family.
func (s *Store) Stats() (*models.StoreStats, error) {
	if err := s.Init(); err != nil {
		return nil, err
	}

	stats := &models.StoreStats{}
	counts := []struct {
		query string
		dest  *int
	}{
		{"SELECT COUNT(*) FROM offline_data", &stats.Mutations},
		{"SELECT COUNT(*) FROM offline_data WHERE synced = 0", &stats.UnsyncedMutations},
		{"SELECT COUNT(*) FROM sync_queue", &stats.QueueEntries},
		{"SELECT COUNT(*) FROM api_cache", &stats.CachedResponses},
		{"SELECT COUNT(*) FROM sync_history", &stats.HistoryRows},
	}
	for _, c := range counts {
		if err := s.db.QueryRow(c.query).Scan(c.dest); err != nil {
			return nil, err
		}
	}
	return stats, nil
}

// CountQueueFailed returns the number of queue entries that have failed
// at least once. Feeds SyncStatus.FailedCount; mutation retry counts
// are deliberately excluded since mutations have no retry ceiling.
func (s *Store) CountQueueFailed() (int, error) {
	if err := s.Init(); err != nil {
		return 0, err
	}
	var n int
	err := s.db.QueryRow("SELECT COUNT(*) FROM sync_queue WHERE retry_count > 0").Scan(&n)
	return n, err
}
