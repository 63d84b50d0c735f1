// Package api provides the HTTP client for the remote maintenance
// backend: request replay, the response envelope, timeout
// classification, and a read-through response cache.
package api

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/batman3101/equipment-sync/internal/errors"
	"github.com/batman3101/equipment-sync/internal/models"
	"github.com/batman3101/equipment-sync/internal/store"
)

// DefaultTimeout bounds every remote call unless configured otherwise.
const DefaultTimeout = 15 * time.Second

// Envelope is the JSON response shape of the remote API.
type Envelope struct {
	Success   bool            `json:"success"`
	Data      json.RawMessage `json:"data,omitempty"`
	Error     string          `json:"error,omitempty"`
	Timestamp int64           `json:"timestamp"`
}

// Client issues requests against the remote maintenance backend.
type Client struct {
	BaseURL string
	HTTP    *http.Client
	Store   *store.Store // optional, enables the read-through cache
}

// NewClient creates a Client with the default timeout.
func NewClient(baseURL string, st *store.Store) *Client {
	return &Client{
		BaseURL: strings.TrimRight(baseURL, "/"),
		HTTP:    &http.Client{Timeout: DefaultTimeout},
		Store:   st,
	}
}

// Do issues one request and decodes the response envelope. url may be
// absolute (queue entries store full URLs) or a path relative to
// BaseURL. Timeouts are reported with a distinguishable error code so
// callers can tell them apart from hard rejections.
func (c *Client) Do(ctx context.Context, method, url string, headers map[string]string, body []byte) (*Envelope, error) {
	if !strings.HasPrefix(url, "http://") && !strings.HasPrefix(url, "https://") {
		url = c.BaseURL + "/" + strings.TrimLeft(url, "/")
	}

	var reader io.Reader
	if len(body) > 0 {
		reader = bytes.NewReader(body)
	}

	req, err := http.NewRequestWithContext(ctx, method, url, reader)
	if err != nil {
		return nil, errors.Wrap(errors.ErrInvalid, "failed to build request", err)
	}
	req.Header.Set("Content-Type", "application/json")
	for k, v := range headers {
		req.Header.Set(k, v)
	}

	resp, err := c.HTTP.Do(req)
	if err != nil {
		if isTimeout(ctx, err) {
			return nil, errors.Wrap(errors.ErrRequestTimeout,
				fmt.Sprintf("%s %s timed out", method, url), err)
		}
		return nil, errors.Wrap(errors.ErrNetwork,
			fmt.Sprintf("%s %s failed", method, url), err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, errors.Wrap(errors.ErrNetwork, "failed to read response body", err)
	}

	env := &Envelope{}
	// A non-envelope body is tolerated; status decides the outcome
	_ = json.Unmarshal(raw, env)
	if env.Timestamp == 0 {
		env.Timestamp = time.Now().UnixMilli()
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		msg := env.Error
		if msg == "" {
			msg = resp.Status
		}
		return env, errors.New(errors.ErrRemoteRejected,
			fmt.Sprintf("%s %s: %s", method, url, msg))
	}

	env.Success = true
	return env, nil
}

// isTimeout reports whether err represents a deadline expiry rather
// than a hard rejection.
func isTimeout(ctx context.Context, err error) bool {
	if ctx.Err() == context.DeadlineExceeded {
		return true
	}
	type timeout interface{ Timeout() bool }
	for e := err; e != nil; {
		if t, ok := e.(timeout); ok && t.Timeout() {
			return true
		}
		u, ok := e.(interface{ Unwrap() error })
		if !ok {
			break
		}
		e = u.Unwrap()
	}
	return false
}

// CollectionPath maps an entity type to its REST collection.
func CollectionPath(entityType models.EntityType) string {
	switch entityType {
	case models.EntityBreakdown:
		return "breakdowns"
	case models.EntityRepair:
		return "repairs"
	case models.EntityEquipment:
		return "equipment"
	case models.EntityUser:
		return "users"
	}
	return string(entityType)
}

// Health probes the backend's health endpoint. Used by the
// connectivity monitor; the returned latency feeds the quality signal.
func (c *Client) Health(ctx context.Context) (time.Duration, error) {
	start := time.Now()
	_, err := c.Do(ctx, http.MethodGet, "/health", nil, nil)
	return time.Since(start), err
}

// GetCached performs a read-through GET: a fresh cache entry under the
// path is returned without touching the network; otherwise the response
// data is fetched and cached under the path with the given TTL.
func (c *Client) GetCached(ctx context.Context, path string, ttl time.Duration) (json.RawMessage, error) {
	if c.Store != nil {
		if data, err := c.Store.CacheGet(path); err == nil && data != nil {
			return data, nil
		}
	}

	env, err := c.Do(ctx, http.MethodGet, path, nil, nil)
	if err != nil {
		return nil, err
	}

	if c.Store != nil && len(env.Data) > 0 {
		if err := c.Store.CachePut(path, env.Data, ttl.Milliseconds()); err != nil {
			return env.Data, errors.Wrap(errors.ErrStorage, "failed to cache response", err)
		}
	}
	return env.Data, nil
}
