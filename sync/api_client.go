// ABOUTME: HTTP client for the lead sync server API
// ABOUTME: Wraps push, pull, health, and login endpoints with bearer auth and error classification

package sync

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/harperreed/leadsync/models"
)

const (
	// requestTimeout bounds ordinary API calls.
	requestTimeout = 30 * time.Second

	// probeTimeout bounds the connectivity health probe. A probe that takes
	// longer than this counts as offline.
	probeTimeout = 5 * time.Second
)

// PushMode selects how the server applies a pushed batch.
type PushMode string

const (
	// PushReplace replaces the server-side collection with the batch.
	PushReplace PushMode = "replace"
	// PushAppend appends the batch to what earlier batches established.
	PushAppend PushMode = "append"
)

// APIClient talks to the sync server. It is safe for concurrent use.
type APIClient struct {
	server   string
	token    string
	deviceID string
	http     *http.Client
}

// NewAPIClient creates a client for the configured sync server.
func NewAPIClient(cfg *Config) *APIClient {
	return &APIClient{
		server:   cfg.Server,
		token:    cfg.Token,
		deviceID: cfg.DeviceID,
		http:     &http.Client{Timeout: requestTimeout},
	}
}

type pushBusinessesRequest struct {
	Businesses []models.Business `json:"businesses"`
	Mode       PushMode          `json:"mode"`
	DeviceID   string            `json:"device_id"`
	Timestamp  time.Time         `json:"timestamp"`
}

type pushRouteRequest struct {
	Stops    []models.RouteStop `json:"stops"`
	DeviceID string             `json:"device_id"`
}

type pushResponse struct {
	SyncedCount int `json:"synced_count"`
}

type pullBusinessesResponse struct {
	Businesses []models.Business `json:"businesses"`
	Timestamp  time.Time         `json:"timestamp"`
}

type pullRouteResponse struct {
	Stops []models.RouteStop `json:"stops"`
}

// PushBusinesses pushes one batch of businesses. The first batch of a push
// uses PushReplace so the server collection mirrors the local one; later
// batches use PushAppend.
func (c *APIClient) PushBusinesses(ctx context.Context, batch []models.Business, mode PushMode) (int, error) {
	req := pushBusinessesRequest{
		Businesses: batch,
		Mode:       mode,
		DeviceID:   c.deviceID,
		Timestamp:  time.Now().UTC(),
	}
	var resp pushResponse
	if err := c.do(ctx, http.MethodPost, "/api/businesses/sync", req, &resp); err != nil {
		return 0, err
	}
	return resp.SyncedCount, nil
}

// PushRoute pushes the full route as a single replace operation.
func (c *APIClient) PushRoute(ctx context.Context, stops []models.RouteStop) (int, error) {
	req := pushRouteRequest{Stops: stops, DeviceID: c.deviceID}
	var resp pushResponse
	if err := c.do(ctx, http.MethodPost, "/api/route/sync", req, &resp); err != nil {
		return 0, err
	}
	return resp.SyncedCount, nil
}

// FetchBusinesses pulls the server-side business collection and the server's
// timestamp for it.
func (c *APIClient) FetchBusinesses(ctx context.Context) ([]models.Business, time.Time, error) {
	var resp pullBusinessesResponse
	if err := c.do(ctx, http.MethodGet, "/api/businesses", nil, &resp); err != nil {
		return nil, time.Time{}, err
	}
	return resp.Businesses, resp.Timestamp, nil
}

// FetchRoute pulls the server-side route.
func (c *APIClient) FetchRoute(ctx context.Context) ([]models.RouteStop, error) {
	var resp pullRouteResponse
	if err := c.do(ctx, http.MethodGet, "/api/route", nil, &resp); err != nil {
		return nil, err
	}
	return resp.Stops, nil
}

// Health probes the server. It returns nil when the server answered within
// the probe timeout.
func (c *APIClient) Health(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, probeTimeout)
	defer cancel()
	return c.do(ctx, http.MethodGet, "/health", nil, nil)
}

type loginRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
	DeviceID string `json:"device_id"`
}

// LoginResponse carries the credentials issued by the server.
type LoginResponse struct {
	Token string `json:"token"`
	Owner string `json:"owner"`
}

// Login exchanges credentials for a bearer token and updates the client to
// use it.
func (c *APIClient) Login(ctx context.Context, username, password string) (*LoginResponse, error) {
	req := loginRequest{Username: username, Password: password, DeviceID: c.deviceID}
	var resp LoginResponse
	if err := c.do(ctx, http.MethodPost, "/api/auth/login", req, &resp); err != nil {
		return nil, err
	}
	c.token = resp.Token
	return &resp, nil
}

// do executes one API call. Failures come back as *SyncError so callers can
// classify without inspecting transport details.
func (c *APIClient) do(ctx context.Context, method, path string, body, out interface{}) error {
	var reader io.Reader
	if body != nil {
		encoded, err := json.Marshal(body)
		if err != nil {
			return newSyncError(ErrorData, "failed to encode request: %v", err)
		}
		reader = bytes.NewReader(encoded)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.server+path, reader)
	if err != nil {
		return newSyncError(ErrorData, "failed to build request: %v", err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return &SyncError{
			Type:    ErrorNetwork,
			Message: fmt.Sprintf("request to %s failed: %v", path, err),
			Details: map[string]string{"path": path},
		}
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
		return &SyncError{
			Type:    classifyStatus(resp.StatusCode),
			Message: fmt.Sprintf("%s returned %d", path, resp.StatusCode),
			Details: map[string]string{
				"path":   path,
				"status": fmt.Sprintf("%d", resp.StatusCode),
				"body":   string(msg),
			},
		}
	}

	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return newSyncError(ErrorData, "failed to decode %s response: %v", path, err)
	}
	return nil
}
