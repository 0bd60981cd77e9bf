// Package argocd wraps the subset of the Argo CD API the watcher consumes:
// session login, the userinfo health probe, and application status reads.
package argocd

import (
	"bytes"
	"context"
	"crypto/tls"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"sync"
	"time"
)

// Fatal authentication outcomes. Startup treats both as unrecoverable.
var (
	ErrUnauthorized = errors.New("unauthorized, please check credentials")
	ErrForbidden    = errors.New("forbidden, please check the firewall")
)

// Health states reported by Check.
const (
	HealthUp   = "up"
	HealthDown = "down"
)

// AppStatus is the projection of an Argo CD application the watcher cares
// about: the rolled-out image references and the sync/health summary.
type AppStatus struct {
	Images  []string
	Synced  string
	Healthy string
}

// Client holds an authenticated session against one Argo CD instance. The
// session token is shared across workers; the client performs no retries —
// retry is the verification engine's concern.
type Client struct {
	baseURL    string
	username   string
	password   string
	httpClient *http.Client
	logger     *slog.Logger

	mu    sync.RWMutex
	token string
}

// NewClient creates an Argo CD client. TLS certificate verification is
// skipped when sslVerify is false.
func NewClient(baseURL, username, password string, sslVerify bool, logger *slog.Logger) *Client {
	transport := http.DefaultTransport.(*http.Transport).Clone()
	transport.TLSClientConfig = &tls.Config{InsecureSkipVerify: !sslVerify}

	return &Client{
		baseURL:  baseURL,
		username: username,
		password: password,
		httpClient: &http.Client{
			Timeout:   10 * time.Second,
			Transport: transport,
		},
		logger: logger,
	}
}

// sessionResponse is the body returned by POST /api/v1/session.
type sessionResponse struct {
	Token string `json:"token"`
}

// Authenticate logs in and caches the session token. HTTP 401 and 403 map
// to the fatal sentinel errors; transport failures are returned as-is and
// leave the client unauthenticated.
func (c *Client) Authenticate(ctx context.Context) error {
	body, err := json.Marshal(map[string]string{
		"username": c.username,
		"password": c.password,
	})
	if err != nil {
		return fmt.Errorf("marshalling session request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/api/v1/session", bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("building session request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("calling argo cd session endpoint: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	switch resp.StatusCode {
	case http.StatusOK:
	case http.StatusUnauthorized:
		return ErrUnauthorized
	case http.StatusForbidden:
		return ErrForbidden
	default:
		return fmt.Errorf("argo cd session endpoint returned HTTP %d", resp.StatusCode)
	}

	var session sessionResponse
	if err := json.NewDecoder(resp.Body).Decode(&session); err != nil {
		return fmt.Errorf("decoding session response: %w", err)
	}

	c.mu.Lock()
	c.token = session.Token
	c.mu.Unlock()

	c.logger.Info("authenticated against argo cd", "url", c.baseURL)
	return nil
}

// get issues an authenticated GET against the Argo CD API.
func (c *Client) get(ctx context.Context, path string) (*http.Response, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+path, nil)
	if err != nil {
		return nil, fmt.Errorf("building request: %w", err)
	}

	c.mu.RLock()
	token := c.token
	c.mu.RUnlock()
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("calling argo cd: %w", err)
	}
	return resp, nil
}

// userinfoResponse is the body returned by GET /api/v1/session/userinfo.
type userinfoResponse struct {
	LoggedIn bool `json:"loggedIn"`
}

// Check probes the session and reports "up" only when Argo CD confirms the
// session is logged in. Any transport failure or malformed body is "down".
func (c *Client) Check(ctx context.Context) string {
	resp, err := c.get(ctx, "/api/v1/session/userinfo")
	if err != nil {
		c.logger.Debug("argo cd health probe failed", "error", err)
		return HealthDown
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		return HealthDown
	}

	var userinfo userinfoResponse
	if err := json.NewDecoder(resp.Body).Decode(&userinfo); err != nil {
		return HealthDown
	}
	if !userinfo.LoggedIn {
		return HealthDown
	}
	return HealthUp
}

// Refresh asks Argo CD to refresh the application's state and returns the
// HTTP status code. 404 signals that the application is unknown.
func (c *Client) Refresh(ctx context.Context, app string) (int, error) {
	resp, err := c.get(ctx, fmt.Sprintf("/api/v1/applications/%s?refresh=normal", app))
	if err != nil {
		return 0, err
	}
	defer func() { _ = resp.Body.Close() }()

	return resp.StatusCode, nil
}

// applicationResponse mirrors the fields of an Argo CD application the
// watcher projects out of the full API object.
type applicationResponse struct {
	Status struct {
		Summary struct {
			Images []string `json:"images"`
		} `json:"summary"`
		Sync struct {
			Status string `json:"status"`
		} `json:"sync"`
		Health struct {
			Status string `json:"status"`
		} `json:"health"`
	} `json:"status"`
}

// GetAppStatus fetches the application and projects its rollout summary.
// A non-200 response yields a nil status and no error: the application is
// simply not ready to be inspected yet.
func (c *Client) GetAppStatus(ctx context.Context, app string) (*AppStatus, error) {
	resp, err := c.get(ctx, "/api/v1/applications/"+app)
	if err != nil {
		return nil, err
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		return nil, nil
	}

	var application applicationResponse
	if err := json.NewDecoder(resp.Body).Decode(&application); err != nil {
		return nil, fmt.Errorf("decoding application response: %w", err)
	}

	return &AppStatus{
		Images:  application.Status.Summary.Images,
		Synced:  application.Status.Sync.Status,
		Healthy: application.Status.Health.Status,
	}, nil
}
