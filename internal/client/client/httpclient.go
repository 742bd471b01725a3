package client

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/machly/dirsync/internal/client/models"
)

const (
	authHeaderName     = "Authorization"
	deviceIDHeaderName = "X-Device-Id"

	defaultRequestTimeout = 10 * time.Second
)

// HTTPClient talks JSON over HTTP to the directory API. Each call carries
// its own connect/read deadline; the bearer token is attached once Login has
// succeeded or SetToken was called with a persisted session.
type HTTPClient struct {
	baseURL  string
	http     *http.Client
	token    string
	deviceID string
	timeout  time.Duration
}

// NewDirectoryClient returns an HTTPClient for the API at baseURL. The
// device id is sent with every request; a timeout <= 0 falls back to the
// default.
func NewDirectoryClient(baseURL, deviceID string, timeout time.Duration) *HTTPClient {
	if timeout <= 0 {
		timeout = defaultRequestTimeout
	}
	return &HTTPClient{
		baseURL:  strings.TrimRight(baseURL, "/"),
		deviceID: deviceID,
		timeout:  timeout,
		http:     &http.Client{},
	}
}

// SetToken installs a previously persisted session token.
func (c *HTTPClient) SetToken(token string) {
	c.token = token
}

func (c *HTTPClient) do(ctx context.Context, method, path string, body any, out any) error {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	var reqBody io.Reader
	if body != nil {
		b, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("failed to encode request: %w", err)
		}
		reqBody = bytes.NewReader(b)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reqBody)
	if err != nil {
		return err
	}
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.token != "" {
		req.Header.Set(authHeaderName, "Bearer "+c.token)
	}
	if c.deviceID != "" {
		req.Header.Set(deviceIDHeaderName, c.deviceID)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return mapTransportError(err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		return mapStatusError(resp.StatusCode)
	}
	if out == nil {
		_, _ = io.Copy(io.Discard, resp.Body)
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("failed to decode response: %w", err)
	}
	return nil
}

// mapTransportError folds timeouts and connectivity loss into
// ErrUnavailable so callers can fall back to the local cache.
func mapTransportError(err error) error {
	if errors.Is(err, context.DeadlineExceeded) {
		return ErrUnavailable
	}
	var urlErr *url.Error
	if errors.As(err, &urlErr) {
		return ErrUnavailable
	}
	return err
}

func mapStatusError(code int) error {
	switch code {
	case http.StatusUnauthorized, http.StatusForbidden:
		return ErrUnauthorized
	case http.StatusBadGateway, http.StatusServiceUnavailable, http.StatusGatewayTimeout:
		return ErrUnavailable
	default:
		return fmt.Errorf("unexpected status %d", code)
	}
}

type loginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

// Login authenticates and remembers the returned token for later calls.
func (c *HTTPClient) Login(ctx context.Context, email, password string) (*models.LoginResult, error) {
	var res models.LoginResult
	if err := c.do(ctx, http.MethodPost, "/api/auth/login", loginRequest{Email: email, Password: password}, &res); err != nil {
		return nil, err
	}
	c.token = res.Token
	return &res, nil
}

// ListRoles fetches the full remote role collection.
func (c *HTTPClient) ListRoles(ctx context.Context) ([]models.RoleDTO, error) {
	var out []models.RoleDTO
	if err := c.do(ctx, http.MethodGet, "/api/roles", nil, &out); err != nil {
		return nil, err
	}
	return out, nil
}

// ListUsers fetches the full remote user collection.
func (c *HTTPClient) ListUsers(ctx context.Context) ([]models.UserDTO, error) {
	var out []models.UserDTO
	if err := c.do(ctx, http.MethodGet, "/api/users", nil, &out); err != nil {
		return nil, err
	}
	return out, nil
}

// GetUser fetches a single user by its server id.
func (c *HTTPClient) GetUser(ctx context.Context, serverUserID int64) (*models.UserDTO, error) {
	var out models.UserDTO
	if err := c.do(ctx, http.MethodGet, fmt.Sprintf("/api/users/%d", serverUserID), nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// Ping probes server reachability. Any HTTP response counts as reachable;
// only a transport failure means offline.
func (c *HTTPClient) Ping(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodHead, c.baseURL+"/api/health", nil)
	if err != nil {
		return err
	}
	resp, err := c.http.Do(req)
	if err != nil {
		return ErrUnavailable
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, resp.Body)
	return nil
}

// Close releases idle connections.
func (c *HTTPClient) Close() error {
	c.http.CloseIdleConnections()
	return nil
}
