// Package client is the Go SDK for the Ripple API. It wraps the REST
// surface, the realtime WebSocket protocol and the view-state machinery
// a frontend needs: session resolution, paginated feed loading and
// optimistic list reconciliation.
package client

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"ripple/internal/models"
)

// Client talks to one Ripple API server. The zero value is not usable;
// construct with New. Client is safe for concurrent use once the token
// is set; SetToken itself is not synchronized and belongs in setup code.
type Client struct {
	baseURL string
	http    *http.Client
	token   string
	logger  *slog.Logger
}

// Option customizes a Client.
type Option func(*Client)

// WithHTTPClient replaces the underlying HTTP client.
func WithHTTPClient(h *http.Client) Option {
	return func(c *Client) { c.http = h }
}

// WithToken sets the bearer token up front, for callers restoring a
// persisted session.
func WithToken(token string) Option {
	return func(c *Client) { c.token = token }
}

// WithLogger replaces the default logger.
func WithLogger(l *slog.Logger) Option {
	return func(c *Client) { c.logger = l }
}

// New creates a Client for the API rooted at baseURL, e.g.
// "http://localhost:8375".
func New(baseURL string, opts ...Option) *Client {
	c := &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		http:    &http.Client{Timeout: 15 * time.Second},
		logger:  slog.Default(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Token returns the current bearer token, empty when anonymous.
func (c *Client) Token() string { return c.token }

// SetToken replaces the bearer token. An empty token makes the client
// anonymous again.
func (c *Client) SetToken(token string) { c.token = token }

// do performs one API request. A non-nil body is JSON-encoded; a non-nil
// out receives the decoded response body. Non-2xx responses come back as
// *APIError.
func (c *Client) do(ctx context.Context, method, path string, body, out interface{}) error {
	var reader io.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("encode request body: %w", err)
		}
		reader = bytes.NewReader(payload)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("%s %s: %w", method, path, err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode >= 400 {
		apiErr := &APIError{Status: resp.StatusCode}
		var envelope models.ErrorResponse
		if decodeErr := json.NewDecoder(resp.Body).Decode(&envelope); decodeErr == nil {
			apiErr.Code = envelope.Code
			apiErr.Message = envelope.Error
			apiErr.Details = envelope.Details
		}
		c.logger.Debug("api request failed",
			"method", method, "path", path,
			"status", resp.StatusCode, "code", apiErr.Code)
		return apiErr
	}

	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}

// authResponse is the token+user pair returned by the auth endpoints.
type authResponse struct {
	Token string      `json:"token"`
	User  models.User `json:"user"`
}

// Signup registers a new account and stores the returned token.
func (c *Client) Signup(ctx context.Context, displayName, email, password, fullName string) (*models.User, error) {
	var resp authResponse
	err := c.do(ctx, http.MethodPost, "/api/auth/signup", map[string]string{
		"display_name": displayName,
		"email":        email,
		"password":     password,
		"full_name":    fullName,
	}, &resp)
	if err != nil {
		return nil, err
	}
	c.token = resp.Token
	return &resp.User, nil
}

// Login authenticates with email and password and stores the returned token.
func (c *Client) Login(ctx context.Context, email, password string) (*models.User, error) {
	var resp authResponse
	err := c.do(ctx, http.MethodPost, "/api/auth/login", map[string]string{
		"email":    email,
		"password": password,
	}, &resp)
	if err != nil {
		return nil, err
	}
	c.token = resp.Token
	return &resp.User, nil
}

// GuestLogin provisions a fresh throwaway account. Every call creates a
// new guest; there is nothing to idempotently retry against.
func (c *Client) GuestLogin(ctx context.Context) (*models.User, error) {
	var resp authResponse
	if err := c.do(ctx, http.MethodPost, "/api/auth/guest", nil, &resp); err != nil {
		return nil, err
	}
	c.token = resp.Token
	return &resp.User, nil
}

// Logout revokes the current token server-side and clears it locally.
// The local token is cleared even when revocation fails.
func (c *Client) Logout(ctx context.Context) error {
	err := c.do(ctx, http.MethodPost, "/api/auth/logout", nil, nil)
	c.token = ""
	return err
}
