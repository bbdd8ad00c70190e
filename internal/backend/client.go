// Package backend implements the HTTP client for the ChatFlow REST API.
// The backend is pull-only: every read in this package is issued by a
// polling timer somewhere upstream, so the client carries its own rate
// limiter and per-request timeout.
package backend

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
	"sync"
	"time"

	"golang.org/x/time/rate"
)

// ErrUnauthorized is returned when the backend rejects the bearer token.
// Callers outside the auth forms force navigation to sign-in on this error.
var ErrUnauthorized = errors.New("backend: unauthorized")

// APIError carries the backend's error message for non-2xx responses.
type APIError struct {
	StatusCode int
	Message    string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("backend: %s (status %d)", e.Message, e.StatusCode)
}

// Client talks to the ChatFlow REST API with a bearer token.
type Client struct {
	baseURL    string
	httpClient *http.Client
	limiter    *rate.Limiter

	mu    sync.RWMutex
	token string
}

// Option configures a Client.
type Option func(*Client)

// WithTimeout overrides the per-request timeout (default 10s).
func WithTimeout(d time.Duration) Option {
	return func(c *Client) { c.httpClient.Timeout = d }
}

// WithHTTPClient replaces the underlying HTTP client (tests).
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.httpClient = hc }
}

// NewClient creates a client for the given base URL, e.g.
// "http://localhost:8080/api".
func NewClient(baseURL string, opts ...Option) *Client {
	c := &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{Timeout: 10 * time.Second},
		// Pollers overlap (heartbeat, list, thread); cap the aggregate at
		// 10 req/s with a small burst.
		limiter: rate.NewLimiter(rate.Limit(10), 20),
	}
	for _, o := range opts {
		o(c)
	}
	return c
}

// SetToken installs the bearer token used for authenticated requests.
func (c *Client) SetToken(token string) {
	c.mu.Lock()
	c.token = token
	c.mu.Unlock()
}

// ClearToken removes the bearer token.
func (c *Client) ClearToken() {
	c.SetToken("")
}

func (c *Client) do(ctx context.Context, method, path string, body, out any) error {
	if err := c.limiter.Wait(ctx); err != nil {
		return err
	}

	var reqBody io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("encode request: %w", err)
		}
		reqBody = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reqBody)
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	c.mu.RLock()
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}
	c.mu.RUnlock()

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return err
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode == http.StatusUnauthorized {
		return ErrUnauthorized
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		var apiErr struct {
			Message string `json:"message"`
		}
		msg := "request failed"
		if err := json.NewDecoder(resp.Body).Decode(&apiErr); err == nil && apiErr.Message != "" {
			msg = apiErr.Message
		}
		return &APIError{StatusCode: resp.StatusCode, Message: msg}
	}

	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}

// Login exchanges credentials for a token and user record.
func (c *Client) Login(ctx context.Context, email, password string) (*AuthResponse, error) {
	var resp AuthResponse
	err := c.do(ctx, http.MethodPost, "/auth/login", map[string]string{
		"email":    email,
		"password": password,
	}, &resp)
	if err != nil {
		return nil, err
	}
	return &resp, nil
}

// Register creates an account and returns a token and user record.
func (c *Client) Register(ctx context.Context, email, password, username, fullName string) (*AuthResponse, error) {
	var resp AuthResponse
	err := c.do(ctx, http.MethodPost, "/auth/register", map[string]string{
		"email":    email,
		"password": password,
		"username": username,
		"fullName": fullName,
	}, &resp)
	if err != nil {
		return nil, err
	}
	return &resp, nil
}

// SetOnline marks the identity reachable.
func (c *Client) SetOnline(ctx context.Context) error {
	return c.do(ctx, http.MethodPost, "/users/status/online", nil, nil)
}

// SetOffline marks the identity unreachable.
func (c *Client) SetOffline(ctx context.Context) error {
	return c.do(ctx, http.MethodPost, "/users/status/offline", nil, nil)
}

// Heartbeat refreshes the identity's liveness window.
func (c *Client) Heartbeat(ctx context.Context) error {
	return c.do(ctx, http.MethodPost, "/users/heartbeat", nil, nil)
}

// UpdateProfile updates the identity's profile and returns the new record.
func (c *Client) UpdateProfile(ctx context.Context, update *ProfileUpdate) (*User, error) {
	var u User
	if err := c.do(ctx, http.MethodPut, "/users/profile", update, &u); err != nil {
		return nil, err
	}
	return &u, nil
}

// Friends returns the accepted friend list.
func (c *Client) Friends(ctx context.Context) ([]Friendship, error) {
	var out []Friendship
	if err := c.do(ctx, http.MethodGet, "/friendships/friends", nil, &out); err != nil {
		return nil, err
	}
	return out, nil
}

// PendingRequests returns incoming friend requests.
func (c *Client) PendingRequests(ctx context.Context) ([]Friendship, error) {
	var out []Friendship
	if err := c.do(ctx, http.MethodGet, "/friendships/pending", nil, &out); err != nil {
		return nil, err
	}
	return out, nil
}

// SendFriendRequest asks the given user for friendship.
func (c *Client) SendFriendRequest(ctx context.Context, friendID int64) error {
	return c.do(ctx, http.MethodPost, "/friendships/request", map[string]int64{"friendId": friendID}, nil)
}

// AcceptFriendRequest accepts a pending request by friendship id.
func (c *Client) AcceptFriendRequest(ctx context.Context, friendshipID int64) error {
	return c.do(ctx, http.MethodPut, fmt.Sprintf("/friendships/%d/accept", friendshipID), nil, nil)
}

// RejectFriendRequest rejects a pending request by friendship id.
func (c *Client) RejectFriendRequest(ctx context.Context, friendshipID int64) error {
	return c.do(ctx, http.MethodDelete, fmt.Sprintf("/friendships/%d/reject", friendshipID), nil, nil)
}

// RemoveFriend deletes an existing friendship.
func (c *Client) RemoveFriend(ctx context.Context, friendshipID int64) error {
	return c.do(ctx, http.MethodDelete, fmt.Sprintf("/friendships/%d", friendshipID), nil, nil)
}

// SearchUsers finds users by name with their friendship status.
func (c *Client) SearchUsers(ctx context.Context, query string) ([]SearchResult, error) {
	var out []SearchResult
	path := "/friendships/search?query=" + url.QueryEscape(query)
	if err := c.do(ctx, http.MethodGet, path, nil, &out); err != nil {
		return nil, err
	}
	return out, nil
}

// SendMessage submits a message and returns the backend-confirmed record.
func (c *Client) SendMessage(ctx context.Context, receiverID int64, content, messageType string) (*Message, error) {
	var m Message
	err := c.do(ctx, http.MethodPost, "/messages", map[string]any{
		"receiverId":  receiverID,
		"content":     content,
		"messageType": messageType,
	}, &m)
	if err != nil {
		return nil, err
	}
	return &m, nil
}

// Conversations returns the authoritative per-peer conversation summaries.
func (c *Client) Conversations(ctx context.Context) ([]ConversationSummary, error) {
	var out []ConversationSummary
	if err := c.do(ctx, http.MethodGet, "/messages/conversations", nil, &out); err != nil {
		return nil, err
	}
	return out, nil
}

// ConversationMessages returns the full message history with a peer.
func (c *Client) ConversationMessages(ctx context.Context, peerID int64) ([]Message, error) {
	var out []Message
	path := fmt.Sprintf("/messages/conversation/%d", peerID)
	if err := c.do(ctx, http.MethodGet, path, nil, &out); err != nil {
		return nil, err
	}
	return out, nil
}

// MarkConversationRead marks every message from the peer as read.
func (c *Client) MarkConversationRead(ctx context.Context, peerID int64) error {
	return c.do(ctx, http.MethodPut, fmt.Sprintf("/messages/conversation/%d/read", peerID), nil, nil)
}
