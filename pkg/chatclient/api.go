// Package chatclient is a Go client for the chat server: a REST API client,
// a reconnecting event socket and controllers that keep presence, contacts
// and the open conversation in sync with server pushes.
package chatclient

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/http/cookiejar"
	"net/url"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/weiawesome/wes-io-chat/pkg/response"
	"github.com/weiawesome/wes-io-chat/pkg/wire"
)

// User is a chat account as returned by the API.
type User struct {
	ID         string    `json:"id"`
	Email      string    `json:"email"`
	FullName   string    `json:"fullName"`
	ProfilePic string    `json:"profilePic"`
	CreatedAt  time.Time `json:"createdAt"`
}

// HistoryPage is one page of a conversation, oldest first.
type HistoryPage struct {
	Messages   []wire.Message `json:"messages"`
	NextCursor string         `json:"nextCursor"`
	HasMore    bool           `json:"hasMore"`
}

// HistoryQuery selects a history page. Zero values request the newest page
// with the server's default size.
type HistoryQuery struct {
	Cursor  string
	Limit   int
	Forward bool
}

// APIError is a non-success API response.
type APIError struct {
	Status  int
	Code    string
	Message string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("chat api: %d %s: %s", e.Status, e.Code, e.Message)
}

// ErrNotAuthenticated is returned by calls that need a session before
// Signup or Login succeeded.
var ErrNotAuthenticated = errors.New("chat api: not authenticated")

type authResult struct {
	User      User      `json:"user"`
	Token     string    `json:"token"`
	ExpiresAt time.Time `json:"expiresAt"`
}

type envelope struct {
	Success bool                `json:"success"`
	Data    json.RawMessage     `json:"data"`
	Error   *response.ErrorInfo `json:"error"`
}

// Client calls the chat REST API. The session token from Signup or Login is
// kept both as a bearer token and in the cookie jar.
type Client struct {
	baseURL *url.URL
	http    *http.Client

	mu    sync.RWMutex
	token string
	user  User
}

// Option configures a Client.
type Option func(*Client)

// WithHTTPClient replaces the underlying HTTP client. Its cookie jar is
// replaced only if it has none.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.http = hc }
}

// WithToken starts the client with an existing session token.
func WithToken(token string) Option {
	return func(c *Client) { c.token = token }
}

// New creates a client for the server at baseURL, e.g. http://localhost:5001.
func New(baseURL string, opts ...Option) (*Client, error) {
	u, err := url.Parse(strings.TrimSuffix(baseURL, "/"))
	if err != nil {
		return nil, fmt.Errorf("chat api: invalid base url: %w", err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return nil, fmt.Errorf("chat api: unsupported scheme %q", u.Scheme)
	}

	c := &Client{
		baseURL: u,
		http:    &http.Client{Timeout: 30 * time.Second},
	}
	for _, opt := range opts {
		opt(c)
	}
	if c.http.Jar == nil {
		jar, err := cookiejar.New(nil)
		if err != nil {
			return nil, err
		}
		c.http.Jar = jar
	}
	return c, nil
}

// Token returns the current session token.
func (c *Client) Token() string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.token
}

// Self returns the user of the current session.
func (c *Client) Self() User {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.user
}

// SocketURL returns the websocket endpoint of the server.
func (c *Client) SocketURL() string {
	u := *c.baseURL
	if u.Scheme == "https" {
		u.Scheme = "wss"
	} else {
		u.Scheme = "ws"
	}
	u.Path = strings.TrimSuffix(u.Path, "/") + "/ws"
	return u.String()
}

// Signup creates an account and starts a session.
func (c *Client) Signup(ctx context.Context, fullName, email, password string) (*User, error) {
	var res authResult
	body := map[string]string{"fullName": fullName, "email": email, "password": password}
	if err := c.do(ctx, http.MethodPost, "/api/auth/signup", nil, body, &res); err != nil {
		return nil, err
	}
	c.setSession(res)
	return &res.User, nil
}

// Login starts a session.
func (c *Client) Login(ctx context.Context, email, password string) (*User, error) {
	var res authResult
	body := map[string]string{"email": email, "password": password}
	if err := c.do(ctx, http.MethodPost, "/api/auth/login", nil, body, &res); err != nil {
		return nil, err
	}
	c.setSession(res)
	return &res.User, nil
}

// Logout ends the session. The server also closes the live socket.
func (c *Client) Logout(ctx context.Context) error {
	if err := c.do(ctx, http.MethodPost, "/api/auth/logout", nil, nil, nil); err != nil {
		return err
	}
	c.mu.Lock()
	c.token = ""
	c.user = User{}
	c.mu.Unlock()
	return nil
}

// Check returns the session user.
func (c *Client) Check(ctx context.Context) (*User, error) {
	var u User
	if err := c.do(ctx, http.MethodGet, "/api/auth/check", nil, nil, &u); err != nil {
		return nil, err
	}
	c.mu.Lock()
	c.user = u
	c.mu.Unlock()
	return &u, nil
}

// UpdateProfile uploads a new profile picture given as a data URL. A nil
// fullName keeps the current name.
func (c *Client) UpdateProfile(ctx context.Context, profilePic string, fullName *string) (*User, error) {
	body := map[string]any{"profilePic": profilePic}
	if fullName != nil {
		body["fullName"] = *fullName
	}
	var u User
	if err := c.do(ctx, http.MethodPut, "/api/auth/update-profile", nil, body, &u); err != nil {
		return nil, err
	}
	return &u, nil
}

// Contacts lists every other user.
func (c *Client) Contacts(ctx context.Context) ([]User, error) {
	var users []User
	if err := c.do(ctx, http.MethodGet, "/api/messages/users", nil, nil, &users); err != nil {
		return nil, err
	}
	return users, nil
}

// History returns a page of the conversation with partnerID.
func (c *Client) History(ctx context.Context, partnerID string, q HistoryQuery) (*HistoryPage, error) {
	params := url.Values{}
	if q.Cursor != "" {
		params.Set("cursor", q.Cursor)
	}
	if q.Limit > 0 {
		params.Set("limit", strconv.Itoa(q.Limit))
	}
	if q.Forward {
		params.Set("direction", "forward")
	}

	var page HistoryPage
	if err := c.do(ctx, http.MethodGet, "/api/messages/"+url.PathEscape(partnerID), params, nil, &page); err != nil {
		return nil, err
	}
	return &page, nil
}

// SendMessage sends text and an optional image data URL to partnerID and
// returns the persisted message.
func (c *Client) SendMessage(ctx context.Context, partnerID, text, image string) (*wire.Message, error) {
	body := map[string]string{"text": text, "image": image}
	var msg wire.Message
	if err := c.do(ctx, http.MethodPost, "/api/messages/send/"+url.PathEscape(partnerID), nil, body, &msg); err != nil {
		return nil, err
	}
	return &msg, nil
}

// Online returns the current presence snapshot.
func (c *Client) Online(ctx context.Context) ([]string, error) {
	var res struct {
		Online []string `json:"online"`
	}
	if err := c.do(ctx, http.MethodGet, "/api/presence", nil, nil, &res); err != nil {
		return nil, err
	}
	return res.Online, nil
}

func (c *Client) setSession(res authResult) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.token = res.Token
	c.user = res.User
}

func (c *Client) do(ctx context.Context, method, path string, params url.Values, body, out any) error {
	u := *c.baseURL
	u.Path = strings.TrimSuffix(u.Path, "/") + path
	if params != nil {
		u.RawQuery = params.Encode()
	}

	var rd io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return err
		}
		rd = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, u.String(), rd)
	if err != nil {
		return err
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if token := c.Token(); token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("chat api: %s %s: %w", method, path, err)
	}
	defer resp.Body.Close()

	var env envelope
	if err := json.NewDecoder(resp.Body).Decode(&env); err != nil {
		return fmt.Errorf("chat api: %s %s: decode response (status %d): %w", method, path, resp.StatusCode, err)
	}
	if !env.Success {
		apiErr := &APIError{Status: resp.StatusCode}
		if env.Error != nil {
			apiErr.Code = env.Error.Code
			apiErr.Message = env.Error.Message
		}
		if resp.StatusCode == http.StatusUnauthorized && c.Token() == "" {
			return fmt.Errorf("%w: %s", ErrNotAuthenticated, apiErr.Message)
		}
		return apiErr
	}

	if out == nil || len(env.Data) == 0 {
		return nil
	}
	return json.Unmarshal(env.Data, out)
}
