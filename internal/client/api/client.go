// Package api is a small HTTP client for the user portal API, used by the
// admin CLI.
package api

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

	"github.com/dmitrijs2005/userportal/internal/common"
)

// ErrUnauthorized is returned when the server rejects the stored token.
var ErrUnauthorized = errors.New("not logged in or session expired")

// User mirrors the JSON user document returned by the server.
type User struct {
	UserID               string     `json:"userId"`
	FirstName            string     `json:"firstName"`
	LastName             string     `json:"lastName"`
	Username             string     `json:"username"`
	Email                string     `json:"email"`
	ProfileImageURL      string     `json:"profileImageUrl"`
	LastLoginDate        *time.Time `json:"lastLoginDate"`
	LastLoginDateDisplay *time.Time `json:"lastLoginDateDisplay"`
	JoinDate             time.Time  `json:"joinDate"`
	Role                 string     `json:"role"`
	Authorities          []string   `json:"authorities"`
	Active               bool       `json:"active"`
	Locked               bool       `json:"locked"`
}

// APIError is a non-2xx reply decoded from the server's error body.
type APIError struct {
	StatusCode int
	Message    string
}

func (e *APIError) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("server returned %d", e.StatusCode)
	}
	return fmt.Sprintf("server returned %d: %s", e.StatusCode, e.Message)
}

// Unwrap lets callers match 401 replies with errors.Is(err, ErrUnauthorized).
func (e *APIError) Unwrap() error {
	if e.StatusCode == http.StatusUnauthorized {
		return ErrUnauthorized
	}
	return nil
}

type errorBody struct {
	Message string `json:"message"`
}

type Client struct {
	baseURL string
	http    *http.Client
	token   string
}

// New returns a client for the server at baseURL. A nil httpClient selects
// one with a 10 second timeout.
func New(baseURL string, httpClient *http.Client) *Client {
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 10 * time.Second}
	}
	return &Client{baseURL: strings.TrimRight(baseURL, "/"), http: httpClient}
}

// SetToken sets the bearer token sent with secured requests.
func (c *Client) SetToken(token string) {
	c.token = token
}

// Login authenticates and returns the issued token with the user document.
func (c *Client) Login(ctx context.Context, username, password string) (string, *User, error) {
	body, err := json.Marshal(map[string]string{"username": username, "password": password})
	if err != nil {
		return "", nil, err
	}

	var u User
	resp, err := c.do(ctx, http.MethodPost, "/user/login", body, &u)
	if err != nil {
		return "", nil, err
	}

	token := resp.Header.Get(common.TokenHeaderName)
	if token == "" {
		return "", nil, fmt.Errorf("login reply has no %s header", common.TokenHeaderName)
	}
	c.token = token
	return token, &u, nil
}

// ListUsers returns every user, in server order.
func (c *Client) ListUsers(ctx context.Context) ([]User, error) {
	var users []User
	if _, err := c.do(ctx, http.MethodGet, "/user/list", nil, &users); err != nil {
		return nil, err
	}
	return users, nil
}

// FindUser looks a user up by username.
func (c *Client) FindUser(ctx context.Context, username string) (*User, error) {
	var u User
	if _, err := c.do(ctx, http.MethodGet, "/user/find/"+url.PathEscape(username), nil, &u); err != nil {
		return nil, err
	}
	return &u, nil
}

// ResetPassword asks the server to generate and mail a new password and
// returns the server's confirmation message.
func (c *Client) ResetPassword(ctx context.Context, email string) (string, error) {
	var reply errorBody
	if _, err := c.do(ctx, http.MethodGet, "/user/reset-password/"+url.PathEscape(email), nil, &reply); err != nil {
		return "", err
	}
	return reply.Message, nil
}

// DeleteUser removes a user and their images.
func (c *Client) DeleteUser(ctx context.Context, username string) error {
	_, err := c.do(ctx, http.MethodDelete, "/user/delete/"+url.PathEscape(username), nil, nil)
	return err
}

func (c *Client) do(ctx context.Context, method, path string, body []byte, out any) (*http.Response, error) {
	var r io.Reader
	if body != nil {
		r = bytes.NewReader(body)
	}
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, r)
	if err != nil {
		return nil, err
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.token != "" {
		req.Header.Set("Authorization", common.TokenPrefix+c.token)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, err
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		apiErr := &APIError{StatusCode: resp.StatusCode}
		var eb errorBody
		if json.Unmarshal(data, &eb) == nil {
			apiErr.Message = eb.Message
		}
		return nil, apiErr
	}

	if out != nil && len(data) > 0 {
		if err := json.Unmarshal(data, out); err != nil {
			return nil, fmt.Errorf("decode reply: %w", err)
		}
	}
	return resp, nil
}
