// Package client holds everything the browser-facing application needs to
// talk to the server: a thin HTTP API client, the two session state holders
// (identity and subscription), and the route guard that arbitrates between
// them.
package client

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

var (
	// ErrUnauthorized marks an invalid or expired credential. Callers treat
	// it differently from other failures: it prompts re-authentication
	// instead of a generic error notification.
	ErrUnauthorized = errors.New("invalid or expired credential")

	// ErrRequestFailed wraps every other non-2xx response.
	ErrRequestFailed = errors.New("request failed")
)

// Account is the read-only identity projection held client-side.
type Account struct {
	ID       string `json:"id"`
	Email    string `json:"email"`
	Verified bool   `json:"verified"`
}

// Session is the result of a successful sign-in.
type Session struct {
	Token   string  `json:"token"`
	Account Account `json:"user"`
}

// SubscriptionInfo mirrors the server's status response.
type SubscriptionInfo struct {
	Active    bool       `json:"active"`
	Tier      string     `json:"tier"`
	PeriodEnd *time.Time `json:"end,omitempty"`
}

// API is the server surface the state holders depend on. The indirection
// keeps the holders testable without a running server.
type API interface {
	SignIn(ctx context.Context, email, password string) (*Session, error)
	SignUp(ctx context.Context, email, password string) (*Account, error)
	ResendVerification(ctx context.Context, email string) error
	Me(ctx context.Context, token string) (*Account, error)
	SubscriptionStatus(ctx context.Context, token string) (*SubscriptionInfo, error)
	CheckoutURL(ctx context.Context, token string) (string, error)
	PortalURL(ctx context.Context, token string) (string, error)
}

// APIClient is the HTTP implementation of API.
type APIClient struct {
	baseURL    string
	httpClient *http.Client
}

// NewAPIClient creates a client for the given server base URL.
func NewAPIClient(baseURL string, httpClient *http.Client) *APIClient {
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 15 * time.Second}
	}
	return &APIClient{
		baseURL:    strings.TrimRight(baseURL, "/"),
		httpClient: httpClient,
	}
}

func (c *APIClient) SignIn(ctx context.Context, email, password string) (*Session, error) {
	var session Session
	err := c.do(ctx, http.MethodPost, "/auth/signin", "", map[string]string{
		"email": email, "password": password,
	}, &session)
	if err != nil {
		return nil, err
	}
	return &session, nil
}

func (c *APIClient) SignUp(ctx context.Context, email, password string) (*Account, error) {
	var account Account
	err := c.do(ctx, http.MethodPost, "/auth/signup", "", map[string]string{
		"email": email, "password": password,
	}, &account)
	if err != nil {
		return nil, err
	}
	return &account, nil
}

func (c *APIClient) ResendVerification(ctx context.Context, email string) error {
	return c.do(ctx, http.MethodPost, "/auth/resend", "", map[string]string{"email": email}, nil)
}

func (c *APIClient) Me(ctx context.Context, token string) (*Account, error) {
	var account Account
	if err := c.do(ctx, http.MethodGet, "/auth/me", token, nil, &account); err != nil {
		return nil, err
	}
	return &account, nil
}

func (c *APIClient) SubscriptionStatus(ctx context.Context, token string) (*SubscriptionInfo, error) {
	var info SubscriptionInfo
	if err := c.do(ctx, http.MethodPost, "/billing/status", token, nil, &info); err != nil {
		return nil, err
	}
	return &info, nil
}

func (c *APIClient) CheckoutURL(ctx context.Context, token string) (string, error) {
	return c.urlRequest(ctx, "/billing/checkout", token)
}

func (c *APIClient) PortalURL(ctx context.Context, token string) (string, error) {
	return c.urlRequest(ctx, "/billing/portal", token)
}

func (c *APIClient) urlRequest(ctx context.Context, path, token string) (string, error) {
	var resp struct {
		URL string `json:"url"`
	}
	if err := c.do(ctx, http.MethodPost, path, token, nil, &resp); err != nil {
		return "", err
	}
	return resp.URL, nil
}

func (c *APIClient) do(ctx context.Context, method, path, token string, body, out any) error {
	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("failed to encode request: %w", err)
		}
		reader = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return fmt.Errorf("failed to build request: %w", err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("%w: %w", ErrRequestFailed, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusUnauthorized {
		return ErrUnauthorized
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		var apiErr struct {
			Error string `json:"error"`
		}
		_ = json.NewDecoder(resp.Body).Decode(&apiErr)
		if apiErr.Error != "" {
			return fmt.Errorf("%w: %s", ErrRequestFailed, apiErr.Error)
		}
		return fmt.Errorf("%w: status %d", ErrRequestFailed, resp.StatusCode)
	}

	if out != nil {
		if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
			return fmt.Errorf("failed to decode response: %w", err)
		}
	}
	return nil
}
