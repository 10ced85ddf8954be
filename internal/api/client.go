// Package api is the typed client for the Kochchi Bazaar HTTP API.
package api

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/url"
	"strings"
	"time"
)

const (
	DefaultBaseURL = "https://api.kochchibazaar.lk/api"

	// responses are small lists; anything past this is not a valid answer
	maxBodyBytes = 5 << 20
	userAgent    = "kochchi-web/1.0"
)

// ErrInvalidBaseURL is returned by NewClient for a base that is not an
// absolute http(s) URL.
var ErrInvalidBaseURL = errors.New("api: invalid base URL")

type Client struct {
	base   *url.URL
	client *http.Client
}

type ClientOption func(*Client)

// WithHTTPClient replaces the default tuned client.
func WithHTTPClient(hc *http.Client) ClientOption {
	return func(c *Client) {
		if hc != nil {
			c.client = hc
		}
	}
}

func NewClient(baseURL string, opts ...ClientOption) (*Client, error) {
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	u, err := url.Parse(strings.TrimRight(baseURL, "/"))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidBaseURL, err)
	}
	if (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return nil, fmt.Errorf("%w: must be an absolute HTTP or HTTPS URL", ErrInvalidBaseURL)
	}

	transport := &http.Transport{
		Proxy:                 http.ProxyFromEnvironment,
		DialContext:           (&net.Dialer{Timeout: 10 * time.Second, KeepAlive: 30 * time.Second}).DialContext,
		ForceAttemptHTTP2:     true,
		MaxIdleConns:          100,
		MaxIdleConnsPerHost:   10,
		IdleConnTimeout:       90 * time.Second,
		ResponseHeaderTimeout: 10 * time.Second,
		TLSHandshakeTimeout:   10 * time.Second,
		ExpectContinueTimeout: 1 * time.Second,
	}
	c := &Client{
		base: u,
		client: &http.Client{Timeout: 30 * time.Second, Transport: transport, CheckRedirect: func(req *http.Request, via []*http.Request) error {
			if len(via) >= 5 {
				return fmt.Errorf("stopped after 5 redirects")
			}
			return nil
		}},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

// BaseURL returns the API root the client was built with.
func (c *Client) BaseURL() string {
	return c.base.String()
}

// endpoint joins path segments onto the base. A trailing slash on the last
// segment is kept because the backend routes /notifications/ with one.
func (c *Client) endpoint(segments ...string) string {
	u := *c.base
	escaped := make([]string, len(segments))
	for i, s := range segments {
		escaped[i] = url.PathEscape(s)
	}
	u.Path = c.base.Path + "/" + strings.Join(segments, "/")
	u.RawPath = c.base.EscapedPath() + "/" + strings.Join(escaped, "/")
	return u.String()
}

// ListDansalEvents fetches every dansal event in the order the server sends.
func (c *Client) ListDansalEvents(ctx context.Context) ([]DansalEvent, error) {
	return getList[DansalEvent](ctx, c, c.endpoint("dansal", "all"))
}

// ListNotifications fetches the notifications feed.
func (c *Client) ListNotifications(ctx context.Context) ([]Notification, error) {
	return getList[Notification](ctx, c, c.endpoint("notifications", ""))
}

// NotificationByID fetches one notification. The result is a list so it can
// feed the same controller as the list pages.
func (c *Client) NotificationByID(ctx context.Context, id string) ([]Notification, error) {
	if strings.TrimSpace(id) == "" {
		return nil, &StatusError{Code: http.StatusNotFound, URL: "/notifications/"}
	}
	return getList[Notification](ctx, c, c.endpoint("notifications", id))
}

// Login exchanges a username and password for a token.
func (c *Client) Login(ctx context.Context, username, password string) (*LoginResponse, error) {
	body, err := json.Marshal(LoginRequest{Username: username, Password: password})
	if err != nil {
		return nil, err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint("auth", "login"), bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrNetwork, err)
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("User-Agent", userAgent)

	var out LoginResponse
	if err := c.do(req, &out); err != nil {
		var se *StatusError
		if errors.As(err, &se) {
			return nil, fmt.Errorf("%w: %w", ErrInvalidCredentials, err)
		}
		return nil, err
	}
	if out.BearerToken() == "" {
		return nil, ErrNoToken
	}
	return &out, nil
}

func getList[T any](ctx context.Context, c *Client, endpoint string) ([]T, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrNetwork, err)
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("User-Agent", userAgent)

	var out ListResponse[T]
	if err := c.do(req, &out); err != nil {
		return nil, err
	}
	return out.Items, nil
}

// do sends req and decodes a 2xx JSON body into out.
func (c *Client) do(req *http.Request, out any) error {
	resp, err := c.client.Do(req)
	if err != nil {
		return fmt.Errorf("%w: %w", ErrNetwork, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
	if err != nil {
		return fmt.Errorf("%w: reading body: %w", ErrNetwork, err)
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return newStatusError(resp, body)
	}
	if len(bytes.TrimSpace(body)) == 0 {
		body = []byte("null")
	}
	if err := json.Unmarshal(body, out); err != nil {
		return fmt.Errorf("%w: %w", ErrDecode, err)
	}
	return nil
}
