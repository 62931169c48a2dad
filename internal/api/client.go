package api

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
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/melissa98m/weeb-website-sub000/internal/config"
)

const (
	csrfCookieName    = "csrftoken"
	sessionCookieName = "sessionid"
	csrfHeader        = "X-CSRFToken"
)

// APIError is returned for any response with status >= 400
type APIError struct {
	Method     string
	URL        string
	StatusCode int
	Body       string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("API request failed with status %d: %s", e.StatusCode, e.Body)
}

// IsNotFound reports whether err is an API 404.
func IsNotFound(err error) bool {
	return hasStatus(err, http.StatusNotFound)
}

// IsForbidden reports whether err is an API 401 or 403.
func IsForbidden(err error) bool {
	return hasStatus(err, http.StatusForbidden) || hasStatus(err, http.StatusUnauthorized)
}

func hasStatus(err error, status int) bool {
	var apiErr *APIError
	return errors.As(err, &apiErr) && apiErr.StatusCode == status
}

type Client struct {
	BaseURL    string
	HTTPClient *http.Client
	Logger     *zap.Logger

	mu        sync.Mutex
	csrfToken string
}

// NewClient creates a credentialed API client; cookies set by the backend
// (session, csrf) are kept in an in-memory jar.
func NewClient(cfg config.APIConfig, logger *zap.Logger) *Client {
	if logger == nil {
		logger = zap.NewNop()
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	jar, _ := cookiejar.New(nil)

	return &Client{
		BaseURL: strings.TrimRight(cfg.BaseURL, "/"),
		Logger:  logger,
		HTTPClient: &http.Client{
			Timeout: timeout,
			Jar:     jar,
		},
	}
}

// Get issues a GET and returns the response body
func (c *Client) Get(ctx context.Context, endpoint string, query url.Values) ([]byte, error) {
	return c.makeRequest(ctx, http.MethodGet, endpoint, query, nil)
}

// Post issues a POST with a JSON body
func (c *Client) Post(ctx context.Context, endpoint string, body interface{}) ([]byte, error) {
	return c.makeRequest(ctx, http.MethodPost, endpoint, nil, body)
}

// Patch issues a PATCH with a JSON body
func (c *Client) Patch(ctx context.Context, endpoint string, body interface{}) ([]byte, error) {
	return c.makeRequest(ctx, http.MethodPatch, endpoint, nil, body)
}

// Delete issues a DELETE and discards the body
func (c *Client) Delete(ctx context.Context, endpoint string) error {
	_, err := c.makeRequest(ctx, http.MethodDelete, endpoint, nil, nil)
	return err
}

// resolve turns an endpoint into an absolute URL. Absolute endpoints are used
// as-is; anything else is joined to the base URL keeping its trailing slash.
func (c *Client) resolve(endpoint string, query url.Values) (string, error) {
	var raw string
	if strings.HasPrefix(endpoint, "http://") || strings.HasPrefix(endpoint, "https://") {
		raw = endpoint
	} else {
		raw = c.BaseURL + "/" + strings.TrimLeft(endpoint, "/")
	}

	u, err := url.Parse(raw)
	if err != nil {
		return "", fmt.Errorf("invalid endpoint %q: %w", endpoint, err)
	}
	if len(query) > 0 {
		q := u.Query()
		for key, values := range query {
			for _, v := range values {
				q.Add(key, v)
			}
		}
		u.RawQuery = q.Encode()
	}
	return u.String(), nil
}

func isUnsafe(method string) bool {
	switch method {
	case http.MethodGet, http.MethodHead, http.MethodOptions:
		return false
	}
	return true
}

// makeRequest makes an HTTP request and returns the response body
func (c *Client) makeRequest(ctx context.Context, method, endpoint string, query url.Values, body interface{}) ([]byte, error) {
	target, err := c.resolve(endpoint, query)
	if err != nil {
		return nil, err
	}

	var reqBody io.Reader
	if body != nil {
		jsonBody, err := json.Marshal(body)
		if err != nil {
			return nil, fmt.Errorf("failed to marshal request body: %w", err)
		}
		reqBody = bytes.NewReader(jsonBody)
	}

	req, err := http.NewRequestWithContext(ctx, method, target, reqBody)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}

	req.Header.Set("Accept", "application/json")
	req.Header.Set("X-Request-ID", uuid.NewString())
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	unsafe := isUnsafe(method)
	if unsafe {
		token, err := c.CSRFToken(ctx)
		if err != nil {
			return nil, err
		}
		req.Header.Set(csrfHeader, token)
		// Django checks the referer on HTTPS unsafe requests
		req.Header.Set("Referer", c.BaseURL+"/")
	}

	start := time.Now()
	resp, err := c.HTTPClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to make request: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response body: %w", err)
	}

	c.Logger.Debug("api request",
		zap.String("method", method),
		zap.String("url", target),
		zap.Int("status", resp.StatusCode),
		zap.Duration("elapsed", time.Since(start)),
		zap.String("request_id", req.Header.Get("X-Request-ID")))

	if resp.StatusCode >= 400 {
		if unsafe && resp.StatusCode == http.StatusForbidden {
			// token may have been rotated server-side; fetch a fresh one next time
			c.resetCSRF()
		}
		return nil, &APIError{
			Method:     method,
			URL:        target,
			StatusCode: resp.StatusCode,
			Body:       strings.TrimSpace(string(respBody)),
		}
	}

	return respBody, nil
}

// CSRFToken returns the token sent as X-CSRFToken on unsafe requests. The
// csrftoken cookie wins since any response may rotate it, then the cached
// value, then the backend is asked for one.
func (c *Client) CSRFToken(ctx context.Context) (string, error) {
	token := c.cookie(csrfCookieName)
	if token == "" {
		c.mu.Lock()
		token = c.csrfToken
		c.mu.Unlock()
	}
	if token == "" {
		body, err := c.Get(ctx, "/csrf/", nil)
		if err != nil {
			return "", fmt.Errorf("failed to obtain csrf token: %w", err)
		}
		var payload struct {
			CSRFToken string `json:"csrfToken"`
			Token     string `json:"csrf_token"`
		}
		_ = json.Unmarshal(body, &payload)
		switch {
		case payload.CSRFToken != "":
			token = payload.CSRFToken
		case payload.Token != "":
			token = payload.Token
		default:
			token = c.cookie(csrfCookieName)
		}
		if token == "" {
			return "", errors.New("failed to obtain csrf token: backend returned none")
		}
	}

	c.mu.Lock()
	c.csrfToken = token
	c.mu.Unlock()
	return token, nil
}

func (c *Client) resetCSRF() {
	c.mu.Lock()
	c.csrfToken = ""
	c.mu.Unlock()
}

func (c *Client) baseURL() *url.URL {
	u, err := url.Parse(c.BaseURL + "/")
	if err != nil {
		return nil
	}
	return u
}

func (c *Client) cookie(name string) string {
	u := c.baseURL()
	if u == nil || c.HTTPClient.Jar == nil {
		return ""
	}
	for _, ck := range c.HTTPClient.Jar.Cookies(u) {
		if ck.Name == name {
			return ck.Value
		}
	}
	return ""
}

// SessionCookies returns the session and csrf cookies currently held for the base URL.
func (c *Client) SessionCookies() []*http.Cookie {
	u := c.baseURL()
	if u == nil || c.HTTPClient.Jar == nil {
		return nil
	}
	var out []*http.Cookie
	for _, ck := range c.HTTPClient.Jar.Cookies(u) {
		if ck.Name == sessionCookieName || ck.Name == csrfCookieName {
			out = append(out, &http.Cookie{Name: ck.Name, Value: ck.Value})
		}
	}
	return out
}

// RestoreSession loads previously saved cookies into the jar.
func (c *Client) RestoreSession(cookies []*http.Cookie) {
	u := c.baseURL()
	if u == nil || c.HTTPClient.Jar == nil || len(cookies) == 0 {
		return
	}
	restored := make([]*http.Cookie, 0, len(cookies))
	for _, ck := range cookies {
		restored = append(restored, &http.Cookie{Name: ck.Name, Value: ck.Value, Path: "/"})
	}
	c.HTTPClient.Jar.SetCookies(u, restored)
	c.resetCSRF()
}
