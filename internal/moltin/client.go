package moltin

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/KirillYabl/TgPizzaBot/internal/logger"
)

// tokenSafetyMargin keeps us from using a token that expires mid-request.
const tokenSafetyMargin = 10 * time.Second

// Options configures the commerce client.
type Options struct {
	// ClientID identifies the API user.
	ClientID string
	// ClientSecret is optional; when present the client_credentials grant is
	// used and the token gets CRUD permissions.
	ClientSecret string
	// BaseURL defaults to the public API host.
	BaseURL string
	// HTTPClient defaults to a client with a 30s timeout.
	HTTPClient *http.Client
	// Now is overridable for tests.
	Now func() time.Time
}

// Client talks to the Moltin/Elastic Path commerce API.
// All calls obtain a bearer token lazily and reuse it until near expiry.
type Client struct {
	http    *http.Client
	baseURL string
	id      string
	secret  string
	now     func() time.Time

	mu      sync.Mutex
	token   string
	expires time.Time
}

// NewClient constructs a commerce client.
func NewClient(opts Options) *Client {
	httpClient := opts.HTTPClient
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 30 * time.Second}
	}
	baseURL := strings.TrimRight(opts.BaseURL, "/")
	if baseURL == "" {
		baseURL = "https://api.moltin.com"
	}
	now := opts.Now
	if now == nil {
		now = time.Now
	}
	return &Client{
		http:    httpClient,
		baseURL: baseURL,
		id:      opts.ClientID,
		secret:  opts.ClientSecret,
		now:     now,
	}
}

type tokenResponse struct {
	AccessToken string `json:"access_token"`
	Expires     int64  `json:"expires"`
}

// Token returns a cached bearer token, requesting a fresh one when the cached
// token is absent or within the safety margin of its expiry.
func (c *Client) Token(ctx context.Context) (string, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.token != "" && c.now().Before(c.expires.Add(-tokenSafetyMargin)) {
		return c.token, nil
	}

	form := url.Values{}
	form.Set("client_id", c.id)
	form.Set("grant_type", "implicit")
	if c.secret != "" {
		form.Set("client_secret", c.secret)
		form.Set("grant_type", "client_credentials")
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/oauth/access_token",
		strings.NewReader(form.Encode()))
	if err != nil {
		return "", fmt.Errorf("build token request: %w", err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := c.http.Do(req)
	if err != nil {
		return "", fmt.Errorf("token request: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", fmt.Errorf("read token response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return "", &AuthError{Status: resp.StatusCode, Body: logger.SanitizeLimit(string(body), 256)}
	}

	var tok tokenResponse
	if err := json.Unmarshal(body, &tok); err != nil {
		return "", fmt.Errorf("parse token response: %w", err)
	}

	c.token = tok.AccessToken
	c.expires = time.Unix(tok.Expires, 0)
	logger.Debug(ctx, "moltin", "token.refreshed",
		slog.Time("expires", c.expires),
	)
	return c.token, nil
}

// do executes an authenticated JSON request and decodes the data envelope into out.
// A nil out discards the response body.
func (c *Client) do(ctx context.Context, method, path string, query url.Values, body any, out any) error {
	token, err := c.Token(ctx)
	if err != nil {
		return err
	}

	var bodyReader io.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("marshal request: %w", err)
		}
		bodyReader = bytes.NewReader(payload)
	}

	u := c.baseURL + path
	if len(query) > 0 {
		u += "?" + query.Encode()
	}
	req, err := http.NewRequestWithContext(ctx, method, u, bodyReader)
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+token)
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	start := c.now()
	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("%s %s: %w", method, path, err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("read response: %w", err)
	}

	logger.Debug(ctx, "moltin", "api.call",
		slog.String("method", method),
		slog.String("path", path),
		slog.Int("status", resp.StatusCode),
		slog.Duration("duration", logger.RoundMS(c.now().Sub(start))),
	)

	if err := statusError(resp.StatusCode, path, raw); err != nil {
		return err
	}
	if out == nil || len(raw) == 0 {
		return nil
	}
	if err := json.Unmarshal(raw, out); err != nil {
		return fmt.Errorf("parse response: %w", err)
	}
	return nil
}

func statusError(status int, path string, body []byte) error {
	switch {
	case status >= 200 && status < 300:
		return nil
	case status == http.StatusNotFound:
		return ErrNotFound
	default:
		return &UpstreamError{Status: status, Path: path, Body: logger.SanitizeLimit(string(body), 256)}
	}
}
