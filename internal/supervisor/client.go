// Package supervisor talks to the Home Assistant Supervisor REST API. It is
// the delivery channel for add-on stdin commands and exposes add-on info
// and restart to admins.
package supervisor

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"
)

const (
	DefaultBaseURL = "http://supervisor"
	// DefaultAddonSlug is the ha-sip add-on.
	DefaultAddonSlug = "c7744bff_ha-sip"

	maxResponseBytes = 1 << 20
)

var ErrNoToken = errors.New("supervisor: token not available; not a supervised/OS install?")

// Error is a Supervisor response with status >= 400.
type Error struct {
	Method string
	Path   string
	Status int
	Body   string
}

func (e *Error) Error() string {
	return fmt.Sprintf("%s %s -> %d: %s", e.Method, e.Path, e.Status, e.Body)
}

// envelope is the Supervisor response wrapper.
type envelope struct {
	Result  string          `json:"result"`
	Data    json.RawMessage `json:"data"`
	Message string          `json:"message,omitempty"`
}

type AddonInfo struct {
	Name    string         `json:"name"`
	Slug    string         `json:"slug"`
	State   string         `json:"state"`
	Version string         `json:"version"`
	Options map[string]any `json:"options"`
}

type Client struct {
	httpClient *http.Client
	baseURL    string
	token      string
}

// NewClient builds a client. An empty baseURL falls back to DefaultBaseURL.
func NewClient(baseURL, token string) *Client {
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	return &Client{
		httpClient: &http.Client{Timeout: 30 * time.Second},
		baseURL:    strings.TrimRight(baseURL, "/"),
		token:      token,
	}
}

// Configured reports whether a token is available.
func (c *Client) Configured() bool { return c.token != "" }

// AddonStdin writes input to the add-on's stdin. It blocks until the
// Supervisor answers and does not retry.
func (c *Client) AddonStdin(ctx context.Context, slug string, input any) error {
	return c.do(ctx, http.MethodPost, "/addons/"+slug+"/stdin", input, nil)
}

func (c *Client) AddonInfo(ctx context.Context, slug string) (AddonInfo, error) {
	var info AddonInfo
	err := c.do(ctx, http.MethodGet, "/addons/"+slug+"/info", nil, &info)
	return info, err
}

func (c *Client) RestartAddon(ctx context.Context, slug string) error {
	return c.do(ctx, http.MethodPost, "/addons/"+slug+"/restart", nil, nil)
}

func (c *Client) do(ctx context.Context, method, path string, in, out any) error {
	if c.token == "" {
		return ErrNoToken
	}

	var body io.Reader
	if in != nil {
		b, err := json.Marshal(in)
		if err != nil {
			return fmt.Errorf("supervisor: marshalling %s body: %w", path, err)
		}
		body = bytes.NewReader(b)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	if err != nil {
		return fmt.Errorf("supervisor: creating request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+c.token)
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("supervisor: %s %s: %w", method, path, err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		return fmt.Errorf("supervisor: reading response: %w", err)
	}

	if resp.StatusCode >= 400 {
		return &Error{Method: method, Path: path, Status: resp.StatusCode, Body: string(respBody)}
	}

	slog.Debug("supervisor request", "method", method, "path", path, "status", resp.StatusCode)

	if out == nil || len(bytes.TrimSpace(respBody)) == 0 {
		return nil
	}
	var env envelope
	if err := json.Unmarshal(respBody, &env); err != nil {
		return fmt.Errorf("supervisor: decoding response: %w", err)
	}
	if len(env.Data) == 0 {
		return nil
	}
	if err := json.Unmarshal(env.Data, out); err != nil {
		return fmt.Errorf("supervisor: decoding %s data: %w", path, err)
	}
	return nil
}
