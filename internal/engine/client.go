package engine

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/codeflow/panel/internal/document"
)

// StatusFetcher is implemented by *Client and satisfies status.Fetcher.
type StatusFetcher interface {
	FetchStatus(ctx context.Context) (document.Document, error)
}

// Ensure Client implements StatusFetcher at compile time.
var _ StatusFetcher = (*Client)(nil)

// Client talks to the engine's local HTTP bridge.
type Client struct {
	baseURL    *url.URL
	http       *http.Client
	userAgent  string
	statusPath string
	logsPath   string
}

const (
	defaultAPIBind    = "127.0.0.1:8000"
	defaultUserAgent  = "codeflow-panel/0.1"
	defaultStatusPath = "/status"
	defaultLogsPath   = "/ws/logs"
	requestTimeout    = 5 * time.Second
	maxStatusBytes    = 4 << 20
)

// Options override endpoint paths; zero values use the engine defaults.
type Options struct {
	StatusPath string
	LogsPath   string
	Timeout    time.Duration
}

// NewClient builds a Client using the provided apiBind host:port value.
func NewClient(apiBind string, opts Options) (*Client, error) {
	base, err := parseBaseURL(apiBind)
	if err != nil {
		return nil, err
	}
	timeout := opts.Timeout
	if timeout <= 0 {
		timeout = requestTimeout
	}
	return &Client{
		baseURL: base,
		http: &http.Client{
			Timeout: timeout,
		},
		userAgent:  defaultUserAgent,
		statusPath: normalizePath(opts.StatusPath, defaultStatusPath),
		logsPath:   normalizePath(opts.LogsPath, defaultLogsPath),
	}, nil
}

// FetchStatus retrieves the engine status document. Transport failures,
// HTTP errors and undecodable bodies are all reported as errors.
func (c *Client) FetchStatus(ctx context.Context) (document.Document, error) {
	if c == nil {
		return nil, fmt.Errorf("client is nil")
	}
	body, err := c.get(ctx, c.statusPath)
	if err != nil {
		return nil, err
	}
	return decodeStatus(body)
}

// LogsURL returns the websocket address of the log stream.
func (c *Client) LogsURL() string {
	u := *c.baseURL
	switch u.Scheme {
	case "https":
		u.Scheme = "wss"
	default:
		u.Scheme = "ws"
	}
	u.Path = c.logsPath
	return u.String()
}

func (c *Client) get(ctx context.Context, path string) ([]byte, error) {
	reqURL := c.baseURL.ResolveReference(&url.URL{Path: path})
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL.String(), nil)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("User-Agent", c.userAgent)

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("execute request: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode >= 400 {
		return nil, fmt.Errorf("api %s returned status %d", path, resp.StatusCode)
	}
	body, err := io.ReadAll(io.LimitReader(resp.Body, maxStatusBytes))
	if err != nil {
		return nil, fmt.Errorf("read response: %w", err)
	}
	return body, nil
}

func decodeStatus(body []byte) (document.Document, error) {
	doc, err := document.DecodeJSON(body)
	if err != nil {
		return nil, fmt.Errorf("decode response: %w", err)
	}
	return doc, nil
}

func normalizePath(path, fallback string) string {
	trimmed := strings.TrimSpace(path)
	if trimmed == "" {
		return fallback
	}
	if !strings.HasPrefix(trimmed, "/") {
		trimmed = "/" + trimmed
	}
	return trimmed
}

func parseBaseURL(apiBind string) (*url.URL, error) {
	trimmed := strings.TrimSpace(apiBind)
	if trimmed == "" {
		trimmed = defaultAPIBind
	}
	if !strings.Contains(trimmed, "://") {
		trimmed = "http://" + trimmed
	}
	u, err := url.Parse(trimmed)
	if err != nil {
		return nil, fmt.Errorf("parse api_bind %q: %w", apiBind, err)
	}
	u.Path = ""
	u.RawQuery = ""
	u.Fragment = ""
	return u, nil
}
