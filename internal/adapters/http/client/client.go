// Package client triggers scoring runs on a remote server, the way an
// external cron scheduler does.
package client

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/phucmetlamroi/agency-manager/internal/domain/runguard"
	"github.com/phucmetlamroi/agency-manager/internal/domain/types"
)

const (
	defaultTimeout = 2 * time.Minute
	maxErrorBody   = 4 << 10
)

// Sentinel kinds for client errors.
var (
	ErrUnauthorized = errors.New("trigger unauthorized")
	ErrRunFailed    = errors.New("remote run failed")
	ErrUnexpected   = errors.New("unexpected response")
)

// Client calls the scoring API.
type Client struct {
	baseURL string
	secret  string
	http    *http.Client
}

// Option configures the Client.
type Option func(*Client)

// WithSecret sends "Authorization: Bearer <secret>".
func WithSecret(secret string) Option {
	return func(c *Client) {
		c.secret = secret
	}
}

// WithTimeout bounds each request.
func WithTimeout(d time.Duration) Option {
	return func(c *Client) {
		if d > 0 {
			c.http.Timeout = d
		}
	}
}

// WithHTTPClient replaces the underlying HTTP client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) {
		if hc != nil {
			c.http = hc
		}
	}
}

// New creates a client for the server at baseURL.
func New(baseURL string, opts ...Option) *Client {
	c := &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		http:    &http.Client{Timeout: defaultTimeout},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

type errorBody struct {
	Code    string `json:"code"`
	Message string `json:"message"`
	RunID   string `json:"run_id"`
}

// Trigger posts to /api/scoring and decodes the run report.
func (c *Client) Trigger(ctx context.Context) (types.RunReport, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/api/scoring", http.NoBody)
	if err != nil {
		return types.RunReport{}, fmt.Errorf("build request: %w", err)
	}
	if c.secret != "" {
		req.Header.Set("Authorization", "Bearer "+c.secret)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return types.RunReport{}, fmt.Errorf("post trigger: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode == http.StatusOK {
		var report types.RunReport
		if err := json.NewDecoder(resp.Body).Decode(&report); err != nil {
			return types.RunReport{}, fmt.Errorf("%w: decode report: %w", ErrUnexpected, err)
		}
		return report, nil
	}

	raw, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
	var eb errorBody
	_ = json.Unmarshal(raw, &eb)
	msg := eb.Message
	if msg == "" {
		msg = strings.TrimSpace(string(raw))
	}
	failed := types.RunReport{Status: types.StatusFailed, RunID: eb.RunID, Error: msg}

	switch resp.StatusCode {
	case http.StatusUnauthorized:
		return failed, fmt.Errorf("%w: %s", ErrUnauthorized, msg)
	case http.StatusConflict:
		return failed, fmt.Errorf("%w: %s", runguard.ErrRunInProgress, msg)
	case http.StatusInternalServerError:
		return failed, fmt.Errorf("%w: %s", ErrRunFailed, msg)
	default:
		return failed, fmt.Errorf("%w: status %d: %s", ErrUnexpected, resp.StatusCode, msg)
	}
}

// Stats fetches /stats.
func (c *Client) Stats(ctx context.Context) (map[string]any, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/stats", http.NoBody)
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}
	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("get stats: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("%w: status %d", ErrUnexpected, resp.StatusCode)
	}
	var out map[string]any
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return nil, fmt.Errorf("%w: decode stats: %w", ErrUnexpected, err)
	}
	return out, nil
}
