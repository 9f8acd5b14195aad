// Package client is the collaborator side of the device protocol: ping before
// use, poll on an interval, and give up after a run of failures.
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
	"sync"
	"time"

	log "github.com/sirupsen/logrus"

	"github.com/itohio/wally/pkg/api"
	"github.com/itohio/wally/pkg/daq"
)

// ErrDisconnected is returned once RetryAttempts consecutive requests failed.
var ErrDisconnected = errors.New("device disconnected")

const (
	DefaultInterval      = time.Second
	DefaultTimeout       = 3 * time.Second
	DefaultRetryAttempts = 3
)

// Config describes how to reach the device.
type Config struct {
	Address       string // host:port or base URL
	Interval      time.Duration
	Timeout       time.Duration
	RetryAttempts int
}

// Client talks to one device. It is safe for concurrent use.
type Client struct {
	base     string
	http     *http.Client
	interval time.Duration
	retries  int

	mu        sync.Mutex
	failures  int
	connected bool
}

func New(cfg Config) *Client {
	if cfg.Interval <= 0 {
		cfg.Interval = DefaultInterval
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = DefaultTimeout
	}
	if cfg.RetryAttempts <= 0 {
		cfg.RetryAttempts = DefaultRetryAttempts
	}

	base := strings.TrimSuffix(cfg.Address, "/")
	if !strings.Contains(base, "://") {
		base = "http://" + base
	}

	return &Client{
		base:     base,
		http:     &http.Client{Timeout: cfg.Timeout},
		interval: cfg.Interval,
		retries:  cfg.RetryAttempts,
	}
}

// BaseURL returns the device URL.
func (c *Client) BaseURL() string { return c.base }

// Connect pings the device and marks the client connected on success.
func (c *Client) Connect(ctx context.Context) error {
	if err := c.Ping(ctx); err != nil {
		return fmt.Errorf("connect to %s: %w", c.base, err)
	}
	log.WithField("device", c.base).Info("connected")
	return nil
}

// Connected reports whether the last run of requests succeeded.
func (c *Client) Connected() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.connected
}

// Failures returns the number of consecutive failed requests.
func (c *Client) Failures() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.failures
}

// Ping succeeds only when the device answers "pong"; any other body counts as
// a failed request.
func (c *Client) Ping(ctx context.Context) error {
	body, err := c.fetch(ctx, "/ping")
	if err == nil && strings.TrimSpace(string(body)) != "pong" {
		err = fmt.Errorf("unexpected ping response %q", body)
	}
	c.record(err)
	return err
}

func (c *Client) Sensors(ctx context.Context) (daq.Report, error) {
	var rep daq.Report
	err := c.getJSON(ctx, "/sensors", &rep)
	return rep, err
}

func (c *Client) Status(ctx context.Context) (api.Status, error) {
	var st api.Status
	err := c.getJSON(ctx, "/status", &st)
	return st, err
}

func (c *Client) VernierStatus(ctx context.Context) (api.VernierStatus, error) {
	var vs api.VernierStatus
	err := c.getJSON(ctx, "/vernier/status", &vs)
	return vs, err
}

// Command sends a single-character command.
func (c *Client) Command(ctx context.Context, cmd string) (api.CommandResult, error) {
	var res api.CommandResult
	err := c.getJSON(ctx, api.CommandPrefix+cmd, &res)
	return res, err
}

// Active is the decoded /vernier/active payload: exactly one field is set.
type Active struct {
	Reading *daq.ActiveReading
	Paused  *daq.Paused
}

func (c *Client) Active(ctx context.Context) (Active, error) {
	body, err := c.get(ctx, "/vernier/active")
	if err != nil {
		return Active{}, err
	}

	var peek struct {
		Status string `json:"status"`
	}
	if err := json.Unmarshal(body, &peek); err != nil {
		return Active{}, fmt.Errorf("decode /vernier/active: %w", err)
	}

	if peek.Status == "readings_paused" {
		var p daq.Paused
		if err := json.Unmarshal(body, &p); err != nil {
			return Active{}, fmt.Errorf("decode /vernier/active: %w", err)
		}
		return Active{Paused: &p}, nil
	}

	var r daq.ActiveReading
	if err := json.Unmarshal(body, &r); err != nil {
		return Active{}, fmt.Errorf("decode /vernier/active: %w", err)
	}
	return Active{Reading: &r}, nil
}

// Watch polls /sensors every interval and hands each report to fn. It returns
// ErrDisconnected after RetryAttempts consecutive failures, or nil when ctx is
// done.
func (c *Client) Watch(ctx context.Context, fn func(daq.Report)) error {
	ticker := time.NewTicker(c.interval)
	defer ticker.Stop()

	for {
		rep, err := c.Sensors(ctx)
		switch {
		case err == nil:
			fn(rep)
		case ctx.Err() != nil:
			return nil
		case !c.Connected() && c.Failures() >= c.retries:
			return fmt.Errorf("%w: %v", ErrDisconnected, err)
		default:
			log.WithError(err).WithField("failures", c.Failures()).Warn("poll failed")
		}

		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
		}
	}
}

// Verify replays the wire contract against the device. It changes the
// device's acquisition state, so run it against an idle device only.
func (c *Client) Verify(ctx context.Context) error {
	steps, err := api.Contract()
	if err != nil {
		return err
	}

	var errs []error
	for _, step := range steps {
		status, contentType, body, err := c.do(ctx, step.Method, step.Path)
		if err != nil {
			errs = append(errs, fmt.Errorf("%s %s: %w", step.Method, step.Path, err))
			continue
		}
		if err := step.Check(status, contentType, body); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

func (c *Client) getJSON(ctx context.Context, path string, v any) error {
	body, err := c.get(ctx, path)
	if err != nil {
		return err
	}
	if err := json.Unmarshal(body, v); err != nil {
		return fmt.Errorf("decode %s: %w", path, err)
	}
	return nil
}

// get performs a GET and records the outcome for disconnection tracking.
func (c *Client) get(ctx context.Context, path string) ([]byte, error) {
	body, err := c.fetch(ctx, path)
	c.record(err)
	if err != nil {
		return nil, err
	}
	return body, nil
}

// fetch performs a GET without recording the outcome. Anything but 200 is an error.
func (c *Client) fetch(ctx context.Context, path string) ([]byte, error) {
	status, _, body, err := c.do(ctx, http.MethodGet, path)
	if err != nil {
		return nil, err
	}
	if status != http.StatusOK {
		return nil, fmt.Errorf("GET %s: status %d: %s", path, status, bytes.TrimSpace(body))
	}
	return body, nil
}

func (c *Client) do(ctx context.Context, method, path string) (int, string, []byte, error) {
	req, err := http.NewRequestWithContext(ctx, method, c.base+path, nil)
	if err != nil {
		return 0, "", nil, fmt.Errorf("build request: %w", err)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return 0, "", nil, fmt.Errorf("%s %s: %w", method, path, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return 0, "", nil, fmt.Errorf("read %s: %w", path, err)
	}
	return resp.StatusCode, resp.Header.Get("Content-Type"), body, nil
}

func (c *Client) record(err error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if err == nil {
		c.failures = 0
		c.connected = true
		return
	}
	c.failures++
	if c.failures >= c.retries {
		if c.connected {
			log.WithError(err).WithField("device", c.base).Warn("device disconnected")
		}
		c.connected = false
	}
}
