// Package relay talks to the restreamer that fans one RTMP input out to
// several platform ingest URLs.
package relay

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/kt-lectures/broadcaster/internal/platforms"
)

// DefaultTimeout bounds every relay request.
const DefaultTimeout = 3 * time.Second

// Config points at the relay control API.
type Config struct {
	APIURL string
	// RTMPURL is where operators push their stream; it is only displayed.
	RTMPURL string
	Timeout time.Duration
}

// Client implements the publishing relay.
type Client struct {
	apiURL  string
	rtmpURL string
	http    *http.Client
	logger  *zap.Logger

	mu      sync.Mutex
	targets map[string]map[string]struct{}
}

// New creates a relay client.
func New(cfg Config, logger *zap.Logger) *Client {
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = DefaultTimeout
	}
	return &Client{
		apiURL:  strings.TrimSuffix(cfg.APIURL, "/"),
		rtmpURL: cfg.RTMPURL,
		http:    &http.Client{Timeout: cfg.Timeout},
		logger:  logger,
		targets: make(map[string]map[string]struct{}),
	}
}

// IngestURL is the RTMP URL an operator streams to for key.
func (c *Client) IngestURL(key string) string {
	return strings.TrimSuffix(c.rtmpURL, "/") + "/" + key
}

type streamRequest struct {
	Name    string   `json:"name"`
	Targets []string `json:"targets"`
}

type targetRequest struct {
	Target string `json:"target"`
}

type statusResponse struct {
	IsLive        bool  `json:"is_live"`
	Bitrate       int64 `json:"bitrate"`
	LastFrameTime int64 `json:"last_frame_time"`
}

func (c *Client) do(ctx context.Context, method, endpoint string, body any) (*http.Response, error) {
	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			return nil, err
		}
	}
	req, err := http.NewRequestWithContext(ctx, method, endpoint, &buf)
	if err != nil {
		return nil, err
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	return c.http.Do(req)
}

// Provision creates or replaces the key with the given targets.
func (c *Client) Provision(ctx context.Context, key string, targets []string) error {
	if targets == nil {
		targets = []string{}
	}
	resp, err := c.do(ctx, http.MethodPost, c.apiURL, streamRequest{Name: key, Targets: targets})
	if err != nil {
		return fmt.Errorf("provision %s: %w", key, err)
	}
	defer resp.Body.Close()
	c.logger.Info("relay key provisioned", zap.String("relay_key", key), zap.Int("status", resp.StatusCode))
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("provision %s: unexpected status %s", key, resp.Status)
	}
	c.mu.Lock()
	set := make(map[string]struct{}, len(targets))
	for _, t := range targets {
		set[t] = struct{}{}
	}
	c.targets[key] = set
	c.mu.Unlock()
	return nil
}

// AddTarget adds one forwarding target. Targets already added through this
// client are not sent again.
func (c *Client) AddTarget(ctx context.Context, key, target string) error {
	c.mu.Lock()
	_, known := c.targets[key][target]
	c.mu.Unlock()
	if known {
		return nil
	}
	resp, err := c.do(ctx, http.MethodPost, c.apiURL+"/"+url.PathEscape(key)+"/targets", targetRequest{Target: target})
	if err != nil {
		return fmt.Errorf("add target to %s: %w", key, err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("add target to %s: unexpected status %s", key, resp.Status)
	}
	c.mu.Lock()
	if c.targets[key] == nil {
		c.targets[key] = make(map[string]struct{})
	}
	c.targets[key][target] = struct{}{}
	c.mu.Unlock()
	c.logger.Info("relay target added", zap.String("relay_key", key))
	return nil
}

// Status reports whether the relay receives a stream for key. Unknown keys
// yield platforms.ErrNotFound.
func (c *Client) Status(ctx context.Context, key string) (*platforms.RelayStatus, error) {
	resp, err := c.do(ctx, http.MethodGet, c.apiURL+"/"+url.PathEscape(key)+"/status", nil)
	if err != nil {
		return nil, fmt.Errorf("status of %s: %w", key, err)
	}
	defer resp.Body.Close()
	switch resp.StatusCode {
	case http.StatusOK:
	case http.StatusNotFound:
		return nil, fmt.Errorf("relay key %s: %w", key, platforms.ErrNotFound)
	default:
		return nil, fmt.Errorf("status of %s: unexpected status %s", key, resp.Status)
	}
	var sr statusResponse
	if err := json.NewDecoder(resp.Body).Decode(&sr); err != nil {
		return nil, fmt.Errorf("status of %s: decode: %w", key, err)
	}
	st := &platforms.RelayStatus{IsLive: sr.IsLive, Bitrate: sr.Bitrate}
	if sr.LastFrameTime > 0 {
		t := time.UnixMilli(sr.LastFrameTime)
		st.LastFrameTime = &t
	}
	return st, nil
}
