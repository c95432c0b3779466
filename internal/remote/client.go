package remote

import (
	"assettree/internal/core/errors"
	"assettree/internal/core/ports"
	"assettree/internal/shared/util"
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"
)

var _ ports.RemoteStore = (*Client)(nil)

// Client talks to the remote store's HTTP API. It never retries; a failed
// request is reported to the caller as a RemotePush error.
type Client struct {
	endpoint string
	http     *http.Client

	limiterMu sync.RWMutex
	limiter   *util.Limiter
}

// ClientOptions configures NewClient. A zero Timeout means 30 seconds and a
// zero RequestsPerSecond leaves requests unlimited.
type ClientOptions struct {
	Timeout           time.Duration
	RequestsPerSecond float64
	Burst             int
}

// NewClient creates a client for endpoint, e.g. "http://127.0.0.1:8600/api".
func NewClient(endpoint string, opts ClientOptions) *Client {
	if opts.Timeout <= 0 {
		opts.Timeout = 30 * time.Second
	}
	c := &Client{
		endpoint: strings.TrimRight(endpoint, "/"),
		http:     &http.Client{Timeout: opts.Timeout},
	}
	if opts.RequestsPerSecond > 0 {
		burst := opts.Burst
		if burst <= 0 {
			burst = 1
		}
		c.limiter = util.NewLimiter(opts.RequestsPerSecond, burst)
	}
	return c
}

// SetRateLimit replaces the request limiter; rps <= 0 disables limiting.
// It is safe to call while requests are in flight; a request already waiting
// keeps the limiter it started with.
func (c *Client) SetRateLimit(rps float64, burst int) {
	var next *util.Limiter
	if rps > 0 {
		if burst <= 0 {
			burst = 1
		}
		next = util.NewLimiter(rps, burst)
	}
	c.limiterMu.Lock()
	c.limiter = next
	c.limiterMu.Unlock()
}

func (c *Client) currentLimiter() *util.Limiter {
	c.limiterMu.RLock()
	defer c.limiterMu.RUnlock()
	return c.limiter
}

// BulkUpsert submits every item of one tree in a single request. Per-item
// rejections come back in the result; only transport failures and non-2xx
// responses are errors.
func (c *Client) BulkUpsert(ctx context.Context, req ports.BulkUpsertRequest) (ports.BulkUpsertResult, error) {
	body, err := json.Marshal(req)
	if err != nil {
		return ports.BulkUpsertResult{}, fmt.Errorf("marshal bulk upsert: %w", err)
	}
	target := fmt.Sprintf("%s/trees/%s/items:bulkUpsert", c.endpoint, url.PathEscape(req.TreeName))

	var result ports.BulkUpsertResult
	if err := c.do(ctx, http.MethodPost, target, body, &result); err != nil {
		return ports.BulkUpsertResult{}, err
	}
	return result, nil
}

type searchResponse struct {
	Tree *ports.RemoteTree `json:"tree"`
}

// SearchTree returns the tree called name, or nil when the store has none.
func (c *Client) SearchTree(ctx context.Context, name string) (*ports.RemoteTree, error) {
	target := fmt.Sprintf("%s/trees/search?name=%s", c.endpoint, url.QueryEscape(name))
	var resp searchResponse
	err := c.do(ctx, http.MethodGet, target, nil, &resp)
	if errors.IsCode(err, errors.CodeNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return resp.Tree, nil
}

func (c *Client) do(ctx context.Context, method, target string, body []byte, out any) error {
	if limiter := c.currentLimiter(); limiter != nil {
		if err := limiter.Wait(ctx, 1); err != nil {
			return errors.RemotePush(err, "rate limit wait cancelled")
		}
	}

	var reader io.Reader
	if body != nil {
		reader = bytes.NewReader(body)
	}
	req, err := http.NewRequestWithContext(ctx, method, target, reader)
	if err != nil {
		return fmt.Errorf("build remote request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return errors.RemotePush(err, "remote store unreachable")
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusNotFound && method == http.MethodGet:
		return errors.New(errors.CodeNotFound, "remote tree not found")
	case resp.StatusCode >= 500:
		return errors.RemotePush(fmt.Errorf("status %d: %s", resp.StatusCode, readSnippet(resp.Body)), "remote store error")
	case resp.StatusCode < 200 || resp.StatusCode > 299:
		return errors.RemotePush(fmt.Errorf("status %d: %s", resp.StatusCode, readSnippet(resp.Body)), "remote store rejected the request")
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return errors.RemotePush(err, "decode remote response")
	}
	return nil
}

func readSnippet(r io.Reader) string {
	b, _ := io.ReadAll(io.LimitReader(r, 512))
	return strings.TrimSpace(string(b))
}
