// Package engine talks to the remote layout-analysis service that backs
// the AI-primary converter.
//
// The client POSTs document bytes to the service and receives a
// structured document tree. It retries transient failures with
// exponential backoff and carries a circuit breaker so a dead backend
// fails fast into the fallback chain instead of stalling every worker.
package engine

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"sync"
	"time"

	"github.com/hazyhaar/echoflow/docconv"
)

// maxResponseBody caps the response data read from the engine to
// prevent memory exhaustion (64 MiB; trees with embedded images are
// large).
const maxResponseBody int64 = 64 << 20

// maxUploadSize caps the document payload sent to the engine (100 MiB,
// matching the sniffer's default file-size ceiling).
const maxUploadSize int64 = 100 << 20

// Config configures a Client.
type Config struct {
	// BaseURL of the inference service, e.g. "http://localhost:9090".
	BaseURL string

	// RequestTimeout bounds one inference call. Default 2 minutes.
	RequestTimeout time.Duration

	// MaxRetries is the number of retry attempts after the first call
	// fails with a transient error. Default 2.
	MaxRetries int

	// Backoff is the initial wait between retries, doubled each attempt.
	// Default 500ms.
	Backoff time.Duration

	// BreakerThreshold is the consecutive-failure count that trips the
	// breaker open. Default 5.
	BreakerThreshold int

	// BreakerReset is how long the breaker stays open before allowing a
	// probe. Default 30s.
	BreakerReset time.Duration

	// HealthTTL caches Healthy results for this long. Default 15s.
	HealthTTL time.Duration

	Logger *slog.Logger
}

func (c *Config) defaults() {
	if c.RequestTimeout <= 0 {
		c.RequestTimeout = 2 * time.Minute
	}
	if c.MaxRetries < 0 {
		c.MaxRetries = 0
	} else if c.MaxRetries == 0 {
		c.MaxRetries = 2
	}
	if c.Backoff <= 0 {
		c.Backoff = 500 * time.Millisecond
	}
	if c.HealthTTL <= 0 {
		c.HealthTTL = 15 * time.Second
	}
	if c.Logger == nil {
		c.Logger = slog.Default()
	}
}

// Client is a docconv.Engine backed by a remote HTTP service. One
// long-lived Client is shared by all workers; it is safe for concurrent
// use.
type Client struct {
	cfg     Config
	httpc   *http.Client
	breaker *breaker

	healthMu      sync.Mutex
	healthChecked time.Time
	healthOK      bool
}

// New creates a Client. It does not contact the service; the first
// Infer or Healthy call does.
func New(cfg Config) (*Client, error) {
	if cfg.BaseURL == "" {
		return nil, fmt.Errorf("engine: BaseURL is required")
	}
	cfg.defaults()
	return &Client{
		cfg:     cfg,
		httpc:   &http.Client{Timeout: cfg.RequestTimeout},
		breaker: newBreaker(cfg.BreakerThreshold, cfg.BreakerReset),
	}, nil
}

// inferRequest is the wire request. Data is base64 in JSON.
type inferRequest struct {
	Filename string `json:"filename"`
	Format   string `json:"format"`
	Data     []byte `json:"data"`
}

// Infer uploads the document and returns the engine's structured tree.
// Transport failures, 5xx responses, and an open breaker all wrap
// docconv.ErrEngineUnavailable so the orchestrator falls back.
func (c *Client) Infer(ctx context.Context, doc docconv.Document) (*docconv.DocTree, error) {
	if !c.breaker.allow() {
		return nil, fmt.Errorf("engine: circuit open: %w", docconv.ErrEngineUnavailable)
	}

	data, err := os.ReadFile(doc.Path)
	if err != nil {
		return nil, fmt.Errorf("engine: read document: %w", err)
	}
	if int64(len(data)) > maxUploadSize {
		return nil, fmt.Errorf("engine: document exceeds %d bytes: %w", maxUploadSize, docconv.ErrUnsupportedFormat)
	}

	body, err := json.Marshal(inferRequest{
		Filename: doc.Path,
		Format:   string(doc.Format),
		Data:     data,
	})
	if err != nil {
		return nil, fmt.Errorf("engine: marshal request: %w", err)
	}

	var lastErr error
	var lastRetryable bool
	for attempt := 0; attempt <= c.cfg.MaxRetries; attempt++ {
		tree, retryable, err := c.call(ctx, body)
		if err == nil {
			c.breaker.recordSuccess()
			return tree, nil
		}
		lastErr = err
		lastRetryable = retryable

		if !retryable || ctx.Err() != nil {
			break
		}
		if attempt < c.cfg.MaxRetries {
			wait := c.cfg.Backoff * (1 << uint(attempt))
			c.cfg.Logger.WarnContext(ctx, "retrying engine call",
				"attempt", attempt+1,
				"max_retries", c.cfg.MaxRetries,
				"backoff_ms", wait.Milliseconds(),
				"error", err)
			select {
			case <-ctx.Done():
				return nil, fmt.Errorf("engine: %w", ctx.Err())
			case <-time.After(wait):
			}
		}
	}

	if ctx.Err() != nil {
		return nil, fmt.Errorf("engine: %w", ctx.Err())
	}
	// Only transport-level failures count toward the breaker: a 4xx
	// rejection proves the backend is alive, and a run of bad documents
	// must not block inference for good ones.
	if lastRetryable {
		c.breaker.recordFailure()
	}
	return nil, lastErr
}

// call performs one inference round trip. The second return reports
// whether a failure is worth retrying.
func (c *Client) call(ctx context.Context, body []byte) (*docconv.DocTree, bool, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.cfg.BaseURL+"/v1/infer", bytes.NewReader(body))
	if err != nil {
		return nil, false, fmt.Errorf("engine: create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpc.Do(req)
	if err != nil {
		return nil, true, fmt.Errorf("engine: %v: %w", err, docconv.ErrEngineUnavailable)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBody))
	if err != nil {
		return nil, true, fmt.Errorf("engine: read response: %v: %w", err, docconv.ErrEngineUnavailable)
	}

	switch {
	case resp.StatusCode >= 200 && resp.StatusCode < 300:
		var tree docconv.DocTree
		if err := json.Unmarshal(respBody, &tree); err != nil {
			return nil, false, fmt.Errorf("engine: decode tree: %w", err)
		}
		return &tree, false, nil
	case resp.StatusCode >= 500 || resp.StatusCode == http.StatusTooManyRequests:
		return nil, true, fmt.Errorf("engine: status %d: %s: %w", resp.StatusCode, truncate(respBody, 256), docconv.ErrEngineUnavailable)
	default:
		// 4xx means the engine rejected this document; retrying the same
		// payload cannot succeed.
		return nil, false, fmt.Errorf("engine: status %d: %s", resp.StatusCode, truncate(respBody, 256))
	}
}

// Healthy probes GET /healthz, caching the verdict for HealthTTL so the
// status tool does not hammer the service.
func (c *Client) Healthy(ctx context.Context) bool {
	c.healthMu.Lock()
	defer c.healthMu.Unlock()

	if time.Since(c.healthChecked) < c.cfg.HealthTTL {
		return c.healthOK
	}

	c.healthChecked = time.Now()
	c.healthOK = c.probe(ctx)
	return c.healthOK
}

func (c *Client) probe(ctx context.Context) bool {
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.cfg.BaseURL+"/healthz", nil)
	if err != nil {
		return false
	}
	resp, err := c.httpc.Do(req)
	if err != nil {
		return false
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 4096))
	return resp.StatusCode == http.StatusOK
}

// Close releases idle connections.
func (c *Client) Close() {
	c.httpc.CloseIdleConnections()
}

func truncate(b []byte, n int) string {
	if len(b) <= n {
		return string(b)
	}
	return string(b[:n]) + "..."
}
