package trackersdk

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"net/http"
	"strings"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/google/uuid"
)

const (
	DefaultRetryCount    = 5
	DefaultRetryInterval = 10 * time.Second
	DefaultTimeout       = 30 * time.Second
)

// Options configures a Client. Zero durations fall back to DefaultTimeout.
type Options struct {
	// BaseURL is the API root, e.g. https://example.testrail.io/index.php?/api/v2
	BaseURL  string
	Username string
	// Password is the account password or API key.
	Password string

	// RetryCount is the maximum number of attempts per request while the
	// service answers 429. Values below 1 mean a single attempt.
	RetryCount    int
	RetryInterval time.Duration

	ConnectTimeout           time.Duration
	ConnectionRequestTimeout time.Duration
	SocketTimeout            time.Duration

	// HTTPClient overrides the client built from the timeouts above.
	HTTPClient *http.Client
	Logger     *slog.Logger
	Metrics    *Metrics
	// OnRetry is called before each sleep between rate-limited attempts.
	OnRetry func(attempt int, wait time.Duration)
}

// Client is the transport to the test-management API. It holds configuration
// only; every call is independent.
type Client struct {
	opts   Options
	base   string
	http   *http.Client
	logger *slog.Logger
}

var errTooManyRequests = errors.New("too many requests")

// New creates a client with sane defaults.
func New(opts Options) *Client {
	if opts.RetryInterval < 0 {
		opts.RetryInterval = 0
	}
	if opts.ConnectTimeout == 0 {
		opts.ConnectTimeout = DefaultTimeout
	}
	if opts.ConnectionRequestTimeout == 0 {
		opts.ConnectionRequestTimeout = DefaultTimeout
	}
	if opts.SocketTimeout == 0 {
		opts.SocketTimeout = DefaultTimeout
	}
	httpClient := opts.HTTPClient
	if httpClient == nil {
		httpClient = newHTTPClient(opts)
	}
	logger := opts.Logger
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &Client{
		opts:   opts,
		base:   strings.TrimRight(opts.BaseURL, "/"),
		http:   httpClient,
		logger: logger,
	}
}

func newHTTPClient(opts Options) *http.Client {
	dialer := &net.Dialer{Timeout: opts.ConnectTimeout, KeepAlive: 30 * time.Second}
	transport := http.DefaultTransport.(*http.Transport).Clone()
	transport.DialContext = dialer.DialContext
	transport.ResponseHeaderTimeout = opts.SocketTimeout
	return &http.Client{Timeout: opts.ConnectionRequestTimeout, Transport: transport}
}

// Metrics returns the metrics sink the client was built with.
func (c *Client) Metrics() *Metrics { return c.opts.Metrics }

// Logger returns the client's logger.
func (c *Client) Logger() *slog.Logger { return c.logger }

// Get issues a read and decodes the JSON response into out.
func (c *Client) Get(ctx context.Context, endpoint string, out any) (int, error) {
	return c.do(ctx, http.MethodGet, endpoint, nil, out)
}

// Post issues a write with a JSON body. out may be nil.
func (c *Client) Post(ctx context.Context, endpoint string, body, out any) (int, error) {
	return c.do(ctx, http.MethodPost, endpoint, body, out)
}

func (c *Client) do(ctx context.Context, method, endpoint string, body, out any) (int, error) {
	var payload []byte
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return 0, fmt.Errorf("encode %s body: %w", EndpointName(endpoint), err)
		}
		payload = data
	}
	target := c.url(endpoint)
	name := EndpointName(endpoint)

	var (
		attempts int
		status   int
	)
	operation := func() error {
		attempts++
		code, statusLine, data, err := c.send(ctx, method, target, name, payload)
		status = code
		if err != nil {
			return backoff.Permanent(err)
		}
		if code == http.StatusTooManyRequests {
			c.opts.Metrics.RecordRateLimited(name)
			return errTooManyRequests
		}
		if code >= 300 {
			return backoff.Permanent(&APIError{
				Method:     method,
				Endpoint:   name,
				StatusCode: code,
				Status:     statusLine,
				Body:       string(data),
			})
		}
		if out == nil {
			return nil
		}
		if err := decode(data, out); err != nil {
			return backoff.Permanent(fmt.Errorf("%s %s: %w", method, name, err))
		}
		return nil
	}
	notify := func(_ error, wait time.Duration) {
		c.logger.Warn("rate limited, retrying", "method", method, "endpoint", name, "attempt", attempts, "wait", wait)
		if c.opts.OnRetry != nil {
			c.opts.OnRetry(attempts, wait)
		}
	}

	err := backoff.RetryNotify(operation, c.retryPolicy(ctx), notify)
	if errors.Is(err, errTooManyRequests) {
		return status, fmt.Errorf("%s %s: %w after %d attempts", method, name, ErrRateLimited, attempts)
	}
	return status, err
}

func (c *Client) retryPolicy(ctx context.Context) backoff.BackOff {
	// WithMaxRetries treats 0 as unlimited, so a single attempt needs StopBackOff.
	if c.opts.RetryCount <= 1 {
		return backoff.WithContext(&backoff.StopBackOff{}, ctx)
	}
	policy := backoff.WithMaxRetries(backoff.NewConstantBackOff(c.opts.RetryInterval), uint64(c.opts.RetryCount-1))
	return backoff.WithContext(policy, ctx)
}

// send performs one attempt and returns the status code, the status line as
// the server wrote it, and the body.
func (c *Client) send(ctx context.Context, method, target, name string, payload []byte) (int, string, []byte, error) {
	var reader io.Reader = http.NoBody
	if payload != nil {
		reader = bytes.NewReader(payload)
	}
	req, err := http.NewRequestWithContext(ctx, method, target, reader)
	if err != nil {
		return 0, "", nil, fmt.Errorf("creating request: %w", err)
	}
	requestID := uuid.NewString()
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-Request-Id", requestID)
	if c.opts.Username != "" {
		req.SetBasicAuth(c.opts.Username, c.opts.Password)
	}

	start := time.Now()
	resp, err := c.http.Do(req)
	duration := time.Since(start)
	if err != nil {
		c.logger.Error("http request failed", "method", method, "endpoint", name, "duration", duration, "request_id", requestID, "error", err)
		return 0, "", nil, fmt.Errorf("%s %s: http request failed: %w", method, name, err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return resp.StatusCode, resp.Status, nil, fmt.Errorf("%s %s: reading response body: %w", method, name, err)
	}
	c.opts.Metrics.RecordRequest(method, name, resp.StatusCode)
	c.logger.Debug("api call", "method", method, "endpoint", name, "status", resp.StatusCode, "duration", duration, "request_id", requestID)
	return resp.StatusCode, resp.Status, data, nil
}

// url joins the base and endpoint. Bases of the form index.php?/api/v2 already
// carry a '?', so the endpoint's own query must continue with '&'.
func (c *Client) url(endpoint string) string {
	endpoint = strings.TrimLeft(endpoint, "/")
	if strings.Contains(c.base, "?") {
		endpoint = strings.Replace(endpoint, "?", "&", 1)
	} else if !strings.Contains(endpoint, "?") {
		endpoint = strings.Replace(endpoint, "&", "?", 1)
	}
	return c.base + "/" + endpoint
}

func decode(data []byte, out any) error {
	trimmed := bytes.TrimSpace(data)
	if len(trimmed) == 0 || bytes.Equal(trimmed, []byte("null")) {
		return ErrNullResponse
	}
	if err := json.Unmarshal(trimmed, out); err != nil {
		return fmt.Errorf("%w: %v", ErrSerialization, err)
	}
	return nil
}
