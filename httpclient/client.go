package httpclient

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/kbukum/flowkit/logger"
	"github.com/kbukum/flowkit/resilience"
)

// Response is a completed request.
type Response struct {
	StatusCode int
	Header     http.Header
	Body       []byte
}

// Client sends requests with the configured headers, TLS and retry policy.
type Client struct {
	cfg    Config
	log    *logger.Logger
	http   *http.Client
	stream *http.Client
}

// New creates a client. Unset fields get their defaults.
func New(cfg Config, log *logger.Logger) (*Client, error) {
	cfg.ApplyDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("http config: %w", err)
	}
	if log == nil {
		log = logger.Get("http")
	}

	transport := http.DefaultTransport.(*http.Transport).Clone()
	tc, err := cfg.TLS.Build()
	if err != nil {
		return nil, err
	}
	if tc != nil {
		transport.TLSClientConfig = tc
	}

	return &Client{
		cfg:    cfg,
		log:    log,
		http:   &http.Client{Transport: transport, Timeout: cfg.Timeout},
		stream: &http.Client{Transport: transport},
	}, nil
}

// Send issues one request, retrying timeouts, connection failures, 429 and
// 5xx per the retry config. A non-2xx final answer is an *Error holding the
// response body.
func (c *Client) Send(ctx context.Context, method, url string, body []byte) (*Response, error) {
	retry := c.cfg.Retry
	retry.RetryIf = func(err error) bool { return ctx.Err() == nil && IsRetryable(err) }
	retry.OnRetry = func(attempt int, err error, backoff time.Duration) {
		c.log.Warn("request failed, retrying", logger.MergeWithError(logger.Fields(
			"url", url, "attempt", attempt, "backoff", backoff.String()), err))
	}
	return resilience.Retry(ctx, retry, func() (*Response, error) {
		return c.do(ctx, method, url, body)
	})
}

func (c *Client) do(ctx context.Context, method, url string, body []byte) (*Response, error) {
	req, err := c.request(ctx, method, url, body)
	if err != nil {
		return nil, err
	}
	resp, err := c.http.Do(req)
	if err != nil {
		return nil, transportError(err, ctx.Err() != nil || isTimeout(err))
	}
	defer func() { _ = resp.Body.Close() }()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, transportError(fmt.Errorf("read body: %w", err), false)
	}
	out := &Response{StatusCode: resp.StatusCode, Header: resp.Header, Body: data}
	if e := ClassifyStatus(resp.StatusCode, data); e != nil {
		return out, e
	}
	return out, nil
}

// Events opens an event stream. It is not retried and lives until ctx is
// done or the stream is closed.
func (c *Client) Events(ctx context.Context, url string) (*EventReader, error) {
	req, err := c.request(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Accept", "text/event-stream")
	resp, err := c.stream.Do(req)
	if err != nil {
		return nil, transportError(err, ctx.Err() != nil)
	}
	if e := ClassifyStatus(resp.StatusCode, nil); e != nil {
		_ = resp.Body.Close()
		return nil, e
	}
	return NewEventReader(resp.Body), nil
}

func (c *Client) request(ctx context.Context, method, url string, body []byte) (*http.Request, error) {
	var r io.Reader
	if body != nil {
		r = bytes.NewReader(body)
	}
	req, err := http.NewRequestWithContext(ctx, method, url, r)
	if err != nil {
		return nil, &Error{Code: ErrCodeRejected, Err: err}
	}
	for k, v := range c.cfg.Headers {
		req.Header.Set(k, v)
	}
	if body != nil && req.Header.Get("Content-Type") == "" {
		req.Header.Set("Content-Type", "application/json")
	}
	return req, nil
}

func isTimeout(err error) bool {
	t, ok := err.(interface{ Timeout() bool })
	return ok && t.Timeout()
}
