package fetch

import (
	"context"
	"net/http"
	"time"

	"github.com/avast/retry-go/v4"
	"github.com/go-resty/resty/v2"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/user/boxd-office/internal/monitoring"
)

const (
	defaultTimeout   = 15 * time.Second
	defaultBaseDelay = 500 * time.Millisecond
	maxBackoff       = 30 * time.Second
)

// Options configures the transport shared by every scraper component.
type Options struct {
	Timeout time.Duration
	// MaxRetries is the number of retries after the first attempt.
	MaxRetries int
	BaseDelay  time.Duration
	MaxJitter  time.Duration
	// RequestsPerSecond caps the request rate across all callers; 0 disables it.
	RequestsPerSecond float64
	UserAgents        []string
}

// DefaultOptions mirrors the configuration defaults.
func DefaultOptions() Options {
	return Options{
		Timeout:    defaultTimeout,
		MaxRetries: 2,
		BaseDelay:  defaultBaseDelay,
		MaxJitter:  250 * time.Millisecond,
	}
}

// Response is a fully read HTTP response.
type Response struct {
	URL        string
	StatusCode int
	Body       []byte
}

// OK reports a 2xx status.
func (r *Response) OK() bool {
	return r.StatusCode >= 200 && r.StatusCode < 300
}

type Option func(*Client)

func WithLogger(l *zap.Logger) Option {
	return func(c *Client) {
		if l != nil {
			c.logger = l
		}
	}
}

func WithMetrics(m *monitoring.Metrics) Option {
	return func(c *Client) { c.metrics = m }
}

// Client is safe for concurrent use. One instance is created at startup and
// shared by the crawler and the detail fetcher so connections are reused.
type Client struct {
	http    *resty.Client
	limiter *rate.Limiter
	opts    Options
	logger  *zap.Logger
	metrics *monitoring.Metrics
}

func New(opts Options, options ...Option) *Client {
	if opts.Timeout <= 0 {
		opts.Timeout = defaultTimeout
	}
	if opts.MaxRetries < 0 {
		opts.MaxRetries = 0
	}
	if opts.BaseDelay < 0 {
		opts.BaseDelay = 0
	}
	if opts.MaxJitter < 0 {
		opts.MaxJitter = 0
	}

	c := &Client{opts: opts, logger: zap.NewNop()}
	for _, o := range options {
		o(c)
	}

	base := &http.Transport{
		Proxy:                 http.ProxyFromEnvironment,
		MaxIdleConns:          100,
		MaxIdleConnsPerHost:   32,
		IdleConnTimeout:       90 * time.Second,
		TLSHandshakeTimeout:   10 * time.Second,
		ResponseHeaderTimeout: opts.Timeout,
	}
	c.http = resty.New().
		SetTransport(base).
		SetTimeout(opts.Timeout).
		SetHeaders(defaultHeaders(pickUserAgent(opts.UserAgents))).
		SetLogger(c.logger.Sugar())

	if opts.RequestsPerSecond > 0 {
		burst := int(opts.RequestsPerSecond)
		if burst < 1 {
			burst = 1
		}
		c.limiter = rate.NewLimiter(rate.Limit(opts.RequestsPerSecond), burst)
	}
	return c
}

// Get issues a GET with the retry policy applied. Transient failures
// (network errors, 403, 429, 502, 503, 504) are retried with exponential
// backoff plus jitter; other statuses are returned to the caller as-is.
// Exhausting the budget yields a *TransportError.
func (c *Client) Get(ctx context.Context, url string) (*Response, error) {
	var (
		resp     *Response
		attempts int
		lastCode int
	)
	err := retry.Do(
		func() error {
			attempts++
			if c.limiter != nil {
				if err := c.limiter.Wait(ctx); err != nil {
					return retry.Unrecoverable(err)
				}
			}
			r, err := c.http.R().SetContext(ctx).Get(url)
			if err != nil {
				c.metrics.IncRemoteRequest("transport_error")
				return err
			}
			lastCode = r.StatusCode()
			if isRetryableStatus(r.StatusCode()) {
				c.metrics.IncRemoteRequest("status")
				return &HTTPStatusError{URL: url, StatusCode: r.StatusCode()}
			}
			c.metrics.IncRemoteRequest("ok")
			resp = &Response{URL: url, StatusCode: r.StatusCode(), Body: r.Body()}
			return nil
		},
		c.retryOptions(ctx, url)...,
	)
	if err != nil {
		return nil, &TransportError{URL: url, StatusCode: lastCode, Attempts: attempts, Err: err}
	}
	return resp, nil
}

// Fetch is Get for callers that only accept a 2xx body.
func (c *Client) Fetch(ctx context.Context, url string) ([]byte, error) {
	resp, err := c.Get(ctx, url)
	if err != nil {
		return nil, err
	}
	if !resp.OK() {
		return nil, &HTTPStatusError{URL: url, StatusCode: resp.StatusCode}
	}
	return resp.Body, nil
}

func (c *Client) retryOptions(ctx context.Context, url string) []retry.Option {
	delays := []retry.DelayTypeFunc{retry.BackOffDelay}
	if c.opts.MaxJitter > 0 {
		delays = append(delays, retry.RandomDelay)
	}
	return []retry.Option{
		retry.Context(ctx),
		retry.Attempts(uint(c.opts.MaxRetries + 1)),
		retry.Delay(c.opts.BaseDelay),
		retry.MaxDelay(maxBackoff),
		retry.MaxJitter(c.opts.MaxJitter),
		retry.DelayType(retry.CombineDelay(delays...)),
		retry.LastErrorOnly(true),
		retry.RetryIf(func(err error) bool {
			return ctx.Err() == nil && isTransient(err)
		}),
		retry.OnRetry(func(n uint, err error) {
			c.metrics.IncRetry()
			c.logger.Debug("retrying request",
				zap.String("url", url),
				zap.Uint("attempt", n+1),
				zap.Error(err),
			)
		}),
	}
}
