package fetch

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"net/http/cookiejar"
	"net/url"
	"time"

	"github.com/go-resty/resty/v2"

	"github.com/nao1215/ballotharvest/internal/model"
)

// Client fetches pages over HTTP.
// Cookies persist across requests of the same Client, which gives the
// postback walker the session affinity the server expects.
type Client struct {
	http *resty.Client

	// retries is the number of extra attempts after the first one.
	retries int

	logger *slog.Logger
}

// Option configures a Client.
type Option func(*options)

type options struct {
	timeout      time.Duration
	retries      int
	retryWait    time.Duration
	retryMaxWait time.Duration
	userAgent    string
	maxBodySize  int64
	logger       *slog.Logger
	transport    http.RoundTripper
}

// WithTimeout sets the per-request timeout.
func WithTimeout(d time.Duration) Option {
	return func(o *options) {
		o.timeout = d
	}
}

// WithRetries sets how many times a failed request is retried.
// Only network errors, 429 and 5xx responses are retried.
func WithRetries(n int) Option {
	return func(o *options) {
		if n >= 0 {
			o.retries = n
		}
	}
}

// WithRetryWait sets the bounds of the exponential backoff between retries.
func WithRetryWait(wait, maxWait time.Duration) Option {
	return func(o *options) {
		o.retryWait = wait
		o.retryMaxWait = maxWait
	}
}

// WithUserAgent sets the User-Agent header.
func WithUserAgent(ua string) Option {
	return func(o *options) {
		o.userAgent = ua
	}
}

// WithMaxBodySize sets the maximum response body size. A larger body
// fails the request with ErrBodyTooLarge.
func WithMaxBodySize(size int64) Option {
	return func(o *options) {
		if size > 0 {
			o.maxBodySize = size
		}
	}
}

// WithLogger sets the logger used for request tracing.
func WithLogger(logger *slog.Logger) Option {
	return func(o *options) {
		o.logger = logger
	}
}

// WithTransport replaces the underlying round tripper.
func WithTransport(rt http.RoundTripper) Option {
	return func(o *options) {
		o.transport = rt
	}
}

// Default transport settings.
const (
	DefaultTimeout      = 60 * time.Second
	DefaultRetries      = 3
	DefaultRetryWait    = 1 * time.Second
	DefaultRetryMaxWait = 30 * time.Second
	DefaultMaxBodySize  = 10 * 1024 * 1024 // 10MB
	DefaultUserAgent    = "ballotharvest/1.0 (+https://github.com/nao1215/ballotharvest)"
)

// NewClient creates a Client with its own cookie session.
func NewClient(opts ...Option) (*Client, error) {
	o := &options{
		timeout:      DefaultTimeout,
		retries:      DefaultRetries,
		retryWait:    DefaultRetryWait,
		retryMaxWait: DefaultRetryMaxWait,
		userAgent:    DefaultUserAgent,
		maxBodySize:  DefaultMaxBodySize,
	}
	for _, opt := range opts {
		opt(o)
	}
	if o.logger == nil {
		o.logger = slog.Default()
	}

	jar, err := cookiejar.New(nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create cookie jar: %w", err)
	}

	rc := resty.New()
	if o.transport != nil {
		rc.SetTransport(o.transport)
	}
	rc.SetCookieJar(jar)
	rc.SetTimeout(o.timeout)
	rc.SetHeader("User-Agent", o.userAgent)
	rc.SetHeader("Accept", "text/html,application/xhtml+xml,application/xml;q=0.9,*/*;q=0.8")
	rc.SetResponseBodyLimit(int(o.maxBodySize))
	rc.SetRetryCount(o.retries)
	rc.SetRetryWaitTime(o.retryWait)
	rc.SetRetryMaxWaitTime(o.retryMaxWait)
	rc.AddRetryCondition(shouldRetry)
	rc.SetLogger(restyLogger{logger: o.logger})

	return &Client{
		http:    rc,
		retries: o.retries,
		logger:  o.logger,
	}, nil
}

// shouldRetry retries network errors, throttling and server errors.
// An oversized body is not retried.
func shouldRetry(res *resty.Response, err error) bool {
	if err != nil {
		return !errors.Is(err, context.Canceled) &&
			!errors.Is(err, context.DeadlineExceeded) &&
			!errors.Is(err, resty.ErrResponseBodyTooLarge)
	}
	if res == nil {
		return true
	}
	code := res.StatusCode()
	return code == http.StatusTooManyRequests || code >= http.StatusInternalServerError
}

// Get fetches url with a GET request.
func (c *Client) Get(ctx context.Context, pageURL string) (*model.Page, error) {
	c.logger.Debug("GET", "url", pageURL)
	res, err := c.http.R().SetContext(ctx).Get(pageURL)
	return c.toPage(http.MethodGet, pageURL, res, err)
}

// PostForm submits form as an application/x-www-form-urlencoded POST to url.
func (c *Client) PostForm(ctx context.Context, pageURL string, form url.Values) (*model.Page, error) {
	c.logger.Debug("POST", "url", pageURL, "form", form)
	res, err := c.http.R().SetContext(ctx).SetFormDataFromValues(form).Post(pageURL)
	return c.toPage(http.MethodPost, pageURL, res, err)
}

// GetJSON issues a GET request with query parameters and decodes the JSON
// response body into out.
func (c *Client) GetJSON(ctx context.Context, endpoint string, query url.Values, out any) error {
	c.logger.Debug("GET", "url", endpoint, "params", len(query))
	res, err := c.http.R().
		SetContext(ctx).
		SetQueryParamsFromValues(query).
		SetHeader("Accept", "application/json").
		Get(endpoint)
	page, err := c.toPage(http.MethodGet, endpoint, res, err)
	if err != nil {
		return err
	}
	if err := json.Unmarshal(page.Raw, out); err != nil {
		return fmt.Errorf("%w: %s: %w", ErrDecode, endpoint, err)
	}
	return nil
}

// toPage converts a resty response into a Page or a TransportError.
func (c *Client) toPage(method, pageURL string, res *resty.Response, err error) (*model.Page, error) {
	attempts := c.retries + 1
	if res != nil && res.Request != nil {
		attempts = res.Request.Attempt
	}

	if err != nil {
		if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
			return nil, err
		}
		if errors.Is(err, resty.ErrResponseBodyTooLarge) {
			err = ErrBodyTooLarge
		}
		return nil, &TransportError{URL: pageURL, Method: method, Attempts: attempts, Err: err}
	}

	if res.IsError() || res.StatusCode() < http.StatusOK || res.StatusCode() >= http.StatusMultipleChoices {
		return nil, &TransportError{
			URL:        pageURL,
			Method:     method,
			StatusCode: res.StatusCode(),
			Attempts:   attempts,
			Err:        ErrStatus,
		}
	}

	finalURL := pageURL
	if raw := res.RawResponse; raw != nil && raw.Request != nil && raw.Request.URL != nil {
		finalURL = raw.Request.URL.String()
	}

	return model.NewPage(finalURL, res.StatusCode(), res.Header(), res.Body()), nil
}

// restyLogger routes resty's internal messages (retry notices) to slog.
type restyLogger struct {
	logger *slog.Logger
}

func (l restyLogger) Errorf(format string, v ...interface{}) {
	l.logger.Warn(fmt.Sprintf(format, v...))
}

func (l restyLogger) Warnf(format string, v ...interface{}) {
	l.logger.Warn(fmt.Sprintf(format, v...))
}

func (l restyLogger) Debugf(format string, v ...interface{}) {
	l.logger.Debug(fmt.Sprintf(format, v...))
}
