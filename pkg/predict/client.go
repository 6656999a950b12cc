// Package predict implements the client side of the room classification
// protocol: one JPEG is posted as multipart/form-data and the service
// answers with a JSON object holding a prediction label and a quote.
//
// Every failure is reported as a typed error (see the Err* sentinels), so a
// caller can tell a misconfigured endpoint from a network problem from a
// server that broke its contract. The client never retries on its own.
package predict

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/menta2k/tidyormessy/pkg/types"
)

// DefaultEndpoint is the public prediction service
const DefaultEndpoint = "https://tidyormessy.com/predict"

const (
	DefaultTimeout          = 30 * time.Second
	DefaultMaxResponseBytes = 1 << 20
	defaultUserAgent        = "tidyormessy-go/1.0"
	errorExcerptBytes       = 512
)

// Doer is the part of *http.Client the classifier needs.
type Doer interface {
	Do(req *http.Request) (*http.Response, error)
}

// Client performs classification round-trips against a single endpoint.
// It is safe for concurrent use.
type Client struct {
	endpoint         string
	httpClient       Doer
	timeout          time.Duration
	maxResponseBytes int64
	userAgent        string
	logger           *zap.Logger
}

// Option configures a Client
type Option func(*Client)

// WithHTTPClient replaces the default HTTP client
func WithHTTPClient(d Doer) Option {
	return func(c *Client) {
		if d != nil {
			c.httpClient = d
		}
	}
}

// WithTimeout bounds each call whose context carries no deadline
func WithTimeout(d time.Duration) Option {
	return func(c *Client) {
		if d > 0 {
			c.timeout = d
		}
	}
}

// WithLogger sets the logger used for per-request debug output
func WithLogger(l *zap.Logger) Option {
	return func(c *Client) {
		if l != nil {
			c.logger = l
		}
	}
}

// WithUserAgent sets the User-Agent header
func WithUserAgent(ua string) Option {
	return func(c *Client) {
		if ua != "" {
			c.userAgent = ua
		}
	}
}

// WithMaxResponseBytes caps how much of a reply body is read
func WithMaxResponseBytes(n int64) Option {
	return func(c *Client) {
		if n > 0 {
			c.maxResponseBytes = n
		}
	}
}

// NewClient creates a client for endpoint. The endpoint is checked on every
// call rather than here, so a bad value surfaces as ErrInvalidEndpoint from
// Classify.
func NewClient(endpoint string, opts ...Option) *Client {
	c := &Client{
		endpoint:         strings.TrimSpace(endpoint),
		httpClient:       &http.Client{},
		timeout:          DefaultTimeout,
		maxResponseBytes: DefaultMaxResponseBytes,
		userAgent:        defaultUserAgent,
		logger:           zap.NewNop(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Endpoint returns the configured endpoint
func (c *Client) Endpoint() string {
	return c.endpoint
}

// Classify uploads image and decodes the service reply.
func (c *Client) Classify(ctx context.Context, image []byte) (*types.ClassificationResult, error) {
	target, err := ValidateEndpoint(c.endpoint)
	if err != nil {
		return nil, err
	}
	if len(image) == 0 {
		return nil, fmt.Errorf("%w: empty image payload", ErrEncodingFailure)
	}
	if err := ctx.Err(); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrCancelled, err)
	}

	// Add timeout if context doesn't have one
	if _, hasDeadline := ctx.Deadline(); !hasDeadline {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.timeout)
		defer cancel()
	}

	boundary := NewBoundary()
	body, contentType, err := EncodeImageForm(image, boundary)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrEncodingFailure, err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, target.String(), body)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidEndpoint, err)
	}
	req.Header.Set("Content-Type", contentType)
	req.Header.Set("Accept", "application/json")
	req.Header.Set("User-Agent", c.userAgent)

	start := time.Now()
	resp, err := c.httpClient.Do(req)
	if err != nil {
		c.logger.Debug("prediction request failed",
			zap.String("endpoint", target.Redacted()),
			zap.Duration("elapsed", time.Since(start)),
			zap.Error(err))
		return nil, transportError(ctx, err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(io.LimitReader(resp.Body, c.maxResponseBytes+1))
	if err != nil {
		return nil, transportError(ctx, fmt.Errorf("failed to read response: %w", err))
	}
	if int64(len(respBody)) > c.maxResponseBytes {
		return nil, &NetworkError{Err: fmt.Errorf("response exceeds %d bytes", c.maxResponseBytes)}
	}

	c.logger.Debug("prediction response",
		zap.String("endpoint", target.Redacted()),
		zap.Int("status", resp.StatusCode),
		zap.Int("bytes", len(respBody)),
		zap.Duration("elapsed", time.Since(start)))

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, &NetworkError{
			StatusCode: resp.StatusCode,
			Detail:     excerpt(respBody),
		}
	}

	return ParseResult(respBody)
}

// ValidateEndpoint checks that raw is an absolute http(s) URL with a host.
func ValidateEndpoint(raw string) (*url.URL, error) {
	if raw == "" {
		return nil, fmt.Errorf("%w: endpoint is not configured", ErrInvalidEndpoint)
	}
	u, err := url.Parse(raw)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidEndpoint, err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return nil, fmt.Errorf("%w: unsupported scheme %q", ErrInvalidEndpoint, u.Scheme)
	}
	if u.Host == "" {
		return nil, fmt.Errorf("%w: missing host in %q", ErrInvalidEndpoint, raw)
	}
	return u, nil
}

func excerpt(b []byte) string {
	s := strings.TrimSpace(string(b))
	if len(s) > errorExcerptBytes {
		s = s[:errorExcerptBytes] + "..."
	}
	return s
}
