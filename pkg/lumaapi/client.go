// Package lumaapi provides a typed Luma public API client.
package lumaapi

import (
	"bytes"
	"context"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/go-faster/errors"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

const (
	// DefaultBaseURL serves event and guest lookups.
	DefaultBaseURL = "https://api.lu.ma/public/v1"
	// DefaultCalendarBaseURL serves calendar listings and event updates.
	DefaultCalendarBaseURL = "https://public-api.lu.ma/public/v1"

	// APIKeyHeader carries the API key on every request.
	APIKeyHeader = "x-luma-api-key"

	// MaxPageSize is the largest pagination_limit the API accepts.
	MaxPageSize = 100
	// DefaultMaxPages bounds pagination aggregation.
	DefaultMaxPages = 1000

	defaultTimeout = 30 * time.Second
	tracerName     = "github.com/Trust-Square/luma-mcp-server/pkg/lumaapi"
)

// Client is a Luma API client bound to one API key.
type Client struct {
	apiKey      string
	baseURL     string
	calendarURL string
	httpClient  *http.Client
	maxPages    int
	limiter     *RateLimiter
	tracer      trace.Tracer
}

// Option configures a Client.
type Option func(*Client)

// WithBaseURL overrides the event/guest API base URL.
func WithBaseURL(u string) Option {
	return func(c *Client) { c.baseURL = strings.TrimRight(u, "/") }
}

// WithCalendarBaseURL overrides the calendar/update API base URL.
func WithCalendarBaseURL(u string) Option {
	return func(c *Client) { c.calendarURL = strings.TrimRight(u, "/") }
}

// WithHTTPClient sets the underlying HTTP client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.httpClient = hc }
}

// WithTimeout sets the per-request timeout of the default HTTP client.
func WithTimeout(d time.Duration) Option {
	return func(c *Client) {
		if d > 0 {
			c.httpClient = &http.Client{Timeout: d}
		}
	}
}

// WithMaxPages bounds how many pages AllEvents and AllGuests follow.
func WithMaxPages(n int) Option {
	return func(c *Client) {
		if n > 0 {
			c.maxPages = n
		}
	}
}

// WithTracerProvider sets the provider spans are started on. The default is
// the global provider.
func WithTracerProvider(tp trace.TracerProvider) Option {
	return func(c *Client) {
		if tp != nil {
			c.tracer = tp.Tracer(tracerName)
		}
	}
}

// NewClient creates a new Luma API client with the given API key.
func NewClient(apiKey string, opts ...Option) (*Client, error) {
	if strings.TrimSpace(apiKey) == "" {
		return nil, errors.New("api key is required")
	}
	c := &Client{
		apiKey:      apiKey,
		baseURL:     DefaultBaseURL,
		calendarURL: DefaultCalendarBaseURL,
		httpClient:  &http.Client{Timeout: defaultTimeout},
		maxPages:    DefaultMaxPages,
		tracer:      otel.Tracer(tracerName),
	}
	for _, o := range opts {
		o(c)
	}
	return c, nil
}

// MaxPages returns the aggregation bound.
func (c *Client) MaxPages() int { return c.maxPages }

func (c *Client) get(ctx context.Context, op, base, path string, q url.Values) ([]byte, error) {
	u := base + path
	if len(q) > 0 {
		u += "?" + q.Encode()
	}
	return c.do(ctx, op, http.MethodGet, u, nil)
}

func (c *Client) post(ctx context.Context, op, base, path string, body []byte) ([]byte, error) {
	return c.do(ctx, op, http.MethodPost, base+path, body)
}

// do sends one request. Failures are never retried.
func (c *Client) do(ctx context.Context, op, method, rawURL string, body []byte) (_ []byte, rerr error) {
	ctx, span := c.tracer.Start(ctx, "lumaapi."+op,
		trace.WithSpanKind(trace.SpanKindClient),
		trace.WithAttributes(
			attribute.String("http.request.method", method),
			attribute.String("luma.operation", op),
		),
	)
	defer func() {
		if rerr != nil {
			span.RecordError(rerr)
			span.SetStatus(codes.Error, rerr.Error())
		}
		span.End()
	}()

	if err := c.limiter.Wait(ctx, c.apiKey); err != nil {
		return nil, &Error{Kind: KindNetwork, Op: op, Err: errors.Wrap(err, "waiting for rate limit")}
	}

	var reqBody io.Reader
	if body != nil {
		reqBody = bytes.NewReader(body)
	}
	req, err := http.NewRequestWithContext(ctx, method, rawURL, reqBody)
	if err != nil {
		return nil, errors.Wrap(err, "create request")
	}
	req.Header.Set(APIKeyHeader, c.apiKey)
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, &Error{Kind: KindNetwork, Op: op, Err: err}
	}
	defer resp.Body.Close()

	span.SetAttributes(attribute.Int("http.response.status_code", resp.StatusCode))

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, &Error{Kind: KindNetwork, Op: op, Err: errors.Wrap(err, "read response")}
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, statusError(op, resp.StatusCode, respBody)
	}
	return respBody, nil
}
