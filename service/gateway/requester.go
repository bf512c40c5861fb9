package gateway

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/brojonat/caesarbot/service/metrics"
)

// DefaultTimeout bounds every upstream HTTP request.
const DefaultTimeout = 30 * time.Second

// maxResponseSize caps how much of an upstream body is read (8MB).
const maxResponseSize = 8 << 20

// Requester is the shared REST transport used by the HTTP adapters. It joins
// paths onto a base URL, attaches static headers and query parameters (API
// keys), and turns non-2xx answers into ProviderError values.
type Requester struct {
	provider   string
	baseURL    string
	httpClient *http.Client
	headers    http.Header
	query      url.Values
	metrics    *metrics.Metrics
	logger     *slog.Logger
}

// RequesterOption configures a Requester.
type RequesterOption func(*Requester)

// WithHTTPClient sets a custom http.Client.
func WithHTTPClient(c *http.Client) RequesterOption {
	return func(r *Requester) {
		if c != nil {
			r.httpClient = c
		}
	}
}

// WithHeader sets a header sent on every request.
func WithHeader(key, value string) RequesterOption {
	return func(r *Requester) {
		r.headers.Set(key, value)
	}
}

// WithQueryParam sets a query parameter sent on every request.
func WithQueryParam(key, value string) RequesterOption {
	return func(r *Requester) {
		r.query.Set(key, value)
	}
}

// WithRequesterMetrics records upstream 429s.
func WithRequesterMetrics(m *metrics.Metrics) RequesterOption {
	return func(r *Requester) {
		r.metrics = m
	}
}

// WithRequesterLogger sets the logger.
func WithRequesterLogger(l *slog.Logger) RequesterOption {
	return func(r *Requester) {
		if l != nil {
			r.logger = l
		}
	}
}

// NewRequester creates a Requester for provider rooted at baseURL.
func NewRequester(provider, baseURL string, opts ...RequesterOption) *Requester {
	r := &Requester{
		provider:   provider,
		baseURL:    strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{Timeout: DefaultTimeout},
		headers:    make(http.Header),
		query:      make(url.Values),
		logger:     slog.Default(),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// BaseURL returns the configured base URL without a trailing slash.
func (r *Requester) BaseURL() string {
	return r.baseURL
}

// GetJSON issues a GET and decodes the JSON response into out.
func (r *Requester) GetJSON(ctx context.Context, path string, query url.Values, out any) error {
	body, err := r.Do(ctx, http.MethodGet, path, query, nil, "")
	if err != nil {
		return err
	}
	return r.decode(body, out)
}

// PostJSON marshals in, POSTs it, and decodes the JSON response into out.
// A nil out discards the response body.
func (r *Requester) PostJSON(ctx context.Context, path string, in any, out any) error {
	payload, err := json.Marshal(in)
	if err != nil {
		return fmt.Errorf("failed to marshal request: %w", err)
	}
	body, err := r.Do(ctx, http.MethodPost, path, nil, bytes.NewReader(payload), "application/json")
	if err != nil {
		return err
	}
	if out == nil {
		return nil
	}
	return r.decode(body, out)
}

// Do performs the request and returns the raw body of a 2xx response.
func (r *Requester) Do(ctx context.Context, method, path string, query url.Values, body io.Reader, contentType string) ([]byte, error) {
	u, err := url.Parse(r.baseURL + path)
	if err != nil {
		return nil, fmt.Errorf("%s: invalid url: %w", r.provider, err)
	}
	q := u.Query()
	for k, vs := range r.query {
		for _, v := range vs {
			q.Add(k, v)
		}
	}
	for k, vs := range query {
		for _, v := range vs {
			q.Add(k, v)
		}
	}
	u.RawQuery = q.Encode()

	req, err := http.NewRequestWithContext(ctx, method, u.String(), body)
	if err != nil {
		return nil, fmt.Errorf("%s: failed to create request: %w", r.provider, err)
	}
	for k, vs := range r.headers {
		for _, v := range vs {
			req.Header.Add(k, v)
		}
	}
	req.Header.Set("Accept", "application/json")
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}

	r.logger.DebugContext(ctx, "calling provider", "method", method, "path", path)

	resp, err := r.httpClient.Do(req)
	if err != nil {
		// Query parameters carry API keys.
		var urlErr *url.Error
		if errors.As(err, &urlErr) {
			urlErr.URL = stripQuery(urlErr.URL)
		}
		return nil, fmt.Errorf("%s: request failed: %w", r.provider, err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseSize))
	if err != nil {
		return nil, fmt.Errorf("%s: failed to read response: %w", r.provider, err)
	}

	if resp.StatusCode == http.StatusTooManyRequests && r.metrics != nil {
		r.metrics.RecordRateLimitHit(r.provider)
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, &ProviderError{
			Provider:   r.provider,
			StatusCode: resp.StatusCode,
			Body:       respBody,
			Message:    http.StatusText(resp.StatusCode),
		}
	}
	return respBody, nil
}

func (r *Requester) decode(body []byte, out any) error {
	if err := json.Unmarshal(body, out); err != nil {
		return &ProviderError{
			Provider: r.provider,
			Body:     body,
			Message:  fmt.Sprintf("failed to decode response: %v", err),
		}
	}
	return nil
}

// stripQuery drops the query string from rawURL.
func stripQuery(rawURL string) string {
	u, err := url.Parse(rawURL)
	if err != nil {
		return ""
	}
	u.RawQuery = ""
	u.ForceQuery = false
	return u.String()
}
