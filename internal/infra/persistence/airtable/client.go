// Package airtable implements the colony record store against the hosted
// Airtable REST API, the tabular service the colony sheet traditionally lives in.
package airtable

import (
	"bytes"
	"colonyledger/pkg/domain"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"golang.org/x/time/rate"
)

var _ domain.RecordStore = (*Client)(nil)

const (
	defaultBaseURL = "https://api.airtable.com/v0"
	// The API allows five requests per second per base and answers 429 with
	// a 30 second penalty when that is exceeded.
	defaultRequestsPerSecond = 5
	defaultMaxRetries        = 3
	rateLimitBackoff         = 30 * time.Second
	pageSize       = 100
)

// Config holds connection parameters for one table.
type Config struct {
	BaseID  string
	Table   string
	APIKey  string
	BaseURL string // optional override, mainly for tests
	Timeout time.Duration
	// RequestsPerSecond throttles outgoing calls; zero means 5.
	RequestsPerSecond float64
	// MaxRetries bounds retries of a 429 response; zero means 3, negative disables.
	MaxRetries int
}

// APIError is a non-2xx response decoded from the API's error envelope.
type APIError struct {
	StatusCode int
	Type       string
	Message    string
}

func (e *APIError) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("airtable: %d %s", e.StatusCode, e.Type)
	}
	return fmt.Sprintf("airtable: %d %s: %s", e.StatusCode, e.Type, e.Message)
}

// Client talks to a single table.
type Client struct {
	http       *http.Client
	endpoint   string
	apiKey     string
	limiter    *rate.Limiter
	maxRetries int
	backoff    time.Duration
}

// Option customises a Client.
type Option func(*Client)

// WithHTTPClient replaces the HTTP client (transport mocks, proxies).
func WithHTTPClient(c *http.Client) Option {
	return func(cl *Client) {
		if c != nil {
			cl.http = c
		}
	}
}

// WithRateLimit replaces the request limiter.
func WithRateLimit(limit rate.Limit, burst int) Option {
	return func(cl *Client) {
		cl.limiter = rate.NewLimiter(limit, burst)
	}
}

// WithRetryBackoff sets the wait after a 429 that carries no Retry-After header.
func WithRetryBackoff(d time.Duration) Option {
	return func(cl *Client) {
		if d > 0 {
			cl.backoff = d
		}
	}
}

// New validates cfg and returns a table client.
func New(cfg Config, opts ...Option) (*Client, error) {
	if cfg.BaseID == "" {
		return nil, errors.New("airtable base id required")
	}
	if cfg.Table == "" {
		return nil, errors.New("airtable table name required")
	}
	base := cfg.BaseURL
	if base == "" {
		base = defaultBaseURL
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	perSecond := cfg.RequestsPerSecond
	if perSecond <= 0 {
		perSecond = defaultRequestsPerSecond
	}
	retries := cfg.MaxRetries
	switch {
	case retries == 0:
		retries = defaultMaxRetries
	case retries < 0:
		retries = 0
	}
	c := &Client{
		http:       &http.Client{Timeout: timeout},
		endpoint:   strings.TrimRight(base, "/") + "/" + url.PathEscape(cfg.BaseID) + "/" + url.PathEscape(cfg.Table),
		apiKey:     cfg.APIKey,
		limiter:    rate.NewLimiter(rate.Limit(perSecond), 1),
		maxRetries: retries,
		backoff:    rateLimitBackoff,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

type wireRecord struct {
	ID          string         `json:"id"`
	CreatedTime string         `json:"createdTime,omitempty"`
	Fields      map[string]any `json:"fields"`
}

type listResponse struct {
	Records []wireRecord `json:"records"`
	Offset  string       `json:"offset"`
}

type writeRequest struct {
	Fields   map[string]any `json:"fields"`
	Typecast bool           `json:"typecast,omitempty"`
}

// Find lists every record matching field = value.
func (c *Client) Find(ctx context.Context, field string, value any) ([]domain.Record, error) {
	q := url.Values{}
	q.Set("filterByFormula", EqualsFormula(field, value))
	return c.list(ctx, q, 0)
}

// FindSorted lists records sorted server-side by field.
func (c *Client) FindSorted(ctx context.Context, field string, dir domain.SortDirection, limit int) ([]domain.Record, error) {
	q := url.Values{}
	q.Set("sort[0][field]", field)
	if dir == domain.Descending {
		q.Set("sort[0][direction]", "desc")
	} else {
		q.Set("sort[0][direction]", "asc")
	}
	if limit > 0 {
		q.Set("maxRecords", strconv.Itoa(limit))
	}
	return c.list(ctx, q, limit)
}

func (c *Client) list(ctx context.Context, q url.Values, limit int) ([]domain.Record, error) {
	out := make([]domain.Record, 0)
	q.Set("pageSize", strconv.Itoa(pageSize))
	for {
		var page listResponse
		if err := c.do(ctx, http.MethodGet, c.endpoint+"?"+q.Encode(), nil, &page); err != nil {
			return nil, err
		}
		for _, w := range page.Records {
			out = append(out, w.toRecord())
		}
		if page.Offset == "" || (limit > 0 && len(out) >= limit) {
			break
		}
		q.Set("offset", page.Offset)
	}
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

// Insert creates one record. Typecast lets the API coerce select labels and dates.
func (c *Client) Insert(ctx context.Context, fields domain.Fields) (domain.Record, error) {
	var w wireRecord
	body := writeRequest{Fields: dropNil(fields), Typecast: true}
	if err := c.do(ctx, http.MethodPost, c.endpoint, body, &w); err != nil {
		return domain.Record{}, err
	}
	return w.toRecord(), nil
}

// UpdateByField patches the first record matching field = value.
func (c *Client) UpdateByField(ctx context.Context, field string, value any, patch domain.Fields) (domain.Record, error) {
	q := url.Values{}
	q.Set("filterByFormula", EqualsFormula(field, value))
	matches, err := c.list(ctx, q, 1)
	if err != nil {
		return domain.Record{}, err
	}
	if len(matches) == 0 {
		return domain.Record{}, fmt.Errorf("update %s=%v: %w", field, value, domain.ErrRecordNotFound)
	}
	return c.Update(ctx, matches[0].ID, patch)
}

// Update patches the record with the given id. Nil values clear columns.
func (c *Client) Update(ctx context.Context, id string, patch domain.Fields) (domain.Record, error) {
	var w wireRecord
	body := writeRequest{Fields: map[string]any(patch), Typecast: true}
	if err := c.do(ctx, http.MethodPatch, c.endpoint+"/"+url.PathEscape(id), body, &w); err != nil {
		var apiErr *APIError
		if errors.As(err, &apiErr) && apiErr.StatusCode == http.StatusNotFound {
			return domain.Record{}, fmt.Errorf("update %s: %w", id, domain.ErrRecordNotFound)
		}
		return domain.Record{}, err
	}
	return w.toRecord(), nil
}

// do sends one API call. Every attempt waits for the limiter; a 429 is
// retried up to maxRetries times after the advertised back-off.
func (c *Client) do(ctx context.Context, method, target string, body, out any) error {
	var buf []byte
	if body != nil {
		var err error
		if buf, err = json.Marshal(body); err != nil {
			return fmt.Errorf("encode request: %w", err)
		}
	}
	for attempt := 0; ; attempt++ {
		if err := c.limiter.Wait(ctx); err != nil {
			return fmt.Errorf("airtable rate limit wait: %w", err)
		}
		status, header, payload, err := c.send(ctx, method, target, buf)
		if err != nil {
			return err
		}
		if status == http.StatusTooManyRequests && attempt < c.maxRetries {
			if err := sleep(ctx, retryAfter(header, c.backoff)); err != nil {
				return fmt.Errorf("airtable %s: %w", method, err)
			}
			continue
		}
		if status < 200 || status > 299 {
			return decodeAPIError(status, payload)
		}
		dec := json.NewDecoder(bytes.NewReader(payload))
		dec.UseNumber()
		if err := dec.Decode(out); err != nil {
			return fmt.Errorf("decode response: %w", err)
		}
		return nil
	}
}

func (c *Client) send(ctx context.Context, method, target string, body []byte) (int, http.Header, []byte, error) {
	var reader io.Reader
	if body != nil {
		reader = bytes.NewReader(body)
	}
	req, err := http.NewRequestWithContext(ctx, method, target, reader)
	if err != nil {
		return 0, nil, nil, err
	}
	if c.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.apiKey)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	resp, err := c.http.Do(req)
	if err != nil {
		return 0, nil, nil, fmt.Errorf("airtable %s: %w", method, err)
	}
	defer func() { _ = resp.Body.Close() }()
	payload, err := io.ReadAll(resp.Body)
	if err != nil {
		return 0, nil, nil, fmt.Errorf("read response: %w", err)
	}
	return resp.StatusCode, resp.Header, payload, nil
}

// retryAfter reads a Retry-After header in seconds, falling back to def.
func retryAfter(h http.Header, def time.Duration) time.Duration {
	if secs, err := strconv.Atoi(strings.TrimSpace(h.Get("Retry-After"))); err == nil && secs >= 0 {
		return time.Duration(secs) * time.Second
	}
	return def
}

func sleep(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

func decodeAPIError(status int, payload []byte) error {
	apiErr := &APIError{StatusCode: status, Type: http.StatusText(status)}
	var envelope struct {
		Error json.RawMessage `json:"error"`
	}
	if err := json.Unmarshal(payload, &envelope); err != nil || len(envelope.Error) == 0 {
		return apiErr
	}
	var detailed struct {
		Type    string `json:"type"`
		Message string `json:"message"`
	}
	if err := json.Unmarshal(envelope.Error, &detailed); err == nil {
		apiErr.Type = detailed.Type
		apiErr.Message = detailed.Message
		return apiErr
	}
	var short string
	if err := json.Unmarshal(envelope.Error, &short); err == nil {
		apiErr.Type = short
	}
	return apiErr
}

func (w wireRecord) toRecord() domain.Record {
	rec := domain.Record{ID: w.ID, Fields: domain.Fields(w.Fields)}
	if rec.Fields == nil {
		rec.Fields = domain.Fields{}
	}
	if t, err := time.Parse(time.RFC3339, w.CreatedTime); err == nil {
		rec.CreatedAt = t
	}
	return rec
}

func dropNil(fields domain.Fields) map[string]any {
	out := make(map[string]any, len(fields))
	for k, v := range fields {
		if v != nil {
			out[k] = v
		}
	}
	return out
}

// EqualsFormula renders an exact-match filterByFormula expression. Integral
// values are compared numerically, everything else as quoted text.
func EqualsFormula(field string, value any) string {
	name := "{" + strings.ReplaceAll(field, "}", `\}`) + "}"
	switch value.(type) {
	case int, int32, int64, float32, float64, json.Number:
		if _, ok := domain.AsInt64(value); ok {
			return name + "=" + domain.AsString(value)
		}
	}
	text := domain.AsString(value)
	text = strings.ReplaceAll(text, `\`, `\\`)
	text = strings.ReplaceAll(text, `'`, `\'`)
	return name + "='" + text + "'"
}
