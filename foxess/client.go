package foxess

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/holger1411/foxess-mcp-server/cache"
)

// DefaultBaseURL is the FoxESS Cloud OpenAPI host.
const DefaultBaseURL = "https://www.foxesscloud.com"

// OpenAPI endpoint paths. The path (not the full URL) is the signed
// component of every request.
const (
	pathDeviceList   = "/op/v0/device/list"
	pathDeviceDetail = "/op/v0/device/detail"
	pathRealtime     = "/op/v0/device/real/query"
	pathHistory      = "/op/v0/device/history/query"
	pathReport       = "/op/v0/device/report/query"
	pathGeneration   = "/op/v0/device/generation"
)

// FetchFunc produces a value on a cache miss.
type FetchFunc func(ctx context.Context) (json.RawMessage, error)

// Client is the access façade over the FoxESS Cloud API. It composes the
// rate limiter and signer on the request path and the cache store in front
// of it. One Client owns its limiter; independent Clients do not share
// quota state.
type Client struct {
	http    *http.Client
	baseURL string
	lang    string
	cred    Credential
	limiter *Limiter
	store   *cache.Store
	log     zerolog.Logger
	now     func() time.Time
}

// Option configures a Client.
type Option func(*Client)

// WithHTTPClient replaces the default HTTP client. Timeouts and transport
// retries belong to the client passed here.
func WithHTTPClient(h *http.Client) Option {
	return func(c *Client) { c.http = h }
}

// WithBaseURL points the client at a different API host.
func WithBaseURL(raw string) Option {
	return func(c *Client) { c.baseURL = raw }
}

// WithStore enables response caching. A nil store disables it.
func WithStore(s *cache.Store) Option {
	return func(c *Client) { c.store = s }
}

// WithLogger sets the client's logger.
func WithLogger(log zerolog.Logger) Option {
	return func(c *Client) { c.log = log }
}

// WithLang sets the language code sent with every request.
func WithLang(lang string) Option {
	return func(c *Client) { c.lang = lang }
}

// New builds a client around a validated credential.
func New(cred Credential, opts ...Option) *Client {
	c := &Client{
		http:    &http.Client{Timeout: 30 * time.Second},
		baseURL: DefaultBaseURL,
		lang:    "en",
		cred:    cred,
		limiter: NewLimiter(),
		log:     zerolog.Nop(),
		now:     time.Now,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Limiter exposes the client's rate limiter for quota introspection.
func (c *Client) Limiter() *Limiter {
	return c.limiter
}

// envelope is the FoxESS response wrapper. A non-zero errno is an API-level
// failure even on HTTP 200.
type envelope struct {
	Errno   int             `json:"errno"`
	Message string          `json:"message"`
	Result  json.RawMessage `json:"result"`
}

// AuthorizedCall performs the rate-check/sign/call sequence for a read-only
// request and returns the envelope's result payload. A limiter denial
// surfaces as RateLimitError with a retry hint; nothing is sent upstream in
// that case.
func (c *Client) AuthorizedCall(ctx context.Context, method, path string, body any) (json.RawMessage, error) {
	return c.call(ctx, method, path, body, RequestQuery)
}

func (c *Client) call(ctx context.Context, method, path string, body any, rt RequestType) (json.RawMessage, error) {
	if err := c.limiter.Acquire(rt); err != nil {
		var rle *RateLimitError
		if errors.As(err, &rle) {
			c.log.Warn().
				Str("path", path).
				Dur("retry_after", rle.RetryAfter).
				Int("remaining", rle.Remaining).
				Msg("rate limit denied request")
		}
		return nil, err
	}

	log := c.log.With().Str("call_id", uuid.NewString()).Str("path", path).Logger()

	var reqBody io.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		if err != nil {
			return nil, fmt.Errorf("foxess: encode request body: %w", err)
		}
		reqBody = bytes.NewReader(raw)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reqBody)
	if err != nil {
		return nil, fmt.Errorf("foxess: build request: %w", err)
	}
	req.Header = c.cred.Headers(path, c.lang, c.now())

	start := c.now()
	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("foxess: request failed: %s", c.cred.MaskToken(err.Error()))
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("foxess: read response: %w", err)
	}

	switch {
	case resp.StatusCode == http.StatusUnauthorized:
		return nil, &AuthError{Status: resp.StatusCode, Message: "signature rejected, check API token"}
	case resp.StatusCode == http.StatusTooManyRequests:
		return nil, &RateLimitError{RetryAfter: time.Minute, Remaining: c.limiter.RemainingToday()}
	case resp.StatusCode == http.StatusNotFound:
		return nil, &APIError{Status: resp.StatusCode, Message: "device not found or not accessible"}
	case resp.StatusCode >= 400:
		return nil, &APIError{Status: resp.StatusCode, Message: http.StatusText(resp.StatusCode)}
	}

	var env envelope
	if err := json.Unmarshal(raw, &env); err != nil {
		return nil, fmt.Errorf("foxess: invalid JSON response: %w", err)
	}
	if env.Errno != 0 {
		msg := env.Message
		if msg == "" {
			msg = "unknown API error"
		}
		return nil, &APIError{Errno: env.Errno, Message: msg}
	}

	log.Debug().Dur("duration", c.now().Sub(start)).Msg("api call succeeded")
	return env.Result, nil
}

// FetchWithCache performs the cache-then-fetch-then-populate sequence for an
// operation. The key derives deterministically from the operation, device
// serial and params. Fetch failures propagate untouched; a miss is not an
// error.
func (c *Client) FetchWithCache(ctx context.Context, operation, deviceSN string, params map[string]string, dataType string, fetch FetchFunc) (json.RawMessage, error) {
	return c.fetchCached(ctx, cache.BuildKey(operation, deviceSN, params), dataType, fetch)
}

func (c *Client) fetchCached(ctx context.Context, key, dataType string, fetch FetchFunc) (json.RawMessage, error) {
	if c.store != nil {
		if v, ok := c.store.Get(key, dataType); ok {
			c.log.Debug().Str("key", key).Msg("cache hit")
			return v, nil
		}
	}
	v, err := fetch(ctx)
	if err != nil {
		return nil, err
	}
	if c.store != nil && v != nil {
		c.store.Set(key, v, dataType)
	}
	return v, nil
}

// DeviceList lists the devices the credential can access.
func (c *Client) DeviceList(ctx context.Context) (json.RawMessage, error) {
	key := cache.BuildKey("device_list", c.cred.DeviceSN(), nil)
	return c.fetchCached(ctx, key, cache.TypeDeviceInfo, func(ctx context.Context) (json.RawMessage, error) {
		return c.call(ctx, http.MethodGet, pathDeviceList, nil, RequestQuery)
	})
}

// DeviceDetail returns detail for the configured device.
func (c *Client) DeviceDetail(ctx context.Context) (json.RawMessage, error) {
	key := cache.BuildKey("device_detail", c.cred.DeviceSN(), nil)
	return c.fetchCached(ctx, key, cache.TypeDeviceInfo, func(ctx context.Context) (json.RawMessage, error) {
		return c.call(ctx, http.MethodPost, pathDeviceDetail, map[string]any{"sn": c.cred.DeviceSN()}, RequestQuery)
	})
}

// RealtimeData returns current telemetry, optionally restricted to a
// variable list. Lookups within the same minute share one cached response.
func (c *Client) RealtimeData(ctx context.Context, variables []string) (json.RawMessage, error) {
	body := map[string]any{"sn": c.cred.DeviceSN()}
	if len(variables) > 0 {
		body["variables"] = variables
	}
	key := cache.RealtimeKey(c.cred.DeviceSN(), variables, c.now())
	return c.fetchCached(ctx, key, cache.TypeRealtime, func(ctx context.Context) (json.RawMessage, error) {
		return c.call(ctx, http.MethodPost, pathRealtime, body, RequestQuery)
	})
}

// HistoricalData returns telemetry between start and end at the given
// dimension ("hour", "day" or "month"). Zero times default to the trailing
// 24 hours.
func (c *Client) HistoricalData(ctx context.Context, start, end time.Time, variables []string, dimension string) (json.RawMessage, error) {
	if end.IsZero() {
		end = c.now()
	}
	if start.IsZero() {
		start = end.Add(-24 * time.Hour)
	}
	if dimension == "" {
		dimension = "hour"
	}
	body := map[string]any{
		"sn":    c.cred.DeviceSN(),
		"begin": start.UnixMilli(),
		"end":   end.UnixMilli(),
	}
	if len(variables) > 0 {
		body["variables"] = variables
	}
	key := cache.HistoricalKey(c.cred.DeviceSN(), start, end, variables, dimension)
	return c.fetchCached(ctx, key, cache.TypeHistorical, func(ctx context.Context) (json.RawMessage, error) {
		return c.call(ctx, http.MethodPost, pathHistory, body, RequestQuery)
	})
}

// ReportData returns aggregated production reports ("day", "month" or
// "year") for the given date, defaulting to now.
func (c *Client) ReportData(ctx context.Context, reportType string, date time.Time) (json.RawMessage, error) {
	if date.IsZero() {
		date = c.now()
	}
	body := map[string]any{
		"sn":         c.cred.DeviceSN(),
		"reportType": reportType,
		"date":       date.UnixMilli(),
	}
	key := cache.BuildKey("report", c.cred.DeviceSN(), map[string]string{
		"type": reportType,
		"date": date.UTC().Format("2006-01-02"),
	})
	return c.fetchCached(ctx, key, cache.TypeHistorical, func(ctx context.Context) (json.RawMessage, error) {
		return c.call(ctx, http.MethodPost, pathReport, body, RequestQuery)
	})
}

// GenerationData returns cumulative generation totals for the device.
func (c *Client) GenerationData(ctx context.Context) (json.RawMessage, error) {
	key := cache.BuildKey("generation", c.cred.DeviceSN(), nil)
	return c.fetchCached(ctx, key, cache.TypeRealtime, func(ctx context.Context) (json.RawMessage, error) {
		return c.call(ctx, http.MethodPost, pathGeneration, map[string]any{"sn": c.cred.DeviceSN()}, RequestQuery)
	})
}
