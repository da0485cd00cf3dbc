package rtms

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/cenkalti/backoff/v5"
	"github.com/jellydator/ttlcache/v3"

	"github.com/fabricpulse/dashboard/internal/metrics"
)

const (
	defaultRequestTimeout  = 15 * time.Second
	defaultOptionsCacheTTL = time.Minute
	defaultMaxRetries      = 3
	maxErrorBodyBytes      = 1 << 20
)

// TransportError is a network or HTTP-level failure talking to the RTMS
// backend. Callers at the filter-option and alert layers catch it, log it,
// and degrade to an empty value rather than aborting the surrounding flow.
type TransportError struct {
	Endpoint   string
	StatusCode int
	Err        error
}

func (e *TransportError) Error() string {
	if e.StatusCode != 0 {
		return fmt.Sprintf("rtms: %s returned HTTP %d", e.Endpoint, e.StatusCode)
	}
	return fmt.Sprintf("rtms: %s failed: %v", e.Endpoint, e.Err)
}

func (e *TransportError) Unwrap() error { return e.Err }

// IsTransportError reports whether err is (or wraps) a TransportError.
func IsTransportError(err error) bool {
	var te *TransportError
	return errors.As(err, &te)
}

// Client talks to the RTMS backend's JSON API. Filter-option responses are
// cached briefly so a user flipping between selections does not hammer the
// backend; production data and alerts are always fetched fresh.
type Client struct {
	baseURL    string
	httpClient *http.Client
	logger     *slog.Logger
	maxRetries uint
	cache      *ttlcache.Cache[string, []string]
}

// ClientOption configures the Client.
type ClientOption func(*clientConfig)

type clientConfig struct {
	baseURL    string
	httpClient *http.Client
	logger     *slog.Logger
	maxRetries uint
	cacheTTL   time.Duration
}

// WithBaseURL sets the RTMS backend base URL.
func WithBaseURL(baseURL string) ClientOption {
	return func(c *clientConfig) {
		c.baseURL = baseURL
	}
}

// WithHTTPClient sets a custom HTTP client.
func WithHTTPClient(httpClient *http.Client) ClientOption {
	return func(c *clientConfig) {
		c.httpClient = httpClient
	}
}

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) ClientOption {
	return func(c *clientConfig) {
		c.logger = logger
	}
}

// WithMaxRetries bounds the retry count for failed requests.
func WithMaxRetries(n uint) ClientOption {
	return func(c *clientConfig) {
		c.maxRetries = n
	}
}

// WithOptionsCacheTTL sets how long filter-option responses are cached.
func WithOptionsCacheTTL(ttl time.Duration) ClientOption {
	return func(c *clientConfig) {
		c.cacheTTL = ttl
	}
}

// NewClient creates a new RTMS backend client.
func NewClient(opts ...ClientOption) (*Client, error) {
	cfg := &clientConfig{
		maxRetries: defaultMaxRetries,
		cacheTTL:   defaultOptionsCacheTTL,
	}
	for _, opt := range opts {
		opt(cfg)
	}
	if cfg.baseURL == "" {
		return nil, errors.New("base URL is required: use WithBaseURL option")
	}
	if cfg.httpClient == nil {
		cfg.httpClient = &http.Client{Timeout: defaultRequestTimeout}
	}
	if cfg.logger == nil {
		cfg.logger = slog.Default()
	}

	cache := ttlcache.New(
		ttlcache.WithTTL[string, []string](cfg.cacheTTL),
	)
	go cache.Start()

	return &Client{
		baseURL:    strings.TrimRight(cfg.baseURL, "/"),
		httpClient: cfg.httpClient,
		logger:     cfg.logger,
		maxRetries: cfg.maxRetries,
		cache:      cache,
	}, nil
}

// Close stops the option cache's expiration loop.
func (c *Client) Close() {
	c.cache.Stop()
}

// Units returns the top-level unit codes.
func (c *Client) Units(ctx context.Context) ([]string, error) {
	return c.options(ctx, "/api/rtms/filters/units", nil)
}

// Floors returns the floor names for a unit.
func (c *Client) Floors(ctx context.Context, unitCode string) ([]string, error) {
	return c.options(ctx, "/api/rtms/filters/floors", url.Values{"unit_code": {unitCode}})
}

// Lines returns the line names for a unit and floor.
func (c *Client) Lines(ctx context.Context, unitCode, floorName string) ([]string, error) {
	return c.options(ctx, "/api/rtms/filters/lines", url.Values{
		"unit_code":  {unitCode},
		"floor_name": {floorName},
	})
}

// Operations returns the operation names for a unit, floor and line.
func (c *Client) Operations(ctx context.Context, unitCode, floorName, lineName string) ([]string, error) {
	return c.options(ctx, "/api/rtms/filters/operations", url.Values{
		"unit_code":  {unitCode},
		"floor_name": {floorName},
		"line_name":  {lineName},
	})
}

// Analyze fetches operator records and backend-side aggregates for the query.
func (c *Client) Analyze(ctx context.Context, q Query) (*AnalyzeResponse, error) {
	body, err := c.get(ctx, "/api/rtms/analyze", q.values())
	if err != nil {
		return nil, err
	}
	var env analyzeEnvelope
	if err := json.Unmarshal(body, &env); err != nil {
		return nil, &TransportError{Endpoint: "/api/rtms/analyze", Err: fmt.Errorf("malformed body: %w", err)}
	}
	return &env.Data, nil
}

// Alerts fetches the current alert collection for the query.
func (c *Client) Alerts(ctx context.Context, q Query) ([]Alert, error) {
	body, err := c.get(ctx, "/api/rtms/alerts", q.values())
	if err != nil {
		return nil, err
	}
	var env alertsEnvelope
	if err := json.Unmarshal(body, &env); err != nil {
		return nil, &TransportError{Endpoint: "/api/rtms/alerts", Err: fmt.Errorf("malformed body: %w", err)}
	}
	return env.Data, nil
}

// Ping probes backend reachability via its health endpoint.
func (c *Client) Ping(ctx context.Context) error {
	_, err := c.get(ctx, "/health", nil)
	return err
}

func (q Query) values() url.Values {
	v := url.Values{}
	if q.UnitCode != "" {
		v.Set("unit_code", q.UnitCode)
	}
	if q.FloorName != "" {
		v.Set("floor_name", q.FloorName)
	}
	if q.LineName != "" {
		v.Set("line_name", q.LineName)
	}
	if q.Operation != "" {
		v.Set("operation", q.Operation)
	}
	if q.StartDate != "" {
		v.Set("start_date", q.StartDate)
	}
	if q.EndDate != "" {
		v.Set("end_date", q.EndDate)
	}
	if q.Limit > 0 {
		v.Set("limit", strconv.Itoa(q.Limit))
	}
	return v
}

// options fetches a filter-option list, consulting the cache first.
func (c *Client) options(ctx context.Context, endpoint string, params url.Values) ([]string, error) {
	key := endpoint
	if len(params) > 0 {
		key += "?" + params.Encode()
	}
	if item := c.cache.Get(key); item != nil {
		metrics.RTMSOptionsCacheHits.Inc()
		return item.Value(), nil
	}

	body, err := c.get(ctx, endpoint, params)
	if err != nil {
		return nil, err
	}
	var env listEnvelope
	if err := json.Unmarshal(body, &env); err != nil {
		return nil, &TransportError{Endpoint: endpoint, Err: fmt.Errorf("malformed body: %w", err)}
	}
	if env.Data == nil {
		env.Data = []string{}
	}
	c.cache.Set(key, env.Data, ttlcache.DefaultTTL)
	return env.Data, nil
}

// get performs a GET with bounded exponential-backoff retry. Responses with
// 4xx statuses are not retried; the backend will not change its mind.
func (c *Client) get(ctx context.Context, endpoint string, params url.Values) ([]byte, error) {
	u := c.baseURL + endpoint
	if len(params) > 0 {
		u += "?" + params.Encode()
	}

	body, err := backoff.Retry(ctx, func() ([]byte, error) {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
		if err != nil {
			return nil, backoff.Permanent(err)
		}
		resp, err := c.httpClient.Do(req)
		if err != nil {
			metrics.RTMSRequestsTotal.WithLabelValues(endpoint, "network_err").Inc()
			return nil, &TransportError{Endpoint: endpoint, Err: err}
		}
		defer resp.Body.Close()

		if resp.StatusCode < 200 || resp.StatusCode >= 300 {
			_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, maxErrorBodyBytes))
			metrics.RTMSRequestsTotal.WithLabelValues(endpoint, "http_err").Inc()
			terr := &TransportError{Endpoint: endpoint, StatusCode: resp.StatusCode}
			if resp.StatusCode >= 400 && resp.StatusCode < 500 {
				return nil, backoff.Permanent(terr)
			}
			return nil, terr
		}

		b, err := io.ReadAll(resp.Body)
		if err != nil {
			metrics.RTMSRequestsTotal.WithLabelValues(endpoint, "read_err").Inc()
			return nil, &TransportError{Endpoint: endpoint, Err: err}
		}
		metrics.RTMSRequestsTotal.WithLabelValues(endpoint, "ok").Inc()
		return b, nil
	}, backoff.WithBackOff(backoff.NewExponentialBackOff()), backoff.WithMaxTries(c.maxRetries))
	if err != nil {
		c.logger.Debug("rtms request failed", "endpoint", endpoint, "error", err)
		return nil, err
	}
	return body, nil
}
