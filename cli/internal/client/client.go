// Package client talks to the studio backend. Every call decodes the standard
// response envelope; authenticated calls attach the current bearer token and
// get exactly one refresh-and-replay when the backend answers 401.
package client

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"golang.org/x/time/rate"

	"github.com/phoenixfitness/phoenix-stack/common/config"
	"github.com/phoenixfitness/phoenix-stack/common/httputil"
	"github.com/phoenixfitness/phoenix-stack/common/logging"
	"github.com/phoenixfitness/phoenix-stack/common/metrics"
	"github.com/phoenixfitness/phoenix-stack/common/middleware"
)

// TokenProvider supplies bearer tokens. The session manager implements it.
type TokenProvider interface {
	AccessToken(ctx context.Context) (string, error)
	Refresh(ctx context.Context) (string, error)
}

// Client is the backend REST client.
type Client struct {
	baseURL string
	http    *http.Client
	tokens  TokenProvider
	limiter *rate.Limiter
	logger  *logging.Logger
}

// Option configures a Client.
type Option func(*Client)

// WithHTTPClient replaces the underlying http.Client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.http = hc }
}

// WithTimeout sets the per-request timeout of the underlying http.Client.
func WithTimeout(d time.Duration) Option {
	return func(c *Client) { c.http.Timeout = d }
}

// WithTokenProvider sets the source of bearer tokens.
func WithTokenProvider(p TokenProvider) Option {
	return func(c *Client) { c.tokens = p }
}

// WithRateLimit caps outgoing requests at rps with the given burst. rps <= 0
// disables limiting.
func WithRateLimit(rps float64, burst int) Option {
	return func(c *Client) {
		if rps <= 0 {
			c.limiter = nil
			return
		}
		if burst < 1 {
			burst = 1
		}
		c.limiter = rate.NewLimiter(rate.Limit(rps), burst)
	}
}

// WithLogger sets the logger.
func WithLogger(l *logging.Logger) Option {
	return func(c *Client) { c.logger = l }
}

// New returns a Client for the API rooted at baseURL.
func New(baseURL string, opts ...Option) *Client {
	c := &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		http:    &http.Client{Timeout: 10 * time.Second},
		logger:  logging.Default(),
	}
	for _, opt := range opts {
		opt(c)
	}
	c.logger = c.logger.With(logging.Component("client"))
	return c
}

// NewFromConfig builds a Client from the api section of the configuration.
func NewFromConfig(cfg config.APIConfig, logger *logging.Logger) *Client {
	return New(cfg.BaseURL,
		WithTimeout(cfg.Timeout),
		WithRateLimit(cfg.RateLimit, cfg.RateBurst),
		WithLogger(logger),
	)
}

// SetTokenProvider attaches p after construction. The session manager needs
// the client to exist before it can be built, so the two are wired in two steps.
func (c *Client) SetTokenProvider(p TokenProvider) {
	c.tokens = p
}

// BaseURL returns the API root.
func (c *Client) BaseURL() string {
	return c.baseURL
}

// request describes one API call.
type request struct {
	method string
	path   string
	query  url.Values
	body   interface{}

	// bearer overrides the provider's token.
	bearer string
	// anonymous calls never carry a token and are never replayed.
	anonymous bool
}

// replayable reports whether a 401 on r may be answered by refresh-and-replay.
// Auth endpoints are excluded so a failing refresh cannot recurse.
func (r request) replayable() bool {
	return !r.anonymous && r.bearer == "" && !strings.HasPrefix(r.path, "/auth/")
}

// call performs r and returns the decoded envelope.
func (c *Client) call(ctx context.Context, r request) (*httputil.Envelope, error) {
	ctx, _ = middleware.EnsureRequestID(ctx)

	var payload []byte
	if r.body != nil {
		b, err := json.Marshal(r.body)
		if err != nil {
			return nil, fmt.Errorf("failed to marshal request body: %w", err)
		}
		payload = b
	}

	token := r.bearer
	if token == "" && !r.anonymous && c.tokens != nil {
		t, err := c.tokens.AccessToken(ctx)
		if err != nil {
			c.logger.WarnContext(ctx, "no usable access token, sending anonymously", logging.Error(err))
		}
		token = t
	}

	env, err := c.send(ctx, r, payload, token)
	if err == nil || !httputil.IsStatus(err, http.StatusUnauthorized) || !r.replayable() || c.tokens == nil {
		return env, err
	}

	fresh, rerr := c.tokens.Refresh(ctx)
	if rerr != nil {
		metrics.ReplaysTotal.WithLabelValues("refresh_failed").Inc()
		c.logger.InfoContext(ctx, "refresh after 401 failed",
			logging.Method(r.method), logging.Path(r.path), logging.Error(rerr))
		return nil, fmt.Errorf("%w (refresh: %w)", err, rerr)
	}

	env, err = c.send(ctx, r, payload, fresh)
	if err != nil {
		metrics.ReplaysTotal.WithLabelValues("replay_failed").Inc()
		return nil, err
	}
	metrics.ReplaysTotal.WithLabelValues("ok").Inc()
	return env, nil
}

// send performs a single HTTP exchange.
func (c *Client) send(ctx context.Context, r request, payload []byte, token string) (*httputil.Envelope, error) {
	if c.limiter != nil {
		start := time.Now()
		if err := c.limiter.Wait(ctx); err != nil {
			return nil, fmt.Errorf("%w: rate limiter: %w", httputil.ErrNetwork, err)
		}
		if time.Since(start) > time.Millisecond {
			metrics.RateLimitWaits.Inc()
		}
	}

	u := c.baseURL + r.path
	if len(r.query) > 0 {
		u += "?" + r.query.Encode()
	}

	var body io.Reader = http.NoBody
	if payload != nil {
		body = bytes.NewReader(payload)
	}
	req, err := http.NewRequestWithContext(ctx, r.method, u, body)
	if err != nil {
		return nil, fmt.Errorf("failed to build request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	if id := middleware.GetRequestID(ctx); id != "" {
		req.Header.Set(middleware.HeaderRequestID, id)
	}

	start := time.Now()
	resp, err := c.http.Do(req)
	elapsed := time.Since(start)
	metrics.APIRequestDuration.WithLabelValues(r.method).Observe(elapsed.Seconds())
	if err != nil {
		metrics.APIRequestsTotal.WithLabelValues(r.method, metrics.StatusClass(0)).Inc()
		c.logger.DebugContext(ctx, "request failed",
			logging.Method(r.method), logging.Path(r.path), logging.Error(err))
		return nil, fmt.Errorf("%w: %s %s: %w", httputil.ErrNetwork, r.method, r.path, err)
	}
	defer resp.Body.Close()

	metrics.APIRequestsTotal.WithLabelValues(r.method, metrics.StatusClass(resp.StatusCode)).Inc()
	c.logger.DebugContext(ctx, "request completed",
		logging.Method(r.method), logging.Path(r.path),
		logging.Status(resp.StatusCode), logging.Duration(elapsed))

	return httputil.DecodeEnvelope(resp)
}

// get decodes the data of a GET into out.
func (c *Client) get(ctx context.Context, path string, query url.Values, out interface{}) error {
	env, err := c.call(ctx, request{method: http.MethodGet, path: path, query: query})
	if err != nil {
		return err
	}
	return env.DecodeData(out)
}

// list decodes the data of a GET that must return an array.
func list[T any](ctx context.Context, c *Client, path string, query url.Values) ([]T, error) {
	env, err := c.call(ctx, request{method: http.MethodGet, path: path, query: query})
	if err != nil {
		return nil, err
	}
	return httputil.DecodeList[T](env)
}

// write sends body with method. A nil out ignores the response data.
func (c *Client) write(ctx context.Context, method, path string, body, out interface{}) error {
	env, err := c.call(ctx, request{method: method, path: path, body: body})
	if err != nil {
		return err
	}
	return env.DecodeData(out)
}

// IsUnauthorized reports whether err is a 401 from the backend.
func IsUnauthorized(err error) bool {
	return httputil.IsStatus(err, http.StatusUnauthorized)
}

// IsNetwork reports whether err means the backend could not be reached.
func IsNetwork(err error) bool {
	return errors.Is(err, httputil.ErrNetwork)
}
