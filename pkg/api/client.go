// Package api implements the storefront request pipeline: credential
// injection, rule-driven response caching, retry of transient failures, and
// centralized session teardown on authorization failure.
package api

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/brightbasket/storefront-client/pkg/cache"
)

// CredentialSource supplies the session credential to outbound requests.
// *token.Manager implements it.
type CredentialSource interface {
	// Token returns the raw bearer token, if a credential is installed.
	Token(ctx context.Context) (string, bool)

	// EnsureFresh best-effort renews a near-expiry credential before a
	// request goes out.
	EnsureFresh(ctx context.Context)

	// Invalidate drops the credential and clears persisted session state.
	Invalidate(ctx context.Context) error
}

// Request describes one logical backend call.
type Request struct {
	Method    string
	Path      string     // resolved against the configured base URL
	Query     url.Values
	Body      any        // JSON-encoded when non-nil
	Multipart *Multipart // form upload; mutually exclusive with Body
}

// Response is a fully read backend response.
type Response struct {
	Status int
	Header http.Header
	Body   []byte
}

// Config holds the pipeline configuration.
type Config struct {
	// BaseURL is the backend root every request path resolves against.
	BaseURL string

	// Timeout bounds each individual attempt.
	Timeout time.Duration

	// Retry
	MaxRetries   int           // retries after the initial attempt
	RetryBackoff time.Duration // linear backoff unit

	// PublicEndpoints lists path prefixes reachable without a credential.
	PublicEndpoints []string

	// Rules decide which GET responses are cached and for how long.
	Rules cache.Rules

	// Cache stores eligible GET payloads.
	Cache *cache.Cache

	// Credentials supplies and invalidates the session credential.
	Credentials CredentialSource

	// OnUnauthorized runs after an authorization failure has torn the
	// session down, at most once per established session. The interface
	// hooks its navigation to the login view here.
	OnUnauthorized func()
}

// DefaultConfig returns a safe default configuration.
func DefaultConfig(baseURL string, store *cache.Cache, credentials CredentialSource) Config {
	return Config{
		BaseURL:      baseURL,
		Timeout:      15 * time.Second,
		MaxRetries:   3,
		RetryBackoff: 1 * time.Second,
		PublicEndpoints: []string{
			"/auth/login",
			"/auth/register",
			"/catalog",
			"/prices",
			"/health",
		},
		Rules:       cache.DefaultRules(),
		Cache:       store,
		Credentials: credentials,
	}
}

// Client is the request pipeline every typed service calls through.
type Client struct {
	httpClient *http.Client
	config     Config
	logger     zerolog.Logger

	// hookFired guards the navigation hook: one firing per established
	// session, re-armed by ResetSession.
	hookFired atomic.Bool
}

// New creates a pipeline client.
func New(cfg Config) (*Client, error) {
	if cfg.BaseURL == "" {
		return nil, fmt.Errorf("base URL is required")
	}
	if cfg.Cache == nil {
		return nil, fmt.Errorf("cache is required")
	}
	if cfg.Credentials == nil {
		return nil, fmt.Errorf("credential source is required")
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 15 * time.Second
	}
	if cfg.MaxRetries < 0 {
		cfg.MaxRetries = 0
	}
	if cfg.RetryBackoff <= 0 {
		cfg.RetryBackoff = 1 * time.Second
	}
	cfg.BaseURL = strings.TrimSuffix(cfg.BaseURL, "/")

	logger := log.With().Str("component", "storefront-api").Logger()

	return &Client{
		httpClient: &http.Client{Timeout: cfg.Timeout},
		config:     cfg,
		logger:     logger,
	}, nil
}

// Do performs a logical request with authentication gating, caching, and
// retry. This is the core method every typed service calls through.
func (c *Client) Do(ctx context.Context, req Request) (*Response, error) {
	// Step 1: fail fast for protected endpoints without a credential.
	if err := c.gate(ctx, req); err != nil {
		return nil, err
	}

	// Step 2: eligible GETs read through the cache. Concurrent misses on
	// one key are not deduplicated; overlapping callers both hit the
	// network.
	if ttl, ok := c.config.Rules.Resolve(req.Method, req.Path); ok {
		key := cache.Key(req.Path, req.Query)
		payload, err := c.config.Cache.Wrap(ctx, key, ttl, func(ctx context.Context) ([]byte, error) {
			resp, err := c.execute(ctx, req)
			if err != nil {
				return nil, err
			}
			return resp.Body, nil
		})
		if err != nil {
			return nil, err
		}
		return &Response{Status: http.StatusOK, Body: payload}, nil
	}

	return c.execute(ctx, req)
}

// DoJSON performs a request and decodes the JSON response body into out.
// A nil out discards the body.
func (c *Client) DoJSON(ctx context.Context, req Request, out any) error {
	resp, err := c.Do(ctx, req)
	if err != nil {
		return err
	}
	if out == nil || len(resp.Body) == 0 {
		return nil
	}
	if err := json.Unmarshal(resp.Body, out); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}

// ResetSession clears the credential, the persisted session keys, and the
// whole response cache without firing the navigation hook, and re-arms the
// hook for the next session. Logout and fresh logins run through here.
func (c *Client) ResetSession(ctx context.Context) error {
	if err := c.config.Credentials.Invalidate(ctx); err != nil {
		return fmt.Errorf("invalidate credential: %w", err)
	}
	c.config.Cache.ClearAll()
	c.hookFired.Store(false)

	c.logger.Debug().Msg("Session reset")
	return nil
}

// gate rejects protected calls with no credential before any network I/O
// and runs the lazy expiry re-check, so freshness never depends on the
// refresh timer alone.
func (c *Client) gate(ctx context.Context, req Request) error {
	if c.isPublic(req.Path) {
		return nil
	}

	c.config.Credentials.EnsureFresh(ctx)

	if _, ok := c.config.Credentials.Token(ctx); !ok {
		requestsTotal.WithLabelValues(req.Path, "auth_required").Inc()
		errorsTotal.WithLabelValues(string(ErrorClassAuthRequired)).Inc()
		c.logger.Debug().
			Str("endpoint", req.Path).
			Msg("Rejected protected request without credential")
		return &APIError{
			Class:   ErrorClassAuthRequired,
			Message: "Authentication required",
			Err:     ErrAuthenticationRequired,
		}
	}
	return nil
}

// execute runs the attempt loop for one logical request. Retries are
// strictly sequential; the retry descriptor is threaded by value from
// attempt to attempt.
func (c *Client) execute(ctx context.Context, req Request) (*Response, error) {
	endpoint := req.Path

	startTime := time.Now()
	defer func() {
		requestDuration.WithLabelValues(endpoint).Observe(time.Since(startTime).Seconds())
	}()

	// Encode once so every retry re-sends identical bytes.
	payload, contentType, err := encodeBody(req)
	if err != nil {
		return nil, err
	}

	target := c.config.BaseURL + req.Path
	if len(req.Query) > 0 {
		target += "?" + req.Query.Encode()
	}

	state := NewRetryState(c.config.MaxRetries)
	for {
		resp, attemptErr := c.attempt(ctx, req.Method, endpoint, target, payload, contentType)
		if attemptErr == nil {
			if state.Attempt > 0 {
				c.logger.Info().
					Str("endpoint", endpoint).
					Int("attempts", state.Attempt+1).
					Msg("Request succeeded after retry")
			}
			return resp, nil
		}

		var apiErr *APIError
		if !errors.As(attemptErr, &apiErr) {
			return nil, attemptErr
		}

		// 401 tears the session down and never retries, regardless of
		// how many retries came before it.
		if apiErr.Class == ErrorClassUnauthorized {
			c.teardown(ctx, endpoint)
			return nil, attemptErr
		}

		if !shouldRetry(apiErr.Class) {
			return nil, attemptErr
		}

		if state.Exhausted() {
			retryExhaustedTotal.WithLabelValues(string(apiErr.Class)).Inc()
			c.logger.Warn().
				Str("endpoint", endpoint).
				Str("error_class", string(apiErr.Class)).
				Int("attempts", state.Attempt+1).
				Msg("Retry attempts exhausted")
			return nil, fmt.Errorf("%w after %d attempts: %w", ErrRetryExhausted, state.Attempt+1, attemptErr)
		}

		state = state.Next()
		backoff := state.Backoff(c.config.RetryBackoff)
		retriesTotal.WithLabelValues(string(apiErr.Class)).Inc()
		retryBackoffSeconds.WithLabelValues(string(apiErr.Class)).Observe(backoff.Seconds())

		c.logger.Debug().
			Str("endpoint", endpoint).
			Str("error_class", string(apiErr.Class)).
			Int("attempt", state.Attempt).
			Dur("backoff", backoff).
			Msg("Retrying request after backoff")

		select {
		case <-ctx.Done():
			return nil, fmt.Errorf("%w: %v", ErrContextCancelled, ctx.Err())
		case <-time.After(backoff):
		}
	}
}

// attempt issues one HTTP attempt and classifies its outcome. Any response
// with status >= 400 comes back as an *APIError carrying the normalized
// message; transport failures come back as transient errors.
func (c *Client) attempt(ctx context.Context, method, endpoint, target string, payload []byte, contentType string) (*Response, error) {
	var body io.Reader
	if payload != nil {
		body = bytes.NewReader(payload)
	}

	httpReq, err := http.NewRequestWithContext(ctx, method, target, body)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}

	httpReq.Header.Set("Content-Type", contentType)
	httpReq.Header.Set("Accept", "application/json")
	if token, ok := c.config.Credentials.Token(ctx); ok {
		httpReq.Header.Set("Authorization", "Bearer "+token)
	}

	httpResp, err := c.httpClient.Do(httpReq)
	if err != nil {
		errorsTotal.WithLabelValues(string(ErrorClassTransient)).Inc()
		requestsTotal.WithLabelValues(endpoint, "network_error").Inc()
		c.logger.Warn().Err(err).Str("endpoint", endpoint).Msg("HTTP request failed")

		message, _ := normalizeMessage(nil, err)
		return nil, &APIError{Class: ErrorClassTransient, Message: message, Err: err}
	}
	defer httpResp.Body.Close()

	respBody, err := io.ReadAll(httpResp.Body)
	if err != nil {
		errorsTotal.WithLabelValues(string(ErrorClassTransient)).Inc()
		requestsTotal.WithLabelValues(endpoint, "network_error").Inc()

		message, _ := normalizeMessage(nil, err)
		return nil, &APIError{Class: ErrorClassTransient, Message: message, Err: err}
	}

	requestsTotal.WithLabelValues(endpoint, strconv.Itoa(httpResp.StatusCode)).Inc()

	if httpResp.StatusCode >= 400 {
		class := classifyStatus(httpResp.StatusCode)
		errorsTotal.WithLabelValues(string(class)).Inc()

		message, code := normalizeMessage(respBody, nil)
		c.logger.Warn().
			Str("endpoint", endpoint).
			Int("status", httpResp.StatusCode).
			Str("error_class", string(class)).
			Msg("Backend request error")

		return nil, &APIError{
			Status:  httpResp.StatusCode,
			Class:   class,
			Code:    code,
			Message: message,
		}
	}

	return &Response{
		Status: httpResp.StatusCode,
		Header: httpResp.Header,
		Body:   respBody,
	}, nil
}

// teardown purges all session state after an unrecoverable 401: the
// credential, the persisted keys, and every cached response. It runs only
// when a credential is actually present, so an anonymous 401 (a wrong login
// password, say) never empties anything. The navigation hook fires at most
// once per established session.
func (c *Client) teardown(ctx context.Context, endpoint string) {
	if _, ok := c.config.Credentials.Token(ctx); !ok {
		return
	}

	if err := c.config.Credentials.Invalidate(ctx); err != nil {
		c.logger.Warn().Err(err).Msg("Failed to invalidate credential")
	}
	c.config.Cache.ClearAll()
	sessionTeardownsTotal.Inc()

	c.logger.Warn().
		Str("endpoint", endpoint).
		Msg("Session torn down after authorization failure")

	if c.config.OnUnauthorized != nil && c.hookFired.CompareAndSwap(false, true) {
		c.config.OnUnauthorized()
	}
}

// isPublic reports whether path is on the known-public-endpoint allow-list.
func (c *Client) isPublic(path string) bool {
	for _, prefix := range c.config.PublicEndpoints {
		if strings.HasPrefix(path, prefix) {
			return true
		}
	}
	return false
}

// encodeBody serializes the request body.
func encodeBody(req Request) ([]byte, string, error) {
	switch {
	case req.Multipart != nil:
		return encodeMultipart(req.Multipart)
	case req.Body != nil:
		payload, err := json.Marshal(req.Body)
		if err != nil {
			return nil, "", fmt.Errorf("encode request body: %w", err)
		}
		return payload, "application/json", nil
	default:
		return nil, "application/json", nil
	}
}

// SetHTTPClient sets a custom HTTP client (for testing).
func (c *Client) SetHTTPClient(client *http.Client) {
	c.httpClient = client
}
