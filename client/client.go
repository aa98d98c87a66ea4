package client

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/google/uuid"
	sgerrors "github.com/jrsteele09/go-session-guard/internal/errors"
	"github.com/jrsteele09/go-session-guard/internal/metrics"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/trace"
)

const (
	tracerName = "github.com/jrsteele09/go-session-guard/client"

	RequestIDHeader = "X-Request-ID"

	DefaultTimeout = 30 * time.Second
)

// TokenProvider is the token service as seen by the client.
type TokenProvider interface {
	GetValidToken(ctx context.Context) (string, error)
	// RefreshStaleToken forces a refresh unless the held token already moved past rejected.
	RefreshStaleToken(ctx context.Context, rejected string) (string, error)
}

// SessionClearer wipes the session after a terminal authentication failure.
type SessionClearer interface {
	ClearAll(ctx context.Context) error
}

type Navigator interface {
	NavigateToLogin()
}

// RequestOptions describe one backend call. A non-nil Body is sent as JSON.
type RequestOptions struct {
	Method  string
	Query   url.Values
	Headers http.Header
	Body    any
}

// Client issues authenticated backend requests. A 401 triggers one forced
// refresh and one replay; a second 401 or a failed refresh ends the session.
type Client struct {
	baseURL    string
	tokens     TokenProvider
	session    SessionClearer
	nav        Navigator
	httpClient *http.Client
	logger     zerolog.Logger
	metrics    *metrics.Metrics
	tracer     trace.Tracer
}

type Option func(*Client)

func WithHTTPClient(httpClient *http.Client) Option {
	return func(c *Client) {
		c.httpClient = httpClient
	}
}

func WithLogger(logger zerolog.Logger) Option {
	return func(c *Client) {
		c.logger = logger
	}
}

func WithMetrics(m *metrics.Metrics) Option {
	return func(c *Client) {
		c.metrics = m
	}
}

func WithTracer(tracer trace.Tracer) Option {
	return func(c *Client) {
		c.tracer = tracer
	}
}

func New(baseURL string, tokens TokenProvider, session SessionClearer, nav Navigator, options ...Option) *Client {
	c := &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		tokens:  tokens,
		session: session,
		nav:     nav,
		logger:  log.Logger,
	}
	for _, opt := range options {
		opt(c)
	}
	if c.httpClient == nil {
		c.httpClient = &http.Client{Timeout: DefaultTimeout}
	}
	if c.tracer == nil {
		c.tracer = otel.Tracer(tracerName)
	}
	return c
}

func (c *Client) Get(ctx context.Context, path string, query url.Values, out any) error {
	return c.Request(ctx, path, RequestOptions{Method: http.MethodGet, Query: query}, out)
}

func (c *Client) Post(ctx context.Context, path string, body, out any) error {
	return c.Request(ctx, path, RequestOptions{Method: http.MethodPost, Body: body}, out)
}

func (c *Client) Put(ctx context.Context, path string, body, out any) error {
	return c.Request(ctx, path, RequestOptions{Method: http.MethodPut, Body: body}, out)
}

func (c *Client) Patch(ctx context.Context, path string, body, out any) error {
	return c.Request(ctx, path, RequestOptions{Method: http.MethodPatch, Body: body}, out)
}

func (c *Client) Delete(ctx context.Context, path string, out any) error {
	return c.Request(ctx, path, RequestOptions{Method: http.MethodDelete}, out)
}

// Request performs one logical call: at most two HTTP attempts, the second only
// after a 401 and a successful forced refresh. A 2xx body is decoded into out
// when out is non-nil; 204 leaves out untouched.
func (c *Client) Request(ctx context.Context, path string, opts RequestOptions, out any) error {
	method := opts.Method
	if method == "" {
		method = http.MethodGet
	}

	ctx, span := c.tracer.Start(ctx, "sessionguard.request",
		trace.WithSpanKind(trace.SpanKindClient),
		trace.WithAttributes(
			attribute.String("http.request.method", method),
			attribute.String("url.path", path),
		),
	)
	defer span.End()

	err := c.request(ctx, span, method, path, opts, out)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		c.metrics.Request(metrics.OutcomeFailure)
		return err
	}
	c.metrics.Request(metrics.OutcomeSuccess)
	return nil
}

func (c *Client) request(ctx context.Context, span trace.Span, method, path string, opts RequestOptions, out any) error {
	access, err := c.tokens.GetValidToken(ctx)
	if err != nil {
		if sgerrors.Is(err, sgerrors.ErrRefreshFailed) {
			c.terminate(ctx, "access token could not be renewed")
		}
		return sgerrors.Wrapf(err, "[Client Request] %s %s token", method, path)
	}
	if access == "" {
		return sgerrors.Wrapf(sgerrors.ErrAuthenticationRequired, "[Client Request] %s %s", method, path)
	}

	target, err := c.resolve(path, opts.Query)
	if err != nil {
		return sgerrors.Wrapf(err, "[Client Request] %s %s", method, path)
	}

	var body []byte
	if opts.Body != nil {
		if body, err = json.Marshal(opts.Body); err != nil {
			return sgerrors.Wrapf(err, "[Client Request] %s %s encode body", method, path)
		}
	}

	status, respBody, err := c.send(ctx, method, target, opts.Headers, body, access)
	if err != nil {
		return sgerrors.Wrapf(err, "[Client Request] %s %s", method, path)
	}

	if status == http.StatusUnauthorized {
		c.logger.Info().Str("method", method).Str("path", path).Msg("request rejected with 401, forcing refresh")
		span.AddEvent("forced_refresh")

		access, err = c.tokens.RefreshStaleToken(ctx, access)
		if err != nil {
			if sgerrors.Is(err, sgerrors.ErrRefreshFailed) {
				c.terminate(ctx, "forced refresh failed")
			}
			return sgerrors.Wrapf(err, "[Client Request] %s %s refresh", method, path)
		}

		c.metrics.Replay()
		span.SetAttributes(attribute.Bool("sessionguard.replayed", true))
		status, respBody, err = c.send(ctx, method, target, opts.Headers, body, access)
		if err != nil {
			return sgerrors.Wrapf(err, "[Client Request] %s %s replay", method, path)
		}
		if status == http.StatusUnauthorized {
			c.terminate(ctx, "replay rejected with 401")
			return sgerrors.Wrapf(&sgerrors.ReplayFailedError{StatusCode: status, Body: string(respBody)}, "[Client Request] %s %s", method, path)
		}
	}

	span.SetAttributes(attribute.Int("http.response.status_code", status))
	return decode(status, respBody, out)
}

// send performs a single attempt. Caller headers are applied first so the
// Authorization header always carries the session token.
func (c *Client) send(ctx context.Context, method, target string, headers http.Header, body []byte, access string) (int, []byte, error) {
	var reader io.Reader
	if body != nil {
		reader = bytes.NewReader(body)
	}
	req, err := http.NewRequestWithContext(ctx, method, target, reader)
	if err != nil {
		return 0, nil, fmt.Errorf("build request: %w", err)
	}

	for name, values := range headers {
		for _, v := range values {
			req.Header.Add(name, v)
		}
	}
	if req.Header.Get("Accept") == "" {
		req.Header.Set("Accept", "application/json")
	}
	if body != nil && req.Header.Get("Content-Type") == "" {
		req.Header.Set("Content-Type", "application/json")
	}
	requestID := uuid.New().String()
	req.Header.Set(RequestIDHeader, requestID)
	otel.GetTextMapPropagator().Inject(ctx, propagation.HeaderCarrier(req.Header))
	req.Header.Set("Authorization", "Bearer "+access)

	started := time.Now()
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return 0, nil, err
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return 0, nil, fmt.Errorf("read response: %w", err)
	}
	c.logger.Debug().
		Str("request_id", requestID).
		Str("method", method).
		Str("url", req.URL.Redacted()).
		Int("status", resp.StatusCode).
		Dur("elapsed", time.Since(started)).
		Msg("backend request")
	return resp.StatusCode, respBody, nil
}

func (c *Client) terminate(ctx context.Context, reason string) {
	c.metrics.TerminalFailure()
	c.logger.Warn().Str("reason", reason).Msg("session ended, redirecting to login")
	if err := c.session.ClearAll(context.WithoutCancel(ctx)); err != nil {
		log.Err(err).Msg("failed to clear session")
	}
	c.nav.NavigateToLogin()
}

func (c *Client) resolve(path string, query url.Values) (string, error) {
	if !strings.HasPrefix(path, "/") {
		path = "/" + path
	}
	u, err := url.Parse(c.baseURL + path)
	if err != nil {
		return "", fmt.Errorf("parse url: %w", err)
	}
	if len(query) > 0 {
		q := u.Query()
		for key, values := range query {
			for _, v := range values {
				q.Add(key, v)
			}
		}
		u.RawQuery = q.Encode()
	}
	return u.String(), nil
}

func decode(status int, body []byte, out any) error {
	if status < 200 || status > 299 {
		return &sgerrors.RequestFailedError{StatusCode: status, Body: string(body)}
	}
	if status == http.StatusNoContent || out == nil || len(bytes.TrimSpace(body)) == 0 {
		return nil
	}
	if err := json.Unmarshal(body, out); err != nil {
		return fmt.Errorf("[Client Request] decode response: %w", err)
	}
	return nil
}
