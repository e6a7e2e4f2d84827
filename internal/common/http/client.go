// internal/common/http/client.go
package http

import (
	"bytes"
	"context"
	"encoding/json"
	stderrors "errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/url"
	"strings"
	"time"

	"land-marketplace/internal/common/config"
	"land-marketplace/internal/common/errors"
	"land-marketplace/internal/common/logger"
	"land-marketplace/internal/common/metrics"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/trace"
)

const (
	maxResponseBytes = 8 << 20
	tracerName       = "land-marketplace/api-client"
)

// TokenSource supplies the opaque session token for authenticated calls.
type TokenSource interface {
	Token() string
}

// Recorder receives per-request timings.
type Recorder interface {
	RecordRequest(ctx context.Context, endpoint, outcome string, duration time.Duration)
}

// Request describes one call against the marketplace API. Path is relative to the
// configured base URL.
type Request struct {
	Method string
	Path   string
	Query  url.Values
	Body   interface{}
	Auth   bool
}

// Client issues public and authenticated JSON calls and normalizes failures into
// *errors.StandardError.
type Client struct {
	baseURL     string
	tokenHeader string
	userAgent   string
	httpClient  *http.Client
	tokens      TokenSource
	recorder    Recorder
	tracer      trace.Tracer
	logger      logger.Logger
}

type Option func(*Client)

func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) {
		c.httpClient = hc
	}
}

func WithRecorder(r Recorder) Option {
	return func(c *Client) {
		c.recorder = r
	}
}

// WithTracerProvider replaces the global otel tracer provider for request spans.
func WithTracerProvider(tp trace.TracerProvider) Option {
	return func(c *Client) {
		c.tracer = tp.Tracer(tracerName)
	}
}

func NewClient(cfg config.APIConfig, log logger.Logger, opts ...Option) *Client {
	tokenHeader := cfg.TokenHeader
	if tokenHeader == "" {
		tokenHeader = "token"
	}
	c := &Client{
		baseURL:     strings.TrimSuffix(cfg.BaseURL, "/"),
		tokenHeader: tokenHeader,
		userAgent:   cfg.UserAgent,
		httpClient: &http.Client{
			Timeout: config.GetDuration(cfg.Timeout),
		},
		tracer: otel.Tracer(tracerName),
		logger: log.WithFields(map[string]interface{}{"component": "api-client"}),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// WithTokenSource returns a copy of the client that can issue authenticated calls.
func (c *Client) WithTokenSource(ts TokenSource) *Client {
	cp := *c
	cp.tokens = ts
	return &cp
}

func (c *Client) Get(ctx context.Context, path string, query url.Values, auth bool, out interface{}) error {
	return c.Do(ctx, Request{Method: http.MethodGet, Path: path, Query: query, Auth: auth}, out)
}

func (c *Client) Post(ctx context.Context, path string, body interface{}, auth bool, out interface{}) error {
	return c.Do(ctx, Request{Method: http.MethodPost, Path: path, Body: body, Auth: auth}, out)
}

func (c *Client) Put(ctx context.Context, path string, query url.Values, body interface{}, auth bool, out interface{}) error {
	return c.Do(ctx, Request{Method: http.MethodPut, Path: path, Query: query, Body: body, Auth: auth}, out)
}

// Do performs req and decodes a 2xx JSON body into out (when out is non-nil).
// out may be a *json.RawMessage to defer decoding to Unwrap; an empty body then
// leaves it nil.
func (c *Client) Do(ctx context.Context, req Request, out interface{}) error {
	kind := metrics.KindPublic
	token := ""
	if req.Auth {
		kind = metrics.KindAuthenticated
		if c.tokens != nil {
			token = c.tokens.Token()
		}
		if token == "" {
			metrics.APIRequestsTotal.WithLabelValues(kind, metrics.OutcomeFailed).Inc()
			return errors.NewAuthenticationRequiredError(fmt.Sprintf("no session token for %s", req.Path))
		}
	}

	ctx, span := c.tracer.Start(ctx, "marketplace "+req.Path,
		trace.WithSpanKind(trace.SpanKindClient),
		trace.WithAttributes(
			attribute.String("http.request.method", req.Method),
			attribute.String("url.path", req.Path),
			attribute.Bool("marketplace.authenticated", req.Auth),
		),
	)
	defer span.End()

	httpReq, err := c.newRequest(ctx, req, token)
	if err != nil {
		endSpan(span, err)
		return err
	}
	otel.GetTextMapPropagator().Inject(ctx, propagation.HeaderCarrier(httpReq.Header))

	requestID := httpReq.Header.Get("X-Request-ID")
	log := c.logger.WithFields(map[string]interface{}{
		"requestId": requestID,
		"method":    req.Method,
		"endpoint":  req.Path,
	})

	start := time.Now()
	err = c.execute(ctx, httpReq, req.Path, out)
	elapsed := time.Since(start)

	outcome := metrics.OutcomeSuccess
	if err != nil {
		outcome = metrics.OutcomeFailed
	}
	metrics.APIRequestsTotal.WithLabelValues(kind, outcome).Inc()
	metrics.APIRequestDuration.WithLabelValues(kind).Observe(elapsed.Seconds())
	if c.recorder != nil {
		c.recorder.RecordRequest(ctx, req.Path, outcome, elapsed)
	}
	span.SetAttributes(attribute.String("http.request.id", requestID))
	endSpan(span, err)

	if err != nil {
		log.Warn("api request failed", map[string]interface{}{
			"error":      err.Error(),
			"category":   errors.GetErrorCategory(errors.Normalize(err).Code),
			"durationMs": elapsed.Milliseconds(),
		})
		return err
	}

	log.Debug("api request completed", map[string]interface{}{
		"durationMs": elapsed.Milliseconds(),
	})
	return nil
}

func (c *Client) newRequest(ctx context.Context, req Request, token string) (*http.Request, error) {
	endpoint := c.baseURL + "/" + strings.TrimPrefix(req.Path, "/")
	if len(req.Query) > 0 {
		endpoint += "?" + req.Query.Encode()
	}

	var body io.Reader
	if req.Body != nil {
		payload, err := json.Marshal(req.Body)
		if err != nil {
			return nil, errors.NewValidationError("request body could not be encoded", map[string]string{"body": err.Error()})
		}
		body = bytes.NewReader(payload)
	}

	method := req.Method
	if method == "" {
		method = http.MethodGet
	}

	httpReq, err := http.NewRequestWithContext(ctx, method, endpoint, body)
	if err != nil {
		return nil, errors.NewTransportError(req.Path, err)
	}

	httpReq.Header.Set("Accept", "application/json")
	if body != nil {
		httpReq.Header.Set("Content-Type", "application/json")
	}
	if c.userAgent != "" {
		httpReq.Header.Set("User-Agent", c.userAgent)
	}
	if token != "" {
		httpReq.Header.Set(c.tokenHeader, token)
	}
	httpReq.Header.Set("X-Request-ID", uuid.NewString())

	return httpReq, nil
}

func (c *Client) execute(ctx context.Context, httpReq *http.Request, path string, out interface{}) error {
	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		if isTimeout(ctx, err) {
			return errors.NewTimeoutError(path, err)
		}
		return errors.NewTransportError(path, err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		if isTimeout(ctx, err) {
			return errors.NewTimeoutError(path, err)
		}
		return errors.NewTransportError(path, err)
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return statusError(path, resp.StatusCode, raw)
	}

	if out == nil {
		return nil
	}
	empty := len(bytes.TrimSpace(raw)) == 0
	if rawOut, ok := out.(*json.RawMessage); ok {
		if empty {
			*rawOut = nil
			return nil
		}
		*rawOut = append((*rawOut)[:0], raw...)
		return nil
	}
	if empty {
		return errors.NewUnexpectedShapeError("body", "empty response body")
	}
	if err := json.Unmarshal(raw, out); err != nil {
		return errors.NewUnexpectedShapeError("body", err.Error())
	}
	return nil
}

// statusError maps a non-2xx response to a StandardError using the backend's
// {"error": "..."} body when present.
func statusError(path string, status int, raw []byte) error {
	var body struct {
		Error   string `json:"error"`
		Message string `json:"message"`
	}
	_ = json.Unmarshal(raw, &body)
	msg := body.Error
	if msg == "" {
		msg = body.Message
	}

	if status == http.StatusUnauthorized || status == http.StatusForbidden {
		e := errors.NewAuthenticationRequiredError(fmt.Sprintf("endpoint: %s, status: %d", path, status))
		if msg != "" {
			e.Message = msg
		}
		return e.WithMetadata("status", status)
	}
	return errors.NewServerError(path, status, msg)
}

func endSpan(span trace.Span, err error) {
	if err == nil {
		span.SetStatus(codes.Ok, "")
		return
	}
	stdErr := errors.Normalize(err)
	span.RecordError(err)
	span.SetStatus(codes.Error, string(stdErr.Code))
	if status, ok := stdErr.Metadata["status"].(int); ok {
		span.SetAttributes(attribute.Int("http.response.status_code", status))
	}
}

func isTimeout(ctx context.Context, err error) bool {
	if stderrors.Is(err, context.DeadlineExceeded) || stderrors.Is(ctx.Err(), context.DeadlineExceeded) {
		return true
	}
	var netErr net.Error
	return stderrors.As(err, &netErr) && netErr.Timeout()
}
