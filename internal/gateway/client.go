package gateway

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
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/kjstillabower/weather-zones/internal/observability"
)

// TokenSource supplies the current bearer token at send time, so token
// rotation takes effect on the next call. The session store satisfies this.
type TokenSource interface {
	Token() string
}

// Config configures a Client.
type Config struct {
	BaseURL string
	Timeout time.Duration
	// Tokens supplies the bearer credential; nil means always unauthenticated.
	Tokens TokenSource
	// OnUnauthorized is invoked for a 401 response to a request that carried
	// a bearer credential. A 401 on an unauthenticated request (a failed
	// login) never triggers it.
	OnUnauthorized func()
	// Limiter, when non-nil, paces outbound calls.
	Limiter *rate.Limiter
	Logger  *zap.Logger
}

// Client is the single choke point for every remote call: it attaches the
// bearer credential, stamps a correlation id, and translates every failure
// into the Kind taxonomy. It never retries; that is the cache engine's job.
type Client struct {
	baseURL        *url.URL
	http           *http.Client
	tokens         TokenSource
	onUnauthorized func()
	limiter        *rate.Limiter
	logger         *zap.Logger
}

// New validates the base URL and builds a Client. Timeout defaults to 15s.
func New(cfg Config) (*Client, error) {
	base, err := url.Parse(strings.TrimRight(cfg.BaseURL, "/"))
	if err != nil {
		return nil, fmt.Errorf("invalid base URL: %w", err)
	}
	if base.Scheme == "" || base.Host == "" {
		return nil, fmt.Errorf("base URL must be absolute, got %q", cfg.BaseURL)
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 15 * time.Second
	}
	logger := cfg.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Client{
		baseURL:        base,
		http:           &http.Client{Timeout: timeout},
		tokens:         cfg.Tokens,
		onUnauthorized: cfg.OnUnauthorized,
		limiter:        cfg.Limiter,
		logger:         logger,
	}, nil
}

// Do sends one request and returns the raw success payload. body is JSON
// encoded when non-nil; query is appended to the path. Every failure comes
// back as a *Error.
func (c *Client) Do(ctx context.Context, method, path string, body any, query url.Values) (json.RawMessage, error) {
	requestID := uuid.New().String()

	if c.limiter != nil {
		if err := c.limiter.Wait(ctx); err != nil {
			return nil, &Error{Kind: KindNetwork, Code: "network", Message: "Request cancelled", RequestID: requestID, cause: err}
		}
	}

	req, sentBearer, err := c.buildRequest(ctx, method, path, body, query, requestID)
	if err != nil {
		return nil, err
	}

	start := time.Now()
	resp, err := c.http.Do(req)
	if err != nil {
		observability.GatewayRequestsTotal.WithLabelValues(method, "error").Inc()
		observability.GatewayRequestDuration.WithLabelValues(method, "error").Observe(time.Since(start).Seconds())
		c.logger.Debug("request failed",
			zap.String("method", method),
			zap.String("path", path),
			zap.String("request_id", requestID),
			zap.Error(err))
		return nil, &Error{
			Kind:      KindNetwork,
			Code:      "network",
			Message:   "Network error, please try again",
			RequestID: requestID,
			cause:     err,
		}
	}
	defer resp.Body.Close()

	status := observability.StatusLabel(resp.StatusCode)
	observability.GatewayRequestsTotal.WithLabelValues(method, status).Inc()
	observability.GatewayRequestDuration.WithLabelValues(method, status).Observe(time.Since(start).Seconds())

	payload, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, &Error{Kind: KindNetwork, Code: "network", Message: "Network error, please try again", Status: resp.StatusCode, RequestID: requestID, cause: err}
	}

	c.logger.Debug("request completed",
		zap.String("method", method),
		zap.String("path", path),
		zap.Int("status", resp.StatusCode),
		zap.String("request_id", requestID),
		zap.Duration("duration", time.Since(start)))

	if resp.StatusCode >= 200 && resp.StatusCode < 300 {
		return payload, nil
	}

	if resp.StatusCode == http.StatusUnauthorized && sentBearer && c.onUnauthorized != nil {
		c.onUnauthorized()
	}

	code, message := parseErrorBody(payload)
	return nil, &Error{
		Kind:      kindForStatus(resp.StatusCode),
		Code:      code,
		Message:   message,
		Status:    resp.StatusCode,
		RequestID: requestID,
	}
}

// Get issues a GET with an optional query string.
func (c *Client) Get(ctx context.Context, path string, query url.Values) (json.RawMessage, error) {
	return c.Do(ctx, http.MethodGet, path, nil, query)
}

// Post issues a POST with a JSON body.
func (c *Client) Post(ctx context.Context, path string, body any) (json.RawMessage, error) {
	return c.Do(ctx, http.MethodPost, path, body, nil)
}

// Patch issues a PATCH with a JSON body.
func (c *Client) Patch(ctx context.Context, path string, body any) (json.RawMessage, error) {
	return c.Do(ctx, http.MethodPatch, path, body, nil)
}

// Delete issues a DELETE.
func (c *Client) Delete(ctx context.Context, path string) (json.RawMessage, error) {
	return c.Do(ctx, http.MethodDelete, path, nil, nil)
}

func (c *Client) buildRequest(ctx context.Context, method, path string, body any, query url.Values, requestID string) (*http.Request, bool, error) {
	target := *c.baseURL
	target.Path = strings.TrimRight(target.Path, "/") + "/" + strings.TrimLeft(path, "/")
	if query != nil {
		target.RawQuery = query.Encode()
	}

	var reader io.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		if err != nil {
			return nil, false, &Error{Kind: KindUnknown, Code: "unknown", Message: unknownMessage, RequestID: requestID, cause: err}
		}
		reader = bytes.NewReader(raw)
	}

	req, err := http.NewRequestWithContext(ctx, method, target.String(), reader)
	if err != nil {
		return nil, false, &Error{Kind: KindUnknown, Code: "unknown", Message: unknownMessage, RequestID: requestID, cause: err}
	}

	req.Header.Set("Accept", "application/json")
	req.Header.Set("X-Request-ID", requestID)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	sentBearer := false
	if c.tokens != nil {
		if token := c.tokens.Token(); token != "" {
			req.Header.Set("Authorization", "Bearer "+token)
			sentBearer = true
		}
	}

	return req, sentBearer, nil
}

// parseErrorBody extracts {code, message} from an error response, tolerating
// any other shape with a generic fallback.
func parseErrorBody(payload []byte) (code, message string) {
	var body struct {
		Code    string `json:"code"`
		Message string `json:"message"`
	}
	if err := json.Unmarshal(payload, &body); err == nil && body.Code != "" && body.Message != "" {
		return body.Code, body.Message
	}
	return "unknown", unknownMessage
}
