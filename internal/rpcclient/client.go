// Package rpcclient talks to a chirp JSON-RPC endpoint. It implements the same
// method sets as the in-process services so the web client can run against a
// remote API.
package rpcclient

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"sync/atomic"
	"time"

	"go.opentelemetry.io/otel/propagation"
	"go.uber.org/zap"

	"github.com/steemit/chirp/internal/db"
	"github.com/steemit/chirp/internal/service"
	"github.com/steemit/chirp/pkg/config"
	"github.com/steemit/chirp/pkg/logging"
	"github.com/steemit/chirp/pkg/telemetry"
)

// JSON-RPC codes the server assigns to application errors
const (
	codeInvalidParams = -32602
	codeUnauthorized  = -32001
	codeNotFound      = -32004
)

var (
	// ErrNotFound is matched by errors for unknown tweets and users
	ErrNotFound = errors.New("not found")
	// ErrInvalidParams is matched by errors for rejected input
	ErrInvalidParams = errors.New("invalid params")
)

// Error is an error returned by the remote endpoint
type Error struct {
	Code    int             `json:"code"`
	Message string          `json:"message"`
	Data    json.RawMessage `json:"data,omitempty"`
}

func (e *Error) Error() string {
	if len(e.Data) > 0 {
		var detail string
		if json.Unmarshal(e.Data, &detail) == nil && detail != "" {
			return fmt.Sprintf("rpc error %d: %s: %s", e.Code, e.Message, detail)
		}
	}
	return fmt.Sprintf("rpc error %d: %s", e.Code, e.Message)
}

// Is maps the well-known codes onto the errors the local services return
func (e *Error) Is(target error) bool {
	switch e.Code {
	case codeUnauthorized:
		return target == service.ErrUnauthorized
	case codeNotFound:
		return target == ErrNotFound || target == db.ErrTweetNotFound || target == db.ErrUserNotFound
	case codeInvalidParams:
		return target == ErrInvalidParams
	}
	return false
}

type request struct {
	JSONRPC string      `json:"jsonrpc"`
	ID      int64       `json:"id"`
	Method  string      `json:"method"`
	Params  interface{} `json:"params,omitempty"`
}

type response struct {
	ID     int64           `json:"id"`
	Result json.RawMessage `json:"result"`
	Error  *Error          `json:"error"`
}

type tokenKey struct{}

// WithToken attaches the viewer's session token to calls made with ctx
func WithToken(ctx context.Context, token string) context.Context {
	return context.WithValue(ctx, tokenKey{}, token)
}

func tokenFrom(ctx context.Context) string {
	token, _ := ctx.Value(tokenKey{}).(string)
	return token
}

// Client calls a chirp JSON-RPC endpoint
type Client struct {
	url    string
	http   *http.Client
	nextID atomic.Int64
	logger *zap.Logger
}

// New creates a client for the configured endpoint
func New(cfg *config.APIConfig) (*Client, error) {
	if cfg.URL == "" {
		return nil, fmt.Errorf("api_url is required")
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	client := NewWithHTTPClient(cfg.URL, &http.Client{Timeout: timeout})
	client.logger.Info("RPC client initialized", zap.String("url", cfg.URL))
	return client, nil
}

// NewWithHTTPClient creates a client using hc for transport
func NewWithHTTPClient(url string, hc *http.Client) *Client {
	return &Client{
		url:    url,
		http:   hc,
		logger: logging.WithComponent("rpc-client"),
	}
}

// Call invokes method and decodes the result into dest (which may be nil).
// The session token in ctx, if any, is sent as a Bearer credential.
func (c *Client) Call(ctx context.Context, method string, params interface{}, dest interface{}) error {
	ctx, span := telemetry.StartSpan(ctx, "rpc."+method)
	defer span.End()

	body, err := json.Marshal(request{
		JSONRPC: "2.0",
		ID:      c.nextID.Add(1),
		Method:  method,
		Params:  params,
	})
	if err != nil {
		return fmt.Errorf("failed to encode %s request: %w", method, err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.url, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("failed to build %s request: %w", method, err)
	}
	req.Header.Set("Content-Type", "application/json")
	if token := tokenFrom(ctx); token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	propagation.TraceContext{}.Inject(ctx, propagation.HeaderCarrier(req.Header))

	start := time.Now()
	resp, err := c.http.Do(req)
	if err != nil {
		span.RecordError(err)
		return fmt.Errorf("%s: %w", method, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		snippet, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return fmt.Errorf("%s: unexpected status %d: %s", method, resp.StatusCode, bytes.TrimSpace(snippet))
	}

	var out response
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return fmt.Errorf("failed to decode %s response: %w", method, err)
	}
	c.logger.Debug("RPC call",
		zap.String("method", method),
		zap.Duration("took", time.Since(start)))

	if out.Error != nil {
		span.RecordError(out.Error)
		return out.Error
	}
	if dest == nil || len(out.Result) == 0 {
		return nil
	}
	if err := json.Unmarshal(out.Result, dest); err != nil {
		return fmt.Errorf("failed to decode %s result: %w", method, err)
	}
	return nil
}
