// Package gateway talks to the captcha backend: one POST to generate a
// challenge, one POST to verify an answer. Every failure it returns is a
// classified *captcha.Error so the session can tell a rejected generation, a
// broken exchange and a negative verification apart.
package gateway

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"

	"captchaclient/internal/captcha"
	"captchaclient/internal/logging"
)

const (
	GeneratePath = "/api/captcha/generate"
	VerifyPath   = "/api/captcha/verify"

	// RequestIDHeader correlates a client request with backend logs.
	RequestIDHeader = "X-Request-ID"

	maxBodyBytes = 8 << 20
)

const (
	msgNetwork        = "Network error, please try again"
	msgBadResponse    = "The server sent an unreadable response"
	msgGenerateFailed = "Failed to generate captcha"
	msgVerifyFailed   = "Verification error"
)

// Client is the HTTP gateway to the captcha backend.
type Client struct {
	baseURL  string
	client   *http.Client
	validate *validator.Validate
	log      *logging.Logger
}

// Option customizes a Client.
type Option func(*Client)

// WithHTTPClient replaces the underlying HTTP client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.client = hc }
}

// New creates a client for the backend at baseURL.
func New(baseURL string, timeout time.Duration, opts ...Option) *Client {
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	c := &Client{
		baseURL:  strings.TrimRight(baseURL, "/"),
		client:   &http.Client{Timeout: timeout},
		validate: validator.New(validator.WithRequiredStructEnabled()),
		log:      logging.Get(logging.CategoryGateway),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// BaseURL returns the backend base URL.
func (c *Client) BaseURL() string { return c.baseURL }

// Generate asks the backend for a new challenge of variant v.
func (c *Client) Generate(ctx context.Context, v captcha.Variant) (*captcha.Challenge, error) {
	if !v.Valid() {
		return nil, captcha.NewValidationError("Unsupported captcha type", fmt.Errorf("%w: %q", captcha.ErrUnsupportedVariant, v))
	}

	var resp captcha.GenerateResponse
	status, err := c.post(ctx, GeneratePath, captcha.GenerateRequest{CaptchaType: v}, &resp)
	if err != nil {
		return nil, err
	}

	if resp.Code != 0 {
		msg := resp.Message
		if msg == "" {
			msg = msgGenerateFailed
		}
		c.log.Warn("generate %s rejected: code=%d message=%q", v, resp.Code, resp.Message)
		return nil, captcha.NewGenerationError(msg)
	}
	if status/100 != 2 {
		return nil, captcha.NewTransportError(msgBadResponse, fmt.Errorf("server returned status %d", status))
	}
	if resp.Data == nil {
		return nil, captcha.NewTransportError(msgBadResponse, fmt.Errorf("%w: missing data", captcha.ErrMalformedResponse))
	}
	if err := c.validate.Struct(resp.Data); err != nil {
		return nil, captcha.NewTransportError(msgBadResponse, fmt.Errorf("%w: %v", captcha.ErrMalformedResponse, err))
	}

	ch, err := captcha.DecodeChallenge(v, resp.Data)
	if err != nil {
		return nil, captcha.NewTransportError(msgBadResponse, err)
	}
	if err := c.validate.Struct(ch.Payload()); err != nil {
		return nil, captcha.NewTransportError(msgBadResponse, fmt.Errorf("%w: %v", captcha.ErrMalformedResponse, err))
	}

	c.log.With("captcha_id", ch.ID).Info("generated %s", v)
	return ch, nil
}

// Verify submits an answer. It returns the backend's verdict; a negative
// verdict is not an error.
func (c *Client) Verify(ctx context.Context, req captcha.VerifyRequest) (bool, error) {
	if req.CaptchaID == "" {
		return false, captcha.NewValidationError("Please generate a captcha first", captcha.ErrNoSession)
	}

	var resp captcha.VerifyResponse
	status, err := c.post(ctx, VerifyPath, req, &resp)
	if err != nil {
		return false, err
	}

	if status/100 != 2 || resp.Code != 0 {
		msg := msgVerifyFailed
		if resp.Message != "" {
			msg = msgVerifyFailed + ": " + resp.Message
		}
		c.log.Warn("verify %s failed: status=%d code=%d message=%q", req.CaptchaID, status, resp.Code, resp.Message)
		return false, captcha.NewTransportError(msg, fmt.Errorf("server returned status %d code %d", status, resp.Code))
	}
	if err := c.validate.Struct(resp); err != nil {
		return false, captcha.NewTransportError(msgBadResponse, fmt.Errorf("%w: %v", captcha.ErrMalformedResponse, err))
	}

	c.log.With("captcha_id", req.CaptchaID).Info("verified %s: valid=%t", req.CaptchaType, *resp.Valid)
	return *resp.Valid, nil
}

// post sends body as JSON and decodes the reply into out whatever the
// status, since the backend reports errors in the same envelope. A reply
// that cannot be decoded is a transport error.
func (c *Client) post(ctx context.Context, path string, body, out any) (int, error) {
	payload, err := json.Marshal(body)
	if err != nil {
		return 0, captcha.NewTransportError(msgNetwork, fmt.Errorf("failed to marshal request: %w", err))
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewReader(payload))
	if err != nil {
		return 0, captcha.NewTransportError(msgNetwork, fmt.Errorf("failed to create request: %w", err))
	}
	requestID := uuid.NewString()
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Accept", "application/json")
	httpReq.Header.Set(RequestIDHeader, requestID)

	log := c.log.With("request_id", requestID, "path", path)
	start := time.Now()
	resp, err := c.client.Do(httpReq)
	if err != nil {
		log.Warn("request failed: %v", err)
		return 0, captcha.NewTransportError(msgNetwork, fmt.Errorf("captcha request failed: %w", err))
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
	if err != nil {
		return resp.StatusCode, captcha.NewTransportError(msgNetwork, fmt.Errorf("failed to read response: %w", err))
	}
	log.Debug("status %d in %s (%d bytes)", resp.StatusCode, time.Since(start), len(data))

	if err := json.Unmarshal(data, out); err != nil {
		return resp.StatusCode, captcha.NewTransportError(msgBadResponse,
			fmt.Errorf("%w: status %d: %v: %s", captcha.ErrMalformedResponse, resp.StatusCode, err, snippet(data)))
	}
	return resp.StatusCode, nil
}

func snippet(b []byte) string {
	s := strings.TrimSpace(string(b))
	if len(s) > 200 {
		return s[:200] + "..."
	}
	return s
}
