package client

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

const (
	defaultTimeout    = 10 * time.Second
	idempotentRetries = 2
	retryBaseDelay    = 100 * time.Millisecond
)

// Client is the HTTP transport shared by the cart and order bindings. It owns
// error-kind mapping, 401 session teardown and bounded retry for idempotent
// reads. Non-idempotent calls are never retried here; checkout relies on its
// idempotency key instead.
type Client struct {
	baseURL    string
	httpClient *http.Client
	session    *Session
}

func New(baseURL string, session *Session) *Client {
	return &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{Timeout: defaultTimeout},
		session:    session,
	}
}

type call struct {
	method     string
	path       string
	body       any
	headers    map[string]string
	idempotent bool
	// notFoundOK turns a 404 into a nil-error miss (used for cart reads,
	// where absence is a valid state).
	notFoundOK bool
}

// do runs the call, decoding a 2xx JSON body into out when out is non-nil.
// The boolean result is false when notFoundOK absorbed a 404.
func (c *Client) do(ctx context.Context, req call, out any) (bool, error) {
	var lastErr error

	attempts := 1
	if req.idempotent {
		attempts += idempotentRetries
	}

	for attempt := 0; attempt < attempts; attempt++ {
		if attempt > 0 {
			delay := retryBaseDelay << (attempt - 1)
			select {
			case <-ctx.Done():
				return false, wrapError(KindTransient, ctx.Err())
			case <-time.After(delay):
			}
		}

		found, err := c.doOnce(ctx, req, out)
		if err == nil {
			return found, nil
		}
		lastErr = err

		// Only transient failures are worth another attempt.
		if !IsKind(err, KindTransient) {
			return false, err
		}
	}

	return false, lastErr
}

func (c *Client) doOnce(ctx context.Context, req call, out any) (bool, error) {
	var bodyReader io.Reader
	if req.body != nil {
		raw, err := json.Marshal(req.body)
		if err != nil {
			return false, wrapError(KindValidation, fmt.Errorf("failed to encode request body: %w", err))
		}
		bodyReader = bytes.NewReader(raw)
	}

	httpReq, err := http.NewRequestWithContext(ctx, req.method, c.baseURL+req.path, bodyReader)
	if err != nil {
		return false, wrapError(KindValidation, err)
	}

	if req.body != nil {
		httpReq.Header.Set("Content-Type", "application/json")
	}
	if token := c.session.bearerToken(); token != "" {
		httpReq.Header.Set("Authorization", "Bearer "+token)
	}
	for k, v := range req.headers {
		httpReq.Header.Set(k, v)
	}

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return false, wrapError(KindTransient, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 200 && resp.StatusCode < 300 {
		if out != nil {
			if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
				return false, wrapError(KindTransient, fmt.Errorf("failed to decode response: %w", err))
			}
		}
		return true, nil
	}

	if req.notFoundOK && resp.StatusCode == http.StatusNotFound {
		return false, nil
	}

	return false, c.errorFromResponse(resp)
}

func (c *Client) errorFromResponse(resp *http.Response) error {
	message := ""
	var body struct {
		Error string `json:"error"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&body); err == nil {
		message = body.Error
	}
	if message == "" {
		message = http.StatusText(resp.StatusCode)
	}

	switch {
	case resp.StatusCode == http.StatusUnauthorized:
		// Process-wide teardown: every 401, from any call, kills the session.
		c.session.Invalidate()
		return newError(KindSessionExpired, message)
	case resp.StatusCode == http.StatusNotFound:
		return newError(KindNotFound, message)
	case resp.StatusCode == http.StatusConflict:
		return newError(KindConflict, message)
	case resp.StatusCode >= 500:
		return newError(KindTransient, message)
	default:
		return newError(KindValidation, message)
	}
}
