package client

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/time/rate"
)

// DefaultBaseURL is the clinic backend used when none is configured.
const DefaultBaseURL = "http://localhost:3000/api/v1"

// DefaultTimeout bounds every request that does not set its own deadline.
const DefaultTimeout = 10 * time.Second

const maxBodySize = 4 << 20 // 4 MB

// RequestHook runs on every hooked request before it is sent.
type RequestHook func(req *http.Request)

// Sender issues a request through the full pipeline, hooks included.
type Sender func(req *http.Request) (*http.Response, error)

// ResponseHook inspects a response before the caller sees it. It may return a
// different response, for example by re-issuing req through resend.
type ResponseHook func(req *http.Request, resp *http.Response, resend Sender) (*http.Response, error)

// Client is the clinic API client. One Client is shared by every view.
type Client struct {
	baseURL    string
	timeout    time.Duration
	httpClient *http.Client
	limiter    *rate.Limiter
	log        zerolog.Logger

	mu        sync.RWMutex
	headers   http.Header
	reqHooks  []RequestHook
	respHooks []ResponseHook
}

// Option configures a Client.
type Option func(*Client)

// WithHTTPClient replaces the underlying http.Client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.httpClient = hc }
}

// WithTimeout sets the default per-request deadline.
func WithTimeout(d time.Duration) Option {
	return func(c *Client) {
		if d > 0 {
			c.timeout = d
		}
	}
}

// WithRateLimit caps outgoing requests at rps per second with the given burst.
// A non-positive rps disables limiting.
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

// WithLogger sets the request logger.
func WithLogger(l zerolog.Logger) Option {
	return func(c *Client) { c.log = l }
}

// New creates a new API client. An empty baseURL selects DefaultBaseURL.
func New(baseURL string, opts ...Option) *Client {
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	c := &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		timeout:    DefaultTimeout,
		httpClient: &http.Client{},
		log:        zerolog.Nop(),
		headers:    http.Header{},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// BaseURL returns the API root the client talks to.
func (c *Client) BaseURL() string { return c.baseURL }

// SetDefaultHeader sets a header applied to every hooked request.
func (c *Client) SetDefaultHeader(key, value string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.headers.Set(key, value)
}

// ClearDefaultHeader removes a default header.
func (c *Client) ClearDefaultHeader(key string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.headers.Del(key)
}

// DefaultHeader returns the current value of a default header.
func (c *Client) DefaultHeader(key string) string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.headers.Get(key)
}

// OnRequest registers an outgoing hook.
func (c *Client) OnRequest(h RequestHook) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.reqHooks = append(c.reqHooks, h)
}

// OnResponse registers an incoming hook.
func (c *Client) OnResponse(h ResponseHook) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.respHooks = append(c.respHooks, h)
}

type call struct {
	method  string
	path    string
	body    any
	out     any
	timeout time.Duration
	bare    bool // no default headers, no hooks
}

func (c *Client) get(ctx context.Context, path string, out any) error {
	return c.doRequest(ctx, call{method: http.MethodGet, path: path, out: out})
}

func (c *Client) post(ctx context.Context, path string, body, out any) error {
	return c.doRequest(ctx, call{method: http.MethodPost, path: path, body: body, out: out})
}

func (c *Client) put(ctx context.Context, path string, body, out any) error {
	return c.doRequest(ctx, call{method: http.MethodPut, path: path, body: body, out: out})
}

func (c *Client) delete(ctx context.Context, path string) error {
	return c.doRequest(ctx, call{method: http.MethodDelete, path: path})
}

func (c *Client) doRequest(ctx context.Context, cl call) error {
	timeout := cl.timeout
	if timeout <= 0 {
		timeout = c.timeout
	}
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	var reqBody io.Reader
	if cl.body != nil {
		data, err := json.Marshal(cl.body)
		if err != nil {
			return fmt.Errorf("marshal body: %w", err)
		}
		reqBody = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, cl.method, c.baseURL+cl.path, reqBody)
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	if cl.body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	var resp *http.Response
	if cl.bare {
		resp, err = c.transmit(req)
	} else {
		resp, err = c.roundTrip(req)
	}
	if err != nil {
		return err
	}
	defer resp.Body.Close() //nolint:errcheck // best-effort close

	if resp.StatusCode >= 400 {
		return readHTTPError(resp)
	}

	if cl.out != nil {
		if err := json.NewDecoder(io.LimitReader(resp.Body, maxBodySize)).Decode(cl.out); err != nil {
			if ctx.Err() != nil {
				return &NetworkError{Err: ctx.Err()}
			}
			return &PayloadError{Reason: "decode response", Err: err}
		}
	}
	return nil
}

// roundTrip sends req with default headers and hooks applied.
func (c *Client) roundTrip(req *http.Request) (*http.Response, error) {
	c.mu.RLock()
	for k, v := range c.headers {
		req.Header[k] = append([]string(nil), v...)
	}
	reqHooks := append([]RequestHook(nil), c.reqHooks...)
	respHooks := append([]ResponseHook(nil), c.respHooks...)
	c.mu.RUnlock()

	for _, h := range reqHooks {
		h(req)
	}

	resp, err := c.transmit(req)
	if err != nil {
		return nil, err
	}
	for _, h := range respHooks {
		resp, err = h(req, resp, c.roundTrip)
		if err != nil {
			return nil, err
		}
	}
	return resp, nil
}

// transmit puts req on the wire exactly as it is.
func (c *Client) transmit(req *http.Request) (*http.Response, error) {
	if req.GetBody != nil {
		body, err := req.GetBody()
		if err != nil {
			return nil, fmt.Errorf("rewind body: %w", err)
		}
		req.Body = body
	}
	if c.limiter != nil {
		if err := c.limiter.Wait(req.Context()); err != nil {
			return nil, &NetworkError{Err: err}
		}
	}

	start := time.Now()
	resp, err := c.httpClient.Do(req)
	ev := c.log.Debug().
		Str("method", req.Method).
		Str("path", req.URL.Path).
		Str("request_id", req.Header.Get("X-Request-ID")).
		Dur("elapsed", time.Since(start))
	if err != nil {
		ev.Err(err).Msg("request failed")
		if ctxErr := req.Context().Err(); ctxErr != nil {
			return nil, &NetworkError{Err: ctxErr}
		}
		return nil, &NetworkError{Err: err}
	}
	ev.Int("status", resp.StatusCode).Msg("request")
	return resp, nil
}

func readHTTPError(resp *http.Response) error {
	respBody, readErr := io.ReadAll(io.LimitReader(resp.Body, 1<<20)) // 1 MB max error body
	if readErr != nil {
		return &HTTPError{StatusCode: resp.StatusCode, Message: fmt.Sprintf("failed to read body: %v", readErr)}
	}
	var apiErr struct {
		Error   any    `json:"error"`
		Message string `json:"message"`
	}
	if json.Unmarshal(respBody, &apiErr) == nil {
		switch e := apiErr.Error.(type) {
		case string:
			if e != "" {
				return &HTTPError{StatusCode: resp.StatusCode, Message: e}
			}
		case map[string]any:
			if m, ok := e["message"].(string); ok && m != "" {
				return &HTTPError{StatusCode: resp.StatusCode, Message: m}
			}
		}
		if apiErr.Message != "" {
			return &HTTPError{StatusCode: resp.StatusCode, Message: apiErr.Message}
		}
	}
	msg := strings.TrimSpace(string(respBody))
	if msg == "" {
		msg = http.StatusText(resp.StatusCode)
	}
	return &HTTPError{StatusCode: resp.StatusCode, Message: msg}
}
