package shopapi

import (
	"bytes"
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

	"github.com/ariefcatur/go-shopora-console/internal/metrics"
	"github.com/sony/gobreaker/v2"
)

const DefaultBaseURL = "http://localhost:5000/api"

var (
	// ErrTransport covers failures where no HTTP response was received.
	ErrTransport = errors.New("backend unreachable")
	// ErrUnavailable is returned while the circuit breaker is open.
	ErrUnavailable = errors.New("backend temporarily unavailable")
)

// APIError is a request the backend answered and rejected.
type APIError struct {
	StatusCode int
	Message    string
}

func (e *APIError) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("backend returned %d", e.StatusCode)
	}
	return fmt.Sprintf("backend returned %d: %s", e.StatusCode, e.Message)
}

func (e *APIError) NotFound() bool { return e.StatusCode == http.StatusNotFound }

// Rejected reports a definitive refusal: the request was understood and nothing was done.
// Timeouts, conflicts and throttling are not refusals.
func (e *APIError) Rejected() bool {
	switch e.StatusCode {
	case http.StatusRequestTimeout, http.StatusConflict, http.StatusTooManyRequests:
		return false
	}
	return e.StatusCode >= 400 && e.StatusCode < 500
}

// StatusCode extracts the backend status from err, or 0.
func StatusCode(err error) int {
	var apiErr *APIError
	if errors.As(err, &apiErr) {
		return apiErr.StatusCode
	}
	return 0
}

type Option func(*Client)

func WithHTTPClient(hc *http.Client) Option { return func(c *Client) { c.http = hc } }
func WithLogger(l *slog.Logger) Option      { return func(c *Client) { c.log = l } }
func WithTimeout(d time.Duration) Option    { return func(c *Client) { c.timeout = d } }

// WithBreaker trips the breaker after n consecutive failures and lets a trial request through after cooldown.
func WithBreaker(n uint32, cooldown time.Duration) Option {
	return func(c *Client) {
		c.tripAfter = n
		c.cooldown = cooldown
	}
}

// Client talks to the Shopora REST backend. It never retries.
type Client struct {
	base      *url.URL
	http      *http.Client
	log       *slog.Logger
	timeout   time.Duration
	token     string
	tripAfter uint32
	cooldown  time.Duration
	cb        *gobreaker.CircuitBreaker[*response]
}

type response struct {
	code int
	body []byte
}

func New(baseURL string, opts ...Option) (*Client, error) {
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	u, err := url.Parse(strings.TrimRight(baseURL, "/"))
	if err != nil {
		return nil, fmt.Errorf("parse backend url: %w", err)
	}
	if u.Scheme == "" || u.Host == "" {
		return nil, fmt.Errorf("backend url %q must be absolute", baseURL)
	}

	c := &Client{
		base:      u,
		http:      &http.Client{},
		log:       slog.Default(),
		timeout:   10 * time.Second,
		tripAfter: 5,
		cooldown:  15 * time.Second,
	}
	for _, o := range opts {
		o(c)
	}
	c.cb = gobreaker.NewCircuitBreaker[*response](gobreaker.Settings{
		Name:    "shopora-backend",
		Timeout: c.cooldown,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= c.tripAfter
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			c.log.Warn("circuit breaker state changed", "breaker", name, "from", from.String(), "to", to.String())
		},
	})
	return c, nil
}

// WithToken returns a client that sends the session's bearer token. The breaker is shared.
func (c *Client) WithToken(token string) *Client {
	cp := *c
	cp.token = token
	return &cp
}

// do sends one request. route is the path template used as the metrics label, so ids in
// path never become label values.
func (c *Client) do(ctx context.Context, method, route, path string, query url.Values, in any, out any, header http.Header) error {
	var body []byte
	if in != nil {
		b, err := json.Marshal(in)
		if err != nil {
			return fmt.Errorf("encode %s %s: %w", method, path, err)
		}
		body = b
	}

	u := *c.base
	u.Path = c.base.Path + path
	if len(query) > 0 {
		u.RawQuery = query.Encode()
	}

	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	start := time.Now()
	resp, err := c.cb.Execute(func() (*response, error) {
		req, err := http.NewRequestWithContext(ctx, method, u.String(), bytes.NewReader(body))
		if err != nil {
			return nil, err
		}
		req.Header.Set("Accept", "application/json")
		if body != nil {
			req.Header.Set("Content-Type", "application/json")
		}
		if c.token != "" {
			req.Header.Set("Authorization", "Bearer "+c.token)
		}
		for k, vs := range header {
			for _, v := range vs {
				req.Header.Add(k, v)
			}
		}

		hr, err := c.http.Do(req)
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrTransport, err)
		}
		defer hr.Body.Close()
		b, err := io.ReadAll(io.LimitReader(hr.Body, 8<<20))
		if err != nil {
			return nil, fmt.Errorf("%w: read body: %v", ErrTransport, err)
		}
		r := &response{code: hr.StatusCode, body: b}
		if hr.StatusCode >= 500 {
			// counted by the breaker, unwrapped below
			return r, apiError(r)
		}
		return r, nil
	})

	code := "error"
	if resp != nil {
		code = strconv.Itoa(resp.code)
	}
	metrics.BackendRequests.WithLabelValues(method, route, code).Observe(time.Since(start).Seconds())

	if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
		return fmt.Errorf("%s %s: %w", method, path, ErrUnavailable)
	}
	if err != nil {
		return fmt.Errorf("%s %s: %w", method, path, err)
	}
	if resp.code >= 400 {
		return fmt.Errorf("%s %s: %w", method, path, apiError(resp))
	}
	if out == nil || len(bytes.TrimSpace(resp.body)) == 0 {
		return nil
	}
	if err := decode(resp.body, out); err != nil {
		return fmt.Errorf("decode %s %s: %w", method, path, err)
	}
	return nil
}

func apiError(r *response) *APIError {
	var body struct {
		Error   string `json:"error"`
		Message string `json:"message"`
	}
	_ = json.Unmarshal(r.body, &body)
	msg := body.Error
	if msg == "" {
		msg = body.Message
	}
	return &APIError{StatusCode: r.code, Message: msg}
}

// decode accepts both a bare payload and one wrapped as {"data": ...}.
func decode(b []byte, out any) error {
	trimmed := bytes.TrimSpace(b)
	if len(trimmed) > 0 && trimmed[0] == '{' {
		var env map[string]json.RawMessage
		if err := json.Unmarshal(trimmed, &env); err == nil {
			if data, ok := env["data"]; ok && len(env) == 1 {
				return json.Unmarshal(data, out)
			}
		}
	}
	return json.Unmarshal(trimmed, out)
}
