package backend

import (
	"bytes"
	"context"
	"crypto/tls"
	"crypto/x509"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/rflorenc/search-admin/internal/metrics"
	"github.com/rflorenc/search-admin/internal/session"
)

// Reason is the failure a backend call resolves to. Status 0 means the request
// never got an HTTP response (network failure); anything else is the server's
// non-2xx status.
type Reason struct {
	Status  int    `json:"status"`
	Message string `json:"message"`
}

func (r *Reason) Error() string {
	return r.Message
}

// Network reports whether the call failed before the backend answered.
func (r *Reason) Network() bool {
	return r.Status == 0
}

// Options configures transport details of a Client.
type Options struct {
	Insecure bool   // skip TLS verification
	CACert   string // PEM bundle
	Metrics  *metrics.Metrics

	// HTTPClient is shared by every Client built with these options so that
	// sessions reuse one connection pool. nil gives each Client its own.
	HTTPClient *http.Client
}

// Connection pool limits of the backend transport.
const (
	idleConnTimeout     = 90 * time.Second
	maxIdleConnsPerHost = 16
)

// NewHTTPClient builds the HTTP client backend calls go through, honouring the
// TLS settings in opts.
func NewHTTPClient(opts Options) *http.Client {
	transport := &http.Transport{
		Proxy:               http.ProxyFromEnvironment,
		IdleConnTimeout:     idleConnTimeout,
		MaxIdleConnsPerHost: maxIdleConnsPerHost,
	}
	if opts.Insecure {
		transport.TLSClientConfig = &tls.Config{InsecureSkipVerify: true}
	} else if opts.CACert != "" {
		caCertPool := x509.NewCertPool()
		if caCertPool.AppendCertsFromPEM([]byte(opts.CACert)) {
			transport.TLSClientConfig = &tls.Config{RootCAs: caCertPool}
		}
	}
	return &http.Client{Transport: transport}
}

// Client calls the search backend's admin API on behalf of one session.
type Client struct {
	baseURL    string
	session    *session.Session
	httpClient *http.Client
	metrics    *metrics.Metrics
}

// NewClient creates a Client for baseURL that authenticates with sess.
func NewClient(baseURL string, sess *session.Session, opts Options) *Client {
	httpClient := opts.HTTPClient
	if httpClient == nil {
		httpClient = NewHTTPClient(opts)
	}
	return &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		session:    sess,
		httpClient: httpClient,
		metrics:    opts.Metrics,
	}
}

// Session returns the session the client authenticates with.
func (c *Client) Session() *session.Session {
	return c.session
}

// Fetch performs a body-less request (GET, DELETE) and decodes the response
// into dest when dest is non-nil.
func (c *Client) Fetch(ctx context.Context, method, path string, dest interface{}) error {
	return c.do(ctx, method, path, nil, dest, true)
}

// Send performs a request with a JSON body and decodes the response into dest
// when dest is non-nil.
func (c *Client) Send(ctx context.Context, method, path string, payload, dest interface{}) error {
	return c.do(ctx, method, path, payload, dest, true)
}

func (c *Client) do(ctx context.Context, method, path string, payload, dest interface{}, auth bool) error {
	method = strings.ToUpper(method)

	var token string
	if auth {
		token = c.session.Token()
		if token == "" {
			return session.ErrNoSession
		}
	}

	var bodyReader io.Reader
	if payload != nil {
		data, err := json.Marshal(payload)
		if err != nil {
			return fmt.Errorf("marshaling body: %w", err)
		}
		bodyReader = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, bodyReader)
	if err != nil {
		return fmt.Errorf("creating request: %w", err)
	}
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	req.Header.Set("Accept", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	endpoint := EndpointLabel(path)
	start := time.Now()
	resp, err := c.httpClient.Do(req)
	if err != nil {
		c.metrics.RecordBackendRequest(method, endpoint, 0, time.Since(start))
		if ctxErr := ctx.Err(); ctxErr != nil {
			return ctxErr
		}
		log.Debug().Err(err).Str("method", method).Str("path", path).Msg("Backend request failed")
		return &Reason{Message: fmt.Sprintf("%s %s: %v", method, path, err)}
	}
	defer resp.Body.Close()
	c.metrics.RecordBackendRequest(method, endpoint, resp.StatusCode, time.Since(start))

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return &Reason{Status: resp.StatusCode, Message: fmt.Sprintf("reading response: %v", err)}
	}

	log.Debug().
		Str("method", method).
		Str("path", path).
		Int("status", resp.StatusCode).
		Dur("duration", time.Since(start)).
		Msg("Backend request")

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return &Reason{Status: resp.StatusCode, Message: reasonMessage(resp.StatusCode, body)}
	}

	if dest == nil {
		return nil
	}
	if msg, ok := dest.(*string); ok {
		*msg = confirmation(body)
		return nil
	}
	if err := json.Unmarshal(body, dest); err != nil {
		return &Reason{Status: resp.StatusCode, Message: fmt.Sprintf("parsing response: %v", err)}
	}
	return nil
}

// reasonMessage extracts a human-readable message from an error body. The
// backend answers {"message": "..."}; anything else is shown truncated.
func reasonMessage(status int, body []byte) string {
	var payload struct {
		Message string `json:"message"`
		Error   string `json:"error"`
	}
	if err := json.Unmarshal(body, &payload); err == nil {
		if payload.Message != "" {
			return payload.Message
		}
		if payload.Error != "" {
			return payload.Error
		}
	}
	text := strings.TrimSpace(string(body))
	if text == "" {
		return fmt.Sprintf("HTTP %d: %s", status, http.StatusText(status))
	}
	return truncate(text, 200)
}

// confirmation turns a mutation response into the notice text. JSON strings
// are unquoted, {"message": ...} objects unwrapped, everything else kept raw.
func confirmation(body []byte) string {
	var s string
	if err := json.Unmarshal(body, &s); err == nil {
		return s
	}
	var payload struct {
		Message string `json:"message"`
	}
	if err := json.Unmarshal(body, &payload); err == nil && payload.Message != "" {
		return payload.Message
	}
	return strings.TrimSpace(string(body))
}

// EndpointLabel collapses the resource id out of an admin API path so metric
// labels stay bounded: /api/admin/index/abc/flush -> /api/admin/index/:id/flush.
func EndpointLabel(path string) string {
	if i := strings.IndexByte(path, '?'); i >= 0 {
		path = path[:i]
	}
	parts := strings.Split(strings.Trim(path, "/"), "/")
	if len(parts) >= 4 && parts[0] == "api" && parts[1] == "admin" {
		parts[3] = ":id"
	}
	return "/" + strings.Join(parts, "/")
}

// IsReason reports whether err is a backend Reason and returns it.
func IsReason(err error) (*Reason, bool) {
	var r *Reason
	if errors.As(err, &r) {
		return r, true
	}
	return nil, false
}

func truncate(s string, maxLen int) string {
	if len(s) <= maxLen {
		return s
	}
	return s[:maxLen] + "..."
}
