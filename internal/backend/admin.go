package backend

import (
	"context"
	"net/http"
	"net/url"

	"github.com/rflorenc/search-admin/internal/models"
)

const adminPrefix = "/api/admin/"

func keyPath(key string) string { return adminPrefix + "key/" + url.PathEscape(key) }
func mappingPath(index string) string { return adminPrefix + "mapping/" + url.PathEscape(index) }
func indexPath(index string) string { return adminPrefix + "index/" + url.PathEscape(index) }

// ListKeys returns all API keys, keyed by key.
func (c *Client) ListKeys(ctx context.Context) (map[string]*models.APIKey, error) {
	keys := make(map[string]*models.APIKey)
	if err := c.Fetch(ctx, http.MethodGet, adminPrefix+"keys", &keys); err != nil {
		return nil, err
	}
	return keys, nil
}

func (c *Client) GetKey(ctx context.Context, key string) (*models.APIKey, error) {
	var k models.APIKey
	if err := c.Fetch(ctx, http.MethodGet, keyPath(key), &k); err != nil {
		return nil, err
	}
	return &k, nil
}

func (c *Client) CreateKey(ctx context.Context, k *models.APIKey) (string, error) {
	var msg string
	err := c.Send(ctx, http.MethodPost, adminPrefix+"key", models.KeyPayload{API: k}, &msg)
	return msg, err
}

func (c *Client) UpdateKey(ctx context.Context, key string, k *models.APIKey) (string, error) {
	var msg string
	err := c.Send(ctx, http.MethodPut, keyPath(key), models.KeyPayload{API: k}, &msg)
	return msg, err
}

func (c *Client) DeleteKey(ctx context.Context, key string) (string, error) {
	var msg string
	err := c.Fetch(ctx, http.MethodDelete, keyPath(key), &msg)
	return msg, err
}

// ListMappings returns every configured mapping, keyed by index id.
func (c *Client) ListMappings(ctx context.Context) (map[string]*models.Mapping, error) {
	mappings := make(map[string]*models.Mapping)
	if err := c.Fetch(ctx, http.MethodGet, adminPrefix+"mappings", &mappings); err != nil {
		return nil, err
	}
	return mappings, nil
}

func (c *Client) GetMapping(ctx context.Context, index string) (*models.Mapping, error) {
	var m models.Mapping
	if err := c.Fetch(ctx, http.MethodGet, mappingPath(index), &m); err != nil {
		return nil, err
	}
	return &m, nil
}

func (c *Client) CreateMapping(ctx context.Context, index string, m *models.Mapping) (string, error) {
	var msg string
	err := c.Send(ctx, http.MethodPost, mappingPath(index), m, &msg)
	return msg, err
}

func (c *Client) UpdateMapping(ctx context.Context, index string, m *models.Mapping) (string, error) {
	var msg string
	err := c.Send(ctx, http.MethodPut, mappingPath(index), m, &msg)
	return msg, err
}

func (c *Client) DeleteMapping(ctx context.Context, index string) (string, error) {
	var msg string
	err := c.Fetch(ctx, http.MethodDelete, mappingPath(index), &msg)
	return msg, err
}

// ListIndexes returns the status of every active index, keyed by index id.
func (c *Client) ListIndexes(ctx context.Context) (map[string]*models.IndexStatus, error) {
	indexes := make(map[string]*models.IndexStatus)
	if err := c.Fetch(ctx, http.MethodGet, adminPrefix+"indexes", &indexes); err != nil {
		return nil, err
	}
	return indexes, nil
}

// FlushIndex asks the backend to drop all indexed data. The backend
// acknowledges before the flush has finished.
func (c *Client) FlushIndex(ctx context.Context, index string) (string, error) {
	var msg string
	err := c.Fetch(ctx, http.MethodGet, indexPath(index)+"/flush", &msg)
	return msg, err
}

// ActivateIndex asks the backend to start indexing. Acknowledged before the
// index is live.
func (c *Client) ActivateIndex(ctx context.Context, index string) (string, error) {
	var msg string
	err := c.Fetch(ctx, http.MethodGet, indexPath(index)+"/activate", &msg)
	return msg, err
}

func (c *Client) DeactivateIndex(ctx context.Context, index string) (string, error) {
	var msg string
	err := c.Fetch(ctx, http.MethodDelete, indexPath(index), &msg)
	return msg, err
}

// Credentials is the login request body.
type Credentials struct {
	User     string `json:"user"`
	Password string `json:"password"`
}

// LoginMessage is shown for every failed login, whatever the cause.
const LoginMessage = "Error: Invalid user or password"

// Login exchanges credentials for a token and stores it on the client's
// session. On any failure the session is cleared and a Reason carrying
// LoginMessage is returned; the underlying error is wrapped for logs.
func (c *Client) Login(ctx context.Context, creds Credentials) error {
	var resp struct {
		Token string `json:"token"`
	}
	err := c.do(ctx, http.MethodPost, "/login", creds, &resp, false)
	if err == nil && resp.Token == "" {
		err = &Reason{Status: http.StatusOK, Message: "login response missing token"}
	}
	if err != nil {
		c.session.Clear()
		status := 0
		if r, ok := IsReason(err); ok {
			status = r.Status
		}
		return &LoginError{Reason: Reason{Status: status, Message: LoginMessage}, Cause: err}
	}
	c.session.SetToken(resp.Token)
	return nil
}

// Logout forgets the session token. The backend keeps no login state.
func (c *Client) Logout() {
	c.session.Clear()
}

// LoginError is the failure Login returns.
type LoginError struct {
	Reason
	Cause error
}

func (e *LoginError) Error() string { return e.Reason.Message }
func (e *LoginError) Unwrap() error { return e.Cause }
