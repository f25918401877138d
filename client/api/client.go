// Package api is the HTTP client of the Educafric REST API used by the offline client.
package api

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/pkg/errors"

	"github.com/simonmuehling/educafric-app-sub019/core/academic"
	"github.com/simonmuehling/educafric-app-sub019/core/school"
)

// HeaderClientTempID carries the client temp id that makes creates idempotent.
const HeaderClientTempID = "X-Client-Temp-Id"

// StatusError is returned when the server answered with a non 2xx status.
type StatusError struct {
	Code    int
	Message string
	Fields  map[string]interface{}
}

func (e *StatusError) Error() string {
	if e.Message != "" {
		return fmt.Sprintf("server answered %d: %s", e.Code, e.Message)
	}
	if len(e.Fields) > 0 {
		return fmt.Sprintf("server answered %d: %v", e.Code, e.Fields)
	}
	return fmt.Sprintf("server answered %d", e.Code)
}

// StatusCode returns the status of err when it wraps a StatusError, 0 otherwise.
func StatusCode(err error) int {
	var se *StatusError
	if errors.As(err, &se) {
		return se.Code
	}
	return 0
}

type Client struct {
	baseURL    string
	httpClient *http.Client

	mu    sync.RWMutex
	token string
}

type Option func(*Client)

// WithHTTPClient replaces the default client, to plug a caching transport for instance.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.httpClient = hc }
}

func New(baseURL, token string, opts ...Option) *Client {
	c := &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		token:      token,
		httpClient: &http.Client{Timeout: 30 * time.Second},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

func (c *Client) BaseURL() string {
	return c.baseURL
}

func (c *Client) SetToken(token string) {
	c.mu.Lock()
	c.token = token
	c.mu.Unlock()
}

func (c *Client) getToken() string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.token
}

func (c *Client) do(ctx context.Context, method, path string, header http.Header, body, result interface{}) (int, error) {
	var bodyReader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return 0, errors.Wrap(err, "marshaling request body")
		}
		bodyReader = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, bodyReader)
	if err != nil {
		return 0, errors.Wrap(err, "creating request")
	}
	for k, vals := range header {
		req.Header[k] = vals
	}
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if token := c.getToken(); token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return 0, errors.Wrapf(err, "executing request %s %s", method, path)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return resp.StatusCode, errors.Wrap(err, "reading response body")
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		se := &StatusError{Code: resp.StatusCode}
		var payload map[string]interface{}
		if json.Unmarshal(respBody, &payload) == nil {
			if msg, ok := payload["error"].(string); ok && len(payload) == 1 {
				se.Message = msg
			} else {
				se.Fields = payload
			}
		}
		return resp.StatusCode, se
	}

	if result == nil || resp.StatusCode == http.StatusNoContent {
		return resp.StatusCode, nil
	}
	if err = json.Unmarshal(respBody, result); err != nil {
		return resp.StatusCode, errors.Wrapf(err, "unmarshaling response from %s %s", method, path)
	}
	return resp.StatusCode, nil
}

func modulePath(module string, id ...string) string {
	p := "/api/" + url.PathEscape(module)
	if len(id) > 0 {
		p += "/" + url.PathEscape(id[0])
	}
	return p
}

// Login exchanges credentials for a token, kept for the next requests.
func (c *Client) Login(ctx context.Context, username, password string) (string, error) {
	var resp struct {
		Token string `json:"token"`
	}
	body := map[string]string{"username": username, "password": password}
	if _, err := c.do(ctx, http.MethodPost, "/api/users/login", nil, body, &resp); err != nil {
		return "", err
	}
	c.SetToken(resp.Token)
	return resp.Token, nil
}

// List returns the records of module, only those updated after since when not zero.
func (c *Client) List(ctx context.Context, module string, since int64) ([]academic.Record, error) {
	path := modulePath(module)
	if since > 0 {
		path += "?since=" + strconv.FormatInt(since, 10)
	}
	var recs []academic.Record
	if _, err := c.do(ctx, http.MethodGet, path, nil, nil, &recs); err != nil {
		return nil, err
	}
	return recs, nil
}

// Create posts a new record. Replaying tempID returns the record created the first time.
func (c *Client) Create(ctx context.Context, module string, data academic.Data, tempID string) (academic.Record, error) {
	header := make(http.Header)
	if tempID != "" {
		header.Set(HeaderClientTempID, tempID)
	}
	if data == nil {
		data = academic.Data{}
	}
	var rec academic.Record
	_, err := c.do(ctx, http.MethodPost, modulePath(module), header, data, &rec)
	return rec, err
}

// Update merges data into the record, a nil value removes the key.
func (c *Client) Update(ctx context.Context, module, id string, data academic.Data) (academic.Record, error) {
	if data == nil {
		data = academic.Data{}
	}
	var rec academic.Record
	_, err := c.do(ctx, http.MethodPatch, modulePath(module, id), nil, data, &rec)
	return rec, err
}

func (c *Client) Delete(ctx context.Context, module, id string) error {
	_, err := c.do(ctx, http.MethodDelete, modulePath(module, id), nil, nil, nil)
	return err
}

// Health probes the API, an error means the server is unreachable or unhealthy.
func (c *Client) Health(ctx context.Context) error {
	_, err := c.do(ctx, http.MethodGet, "/api/health", nil, nil, nil)
	return err
}

// CurrentSchool returns the school of the logged in user.
func (c *Client) CurrentSchool(ctx context.Context) (school.School, error) {
	var sch school.School
	_, err := c.do(ctx, http.MethodGet, "/api/schools/current", nil, nil, &sch)
	return sch, err
}
