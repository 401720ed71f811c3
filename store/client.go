// Package store talks to the remote task store over its REST API.
package store

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/bytedance/sonic"
	"github.com/google/uuid"
	log "github.com/sirupsen/logrus"

	"taskflow/domain"
)

// DefaultBaseURL is the collection endpoint of a locally running store.
const DefaultBaseURL = "http://127.0.0.1:8000/api/tasks/"

const maxErrorBody = 4 * 1024

// Client issues list/create/patch/delete requests against the task collection.
type Client struct {
	base   *url.URL
	http   *http.Client
	logger *log.Logger
	now    func() time.Time
}

// Option configures a Client.
type Option func(*Client)

// WithHTTPClient replaces the underlying HTTP client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.http = hc }
}

// WithTimeout sets the per-request timeout of the default HTTP client.
func WithTimeout(d time.Duration) Option {
	return func(c *Client) { c.http.Timeout = d }
}

// WithLogger sets the logger used for request metrics.
func WithLogger(l *log.Logger) Option {
	return func(c *Client) { c.logger = l }
}

// New creates a client for the collection at baseURL.
func New(baseURL string, opts ...Option) (*Client, error) {
	u, err := url.Parse(baseURL)
	if err != nil {
		return nil, fmt.Errorf("parse base url: %w", err)
	}
	if u.Scheme == "" || u.Host == "" {
		return nil, fmt.Errorf("base url %q must be absolute", baseURL)
	}
	if !strings.HasSuffix(u.Path, "/") {
		u.Path += "/"
	}
	c := &Client{
		base:   u,
		http:   &http.Client{},
		logger: log.StandardLogger(),
		now:    time.Now,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

// BaseURL returns the normalized collection URL.
func (c *Client) BaseURL() string {
	return c.base.String()
}

// List fetches every task. A time-based query parameter defeats
// intermediate caches.
func (c *Client) List(ctx context.Context) ([]domain.Task, error) {
	u := *c.base
	q := u.Query()
	q.Set("t", strconv.FormatInt(c.now().UnixMilli(), 10))
	u.RawQuery = q.Encode()

	var tasks []domain.Task
	if err := c.do(ctx, "list", http.MethodGet, u.String(), nil, &tasks); err != nil {
		return nil, err
	}
	if tasks == nil {
		tasks = []domain.Task{}
	}
	return tasks, nil
}

// Create posts a new task and returns it with its server-assigned id.
func (c *Client) Create(ctx context.Context, in domain.TaskInput) (domain.Task, error) {
	var created domain.Task
	if err := c.do(ctx, "create", http.MethodPost, c.base.String(), in, &created); err != nil {
		return domain.Task{}, err
	}
	return created, nil
}

// Patch sends a partial update for the task with the given id.
func (c *Client) Patch(ctx context.Context, id int64, p domain.Patch) (domain.Task, error) {
	var updated domain.Task
	if err := c.do(ctx, "patch", http.MethodPatch, c.itemURL(id), p, &updated); err != nil {
		return domain.Task{}, err
	}
	return updated, nil
}

// Delete removes the task with the given id.
func (c *Client) Delete(ctx context.Context, id int64) error {
	return c.do(ctx, "delete", http.MethodDelete, c.itemURL(id), nil, nil)
}

func (c *Client) itemURL(id int64) string {
	u := *c.base
	u.Path = u.Path + strconv.FormatInt(id, 10) + "/"
	return u.String()
}

func (c *Client) do(ctx context.Context, op, method, target string, body, out any) (err error) {
	requestID := uuid.NewString()
	metrics, ctx := newRequestMetrics(ctx, c.logger, op, method, requestID)
	status := 0
	defer func() {
		metrics.Log(status, err)
	}()

	var reader io.Reader
	if body != nil {
		data, mErr := sonic.ConfigStd.Marshal(body)
		if mErr != nil {
			metrics.SetErrorStage("encode_request")
			return fmt.Errorf("%s: encode request: %w", op, mErr)
		}
		reader = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, target, reader)
	if err != nil {
		metrics.SetErrorStage("build_request")
		return fmt.Errorf("%s: %w", op, err)
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("X-Request-ID", requestID)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	sendStart := time.Now()
	resp, err := c.http.Do(req)
	metrics.ObserveSend(time.Since(sendStart))
	if err != nil {
		metrics.SetErrorStage("transport")
		return fmt.Errorf("%s: %w", op, err)
	}
	defer resp.Body.Close()
	status = resp.StatusCode

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		metrics.SetErrorStage("status")
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
		return &StatusError{Method: method, URL: target, StatusCode: resp.StatusCode, Body: strings.TrimSpace(string(msg))}
	}
	if out == nil {
		_, _ = io.Copy(io.Discard, resp.Body)
		return nil
	}

	decodeStart := time.Now()
	dec := sonic.ConfigStd.NewDecoder(resp.Body)
	if err := dec.Decode(out); err != nil {
		metrics.SetErrorStage("decode_response")
		return fmt.Errorf("%s: decode response: %w", op, err)
	}
	metrics.ObserveDecode(time.Since(decodeStart))
	if tasks, ok := out.(*[]domain.Task); ok {
		metrics.SetTasksReturned(len(*tasks))
	}
	return nil
}
