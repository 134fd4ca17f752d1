// Package client talks to the settings REST api. Provider adds a
// stale-while-revalidate snapshot cache on top of it.
package client

import (
	"context"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/go-resty/resty/v2"

	"github.com/quillblog/quill/internal/logger/adapter/stdlogger"
)

const (
	defaultTimeout = 10 * time.Second

	headerActorID    = "X-Actor-ID"
	headerActorName  = "X-Actor-Name"
	headerActorEmail = "X-Actor-Email"
)

// Client is a settings api client.
type Client struct {
	http *resty.Client
}

// Option configures a Client.
type Option func(*resty.Client)

// WithActor attributes every write to actor.
func WithActor(actor Actor) Option {
	return func(r *resty.Client) {
		if actor.ID != "" {
			r.SetHeader(headerActorID, actor.ID)
		}

		if actor.Name != "" {
			r.SetHeader(headerActorName, actor.Name)
		}

		if actor.Email != "" {
			r.SetHeader(headerActorEmail, actor.Email)
		}
	}
}

// WithTimeout sets the request timeout.
func WithTimeout(d time.Duration) Option {
	return func(r *resty.Client) {
		r.SetTimeout(d)
	}
}

// WithRetries retries failed requests count times.
func WithRetries(count int) Option {
	return func(r *resty.Client) {
		r.SetRetryCount(count)
	}
}

// New returns a Client for the api below baseURL, e.g. http://localhost:8081/api/v1.
func New(baseURL string, opts ...Option) *Client {
	r := resty.New().
		SetBaseURL(baseURL).
		SetTimeout(defaultTimeout).
		SetLogger(stdlogger.NewComponent("settings-client")).
		SetHeader("Accept", "application/json").
		SetError(&APIError{})

	for _, opt := range opts {
		opt(r)
	}

	return &Client{http: r}
}

func (c *Client) request(ctx context.Context) *resty.Request {
	return c.http.R().SetContext(ctx)
}

// do sends req and converts error responses into *APIError.
func do(resp *resty.Response, err error) error {
	if err != nil {
		return err
	}

	if !resp.IsError() {
		return nil
	}

	apiErr, ok := resp.Error().(*APIError)
	if !ok || apiErr == nil {
		apiErr = &APIError{Message: http.StatusText(resp.StatusCode())}
	}

	apiErr.StatusCode = resp.StatusCode()

	if apiErr.Message == "" {
		apiErr.Message = http.StatusText(resp.StatusCode())
	}

	return apiErr
}

// All returns every setting nested per group.
func (c *Client) All(ctx context.Context) (map[string]any, error) {
	return c.Group(ctx, "")
}

// Group returns the settings of group nested below the group name.
func (c *Client) Group(ctx context.Context, group string) (map[string]any, error) {
	var out map[string]any

	req := c.request(ctx).SetResult(&out)
	if group != "" {
		req.SetQueryParam("group", group)
	}

	if err := do(req.Get("/settings")); err != nil {
		return nil, err
	}

	return out, nil
}

// List returns the settings of group (all groups when empty) as a flat list.
func (c *Client) List(ctx context.Context, group string) ([]Setting, error) {
	var out []Setting

	req := c.request(ctx).SetResult(&out).SetQueryParam("format", "flat")
	if group != "" {
		req.SetQueryParam("group", group)
	}

	if err := do(req.Get("/settings")); err != nil {
		return nil, err
	}

	return out, nil
}

// Get returns one setting.
func (c *Client) Get(ctx context.Context, key string) (*Setting, error) {
	var out Setting

	err := do(c.request(ctx).SetResult(&out).SetPathParam("key", key).Get("/settings/{key}"))
	if err != nil {
		return nil, err
	}

	return &out, nil
}

// Set creates or overwrites one setting. An empty group keeps the current one.
func (c *Client) Set(ctx context.Context, key string, value any, group, description string) (*Setting, error) {
	var out Setting

	err := do(c.request(ctx).
		SetResult(&out).
		SetPathParam("key", key).
		SetBody(writeRequest{Value: value, Group: group, Description: description}).
		Put("/settings/{key}"))
	if err != nil {
		return nil, err
	}

	return &out, nil
}

// Batch writes all entries atomically.
func (c *Client) Batch(ctx context.Context, entries []Entry) (*BatchResult, error) {
	var out BatchResult

	if err := do(c.request(ctx).SetResult(&out).SetBody(entries).Post("/settings/batch")); err != nil {
		return nil, err
	}

	return &out, nil
}

// Delete removes one setting.
func (c *Client) Delete(ctx context.Context, key string) error {
	return do(c.request(ctx).SetPathParam("key", key).Delete("/settings/{key}"))
}

// History returns one page of the history of key, or of all keys when key is empty.
func (c *Client) History(ctx context.Context, key string, page, limit int) (*HistoryPage, error) {
	var out HistoryPage

	req := c.request(ctx).SetResult(&out)
	if page > 0 {
		req.SetQueryParam("page", strconv.Itoa(page))
	}

	if limit > 0 {
		req.SetQueryParam("limit", strconv.Itoa(limit))
	}

	path := "/settings/history/all"
	if key != "" {
		path = "/settings/history/" + url.PathEscape(key)
	}

	if err := do(req.Get(path)); err != nil {
		return nil, err
	}

	return &out, nil
}

// Rollback restores the value recorded by history entry id.
func (c *Client) Rollback(ctx context.Context, id, description string) (*Setting, error) {
	var out Setting

	req := c.request(ctx).SetResult(&out).SetPathParam("id", id)
	if description != "" {
		req.SetBody(map[string]string{"description": description})
	}

	if err := do(req.Post("/settings/rollback/{id}")); err != nil {
		return nil, err
	}

	return &out, nil
}

// Export returns the export document of all settings.
func (c *Client) Export(ctx context.Context) (Document, error) {
	resp, err := c.request(ctx).Get("/settings/export")
	if err = do(resp, err); err != nil {
		return nil, err
	}

	return Document(resp.Body()), nil
}

// Import applies an export document atomically.
func (c *Client) Import(ctx context.Context, doc Document) (*BatchResult, error) {
	var out BatchResult

	err := do(c.request(ctx).
		SetResult(&out).
		SetHeader("Content-Type", "application/json").
		SetBody([]byte(doc)).
		Post("/settings/import"))
	if err != nil {
		return nil, err
	}

	return &out, nil
}
