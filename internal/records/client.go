package records

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"
)

// DefaultTimeout bounds every upstream request.
const DefaultTimeout = 10 * time.Second

// maxBodyBytes caps how much of an upstream response is buffered.
const maxBodyBytes = 10 << 20

// Response is an upstream answer mirrored by passthrough routes.
type Response struct {
	StatusCode  int
	ContentType string
	Body        []byte
}

// Client calls {baseURL}/api/arbitros.
type Client struct {
	base string
	http *http.Client
}

// Option customises a Client.
type Option func(*Client)

// WithHTTPClient replaces the underlying HTTP client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) {
		if hc != nil {
			c.http = hc
		}
	}
}

// WithTimeout sets the per-request timeout. A client passed through
// WithHTTPClient is copied first, never modified.
func WithTimeout(d time.Duration) Option {
	return func(c *Client) {
		if d > 0 {
			hc := *c.http
			hc.Timeout = d
			c.http = &hc
		}
	}
}

// New builds a client for the upstream rooted at baseURL (e.g. http://localhost:8080).
func New(baseURL string, opts ...Option) (*Client, error) {
	u, err := url.Parse(strings.TrimSuffix(baseURL, "/"))
	if err != nil || u.Scheme == "" || u.Host == "" {
		return nil, fmt.Errorf("invalid upstream url %q", baseURL)
	}
	c := &Client{base: u.String() + "/api/arbitros", http: &http.Client{Timeout: DefaultTimeout}}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

// BaseURL returns the resource root the client targets.
func (c *Client) BaseURL() string { return c.base }

// Get fetches one record.
func (c *Client) Get(ctx context.Context, id int64) (Record, error) {
	resp, err := c.do(ctx, http.MethodGet, idPath(id), nil, nil)
	if err != nil {
		return Record{}, notFoundFor(id, err)
	}
	return decodeRecord(http.MethodGet, id, resp)
}

// Update sends fields to PUT /{id} and returns the record the upstream reports.
func (c *Client) Update(ctx context.Context, id int64, fields map[string]any) (Record, error) {
	body, err := json.Marshal(fields)
	if err != nil {
		return Record{}, fmt.Errorf("encode update: %w", err)
	}
	resp, err := c.do(ctx, http.MethodPut, idPath(id), nil, body)
	if err != nil {
		return Record{}, notFoundFor(id, err)
	}
	return decodeRecord(http.MethodPut, id, resp)
}

// Records lists and decodes every record.
func (c *Client) Records(ctx context.Context) ([]Record, error) {
	resp, err := c.List(ctx)
	if err != nil {
		return nil, err
	}
	var out []Record
	if err := json.Unmarshal(resp.Body, &out); err != nil {
		return nil, &StoreError{Method: http.MethodGet, Path: "/", StatusCode: resp.StatusCode, Body: resp.Body, Err: fmt.Errorf("decode records: %w", err)}
	}
	if out == nil {
		out = []Record{}
	}
	return out, nil
}

// WithImages lists the records that reference an image.
func (c *Client) WithImages(ctx context.Context) ([]Record, error) {
	all, err := c.Records(ctx)
	if err != nil {
		return nil, err
	}
	out := make([]Record, 0, len(all))
	for _, r := range all {
		if r.HasAsset() {
			out = append(out, r)
		}
	}
	return out, nil
}

// List forwards GET /.
func (c *Client) List(ctx context.Context) (Response, error) {
	return c.do(ctx, http.MethodGet, "", nil, nil)
}

// Search forwards GET /search?username=.
func (c *Client) Search(ctx context.Context, username string) (Response, error) {
	return c.do(ctx, http.MethodGet, "/search", url.Values{"username": {username}}, nil)
}

// GetByCedula forwards GET /cedula/{cedula}.
func (c *Client) GetByCedula(ctx context.Context, cedula string) (Response, error) {
	return c.do(ctx, http.MethodGet, "/cedula/"+url.PathEscape(cedula), nil, nil)
}

// Fetch forwards GET /{id} without decoding.
func (c *Client) Fetch(ctx context.Context, id int64) (Response, error) {
	return c.do(ctx, http.MethodGet, idPath(id), nil, nil)
}

// Create forwards POST / with a raw JSON body.
func (c *Client) Create(ctx context.Context, body []byte) (Response, error) {
	return c.do(ctx, http.MethodPost, "", nil, body)
}

// Replace forwards PUT /{id} with a raw JSON body.
func (c *Client) Replace(ctx context.Context, id int64, body []byte) (Response, error) {
	return c.do(ctx, http.MethodPut, idPath(id), nil, body)
}

// Delete forwards DELETE /{id}.
func (c *Client) Delete(ctx context.Context, id int64) (Response, error) {
	return c.do(ctx, http.MethodDelete, idPath(id), nil, nil)
}

func (c *Client) do(ctx context.Context, method, path string, query url.Values, body []byte) (Response, error) {
	target := c.base + path
	if len(query) > 0 {
		target += "?" + query.Encode()
	}
	var rdr io.Reader
	if body != nil {
		rdr = bytes.NewReader(body)
	}
	req, err := http.NewRequestWithContext(ctx, method, target, rdr)
	if err != nil {
		return Response{}, &StoreError{Method: method, Path: pathOrRoot(path), Err: err}
	}
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	res, err := c.http.Do(req)
	if err != nil {
		return Response{}, &StoreError{Method: method, Path: pathOrRoot(path), Err: err}
	}
	defer func() { _ = res.Body.Close() }()
	payload, err := io.ReadAll(io.LimitReader(res.Body, maxBodyBytes))
	if err != nil {
		return Response{}, &StoreError{Method: method, Path: pathOrRoot(path), StatusCode: res.StatusCode, Err: fmt.Errorf("read body: %w", err)}
	}
	out := Response{StatusCode: res.StatusCode, ContentType: res.Header.Get("Content-Type"), Body: payload}
	if res.StatusCode < 200 || res.StatusCode > 299 {
		return out, &StoreError{Method: method, Path: pathOrRoot(path), StatusCode: res.StatusCode, Body: payload, Err: fmt.Errorf("%s", http.StatusText(res.StatusCode))}
	}
	return out, nil
}

func decodeRecord(method string, id int64, resp Response) (Record, error) {
	var rec Record
	if err := json.Unmarshal(resp.Body, &rec); err != nil {
		return Record{}, &StoreError{Method: method, Path: idPath(id), StatusCode: resp.StatusCode, Body: resp.Body, Err: fmt.Errorf("decode record: %w", err)}
	}
	return rec, nil
}

func notFoundFor(id int64, err error) error {
	var se *StoreError
	if errors.As(err, &se) && se.StatusCode == http.StatusNotFound {
		return &NotFoundError{ID: id, Body: se.Body}
	}
	return err
}

func idPath(id int64) string { return "/" + strconv.FormatInt(id, 10) }

func pathOrRoot(p string) string {
	if p == "" {
		return "/"
	}
	return p
}
