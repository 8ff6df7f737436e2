// Package client talks to the Kegstock HTTP API and keeps a client-side
// copy of the beer type collection.
package client

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/kegstock/kegstock/internal/model"
)

const (
	// DefaultTimeout bounds a whole request, including reading the body.
	DefaultTimeout = 10 * time.Second

	maxErrorBody = 64 << 10
)

// NewHTTPClient returns an http.Client with dial and header timeouts that
// does not follow redirects.
func NewHTTPClient(timeout time.Duration) *http.Client {
	return &http.Client{
		Timeout: timeout,
		Transport: &http.Transport{
			Proxy: http.ProxyFromEnvironment,
			DialContext: (&net.Dialer{
				Timeout:   5 * time.Second,
				KeepAlive: 30 * time.Second,
			}).DialContext,
			TLSHandshakeTimeout:   5 * time.Second,
			ResponseHeaderTimeout: timeout,
			MaxIdleConnsPerHost:   4,
			IdleConnTimeout:       90 * time.Second,
		},
		CheckRedirect: func(req *http.Request, via []*http.Request) error {
			return http.ErrUseLastResponse
		},
	}
}

// APIError is a non-2xx response from the API.
type APIError struct {
	Status  int
	Code    string
	Message string
	Fields  map[string]string
}

func (e *APIError) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("%d %s", e.Status, http.StatusText(e.Status))
	}
	return e.Message
}

// IsNotFound reports whether err is a 404 from the API.
func IsNotFound(err error) bool {
	var apiErr *APIError
	return errors.As(err, &apiErr) && apiErr.Status == http.StatusNotFound
}

// Client calls the beer type endpoints.
type Client struct {
	base *url.URL
	http *http.Client
}

// Option configures a Client.
type Option func(*Client)

// WithHTTPClient replaces the default http.Client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.http = hc }
}

// New returns a Client for the API rooted at baseURL, e.g. "http://localhost:8080".
func New(baseURL string, opts ...Option) (*Client, error) {
	u, err := url.Parse(strings.TrimRight(baseURL, "/"))
	if err != nil {
		return nil, fmt.Errorf("parse base url: %w", err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return nil, fmt.Errorf("base url %q: scheme must be http or https", baseURL)
	}

	c := &Client{base: u, http: NewHTTPClient(DefaultTimeout)}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

// List returns every beer type ordered by name.
func (c *Client) List(ctx context.Context) ([]model.BeerType, error) {
	var out []model.BeerType
	if err := c.do(ctx, http.MethodGet, "/api/beer-types", nil, &out); err != nil {
		return nil, err
	}
	if out == nil {
		out = []model.BeerType{}
	}
	return out, nil
}

// Get returns a single beer type.
func (c *Client) Get(ctx context.Context, id int64) (*model.BeerType, error) {
	var out model.BeerType
	if err := c.do(ctx, http.MethodGet, beerTypePath(id), nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// Create adds a beer type. A nil kegCount lets the server default it to 0.
func (c *Client) Create(ctx context.Context, name string, kegCount *int) (*model.BeerType, error) {
	body := struct {
		Name     string `json:"name"`
		KegCount *int   `json:"kegCount,omitempty"`
	}{Name: name, KegCount: kegCount}

	var out model.BeerType
	if err := c.do(ctx, http.MethodPost, "/api/beer-types", body, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// Delete removes a beer type.
func (c *Client) Delete(ctx context.Context, id int64) error {
	return c.do(ctx, http.MethodDelete, beerTypePath(id), nil, nil)
}

// AddKegs increases the keg count.
func (c *Client) AddKegs(ctx context.Context, id int64, amount int) (*model.BeerType, error) {
	return c.adjust(ctx, beerTypePath(id)+"/add-kegs", amount)
}

// RemoveKegs decreases the keg count. The server rejects removals larger
// than the stock with a 400.
func (c *Client) RemoveKegs(ctx context.Context, id int64, amount int) (*model.BeerType, error) {
	return c.adjust(ctx, beerTypePath(id)+"/remove-kegs", amount)
}

// SetKegCount overwrites the keg count after a stock take.
func (c *Client) SetKegCount(ctx context.Context, id int64, count int) (*model.BeerType, error) {
	body := struct {
		KegCount int `json:"kegCount"`
	}{count}

	var out model.BeerType
	if err := c.do(ctx, http.MethodPut, beerTypePath(id)+"/keg-count", body, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *Client) adjust(ctx context.Context, path string, amount int) (*model.BeerType, error) {
	body := struct {
		Amount int `json:"amount"`
	}{amount}

	var out model.BeerType
	if err := c.do(ctx, http.MethodPost, path, body, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func beerTypePath(id int64) string {
	return "/api/beer-types/" + strconv.FormatInt(id, 10)
}

func (c *Client) do(ctx context.Context, method, path string, in, out any) error {
	var body io.Reader
	if in != nil {
		buf, err := json.Marshal(in)
		if err != nil {
			return fmt.Errorf("encode request: %w", err)
		}
		body = bytes.NewReader(buf)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.base.String()+path, body)
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("%s %s: %w", method, path, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return decodeAPIError(resp)
	}

	if out == nil || resp.StatusCode == http.StatusNoContent {
		_, _ = io.Copy(io.Discard, resp.Body)
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode %s %s response: %w", method, path, err)
	}
	return nil
}

func decodeAPIError(resp *http.Response) error {
	apiErr := &APIError{Status: resp.StatusCode}

	raw, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
	var body struct {
		Message string            `json:"message"`
		Code    string            `json:"code"`
		Errors  map[string]string `json:"errors"`
	}
	if json.Unmarshal(raw, &body) == nil {
		apiErr.Message = body.Message
		apiErr.Code = body.Code
		apiErr.Fields = body.Errors
	}
	return apiErr
}
