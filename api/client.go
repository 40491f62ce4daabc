// Package api is a thin client for the annotation store's REST surface. It
// speaks bearer-token HTTPS, resolves relative endpoints against the
// /api/v1 root and aggregates cursor-paginated list responses.
package api

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/textproto"
	"net/url"
	"strings"
	"time"

	"github.com/wudi/docexport/observability"
)

const errorBodyLimit = 4 << 10

// StatusError reports a non-2xx response. The pipeline treats any transport
// error as fatal for the invocation; there are no retries at this layer.
type StatusError struct {
	Method     string
	URL        string
	StatusCode int
	Body       []byte
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("%s %s: unexpected status %d", e.Method, e.URL, e.StatusCode)
}

// IsStatus reports whether err is a StatusError with the given code.
func IsStatus(err error, code int) bool {
	var se *StatusError
	return errors.As(err, &se) && se.StatusCode == code
}

// Client issues authenticated requests against one API root.
type Client struct {
	baseURL string
	token   string
	hc      *http.Client
	log     observability.Logger
}

type Option func(*Client)

func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.hc = hc }
}

func WithLogger(log observability.Logger) Option {
	return func(c *Client) { c.log = log }
}

// NewClient builds a client for the given base URL (without the /api/v1
// suffix) and bearer token. Both are required.
func NewClient(baseURL, token string, opts ...Option) (*Client, error) {
	if baseURL == "" {
		return nil, errors.New("api: base URL is required")
	}
	if token == "" {
		return nil, errors.New("api: authorization token is required")
	}
	c := &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		token:   token,
		hc:      &http.Client{Timeout: 60 * time.Second},
		log:     observability.NopLogger{},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

// resolve turns an endpoint into an absolute URL. Absolute URLs pass through
// unchanged so that links returned by the API (page URLs, pagination cursors)
// can be requested directly.
func (c *Client) resolve(endpoint string) string {
	if strings.HasPrefix(endpoint, "https://") || strings.HasPrefix(endpoint, "http://") {
		return endpoint
	}
	return c.baseURL + "/api/v1/" + strings.TrimLeft(endpoint, "/")
}

func withQuery(rawURL string, query url.Values) string {
	if len(query) == 0 {
		return rawURL
	}
	sep := "?"
	if strings.Contains(rawURL, "?") {
		sep = "&"
	}
	return rawURL + sep + query.Encode()
}

func (c *Client) do(ctx context.Context, method, rawURL string, body io.Reader, contentType string) (*http.Response, error) {
	req, err := http.NewRequestWithContext(ctx, method, rawURL, body)
	if err != nil {
		return nil, fmt.Errorf("api: build %s %s: %w", method, rawURL, err)
	}
	req.Header.Set("Authorization", "Bearer "+c.token)
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}
	c.log.Debug("api request", observability.String("method", method), observability.String("url", rawURL))

	resp, err := c.hc.Do(req)
	if err != nil {
		return nil, fmt.Errorf("api: %s %s: %w", method, rawURL, err)
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		snippet, _ := io.ReadAll(io.LimitReader(resp.Body, errorBodyLimit))
		resp.Body.Close()
		return nil, &StatusError{Method: method, URL: rawURL, StatusCode: resp.StatusCode, Body: snippet}
	}
	return resp, nil
}

// GetJSON fetches a single resource and decodes it into out.
func (c *Client) GetJSON(ctx context.Context, endpoint string, query url.Values, out interface{}) error {
	resp, err := c.do(ctx, http.MethodGet, withQuery(c.resolve(endpoint), query), nil, "")
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if out == nil {
		_, err = io.Copy(io.Discard, resp.Body)
		return err
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("api: decode %s: %w", endpoint, err)
	}
	return nil
}

// GetBinary fetches a resource's raw bytes (page rasters, document content).
func (c *Client) GetBinary(ctx context.Context, endpoint string) ([]byte, error) {
	resp, err := c.do(ctx, http.MethodGet, c.resolve(endpoint), nil, "")
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("api: read %s: %w", endpoint, err)
	}
	return data, nil
}

// PostJSON creates a resource and decodes the response into out (optional).
func (c *Client) PostJSON(ctx context.Context, endpoint string, body, out interface{}) error {
	return c.sendJSON(ctx, http.MethodPost, endpoint, body, out)
}

// PatchJSON partially updates a resource and decodes the response into out
// (optional).
func (c *Client) PatchJSON(ctx context.Context, endpoint string, body, out interface{}) error {
	return c.sendJSON(ctx, http.MethodPatch, endpoint, body, out)
}

func (c *Client) sendJSON(ctx context.Context, method, endpoint string, body, out interface{}) error {
	payload, err := json.Marshal(body)
	if err != nil {
		return fmt.Errorf("api: encode %s body: %w", endpoint, err)
	}
	resp, err := c.do(ctx, method, c.resolve(endpoint), bytes.NewReader(payload), "application/json")
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if out == nil {
		_, err = io.Copy(io.Discard, resp.Body)
		return err
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("api: decode %s: %w", endpoint, err)
	}
	return nil
}

// Delete removes a resource.
func (c *Client) Delete(ctx context.Context, endpoint string) error {
	resp, err := c.do(ctx, http.MethodDelete, c.resolve(endpoint), nil, "")
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	_, err = io.Copy(io.Discard, resp.Body)
	return err
}

// PostMultipart uploads a single file part and decodes the response into out
// (optional).
func (c *Client) PostMultipart(ctx context.Context, endpoint, field, filename, contentType string, content []byte, out interface{}) error {
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	header := textproto.MIMEHeader{}
	header.Set("Content-Disposition", fmt.Sprintf(`form-data; name=%q; filename=%q`, field, filename))
	if contentType != "" {
		header.Set("Content-Type", contentType)
	}
	part, err := mw.CreatePart(header)
	if err != nil {
		return fmt.Errorf("api: build multipart body: %w", err)
	}
	if _, err := part.Write(content); err != nil {
		return fmt.Errorf("api: write multipart body: %w", err)
	}
	if err := mw.Close(); err != nil {
		return fmt.Errorf("api: finalize multipart body: %w", err)
	}

	resp, err := c.do(ctx, http.MethodPost, c.resolve(endpoint), &buf, mw.FormDataContentType())
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if out == nil {
		_, err = io.Copy(io.Discard, resp.Body)
		return err
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("api: decode %s: %w", endpoint, err)
	}
	return nil
}
