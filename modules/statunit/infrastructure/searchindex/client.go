package searchindex

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
	"time"
)

type Client interface {
	Ping(ctx context.Context) error
	Upsert(ctx context.Context, doc Document) error
	Delete(ctx context.Context, regID int64) error
}

type Option func(*httpClient)

func WithTimeout(d time.Duration) Option {
	return func(h *httpClient) {
		if d > 0 {
			h.http.Timeout = d
		}
	}
}

// NewClient returns a client for the index at baseURL. An empty baseURL
// disables indexing: every call succeeds without doing anything.
func NewClient(baseURL, index string, opts ...Option) Client {
	baseURL = strings.TrimRight(strings.TrimSpace(baseURL), "/")
	if baseURL == "" {
		return Nop{}
	}
	h := &httpClient{
		baseURL: baseURL,
		index:   index,
		http:    &http.Client{Timeout: 5 * time.Second},
	}
	for _, opt := range opts {
		if opt != nil {
			opt(h)
		}
	}
	return h
}

type Nop struct{}

func (Nop) Ping(context.Context) error            { return nil }
func (Nop) Upsert(context.Context, Document) error { return nil }
func (Nop) Delete(context.Context, int64) error    { return nil }

type httpClient struct {
	baseURL string
	index   string
	http    *http.Client
}

// StatusError is returned for non-2xx responses.
type StatusError struct {
	Method string
	URL    string
	Status int
	Body   string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("search index %s %s: status %d: %s", e.Method, e.URL, e.Status, e.Body)
}

func (c *httpClient) Ping(ctx context.Context) error {
	return c.do(ctx, http.MethodGet, c.baseURL+"/", nil, false)
}

func (c *httpClient) Upsert(ctx context.Context, doc Document) error {
	body, err := json.Marshal(doc)
	if err != nil {
		return err
	}
	return c.do(ctx, http.MethodPut, c.docURL(doc.RegID), body, false)
}

func (c *httpClient) Delete(ctx context.Context, regID int64) error {
	return c.do(ctx, http.MethodDelete, c.docURL(regID), nil, true)
}

func (c *httpClient) docURL(regID int64) string {
	return fmt.Sprintf("%s/%s/_doc/%s", c.baseURL, url.PathEscape(c.index), strconv.FormatInt(regID, 10))
}

func (c *httpClient) do(ctx context.Context, method, target string, body []byte, allowNotFound bool) error {
	var reader io.Reader
	if body != nil {
		reader = bytes.NewReader(body)
	}
	req, err := http.NewRequestWithContext(ctx, method, target, reader)
	if err != nil {
		return err
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("search index %s %s: %w", method, target, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 200 && resp.StatusCode < 300 {
		_, _ = io.Copy(io.Discard, resp.Body)
		return nil
	}
	if allowNotFound && resp.StatusCode == http.StatusNotFound {
		return nil
	}
	msg, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
	return &StatusError{Method: method, URL: target, Status: resp.StatusCode, Body: strings.TrimSpace(string(msg))}
}
