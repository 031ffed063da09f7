// Package endpoint performs JSON GET requests against chain REST gateways and
// indexers, and walks ordered fallback candidates.
package endpoint

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"gov-monitoring/internal/metrics"
)

const (
	// maxBodySize caps how much of a response is read.
	maxBodySize = 8 << 20

	DefaultUserAgent = "gov-monitor/1.0"
)

// Client issues single GET requests. It never retries; fallback belongs to the caller.
type Client struct {
	http      *http.Client
	userAgent string
	metrics   *metrics.Metrics
}

// NewClient wraps httpClient. A nil httpClient uses a client without a global timeout,
// per-request timeouts are passed to FetchJSON.
func NewClient(httpClient *http.Client, userAgent string, m *metrics.Metrics) *Client {
	if httpClient == nil {
		httpClient = &http.Client{}
	}
	if userAgent == "" {
		userAgent = DefaultUserAgent
	}
	return &Client{http: httpClient, userAgent: userAgent, metrics: m}
}

// FetchJSON GETs baseURL+path and decodes the body. Numbers are kept as json.Number.
// A zero timeout leaves the deadline to ctx.
func (c *Client) FetchJSON(ctx context.Context, baseURL, path string, timeout time.Duration) (any, error) {
	url := JoinURL(baseURL, path)
	if timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, c.fail(&Failure{Kind: EndpointUnreachable, URL: url, Cause: err})
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("User-Agent", c.userAgent)

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, c.fail(&Failure{Kind: EndpointUnreachable, URL: url, Cause: err})
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, maxBodySize))
	if err != nil {
		return nil, c.fail(&Failure{Kind: EndpointUnreachable, URL: url, Status: resp.StatusCode, Cause: fmt.Errorf("read body: %w", err)})
	}

	doc, decodeErr := decode(raw)
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		f := &Failure{Kind: HTTPError, URL: url, Status: resp.StatusCode, Cause: fmt.Errorf("unexpected status %s", resp.Status)}
		if decodeErr == nil {
			f.Body = doc
		}
		return nil, c.fail(f)
	}
	if decodeErr != nil {
		return nil, c.fail(&Failure{Kind: MalformedResponse, URL: url, Status: resp.StatusCode, Cause: decodeErr})
	}
	c.metrics.Request("ok")
	return doc, nil
}

func (c *Client) fail(f *Failure) error {
	c.metrics.Request(f.Kind.String())
	return f
}

func decode(raw []byte) (any, error) {
	if len(bytes.TrimSpace(raw)) == 0 {
		return nil, errors.New("empty body")
	}
	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.UseNumber()
	var doc any
	if err := dec.Decode(&doc); err != nil {
		return nil, fmt.Errorf("decode json: %w", err)
	}
	return doc, nil
}

// JoinURL concatenates a base URL and a path that starts with "/".
func JoinURL(baseURL, path string) string {
	base := strings.TrimRight(baseURL, "/")
	if path == "" {
		return base
	}
	if !strings.HasPrefix(path, "/") {
		path = "/" + path
	}
	return base + path
}
