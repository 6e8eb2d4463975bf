package httpclient

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/http/cookiejar"
	"time"
)

const (
	defaultTimeout      = 15 * time.Second
	defaultMaxRedirects = 10
	defaultMaxBodyBytes = 4 << 20
)

// ErrNilContext is returned by Do when called without a context.
var ErrNilContext = errors.New("httpclient: nil context")

// Config defines the setup for the HTTP Client.
type Config struct {
	// Timeout bounds a whole request including reading the body. Zero means 15s.
	Timeout time.Duration
	// MaxRedirects caps followed redirects. Zero means 10, negative disables following.
	MaxRedirects int
	// MaxBodyBytes caps how much of a response body ReadBody consumes. Zero means 4 MiB.
	MaxBodyBytes int64
	UseCookieJar bool
	// Transport overrides the round tripper, e.g. for proxies or uTLS fingerprinting.
	Transport http.RoundTripper
}

// Client wraps http.Client with a bounded timeout, a redirect policy and body size limits.
type Client struct {
	*http.Client
	maxBody int64
}

// New creates a new HTTP client based on the provided configuration.
func New(cfg Config) (*Client, error) {
	if cfg.Timeout <= 0 {
		cfg.Timeout = defaultTimeout
	}
	if cfg.MaxRedirects == 0 {
		cfg.MaxRedirects = defaultMaxRedirects
	}
	if cfg.MaxBodyBytes <= 0 {
		cfg.MaxBodyBytes = defaultMaxBodyBytes
	}

	c := &http.Client{Timeout: cfg.Timeout}

	if cfg.MaxRedirects > 0 {
		limit := cfg.MaxRedirects
		c.CheckRedirect = func(req *http.Request, via []*http.Request) error {
			if len(via) >= limit {
				return fmt.Errorf("httpclient: stopped after %d redirects", limit)
			}
			return nil
		}
	} else {
		c.CheckRedirect = func(req *http.Request, via []*http.Request) error {
			return http.ErrUseLastResponse
		}
	}

	if cfg.UseCookieJar {
		jar, err := cookiejar.New(nil)
		if err != nil {
			return nil, fmt.Errorf("httpclient: cookie jar: %w", err)
		}
		c.Jar = jar
	}

	if cfg.Transport != nil {
		c.Transport = cfg.Transport
	}

	return &Client{Client: c, maxBody: cfg.MaxBodyBytes}, nil
}

// Do executes req bound to ctx. The client timeout still applies on top of any
// deadline carried by ctx.
func (c *Client) Do(ctx context.Context, req *http.Request) (*http.Response, error) {
	if ctx == nil {
		return nil, ErrNilContext
	}

	resp, err := c.Client.Do(req.Clone(ctx))
	if err != nil {
		return nil, fmt.Errorf("httpclient: %w", err)
	}
	return resp, nil
}

// ReadBody drains and closes resp.Body, reading at most MaxBodyBytes. Bytes past
// the limit are discarded without error.
func (c *Client) ReadBody(resp *http.Response) ([]byte, error) {
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, c.maxBody))
	if err != nil {
		return body, fmt.Errorf("httpclient: read body: %w", err)
	}
	return body, nil
}
