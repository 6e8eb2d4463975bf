package scraper

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"log/slog"
	"mime"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/FranksOps/metasearch/internal/challenge"
	"github.com/FranksOps/metasearch/internal/fingerprint"
	"github.com/FranksOps/metasearch/internal/metrics"
	"github.com/FranksOps/metasearch/pkg/httpclient"
	"github.com/FranksOps/metasearch/pkg/proxy"
	"github.com/FranksOps/metasearch/pkg/ratelimit"
	"github.com/FranksOps/metasearch/pkg/useragent"
	"golang.org/x/net/html/charset"
)

type contextKey string

const proxyKey contextKey = "proxy_url"

const defaultAcceptLanguage = "en-US,en;q=0.9"

// FetchConfig configures the outbound request policy shared by search
// providers and page enrichment.
type FetchConfig struct {
	Timeout      time.Duration
	MaxRedirects int
	MaxBodyBytes int64
	UseCookieJar bool
	// UserAgents supplies the client identification header. Nil rotates the defaults.
	UserAgents     *useragent.Pool
	AcceptLanguage string
	Proxies        *proxy.Pool
	Fingerprint    fingerprint.Profile
	// InsecureSkipVerify is for tests against self-signed servers.
	InsecureSkipVerify bool
	Limiter            *ratelimit.Limiter
	// Detectors recognize challenge pages. Nil uses challenge.DefaultDetectors.
	Detectors []challenge.Detector
	Logger    *slog.Logger
}

// Response is a fully read response. Body is decoded to UTF-8 for HTML and XML content.
type Response struct {
	// URL is the final URL after redirects.
	URL        string
	StatusCode int
	Header     http.Header
	Body       []byte
	Duration   time.Duration
	// Challenge names the bot wall that served this response, if any.
	Challenge string
}

// StatusError reports a non-2xx response.
type StatusError struct {
	URL        string
	StatusCode int
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("GET %s: unexpected status %d", e.URL, e.StatusCode)
}

// RequestOption customizes a single request.
type RequestOption func(*http.Request)

// WithHeader sets a request header, overriding the defaults.
func WithHeader(key, value string) RequestOption {
	return func(r *http.Request) { r.Header.Set(key, value) }
}

// Fetcher performs GET requests with the configured identification, proxy
// rotation, TLS fingerprint and pacing. It is safe for concurrent use.
type Fetcher struct {
	config FetchConfig
	client *httpclient.Client
	logger *slog.Logger
}

// NewFetcher initializes a Fetcher. A single client is held so connections
// (and cookies, if enabled) are reused across requests.
func NewFetcher(cfg FetchConfig) (*Fetcher, error) {
	if cfg.Timeout <= 0 {
		cfg.Timeout = 15 * time.Second
	}
	if cfg.UserAgents == nil {
		cfg.UserAgents = useragent.NewPool(nil)
	}
	if cfg.AcceptLanguage == "" {
		cfg.AcceptLanguage = defaultAcceptLanguage
	}
	if cfg.Fingerprint == "" {
		cfg.Fingerprint = fingerprint.ProfileGo
	}
	if cfg.Detectors == nil {
		cfg.Detectors = challenge.DefaultDetectors()
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}

	// The proxy is chosen per request and carried in the request context, so the
	// transport (and its connection pool) is built once.
	proxyFunc := func(req *http.Request) (*url.URL, error) {
		if u, ok := req.Context().Value(proxyKey).(*url.URL); ok && u != nil {
			return u, nil
		}
		return http.ProxyFromEnvironment(req)
	}

	transport, err := fingerprint.NewTransport(cfg.Fingerprint, fingerprint.Options{
		Proxy:              proxyFunc,
		InsecureSkipVerify: cfg.InsecureSkipVerify,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to setup transport: %w", err)
	}

	client, err := httpclient.New(httpclient.Config{
		Timeout:      cfg.Timeout,
		MaxRedirects: cfg.MaxRedirects,
		MaxBodyBytes: cfg.MaxBodyBytes,
		UseCookieJar: cfg.UseCookieJar,
		Transport:    transport,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create client: %w", err)
	}

	return &Fetcher{config: cfg, client: client, logger: cfg.Logger}, nil
}

// Get fetches targetURL. Transport failures and timeouts return a nil Response.
// A non-2xx status returns the Response together with a *StatusError so callers
// can still inspect Challenge.
func (f *Fetcher) Get(ctx context.Context, targetURL string, opts ...RequestOption) (*Response, error) {
	if err := f.config.Limiter.Wait(ctx); err != nil {
		return nil, fmt.Errorf("rate limiter: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, targetURL, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}

	req.Header.Set("User-Agent", f.config.UserAgents.Next())
	req.Header.Set("Accept", "text/html,application/xhtml+xml,application/xml;q=0.9,*/*;q=0.8")
	req.Header.Set("Accept-Language", f.config.AcceptLanguage)
	for _, opt := range opts {
		opt(req)
	}

	var activeProxy *url.URL
	if f.config.Proxies != nil {
		if activeProxy = f.config.Proxies.Next(); activeProxy != nil {
			req = req.WithContext(context.WithValue(req.Context(), proxyKey, activeProxy))
		}
	}

	start := time.Now()
	resp, err := f.client.Do(req.Context(), req)
	if err != nil {
		if activeProxy != nil {
			_ = f.config.Proxies.MarkFailure(activeProxy)
			metrics.ProxyFailures.WithLabelValues(activeProxy.String()).Inc()
		}
		return nil, fmt.Errorf("request failed: %w", err)
	}
	if activeProxy != nil {
		_ = f.config.Proxies.MarkSuccess(activeProxy)
	}

	raw, err := f.client.ReadBody(resp)
	if err != nil {
		return nil, fmt.Errorf("failed to read body: %w", err)
	}

	finalURL := targetURL
	if resp.Request != nil && resp.Request.URL != nil {
		finalURL = resp.Request.URL.String()
	}

	result := &Response{
		URL:        finalURL,
		StatusCode: resp.StatusCode,
		Header:     resp.Header,
		Body:       decode(raw, resp.Header.Get("Content-Type")),
		Duration:   time.Since(start),
	}

	if src, ok := challenge.Detect(&challenge.Page{
		URL:        result.URL,
		StatusCode: result.StatusCode,
		Header:     result.Header,
		Body:       result.Body,
	}, f.config.Detectors); ok {
		result.Challenge = src
		f.logger.Debug("challenge page detected", "url", targetURL, "source", src)
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return result, &StatusError{URL: targetURL, StatusCode: resp.StatusCode}
	}
	return result, nil
}

// decode converts HTML and XML bodies to UTF-8 using the declared or sniffed charset.
// Anything else, and anything that fails to decode, is returned untouched.
func decode(raw []byte, contentType string) []byte {
	if len(raw) == 0 {
		return raw
	}
	mediaType, _, _ := mime.ParseMediaType(contentType)
	if mediaType != "" && !strings.Contains(mediaType, "html") && !strings.Contains(mediaType, "xml") {
		return raw
	}

	r, err := charset.NewReader(bytes.NewReader(raw), contentType)
	if err != nil {
		return raw
	}
	decoded, err := io.ReadAll(r)
	if err != nil {
		return raw
	}
	return decoded
}
