// Package serp defines the search provider contract and the concrete engines
// the aggregator fans out to.
package serp

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/url"
	"strings"

	"github.com/FranksOps/metasearch/internal/scraper"
)

// SearchResult is a candidate link returned by a provider. URL is the identity
// used for deduplication. Provider names the engine that produced it.
type SearchResult struct {
	URL      string `json:"url"`
	Title    string `json:"title"`
	Provider string `json:"provider"`
}

// Provider is a single web search engine. Implementations return at most count
// results in the engine's own relevance order and hold no shared mutable state.
// A challenge page or markup with no matches yields an empty slice and a nil error.
type Provider interface {
	Name() string
	Search(ctx context.Context, query string, count int) ([]SearchResult, error)
}

// Getter is the outbound HTTP dependency of the engines. *scraper.Fetcher implements it.
type Getter interface {
	Get(ctx context.Context, targetURL string, opts ...scraper.RequestOption) (*scraper.Response, error)
}

var (
	// ErrUnknownProvider is returned when a configured provider name has no implementation.
	ErrUnknownProvider = errors.New("serp: unknown provider")
	// ErrInvalidCount is returned for a negative result count.
	ErrInvalidCount = errors.New("serp: result count cannot be negative")
)

// ProviderError wraps a failure of a single provider call: transport, timeout,
// unexpected status or an unparseable response.
type ProviderError struct {
	Provider string
	Op       string
	Err      error
}

func (e *ProviderError) Error() string {
	return fmt.Sprintf("%s %s: %v", e.Provider, e.Op, e.Err)
}

func (e *ProviderError) Unwrap() error { return e.Err }

// collector accumulates links for one provider page, enforcing the count limit,
// http(s)-only absolute URLs and per-page uniqueness.
type collector struct {
	provider string
	base     *url.URL
	limit    int
	seen     map[string]struct{}
	out      []SearchResult
}

func newCollector(provider, base string, limit int) *collector {
	b, _ := url.Parse(base)
	return &collector{
		provider: provider,
		base:     b,
		limit:    limit,
		seen:     make(map[string]struct{}),
		out:      make([]SearchResult, 0, limit),
	}
}

func (c *collector) full() bool { return len(c.out) >= c.limit }

// add records a link and reports whether the collector can take more.
func (c *collector) add(rawURL, title string) bool {
	if c.full() {
		return false
	}
	u, ok := normalize(c.base, rawURL)
	if !ok {
		return true
	}
	if _, dup := c.seen[u]; dup {
		return true
	}
	c.seen[u] = struct{}{}

	title = strings.Join(strings.Fields(title), " ")
	if title == "" {
		title = u
	}
	c.out = append(c.out, SearchResult{URL: u, Title: title, Provider: c.provider})
	return !c.full()
}

func (c *collector) results() []SearchResult { return c.out }

// normalize resolves rawURL against base, drops the fragment and rejects
// anything that is not an absolute http(s) URL.
func normalize(base *url.URL, rawURL string) (string, bool) {
	rawURL = strings.TrimSpace(rawURL)
	if rawURL == "" {
		return "", false
	}
	u, err := url.Parse(rawURL)
	if err != nil {
		return "", false
	}
	if base != nil {
		u = base.ResolveReference(u)
	}
	if u.Scheme != "http" && u.Scheme != "https" || u.Host == "" {
		return "", false
	}
	u.Fragment = ""
	return u.String(), true
}

// engine carries what every concrete provider shares.
type engine struct {
	name    string
	baseURL string
	getter  Getter
	logger  *slog.Logger
}

func newEngine(name, baseURL string, getter Getter, logger *slog.Logger) engine {
	if logger == nil {
		logger = slog.Default()
	}
	return engine{
		name:    name,
		baseURL: strings.TrimRight(baseURL, "/"),
		getter:  getter,
		logger:  logger.With("provider", name),
	}
}

func (e *engine) Name() string { return e.name }

// fetch returns the response body. A challenge page is a normal outcome and
// yields a nil body with a nil error.
func (e *engine) fetch(ctx context.Context, target string, opts ...scraper.RequestOption) ([]byte, error) {
	resp, err := e.getter.Get(ctx, target, opts...)
	if resp != nil && resp.Challenge != "" {
		e.logger.Warn("search engine served a challenge page", "source", resp.Challenge, "status", resp.StatusCode)
		return nil, nil
	}
	if err != nil {
		return nil, &ProviderError{Provider: e.name, Op: "fetch", Err: err}
	}
	return resp.Body, nil
}

// checkCount validates count and reports whether a request is needed at all.
func checkCount(count int) (bool, error) {
	if count < 0 {
		return false, ErrInvalidCount
	}
	return count > 0, nil
}

func emptyOr(err error) ([]SearchResult, error) {
	if err != nil {
		return nil, err
	}
	return []SearchResult{}, nil
}
