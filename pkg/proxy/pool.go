package proxy

import (
	"errors"
	"fmt"
	"net/url"
	"strings"
	"sync"
	"time"
)

// ErrUnknownProxy is returned when reporting on a proxy the pool does not hold.
var ErrUnknownProxy = errors.New("proxy: not in pool")

// endpoint is a single proxy with health tracking.
type endpoint struct {
	url       *url.URL
	failures  int
	successes int
	benchedAt time.Time // zero when healthy
}

// Config defines settings for the proxy Pool.
type Config struct {
	// MaxFailures is the number of consecutive failures that benches a proxy.
	MaxFailures int
	// Cooldown is how long a benched proxy sits out before it is retried.
	Cooldown time.Duration
	// Now overrides the clock, for tests.
	Now func() time.Time
}

// Pool rotates outgoing requests across proxies, skipping the ones that keep failing.
// It is safe for concurrent use.
type Pool struct {
	mu        sync.Mutex
	endpoints []*endpoint
	byURL     map[string]*endpoint
	cursor    int
	cfg       Config
}

// NewPool creates an empty pool. Zero config values get reasonable defaults.
func NewPool(cfg Config) *Pool {
	if cfg.MaxFailures <= 0 {
		cfg.MaxFailures = 3
	}
	if cfg.Cooldown <= 0 {
		cfg.Cooldown = 5 * time.Minute
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	return &Pool{
		byURL: make(map[string]*endpoint),
		cfg:   cfg,
	}
}

// Add parses raw proxy URLs and appends them to the rotation. A missing scheme
// defaults to http. Duplicates are ignored.
func (p *Pool) Add(rawURLs ...string) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	for _, raw := range rawURLs {
		raw = strings.TrimSpace(raw)
		if raw == "" {
			continue
		}
		if !strings.Contains(raw, "://") {
			raw = "http://" + raw
		}
		u, err := url.Parse(raw)
		if err != nil {
			return fmt.Errorf("parse proxy %q: %w", raw, err)
		}
		if u.Host == "" {
			return fmt.Errorf("parse proxy %q: missing host", raw)
		}
		key := u.String()
		if _, dup := p.byURL[key]; dup {
			continue
		}
		ep := &endpoint{url: u}
		p.endpoints = append(p.endpoints, ep)
		p.byURL[key] = ep
	}
	return nil
}

// Len returns the number of proxies in the pool, healthy or not.
func (p *Pool) Len() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.endpoints)
}

// Next returns the next healthy proxy in round-robin order, or nil if the pool
// is empty or every proxy is cooling down.
func (p *Pool) Next() *url.URL {
	p.mu.Lock()
	defer p.mu.Unlock()

	now := p.cfg.Now()
	for range p.endpoints {
		ep := p.endpoints[p.cursor]
		p.cursor = (p.cursor + 1) % len(p.endpoints)

		if !ep.benchedAt.IsZero() {
			if now.Sub(ep.benchedAt) < p.cfg.Cooldown {
				continue
			}
			ep.benchedAt = time.Time{}
			ep.failures = 0
		}
		return ep.url
	}
	return nil
}

// MarkSuccess records a successful request through proxyURL.
func (p *Pool) MarkSuccess(proxyURL *url.URL) error {
	ep, err := p.lookup(proxyURL)
	if err != nil {
		return err
	}
	ep.successes++
	ep.failures = 0
	p.mu.Unlock()
	return nil
}

// MarkFailure records a failed request through proxyURL and benches the proxy
// once it reaches MaxFailures in a row.
func (p *Pool) MarkFailure(proxyURL *url.URL) error {
	ep, err := p.lookup(proxyURL)
	if err != nil {
		return err
	}
	ep.failures++
	if ep.failures >= p.cfg.MaxFailures {
		ep.benchedAt = p.cfg.Now()
	}
	p.mu.Unlock()
	return nil
}

// lookup returns the endpoint with the lock held on success.
func (p *Pool) lookup(u *url.URL) (*endpoint, error) {
	if u == nil {
		return nil, errors.New("proxy: nil url")
	}
	p.mu.Lock()
	ep, ok := p.byURL[u.String()]
	if !ok {
		p.mu.Unlock()
		return nil, ErrUnknownProxy
	}
	return ep, nil
}
