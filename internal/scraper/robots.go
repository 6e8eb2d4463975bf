package scraper

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/url"
	"sync"

	"github.com/temoto/robotstxt"
	"golang.org/x/sync/singleflight"
)

// RobotsTxtAuditor answers whether a URL may be fetched under its host's robots.txt.
// Rules are fetched once per scheme+host and kept for the auditor's lifetime.
type RobotsTxtAuditor struct {
	fetcher *Fetcher
	logger  *slog.Logger

	mu    sync.RWMutex
	cache map[string]*robotstxt.RobotsData // nil value: no usable robots.txt, allow all
	group singleflight.Group
}

// NewRobotsTxtAuditor creates a new instance.
func NewRobotsTxtAuditor(fetcher *Fetcher, logger *slog.Logger) *RobotsTxtAuditor {
	if logger == nil {
		logger = slog.Default()
	}
	return &RobotsTxtAuditor{
		fetcher: fetcher,
		logger:  logger,
		cache:   make(map[string]*robotstxt.RobotsData),
	}
}

// IsAllowed reports whether userAgent may fetch targetURL. Failures to obtain
// robots.txt fail open.
func (r *RobotsTxtAuditor) IsAllowed(ctx context.Context, targetURL string, userAgent string) (bool, error) {
	u, err := url.Parse(targetURL)
	if err != nil {
		return false, fmt.Errorf("invalid url: %w", err)
	}
	if u.Host == "" {
		return false, fmt.Errorf("invalid url %q: missing host", targetURL)
	}

	data, err := r.rules(ctx, u.Scheme+"://"+u.Host)
	if err != nil {
		r.logger.Debug("robots.txt unavailable, defaulting to allow", "host", u.Host, "err", err)
		return true, nil
	}
	if data == nil {
		return true, nil
	}

	path := u.EscapedPath()
	if path == "" {
		path = "/"
	}
	return data.FindGroup(userAgent).Test(path), nil
}

func (r *RobotsTxtAuditor) rules(ctx context.Context, host string) (*robotstxt.RobotsData, error) {
	r.mu.RLock()
	data, ok := r.cache[host]
	r.mu.RUnlock()
	if ok {
		return data, nil
	}

	v, err, _ := r.group.Do(host, func() (any, error) {
		data, cacheable, err := r.fetch(ctx, host)
		if cacheable {
			r.mu.Lock()
			r.cache[host] = data
			r.mu.Unlock()
		}
		return data, err
	})
	if err != nil {
		return nil, err
	}
	return v.(*robotstxt.RobotsData), nil
}

// fetch retrieves and parses robots.txt. Client errors (404 and friends) mean
// there are no rules and are cached; transport and server errors are not.
func (r *RobotsTxtAuditor) fetch(ctx context.Context, host string) (*robotstxt.RobotsData, bool, error) {
	resp, err := r.fetcher.Get(ctx, host+"/robots.txt", WithHeader("Accept", "text/plain,*/*;q=0.8"))
	if err != nil {
		var se *StatusError
		if errors.As(err, &se) && se.StatusCode >= 400 && se.StatusCode < 500 {
			return nil, true, nil
		}
		return nil, false, fmt.Errorf("fetch error: %w", err)
	}

	parsed, err := robotstxt.FromBytes(resp.Body)
	if err != nil {
		return nil, true, fmt.Errorf("parse error: %w", err)
	}
	return parsed, true, nil
}
