// Package aggregator fans a query out to every registered provider, merges the
// answers in registration order, removes duplicate URLs and serves stable
// pages from a bounded query cache.
package aggregator

import (
	"context"
	"errors"
	"log/slog"
	"slices"
	"strings"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/hashicorp/golang-lru/v2/expirable"
	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/singleflight"

	"github.com/FranksOps/metasearch/internal/metrics"
	"github.com/FranksOps/metasearch/internal/serp"
)

// ErrNoProviders is returned by New when no provider is registered.
var ErrNoProviders = errors.New("aggregator: at least one provider is required")

// Options tunes the aggregator. Zero values select the defaults.
type Options struct {
	// PerProviderCount is the number of results requested from each provider. Default 5.
	PerProviderCount int
	// RequestTimeout bounds every provider call independently. Default 15s.
	RequestTimeout time.Duration
	// CacheSize is the maximum number of cached queries. Default 1024.
	CacheSize int
	// CacheTTL is how long a merged result list is served before the query is
	// fanned out again. Default 30m.
	CacheTTL time.Duration
	Logger   *slog.Logger
	// Now stamps Entry.CreatedAt. Default time.Now. Cache expiry follows the
	// wall clock regardless.
	Now func() time.Time
}

// Entry is the frozen, deduplicated result list of one query.
type Entry struct {
	ID        uuid.UUID           `json:"id"`
	Query     string              `json:"query"`
	Results   []serp.SearchResult `json:"results"`
	CreatedAt time.Time           `json:"created_at"`
}

// Page returns a copy of the index-th slice of size results. Out of range
// indexes yield an empty slice.
func (e *Entry) Page(index, size int) []serp.SearchResult {
	if e == nil || index < 0 || size <= 0 || index > len(e.Results)/size {
		return []serp.SearchResult{}
	}
	start := index * size
	if start >= len(e.Results) {
		return []serp.SearchResult{}
	}
	end := min(start+size, len(e.Results))
	return slices.Clone(e.Results[start:end])
}

// HasMore reports whether a page follows the index-th one.
func (e *Entry) HasMore(index, size int) bool {
	if e == nil || index < 0 || size <= 0 {
		return false
	}
	return (index+1)*size < len(e.Results)
}

// Stats is a snapshot of cache activity.
type Stats struct {
	Hits   uint64 `json:"hits"`
	Misses uint64 `json:"misses"`
	Size   int    `json:"size"`
}

// Aggregator is the result aggregation engine. It is safe for concurrent use.
type Aggregator struct {
	providers []serp.Provider
	count     int
	timeout   time.Duration
	now       func() time.Time
	logger    *slog.Logger

	cache  *expirable.LRU[string, *Entry]
	flight singleflight.Group

	hits   atomic.Uint64
	misses atomic.Uint64
}

// New creates an aggregator over providers. Their order is the merge order.
func New(providers []serp.Provider, opts Options) (*Aggregator, error) {
	if len(providers) == 0 {
		return nil, ErrNoProviders
	}
	if opts.PerProviderCount <= 0 {
		opts.PerProviderCount = 5
	}
	if opts.RequestTimeout <= 0 {
		opts.RequestTimeout = 15 * time.Second
	}
	if opts.CacheSize <= 0 {
		opts.CacheSize = 1024
	}
	if opts.CacheTTL <= 0 {
		opts.CacheTTL = 30 * time.Minute
	}
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}

	return &Aggregator{
		providers: slices.Clone(providers),
		count:     opts.PerProviderCount,
		timeout:   opts.RequestTimeout,
		now:       opts.Now,
		logger:    opts.Logger,
		cache:     expirable.NewLRU[string, *Entry](opts.CacheSize, nil, opts.CacheTTL),
	}, nil
}

// PageSize is the per-provider count times the number of providers.
func (a *Aggregator) PageSize() int { return a.count * len(a.providers) }

// Providers returns the provider names in registration order.
func (a *Aggregator) Providers() []string {
	names := make([]string, len(a.providers))
	for i, p := range a.providers {
		names[i] = p.Name()
	}
	return names
}

// GetPage returns the page-th slice of the merged results for query. It never
// fails: provider errors count as empty contributions and a cancelled caller
// gets an empty page.
func (a *Aggregator) GetPage(ctx context.Context, query string, page int) []serp.SearchResult {
	return a.Entry(ctx, query).Page(page, a.PageSize())
}

// Entry returns the cached entry for query, fanning out on a miss. Concurrent
// misses for the same query share one fan-out.
func (a *Aggregator) Entry(ctx context.Context, query string) *Entry {
	key := strings.TrimSpace(query)
	if key == "" {
		return a.newEntry(key, []serp.SearchResult{})
	}

	if e, ok := a.cache.Get(key); ok {
		a.hits.Add(1)
		metrics.RecordCacheLookup(true)
		return e
	}
	a.misses.Add(1)
	metrics.RecordCacheLookup(false)

	// The fan-out outlives a cancelled caller so the other waiters and the
	// cache still get the answer.
	ch := a.flight.DoChan(key, func() (any, error) {
		if e, ok := a.cache.Get(key); ok {
			return e, nil
		}
		e := a.newEntry(key, a.fanOut(context.WithoutCancel(ctx), key))
		a.cache.Add(key, e)
		return e, nil
	})

	select {
	case <-ctx.Done():
		a.logger.Warn("search abandoned by caller", "query", key, "err", ctx.Err())
		return a.newEntry(key, []serp.SearchResult{})
	case res := <-ch:
		return res.Val.(*Entry)
	}
}

// Stats returns cache counters.
func (a *Aggregator) Stats() Stats {
	return Stats{Hits: a.hits.Load(), Misses: a.misses.Load(), Size: a.cache.Len()}
}

// Purge drops every cached query.
func (a *Aggregator) Purge() { a.cache.Purge() }

func (a *Aggregator) newEntry(query string, results []serp.SearchResult) *Entry {
	return &Entry{ID: uuid.New(), Query: query, Results: results, CreatedAt: a.now()}
}

// fanOut queries every provider concurrently. Each provider writes into its own
// slot so the merge can follow registration order whatever the completion order.
func (a *Aggregator) fanOut(ctx context.Context, query string) []serp.SearchResult {
	slots := make([][]serp.SearchResult, len(a.providers))

	var g errgroup.Group
	for i, p := range a.providers {
		g.Go(func() error {
			pctx, cancel := context.WithTimeout(ctx, a.timeout)
			defer cancel()

			results, err := p.Search(pctx, query, a.count)
			if err != nil {
				a.logger.Warn("provider failed, treating as empty", "provider", p.Name(), "query", query, "err", err)
				return nil
			}
			slots[i] = results
			return nil
		})
	}
	_ = g.Wait()

	merged := merge(a.providers, slots, a.count)
	if len(merged) == 0 {
		a.logger.Info("no results from any provider", "query", query)
	}
	return merged
}

// merge concatenates slots in order, truncating each to count and keeping the
// first occurrence of every URL.
func merge(providers []serp.Provider, slots [][]serp.SearchResult, count int) []serp.SearchResult {
	merged := make([]serp.SearchResult, 0, count*len(slots))
	seen := make(map[string]struct{}, count*len(slots))
	for i, results := range slots {
		if len(results) > count {
			results = results[:count]
		}
		for _, r := range results {
			if _, dup := seen[r.URL]; dup || r.URL == "" {
				continue
			}
			seen[r.URL] = struct{}{}
			if r.Provider == "" {
				r.Provider = providers[i].Name()
			}
			merged = append(merged, r)
		}
	}
	return merged
}
