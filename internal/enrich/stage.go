package enrich

import (
	"context"
	"log/slog"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/FranksOps/metasearch/internal/serp"
)

// ContentFetcher turns a URL into an EnrichedResult. *Fetcher implements it.
type ContentFetcher interface {
	Fetch(ctx context.Context, pageURL string) (EnrichedResult, error)
}

// Outcome is the settled state of one page in a Stage run.
type Outcome struct {
	Input    serp.SearchResult
	Result   EnrichedResult
	Err      error
	Duration time.Duration
}

// StageOptions configures a Stage.
type StageOptions struct {
	// Concurrency caps simultaneous fetches. Zero means one per entry.
	Concurrency int
	// Observer, if set, receives every outcome once the page has settled.
	Observer func(Outcome)
	Logger   *slog.Logger
}

// Stage enriches a page of results concurrently.
type Stage struct {
	fetcher     ContentFetcher
	concurrency int
	observer    func(Outcome)
	logger      *slog.Logger
}

// NewStage creates a Stage.
func NewStage(fetcher ContentFetcher, opts StageOptions) *Stage {
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	return &Stage{
		fetcher:     fetcher,
		concurrency: opts.Concurrency,
		observer:    opts.Observer,
		logger:      opts.Logger,
	}
}

// Enrich fetches every entry of page and returns the successes in input order.
// Failed entries are dropped. It waits for every fetch to settle; a slow fetch
// is bounded only by its own timeout.
func (s *Stage) Enrich(ctx context.Context, page []serp.SearchResult) []EnrichedResult {
	outcomes := s.EnrichDetailed(ctx, page)
	out := make([]EnrichedResult, 0, len(outcomes))
	for _, o := range outcomes {
		if o.Err == nil {
			out = append(out, o.Result)
		}
	}
	return out
}

// EnrichDetailed is Enrich without the filtering: one Outcome per input entry, in input order.
func (s *Stage) EnrichDetailed(ctx context.Context, page []serp.SearchResult) []Outcome {
	outcomes := make([]Outcome, len(page))
	if len(page) == 0 {
		return outcomes
	}

	// Siblings never cancel each other, so a plain group is used instead of WithContext.
	var g errgroup.Group
	if s.concurrency > 0 {
		g.SetLimit(s.concurrency)
	}
	for i, in := range page {
		g.Go(func() error {
			start := time.Now()
			res, err := s.fetcher.Fetch(ctx, in.URL)
			if err == nil {
				res.Provider = in.Provider
				if res.URL == "" {
					res.URL = in.URL
				}
			}
			outcomes[i] = Outcome{Input: in, Result: res, Err: err, Duration: time.Since(start)}
			return nil
		})
	}
	_ = g.Wait()

	dropped := 0
	for _, o := range outcomes {
		if o.Err != nil {
			dropped++
		}
		if s.observer != nil {
			s.observer(o)
		}
	}
	if dropped > 0 {
		s.logger.Info("dropped pages that could not be enriched", "dropped", dropped, "total", len(page))
	}
	return outcomes
}
