// Package enrich fetches the pages behind search results and turns them into
// short display entries.
package enrich

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"mime"
	"strings"
	"time"

	"github.com/FranksOps/metasearch/internal/challenge"
	"github.com/FranksOps/metasearch/internal/metrics"
	"github.com/FranksOps/metasearch/internal/scraper"
	"github.com/FranksOps/metasearch/internal/serp"
)

// EnrichedResult is a search result with content taken from its page.
type EnrichedResult struct {
	URL         string `json:"url"`
	Title       string `json:"title"`
	Description string `json:"description"`
	Provider    string `json:"provider"`
}

var (
	// ErrDisallowed is returned when robots.txt forbids fetching the page.
	ErrDisallowed = errors.New("enrich: disallowed by robots.txt")
	// ErrChallenge is returned when the page is a bot wall instead of content.
	ErrChallenge = errors.New("enrich: challenge page")
)

// FetchError wraps a failure to retrieve one page.
type FetchError struct {
	URL string
	// StatusCode is set when a response was received.
	StatusCode int
	// Challenge names the bot wall that answered, if any.
	Challenge string
	Err       error
}

func (e *FetchError) Error() string { return fmt.Sprintf("fetch %s: %v", e.URL, e.Err) }

func (e *FetchError) Unwrap() error { return e.Err }

// Outcome classifies the failure with the metrics outcome labels.
func (e *FetchError) Outcome() string {
	switch {
	case errors.Is(e.Err, ErrDisallowed):
		return metrics.OutcomeBlocked
	case errors.Is(e.Err, ErrChallenge):
		return metrics.OutcomeChallenge
	default:
		return metrics.OutcomeError
	}
}

// Robots decides whether a URL may be fetched. *scraper.RobotsTxtAuditor implements it.
type Robots interface {
	IsAllowed(ctx context.Context, targetURL, userAgent string) (bool, error)
}

// FetcherOptions configures a Fetcher. Zero values select the defaults.
type FetcherOptions struct {
	// DescriptionMaxLength is the description budget in characters. Default 300.
	DescriptionMaxLength int
	// Blocks is the number of block elements joined into the description. Default 3.
	Blocks int
	// Robots, if set, is consulted before every fetch.
	Robots Robots
	// UserAgent is the token matched against robots.txt groups. Default "*".
	UserAgent string
	Logger    *slog.Logger
}

// Fetcher retrieves a page and extracts its title and description.
type Fetcher struct {
	getter serp.Getter
	opts   FetcherOptions
	logger *slog.Logger
}

// NewFetcher creates a Fetcher on top of the shared outbound client.
func NewFetcher(getter serp.Getter, opts FetcherOptions) *Fetcher {
	if opts.DescriptionMaxLength <= 0 {
		opts.DescriptionMaxLength = 300
	}
	if opts.Blocks <= 0 {
		opts.Blocks = 3
	}
	if opts.UserAgent == "" {
		opts.UserAgent = "*"
	}
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	return &Fetcher{getter: getter, opts: opts, logger: opts.Logger}
}

// Fetch retrieves pageURL. Transport errors, non-2xx statuses, robots.txt
// denials and challenge pages return a *FetchError. Unextractable content is
// not an error.
func (f *Fetcher) Fetch(ctx context.Context, pageURL string) (EnrichedResult, error) {
	start := time.Now()
	res, ferr := f.fetch(ctx, pageURL)

	outcome := metrics.OutcomeOK
	switch {
	case ferr != nil:
		outcome = ferr.Outcome()
	case res.Description == "":
		outcome = metrics.OutcomeEmpty
	}
	metrics.RecordFetch(outcome, time.Since(start))

	if ferr != nil {
		f.logger.Debug("page fetch failed", "url", pageURL, "outcome", outcome, "err", ferr.Err)
		return EnrichedResult{}, ferr
	}
	return res, nil
}

func (f *Fetcher) fetch(ctx context.Context, pageURL string) (EnrichedResult, *FetchError) {
	if f.opts.Robots != nil {
		allowed, err := f.opts.Robots.IsAllowed(ctx, pageURL, f.opts.UserAgent)
		if err != nil {
			return EnrichedResult{}, &FetchError{URL: pageURL, Err: err}
		}
		if !allowed {
			return EnrichedResult{}, &FetchError{URL: pageURL, Err: ErrDisallowed}
		}
	}

	resp, err := f.getter.Get(ctx, pageURL)
	if resp != nil && isWall(resp) {
		return EnrichedResult{}, &FetchError{
			URL:        pageURL,
			StatusCode: resp.StatusCode,
			Challenge:  resp.Challenge,
			Err:        fmt.Errorf("%w: %s", ErrChallenge, resp.Challenge),
		}
	}
	if err != nil {
		ferr := &FetchError{URL: pageURL, Err: err}
		if resp != nil {
			ferr.StatusCode = resp.StatusCode
		}
		return EnrichedResult{}, ferr
	}

	out := EnrichedResult{URL: pageURL, Title: pageURL}
	if isHTML(resp) {
		out.Title, out.Description = Extract(resp.Body, pageURL, f.opts.DescriptionMaxLength, f.opts.Blocks)
	}
	return out, nil
}

// isWall reports whether a detected challenge replaced the page. A 2xx answer
// is only a wall when it landed on an engine interstitial.
func isWall(resp *scraper.Response) bool {
	if resp.Challenge == "" {
		return false
	}
	ok := resp.StatusCode >= 200 && resp.StatusCode <= 299
	return !ok || challenge.Interstitial(resp.URL)
}

func isHTML(resp *scraper.Response) bool {
	ct := resp.Header.Get("Content-Type")
	if ct == "" {
		return true
	}
	mediaType, _, err := mime.ParseMediaType(ct)
	if err != nil {
		return true
	}
	return strings.Contains(mediaType, "html")
}
