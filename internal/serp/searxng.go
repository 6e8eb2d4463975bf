package serp

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/url"

	"github.com/FranksOps/metasearch/internal/scraper"
)

// NameSearXNG is the registry name of the SearXNG engine.
const NameSearXNG = "searxng"

// ErrMissingBaseURL is returned when an engine without a public default has no base URL.
var ErrMissingBaseURL = errors.New("serp: base URL is required")

// SearXNGConfig configures a SearXNG instance. The instance must have the
// json output format enabled.
type SearXNGConfig struct {
	BaseURL string
}

// SearXNG queries a self-hosted SearXNG instance through its JSON API.
type SearXNG struct {
	engine
}

var _ Provider = (*SearXNG)(nil)

type searxngResponse struct {
	Results []struct {
		URL   string `json:"url"`
		Title string `json:"title"`
	} `json:"results"`
}

// NewSearXNG creates the SearXNG engine.
func NewSearXNG(getter Getter, cfg SearXNGConfig, logger *slog.Logger) (*SearXNG, error) {
	if cfg.BaseURL == "" {
		return nil, ErrMissingBaseURL
	}
	return &SearXNG{engine: newEngine(NameSearXNG, cfg.BaseURL, getter, logger)}, nil
}

// Search implements Provider.
func (s *SearXNG) Search(ctx context.Context, query string, count int) ([]SearchResult, error) {
	if ok, err := checkCount(count); !ok {
		return emptyOr(err)
	}

	params := url.Values{}
	params.Set("q", query)
	params.Set("format", "json")
	target := s.baseURL + "/search?" + params.Encode()

	body, err := s.fetch(ctx, target, scraper.WithHeader("Accept", "application/json"))
	if err != nil {
		return nil, err
	}
	if body == nil {
		return []SearchResult{}, nil
	}

	var payload searxngResponse
	if err := json.Unmarshal(body, &payload); err != nil {
		return nil, &ProviderError{Provider: s.name, Op: "decode", Err: err}
	}

	c := newCollector(s.name, target, count)
	for _, r := range payload.Results {
		if !c.add(r.URL, r.Title) {
			break
		}
	}

	s.logger.Debug("search completed", "query", query, "results", len(c.results()))
	return c.results(), nil
}
