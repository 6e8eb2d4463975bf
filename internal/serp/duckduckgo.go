package serp

import (
	"bytes"
	"context"
	"log/slog"
	"net/url"

	"github.com/PuerkitoBio/goquery"
)

const (
	// NameDuckDuckGo is the registry name of the DuckDuckGo engine.
	NameDuckDuckGo = "duckduckgo"

	defaultDuckDuckGoBaseURL = "https://html.duckduckgo.com"
)

// DuckDuckGoConfig configures the DuckDuckGo engine.
type DuckDuckGoConfig struct {
	BaseURL string
}

// DuckDuckGo scrapes the JavaScript-free DuckDuckGo results page.
type DuckDuckGo struct {
	engine
}

var _ Provider = (*DuckDuckGo)(nil)

// NewDuckDuckGo creates the DuckDuckGo engine.
func NewDuckDuckGo(getter Getter, cfg DuckDuckGoConfig, logger *slog.Logger) *DuckDuckGo {
	if cfg.BaseURL == "" {
		cfg.BaseURL = defaultDuckDuckGoBaseURL
	}
	return &DuckDuckGo{engine: newEngine(NameDuckDuckGo, cfg.BaseURL, getter, logger)}
}

// Search implements Provider.
func (d *DuckDuckGo) Search(ctx context.Context, query string, count int) ([]SearchResult, error) {
	if ok, err := checkCount(count); !ok {
		return emptyOr(err)
	}

	params := url.Values{}
	params.Set("q", query)
	target := d.baseURL + "/html/?" + params.Encode()

	body, err := d.fetch(ctx, target)
	if err != nil {
		return nil, err
	}
	if body == nil {
		return []SearchResult{}, nil
	}

	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(body))
	if err != nil {
		return nil, &ProviderError{Provider: d.name, Op: "parse", Err: err}
	}

	c := newCollector(d.name, target, count)
	doc.Find("a.result__a").EachWithBreak(func(_ int, s *goquery.Selection) bool {
		href, ok := s.Attr("href")
		if !ok {
			return true
		}
		return c.add(unwrapDuckDuckGo(href), s.Text())
	})

	d.logger.Debug("search completed", "query", query, "results", len(c.results()))
	return c.results(), nil
}

// unwrapDuckDuckGo resolves the /l/?uddg= redirect wrapper.
func unwrapDuckDuckGo(href string) string {
	u, err := url.Parse(href)
	if err != nil {
		return href
	}
	if target := u.Query().Get("uddg"); target != "" {
		return target
	}
	return href
}
