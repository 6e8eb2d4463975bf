package serp

import (
	"bytes"
	"context"
	"log/slog"
	"net/url"

	"github.com/PuerkitoBio/goquery"
)

const (
	// NameYandex is the registry name of the Yandex engine.
	NameYandex = "yandex"

	defaultYandexBaseURL = "https://yandex.ru"
	// 213 is Moscow.
	defaultYandexRegion = "213"
)

// YandexConfig configures the Yandex engine.
type YandexConfig struct {
	BaseURL string
	// Region is the lr region code.
	Region string
}

// Yandex scrapes the Yandex HTML results page.
type Yandex struct {
	engine
	region string
}

var _ Provider = (*Yandex)(nil)

// NewYandex creates the Yandex engine.
func NewYandex(getter Getter, cfg YandexConfig, logger *slog.Logger) *Yandex {
	if cfg.BaseURL == "" {
		cfg.BaseURL = defaultYandexBaseURL
	}
	if cfg.Region == "" {
		cfg.Region = defaultYandexRegion
	}
	return &Yandex{
		engine: newEngine(NameYandex, cfg.BaseURL, getter, logger),
		region: cfg.Region,
	}
}

// Search implements Provider.
func (y *Yandex) Search(ctx context.Context, query string, count int) ([]SearchResult, error) {
	if ok, err := checkCount(count); !ok {
		return emptyOr(err)
	}

	params := url.Values{}
	params.Set("text", query)
	params.Set("lr", y.region)
	target := y.baseURL + "/search/?" + params.Encode()

	body, err := y.fetch(ctx, target)
	if err != nil {
		return nil, err
	}
	if body == nil {
		return []SearchResult{}, nil
	}

	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(body))
	if err != nil {
		return nil, &ProviderError{Provider: y.name, Op: "parse", Err: err}
	}

	c := newCollector(y.name, target, count)
	doc.Find(".serp-item.organic").EachWithBreak(func(_ int, item *goquery.Selection) bool {
		link := item.Find(".organic__url").First()
		href, ok := link.Attr("href")
		if !ok {
			return true
		}
		return c.add(href, link.Text())
	})

	y.logger.Debug("search completed", "query", query, "results", len(c.results()))
	return c.results(), nil
}
