package serp

import (
	"bytes"
	"context"
	"log/slog"
	"net/url"
	"strconv"
	"strings"

	"github.com/PuerkitoBio/goquery"
)

const (
	// NameGoogle is the registry name of the Google engine.
	NameGoogle = "google"

	defaultGoogleBaseURL  = "https://www.google.com"
	defaultGoogleLanguage = "ru"
)

// GoogleConfig configures the Google engine.
type GoogleConfig struct {
	BaseURL string
	// Language is the hl interface language parameter.
	Language string
}

// Google scrapes the Google HTML results page.
type Google struct {
	engine
	language string
}

var _ Provider = (*Google)(nil)

// NewGoogle creates the Google engine.
func NewGoogle(getter Getter, cfg GoogleConfig, logger *slog.Logger) *Google {
	if cfg.BaseURL == "" {
		cfg.BaseURL = defaultGoogleBaseURL
	}
	if cfg.Language == "" {
		cfg.Language = defaultGoogleLanguage
	}
	return &Google{
		engine:   newEngine(NameGoogle, cfg.BaseURL, getter, logger),
		language: cfg.Language,
	}
}

// Search implements Provider.
func (g *Google) Search(ctx context.Context, query string, count int) ([]SearchResult, error) {
	if ok, err := checkCount(count); !ok {
		return emptyOr(err)
	}

	params := url.Values{}
	params.Set("q", query)
	params.Set("num", strconv.Itoa(count))
	params.Set("hl", g.language)
	target := g.baseURL + "/search?" + params.Encode()

	body, err := g.fetch(ctx, target)
	if err != nil {
		return nil, err
	}
	if body == nil {
		return []SearchResult{}, nil
	}

	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(body))
	if err != nil {
		return nil, &ProviderError{Provider: g.name, Op: "parse", Err: err}
	}

	c := newCollector(g.name, target, count)
	doc.Find("a[href]:has(h3)").EachWithBreak(func(_ int, s *goquery.Selection) bool {
		href, _ := s.Attr("href")
		link, ok := unwrapGoogle(g.baseURL, href)
		if !ok {
			return true
		}
		return c.add(link, s.Find("h3").First().Text())
	})

	g.logger.Debug("search completed", "query", query, "results", len(c.results()))
	return c.results(), nil
}

// unwrapGoogle resolves the /url?q= redirect wrapper and drops links that
// point back into Google itself.
func unwrapGoogle(baseURL, href string) (string, bool) {
	u, err := url.Parse(href)
	if err != nil {
		return "", false
	}
	if u.Path == "/url" && (u.Host == "" || isGoogleHost(u.Host, baseURL)) {
		q := u.Query()
		target := q.Get("q")
		if target == "" {
			target = q.Get("url")
		}
		if target == "" {
			return "", false
		}
		return target, true
	}
	if u.Host == "" || isGoogleHost(u.Host, baseURL) {
		return "", false
	}
	return href, true
}

func isGoogleHost(host, baseURL string) bool {
	host = strings.ToLower(host)
	if b, err := url.Parse(baseURL); err == nil && strings.EqualFold(b.Host, host) {
		return true
	}
	return host == "google.com" || strings.HasSuffix(host, ".google.com") ||
		strings.HasPrefix(host, "google.") || strings.Contains(host, ".google.")
}
