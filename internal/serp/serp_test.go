package serp

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/FranksOps/metasearch/internal/scraper"
	"github.com/FranksOps/metasearch/pkg/useragent"
)

func newTestFetcher(t *testing.T) *scraper.Fetcher {
	t.Helper()
	f, err := scraper.NewFetcher(scraper.FetchConfig{
		Timeout:    5 * time.Second,
		UserAgents: useragent.Fixed("serp-test/1.0"),
	})
	require.NoError(t, err)
	return f
}

func serveHTML(t *testing.T, path, body string, check func(*http.Request)) *httptest.Server {
	t.Helper()
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != path {
			http.NotFound(w, r)
			return
		}
		if check != nil {
			check(r)
		}
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		_, _ = w.Write([]byte(body))
	}))
	t.Cleanup(ts.Close)
	return ts
}

const googlePage = `<html><body>
<div class="g"><a href="/url?q=https://go.dev/doc/&amp;sa=U"><h3>Documentation - The Go Programming Language</h3></a></div>
<div class="g"><a href="https://pkg.go.dev/"><h3>  Go   Packages </h3></a></div>
<div class="g"><a href="/search?q=next"><h3>More results</h3></a></div>
<div class="g"><a href="https://go.dev/doc/#intro"><h3>Duplicate with fragment</h3></a></div>
<div class="g"><a href="https://gobyexample.com/"><h3></h3></a></div>
<div class="g"><a href="https://tour.golang.org/"><h3>A Tour of Go</h3></a></div>
<a href="https://ignored.example/">no heading</a>
</body></html>`

func TestGoogle_Search(t *testing.T) {
	ts := serveHTML(t, "/search", googlePage, func(r *http.Request) {
		assert.Equal(t, "golang", r.URL.Query().Get("q"))
		assert.Equal(t, "3", r.URL.Query().Get("num"))
		assert.Equal(t, "ru", r.URL.Query().Get("hl"))
	})

	g := NewGoogle(newTestFetcher(t), GoogleConfig{BaseURL: ts.URL}, nil)
	assert.Equal(t, NameGoogle, g.Name())

	results, err := g.Search(context.Background(), "golang", 3)
	require.NoError(t, err)
	assert.Equal(t, []SearchResult{
		{URL: "https://go.dev/doc/", Title: "Documentation - The Go Programming Language", Provider: NameGoogle},
		{URL: "https://pkg.go.dev/", Title: "Go Packages", Provider: NameGoogle},
		{URL: "https://gobyexample.com/", Title: "https://gobyexample.com/", Provider: NameGoogle},
	}, results)
}

func TestGoogle_ZeroAndNegativeCount(t *testing.T) {
	var calls atomic.Int32
	ts := serveHTML(t, "/search", googlePage, func(*http.Request) { calls.Add(1) })
	g := NewGoogle(newTestFetcher(t), GoogleConfig{BaseURL: ts.URL}, nil)

	results, err := g.Search(context.Background(), "golang", 0)
	require.NoError(t, err)
	assert.Empty(t, results)
	assert.NotNil(t, results)

	_, err = g.Search(context.Background(), "golang", -1)
	assert.ErrorIs(t, err, ErrInvalidCount)
	assert.Zero(t, calls.Load())
}

func TestGoogle_Challenge(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		w.WriteHeader(http.StatusTooManyRequests)
		_, _ = w.Write([]byte(`<html><body>Our systems have detected unusual traffic from your computer network.
<a href="https://trap.example/"><h3>not a result</h3></a></body></html>`))
	}))
	defer ts.Close()

	g := NewGoogle(newTestFetcher(t), GoogleConfig{BaseURL: ts.URL}, nil)
	results, err := g.Search(context.Background(), "golang", 5)
	require.NoError(t, err)
	assert.Empty(t, results)
}

func TestGoogle_QueryEchoIsNotChallenge(t *testing.T) {
	page := strings.Replace(googlePage, "<body>",
		`<body><form><input name="q" value="yandex smart-captcha setup Our systems have detected unusual traffic"></form>`, 1)
	ts := serveHTML(t, "/search", page, nil)

	g := NewGoogle(newTestFetcher(t), GoogleConfig{BaseURL: ts.URL}, nil)
	results, err := g.Search(context.Background(), "yandex smart-captcha setup", 2)
	require.NoError(t, err)
	assert.Equal(t, []SearchResult{
		{URL: "https://go.dev/doc/", Title: "Documentation - The Go Programming Language", Provider: NameGoogle},
		{URL: "https://pkg.go.dev/", Title: "Go Packages", Provider: NameGoogle},
	}, results)
}

func TestGoogle_ServerError(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer ts.Close()

	g := NewGoogle(newTestFetcher(t), GoogleConfig{BaseURL: ts.URL}, nil)
	_, err := g.Search(context.Background(), "golang", 5)

	var perr *ProviderError
	require.ErrorAs(t, err, &perr)
	assert.Equal(t, NameGoogle, perr.Provider)
	var serr *scraper.StatusError
	require.ErrorAs(t, err, &serr)
	assert.Equal(t, http.StatusBadGateway, serr.StatusCode)
}

const yandexPage = `<html><body><ul>
<li class="serp-item organic"><a class="organic__url" href="https://www.rust-lang.org/">Rust Programming Language</a></li>
<li class="serp-item"><a class="organic__url" href="https://ads.example/">Advert</a></li>
<li class="serp-item organic"><div>no link</div></li>
<li class="serp-item organic"><a class="organic__url" href="https://doc.rust-lang.org/book/">The Rust Book</a></li>
</ul></body></html>`

func TestYandex_Search(t *testing.T) {
	ts := serveHTML(t, "/search/", yandexPage, func(r *http.Request) {
		assert.Equal(t, "rust", r.URL.Query().Get("text"))
		assert.Equal(t, "213", r.URL.Query().Get("lr"))
	})

	y := NewYandex(newTestFetcher(t), YandexConfig{BaseURL: ts.URL}, nil)
	results, err := y.Search(context.Background(), "rust", 5)
	require.NoError(t, err)
	assert.Equal(t, []SearchResult{
		{URL: "https://www.rust-lang.org/", Title: "Rust Programming Language", Provider: NameYandex},
		{URL: "https://doc.rust-lang.org/book/", Title: "The Rust Book", Provider: NameYandex},
	}, results)
}

func TestYandex_Captcha(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/search/" {
			http.Redirect(w, r, "/showcaptcha?retpath=x", http.StatusFound)
			return
		}
		_, _ = w.Write([]byte(`<html><div class="CheckboxCaptcha"></div></html>`))
	}))
	defer ts.Close()

	y := NewYandex(newTestFetcher(t), YandexConfig{BaseURL: ts.URL}, nil)
	results, err := y.Search(context.Background(), "rust", 5)
	require.NoError(t, err)
	assert.Empty(t, results)
}

func TestDuckDuckGo_Search(t *testing.T) {
	page := `<html><body>
<a class="result__a" href="//duckduckgo.com/l/?uddg=https%3A%2F%2Fgo.dev%2F&amp;rut=abc">The Go Programming Language</a>
<a class="result__a" href="https://example.org/page">Example</a>
<a class="result__url" href="https://skip.example/">skip</a>
</body></html>`
	ts := serveHTML(t, "/html/", page, func(r *http.Request) {
		assert.Equal(t, "go", r.URL.Query().Get("q"))
	})

	d := NewDuckDuckGo(newTestFetcher(t), DuckDuckGoConfig{BaseURL: ts.URL}, nil)
	results, err := d.Search(context.Background(), "go", 10)
	require.NoError(t, err)
	assert.Equal(t, []SearchResult{
		{URL: "https://go.dev/", Title: "The Go Programming Language", Provider: NameDuckDuckGo},
		{URL: "https://example.org/page", Title: "Example", Provider: NameDuckDuckGo},
	}, results)
}

func TestSearXNG_Search(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "json", r.URL.Query().Get("format"))
		assert.Equal(t, "application/json", r.Header.Get("Accept"))
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"results":[
			{"url":"https://a.example/","title":"A"},
			{"url":"ftp://b.example/","title":"B"},
			{"url":"https://c.example/","title":""},
			{"url":"https://d.example/","title":"D"}]}`))
	}))
	defer ts.Close()

	s, err := NewSearXNG(newTestFetcher(t), SearXNGConfig{BaseURL: ts.URL}, nil)
	require.NoError(t, err)

	results, err := s.Search(context.Background(), "q", 2)
	require.NoError(t, err)
	assert.Equal(t, []SearchResult{
		{URL: "https://a.example/", Title: "A", Provider: NameSearXNG},
		{URL: "https://c.example/", Title: "https://c.example/", Provider: NameSearXNG},
	}, results)
}

func TestSearXNG_BadJSON(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte(`not json`))
	}))
	defer ts.Close()

	s, err := NewSearXNG(newTestFetcher(t), SearXNGConfig{BaseURL: ts.URL}, nil)
	require.NoError(t, err)
	_, err = s.Search(context.Background(), "q", 2)

	var perr *ProviderError
	require.ErrorAs(t, err, &perr)
	assert.Equal(t, "decode", perr.Op)
}

func TestNew(t *testing.T) {
	opts := Options{Getter: newTestFetcher(t), SearXNG: SearXNGConfig{BaseURL: "http://localhost:8888"}}
	for _, name := range Names() {
		p, err := New(name, opts)
		require.NoError(t, err, name)
		assert.Equal(t, name, p.Name())
	}

	_, err := New("altavista", opts)
	assert.ErrorIs(t, err, ErrUnknownProvider)

	_, err = New(NameSearXNG, Options{})
	assert.ErrorIs(t, err, ErrMissingBaseURL)
}

func TestNormalize(t *testing.T) {
	tests := []struct {
		raw  string
		want string
		ok   bool
	}{
		{"https://a.example/x#frag", "https://a.example/x", true},
		{"/relative", "https://base.example/relative", true},
		{"javascript:void(0)", "", false},
		{"mailto:a@b.c", "", false},
		{"  ", "", false},
	}
	base, err := url.Parse("https://base.example/search")
	require.NoError(t, err)
	for _, tt := range tests {
		got, ok := normalize(base, tt.raw)
		assert.Equal(t, tt.ok, ok, tt.raw)
		assert.Equal(t, tt.want, got, tt.raw)
	}
}

func TestProviderError(t *testing.T) {
	inner := errors.New("boom")
	err := &ProviderError{Provider: "google", Op: "fetch", Err: inner}
	assert.Equal(t, "google fetch: boom", err.Error())
	assert.ErrorIs(t, err, inner)
}

func TestCollector_Limit(t *testing.T) {
	c := newCollector("p", "https://base.example/", 2)
	assert.True(t, c.add("https://a.example/", "A"))
	assert.True(t, c.add("https://a.example/", "A again"))
	assert.False(t, c.add("https://b.example/", "B"))
	assert.False(t, c.add("https://c.example/", "C"))
	assert.Len(t, c.results(), 2)
}
