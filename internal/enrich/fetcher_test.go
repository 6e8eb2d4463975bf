package enrich

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/FranksOps/metasearch/internal/scraper"
	"github.com/FranksOps/metasearch/pkg/useragent"
)

func newGetter(t *testing.T, timeout time.Duration) *scraper.Fetcher {
	t.Helper()
	f, err := scraper.NewFetcher(scraper.FetchConfig{
		Timeout:    timeout,
		UserAgents: useragent.Fixed("enrich-test/1.0"),
	})
	if err != nil {
		t.Fatalf("NewFetcher: %v", err)
	}
	return f
}

func TestFetcher_Fetch(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/page":
			w.Header().Set("Content-Type", "text/html; charset=utf-8")
			_, _ = w.Write([]byte(`<title>Page</title><p>Body text.</p>`))
		case "/pdf":
			w.Header().Set("Content-Type", "application/pdf")
			_, _ = w.Write([]byte(`%PDF-1.4 <p>not html</p>`))
		case "/gone":
			w.WriteHeader(http.StatusNotFound)
		case "/slow":
			time.Sleep(200 * time.Millisecond)
		case "/wall":
			w.Header().Set("Server", "cloudflare")
			w.WriteHeader(http.StatusForbidden)
			_, _ = w.Write([]byte(`<title>Attention Required! | Cloudflare</title>`))
		}
	}))
	defer ts.Close()

	f := NewFetcher(newGetter(t, 50*time.Millisecond), FetcherOptions{})
	ctx := context.Background()

	res, err := f.Fetch(ctx, ts.URL+"/page")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if res.Title != "Page" || res.Description != "Body text." || res.URL != ts.URL+"/page" {
		t.Errorf("unexpected result %+v", res)
	}

	res, err = f.Fetch(ctx, ts.URL+"/pdf")
	if err != nil {
		t.Fatalf("non-html page should not fail: %v", err)
	}
	if res.Title != ts.URL+"/pdf" || res.Description != "" {
		t.Errorf("unexpected non-html result %+v", res)
	}

	_, err = f.Fetch(ctx, ts.URL+"/gone")
	var ferr *FetchError
	if !errors.As(err, &ferr) {
		t.Fatalf("expected FetchError, got %v", err)
	}
	var serr *scraper.StatusError
	if !errors.As(err, &serr) || serr.StatusCode != http.StatusNotFound {
		t.Errorf("expected 404 StatusError, got %v", err)
	}
	if ferr.StatusCode != http.StatusNotFound {
		t.Errorf("expected FetchError to carry 404, got %d", ferr.StatusCode)
	}

	if _, err = f.Fetch(ctx, ts.URL+"/slow"); !errors.As(err, &ferr) {
		t.Errorf("expected FetchError on timeout, got %v", err)
	}

	_, err = f.Fetch(ctx, ts.URL+"/wall")
	if !errors.Is(err, ErrChallenge) {
		t.Errorf("expected ErrChallenge, got %v", err)
	}
	if errors.As(err, &ferr) && ferr.Challenge != "Cloudflare" {
		t.Errorf("expected Cloudflare challenge, got %q", ferr.Challenge)
	}
}

type denyAll struct{ calls int }

func (d *denyAll) IsAllowed(context.Context, string, string) (bool, error) {
	d.calls++
	return false, nil
}

func TestFetcher_RespectsRobots(t *testing.T) {
	hits := 0
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) { hits++ }))
	defer ts.Close()

	robots := &denyAll{}
	f := NewFetcher(newGetter(t, time.Second), FetcherOptions{Robots: robots, UserAgent: "metasearch"})

	_, err := f.Fetch(context.Background(), ts.URL+"/private")
	if !errors.Is(err, ErrDisallowed) {
		t.Fatalf("expected ErrDisallowed, got %v", err)
	}
	if robots.calls != 1 || hits != 0 {
		t.Errorf("expected robots check only, got robots=%d hits=%d", robots.calls, hits)
	}
}

func TestFetchError_Outcome(t *testing.T) {
	tests := []struct {
		err  error
		want string
	}{
		{ErrDisallowed, "robots_blocked"},
		{fmt.Errorf("%w: Cloudflare", ErrChallenge), "challenge"},
		{errors.New("connection refused"), "error"},
	}
	for _, tt := range tests {
		fe := &FetchError{URL: "https://x.example/", Err: tt.err}
		if got := fe.Outcome(); got != tt.want {
			t.Errorf("Outcome(%v) = %q, want %q", tt.err, got, tt.want)
		}
	}
}

func TestFetcher_CaptchaMentionsAreContent(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		switch r.URL.Path {
		case "/guide":
			_, _ = w.Write([]byte(`<title>Captcha guide</title><p>Integrate the smart-captcha widget with one script tag.</p>`))
		case "/showcaptcha":
			_, _ = w.Write([]byte(`<div class="CheckboxCaptcha"></div>`))
		}
	}))
	defer ts.Close()

	f := NewFetcher(newGetter(t, time.Second), FetcherOptions{})

	res, err := f.Fetch(context.Background(), ts.URL+"/guide")
	if err != nil {
		t.Fatalf("a page about captchas is not a challenge: %v", err)
	}
	if res.Title != "Captcha guide" || res.Description != "Integrate the smart-captcha widget with one script tag." {
		t.Errorf("unexpected result %+v", res)
	}

	_, err = f.Fetch(context.Background(), ts.URL+"/showcaptcha?retpath=x")
	var ferr *FetchError
	if !errors.Is(err, ErrChallenge) || !errors.As(err, &ferr) || ferr.Challenge != "Yandex" {
		t.Errorf("expected Yandex challenge on the captcha interstitial, got %v", err)
	}
}
