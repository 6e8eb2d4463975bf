package scraper

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/FranksOps/metasearch/internal/fingerprint"
	"github.com/FranksOps/metasearch/pkg/proxy"
	"github.com/FranksOps/metasearch/pkg/useragent"
)

func TestFetcher_Success(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if got := r.Header.Get("User-Agent"); got != "TestBrowser/1.0" {
			t.Errorf("expected identification header, got %q", got)
		}
		if got := r.Header.Get("Accept-Language"); got != "ru-RU,ru;q=0.9" {
			t.Errorf("expected Accept-Language from config, got %q", got)
		}
		w.Header().Set("X-Test", "true")
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		_, _ = w.Write([]byte("<html><title>ok</title></html>"))
	}))
	defer ts.Close()

	fetcher, err := NewFetcher(FetchConfig{
		Timeout:        5 * time.Second,
		Fingerprint:    fingerprint.ProfileGo,
		UserAgents:     useragent.Fixed("TestBrowser/1.0"),
		AcceptLanguage: "ru-RU,ru;q=0.9",
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	res, err := fetcher.Get(context.Background(), ts.URL)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if res.StatusCode != http.StatusOK {
		t.Errorf("expected status 200, got %d", res.StatusCode)
	}
	if !strings.Contains(string(res.Body), "<title>ok</title>") {
		t.Errorf("unexpected body %q", res.Body)
	}
	if res.Header.Get("X-Test") != "true" {
		t.Errorf("expected X-Test header 'true', got %v", res.Header.Get("X-Test"))
	}
	if res.Duration == 0 {
		t.Errorf("expected non-zero duration")
	}
	if res.Challenge != "" {
		t.Errorf("expected no challenge, got %s", res.Challenge)
	}
}

func TestFetcher_DecodesCharset(t *testing.T) {
	// "Привет" in windows-1251.
	cp1251 := []byte{0xCF, 0xF0, 0xE8, 0xE2, 0xE5, 0xF2}
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/html; charset=windows-1251")
		_, _ = w.Write(append(append([]byte("<p>"), cp1251...), []byte("</p>")...))
	}))
	defer ts.Close()

	fetcher, _ := NewFetcher(FetchConfig{Timeout: 5 * time.Second})
	res, err := fetcher.Get(context.Background(), ts.URL)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !strings.Contains(string(res.Body), "Привет") {
		t.Errorf("expected body decoded to UTF-8, got %q", res.Body)
	}
}

func TestFetcher_JSONUntouched(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("Accept") != "application/json" {
			t.Errorf("expected Accept override, got %q", r.Header.Get("Accept"))
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"results":[]}`))
	}))
	defer ts.Close()

	fetcher, _ := NewFetcher(FetchConfig{Timeout: 5 * time.Second})
	res, err := fetcher.Get(context.Background(), ts.URL, WithHeader("Accept", "application/json"))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if string(res.Body) != `{"results":[]}` {
		t.Errorf("unexpected body %q", res.Body)
	}
}

func TestFetcher_StatusError(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Server", "cloudflare")
		w.WriteHeader(http.StatusForbidden)
		_, _ = w.Write([]byte("Attention Required! | Cloudflare"))
	}))
	defer ts.Close()

	fetcher, _ := NewFetcher(FetchConfig{Timeout: 5 * time.Second})
	res, err := fetcher.Get(context.Background(), ts.URL)

	var se *StatusError
	if !errors.As(err, &se) || se.StatusCode != http.StatusForbidden {
		t.Fatalf("expected StatusError 403, got %v", err)
	}
	if res == nil || res.Challenge != "Cloudflare" {
		t.Errorf("expected response with Cloudflare challenge, got %+v", res)
	}
}

func TestFetcher_Timeout(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		time.Sleep(100 * time.Millisecond)
		w.WriteHeader(http.StatusOK)
	}))
	defer ts.Close()

	fetcher, _ := NewFetcher(FetchConfig{
		Timeout:     10 * time.Millisecond,
		Fingerprint: fingerprint.ProfileGo,
	})

	res, err := fetcher.Get(context.Background(), ts.URL)
	if err == nil || !strings.Contains(err.Error(), "request failed") {
		t.Errorf("expected timeout error, got %v", err)
	}
	if res != nil {
		t.Errorf("expected nil response on transport failure")
	}
}

func TestFetcher_Proxy(t *testing.T) {
	// A plain server standing in for a forward proxy: it answers every request itself.
	proxyServer := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTeapot)
	}))
	defer proxyServer.Close()

	pool := proxy.NewPool(proxy.Config{MaxFailures: 1, Cooldown: time.Second})
	if err := pool.Add(proxyServer.URL); err != nil {
		t.Fatalf("failed to add proxy: %v", err)
	}

	fetcher, _ := NewFetcher(FetchConfig{
		Timeout:     5 * time.Second,
		Fingerprint: fingerprint.ProfileGo,
		Proxies:     pool,
	})

	res, _ := fetcher.Get(context.Background(), "http://target.invalid/page")
	if res == nil || res.StatusCode != http.StatusTeapot {
		t.Errorf("expected 418 Teapot from proxy, got %+v", res)
	}
}
