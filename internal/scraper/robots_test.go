package scraper

import (
	"context"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/FranksOps/metasearch/internal/fingerprint"
)

func TestRobotsTxtAuditor_IsAllowed(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/robots.txt", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/plain")
		_, _ = w.Write([]byte(`
User-agent: *
Disallow: /admin/
Allow: /admin/public/

User-agent: BadBot
Disallow: /
		`))
	})

	ts := httptest.NewServer(mux)
	defer ts.Close()

	fetcher, _ := NewFetcher(FetchConfig{
		Timeout:     5 * time.Second,
		Fingerprint: fingerprint.ProfileGo,
	})

	auditor := NewRobotsTxtAuditor(fetcher, slog.Default())
	ctx := context.Background()

	allowed, err := auditor.IsAllowed(ctx, ts.URL+"/public-page", "GoodBot")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !allowed {
		t.Errorf("expected /public-page to be allowed")
	}

	allowed, _ = auditor.IsAllowed(ctx, ts.URL+"/admin/secret", "GoodBot")
	if allowed {
		t.Errorf("expected /admin/secret to be disallowed")
	}

	allowed, _ = auditor.IsAllowed(ctx, ts.URL+"/admin/public/index.html", "GoodBot")
	if !allowed {
		t.Errorf("expected /admin/public/index.html to be allowed")
	}

	allowed, _ = auditor.IsAllowed(ctx, ts.URL+"/public-page", "BadBot")
	if allowed {
		t.Errorf("expected /public-page to be disallowed for BadBot")
	}
}

func TestRobotsTxtAuditor_MissingRobots(t *testing.T) {
	var hits atomic.Int32
	mux := http.NewServeMux()
	mux.HandleFunc("/robots.txt", func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		w.WriteHeader(http.StatusNotFound)
	})

	ts := httptest.NewServer(mux)
	defer ts.Close()

	fetcher, _ := NewFetcher(FetchConfig{
		Timeout:     5 * time.Second,
		Fingerprint: fingerprint.ProfileGo,
	})

	auditor := NewRobotsTxtAuditor(fetcher, slog.Default())
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		allowed, err := auditor.IsAllowed(ctx, ts.URL+"/anything", "Bot")
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if !allowed {
			t.Errorf("expected missing robots.txt to default to allowed")
		}
	}

	if hits.Load() != 1 {
		t.Errorf("expected robots.txt to be fetched once, got %d", hits.Load())
	}
}

func TestRobotsTxtAuditor_ServerErrorFailsOpen(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer ts.Close()

	fetcher, _ := NewFetcher(FetchConfig{Timeout: 5 * time.Second})
	auditor := NewRobotsTxtAuditor(fetcher, nil)

	allowed, err := auditor.IsAllowed(context.Background(), ts.URL+"/page", "Bot")
	if err != nil || !allowed {
		t.Errorf("expected fail-open on server error, got allowed=%v err=%v", allowed, err)
	}
}

func TestRobotsTxtAuditor_InvalidURL(t *testing.T) {
	fetcher, _ := NewFetcher(FetchConfig{})
	auditor := NewRobotsTxtAuditor(fetcher, nil)

	if _, err := auditor.IsAllowed(context.Background(), "/relative/only", "Bot"); err == nil {
		t.Errorf("expected error for URL without host")
	}
}
