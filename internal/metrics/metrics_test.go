package metrics

import (
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestRecordSearch(t *testing.T) {
	before := testutil.ToFloat64(ProviderSearchesTotal.WithLabelValues("test-engine", OutcomeOK))
	RecordSearch("test-engine", OutcomeOK, 200*time.Millisecond, 5)
	after := testutil.ToFloat64(ProviderSearchesTotal.WithLabelValues("test-engine", OutcomeOK))

	if after-before != 1 {
		t.Errorf("expected search counter to grow by 1, grew by %v", after-before)
	}
	if got := testutil.ToFloat64(ProviderResultsTotal.WithLabelValues("test-engine")); got < 5 {
		t.Errorf("expected at least 5 results recorded, got %v", got)
	}
}

func TestRecordCacheLookup(t *testing.T) {
	hits := testutil.ToFloat64(CacheLookupsTotal.WithLabelValues("hit"))
	misses := testutil.ToFloat64(CacheLookupsTotal.WithLabelValues("miss"))

	RecordCacheLookup(true)
	RecordCacheLookup(false)
	RecordCacheLookup(false)

	if got := testutil.ToFloat64(CacheLookupsTotal.WithLabelValues("hit")) - hits; got != 1 {
		t.Errorf("expected 1 hit, got %v", got)
	}
	if got := testutil.ToFloat64(CacheLookupsTotal.WithLabelValues("miss")) - misses; got != 2 {
		t.Errorf("expected 2 misses, got %v", got)
	}
}

func TestHandler(t *testing.T) {
	RecordFetch(OutcomeOK, time.Second)

	ts := httptest.NewServer(Handler())
	defer ts.Close()

	resp, err := http.Get(ts.URL)
	if err != nil {
		t.Fatalf("failed to fetch metrics: %v", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected status 200, got %d", resp.StatusCode)
	}

	body, _ := io.ReadAll(resp.Body)
	output := string(body)

	if !strings.Contains(output, `metasearch_page_fetches_total{outcome="ok"}`) {
		t.Errorf("expected metasearch_page_fetches_total metric")
	}
	if !strings.Contains(output, "metasearch_page_fetch_duration_seconds_bucket") {
		t.Errorf("expected metasearch_page_fetch_duration_seconds metric")
	}
}
