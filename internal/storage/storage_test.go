package storage

import (
	"testing"
	"time"
)

func TestFilter_Match(t *testing.T) {
	now := time.Now()
	r := &FetchRecord{Kind: KindSearch, Query: "go", Provider: "google", Outcome: "ok", CreatedAt: now}
	earlier := now.Add(-time.Minute)
	later := now.Add(time.Minute)

	tests := []struct {
		name   string
		filter Filter
		want   bool
	}{
		{"empty", Filter{}, true},
		{"query", Filter{Query: "go"}, true},
		{"other query", Filter{Query: "rust"}, false},
		{"kind", Filter{Kind: KindPage}, false},
		{"provider", Filter{Provider: "google", Kind: KindSearch}, true},
		{"outcome", Filter{Outcome: "error"}, false},
		{"since earlier", Filter{Since: &earlier}, true},
		{"since later", Filter{Since: &later}, false},
	}
	for _, tt := range tests {
		if got := tt.filter.Match(r); got != tt.want {
			t.Errorf("%s: Match = %v, want %v", tt.name, got, tt.want)
		}
	}
}

func TestFilter_Window(t *testing.T) {
	base := time.Now()
	var records []*FetchRecord
	for i := range 5 {
		records = append(records, &FetchRecord{ID: string(rune('a' + i)), CreatedAt: base.Add(time.Duration(i) * time.Second)})
	}

	got := Filter{Offset: 1, Limit: 2}.Window(records)
	if len(got) != 2 || got[0].ID != "d" || got[1].ID != "c" {
		t.Errorf("unexpected window: %v, %v", got[0].ID, got[1].ID)
	}
	if got := (Filter{Offset: 9}).Window(records); len(got) != 0 {
		t.Errorf("expected empty window, got %d", len(got))
	}
}
