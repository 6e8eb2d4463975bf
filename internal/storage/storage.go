// Package storage defines the optional fetch journal: one record per outbound
// search or page request, written by the pipeline and read only by reports.
package storage

import (
	"context"
	"slices"
	"time"
)

// Kind tells search records from page records.
type Kind string

const (
	KindSearch Kind = "search"
	KindPage   Kind = "page"
)

// FetchRecord is the outcome of one provider search or one page fetch.
type FetchRecord struct {
	ID         string        `json:"id"`
	Kind       Kind          `json:"kind"`
	Query      string        `json:"query,omitempty"`
	URL        string        `json:"url,omitempty"`
	Provider   string        `json:"provider,omitempty"`
	Outcome    string        `json:"outcome"`
	StatusCode int           `json:"status_code,omitempty"` // 0 when no response was received
	Results    int           `json:"results,omitempty"`
	Duration   time.Duration `json:"duration"`
	Challenge  string        `json:"challenge,omitempty"` // e.g. "Google", "Yandex", "Cloudflare"
	Error      string        `json:"error,omitempty"`
	CreatedAt  time.Time     `json:"created_at"`
}

// Filter selects FetchRecords. Zero fields match everything.
type Filter struct {
	Query    string
	Kind     Kind
	Provider string
	Outcome  string
	Since    *time.Time
	Limit    int
	Offset   int
}

// Match reports whether r passes the field filters. Limit and Offset are not considered.
func (f Filter) Match(r *FetchRecord) bool {
	switch {
	case f.Query != "" && r.Query != f.Query:
		return false
	case f.Kind != "" && r.Kind != f.Kind:
		return false
	case f.Provider != "" && r.Provider != f.Provider:
		return false
	case f.Outcome != "" && r.Outcome != f.Outcome:
		return false
	case f.Since != nil && r.CreatedAt.Before(*f.Since):
		return false
	}
	return true
}

// Window orders matched records newest first and applies Offset and Limit.
// File backends use it; SQL backends push the same rules into the query.
func (f Filter) Window(records []*FetchRecord) []*FetchRecord {
	slices.SortStableFunc(records, func(a, b *FetchRecord) int {
		return b.CreatedAt.Compare(a.CreatedAt)
	})
	if f.Offset > 0 {
		if f.Offset >= len(records) {
			return []*FetchRecord{}
		}
		records = records[f.Offset:]
	}
	if f.Limit > 0 && f.Limit < len(records) {
		records = records[:f.Limit]
	}
	return records
}

// Backend stores and queries fetch records.
type Backend interface {
	Save(ctx context.Context, record *FetchRecord) error
	Query(ctx context.Context, filter Filter) ([]*FetchRecord, error)
	Close() error
}
