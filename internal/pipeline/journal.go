package pipeline

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/FranksOps/metasearch/internal/enrich"
	"github.com/FranksOps/metasearch/internal/scraper"
	"github.com/FranksOps/metasearch/internal/serp"
	"github.com/FranksOps/metasearch/internal/storage"
)

const journalTimeout = 5 * time.Second

// Journal writes one storage.FetchRecord per provider search and page fetch.
// A nil *Journal discards everything. Write failures are logged and never
// reach the request path.
type Journal struct {
	backend storage.Backend
	logger  *slog.Logger
	now     func() time.Time
}

// NewJournal returns a journal over backend, or nil when backend is nil.
func NewJournal(backend storage.Backend, logger *slog.Logger) *Journal {
	if backend == nil {
		return nil
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Journal{backend: backend, logger: logger, now: time.Now}
}

// RecordSearch journals a guarded provider call. It matches serp.GuardConfig.Observer.
func (j *Journal) RecordSearch(o serp.SearchOutcome) {
	if j == nil {
		return
	}
	rec := &storage.FetchRecord{
		Kind:     storage.KindSearch,
		Query:    o.Query,
		Provider: o.Provider,
		Outcome:  o.Outcome,
		Results:  o.Results,
		Duration: o.Duration,
	}
	if o.Err != nil {
		rec.Error = o.Err.Error()
		var serr *scraper.StatusError
		if errors.As(o.Err, &serr) {
			rec.StatusCode = serr.StatusCode
			rec.URL = serr.URL
		}
	}
	j.save(rec)
}

// RecordPage journals one enrichment outcome for query.
func (j *Journal) RecordPage(query string, o enrich.Outcome) {
	if j == nil {
		return
	}
	rec := &storage.FetchRecord{
		Kind:     storage.KindPage,
		Query:    query,
		URL:      o.Input.URL,
		Provider: o.Input.Provider,
		Outcome:  "ok",
		Duration: o.Duration,
	}
	if o.Err == nil && o.Result.Description == "" {
		rec.Outcome = "empty"
	}
	if o.Err != nil {
		rec.Outcome = "error"
		rec.Error = o.Err.Error()
		var ferr *enrich.FetchError
		if errors.As(o.Err, &ferr) {
			rec.Outcome = ferr.Outcome()
			rec.StatusCode = ferr.StatusCode
			rec.Challenge = ferr.Challenge
		}
	}
	j.save(rec)
}

// Close closes the backend.
func (j *Journal) Close() error {
	if j == nil {
		return nil
	}
	return j.backend.Close()
}

func (j *Journal) save(rec *storage.FetchRecord) {
	rec.ID = uuid.NewString()
	rec.CreatedAt = j.now().UTC()

	ctx, cancel := context.WithTimeout(context.Background(), journalTimeout)
	defer cancel()
	if err := j.backend.Save(ctx, rec); err != nil {
		j.logger.Warn("failed to journal fetch record", "kind", rec.Kind, "url", rec.URL, "err", err)
	}
}
