// Package pipeline is the entry point of the presentation adapters: it takes a
// page of merged results from the aggregator, enriches it and journals every
// outbound request.
package pipeline

import (
	"context"
	"errors"
	"log/slog"
	"strings"

	"github.com/FranksOps/metasearch/internal/aggregator"
	"github.com/FranksOps/metasearch/internal/enrich"
)

var (
	// ErrEmptyQuery is returned for a blank query.
	ErrEmptyQuery = errors.New("pipeline: query is empty")
	// ErrInvalidPage is returned for a negative page index.
	ErrInvalidPage = errors.New("pipeline: page index cannot be negative")
)

// Page is one enriched page of a query's results.
type Page struct {
	Query string `json:"query"`
	Index int    `json:"page"`
	Size  int    `json:"page_size"`
	// Found is the number of search results on this page before enrichment
	// dropped the ones that could not be fetched.
	Found   int                     `json:"found"`
	HasMore bool                    `json:"has_more"`
	Results []enrich.EnrichedResult `json:"results"`
}

// Options configures a Pipeline.
type Options struct {
	Journal *Journal
	Logger  *slog.Logger
}

// Pipeline runs GetPage then Enrich.
type Pipeline struct {
	agg     *aggregator.Aggregator
	stage   *enrich.Stage
	journal *Journal
	logger  *slog.Logger
}

// New wires a pipeline.
func New(agg *aggregator.Aggregator, stage *enrich.Stage, opts Options) *Pipeline {
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	return &Pipeline{agg: agg, stage: stage, journal: opts.Journal, logger: opts.Logger}
}

// PageSize is the number of search results per page.
func (p *Pipeline) PageSize() int { return p.agg.PageSize() }

// Search returns the index-th enriched page for query. Provider and fetch
// failures never surface; an empty Results is a valid answer.
func (p *Pipeline) Search(ctx context.Context, query string, index int) (*Page, error) {
	query = strings.TrimSpace(query)
	if query == "" {
		return nil, ErrEmptyQuery
	}
	if index < 0 {
		return nil, ErrInvalidPage
	}

	size := p.agg.PageSize()
	entry := p.agg.Entry(ctx, query)
	results := entry.Page(index, size)

	outcomes := p.stage.EnrichDetailed(ctx, results)
	enriched := make([]enrich.EnrichedResult, 0, len(outcomes))
	for _, o := range outcomes {
		p.journal.RecordPage(query, o)
		if o.Err == nil {
			enriched = append(enriched, o.Result)
		}
	}

	p.logger.Info("search served",
		"query", query,
		"page", index,
		"found", len(results),
		"enriched", len(enriched),
		"total", len(entry.Results),
	)

	return &Page{
		Query:   query,
		Index:   index,
		Size:    size,
		Found:   len(results),
		HasMore: entry.HasMore(index, size),
		Results: enriched,
	}, nil
}
