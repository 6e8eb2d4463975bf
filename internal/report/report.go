// Package report summarizes the fetch journal.
package report

import (
	"encoding/json"
	"fmt"
	htmltemplate "html/template"
	"io"
	"text/template"
	"time"

	"github.com/FranksOps/metasearch/internal/storage"
)

// ProviderStats aggregates the search records of one provider.
type ProviderStats struct {
	Searches      int
	Empty         int
	Failures      int
	Results       int
	TotalDuration time.Duration
}

// AvgLatency is the mean search duration.
func (p ProviderStats) AvgLatency() time.Duration {
	if p.Searches == 0 {
		return 0
	}
	return (p.TotalDuration / time.Duration(p.Searches)).Round(time.Millisecond)
}

// Summary contains aggregated figures over a set of journal records.
type Summary struct {
	TotalRequests   int
	TotalSearches   int
	TotalPages      int
	TotalErrors     int
	TotalChallenges int
	DistinctQueries int
	StatusCodes     map[int]int
	Outcomes        map[string]int
	ChallengesBySrc map[string]int
	Providers       map[string]ProviderStats
	StartTime       time.Time
	EndTime         time.Time
	Duration        time.Duration
}

// GenerateSummary aggregates records.
func GenerateSummary(records []*storage.FetchRecord) Summary {
	s := Summary{
		StatusCodes:     make(map[int]int),
		Outcomes:        make(map[string]int),
		ChallengesBySrc: make(map[string]int),
		Providers:       make(map[string]ProviderStats),
	}

	if len(records) == 0 {
		return s
	}

	s.StartTime = records[0].CreatedAt
	s.EndTime = records[0].CreatedAt
	queries := make(map[string]struct{})

	for _, r := range records {
		s.TotalRequests++
		s.Outcomes[r.Outcome]++
		if r.Query != "" {
			queries[r.Query] = struct{}{}
		}
		if r.Error != "" {
			s.TotalErrors++
		}
		if r.Challenge != "" {
			s.TotalChallenges++
			s.ChallengesBySrc[r.Challenge]++
		}
		if r.StatusCode > 0 {
			s.StatusCodes[r.StatusCode]++
		}

		switch r.Kind {
		case storage.KindSearch:
			s.TotalSearches++
			ps := s.Providers[r.Provider]
			ps.Searches++
			ps.Results += r.Results
			ps.TotalDuration += r.Duration
			switch {
			case r.Error != "":
				ps.Failures++
			case r.Results == 0:
				ps.Empty++
			}
			s.Providers[r.Provider] = ps
		case storage.KindPage:
			s.TotalPages++
		}

		if r.CreatedAt.Before(s.StartTime) {
			s.StartTime = r.CreatedAt
		}
		if r.CreatedAt.After(s.EndTime) {
			s.EndTime = r.CreatedAt
		}
	}

	s.DistinctQueries = len(queries)
	s.Duration = s.EndTime.Sub(s.StartTime)
	return s
}

// WriteJSON writes the summary as indented JSON.
func WriteJSON(w io.Writer, summary Summary) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	if err := enc.Encode(summary); err != nil {
		return fmt.Errorf("encode summary: %w", err)
	}
	return nil
}

const textTmpl = `Metasearch Journal Summary
--------------------------
Time:          {{.StartTime.Format "2006-01-02 15:04:05"}} - {{.EndTime.Format "2006-01-02 15:04:05"}}
Duration:      {{.Duration}}
Requests:      {{.TotalRequests}} ({{.TotalSearches}} searches, {{.TotalPages}} pages)
Queries:       {{.DistinctQueries}}
Errors:        {{.TotalErrors}}

Providers:
{{- range $name, $p := .Providers}}
  {{$name}}: {{$p.Searches}} searches, {{$p.Results}} results, {{$p.Empty}} empty, {{$p.Failures}} failed, avg {{$p.AvgLatency}}
{{- else}}
  None
{{- end}}

Outcomes:
{{- range $outcome, $count := .Outcomes}}
  {{$outcome}}: {{$count}}
{{- else}}
  None
{{- end}}

Status Codes:
{{- range $code, $count := .StatusCodes}}
  {{$code}}: {{$count}}
{{- else}}
  None
{{- end}}

Challenges: {{.TotalChallenges}}
{{- range $src, $count := .ChallengesBySrc}}
  {{$src}}: {{$count}}
{{- else}}
  None
{{- end}}
`

// WriteText writes a human-readable summary.
func WriteText(w io.Writer, summary Summary) error {
	t, err := template.New("textReport").Parse(textTmpl)
	if err != nil {
		return fmt.Errorf("parse text template: %w", err)
	}
	if err := t.Execute(w, summary); err != nil {
		return fmt.Errorf("render text report: %w", err)
	}
	return nil
}

const htmlTmpl = `<!DOCTYPE html>
<html>
<head>
<title>Metasearch Journal Report</title>
<style>
  body { font-family: sans-serif; margin: 40px; color: #333; }
  h1 { border-bottom: 2px solid #ccc; padding-bottom: 10px; }
  .stat-card { display: inline-block; padding: 20px; margin: 10px 10px 10px 0; background: #f4f4f4; border-radius: 5px; min-width: 150px; }
  .stat-val { font-size: 24px; font-weight: bold; }
  table { border-collapse: collapse; margin-top: 10px; }
  th, td { padding: 8px 12px; border: 1px solid #ccc; text-align: left; }
  th { background: #eaeaea; }
</style>
</head>
<body>
  <h1>Metasearch Journal Report</h1>
  <p><strong>Time:</strong> {{.StartTime.Format "2006-01-02 15:04:05"}} to {{.EndTime.Format "2006-01-02 15:04:05"}} ({{.Duration}})</p>

  <div class="stat-card">
    <div>Searches</div>
    <div class="stat-val">{{.TotalSearches}}</div>
  </div>
  <div class="stat-card">
    <div>Pages</div>
    <div class="stat-val">{{.TotalPages}}</div>
  </div>
  <div class="stat-card">
    <div>Errors</div>
    <div class="stat-val">{{.TotalErrors}}</div>
  </div>
  <div class="stat-card">
    <div>Challenges</div>
    <div class="stat-val" style="color: {{if gt .TotalChallenges 0}}red{{else}}green{{end}};">{{.TotalChallenges}}</div>
  </div>

  <h3>Providers</h3>
  <table>
    <tr><th>Provider</th><th>Searches</th><th>Results</th><th>Empty</th><th>Failed</th><th>Avg latency</th></tr>
    {{- range $name, $p := .Providers}}
    <tr><td>{{$name}}</td><td>{{$p.Searches}}</td><td>{{$p.Results}}</td><td>{{$p.Empty}}</td><td>{{$p.Failures}}</td><td>{{$p.AvgLatency}}</td></tr>
    {{- else}}
    <tr><td colspan="6">None</td></tr>
    {{- end}}
  </table>

  <h3>Status Codes</h3>
  <table>
    <tr><th>Code</th><th>Count</th></tr>
    {{- range $code, $count := .StatusCodes}}
    <tr><td>{{$code}}</td><td>{{$count}}</td></tr>
    {{- else}}
    <tr><td colspan="2">None</td></tr>
    {{- end}}
  </table>

  <h3>Challenges By Source</h3>
  <table>
    <tr><th>Source</th><th>Count</th></tr>
    {{- range $src, $count := .ChallengesBySrc}}
    <tr><td>{{$src}}</td><td>{{$count}}</td></tr>
    {{- else}}
    <tr><td colspan="2">None</td></tr>
    {{- end}}
  </table>
</body>
</html>
`

// WriteHTML writes a standalone HTML report.
func WriteHTML(w io.Writer, summary Summary) error {
	t, err := htmltemplate.New("htmlReport").Parse(htmlTmpl)
	if err != nil {
		return fmt.Errorf("parse html template: %w", err)
	}
	if err := t.Execute(w, summary); err != nil {
		return fmt.Errorf("render html report: %w", err)
	}
	return nil
}
