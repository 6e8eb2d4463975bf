// Package present renders an enriched page for people.
package present

import (
	"encoding/json"
	"fmt"
	htmltemplate "html/template"
	"io"
	"strings"
	"text/template"

	"github.com/FranksOps/metasearch/internal/pipeline"
	"github.com/FranksOps/metasearch/internal/serp"
)

var labels = map[string]string{
	serp.NameGoogle:     "Google",
	serp.NameYandex:     "Yandex",
	serp.NameDuckDuckGo: "DuckDuckGo",
	serp.NameSearXNG:    "SearXNG",
}

// Label is the display name of a provider.
func Label(provider string) string {
	if l, ok := labels[provider]; ok {
		return l
	}
	if provider == "" {
		return "Web"
	}
	return provider
}

var funcs = map[string]any{
	"label": Label,
	"inc":   func(i int) int { return i + 1 },
	"num":   func(page *pipeline.Page, i int) int { return page.Index*page.Size + i + 1 },
}

const textTmpl = `{{if not .Results -}}
Nothing found for "{{.Query}}".
{{- else -}}
Results for "{{.Query}}" (page {{inc .Index}}):
{{range $i, $r := .Results}}
{{num $ $i}}. [{{label $r.Provider}}] {{$r.Title}}
   {{$r.URL}}
{{- if $r.Description}}
   {{$r.Description}}
{{- end}}
{{end}}
{{- end}}
{{- if .HasMore}}
More results: page {{inc (inc .Index)}}.
{{- end}}
`

const htmlTmpl = `<div class="metasearch-page">
{{- if not .Results}}
<p class="empty">Nothing found for &quot;{{.Query}}&quot;.</p>
{{- else}}
<ol start="{{num . 0}}">
{{- range .Results}}
<li><span class="provider">{{label .Provider}}</span> <a href="{{.URL}}"><b>{{.Title}}</b></a>
{{- if .Description}}<p>{{.Description}}</p>{{end}}</li>
{{- end}}
</ol>
{{- end}}
{{- if .HasMore}}
<p class="more">Page {{inc (inc .Index)}} is available.</p>
{{- end}}
</div>
`

var (
	textPage = template.Must(template.New("text").Funcs(funcs).Parse(textTmpl))
	htmlPage = htmltemplate.Must(htmltemplate.New("html").Funcs(funcs).Parse(htmlTmpl))
)

// Text writes page as numbered plain text.
func Text(w io.Writer, page *pipeline.Page) error {
	if err := textPage.Execute(w, page); err != nil {
		return fmt.Errorf("render text page: %w", err)
	}
	return nil
}

// HTML writes page as an HTML fragment.
func HTML(w io.Writer, page *pipeline.Page) error {
	if err := htmlPage.Execute(w, page); err != nil {
		return fmt.Errorf("render html page: %w", err)
	}
	return nil
}

// JSON writes page as indented JSON.
func JSON(w io.Writer, page *pipeline.Page) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	if err := enc.Encode(page); err != nil {
		return fmt.Errorf("encode page: %w", err)
	}
	return nil
}

// Write renders page in format: text, html or json.
func Write(w io.Writer, format string, page *pipeline.Page) error {
	switch strings.ToLower(format) {
	case "", "text":
		return Text(w, page)
	case "html":
		return HTML(w, page)
	case "json":
		return JSON(w, page)
	default:
		return fmt.Errorf("unknown output format %q", format)
	}
}
