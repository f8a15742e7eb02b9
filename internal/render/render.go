// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package render writes a research report to a file in one of several
// formats.
package render

import (
	"bytes"
	"embed"
	"encoding/json"
	"fmt"
	htmltemplate "html/template"
	"os"
	"path/filepath"
	"sort"
	"strings"
	texttemplate "text/template"
	"time"
	"unicode"

	"go.yaml.in/yaml/v3"

	"github.com/pdiddy/research-pipeline/pkg/types"
)

// Template ids.
const (
	Markdown = "markdown"
	HTML     = "html"
	JSON     = "json"
	YAML     = "yaml"
)

//go:embed templates/*
var templateFS embed.FS

var funcs = map[string]any{
	"inc":  func(i int) int { return i + 1 },
	"cell": func(s string) string { return strings.ReplaceAll(strings.ReplaceAll(s, "|", `\|`), "\n", " ") },
}

var (
	markdownTmpl = texttemplate.Must(texttemplate.New("report.md.tmpl").Funcs(funcs).ParseFS(templateFS, "templates/report.md.tmpl"))
	htmlTmpl     = htmltemplate.Must(htmltemplate.New("report.html.tmpl").Funcs(funcs).ParseFS(templateFS, "templates/report.html.tmpl"))
)

var extensions = map[string]string{Markdown: "md", HTML: "html", JSON: "json", YAML: "yaml"}

// Templates lists the supported template ids.
func Templates() []string {
	ids := make([]string, 0, len(extensions))
	for id := range extensions {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

// Renderer writes reports under Dir.
type Renderer struct {
	Dir string
	now func() time.Time
}

// New returns a Renderer writing to dir.
func New(dir string) *Renderer {
	return &Renderer{Dir: dir, now: time.Now}
}

// Render writes report with templateID and returns the file path. The file
// is named after the report title and the current date.
func (r *Renderer) Render(report *types.ResearchReport, templateID string) (string, error) {
	ext, ok := extensions[templateID]
	if !ok {
		return "", fmt.Errorf("%w: unknown template %q (want one of %s)", types.ErrValidation, templateID, strings.Join(Templates(), ", "))
	}
	data, err := Bytes(report, templateID)
	if err != nil {
		return "", types.NewStageError(types.StageRender, templateID, err)
	}

	if err := os.MkdirAll(r.Dir, 0o755); err != nil {
		return "", fmt.Errorf("creating output directory: %w", err)
	}
	path := filepath.Join(r.Dir, fmt.Sprintf("%s_%s.%s", SafeTitle(report.Title), r.now().Format("2006-01-02"), ext))
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return "", fmt.Errorf("writing report: %w", err)
	}
	return path, nil
}

// Bytes renders report without writing it.
func Bytes(report *types.ResearchReport, templateID string) ([]byte, error) {
	var buf bytes.Buffer
	switch templateID {
	case Markdown:
		if err := markdownTmpl.Execute(&buf, newView(report)); err != nil {
			return nil, err
		}
	case HTML:
		if err := htmlTmpl.Execute(&buf, newView(report)); err != nil {
			return nil, err
		}
	case JSON:
		enc := json.NewEncoder(&buf)
		enc.SetIndent("", "  ")
		if err := enc.Encode(report); err != nil {
			return nil, err
		}
	case YAML:
		enc := yaml.NewEncoder(&buf)
		enc.SetIndent(2)
		if err := enc.Encode(report); err != nil {
			return nil, err
		}
		if err := enc.Close(); err != nil {
			return nil, err
		}
	default:
		return nil, fmt.Errorf("%w: unknown template %q", types.ErrValidation, templateID)
	}
	return buf.Bytes(), nil
}

// SafeTitle keeps letters, digits, '-' and '_' and joins words with '_'.
func SafeTitle(title string) string {
	var b strings.Builder
	for _, r := range title {
		switch {
		case unicode.IsLetter(r), unicode.IsDigit(r), r == '-', r == '_':
			b.WriteRune(r)
		case unicode.IsSpace(r):
			b.WriteRune(' ')
		}
	}
	s := strings.Join(strings.Fields(b.String()), "_")
	if s == "" {
		return "report"
	}
	return s
}

type view struct {
	*types.ResearchReport
	Meta     map[string]any
	Degraded []types.Degradation
}

func newView(r *types.ResearchReport) view {
	v := view{ResearchReport: r, Meta: r.Metadata}
	switch d := r.Metadata[types.MetaDegraded].(type) {
	case []types.Degradation:
		v.Degraded = d
	case nil:
	default:
		// Reports loaded from the archive carry generic JSON values.
		if b, err := json.Marshal(d); err == nil {
			_ = json.Unmarshal(b, &v.Degraded)
		}
	}
	return v
}
