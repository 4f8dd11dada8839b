package incidents

import (
	"bytes"
	"embed"
	"fmt"
	"strings"
	"text/template"
	"time"

	"github.com/bissquit/incident-console/internal/domain"
)

//go:embed templates/report.md.tmpl
var templatesFS embed.FS

// ReportData is the input of the markdown report template.
type ReportData struct {
	Incident    *IncidentView
	ServiceName string
	Events      []*domain.IncidentEvent
	RCA         *domain.RCA
}

// ReportRenderer renders incident reports as markdown.
type ReportRenderer struct {
	tmpl *template.Template
}

// NewReportRenderer parses the embedded report template.
// Panics if the template is malformed.
func NewReportRenderer() *ReportRenderer {
	funcMap := template.FuncMap{
		"formatTime":         formatTime,
		"formatOptionalTime": formatOptionalTime,
		"yesNo":              yesNo,
	}

	tmpl := template.Must(template.New("report.md.tmpl").Funcs(funcMap).ParseFS(templatesFS, "templates/report.md.tmpl"))
	return &ReportRenderer{tmpl: tmpl}
}

// Render executes the report template.
func (r *ReportRenderer) Render(data ReportData) (string, error) {
	var buf bytes.Buffer
	if err := r.tmpl.Execute(&buf, data); err != nil {
		return "", fmt.Errorf("execute report template: %w", err)
	}
	return strings.TrimSpace(buf.String()), nil
}

// Template functions

func formatTime(t time.Time) string {
	return t.UTC().Format(time.RFC3339)
}

func formatOptionalTime(t *time.Time) string {
	if t == nil {
		return "N/A"
	}
	return formatTime(*t)
}

func yesNo(v bool) string {
	if v {
		return "Yes"
	}
	return "No"
}
