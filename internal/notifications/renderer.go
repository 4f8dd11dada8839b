package notifications

import (
	"bytes"
	"embed"
	"fmt"
	"strings"
	"text/template"
	"time"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"
)

//go:embed templates/*.tmpl
var templatesFS embed.FS

// BreachPayload is the template input for an SLA breach alert.
type BreachPayload struct {
	IncidentID  int64
	Title       string
	Severity    string
	Status      string
	ServiceName string
	SLAHours    int
	Deadline    time.Time
	Overdue     time.Duration
	URL         string
}

// Renderer renders notifications from templates.
type Renderer struct {
	breach *template.Template
}

// NewRenderer creates a new renderer and loads all templates.
func NewRenderer() (*Renderer, error) {
	funcMap := template.FuncMap{
		"title":          titleCase,
		"upper":          strings.ToUpper,
		"formatTime":     formatTime,
		"formatDuration": formatDuration,
		"severityEmoji":  severityEmoji,
	}

	content, err := templatesFS.ReadFile("templates/sla_breach.tmpl")
	if err != nil {
		return nil, fmt.Errorf("read template sla_breach: %w", err)
	}

	tmpl, err := template.New("sla_breach").Funcs(funcMap).Parse(string(content))
	if err != nil {
		return nil, fmt.Errorf("parse template sla_breach: %w", err)
	}

	return &Renderer{breach: tmpl}, nil
}

// RenderBreach renders an SLA breach alert. Returns subject and body.
func (r *Renderer) RenderBreach(payload BreachPayload) (subject, body string, err error) {
	subject = fmt.Sprintf("[SLA Breach] %s", payload.Title)

	var buf bytes.Buffer
	if err := r.breach.Execute(&buf, payload); err != nil {
		return "", "", fmt.Errorf("execute template sla_breach: %w", err)
	}

	return subject, strings.TrimSpace(buf.String()), nil
}

// Template functions

var titleCaser = cases.Title(language.English)

func titleCase(s string) string {
	return titleCaser.String(s)
}

func formatTime(t time.Time) string {
	return t.UTC().Format("Jan 2, 2006 15:04 UTC")
}

func formatDuration(d time.Duration) string {
	if d < time.Minute {
		return fmt.Sprintf("%ds", int(d.Seconds()))
	}

	hours := int(d.Hours())
	minutes := int(d.Minutes()) % 60

	if hours > 0 {
		if minutes > 0 {
			return fmt.Sprintf("%dh %dm", hours, minutes)
		}
		return fmt.Sprintf("%dh", hours)
	}
	return fmt.Sprintf("%dm", minutes)
}

func severityEmoji(severity string) string {
	switch strings.ToUpper(severity) {
	case "SEV1":
		return "🔴"
	case "SEV2":
		return "🟠"
	case "SEV3":
		return "🟡"
	default:
		return "⚪"
	}
}
