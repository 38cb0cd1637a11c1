package scaffold

import (
	"cmp"
	"embed"
	"fmt"
	"math"
	"strings"
	"text/template"
	"time"
)

//go:embed templates/*.tmpl
var templateFS embed.FS

//nolint:gochecknoglobals // parsed once, read-only
var templates = template.Must(template.New("scaffold").Funcs(template.FuncMap{
	"join":     strings.Join,
	"inc":      func(i int) int { return i + 1 },
	"stamp":    func(t time.Time) string { return t.UTC().Format(time.RFC3339) },
	"orNone":   orNone,
	"orNA":     func(s string) string { return cmp.Or(s, "N/A") },
	"yesNo":    func(b bool) string { return map[bool]string{true: "Yes", false: "No"}[b] },
	"timeline": timelineBar,
}).ParseFS(templateFS, "templates/*.tmpl"))

func render(name string, data any) (string, error) {
	var b strings.Builder
	if err := templates.ExecuteTemplate(&b, name+".tmpl", data); err != nil {
		return "", fmt.Errorf("render %s: %w", name, err)
	}
	return b.String(), nil
}

func orNone(deps []string) string {
	if len(deps) == 0 {
		return "None"
	}
	return strings.Join(deps, ", ")
}

// maxTimelineBar caps the bar width of one timeline row.
const maxTimelineBar = 20

func timelineBar(p SchedulePhase) string {
	start, err1 := parseDate(p.StartDate)
	end, err2 := parseDate(p.EndDate)
	if err1 != nil || err2 != nil {
		return fmt.Sprintf("%s: (unknown duration)", p.Name)
	}
	days := int(math.Ceil(end.Sub(start).Hours() / 24))
	bar := strings.Repeat("█", min(max(days, 0), maxTimelineBar))
	return fmt.Sprintf("%s: %s (%d days)", p.Name, bar, days)
}

func parseDate(s string) (time.Time, error) {
	if t, err := time.Parse(time.RFC3339, s); err == nil {
		return t, nil
	}
	return time.Parse(time.DateOnly, s)
}
