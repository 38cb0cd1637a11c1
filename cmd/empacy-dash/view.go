package main

import (
	"fmt"
	"maps"
	"slices"
	"strings"
	"time"

	"empacy/pkg/agent"
	"empacy/pkg/eventlog"
	"empacy/pkg/protocol"

	"github.com/charmbracelet/bubbles/table"
	"github.com/charmbracelet/lipgloss"
	"github.com/dustin/go-humanize"
)

// View implements tea.Model.
func (m Model) View() string {
	var body string
	switch {
	case !m.loaded:
		body = m.styles.Panel.Render(m.spinner.View() + " contacting coordinator...")
	default:
		body = m.renderActiveView()
	}
	return lipgloss.JoinVertical(lipgloss.Left,
		m.renderStatusBar(),
		m.renderTabs(),
		body,
		m.help.View(m.keys),
	)
}

func (m Model) renderActiveView() string {
	switch m.activeView {
	case AgentsView:
		if len(m.snap.Agents) == 0 {
			return m.styles.Panel.Render(m.styles.Muted.Render("No agents spawned"))
		}
		return m.agents.View()
	case ContextView:
		return m.renderContext()
	case LanguageView:
		return m.renderLanguage()
	case JournalView:
		return m.renderJournal()
	default:
		return m.renderOverview()
	}
}

// renderStatusBar renders coordinator health and registry counts.
func (m Model) renderStatusBar() string {
	if !m.snap.Online {
		status := m.styles.Offline.Render("coordinator: offline")
		if m.snap.Err != "" {
			status += m.styles.Muted.Render("  " + m.snap.Err)
		}
		return status
	}
	h := m.snap.Health
	return lipgloss.JoinHorizontal(
		lipgloss.Left,
		m.styles.Online.Render("coordinator: "+h.Status),
		m.styles.Muted.Render(" | v"+h.Version),
		" | Agents: ",
		lipgloss.NewStyle().Foreground(m.theme.Primary).Render(fmt.Sprintf("%d", h.Agents)),
		" | Contexts: ",
		lipgloss.NewStyle().Foreground(m.theme.Primary).Render(fmt.Sprintf("%d", h.Contexts)),
		" | Concepts: ",
		lipgloss.NewStyle().Foreground(m.theme.Primary).Render(fmt.Sprintf("%d", h.Concepts)),
	)
}

func (m Model) renderTabs() string {
	tabs := make([]string, 0, viewCount)
	for v := OverviewView; v < viewCount; v++ {
		style := m.styles.Tab
		if v == m.activeView {
			style = m.styles.TabOn
		}
		tabs = append(tabs, style.Render(v.String()))
	}
	return lipgloss.JoinHorizontal(lipgloss.Top, tabs...)
}

func (m Model) renderOverview() string {
	var sb strings.Builder
	sb.WriteString(m.styles.Title.Render("Coordinator") + "\n")
	if m.snap.Online {
		m.row(&sb, "Version", m.snap.Health.Version)
		m.row(&sb, "Uptime", (time.Duration(m.snap.Health.UptimeSeconds) * time.Second).String())
	} else {
		m.row(&sb, "Status", m.styles.Offline.Render("offline"))
	}
	m.row(&sb, "Last poll", humanize.Time(m.snap.FetchedAt))

	sb.WriteString("\n" + m.styles.Title.Render("Agents by status") + "\n")
	counts := make(map[protocol.AgentStatus]int)
	for _, a := range m.snap.Agents {
		counts[a.Status]++
	}
	if len(counts) == 0 {
		sb.WriteString(m.styles.Muted.Render("none") + "\n")
	}
	for _, st := range slices.Sorted(maps.Keys(counts)) {
		m.row(&sb, statusStyle(m.theme, st).Render(string(st)), fmt.Sprintf("%d", counts[st]))
	}

	sb.WriteString("\n" + m.styles.Title.Render("Journal") + "\n")
	m.row(&sb, "Recent failures", fmt.Sprintf("%d", len(m.snap.Failures)))
	return m.styles.Panel.Render(sb.String())
}

func (m Model) renderContext() string {
	st := m.snap.Context
	var sb strings.Builder
	sb.WriteString(m.styles.Title.Render("Context packages") + "\n")
	m.row(&sb, "Agents with context", fmt.Sprintf("%d", st.TotalAgents))
	m.row(&sb, "Files", fmt.Sprintf("%d", st.TotalContextFiles))
	m.row(&sb, "Total size", humanize.IBytes(uint64(max(st.TotalContextSize, 0))))

	sb.WriteString("\n" + m.styles.Title.Render("File types") + "\n")
	if len(st.FileTypeDistribution) == 0 {
		sb.WriteString(m.styles.Muted.Render("none") + "\n")
	}
	for _, ct := range slices.Sorted(maps.Keys(st.FileTypeDistribution)) {
		m.row(&sb, string(ct), fmt.Sprintf("%d", st.FileTypeDistribution[ct]))
	}

	sb.WriteString("\n" + m.styles.Title.Render("Recent activity") + "\n")
	if len(st.RecentActivity) == 0 {
		sb.WriteString(m.styles.Muted.Render("none") + "\n")
	}
	for _, rec := range st.RecentActivity {
		fmt.Fprintf(&sb, "%s  %-10s %s (%d files)\n",
			m.styles.Muted.Render(rec.Timestamp.Format(time.TimeOnly)),
			rec.Action, rec.AgentID, len(rec.ContextFiles))
	}
	return m.styles.Panel.Render(sb.String())
}

func (m Model) renderLanguage() string {
	st := m.snap.Language
	var sb strings.Builder
	sb.WriteString(m.styles.Title.Render("Ubiquitous language") + "\n")
	m.row(&sb, "Concepts", fmt.Sprintf("%d", st.TotalConcepts))
	m.row(&sb, "Domains", fmt.Sprintf("%d", st.TotalDomains))
	m.row(&sb, "Acronyms", fmt.Sprintf("%d", st.TotalAcronyms))
	m.row(&sb, "History entries", fmt.Sprintf("%d", st.TotalHistory))

	sb.WriteString("\n" + m.styles.Title.Render("Concepts per domain") + "\n")
	if len(st.DomainBreakdown) == 0 {
		sb.WriteString(m.styles.Muted.Render("none") + "\n")
	}
	for _, d := range slices.Sorted(maps.Keys(st.DomainBreakdown)) {
		m.row(&sb, d, fmt.Sprintf("%d", st.DomainBreakdown[d]))
	}
	return m.styles.Panel.Render(sb.String())
}

func (m Model) renderJournal() string {
	var sb strings.Builder
	sb.WriteString(m.styles.Title.Render("Recent failed operations") + "\n")
	if m.dbPath == "" {
		sb.WriteString(m.styles.Muted.Render("journal disabled") + "\n")
		return m.styles.Panel.Render(sb.String())
	}
	if len(m.snap.Failures) == 0 {
		sb.WriteString(m.styles.Muted.Render("no failures recorded") + "\n")
	}
	for _, ev := range m.snap.Failures {
		when := ev.CreatedAt
		if ts, err := eventlog.ParseTime(ev.CreatedAt); err == nil {
			when = humanize.Time(ts)
		}
		agentID := ev.AgentID
		if agentID == "" {
			agentID = "-"
		}
		fmt.Fprintf(&sb, "%s %-24s %-20s %s\n",
			m.styles.Muted.Render(fmt.Sprintf("%-16s", when)),
			ev.Type,
			truncate(agentID, 20),
			m.styles.Failure.Render(ev.Payload))
	}
	return m.styles.Panel.Render(sb.String())
}

func (m Model) row(sb *strings.Builder, label, value string) {
	sb.WriteString(m.styles.Label.Render(label))
	sb.WriteString(m.styles.Value.Render(value))
	sb.WriteString("\n")
}

// agentRows converts the snapshot agents into table rows ordered by role
// then ID.
func agentRows(snap Snapshot, now time.Time) []table.Row {
	agents := slices.Clone(snap.Agents)
	slices.SortFunc(agents, func(a, b agent.Agent) int {
		if c := strings.Compare(string(a.Role), string(b.Role)); c != 0 {
			return c
		}
		return strings.Compare(a.ID, b.ID)
	})
	rows := make([]table.Row, 0, len(agents))
	for _, a := range agents {
		missing := "-"
		if n := len(a.MissingContext); n > 0 {
			missing = fmt.Sprintf("%d", n)
		}
		rows = append(rows, table.Row{
			a.ID,
			string(a.Role),
			string(a.Status),
			sinceString(now, a.LastActivity),
			missing,
		})
	}
	return rows
}

// sinceString renders a coarse age such as "12s" or "3m".
func sinceString(now, t time.Time) string {
	if t.IsZero() {
		return "-"
	}
	d := max(now.Sub(t), 0)
	switch {
	case d < time.Minute:
		return fmt.Sprintf("%ds", int(d.Seconds()))
	case d < time.Hour:
		return fmt.Sprintf("%dm", int(d.Minutes()))
	default:
		return fmt.Sprintf("%dh", int(d.Hours()))
	}
}

// truncate shortens s to n runes, marking the cut with "...".
func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	if n <= 3 {
		return string(r[:n])
	}
	return string(r[:n-3]) + "..."
}
