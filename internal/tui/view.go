package tui

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/dustin/go-humanize"

	"github.com/SlokomManel/federated-recommendations-participants/internal/recs"
	"github.com/SlokomManel/federated-recommendations-participants/internal/state"
	"github.com/SlokomManel/federated-recommendations-participants/internal/workflow"
)

func (m *Model) View() string {
	if m.w == 0 {
		m.w = 120
	}
	if m.h == 0 {
		m.h = 30
	}
	if m.privacyGate {
		return m.th.border.Width(m.w - 2).Render(m.renderPrivacy())
	}
	if m.showHelp {
		return m.th.border.Width(m.w - 2).Render(m.renderHelp())
	}

	header := m.th.border.Width(m.w - 2).Render(m.renderHeader())
	tabs := m.renderTabs()

	var main string
	switch {
	case m.genreDrawer:
		main = m.renderGenreDrawer()
	case m.showToasts:
		main = m.renderToastDrawer()
	case m.activeTab == tabHistory:
		main = m.renderHistory()
	case m.activeTab == tabBlocked:
		main = m.renderBlocked()
	case m.activeTab == tabSettings:
		main = m.renderSettings()
	default:
		main = m.renderRecs()
	}

	footer := m.th.border.Width(m.w - 2).Render(m.commandsBar())
	body := m.th.border.Width(m.w - 2).Render(tabs + "\n\n" + main)
	parts := []string{header, body}
	if t := m.renderToastLine(); t != "" {
		parts = append(parts, t)
	}
	parts = append(parts, footer)
	return lipgloss.JoinVertical(lipgloss.Left, parts...)
}

func (m *Model) renderHeader() string {
	title := m.th.title.Render("fedrec")
	phase := m.renderPhaseBadge()
	who := ""
	if m.snap.UserEmail != "" {
		who = m.th.label.Render("  " + m.snap.UserEmail)
	}
	return lipgloss.JoinHorizontal(lipgloss.Top, title, "  ", phase, who)
}

func (m *Model) renderPhaseBadge() string {
	switch m.snap.Phase {
	case workflow.PhaseReady:
		return m.th.ok.Render("ready")
	case workflow.PhaseError:
		return m.th.bad.Render("error")
	case workflow.PhaseNoViewingHistory:
		return m.th.warn.Render("needs data")
	case workflow.PhaseAggregatorWait:
		return m.th.warn.Render("waiting for other participants")
	default:
		msg := m.snap.Message
		if msg == "" {
			msg = m.snap.Phase.String()
		}
		return m.spin.View() + " " + m.th.label.Render(msg)
	}
}

func (m *Model) renderTabs() string {
	labels := []struct {
		name string
		tab  int
	}{
		{"Recommendations", tabRecs},
		{"History", tabHistory},
		{"Blocked", tabBlocked},
		{"Settings", tabSettings},
	}
	var sb strings.Builder
	for i, it := range labels {
		style := m.th.tabInactive
		if it.tab == m.activeTab {
			style = m.th.tabActive
		}
		label := it.name
		switch it.tab {
		case tabHistory:
			if n := len(m.historyRows); n > 0 {
				label = fmt.Sprintf("%s (%d)", it.name, n)
			}
		case tabBlocked:
			if n := len(m.blockedRows); n > 0 {
				label = fmt.Sprintf("%s (%d)", it.name, n)
			}
		}
		sb.WriteString(style.Render(label))
		if i < len(labels)-1 {
			sb.WriteString("  •  ")
		}
	}
	return sb.String()
}

func (m *Model) renderRecs() string {
	switch m.snap.Phase {
	case workflow.PhaseNoViewingHistory:
		return m.renderUploadSurface()
	case workflow.PhaseError:
		return m.renderError()
	case workflow.PhaseAggregatorWait:
		msg := m.snap.Message
		if msg == "" {
			msg = "The shared model is waiting for contributions from other participants."
		}
		return m.th.warn.Render(msg) + "\n\n" +
			m.th.label.Render("Your part is done. Check back later; press R to retry.")
	case workflow.PhaseReady:
		return m.renderList()
	default:
		msg := m.snap.Message
		if msg == "" {
			msg = "Working..."
		}
		return m.spin.View() + " " + msg
	}
}

func (m *Model) renderUploadSurface() string {
	var sb strings.Builder
	sb.WriteString(m.th.head.Render("No viewing history yet") + "\n\n")
	if m.snap.Message != "" {
		sb.WriteString(m.snap.Message + "\n\n")
	}
	sb.WriteString("Export your Netflix viewing history and upload the CSV to get\n")
	sb.WriteString("personalized recommendations. The file stays on this machine;\n")
	sb.WriteString("only model updates are shared.\n\n")
	if m.uploading {
		sb.WriteString(m.upload.View() + "\n")
		sb.WriteString(m.th.label.Render("Enter to upload • Esc to cancel"))
	} else {
		sb.WriteString(m.th.label.Render("Press u to choose a file"))
	}
	return sb.String()
}

func (m *Model) renderError() string {
	var sb strings.Builder
	sb.WriteString(m.th.bad.Render("Something went wrong") + "\n\n")
	if fe := m.snap.Friendly; fe != nil {
		sb.WriteString(fe.Message + "\n")
		if fe.Suggestion != "" {
			sb.WriteString("\n" + m.th.label.Render(fe.Suggestion) + "\n")
		}
	} else if m.snap.Message != "" {
		sb.WriteString(m.snap.Message + "\n")
	}
	sb.WriteString("\n" + m.th.label.Render("Press R to retry from the start"))
	return sb.String()
}

func (m *Model) renderList() string {
	pv := m.currentPage()
	var sb strings.Builder

	which := "raw"
	if m.settings.UseReranked {
		which = "reranked"
	}
	status := fmt.Sprintf("Page %d/%d • %d titles", pv.Page, pv.TotalPages, pv.TotalFiltered)
	if m.query != "" {
		status += fmt.Sprintf(" • search: %q", m.query)
	}
	if n := len(m.genres); n > 0 {
		status += fmt.Sprintf(" • %d genre filters", n)
	}
	sb.WriteString(m.th.head.Render("Recommendations ("+which+")") + "  " + m.th.label.Render(status) + "\n\n")

	if m.searching {
		sb.WriteString(m.search.View() + "\n\n")
	}
	if len(pv.Items) == 0 {
		sb.WriteString(m.th.label.Render("(no titles match the current filters)"))
		return sb.String()
	}
	for i, it := range pv.Items {
		sb.WriteString(m.renderItemRow(it, i == m.selected))
		sb.WriteString("\n")
	}
	if m.detail {
		if it, ok := m.selectedItem(); ok {
			sb.WriteString("\n" + m.renderDetail(it))
		}
	}
	return sb.String()
}

func (m *Model) renderItemRow(it recs.Item, selected bool) string {
	marker := " "
	if st := m.clickStatus(it.ID); st != "" && m.settings.ShowWatchlistStatus {
		switch st {
		case "will_watch":
			marker = m.th.ok.Render("+")
		case "wont_watch":
			marker = m.th.bad.Render("-")
		}
	}
	line := fmt.Sprintf("%s %2d. %-40s", marker, it.Rank, truncate(it.Name, 40))
	if m.settings.ShowMoreDetails {
		extra := it.Genres
		if it.ReleaseYear > 0 {
			extra = fmt.Sprintf("%d • %s", it.ReleaseYear, extra)
		}
		line += "  " + m.th.label.Render(truncate(extra, 46))
	}
	if selected {
		return m.th.rowSelected.Render(line)
	}
	return m.th.row.Render(line)
}

func (m *Model) renderDetail(it recs.Item) string {
	var sb strings.Builder
	sb.WriteString(m.th.head.Render(it.Name) + "\n")
	if it.ReleaseYear > 0 || it.Rating != "" {
		sb.WriteString(m.th.label.Render(fmt.Sprintf("%d  %s", it.ReleaseYear, it.Rating)) + "\n")
	}
	if it.Genres != "" {
		sb.WriteString(m.th.label.Render("Genres: ") + it.Genres + "\n")
	}
	if m.settings.ShowWhyRecommended {
		sb.WriteString(m.th.label.Render("Why: ") +
			fmt.Sprintf("ranked #%d for you with score %.2f", it.Rank, it.Score) + "\n")
	}
	if it.Description != "" {
		sb.WriteString("\n" + wrap(it.Description, 72) + "\n")
	}
	return sb.String()
}

func (m *Model) clickStatus(id int) string {
	for _, e := range m.historyRows {
		if e.ID == id {
			return e.Status
		}
	}
	return ""
}

func (m *Model) renderHistory() string {
	var sb strings.Builder
	sb.WriteString(m.th.head.Render("Click history") + "  " +
		m.th.label.Render(fmt.Sprintf("%d entries, most recent first", len(m.historyRows))) + "\n\n")
	if len(m.historyRows) == 0 {
		sb.WriteString(m.th.label.Render("(nothing clicked yet)"))
		return sb.String()
	}
	maxRows := m.h - 12
	if maxRows < 5 {
		maxRows = 5
	}
	for i, e := range m.historyRows {
		status := ""
		if e.Status != "" {
			status = " [" + e.Status + "]"
		}
		line := fmt.Sprintf("%-44s %s ×%d%s", truncate(e.Name, 44),
			m.th.label.Render(humanize.Time(e.ClickedAt)), e.ClickCount, status)
		if i == m.selected {
			line = m.th.rowSelected.Render(line)
		}
		sb.WriteString(line + "\n")
		if i+1 >= maxRows {
			sb.WriteString(m.th.label.Render(fmt.Sprintf("... and %d more", len(m.historyRows)-maxRows)))
			break
		}
	}
	return sb.String()
}

func (m *Model) renderBlocked() string {
	var sb strings.Builder
	sb.WriteString(m.th.head.Render("Blocked titles") + "\n\n")
	if !m.settings.EnableBlockItems {
		sb.WriteString(m.th.label.Render("Blocking is disabled; enable it in Settings."))
		return sb.String()
	}
	if len(m.blockedRows) == 0 {
		sb.WriteString(m.th.label.Render("(no blocked titles)"))
		return sb.String()
	}
	for i, e := range m.blockedRows {
		line := fmt.Sprintf("%-44s %s", truncate(e.Name, 44), m.th.label.Render(humanize.Time(e.BlockedAt)))
		if i == m.selected {
			line = m.th.rowSelected.Render(line)
		}
		sb.WriteString(line + "\n")
	}
	return sb.String()
}

func (m *Model) renderSettings() string {
	var sb strings.Builder
	sb.WriteString(m.th.head.Render("Settings") + "\n\n")
	for i, s := range settingsOrder {
		on := *s.get(&m.settings)
		box := "[ ]"
		if on {
			box = m.th.ok.Render("[x]")
		}
		line := fmt.Sprintf("%s %s", box, s.label)
		if i == m.settingsSel {
			line = m.th.rowSelected.Render(line)
		}
		sb.WriteString(line + "\n")
	}
	sb.WriteString("\n" + m.th.head.Render("Connection") + "\n")
	sb.WriteString(m.th.label.Render("Service: ") + m.cfg.Server.BaseURL + "\n")
	sb.WriteString(m.th.label.Render("Data root: ") + m.cfg.General.DataRoot + "\n")
	sb.WriteString(m.th.label.Render("Profile: ") +
		fmt.Sprintf("%s (epsilon %.1f)", m.cfg.Workflow.Profile, m.cfg.Workflow.Epsilon) + "\n")
	return sb.String()
}

func (m *Model) renderGenreDrawer() string {
	genres := m.drawerGenres()
	var sb strings.Builder
	sb.WriteString(m.th.head.Render("Genre filters") + "  " +
		m.th.label.Render("space cycles: neutral → required → hidden") + "\n\n")
	if len(genres) == 0 {
		sb.WriteString(m.th.label.Render("(no genres in the current list)"))
		return sb.String()
	}
	for i, g := range genres {
		mode := m.genres[g]
		var badge string
		switch mode {
		case state.GenreRequired:
			badge = m.th.ok.Render("required")
		case state.GenreBlocked:
			badge = m.th.bad.Render("hidden")
		default:
			badge = m.th.label.Render("neutral")
		}
		line := fmt.Sprintf("%-26s %s", truncate(g, 26), badge)
		if i == m.genreSel {
			line = m.th.rowSelected.Render(line)
		}
		sb.WriteString(line + "\n")
	}
	return sb.String()
}

func (m *Model) renderPrivacy() string {
	var sb strings.Builder
	sb.WriteString(m.th.head.Render("Before you start") + "\n\n")
	sb.WriteString("This app trains a personal recommendation model on your own\n")
	sb.WriteString("machine. Your viewing history never leaves it; only privacy-\n")
	sb.WriteString("protected model updates are shared with the aggregator.\n\n")
	sb.WriteString("Interaction telemetry (which recommendations you pick) is sent\n")
	sb.WriteString("to the study operators to evaluate recommendation quality.\n\n")
	sb.WriteString(m.th.ok.Render("y / Enter") + "  agree and continue\n")
	sb.WriteString(m.th.bad.Render("q") + "          quit\n")
	return sb.String()
}

func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	if n <= 1 {
		return string(r[:n])
	}
	return string(r[:n-1]) + "…"
}

func wrap(s string, width int) string {
	words := strings.Fields(s)
	if len(words) == 0 {
		return ""
	}
	var sb strings.Builder
	line := words[0]
	for _, w := range words[1:] {
		if len(line)+1+len(w) > width {
			sb.WriteString(line + "\n")
			line = w
			continue
		}
		line += " " + w
	}
	sb.WriteString(line)
	return sb.String()
}
