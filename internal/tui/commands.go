package tui

import (
	"fmt"
	"strings"
	"time"

	"github.com/dustin/go-humanize"
)

// Toast notifications

func (m *Model) addToast(s string) {
	m.toasts = append(m.toasts, toast{msg: s, when: time.Now(), ttl: 5 * time.Second})
	m.gcToasts()
}

func (m *Model) gcToasts() {
	now := time.Now()
	fresh := m.toasts[:0]
	for _, t := range m.toasts {
		if now.Sub(t.when) < t.ttl {
			fresh = append(fresh, t)
		}
	}
	m.toasts = fresh
}

func (m *Model) renderToastLine() string {
	m.gcToasts()
	if len(m.toasts) == 0 {
		return ""
	}
	return m.th.label.Render(m.toasts[len(m.toasts)-1].msg)
}

func (m *Model) renderToastDrawer() string {
	if len(m.toasts) == 0 {
		return m.th.label.Render("(no recent notifications)")
	}
	var sb strings.Builder
	for i := len(m.toasts) - 1; i >= 0; i-- { // newest first
		t := m.toasts[i]
		sb.WriteString(fmt.Sprintf("%s  %s\n", t.msg, m.th.label.Render(humanize.Time(t.when))))
	}
	return sb.String()
}

// Command bars

func (m *Model) commandsBar() string {
	switch {
	case m.genreDrawer:
		return m.th.footer.Render("j/k navigate • Space cycle filter • c clear all • g/Esc close")
	case m.activeTab == tabHistory:
		return m.th.footer.Render("j/k navigate • C clear history • 1-4 tabs • H toasts • ? help • q quit")
	case m.activeTab == tabBlocked:
		return m.th.footer.Render("j/k navigate • u unblock • 1-4 tabs • H toasts • ? help • q quit")
	case m.activeTab == tabSettings:
		return m.th.footer.Render("j/k navigate • Space toggle • 1-4 tabs • H toasts • ? help • q quit")
	default:
		return m.th.footer.Render("j/k select • h/l pages • Enter details • w/x watchlist • B block • g genres • / search • t list • r/R refresh • u upload • ? help • q quit")
	}
}

// Help screen

func (m *Model) renderHelp() string {
	var sb strings.Builder
	sb.WriteString(m.th.head.Render("Help") + "\n")
	sb.WriteString("Tabs: 1 Recommendations • 2 History • 3 Blocked • 4 Settings\n")
	sb.WriteString("\n")
	sb.WriteString(m.th.head.Render("Recommendations (1)") + "\n")
	sb.WriteString("Nav: j/k select • h/l or ←/→ change page\n")
	sb.WriteString("Enter: open details (records the pick)\n")
	sb.WriteString("Watchlist: w will watch • x won't watch\n")
	sb.WriteString("Block: B hide the selected title for good\n")
	sb.WriteString("Genres: g open the filter drawer; Space cycles required/hidden\n")
	sb.WriteString("Search: / fuzzy search; Enter apply; Esc clear\n")
	sb.WriteString("List: t switch raw/reranked ordering\n")
	sb.WriteString("Refresh: r rescore with current model • R retrain from scratch\n")
	sb.WriteString("Upload: u send a Netflix viewing history CSV\n")
	sb.WriteString("\n")
	sb.WriteString(m.th.head.Render("History (2)") + "\n")
	sb.WriteString("j/k navigate • C clear the local click history\n")
	sb.WriteString("\n")
	sb.WriteString(m.th.head.Render("Blocked (3)") + "\n")
	sb.WriteString("j/k navigate • u or Enter unblock\n")
	sb.WriteString("\n")
	sb.WriteString(m.th.head.Render("Settings (4)") + "\n")
	sb.WriteString("j/k navigate • Space or Enter toggle\n")
	sb.WriteString("\n")
	sb.WriteString("Theme: T cycle presets • Toasts: H drawer • Quit: q\n")
	sb.WriteString("\n")
	sb.WriteString(m.th.label.Render("press any key to close"))
	return sb.String()
}
