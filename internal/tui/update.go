package tui

import (
	"context"
	"fmt"
	"strings"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/SlokomManel/federated-recommendations-participants/internal/state"
	"github.com/SlokomManel/federated-recommendations-participants/internal/workflow"
)

func (m *Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.w, m.h = msg.Width, msg.Height
		return m, nil
	case tea.KeyMsg:
		return m.handleKey(msg)
	case phaseMsg:
		m.snap = msg.snap
		// Background refreshes keep the current page; only clamp it
		// against the new list shape.
		m.clampSelection()
		if m.snap.Phase == workflow.PhaseReady {
			m.reloadPrefs()
		}
		return m, nil
	case toastMsg:
		m.addToast(string(msg))
		return m, nil
	case tickMsg:
		m.gcToasts()
		return m, tickCmd()
	default:
		var cmd tea.Cmd
		m.spin, cmd = m.spin.Update(msg)
		return m, cmd
	}
}

func (m *Model) handleKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	if m.privacyGate {
		return m.handlePrivacyKey(msg)
	}
	if m.searching {
		return m.handleSearchKey(msg)
	}
	if m.uploading {
		return m.handleUploadKey(msg)
	}
	if m.genreDrawer {
		return m.handleGenreKey(msg)
	}
	if m.showHelp {
		m.showHelp = false
		return m, nil
	}

	switch msg.String() {
	case "q", "ctrl+c":
		return m, tea.Quit
	case "?":
		m.showHelp = true
		return m, nil
	case "H":
		m.showToasts = !m.showToasts
		return m, nil
	case "T":
		all := themes()
		m.thi = (m.thi + 1) % len(all)
		m.th = all[m.thi]
		return m, nil
	case "1":
		m.activeTab = tabRecs
		return m, nil
	case "2":
		m.activeTab = tabHistory
		m.reloadHistory()
		m.selected = 0
		return m, nil
	case "3":
		m.activeTab = tabBlocked
		m.reloadBlocked()
		m.selected = 0
		return m, nil
	case "4":
		m.activeTab = tabSettings
		m.settingsSel = 0
		return m, nil
	}

	switch m.activeTab {
	case tabRecs:
		return m.handleRecsKey(msg)
	case tabHistory:
		return m.handleHistoryKey(msg)
	case tabBlocked:
		return m.handleBlockedKey(msg)
	case tabSettings:
		return m.handleSettingsKey(msg)
	}
	return m, nil
}

func (m *Model) handlePrivacyKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "y", "enter":
		if err := m.st.SetPrivacyAccepted(); err != nil {
			m.addToast(fmt.Sprintf("Cannot record consent: %v", err))
			return m, nil
		}
		m.privacyGate = false
		return m, m.bootstrapCmd()
	case "q", "n", "ctrl+c", "esc":
		return m, tea.Quit
	}
	return m, nil
}

func (m *Model) handleSearchKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "enter":
		m.searching = false
		m.query = strings.TrimSpace(m.search.Value())
		m.resetPage()
		return m, nil
	case "esc":
		m.searching = false
		m.search.SetValue("")
		if m.query != "" {
			m.query = ""
			m.resetPage()
		}
		return m, nil
	}
	var cmd tea.Cmd
	m.search, cmd = m.search.Update(msg)
	return m, cmd
}

func (m *Model) handleUploadKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "enter":
		path := strings.TrimSpace(m.upload.Value())
		m.uploading = false
		m.upload.SetValue("")
		if path == "" {
			return m, nil
		}
		return m, func() tea.Msg {
			m.mach.Upload(context.Background(), path)
			return nil
		}
	case "esc":
		m.uploading = false
		m.upload.SetValue("")
		return m, nil
	}
	var cmd tea.Cmd
	m.upload, cmd = m.upload.Update(msg)
	return m, cmd
}

func (m *Model) handleGenreKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	genres := m.drawerGenres()
	switch msg.String() {
	case "g", "esc", "q":
		m.genreDrawer = false
		return m, nil
	case "j", "down":
		if m.genreSel < len(genres)-1 {
			m.genreSel++
		}
		return m, nil
	case "k", "up":
		if m.genreSel > 0 {
			m.genreSel--
		}
		return m, nil
	case " ", "enter":
		if m.genreSel < 0 || m.genreSel >= len(genres) {
			return m, nil
		}
		g := genres[m.genreSel]
		mode, err := m.st.CycleGenre(g)
		if err != nil {
			m.addToast(fmt.Sprintf("Cannot update genre filter: %v", err))
			return m, nil
		}
		m.reloadPrefs()
		m.resetPage()
		switch mode {
		case state.GenreRequired:
			m.addToast(fmt.Sprintf("Requiring genre %q", g))
		case state.GenreBlocked:
			m.addToast(fmt.Sprintf("Hiding genre %q", g))
		default:
			m.addToast(fmt.Sprintf("Cleared filter on %q", g))
		}
		return m, nil
	case "c":
		if err := m.st.ClearGenreFilters(); err != nil {
			m.addToast(fmt.Sprintf("Cannot clear genre filters: %v", err))
			return m, nil
		}
		m.reloadPrefs()
		m.resetPage()
		m.addToast("Genre filters cleared")
		return m, nil
	}
	return m, nil
}

func (m *Model) handleRecsKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "j", "down":
		pv := m.currentPage()
		if m.selected < len(pv.Items)-1 {
			m.selected++
		}
		return m, nil
	case "k", "up":
		if m.selected > 0 {
			m.selected--
		}
		return m, nil
	case "l", "right", "n":
		pv := m.currentPage()
		if m.page < pv.TotalPages {
			m.page++
			m.selected = 0
		}
		return m, nil
	case "h", "left", "p":
		if m.page > 1 {
			m.page--
			m.selected = 0
		}
		return m, nil
	case "enter":
		it, ok := m.selectedItem()
		if !ok {
			return m, nil
		}
		m.detail = !m.detail
		if m.detail {
			m.mach.RecordChoice(it, m.settings.UseReranked, m.page, m.visibleIDs())
			m.reloadHistory()
		}
		return m, nil
	case "w":
		return m.watchlistAction("will_watch")
	case "x":
		return m.watchlistAction("wont_watch")
	case "B":
		if !m.settings.EnableBlockItems {
			m.addToast("Blocking is disabled in settings")
			return m, nil
		}
		it, ok := m.selectedItem()
		if !ok {
			return m, nil
		}
		if err := m.st.BlockItem(it.ID, it.Name); err != nil {
			m.addToast(fmt.Sprintf("Cannot block %q: %v", it.Name, err))
			return m, nil
		}
		m.reloadPrefs()
		m.resetPage()
		m.addToast(fmt.Sprintf("Blocked %q", it.Name))
		return m, nil
	case "g":
		m.genreDrawer = true
		m.genreSel = 0
		return m, nil
	case "/":
		m.searching = true
		m.search.Focus()
		return m, nil
	case "t":
		m.settings.UseReranked = !m.settings.UseReranked
		m.persistSettings()
		m.resetPage()
		return m, nil
	case "r":
		if m.snap.Phase != workflow.PhaseReady {
			return m, nil
		}
		return m, func() tea.Msg {
			m.mach.Refresh(context.Background(), false)
			return nil
		}
	case "R":
		switch m.snap.Phase {
		case workflow.PhaseReady:
			return m, func() tea.Msg {
				m.mach.Refresh(context.Background(), true)
				return nil
			}
		case workflow.PhaseError, workflow.PhaseAggregatorWait, workflow.PhaseNoViewingHistory:
			// Re-run the status probe and decision tree from scratch.
			return m, m.bootstrapCmd()
		}
		return m, nil
	case "u":
		m.uploading = true
		m.upload.Focus()
		return m, nil
	}
	return m, nil
}

func (m *Model) watchlistAction(action string) (tea.Model, tea.Cmd) {
	if !m.settings.EnableWatchlist {
		m.addToast("Watchlist is disabled in settings")
		return m, nil
	}
	it, ok := m.selectedItem()
	if !ok {
		return m, nil
	}
	m.mach.RecordWatchlist(it, action, m.settings.UseReranked, m.page, m.visibleIDs())
	m.reloadHistory()
	if action == "will_watch" {
		m.addToast(fmt.Sprintf("Added %q to your watchlist", it.Name))
	} else {
		m.addToast(fmt.Sprintf("Marked %q as not interested", it.Name))
	}
	return m, nil
}

func (m *Model) handleHistoryKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "j", "down":
		if m.selected < len(m.historyRows)-1 {
			m.selected++
		}
	case "k", "up":
		if m.selected > 0 {
			m.selected--
		}
	case "C":
		if err := m.st.ClearClickHistory(); err != nil {
			m.addToast(fmt.Sprintf("Cannot clear history: %v", err))
			return m, nil
		}
		m.reloadHistory()
		m.selected = 0
		m.addToast("Click history cleared")
	}
	return m, nil
}

func (m *Model) handleBlockedKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "j", "down":
		if m.selected < len(m.blockedRows)-1 {
			m.selected++
		}
	case "k", "up":
		if m.selected > 0 {
			m.selected--
		}
	case "u", "enter":
		if m.selected < 0 || m.selected >= len(m.blockedRows) {
			return m, nil
		}
		it := m.blockedRows[m.selected]
		if err := m.st.UnblockItem(it.ID); err != nil {
			m.addToast(fmt.Sprintf("Cannot unblock %q: %v", it.Name, err))
			return m, nil
		}
		m.reloadBlocked()
		m.reloadPrefs()
		m.resetPage()
		if m.selected >= len(m.blockedRows) {
			m.selected = len(m.blockedRows) - 1
		}
		m.addToast(fmt.Sprintf("Unblocked %q", it.Name))
	}
	return m, nil
}

// settingsOrder fixes the display order of the toggles.
var settingsOrder = []struct {
	label string
	get   func(*state.Settings) *bool
}{
	{"Show more details", func(s *state.Settings) *bool { return &s.ShowMoreDetails }},
	{"Use reranked list", func(s *state.Settings) *bool { return &s.UseReranked }},
	{"Show why recommended", func(s *state.Settings) *bool { return &s.ShowWhyRecommended }},
	{"Enable watchlist", func(s *state.Settings) *bool { return &s.EnableWatchlist }},
	{"Enable blocking items", func(s *state.Settings) *bool { return &s.EnableBlockItems }},
	{"Show activity charts", func(s *state.Settings) *bool { return &s.ShowActivityCharts }},
	{"Show watchlist status", func(s *state.Settings) *bool { return &s.ShowWatchlistStatus }},
}

func (m *Model) handleSettingsKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "j", "down":
		if m.settingsSel < len(settingsOrder)-1 {
			m.settingsSel++
		}
	case "k", "up":
		if m.settingsSel > 0 {
			m.settingsSel--
		}
	case " ", "enter":
		field := settingsOrder[m.settingsSel].get(&m.settings)
		*field = !*field
		m.persistSettings()
		m.resetPage()
	}
	return m, nil
}

// persistSettings saves, refreshes derived filter state, and forwards the
// full record to the service.
func (m *Model) persistSettings() {
	if err := m.st.SaveSettings(m.settings); err != nil {
		m.addToast(fmt.Sprintf("Cannot save settings: %v", err))
		return
	}
	m.reloadPrefs()
	m.mach.NotifySettingsChanged(m.settings)
}
