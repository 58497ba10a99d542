package tui

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/rs/zerolog"

	"github.com/SlokomManel/federated-recommendations-participants/internal/config"
	"github.com/SlokomManel/federated-recommendations-participants/internal/metrics"
	"github.com/SlokomManel/federated-recommendations-participants/internal/recs"
	"github.com/SlokomManel/federated-recommendations-participants/internal/state"
	"github.com/SlokomManel/federated-recommendations-participants/internal/workflow"
)

const (
	tabRecs = iota
	tabHistory
	tabBlocked
	tabSettings
)

type tickMsg time.Time

type phaseMsg struct{ snap workflow.Snapshot }

type toastMsg string

type toast struct {
	msg  string
	when time.Time
	ttl  time.Duration
}

// programSink bridges machine events into the running bubbletea program.
// Events arriving before the program starts are buffered and flushed on
// attach.
type programSink struct {
	mu      sync.Mutex
	p       *tea.Program
	backlog []tea.Msg
}

func (s *programSink) send(msg tea.Msg) {
	s.mu.Lock()
	p := s.p
	if p == nil {
		s.backlog = append(s.backlog, msg)
		s.mu.Unlock()
		return
	}
	s.mu.Unlock()
	p.Send(msg)
}

func (s *programSink) attach(p *tea.Program) {
	s.mu.Lock()
	s.p = p
	backlog := s.backlog
	s.backlog = nil
	s.mu.Unlock()
	for _, msg := range backlog {
		p.Send(msg)
	}
}

func (s *programSink) PhaseChanged(snap workflow.Snapshot) { s.send(phaseMsg{snap: snap}) }

func (s *programSink) Toast(msg string) { s.send(toastMsg(msg)) }

// Model is the interactive recommendation surface.
type Model struct {
	cfg  *config.Config
	st   *state.DB
	mach *workflow.Machine
	th   Theme
	thi  int
	w, h int

	snap     workflow.Snapshot
	settings state.Settings
	genres   map[string]state.GenreMode
	blocked  map[int]bool

	activeTab int
	page      int
	selected  int
	detail    bool

	searching bool
	search    textinput.Model
	query     string

	uploading bool
	upload    textinput.Model

	genreDrawer bool
	genreSel    int

	settingsSel int

	privacyGate bool
	showHelp    bool
	showToasts  bool

	spin   spinner.Model
	toasts []toast

	historyRows []state.ClickEntry
	blockedRows []state.BlockedItem
}

// New builds the TUI model around an already-wired machine.
func New(cfg *config.Config, st *state.DB, mach *workflow.Machine) *Model {
	search := textinput.New()
	search.Placeholder = "search titles"
	search.CharLimit = 80
	upload := textinput.New()
	upload.Placeholder = "path to NetflixViewingHistory.csv"
	upload.CharLimit = 250
	sp := spinner.New()
	sp.Spinner = spinner.Dot

	m := &Model{
		cfg:    cfg,
		st:     st,
		mach:   mach,
		th:     defaultTheme(),
		page:   1,
		search: search,
		upload: upload,
		spin:   sp,
	}
	m.reloadPrefs()
	accepted, err := st.PrivacyAccepted()
	if err == nil && !accepted {
		m.privacyGate = true
	}
	return m
}

// Run wires sink, machine, and program together and blocks until quit.
func Run(cfg *config.Config, st *state.DB, client workflow.Collaborator, log zerolog.Logger, met *metrics.Manager) error {
	sink := &programSink{}
	mach := workflow.New(client, st, sink, cfg, log, met)
	defer mach.Stop()

	m := New(cfg, st, mach)
	p := tea.NewProgram(m, tea.WithAltScreen())
	sink.attach(p)
	_, err := p.Run()
	return err
}

func (m *Model) Init() tea.Cmd {
	cmds := []tea.Cmd{m.spin.Tick, tickCmd()}
	if !m.privacyGate {
		cmds = append(cmds, m.bootstrapCmd())
	}
	return tea.Batch(cmds...)
}

func tickCmd() tea.Cmd {
	return tea.Tick(time.Second, func(t time.Time) tea.Msg { return tickMsg(t) })
}

func (m *Model) bootstrapCmd() tea.Cmd {
	return func() tea.Msg {
		m.mach.Bootstrap(context.Background())
		return nil
	}
}

func (m *Model) reloadPrefs() {
	if s, err := m.st.Settings(); err == nil {
		m.settings = s
	}
	if g, err := m.st.GenreFilters(); err == nil {
		m.genres = g
	}
	if m.settings.EnableBlockItems {
		if ids, err := m.st.BlockedIDs(); err == nil {
			m.blocked = ids
		}
	} else {
		m.blocked = nil
	}
}

func (m *Model) reloadHistory() {
	if rows, err := m.st.ClickHistory(); err == nil {
		m.historyRows = rows
	}
}

func (m *Model) reloadBlocked() {
	if rows, err := m.st.BlockedItems(); err == nil {
		m.blockedRows = rows
	}
}

// activeItems is the full list the filter pipeline runs over: reranked or
// raw per the settings toggle, narrowed by the fuzzy search query.
func (m *Model) activeItems() []recs.Item {
	items := m.snap.Raw
	if m.settings.UseReranked && len(m.snap.Reranked) > 0 {
		items = m.snap.Reranked
	}
	return recs.SearchTitles(items, m.query)
}

// currentPage runs the filter and pagination pipeline for the active view.
func (m *Model) currentPage() recs.PageView {
	return recs.Render(m.activeItems(), m.genres, m.blocked, m.page)
}

// resetPage is called when the filtered list changes shape for a reason the
// user caused. Background refreshes keep the page and clamp instead.
func (m *Model) resetPage() {
	m.page = 1
	m.selected = 0
}

func (m *Model) clampSelection() {
	pv := m.currentPage()
	m.page = pv.Page
	if m.selected >= len(pv.Items) {
		m.selected = len(pv.Items) - 1
	}
	if m.selected < 0 {
		m.selected = 0
	}
}

// visibleIDs reports what the user could see when a choice was made.
func (m *Model) visibleIDs() []int {
	pv := m.currentPage()
	out := make([]int, 0, len(pv.Items))
	for _, it := range pv.Items {
		out = append(out, it.ID)
	}
	return out
}

func (m *Model) selectedItem() (recs.Item, bool) {
	pv := m.currentPage()
	if m.selected < 0 || m.selected >= len(pv.Items) {
		return recs.Item{}, false
	}
	return pv.Items[m.selected], true
}

// drawerGenres is the stable, sorted union of genres across the whole
// active list, not just the current page.
func (m *Model) drawerGenres() []string {
	seen := make(map[string]bool)
	var out []string
	for _, it := range m.activeItems() {
		for _, g := range it.GenreList() {
			if !seen[g] {
				seen[g] = true
				out = append(out, g)
			}
		}
	}
	sort.Strings(out)
	return out
}

func (m *Model) loading() bool {
	switch m.snap.Phase {
	case workflow.PhaseIdle, workflow.PhaseUploading, workflow.PhaseFineTuning,
		workflow.PhaseRunning, workflow.PhaseComputing:
		return true
	}
	return false
}
