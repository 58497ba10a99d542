package tui

import (
	"context"
	"fmt"
	"io"
	"testing"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/SlokomManel/federated-recommendations-participants/internal/api"
	"github.com/SlokomManel/federated-recommendations-participants/internal/config"
	"github.com/SlokomManel/federated-recommendations-participants/internal/logging"
	"github.com/SlokomManel/federated-recommendations-participants/internal/recs"
	"github.com/SlokomManel/federated-recommendations-participants/internal/state"
	"github.com/SlokomManel/federated-recommendations-participants/internal/workflow"
)

// stubService satisfies the collaborator surface without a network.
type stubService struct{}

func (stubService) Status(context.Context) (*api.StatusResponse, error) {
	return &api.StatusResponse{Status: api.StatusReady, HasViewingHistory: true}, nil
}
func (stubService) TriggerFineTune(context.Context, api.FineTuneRequest) (*api.TriggerResponse, error) {
	return &api.TriggerResponse{Status: api.StatusStarted}, nil
}
func (stubService) TriggerRecompute(context.Context) (*api.TriggerResponse, error) {
	return &api.TriggerResponse{Status: api.StatusStarted}, nil
}
func (stubService) Recommendations(context.Context) (*api.RecommendationsResponse, error) {
	return &api.RecommendationsResponse{}, nil
}
func (stubService) SharedModelInfo(context.Context) (*api.SharedModelInfo, error) {
	return &api.SharedModelInfo{}, nil
}
func (stubService) RecordChoice(context.Context, api.ChoiceRequest) error { return nil }
func (stubService) RecordWatchlist(context.Context, api.WatchlistRequest) error {
	return nil
}
func (stubService) LogSettings(context.Context, api.SettingsLog) error { return nil }
func (stubService) UploadHistory(context.Context, string, io.Reader) (*api.UploadResponse, error) {
	return &api.UploadResponse{Status: "success"}, nil
}

func newTestModel(t *testing.T) (*Model, *state.DB) {
	t.Helper()
	cfg := &config.Config{Version: 1}
	cfg.General.DataRoot = t.TempDir()
	cfg.Server.BaseURL = "http://localhost:8080"
	cfg.Workflow.PollIntervalSeconds = 1
	cfg.Workflow.Profile = "profile_0"
	cfg.Workflow.Epsilon = 1.0
	db, err := state.Open(cfg)
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	t.Cleanup(func() { _ = db.Close() })
	if err := db.SetPrivacyAccepted(); err != nil {
		t.Fatalf("accept privacy: %v", err)
	}
	mach := workflow.New(stubService{}, db, nil, cfg, logging.Nop(), nil)
	t.Cleanup(mach.Stop)
	return New(cfg, db, mach), db
}

func key(s string) tea.KeyMsg {
	switch s {
	case "enter":
		return tea.KeyMsg{Type: tea.KeyEnter}
	case "esc":
		return tea.KeyMsg{Type: tea.KeyEsc}
	case " ":
		return tea.KeyMsg{Type: tea.KeySpace, Runes: []rune{' '}}
	default:
		return tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune(s)}
	}
}

func press(m *Model, keys ...string) {
	for _, k := range keys {
		_, _ = m.Update(key(k))
	}
}

func readySnapshot(n int) workflow.Snapshot {
	items := make([]api.Recommendation, n)
	for i := range items {
		items[i] = api.Recommendation{ID: i + 1, Name: fmt.Sprintf("title-%02d", i+1), Genres: "Drama"}
	}
	return workflow.Snapshot{Phase: workflow.PhaseReady, Raw: recs.FromAPI(items)}
}

func TestTabSwitching(t *testing.T) {
	m, _ := newTestModel(t)
	press(m, "2")
	if m.activeTab != tabHistory {
		t.Fatalf("expected history tab, got %d", m.activeTab)
	}
	press(m, "3")
	if m.activeTab != tabBlocked {
		t.Fatalf("expected blocked tab, got %d", m.activeTab)
	}
	press(m, "4")
	if m.activeTab != tabSettings {
		t.Fatalf("expected settings tab, got %d", m.activeTab)
	}
	press(m, "1")
	if m.activeTab != tabRecs {
		t.Fatalf("expected recommendations tab, got %d", m.activeTab)
	}
}

func TestPaginationKeysClamp(t *testing.T) {
	m, _ := newTestModel(t)
	m.snap = readySnapshot(12) // 3 pages of 5

	press(m, "h")
	if m.page != 1 {
		t.Fatalf("page must not go below 1, got %d", m.page)
	}
	press(m, "l", "l", "l", "l")
	if m.page != 3 {
		t.Fatalf("page must clamp at 3, got %d", m.page)
	}
	pv := m.currentPage()
	if len(pv.Items) != 2 {
		t.Fatalf("last page should hold the remainder, got %d items", len(pv.Items))
	}
}

func TestBackgroundRefreshKeepsPage(t *testing.T) {
	m, _ := newTestModel(t)
	m.snap = readySnapshot(12)
	press(m, "l")
	if m.page != 2 {
		t.Fatalf("setup: expected page 2, got %d", m.page)
	}

	_, _ = m.Update(phaseMsg{snap: readySnapshot(12)})
	if m.page != 2 {
		t.Fatalf("background refresh must keep the page, got %d", m.page)
	}

	// A shrunken list clamps rather than resets.
	_, _ = m.Update(phaseMsg{snap: readySnapshot(4)})
	if m.page != 1 {
		t.Fatalf("shrunken list must clamp to its last page, got %d", m.page)
	}
}

func TestSearchAppliesAndResetsPage(t *testing.T) {
	m, _ := newTestModel(t)
	m.snap = readySnapshot(12)
	press(m, "l")

	press(m, "/")
	if !m.searching {
		t.Fatalf("slash must open the search input")
	}
	press(m, "t", "i", "t", "l", "e", "-", "0", "1", "enter")
	if m.searching {
		t.Fatalf("enter must close the search input")
	}
	if m.query != "title-01" {
		t.Fatalf("unexpected query %q", m.query)
	}
	if m.page != 1 {
		t.Fatalf("applying a search must reset the page, got %d", m.page)
	}
	pv := m.currentPage()
	if pv.TotalFiltered == 12 {
		t.Fatalf("search did not narrow the list")
	}
	for _, it := range pv.Items {
		if it.Rank == 0 {
			t.Fatalf("ranks must survive search: %+v", it)
		}
	}

	press(m, "/", "esc")
	if m.query != "" {
		t.Fatalf("esc must clear the query, got %q", m.query)
	}
}

func TestGenreDrawerCyclePersists(t *testing.T) {
	m, db := newTestModel(t)
	items := []api.Recommendation{
		{ID: 1, Name: "a", Genres: "Drama"},
		{ID: 2, Name: "b", Genres: "Comedy"},
	}
	m.snap = workflow.Snapshot{Phase: workflow.PhaseReady, Raw: recs.FromAPI(items)}

	press(m, "g")
	if !m.genreDrawer {
		t.Fatalf("g must open the genre drawer")
	}
	// Genres are sorted; Comedy first.
	press(m, " ")
	mode, err := db.GenreFilter("Comedy")
	if err != nil {
		t.Fatalf("GenreFilter: %v", err)
	}
	if mode != state.GenreRequired {
		t.Fatalf("first cycle must require, got %q", mode)
	}
	pv := m.currentPage()
	if pv.TotalFiltered != 1 || pv.Items[0].Name != "b" {
		t.Fatalf("required genre must narrow the list: %+v", pv)
	}

	press(m, " ", " ") // blocked, then neutral
	mode, _ = db.GenreFilter("Comedy")
	if mode != state.GenreNeutral {
		t.Fatalf("third cycle must return to neutral, got %q", mode)
	}
	press(m, "esc")
	if m.genreDrawer {
		t.Fatalf("esc must close the drawer")
	}
}

func TestBlockFromListResetsPage(t *testing.T) {
	m, db := newTestModel(t)
	m.snap = readySnapshot(12)
	press(m, "l") // page 2; first visible item is title-06

	press(m, "B")
	ids, err := db.BlockedIDs()
	if err != nil {
		t.Fatalf("BlockedIDs: %v", err)
	}
	if !ids[6] {
		t.Fatalf("expected id 6 blocked, got %v", ids)
	}
	if m.page != 1 {
		t.Fatalf("blocking must reset pagination, got page %d", m.page)
	}
	pv := m.currentPage()
	if pv.TotalFiltered != 11 {
		t.Fatalf("blocked item must leave the list, got %d", pv.TotalFiltered)
	}
}

func TestSettingsTogglePersists(t *testing.T) {
	m, db := newTestModel(t)
	press(m, "4")
	press(m, "j", " ") // second toggle: use reranked list

	s, err := db.Settings()
	if err != nil {
		t.Fatalf("Settings: %v", err)
	}
	if !s.UseReranked {
		t.Fatalf("toggle did not persist")
	}
	press(m, " ")
	s, _ = db.Settings()
	if s.UseReranked {
		t.Fatalf("second press must toggle back")
	}
}

func TestRerankedToggleSwitchesList(t *testing.T) {
	m, _ := newTestModel(t)
	raw := []api.Recommendation{{ID: 1, Name: "first"}, {ID: 2, Name: "second"}}
	reranked := []api.Recommendation{{ID: 2, Name: "second"}, {ID: 1, Name: "first"}}
	m.snap = workflow.Snapshot{
		Phase:    workflow.PhaseReady,
		Raw:      recs.FromAPI(raw),
		Reranked: recs.FromAPI(reranked),
	}

	pv := m.currentPage()
	if pv.Items[0].ID != 1 {
		t.Fatalf("raw list expected first, got %+v", pv.Items[0])
	}
	press(m, "t")
	pv = m.currentPage()
	if pv.Items[0].ID != 2 {
		t.Fatalf("reranked list expected after toggle, got %+v", pv.Items[0])
	}
}

func TestPrivacyGateBlocksUntilAccepted(t *testing.T) {
	cfg := &config.Config{Version: 1}
	cfg.General.DataRoot = t.TempDir()
	cfg.Server.BaseURL = "http://localhost:8080"
	cfg.Workflow.PollIntervalSeconds = 1
	cfg.Workflow.Profile = "profile_0"
	cfg.Workflow.Epsilon = 1.0
	db, err := state.Open(cfg)
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	defer func() { _ = db.Close() }()
	mach := workflow.New(stubService{}, db, nil, cfg, logging.Nop(), nil)
	defer mach.Stop()

	m := New(cfg, db, mach)
	if !m.privacyGate {
		t.Fatalf("fresh store must show the privacy gate")
	}
	press(m, "1") // ignored while gated
	if m.activeTab != tabRecs || !m.privacyGate {
		t.Fatalf("keys other than accept/quit must be ignored")
	}
	press(m, "y")
	if m.privacyGate {
		t.Fatalf("y must accept and clear the gate")
	}
	accepted, err := db.PrivacyAccepted()
	if err != nil || !accepted {
		t.Fatalf("consent must persist, got %v %v", accepted, err)
	}
}

func TestWatchlistDisabledToast(t *testing.T) {
	m, db := newTestModel(t)
	s, _ := db.Settings()
	s.EnableWatchlist = false
	if err := db.SaveSettings(s); err != nil {
		t.Fatalf("SaveSettings: %v", err)
	}
	m.reloadPrefs()
	m.snap = readySnapshot(3)

	press(m, "w")
	entries, _ := db.ClickHistory()
	if len(entries) != 0 {
		t.Fatalf("disabled watchlist must not record anything")
	}
	if len(m.toasts) == 0 {
		t.Fatalf("expected a toast explaining the disabled feature")
	}
}

func TestRetryKeyRestartsFromError(t *testing.T) {
	m, _ := newTestModel(t)
	m.snap = workflow.Snapshot{Phase: workflow.PhaseError, Message: "boom"}

	_, cmd := m.Update(key("R"))
	if cmd == nil {
		t.Fatalf("R on the error surface must issue a retry")
	}
	cmd()
	if p := m.mach.Phase(); p == workflow.PhaseError || p == workflow.PhaseIdle {
		t.Fatalf("retry must restart the workflow, still in %v", p)
	}
}

func TestRetryKeyRestartsFromAggregatorWait(t *testing.T) {
	m, _ := newTestModel(t)
	m.snap = workflow.Snapshot{Phase: workflow.PhaseAggregatorWait}

	_, cmd := m.Update(key("R"))
	if cmd == nil {
		t.Fatalf("R while waiting on the aggregator must issue a retry")
	}
}

func TestRetryKeyIgnoredMidWorkflow(t *testing.T) {
	m, _ := newTestModel(t)
	m.snap = workflow.Snapshot{Phase: workflow.PhaseFineTuning}

	_, cmd := m.Update(key("R"))
	if cmd != nil {
		t.Fatalf("R must be inert while a workflow is running")
	}
}

func TestViewRendersWithoutPanic(t *testing.T) {
	m, _ := newTestModel(t)
	m.snap = readySnapshot(7)
	for _, tab := range []string{"1", "2", "3", "4"} {
		press(m, tab)
		if m.View() == "" {
			t.Fatalf("empty view on tab %s", tab)
		}
	}
	m.snap = workflow.Snapshot{Phase: workflow.PhaseNoViewingHistory}
	press(m, "1")
	if m.View() == "" {
		t.Fatalf("empty upload surface")
	}
}
