package state

import (
	"fmt"
	"testing"

	"github.com/SlokomManel/federated-recommendations-participants/internal/config"
)

func openTestDB(t *testing.T) *DB {
	t.Helper()
	cfg := &config.Config{Version: 1}
	cfg.General.DataRoot = t.TempDir()
	db, err := Open(cfg)
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	t.Cleanup(func() { _ = db.Close() })
	return db
}

func TestSettingsDefaults(t *testing.T) {
	db := openTestDB(t)
	s, err := db.Settings()
	if err != nil {
		t.Fatalf("Settings: %v", err)
	}
	if s.UseReranked {
		t.Fatalf("useReranked should default to false")
	}
	if !s.ShowMoreDetails || !s.EnableWatchlist || !s.EnableBlockItems || !s.ShowWhyRecommended {
		t.Fatalf("expected remaining settings to default to true, got %+v", s)
	}
}

func TestSettingsRoundTrip(t *testing.T) {
	db := openTestDB(t)
	s := DefaultSettings()
	s.UseReranked = true
	s.EnableWatchlist = false
	if err := db.SaveSettings(s); err != nil {
		t.Fatalf("SaveSettings: %v", err)
	}
	got, err := db.Settings()
	if err != nil {
		t.Fatalf("Settings: %v", err)
	}
	if got != s {
		t.Fatalf("expected %+v, got %+v", s, got)
	}
}

func TestGenreCycleIsThreeCycle(t *testing.T) {
	db := openTestDB(t)
	want := []GenreMode{GenreRequired, GenreBlocked, GenreNeutral}
	// Four full cycles must return to the original state.
	for cycle := 0; cycle < 4; cycle++ {
		for i, w := range want {
			got, err := db.CycleGenre("Comedy")
			if err != nil {
				t.Fatalf("cycle %d step %d: %v", cycle, i, err)
			}
			if got != w {
				t.Fatalf("cycle %d step %d: expected %q, got %q", cycle, i, w, got)
			}
		}
	}
	m, err := db.GenreFilter("Comedy")
	if err != nil {
		t.Fatalf("GenreFilter: %v", err)
	}
	if m != GenreNeutral {
		t.Fatalf("expected neutral after full cycles, got %q", m)
	}
}

func TestGenreFiltersMapOmitsNeutral(t *testing.T) {
	db := openTestDB(t)
	if _, err := db.CycleGenre("Comedy"); err != nil { // required
		t.Fatalf("cycle: %v", err)
	}
	if _, err := db.CycleGenre("Horror"); err != nil {
		t.Fatalf("cycle: %v", err)
	}
	if _, err := db.CycleGenre("Horror"); err != nil { // blocked
		t.Fatalf("cycle: %v", err)
	}
	m, err := db.GenreFilters()
	if err != nil {
		t.Fatalf("GenreFilters: %v", err)
	}
	if len(m) != 2 || m["Comedy"] != GenreRequired || m["Horror"] != GenreBlocked {
		t.Fatalf("unexpected map: %v", m)
	}
}

func TestClickHistoryUpsert(t *testing.T) {
	db := openTestDB(t)
	if err := db.RecordClick(1, "The Crown"); err != nil {
		t.Fatalf("RecordClick: %v", err)
	}
	if err := db.RecordClick(2, "Dark"); err != nil {
		t.Fatalf("RecordClick: %v", err)
	}
	if err := db.RecordClick(1, "The Crown"); err != nil {
		t.Fatalf("RecordClick: %v", err)
	}
	entries, err := db.ClickHistory()
	if err != nil {
		t.Fatalf("ClickHistory: %v", err)
	}
	if len(entries) != 2 {
		t.Fatalf("expected 2 entries, got %d", len(entries))
	}
	if entries[0].ID != 1 || entries[0].ClickCount != 2 {
		t.Fatalf("expected id 1 first with count 2, got %+v", entries[0])
	}
	if entries[1].ID != 2 || entries[1].ClickCount != 1 {
		t.Fatalf("expected id 2 second with count 1, got %+v", entries[1])
	}
}

func TestClickHistoryCap(t *testing.T) {
	db := openTestDB(t)
	for i := 1; i <= maxClickHistory+10; i++ {
		if err := db.RecordClick(i, fmt.Sprintf("title-%d", i)); err != nil {
			t.Fatalf("RecordClick %d: %v", i, err)
		}
	}
	entries, err := db.ClickHistory()
	if err != nil {
		t.Fatalf("ClickHistory: %v", err)
	}
	if len(entries) != maxClickHistory {
		t.Fatalf("expected %d entries, got %d", maxClickHistory, len(entries))
	}
	// Oldest entries evicted: the first ten ids are gone.
	for _, e := range entries {
		if e.ID <= 10 {
			t.Fatalf("expected id %d to be evicted", e.ID)
		}
	}
}

func TestClickStatusSurvivesReclick(t *testing.T) {
	db := openTestDB(t)
	if err := db.RecordClick(7, "Mindhunter"); err != nil {
		t.Fatalf("RecordClick: %v", err)
	}
	if err := db.SetClickStatus(7, "will_watch"); err != nil {
		t.Fatalf("SetClickStatus: %v", err)
	}
	if err := db.RecordClick(7, "Mindhunter"); err != nil {
		t.Fatalf("RecordClick: %v", err)
	}
	entries, err := db.ClickHistory()
	if err != nil {
		t.Fatalf("ClickHistory: %v", err)
	}
	if entries[0].Status != "will_watch" {
		t.Fatalf("expected status preserved across re-click, got %q", entries[0].Status)
	}
}

func TestBlockList(t *testing.T) {
	db := openTestDB(t)
	if err := db.BlockItem(5, "Riverdale"); err != nil {
		t.Fatalf("BlockItem: %v", err)
	}
	if err := db.BlockItem(5, "Riverdale"); err != nil {
		t.Fatalf("BlockItem twice: %v", err)
	}
	ids, err := db.BlockedIDs()
	if err != nil {
		t.Fatalf("BlockedIDs: %v", err)
	}
	if len(ids) != 1 || !ids[5] {
		t.Fatalf("unexpected blocked ids: %v", ids)
	}
	if err := db.UnblockItem(5); err != nil {
		t.Fatalf("UnblockItem: %v", err)
	}
	ids, err = db.BlockedIDs()
	if err != nil {
		t.Fatalf("BlockedIDs: %v", err)
	}
	if len(ids) != 0 {
		t.Fatalf("expected empty block list, got %v", ids)
	}
}

func TestSharedModelMarker(t *testing.T) {
	db := openTestDB(t)
	m, err := db.SharedModelMarker()
	if err != nil {
		t.Fatalf("SharedModelMarker: %v", err)
	}
	if m != "" {
		t.Fatalf("expected empty marker, got %q", m)
	}
	if err := db.SetSharedModelMarker("2026-08-30T10:00:00"); err != nil {
		t.Fatalf("SetSharedModelMarker: %v", err)
	}
	m, err = db.SharedModelMarker()
	if err != nil {
		t.Fatalf("SharedModelMarker: %v", err)
	}
	if m != "2026-08-30T10:00:00" {
		t.Fatalf("unexpected marker %q", m)
	}
}

func TestSubscribeNotifies(t *testing.T) {
	db := openTestDB(t)
	var got []Change
	db.Subscribe(func(c Change) { got = append(got, c) })
	if err := db.SaveSettings(DefaultSettings()); err != nil {
		t.Fatalf("SaveSettings: %v", err)
	}
	if err := db.BlockItem(1, "x"); err != nil {
		t.Fatalf("BlockItem: %v", err)
	}
	if len(got) != 2 || got[0] != ChangeSettings || got[1] != ChangeBlocklist {
		t.Fatalf("unexpected notifications: %v", got)
	}
}

func TestSecondInstanceRefused(t *testing.T) {
	cfg := &config.Config{Version: 1}
	cfg.General.DataRoot = t.TempDir()
	db, err := Open(cfg)
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	defer func() { _ = db.Close() }()
	if _, err := Open(cfg); err == nil {
		t.Fatalf("expected second open against same data_root to be refused")
	}
}
