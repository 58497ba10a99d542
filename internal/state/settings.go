package state

import (
	"database/sql"
	"errors"
	"time"
)

// Settings is the plain record of display booleans. Defaults apply when the
// store has no row yet.
type Settings struct {
	ShowMoreDetails     bool
	UseReranked         bool
	ShowWhyRecommended  bool
	EnableWatchlist     bool
	EnableBlockItems    bool
	ShowActivityCharts  bool
	ShowWatchlistStatus bool
}

// DefaultSettings returns the out-of-the-box record: everything on except
// the re-ranked list.
func DefaultSettings() Settings {
	return Settings{
		ShowMoreDetails:     true,
		UseReranked:         false,
		ShowWhyRecommended:  true,
		EnableWatchlist:     true,
		EnableBlockItems:    true,
		ShowActivityCharts:  true,
		ShowWatchlistStatus: true,
	}
}

// Settings reads the stored record, falling back to defaults when unset or
// unreadable.
func (db *DB) Settings() (Settings, error) {
	var s Settings
	var b [7]int
	err := db.SQL.QueryRow(`SELECT show_more_details, use_reranked, show_why_recommended,
		enable_watchlist, enable_block_items, show_activity_charts, show_watchlist_status
		FROM settings WHERE id=1`).Scan(&b[0], &b[1], &b[2], &b[3], &b[4], &b[5], &b[6])
	if errors.Is(err, sql.ErrNoRows) {
		return DefaultSettings(), nil
	}
	if err != nil {
		return DefaultSettings(), err
	}
	s.ShowMoreDetails = b[0] != 0
	s.UseReranked = b[1] != 0
	s.ShowWhyRecommended = b[2] != 0
	s.EnableWatchlist = b[3] != 0
	s.EnableBlockItems = b[4] != 0
	s.ShowActivityCharts = b[5] != 0
	s.ShowWatchlistStatus = b[6] != 0
	return s, nil
}

// SaveSettings persists the record and notifies subscribers.
func (db *DB) SaveSettings(s Settings) error {
	_, err := db.SQL.Exec(`INSERT INTO settings(id, show_more_details, use_reranked, show_why_recommended,
		enable_watchlist, enable_block_items, show_activity_charts, show_watchlist_status, updated_at)
		VALUES(1,?,?,?,?,?,?,?,?)
		ON CONFLICT(id) DO UPDATE SET
			show_more_details=excluded.show_more_details,
			use_reranked=excluded.use_reranked,
			show_why_recommended=excluded.show_why_recommended,
			enable_watchlist=excluded.enable_watchlist,
			enable_block_items=excluded.enable_block_items,
			show_activity_charts=excluded.show_activity_charts,
			show_watchlist_status=excluded.show_watchlist_status,
			updated_at=excluded.updated_at`,
		boolInt(s.ShowMoreDetails), boolInt(s.UseReranked), boolInt(s.ShowWhyRecommended),
		boolInt(s.EnableWatchlist), boolInt(s.EnableBlockItems), boolInt(s.ShowActivityCharts),
		boolInt(s.ShowWatchlistStatus), time.Now().Unix())
	if err != nil {
		return err
	}
	db.notify(ChangeSettings)
	return nil
}

func boolInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
