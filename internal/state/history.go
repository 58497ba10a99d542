package state

import (
	"database/sql"
	"time"
)

// maxClickHistory bounds the stored click history to the most recent entries.
const maxClickHistory = 100

// ClickEntry records a card click. Status, when set, is the watchlist
// decision for the title (will_watch or wont_watch).
type ClickEntry struct {
	ID         int
	Name       string
	ClickedAt  time.Time
	ClickCount int
	Status     string
}

// RecordClick upserts a click: an existing id moves to the front with its
// count incremented and timestamp refreshed; the table is then trimmed to
// the most recent entries.
func (db *DB) RecordClick(id int, name string) error {
	now := time.Now().UnixNano()
	tx, err := db.SQL.Begin()
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback() }()

	var count int
	var status sql.NullString
	err = tx.QueryRow(`SELECT click_count, status FROM click_history WHERE id=?`, id).Scan(&count, &status)
	switch {
	case err == sql.ErrNoRows:
		count = 0
	case err != nil:
		return err
	}
	if _, err := tx.Exec(`DELETE FROM click_history WHERE id=?`, id); err != nil {
		return err
	}
	if _, err := tx.Exec(`INSERT INTO click_history(id, name, clicked_at, click_count, status) VALUES(?,?,?,?,?)`,
		id, name, now, count+1, status); err != nil {
		return err
	}
	if _, err := tx.Exec(`DELETE FROM click_history WHERE id NOT IN
		(SELECT id FROM click_history ORDER BY clicked_at DESC LIMIT ?)`, maxClickHistory); err != nil {
		return err
	}
	if err := tx.Commit(); err != nil {
		return err
	}
	db.notify(ChangeHistory)
	return nil
}

// SetClickStatus records the watchlist decision on an already clicked title.
// Unknown ids are ignored.
func (db *DB) SetClickStatus(id int, status string) error {
	if _, err := db.SQL.Exec(`UPDATE click_history SET status=? WHERE id=?`, status, id); err != nil {
		return err
	}
	db.notify(ChangeHistory)
	return nil
}

// ClickHistory lists entries most recent first.
func (db *DB) ClickHistory() ([]ClickEntry, error) {
	rows, err := db.SQL.Query(`SELECT id, name, clicked_at, click_count, COALESCE(status, '')
		FROM click_history ORDER BY clicked_at DESC`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []ClickEntry
	for rows.Next() {
		var e ClickEntry
		var ts int64
		if err := rows.Scan(&e.ID, &e.Name, &ts, &e.ClickCount, &e.Status); err != nil {
			return nil, err
		}
		e.ClickedAt = time.Unix(0, ts)
		out = append(out, e)
	}
	return out, rows.Err()
}

// ClearClickHistory drops all entries.
func (db *DB) ClearClickHistory() error {
	if _, err := db.SQL.Exec(`DELETE FROM click_history`); err != nil {
		return err
	}
	db.notify(ChangeHistory)
	return nil
}
