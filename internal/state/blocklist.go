package state

import "time"

// BlockedItem is a title the user asked never to see again.
type BlockedItem struct {
	ID        int
	Name      string
	BlockedAt time.Time
}

// BlockItem adds a title to the block list. Re-blocking an already blocked
// id refreshes its name and timestamp.
func (db *DB) BlockItem(id int, name string) error {
	_, err := db.SQL.Exec(`INSERT INTO blocked_items(id, name, blocked_at) VALUES(?,?,?)
		ON CONFLICT(id) DO UPDATE SET name=excluded.name, blocked_at=excluded.blocked_at`,
		id, name, time.Now().Unix())
	if err != nil {
		return err
	}
	db.notify(ChangeBlocklist)
	return nil
}

// UnblockItem removes a title from the block list. Removal is explicit and
// user-initiated; unblocking an unknown id is a no-op.
func (db *DB) UnblockItem(id int) error {
	if _, err := db.SQL.Exec(`DELETE FROM blocked_items WHERE id=?`, id); err != nil {
		return err
	}
	db.notify(ChangeBlocklist)
	return nil
}

// BlockedItems lists blocked titles, most recently blocked first.
func (db *DB) BlockedItems() ([]BlockedItem, error) {
	rows, err := db.SQL.Query(`SELECT id, name, blocked_at FROM blocked_items ORDER BY blocked_at DESC, id DESC`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []BlockedItem
	for rows.Next() {
		var it BlockedItem
		var ts int64
		if err := rows.Scan(&it.ID, &it.Name, &ts); err != nil {
			return nil, err
		}
		it.BlockedAt = time.Unix(ts, 0)
		out = append(out, it)
	}
	return out, rows.Err()
}

// BlockedIDs returns the blocked id set for the filter engine.
func (db *DB) BlockedIDs() (map[int]bool, error) {
	items, err := db.BlockedItems()
	if err != nil {
		return nil, err
	}
	out := make(map[int]bool, len(items))
	for _, it := range items {
		out[it.ID] = true
	}
	return out, nil
}
