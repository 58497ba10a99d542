package state

import (
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	_ "github.com/glebarez/sqlite"

	"github.com/SlokomManel/federated-recommendations-participants/internal/config"
	"github.com/SlokomManel/federated-recommendations-participants/internal/lockfile"
)

// Change names a mutated preference area, delivered to subscribers after
// every successful write.
type Change string

const (
	ChangeSettings  Change = "settings"
	ChangeGenres    Change = "genres"
	ChangeBlocklist Change = "blocklist"
	ChangeHistory   Change = "history"
	ChangeMarker    Change = "marker"
)

// DB is the durable preference store: display settings, genre filters,
// block list, click history, the shared-model marker and the privacy flag.
// It is safe for use from one client process; a lock file refuses a second.
type DB struct {
	SQL  *sql.DB
	Path string

	lock *lockfile.LockFile

	obsMu     sync.Mutex
	observers []func(Change)
}

// Open initializes the store under cfg.General.DataRoot and acquires the
// single-instance lock next to it.
func Open(cfg *config.Config) (*DB, error) {
	if cfg == nil {
		return nil, errors.New("nil config")
	}
	if cfg.General.DataRoot == "" {
		return nil, errors.New("general.data_root required")
	}
	if err := os.MkdirAll(cfg.General.DataRoot, 0o755); err != nil {
		return nil, err
	}
	lock, err := lockfile.Acquire(filepath.Join(cfg.General.DataRoot, "fedrec.lock"))
	if err != nil {
		return nil, err
	}
	path := filepath.Join(cfg.General.DataRoot, "prefs.db")
	dsn := fmt.Sprintf("file:%s?_pragma=busy_timeout=5000&_pragma=journal_mode(WAL)&_fk=1", path)
	sqldb, err := sql.Open("sqlite", dsn)
	if err != nil {
		_ = lock.Release()
		return nil, err
	}
	if err := initSchema(sqldb); err != nil {
		_ = sqldb.Close()
		_ = lock.Release()
		return nil, err
	}
	return &DB{SQL: sqldb, Path: path, lock: lock}, nil
}

func initSchema(db *sql.DB) error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS settings (
			id INTEGER PRIMARY KEY CHECK (id = 1),
			show_more_details INTEGER NOT NULL,
			use_reranked INTEGER NOT NULL,
			show_why_recommended INTEGER NOT NULL,
			enable_watchlist INTEGER NOT NULL,
			enable_block_items INTEGER NOT NULL,
			show_activity_charts INTEGER NOT NULL,
			show_watchlist_status INTEGER NOT NULL,
			updated_at INTEGER NOT NULL
		);`,
		`CREATE TABLE IF NOT EXISTS genre_filters (
			genre TEXT PRIMARY KEY,
			mode TEXT NOT NULL CHECK (mode IN ('required','blocked')),
			updated_at INTEGER NOT NULL
		);`,
		`CREATE TABLE IF NOT EXISTS blocked_items (
			id INTEGER PRIMARY KEY,
			name TEXT NOT NULL,
			blocked_at INTEGER NOT NULL
		);`,
		`CREATE TABLE IF NOT EXISTS click_history (
			id INTEGER PRIMARY KEY,
			name TEXT NOT NULL,
			clicked_at INTEGER NOT NULL,
			click_count INTEGER NOT NULL DEFAULT 1,
			status TEXT
		);`,
		`CREATE TABLE IF NOT EXISTS kv (
			key TEXT PRIMARY KEY,
			value TEXT NOT NULL
		);`,
	}
	for _, s := range stmts {
		if _, err := db.Exec(s); err != nil {
			return err
		}
	}
	return nil
}

// Close releases the database and the instance lock.
func (db *DB) Close() error {
	var first error
	if db.SQL != nil {
		first = db.SQL.Close()
	}
	if db.lock != nil {
		if err := db.lock.Release(); err != nil && first == nil {
			first = err
		}
	}
	return first
}

// Subscribe registers an observer invoked synchronously after each
// successful write. Subscribers must not call back into the store.
func (db *DB) Subscribe(fn func(Change)) {
	db.obsMu.Lock()
	db.observers = append(db.observers, fn)
	db.obsMu.Unlock()
}

func (db *DB) notify(c Change) {
	db.obsMu.Lock()
	obs := make([]func(Change), len(db.observers))
	copy(obs, db.observers)
	db.obsMu.Unlock()
	for _, fn := range obs {
		fn(c)
	}
}

// kv helpers

func (db *DB) getKV(key string) (string, bool, error) {
	var v string
	err := db.SQL.QueryRow(`SELECT value FROM kv WHERE key=?`, key).Scan(&v)
	if errors.Is(err, sql.ErrNoRows) {
		return "", false, nil
	}
	if err != nil {
		return "", false, err
	}
	return v, true, nil
}

func (db *DB) setKV(key, value string) error {
	_, err := db.SQL.Exec(`INSERT INTO kv(key, value) VALUES(?,?)
		ON CONFLICT(key) DO UPDATE SET value=excluded.value`, key, value)
	return err
}

const (
	keySharedModelMarker = "shared_model_marker"
	keyPrivacyAccepted   = "privacy_accepted"
)

// SharedModelMarker returns the last observed shared-model freshness token,
// or "" when none has been stored yet.
func (db *DB) SharedModelMarker() (string, error) {
	v, _, err := db.getKV(keySharedModelMarker)
	return v, err
}

// SetSharedModelMarker stores the marker. The change detector is the only
// writer of this key.
func (db *DB) SetSharedModelMarker(marker string) error {
	if err := db.setKV(keySharedModelMarker, marker); err != nil {
		return err
	}
	db.notify(ChangeMarker)
	return nil
}

// PrivacyAccepted reports whether the one-time privacy notice was accepted.
func (db *DB) PrivacyAccepted() (bool, error) {
	v, ok, err := db.getKV(keyPrivacyAccepted)
	if err != nil || !ok {
		return false, err
	}
	return v == "1", nil
}

// SetPrivacyAccepted records acceptance; there is no way to unset it.
func (db *DB) SetPrivacyAccepted() error {
	return db.setKV(keyPrivacyAccepted, "1")
}
