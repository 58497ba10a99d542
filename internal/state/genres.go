package state

import (
	"database/sql"
	"errors"
	"time"
)

// GenreMode is a per-genre filter directive. Absence of a row means neutral.
type GenreMode string

const (
	GenreNeutral  GenreMode = ""
	GenreRequired GenreMode = "required"
	GenreBlocked  GenreMode = "blocked"
)

// GenreFilters returns the full genre -> mode mapping. Neutral genres are
// not present.
func (db *DB) GenreFilters() (map[string]GenreMode, error) {
	rows, err := db.SQL.Query(`SELECT genre, mode FROM genre_filters`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	out := make(map[string]GenreMode)
	for rows.Next() {
		var g, m string
		if err := rows.Scan(&g, &m); err != nil {
			return nil, err
		}
		out[g] = GenreMode(m)
	}
	return out, rows.Err()
}

// GenreFilter returns the stored mode for one genre.
func (db *DB) GenreFilter(genre string) (GenreMode, error) {
	var m string
	err := db.SQL.QueryRow(`SELECT mode FROM genre_filters WHERE genre=?`, genre).Scan(&m)
	if errors.Is(err, sql.ErrNoRows) {
		return GenreNeutral, nil
	}
	if err != nil {
		return GenreNeutral, err
	}
	return GenreMode(m), nil
}

// CycleGenre advances a genre through neutral -> required -> blocked ->
// neutral and returns the new mode.
func (db *DB) CycleGenre(genre string) (GenreMode, error) {
	cur, err := db.GenreFilter(genre)
	if err != nil {
		return GenreNeutral, err
	}
	var next GenreMode
	switch cur {
	case GenreNeutral:
		next = GenreRequired
	case GenreRequired:
		next = GenreBlocked
	default:
		next = GenreNeutral
	}
	if err := db.setGenre(genre, next); err != nil {
		return cur, err
	}
	return next, nil
}

func (db *DB) setGenre(genre string, mode GenreMode) error {
	var err error
	if mode == GenreNeutral {
		_, err = db.SQL.Exec(`DELETE FROM genre_filters WHERE genre=?`, genre)
	} else {
		_, err = db.SQL.Exec(`INSERT INTO genre_filters(genre, mode, updated_at) VALUES(?,?,?)
			ON CONFLICT(genre) DO UPDATE SET mode=excluded.mode, updated_at=excluded.updated_at`,
			genre, string(mode), time.Now().Unix())
	}
	if err != nil {
		return err
	}
	db.notify(ChangeGenres)
	return nil
}

// ClearGenreFilters resets every genre to neutral.
func (db *DB) ClearGenreFilters() error {
	if _, err := db.SQL.Exec(`DELETE FROM genre_filters`); err != nil {
		return err
	}
	db.notify(ChangeGenres)
	return nil
}
