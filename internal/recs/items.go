package recs

import (
	"strings"

	"github.com/SlokomManel/federated-recommendations-participants/internal/api"
)

// Item is one recommendation with its provenance rank. Rank is the 1-based
// position in the unfiltered server-returned ordering, assigned once at load
// time and never recomputed; it is what gets reported back when the user
// picks the item.
type Item struct {
	ID          int
	Name        string
	Genres      string // comma-separated, may be empty
	Score       float64
	Rating      string
	ReleaseYear int
	Description string
	CoverURL    string
	Rank        int
}

// FromAPI converts a server list into rank-stamped items, preserving order.
func FromAPI(list []api.Recommendation) []Item {
	out := make([]Item, len(list))
	for i, r := range list {
		out[i] = Item{
			ID:          r.ID,
			Name:        r.Name,
			Genres:      r.Genres,
			Score:       r.Score,
			Rating:      r.Rating,
			ReleaseYear: r.ReleaseYear,
			Description: r.Description,
			CoverURL:    r.CoverURL,
			Rank:        i + 1,
		}
	}
	return out
}

// GenreList splits the comma-separated genre field into trimmed names.
// Returns nil when the item carries no genre information.
func (it Item) GenreList() []string {
	if strings.TrimSpace(it.Genres) == "" {
		return nil
	}
	parts := strings.Split(it.Genres, ",")
	out := parts[:0]
	for _, p := range parts {
		if g := strings.TrimSpace(p); g != "" {
			out = append(out, g)
		}
	}
	return out
}
