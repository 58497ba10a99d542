package recs

import (
	"sort"

	"github.com/lithammer/fuzzysearch/fuzzy"

	"github.com/SlokomManel/federated-recommendations-participants/internal/state"
)

// ItemsPerPage is the fixed page size of the recommendation view.
const ItemsPerPage = 5

// PageView is one rendered page of the filtered list. Item ranks are the
// original load-time ranks, untouched by filtering or pagination.
type PageView struct {
	Items         []Item
	Page          int
	TotalPages    int
	TotalFiltered int
}

// Filter applies genre directives then the block list, preserving order.
// Blocked-genre exclusion is evaluated before required-genre inclusion, so
// an item carrying both a required and a blocked genre is dropped. Items
// with no genre field survive only when nothing is required. Pass nil
// blockedIDs when the block feature is disabled.
func Filter(items []Item, genres map[string]state.GenreMode, blockedIDs map[int]bool) []Item {
	required := make(map[string]bool)
	blocked := make(map[string]bool)
	for g, m := range genres {
		switch m {
		case state.GenreRequired:
			required[g] = true
		case state.GenreBlocked:
			blocked[g] = true
		}
	}

	var out []Item
	for _, it := range items {
		list := it.GenreList()
		drop := false
		for _, g := range list {
			if blocked[g] {
				drop = true
				break
			}
		}
		if drop {
			continue
		}
		if len(required) > 0 {
			keep := false
			for _, g := range list {
				if required[g] {
					keep = true
					break
				}
			}
			if !keep {
				continue
			}
		}
		if blockedIDs != nil && blockedIDs[it.ID] {
			continue
		}
		out = append(out, it)
	}
	return out
}

// Paginate clamps page into [1, totalPages] and slices out one page.
func Paginate(items []Item, page int) PageView {
	total := len(items)
	totalPages := (total + ItemsPerPage - 1) / ItemsPerPage
	if totalPages < 1 {
		totalPages = 1
	}
	if page < 1 {
		page = 1
	}
	if page > totalPages {
		page = totalPages
	}
	start := (page - 1) * ItemsPerPage
	end := start + ItemsPerPage
	if start > total {
		start = total
	}
	if end > total {
		end = total
	}
	return PageView{
		Items:         items[start:end],
		Page:          page,
		TotalPages:    totalPages,
		TotalFiltered: total,
	}
}

// Render is the full pipeline: filter, exclude, paginate.
func Render(items []Item, genres map[string]state.GenreMode, blockedIDs map[int]bool, page int) PageView {
	return Paginate(Filter(items, genres, blockedIDs), page)
}

// SearchTitles fuzzy-matches the query against item names and returns the
// matches best first. An empty query returns the input unchanged. Display
// only; ranks pass through untouched.
func SearchTitles(items []Item, query string) []Item {
	if query == "" {
		return items
	}
	type scored struct {
		it   Item
		rank int
	}
	var hits []scored
	for _, it := range items {
		r := fuzzy.RankMatchNormalizedFold(query, it.Name)
		if r < 0 {
			continue
		}
		hits = append(hits, scored{it: it, rank: r})
	}
	sort.SliceStable(hits, func(i, j int) bool { return hits[i].rank < hits[j].rank })
	out := make([]Item, len(hits))
	for i, h := range hits {
		out[i] = h.it
	}
	return out
}
