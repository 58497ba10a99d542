package recs

import (
	"fmt"
	"reflect"
	"testing"

	"github.com/SlokomManel/federated-recommendations-participants/internal/api"
	"github.com/SlokomManel/federated-recommendations-participants/internal/state"
)

func makeItems(n int) []Item {
	recsIn := make([]api.Recommendation, n)
	for i := range recsIn {
		recsIn[i] = api.Recommendation{ID: i + 1, Name: fmt.Sprintf("title-%d", i+1)}
	}
	return FromAPI(recsIn)
}

func TestStampRanksFromServerOrder(t *testing.T) {
	items := FromAPI([]api.Recommendation{
		{ID: 42, Name: "b"},
		{ID: 7, Name: "a"},
	})
	if items[0].Rank != 1 || items[1].Rank != 2 {
		t.Fatalf("expected ranks 1,2 in server order, got %d,%d", items[0].Rank, items[1].Rank)
	}
}

func TestPaginationTwelveItems(t *testing.T) {
	items := makeItems(12)
	pv := Render(items, nil, nil, 1)
	if pv.TotalPages != 3 {
		t.Fatalf("expected 3 pages, got %d", pv.TotalPages)
	}
	if len(pv.Items) != 5 || pv.Items[0].ID != 1 || pv.Items[4].ID != 5 {
		t.Fatalf("unexpected page 1: %+v", pv.Items)
	}
	pv = Render(items, nil, nil, 2)
	if len(pv.Items) != 5 || pv.Items[0].ID != 6 || pv.Items[4].ID != 10 {
		t.Fatalf("unexpected page 2: %+v", pv.Items)
	}
	pv = Render(items, nil, nil, 3)
	if len(pv.Items) != 2 || pv.Items[0].ID != 11 || pv.Items[1].ID != 12 {
		t.Fatalf("unexpected page 3: %+v", pv.Items)
	}
}

func TestPaginationClampsPage(t *testing.T) {
	items := makeItems(12)
	pv := Render(items, nil, nil, 99)
	if pv.Page != 3 {
		t.Fatalf("expected clamp to last page, got %d", pv.Page)
	}
	pv = Render(items, nil, nil, -4)
	if pv.Page != 1 {
		t.Fatalf("expected clamp to first page, got %d", pv.Page)
	}
}

func TestEmptyFilteredSetStillHasOnePage(t *testing.T) {
	pv := Render(nil, nil, nil, 1)
	if pv.TotalPages != 1 || pv.Page != 1 || len(pv.Items) != 0 {
		t.Fatalf("unexpected empty view: %+v", pv)
	}
}

func TestGenreFilteringBlockedWins(t *testing.T) {
	items := []Item{
		{ID: 1, Name: "A", Genres: "Comedy,Horror", Rank: 1},
		{ID: 2, Name: "B", Genres: "Comedy,Drama", Rank: 2},
		{ID: 3, Name: "C", Rank: 3}, // no genre field
	}
	genres := map[string]state.GenreMode{
		"Comedy": state.GenreRequired,
		"Horror": state.GenreBlocked,
	}
	got := Filter(items, genres, nil)
	if len(got) != 1 || got[0].ID != 2 {
		t.Fatalf("expected only item B, got %+v", got)
	}
}

func TestGenrelessItemsKeptWhenNothingRequired(t *testing.T) {
	items := []Item{
		{ID: 1, Genres: "Horror", Rank: 1},
		{ID: 2, Rank: 2},
	}
	genres := map[string]state.GenreMode{"Horror": state.GenreBlocked}
	got := Filter(items, genres, nil)
	if len(got) != 1 || got[0].ID != 2 {
		t.Fatalf("expected genreless item kept, got %+v", got)
	}
}

func TestBlockListAppliedAfterGenres(t *testing.T) {
	items := []Item{
		{ID: 1, Genres: "Comedy", Rank: 1},
		{ID: 2, Genres: "Comedy", Rank: 2},
	}
	got := Filter(items, nil, map[int]bool{2: true})
	if len(got) != 1 || got[0].ID != 1 {
		t.Fatalf("expected id 2 dropped, got %+v", got)
	}
	// nil blocked set means the feature is disabled
	got = Filter(items, nil, nil)
	if len(got) != 2 {
		t.Fatalf("expected both items with block feature off, got %+v", got)
	}
}

func TestFilterIsIdempotent(t *testing.T) {
	items := []Item{
		{ID: 1, Genres: "Comedy,Horror", Rank: 1},
		{ID: 2, Genres: "Comedy", Rank: 2},
		{ID: 3, Genres: "Drama", Rank: 3},
		{ID: 4, Rank: 4},
	}
	genres := map[string]state.GenreMode{
		"Comedy": state.GenreRequired,
		"Horror": state.GenreBlocked,
	}
	blocked := map[int]bool{3: true}
	once := Filter(items, genres, blocked)
	twice := Filter(once, genres, blocked)
	if !reflect.DeepEqual(once, twice) {
		t.Fatalf("filter not idempotent: %+v vs %+v", once, twice)
	}
}

func TestRanksSurviveFilterAndPagination(t *testing.T) {
	items := makeItems(12)
	// Drop the first seven by id; remaining ranks must stay 8..12.
	blocked := map[int]bool{}
	for i := 1; i <= 7; i++ {
		blocked[i] = true
	}
	pv := Render(items, nil, blocked, 1)
	if pv.TotalFiltered != 5 {
		t.Fatalf("expected 5 filtered items, got %d", pv.TotalFiltered)
	}
	for i, it := range pv.Items {
		if it.Rank != i+8 {
			t.Fatalf("expected original rank %d, got %d", i+8, it.Rank)
		}
	}
}

func TestSearchTitles(t *testing.T) {
	items := []Item{
		{ID: 1, Name: "Stranger Things"},
		{ID: 2, Name: "The Crown"},
		{ID: 3, Name: "Strange New Worlds"},
	}
	got := SearchTitles(items, "strange")
	if len(got) != 2 {
		t.Fatalf("expected 2 matches, got %+v", got)
	}
	if got := SearchTitles(items, ""); len(got) != 3 {
		t.Fatalf("empty query should return input unchanged")
	}
}
