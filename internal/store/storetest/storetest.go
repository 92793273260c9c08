// Package storetest holds behavioural tests every store.Store implementation must pass.
package storetest

import (
	"context"
	"errors"
	"math"
	"sync"
	"testing"
	"time"

	"github.com/anidao/anidao/internal/models"
	"github.com/anidao/anidao/internal/store"
)

// Factory returns a fresh, empty store for one subtest
type Factory func(t *testing.T) store.Store

// Run executes the full conformance suite against the stores built by newStore
func Run(t *testing.T, newStore Factory) {
	tests := []struct {
		name string
		fn   func(t *testing.T, s store.Store)
	}{
		{"Users", testUsers},
		{"AnimeWithGenres", testAnimeWithGenres},
		{"AnimeListing", testAnimeListing},
		{"Search", testSearch},
		{"Episodes", testEpisodes},
		{"Summaries", testSummaries},
		{"WatchHistoryUpsert", testWatchHistoryUpsert},
		{"FavoritesIdempotent", testFavoritesIdempotent},
		{"CommentVotes", testCommentVotes},
		{"RatingUpsert", testRatingUpsert},
		{"RatingAverage", testRatingAverage},
		{"ConcurrentUpserts", testConcurrentUpserts},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := newStore(t)
			t.Cleanup(func() { s.Close() })
			tt.fn(t, s)
		})
	}
}

var base = time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC)

func mustAnime(t *testing.T, s store.Store, title string, offset time.Duration, genres ...string) *models.Anime {
	t.Helper()
	a := &models.Anime{
		Title:       title,
		Description: title + " description",
		CoverImage:  "https://example.com/" + title + ".jpg",
		Year:        2020,
		Status:      models.StatusAiring,
		Type:        "TV",
		CreatedAt:   base.Add(offset),
	}
	if err := s.CreateAnime(context.Background(), a, genres); err != nil {
		t.Fatalf("CreateAnime(%q) failed: %v", title, err)
	}
	if a.ID == 0 {
		t.Fatalf("CreateAnime(%q) did not assign an id", title)
	}
	return a
}

func mustEpisode(t *testing.T, s store.Store, animeID uint64, number int) *models.Episode {
	t.Helper()
	e := &models.Episode{AnimeID: animeID, Title: "Episode", Number: number, VideoURL: "https://example.com/v"}
	if err := s.CreateEpisode(context.Background(), e); err != nil {
		t.Fatalf("CreateEpisode(%d) failed: %v", number, err)
	}
	return e
}

func mustUser(t *testing.T, s store.Store, telegramID int64, username string) *models.User {
	t.Helper()
	u := &models.User{
		TelegramID:    telegramID,
		Username:      username,
		FirstName:     "First " + username,
		AuthDate:      base,
		SessionExpiry: base.Add(72 * time.Hour),
	}
	if err := s.CreateUser(context.Background(), u); err != nil {
		t.Fatalf("CreateUser(%d) failed: %v", telegramID, err)
	}
	return u
}

func testUsers(t *testing.T, s store.Store) {
	ctx := context.Background()

	missing, err := s.GetUserByTelegramID(ctx, 42)
	if err != nil || missing != nil {
		t.Fatalf("expected no user, got %v, %v", missing, err)
	}

	u := mustUser(t, s, 42, "alice")
	got, err := s.GetUserByTelegramID(ctx, 42)
	if err != nil || got == nil {
		t.Fatalf("GetUserByTelegramID failed: %v, %v", got, err)
	}
	if got.ID != u.ID || got.Username != "alice" {
		t.Errorf("unexpected user %+v", got)
	}

	got.SessionExpiry = base.Add(96 * time.Hour)
	got.IsAdmin = true
	if err := s.UpdateUser(ctx, got); err != nil {
		t.Fatalf("UpdateUser failed: %v", err)
	}
	reloaded, err := s.GetUser(ctx, u.ID)
	if err != nil || reloaded == nil {
		t.Fatalf("GetUser failed: %v, %v", reloaded, err)
	}
	if !reloaded.IsAdmin || !reloaded.SessionExpiry.Equal(base.Add(96*time.Hour)) {
		t.Errorf("update not persisted: %+v", reloaded)
	}

	err = s.UpdateUser(ctx, &models.User{ID: 9999, TelegramID: 7, FirstName: "ghost"})
	if !errors.Is(err, store.ErrNotFound) {
		t.Errorf("expected ErrNotFound updating missing user, got %v", err)
	}
}

func testAnimeWithGenres(t *testing.T, s store.Store) {
	ctx := context.Background()
	a := mustAnime(t, s, "Frieren", 0, "fantasy", "adventure")

	genres, err := s.ListAnimeGenres(ctx, a.ID)
	if err != nil {
		t.Fatalf("ListAnimeGenres failed: %v", err)
	}
	if len(genres) != 2 || genres[0] != "fantasy" || genres[1] != "adventure" {
		t.Errorf("expected [fantasy adventure], got %v", genres)
	}

	if err := s.AddAnimeGenre(ctx, a.ID, "drama"); err != nil {
		t.Fatalf("AddAnimeGenre failed: %v", err)
	}
	genres, _ = s.ListAnimeGenres(ctx, a.ID)
	if len(genres) != 3 {
		t.Errorf("expected 3 genres, got %v", genres)
	}

	if err := s.AddAnimeGenre(ctx, 9999, "drama"); !errors.Is(err, store.ErrNotFound) {
		t.Errorf("expected ErrNotFound for missing anime, got %v", err)
	}

	got, err := s.GetAnime(ctx, 9999)
	if err != nil || got != nil {
		t.Errorf("expected nil for missing anime, got %v, %v", got, err)
	}
}

func testAnimeListing(t *testing.T, s store.Store) {
	ctx := context.Background()
	old := mustAnime(t, s, "Old", 0)
	mid := mustAnime(t, s, "Mid", time.Hour)
	fresh := mustAnime(t, s, "Fresh", 2*time.Hour)

	list, err := s.ListAnimes(ctx, 2, 0)
	if err != nil {
		t.Fatalf("ListAnimes failed: %v", err)
	}
	if len(list) != 2 || list[0].ID != fresh.ID || list[1].ID != mid.ID {
		t.Errorf("unexpected first page %v", titles(list))
	}
	list, _ = s.ListAnimes(ctx, 2, 2)
	if len(list) != 1 || list[0].ID != old.ID {
		t.Errorf("unexpected second page %v", titles(list))
	}

	releases, err := s.NewReleases(ctx, 2)
	if err != nil {
		t.Fatalf("NewReleases failed: %v", err)
	}
	if len(releases) != 2 || releases[0].ID != fresh.ID {
		t.Errorf("unexpected new releases %v", titles(releases))
	}

	if _, err := s.UpsertRating(ctx, 1, old.ID, 5); err != nil {
		t.Fatalf("UpsertRating failed: %v", err)
	}
	if _, err := s.UpsertRating(ctx, 1, mid.ID, 3); err != nil {
		t.Fatalf("UpsertRating failed: %v", err)
	}
	trending, err := s.TrendingAnimes(ctx, 3)
	if err != nil {
		t.Fatalf("TrendingAnimes failed: %v", err)
	}
	if len(trending) != 3 || trending[0].ID != old.ID || trending[1].ID != mid.ID || trending[2].ID != fresh.ID {
		t.Errorf("unexpected trending order %v", titles(trending))
	}
}

func testSearch(t *testing.T, s store.Store) {
	ctx := context.Background()
	mustAnime(t, s, "Naruto Shippuden", 0)
	mustAnime(t, s, "One Piece", time.Hour)
	mustAnime(t, s, "100% Orange", 2*time.Hour)

	results, err := s.SearchAnimes(ctx, "NARUTO")
	if err != nil {
		t.Fatalf("SearchAnimes failed: %v", err)
	}
	if len(results) != 1 || results[0].Title != "Naruto Shippuden" {
		t.Errorf("expected Naruto Shippuden, got %v", titles(results))
	}

	results, _ = s.SearchAnimes(ctx, "%")
	if len(results) != 1 || results[0].Title != "100% Orange" {
		t.Errorf("expected literal %% match only, got %v", titles(results))
	}

	results, _ = s.SearchAnimes(ctx, "bleach")
	if len(results) != 0 {
		t.Errorf("expected no results, got %v", titles(results))
	}
}

func testEpisodes(t *testing.T, s store.Store) {
	ctx := context.Background()
	a := mustAnime(t, s, "Show", 0)
	mustEpisode(t, s, a.ID, 3)
	first := mustEpisode(t, s, a.ID, 1)
	mustEpisode(t, s, a.ID, 2)

	episodes, err := s.ListEpisodes(ctx, a.ID)
	if err != nil {
		t.Fatalf("ListEpisodes failed: %v", err)
	}
	if len(episodes) != 3 {
		t.Fatalf("expected 3 episodes, got %d", len(episodes))
	}
	for i, e := range episodes {
		if e.Number != i+1 {
			t.Errorf("episode %d has number %d", i, e.Number)
		}
	}

	got, err := s.GetEpisode(ctx, first.ID)
	if err != nil || got == nil || got.Number != 1 {
		t.Errorf("GetEpisode returned %v, %v", got, err)
	}

	err = s.CreateEpisode(ctx, &models.Episode{AnimeID: 9999, Number: 1})
	if !errors.Is(err, store.ErrNotFound) {
		t.Errorf("expected ErrNotFound for episode of missing anime, got %v", err)
	}
}

func testSummaries(t *testing.T, s store.Store) {
	ctx := context.Background()
	a := mustAnime(t, s, "A", 0)
	b := mustAnime(t, s, "B", time.Hour)
	mustEpisode(t, s, a.ID, 1)
	mustEpisode(t, s, a.ID, 2)

	summaries, err := s.ListAnimeSummaries(ctx)
	if err != nil {
		t.Fatalf("ListAnimeSummaries failed: %v", err)
	}
	if len(summaries) != 2 {
		t.Fatalf("expected 2 summaries, got %d", len(summaries))
	}
	if summaries[0].ID != b.ID || summaries[0].EpisodeCount != 0 {
		t.Errorf("unexpected first summary %+v", summaries[0])
	}
	if summaries[1].ID != a.ID || summaries[1].EpisodeCount != 2 {
		t.Errorf("unexpected second summary %+v", summaries[1])
	}
}

func testWatchHistoryUpsert(t *testing.T, s store.Store) {
	ctx := context.Background()
	u := mustUser(t, s, 1, "viewer")
	a := mustAnime(t, s, "Show", 0)
	e := mustEpisode(t, s, a.ID, 1)

	if _, err := s.UpsertWatchHistory(ctx, u.ID, e.ID, 30, false); err != nil {
		t.Fatalf("first upsert failed: %v", err)
	}
	row, err := s.UpsertWatchHistory(ctx, u.ID, e.ID, 600, true)
	if err != nil {
		t.Fatalf("second upsert failed: %v", err)
	}
	if row.Progress != 600 || !row.Completed {
		t.Errorf("expected 600/true, got %d/%v", row.Progress, row.Completed)
	}

	history, err := s.ListWatchHistory(ctx, u.ID)
	if err != nil {
		t.Fatalf("ListWatchHistory failed: %v", err)
	}
	if len(history) != 1 {
		t.Fatalf("expected exactly one row, got %d", len(history))
	}
	if history[0].Progress != 600 || !history[0].Completed {
		t.Errorf("unexpected row %+v", history[0].WatchHistory)
	}
	if history[0].Episode == nil || history[0].Anime == nil || history[0].Anime.ID != a.ID {
		t.Errorf("expected episode and anime to be attached")
	}

	got, err := s.GetWatchHistory(ctx, u.ID, e.ID)
	if err != nil || got == nil || got.Progress != 600 {
		t.Errorf("GetWatchHistory returned %v, %v", got, err)
	}
	none, err := s.GetWatchHistory(ctx, u.ID+100, e.ID)
	if err != nil || none != nil {
		t.Errorf("expected no history for other user, got %v, %v", none, err)
	}
}

func testFavoritesIdempotent(t *testing.T, s store.Store) {
	ctx := context.Background()
	u := mustUser(t, s, 1, "fan")
	a := mustAnime(t, s, "Show", 0)

	if _, err := s.AddFavorite(ctx, u.ID, a.ID); err != nil {
		t.Fatalf("first AddFavorite failed: %v", err)
	}
	if _, err := s.AddFavorite(ctx, u.ID, a.ID); err != nil {
		t.Fatalf("second AddFavorite failed: %v", err)
	}

	favs, err := s.ListFavorites(ctx, u.ID)
	if err != nil {
		t.Fatalf("ListFavorites failed: %v", err)
	}
	if len(favs) != 1 {
		t.Fatalf("expected one favorite, got %d", len(favs))
	}
	if favs[0].Anime == nil || favs[0].Anime.Title != "Show" {
		t.Errorf("expected anime to be attached to favorite")
	}

	removed, err := s.RemoveFavorite(ctx, u.ID, a.ID)
	if err != nil || !removed {
		t.Errorf("expected removal, got %v, %v", removed, err)
	}
	removed, err = s.RemoveFavorite(ctx, u.ID, a.ID)
	if err != nil || removed {
		t.Errorf("expected nothing to remove, got %v, %v", removed, err)
	}
	fav, err := s.GetFavorite(ctx, u.ID, a.ID)
	if err != nil || fav != nil {
		t.Errorf("expected no favorite, got %v, %v", fav, err)
	}
}

func testCommentVotes(t *testing.T, s store.Store) {
	ctx := context.Background()
	u := mustUser(t, s, 1, "critic")
	a := mustAnime(t, s, "Show", 0)
	e := mustEpisode(t, s, a.ID, 1)

	c := &models.Comment{UserID: u.ID, EpisodeID: e.ID, Content: "great episode"}
	if err := s.AddComment(ctx, c); err != nil {
		t.Fatalf("AddComment failed: %v", err)
	}

	for i := 0; i < 2; i++ {
		if _, err := s.LikeComment(ctx, c.ID); err != nil {
			t.Fatalf("LikeComment failed: %v", err)
		}
	}
	updated, err := s.DislikeComment(ctx, c.ID)
	if err != nil {
		t.Fatalf("DislikeComment failed: %v", err)
	}
	if updated.Likes != 2 || updated.Dislikes != 1 {
		t.Errorf("expected 2 likes and 1 dislike, got %d/%d", updated.Likes, updated.Dislikes)
	}

	comments, err := s.ListComments(ctx, e.ID)
	if err != nil {
		t.Fatalf("ListComments failed: %v", err)
	}
	if len(comments) != 1 || comments[0].User.Username != "critic" || comments[0].Likes != 2 {
		t.Errorf("unexpected comments %+v", comments)
	}

	if _, err := s.LikeComment(ctx, 9999); !errors.Is(err, store.ErrNotFound) {
		t.Errorf("expected ErrNotFound liking missing comment, got %v", err)
	}
	if _, err := s.DislikeComment(ctx, 9999); !errors.Is(err, store.ErrNotFound) {
		t.Errorf("expected ErrNotFound disliking missing comment, got %v", err)
	}
}

func testRatingUpsert(t *testing.T, s store.Store) {
	ctx := context.Background()
	u := mustUser(t, s, 1, "rater")
	a := mustAnime(t, s, "Show", 0)

	if _, err := s.UpsertRating(ctx, u.ID, a.ID, 2); err != nil {
		t.Fatalf("first UpsertRating failed: %v", err)
	}
	r, err := s.UpsertRating(ctx, u.ID, a.ID, 5)
	if err != nil {
		t.Fatalf("second UpsertRating failed: %v", err)
	}
	if r.Score != 5 {
		t.Errorf("expected score 5, got %d", r.Score)
	}

	ratings, err := s.ListRatings(ctx, a.ID)
	if err != nil {
		t.Fatalf("ListRatings failed: %v", err)
	}
	if len(ratings) != 1 {
		t.Fatalf("expected one rating row, got %d", len(ratings))
	}

	anime, _ := s.GetAnime(ctx, a.ID)
	if anime.AverageRating != 5 {
		t.Errorf("expected average 5, got %v", anime.AverageRating)
	}

	got, err := s.GetRating(ctx, u.ID, a.ID)
	if err != nil || got == nil || got.Score != 5 {
		t.Errorf("GetRating returned %v, %v", got, err)
	}

	if _, err := s.UpsertRating(ctx, u.ID, 9999, 3); !errors.Is(err, store.ErrNotFound) {
		t.Errorf("expected ErrNotFound rating missing anime, got %v", err)
	}
}

func testRatingAverage(t *testing.T, s store.Store) {
	ctx := context.Background()
	a := mustAnime(t, s, "Show", 0)

	for i, score := range []int{3, 4, 5} {
		if _, err := s.UpsertRating(ctx, uint64(i+1), a.ID, score); err != nil {
			t.Fatalf("UpsertRating failed: %v", err)
		}
	}
	anime, _ := s.GetAnime(ctx, a.ID)
	if anime.AverageRating != 4.0 {
		t.Errorf("expected average 4.0, got %v", anime.AverageRating)
	}

	if _, err := s.UpsertRating(ctx, 4, a.ID, 2); err != nil {
		t.Fatalf("UpsertRating failed: %v", err)
	}
	anime, _ = s.GetAnime(ctx, a.ID)
	if anime.AverageRating != 3.5 {
		t.Errorf("expected average 3.5, got %v", anime.AverageRating)
	}
}

func testConcurrentUpserts(t *testing.T, s store.Store) {
	ctx := context.Background()
	a := mustAnime(t, s, "Show", 0)
	e := mustEpisode(t, s, a.ID, 1)

	const users = 24
	ids := make([]uint64, users)
	for i := range ids {
		ids[i] = mustUser(t, s, int64(1000+i), "viewer").ID
	}
	finalScore := func(i int) int { return i%5 + 1 }

	var wg sync.WaitGroup
	errs := make(chan error, users*6)
	for i, id := range ids {
		wg.Add(1)
		go func(i int, id uint64) {
			defer wg.Done()
			steps := []func() error{
				func() error { _, err := s.UpsertRating(ctx, id, a.ID, 6-finalScore(i)); return err },
				func() error { _, err := s.UpsertWatchHistory(ctx, id, e.ID, 10, false); return err },
				func() error { _, err := s.AddFavorite(ctx, id, a.ID); return err },
				func() error { _, err := s.UpsertRating(ctx, id, a.ID, finalScore(i)); return err },
				func() error { _, err := s.UpsertWatchHistory(ctx, id, e.ID, 100+i, true); return err },
				func() error { _, err := s.AddFavorite(ctx, id, a.ID); return err },
			}
			for _, step := range steps {
				if err := step(); err != nil {
					errs <- err
				}
			}
		}(i, id)
	}
	wg.Wait()
	close(errs)
	for err := range errs {
		t.Errorf("concurrent upsert failed: %v", err)
	}

	ratings, err := s.ListRatings(ctx, a.ID)
	if err != nil {
		t.Fatalf("ListRatings failed: %v", err)
	}
	if len(ratings) != users {
		t.Fatalf("expected %d rating rows, got %d", users, len(ratings))
	}
	sum := 0
	for i := range ids {
		sum += finalScore(i)
	}
	want := float64(sum) / users
	anime, _ := s.GetAnime(ctx, a.ID)
	if math.Abs(anime.AverageRating-want) > 1e-9 {
		t.Errorf("expected average %v, got %v", want, anime.AverageRating)
	}

	for i, id := range ids {
		history, err := s.ListWatchHistory(ctx, id)
		if err != nil {
			t.Fatalf("ListWatchHistory failed: %v", err)
		}
		if len(history) != 1 || history[0].Progress != 100+i || !history[0].Completed {
			t.Errorf("user %d: expected one completed row at %d, got %d rows", id, 100+i, len(history))
		}
		favs, err := s.ListFavorites(ctx, id)
		if err != nil {
			t.Fatalf("ListFavorites failed: %v", err)
		}
		if len(favs) != 1 {
			t.Errorf("user %d: expected one favorite, got %d", id, len(favs))
		}
	}
}

func titles(animes []*models.Anime) []string {
	out := make([]string, 0, len(animes))
	for _, a := range animes {
		out = append(out, a.Title)
	}
	return out
}
