package controllers

import (
	"context"
	"errors"
	"io"
	"testing"
	"time"

	"github.com/anidao/anidao/internal/auth"
	"github.com/anidao/anidao/internal/models"
	"github.com/anidao/anidao/internal/session"
	"github.com/anidao/anidao/internal/store/memstore"
	"github.com/sirupsen/logrus"
)

const (
	testBotToken = "123456:TEST-TOKEN"
	testAdminID  = 1001
)

func quietLogger() *logrus.Logger {
	logger := logrus.New()
	logger.SetOutput(io.Discard)
	return logger
}

func signedPayload(id int64, authDate time.Time) *auth.Payload {
	p := &auth.Payload{
		ID:        auth.FlexInt(id),
		FirstName: "Alice",
		Username:  "alice",
		AuthDate:  auth.FlexInt(authDate.Unix()),
	}
	p.Hash = auth.Sign(p, testBotToken)
	return p
}

func newAuthController(st *memstore.Store) (*AuthController, *session.Manager) {
	logger := quietLogger()
	sessions := session.NewManager(session.NewCacheStore(time.Minute), false, logger)
	return NewAuthController(st, sessions, testBotToken, testAdminID, logger), sessions
}

func TestLoginCreatesAdminUser(t *testing.T) {
	st := memstore.New()
	c, sessions := newAuthController(st)
	ctx := context.Background()

	user, sess, err := c.Login(ctx, signedPayload(testAdminID, time.Now()))
	if err != nil {
		t.Fatalf("Login failed: %v", err)
	}
	if !user.IsAdmin {
		t.Errorf("expected configured admin to be flagged as admin")
	}
	if d := time.Until(user.SessionExpiry); d < 71*time.Hour || d > 73*time.Hour {
		t.Errorf("expected ~3 day expiry, got %v", d)
	}

	got, err := sessions.Validate(ctx, sess.ID)
	if err != nil || got.UserID != user.ID {
		t.Errorf("issued session is not valid: %v, %v", got, err)
	}
}

func TestLoginRefreshesExistingUser(t *testing.T) {
	st := memstore.New()
	c, _ := newAuthController(st)
	ctx := context.Background()

	first, _, err := c.Login(ctx, signedPayload(55, time.Now().Add(-time.Hour)))
	if err != nil {
		t.Fatalf("first Login failed: %v", err)
	}
	firstExpiry := first.SessionExpiry

	c.now = func() time.Time { return time.Now().Add(time.Hour) }
	second, _, err := c.Login(ctx, signedPayload(55, time.Now()))
	if err != nil {
		t.Fatalf("second Login failed: %v", err)
	}
	if second.ID != first.ID {
		t.Errorf("expected same user, got %d and %d", first.ID, second.ID)
	}
	if !second.SessionExpiry.After(firstExpiry) {
		t.Errorf("expected session expiry to be replaced")
	}
	if second.IsAdmin {
		t.Errorf("non-admin user flagged as admin")
	}
}

func TestLoginRejectsBadSignature(t *testing.T) {
	c, _ := newAuthController(memstore.New())
	p := signedPayload(55, time.Now())
	p.FirstName = "Mallory"

	if _, _, err := c.Login(context.Background(), p); !errors.Is(err, ErrInvalidSignature) {
		t.Errorf("expected ErrInvalidSignature, got %v", err)
	}
}

func TestLoginRejectsStaleAssertion(t *testing.T) {
	st := memstore.New()
	c, _ := newAuthController(st)

	if _, _, err := c.Login(context.Background(), signedPayload(55, time.Now().Add(-25*time.Hour))); !errors.Is(err, ErrAuthExpired) {
		t.Errorf("expected ErrAuthExpired, got %v", err)
	}
	if u, _ := st.GetUserByTelegramID(context.Background(), 55); u != nil {
		t.Errorf("stale login must not create a user")
	}
	if _, _, err := c.Login(context.Background(), signedPayload(55, time.Now().Add(-23*time.Hour))); err != nil {
		t.Errorf("23h old assertion should be accepted: %v", err)
	}
}

func seedAnime(t *testing.T, st *memstore.Store, title string, status models.AnimeStatus, kind string) *models.Anime {
	t.Helper()
	a := &models.Anime{Title: title, Status: status, Type: kind}
	if err := st.CreateAnime(context.Background(), a, []string{"action"}); err != nil {
		t.Fatalf("CreateAnime failed: %v", err)
	}
	return a
}

func TestAnimeDetail(t *testing.T) {
	st := memstore.New()
	c := NewCatalogController(st, quietLogger())
	ctx := context.Background()
	a := seedAnime(t, st, "Show", models.StatusAiring, "TV")
	st.CreateEpisode(ctx, &models.Episode{AnimeID: a.ID, Number: 1})

	detail, err := c.AnimeDetail(ctx, a.ID, 0)
	if err != nil {
		t.Fatalf("AnimeDetail failed: %v", err)
	}
	if detail.AverageRating != nil || detail.RatingCount != 0 {
		t.Errorf("expected no rating, got %v/%d", detail.AverageRating, detail.RatingCount)
	}
	if len(detail.Genres) != 1 || len(detail.Episodes) != 1 || detail.IsFavorite {
		t.Errorf("unexpected detail %+v", detail)
	}

	st.UpsertRating(ctx, 9, a.ID, 4)
	st.AddFavorite(ctx, 9, a.ID)
	detail, _ = c.AnimeDetail(ctx, a.ID, 9)
	if detail.AverageRating == nil || *detail.AverageRating != 4 || detail.RatingCount != 1 {
		t.Errorf("expected average 4 from 1 rating, got %v/%d", detail.AverageRating, detail.RatingCount)
	}
	if !detail.IsFavorite {
		t.Errorf("expected favorite flag for user 9")
	}

	if _, err := c.AnimeDetail(ctx, 999, 0); !errors.Is(err, ErrNotFound) {
		t.Errorf("expected ErrNotFound, got %v", err)
	}
}

func TestEpisodeDetail(t *testing.T) {
	st := memstore.New()
	c := NewCatalogController(st, quietLogger())
	ctx := context.Background()
	a := seedAnime(t, st, "Show", models.StatusAiring, "TV")
	e := &models.Episode{AnimeID: a.ID, Number: 1}
	st.CreateEpisode(ctx, e)
	st.UpsertWatchHistory(ctx, 3, e.ID, 120, false)

	detail, err := c.EpisodeDetail(ctx, e.ID, 3)
	if err != nil {
		t.Fatalf("EpisodeDetail failed: %v", err)
	}
	if detail.Anime == nil || detail.Anime.ID != a.ID {
		t.Errorf("expected anime attached")
	}
	if detail.WatchProgress == nil || detail.WatchProgress.Progress != 120 {
		t.Errorf("expected progress 120, got %+v", detail.WatchProgress)
	}

	anon, _ := c.EpisodeDetail(ctx, e.ID, 0)
	if anon.WatchProgress != nil {
		t.Errorf("anonymous caller should not see progress")
	}
	if _, err := c.EpisodeDetail(ctx, 999, 0); !errors.Is(err, ErrNotFound) {
		t.Errorf("expected ErrNotFound, got %v", err)
	}
}

func TestDashboard(t *testing.T) {
	st := memstore.New()
	c := NewCatalogController(st, quietLogger())
	ctx := context.Background()

	var last *models.Anime
	for i := 0; i < 7; i++ {
		status := models.StatusAiring
		if i%2 == 0 {
			status = models.StatusCompleted
		}
		last = seedAnime(t, st, "Show", status, "TV")
	}
	st.CreateEpisode(ctx, &models.Episode{AnimeID: last.ID, Number: 1})

	d, err := c.Dashboard(ctx)
	if err != nil {
		t.Fatalf("Dashboard failed: %v", err)
	}
	if d.TotalAnimes != 7 || d.TotalEpisodes != 1 {
		t.Errorf("unexpected totals %d/%d", d.TotalAnimes, d.TotalEpisodes)
	}
	if d.ByStatus["completed"] != 4 || d.ByStatus["airing"] != 3 || d.ByType["TV"] != 7 {
		t.Errorf("unexpected counts %v %v", d.ByStatus, d.ByType)
	}
	if len(d.RecentUploads) != 5 || d.RecentUploads[0].ID != last.ID || d.RecentUploads[0].EpisodeCount != 1 {
		t.Errorf("unexpected recent uploads %+v", d.RecentUploads)
	}
}

func TestActivityMissingTargets(t *testing.T) {
	st := memstore.New()
	c := NewActivityController(st, quietLogger())
	ctx := context.Background()
	user := &models.User{ID: 1, Username: "alice"}

	if _, err := c.RecordProgress(ctx, 1, 999, 10, false); !errors.Is(err, ErrNotFound) {
		t.Errorf("RecordProgress: expected ErrNotFound, got %v", err)
	}
	if _, err := c.AddFavorite(ctx, 1, 999); !errors.Is(err, ErrNotFound) {
		t.Errorf("AddFavorite: expected ErrNotFound, got %v", err)
	}
	if err := c.RemoveFavorite(ctx, 1, 999); !errors.Is(err, ErrNotFound) {
		t.Errorf("RemoveFavorite: expected ErrNotFound, got %v", err)
	}
	if _, err := c.AddComment(ctx, user, 999, "hi"); !errors.Is(err, ErrNotFound) {
		t.Errorf("AddComment: expected ErrNotFound, got %v", err)
	}
	if _, err := c.VoteComment(ctx, 999, true); !errors.Is(err, ErrNotFound) {
		t.Errorf("VoteComment: expected ErrNotFound, got %v", err)
	}
	if _, err := c.Rate(ctx, 1, 999, 3); !errors.Is(err, ErrNotFound) {
		t.Errorf("Rate: expected ErrNotFound, got %v", err)
	}
}

func TestAddCommentAttachesAuthor(t *testing.T) {
	st := memstore.New()
	c := NewActivityController(st, quietLogger())
	ctx := context.Background()
	a := seedAnime(t, st, "Show", models.StatusAiring, "TV")
	e := &models.Episode{AnimeID: a.ID, Number: 1}
	st.CreateEpisode(ctx, e)

	entry, err := c.AddComment(ctx, &models.User{ID: 4, Username: "bob", FirstName: "Bob"}, e.ID, "nice")
	if err != nil {
		t.Fatalf("AddComment failed: %v", err)
	}
	if entry.User.Username != "bob" || entry.Content != "nice" || entry.Likes != 0 {
		t.Errorf("unexpected entry %+v", entry)
	}
}
