// Package boltstore implements store.Store on a single bolthold file.
package boltstore

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"sort"
	"time"

	"github.com/anidao/anidao/internal/models"
	"github.com/anidao/anidao/internal/store"
	"github.com/timshannon/bolthold"
	"go.etcd.io/bbolt"
)

// Store wraps the bolthold store
type Store struct {
	db *bolthold.Store
}

var _ store.Store = (*Store)(nil)

// Open opens (or creates) the database file at path
func Open(path string) (*Store, error) {
	db, err := bolthold.Open(path, 0600, &bolthold.Options{
		Options: &bbolt.Options{
			Timeout: 1 * time.Second,
		},
	})
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	return &Store{db: db}, nil
}

// Close closes the database file
func (s *Store) Close() error {
	return s.db.Close()
}

// Ping checks that the underlying bolt file is readable
func (s *Store) Ping(ctx context.Context) error {
	return s.db.Bolt().View(func(tx *bbolt.Tx) error { return nil })
}

// update runs fn inside a single bolt write transaction
func (s *Store) update(fn func(tx *bbolt.Tx) error) error {
	return s.db.Bolt().Update(fn)
}

func (s *Store) get(id uint64, result interface{}) (bool, error) {
	err := s.db.Get(id, result)
	if errors.Is(err, bolthold.ErrNotFound) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return true, nil
}

func txGet(tx *bbolt.Tx, db *bolthold.Store, id uint64, result interface{}) (bool, error) {
	err := db.TxGet(tx, id, result)
	if errors.Is(err, bolthold.ErrNotFound) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return true, nil
}

// User operations

// GetUserByTelegramID retrieves a user by Telegram account id
func (s *Store) GetUserByTelegramID(ctx context.Context, telegramID int64) (*models.User, error) {
	var users []*models.User
	if err := s.db.Find(&users, bolthold.Where("TelegramID").Eq(telegramID).Index("TelegramID")); err != nil {
		return nil, fmt.Errorf("failed to find user: %w", err)
	}
	if len(users) == 0 {
		return nil, nil
	}
	return users[0], nil
}

// GetUser retrieves a user by ID
func (s *Store) GetUser(ctx context.Context, id uint64) (*models.User, error) {
	var user models.User
	ok, err := s.get(id, &user)
	if err != nil || !ok {
		return nil, err
	}
	return &user, nil
}

// CreateUser inserts a new user
func (s *Store) CreateUser(ctx context.Context, user *models.User) error {
	return s.db.Insert(bolthold.NextSequence(), user)
}

// UpdateUser overwrites an existing user
func (s *Store) UpdateUser(ctx context.Context, user *models.User) error {
	err := s.db.Update(user.ID, user)
	if errors.Is(err, bolthold.ErrNotFound) {
		return store.ErrNotFound
	}
	return err
}

// Anime operations

func (s *Store) allAnimes() ([]*models.Anime, error) {
	var animes []*models.Anime
	if err := s.db.Find(&animes, nil); err != nil {
		return nil, fmt.Errorf("failed to list animes: %w", err)
	}
	return animes, nil
}

// ListAnimes returns a page of anime, newest id first
func (s *Store) ListAnimes(ctx context.Context, limit, offset int) ([]*models.Anime, error) {
	animes, err := s.allAnimes()
	if err != nil {
		return nil, err
	}
	store.SortByIDDesc(animes)
	return store.Page(animes, limit, offset), nil
}

// GetAnime retrieves an anime by ID
func (s *Store) GetAnime(ctx context.Context, id uint64) (*models.Anime, error) {
	var anime models.Anime
	ok, err := s.get(id, &anime)
	if err != nil || !ok {
		return nil, err
	}
	return &anime, nil
}

// TrendingAnimes returns the best rated anime
func (s *Store) TrendingAnimes(ctx context.Context, limit int) ([]*models.Anime, error) {
	animes, err := s.allAnimes()
	if err != nil {
		return nil, err
	}
	store.SortTrending(animes)
	return store.Page(animes, limit, 0), nil
}

// NewReleases returns the most recently added anime
func (s *Store) NewReleases(ctx context.Context, limit int) ([]*models.Anime, error) {
	animes, err := s.allAnimes()
	if err != nil {
		return nil, err
	}
	store.SortNewest(animes)
	return store.Page(animes, limit, 0), nil
}

// SearchAnimes matches query against titles ignoring case
func (s *Store) SearchAnimes(ctx context.Context, query string) ([]*models.Anime, error) {
	pattern, err := regexp.Compile("(?i)" + regexp.QuoteMeta(query))
	if err != nil {
		return nil, fmt.Errorf("failed to compile search pattern: %w", err)
	}
	var animes []*models.Anime
	if err := s.db.Find(&animes, bolthold.Where("Title").RegExp(pattern)); err != nil {
		return nil, fmt.Errorf("failed to search animes: %w", err)
	}
	store.SortByIDDesc(animes)
	return animes, nil
}

// CreateAnime inserts the anime and its genre links in one transaction
func (s *Store) CreateAnime(ctx context.Context, anime *models.Anime, genres []string) error {
	if anime.CreatedAt.IsZero() {
		anime.CreatedAt = store.Now()
	}
	return s.update(func(tx *bbolt.Tx) error {
		if err := s.db.TxInsert(tx, bolthold.NextSequence(), anime); err != nil {
			return fmt.Errorf("failed to insert anime: %w", err)
		}
		for _, genre := range genres {
			link := &models.AnimeGenre{AnimeID: anime.ID, Genre: genre}
			if err := s.db.TxInsert(tx, bolthold.NextSequence(), link); err != nil {
				return fmt.Errorf("failed to insert genre: %w", err)
			}
		}
		return nil
	})
}

// AddAnimeGenre links one more genre to an anime
func (s *Store) AddAnimeGenre(ctx context.Context, animeID uint64, genre string) error {
	return s.update(func(tx *bbolt.Tx) error {
		var anime models.Anime
		ok, err := txGet(tx, s.db, animeID, &anime)
		if err != nil {
			return err
		}
		if !ok {
			return store.ErrNotFound
		}
		return s.db.TxInsert(tx, bolthold.NextSequence(), &models.AnimeGenre{AnimeID: animeID, Genre: genre})
	})
}

// ListAnimeGenres returns the genres of an anime in insertion order
func (s *Store) ListAnimeGenres(ctx context.Context, animeID uint64) ([]string, error) {
	var links []*models.AnimeGenre
	if err := s.db.Find(&links, bolthold.Where("AnimeID").Eq(animeID).Index("AnimeID")); err != nil {
		return nil, fmt.Errorf("failed to list genres: %w", err)
	}
	sort.Slice(links, func(i, j int) bool { return links[i].ID < links[j].ID })
	genres := make([]string, 0, len(links))
	for _, l := range links {
		genres = append(genres, l.Genre)
	}
	return genres, nil
}

// ListAnimeSummaries returns every anime with its episode count, newest first
func (s *Store) ListAnimeSummaries(ctx context.Context) ([]*models.AnimeSummary, error) {
	animes, err := s.allAnimes()
	if err != nil {
		return nil, err
	}
	var episodes []*models.Episode
	if err := s.db.Find(&episodes, nil); err != nil {
		return nil, fmt.Errorf("failed to list episodes: %w", err)
	}
	counts := make(map[uint64]int64)
	for _, e := range episodes {
		counts[e.AnimeID]++
	}

	store.SortNewest(animes)
	summaries := make([]*models.AnimeSummary, 0, len(animes))
	for _, a := range animes {
		summaries = append(summaries, &models.AnimeSummary{Anime: *a, EpisodeCount: counts[a.ID]})
	}
	return summaries, nil
}

// Episode operations

// ListEpisodes returns the episodes of an anime ordered by number
func (s *Store) ListEpisodes(ctx context.Context, animeID uint64) ([]*models.Episode, error) {
	var episodes []*models.Episode
	err := s.db.Find(&episodes, bolthold.Where("AnimeID").Eq(animeID).Index("AnimeID").SortBy("Number"))
	if err != nil {
		return nil, fmt.Errorf("failed to list episodes: %w", err)
	}
	return episodes, nil
}

// GetEpisode retrieves an episode by ID
func (s *Store) GetEpisode(ctx context.Context, id uint64) (*models.Episode, error) {
	var episode models.Episode
	ok, err := s.get(id, &episode)
	if err != nil || !ok {
		return nil, err
	}
	return &episode, nil
}

// CreateEpisode inserts an episode for an existing anime
func (s *Store) CreateEpisode(ctx context.Context, episode *models.Episode) error {
	if episode.CreatedAt.IsZero() {
		episode.CreatedAt = store.Now()
	}
	return s.update(func(tx *bbolt.Tx) error {
		var anime models.Anime
		ok, err := txGet(tx, s.db, episode.AnimeID, &anime)
		if err != nil {
			return err
		}
		if !ok {
			return store.ErrNotFound
		}
		return s.db.TxInsert(tx, bolthold.NextSequence(), episode)
	})
}

// Watch history operations

// ListWatchHistory returns the user's history with episode and anime attached
func (s *Store) ListWatchHistory(ctx context.Context, userID uint64) ([]*models.WatchHistoryEntry, error) {
	var rows []*models.WatchHistory
	if err := s.db.Find(&rows, bolthold.Where("UserID").Eq(userID).Index("UserID")); err != nil {
		return nil, fmt.Errorf("failed to list watch history: %w", err)
	}

	entries := make([]*models.WatchHistoryEntry, 0, len(rows))
	for _, h := range rows {
		entry := &models.WatchHistoryEntry{WatchHistory: *h}
		episode, err := s.GetEpisode(ctx, h.EpisodeID)
		if err != nil {
			return nil, err
		}
		if episode != nil {
			entry.Episode = episode
			if entry.Anime, err = s.GetAnime(ctx, episode.AnimeID); err != nil {
				return nil, err
			}
		}
		entries = append(entries, entry)
	}
	store.SortRecent(entries,
		func(e *models.WatchHistoryEntry) time.Time { return e.UpdatedAt },
		func(e *models.WatchHistoryEntry) uint64 { return e.ID })
	return entries, nil
}

// GetWatchHistory retrieves the user's progress on one episode
func (s *Store) GetWatchHistory(ctx context.Context, userID, episodeID uint64) (*models.WatchHistory, error) {
	var rows []*models.WatchHistory
	err := s.db.Find(&rows, bolthold.Where("UserID").Eq(userID).Index("UserID").And("EpisodeID").Eq(episodeID))
	if err != nil {
		return nil, fmt.Errorf("failed to find watch history: %w", err)
	}
	if len(rows) == 0 {
		return nil, nil
	}
	return rows[0], nil
}

// UpsertWatchHistory creates or updates progress in a single write transaction
func (s *Store) UpsertWatchHistory(ctx context.Context, userID, episodeID uint64, progress int, completed bool) (*models.WatchHistory, error) {
	var result *models.WatchHistory
	err := s.update(func(tx *bbolt.Tx) error {
		var rows []*models.WatchHistory
		err := s.db.TxFind(tx, &rows, bolthold.Where("UserID").Eq(userID).Index("UserID").And("EpisodeID").Eq(episodeID))
		if err != nil {
			return err
		}

		now := store.Now()
		if len(rows) == 0 {
			result = &models.WatchHistory{
				UserID:    userID,
				EpisodeID: episodeID,
				Progress:  progress,
				Completed: completed,
				CreatedAt: now,
				UpdatedAt: now,
			}
			return s.db.TxInsert(tx, bolthold.NextSequence(), result)
		}

		result = rows[0]
		result.Progress = progress
		result.Completed = completed
		result.UpdatedAt = now
		return s.db.TxUpdate(tx, result.ID, result)
	})
	if err != nil {
		return nil, fmt.Errorf("failed to upsert watch history: %w", err)
	}
	return result, nil
}

// Favorite operations

// ListFavorites returns the user's favorites with anime attached, newest first
func (s *Store) ListFavorites(ctx context.Context, userID uint64) ([]*models.FavoriteEntry, error) {
	var rows []*models.Favorite
	if err := s.db.Find(&rows, bolthold.Where("UserID").Eq(userID).Index("UserID")); err != nil {
		return nil, fmt.Errorf("failed to list favorites: %w", err)
	}

	entries := make([]*models.FavoriteEntry, 0, len(rows))
	for _, f := range rows {
		anime, err := s.GetAnime(ctx, f.AnimeID)
		if err != nil {
			return nil, err
		}
		entries = append(entries, &models.FavoriteEntry{Favorite: *f, Anime: anime})
	}
	store.SortRecent(entries,
		func(e *models.FavoriteEntry) time.Time { return e.CreatedAt },
		func(e *models.FavoriteEntry) uint64 { return e.ID })
	return entries, nil
}

func (s *Store) findFavorite(tx *bbolt.Tx, userID, animeID uint64) (*models.Favorite, error) {
	var rows []*models.Favorite
	query := bolthold.Where("UserID").Eq(userID).Index("UserID").And("AnimeID").Eq(animeID)
	var err error
	if tx != nil {
		err = s.db.TxFind(tx, &rows, query)
	} else {
		err = s.db.Find(&rows, query)
	}
	if err != nil {
		return nil, err
	}
	if len(rows) == 0 {
		return nil, nil
	}
	return rows[0], nil
}

// GetFavorite retrieves a single favorite
func (s *Store) GetFavorite(ctx context.Context, userID, animeID uint64) (*models.Favorite, error) {
	fav, err := s.findFavorite(nil, userID, animeID)
	if err != nil {
		return nil, fmt.Errorf("failed to find favorite: %w", err)
	}
	return fav, nil
}

// AddFavorite inserts the favorite unless it already exists
func (s *Store) AddFavorite(ctx context.Context, userID, animeID uint64) (*models.Favorite, error) {
	var result *models.Favorite
	err := s.update(func(tx *bbolt.Tx) error {
		existing, err := s.findFavorite(tx, userID, animeID)
		if err != nil {
			return err
		}
		if existing != nil {
			result = existing
			return nil
		}
		result = &models.Favorite{UserID: userID, AnimeID: animeID, CreatedAt: store.Now()}
		return s.db.TxInsert(tx, bolthold.NextSequence(), result)
	})
	if err != nil {
		return nil, fmt.Errorf("failed to add favorite: %w", err)
	}
	return result, nil
}

// RemoveFavorite deletes the favorite and reports whether one existed
func (s *Store) RemoveFavorite(ctx context.Context, userID, animeID uint64) (bool, error) {
	removed := false
	err := s.update(func(tx *bbolt.Tx) error {
		existing, err := s.findFavorite(tx, userID, animeID)
		if err != nil || existing == nil {
			return err
		}
		removed = true
		return s.db.TxDelete(tx, existing.ID, &models.Favorite{})
	})
	if err != nil {
		return false, fmt.Errorf("failed to remove favorite: %w", err)
	}
	return removed, nil
}

// Comment operations

// ListComments returns the comments on an episode with author profiles, newest first
func (s *Store) ListComments(ctx context.Context, episodeID uint64) ([]*models.CommentEntry, error) {
	var rows []*models.Comment
	if err := s.db.Find(&rows, bolthold.Where("EpisodeID").Eq(episodeID).Index("EpisodeID")); err != nil {
		return nil, fmt.Errorf("failed to list comments: %w", err)
	}

	entries := make([]*models.CommentEntry, 0, len(rows))
	for _, c := range rows {
		entry := &models.CommentEntry{Comment: *c}
		user, err := s.GetUser(ctx, c.UserID)
		if err != nil {
			return nil, err
		}
		if user != nil {
			entry.User = user.Author()
		}
		entries = append(entries, entry)
	}
	store.SortRecent(entries,
		func(e *models.CommentEntry) time.Time { return e.CreatedAt },
		func(e *models.CommentEntry) uint64 { return e.ID })
	return entries, nil
}

// AddComment inserts a new comment with zeroed counters
func (s *Store) AddComment(ctx context.Context, comment *models.Comment) error {
	comment.Likes, comment.Dislikes = 0, 0
	if comment.CreatedAt.IsZero() {
		comment.CreatedAt = store.Now()
	}
	return s.db.Insert(bolthold.NextSequence(), comment)
}

func (s *Store) vote(id uint64, like bool) (*models.Comment, error) {
	var comment models.Comment
	err := s.update(func(tx *bbolt.Tx) error {
		ok, err := txGet(tx, s.db, id, &comment)
		if err != nil {
			return err
		}
		if !ok {
			return store.ErrNotFound
		}
		if like {
			comment.Likes++
		} else {
			comment.Dislikes++
		}
		return s.db.TxUpdate(tx, id, &comment)
	})
	if err != nil {
		return nil, err
	}
	return &comment, nil
}

// LikeComment increments the like counter
func (s *Store) LikeComment(ctx context.Context, id uint64) (*models.Comment, error) {
	return s.vote(id, true)
}

// DislikeComment increments the dislike counter
func (s *Store) DislikeComment(ctx context.Context, id uint64) (*models.Comment, error) {
	return s.vote(id, false)
}

// Rating operations

// ListRatings returns every rating of an anime
func (s *Store) ListRatings(ctx context.Context, animeID uint64) ([]*models.Rating, error) {
	var ratings []*models.Rating
	if err := s.db.Find(&ratings, bolthold.Where("AnimeID").Eq(animeID).Index("AnimeID")); err != nil {
		return nil, fmt.Errorf("failed to list ratings: %w", err)
	}
	store.SortRecent(ratings,
		func(r *models.Rating) time.Time { return r.CreatedAt },
		func(r *models.Rating) uint64 { return r.ID })
	return ratings, nil
}

// GetRating retrieves the user's rating of an anime
func (s *Store) GetRating(ctx context.Context, userID, animeID uint64) (*models.Rating, error) {
	var ratings []*models.Rating
	err := s.db.Find(&ratings, bolthold.Where("AnimeID").Eq(animeID).Index("AnimeID").And("UserID").Eq(userID))
	if err != nil {
		return nil, fmt.Errorf("failed to find rating: %w", err)
	}
	if len(ratings) == 0 {
		return nil, nil
	}
	return ratings[0], nil
}

// UpsertRating stores the score and recomputes the anime average in one transaction
func (s *Store) UpsertRating(ctx context.Context, userID, animeID uint64, score int) (*models.Rating, error) {
	var result *models.Rating
	err := s.update(func(tx *bbolt.Tx) error {
		var anime models.Anime
		ok, err := txGet(tx, s.db, animeID, &anime)
		if err != nil {
			return err
		}
		if !ok {
			return store.ErrNotFound
		}

		var ratings []*models.Rating
		if err := s.db.TxFind(tx, &ratings, bolthold.Where("AnimeID").Eq(animeID).Index("AnimeID")); err != nil {
			return err
		}

		for _, r := range ratings {
			if r.UserID == userID {
				result = r
				break
			}
		}
		if result == nil {
			result = &models.Rating{UserID: userID, AnimeID: animeID, Score: score, CreatedAt: store.Now()}
			if err := s.db.TxInsert(tx, bolthold.NextSequence(), result); err != nil {
				return err
			}
			ratings = append(ratings, result)
		} else {
			result.Score = score
			if err := s.db.TxUpdate(tx, result.ID, result); err != nil {
				return err
			}
		}

		anime.AverageRating = store.AverageScore(ratings)
		return s.db.TxUpdate(tx, anime.ID, &anime)
	})
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, err
		}
		return nil, fmt.Errorf("failed to upsert rating: %w", err)
	}
	return result, nil
}
