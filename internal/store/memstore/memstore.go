// Package memstore is an in-memory implementation of store.Store for tests and local development.
package memstore

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/anidao/anidao/internal/models"
	"github.com/anidao/anidao/internal/store"
)

type pairKey struct {
	a, b uint64
}

// Store keeps every table in maps guarded by a single RWMutex
type Store struct {
	mu sync.RWMutex

	seq      uint64
	users    map[uint64]models.User
	animes   map[uint64]models.Anime
	genres   map[uint64]models.AnimeGenre
	episodes map[uint64]models.Episode
	history  map[pairKey]models.WatchHistory
	favs     map[pairKey]models.Favorite
	comments map[uint64]models.Comment
	ratings  map[pairKey]models.Rating
}

var _ store.Store = (*Store)(nil)

// New creates an empty store
func New() *Store {
	return &Store{
		users:    make(map[uint64]models.User),
		animes:   make(map[uint64]models.Anime),
		genres:   make(map[uint64]models.AnimeGenre),
		episodes: make(map[uint64]models.Episode),
		history:  make(map[pairKey]models.WatchHistory),
		favs:     make(map[pairKey]models.Favorite),
		comments: make(map[uint64]models.Comment),
		ratings:  make(map[pairKey]models.Rating),
	}
}

func (s *Store) nextID() uint64 {
	s.seq++
	return s.seq
}

// Users

func (s *Store) GetUserByTelegramID(ctx context.Context, telegramID int64) (*models.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	for _, u := range s.users {
		if u.TelegramID == telegramID {
			return &u, nil
		}
	}
	return nil, nil
}

func (s *Store) GetUser(ctx context.Context, id uint64) (*models.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	u, ok := s.users[id]
	if !ok {
		return nil, nil
	}
	return &u, nil
}

func (s *Store) CreateUser(ctx context.Context, user *models.User) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	user.ID = s.nextID()
	s.users[user.ID] = *user
	return nil
}

func (s *Store) UpdateUser(ctx context.Context, user *models.User) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.users[user.ID]; !ok {
		return store.ErrNotFound
	}
	s.users[user.ID] = *user
	return nil
}

// Anime

func (s *Store) allAnimes() []*models.Anime {
	out := make([]*models.Anime, 0, len(s.animes))
	for _, a := range s.animes {
		a := a
		out = append(out, &a)
	}
	return out
}

func (s *Store) ListAnimes(ctx context.Context, limit, offset int) ([]*models.Anime, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	animes := s.allAnimes()
	store.SortByIDDesc(animes)
	return store.Page(animes, limit, offset), nil
}

func (s *Store) GetAnime(ctx context.Context, id uint64) (*models.Anime, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	a, ok := s.animes[id]
	if !ok {
		return nil, nil
	}
	return &a, nil
}

func (s *Store) TrendingAnimes(ctx context.Context, limit int) ([]*models.Anime, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	animes := s.allAnimes()
	store.SortTrending(animes)
	return store.Page(animes, limit, 0), nil
}

func (s *Store) NewReleases(ctx context.Context, limit int) ([]*models.Anime, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	animes := s.allAnimes()
	store.SortNewest(animes)
	return store.Page(animes, limit, 0), nil
}

func (s *Store) SearchAnimes(ctx context.Context, query string) ([]*models.Anime, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var matches []*models.Anime
	for _, a := range s.allAnimes() {
		if store.TitleMatches(a.Title, query) {
			matches = append(matches, a)
		}
	}
	store.SortByIDDesc(matches)
	return matches, nil
}

func (s *Store) CreateAnime(ctx context.Context, anime *models.Anime, genres []string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	anime.ID = s.nextID()
	if anime.CreatedAt.IsZero() {
		anime.CreatedAt = store.Now()
	}
	s.animes[anime.ID] = *anime
	for _, g := range genres {
		id := s.nextID()
		s.genres[id] = models.AnimeGenre{ID: id, AnimeID: anime.ID, Genre: g}
	}
	return nil
}

func (s *Store) AddAnimeGenre(ctx context.Context, animeID uint64, genre string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.animes[animeID]; !ok {
		return store.ErrNotFound
	}
	id := s.nextID()
	s.genres[id] = models.AnimeGenre{ID: id, AnimeID: animeID, Genre: genre}
	return nil
}

func (s *Store) ListAnimeGenres(ctx context.Context, animeID uint64) ([]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var links []models.AnimeGenre
	for _, g := range s.genres {
		if g.AnimeID == animeID {
			links = append(links, g)
		}
	}
	sortGenres(links)
	out := make([]string, 0, len(links))
	for _, g := range links {
		out = append(out, g.Genre)
	}
	return out, nil
}

func (s *Store) ListAnimeSummaries(ctx context.Context) ([]*models.AnimeSummary, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	counts := make(map[uint64]int64)
	for _, e := range s.episodes {
		counts[e.AnimeID]++
	}
	animes := s.allAnimes()
	store.SortNewest(animes)
	out := make([]*models.AnimeSummary, 0, len(animes))
	for _, a := range animes {
		out = append(out, &models.AnimeSummary{Anime: *a, EpisodeCount: counts[a.ID]})
	}
	return out, nil
}

// Episodes

func (s *Store) ListEpisodes(ctx context.Context, animeID uint64) ([]*models.Episode, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []*models.Episode
	for _, e := range s.episodes {
		if e.AnimeID == animeID {
			e := e
			out = append(out, &e)
		}
	}
	sortEpisodes(out)
	return out, nil
}

func (s *Store) GetEpisode(ctx context.Context, id uint64) (*models.Episode, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	e, ok := s.episodes[id]
	if !ok {
		return nil, nil
	}
	return &e, nil
}

func (s *Store) CreateEpisode(ctx context.Context, episode *models.Episode) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.animes[episode.AnimeID]; !ok {
		return store.ErrNotFound
	}
	episode.ID = s.nextID()
	if episode.CreatedAt.IsZero() {
		episode.CreatedAt = store.Now()
	}
	s.episodes[episode.ID] = *episode
	return nil
}

// Watch history

func (s *Store) ListWatchHistory(ctx context.Context, userID uint64) ([]*models.WatchHistoryEntry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []*models.WatchHistoryEntry
	for _, h := range s.history {
		if h.UserID != userID {
			continue
		}
		entry := &models.WatchHistoryEntry{WatchHistory: h}
		if e, ok := s.episodes[h.EpisodeID]; ok {
			entry.Episode = &e
			if a, ok := s.animes[e.AnimeID]; ok {
				entry.Anime = &a
			}
		}
		out = append(out, entry)
	}
	store.SortRecent(out,
		func(e *models.WatchHistoryEntry) time.Time { return e.UpdatedAt },
		func(e *models.WatchHistoryEntry) uint64 { return e.ID })
	return out, nil
}

func (s *Store) GetWatchHistory(ctx context.Context, userID, episodeID uint64) (*models.WatchHistory, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	h, ok := s.history[pairKey{userID, episodeID}]
	if !ok {
		return nil, nil
	}
	return &h, nil
}

func (s *Store) UpsertWatchHistory(ctx context.Context, userID, episodeID uint64, progress int, completed bool) (*models.WatchHistory, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := store.Now()
	key := pairKey{userID, episodeID}
	h, ok := s.history[key]
	if !ok {
		h = models.WatchHistory{ID: s.nextID(), UserID: userID, EpisodeID: episodeID, CreatedAt: now}
	}
	h.Progress = progress
	h.Completed = completed
	h.UpdatedAt = now
	s.history[key] = h
	return &h, nil
}

// Favorites

func (s *Store) ListFavorites(ctx context.Context, userID uint64) ([]*models.FavoriteEntry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []*models.FavoriteEntry
	for _, f := range s.favs {
		if f.UserID != userID {
			continue
		}
		entry := &models.FavoriteEntry{Favorite: f}
		if a, ok := s.animes[f.AnimeID]; ok {
			entry.Anime = &a
		}
		out = append(out, entry)
	}
	store.SortRecent(out,
		func(e *models.FavoriteEntry) time.Time { return e.CreatedAt },
		func(e *models.FavoriteEntry) uint64 { return e.ID })
	return out, nil
}

func (s *Store) GetFavorite(ctx context.Context, userID, animeID uint64) (*models.Favorite, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	f, ok := s.favs[pairKey{userID, animeID}]
	if !ok {
		return nil, nil
	}
	return &f, nil
}

func (s *Store) AddFavorite(ctx context.Context, userID, animeID uint64) (*models.Favorite, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	key := pairKey{userID, animeID}
	if f, ok := s.favs[key]; ok {
		return &f, nil
	}
	f := models.Favorite{ID: s.nextID(), UserID: userID, AnimeID: animeID, CreatedAt: store.Now()}
	s.favs[key] = f
	return &f, nil
}

func (s *Store) RemoveFavorite(ctx context.Context, userID, animeID uint64) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	key := pairKey{userID, animeID}
	if _, ok := s.favs[key]; !ok {
		return false, nil
	}
	delete(s.favs, key)
	return true, nil
}

// Comments

func (s *Store) ListComments(ctx context.Context, episodeID uint64) ([]*models.CommentEntry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []*models.CommentEntry
	for _, c := range s.comments {
		if c.EpisodeID != episodeID {
			continue
		}
		entry := &models.CommentEntry{Comment: c}
		if u, ok := s.users[c.UserID]; ok {
			entry.User = u.Author()
		}
		out = append(out, entry)
	}
	store.SortRecent(out,
		func(e *models.CommentEntry) time.Time { return e.CreatedAt },
		func(e *models.CommentEntry) uint64 { return e.ID })
	return out, nil
}

func (s *Store) AddComment(ctx context.Context, comment *models.Comment) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	comment.ID = s.nextID()
	comment.Likes, comment.Dislikes = 0, 0
	if comment.CreatedAt.IsZero() {
		comment.CreatedAt = store.Now()
	}
	s.comments[comment.ID] = *comment
	return nil
}

func (s *Store) vote(id uint64, like bool) (*models.Comment, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	c, ok := s.comments[id]
	if !ok {
		return nil, store.ErrNotFound
	}
	if like {
		c.Likes++
	} else {
		c.Dislikes++
	}
	s.comments[id] = c
	return &c, nil
}

func (s *Store) LikeComment(ctx context.Context, id uint64) (*models.Comment, error) {
	return s.vote(id, true)
}

func (s *Store) DislikeComment(ctx context.Context, id uint64) (*models.Comment, error) {
	return s.vote(id, false)
}

// Ratings

func (s *Store) ListRatings(ctx context.Context, animeID uint64) ([]*models.Rating, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return s.ratingsFor(animeID), nil
}

func (s *Store) ratingsFor(animeID uint64) []*models.Rating {
	var out []*models.Rating
	for _, r := range s.ratings {
		if r.AnimeID == animeID {
			r := r
			out = append(out, &r)
		}
	}
	store.SortRecent(out,
		func(r *models.Rating) time.Time { return r.CreatedAt },
		func(r *models.Rating) uint64 { return r.ID })
	return out
}

func (s *Store) GetRating(ctx context.Context, userID, animeID uint64) (*models.Rating, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	r, ok := s.ratings[pairKey{userID, animeID}]
	if !ok {
		return nil, nil
	}
	return &r, nil
}

func (s *Store) UpsertRating(ctx context.Context, userID, animeID uint64, score int) (*models.Rating, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	anime, ok := s.animes[animeID]
	if !ok {
		return nil, store.ErrNotFound
	}
	key := pairKey{userID, animeID}
	r, ok := s.ratings[key]
	if !ok {
		r = models.Rating{ID: s.nextID(), UserID: userID, AnimeID: animeID, CreatedAt: store.Now()}
	}
	r.Score = score
	s.ratings[key] = r

	anime.AverageRating = store.AverageScore(s.ratingsFor(animeID))
	s.animes[animeID] = anime
	return &r, nil
}

func (s *Store) Ping(ctx context.Context) error { return nil }

func (s *Store) Close() error { return nil }

func sortEpisodes(episodes []*models.Episode) {
	sort.Slice(episodes, func(i, j int) bool {
		if episodes[i].Number != episodes[j].Number {
			return episodes[i].Number < episodes[j].Number
		}
		return episodes[i].ID < episodes[j].ID
	})
}

func sortGenres(links []models.AnimeGenre) {
	sort.Slice(links, func(i, j int) bool { return links[i].ID < links[j].ID })
}
