// Package store defines the content store shared by every storage backend.
package store

import (
	"context"
	"errors"
	"time"

	"github.com/anidao/anidao/internal/models"
)

// ErrNotFound is returned by mutations that target a missing record
var ErrNotFound = errors.New("record not found")

// Store is the persistence contract for the catalog and user activity.
// Read methods return nil (or an empty slice) without error when nothing matches.
type Store interface {
	// Users
	GetUserByTelegramID(ctx context.Context, telegramID int64) (*models.User, error)
	GetUser(ctx context.Context, id uint64) (*models.User, error)
	CreateUser(ctx context.Context, user *models.User) error
	UpdateUser(ctx context.Context, user *models.User) error

	// Anime
	ListAnimes(ctx context.Context, limit, offset int) ([]*models.Anime, error)
	GetAnime(ctx context.Context, id uint64) (*models.Anime, error)
	TrendingAnimes(ctx context.Context, limit int) ([]*models.Anime, error)
	NewReleases(ctx context.Context, limit int) ([]*models.Anime, error)
	SearchAnimes(ctx context.Context, query string) ([]*models.Anime, error)
	CreateAnime(ctx context.Context, anime *models.Anime, genres []string) error
	AddAnimeGenre(ctx context.Context, animeID uint64, genre string) error
	ListAnimeGenres(ctx context.Context, animeID uint64) ([]string, error)
	ListAnimeSummaries(ctx context.Context) ([]*models.AnimeSummary, error)

	// Episodes
	ListEpisodes(ctx context.Context, animeID uint64) ([]*models.Episode, error)
	GetEpisode(ctx context.Context, id uint64) (*models.Episode, error)
	CreateEpisode(ctx context.Context, episode *models.Episode) error

	// Watch history
	ListWatchHistory(ctx context.Context, userID uint64) ([]*models.WatchHistoryEntry, error)
	GetWatchHistory(ctx context.Context, userID, episodeID uint64) (*models.WatchHistory, error)
	UpsertWatchHistory(ctx context.Context, userID, episodeID uint64, progress int, completed bool) (*models.WatchHistory, error)

	// Favorites
	ListFavorites(ctx context.Context, userID uint64) ([]*models.FavoriteEntry, error)
	GetFavorite(ctx context.Context, userID, animeID uint64) (*models.Favorite, error)
	AddFavorite(ctx context.Context, userID, animeID uint64) (*models.Favorite, error)
	RemoveFavorite(ctx context.Context, userID, animeID uint64) (bool, error)

	// Comments
	ListComments(ctx context.Context, episodeID uint64) ([]*models.CommentEntry, error)
	AddComment(ctx context.Context, comment *models.Comment) error
	LikeComment(ctx context.Context, id uint64) (*models.Comment, error)
	DislikeComment(ctx context.Context, id uint64) (*models.Comment, error)

	// Ratings
	ListRatings(ctx context.Context, animeID uint64) ([]*models.Rating, error)
	GetRating(ctx context.Context, userID, animeID uint64) (*models.Rating, error)
	UpsertRating(ctx context.Context, userID, animeID uint64, score int) (*models.Rating, error)

	Ping(ctx context.Context) error
	Close() error
}

// Now is the clock used for timestamps; tests may replace it.
var Now = func() time.Time { return time.Now().UTC() }
