package controllers

import (
	"context"
	"fmt"
	"time"

	"github.com/anidao/anidao/internal/models"
	"github.com/anidao/anidao/internal/store"
	"github.com/sirupsen/logrus"
)

// recentUploadCount is how many anime the admin dashboard lists
const recentUploadCount = 5

// AnimeDetail is an anime with everything its detail page shows
type AnimeDetail struct {
	ID            uint64             `json:"id"`
	Title         string             `json:"title"`
	Description   string             `json:"description"`
	CoverImage    string             `json:"coverImage"`
	Year          int                `json:"year"`
	Status        models.AnimeStatus `json:"status"`
	Type          string             `json:"type"`
	CreatedAt     time.Time          `json:"createdAt"`
	Genres        []string           `json:"genres"`
	Episodes      []*models.Episode  `json:"episodes"`
	AverageRating *float64           `json:"averageRating"`
	RatingCount   int                `json:"ratingCount"`
	IsFavorite    bool               `json:"isFavorite"`
}

// EpisodeDetail is an episode with its anime and the caller's progress
type EpisodeDetail struct {
	models.Episode
	Anime         *models.Anime        `json:"anime"`
	WatchProgress *models.WatchHistory `json:"watchProgress"`
}

// Dashboard summarizes the catalog for administrators
type Dashboard struct {
	TotalAnimes   int                    `json:"totalAnimes"`
	TotalEpisodes int64                  `json:"totalEpisodes"`
	ByStatus      map[string]int         `json:"byStatus"`
	ByType        map[string]int         `json:"byType"`
	RecentUploads []*models.AnimeSummary `json:"recentUploads"`
}

// CatalogController assembles read models from the store
type CatalogController struct {
	store  store.Store
	logger *logrus.Logger
}

// NewCatalogController creates a new catalog controller
func NewCatalogController(st store.Store, logger *logrus.Logger) *CatalogController {
	return &CatalogController{store: st, logger: logger}
}

// AnimeDetail loads an anime with genres, episodes and rating stats.
// userID 0 means an anonymous caller.
func (c *CatalogController) AnimeDetail(ctx context.Context, animeID, userID uint64) (*AnimeDetail, error) {
	anime, err := c.store.GetAnime(ctx, animeID)
	if err != nil {
		return nil, fmt.Errorf("failed to get anime: %w", err)
	}
	if anime == nil {
		return nil, ErrNotFound
	}

	genres, err := c.store.ListAnimeGenres(ctx, animeID)
	if err != nil {
		return nil, err
	}
	episodes, err := c.store.ListEpisodes(ctx, animeID)
	if err != nil {
		return nil, err
	}
	ratings, err := c.store.ListRatings(ctx, animeID)
	if err != nil {
		return nil, err
	}

	detail := &AnimeDetail{
		ID:          anime.ID,
		Title:       anime.Title,
		Description: anime.Description,
		CoverImage:  anime.CoverImage,
		Year:        anime.Year,
		Status:      anime.Status,
		Type:        anime.Type,
		CreatedAt:   anime.CreatedAt,
		Genres:      nonNil(genres),
		Episodes:    nonNil(episodes),
		RatingCount: len(ratings),
	}
	if len(ratings) > 0 {
		avg := store.AverageScore(ratings)
		detail.AverageRating = &avg
	}

	if userID != 0 {
		fav, err := c.store.GetFavorite(ctx, userID, animeID)
		if err != nil {
			return nil, err
		}
		detail.IsFavorite = fav != nil
	}
	return detail, nil
}

// EpisodeDetail loads an episode with its anime and, for a signed-in caller, their progress
func (c *CatalogController) EpisodeDetail(ctx context.Context, episodeID, userID uint64) (*EpisodeDetail, error) {
	episode, err := c.store.GetEpisode(ctx, episodeID)
	if err != nil {
		return nil, fmt.Errorf("failed to get episode: %w", err)
	}
	if episode == nil {
		return nil, ErrNotFound
	}

	anime, err := c.store.GetAnime(ctx, episode.AnimeID)
	if err != nil {
		return nil, err
	}

	detail := &EpisodeDetail{Episode: *episode, Anime: anime}
	if userID != 0 {
		if detail.WatchProgress, err = c.store.GetWatchHistory(ctx, userID, episodeID); err != nil {
			return nil, err
		}
	}
	return detail, nil
}

// Dashboard computes catalog counts and the most recent uploads
func (c *CatalogController) Dashboard(ctx context.Context) (*Dashboard, error) {
	summaries, err := c.store.ListAnimeSummaries(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list anime: %w", err)
	}

	d := &Dashboard{
		TotalAnimes: len(summaries),
		ByStatus:    make(map[string]int),
		ByType:      make(map[string]int),
	}
	for _, s := range summaries {
		d.TotalEpisodes += s.EpisodeCount
		d.ByStatus[string(s.Status)]++
		d.ByType[s.Type]++
	}

	// summaries are already newest first
	d.RecentUploads = store.Page(summaries, recentUploadCount, 0)
	return d, nil
}

func nonNil[T any](items []T) []T {
	if items == nil {
		return []T{}
	}
	return items
}
