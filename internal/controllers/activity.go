package controllers

import (
	"context"
	"fmt"

	"github.com/anidao/anidao/internal/models"
	"github.com/anidao/anidao/internal/store"
	"github.com/sirupsen/logrus"
)

// ActivityController handles per-user writes: progress, favorites, comments and ratings
type ActivityController struct {
	store  store.Store
	logger *logrus.Logger
}

// NewActivityController creates a new activity controller
func NewActivityController(st store.Store, logger *logrus.Logger) *ActivityController {
	return &ActivityController{store: st, logger: logger}
}

func (c *ActivityController) requireEpisode(ctx context.Context, id uint64) error {
	episode, err := c.store.GetEpisode(ctx, id)
	if err != nil {
		return fmt.Errorf("failed to get episode: %w", err)
	}
	if episode == nil {
		return ErrNotFound
	}
	return nil
}

func (c *ActivityController) requireAnime(ctx context.Context, id uint64) error {
	anime, err := c.store.GetAnime(ctx, id)
	if err != nil {
		return fmt.Errorf("failed to get anime: %w", err)
	}
	if anime == nil {
		return ErrNotFound
	}
	return nil
}

// RecordProgress upserts the user's progress on an episode
func (c *ActivityController) RecordProgress(ctx context.Context, userID, episodeID uint64, progress int, completed bool) (*models.WatchHistory, error) {
	if err := c.requireEpisode(ctx, episodeID); err != nil {
		return nil, err
	}
	return c.store.UpsertWatchHistory(ctx, userID, episodeID, progress, completed)
}

// AddFavorite favorites an anime; repeated calls are no-ops
func (c *ActivityController) AddFavorite(ctx context.Context, userID, animeID uint64) (*models.Favorite, error) {
	if err := c.requireAnime(ctx, animeID); err != nil {
		return nil, err
	}
	return c.store.AddFavorite(ctx, userID, animeID)
}

// RemoveFavorite unfavorites an anime; ErrNotFound when it was not a favorite
func (c *ActivityController) RemoveFavorite(ctx context.Context, userID, animeID uint64) error {
	removed, err := c.store.RemoveFavorite(ctx, userID, animeID)
	if err != nil {
		return err
	}
	if !removed {
		return ErrNotFound
	}
	return nil
}

// AddComment posts a comment and returns it with the author's profile
func (c *ActivityController) AddComment(ctx context.Context, user *models.User, episodeID uint64, content string) (*models.CommentEntry, error) {
	if err := c.requireEpisode(ctx, episodeID); err != nil {
		return nil, err
	}
	comment := &models.Comment{UserID: user.ID, EpisodeID: episodeID, Content: content}
	if err := c.store.AddComment(ctx, comment); err != nil {
		return nil, fmt.Errorf("failed to add comment: %w", err)
	}
	return &models.CommentEntry{Comment: *comment, User: user.Author()}, nil
}

// VoteComment increments the like or dislike counter of a comment
func (c *ActivityController) VoteComment(ctx context.Context, commentID uint64, like bool) (*models.Comment, error) {
	if like {
		return c.store.LikeComment(ctx, commentID)
	}
	return c.store.DislikeComment(ctx, commentID)
}

// Rate stores the user's score for an anime and refreshes its average
func (c *ActivityController) Rate(ctx context.Context, userID, animeID uint64, score int) (*models.Rating, error) {
	if score < models.MinScore || score > models.MaxScore {
		return nil, fmt.Errorf("score %d out of range", score)
	}
	rating, err := c.store.UpsertRating(ctx, userID, animeID, score)
	if err != nil {
		return nil, err
	}
	c.logger.WithFields(logrus.Fields{
		"user_id":  userID,
		"anime_id": animeID,
		"score":    score,
	}).Debug("Rating saved")
	return rating, nil
}
