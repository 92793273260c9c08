package handlers

import (
	"errors"
	"net/http"
	"strings"

	"github.com/anidao/anidao/internal/api/middleware"
	"github.com/anidao/anidao/internal/controllers"
	"github.com/anidao/anidao/internal/models"
	"github.com/anidao/anidao/internal/store"
	"github.com/sirupsen/logrus"
)

type watchHistoryRequest struct {
	EpisodeID uint64 `json:"episodeId" validate:"required"`
	Progress  int    `json:"progress" validate:"gte=0"`
	Completed bool   `json:"completed"`
}

type favoriteRequest struct {
	AnimeID uint64 `json:"animeId" validate:"required"`
}

type commentRequest struct {
	EpisodeID uint64 `json:"episodeId" validate:"required"`
	Content   string `json:"content" validate:"required,max=2000"`
}

type ratingRequest struct {
	AnimeID uint64 `json:"animeId" validate:"required"`
	Score   int    `json:"score" validate:"required,min=1,max=5"`
}

// ActivityHandler serves the signed-in user's history, favorites, comments and ratings
type ActivityHandler struct {
	store    store.Store
	activity *controllers.ActivityController
	logger   *logrus.Logger
}

// NewActivityHandler creates a new activity handler
func NewActivityHandler(st store.Store, activity *controllers.ActivityController, logger *logrus.Logger) *ActivityHandler {
	return &ActivityHandler{store: st, activity: activity, logger: logger}
}

func userID(r *http.Request) uint64 {
	return middleware.SessionFromContext(r.Context()).UserID
}

// ListWatchHistory returns the caller's history, most recently updated first
func (h *ActivityHandler) ListWatchHistory(w http.ResponseWriter, r *http.Request) {
	entries, err := h.store.ListWatchHistory(r.Context(), userID(r))
	if err != nil {
		respondInternal(w, h.logger, err, "Failed to list watch history")
		return
	}
	if entries == nil {
		entries = []*models.WatchHistoryEntry{}
	}
	respondJSON(w, http.StatusOK, entries)
}

// RecordWatchHistory upserts the caller's progress on an episode
func (h *ActivityHandler) RecordWatchHistory(w http.ResponseWriter, r *http.Request) {
	var req watchHistoryRequest
	if !decodeAndValidate(w, r, &req) {
		return
	}
	history, err := h.activity.RecordProgress(r.Context(), userID(r), req.EpisodeID, req.Progress, req.Completed)
	if errors.Is(err, controllers.ErrNotFound) {
		respondError(w, http.StatusNotFound, "Episode not found")
		return
	}
	if err != nil {
		respondInternal(w, h.logger, err, "Failed to record watch history")
		return
	}
	respondJSON(w, http.StatusOK, history)
}

// ListFavorites returns the caller's favorites, newest first
func (h *ActivityHandler) ListFavorites(w http.ResponseWriter, r *http.Request) {
	favorites, err := h.store.ListFavorites(r.Context(), userID(r))
	if err != nil {
		respondInternal(w, h.logger, err, "Failed to list favorites")
		return
	}
	if favorites == nil {
		favorites = []*models.FavoriteEntry{}
	}
	respondJSON(w, http.StatusOK, favorites)
}

// AddFavorite marks an anime as favorite; repeating it is a no-op
func (h *ActivityHandler) AddFavorite(w http.ResponseWriter, r *http.Request) {
	var req favoriteRequest
	if !decodeAndValidate(w, r, &req) {
		return
	}
	favorite, err := h.activity.AddFavorite(r.Context(), userID(r), req.AnimeID)
	if errors.Is(err, controllers.ErrNotFound) {
		respondError(w, http.StatusNotFound, "Anime not found")
		return
	}
	if err != nil {
		respondInternal(w, h.logger, err, "Failed to add favorite")
		return
	}
	respondJSON(w, http.StatusOK, favorite)
}

// RemoveFavorite unmarks an anime
func (h *ActivityHandler) RemoveFavorite(w http.ResponseWriter, r *http.Request) {
	animeID, err := pathID(r, "animeId")
	if err != nil {
		respondError(w, http.StatusBadRequest, "Invalid anime id")
		return
	}
	err = h.activity.RemoveFavorite(r.Context(), userID(r), animeID)
	if errors.Is(err, controllers.ErrNotFound) {
		respondError(w, http.StatusNotFound, "Favorite not found")
		return
	}
	if err != nil {
		respondInternal(w, h.logger, err, "Failed to remove favorite")
		return
	}
	respondJSON(w, http.StatusOK, map[string]string{"message": "Favorite removed"})
}

// AddComment posts a comment on an episode as the caller
func (h *ActivityHandler) AddComment(w http.ResponseWriter, r *http.Request) {
	var req commentRequest
	if !decodeAndValidate(w, r, &req) {
		return
	}
	content := strings.TrimSpace(req.Content)
	if content == "" {
		respondError(w, http.StatusBadRequest, "Comment content is required")
		return
	}

	user, err := h.store.GetUser(r.Context(), userID(r))
	if err != nil {
		respondInternal(w, h.logger, err, "Failed to load user")
		return
	}
	if user == nil {
		respondError(w, http.StatusUnauthorized, "Authentication required")
		return
	}

	entry, err := h.activity.AddComment(r.Context(), user, req.EpisodeID, content)
	if errors.Is(err, controllers.ErrNotFound) {
		respondError(w, http.StatusNotFound, "Episode not found")
		return
	}
	if err != nil {
		respondInternal(w, h.logger, err, "Failed to add comment")
		return
	}
	respondJSON(w, http.StatusOK, entry)
}

// LikeComment increments a comment's likes
func (h *ActivityHandler) LikeComment(w http.ResponseWriter, r *http.Request) {
	h.vote(w, r, true)
}

// DislikeComment increments a comment's dislikes
func (h *ActivityHandler) DislikeComment(w http.ResponseWriter, r *http.Request) {
	h.vote(w, r, false)
}

func (h *ActivityHandler) vote(w http.ResponseWriter, r *http.Request, like bool) {
	id, err := pathID(r, "id")
	if err != nil {
		respondError(w, http.StatusBadRequest, "Invalid comment id")
		return
	}
	comment, err := h.activity.VoteComment(r.Context(), id, like)
	if errors.Is(err, controllers.ErrNotFound) {
		respondError(w, http.StatusNotFound, "Comment not found")
		return
	}
	if err != nil {
		respondInternal(w, h.logger, err, "Failed to vote on comment")
		return
	}
	respondJSON(w, http.StatusOK, comment)
}

// Rate stores the caller's score for an anime
func (h *ActivityHandler) Rate(w http.ResponseWriter, r *http.Request) {
	var req ratingRequest
	if !decodeAndValidate(w, r, &req) {
		return
	}
	rating, err := h.activity.Rate(r.Context(), userID(r), req.AnimeID, req.Score)
	if errors.Is(err, controllers.ErrNotFound) {
		respondError(w, http.StatusNotFound, "Anime not found")
		return
	}
	if err != nil {
		respondInternal(w, h.logger, err, "Failed to save rating")
		return
	}
	respondJSON(w, http.StatusOK, rating)
}
