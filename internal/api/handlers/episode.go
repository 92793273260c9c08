package handlers

import (
	"errors"
	"net/http"

	"github.com/anidao/anidao/internal/api/middleware"
	"github.com/anidao/anidao/internal/controllers"
	"github.com/anidao/anidao/internal/models"
	"github.com/anidao/anidao/internal/store"
	"github.com/sirupsen/logrus"
)

// EpisodeHandler serves episode pages and their comments
type EpisodeHandler struct {
	store   store.Store
	catalog *controllers.CatalogController
	logger  *logrus.Logger
}

// NewEpisodeHandler creates a new episode handler
func NewEpisodeHandler(st store.Store, catalog *controllers.CatalogController, logger *logrus.Logger) *EpisodeHandler {
	return &EpisodeHandler{store: st, catalog: catalog, logger: logger}
}

// Get returns an episode with its anime and the caller's progress
func (h *EpisodeHandler) Get(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		respondError(w, http.StatusBadRequest, "Invalid episode id")
		return
	}

	var userID uint64
	if s := middleware.SessionFromContext(r.Context()); s != nil {
		userID = s.UserID
	}

	detail, err := h.catalog.EpisodeDetail(r.Context(), id, userID)
	if errors.Is(err, controllers.ErrNotFound) {
		respondError(w, http.StatusNotFound, "Episode not found")
		return
	}
	if err != nil {
		respondInternal(w, h.logger, err, "Failed to load episode")
		return
	}
	respondJSON(w, http.StatusOK, detail)
}

// Comments lists an episode's comments, newest first
func (h *EpisodeHandler) Comments(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		respondError(w, http.StatusBadRequest, "Invalid episode id")
		return
	}
	comments, err := h.store.ListComments(r.Context(), id)
	if err != nil {
		respondInternal(w, h.logger, err, "Failed to list comments")
		return
	}
	if comments == nil {
		comments = []*models.CommentEntry{}
	}
	respondJSON(w, http.StatusOK, comments)
}
