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

// maxPageSize caps every limit query parameter
const maxPageSize = 100

// AnimeHandler serves the public catalog
type AnimeHandler struct {
	store   store.Store
	catalog *controllers.CatalogController
	logger  *logrus.Logger
}

// NewAnimeHandler creates a new anime handler
func NewAnimeHandler(st store.Store, catalog *controllers.CatalogController, logger *logrus.Logger) *AnimeHandler {
	return &AnimeHandler{store: st, catalog: catalog, logger: logger}
}

func limitParam(r *http.Request, def int) int {
	limit := queryInt(r, "limit", def)
	if limit == 0 || limit > maxPageSize {
		return maxPageSize
	}
	return limit
}

func animesOrEmpty(animes []*models.Anime) []*models.Anime {
	if animes == nil {
		return []*models.Anime{}
	}
	return animes
}

// List returns a page of anime, newest first
func (h *AnimeHandler) List(w http.ResponseWriter, r *http.Request) {
	animes, err := h.store.ListAnimes(r.Context(), limitParam(r, 20), queryInt(r, "offset", 0))
	if err != nil {
		respondInternal(w, h.logger, err, "Failed to list animes")
		return
	}
	respondJSON(w, http.StatusOK, animesOrEmpty(animes))
}

// Trending returns the best rated anime
func (h *AnimeHandler) Trending(w http.ResponseWriter, r *http.Request) {
	animes, err := h.store.TrendingAnimes(r.Context(), limitParam(r, 5))
	if err != nil {
		respondInternal(w, h.logger, err, "Failed to list trending animes")
		return
	}
	respondJSON(w, http.StatusOK, animesOrEmpty(animes))
}

// NewReleases returns the most recently added anime
func (h *AnimeHandler) NewReleases(w http.ResponseWriter, r *http.Request) {
	animes, err := h.store.NewReleases(r.Context(), limitParam(r, 6))
	if err != nil {
		respondInternal(w, h.logger, err, "Failed to list new releases")
		return
	}
	respondJSON(w, http.StatusOK, animesOrEmpty(animes))
}

// Search matches anime titles against the q parameter
func (h *AnimeHandler) Search(w http.ResponseWriter, r *http.Request) {
	q := strings.TrimSpace(r.URL.Query().Get("q"))
	if q == "" {
		respondError(w, http.StatusBadRequest, "Search query is required")
		return
	}
	animes, err := h.store.SearchAnimes(r.Context(), q)
	if err != nil {
		respondInternal(w, h.logger, err, "Failed to search animes")
		return
	}
	respondJSON(w, http.StatusOK, animesOrEmpty(animes))
}

// Get returns one anime with genres, episodes and rating stats
func (h *AnimeHandler) Get(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		respondError(w, http.StatusBadRequest, "Invalid anime id")
		return
	}

	var userID uint64
	if s := middleware.SessionFromContext(r.Context()); s != nil {
		userID = s.UserID
	}

	detail, err := h.catalog.AnimeDetail(r.Context(), id, userID)
	if errors.Is(err, controllers.ErrNotFound) {
		respondError(w, http.StatusNotFound, "Anime not found")
		return
	}
	if err != nil {
		respondInternal(w, h.logger, err, "Failed to load anime")
		return
	}
	respondJSON(w, http.StatusOK, detail)
}

// MyRating returns the caller's rating for an anime
func (h *AnimeHandler) MyRating(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		respondError(w, http.StatusBadRequest, "Invalid anime id")
		return
	}
	s := middleware.SessionFromContext(r.Context())

	rating, err := h.store.GetRating(r.Context(), s.UserID, id)
	if err != nil {
		respondInternal(w, h.logger, err, "Failed to load rating")
		return
	}
	if rating == nil {
		respondError(w, http.StatusNotFound, "Rating not found")
		return
	}
	respondJSON(w, http.StatusOK, rating)
}
