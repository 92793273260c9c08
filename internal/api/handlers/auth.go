package handlers

import (
	"errors"
	"net/http"
	"time"

	"github.com/anidao/anidao/internal/api/middleware"
	"github.com/anidao/anidao/internal/auth"
	"github.com/anidao/anidao/internal/controllers"
	"github.com/anidao/anidao/internal/session"
	"github.com/sirupsen/logrus"
)

// UserProfile is the user object returned to the client
type UserProfile struct {
	ID            uint64    `json:"id"`
	TelegramID    int64     `json:"telegramId"`
	Username      string    `json:"username"`
	FirstName     string    `json:"firstName"`
	LastName      string    `json:"lastName,omitempty"`
	PhotoURL      string    `json:"photoUrl,omitempty"`
	IsAdmin       bool      `json:"isAdmin"`
	SessionExpiry time.Time `json:"sessionExpiry"`
}

func profileFromSession(s *session.Session) *UserProfile {
	return &UserProfile{
		ID:            s.UserID,
		TelegramID:    s.TelegramID,
		Username:      s.Username,
		FirstName:     s.FirstName,
		LastName:      s.LastName,
		PhotoURL:      s.PhotoURL,
		IsAdmin:       s.IsAdmin,
		SessionExpiry: s.Expiry,
	}
}

// AuthStatus is the body of GET /api/auth/status
type AuthStatus struct {
	Authenticated bool         `json:"authenticated"`
	User          *UserProfile `json:"user,omitempty"`
}

// AuthHandler serves login, logout and session status
type AuthHandler struct {
	ctrl     *controllers.AuthController
	sessions *session.Manager
	logger   *logrus.Logger
}

// NewAuthHandler creates a new auth handler
func NewAuthHandler(ctrl *controllers.AuthController, sessions *session.Manager, logger *logrus.Logger) *AuthHandler {
	return &AuthHandler{ctrl: ctrl, sessions: sessions, logger: logger}
}

// Login verifies a Telegram login payload and sets the session cookie
func (h *AuthHandler) Login(w http.ResponseWriter, r *http.Request) {
	var payload auth.Payload
	if !decodeAndValidate(w, r, &payload) {
		return
	}

	_, sess, err := h.ctrl.Login(r.Context(), &payload)
	switch {
	case errors.Is(err, controllers.ErrInvalidSignature):
		respondError(w, http.StatusUnauthorized, "Invalid authentication data")
		return
	case errors.Is(err, controllers.ErrAuthExpired):
		respondError(w, http.StatusUnauthorized, "Authentication expired")
		return
	case err != nil:
		respondInternal(w, h.logger, err, "Login failed")
		return
	}

	h.sessions.SetCookie(w, sess)
	respondJSON(w, http.StatusOK, AuthStatus{Authenticated: true, User: profileFromSession(sess)})
}

// Status reports whether the caller has a live session
func (h *AuthHandler) Status(w http.ResponseWriter, r *http.Request) {
	s := middleware.SessionFromContext(r.Context())
	if s == nil {
		respondJSON(w, http.StatusOK, AuthStatus{})
		return
	}
	respondJSON(w, http.StatusOK, AuthStatus{Authenticated: true, User: profileFromSession(s)})
}

// Logout destroys the session and clears the cookie
func (h *AuthHandler) Logout(w http.ResponseWriter, r *http.Request) {
	if err := h.ctrl.Logout(r.Context(), session.TokenFromRequest(r)); err != nil {
		respondInternal(w, h.logger, err, "Logout failed")
		return
	}
	h.sessions.ClearCookie(w)
	respondJSON(w, http.StatusOK, map[string]string{"message": "Logged out successfully"})
}
