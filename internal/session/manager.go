package session

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/anidao/anidao/internal/models"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
)

// CookieName is the name of the session cookie
const CookieName = "anidao.sid"

// Manager issues, validates and destroys sessions
type Manager struct {
	store        Store
	secureCookie bool
	now          func() time.Time
	logger       *logrus.Logger
}

// NewManager creates a session manager; secureCookie sets the Secure flag on cookies
func NewManager(store Store, secureCookie bool, logger *logrus.Logger) *Manager {
	return &Manager{
		store:        store,
		secureCookie: secureCookie,
		now:          time.Now,
		logger:       logger,
	}
}

// Issue creates a session for user that expires at user.SessionExpiry
func (m *Manager) Issue(ctx context.Context, user *models.User) (*Session, error) {
	s := &Session{
		ID:         uuid.NewString(),
		UserID:     user.ID,
		TelegramID: user.TelegramID,
		Username:   user.Username,
		FirstName:  user.FirstName,
		LastName:   user.LastName,
		PhotoURL:   user.PhotoURL,
		IsAdmin:    user.IsAdmin,
		Expiry:     user.SessionExpiry,
	}
	if err := m.store.Save(ctx, s); err != nil {
		return nil, fmt.Errorf("failed to save session: %w", err)
	}

	m.logger.WithFields(logrus.Fields{
		"user_id": user.ID,
		"expiry":  s.Expiry,
	}).Debug("Session issued")
	return s, nil
}

// Validate returns the live session for id. An expired session is destroyed
// and reported as ErrSessionExpired.
func (m *Manager) Validate(ctx context.Context, id string) (*Session, error) {
	if id == "" {
		return nil, ErrNoSession
	}
	s, err := m.store.Get(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("failed to load session: %w", err)
	}
	if s == nil {
		return nil, ErrNoSession
	}
	if s.Expired(m.now()) {
		if err := m.store.Delete(ctx, id); err != nil {
			m.logger.WithError(err).Warn("Failed to delete expired session")
		}
		return nil, ErrSessionExpired
	}
	return s, nil
}

// Destroy removes the session if it exists
func (m *Manager) Destroy(ctx context.Context, id string) error {
	if id == "" {
		return nil
	}
	return m.store.Delete(ctx, id)
}

// Purge drops every expired session
func (m *Manager) Purge(ctx context.Context) (int, error) {
	return m.store.Purge(ctx, m.now())
}

// SetCookie writes the session cookie
func (m *Manager) SetCookie(w http.ResponseWriter, s *Session) {
	maxAge := int(time.Until(s.Expiry).Seconds())
	if maxAge <= 0 {
		maxAge = -1
	}
	http.SetCookie(w, &http.Cookie{
		Name:     CookieName,
		Value:    s.ID,
		Path:     "/",
		Expires:  s.Expiry,
		MaxAge:   maxAge,
		HttpOnly: true,
		Secure:   m.secureCookie,
		SameSite: http.SameSiteLaxMode,
	})
}

// ClearCookie expires the session cookie in the browser
func (m *Manager) ClearCookie(w http.ResponseWriter) {
	http.SetCookie(w, &http.Cookie{
		Name:     CookieName,
		Value:    "",
		Path:     "/",
		MaxAge:   -1,
		HttpOnly: true,
		Secure:   m.secureCookie,
		SameSite: http.SameSiteLaxMode,
	})
}

// TokenFromRequest returns the session token carried by the request cookie
func TokenFromRequest(r *http.Request) string {
	c, err := r.Cookie(CookieName)
	if err != nil {
		return ""
	}
	return c.Value
}
