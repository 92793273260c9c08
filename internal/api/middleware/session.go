package middleware

import (
	"context"
	"errors"
	"net/http"

	"github.com/anidao/anidao/internal/session"
	"github.com/goccy/go-json"
	"github.com/sirupsen/logrus"
)

type contextKey struct{}

var sessionKey = contextKey{}

// WithSession returns a copy of ctx carrying s
func WithSession(ctx context.Context, s *session.Session) context.Context {
	return context.WithValue(ctx, sessionKey, s)
}

// SessionFromContext returns the caller's session, or nil for anonymous requests
func SessionFromContext(ctx context.Context) *session.Session {
	s, _ := ctx.Value(sessionKey).(*session.Session)
	return s
}

// LoadSession attaches the session named by the cookie, if it is still valid.
// Expired sessions have their cookie cleared.
func LoadSession(sessions *session.Manager, logger *logrus.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			token := session.TokenFromRequest(r)
			if token == "" {
				next.ServeHTTP(w, r)
				return
			}

			s, err := sessions.Validate(r.Context(), token)
			switch {
			case err == nil:
				r = r.WithContext(WithSession(r.Context(), s))
			case errors.Is(err, session.ErrSessionExpired):
				sessions.ClearCookie(w)
			case errors.Is(err, session.ErrNoSession):
			default:
				logger.WithError(err).Error("Failed to validate session")
			}
			next.ServeHTTP(w, r)
		})
	}
}

// RequireAuth rejects anonymous requests with 401
func RequireAuth(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if SessionFromContext(r.Context()) == nil {
			writeError(w, http.StatusUnauthorized, "Authentication required")
			return
		}
		next.ServeHTTP(w, r)
	})
}

// RequireAdmin rejects anonymous requests with 401 and non-admins with 403
func RequireAdmin(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		s := SessionFromContext(r.Context())
		if s == nil {
			writeError(w, http.StatusUnauthorized, "Authentication required")
			return
		}
		if !s.IsAdmin {
			writeError(w, http.StatusForbidden, "Admin access required")
			return
		}
		next.ServeHTTP(w, r)
	})
}

func writeError(w http.ResponseWriter, status int, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(map[string]string{"message": message})
}
