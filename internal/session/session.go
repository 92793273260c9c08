// Package session keeps server-side login sessions keyed by opaque cookie tokens.
package session

import (
	"context"
	"errors"
	"time"
)

// TTL is the lifetime of a session issued at login
const TTL = 72 * time.Hour

var (
	// ErrNoSession means the token is unknown or already destroyed
	ErrNoSession = errors.New("session not found")
	// ErrSessionExpired means the session passed its expiry and was destroyed
	ErrSessionExpired = errors.New("session expired")
)

// Session is the server-side record behind a session cookie
type Session struct {
	ID         string    `json:"id"`
	UserID     uint64    `json:"userId"`
	TelegramID int64     `json:"telegramId"`
	Username   string    `json:"username"`
	FirstName  string    `json:"firstName"`
	LastName   string    `json:"lastName,omitempty"`
	PhotoURL   string    `json:"photoUrl,omitempty"`
	IsAdmin    bool      `json:"isAdmin"`
	Expiry     time.Time `json:"expiry"`
}

// Expired reports whether the session is past its expiry at now
func (s *Session) Expired(now time.Time) bool {
	return now.After(s.Expiry)
}

// Store persists sessions
type Store interface {
	Get(ctx context.Context, id string) (*Session, error)
	Save(ctx context.Context, s *Session) error
	Delete(ctx context.Context, id string) error
	// Purge drops sessions that expired before now and returns how many were dropped
	Purge(ctx context.Context, now time.Time) (int, error)
}
