package controllers

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/anidao/anidao/internal/auth"
	"github.com/anidao/anidao/internal/models"
	"github.com/anidao/anidao/internal/session"
	"github.com/anidao/anidao/internal/store"
	"github.com/sirupsen/logrus"
)

var (
	// ErrInvalidSignature means the login payload was not signed by our bot
	ErrInvalidSignature = errors.New("invalid authentication data")
	// ErrAuthExpired means the login payload is older than auth.MaxAge
	ErrAuthExpired = errors.New("authentication expired")
	// ErrNotFound means a referenced anime, episode or comment does not exist
	ErrNotFound = store.ErrNotFound
)

// AuthController turns verified Telegram logins into users and sessions
type AuthController struct {
	store    store.Store
	sessions *session.Manager
	botToken string
	adminID  int64
	now      func() time.Time
	logger   *logrus.Logger
}

// NewAuthController creates a new auth controller
func NewAuthController(st store.Store, sessions *session.Manager, botToken string, adminID int64, logger *logrus.Logger) *AuthController {
	return &AuthController{
		store:    st,
		sessions: sessions,
		botToken: botToken,
		adminID:  adminID,
		now:      time.Now,
		logger:   logger,
	}
}

// Login verifies the payload, creates or refreshes the user and issues a session
func (c *AuthController) Login(ctx context.Context, p *auth.Payload) (*models.User, *session.Session, error) {
	if !auth.Verify(p, c.botToken) {
		c.logger.WithField("telegram_id", int64(p.ID)).Warn("Rejected login with invalid signature")
		return nil, nil, ErrInvalidSignature
	}
	now := c.now()
	if auth.IsExpired(p.AuthTime(), now) {
		return nil, nil, ErrAuthExpired
	}

	telegramID := int64(p.ID)
	user, err := c.store.GetUserByTelegramID(ctx, telegramID)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to look up user: %w", err)
	}

	isNew := user == nil
	if isNew {
		user = &models.User{TelegramID: telegramID}
	}
	user.Username = p.Username
	user.FirstName = p.FirstName
	user.LastName = p.LastName
	user.PhotoURL = p.PhotoURL
	user.AuthDate = p.AuthTime()
	user.SessionExpiry = now.Add(session.TTL).UTC()
	user.IsAdmin = telegramID == c.adminID

	if isNew {
		err = c.store.CreateUser(ctx, user)
	} else {
		err = c.store.UpdateUser(ctx, user)
	}
	if err != nil {
		return nil, nil, fmt.Errorf("failed to save user: %w", err)
	}

	sess, err := c.sessions.Issue(ctx, user)
	if err != nil {
		return nil, nil, err
	}

	c.logger.WithFields(logrus.Fields{
		"user_id":  user.ID,
		"new_user": isNew,
		"is_admin": user.IsAdmin,
	}).Info("User logged in")
	return user, sess, nil
}

// Logout destroys the session behind token
func (c *AuthController) Logout(ctx context.Context, token string) error {
	if err := c.sessions.Destroy(ctx, token); err != nil {
		return fmt.Errorf("failed to destroy session: %w", err)
	}
	return nil
}
