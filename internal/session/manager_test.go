package session

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/anidao/anidao/internal/models"
	"github.com/sirupsen/logrus"
)

func newTestManager(secure bool) *Manager {
	logger := logrus.New()
	logger.SetOutput(io.Discard)
	return NewManager(NewCacheStore(time.Minute), secure, logger)
}

func testUser(expiry time.Time) *models.User {
	return &models.User{
		ID:            7,
		TelegramID:    1001,
		Username:      "alice",
		FirstName:     "Alice",
		IsAdmin:       true,
		SessionExpiry: expiry,
	}
}

func TestIssueAndValidate(t *testing.T) {
	m := newTestManager(false)
	ctx := context.Background()

	s, err := m.Issue(ctx, testUser(time.Now().Add(TTL)))
	if err != nil {
		t.Fatalf("Issue failed: %v", err)
	}
	if s.ID == "" {
		t.Fatal("expected a session id")
	}

	got, err := m.Validate(ctx, s.ID)
	if err != nil {
		t.Fatalf("Validate failed: %v", err)
	}
	if got.UserID != 7 || !got.IsAdmin || got.Username != "alice" {
		t.Errorf("unexpected session %+v", got)
	}
}

func TestValidateUnknownToken(t *testing.T) {
	m := newTestManager(false)
	for _, token := range []string{"", "does-not-exist"} {
		if _, err := m.Validate(context.Background(), token); !errors.Is(err, ErrNoSession) {
			t.Errorf("Validate(%q) error = %v, want ErrNoSession", token, err)
		}
	}
}

func TestValidateExpiredSessionIsDestroyed(t *testing.T) {
	m := newTestManager(false)
	ctx := context.Background()

	s, err := m.Issue(ctx, testUser(time.Now().Add(time.Hour)))
	if err != nil {
		t.Fatalf("Issue failed: %v", err)
	}

	m.now = func() time.Time { return time.Now().Add(2 * time.Hour) }
	if _, err := m.Validate(ctx, s.ID); !errors.Is(err, ErrSessionExpired) {
		t.Fatalf("expected ErrSessionExpired, got %v", err)
	}
	// hard cutoff: the session is gone after the first expired access
	if _, err := m.Validate(ctx, s.ID); !errors.Is(err, ErrNoSession) {
		t.Errorf("expected ErrNoSession after expiry, got %v", err)
	}
}

func TestDestroy(t *testing.T) {
	m := newTestManager(false)
	ctx := context.Background()

	s, _ := m.Issue(ctx, testUser(time.Now().Add(TTL)))
	if err := m.Destroy(ctx, s.ID); err != nil {
		t.Fatalf("Destroy failed: %v", err)
	}
	if _, err := m.Validate(ctx, s.ID); !errors.Is(err, ErrNoSession) {
		t.Errorf("expected ErrNoSession after destroy, got %v", err)
	}
}

func TestPurge(t *testing.T) {
	m := newTestManager(false)
	ctx := context.Background()

	live, _ := m.Issue(ctx, testUser(time.Now().Add(TTL)))
	m.Issue(ctx, testUser(time.Now().Add(time.Minute)))

	m.now = func() time.Time { return time.Now().Add(time.Hour) }
	purged, err := m.Purge(ctx)
	if err != nil {
		t.Fatalf("Purge failed: %v", err)
	}
	if purged != 1 {
		t.Errorf("expected 1 purged session, got %d", purged)
	}
	if _, err := m.Validate(ctx, live.ID); err != nil {
		t.Errorf("live session should survive purge: %v", err)
	}
}

func TestCookieRoundTrip(t *testing.T) {
	m := newTestManager(true)
	s := &Session{ID: "token-123", Expiry: time.Now().Add(TTL)}

	rec := httptest.NewRecorder()
	m.SetCookie(rec, s)

	cookies := rec.Result().Cookies()
	if len(cookies) != 1 {
		t.Fatalf("expected one cookie, got %d", len(cookies))
	}
	c := cookies[0]
	if c.Name != CookieName || c.Value != "token-123" {
		t.Errorf("unexpected cookie %s=%s", c.Name, c.Value)
	}
	if !c.HttpOnly || !c.Secure || c.SameSite != http.SameSiteLaxMode {
		t.Errorf("cookie flags not set: httpOnly=%v secure=%v sameSite=%v", c.HttpOnly, c.Secure, c.SameSite)
	}

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.AddCookie(c)
	if got := TokenFromRequest(req); got != "token-123" {
		t.Errorf("TokenFromRequest() = %q", got)
	}

	rec = httptest.NewRecorder()
	m.ClearCookie(rec)
	cleared := rec.Result().Cookies()
	if len(cleared) != 1 || cleared[0].MaxAge >= 0 {
		t.Errorf("expected an expiring cookie, got %+v", cleared)
	}
}
