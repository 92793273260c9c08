package handlers

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/anidao/anidao/internal/bot"
	"github.com/sirupsen/logrus"
)

type recordingHandler struct {
	messages []bot.Message
}

func (h *recordingHandler) HandleMessage(ctx context.Context, msg bot.Message) error {
	h.messages = append(h.messages, msg)
	return nil
}

func newWebhook(secret string) (*WebhookHandler, *recordingHandler) {
	logger := logrus.New()
	logger.SetOutput(io.Discard)
	rec := &recordingHandler{}
	h := NewWebhookHandler(secret, rec, logger)
	h.run = func(f func()) { f() }
	return h, rec
}

const updateJSON = `{"update_id":1,"message":{"message_id":2,"date":0,"chat":{"id":10,"type":"private"},"from":{"id":20,"is_bot":false,"first_name":"A"},"text":"/start"}}`

func TestWebhookRejectsBadSecret(t *testing.T) {
	for _, header := range []string{"", "wrong"} {
		h, rec := newWebhook("s3cret")
		req := httptest.NewRequest(http.MethodPost, "/api/telegram/webhook", strings.NewReader(updateJSON))
		if header != "" {
			req.Header.Set(SecretTokenHeader, header)
		}
		w := httptest.NewRecorder()
		h.ServeHTTP(w, req)

		if w.Code != http.StatusUnauthorized {
			t.Errorf("header %q: expected 401, got %d", header, w.Code)
		}
		if len(rec.messages) != 0 {
			t.Errorf("header %q: update must not be dispatched", header)
		}
	}
}

func TestWebhookDispatchesMessage(t *testing.T) {
	h, rec := newWebhook("s3cret")
	req := httptest.NewRequest(http.MethodPost, "/api/telegram/webhook", strings.NewReader(updateJSON))
	req.Header.Set(SecretTokenHeader, "s3cret")
	w := httptest.NewRecorder()
	h.ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", w.Code)
	}
	if len(rec.messages) != 1 {
		t.Fatalf("expected 1 message, got %d", len(rec.messages))
	}
	if m := rec.messages[0]; m.ChatID != 10 || m.SenderID != 20 || m.Text != "/start" {
		t.Errorf("unexpected message %+v", m)
	}
}

func TestWebhookIgnoresNonMessageUpdates(t *testing.T) {
	h, rec := newWebhook("s3cret")
	req := httptest.NewRequest(http.MethodPost, "/api/telegram/webhook", strings.NewReader(`{"update_id":3}`))
	req.Header.Set(SecretTokenHeader, "s3cret")
	w := httptest.NewRecorder()
	h.ServeHTTP(w, req)

	if w.Code != http.StatusOK || len(rec.messages) != 0 {
		t.Errorf("expected ack without dispatch, got %d and %d messages", w.Code, len(rec.messages))
	}

	req = httptest.NewRequest(http.MethodPost, "/api/telegram/webhook", strings.NewReader(`{`))
	req.Header.Set(SecretTokenHeader, "s3cret")
	w = httptest.NewRecorder()
	h.ServeHTTP(w, req)
	if w.Code != http.StatusBadRequest {
		t.Errorf("malformed payload: expected 400, got %d", w.Code)
	}
}

type blockingHandler struct {
	release chan struct{}
}

func (h *blockingHandler) HandleMessage(ctx context.Context, msg bot.Message) error {
	<-h.release
	return nil
}

func TestWebhookWaitTracksDetachedHandlers(t *testing.T) {
	logger := logrus.New()
	logger.SetOutput(io.Discard)
	blocker := &blockingHandler{release: make(chan struct{})}
	h := NewWebhookHandler("s3cret", blocker, logger)

	req := httptest.NewRequest(http.MethodPost, "/api/telegram/webhook", strings.NewReader(updateJSON))
	req.Header.Set(SecretTokenHeader, "s3cret")
	w := httptest.NewRecorder()
	h.ServeHTTP(w, req)
	if w.Code != http.StatusOK {
		t.Fatalf("expected immediate ack, got %d", w.Code)
	}

	waited := make(chan struct{})
	go func() {
		h.Wait()
		close(waited)
	}()

	select {
	case <-waited:
		t.Fatalf("Wait returned while the update was still being handled")
	case <-time.After(50 * time.Millisecond):
	}

	close(blocker.release)
	select {
	case <-waited:
	case <-time.After(5 * time.Second):
		t.Fatalf("Wait did not return after the handler finished")
	}
}
