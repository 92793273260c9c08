package handlers

import (
	"context"
	"crypto/subtle"
	"io"
	"net/http"
	"sync"

	"github.com/anidao/anidao/internal/services/telegram"
	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/goccy/go-json"
	"github.com/sirupsen/logrus"
)

// SecretTokenHeader carries the secret registered with setWebhook
const SecretTokenHeader = "X-Telegram-Bot-Api-Secret-Token"

// WebhookHandler handles Telegram webhook updates
type WebhookHandler struct {
	secret  string
	handler telegram.Handler
	logger  *logrus.Logger
	// run executes the bot handler; replaced in tests to run inline
	run func(func())
	wg  sync.WaitGroup
}

// NewWebhookHandler creates a new webhook handler
func NewWebhookHandler(secret string, handler telegram.Handler, logger *logrus.Logger) *WebhookHandler {
	return &WebhookHandler{
		secret:  secret,
		handler: handler,
		logger:  logger,
		run:     func(f func()) { go f() },
	}
}

// ServeHTTP handles the webhook endpoint
func (h *WebhookHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	got := r.Header.Get(SecretTokenHeader)
	if h.secret == "" || subtle.ConstantTimeCompare([]byte(got), []byte(h.secret)) != 1 {
		h.logger.WithField("remote_addr", r.RemoteAddr).Warn("Rejected webhook with bad secret token")
		respondError(w, http.StatusUnauthorized, "Invalid secret token")
		return
	}

	body, err := io.ReadAll(io.LimitReader(r.Body, maxBodyBytes))
	if err != nil {
		respondError(w, http.StatusBadRequest, "Failed to read request body")
		return
	}
	var update tgbotapi.Update
	if err := json.Unmarshal(body, &update); err != nil {
		h.logger.WithError(err).Error("Failed to decode webhook payload")
		respondError(w, http.StatusBadRequest, "Invalid payload")
		return
	}

	msg, ok := telegram.ToMessage(update)
	if !ok {
		h.logger.WithField("update_id", update.UpdateID).Debug("Ignoring update without message")
		respondJSON(w, http.StatusOK, map[string]string{"status": "ok"})
		return
	}

	// Telegram only needs an acknowledgement; uploads may outlive the request
	ctx := context.WithoutCancel(r.Context())
	h.wg.Add(1)
	h.run(func() {
		defer h.wg.Done()
		if err := h.handler.HandleMessage(ctx, msg); err != nil {
			h.logger.WithError(err).WithField("chat_id", msg.ChatID).Error("Failed to handle webhook message")
		}
	})
	respondJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// Wait blocks until every accepted update has been handled. Call it after the
// HTTP server has stopped accepting requests.
func (h *WebhookHandler) Wait() {
	h.wg.Wait()
}
