// Package telegram connects the admin bot to the Telegram Bot API.
package telegram

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"
	"sync"
	"time"
	"unicode/utf8"

	"github.com/anidao/anidao/internal/bot"
	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/sirupsen/logrus"
)

// MaxMessageLength is Telegram's limit for a single text message
const MaxMessageLength = 4096

const (
	downloadHeaderTimeout = 30 * time.Second
	// Bot API downloads are capped at 20MB
	downloadTimeout = 10 * time.Minute
)

// Handler processes one converted message
type Handler interface {
	HandleMessage(ctx context.Context, msg bot.Message) error
}

// Client wraps the Telegram Bot API
type Client struct {
	api            *tgbotapi.BotAPI
	downloadClient *http.Client
	logger         *logrus.Logger
}

// NewClient creates a client for token and verifies it with getMe
func NewClient(token string, logger *logrus.Logger) (*Client, error) {
	return newClient(token, tgbotapi.APIEndpoint, logger)
}

func newClient(token, endpoint string, logger *logrus.Logger) (*Client, error) {
	if token == "" {
		return nil, fmt.Errorf("telegram bot token is required")
	}

	httpClient := &http.Client{Timeout: 90 * time.Second}
	api, err := tgbotapi.NewBotAPIWithClient(token, endpoint, httpClient)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to telegram: %w", err)
	}

	logger.WithField("username", api.Self.UserName).Info("Connected to Telegram")
	return &Client{
		api:            api,
		downloadClient: newDownloadClient(downloadHeaderTimeout, downloadTimeout),
		logger:         logger,
	}, nil
}

// newDownloadClient bounds both the wait for response headers and the whole
// transfer; webhook handlers run without a cancellable context
func newDownloadClient(headerTimeout, total time.Duration) *http.Client {
	transport := http.DefaultTransport.(*http.Transport).Clone()
	transport.ResponseHeaderTimeout = headerTimeout
	return &http.Client{
		Timeout:   total,
		Transport: transport,
	}
}

// Username returns the bot's own username
func (c *Client) Username() string {
	return c.api.Self.UserName
}

// Send implements bot.Sender, splitting long replies into several messages
func (c *Client) Send(ctx context.Context, chatID int64, reply bot.Reply) error {
	for _, chunk := range SplitMessage(reply.Text, MaxMessageLength) {
		if err := ctx.Err(); err != nil {
			return err
		}
		msg := tgbotapi.NewMessage(chatID, chunk)
		if reply.Markdown {
			msg.ParseMode = tgbotapi.ModeMarkdown
		}
		msg.DisableWebPagePreview = true
		if _, err := c.api.Send(msg); err != nil {
			return fmt.Errorf("failed to send message to chat %d: %w", chatID, err)
		}
	}
	return nil
}

// FileURL implements bot.FileSource
func (c *Client) FileURL(ctx context.Context, fileID string) (string, error) {
	url, err := c.api.GetFileDirectURL(fileID)
	if err != nil {
		return "", fmt.Errorf("failed to get file %s: %w", fileID, err)
	}
	return url, nil
}

// Download implements bot.FileSource
func (c *Client) Download(ctx context.Context, fileID string) (io.ReadCloser, error) {
	url, err := c.FileURL(ctx, fileID)
	if err != nil {
		return nil, err
	}
	return c.fetch(ctx, url)
}

func (c *Client) fetch(ctx context.Context, url string) (io.ReadCloser, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	resp, err := c.downloadClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to download file: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		resp.Body.Close()
		return nil, fmt.Errorf("file download failed with status %d", resp.StatusCode)
	}
	return resp.Body, nil
}

// SetWebhook registers url with Telegram; updates carry secret in the
// X-Telegram-Bot-Api-Secret-Token header
func (c *Client) SetWebhook(url, secret string) error {
	params := tgbotapi.Params{}
	params["url"] = url
	params.AddNonEmpty("secret_token", secret)
	if _, err := c.api.MakeRequest("setWebhook", params); err != nil {
		return fmt.Errorf("failed to set webhook: %w", err)
	}
	c.logger.WithField("url", url).Info("Telegram webhook registered")
	return nil
}

// DeleteWebhook removes any webhook so long polling can receive updates
func (c *Client) DeleteWebhook() error {
	if _, err := c.api.Request(tgbotapi.DeleteWebhookConfig{}); err != nil {
		return fmt.Errorf("failed to delete webhook: %w", err)
	}
	return nil
}

// Poll receives updates by long polling until ctx is cancelled. Each message
// is handled on its own goroutine; the handler serializes per chat.
func (c *Client) Poll(ctx context.Context, handler Handler) error {
	if err := c.DeleteWebhook(); err != nil {
		return err
	}

	u := tgbotapi.NewUpdate(0)
	u.Timeout = 60
	updates := c.api.GetUpdatesChan(u)
	c.logger.Info("Telegram long polling started")

	var wg sync.WaitGroup
	defer wg.Wait()

	for {
		select {
		case <-ctx.Done():
			c.api.StopReceivingUpdates()
			c.logger.Info("Telegram long polling stopped")
			return nil
		case update, ok := <-updates:
			if !ok {
				return nil
			}
			msg, ok := ToMessage(update)
			if !ok {
				continue
			}
			wg.Add(1)
			go func() {
				defer wg.Done()
				c.Dispatch(ctx, handler, msg)
			}()
		}
	}
}

// Dispatch hands msg to handler and logs any failure
func (c *Client) Dispatch(ctx context.Context, handler Handler, msg bot.Message) {
	if err := handler.HandleMessage(ctx, msg); err != nil {
		c.logger.WithError(err).WithFields(logrus.Fields{
			"chat_id":   msg.ChatID,
			"sender_id": msg.SenderID,
		}).Error("Failed to handle telegram message")
	}
}

// ToMessage converts an update into a bot message. Updates without a message,
// chat or sender are skipped.
func ToMessage(update tgbotapi.Update) (bot.Message, bool) {
	m := update.Message
	if m == nil || m.Chat == nil || m.From == nil {
		return bot.Message{}, false
	}

	msg := bot.Message{
		ChatID:   m.Chat.ID,
		SenderID: m.From.ID,
		Text:     m.Text,
	}
	if msg.Text == "" {
		msg.Text = m.Caption
	}
	if n := len(m.Photo); n > 0 {
		// sizes are ordered smallest first
		msg.PhotoFileID = m.Photo[n-1].FileID
	}
	switch {
	case m.Document != nil:
		msg.DocumentFileID = m.Document.FileID
		msg.DocumentName = m.Document.FileName
	case m.Video != nil:
		msg.DocumentFileID = m.Video.FileID
	}
	return msg, true
}

// SplitMessage breaks text into chunks of at most limit runes, preferring to
// cut at line breaks
func SplitMessage(text string, limit int) []string {
	if utf8.RuneCountInString(text) <= limit {
		return []string{text}
	}

	var chunks []string
	runes := []rune(text)
	for len(runes) > limit {
		cut := limit
		if i := strings.LastIndex(string(runes[:limit]), "\n"); i > 0 {
			cut = utf8.RuneCountInString(string(runes[:limit])[:i]) + 1
		}
		chunks = append(chunks, strings.TrimRight(string(runes[:cut]), "\n"))
		runes = runes[cut:]
	}
	if len(runes) > 0 {
		chunks = append(chunks, string(runes))
	}
	return chunks
}
