// Package bunny uploads episode videos to Bunny Stream.
package bunny

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/anidao/anidao/internal/config"
	"github.com/goccy/go-json"
	"github.com/sirupsen/logrus"
)

const (
	streamAPIBase = "https://video.bunnycdn.com"
	embedBase     = "https://iframe.mediadelivery.net/play"
)

// Client talks to the Bunny Stream library API
type Client struct {
	apiKey     string
	libraryID  string
	baseURL    string
	httpClient *http.Client
	logger     *logrus.Logger
}

// NewClient creates a new Bunny Stream client
func NewClient(cfg *config.Config, logger *logrus.Logger) (*Client, error) {
	if cfg.BunnyAPIKey == "" {
		return nil, fmt.Errorf("bunny API key is required")
	}
	if cfg.BunnyLibraryID == "" {
		return nil, fmt.Errorf("bunny library ID is required")
	}

	return &Client{
		apiKey:    cfg.BunnyAPIKey,
		libraryID: cfg.BunnyLibraryID,
		baseURL:   streamAPIBase,
		httpClient: &http.Client{
			// uploads stream whole episodes
			Timeout: 30 * time.Minute,
		},
		logger: logger,
	}, nil
}

// createVideoResponse is the subset of the video object we need
type createVideoResponse struct {
	GUID    string `json:"guid"`
	Title   string `json:"title"`
	Library int64  `json:"videoLibraryId"`
}

type uploadResponse struct {
	Success    bool   `json:"success"`
	Message    string `json:"message"`
	StatusCode int    `json:"statusCode"`
}

// CreateVideo registers a new video in the library and returns its GUID
func (c *Client) CreateVideo(ctx context.Context, title string) (string, error) {
	payload, err := json.Marshal(map[string]string{"title": title})
	if err != nil {
		return "", fmt.Errorf("failed to encode request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost,
		fmt.Sprintf("%s/library/%s/videos", c.baseURL, c.libraryID), bytes.NewReader(payload))
	if err != nil {
		return "", fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	body, err := c.do(req)
	if err != nil {
		return "", err
	}

	var result createVideoResponse
	if err := json.Unmarshal(body, &result); err != nil {
		return "", fmt.Errorf("failed to decode response: %w", err)
	}
	if result.GUID == "" {
		return "", fmt.Errorf("video creation returned no guid")
	}

	c.logger.WithFields(logrus.Fields{
		"guid":  result.GUID,
		"title": title,
	}).Debug("Created Bunny video")
	return result.GUID, nil
}

// Upload streams the video bytes into an existing video entry
func (c *Client) Upload(ctx context.Context, guid string, r io.Reader) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodPut,
		fmt.Sprintf("%s/library/%s/videos/%s", c.baseURL, c.libraryID, guid), r)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/octet-stream")

	body, err := c.do(req)
	if err != nil {
		return err
	}

	var result uploadResponse
	if err := json.Unmarshal(body, &result); err != nil {
		return fmt.Errorf("failed to decode response: %w", err)
	}
	if !result.Success {
		return fmt.Errorf("upload failed: %s", result.Message)
	}
	return nil
}

// UploadVideo creates a video, uploads r into it and returns the embed URL
func (c *Client) UploadVideo(ctx context.Context, title string, r io.Reader) (string, error) {
	guid, err := c.CreateVideo(ctx, title)
	if err != nil {
		return "", fmt.Errorf("failed to create video: %w", err)
	}
	if err := c.Upload(ctx, guid, r); err != nil {
		return "", fmt.Errorf("failed to upload video %s: %w", guid, err)
	}

	embed := c.EmbedURL(guid)
	c.logger.WithFields(logrus.Fields{
		"guid":  guid,
		"title": title,
	}).Info("Uploaded video to Bunny Stream")
	return embed, nil
}

// EmbedURL returns the player URL for a video
func (c *Client) EmbedURL(guid string) string {
	return fmt.Sprintf("%s/%s/%s", embedBase, c.libraryID, guid)
}

func (c *Client) do(req *http.Request) ([]byte, error) {
	req.Header.Set("AccessKey", c.apiKey)
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to execute request: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response body: %w", err)
	}
	if resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusCreated {
		return nil, fmt.Errorf("API request failed with status %d: %s", resp.StatusCode, string(body))
	}
	return body, nil
}
