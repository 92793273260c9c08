package bot

import (
	"context"
	"fmt"
	"io"

	"github.com/sirupsen/logrus"
)

// FileSource looks up files uploaded to the chat
type FileSource interface {
	FileURL(ctx context.Context, fileID string) (string, error)
	Download(ctx context.Context, fileID string) (io.ReadCloser, error)
}

// VideoUploader stores a video on the hosting CDN and returns its playback URL
type VideoUploader interface {
	UploadVideo(ctx context.Context, title string, r io.Reader) (string, error)
}

// MediaPipeline resolves photos to chat file URLs and uploads videos to the
// CDN, or falls back to a placeholder URL when no uploader is configured
type MediaPipeline struct {
	files       FileSource
	uploader    VideoUploader
	placeholder string
	logger      *logrus.Logger
}

// NewMediaPipeline creates a pipeline; uploader may be nil
func NewMediaPipeline(files FileSource, uploader VideoUploader, placeholder string, logger *logrus.Logger) *MediaPipeline {
	return &MediaPipeline{
		files:       files,
		uploader:    uploader,
		placeholder: placeholder,
		logger:      logger,
	}
}

// PhotoURL implements MediaResolver
func (p *MediaPipeline) PhotoURL(ctx context.Context, fileID string) (string, error) {
	url, err := p.files.FileURL(ctx, fileID)
	if err != nil {
		return "", fmt.Errorf("failed to get photo url: %w", err)
	}
	return url, nil
}

// VideoURL implements MediaResolver
func (p *MediaPipeline) VideoURL(ctx context.Context, fileID, name string) (string, error) {
	if p.uploader == nil {
		p.logger.WithField("file_id", fileID).Debug("No video host configured, using placeholder")
		return p.placeholder, nil
	}

	body, err := p.files.Download(ctx, fileID)
	if err != nil {
		return "", fmt.Errorf("failed to download video: %w", err)
	}
	defer body.Close()

	if name == "" {
		name = fileID
	}
	url, err := p.uploader.UploadVideo(ctx, name, body)
	if err != nil {
		return "", fmt.Errorf("failed to upload video: %w", err)
	}

	p.logger.WithFields(logrus.Fields{
		"file_id": fileID,
		"url":     url,
	}).Info("Video uploaded")
	return url, nil
}
