// Package bot implements the admin ingestion conversations independently of
// the chat transport.
package bot

import "context"

// Message is one inbound chat message
type Message struct {
	ChatID         int64
	SenderID       int64
	Text           string
	PhotoFileID    string // largest photo size, if any
	DocumentFileID string // document or video upload, if any
	DocumentName   string
}

// Reply is one outbound chat message
type Reply struct {
	Text     string
	Markdown bool
}

// Sender delivers replies to a chat
type Sender interface {
	Send(ctx context.Context, chatID int64, reply Reply) error
}

// MediaResolver turns uploaded files into URLs the catalog can store
type MediaResolver interface {
	PhotoURL(ctx context.Context, fileID string) (string, error)
	VideoURL(ctx context.Context, fileID, name string) (string, error)
}

// Flow identifies which conversation a chat is in
type Flow string

const (
	FlowAnime   Flow = "anime"
	FlowEpisode Flow = "episode"
)

// Step is the field a conversation is waiting for
type Step string

const (
	StepNone           Step = ""
	StepTitle          Step = "title"
	StepDescription    Step = "description"
	StepCoverImage     Step = "cover_image"
	StepYear           Step = "year"
	StepStatus         Step = "status"
	StepType           Step = "type"
	StepGenres         Step = "genres"
	StepConfirmation   Step = "confirmation"
	StepAnimeSelection Step = "anime_selection"
	StepEpisodeNumber  Step = "episode_number"
	StepEpisodeTitle   Step = "episode_title"
	StepVideoSource    Step = "video_source"
	StepDuration       Step = "duration"
	StepThumbnail      Step = "thumbnail"
)
