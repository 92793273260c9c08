package bot

import (
	"errors"
	"strings"

	"github.com/anidao/anidao/internal/models"
)

var errIncompleteDraft = errors.New("draft is incomplete")

// AnimeDraft collects anime fields one message at a time
type AnimeDraft struct {
	Title       string
	Description string
	CoverImage  string
	Year        int
	Status      models.AnimeStatus
	Type        string
	Genres      []string
	Confirmed   bool
}

// Next returns the first field that is still unset
func (d *AnimeDraft) Next() Step {
	switch {
	case d.Title == "":
		return StepTitle
	case d.Description == "":
		return StepDescription
	case d.CoverImage == "":
		return StepCoverImage
	case d.Year == 0:
		return StepYear
	case d.Status == "":
		return StepStatus
	case d.Type == "":
		return StepType
	case len(d.Genres) == 0:
		return StepGenres
	case !d.Confirmed:
		return StepConfirmation
	}
	return StepNone
}

// Build converts a confirmed draft into an anime ready to insert
func (d *AnimeDraft) Build() (*models.Anime, []string, error) {
	if d.Next() != StepNone {
		return nil, nil, errIncompleteDraft
	}
	genres := make([]string, len(d.Genres))
	copy(genres, d.Genres)
	return &models.Anime{
		Title:       d.Title,
		Description: d.Description,
		CoverImage:  d.CoverImage,
		Year:        d.Year,
		Status:      d.Status,
		Type:        d.Type,
	}, genres, nil
}

// EpisodeDraft collects episode fields one message at a time
type EpisodeDraft struct {
	AnimeID    uint64
	AnimeTitle string
	Number     int
	Title      string
	VideoURL   string

	Duration     int
	DurationSet  bool
	Thumbnail    string
	ThumbnailSet bool
}

// Next returns the first field that is still unset
func (d *EpisodeDraft) Next() Step {
	switch {
	case d.AnimeID == 0:
		return StepAnimeSelection
	case d.Number == 0:
		return StepEpisodeNumber
	case d.Title == "":
		return StepEpisodeTitle
	case d.VideoURL == "":
		return StepVideoSource
	case !d.DurationSet:
		return StepDuration
	case !d.ThumbnailSet:
		return StepThumbnail
	}
	return StepNone
}

// Build converts a complete draft into an episode ready to insert
func (d *EpisodeDraft) Build() (*models.Episode, error) {
	if d.Next() != StepNone {
		return nil, errIncompleteDraft
	}
	return &models.Episode{
		AnimeID:   d.AnimeID,
		Title:     d.Title,
		Number:    d.Number,
		VideoURL:  d.VideoURL,
		Thumbnail: d.Thumbnail,
		Duration:  d.Duration,
	}, nil
}

// Conversation is the in-progress state of one chat
type Conversation struct {
	Flow    Flow
	Anime   *AnimeDraft
	Episode *EpisodeDraft
	Choices []*models.Anime // anime offered by /addepisode, in list order
}

// Step returns the field the conversation is waiting for
func (c *Conversation) Step() Step {
	switch c.Flow {
	case FlowAnime:
		return c.Anime.Next()
	case FlowEpisode:
		return c.Episode.Next()
	}
	return StepNone
}

func isURL(s string) bool {
	s = strings.ToLower(s)
	return strings.HasPrefix(s, "http://") || strings.HasPrefix(s, "https://")
}
