package bot

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/agnivade/levenshtein"
	"github.com/anidao/anidao/internal/metrics"
	"github.com/anidao/anidao/internal/models"
	"github.com/anidao/anidao/internal/store"
	"github.com/anidao/anidao/internal/utils"
	"github.com/sirupsen/logrus"
)

// MaxListedAnimes bounds the selection list offered by /addepisode
const MaxListedAnimes = 100

const (
	msgNoPermission = "You don't have permission to use this command."
	msgWelcome      = "Welcome to ANI DAO Bot!\n\nThis bot is used by administrators only to manage the anime catalog."
	msgAdminHelp    = "Welcome to ANI DAO Admin Bot!\n\n" +
		"Available commands:\n" +
		"/addanime - Add a new anime\n" +
		"/addepisode - Add an episode to an existing anime\n" +
		"/list - List all animes\n" +
		"/cancel - Cancel the current operation"
	msgUnknownCommand = "Unknown command. Send /start to see the available commands."
	msgIdle           = "There is no operation in progress. Send /addanime or /addepisode to start."
	msgCancelled      = "Operation cancelled."
	msgStartOver      = "Let's start over. What's the title of the anime?"
	msgYesNo          = "Please answer with 'yes' or 'no'."
	msgBadSelection   = "Please select a valid anime number from the list."
)

// Bot drives the admin conversations
type Bot struct {
	store    store.Store
	sender   Sender
	media    MediaResolver
	sessions *Sessions
	adminID  int64
	logger   *logrus.Logger
	now      func() time.Time
}

// New creates a bot that only accepts commands from adminID
func New(st store.Store, sender Sender, media MediaResolver, sessions *Sessions, adminID int64, logger *logrus.Logger) *Bot {
	return &Bot{
		store:    st,
		sender:   sender,
		media:    media,
		sessions: sessions,
		adminID:  adminID,
		logger:   logger,
		now:      time.Now,
	}
}

// Sessions returns the conversation table, for sweeping
func (b *Bot) Sessions() *Sessions {
	return b.sessions
}

// HandleMessage processes one inbound message. The returned error reports a
// failure to deliver the reply.
func (b *Bot) HandleMessage(ctx context.Context, msg Message) error {
	command := parseCommand(msg.Text)
	metrics.RecordBotMessage(messageKind(msg, command))

	if msg.SenderID != b.adminID {
		switch {
		case command == "/start":
			return b.send(ctx, msg.ChatID, Reply{Text: msgWelcome})
		case command != "":
			b.logger.WithFields(logrus.Fields{
				"sender":  msg.SenderID,
				"command": command,
			}).Warn("Rejected command from non-admin")
			return b.send(ctx, msg.ChatID, Reply{Text: msgNoPermission})
		}
		return nil
	}

	c := b.sessions.acquire(msg.ChatID)
	defer b.sessions.release(msg.ChatID, c)

	var reply Reply
	if command != "" {
		reply = b.handleCommand(ctx, c, command)
	} else {
		reply = b.handleInput(ctx, c, msg)
	}
	if reply.Text == "" {
		return nil
	}
	return b.send(ctx, msg.ChatID, reply)
}

func (b *Bot) send(ctx context.Context, chatID int64, reply Reply) error {
	if err := b.sender.Send(ctx, chatID, reply); err != nil {
		return fmt.Errorf("failed to send reply: %w", err)
	}
	return nil
}

func (b *Bot) handleCommand(ctx context.Context, c *chat, command string) Reply {
	switch command {
	case "/start":
		return Reply{Text: msgAdminHelp}
	case "/cancel":
		if c.conv != nil {
			metrics.RecordBotDraft(string(c.conv.Flow), "cancelled")
		}
		c.conv = nil
		return Reply{Text: msgCancelled}
	case "/addanime":
		c.conv = &Conversation{Flow: FlowAnime, Anime: &AnimeDraft{}}
		return Reply{Text: "Let's add a new anime! What's the title of the anime?"}
	case "/addepisode":
		return b.startEpisode(ctx, c)
	case "/list":
		return b.listAnimes(ctx)
	}
	return Reply{Text: msgUnknownCommand}
}

func (b *Bot) handleInput(ctx context.Context, c *chat, msg Message) Reply {
	if c.conv == nil {
		if strings.TrimSpace(msg.Text) == "" {
			return Reply{}
		}
		return Reply{Text: msgIdle}
	}
	switch c.conv.Flow {
	case FlowAnime:
		return b.continueAnime(ctx, c, msg)
	case FlowEpisode:
		return b.continueEpisode(ctx, c, msg)
	}
	return Reply{}
}

func (b *Bot) continueAnime(ctx context.Context, c *chat, msg Message) Reply {
	d := c.conv.Anime
	text := strings.TrimSpace(msg.Text)
	step := d.Next()

	if text == "" && step != StepCoverImage {
		return Reply{Text: animePrompt(step, d)}
	}

	switch step {
	case StepTitle:
		d.Title = text
		return Reply{Text: fmt.Sprintf("Great! Now, please provide a description for \"%s\".", d.Title)}

	case StepDescription:
		d.Description = text
		return Reply{Text: "Thank you! Now, please upload a cover image for the anime."}

	case StepCoverImage:
		url, reply := b.resolveImage(ctx, msg, text, false)
		if url == "" {
			return reply
		}
		d.CoverImage = url
		return Reply{Text: "Cover image received! Now, what's the release year of the anime? (e.g., 2023)"}

	case StepYear:
		year, err := strconv.Atoi(text)
		if err != nil || year < 1900 || year > b.now().Year()+5 {
			return Reply{Text: "Please enter a valid year (e.g., 2023)."}
		}
		d.Year = year
		return Reply{Text: animePrompt(StepStatus, d)}

	case StepStatus:
		status, ok := models.ParseAnimeStatus(text)
		if !ok {
			return Reply{Text: "Please enter one of the following: airing, completed, upcoming"}
		}
		d.Status = status
		return Reply{Text: animePrompt(StepType, d)}

	case StepType:
		d.Type = text
		return Reply{Text: animePrompt(StepGenres, d)}

	case StepGenres:
		genres := utils.ParseGenres(text)
		if len(genres) == 0 {
			return Reply{Text: animePrompt(StepGenres, d)}
		}
		d.Genres = genres
		return Reply{Text: animeSummary(d), Markdown: true}

	case StepConfirmation:
		switch strings.ToLower(text) {
		case "yes", "y":
			d.Confirmed = true
			return b.saveAnime(ctx, c)
		case "no", "n":
			c.conv.Anime = &AnimeDraft{}
			return Reply{Text: msgStartOver}
		}
		return Reply{Text: msgYesNo}
	}
	return Reply{}
}

func (b *Bot) saveAnime(ctx context.Context, c *chat) Reply {
	d := c.conv.Anime
	c.conv = nil

	anime, genres, err := d.Build()
	if err == nil {
		err = b.store.CreateAnime(ctx, anime, genres)
	}
	if err != nil {
		b.logger.WithError(err).WithField("title", d.Title).Error("Failed to add anime")
		metrics.RecordBotDraft(string(FlowAnime), "failed")
		return Reply{Text: "❌ Failed to add anime. Please try again with /addanime."}
	}

	b.logger.WithFields(logrus.Fields{
		"anime_id": anime.ID,
		"title":    anime.Title,
	}).Info("Anime added via bot")
	metrics.RecordBotDraft(string(FlowAnime), "saved")
	return Reply{Text: fmt.Sprintf(
		"✅ Anime successfully added!\n\nID: %d\nTitle: %s\n\nYou can now add episodes using the /addepisode command.",
		anime.ID, anime.Title)}
}

func (b *Bot) startEpisode(ctx context.Context, c *chat) Reply {
	animes, err := b.store.ListAnimes(ctx, MaxListedAnimes, 0)
	if err != nil {
		b.logger.WithError(err).Error("Failed to list animes for episode selection")
		return Reply{Text: "❌ Failed to load animes. Please try again."}
	}
	if len(animes) == 0 {
		c.conv = nil
		return Reply{Text: "No animes found. Please add an anime first with /addanime"}
	}

	c.conv = &Conversation{Flow: FlowEpisode, Episode: &EpisodeDraft{}, Choices: animes}

	var sb strings.Builder
	sb.WriteString("Please select the anime to add an episode to:\n\n")
	for i, a := range animes {
		fmt.Fprintf(&sb, "%d. %s (%d)\n", i+1, a.Title, a.Year)
	}
	return Reply{Text: strings.TrimRight(sb.String(), "\n")}
}

func (b *Bot) continueEpisode(ctx context.Context, c *chat, msg Message) Reply {
	d := c.conv.Episode
	text := strings.TrimSpace(msg.Text)
	step := d.Next()

	if text == "" && step != StepVideoSource && step != StepThumbnail {
		return Reply{Text: episodePrompt(step, d)}
	}

	switch step {
	case StepAnimeSelection:
		anime := selectAnime(c.conv.Choices, text)
		if anime == nil {
			return Reply{Text: msgBadSelection}
		}
		d.AnimeID = anime.ID
		d.AnimeTitle = anime.Title
		return Reply{Text: fmt.Sprintf("Selected anime: %s\n\nWhat's the episode number?", anime.Title)}

	case StepEpisodeNumber:
		n, err := strconv.Atoi(text)
		if err != nil || n <= 0 {
			return Reply{Text: "Please enter a valid episode number (e.g., 1, 2, 3)."}
		}
		d.Number = n
		return Reply{Text: episodePrompt(StepEpisodeTitle, d)}

	case StepEpisodeTitle:
		d.Title = text
		return Reply{Text: episodePrompt(StepVideoSource, d)}

	case StepVideoSource:
		switch {
		case msg.DocumentFileID != "":
			url, err := b.media.VideoURL(ctx, msg.DocumentFileID, msg.DocumentName)
			if err != nil {
				b.logger.WithError(err).WithField("file_id", msg.DocumentFileID).Error("Failed to process video")
				return Reply{Text: "❌ Failed to process the video. Please try again."}
			}
			d.VideoURL = url
		case isURL(text):
			d.VideoURL = text
		default:
			return Reply{Text: episodePrompt(StepVideoSource, d)}
		}
		return Reply{Text: episodePrompt(StepDuration, d)}

	case StepDuration:
		if !strings.EqualFold(text, "skip") {
			secs, err := strconv.Atoi(text)
			if err != nil || secs <= 0 {
				return Reply{Text: "Please enter the duration in seconds (e.g., 1440), or 'skip'."}
			}
			d.Duration = secs
		}
		d.DurationSet = true
		return Reply{Text: episodePrompt(StepThumbnail, d)}

	case StepThumbnail:
		if !strings.EqualFold(text, "skip") {
			url, reply := b.resolveImage(ctx, msg, text, true)
			if url == "" {
				return reply
			}
			d.Thumbnail = url
		}
		d.ThumbnailSet = true
		return b.saveEpisode(ctx, c)
	}
	return Reply{}
}

func (b *Bot) saveEpisode(ctx context.Context, c *chat) Reply {
	d := c.conv.Episode
	c.conv = nil

	episode, err := d.Build()
	if err == nil {
		err = b.store.CreateEpisode(ctx, episode)
	}
	if err != nil {
		b.logger.WithError(err).WithFields(logrus.Fields{
			"anime_id": d.AnimeID,
			"number":   d.Number,
		}).Error("Failed to add episode")
		metrics.RecordBotDraft(string(FlowEpisode), "failed")
		return Reply{Text: "❌ Failed to add episode. Please try again with /addepisode."}
	}

	b.logger.WithFields(logrus.Fields{
		"episode_id": episode.ID,
		"anime_id":   episode.AnimeID,
		"number":     episode.Number,
	}).Info("Episode added via bot")
	metrics.RecordBotDraft(string(FlowEpisode), "saved")
	return Reply{Text: fmt.Sprintf(
		"✅ Episode successfully added!\n\nAnime ID: %d\nEpisode: %d - %s\nVideo URL: %s",
		episode.AnimeID, episode.Number, episode.Title, episode.VideoURL)}
}

// resolveImage returns an image URL from a photo upload or a pasted link. On
// failure the URL is empty and the reply explains what to send instead.
func (b *Bot) resolveImage(ctx context.Context, msg Message, text string, skippable bool) (string, Reply) {
	if msg.PhotoFileID != "" {
		url, err := b.media.PhotoURL(ctx, msg.PhotoFileID)
		if err != nil {
			b.logger.WithError(err).WithField("file_id", msg.PhotoFileID).Error("Failed to resolve photo")
			return "", Reply{Text: "❌ Failed to process the image. Please try again."}
		}
		return url, Reply{}
	}
	if isURL(text) {
		return text, Reply{}
	}
	if skippable {
		return "", Reply{Text: "Please upload a thumbnail image, paste an image URL, or send 'skip'."}
	}
	return "", Reply{Text: "Please upload a cover image or paste an image URL."}
}

func (b *Bot) listAnimes(ctx context.Context) Reply {
	summaries, err := b.store.ListAnimeSummaries(ctx)
	if err != nil {
		b.logger.WithError(err).Error("Failed to list animes")
		return Reply{Text: "❌ Failed to load animes. Please try again."}
	}
	if len(summaries) == 0 {
		return Reply{Text: "No animes found in the database."}
	}

	var sb strings.Builder
	sb.WriteString("📚 *Anime List*\n\n")
	for _, s := range summaries {
		fmt.Fprintf(&sb, "*%s* (%d)\nStatus: %s\nEpisodes: %d\n\n",
			escapeMarkdown(s.Title), s.Year, s.Status, s.EpisodeCount)
	}
	return Reply{Text: strings.TrimRight(sb.String(), "\n"), Markdown: true}
}

func animePrompt(step Step, d *AnimeDraft) string {
	switch step {
	case StepTitle:
		return "What's the title of the anime?"
	case StepDescription:
		return fmt.Sprintf("Please provide a description for \"%s\".", d.Title)
	case StepCoverImage:
		return "Please upload a cover image for the anime."
	case StepYear:
		return "What's the release year of the anime? (e.g., 2023)"
	case StepStatus:
		return "What's the status of this anime? (airing, completed, upcoming)"
	case StepType:
		return "What type of anime is this? (TV, Movie, OVA, etc.)"
	case StepGenres:
		return "What genres does this anime belong to? (comma-separated, e.g., action, adventure, fantasy)"
	case StepConfirmation:
		return msgYesNo
	}
	return ""
}

func episodePrompt(step Step, d *EpisodeDraft) string {
	switch step {
	case StepAnimeSelection:
		return msgBadSelection
	case StepEpisodeNumber:
		return "What's the episode number?"
	case StepEpisodeTitle:
		return fmt.Sprintf("What's the title of episode %d?", d.Number)
	case StepVideoSource:
		return "Please upload the video file for this episode, or paste a video URL."
	case StepDuration:
		return "What's the duration of the episode in seconds? (send 'skip' if unknown)"
	case StepThumbnail:
		return "Please upload a thumbnail image for the episode, paste an image URL, or send 'skip'."
	}
	return ""
}

func animeSummary(d *AnimeDraft) string {
	return fmt.Sprintf("*Please confirm the anime details:*\n\n"+
		"*Title:* %s\n*Description:* %s\n*Cover image:* %s\n*Year:* %d\n*Status:* %s\n*Type:* %s\n*Genres:* %s\n\n"+
		"Is this information correct? (yes/no)",
		escapeMarkdown(d.Title),
		escapeMarkdown(d.Description),
		escapeMarkdown(d.CoverImage),
		d.Year,
		d.Status,
		escapeMarkdown(d.Type),
		escapeMarkdown(strings.Join(d.Genres, ", ")))
}

// selectAnime resolves a list number or the closest listed title
func selectAnime(choices []*models.Anime, input string) *models.Anime {
	if n, err := strconv.Atoi(input); err == nil {
		if n >= 1 && n <= len(choices) {
			return choices[n-1]
		}
		return nil
	}

	input = strings.ToLower(input)
	var best *models.Anime
	bestDist := -1
	for _, a := range choices {
		dist := levenshtein.ComputeDistance(input, strings.ToLower(a.Title))
		if bestDist < 0 || dist < bestDist {
			best, bestDist = a, dist
		}
	}
	if best == nil {
		return nil
	}
	limit := len([]rune(best.Title)) / 3
	if limit < 2 {
		limit = 2
	}
	if bestDist > limit {
		return nil
	}
	return best
}

// parseCommand returns the lowercased command without any @botname suffix,
// or "" when text is not a command
func parseCommand(text string) string {
	text = strings.TrimSpace(text)
	if !strings.HasPrefix(text, "/") {
		return ""
	}
	cmd := strings.Fields(text)[0]
	if i := strings.IndexByte(cmd, '@'); i >= 0 {
		cmd = cmd[:i]
	}
	return strings.ToLower(cmd)
}

func messageKind(msg Message, command string) string {
	switch {
	case command != "":
		return "command"
	case msg.PhotoFileID != "":
		return "photo"
	case msg.DocumentFileID != "":
		return "document"
	case msg.Text != "":
		return "text"
	}
	return "other"
}

var markdownEscaper = strings.NewReplacer("_", `\_`, "*", `\*`, "`", "\\`", "[", `\[`)

func escapeMarkdown(s string) string {
	return markdownEscaper.Replace(s)
}
