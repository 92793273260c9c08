package bot

import (
	"context"
	"errors"
	"io"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/anidao/anidao/internal/models"
	"github.com/anidao/anidao/internal/store/memstore"
	"github.com/sirupsen/logrus"
)

const (
	adminID = 1001
	chatID  = 5005
)

type fakeSender struct {
	mu      sync.Mutex
	replies []Reply
}

func (s *fakeSender) Send(ctx context.Context, chatID int64, reply Reply) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.replies = append(s.replies, reply)
	return nil
}

func (s *fakeSender) last() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(s.replies) == 0 {
		return ""
	}
	return s.replies[len(s.replies)-1].Text
}

func (s *fakeSender) count() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.replies)
}

type fakeMedia struct {
	photoErr error
	videoErr error
}

func (m *fakeMedia) PhotoURL(ctx context.Context, fileID string) (string, error) {
	if m.photoErr != nil {
		return "", m.photoErr
	}
	return "https://files.example/" + fileID, nil
}

func (m *fakeMedia) VideoURL(ctx context.Context, fileID, name string) (string, error) {
	if m.videoErr != nil {
		return "", m.videoErr
	}
	return "https://cdn.example/" + fileID, nil
}

type harness struct {
	bot    *Bot
	sender *fakeSender
	media  *fakeMedia
	store  *memstore.Store
}

func newHarness() *harness {
	logger := logrus.New()
	logger.SetOutput(io.Discard)
	h := &harness{sender: &fakeSender{}, media: &fakeMedia{}, store: memstore.New()}
	h.bot = New(h.store, h.sender, h.media, NewSessions(30*time.Minute), adminID, logger)
	h.bot.now = func() time.Time { return time.Date(2024, 6, 1, 0, 0, 0, 0, time.UTC) }
	return h
}

func (h *harness) say(t *testing.T, text string) string {
	t.Helper()
	return h.send(t, Message{ChatID: chatID, SenderID: adminID, Text: text})
}

func (h *harness) send(t *testing.T, msg Message) string {
	t.Helper()
	if err := h.bot.HandleMessage(context.Background(), msg); err != nil {
		t.Fatalf("HandleMessage(%+v) failed: %v", msg, err)
	}
	return h.sender.last()
}

func (h *harness) step(t *testing.T) Step {
	t.Helper()
	c := h.bot.sessions.acquire(chatID)
	defer h.bot.sessions.release(chatID, c)
	if c.conv == nil {
		return StepNone
	}
	return c.conv.Step()
}

func (h *harness) fillAnime(t *testing.T, title string) {
	t.Helper()
	h.say(t, "/addanime")
	for _, text := range []string{title, "A story", "https://img.example/cover.jpg", "2023", "Airing", "TV", "Action, , Fantasy "} {
		h.say(t, text)
	}
}

func TestStartReplies(t *testing.T) {
	h := newHarness()
	if got := h.say(t, "/start"); !strings.Contains(got, "/addanime") {
		t.Errorf("expected admin help, got %q", got)
	}
	got := h.send(t, Message{ChatID: 1, SenderID: 2, Text: "/start"})
	if got != msgWelcome {
		t.Errorf("expected public welcome, got %q", got)
	}
}

func TestAddAnimeFlow(t *testing.T) {
	h := newHarness()
	ctx := context.Background()

	h.fillAnime(t, "Frieren")
	if step := h.step(t); step != StepConfirmation {
		t.Fatalf("expected confirmation step, got %q", step)
	}
	if !h.sender.replies[len(h.sender.replies)-1].Markdown {
		t.Errorf("expected markdown summary")
	}

	if got := h.say(t, "maybe"); got != msgYesNo {
		t.Errorf("expected yes/no prompt, got %q", got)
	}
	if got := h.say(t, "yes"); !strings.Contains(got, "Anime successfully added") {
		t.Fatalf("expected success, got %q", got)
	}
	if step := h.step(t); step != StepNone {
		t.Errorf("expected cleared state, got %q", step)
	}

	animes, _ := h.store.ListAnimes(ctx, 0, 0)
	if len(animes) != 1 {
		t.Fatalf("expected 1 anime, got %d", len(animes))
	}
	a := animes[0]
	if a.Title != "Frieren" || a.Year != 2023 || a.Status != models.StatusAiring || a.Type != "TV" {
		t.Errorf("unexpected anime %+v", a)
	}
	genres, _ := h.store.ListAnimeGenres(ctx, a.ID)
	if len(genres) != 2 || genres[0] != "action" || genres[1] != "fantasy" {
		t.Errorf("unexpected genres %v", genres)
	}
}

func TestTextFillsNextUnsetField(t *testing.T) {
	h := newHarness()
	h.say(t, "/addanime")
	h.say(t, "2023")

	c := h.bot.sessions.acquire(chatID)
	title := c.conv.Anime.Title
	year := c.conv.Anime.Year
	h.bot.sessions.release(chatID, c)

	if title != "2023" || year != 0 {
		t.Errorf("expected text to fill the title, got title=%q year=%d", title, year)
	}
	if step := h.step(t); step != StepDescription {
		t.Errorf("expected description step, got %q", step)
	}
}

func TestAnimeValidation(t *testing.T) {
	h := newHarness()
	h.say(t, "/addanime")
	h.say(t, "Title")
	h.say(t, "Description")

	if got := h.say(t, "not a link"); !strings.Contains(got, "cover image") {
		t.Errorf("expected cover prompt, got %q", got)
	}
	h.send(t, Message{ChatID: chatID, SenderID: adminID, PhotoFileID: "cover"})

	for _, year := range []string{"abc", "1899", "2030"} {
		if got := h.say(t, year); !strings.Contains(got, "valid year") {
			t.Errorf("year %q: expected rejection, got %q", year, got)
		}
	}
	h.say(t, "2029")
	if got := h.say(t, "finished"); !strings.Contains(got, "airing, completed, upcoming") {
		t.Errorf("expected status rejection, got %q", got)
	}
	h.say(t, "UPCOMING")
	h.say(t, "Movie")
	if got := h.say(t, " , ,"); !strings.Contains(got, "genres") {
		t.Errorf("expected genres prompt, got %q", got)
	}

	c := h.bot.sessions.acquire(chatID)
	d := *c.conv.Anime
	h.bot.sessions.release(chatID, c)
	if d.CoverImage != "https://files.example/cover" || d.Year != 2029 || d.Status != models.StatusUpcoming {
		t.Errorf("unexpected draft %+v", d)
	}
}

func TestConfirmationNoResetsDraft(t *testing.T) {
	h := newHarness()
	h.fillAnime(t, "Wrong")
	if got := h.say(t, "no"); got != msgStartOver {
		t.Errorf("expected start over, got %q", got)
	}
	if step := h.step(t); step != StepTitle {
		t.Errorf("expected title step, got %q", step)
	}
	if animes, _ := h.store.ListAnimes(context.Background(), 0, 0); len(animes) != 0 {
		t.Errorf("nothing should be persisted")
	}
}

func TestCancelThenRestart(t *testing.T) {
	h := newHarness()
	h.say(t, "/addanime")
	h.say(t, "Title")
	h.say(t, "Description")

	if got := h.say(t, "/cancel"); got != msgCancelled {
		t.Errorf("expected cancellation, got %q", got)
	}
	if step := h.step(t); step != StepNone {
		t.Errorf("expected no state after cancel, got %q", step)
	}
	h.say(t, "/addanime@AniDaoBot")
	if step := h.step(t); step != StepTitle {
		t.Errorf("expected title step after restart, got %q", step)
	}
}

func TestNonAdminIsIgnored(t *testing.T) {
	h := newHarness()
	ctx := context.Background()
	stranger := Message{ChatID: 7, SenderID: 7}

	for _, text := range []string{"/addanime", "/list", "/cancel", "/addepisode"} {
		stranger.Text = text
		if got := h.send(t, stranger); got != msgNoPermission {
			t.Errorf("%s: expected permission error, got %q", text, got)
		}
	}

	before := h.sender.count()
	stranger.Text = "Some title"
	h.send(t, stranger)
	h.send(t, Message{ChatID: 7, SenderID: 7, PhotoFileID: "p"})
	if h.sender.count() != before {
		t.Errorf("non-admin text must be ignored")
	}
	if h.bot.sessions.Active() != 0 {
		t.Errorf("non-admin must not create conversation state")
	}
	if animes, _ := h.store.ListAnimes(ctx, 0, 0); len(animes) != 0 {
		t.Errorf("non-admin must not mutate the store")
	}
}

func TestUnknownCommandAndIdleText(t *testing.T) {
	h := newHarness()
	if got := h.say(t, "/dance"); got != msgUnknownCommand {
		t.Errorf("expected help hint, got %q", got)
	}
	if got := h.say(t, "hello"); got != msgIdle {
		t.Errorf("expected idle hint, got %q", got)
	}
}

type failingStore struct {
	*memstore.Store
}

func (failingStore) CreateAnime(ctx context.Context, anime *models.Anime, genres []string) error {
	return errors.New("disk full")
}

func TestPersistFailureClearsState(t *testing.T) {
	h := newHarness()
	h.bot.store = failingStore{h.store}

	h.fillAnime(t, "Doomed")
	if got := h.say(t, "yes"); !strings.Contains(got, "Failed to add anime") {
		t.Errorf("expected failure report, got %q", got)
	}
	if step := h.step(t); step != StepNone {
		t.Errorf("expected state cleared after failure, got %q", step)
	}
}

func TestPhotoFailureKeepsStep(t *testing.T) {
	h := newHarness()
	h.media.photoErr = errors.New("telegram down")
	h.say(t, "/addanime")
	h.say(t, "Title")
	h.say(t, "Description")

	got := h.send(t, Message{ChatID: chatID, SenderID: adminID, PhotoFileID: "cover"})
	if !strings.Contains(got, "Failed to process the image") {
		t.Errorf("expected failure report, got %q", got)
	}
	if step := h.step(t); step != StepCoverImage {
		t.Errorf("expected to stay on cover step, got %q", step)
	}
}

func seedAnimes(t *testing.T, st *memstore.Store, titles ...string) []*models.Anime {
	t.Helper()
	var out []*models.Anime
	for _, title := range titles {
		a := &models.Anime{Title: title, Year: 2020, Status: models.StatusCompleted}
		if err := st.CreateAnime(context.Background(), a, nil); err != nil {
			t.Fatalf("CreateAnime failed: %v", err)
		}
		out = append(out, a)
	}
	return out
}

func TestAddEpisodeWithoutAnimes(t *testing.T) {
	h := newHarness()
	if got := h.say(t, "/addepisode"); !strings.Contains(got, "No animes found") {
		t.Errorf("expected empty catalog message, got %q", got)
	}
	if step := h.step(t); step != StepNone {
		t.Errorf("expected no state, got %q", step)
	}
}

func TestAddEpisodeFlow(t *testing.T) {
	h := newHarness()
	ctx := context.Background()
	animes := seedAnimes(t, h.store, "Naruto", "Bleach")

	list := h.say(t, "/addepisode")
	// newest first
	if !strings.Contains(list, "1. Bleach (2020)") || !strings.Contains(list, "2. Naruto (2020)") {
		t.Fatalf("unexpected list %q", list)
	}
	if got := h.say(t, "7"); got != msgBadSelection {
		t.Errorf("expected invalid selection, got %q", got)
	}
	if got := h.say(t, "2"); !strings.Contains(got, "Selected anime: Naruto") {
		t.Fatalf("expected Naruto, got %q", got)
	}
	if got := h.say(t, "-1"); !strings.Contains(got, "valid episode number") {
		t.Errorf("expected number rejection, got %q", got)
	}
	h.say(t, "3")
	h.say(t, "The Test")
	if got := h.say(t, "just text"); !strings.Contains(got, "video") {
		t.Errorf("expected video prompt, got %q", got)
	}
	h.send(t, Message{ChatID: chatID, SenderID: adminID, DocumentFileID: "vid", DocumentName: "ep3.mp4"})
	h.say(t, "skip")
	got := h.say(t, "skip")
	if !strings.Contains(got, "Episode successfully added") {
		t.Fatalf("expected success, got %q", got)
	}

	episodes, _ := h.store.ListEpisodes(ctx, animes[0].ID)
	if len(episodes) != 1 {
		t.Fatalf("expected 1 episode, got %d", len(episodes))
	}
	e := episodes[0]
	if e.Number != 3 || e.Title != "The Test" || e.VideoURL != "https://cdn.example/vid" || e.Duration != 0 || e.Thumbnail != "" {
		t.Errorf("unexpected episode %+v", e)
	}
	if step := h.step(t); step != StepNone {
		t.Errorf("expected cleared state, got %q", step)
	}
}

func TestEpisodeVideoFailureKeepsStep(t *testing.T) {
	h := newHarness()
	anime := seedAnimes(t, h.store, "Naruto")[0]
	h.media.videoErr = errors.New("upload failed")

	h.say(t, "/addepisode")
	h.say(t, "1")
	h.say(t, "1")
	h.say(t, "Pilot")
	got := h.send(t, Message{ChatID: chatID, SenderID: adminID, DocumentFileID: "vid"})
	if !strings.Contains(got, "Failed to process the video") {
		t.Errorf("expected failure report, got %q", got)
	}
	if step := h.step(t); step != StepVideoSource {
		t.Errorf("expected to stay on video step, got %q", step)
	}

	h.say(t, "https://videos.example/1.mp4")
	h.say(t, "1440")
	h.send(t, Message{ChatID: chatID, SenderID: adminID, PhotoFileID: "thumb"})

	episodes, _ := h.store.ListEpisodes(context.Background(), anime.ID)
	if len(episodes) != 1 || episodes[0].Duration != 1440 || episodes[0].Thumbnail != "https://files.example/thumb" {
		t.Errorf("unexpected episodes %+v", episodes)
	}
}

func TestSelectAnime(t *testing.T) {
	choices := []*models.Anime{
		{ID: 1, Title: "Attack on Titan"},
		{ID: 2, Title: "One Piece"},
		{ID: 3, Title: "Bleach"},
	}
	tests := []struct {
		input string
		want  uint64
	}{
		{"2", 2},
		{"0", 0},
		{"4", 0},
		{"one piece", 2},
		{"Atack on Titan", 1},
		{"bleech", 3},
		{"Dragon Ball", 0},
	}
	for _, tt := range tests {
		got := selectAnime(choices, tt.input)
		var id uint64
		if got != nil {
			id = got.ID
		}
		if id != tt.want {
			t.Errorf("selectAnime(%q) = %d, want %d", tt.input, id, tt.want)
		}
	}
}

func TestListAnimes(t *testing.T) {
	h := newHarness()
	if got := h.say(t, "/list"); got != "No animes found in the database." {
		t.Errorf("unexpected empty list reply %q", got)
	}
	seedAnimes(t, h.store, "Cowboy_Bebop")
	got := h.say(t, "/list")
	if !strings.Contains(got, `*Cowboy\_Bebop* (2020)`) || !strings.Contains(got, "Episodes: 0") {
		t.Errorf("unexpected list %q", got)
	}
}

func TestParseCommand(t *testing.T) {
	tests := map[string]string{
		"/start":            "/start",
		"/AddAnime@AniBot":  "/addanime",
		"  /list extra arg": "/list",
		"hello":             "",
		"":                  "",
	}
	for in, want := range tests {
		if got := parseCommand(in); got != want {
			t.Errorf("parseCommand(%q) = %q, want %q", in, got, want)
		}
	}
}
