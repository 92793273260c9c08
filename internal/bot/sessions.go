package bot

import (
	"sync"
	"time"

	"github.com/anidao/anidao/internal/metrics"
)

type chat struct {
	mu       sync.Mutex // held while a message for this chat is handled
	conv     *Conversation
	refs     int
	lastSeen time.Time
}

// Sessions holds per-chat conversation state. Messages for the same chat are
// handled one at a time; idle conversations are evicted by Sweep and lazily
// on the next message.
type Sessions struct {
	mu    sync.Mutex
	chats map[int64]*chat
	idle  time.Duration
	now   func() time.Time
}

// NewSessions creates an empty session table with the given idle timeout
func NewSessions(idle time.Duration) *Sessions {
	return &Sessions{
		chats: make(map[int64]*chat),
		idle:  idle,
		now:   time.Now,
	}
}

// acquire returns the chat entry locked for exclusive use
func (s *Sessions) acquire(chatID int64) *chat {
	s.mu.Lock()
	c, ok := s.chats[chatID]
	if !ok {
		c = &chat{lastSeen: s.now()}
		s.chats[chatID] = c
		s.report()
	} else if c.refs == 0 && c.conv != nil && s.expired(c) {
		c.conv = nil
	}
	c.refs++
	s.mu.Unlock()

	c.mu.Lock()
	return c
}

// release unlocks a chat entry returned by acquire
func (s *Sessions) release(chatID int64, c *chat) {
	c.mu.Unlock()

	s.mu.Lock()
	defer s.mu.Unlock()
	c.lastSeen = s.now()
	c.refs--
	if c.refs == 0 && c.conv == nil {
		delete(s.chats, chatID)
	}
	s.report()
}

// report publishes the number of tracked chats; s.mu must be held
func (s *Sessions) report() {
	metrics.BotActiveConversations.Set(float64(len(s.chats)))
}

func (s *Sessions) expired(c *chat) bool {
	return s.now().Sub(c.lastSeen) > s.idle
}

// Sweep evicts idle conversations that no message is using and returns how
// many were dropped
func (s *Sessions) Sweep() int {
	s.mu.Lock()
	defer s.mu.Unlock()

	evicted := 0
	for id, c := range s.chats {
		if c.refs > 0 || !s.expired(c) {
			continue
		}
		if c.conv != nil {
			evicted++
		}
		delete(s.chats, id)
	}
	s.report()
	return evicted
}

// Active returns the number of tracked chats, with a draft open or a message in flight
func (s *Sessions) Active() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.chats)
}
