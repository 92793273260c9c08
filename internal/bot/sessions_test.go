package bot

import (
	"sync"
	"testing"
	"time"

	"github.com/anidao/anidao/internal/metrics"
	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestSweepEvictsIdleConversations(t *testing.T) {
	s := NewSessions(time.Minute)
	now := time.Now()
	s.now = func() time.Time { return now }

	c := s.acquire(1)
	c.conv = &Conversation{Flow: FlowAnime, Anime: &AnimeDraft{}}
	s.release(1, c)

	if n := s.Sweep(); n != 0 {
		t.Errorf("fresh conversation evicted")
	}

	now = now.Add(2 * time.Minute)
	if n := s.Sweep(); n != 1 {
		t.Errorf("expected 1 eviction, got %d", n)
	}
	if s.Active() != 0 {
		t.Errorf("expected no active chats")
	}
}

func TestSweepSkipsInFlightChats(t *testing.T) {
	s := NewSessions(time.Minute)
	now := time.Now()
	s.now = func() time.Time { return now }

	c := s.acquire(1)
	c.conv = &Conversation{Flow: FlowAnime, Anime: &AnimeDraft{}}
	now = now.Add(time.Hour)

	if n := s.Sweep(); n != 0 {
		t.Errorf("in-flight chat evicted")
	}
	s.release(1, c)
	if s.Active() != 1 {
		t.Errorf("expected chat to remain after release")
	}
}

func TestAcquireEvictsLazily(t *testing.T) {
	s := NewSessions(time.Minute)
	now := time.Now()
	s.now = func() time.Time { return now }

	c := s.acquire(1)
	c.conv = &Conversation{Flow: FlowAnime, Anime: &AnimeDraft{}}
	s.release(1, c)

	now = now.Add(2 * time.Minute)
	c = s.acquire(1)
	if c.conv != nil {
		t.Errorf("expected stale conversation to be dropped on access")
	}
	s.release(1, c)
	if s.Active() != 0 {
		t.Errorf("expected empty chat entry to be removed")
	}
}

func TestAcquireSerializesPerChat(t *testing.T) {
	s := NewSessions(time.Minute)
	var wg sync.WaitGroup
	counter := 0

	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			c := s.acquire(9)
			if c.conv == nil {
				c.conv = &Conversation{Flow: FlowEpisode, Episode: &EpisodeDraft{}}
			}
			counter++
			s.release(9, c)
		}()
	}
	wg.Wait()

	if counter != 50 {
		t.Errorf("expected 50 serialized increments, got %d", counter)
	}
	if s.Active() != 1 {
		t.Errorf("expected a single chat entry, got %d", s.Active())
	}
}

func TestActiveConversationsGauge(t *testing.T) {
	s := NewSessions(time.Minute)
	now := time.Now()
	s.now = func() time.Time { return now }
	gauge := func() float64 { return testutil.ToFloat64(metrics.BotActiveConversations) }

	c := s.acquire(1)
	if got := gauge(); got != 1 {
		t.Errorf("expected gauge 1 while handling, got %v", got)
	}
	c.conv = &Conversation{Flow: FlowAnime, Anime: &AnimeDraft{}}
	s.release(1, c)
	if got := gauge(); got != 1 {
		t.Errorf("expected gauge 1 with an open draft, got %v", got)
	}

	c = s.acquire(1)
	c.conv = nil
	s.release(1, c)
	if got := gauge(); got != 0 {
		t.Errorf("expected gauge 0 after the draft closed, got %v", got)
	}

	c = s.acquire(2)
	c.conv = &Conversation{Flow: FlowEpisode, Episode: &EpisodeDraft{}}
	s.release(2, c)
	now = now.Add(2 * time.Minute)
	c = s.acquire(2)
	s.release(2, c)
	if got := gauge(); got != 0 {
		t.Errorf("expected gauge 0 after lazy eviction, got %v", got)
	}
}
