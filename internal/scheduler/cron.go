package scheduler

import (
	"context"
	"fmt"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/sirupsen/logrus"
)

// SessionPurger drops expired login sessions
type SessionPurger interface {
	Purge(ctx context.Context) (int, error)
}

// ConversationSweeper evicts idle bot conversations
type ConversationSweeper interface {
	Sweep() int
}

// Scheduler manages scheduled tasks
type Scheduler struct {
	cron     *cron.Cron
	sessions SessionPurger
	bot      ConversationSweeper
	logger   *logrus.Logger
}

// NewScheduler creates a new scheduler; bot may be nil when the bot is disabled
func NewScheduler(sessions SessionPurger, bot ConversationSweeper, logger *logrus.Logger) *Scheduler {
	return &Scheduler{
		cron:     cron.New(),
		sessions: sessions,
		bot:      bot,
		logger:   logger,
	}
}

// Start starts the scheduler
func (s *Scheduler) Start() error {
	s.logger.Info("Starting scheduler")

	// Every minute: evict idle bot conversations
	if s.bot != nil {
		if _, err := s.cron.AddFunc("@every 1m", s.runConversationSweep); err != nil {
			return fmt.Errorf("failed to add conversation sweep job: %w", err)
		}
	}

	// Every hour: purge expired sessions
	if _, err := s.cron.AddFunc("0 * * * *", s.runSessionPurge); err != nil {
		return fmt.Errorf("failed to add session purge job: %w", err)
	}

	s.cron.Start()
	s.logger.Info("Scheduler started")
	return nil
}

// Stop stops the scheduler and waits for running jobs
func (s *Scheduler) Stop() {
	s.logger.Info("Stopping scheduler")
	<-s.cron.Stop().Done()
}

// runSessionPurge executes the session purge job
func (s *Scheduler) runSessionPurge() {
	ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
	defer cancel()

	purged, err := s.sessions.Purge(ctx)
	if err != nil {
		s.logger.WithError(err).Error("Session purge job failed")
		return
	}
	if purged > 0 {
		s.logger.WithField("count", purged).Info("Purged expired sessions")
	}
}

// runConversationSweep executes the idle conversation sweep
func (s *Scheduler) runConversationSweep() {
	if evicted := s.bot.Sweep(); evicted > 0 {
		s.logger.WithField("count", evicted).Info("Evicted idle bot conversations")
	}
}
