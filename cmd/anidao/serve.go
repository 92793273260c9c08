package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"sync"
	"syscall"

	"github.com/anidao/anidao/internal/api"
	"github.com/anidao/anidao/internal/api/handlers"
	"github.com/anidao/anidao/internal/bot"
	"github.com/anidao/anidao/internal/config"
	"github.com/anidao/anidao/internal/controllers"
	"github.com/anidao/anidao/internal/scheduler"
	"github.com/anidao/anidao/internal/services/bunny"
	"github.com/anidao/anidao/internal/services/telegram"
	"github.com/anidao/anidao/internal/session"
	"github.com/anidao/anidao/internal/utils"
	"github.com/sirupsen/logrus"
)

func runServe(parent context.Context) error {
	// 1. Load configuration
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("failed to load configuration: %w", err)
	}

	// 2. Setup logger
	logger := utils.NewLogger(cfg.LogLevel)
	logger.Info("Starting ANI DAO")
	logger.WithFields(logrus.Fields{
		"config_dir":    filepath.Dir(cfg.DatabaseFile),
		"store":         cfg.StoreDriver,
		"session_store": cfg.SessionStore,
		"environment":   cfg.Environment,
	}).Info("Configuration loaded")

	ctx, cancel := context.WithCancel(parent)
	defer cancel()

	// 3. Initialize storage
	st, err := openStore(cfg, logger)
	if err != nil {
		return fmt.Errorf("failed to initialize store: %w", err)
	}
	defer st.Close()
	logger.Info("Store initialized")

	sessionStore, closeSessions, err := openSessionStore(ctx, cfg)
	if err != nil {
		return fmt.Errorf("failed to initialize session store: %w", err)
	}
	defer closeSessions()
	sessions := session.NewManager(sessionStore, cfg.Production(), logger)
	logger.Info("Session store initialized")

	// 4. Initialize controllers
	authCtrl := controllers.NewAuthController(st, sessions, cfg.TelegramBotToken, cfg.AdminTelegramID, logger)
	catalogCtrl := controllers.NewCatalogController(st, logger)
	activityCtrl := controllers.NewActivityController(st, logger)
	logger.Info("Controllers initialized")

	// 5. Initialize admin bot
	var (
		adminBot  *bot.Bot
		tgClient  *telegram.Client
		webhook   *handlers.WebhookHandler
		botErrors = make(chan error, 1)
		polling   sync.WaitGroup
	)
	if cfg.BotEnabled {
		tgClient, err = telegram.NewClient(cfg.TelegramBotToken, logger)
		if err != nil {
			return fmt.Errorf("failed to initialize Telegram client: %w", err)
		}

		var uploader bot.VideoUploader
		if cfg.BunnyEnabled() {
			bunnyClient, err := bunny.NewClient(cfg, logger)
			if err != nil {
				return fmt.Errorf("failed to initialize Bunny client: %w", err)
			}
			uploader = bunnyClient
			logger.Info("Bunny Stream uploads enabled")
		} else {
			logger.WithField("placeholder", cfg.VideoPlaceholderURL).Warn("Bunny Stream not configured, episodes will use the placeholder video")
		}

		media := bot.NewMediaPipeline(tgClient, uploader, cfg.VideoPlaceholderURL, logger)
		adminBot = bot.New(st, tgClient, media, bot.NewSessions(cfg.BotIdleTimeout), cfg.AdminTelegramID, logger)

		if cfg.BotMode == "webhook" {
			if err := tgClient.SetWebhook(cfg.BotWebhookURL, cfg.BotWebhookSecret); err != nil {
				return err
			}
			webhook = handlers.NewWebhookHandler(cfg.BotWebhookSecret, adminBot, logger)
		} else {
			polling.Add(1)
			go func() {
				defer polling.Done()
				if err := tgClient.Poll(ctx, adminBot); err != nil {
					botErrors <- err
				}
			}()
		}
		logger.WithField("mode", cfg.BotMode).Info("Admin bot initialized")
	}
	// Runs before the store closes. Poll returns once its in-flight handlers
	// finish; webhook handlers are detached from request contexts.
	defer func() {
		cancel()
		polling.Wait()
		if webhook != nil {
			webhook.Wait()
		}
		logger.Info("Admin bot stopped")
	}()

	// 6. Initialize scheduler
	var sweeper scheduler.ConversationSweeper
	if adminBot != nil {
		sweeper = adminBot.Sessions()
	}
	sched := scheduler.NewScheduler(sessions, sweeper, logger)
	if err := sched.Start(); err != nil {
		return fmt.Errorf("failed to start scheduler: %w", err)
	}
	defer sched.Stop()

	// 7. Initialize HTTP server
	deps := api.Deps{
		Store:    st,
		Sessions: sessions,
		Auth:     authCtrl,
		Catalog:  catalogCtrl,
		Activity: activityCtrl,
	}
	if webhook != nil {
		deps.Webhook = webhook
	}
	server := api.NewServer(cfg, deps, logger)

	serverDone := make(chan error, 1)
	go func() {
		serverDone <- server.Start(ctx)
	}()

	// 8. Wait for shutdown signal
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)

	logger.Info("ANI DAO is running")

	// Start shuts the server down itself once ctx is cancelled
	select {
	case err := <-serverDone:
		if err != nil {
			return fmt.Errorf("server error: %w", err)
		}
	case err := <-botErrors:
		cancel()
		if err := <-serverDone; err != nil {
			logger.WithError(err).Error("Error during server shutdown")
		}
		return fmt.Errorf("bot error: %w", err)
	case sig := <-sigChan:
		logger.WithField("signal", sig).Info("Received shutdown signal")
		cancel()
		if err := <-serverDone; err != nil {
			logger.WithError(err).Error("Error during server shutdown")
		}
	}
	logger.Info("ANI DAO stopped")
	return nil
}

func runMigrate() error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("failed to load configuration: %w", err)
	}
	logger := utils.NewLogger(cfg.LogLevel)

	switch cfg.StoreDriver {
	case "sqlite", "postgres":
	default:
		logger.WithField("store", cfg.StoreDriver).Info("Store has no schema to migrate")
		return nil
	}

	st, err := openSQLStore(cfg, logger)
	if err != nil {
		return fmt.Errorf("failed to open database: %w", err)
	}
	defer st.Close()

	if err := st.Migrate(); err != nil {
		return err
	}
	logger.WithField("store", cfg.StoreDriver).Info("Schema migrated")
	return nil
}
