package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"

	"pdfbot/internal/api"
	"pdfbot/internal/batch"
	"pdfbot/internal/conversation"
	"pdfbot/internal/engine"
	"pdfbot/internal/executor"
	"pdfbot/internal/models"
	"pdfbot/internal/redis"
	"pdfbot/internal/service/journal"
	"pdfbot/internal/session"
	"pdfbot/internal/storage"
	"pdfbot/internal/telegram"
	"pdfbot/internal/worker"
)

const (
	shutdownTimeout = 30 * time.Second
	updateDedupeTTL = 24 * time.Hour
)

func runServe(ctx context.Context) error {
	cfg, logger, err := bootstrap()
	if err != nil {
		return err
	}

	bot, err := telegram.Dial(cfg.Telegram)
	if err != nil {
		return err
	}
	logger.WithField("bot", bot.Self.UserName).Info("authorized")
	client := telegram.NewClient(bot, cfg.Telegram.MaxFileBytes, logger.WithField("component", "telegram"))

	var records *journal.Service
	if cfg.Journal.Enabled() {
		db, err := storage.Open(cfg.Journal.Driver, cfg)
		if err != nil {
			return fmt.Errorf("open journal: %w", err)
		}
		defer db.Close()
		if err := storage.Migrate(db, cfg.Journal.Driver); err != nil {
			return fmt.Errorf("migrate journal: %w", err)
		}
		records = journal.NewService(db, logger.WithField("component", "journal"))
	}

	var cache *redis.Client
	if cfg.Redis.Enabled {
		cache, err = redis.NewRedisClient(cfg)
		if err != nil {
			return fmt.Errorf("create redis client: %w", err)
		}
		defer cache.Close()
	}

	exec := executor.New(engine.New(), client, cfg.Render.DPI, logger.WithField("component", "executor"))
	store := session.NewStore()
	batches := batch.NewAggregator(cfg.Batch.QuietWindow(), nil, logger.WithField("component", "batch"))
	machine := conversation.NewMachine(store, batches, exec, client, logger.WithField("component", "conversation"))
	if records != nil {
		machine.SetRecorder(records)
	}

	dispatcher := worker.NewDispatcher(worker.DispatcherConfig{
		MinWorkers:  cfg.Worker.MinWorkers,
		MaxWorkers:  cfg.Worker.MaxWorkers,
		QueueSize:   cfg.Worker.QueueSize,
		IdleTimeout: cfg.Worker.IdleTimeout(),
	}, machine, logger.WithField("component", "worker"))

	// a closed batch re-enters the chat's queue behind anything already pending
	batches.SetCloseFunc(func(key batch.Key, members []models.Attachment) {
		ev := conversation.Event{
			Kind:    conversation.EventBatchReady,
			ChatID:  key.ChatID,
			BatchID: key.BatchID,
			Batch:   members,
		}
		if err := dispatcher.Submit(ctx, ev); err != nil {
			logger.WithError(err).WithFields(logrus.Fields{
				"chat_id":  key.ChatID,
				"batch_id": key.BatchID,
			}).Warn("closed batch dropped")
		}
	})

	receiver := telegram.NewReceiver(dispatcher, client, logger.WithField("component", "receiver"))
	deps := api.Deps{
		Sessions:      store,
		Dispatcher:    dispatcher,
		Batches:       batches,
		WebhookSecret: cfg.Telegram.WebhookSecret,
		AdminToken:    cfg.Admin.APIToken,
		Logger:        logger.WithField("component", "api"),
	}
	if records != nil {
		deps.Journal = records
	}
	if cache != nil {
		receiver.SetDeduper(redis.NewUpdateGuard(cache, updateDedupeTTL))
		deps.Cache = cache
	}
	if cfg.Telegram.Webhook() {
		deps.Updates = receiver
	}

	if logger.IsLevelEnabled(logrus.DebugLevel) {
		gin.SetMode(gin.DebugMode)
	} else {
		gin.SetMode(gin.ReleaseMode)
	}
	router := gin.New()
	router.Use(gin.Recovery())
	api.NewHandler(deps).RegisterRoutes(router)
	server := &http.Server{Addr: cfg.BasicConfig.ServerAddress, Handler: router}

	if cfg.Telegram.Webhook() {
		hook := strings.TrimRight(cfg.Telegram.WebhookURL, "/") + "/telegram/webhook/" + cfg.Telegram.WebhookSecret
		if err := telegram.RegisterWebhook(bot, hook); err != nil {
			return err
		}
		logger.Info("webhook registered")
	} else if err := telegram.RegisterWebhook(bot, ""); err != nil {
		logger.WithError(err).Warn("clearing webhook failed")
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		logger.WithField("addr", server.Addr).Info("http server listening")
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("http server: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		return server.Shutdown(shutdownCtx)
	})

	if !cfg.Telegram.Webhook() {
		g.Go(func() error {
			return receiver.Poll(gctx, bot, cfg.Telegram.PollTimeoutSeconds)
		})
	}

	if records != nil {
		g.Go(func() error {
			return records.RunCleaner(gctx, cfg.Journal.CleanInterval(), cfg.Journal.Retention())
		})
	}

	err = g.Wait()

	batches.Stop()
	stopCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if serr := dispatcher.Stop(stopCtx); serr != nil {
		logger.WithError(serr).Warn("dispatcher did not drain")
	}
	logger.Info("stopped")
	return err
}
