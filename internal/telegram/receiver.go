package telegram

import (
	"context"
	"fmt"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/sirupsen/logrus"

	"pdfbot/internal/conversation"
)

// Deduper reports whether an update id is delivered for the first time.
// Satisfied by *redis.UpdateGuard.
type Deduper interface {
	FirstSeen(ctx context.Context, updateID int) (bool, error)
}

// Submitter queues events for processing. Satisfied by *worker.Dispatcher.
type Submitter interface {
	Submit(ctx context.Context, ev conversation.Event) error
}

type callbackAnswerer interface {
	AnswerCallback(callbackID string) error
}

type updateSource interface {
	GetUpdatesChan(cfg tgbotapi.UpdateConfig) tgbotapi.UpdatesChannel
	StopReceivingUpdates()
}

// Receiver feeds updates from polling or the webhook into the dispatcher.
type Receiver struct {
	submit Submitter
	answer callbackAnswerer
	dedupe Deduper
	logger logrus.FieldLogger
}

func NewReceiver(submit Submitter, answer callbackAnswerer, logger logrus.FieldLogger) *Receiver {
	if logger == nil {
		logger = logrus.StandardLogger()
	}
	return &Receiver{submit: submit, answer: answer, logger: logger}
}

// SetDeduper enables redelivery detection.
func (r *Receiver) SetDeduper(d Deduper) {
	r.dedupe = d
}

// Deliver processes one update. It blocks while the dispatcher queue is full.
func (r *Receiver) Deliver(ctx context.Context, u tgbotapi.Update) error {
	log := r.logger.WithField("update_id", u.UpdateID)
	if r.dedupe != nil {
		first, err := r.dedupe.FirstSeen(ctx, u.UpdateID)
		if err != nil {
			log.WithError(err).Warn("update dedupe unavailable")
		} else if !first {
			log.Debug("duplicate update skipped")
			return nil
		}
	}

	if u.CallbackQuery != nil && r.answer != nil {
		if err := r.answer.AnswerCallback(u.CallbackQuery.ID); err != nil {
			log.WithError(err).Debug("answer callback failed")
		}
	}

	ev, ok := Translate(u)
	if !ok {
		log.Debug("update ignored")
		return nil
	}
	if err := r.submit.Submit(ctx, ev); err != nil {
		return fmt.Errorf("submit update %d: %w", u.UpdateID, err)
	}
	return nil
}

// Poll long-polls for updates until ctx is done.
func (r *Receiver) Poll(ctx context.Context, src updateSource, timeoutSeconds int) error {
	cfg := tgbotapi.NewUpdate(0)
	cfg.Timeout = timeoutSeconds
	updates := src.GetUpdatesChan(cfg)
	defer src.StopReceivingUpdates()

	r.logger.WithField("timeout", timeoutSeconds).Info("long polling started")
	for {
		select {
		case <-ctx.Done():
			return nil
		case u, ok := <-updates:
			if !ok {
				return nil
			}
			if err := r.Deliver(ctx, u); err != nil {
				if ctx.Err() != nil {
					return nil
				}
				r.logger.WithError(err).Error("update not delivered")
			}
		}
	}
}

// RegisterWebhook points the bot at url, or clears the webhook when url is empty.
func RegisterWebhook(bot *tgbotapi.BotAPI, url string) error {
	if url == "" {
		_, err := bot.Request(tgbotapi.DeleteWebhookConfig{})
		return err
	}
	wh, err := tgbotapi.NewWebhook(url)
	if err != nil {
		return fmt.Errorf("webhook config: %w", err)
	}
	if _, err := bot.Request(wh); err != nil {
		return fmt.Errorf("set webhook: %w", err)
	}
	return nil
}
