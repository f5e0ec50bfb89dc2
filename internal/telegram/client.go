// Package telegram adapts the Bot API to the conversation layer.
package telegram

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/gabriel-vasile/mimetype"
	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/sirupsen/logrus"

	"pdfbot/internal/config"
	"pdfbot/internal/conversation"
	"pdfbot/internal/executor"
	"pdfbot/internal/models"
)

var (
	ErrNotPDF       = errors.New("file is not a pdf")
	ErrFileTooLarge = errors.New("file exceeds download limit")
)

// DefaultMaxFileBytes is the Bot API download cap.
const DefaultMaxFileBytes = 20 << 20

// botAPI is the subset of *tgbotapi.BotAPI the client talks to.
type botAPI interface {
	Send(c tgbotapi.Chattable) (tgbotapi.Message, error)
	Request(c tgbotapi.Chattable) (*tgbotapi.APIResponse, error)
	GetFileDirectURL(fileID string) (string, error)
}

// Client sends messages and documents and downloads attachments.
type Client struct {
	bot      botAPI
	http     *http.Client
	maxBytes int64
	logger   logrus.FieldLogger
}

// Dial authenticates against the Bot API.
func Dial(cfg config.TelegramConfig) (*tgbotapi.BotAPI, error) {
	bot, err := tgbotapi.NewBotAPI(cfg.Token)
	if err != nil {
		return nil, fmt.Errorf("telegram login: %w", err)
	}
	bot.Debug = cfg.Debug
	return bot, nil
}

func NewClient(bot botAPI, maxBytes int64, logger logrus.FieldLogger) *Client {
	if maxBytes <= 0 {
		maxBytes = DefaultMaxFileBytes
	}
	if logger == nil {
		logger = logrus.StandardLogger()
	}
	return &Client{
		bot:      bot,
		http:     &http.Client{Timeout: 2 * time.Minute},
		maxBytes: maxBytes,
		logger:   logger,
	}
}

func (c *Client) SendText(ctx context.Context, chatID int64, text string, kb conversation.Keyboard) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	msg := tgbotapi.NewMessage(chatID, text)
	if m := markup(kb); m != nil {
		msg.ReplyMarkup = *m
	}
	_, err := c.bot.Send(msg)
	return err
}

func (c *Client) EditText(ctx context.Context, chatID int64, messageID int, text string, kb conversation.Keyboard) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	var edit tgbotapi.EditMessageTextConfig
	if m := markup(kb); m != nil {
		edit = tgbotapi.NewEditMessageTextAndMarkup(chatID, messageID, text, *m)
	} else {
		edit = tgbotapi.NewEditMessageText(chatID, messageID, text)
	}
	_, err := c.bot.Send(edit)
	return err
}

func (c *Client) SendDocument(ctx context.Context, chatID int64, doc executor.Document) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	_, err := c.bot.Send(tgbotapi.NewDocument(chatID, tgbotapi.FileBytes{Name: doc.Name, Bytes: doc.Data}))
	if err != nil {
		return fmt.Errorf("send %s: %w", doc.Name, err)
	}
	return nil
}

// AnswerCallback stops the client-side spinner on a pressed button.
func (c *Client) AnswerCallback(callbackID string) error {
	_, err := c.bot.Request(tgbotapi.NewCallback(callbackID, ""))
	return err
}

// Fetch downloads the attachment and checks that the bytes really are a PDF.
func (c *Client) Fetch(ctx context.Context, att models.Attachment) ([]byte, error) {
	if att.Size > c.maxBytes {
		return nil, fmt.Errorf("%w: %s is %d bytes", ErrFileTooLarge, att.FileName, att.Size)
	}
	url, err := c.bot.GetFileDirectURL(att.FileID)
	if err != nil {
		return nil, fmt.Errorf("resolve file: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, err
	}
	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("download: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("download: unexpected status %s", resp.Status)
	}

	data, err := io.ReadAll(io.LimitReader(resp.Body, c.maxBytes+1))
	if err != nil {
		return nil, fmt.Errorf("download: %w", err)
	}
	if int64(len(data)) > c.maxBytes {
		return nil, fmt.Errorf("%w: %s", ErrFileTooLarge, att.FileName)
	}
	if mt := mimetype.Detect(data); !mt.Is(models.MimePDF) {
		return nil, fmt.Errorf("%w: %s detected as %s", ErrNotPDF, att.FileName, mt.String())
	}
	c.logger.WithFields(logrus.Fields{"file": att.FileName, "bytes": len(data)}).Debug("attachment downloaded")
	return data, nil
}

func markup(kb conversation.Keyboard) *tgbotapi.InlineKeyboardMarkup {
	if len(kb) == 0 {
		return nil
	}
	rows := make([][]tgbotapi.InlineKeyboardButton, 0, len(kb))
	for _, row := range kb {
		buttons := make([]tgbotapi.InlineKeyboardButton, 0, len(row))
		for _, b := range row {
			buttons = append(buttons, tgbotapi.NewInlineKeyboardButtonData(b.Text, b.Token))
		}
		rows = append(rows, tgbotapi.NewInlineKeyboardRow(buttons...))
	}
	m := tgbotapi.NewInlineKeyboardMarkup(rows...)
	return &m
}
