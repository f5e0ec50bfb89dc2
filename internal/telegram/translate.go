package telegram

import (
	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"pdfbot/internal/conversation"
	"pdfbot/internal/models"
)

// Translate turns a Bot API update into a conversation event. Updates that do
// not belong to a chat report false.
func Translate(u tgbotapi.Update) (conversation.Event, bool) {
	if cq := u.CallbackQuery; cq != nil {
		if cq.Message == nil || cq.Message.Chat == nil {
			return conversation.Event{}, false
		}
		return conversation.Event{
			Kind:      conversation.EventButton,
			ChatID:    cq.Message.Chat.ID,
			MessageID: cq.Message.MessageID,
			Token:     cq.Data,
		}, true
	}

	msg := u.Message
	if msg == nil || msg.Chat == nil {
		return conversation.Event{}, false
	}
	ev := conversation.Event{ChatID: msg.Chat.ID}
	switch {
	case msg.Document != nil:
		ev.Kind = conversation.EventAttachment
		ev.Attachment = &models.Attachment{
			FileID:   msg.Document.FileID,
			FileName: msg.Document.FileName,
			MimeType: msg.Document.MimeType,
			Size:     int64(msg.Document.FileSize),
		}
		ev.BatchID = msg.MediaGroupID
	case msg.IsCommand():
		ev.Kind = conversation.EventCommand
		ev.Command = msg.Command()
	case msg.Text != "":
		ev.Kind = conversation.EventText
		ev.Text = msg.Text
	default:
		// photos, stickers, voice and the rest
		ev.Kind = conversation.EventUnsupported
	}
	return ev, true
}
