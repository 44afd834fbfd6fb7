package telegram

import (
	"context"
	"fmt"
	"os"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"github.com/harun/pdfbot/internal/tracing"
	"github.com/harun/pdfbot/pkg/dispatcher"
)

const (
	msgNotAllowed  = "⛔ You are not allowed to use this bot."
	msgUnsupported = "⚠️ Please send a photo, a document or a command. Type /help for details."
	msgSendFailed  = "❌ Failed to send the result. Please try again."
)

// handleUpdate routes one update to the dispatcher and renders the reply.
// It runs inside the lane of the update's chat.
func (b *Bot) handleUpdate(ctx context.Context, update tgbotapi.Update) error {
	chat := update.FromChat()
	if chat == nil {
		return nil
	}
	logger := tracing.LoggerFromContext(ctx, b.logger).With().Int64("chat_id", chat.ID).Logger()

	if from := update.SentFrom(); !b.isAllowed(from) {
		logger.Warn().Msg("Update from user outside the allowlist")
		var userID int64
		if from != nil {
			userID = from.ID
		}
		b.audit.RecordAccessDenied(ctx, userID, chat.ID)
		if update.CallbackQuery != nil {
			b.answerCallback(update.CallbackQuery.ID)
		}
		return b.SendMessage(chat.ID, msgNotAllowed)
	}

	conv := conversationID(chat.ID)

	if cq := update.CallbackQuery; cq != nil {
		b.answerCallback(cq.ID)
		logger.Debug().Str("data", cq.Data).Msg("Menu selection received")
		return b.render(ctx, chat.ID, b.dispatcher.SelectOperation(ctx, conv, cq.Data))
	}

	msg := update.Message
	if msg == nil {
		return nil
	}

	switch {
	case msg.IsCommand():
		return b.commands.HandleCommand(ctx, msg)

	case len(msg.Photo) > 0 || msg.Document != nil:
		up, ok := b.uploadFrom(msg)
		if !ok {
			return b.SendMessage(chat.ID, msgUnsupported)
		}
		logger.Debug().
			Str("kind", string(up.Kind)).
			Int64("size", up.Size).
			Msg("Upload received")
		return b.render(ctx, chat.ID, b.dispatcher.ReceiveFile(ctx, conv, up))

	case msg.Text != "":
		return b.render(ctx, chat.ID, b.dispatcher.ReceiveText(ctx, conv, msg.Text))

	default:
		return b.SendMessage(chat.ID, msgUnsupported)
	}
}

// render delivers a dispatcher reply. A result file is sent as a document
// followed by its text, then released whether or not delivery worked.
func (b *Bot) render(ctx context.Context, chatID int64, reply dispatcher.Reply) error {
	defer reply.Release()

	if reply.HasFile() {
		if err := b.sendDocument(chatID, reply.FilePath, reply.FileName); err != nil {
			logger := tracing.LoggerFromContext(ctx, b.logger)
			logger.Error().
				Err(err).
				Int64("chat_id", chatID).
				Msg("Failed to deliver result")
			if sendErr := b.SendMessage(chatID, msgSendFailed); sendErr != nil {
				return sendErr
			}
			return err
		}
	}

	if reply.Text == "" {
		return nil
	}
	if reply.Menu {
		return b.sendMenu(chatID, reply.Text)
	}
	return b.SendMessage(chatID, reply.Text)
}

// sendDocument uploads the file at path under name
func (b *Bot) sendDocument(chatID int64, path, name string) error {
	f, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("failed to open result: %w", err)
	}
	defer f.Close()

	doc := tgbotapi.NewDocument(chatID, tgbotapi.FileReader{Name: name, Reader: f})
	if err := b.send(doc); err != nil {
		return fmt.Errorf("failed to upload document: %w", err)
	}

	b.logger.Info().
		Int64("chat_id", chatID).
		Str("name", name).
		Msg("Document uploaded")
	return nil
}

// sendMenu sends text with the operation menu attached
func (b *Bot) sendMenu(chatID int64, text string) error {
	msg := tgbotapi.NewMessage(chatID, text)
	msg.ReplyMarkup = menuKeyboard()

	if err := b.send(msg); err != nil {
		return fmt.Errorf("failed to send menu: %w", err)
	}
	return nil
}

// answerCallback stops the client's button spinner
func (b *Bot) answerCallback(id string) {
	if _, err := b.api.Request(tgbotapi.NewCallback(id, "")); err != nil {
		b.logger.Debug().Err(err).Msg("Failed to answer callback")
	}
}

// menuKeyboard lays out one button per operation
func menuKeyboard() tgbotapi.InlineKeyboardMarkup {
	entries := dispatcher.Menu()
	rows := make([][]tgbotapi.InlineKeyboardButton, 0, len(entries))
	for _, e := range entries {
		rows = append(rows, tgbotapi.NewInlineKeyboardRow(
			tgbotapi.NewInlineKeyboardButtonData(e.Label, e.ID),
		))
	}
	return tgbotapi.NewInlineKeyboardMarkup(rows...)
}
