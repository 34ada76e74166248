package notificator

import (
	"context"

	"github.com/go-telegram/bot"

	"github.com/core-coin/fortuna/pkg/logger"
)

// TelegramNotificator posts winner announcements to a fixed chat.
type TelegramNotificator struct {
	logger *logger.Logger
	bot    *bot.Bot
	chatID string
}

func NewTelegramNotificator(logger *logger.Logger, token, chatID string) *TelegramNotificator {
	b, err := bot.New(token)
	if err != nil {
		panic(err)
	}

	return &TelegramNotificator{
		logger: logger,
		bot:    b,
		chatID: chatID,
	}
}

func (t *TelegramNotificator) SendNotification(message string) {
	params := &bot.SendMessageParams{
		ChatID: t.chatID,
		Text:   message,
	}
	_, err := t.bot.SendMessage(context.Background(), params)
	if err != nil {
		t.logger.Error("Failed to send notification: ", err)
	}
}
