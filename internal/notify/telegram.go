// Package notify delivers operator alerts for critical failures.
package notify

import (
	"context"
	"log/slog"

	"github.com/go-telegram/bot"
)

// Telegram sends alert messages to a single chat. It satisfies
// errlog.Notifier.
type Telegram struct {
	bot    *bot.Bot
	chatID int64
	log    *slog.Logger
}

// NewTelegram creates a notifier for the given bot token and chat.
func NewTelegram(token string, chatID int64, log *slog.Logger) (*Telegram, error) {
	b, err := bot.New(token, bot.WithSkipGetMe())
	if err != nil {
		return nil, err
	}
	if log == nil {
		log = slog.Default()
	}
	return &Telegram{bot: b, chatID: chatID, log: log}, nil
}

// Notify sends message to the configured chat.
func (t *Telegram) Notify(ctx context.Context, message string) error {
	_, err := t.bot.SendMessage(ctx, &bot.SendMessageParams{
		ChatID: t.chatID,
		Text:   message,
	})
	if err != nil {
		t.log.Error("telegram notify", slog.Any("err", err))
	}
	return err
}
