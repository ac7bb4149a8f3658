// Package notify delivers composed notifications over Telegram.
package notify

import (
	"fmt"
	"log/slog"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"feedwatch/internal/model"
)

type telegramAPI interface {
	Send(c tgbotapi.Chattable) (tgbotapi.Message, error)
}

// Telegram sends notifications to a Telegram chat.
type Telegram struct {
	api       telegramAPI
	chatID    int64
	log       *slog.Logger
	rateLimit time.Duration
}

// NewTelegram creates a sender delivering to the given default chat.
func NewTelegram(token string, chatID int64, log *slog.Logger) (*Telegram, error) {
	api, err := tgbotapi.NewBotAPI(token)
	if err != nil {
		return nil, fmt.Errorf("create bot api: %w", err)
	}
	return newTelegram(api, chatID, log), nil
}

func newTelegram(api telegramAPI, chatID int64, log *slog.Logger) *Telegram {
	return &Telegram{
		api:    api,
		chatID: chatID,
		log:    log,
		// Telegram allows roughly 20 messages per second.
		rateLimit: 50 * time.Millisecond,
	}
}

// Send delivers one notification. A non-zero destination on the notification
// overrides the default chat.
func (t *Telegram) Send(n model.Notification) error {
	chatID := t.chatID
	if n.Destination != 0 {
		chatID = n.Destination
	}

	msg := tgbotapi.NewMessage(chatID, Format(n))
	msg.DisableWebPagePreview = true

	if _, err := t.api.Send(msg); err != nil {
		return fmt.Errorf("send message: %w", err)
	}
	time.Sleep(t.rateLimit)
	return nil
}
