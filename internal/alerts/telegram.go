package alerts

import (
	"context"
	"fmt"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/sirupsen/logrus"

	"github.com/gruzztop/gruzztop/internal/config"
)

// Telegram rejects messages longer than this many characters.
const telegramMaxText = 4096

// Sender delivers text to the admin chat.
type Sender interface {
	Send(ctx context.Context, text string) error
}

type TelegramSender struct {
	log    *logrus.Logger
	api    *tgbotapi.BotAPI
	chatID int64
}

// NewTelegramSender connects to the Bot API. Without a token or chat id the
// sender only logs what it would have sent.
func NewTelegramSender(cfg config.TelegramConfig, log *logrus.Logger) (*TelegramSender, error) {
	s := &TelegramSender{log: log, chatID: cfg.AdminChatID}
	if cfg.BotToken == "" || cfg.AdminChatID == 0 {
		log.Warn("telegram relay disabled: bot token or admin chat id not set")
		return s, nil
	}
	api, err := tgbotapi.NewBotAPI(cfg.BotToken)
	if err != nil {
		return nil, fmt.Errorf("telegram bot init: %w", err)
	}
	api.Debug = false
	s.api = api
	log.WithField("bot", api.Self.UserName).Info("telegram relay ready")
	return s, nil
}

func (s *TelegramSender) Send(_ context.Context, text string) error {
	text = truncate(text, telegramMaxText)
	if s.api == nil {
		s.log.WithField("text", text).Info("telegram relay dropped")
		return nil
	}
	msg := tgbotapi.NewMessage(s.chatID, text)
	msg.DisableWebPagePreview = true
	if _, err := s.api.Send(msg); err != nil {
		return fmt.Errorf("telegram send: %w", err)
	}
	return nil
}

func truncate(s string, max int) string {
	r := []rune(s)
	if len(r) <= max {
		return s
	}
	return string(r[:max-3]) + "..."
}
