package notify

import (
	"context"
	"fmt"
	"strings"

	tele "gopkg.in/telebot.v4"
)

// Telegram rejects messages longer than this many UTF-16 units; we cut by
// runes, which is stricter.
const telegramMaxText = 4096

// TelegramConfig configures the Telegram channel.
type TelegramConfig struct {
	Token    string
	ChatID   int64
	ThreadID int
}

type telegramSender interface {
	Send(to tele.Recipient, what interface{}, opts ...interface{}) (*tele.Message, error)
}

// TelegramChannel posts the body into one chat (optionally a forum topic).
type TelegramChannel struct {
	cfg TelegramConfig
	bot telegramSender
}

func NewTelegramChannel(cfg TelegramConfig) (*TelegramChannel, error) {
	if strings.TrimSpace(cfg.Token) == "" {
		return nil, fmt.Errorf("telegram: %w: token", ErrMissingField)
	}
	if cfg.ChatID == 0 {
		return nil, fmt.Errorf("telegram: %w: chat_id", ErrMissingField)
	}
	// Offline: send-only, no getMe round-trip or update polling.
	b, err := tele.NewBot(tele.Settings{Token: cfg.Token, Offline: true})
	if err != nil {
		return nil, fmt.Errorf("telegram: %w", err)
	}
	return &TelegramChannel{cfg: cfg, bot: b}, nil
}

func (c *TelegramChannel) Name() string { return "telegram" }

func (c *TelegramChannel) Send(ctx context.Context, _ string, body string) error {
	if body == "" {
		return ErrEmptyMessage
	}
	if r := []rune(body); len(r) > telegramMaxText {
		body = string(r[:telegramMaxText-3]) + "..."
	}
	opts := &tele.SendOptions{DisableWebPagePreview: true, ThreadID: c.cfg.ThreadID}

	done := make(chan error, 1)
	go func() {
		_, err := c.bot.Send(&tele.Chat{ID: c.cfg.ChatID}, body, opts)
		done <- err
	}()
	select {
	case err := <-done:
		if err != nil {
			return fmt.Errorf("telegram: %w", err)
		}
		return nil
	case <-ctx.Done():
		return fmt.Errorf("telegram: %w", ctx.Err())
	}
}
