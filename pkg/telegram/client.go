// Package telegram wraps the Bot API calls the server makes on its own:
// webhook registration at startup and user notifications.
package telegram

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"strings"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
)

var ErrNoToken = errors.New("telegram: bot token not configured")

// Client sends messages through the Bot API.
type Client struct {
	bot    *tgbotapi.BotAPI
	logger *slog.Logger
}

// New authenticates against the Bot API with token.
func New(token string, logger *slog.Logger) (*Client, error) {
	if strings.TrimSpace(token) == "" {
		return nil, ErrNoToken
	}

	bot, err := tgbotapi.NewBotAPI(token)
	if err != nil {
		return nil, fmt.Errorf("telegram: connect bot api: %w", err)
	}

	logger.Info("telegram bot connected", slog.String("username", bot.Self.UserName))
	return &Client{bot: bot, logger: logger}, nil
}

// RegisterWebhook points the bot's updates at url, skipping the call when it is already set.
func (c *Client) RegisterWebhook(url string) error {
	info, err := c.bot.GetWebhookInfo()
	if err == nil && info.URL == url {
		return nil
	}

	wh, err := tgbotapi.NewWebhook(url)
	if err != nil {
		return fmt.Errorf("telegram: build webhook: %w", err)
	}

	if _, err := c.bot.Request(wh); err != nil {
		return fmt.Errorf("telegram: set webhook: %w", err)
	}

	c.logger.Info("telegram webhook registered", slog.String("url", url))
	return nil
}

// Notify sends a plain text message to the user with the given Telegram id.
func (c *Client) Notify(ctx context.Context, telegramID string, text string) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	chatID, err := strconv.ParseInt(telegramID, 10, 64)
	if err != nil {
		return fmt.Errorf("telegram: invalid chat id %q: %w", telegramID, err)
	}

	if _, err := c.bot.Send(tgbotapi.NewMessage(chatID, text)); err != nil {
		return fmt.Errorf("telegram: send message: %w", err)
	}
	return nil
}
