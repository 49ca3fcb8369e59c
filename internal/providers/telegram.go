package providers

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/go-telegram/bot"
	"golang.org/x/time/rate"

	"farm-alert-service/internal/config"
	"farm-alert-service/internal/dispatch"
	"farm-alert-service/internal/logging"
	"farm-alert-service/internal/models"
	"farm-alert-service/internal/utils"
)

// telegramConfig holds bot token and chat ID from a subscription's config.
type telegramConfig struct {
	BotToken string `json:"bot_token"`
	ChatID   int64  `json:"chat_id"`
}

// NewTelegram returns the telegram channel send function. Sends share one
// rate limiter so a burst of alerts cannot trip the Bot API limits.
func NewTelegram(cfg config.Config, logger *logging.Logger) dispatch.SendFunc {
	limiter := rate.NewLimiter(rate.Limit(float64(cfg.RateLimit.TelegramPerSecond)), cfg.RateLimit.TelegramPerSecond)

	return func(ctx context.Context, alert models.Alert, sub models.Subscription) error {
		if err := limiter.Wait(ctx); err != nil {
			return fmt.Errorf("telegram rate limit exceeded: %w", err)
		}

		var tCfg telegramConfig
		raw, err := json.Marshal(sub.Config)
		if err != nil {
			return fmt.Errorf("failed to marshal configuration for recipient %s: %w", sub.RecipientID, err)
		}
		if err := json.Unmarshal(raw, &tCfg); err != nil {
			return fmt.Errorf("invalid Telegram configuration for recipient %s: %w", sub.RecipientID, err)
		}
		if tCfg.BotToken == "" {
			return fmt.Errorf("missing bot_token in Telegram configuration for recipient %s", sub.RecipientID)
		}
		if tCfg.ChatID == 0 {
			return fmt.Errorf("missing chat_id in Telegram configuration for recipient %s", sub.RecipientID)
		}

		text := fmt.Sprintf(
			"*%s*\n%s\n\n*Area:* %s\n*Severity:* %s\n*Started:* %s",
			alert.Title,
			alert.Description,
			alert.AffectedArea,
			alert.Severity,
			alert.StartTime.Format("2006-01-02 15:04"),
		)

		return utils.Retry(logger, 3, time.Second, func() error {
			b, err := bot.New(tCfg.BotToken)
			if err != nil {
				return fmt.Errorf("failed to initialize Telegram bot for recipient %s: %w", sub.RecipientID, err)
			}
			params := &bot.SendMessageParams{
				ChatID:    tCfg.ChatID,
				Text:      text,
				ParseMode: "Markdown",
			}
			if _, err := b.SendMessage(ctx, params); err != nil {
				return fmt.Errorf("failed to send Telegram message to chat_id %d: %w", tCfg.ChatID, err)
			}
			return nil
		})
	}
}
