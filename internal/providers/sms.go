package providers

import (
	"context"
	"encoding/json"
	"fmt"

	"farm-alert-service/internal/config"
	"farm-alert-service/internal/dispatch"
	"farm-alert-service/internal/models"
	"farm-alert-service/pkg/sms"
)

type smsConfig struct {
	PhoneNumber string `json:"phone_number"`
}

// NewSMS returns the SMS channel send function, backed by Twilio.
func NewSMS(cfg config.Config) dispatch.SendFunc {
	return func(ctx context.Context, alert models.Alert, sub models.Subscription) error {
		var sCfg smsConfig
		raw, err := json.Marshal(sub.Config)
		if err != nil {
			return fmt.Errorf("failed to marshal configuration for recipient %s: %w", sub.RecipientID, err)
		}
		if err := json.Unmarshal(raw, &sCfg); err != nil {
			return fmt.Errorf("invalid SMS configuration for recipient %s: %w", sub.RecipientID, err)
		}
		if sCfg.PhoneNumber == "" {
			return fmt.Errorf("phone_number not set in configuration for recipient %s", sub.RecipientID)
		}

		if cfg.SMS.AccountSID == "" || cfg.SMS.AuthToken == "" || cfg.SMS.FromNumber == "" {
			return fmt.Errorf("missing SMS configuration: AccountSID, AuthToken, or FromNumber is empty")
		}

		body := fmt.Sprintf("%s: %s", alert.Title, alert.Description)
		return sms.Send(cfg.SMS.AccountSID, cfg.SMS.AuthToken, cfg.SMS.FromNumber, sCfg.PhoneNumber, body)
	}
}
