package providers

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"farm-alert-service/internal/config"
	"farm-alert-service/internal/dispatch"
	"farm-alert-service/internal/models"
	"farm-alert-service/pkg/email"
)

type emailConfig struct {
	Email string `json:"email"`
}

// NewEmail returns the email channel send function. The recipient address
// comes from the subscription's config map.
func NewEmail(cfg config.Config) dispatch.SendFunc {
	return func(ctx context.Context, alert models.Alert, sub models.Subscription) error {
		var eCfg emailConfig
		raw, err := json.Marshal(sub.Config)
		if err != nil {
			return fmt.Errorf("failed to marshal configuration for recipient %s: %w", sub.RecipientID, err)
		}
		if err := json.Unmarshal(raw, &eCfg); err != nil {
			return fmt.Errorf("invalid email configuration for recipient %s: %w", sub.RecipientID, err)
		}
		if eCfg.Email == "" {
			return fmt.Errorf("email not set in configuration for recipient %s", sub.RecipientID)
		}

		if cfg.Email.SMTPServer == "" || cfg.Email.SMTPPort == 0 || cfg.Email.Username == "" || cfg.Email.Password == "" {
			return fmt.Errorf("missing email configuration: SMTPServer, SMTPPort, Username, or Password is empty")
		}

		subject := fmt.Sprintf("[%s] %s", strings.ToUpper(string(alert.Severity)), alert.Title)
		return email.Send(
			cfg.Email.SMTPServer,
			cfg.Email.SMTPPort,
			cfg.Email.Username,
			cfg.Email.Password,
			eCfg.Email,
			subject,
			composeBody(alert),
		)
	}
}

// composeBody renders the alert details shared by the text channels.
func composeBody(alert models.Alert) string {
	var b strings.Builder
	fmt.Fprintf(&b, "%s\nArea: %s\nSeverity: %s\nStarted: %s\n",
		alert.Description, alert.AffectedArea, alert.Severity, alert.StartTime.Format("2006-01-02 15:04"))
	if len(alert.RecommendedActions) > 0 {
		b.WriteString("\nRecommended actions:\n")
		for _, a := range alert.RecommendedActions {
			fmt.Fprintf(&b, "- %s\n", a)
		}
	}
	return b.String()
}
