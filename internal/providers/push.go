package providers

import (
	"context"
	"fmt"

	"farm-alert-service/internal/dispatch"
	"farm-alert-service/internal/hub"
	"farm-alert-service/internal/models"
)

// NewPush returns the push channel send function, delivering through the
// live channel hub. A recipient with no attached connection counts as a
// failed delivery; the live notification is best-effort by design of the
// channel, but the record must say whether anyone could receive it.
func NewPush(h *hub.Hub) dispatch.SendFunc {
	return func(ctx context.Context, alert models.Alert, sub models.Subscription) error {
		if h.SendToRecipient(sub.RecipientID, hub.NotificationFromAlert(alert)) == 0 {
			return fmt.Errorf("recipient %s has no attached connection", sub.RecipientID)
		}
		return nil
	}
}
