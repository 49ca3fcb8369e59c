package dispatch

import (
	"context"
	"testing"

	"farm-alert-service/internal/alerts"
	"farm-alert-service/internal/logging"
	"farm-alert-service/internal/models"
)

// The full path: a sub-zero reading raises a critical frost alert, which
// fans out to a recipient subscribed to frost at high-or-worse over push
// and email.
func TestPipeline_ReadingToDelivery(t *testing.T) {
	push := &recorder{}
	email := &recorder{}
	d := newTestDispatcher(map[models.Channel]SendFunc{
		models.ChannelPush:  push.send,
		models.ChannelEmail: email.send,
	})
	d.Subscribe("r1", models.SubscriptionSpec{
		AlertTypes:  []models.AlertType{models.AlertFrost},
		Channels:    []models.Channel{models.ChannelPush, models.ChannelEmail},
		MinSeverity: models.SeverityHigh,
	})

	engine := alerts.NewEngine(alerts.NewStore(), logging.NewNop())
	engine.OnCreated = func(a models.Alert) {
		d.SendAlert(context.Background(), a, d.Recipients())
	}

	temp := -6.0
	created := engine.CreateFromReading("farm-1", models.Reading{
		Temperature: &temp,
		Location:    "North Field",
	})

	if len(created) != 1 {
		t.Fatalf("reading produced %d alerts, want 1", len(created))
	}
	alert := created[0]
	if alert.Type != models.AlertFrost || alert.Severity != models.SeverityCritical {
		t.Fatalf("alert = %s/%s, want frost/critical", alert.Type, alert.Severity)
	}
	if alert.AffectedArea != "North Field" {
		t.Errorf("affected area = %q, want North Field", alert.AffectedArea)
	}

	records := d.History(alert.ID, "r1")
	if len(records) != 2 {
		t.Fatalf("recipient got %d delivery records, want 2", len(records))
	}
	wantChannels := []models.Channel{models.ChannelPush, models.ChannelEmail}
	for i, rec := range records {
		if rec.Channel != wantChannels[i] {
			t.Errorf("record %d channel = %s, want %s", i, rec.Channel, wantChannels[i])
		}
		if rec.Status != models.DeliverySent {
			t.Errorf("record %d status = %s, want sent", i, rec.Status)
		}
	}
}
