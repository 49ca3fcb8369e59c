package db

import (
	"context"
	"fmt"

	"farm-alert-service/internal/models"
)

// SaveDeliveryRecord appends one delivery attempt to the archive. The
// in-memory history is authoritative; this sink exists for dashboard
// queries that outlive the process.
func (d *DB) SaveDeliveryRecord(ctx context.Context, rec models.DeliveryRecord) error {
	query := `
        INSERT INTO delivery_records (
            id, alert_id, recipient_id, channel, status, error, sent_at
        )
        VALUES ($1, $2, $3, $4, $5, $6, $7)`
	_, err := d.Pool.Exec(ctx, query,
		rec.ID, rec.AlertID, rec.RecipientID, string(rec.Channel),
		string(rec.Status), rec.Error, rec.SentAt)
	if err != nil {
		return fmt.Errorf("failed to save delivery record: %w", err)
	}
	return nil
}

// SaveAlert archives one alert as created.
func (d *DB) SaveAlert(ctx context.Context, a models.Alert) error {
	query := `
        INSERT INTO alerts (
            id, farm_id, type, severity, title, description, affected_area,
            start_time, end_time, status, created_at
        )
        VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)`
	_, err := d.Pool.Exec(ctx, query,
		a.ID, a.FarmID, string(a.Type), string(a.Severity), a.Title,
		a.Description, a.AffectedArea, a.StartTime, a.EndTime,
		string(a.Status), a.CreatedAt)
	if err != nil {
		return fmt.Errorf("failed to save alert: %w", err)
	}
	return nil
}

// GetDeliveryRecords reads archived delivery attempts for an alert,
// optionally narrowed to one recipient, oldest first.
func (d *DB) GetDeliveryRecords(ctx context.Context, alertID, recipientID string) ([]models.DeliveryRecord, error) {
	query := `
        SELECT id, alert_id, recipient_id, channel, status, error, sent_at
        FROM delivery_records
        WHERE alert_id = $1 AND ($2 = '' OR recipient_id = $2)
        ORDER BY sent_at ASC`
	rows, err := d.Pool.Query(ctx, query, alertID, recipientID)
	if err != nil {
		return nil, fmt.Errorf("failed to get delivery records for alert %s: %w", alertID, err)
	}
	defer rows.Close()

	var records []models.DeliveryRecord
	for rows.Next() {
		var rec models.DeliveryRecord
		var channel, status string
		if err := rows.Scan(&rec.ID, &rec.AlertID, &rec.RecipientID, &channel, &status, &rec.Error, &rec.SentAt); err != nil {
			return nil, fmt.Errorf("failed to scan delivery record: %w", err)
		}
		rec.Channel = models.Channel(channel)
		rec.Status = models.DeliveryStatus(status)
		records = append(records, rec)
	}
	return records, rows.Err()
}
