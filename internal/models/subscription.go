package models

import "time"

// Channel is a notification transport.
type Channel string

const (
	ChannelPush     Channel = "push"
	ChannelEmail    Channel = "email"
	ChannelSMS      Channel = "sms"
	ChannelTelegram Channel = "telegram"
)

// Subscription is a recipient's declared interest filter. One subscription
// per recipient; the latest write wins.
type Subscription struct {
	RecipientID string                 `json:"recipient_id"`
	AlertTypes  []AlertType            `json:"alert_types"`
	Channels    []Channel              `json:"channels"`
	MinSeverity Severity               `json:"min_severity"`
	Enabled     bool                   `json:"enabled"`
	Config      map[string]interface{} `json:"config,omitempty"`
	CreatedAt   time.Time              `json:"created_at"`
	UpdatedAt   time.Time              `json:"updated_at"`
}

// WantsType reports whether t is in the subscription's alert type set.
func (s Subscription) WantsType(t AlertType) bool {
	for _, at := range s.AlertTypes {
		if at == t {
			return true
		}
	}
	return false
}

// SubscriptionSpec is the payload for creating a subscription.
type SubscriptionSpec struct {
	AlertTypes  []AlertType            `json:"alert_types" binding:"required"`
	Channels    []Channel              `json:"channels" binding:"required"`
	MinSeverity Severity               `json:"min_severity"`
	Enabled     *bool                  `json:"enabled"`
	Config      map[string]interface{} `json:"config"`
}

// SubscriptionUpdate carries a partial update; nil fields are left unchanged.
type SubscriptionUpdate struct {
	AlertTypes  []AlertType            `json:"alert_types"`
	Channels    []Channel              `json:"channels"`
	MinSeverity *Severity              `json:"min_severity"`
	Enabled     *bool                  `json:"enabled"`
	Config      map[string]interface{} `json:"config"`
}

// DeliveryStatus is the outcome recorded for one delivery attempt.
type DeliveryStatus string

const (
	DeliverySent   DeliveryStatus = "sent"
	DeliveryFailed DeliveryStatus = "failed"
	DeliveryRead   DeliveryStatus = "read"
)

// DeliveryRecord is one append-only audit entry: a single attempted send of
// one alert to one recipient over one channel.
type DeliveryRecord struct {
	ID          string         `json:"id"`
	AlertID     string         `json:"alert_id"`
	RecipientID string         `json:"recipient_id"`
	Channel     Channel        `json:"channel"`
	Status      DeliveryStatus `json:"status"`
	Error       string         `json:"error,omitempty"`
	SentAt      time.Time      `json:"sent_at"`
}

// DeliveryResult aggregates one SendAlert fan-out.
type DeliveryResult struct {
	Sent   int `json:"sent"`
	Failed int `json:"failed"`
}
