package models

import (
	"encoding/json"
	"time"
)

// Envelope is the inbound wire frame: a type discriminator plus the raw
// frame bytes, which handlers decode themselves. Ephemeral, never persisted.
type Envelope struct {
	Type    string
	Payload json.RawMessage
}

// Known envelope types carried over the live channel.
const (
	MsgNotification  = "notification"
	MsgEntityCreated = "entity_created"
	MsgEntityUpdated = "entity_updated"
)

// NotificationPayload is the generic notification envelope pushed to
// attached clients.
type NotificationPayload struct {
	NotificationType string    `json:"notificationType"`
	Title            string    `json:"title"`
	Message          string    `json:"message"`
	Priority         string    `json:"priority"`
	RelatedID        string    `json:"relatedId,omitempty"`
	RelatedType      string    `json:"relatedType,omitempty"`
	ActionURL        string    `json:"actionUrl,omitempty"`
	Timestamp        time.Time `json:"timestamp"`
}

// ControlMessage is the outbound subscribe/unsubscribe frame sent once the
// channel is open.
type ControlMessage struct {
	Action string `json:"action"`
	FarmID string `json:"farmId,omitempty"`
}

const (
	ActionSubscribe   = "subscribe"
	ActionUnsubscribe = "unsubscribe"
)
