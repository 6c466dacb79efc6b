package entities

import "time"

type EventType string

const (
	EventHumanTransfer  EventType = "human_transfer"
	EventBusinessUpdate EventType = "business_update"
	EventUrgentAlert    EventType = "urgent_alert"
)

// NotificationEvent is emitted towards the operator side channel.
type NotificationEvent struct {
	ID         string    `json:"id"`
	Type       EventType `json:"type"`
	ClientID   string    `json:"client_id,omitempty"`
	ClientName string    `json:"client_name,omitempty"`
	Message    string    `json:"message"`
	Reason     string    `json:"reason,omitempty"`
	Urgency    Urgency   `json:"urgency"`
	CreatedAt  time.Time `json:"created_at"`
}
