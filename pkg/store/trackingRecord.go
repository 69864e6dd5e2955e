package store

import "time"

// TrackingStatus is the lifecycle state of a UETR.
type TrackingStatus string

const (
	StatusPending    TrackingStatus = "pending"
	StatusReceived   TrackingStatus = "received"
	StatusProcessing TrackingStatus = "processing"
	StatusCompleted  TrackingStatus = "completed"
	StatusFailed     TrackingStatus = "failed"
)

// Direction of the message a tracking record belongs to.
type Direction string

const (
	DirectionInbound  Direction = "inbound"
	DirectionOutbound Direction = "outbound"
)

// Source records whether a UETR was supplied externally or generated here.
type Source string

const (
	SourceExternal  Source = "external"
	SourceGenerated Source = "generated"
)

// TrackingRecord is one immutable entry in the append-only UETR tracking
// log. A single UETR accumulates one record per (messageType, direction)
// event over its lifetime; records are never updated in place.
type TrackingRecord struct {
	ID              string         `json:"id"`
	Uetr            string         `json:"uetr"`
	MessageType     string         `json:"message_type"`
	TenantID        string         `json:"tenant_id"`
	MessageID       string         `json:"message_id"`
	Direction       Direction      `json:"direction"`
	Status          TrackingStatus `json:"status"`
	Reason          string         `json:"reason,omitempty"`
	Actor           string         `json:"actor,omitempty"`
	Source          Source         `json:"source"`
	CreatedAt       time.Time      `json:"created_at"`
	Published       bool           `json:"published"`
	PublishAttempts int            `json:"publish_attempts"`
}
