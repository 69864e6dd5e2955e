package broker

import (
	"context"

	"github.com/zoff-tech/go-clearing/pkg/store"
)

// TrackingEvent is one UETR lifecycle transition published for downstream
// consumers (reconciliation, ops dashboards).
type TrackingEvent struct {
	RecordID    string               `json:"record_id"`
	Uetr        string               `json:"uetr"`
	MessageType string               `json:"message_type"`
	TenantID    string               `json:"tenant_id"`
	Status      store.TrackingStatus `json:"status"`
	Payload     []byte               `json:"payload,omitempty"`
	Headers     map[string]string    `json:"-"`
	RoutingKey  string               `json:"-"`
}

// MessageBroker defines the operations to publish tracking events to a broker.
type MessageBroker interface {
	// Publish sends the event to the configured exchange or topic with its headers.
	Publish(ctx context.Context, event *TrackingEvent) error
	// Close cleans up any resources (connections).
	Close() error
}
