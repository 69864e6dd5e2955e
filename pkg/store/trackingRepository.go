package store

import (
	"context"
)

// TrackingRepository defines the database operations for the UETR tracking
// log. The log is append-only: status updates insert transition records,
// they never rewrite history.
type TrackingRepository interface {
	// Append inserts one tracking record.
	Append(ctx context.Context, record *TrackingRecord) error
	// FetchByUetr retrieves the full history for a UETR, oldest first.
	FetchByUetr(ctx context.Context, uetr string) ([]TrackingRecord, error)
	// UpdateStatus appends a status-transition record for a UETR, copying
	// identity fields from its most recent record.
	UpdateStatus(ctx context.Context, uetr string, status TrackingStatus, reason, actor string) error
	// FetchUnpublished retrieves records not yet published to the broker and
	// increments their publish attempt count; records past the attempt cap
	// are skipped.
	FetchUnpublished(ctx context.Context, batchSize int) ([]TrackingRecord, error)
	// MarkPublished marks a tracking record as published to avoid republishing.
	MarkPublished(ctx context.Context, recordID string) error
}
