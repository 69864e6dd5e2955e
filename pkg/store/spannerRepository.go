package store

import (
	"context"
	"time"

	"cloud.google.com/go/spanner"
	"github.com/google/uuid"
	"google.golang.org/api/iterator"
)

type SpannerRepository struct {
	client *spanner.Client
}

func (s *SpannerRepository) Append(ctx context.Context, record *TrackingRecord) error {
	if record.ID == "" {
		record.ID = uuid.NewString()
	}
	if record.CreatedAt.IsZero() {
		record.CreatedAt = time.Now()
	}

	_, err := s.client.ReadWriteTransaction(ctx, func(ctx context.Context, txn *spanner.ReadWriteTransaction) error {
		stmt := spanner.Statement{
			SQL: `INSERT INTO uetr_tracking
                  (id, uetr, message_type, tenant_id, message_id, direction, status, reason, actor, source, created_at, published, publish_attempts)
                  VALUES (@id, @uetr, @messageType, @tenantId, @messageId, @direction, @status, @reason, @actor, @source, @createdAt, false, 0)`,
			Params: map[string]interface{}{
				"id":          record.ID,
				"uetr":        record.Uetr,
				"messageType": record.MessageType,
				"tenantId":    record.TenantID,
				"messageId":   record.MessageID,
				"direction":   string(record.Direction),
				"status":      string(record.Status),
				"reason":      record.Reason,
				"actor":       record.Actor,
				"source":      string(record.Source),
				"createdAt":   record.CreatedAt,
			},
		}
		_, err := txn.Update(ctx, stmt)
		return err
	})
	return err
}

func (s *SpannerRepository) FetchByUetr(ctx context.Context, uetr string) ([]TrackingRecord, error) {
	stmt := spanner.Statement{
		SQL: `SELECT id, uetr, message_type, tenant_id, message_id, direction, status, reason, actor, source FROM uetr_tracking
              WHERE uetr = @uetr ORDER BY created_at ASC`,
		Params: map[string]interface{}{
			"uetr": uetr,
		},
	}

	iter := s.client.Single().Query(ctx, stmt)
	defer iter.Stop()

	var records []TrackingRecord
	for {
		row, err := iter.Next()
		if err == iterator.Done {
			break
		}
		if err != nil {
			return nil, err
		}

		var record TrackingRecord
		var direction, status, source string
		if err := row.Columns(
			&record.ID,
			&record.Uetr,
			&record.MessageType,
			&record.TenantID,
			&record.MessageID,
			&direction,
			&status,
			&record.Reason,
			&record.Actor,
			&source); err != nil {
			return nil, err
		}
		record.Direction = Direction(direction)
		record.Status = TrackingStatus(status)
		record.Source = Source(source)
		records = append(records, record)
	}

	return records, nil
}

func (s *SpannerRepository) UpdateStatus(ctx context.Context, uetr string, status TrackingStatus, reason, actor string) error {
	_, err := s.client.ReadWriteTransaction(ctx, func(ctx context.Context, txn *spanner.ReadWriteTransaction) error {
		stmt := spanner.Statement{
			SQL: `INSERT INTO uetr_tracking
                  (id, uetr, message_type, tenant_id, message_id, direction, status, reason, actor, source, created_at, published, publish_attempts)
                  SELECT @id, uetr, message_type, tenant_id, message_id, direction, @status, @reason, @actor, source, CURRENT_TIMESTAMP(), false, 0
                  FROM uetr_tracking WHERE uetr = @uetr ORDER BY created_at DESC LIMIT 1`,
			Params: map[string]interface{}{
				"id":     uuid.NewString(),
				"uetr":   uetr,
				"status": string(status),
				"reason": reason,
				"actor":  actor,
			},
		}
		_, err := txn.Update(ctx, stmt)
		return err
	})
	return err
}

func (s *SpannerRepository) FetchUnpublished(ctx context.Context, batchSize int) ([]TrackingRecord, error) {
	stmt := spanner.Statement{
		SQL: `SELECT id, uetr, message_type, tenant_id, status, publish_attempts FROM uetr_tracking
              WHERE published = false AND publish_attempts < @maxAttempts
              ORDER BY created_at ASC LIMIT @batchSize`,
		Params: map[string]interface{}{
			"maxAttempts": maxPublishAttempts,
			"batchSize":   batchSize,
		},
	}

	iter := s.client.Single().Query(ctx, stmt)
	defer iter.Stop()

	var records []TrackingRecord
	for {
		row, err := iter.Next()
		if err == iterator.Done {
			break
		}
		if err != nil {
			return nil, err
		}

		var record TrackingRecord
		var status string
		var attempts int64
		if err := row.Columns(
			&record.ID,
			&record.Uetr,
			&record.MessageType,
			&record.TenantID,
			&status,
			&attempts); err != nil {
			return nil, err
		}
		record.Status = TrackingStatus(status)
		record.PublishAttempts = int(attempts)
		records = append(records, record)
	}

	for _, record := range records {
		if err := s.incrementPublishAttempts(ctx, record.ID); err != nil {
			return nil, err
		}
	}

	return records, nil
}

func (s *SpannerRepository) incrementPublishAttempts(ctx context.Context, recordID string) error {
	_, err := s.client.ReadWriteTransaction(ctx, func(ctx context.Context, txn *spanner.ReadWriteTransaction) error {
		stmt := spanner.Statement{
			SQL: `UPDATE uetr_tracking SET publish_attempts = publish_attempts + 1 WHERE id = @id`,
			Params: map[string]interface{}{
				"id": recordID,
			},
		}
		_, err := txn.Update(ctx, stmt)
		return err
	})
	return err
}

func (s *SpannerRepository) MarkPublished(ctx context.Context, recordID string) error {
	_, err := s.client.ReadWriteTransaction(ctx, func(ctx context.Context, txn *spanner.ReadWriteTransaction) error {
		stmt := spanner.Statement{
			SQL: `UPDATE uetr_tracking SET published = true WHERE id = @id`,
			Params: map[string]interface{}{
				"id": recordID,
			},
		}
		_, err := txn.Update(ctx, stmt)
		return err
	})
	return err
}
