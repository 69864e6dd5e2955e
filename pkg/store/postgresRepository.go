package store

import (
	"context"
	"database/sql"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
)

type PostgresRepository struct {
	db *sql.DB // using database/sql
}

func NewPostgresRepository(db *sql.DB) *PostgresRepository {
	return &PostgresRepository{db: db}
}

func (p *PostgresRepository) Append(ctx context.Context, record *TrackingRecord) error {
	_, err := p.withTransaction(ctx, "Append", func(ctx context.Context, tx *sql.Tx) ([]TrackingRecord, error) {
		if record.ID == "" {
			record.ID = uuid.NewString()
		}
		if record.CreatedAt.IsZero() {
			record.CreatedAt = time.Now()
		}
		_, err := tx.ExecContext(ctx,
			`INSERT INTO uetr_tracking
             (id, uetr, message_type, tenant_id, message_id, direction, status, reason, actor, source, created_at, published, publish_attempts)
             VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, false, 0)`,
			record.ID, record.Uetr, record.MessageType, record.TenantID, record.MessageID,
			record.Direction, record.Status, record.Reason, record.Actor, record.Source, record.CreatedAt)
		if err != nil {
			return nil, err
		}
		return nil, nil
	})
	return err
}

func (p *PostgresRepository) FetchByUetr(ctx context.Context, uetr string) ([]TrackingRecord, error) {
	return p.withTransaction(ctx, "FetchByUetr", func(ctx context.Context, tx *sql.Tx) ([]TrackingRecord, error) {
		rows, err := tx.QueryContext(ctx,
			`SELECT id, uetr, message_type, tenant_id, message_id, direction, status, reason, actor, source, created_at
             FROM uetr_tracking WHERE uetr=$1 ORDER BY created_at ASC`, uetr)
		if err != nil {
			return nil, err
		}
		defer rows.Close()

		var records []TrackingRecord
		for rows.Next() {
			var record TrackingRecord
			if err := rows.Scan(&record.ID, &record.Uetr, &record.MessageType, &record.TenantID,
				&record.MessageID, &record.Direction, &record.Status, &record.Reason,
				&record.Actor, &record.Source, &record.CreatedAt); err != nil {
				return nil, err
			}
			records = append(records, record)
		}

		if err := rows.Err(); err != nil {
			return nil, err
		}

		return records, nil
	})
}

func (p *PostgresRepository) UpdateStatus(ctx context.Context, uetr string, status TrackingStatus, reason, actor string) error {
	_, err := p.withTransaction(ctx, "UpdateStatus", func(ctx context.Context, tx *sql.Tx) ([]TrackingRecord, error) {
		// Append-only: the transition copies identity fields from the latest
		// record rather than rewriting it.
		_, err := tx.ExecContext(ctx,
			`INSERT INTO uetr_tracking
             (id, uetr, message_type, tenant_id, message_id, direction, status, reason, actor, source, created_at, published, publish_attempts)
             SELECT $1, uetr, message_type, tenant_id, message_id, direction, $3, $4, $5, source, $6, false, 0
             FROM uetr_tracking WHERE uetr=$2 ORDER BY created_at DESC LIMIT 1`,
			uuid.NewString(), uetr, status, reason, actor, time.Now())
		if err != nil {
			return nil, err
		}
		return nil, nil
	})
	return err
}

func (p *PostgresRepository) FetchUnpublished(ctx context.Context, batchSize int) ([]TrackingRecord, error) {
	return p.withTransaction(ctx, "FetchUnpublished", func(ctx context.Context, tx *sql.Tx) ([]TrackingRecord, error) {
		rows, err := tx.QueryContext(ctx,
			`SELECT id, uetr, message_type, tenant_id, status, publish_attempts FROM uetr_tracking
             WHERE published=false AND publish_attempts < $1
             ORDER BY created_at ASC FOR UPDATE SKIP LOCKED LIMIT $2`, maxPublishAttempts, batchSize)
		if err != nil {
			return nil, err
		}
		defer rows.Close()

		var records []TrackingRecord
		for rows.Next() {
			var record TrackingRecord
			if err := rows.Scan(&record.ID, &record.Uetr, &record.MessageType, &record.TenantID,
				&record.Status, &record.PublishAttempts); err != nil {
				return nil, err
			}
			records = append(records, record)
		}

		if err := rows.Err(); err != nil {
			return nil, err
		}

		// Count the attempt up front so a crash mid-publish cannot loop a
		// poison record forever.
		for _, record := range records {
			if _, err := tx.ExecContext(ctx,
				`UPDATE uetr_tracking SET publish_attempts = publish_attempts + 1 WHERE id=$1`,
				record.ID); err != nil {
				return nil, err
			}
		}

		return records, nil
	})
}

func (p *PostgresRepository) MarkPublished(ctx context.Context, recordID string) error {
	_, err := p.withTransaction(ctx, "MarkPublished", func(ctx context.Context, tx *sql.Tx) ([]TrackingRecord, error) {
		_, err := tx.ExecContext(ctx,
			`UPDATE uetr_tracking SET published=true WHERE id=$1`, recordID)
		if err != nil {
			return nil, err
		}
		return nil, nil
	})
	return err
}

func (p *PostgresRepository) withTransaction(ctx context.Context, spanName string, fn func(ctx context.Context, tx *sql.Tx) ([]TrackingRecord, error)) ([]TrackingRecord, error) {
	tracer := otel.Tracer("go-clearing")
	ctx, span := tracer.Start(ctx, spanName)
	defer span.End()

	start := time.Now()

	tx, err := p.db.BeginTx(ctx, nil)
	if err != nil {
		span.RecordError(err)
		return nil, err
	}

	records, err := fn(ctx, tx)
	if err != nil {
		span.RecordError(err)
		tx.Rollback()
		return nil, err
	}

	if err := tx.Commit(); err != nil {
		span.RecordError(err)
		return nil, err
	}

	addDBStatsToSpan(span, spanName, len(records), time.Since(start))

	return records, nil
}
