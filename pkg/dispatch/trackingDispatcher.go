package dispatch

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/zoff-tech/go-clearing/pkg/broker"
	"github.com/zoff-tech/go-clearing/pkg/config"
	"github.com/zoff-tech/go-clearing/pkg/store"
)

// TrackingDispatcher publishes tracking records to the message broker so
// downstream consumers see every UETR status transition. Records that fail
// to publish stay unpublished and are retried on the next poll, up to the
// repository's attempt cap.
type TrackingDispatcher struct {
	repo         store.TrackingRepository
	broker       broker.MessageBroker
	tracer       trace.Tracer
	pollInterval time.Duration
	batchSize    int
}

// NewTrackingDispatcher creates a new instance of TrackingDispatcher.
func NewTrackingDispatcher(repo store.TrackingRepository, broker broker.MessageBroker, cfg *config.Settings) *TrackingDispatcher {
	return &TrackingDispatcher{
		repo:         repo,
		broker:       broker,
		tracer:       otel.Tracer("go-clearing"),
		pollInterval: cfg.PollInterval,
		batchSize:    cfg.BatchSize,
	}
}

// Run polls for unpublished tracking records until the context is cancelled.
func (d *TrackingDispatcher) Run(ctx context.Context) {
	ticker := time.NewTicker(d.pollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			log.Println("Stopping tracking dispatcher")
			return
		case <-ticker.C:
			d.dispatchBatch(ctx)
		}
	}
}

func (d *TrackingDispatcher) dispatchBatch(ctx context.Context) {
	records, err := d.repo.FetchUnpublished(ctx, d.batchSize)
	if err != nil {
		log.Printf("Failed to fetch unpublished tracking records: %v", err)
		return
	}

	for _, record := range records {
		ctx, span := d.tracer.Start(ctx, "DispatchTrackingRecord", trace.WithAttributes(
			attribute.String("record.id", record.ID),
			attribute.String("uetr", record.Uetr),
			attribute.String("record.message_type", record.MessageType),
			attribute.String("record.status", string(record.Status)),
			attribute.Int("record.publish_attempts", record.PublishAttempts),
		))

		payload, err := json.Marshal(record)
		if err != nil {
			log.Printf("Failed to encode tracking record %s: %v", record.ID, err)
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
			span.End()
			continue
		}

		event := &broker.TrackingEvent{
			RecordID:    record.ID,
			Uetr:        record.Uetr,
			MessageType: record.MessageType,
			TenantID:    record.TenantID,
			Status:      record.Status,
			Payload:     payload,
			RoutingKey:  fmt.Sprintf("%s.%s", record.MessageType, record.Status),
		}

		if err := d.broker.Publish(ctx, event); err != nil {
			// Leave the record unpublished; FetchUnpublished already bumped
			// the attempt count, so it retries until the cap.
			log.Printf("Failed to publish tracking record %s: %v", record.ID, err)
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
			span.End()
			continue
		}

		if err := d.repo.MarkPublished(ctx, record.ID); err != nil {
			log.Printf("Failed to mark tracking record %s as published: %v", record.ID, err)
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
		}

		span.End()
	}
}
