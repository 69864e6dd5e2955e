package uetr

import (
	"context"
	"log"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/zoff-tech/go-clearing/pkg/store"
)

// Service owns the correlation-identifier lifecycle: it decides which UETR a
// message travels under and appends tracking records as the message moves
// through the clearing systems.
type Service struct {
	repo   store.TrackingRepository
	tracer trace.Tracer
}

func NewService(repo store.TrackingRepository) *Service {
	return &Service{
		repo:   repo,
		tracer: otel.Tracer("go-clearing"),
	}
}

// GetOrGenerate returns the external candidate when it is well-formed,
// otherwise a freshly generated UETR. An absent candidate and an invalid one
// behave identically and only differ in what gets logged.
func (s *Service) GetOrGenerate(messageType, tenantID, candidate string) (string, store.Source) {
	if candidate != "" && Validate(candidate) {
		return candidate, store.SourceExternal
	}

	generated := Generate(messageType, tenantID)
	if candidate == "" {
		log.Printf("No UETR supplied for %s message, generated %s", messageType, generated)
	} else {
		log.Printf("Discarding malformed external UETR %q on %s message, generated %s", candidate, messageType, generated)
	}
	return generated, store.SourceGenerated
}

// Track appends the first tracking record tying a UETR to one
// (messageID, direction) event. The same UETR accumulates one record per
// message event over its lifetime.
func (s *Service) Track(ctx context.Context, uetr, messageType, tenantID, messageID string, direction store.Direction, source store.Source) error {
	ctx, span := s.tracer.Start(ctx, "TrackUetr", trace.WithAttributes(
		attribute.String("uetr", uetr),
		attribute.String("message.type", messageType),
		attribute.String("message.direction", string(direction)),
	))
	defer span.End()

	record := &store.TrackingRecord{
		Uetr:        uetr,
		MessageType: messageType,
		TenantID:    tenantID,
		MessageID:   messageID,
		Direction:   direction,
		Status:      store.StatusPending,
		Source:      source,
	}
	if err := s.repo.Append(ctx, record); err != nil {
		span.RecordError(err)
		return err
	}
	return nil
}

// UpdateStatus appends a status transition to the tracking log.
func (s *Service) UpdateStatus(ctx context.Context, uetr string, status store.TrackingStatus, reason, actor string) error {
	ctx, span := s.tracer.Start(ctx, "UpdateUetrStatus", trace.WithAttributes(
		attribute.String("uetr", uetr),
		attribute.String("uetr.status", string(status)),
	))
	defer span.End()

	if err := s.repo.UpdateStatus(ctx, uetr, status, reason, actor); err != nil {
		span.RecordError(err)
		return err
	}
	return nil
}

// History returns the full tracking log for a UETR, oldest first.
func (s *Service) History(ctx context.Context, uetr string) ([]store.TrackingRecord, error) {
	return s.repo.FetchByUetr(ctx, uetr)
}
